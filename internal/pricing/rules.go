package pricing

import (
	"fmt"
	"math"
	"strconv"
)

// ConditionKind names the closed set of rule conditions.
type ConditionKind string

const (
	ConditionAlways          ConditionKind = "always"
	ConditionQuantityAbove   ConditionKind = "quantity_gt"
	ConditionQuantityAtLeast ConditionKind = "quantity_gte"
	ConditionQuantityBelow   ConditionKind = "quantity_lt"
	ConditionBuildingType    ConditionKind = "building_type"
	ConditionLaborType       ConditionKind = "labor_type"
	ConditionVariant         ConditionKind = "variant"
)

// Condition decides whether a rule applies to an item. Number is used by the
// quantity kinds and the variant kind, Text by building and labor type.
type Condition struct {
	Kind   ConditionKind `json:"kind"`
	Number float64       `json:"number,omitempty"`
	Text   string        `json:"text,omitempty"`
}

// EffectKind names the closed set of rule effects.
type EffectKind string

const (
	EffectMultiply EffectKind = "multiply"
	EffectAdd      EffectKind = "add"
	EffectFlag     EffectKind = "flag"
)

// EffectField is the per-unit value an effect adjusts.
type EffectField string

const (
	// FieldTime is per-unit time in seconds.
	FieldTime EffectField = "time"
	// FieldMaterial is per-unit material cost.
	FieldMaterial EffectField = "material"
)

// Effect is one adjustment of a rule: Multiply(field, Value), Add(field, Value)
// or Flag(Name).
type Effect struct {
	Kind  EffectKind  `json:"kind"`
	Field EffectField `json:"field,omitempty"`
	Value float64     `json:"value,omitempty"`
	Name  string      `json:"name,omitempty"`
}

// Multiply scales field by factor.
func Multiply(field EffectField, factor float64) Effect {
	return Effect{Kind: EffectMultiply, Field: field, Value: factor}
}

// Add adds amount to field. Amounts may be negative, but a rule that takes
// per-unit time or material cost below zero fails the item.
func Add(field EffectField, amount float64) Effect {
	return Effect{Kind: EffectAdd, Field: field, Value: amount}
}

// Flag marks the item with name.
func Flag(name string) Effect {
	return Effect{Kind: EffectFlag, Name: name}
}

// Rule is a conditional adjustment attached to a component. Rules of a
// component run in (SortOrder, ID) order.
type Rule struct {
	ID          int64     `json:"id"`
	ComponentID int64     `json:"component_id"`
	Name        string    `json:"name"`
	SortOrder   int       `json:"sort_order"`
	Condition   Condition `json:"condition"`
	Effects     []Effect  `json:"effects"`
}

// Validate checks the rule's structure. It runs when a catalog is built so
// malformed rules are rejected before any calculation.
func (r Rule) Validate() error {
	id := strconv.FormatInt(r.ID, 10)
	if err := r.Condition.validate(id); err != nil {
		return err
	}
	if len(r.Effects) == 0 {
		return integrityError("rule", id, "effects", nil, "rule has no effects")
	}
	for i, e := range r.Effects {
		if err := e.validate(id, i); err != nil {
			return err
		}
	}
	return nil
}

func (c Condition) validate(ruleID string) error {
	switch c.Kind {
	case ConditionAlways:
		return nil
	case ConditionQuantityAbove, ConditionQuantityAtLeast, ConditionQuantityBelow, ConditionVariant:
		if math.IsNaN(c.Number) || math.IsInf(c.Number, 0) {
			return integrityError("rule", ruleID, "condition.number", c.Number, "must be finite")
		}
		return nil
	case ConditionBuildingType, ConditionLaborType:
		if c.Text == "" {
			return integrityError("rule", ruleID, "condition.text", c.Text, "must not be empty")
		}
		return nil
	default:
		return integrityError("rule", ruleID, "condition.kind", c.Kind, "unknown condition kind")
	}
}

func (e Effect) validate(ruleID string, index int) error {
	field := fmt.Sprintf("effects[%d]", index)
	switch e.Kind {
	case EffectMultiply, EffectAdd:
		if e.Field != FieldTime && e.Field != FieldMaterial {
			return integrityError("rule", ruleID, field+".field", e.Field, "unknown effect field")
		}
		if math.IsNaN(e.Value) || math.IsInf(e.Value, 0) {
			return integrityError("rule", ruleID, field+".value", e.Value, "must be finite")
		}
		if e.Kind == EffectMultiply && e.Value < 0 {
			return integrityError("rule", ruleID, field+".value", e.Value, "multiplier must be >= 0")
		}
		return nil
	case EffectFlag:
		if e.Name == "" {
			return integrityError("rule", ruleID, field+".name", e.Name, "flag name must not be empty")
		}
		return nil
	default:
		return integrityError("rule", ruleID, field+".kind", e.Kind, "unknown effect kind")
	}
}

func (c Condition) matches(item Item, variantID int64, fc FactorContext) bool {
	switch c.Kind {
	case ConditionAlways:
		return true
	case ConditionQuantityAbove:
		return item.Quantity > c.Number
	case ConditionQuantityAtLeast:
		return item.Quantity >= c.Number
	case ConditionQuantityBelow:
		return item.Quantity < c.Number
	case ConditionBuildingType:
		return fc.BuildingType == c.Text
	case ConditionLaborType:
		return string(fc.LaborType) == c.Text
	case ConditionVariant:
		return float64(variantID) == c.Number
	}
	return false
}

// unitValues are the per-unit quantities rules operate on.
type unitValues struct {
	timeSeconds   float64
	materialNet   float64
	materialWaste float64
}

// apply runs one rule's effects: multiplicative effects first, then additive
// effects, then flags.
func (r Rule) apply(v unitValues, flags []string) (unitValues, []string) {
	for _, e := range r.Effects {
		if e.Kind != EffectMultiply {
			continue
		}
		switch e.Field {
		case FieldTime:
			v.timeSeconds *= e.Value
		case FieldMaterial:
			v.materialNet *= e.Value
			v.materialWaste *= e.Value
		}
	}
	for _, e := range r.Effects {
		if e.Kind != EffectAdd {
			continue
		}
		switch e.Field {
		case FieldTime:
			v.timeSeconds += e.Value
		case FieldMaterial:
			v.materialNet += e.Value
		}
	}
	for _, e := range r.Effects {
		if e.Kind == EffectFlag {
			flags = append(flags, e.Name)
		}
	}
	return v, flags
}
