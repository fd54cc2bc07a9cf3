package pricing

import (
	"strconv"
)

// CalculateItem computes time and cost for one item. variants may contain
// variants of other components; they are only consulted when item.VariantID
// names one, in which case the component's default is used instead and
// VariantFallback is set. materials are filtered to the resolved variant.
//
// The function is pure: identical inputs give bit-identical output.
func CalculateItem(component Component, variants []Variant, materials []VariantMaterial, rules []Rule, item Item, fc FactorContext, s Settings) (CalculatedItem, error) {
	itemID := strconv.FormatInt(component.ID, 10)

	if item.ComponentID != component.ID {
		return CalculatedItem{}, notFoundError("component", strconv.FormatInt(item.ComponentID, 10))
	}
	if !finite(item.Quantity) || item.Quantity <= 0 {
		return CalculatedItem{}, validationError("item", itemID, "quantity", item.Quantity, "must be > 0")
	}
	if o := item.Overrides.UnitSalePrice; o != nil && (!finite(*o) || *o < 0) {
		return CalculatedItem{}, validationError("item", itemID, "overrides.unit_sale_price", *o, "must be finite and >= 0")
	}
	if o := item.Overrides.TimeMultiplier; o != nil && (!finite(*o) || *o < 0) {
		return CalculatedItem{}, validationError("item", itemID, "overrides.time_multiplier", *o, "must be finite and >= 0")
	}

	variant, fallback, err := resolveVariant(component, variants, item.VariantID)
	if err != nil {
		return CalculatedItem{}, err
	}

	unit := unitValues{
		timeSeconds: (component.BaseTimeMinutes*variant.TimeMultiplier + variant.ExtraMinutes) * 60 * component.ComplexityFactor,
	}

	lines := 0
	for _, m := range materials {
		if m.VariantID != variant.ID {
			continue
		}
		lines++
		net := m.Quantity * m.UnitCostPrice
		unit.materialNet += net
		unit.materialWaste += net * m.WastePercent / 100
	}
	if lines == 0 {
		unit.materialNet = component.BaseMaterialCost
	}

	ordered := make([]Rule, 0, len(rules))
	for _, r := range rules {
		if r.ComponentID == component.ID {
			ordered = append(ordered, r)
		}
	}
	sortRules(ordered)

	var (
		applied []int64
		flags   []string
	)
	for _, r := range ordered {
		if !r.Condition.matches(item, variant.ID, fc) {
			continue
		}
		unit, flags = r.apply(unit, flags)
		if unit.timeSeconds < 0 {
			return CalculatedItem{}, integrityError("rule", strconv.FormatInt(r.ID, 10), "time", unit.timeSeconds, "per-unit time below zero after rule")
		}
		if unit.materialNet < 0 {
			return CalculatedItem{}, integrityError("rule", strconv.FormatInt(r.ID, 10), "material", unit.materialNet, "per-unit material cost below zero after rule")
		}
		applied = append(applied, r.ID)
	}

	unit.timeSeconds *= fc.TimeMultiplier()
	if o := item.Overrides.TimeMultiplier; o != nil {
		unit.timeSeconds *= *o
	}

	var t TimeBreakdown
	t.Direct = unit.timeSeconds * item.Quantity
	t.Indirect = t.Direct * s.IndirectTimePercentage / 100
	t.Personal = (t.Direct + t.Indirect) * s.PersonalTimePercentage / 100
	t.Labor = t.Direct + t.Indirect + t.Personal

	materialNet := unit.materialNet * item.Quantity
	materialWaste := unit.materialWaste * item.Quantity
	materialCost := (unit.materialNet + unit.materialWaste) * item.Quantity
	laborCost := t.Labor / 3600 * s.HourlyRate * fc.LaborRateMultiplier

	unitSale := component.BaseSalePrice
	if variant.SalePrice != nil {
		unitSale = *variant.SalePrice
	}
	if o := item.Overrides.UnitSalePrice; o != nil {
		unitSale = *o
	}

	ci := CalculatedItem{
		ComponentID:     component.ID,
		ComponentCode:   component.Code,
		ComponentName:   component.Name,
		VariantID:       variant.ID,
		VariantName:     variant.Name,
		VariantFallback: fallback,
		Quantity:        item.Quantity,
		UnitTimeSeconds: unit.timeSeconds,
		TimeSeconds:     t,
		MaterialNet:     materialNet,
		MaterialCost:    materialCost,
		MaterialWaste:   materialWaste,
		LaborCost:       laborCost,
		TotalCost:       materialCost + laborCost,
		UnitSalePrice:   unitSale,
		TotalSale:       unitSale * item.Quantity,
		AppliedRules:    applied,
		Flags:           flags,
		Note:            item.Note,
	}

	if err := checkFinite("item", itemID, []namedValue{
		{"unit_time_seconds", ci.UnitTimeSeconds},
		{"time_seconds.direct", t.Direct},
		{"time_seconds.indirect", t.Indirect},
		{"time_seconds.personal", t.Personal},
		{"time_seconds.labor", t.Labor},
		{"material_net", ci.MaterialNet},
		{"material_cost", ci.MaterialCost},
		{"material_waste", ci.MaterialWaste},
		{"labor_cost", ci.LaborCost},
		{"total_cost", ci.TotalCost},
		{"unit_sale_price", ci.UnitSalePrice},
		{"total_sale", ci.TotalSale},
	}); err != nil {
		return CalculatedItem{}, err
	}

	return ci, nil
}

// resolveVariant picks the variant to price: the explicit one when it belongs
// to the component, then the flagged default, then the first by sort order.
func resolveVariant(component Component, variants []Variant, explicit *int64) (Variant, bool, error) {
	own := make([]Variant, 0, len(variants))
	for _, v := range variants {
		if v.ComponentID == component.ID {
			own = append(own, v)
		}
	}

	fallback := false
	if explicit != nil {
		found := false
		for _, v := range variants {
			if v.ID != *explicit {
				continue
			}
			found = true
			if v.ComponentID == component.ID {
				return v, false, nil
			}
		}
		if !found {
			return Variant{}, false, notFoundError("variant", strconv.FormatInt(*explicit, 10))
		}
		fallback = true
	}

	if len(own) == 0 {
		return Variant{}, false, integrityError("component", strconv.FormatInt(component.ID, 10), "variants", 0, "component has no variants")
	}

	sortVariants(own)
	for _, v := range own {
		if v.IsDefault {
			return v, fallback, nil
		}
	}
	return own[0], fallback, nil
}

type namedValue struct {
	name  string
	value float64
}

func checkFinite(entity, id string, values []namedValue) error {
	for _, nv := range values {
		if !finite(nv.value) {
			return computationError(entity, id, nv.name, nv.value)
		}
	}
	return nil
}
