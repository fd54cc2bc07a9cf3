package catalog

import (
	"bytes"
	"encoding/json"
	"strconv"

	"github.com/Simplici0/kalkia/internal/pricing"
)

// DecodeCondition parses a rule's stored condition. Unknown keys and
// malformed JSON are data integrity errors; semantic checks happen when the
// catalog is built.
func DecodeCondition(ruleID int64, raw string) (pricing.Condition, error) {
	var c pricing.Condition
	if err := decodeStrict(raw, &c); err != nil {
		return pricing.Condition{}, ruleDataError(ruleID, "condition_json", raw, err)
	}
	return c, nil
}

// DecodeEffects parses a rule's stored effect list.
func DecodeEffects(ruleID int64, raw string) ([]pricing.Effect, error) {
	var effects []pricing.Effect
	if err := decodeStrict(raw, &effects); err != nil {
		return nil, ruleDataError(ruleID, "effects_json", raw, err)
	}
	return effects, nil
}

// EncodeRule returns the stored JSON forms of a rule's condition and effects.
func EncodeRule(r pricing.Rule) (condition, effects string, err error) {
	c, err := json.Marshal(r.Condition)
	if err != nil {
		return "", "", err
	}
	e, err := json.Marshal(r.Effects)
	if err != nil {
		return "", "", err
	}
	return string(c), string(e), nil
}

func decodeStrict(raw string, v any) error {
	dec := json.NewDecoder(bytes.NewReader([]byte(raw)))
	dec.DisallowUnknownFields()
	return dec.Decode(v)
}

func ruleDataError(ruleID int64, field, raw string, err error) error {
	return &pricing.Error{
		Kind:   pricing.ErrDataIntegrity,
		Entity: "rule",
		ID:     strconv.FormatInt(ruleID, 10),
		Field:  field,
		Value:  raw,
		Reason: err.Error(),
	}
}
