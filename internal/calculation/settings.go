package calculation

import (
	"github.com/Simplici0/kalkia/internal/pricing"
)

// SettingsOverrides are per-request changes to the configured defaults. Nil
// fields keep the base value.
type SettingsOverrides struct {
	HourlyRate             *float64 `json:"hourly_rate,omitempty"`
	MarginPercentage       *float64 `json:"margin_percentage,omitempty"`
	DiscountPercentage     *float64 `json:"discount_percentage,omitempty"`
	VATPercentage          *float64 `json:"vat_percentage,omitempty"`
	OverheadPercentage     *float64 `json:"overhead_percentage,omitempty"`
	RiskPercentage         *float64 `json:"risk_percentage,omitempty"`
	IndirectTimePercentage *float64 `json:"indirect_time_percentage,omitempty"`
	PersonalTimePercentage *float64 `json:"personal_time_percentage,omitempty"`
	OtherCosts             *float64 `json:"other_costs,omitempty"`
	LaborType              *string  `json:"labor_type,omitempty"`
	TimeAdjustment         *string  `json:"time_adjustment,omitempty"`
}

// Apply returns base with the overrides applied. Unknown labor types or time
// adjustments are configuration errors; numeric ranges are left to the engine.
func (o SettingsOverrides) Apply(base pricing.Settings) (pricing.Settings, error) {
	s := base

	for _, f := range []struct {
		src *float64
		dst *float64
	}{
		{o.HourlyRate, &s.HourlyRate},
		{o.MarginPercentage, &s.MarginPercentage},
		{o.DiscountPercentage, &s.DiscountPercentage},
		{o.VATPercentage, &s.VATPercentage},
		{o.OverheadPercentage, &s.OverheadPercentage},
		{o.RiskPercentage, &s.RiskPercentage},
		{o.IndirectTimePercentage, &s.IndirectTimePercentage},
		{o.PersonalTimePercentage, &s.PersonalTimePercentage},
		{o.OtherCosts, &s.OtherCosts},
	} {
		if f.src != nil {
			*f.dst = *f.src
		}
	}

	if o.LaborType != nil {
		lt, err := pricing.ParseLaborType(*o.LaborType)
		if err != nil {
			return pricing.Settings{}, err
		}
		s.LaborType = lt
	}
	if o.TimeAdjustment != nil {
		ta, err := pricing.ParseTimeAdjustment(*o.TimeAdjustment)
		if err != nil {
			return pricing.Settings{}, err
		}
		s.TimeAdjustment = ta
	}
	return s, nil
}
