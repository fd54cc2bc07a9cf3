package pricing

import "math"

// MarginConvention names how MarginPercentage is applied: the margin amount is
// sales basis × margin % / 100.
const MarginConvention = "markup_on_sales_basis"

// Settings are the per-calculation parameters. Percentages are given as
// percent values (25 means 25 %).
type Settings struct {
	HourlyRate             float64        `json:"hourly_rate"`
	MarginPercentage       float64        `json:"margin_percentage"`
	DiscountPercentage     float64        `json:"discount_percentage"`
	VATPercentage          float64        `json:"vat_percentage"`
	OverheadPercentage     float64        `json:"overhead_percentage"`
	RiskPercentage         float64        `json:"risk_percentage"`
	IndirectTimePercentage float64        `json:"indirect_time_percentage"`
	PersonalTimePercentage float64        `json:"personal_time_percentage"`
	OtherCosts             float64        `json:"other_costs"`
	LaborType              LaborType      `json:"labor_type"`
	TimeAdjustment         TimeAdjustment `json:"time_adjustment"`
}

// Validate checks numeric ranges. Enum fields are checked by ResolveContext.
func (s Settings) Validate() error {
	if !finite(s.HourlyRate) || s.HourlyRate <= 0 {
		return validationError("settings", "", "hourly_rate", s.HourlyRate, "must be > 0")
	}

	bounded := []struct {
		field string
		value float64
	}{
		{"margin_percentage", s.MarginPercentage},
		{"discount_percentage", s.DiscountPercentage},
	}
	for _, p := range bounded {
		if !finite(p.value) || p.value < 0 || p.value >= 100 {
			return validationError("settings", "", p.field, p.value, "must be in [0, 100)")
		}
	}

	open := []struct {
		field string
		value float64
	}{
		{"vat_percentage", s.VATPercentage},
		{"overhead_percentage", s.OverheadPercentage},
		{"risk_percentage", s.RiskPercentage},
		{"indirect_time_percentage", s.IndirectTimePercentage},
		{"personal_time_percentage", s.PersonalTimePercentage},
		{"other_costs", s.OtherCosts},
	}
	for _, p := range open {
		if !finite(p.value) || p.value < 0 {
			return validationError("settings", "", p.field, p.value, "must be >= 0")
		}
	}

	return nil
}

func finite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}
