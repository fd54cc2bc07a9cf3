package pricing

import "strconv"

// Breakdown contains the price build-up derived from a cost price, stages 2
// through 8 of the pricing pipeline.
type Breakdown struct {
	OverheadAmount   float64
	RiskAmount       float64
	SalesBasis       float64
	MarginAmount     float64
	SalePriceExclVAT float64
	DiscountAmount   float64
	NetPrice         float64
	VATAmount        float64
	FinalAmount      float64
	DBAmount         float64
	DBPercentage     float64
	DBPerHour        float64
	CoverageRatio    float64
}

// BuildUp computes the price build-up from cost price and labor hours. Each
// value is derived only from values computed before it.
func BuildUp(costPrice, laborHours float64, s Settings) Breakdown {
	overhead := costPrice * s.OverheadPercentage / 100
	risk := costPrice * s.RiskPercentage / 100

	salesBasis := costPrice + overhead + risk

	margin := salesBasis * s.MarginPercentage / 100

	sale := salesBasis + margin

	discount := sale * s.DiscountPercentage / 100
	net := sale - discount

	vat := net * s.VATPercentage / 100
	final := net + vat

	db := sale - costPrice
	dbPercentage := 0.0
	if sale != 0 {
		dbPercentage = db / sale * 100
	}
	dbPerHour := 0.0
	if laborHours != 0 {
		dbPerHour = db / laborHours
	}
	coverage := 0.0
	if costPrice != 0 {
		coverage = sale / costPrice
	}

	return Breakdown{
		OverheadAmount:   overhead,
		RiskAmount:       risk,
		SalesBasis:       salesBasis,
		MarginAmount:     margin,
		SalePriceExclVAT: sale,
		DiscountAmount:   discount,
		NetPrice:         net,
		VATAmount:        vat,
		FinalAmount:      final,
		DBAmount:         db,
		DBPercentage:     dbPercentage,
		DBPerHour:        dbPerHour,
		CoverageRatio:    coverage,
	}
}

// Aggregate sums item results and runs the pricing pipeline. Settings are
// validated before any arithmetic.
func Aggregate(items []CalculatedItem, s Settings) (Result, error) {
	if err := s.Validate(); err != nil {
		return Result{}, err
	}

	r := sumItems(items, s)
	r.setBreakdown(BuildUp(r.CostPrice, r.LaborHours, s))

	if err := checkFinite("result", "", r.fields()); err != nil {
		return Result{}, err
	}
	return r, nil
}

// sumItems is stage 1 of the pipeline: time, material, waste and labor totals
// over the items, plus other costs, giving the cost price.
func sumItems(items []CalculatedItem, s Settings) Result {
	var r Result
	for _, it := range items {
		r.TimeSeconds.Direct += it.TimeSeconds.Direct
		r.TimeSeconds.Indirect += it.TimeSeconds.Indirect
		r.TimeSeconds.Personal += it.TimeSeconds.Personal
		r.TimeSeconds.Labor += it.TimeSeconds.Labor
		r.MaterialCost += it.MaterialNet
		r.MaterialWaste += it.MaterialWaste
		r.LaborCost += it.LaborCost
		r.CatalogSaleTotal += it.TotalSale
	}
	r.OtherCosts = s.OtherCosts
	r.LaborHours = r.TimeSeconds.Labor / 3600
	r.CostPrice = r.MaterialCost + r.MaterialWaste + r.LaborCost + r.OtherCosts
	return r
}

// Replay rebuilds a stored result from its stored items and settings and
// reports the first field that does not match exactly. Each item's total cost
// must equal its material plus labor cost.
func Replay(items []CalculatedItem, r Result, s Settings) error {
	if err := s.Validate(); err != nil {
		return err
	}

	for i, it := range items {
		if it.TotalCost != it.MaterialCost+it.LaborCost {
			return integrityError("item", strconv.Itoa(i), "total_cost", it.TotalCost, "does not replay from stored inputs")
		}
	}

	want := sumItems(items, s)
	want.setBreakdown(BuildUp(want.CostPrice, want.LaborHours, s))

	stored := r.fields()
	for i, nv := range want.fields() {
		if stored[i].value != nv.value {
			return integrityError("result", "", nv.name, stored[i].value, "does not replay from stored inputs")
		}
	}
	return nil
}

func (r *Result) setBreakdown(b Breakdown) {
	r.OverheadAmount = b.OverheadAmount
	r.RiskAmount = b.RiskAmount
	r.SalesBasis = b.SalesBasis
	r.MarginAmount = b.MarginAmount
	r.SalePriceExclVAT = b.SalePriceExclVAT
	r.DiscountAmount = b.DiscountAmount
	r.NetPrice = b.NetPrice
	r.VATAmount = b.VATAmount
	r.FinalAmount = b.FinalAmount
	r.DBAmount = b.DBAmount
	r.DBPercentage = b.DBPercentage
	r.DBPerHour = b.DBPerHour
	r.CoverageRatio = b.CoverageRatio
}

func (r Result) fields() []namedValue {
	return []namedValue{
		{"time_seconds.direct", r.TimeSeconds.Direct},
		{"time_seconds.indirect", r.TimeSeconds.Indirect},
		{"time_seconds.personal", r.TimeSeconds.Personal},
		{"time_seconds.labor", r.TimeSeconds.Labor},
		{"labor_hours", r.LaborHours},
		{"material_cost", r.MaterialCost},
		{"material_waste", r.MaterialWaste},
		{"labor_cost", r.LaborCost},
		{"other_costs", r.OtherCosts},
		{"cost_price", r.CostPrice},
		{"overhead_amount", r.OverheadAmount},
		{"risk_amount", r.RiskAmount},
		{"sales_basis", r.SalesBasis},
		{"margin_amount", r.MarginAmount},
		{"sale_price_excl_vat", r.SalePriceExclVAT},
		{"discount_amount", r.DiscountAmount},
		{"net_price", r.NetPrice},
		{"vat_amount", r.VATAmount},
		{"final_amount", r.FinalAmount},
		{"db_amount", r.DBAmount},
		{"db_percentage", r.DBPercentage},
		{"db_per_hour", r.DBPerHour},
		{"coverage_ratio", r.CoverageRatio},
		{"catalog_sale_total", r.CatalogSaleTotal},
	}
}
