package pricing

// Component is a catalog entry for one unit of electrical work.
type Component struct {
	ID               int64   `json:"id"`
	Code             string  `json:"code"`
	Name             string  `json:"name"`
	BaseTimeMinutes  float64 `json:"base_time_minutes"`
	BaseMaterialCost float64 `json:"base_material_cost"`
	BaseSalePrice    float64 `json:"base_sale_price"`
	ComplexityFactor float64 `json:"complexity_factor"`
}

// Variant is a named configuration of a Component. SalePrice, when set,
// replaces the component's base sale price.
type Variant struct {
	ID             int64    `json:"id"`
	ComponentID    int64    `json:"component_id"`
	Name           string   `json:"name"`
	TimeMultiplier float64  `json:"time_multiplier"`
	ExtraMinutes   float64  `json:"extra_minutes"`
	IsDefault      bool     `json:"is_default"`
	SortOrder      int      `json:"sort_order"`
	SalePrice      *float64 `json:"sale_price,omitempty"`
}

// VariantMaterial is one material line per unit of a variant.
// WastePercent is a percentage: 10 means 10 %.
type VariantMaterial struct {
	ID            int64   `json:"id"`
	VariantID     int64   `json:"variant_id"`
	Name          string  `json:"name"`
	Quantity      float64 `json:"quantity"`
	UnitCostPrice float64 `json:"unit_cost_price"`
	UnitSalePrice float64 `json:"unit_sale_price"`
	WastePercent  float64 `json:"waste_percent"`
}

// BuildingProfile carries override factors for a class of projects.
type BuildingProfile struct {
	ID                      int64   `json:"id"`
	Name                    string  `json:"name"`
	BuildingType            string  `json:"building_type"`
	TimeMultiplier          float64 `json:"time_multiplier"`
	AccessibilityMultiplier float64 `json:"accessibility_multiplier"`
}

// GlobalFactor is a system-wide adjustment. Only active factors are applied.
type GlobalFactor struct {
	ID         int64   `json:"id"`
	Name       string  `json:"name"`
	Multiplier float64 `json:"multiplier"`
	Active     bool    `json:"active"`
}

// Item is one requested row of a calculation.
type Item struct {
	ComponentID int64         `json:"component_id"`
	VariantID   *int64        `json:"variant_id,omitempty"`
	Quantity    float64       `json:"quantity"`
	Overrides   ItemOverrides `json:"overrides"`
	Note        string        `json:"note,omitempty"`
}

// ItemOverrides are optional per-item adjustments supplied by the estimator.
type ItemOverrides struct {
	UnitSalePrice  *float64 `json:"unit_sale_price,omitempty"`
	TimeMultiplier *float64 `json:"time_multiplier,omitempty"`
}

// TimeBreakdown splits time into the categories reported on calculations.
// Labor is Direct + Indirect + Personal.
type TimeBreakdown struct {
	Direct   float64 `json:"direct"`
	Indirect float64 `json:"indirect"`
	Personal float64 `json:"personal"`
	Labor    float64 `json:"labor"`
}

// CalculatedItem is the engine's per-item result. MaterialCost includes
// waste; MaterialNet does not.
type CalculatedItem struct {
	ComponentID     int64         `json:"component_id"`
	ComponentCode   string        `json:"component_code"`
	ComponentName   string        `json:"component_name"`
	VariantID       int64         `json:"variant_id"`
	VariantName     string        `json:"variant_name"`
	VariantFallback bool          `json:"variant_fallback,omitempty"`
	Quantity        float64       `json:"quantity"`
	UnitTimeSeconds float64       `json:"unit_time_seconds"`
	TimeSeconds     TimeBreakdown `json:"time_seconds"`
	MaterialNet     float64       `json:"material_net"`
	MaterialCost    float64       `json:"material_cost"`
	MaterialWaste   float64       `json:"material_waste"`
	LaborCost       float64       `json:"labor_cost"`
	TotalCost       float64       `json:"total_cost"`
	UnitSalePrice   float64       `json:"unit_sale_price"`
	TotalSale       float64       `json:"total_sale"`
	AppliedRules    []int64       `json:"applied_rules,omitempty"`
	Flags           []string      `json:"flags,omitempty"`
	Note            string        `json:"note,omitempty"`
}

// Result holds project-level totals produced by Aggregate.
type Result struct {
	TimeSeconds      TimeBreakdown `json:"time_seconds"`
	LaborHours       float64       `json:"labor_hours"`
	MaterialCost     float64       `json:"material_cost"`
	MaterialWaste    float64       `json:"material_waste"`
	LaborCost        float64       `json:"labor_cost"`
	OtherCosts       float64       `json:"other_costs"`
	CostPrice        float64       `json:"cost_price"`
	OverheadAmount   float64       `json:"overhead_amount"`
	RiskAmount       float64       `json:"risk_amount"`
	SalesBasis       float64       `json:"sales_basis"`
	MarginAmount     float64       `json:"margin_amount"`
	SalePriceExclVAT float64       `json:"sale_price_excl_vat"`
	DiscountAmount   float64       `json:"discount_amount"`
	NetPrice         float64       `json:"net_price"`
	VATAmount        float64       `json:"vat_amount"`
	FinalAmount      float64       `json:"final_amount"`
	DBAmount         float64       `json:"db_amount"`
	DBPercentage     float64       `json:"db_percentage"`
	DBPerHour        float64       `json:"db_per_hour"`
	CoverageRatio    float64       `json:"coverage_ratio"`
	CatalogSaleTotal float64       `json:"catalog_sale_total"`
}
