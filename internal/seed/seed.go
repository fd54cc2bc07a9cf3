package seed

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/Simplici0/kalkia/internal/catalog"
	"github.com/Simplici0/kalkia/internal/db"
	"github.com/Simplici0/kalkia/internal/pricing"
)

// Stats contains seed operation counters.
type Stats struct {
	Inserts int
}

type demoVariant struct {
	variant   pricing.Variant
	materials []pricing.VariantMaterial
}

type demoComponent struct {
	component pricing.Component
	variants  []demoVariant
	rules     []pricing.Rule
}

func salePrice(v float64) *float64 { return &v }

var demoComponents = []demoComponent{
	{
		component: pricing.Component{Code: "SOCKET", Name: "Stikkontakt", BaseTimeMinutes: 20, BaseSalePrice: 650, ComplexityFactor: 1},
		variants: []demoVariant{
			{
				variant: pricing.Variant{Name: "Indendørs", TimeMultiplier: 1, IsDefault: true, SortOrder: 1},
				materials: []pricing.VariantMaterial{
					{Name: "Stikkontakt 1-fag", Quantity: 1, UnitCostPrice: 45, UnitSalePrice: 89},
					{Name: "Installationskabel 3G1,5", Quantity: 5, UnitCostPrice: 6, UnitSalePrice: 12, WastePercent: 10},
				},
			},
			{
				variant: pricing.Variant{Name: "Udendørs IP44", TimeMultiplier: 1.4, ExtraMinutes: 10, SortOrder: 2, SalePrice: salePrice(950)},
				materials: []pricing.VariantMaterial{
					{Name: "Stikkontakt IP44", Quantity: 1, UnitCostPrice: 120, UnitSalePrice: 219},
					{Name: "Installationskabel 3G1,5", Quantity: 8, UnitCostPrice: 6, UnitSalePrice: 12, WastePercent: 10},
				},
			},
		},
		rules: []pricing.Rule{
			{Name: "Mængdefordel", SortOrder: 1, Condition: pricing.Condition{Kind: pricing.ConditionQuantityAtLeast, Number: 10}, Effects: []pricing.Effect{pricing.Multiply(pricing.FieldTime, 0.9)}},
		},
	},
	{
		component: pricing.Component{Code: "LIGHT", Name: "Lampeudtag", BaseTimeMinutes: 25, BaseSalePrice: 550, ComplexityFactor: 1},
		variants: []demoVariant{
			{
				variant: pricing.Variant{Name: "Loft", TimeMultiplier: 1, IsDefault: true, SortOrder: 1},
				materials: []pricing.VariantMaterial{
					{Name: "Lampeudtag DCL", Quantity: 1, UnitCostPrice: 35, UnitSalePrice: 69},
					{Name: "Installationskabel 3G1,5", Quantity: 4, UnitCostPrice: 6, UnitSalePrice: 12, WastePercent: 10},
				},
			},
			{
				variant: pricing.Variant{Name: "Væg", TimeMultiplier: 0.9, SortOrder: 2},
			},
		},
	},
	{
		component: pricing.Component{Code: "PV_PANEL", Name: "Solcellepanel montage", BaseTimeMinutes: 45, BaseMaterialCost: 150, BaseSalePrice: 1800, ComplexityFactor: 1.2},
		variants: []demoVariant{
			{
				variant: pricing.Variant{Name: "Tegltag", TimeMultiplier: 1, IsDefault: true, SortOrder: 1},
				materials: []pricing.VariantMaterial{
					{Name: "Montageskinne", Quantity: 2, UnitCostPrice: 85, UnitSalePrice: 160, WastePercent: 5},
					{Name: "Tagkrog", Quantity: 4, UnitCostPrice: 22, UnitSalePrice: 45, WastePercent: 5},
				},
			},
			{
				variant: pricing.Variant{Name: "Fladt tag", TimeMultiplier: 0.8, SortOrder: 2},
			},
		},
		rules: []pricing.Rule{
			{Name: "Stillads på landbrug", SortOrder: 1, Condition: pricing.Condition{Kind: pricing.ConditionBuildingType, Text: "farm"}, Effects: []pricing.Effect{pricing.Add(pricing.FieldTime, 900), pricing.Flag("scaffolding")}},
		},
	},
	{
		component: pricing.Component{Code: "INVERTER", Name: "Inverter installation", BaseTimeMinutes: 180, BaseSalePrice: 4500, ComplexityFactor: 1.5},
		variants: []demoVariant{
			{
				variant: pricing.Variant{Name: "3-faset 10 kW", TimeMultiplier: 1, IsDefault: true, SortOrder: 1},
				materials: []pricing.VariantMaterial{
					{Name: "AC-kabel 5G6", Quantity: 10, UnitCostPrice: 28, UnitSalePrice: 55, WastePercent: 10},
				},
			},
			{
				variant: pricing.Variant{Name: "Hybrid med batteri", TimeMultiplier: 1.3, ExtraMinutes: 60, SortOrder: 2, SalePrice: salePrice(6500)},
				materials: []pricing.VariantMaterial{
					{Name: "AC-kabel 5G6", Quantity: 10, UnitCostPrice: 28, UnitSalePrice: 55, WastePercent: 10},
					{Name: "DC-kabel 6mm²", Quantity: 6, UnitCostPrice: 18, UnitSalePrice: 35, WastePercent: 10},
				},
			},
		},
		rules: []pricing.Rule{
			{Name: "Lærling under tilsyn", SortOrder: 1, Condition: pricing.Condition{Kind: pricing.ConditionLaborType, Text: string(pricing.LaborApprentice)}, Effects: []pricing.Effect{pricing.Multiply(pricing.FieldTime, 1.2), pricing.Flag("supervision_required")}},
		},
	},
}

var demoProfiles = []pricing.BuildingProfile{
	{Name: "Parcelhus", BuildingType: "house", TimeMultiplier: 1, AccessibilityMultiplier: 1},
	{Name: "Etageejendom", BuildingType: "apartment", TimeMultiplier: 1.15, AccessibilityMultiplier: 1.1},
	{Name: "Landbrug", BuildingType: "farm", TimeMultiplier: 1.25, AccessibilityMultiplier: 1.2},
}

var demoFactors = []pricing.GlobalFactor{
	{Name: "Vintertillæg", Multiplier: 1.05, Active: false},
	{Name: "Effektivitet", Multiplier: 1, Active: true},
}

// Run inserts the demo catalog, building profiles and global factors. Rows
// that already exist, matched by code or name, are left untouched.
func Run(ctx context.Context, database *sql.DB) (Stats, error) {
	stats := Stats{}

	err := db.WithTx(ctx, database, func(tx *sql.Tx) error {
		for _, c := range demoComponents {
			if err := ensureComponent(ctx, tx, c, &stats); err != nil {
				return err
			}
		}
		for _, p := range demoProfiles {
			if err := ensureProfile(ctx, tx, p, &stats); err != nil {
				return err
			}
		}
		for _, f := range demoFactors {
			if err := ensureFactor(ctx, tx, f, &stats); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return Stats{}, fmt.Errorf("seed demo catalog: %w", err)
	}

	return stats, nil
}

func ensureComponent(ctx context.Context, tx *sql.Tx, demo demoComponent, stats *Stats) error {
	c := demo.component

	var exists bool
	if err := tx.QueryRowContext(ctx, `SELECT EXISTS(SELECT 1 FROM components WHERE code = ? LIMIT 1)`, c.Code).Scan(&exists); err != nil {
		return fmt.Errorf("check component %s existence: %w", c.Code, err)
	}
	if exists {
		return nil
	}

	res, err := tx.ExecContext(ctx, `
		INSERT INTO components (code, name, base_time_minutes, base_material_cost, base_sale_price, complexity_factor)
		VALUES (?, ?, ?, ?, ?, ?)
	`, c.Code, c.Name, c.BaseTimeMinutes, c.BaseMaterialCost, c.BaseSalePrice, c.ComplexityFactor)
	if err != nil {
		return fmt.Errorf("insert component %s: %w", c.Code, err)
	}
	componentID, err := res.LastInsertId()
	if err != nil {
		return fmt.Errorf("read component %s id: %w", c.Code, err)
	}

	for _, dv := range demo.variants {
		v := dv.variant
		res, err := tx.ExecContext(ctx, `
			INSERT INTO variants (component_id, name, time_multiplier, extra_minutes, is_default, sort_order, sale_price)
			VALUES (?, ?, ?, ?, ?, ?, ?)
		`, componentID, v.Name, v.TimeMultiplier, v.ExtraMinutes, v.IsDefault, v.SortOrder, v.SalePrice)
		if err != nil {
			return fmt.Errorf("insert variant %s/%s: %w", c.Code, v.Name, err)
		}
		variantID, err := res.LastInsertId()
		if err != nil {
			return fmt.Errorf("read variant %s/%s id: %w", c.Code, v.Name, err)
		}

		for _, m := range dv.materials {
			if _, err := tx.ExecContext(ctx, `
				INSERT INTO variant_materials (variant_id, name, quantity, unit_cost_price, unit_sale_price, waste_percent)
				VALUES (?, ?, ?, ?, ?, ?)
			`, variantID, m.Name, m.Quantity, m.UnitCostPrice, m.UnitSalePrice, m.WastePercent); err != nil {
				return fmt.Errorf("insert material %s for %s/%s: %w", m.Name, c.Code, v.Name, err)
			}
		}
	}

	for _, r := range demo.rules {
		condition, effects, err := catalog.EncodeRule(r)
		if err != nil {
			return fmt.Errorf("encode rule %s: %w", r.Name, err)
		}
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO rules (component_id, name, sort_order, condition_json, effects_json)
			VALUES (?, ?, ?, ?, ?)
		`, componentID, r.Name, r.SortOrder, condition, effects); err != nil {
			return fmt.Errorf("insert rule %s: %w", r.Name, err)
		}
	}

	stats.Inserts++
	return nil
}

func ensureProfile(ctx context.Context, tx *sql.Tx, p pricing.BuildingProfile, stats *Stats) error {
	var exists bool
	if err := tx.QueryRowContext(ctx, `SELECT EXISTS(SELECT 1 FROM building_profiles WHERE name = ? LIMIT 1)`, p.Name).Scan(&exists); err != nil {
		return fmt.Errorf("check building profile %s existence: %w", p.Name, err)
	}
	if exists {
		return nil
	}

	if _, err := tx.ExecContext(ctx, `
		INSERT INTO building_profiles (name, building_type, time_multiplier, accessibility_multiplier)
		VALUES (?, ?, ?, ?)
	`, p.Name, p.BuildingType, p.TimeMultiplier, p.AccessibilityMultiplier); err != nil {
		return fmt.Errorf("insert building profile %s: %w", p.Name, err)
	}
	stats.Inserts++
	return nil
}

func ensureFactor(ctx context.Context, tx *sql.Tx, f pricing.GlobalFactor, stats *Stats) error {
	var exists bool
	if err := tx.QueryRowContext(ctx, `SELECT EXISTS(SELECT 1 FROM global_factors WHERE name = ? LIMIT 1)`, f.Name).Scan(&exists); err != nil {
		return fmt.Errorf("check global factor %s existence: %w", f.Name, err)
	}
	if exists {
		return nil
	}

	if _, err := tx.ExecContext(ctx, `
		INSERT INTO global_factors (name, multiplier, active)
		VALUES (?, ?, ?)
	`, f.Name, f.Multiplier, f.Active); err != nil {
		return fmt.Errorf("insert global factor %s: %w", f.Name, err)
	}
	stats.Inserts++
	return nil
}
