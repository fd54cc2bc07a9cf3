package catalog

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/Simplici0/kalkia/internal/pricing"
)

// Repository reads catalog data from SQLite.
type Repository struct {
	db *sql.DB
}

func NewRepository(db *sql.DB) *Repository {
	return &Repository{db: db}
}

// LoadSlice loads the components referenced by componentIDs, plus the owners
// of variantIDs, with all their variants, materials and active rules. It
// issues one query per table regardless of how many ids are requested.
// Unknown ids are not an error here; the engine reports them as not found.
func (r *Repository) LoadSlice(ctx context.Context, componentIDs, variantIDs []int64) (*pricing.Catalog, error) {
	componentIDs = uniqueIDs(componentIDs)
	variantIDs = uniqueIDs(variantIDs)
	if len(componentIDs) == 0 && len(variantIDs) == 0 {
		return pricing.NewCatalog(nil, nil, nil, nil)
	}

	components, err := r.components(ctx, componentIDs, variantIDs)
	if err != nil {
		return nil, err
	}

	ids := make([]int64, 0, len(components))
	for _, c := range components {
		ids = append(ids, c.ID)
	}
	if len(ids) == 0 {
		return pricing.NewCatalog(nil, nil, nil, nil)
	}

	variants, err := r.variants(ctx, ids)
	if err != nil {
		return nil, err
	}
	materials, err := r.materials(ctx, ids)
	if err != nil {
		return nil, err
	}
	rules, err := r.rules(ctx, ids)
	if err != nil {
		return nil, err
	}

	return pricing.NewCatalog(components, variants, materials, rules)
}

func (r *Repository) components(ctx context.Context, componentIDs, variantIDs []int64) ([]pricing.Component, error) {
	// Keep both IN lists non-empty so the SQL stays valid.
	byComponent := append([]int64{0}, componentIDs...)
	byVariant := append([]int64{0}, variantIDs...)

	query := fmt.Sprintf(`
		SELECT id, code, name, base_time_minutes, base_material_cost, base_sale_price, complexity_factor
		FROM components
		WHERE active = 1
			AND (id IN (%s) OR id IN (SELECT component_id FROM variants WHERE id IN (%s)))
		ORDER BY id
	`, placeholders(len(byComponent)), placeholders(len(byVariant)))

	rows, err := r.db.QueryContext(ctx, query, append(int64Args(byComponent), int64Args(byVariant)...)...)
	if err != nil {
		return nil, fmt.Errorf("query components: %w", err)
	}
	defer rows.Close()

	components := make([]pricing.Component, 0)
	for rows.Next() {
		var c pricing.Component
		if err := rows.Scan(&c.ID, &c.Code, &c.Name, &c.BaseTimeMinutes, &c.BaseMaterialCost, &c.BaseSalePrice, &c.ComplexityFactor); err != nil {
			return nil, fmt.Errorf("scan component: %w", err)
		}
		components = append(components, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate components: %w", err)
	}
	return components, nil
}

func (r *Repository) variants(ctx context.Context, componentIDs []int64) ([]pricing.Variant, error) {
	rows, err := r.db.QueryContext(ctx, fmt.Sprintf(`
		SELECT id, component_id, name, time_multiplier, extra_minutes, is_default, sort_order, sale_price
		FROM variants
		WHERE component_id IN (%s)
		ORDER BY component_id, sort_order, id
	`, placeholders(len(componentIDs))), int64Args(componentIDs)...)
	if err != nil {
		return nil, fmt.Errorf("query variants: %w", err)
	}
	defer rows.Close()

	variants := make([]pricing.Variant, 0)
	for rows.Next() {
		var (
			v         pricing.Variant
			salePrice sql.NullFloat64
		)
		if err := rows.Scan(&v.ID, &v.ComponentID, &v.Name, &v.TimeMultiplier, &v.ExtraMinutes, &v.IsDefault, &v.SortOrder, &salePrice); err != nil {
			return nil, fmt.Errorf("scan variant: %w", err)
		}
		if salePrice.Valid {
			p := salePrice.Float64
			v.SalePrice = &p
		}
		variants = append(variants, v)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate variants: %w", err)
	}
	return variants, nil
}

func (r *Repository) materials(ctx context.Context, componentIDs []int64) ([]pricing.VariantMaterial, error) {
	rows, err := r.db.QueryContext(ctx, fmt.Sprintf(`
		SELECT m.id, m.variant_id, m.name, m.quantity, m.unit_cost_price, m.unit_sale_price, m.waste_percent
		FROM variant_materials m
		JOIN variants v ON v.id = m.variant_id
		WHERE v.component_id IN (%s)
		ORDER BY m.variant_id, m.id
	`, placeholders(len(componentIDs))), int64Args(componentIDs)...)
	if err != nil {
		return nil, fmt.Errorf("query variant materials: %w", err)
	}
	defer rows.Close()

	materials := make([]pricing.VariantMaterial, 0)
	for rows.Next() {
		var m pricing.VariantMaterial
		if err := rows.Scan(&m.ID, &m.VariantID, &m.Name, &m.Quantity, &m.UnitCostPrice, &m.UnitSalePrice, &m.WastePercent); err != nil {
			return nil, fmt.Errorf("scan variant material: %w", err)
		}
		materials = append(materials, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate variant materials: %w", err)
	}
	return materials, nil
}

func (r *Repository) rules(ctx context.Context, componentIDs []int64) ([]pricing.Rule, error) {
	rows, err := r.db.QueryContext(ctx, fmt.Sprintf(`
		SELECT id, component_id, name, sort_order, condition_json, effects_json
		FROM rules
		WHERE active = 1 AND component_id IN (%s)
		ORDER BY component_id, sort_order, id
	`, placeholders(len(componentIDs))), int64Args(componentIDs)...)
	if err != nil {
		return nil, fmt.Errorf("query rules: %w", err)
	}
	defer rows.Close()

	rules := make([]pricing.Rule, 0)
	for rows.Next() {
		var (
			rule                       pricing.Rule
			conditionJSON, effectsJSON string
		)
		if err := rows.Scan(&rule.ID, &rule.ComponentID, &rule.Name, &rule.SortOrder, &conditionJSON, &effectsJSON); err != nil {
			return nil, fmt.Errorf("scan rule: %w", err)
		}
		if rule.Condition, err = DecodeCondition(rule.ID, conditionJSON); err != nil {
			return nil, err
		}
		if rule.Effects, err = DecodeEffects(rule.ID, effectsJSON); err != nil {
			return nil, err
		}
		rules = append(rules, rule)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate rules: %w", err)
	}
	return rules, nil
}

// Profile loads one building profile. A missing id matches pricing.ErrNotFound.
func (r *Repository) Profile(ctx context.Context, id int64) (*pricing.BuildingProfile, error) {
	var p pricing.BuildingProfile
	err := r.db.QueryRowContext(ctx, `
		SELECT id, name, building_type, time_multiplier, accessibility_multiplier
		FROM building_profiles
		WHERE id = ?
	`, id).Scan(&p.ID, &p.Name, &p.BuildingType, &p.TimeMultiplier, &p.AccessibilityMultiplier)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, &pricing.Error{Kind: pricing.ErrNotFound, Entity: "building_profile", ID: fmt.Sprint(id), Reason: "no such profile"}
	}
	if err != nil {
		return nil, fmt.Errorf("query building profile %d: %w", id, err)
	}
	return &p, nil
}

// Profiles lists all building profiles by name.
func (r *Repository) Profiles(ctx context.Context) ([]pricing.BuildingProfile, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, name, building_type, time_multiplier, accessibility_multiplier
		FROM building_profiles
		ORDER BY name
	`)
	if err != nil {
		return nil, fmt.Errorf("query building profiles: %w", err)
	}
	defer rows.Close()

	profiles := make([]pricing.BuildingProfile, 0)
	for rows.Next() {
		var p pricing.BuildingProfile
		if err := rows.Scan(&p.ID, &p.Name, &p.BuildingType, &p.TimeMultiplier, &p.AccessibilityMultiplier); err != nil {
			return nil, fmt.Errorf("scan building profile: %w", err)
		}
		profiles = append(profiles, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate building profiles: %w", err)
	}
	return profiles, nil
}

// ActiveGlobalFactors returns the factors currently switched on.
func (r *Repository) ActiveGlobalFactors(ctx context.Context) ([]pricing.GlobalFactor, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, name, multiplier, active
		FROM global_factors
		WHERE active = 1
		ORDER BY id
	`)
	if err != nil {
		return nil, fmt.Errorf("query global factors: %w", err)
	}
	defer rows.Close()

	factors := make([]pricing.GlobalFactor, 0)
	for rows.Next() {
		var f pricing.GlobalFactor
		if err := rows.Scan(&f.ID, &f.Name, &f.Multiplier, &f.Active); err != nil {
			return nil, fmt.Errorf("scan global factor: %w", err)
		}
		factors = append(factors, f)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate global factors: %w", err)
	}
	return factors, nil
}

func uniqueIDs(ids []int64) []int64 {
	seen := make(map[int64]struct{}, len(ids))
	out := make([]int64, 0, len(ids))
	for _, id := range ids {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

func placeholders(n int) string {
	return strings.TrimSuffix(strings.Repeat("?,", n), ",")
}

func int64Args(ids []int64) []any {
	args := make([]any, len(ids))
	for i, id := range ids {
		args[i] = id
	}
	return args
}
