package pricing

import (
	"sort"
	"strconv"
)

// Catalog is an indexed, read-only slice of catalog data for one
// calculation. Build it with NewCatalog.
type Catalog struct {
	components          map[int64]Component
	variants            map[int64]Variant
	variantsByComponent map[int64][]Variant
	materialsByVariant  map[int64][]VariantMaterial
	rulesByComponent    map[int64][]Rule
}

// NewCatalog indexes and validates catalog records. Structural problems are
// reported as DataIntegrityError here, before any calculation runs.
func NewCatalog(components []Component, variants []Variant, materials []VariantMaterial, rules []Rule) (*Catalog, error) {
	c := &Catalog{
		components:          make(map[int64]Component, len(components)),
		variants:            make(map[int64]Variant, len(variants)),
		variantsByComponent: make(map[int64][]Variant),
		materialsByVariant:  make(map[int64][]VariantMaterial),
		rulesByComponent:    make(map[int64][]Rule),
	}

	for _, comp := range components {
		id := strconv.FormatInt(comp.ID, 10)
		if _, dup := c.components[comp.ID]; dup {
			return nil, integrityError("component", id, "id", comp.ID, "duplicate id")
		}
		if err := checkNonNegative("component", id, map[string]float64{
			"base_time_minutes":  comp.BaseTimeMinutes,
			"base_material_cost": comp.BaseMaterialCost,
			"base_sale_price":    comp.BaseSalePrice,
			"complexity_factor":  comp.ComplexityFactor,
		}); err != nil {
			return nil, err
		}
		c.components[comp.ID] = comp
	}

	defaults := make(map[int64]int64)
	for _, v := range variants {
		id := strconv.FormatInt(v.ID, 10)
		if _, dup := c.variants[v.ID]; dup {
			return nil, integrityError("variant", id, "id", v.ID, "duplicate id")
		}
		if _, ok := c.components[v.ComponentID]; !ok {
			return nil, integrityError("variant", id, "component_id", v.ComponentID, "references unknown component")
		}
		if err := checkNonNegative("variant", id, map[string]float64{
			"time_multiplier": v.TimeMultiplier,
		}); err != nil {
			return nil, err
		}
		if !finite(v.ExtraMinutes) {
			return nil, integrityError("variant", id, "extra_minutes", v.ExtraMinutes, "must be finite")
		}
		if v.SalePrice != nil && (!finite(*v.SalePrice) || *v.SalePrice < 0) {
			return nil, integrityError("variant", id, "sale_price", *v.SalePrice, "must be finite and >= 0")
		}
		if v.IsDefault {
			if other, ok := defaults[v.ComponentID]; ok {
				return nil, integrityError("variant", id, "is_default", true, "component already has default variant "+strconv.FormatInt(other, 10))
			}
			defaults[v.ComponentID] = v.ID
		}
		c.variants[v.ID] = v
		c.variantsByComponent[v.ComponentID] = append(c.variantsByComponent[v.ComponentID], v)
	}
	for _, vs := range c.variantsByComponent {
		sortVariants(vs)
	}

	for _, m := range materials {
		id := strconv.FormatInt(m.ID, 10)
		if _, ok := c.variants[m.VariantID]; !ok {
			return nil, integrityError("variant_material", id, "variant_id", m.VariantID, "references unknown variant")
		}
		if err := checkNonNegative("variant_material", id, map[string]float64{
			"quantity":        m.Quantity,
			"unit_cost_price": m.UnitCostPrice,
			"unit_sale_price": m.UnitSalePrice,
			"waste_percent":   m.WastePercent,
		}); err != nil {
			return nil, err
		}
		c.materialsByVariant[m.VariantID] = append(c.materialsByVariant[m.VariantID], m)
	}
	for _, ms := range c.materialsByVariant {
		sort.SliceStable(ms, func(i, j int) bool { return ms[i].ID < ms[j].ID })
	}

	for _, r := range rules {
		if _, ok := c.components[r.ComponentID]; !ok {
			return nil, integrityError("rule", strconv.FormatInt(r.ID, 10), "component_id", r.ComponentID, "references unknown component")
		}
		if err := r.Validate(); err != nil {
			return nil, err
		}
		c.rulesByComponent[r.ComponentID] = append(c.rulesByComponent[r.ComponentID], r)
	}
	for _, rs := range c.rulesByComponent {
		sortRules(rs)
	}

	return c, nil
}

func (c *Catalog) Component(id int64) (Component, bool) {
	comp, ok := c.components[id]
	return comp, ok
}

func (c *Catalog) Variant(id int64) (Variant, bool) {
	v, ok := c.variants[id]
	return v, ok
}

// Variants returns the component's variants in sort order.
func (c *Catalog) Variants(componentID int64) []Variant {
	return c.variantsByComponent[componentID]
}

func (c *Catalog) Materials(variantID int64) []VariantMaterial {
	return c.materialsByVariant[variantID]
}

// Rules returns the component's rules in application order.
func (c *Catalog) Rules(componentID int64) []Rule {
	return c.rulesByComponent[componentID]
}

// itemInputs gathers the catalog records CalculateItem needs for item.
func (c *Catalog) itemInputs(item Item) (Component, []Variant, []VariantMaterial, []Rule, error) {
	comp, ok := c.components[item.ComponentID]
	if !ok {
		return Component{}, nil, nil, nil, notFoundError("component", strconv.FormatInt(item.ComponentID, 10))
	}

	variants := c.variantsByComponent[comp.ID]
	if item.VariantID != nil {
		v, ok := c.variants[*item.VariantID]
		if !ok {
			return Component{}, nil, nil, nil, notFoundError("variant", strconv.FormatInt(*item.VariantID, 10))
		}
		if v.ComponentID != comp.ID {
			variants = append(append([]Variant(nil), variants...), v)
		}
	}

	var materials []VariantMaterial
	for _, v := range variants {
		if v.ComponentID == comp.ID {
			materials = append(materials, c.materialsByVariant[v.ID]...)
		}
	}

	return comp, variants, materials, c.rulesByComponent[comp.ID], nil
}

func sortVariants(vs []Variant) {
	sort.SliceStable(vs, func(i, j int) bool {
		if vs[i].SortOrder != vs[j].SortOrder {
			return vs[i].SortOrder < vs[j].SortOrder
		}
		return vs[i].ID < vs[j].ID
	})
}

func sortRules(rs []Rule) {
	sort.SliceStable(rs, func(i, j int) bool {
		if rs[i].SortOrder != rs[j].SortOrder {
			return rs[i].SortOrder < rs[j].SortOrder
		}
		return rs[i].ID < rs[j].ID
	})
}

func checkNonNegative(entity, id string, fields map[string]float64) error {
	names := make([]string, 0, len(fields))
	for name := range fields {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		v := fields[name]
		if !finite(v) || v < 0 {
			return integrityError(entity, id, name, v, "must be finite and >= 0")
		}
	}
	return nil
}
