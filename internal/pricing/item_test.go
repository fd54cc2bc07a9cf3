package pricing

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func ptr[T any](v T) *T { return &v }

func neutralContext(t *testing.T) FactorContext {
	t.Helper()
	fc, err := ResolveContext(nil, nil, LaborElectrician, TimeNormal)
	require.NoError(t, err)
	return fc
}

func baseSettings() Settings {
	return Settings{
		HourlyRate:     450,
		LaborType:      LaborElectrician,
		TimeAdjustment: TimeNormal,
	}
}

func socket() (Component, []Variant) {
	comp := Component{ID: 1, Code: "SOCKET", Name: "Socket outlet", BaseTimeMinutes: 60, ComplexityFactor: 1, BaseSalePrice: 500}
	variants := []Variant{
		{ID: 10, ComponentID: 1, Name: "Standard", TimeMultiplier: 1, IsDefault: true, SortOrder: 1},
		{ID: 11, ComponentID: 1, Name: "Outdoor", TimeMultiplier: 1.5, ExtraMinutes: 10, SortOrder: 2, SalePrice: ptr(800.0)},
	}
	return comp, variants
}

func TestCalculateItem_TwoUnitsNeutralContext(t *testing.T) {
	comp, variants := socket()

	got, err := CalculateItem(comp, variants, nil, nil, Item{ComponentID: 1, Quantity: 2}, neutralContext(t), baseSettings())
	require.NoError(t, err)

	assert.Equal(t, 3600.0, got.UnitTimeSeconds)
	assert.Equal(t, 7200.0, got.TimeSeconds.Direct)
	assert.Equal(t, 7200.0, got.TimeSeconds.Labor)
	assert.InDelta(t, 900, got.LaborCost, 1e-9)
	assert.Equal(t, int64(10), got.VariantID)
	assert.False(t, got.VariantFallback)
}

func TestCalculateItem_FourUnitsNeutralContext(t *testing.T) {
	comp, variants := socket()

	got, err := CalculateItem(comp, variants, nil, nil, Item{ComponentID: 1, Quantity: 4}, neutralContext(t), baseSettings())
	require.NoError(t, err)

	assert.Equal(t, 14400.0, got.TimeSeconds.Labor)
	assert.InDelta(t, 1800, got.LaborCost, 1e-9)
	assert.InDelta(t, 2000, got.TotalSale, 1e-9)
}

func TestCalculateItem_MaterialWaste(t *testing.T) {
	comp, variants := socket()
	materials := []VariantMaterial{
		{ID: 100, VariantID: 10, Name: "Cable", Quantity: 3, UnitCostPrice: 50, WastePercent: 10},
	}

	got, err := CalculateItem(comp, variants, materials, nil, Item{ComponentID: 1, Quantity: 1}, neutralContext(t), baseSettings())
	require.NoError(t, err)

	assert.InDelta(t, 165, got.MaterialCost, 1e-9)
	assert.InDelta(t, 15, got.MaterialWaste, 1e-9)
	assert.InDelta(t, 150, got.MaterialNet, 1e-9)
	assert.InDelta(t, got.MaterialCost+got.LaborCost, got.TotalCost, 1e-9)
}

func TestCalculateItem_MaterialsOfOtherVariantIgnored(t *testing.T) {
	comp, variants := socket()
	comp.BaseMaterialCost = 40
	materials := []VariantMaterial{
		{ID: 100, VariantID: 11, Name: "Outdoor box", Quantity: 1, UnitCostPrice: 120},
	}

	got, err := CalculateItem(comp, variants, materials, nil, Item{ComponentID: 1, Quantity: 2}, neutralContext(t), baseSettings())
	require.NoError(t, err)

	assert.InDelta(t, 80, got.MaterialCost, 1e-9)
	assert.Zero(t, got.MaterialWaste)
}

func TestCalculateItem_RuleOrder(t *testing.T) {
	comp := Component{ID: 1, BaseTimeMinutes: 10, ComplexityFactor: 1}
	variants := []Variant{{ID: 10, ComponentID: 1, TimeMultiplier: 1, IsDefault: true}}
	add := Rule{ID: 1, ComponentID: 1, SortOrder: 1, Condition: Condition{Kind: ConditionAlways}, Effects: []Effect{Add(FieldTime, 300)}}
	mul := Rule{ID: 2, ComponentID: 1, SortOrder: 2, Condition: Condition{Kind: ConditionAlways}, Effects: []Effect{Multiply(FieldTime, 1.2)}}

	tests := []struct {
		name  string
		rules []Rule
		want  float64
	}{
		{name: "add then multiply", rules: []Rule{mul, add}, want: 1080},
		{name: "multiply then add", rules: []Rule{withSortOrder(mul, 1), withSortOrder(add, 2)}, want: 1020},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := CalculateItem(comp, variants, nil, tt.rules, Item{ComponentID: 1, Quantity: 1}, neutralContext(t), baseSettings())
			require.NoError(t, err)
			assert.InDelta(t, tt.want, got.UnitTimeSeconds, 1e-9)
			assert.Len(t, got.AppliedRules, 2)
		})
	}
}

func withSortOrder(r Rule, order int) Rule {
	r.SortOrder = order
	return r
}

func TestCalculateItem_RuleMultipliesBeforeAddingWithinRule(t *testing.T) {
	comp := Component{ID: 1, BaseTimeMinutes: 10, ComplexityFactor: 1, BaseMaterialCost: 100}
	variants := []Variant{{ID: 10, ComponentID: 1, TimeMultiplier: 1}}
	rule := Rule{
		ID: 1, ComponentID: 1,
		Condition: Condition{Kind: ConditionQuantityAtLeast, Number: 5},
		Effects: []Effect{
			Add(FieldTime, 60),
			Multiply(FieldTime, 2),
			Add(FieldMaterial, 10),
			Flag("bulk"),
		},
	}

	small, err := CalculateItem(comp, variants, nil, []Rule{rule}, Item{ComponentID: 1, Quantity: 4}, neutralContext(t), baseSettings())
	require.NoError(t, err)
	assert.Equal(t, 600.0, small.UnitTimeSeconds)
	assert.Empty(t, small.Flags)

	bulk, err := CalculateItem(comp, variants, nil, []Rule{rule}, Item{ComponentID: 1, Quantity: 5}, neutralContext(t), baseSettings())
	require.NoError(t, err)
	assert.Equal(t, 1260.0, bulk.UnitTimeSeconds)
	assert.InDelta(t, 550, bulk.MaterialCost, 1e-9)
	assert.Equal(t, []string{"bulk"}, bulk.Flags)
	assert.Equal(t, []int64{1}, bulk.AppliedRules)
}

func TestCalculateItem_RuleBelowZero(t *testing.T) {
	comp := Component{ID: 1, BaseTimeMinutes: 10, BaseMaterialCost: 20, ComplexityFactor: 1}
	variants := []Variant{{ID: 10, ComponentID: 1, TimeMultiplier: 1, IsDefault: true}}
	always := Condition{Kind: ConditionAlways}

	t.Run("reduction within bounds", func(t *testing.T) {
		rules := []Rule{{ID: 7, ComponentID: 1, Condition: always, Effects: []Effect{Add(FieldTime, -300), Add(FieldMaterial, -5)}}}
		got, err := CalculateItem(comp, variants, nil, rules, Item{ComponentID: 1, Quantity: 1}, neutralContext(t), baseSettings())
		require.NoError(t, err)
		assert.InDelta(t, 300, got.TimeSeconds.Direct, 1e-9)
		assert.InDelta(t, 15, got.MaterialNet, 1e-9)
	})

	tests := map[string]struct {
		effect Effect
		field  string
	}{
		"time":     {Add(FieldTime, -601), "time"},
		"material": {Add(FieldMaterial, -20.5), "material"},
	}
	for name, tt := range tests {
		t.Run(name, func(t *testing.T) {
			rules := []Rule{{ID: 7, ComponentID: 1, Condition: always, Effects: []Effect{tt.effect}}}
			got, err := CalculateItem(comp, variants, nil, rules, Item{ComponentID: 1, Quantity: 1}, neutralContext(t), baseSettings())
			require.ErrorIs(t, err, ErrDataIntegrity)
			assert.Equal(t, CalculatedItem{}, got)

			e, _ := AsError(err)
			assert.Equal(t, "rule", e.Entity)
			assert.Equal(t, "7", e.ID)
			assert.Equal(t, tt.field, e.Field)
		})
	}
}

func TestCalculateItem_ContextConditions(t *testing.T) {
	comp := Component{ID: 1, BaseTimeMinutes: 10, ComplexityFactor: 1}
	variants := []Variant{{ID: 10, ComponentID: 1, TimeMultiplier: 1}}
	rules := []Rule{
		{ID: 1, ComponentID: 1, Condition: Condition{Kind: ConditionBuildingType, Text: "farm"}, Effects: []Effect{Flag("farm")}},
		{ID: 2, ComponentID: 1, Condition: Condition{Kind: ConditionLaborType, Text: "master"}, Effects: []Effect{Flag("master")}},
		{ID: 3, ComponentID: 1, Condition: Condition{Kind: ConditionVariant, Number: 10}, Effects: []Effect{Flag("variant")}},
		{ID: 4, ComponentID: 1, Condition: Condition{Kind: ConditionQuantityBelow, Number: 2}, Effects: []Effect{Flag("single")}},
		{ID: 5, ComponentID: 1, Condition: Condition{Kind: ConditionQuantityAbove, Number: 1}, Effects: []Effect{Flag("many")}},
	}
	profile := &BuildingProfile{ID: 3, BuildingType: "farm", TimeMultiplier: 1, AccessibilityMultiplier: 1}
	fc, err := ResolveContext(profile, nil, LaborMaster, TimeNormal)
	require.NoError(t, err)

	got, err := CalculateItem(comp, variants, nil, rules, Item{ComponentID: 1, Quantity: 1}, fc, baseSettings())
	require.NoError(t, err)

	assert.Equal(t, []string{"farm", "master", "variant", "single"}, got.Flags)
}

func TestCalculateItem_ContextAndOverrides(t *testing.T) {
	comp, variants := socket()
	profile := &BuildingProfile{ID: 1, BuildingType: "villa", TimeMultiplier: 1.5, AccessibilityMultiplier: 2}
	factors := []GlobalFactor{{ID: 1, Multiplier: 1.1, Active: true}, {ID: 2, Multiplier: 5, Active: false}}
	fc, err := ResolveContext(profile, factors, LaborMaster, TimeEvening)
	require.NoError(t, err)

	item := Item{
		ComponentID: 1,
		Quantity:    1,
		Overrides:   ItemOverrides{UnitSalePrice: ptr(650.0), TimeMultiplier: ptr(0.5)},
	}
	got, err := CalculateItem(comp, variants, nil, nil, item, fc, baseSettings())
	require.NoError(t, err)

	assert.InDelta(t, 3600*1.1*1.5*2*0.5, got.UnitTimeSeconds, 1e-9)
	assert.InDelta(t, got.TimeSeconds.Labor/3600*450*1.25*1.25, got.LaborCost, 1e-9)
	assert.Equal(t, 650.0, got.UnitSalePrice)
}

func TestCalculateItem_IndirectAndPersonalTime(t *testing.T) {
	comp, variants := socket()
	s := baseSettings()
	s.IndirectTimePercentage = 10
	s.PersonalTimePercentage = 5

	got, err := CalculateItem(comp, variants, nil, nil, Item{ComponentID: 1, Quantity: 1}, neutralContext(t), s)
	require.NoError(t, err)

	assert.Equal(t, 3600.0, got.TimeSeconds.Direct)
	assert.InDelta(t, 360, got.TimeSeconds.Indirect, 1e-9)
	assert.InDelta(t, 198, got.TimeSeconds.Personal, 1e-9)
	assert.InDelta(t, 4158, got.TimeSeconds.Labor, 1e-9)
}

func TestCalculateItem_VariantResolution(t *testing.T) {
	comp, variants := socket()
	foreign := Variant{ID: 99, ComponentID: 2, Name: "Other", TimeMultiplier: 1}

	tests := []struct {
		name         string
		variants     []Variant
		explicit     *int64
		wantID       int64
		wantFallback bool
	}{
		{name: "explicit", variants: variants, explicit: ptr(int64(11)), wantID: 11},
		{name: "default", variants: variants, wantID: 10},
		{name: "first by sort order", variants: []Variant{
			{ID: 21, ComponentID: 1, TimeMultiplier: 1, SortOrder: 5},
			{ID: 22, ComponentID: 1, TimeMultiplier: 1, SortOrder: 2},
		}, wantID: 22},
		{name: "other component falls back", variants: append(append([]Variant{}, variants...), foreign), explicit: ptr(int64(99)), wantID: 10, wantFallback: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := CalculateItem(comp, tt.variants, nil, nil, Item{ComponentID: 1, VariantID: tt.explicit, Quantity: 1}, neutralContext(t), baseSettings())
			require.NoError(t, err)
			assert.Equal(t, tt.wantID, got.VariantID)
			assert.Equal(t, tt.wantFallback, got.VariantFallback)
		})
	}
}

func TestCalculateItem_UsesVariantSalePrice(t *testing.T) {
	comp, variants := socket()

	got, err := CalculateItem(comp, variants, nil, nil, Item{ComponentID: 1, VariantID: ptr(int64(11)), Quantity: 2}, neutralContext(t), baseSettings())
	require.NoError(t, err)

	assert.Equal(t, 800.0, got.UnitSalePrice)
	assert.Equal(t, 1600.0, got.TotalSale)
	assert.InDelta(t, (60*1.5+10)*60, got.UnitTimeSeconds, 1e-9)
}

func TestCalculateItem_Errors(t *testing.T) {
	comp, variants := socket()

	tests := []struct {
		name     string
		comp     Component
		variants []Variant
		item     Item
		kind     error
	}{
		{name: "zero quantity", comp: comp, variants: variants, item: Item{ComponentID: 1, Quantity: 0}, kind: ErrValidation},
		{name: "negative quantity", comp: comp, variants: variants, item: Item{ComponentID: 1, Quantity: -1}, kind: ErrValidation},
		{name: "negative sale override", comp: comp, variants: variants, item: Item{ComponentID: 1, Quantity: 1, Overrides: ItemOverrides{UnitSalePrice: ptr(-1.0)}}, kind: ErrValidation},
		{name: "unknown variant", comp: comp, variants: variants, item: Item{ComponentID: 1, VariantID: ptr(int64(404)), Quantity: 1}, kind: ErrNotFound},
		{name: "component mismatch", comp: comp, variants: variants, item: Item{ComponentID: 7, Quantity: 1}, kind: ErrNotFound},
		{name: "no variants", comp: comp, variants: nil, item: Item{ComponentID: 1, Quantity: 1}, kind: ErrDataIntegrity},
		{name: "non-finite time", comp: Component{ID: 1, BaseTimeMinutes: math.NaN(), ComplexityFactor: 1}, variants: variants, item: Item{ComponentID: 1, Quantity: 1}, kind: ErrComputation},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := CalculateItem(tt.comp, tt.variants, nil, nil, tt.item, neutralContext(t), baseSettings())
			require.ErrorIs(t, err, tt.kind)
			assert.Equal(t, CalculatedItem{}, got)
		})
	}
}

func TestCalculateItem_ComputationErrorNamesField(t *testing.T) {
	comp, variants := socket()
	comp.BaseTimeMinutes = math.NaN()

	_, err := CalculateItem(comp, variants, nil, nil, Item{ComponentID: 1, Quantity: 1}, neutralContext(t), baseSettings())

	e, ok := AsError(err)
	require.True(t, ok)
	assert.Equal(t, "unit_time_seconds", e.Field)
	assert.Equal(t, "1", e.ID)
}

func TestCalculateItem_Deterministic(t *testing.T) {
	comp, variants := socket()
	materials := []VariantMaterial{{ID: 1, VariantID: 10, Quantity: 2.5, UnitCostPrice: 13.7, WastePercent: 7}}
	rules := []Rule{{ID: 1, ComponentID: 1, Condition: Condition{Kind: ConditionAlways}, Effects: []Effect{Multiply(FieldTime, 1.13), Add(FieldMaterial, 3.3)}}}
	item := Item{ComponentID: 1, Quantity: 3.3}
	fc := neutralContext(t)

	first, err := CalculateItem(comp, variants, materials, rules, item, fc, baseSettings())
	require.NoError(t, err)
	for i := 0; i < 20; i++ {
		again, err := CalculateItem(comp, variants, materials, rules, item, fc, baseSettings())
		require.NoError(t, err)
		require.Equal(t, first, again)
	}
}

func TestCalculateItem_QuantityMonotonic(t *testing.T) {
	comp, variants := socket()
	materials := []VariantMaterial{{ID: 1, VariantID: 10, Quantity: 1, UnitCostPrice: 20, WastePercent: 5}}
	fc := neutralContext(t)

	prev, err := CalculateItem(comp, variants, materials, nil, Item{ComponentID: 1, Quantity: 1}, fc, baseSettings())
	require.NoError(t, err)
	for _, q := range []float64{1.5, 2, 7, 40} {
		next, err := CalculateItem(comp, variants, materials, nil, Item{ComponentID: 1, Quantity: q}, fc, baseSettings())
		require.NoError(t, err)
		assert.Greater(t, next.TotalCost, prev.TotalCost)
		assert.Greater(t, next.TotalSale, prev.TotalSale)
		prev = next
	}
}
