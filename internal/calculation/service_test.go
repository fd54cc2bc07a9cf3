package calculation

import (
	"bytes"
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Simplici0/kalkia/internal/catalog"
	"github.com/Simplici0/kalkia/internal/db"
	"github.com/Simplici0/kalkia/internal/logger"
	"github.com/Simplici0/kalkia/internal/migrations"
	"github.com/Simplici0/kalkia/internal/pricing"
	"github.com/Simplici0/kalkia/internal/seed"
	"github.com/Simplici0/kalkia/internal/snapshot"
)

// Seeded ids on a fresh database.
const (
	socketID   = int64(1)
	lightID    = int64(2)
	pvPanelID  = int64(3)
	inverterID = int64(4)
	outdoorID  = int64(2)
	farmID     = int64(3)
)

func ptr[T any](v T) *T { return &v }

func defaultSettings() pricing.Settings {
	return pricing.Settings{
		HourlyRate:         450,
		MarginPercentage:   25,
		VATPercentage:      25,
		OverheadPercentage: 12,
		RiskPercentage:     2,
		LaborType:          pricing.LaborElectrician,
		TimeAdjustment:     pricing.TimeNormal,
	}
}

type fixture struct {
	svc   *Service
	store *snapshot.Store
	logs  *bytes.Buffer
}

func newFixture(t *testing.T) fixture {
	t.Helper()
	ctx := context.Background()

	database, err := db.Open(filepath.Join(t.TempDir(), "calculation.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = database.Close() })

	_, err = migrations.Up(ctx, database)
	require.NoError(t, err)
	_, err = seed.Run(ctx, database)
	require.NoError(t, err)

	logs := &bytes.Buffer{}
	store := snapshot.NewStore(database)
	svc := NewService(
		catalog.NewRepository(database),
		store,
		pricing.NewEngine(pricing.WithWorkers(2), pricing.WithContextCache(pricing.NewContextCache())),
		defaultSettings(),
		"DKK",
		logger.NewWithWriter(logs, "debug"),
	)
	return fixture{svc: svc, store: store, logs: logs}
}

func kitchenInput() Input {
	return Input{
		Title: "Køkken",
		Notes: "new sockets and lights",
		Items: []pricing.Item{
			{ComponentID: socketID, Quantity: 6},
			{ComponentID: lightID, Quantity: 3},
			{ComponentID: socketID, VariantID: ptr(outdoorID), Quantity: 1, Note: "terrace"},
		},
	}
}

func TestCalculateStoresSnapshot(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	out, err := f.svc.Calculate(ctx, kitchenInput())
	require.NoError(t, err)
	require.True(t, out.Saved)
	require.NotEmpty(t, out.Snapshot.ID)

	snap := out.Snapshot
	assert.Equal(t, "DKK", snap.Currency)
	require.Len(t, snap.Calculation.Items, 3)
	assert.Equal(t, "terrace", snap.Calculation.Items[2].Note)
	assert.Equal(t, 950.0, snap.Calculation.Items[2].UnitSalePrice)
	assert.Greater(t, snap.Calculation.Result.FinalAmount, snap.Calculation.Result.CostPrice)

	got, err := f.svc.Get(ctx, snap.ID)
	require.NoError(t, err)
	assert.Equal(t, snap.Calculation, got.Calculation)
	assert.Equal(t, snap.Requests, got.Requests)

	list, err := f.svc.List(ctx, "", 0)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, snap.ID, list[0].ID)

	assert.Contains(t, f.logs.String(), "calculation stored")
	assert.Contains(t, f.logs.String(), snap.ID)
}

func TestCalculateAppliesOverrides(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	in := kitchenInput()
	in.DryRun = true
	base, err := f.svc.Calculate(ctx, in)
	require.NoError(t, err)

	in.Settings = SettingsOverrides{
		DiscountPercentage: ptr(10.0),
		TimeAdjustment:     ptr("weekend"),
	}
	weekend, err := f.svc.Calculate(ctx, in)
	require.NoError(t, err)

	assert.Equal(t, 10.0, weekend.Snapshot.Settings.DiscountPercentage)
	assert.Equal(t, pricing.TimeWeekend, weekend.Snapshot.Settings.TimeAdjustment)
	assert.Equal(t, 25.0, weekend.Snapshot.Settings.MarginPercentage)
	assert.InDelta(t, 2*base.Snapshot.Calculation.Result.LaborCost, weekend.Snapshot.Calculation.Result.LaborCost, 1e-6)
}

func TestCalculateDryRunIsNotStored(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	in := kitchenInput()
	in.DryRun = true
	out, err := f.svc.Calculate(ctx, in)
	require.NoError(t, err)
	assert.False(t, out.Saved)
	assert.Empty(t, out.Snapshot.ID)
	assert.Positive(t, out.Snapshot.Calculation.Result.FinalAmount)

	list, err := f.svc.List(ctx, "", 0)
	require.NoError(t, err)
	assert.Empty(t, list)
}

func TestCalculateUsesProfileRules(t *testing.T) {
	f := newFixture(t)

	out, err := f.svc.Calculate(context.Background(), Input{
		Title:     "Staldtag",
		ProfileID: ptr(farmID),
		Items:     []pricing.Item{{ComponentID: pvPanelID, Quantity: 20}},
		DryRun:    true,
	})
	require.NoError(t, err)

	item := out.Snapshot.Calculation.Items[0]
	assert.Contains(t, item.Flags, "scaffolding")
	assert.Equal(t, "farm", out.Snapshot.Calculation.Context.BuildingType)
}

func TestCalculateErrors(t *testing.T) {
	tests := []struct {
		name string
		in   Input
		kind error
	}{
		{
			name: "unknown component",
			in:   Input{Items: []pricing.Item{{ComponentID: 404, Quantity: 1}}},
			kind: pricing.ErrNotFound,
		},
		{
			name: "unknown profile",
			in:   Input{ProfileID: ptr(int64(99)), Items: []pricing.Item{{ComponentID: socketID, Quantity: 1}}},
			kind: pricing.ErrNotFound,
		},
		{
			name: "unknown labor type",
			in:   Input{Items: []pricing.Item{{ComponentID: socketID, Quantity: 1}}, Settings: SettingsOverrides{LaborType: ptr("journeyman")}},
			kind: pricing.ErrConfiguration,
		},
		{
			name: "margin out of range",
			in:   Input{Items: []pricing.Item{{ComponentID: socketID, Quantity: 1}}, Settings: SettingsOverrides{MarginPercentage: ptr(100.0)}},
			kind: pricing.ErrValidation,
		},
		{
			name: "no items",
			in:   Input{Title: "empty"},
			kind: pricing.ErrValidation,
		},
		{
			name: "zero quantity",
			in:   Input{Items: []pricing.Item{{ComponentID: inverterID, Quantity: 0}}},
			kind: pricing.ErrValidation,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			ctx := context.Background()

			out, err := f.svc.Calculate(ctx, tt.in)
			require.ErrorIs(t, err, tt.kind)
			assert.Nil(t, out)

			list, err := f.svc.List(ctx, "", 0)
			require.NoError(t, err)
			assert.Empty(t, list)
		})
	}
}

func TestReviseCreatesChild(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	parent, err := f.svc.Calculate(ctx, kitchenInput())
	require.NoError(t, err)

	child, err := f.svc.Revise(ctx, parent.Snapshot.ID, Revision{
		Title:    ptr("Køkken v2"),
		Settings: SettingsOverrides{DiscountPercentage: ptr(5.0)},
	})
	require.NoError(t, err)

	assert.NotEqual(t, parent.Snapshot.ID, child.Snapshot.ID)
	assert.Equal(t, parent.Snapshot.ID, child.Snapshot.ParentID)
	assert.Equal(t, "Køkken v2", child.Snapshot.Title)
	assert.Equal(t, parent.Snapshot.Notes, child.Snapshot.Notes)
	assert.Equal(t, parent.Snapshot.Requests, child.Snapshot.Requests)
	assert.Less(t, child.Snapshot.Calculation.Result.FinalAmount, parent.Snapshot.Calculation.Result.FinalAmount)

	again, err := f.svc.Get(ctx, parent.Snapshot.ID)
	require.NoError(t, err)
	assert.Equal(t, parent.Snapshot.Calculation, again.Calculation)
	assert.Equal(t, "Køkken", again.Title)

	swapped, err := f.svc.Revise(ctx, parent.Snapshot.ID, Revision{
		Items: []pricing.Item{{ComponentID: inverterID, Quantity: 1}},
	})
	require.NoError(t, err)
	require.Len(t, swapped.Snapshot.Calculation.Items, 1)
	assert.Equal(t, "INVERTER", swapped.Snapshot.Calculation.Items[0].ComponentCode)

	list, err := f.svc.List(ctx, "", 0)
	require.NoError(t, err)
	assert.Len(t, list, 3)
}

func TestReviseUnknownParent(t *testing.T) {
	f := newFixture(t)

	_, err := f.svc.Revise(context.Background(), "1f1e2c55-6b0a-4c1e-9b1a-7d7e0f0a1b2c", Revision{})
	require.ErrorIs(t, err, pricing.ErrNotFound)
}

func TestGetRejectsSnapshotThatDoesNotReplay(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	in := kitchenInput()
	in.DryRun = true
	out, err := f.svc.Calculate(ctx, in)
	require.NoError(t, err)

	tampered := out.Snapshot
	tampered.Calculation.Result.FinalAmount += 100
	require.NoError(t, f.store.Save(ctx, tampered))

	_, err = f.svc.Get(ctx, tampered.ID)
	require.ErrorIs(t, err, pricing.ErrDataIntegrity)
	assert.Contains(t, f.logs.String(), "does not replay")
}

func TestGetRejectsSnapshotWithChangedItemCosts(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	in := kitchenInput()
	in.DryRun = true
	out, err := f.svc.Calculate(ctx, in)
	require.NoError(t, err)

	tampered := out.Snapshot
	tampered.Calculation.Items[0].LaborCost -= 100
	tampered.Calculation.Items[0].TotalCost -= 100
	tampered.Calculation.Result.LaborCost -= 100
	require.NoError(t, f.store.Save(ctx, tampered))

	_, err = f.svc.Get(ctx, tampered.ID)
	require.ErrorIs(t, err, pricing.ErrDataIntegrity)
}

func TestSettingsOverridesApply(t *testing.T) {
	base := defaultSettings()

	s, err := SettingsOverrides{}.Apply(base)
	require.NoError(t, err)
	assert.Equal(t, base, s)

	s, err = SettingsOverrides{
		HourlyRate: ptr(520.0),
		OtherCosts: ptr(350.0),
		LaborType:  ptr("master"),
	}.Apply(base)
	require.NoError(t, err)
	assert.Equal(t, 520.0, s.HourlyRate)
	assert.Equal(t, 350.0, s.OtherCosts)
	assert.Equal(t, pricing.LaborMaster, s.LaborType)
	assert.Equal(t, base.VATPercentage, s.VATPercentage)

	_, err = SettingsOverrides{TimeAdjustment: ptr("night")}.Apply(base)
	require.ErrorIs(t, err, pricing.ErrConfiguration)
}
