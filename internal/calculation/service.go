package calculation

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/Simplici0/kalkia/internal/pricing"
	"github.com/Simplici0/kalkia/internal/snapshot"
)

// CatalogSource loads the catalog data a calculation needs.
type CatalogSource interface {
	LoadSlice(ctx context.Context, componentIDs, variantIDs []int64) (*pricing.Catalog, error)
	Profile(ctx context.Context, id int64) (*pricing.BuildingProfile, error)
	ActiveGlobalFactors(ctx context.Context) ([]pricing.GlobalFactor, error)
}

// SnapshotStore persists calculations.
type SnapshotStore interface {
	Save(ctx context.Context, snap *snapshot.Snapshot) error
	Get(ctx context.Context, id string) (*snapshot.Snapshot, error)
	List(ctx context.Context, query string, limit int) ([]snapshot.Summary, error)
}

// Input is one calculation request from a surface.
type Input struct {
	Title     string            `json:"title"`
	Notes     string            `json:"notes"`
	ProfileID *int64            `json:"profile_id,omitempty"`
	Items     []pricing.Item    `json:"items"`
	Settings  SettingsOverrides `json:"settings"`
	DryRun    bool              `json:"dry_run,omitempty"`
}

// Revision changes an existing calculation. Nil fields keep the parent's
// value; Settings overrides apply on top of the parent's settings.
type Revision struct {
	Title     *string           `json:"title,omitempty"`
	Notes     *string           `json:"notes,omitempty"`
	ProfileID *int64            `json:"profile_id,omitempty"`
	Items     []pricing.Item    `json:"items,omitempty"`
	Settings  SettingsOverrides `json:"settings"`
}

// Outcome is a computed calculation. Snapshot.ID is empty for dry runs.
type Outcome struct {
	Snapshot *snapshot.Snapshot `json:"snapshot"`
	Saved    bool               `json:"saved"`
}

type Service struct {
	catalog  CatalogSource
	store    SnapshotStore
	engine   *pricing.Engine
	defaults pricing.Settings
	currency string
	log      zerolog.Logger
}

func NewService(catalog CatalogSource, store SnapshotStore, engine *pricing.Engine, defaults pricing.Settings, currency string, log zerolog.Logger) *Service {
	return &Service{
		catalog:  catalog,
		store:    store,
		engine:   engine,
		defaults: defaults,
		currency: currency,
		log:      log,
	}
}

// Calculate prices in against the configured defaults and stores the result
// unless in.DryRun is set.
func (s *Service) Calculate(ctx context.Context, in Input) (*Outcome, error) {
	settings, err := in.Settings.Apply(s.defaults)
	if err != nil {
		return nil, err
	}

	snap := &snapshot.Snapshot{
		Title:     in.Title,
		Notes:     in.Notes,
		Currency:  s.currency,
		ProfileID: in.ProfileID,
		Settings:  settings,
		Requests:  in.Items,
	}
	return s.run(ctx, snap, in.DryRun)
}

// Get loads a stored calculation and checks that its totals still replay
// from the stored settings.
func (s *Service) Get(ctx context.Context, id string) (*snapshot.Snapshot, error) {
	snap, err := s.store.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := pricing.Replay(snap.Calculation.Items, snap.Calculation.Result, snap.Settings); err != nil {
		s.log.Error().Err(err).Str("calculation_id", id).Msg("stored calculation does not replay")
		return nil, err
	}
	return snap, nil
}

// Revise recalculates a stored calculation with changes and stores the result
// as a new calculation pointing at its parent. The parent is never modified.
func (s *Service) Revise(ctx context.Context, parentID string, rev Revision) (*Outcome, error) {
	parent, err := s.Get(ctx, parentID)
	if err != nil {
		return nil, err
	}

	settings, err := rev.Settings.Apply(parent.Settings)
	if err != nil {
		return nil, err
	}

	snap := &snapshot.Snapshot{
		ParentID:  parent.ID,
		Title:     parent.Title,
		Notes:     parent.Notes,
		Currency:  parent.Currency,
		ProfileID: parent.ProfileID,
		Settings:  settings,
		Requests:  parent.Requests,
	}
	if rev.Title != nil {
		snap.Title = *rev.Title
	}
	if rev.Notes != nil {
		snap.Notes = *rev.Notes
	}
	if rev.ProfileID != nil {
		snap.ProfileID = rev.ProfileID
	}
	if rev.Items != nil {
		snap.Requests = rev.Items
	}

	return s.run(ctx, snap, false)
}

func (s *Service) List(ctx context.Context, query string, limit int) ([]snapshot.Summary, error) {
	return s.store.List(ctx, query, limit)
}

func (s *Service) run(ctx context.Context, snap *snapshot.Snapshot, dryRun bool) (*Outcome, error) {
	started := time.Now()

	req, err := s.request(ctx, snap)
	if err != nil {
		return nil, err
	}

	calc, err := s.engine.Calculate(req)
	if err != nil {
		s.log.Warn().Err(err).Int("items", len(snap.Requests)).Msg("calculation rejected")
		return nil, err
	}
	snap.Calculation = *calc

	if dryRun {
		s.log.Info().
			Int("items", len(calc.Items)).
			Float64("final_amount", calc.Result.FinalAmount).
			Str("status", string(calc.Classification.Status)).
			Dur("elapsed", time.Since(started)).
			Msg("dry run calculated")
		return &Outcome{Snapshot: snap}, nil
	}

	if err := s.store.Save(ctx, snap); err != nil {
		return nil, fmt.Errorf("save calculation: %w", err)
	}

	ev := s.log.Info().
		Str("calculation_id", snap.ID).
		Int("items", len(calc.Items)).
		Float64("final_amount", calc.Result.FinalAmount).
		Float64("db_percentage", calc.Result.DBPercentage).
		Str("status", string(calc.Classification.Status)).
		Dur("elapsed", time.Since(started))
	if snap.ParentID != "" {
		ev = ev.Str("parent_id", snap.ParentID)
	}
	ev.Msg("calculation stored")

	return &Outcome{Snapshot: snap, Saved: true}, nil
}

func (s *Service) request(ctx context.Context, snap *snapshot.Snapshot) (pricing.Request, error) {
	componentIDs := make([]int64, 0, len(snap.Requests))
	var variantIDs []int64
	for _, item := range snap.Requests {
		componentIDs = append(componentIDs, item.ComponentID)
		if item.VariantID != nil {
			variantIDs = append(variantIDs, *item.VariantID)
		}
	}

	c, err := s.catalog.LoadSlice(ctx, componentIDs, variantIDs)
	if err != nil {
		return pricing.Request{}, fmt.Errorf("load catalog: %w", err)
	}

	var profile *pricing.BuildingProfile
	if snap.ProfileID != nil {
		if profile, err = s.catalog.Profile(ctx, *snap.ProfileID); err != nil {
			return pricing.Request{}, err
		}
	}

	factors, err := s.catalog.ActiveGlobalFactors(ctx)
	if err != nil {
		return pricing.Request{}, fmt.Errorf("load global factors: %w", err)
	}

	return pricing.Request{
		Catalog:       c,
		Profile:       profile,
		GlobalFactors: factors,
		Items:         snap.Requests,
		Settings:      snap.Settings,
	}, nil
}
