package snapshot

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/Simplici0/kalkia/internal/db"
	"github.com/Simplici0/kalkia/internal/pricing"
)

// Snapshot is a persisted calculation: the inputs it was computed from and
// the engine output. Snapshots are never updated; a revision is a new
// snapshot whose ParentID points at the original.
type Snapshot struct {
	ID          string              `json:"id"`
	ParentID    string              `json:"parent_id,omitempty"`
	Title       string              `json:"title"`
	Notes       string              `json:"notes"`
	Currency    string              `json:"currency"`
	ProfileID   *int64              `json:"profile_id,omitempty"`
	Settings    pricing.Settings    `json:"settings"`
	Requests    []pricing.Item      `json:"requests"`
	Calculation pricing.Calculation `json:"calculation"`
	CreatedAt   time.Time           `json:"created_at"`
}

// Summary is the listing view of a snapshot.
type Summary struct {
	ID           string         `json:"id"`
	ParentID     string         `json:"parent_id,omitempty"`
	Title        string         `json:"title"`
	Notes        string         `json:"notes"`
	Currency     string         `json:"currency"`
	FinalAmount  float64        `json:"final_amount"`
	DBPercentage float64        `json:"db_percentage"`
	Status       pricing.Status `json:"status"`
	CreatedAt    time.Time      `json:"created_at"`
}

// createdLayout has a fixed-width fraction so stored timestamps sort as text.
const createdLayout = "2006-01-02T15:04:05.000000000Z07:00"

type Store struct {
	db  *sql.DB
	now func() time.Time
}

func NewStore(db *sql.DB) *Store {
	return &Store{db: db, now: time.Now}
}

// Save inserts snap and its items in one transaction. It assigns ID and
// CreatedAt.
func (s *Store) Save(ctx context.Context, snap *Snapshot) error {
	if len(snap.Requests) != len(snap.Calculation.Items) {
		return fmt.Errorf("snapshot has %d requests but %d calculated items", len(snap.Requests), len(snap.Calculation.Items))
	}

	settingsJSON, err := json.Marshal(snap.Settings)
	if err != nil {
		return fmt.Errorf("encode settings: %w", err)
	}
	contextJSON, err := json.Marshal(snap.Calculation.Context)
	if err != nil {
		return fmt.Errorf("encode factor context: %w", err)
	}
	resultJSON, err := json.Marshal(snap.Calculation.Result)
	if err != nil {
		return fmt.Errorf("encode result: %w", err)
	}
	classificationJSON, err := json.Marshal(snap.Calculation.Classification)
	if err != nil {
		return fmt.Errorf("encode classification: %w", err)
	}

	id := uuid.New().String()
	createdAt := s.now().UTC()

	var parent any
	if snap.ParentID != "" {
		parent = snap.ParentID
	}

	err = db.WithTx(ctx, s.db, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO calculations (
				id, parent_id, title, notes, currency, profile_id,
				settings_json, context_json, result_json, classification_json,
				final_amount, db_percentage, status, created_at
			) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		`,
			id, parent, snap.Title, snap.Notes, snap.Currency, snap.ProfileID,
			string(settingsJSON), string(contextJSON), string(resultJSON), string(classificationJSON),
			snap.Calculation.Result.FinalAmount, snap.Calculation.Result.DBPercentage,
			string(snap.Calculation.Classification.Status), createdAt.Format(createdLayout),
		); err != nil {
			return fmt.Errorf("insert calculation: %w", err)
		}

		for i, item := range snap.Calculation.Items {
			requestJSON, err := json.Marshal(snap.Requests[i])
			if err != nil {
				return fmt.Errorf("encode item request %d: %w", i, err)
			}
			itemJSON, err := json.Marshal(item)
			if err != nil {
				return fmt.Errorf("encode calculated item %d: %w", i, err)
			}
			if _, err := tx.ExecContext(ctx, `
				INSERT INTO calculation_items (calculation_id, position, request_json, item_json, total_cost, total_sale)
				VALUES (?, ?, ?, ?, ?, ?)
			`, id, i, string(requestJSON), string(itemJSON), item.TotalCost, item.TotalSale); err != nil {
				return fmt.Errorf("insert calculation item %d: %w", i, err)
			}
		}
		return nil
	})
	if err != nil {
		return err
	}

	snap.ID = id
	snap.CreatedAt = createdAt
	return nil
}

// Get loads a snapshot. Unknown or malformed ids match pricing.ErrNotFound.
func (s *Store) Get(ctx context.Context, id string) (*Snapshot, error) {
	if _, err := uuid.Parse(id); err != nil {
		return nil, notFound(id)
	}

	var (
		snap                                  Snapshot
		parentID                              sql.NullString
		profileID                             sql.NullInt64
		settingsJSON, contextJSON, resultJSON string
		classificationJSON, created           string
	)
	err := s.db.QueryRowContext(ctx, `
		SELECT id, parent_id, title, notes, currency, profile_id,
			settings_json, context_json, result_json, classification_json, created_at
		FROM calculations
		WHERE id = ?
	`, id).Scan(
		&snap.ID, &parentID, &snap.Title, &snap.Notes, &snap.Currency, &profileID,
		&settingsJSON, &contextJSON, &resultJSON, &classificationJSON, &created,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, notFound(id)
	}
	if err != nil {
		return nil, fmt.Errorf("query calculation %s: %w", id, err)
	}

	snap.ParentID = parentID.String
	if profileID.Valid {
		p := profileID.Int64
		snap.ProfileID = &p
	}
	if snap.CreatedAt, err = time.Parse(time.RFC3339Nano, created); err != nil {
		return nil, fmt.Errorf("parse calculation %s created_at: %w", id, err)
	}

	for _, part := range []struct {
		name string
		raw  string
		dst  any
	}{
		{"settings", settingsJSON, &snap.Settings},
		{"context", contextJSON, &snap.Calculation.Context},
		{"result", resultJSON, &snap.Calculation.Result},
		{"classification", classificationJSON, &snap.Calculation.Classification},
	} {
		if err := json.Unmarshal([]byte(part.raw), part.dst); err != nil {
			return nil, fmt.Errorf("decode calculation %s %s: %w", id, part.name, err)
		}
	}

	if err := s.loadItems(ctx, &snap); err != nil {
		return nil, err
	}
	return &snap, nil
}

func (s *Store) loadItems(ctx context.Context, snap *Snapshot) error {
	rows, err := s.db.QueryContext(ctx, `
		SELECT request_json, item_json
		FROM calculation_items
		WHERE calculation_id = ?
		ORDER BY position
	`, snap.ID)
	if err != nil {
		return fmt.Errorf("query calculation items: %w", err)
	}
	defer rows.Close()

	snap.Requests = make([]pricing.Item, 0)
	snap.Calculation.Items = make([]pricing.CalculatedItem, 0)
	for rows.Next() {
		var requestJSON, itemJSON string
		if err := rows.Scan(&requestJSON, &itemJSON); err != nil {
			return fmt.Errorf("scan calculation item: %w", err)
		}
		var (
			req  pricing.Item
			item pricing.CalculatedItem
		)
		if err := json.Unmarshal([]byte(requestJSON), &req); err != nil {
			return fmt.Errorf("decode item request: %w", err)
		}
		if err := json.Unmarshal([]byte(itemJSON), &item); err != nil {
			return fmt.Errorf("decode calculated item: %w", err)
		}
		snap.Requests = append(snap.Requests, req)
		snap.Calculation.Items = append(snap.Calculation.Items, item)
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("iterate calculation items: %w", err)
	}
	return nil
}

// List returns snapshots newest first. A non-empty query filters on title and
// notes. limit <= 0 means no limit.
func (s *Store) List(ctx context.Context, query string, limit int) ([]Summary, error) {
	if limit <= 0 {
		limit = -1
	}
	search := "%" + query + "%"
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, COALESCE(parent_id, ''), title, notes, currency, final_amount, db_percentage, status, created_at
		FROM calculations
		WHERE (? = '' OR title LIKE ? OR notes LIKE ?)
		ORDER BY created_at DESC, rowid DESC
		LIMIT ?
	`, query, search, search, limit)
	if err != nil {
		return nil, fmt.Errorf("query calculations: %w", err)
	}
	defer rows.Close()

	summaries := make([]Summary, 0)
	for rows.Next() {
		var (
			sum     Summary
			created string
		)
		if err := rows.Scan(&sum.ID, &sum.ParentID, &sum.Title, &sum.Notes, &sum.Currency, &sum.FinalAmount, &sum.DBPercentage, &sum.Status, &created); err != nil {
			return nil, fmt.Errorf("scan calculation: %w", err)
		}
		if sum.CreatedAt, err = time.Parse(time.RFC3339Nano, created); err != nil {
			return nil, fmt.Errorf("parse calculation created_at: %w", err)
		}
		summaries = append(summaries, sum)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate calculations: %w", err)
	}
	return summaries, nil
}

func notFound(id string) error {
	return &pricing.Error{Kind: pricing.ErrNotFound, Entity: "calculation", ID: id, Reason: "no such calculation"}
}
