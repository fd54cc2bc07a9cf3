package migrations

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Simplici0/kalkia/internal/db"
)

func TestUpIsIdempotent(t *testing.T) {
	ctx := context.Background()
	database, err := db.Open(filepath.Join(t.TempDir(), "migrate.db"))
	require.NoError(t, err)
	defer database.Close()

	applied, err := Up(ctx, database)
	require.NoError(t, err)
	assert.Equal(t, 2, applied)

	applied, err = Up(ctx, database)
	require.NoError(t, err)
	assert.Zero(t, applied)

	version, err := Version(ctx, database)
	require.NoError(t, err)
	assert.Equal(t, int64(2), version)
}

func TestCalculationsRejectUpdates(t *testing.T) {
	ctx := context.Background()
	database, err := db.Open(filepath.Join(t.TempDir(), "immutable.db"))
	require.NoError(t, err)
	defer database.Close()

	_, err = Up(ctx, database)
	require.NoError(t, err)

	_, err = database.Exec(`
		INSERT INTO calculations (
			id, currency, settings_json, context_json, result_json, classification_json,
			final_amount, db_percentage, status, created_at
		) VALUES ('c1', 'DKK', '{}', '{}', '{}', '{}', 100, 20, 'healthy', CURRENT_TIMESTAMP)
	`)
	require.NoError(t, err)

	_, err = database.Exec(`
		INSERT INTO calculation_items (calculation_id, position, request_json, item_json, total_cost, total_sale)
		VALUES ('c1', 0, '{}', '{}', 80, 100)
	`)
	require.NoError(t, err)

	tests := map[string]string{
		"calculation": `UPDATE calculations SET final_amount = 1 WHERE id = 'c1'`,
		"item":        `UPDATE calculation_items SET total_cost = 1 WHERE calculation_id = 'c1' AND position = 0`,
	}
	for name, stmt := range tests {
		t.Run(name, func(t *testing.T) {
			_, err := database.Exec(stmt)
			require.Error(t, err)
			assert.Contains(t, err.Error(), "immutable")
		})
	}

	var cost float64
	require.NoError(t, database.QueryRow(`SELECT total_cost FROM calculation_items WHERE calculation_id = 'c1'`).Scan(&cost))
	assert.Equal(t, 80.0, cost)
}

func TestOnlyOneDefaultVariantPerComponent(t *testing.T) {
	ctx := context.Background()
	database, err := db.Open(filepath.Join(t.TempDir(), "variants.db"))
	require.NoError(t, err)
	defer database.Close()

	_, err = Up(ctx, database)
	require.NoError(t, err)

	_, err = database.Exec(`INSERT INTO components (id, code, name) VALUES (1, 'X', 'X')`)
	require.NoError(t, err)
	_, err = database.Exec(`INSERT INTO variants (component_id, name, is_default) VALUES (1, 'a', 1)`)
	require.NoError(t, err)
	_, err = database.Exec(`INSERT INTO variants (component_id, name, is_default) VALUES (1, 'b', 1)`)
	require.Error(t, err)
}
