package main

import (
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Simplici0/kalkia/internal/pricing"
)

func TestParseCalculationInput_Success(t *testing.T) {
	body := `{
		"title": "  Carport  ",
		"notes": "EV charger prep",
		"profile_id": 2,
		"items": [
			{"component_id": 1, "quantity": 3, "overrides": {"unit_sale_price": 700}},
			{"component_id": 4, "variant_id": 8, "quantity": 1, "note": "hybrid"}
		],
		"settings": {"discount_percentage": 5, "time_adjustment": "evening"}
	}`
	req := httptest.NewRequest(http.MethodPost, "/calculations", strings.NewReader(body))

	in, err := parseCalculationInput(req)
	require.NoError(t, err)

	assert.Equal(t, "Carport", in.Title)
	require.NotNil(t, in.ProfileID)
	assert.Equal(t, int64(2), *in.ProfileID)
	require.Len(t, in.Items, 2)
	require.NotNil(t, in.Items[0].Overrides.UnitSalePrice)
	assert.Equal(t, 700.0, *in.Items[0].Overrides.UnitSalePrice)
	require.NotNil(t, in.Items[1].VariantID)
	assert.Equal(t, int64(8), *in.Items[1].VariantID)
	assert.Equal(t, "hybrid", in.Items[1].Note)
	require.NotNil(t, in.Settings.TimeAdjustment)
	assert.Equal(t, "evening", *in.Settings.TimeAdjustment)
	assert.False(t, in.DryRun)
}

func TestParseCalculationInput_DryRunQueryWins(t *testing.T) {
	req := httptest.NewRequest(http.MethodPost, "/calculations?dry_run=false", strings.NewReader(`{"dry_run":true,"items":[]}`))
	in, err := parseCalculationInput(req)
	require.NoError(t, err)
	assert.False(t, in.DryRun)

	req = httptest.NewRequest(http.MethodPost, "/calculations?dry_run=maybe", strings.NewReader(`{"items":[]}`))
	_, err = parseCalculationInput(req)
	require.ErrorIs(t, err, errBadRequest)
}

func TestParseCalculationInput_Invalid(t *testing.T) {
	tooMany := `{"items":[` + strings.TrimSuffix(strings.Repeat(`{"component_id":1,"quantity":1},`, maxItems+1), ",") + `]}`

	tests := map[string]string{
		"empty body":      ``,
		"not json":        `quantity=2`,
		"unknown field":   `{"items":[],"colour":"red"}`,
		"wrong type":      `{"items":[{"component_id":"one","quantity":1}]}`,
		"trailing object": `{"items":[]}{"items":[]}`,
		"too many items":  tooMany,
	}
	for name, body := range tests {
		t.Run(name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPost, "/calculations", strings.NewReader(body))
			_, err := parseCalculationInput(req)
			require.ErrorIs(t, err, errBadRequest)
		})
	}
}

func TestParseLimit(t *testing.T) {
	n, err := parseLimit("")
	require.NoError(t, err)
	assert.Equal(t, maxListLimit, n)

	n, err = parseLimit(" 25 ")
	require.NoError(t, err)
	assert.Equal(t, 25, n)

	n, err = parseLimit("100000")
	require.NoError(t, err)
	assert.Equal(t, maxListLimit, n)

	for _, raw := range []string{"0", "-3", "ten"} {
		_, err := parseLimit(raw)
		require.ErrorIs(t, err, errBadRequest, raw)
	}
}

func TestStatusFor(t *testing.T) {
	tests := []struct {
		err  error
		want int
	}{
		{fmt.Errorf("%w: bad", errBadRequest), http.StatusBadRequest},
		{&pricing.Error{Kind: pricing.ErrValidation}, http.StatusBadRequest},
		{&pricing.Error{Kind: pricing.ErrConfiguration}, http.StatusBadRequest},
		{&pricing.Error{Kind: pricing.ErrNotFound}, http.StatusNotFound},
		{fmt.Errorf("load catalog: %w", &pricing.Error{Kind: pricing.ErrDataIntegrity}), http.StatusUnprocessableEntity},
		{&pricing.Error{Kind: pricing.ErrComputation}, http.StatusUnprocessableEntity},
		{errors.New("disk full"), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, statusFor(tt.err), tt.err.Error())
	}
}
