package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/Simplici0/kalkia/internal/calculation"
	"github.com/Simplici0/kalkia/internal/offer"
	"github.com/Simplici0/kalkia/internal/pricing"
)

const (
	maxBodyBytes = 1 << 20
	maxItems     = 500
	maxListLimit = 200
	xlsxMIME     = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
)

var errBadRequest = errors.New("bad request")

func (s *server) handleCalculationsList(w http.ResponseWriter, r *http.Request) {
	query := strings.TrimSpace(r.URL.Query().Get("q"))
	limit, err := parseLimit(r.URL.Query().Get("limit"))
	if err != nil {
		s.writeError(w, err)
		return
	}

	summaries, err := s.calc.List(r.Context(), query, limit)
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, summaries)
}

func (s *server) handleCalculationCreate(w http.ResponseWriter, r *http.Request) {
	in, err := parseCalculationInput(r)
	if err != nil {
		s.writeError(w, err)
		return
	}

	out, err := s.calc.Calculate(r.Context(), in)
	if err != nil {
		s.writeError(w, err)
		return
	}

	status := http.StatusCreated
	if !out.Saved {
		status = http.StatusOK
	}
	writeJSON(w, status, out)
}

func (s *server) handleCalculationGet(w http.ResponseWriter, r *http.Request) {
	snap, err := s.calc.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, snap)
}

func (s *server) handleCalculationText(w http.ResponseWriter, r *http.Request) {
	snap, err := s.calc.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.writeError(w, err)
		return
	}

	o := offer.Assemble(snap.Calculation, offer.MetaFromSnapshot(snap))
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	_, _ = io.WriteString(w, offer.Text(o))
}

func (s *server) handleCalculationXLSX(w http.ResponseWriter, r *http.Request) {
	snap, err := s.calc.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.writeError(w, err)
		return
	}

	data, err := offer.WriteXLSX(offer.Assemble(snap.Calculation, offer.MetaFromSnapshot(snap)))
	if err != nil {
		s.writeError(w, err)
		return
	}

	w.Header().Set("Content-Type", xlsxMIME)
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=\"offer-%s.xlsx\"", snap.ID))
	_, _ = w.Write(data)
}

func (s *server) handleCalculationRevise(w http.ResponseWriter, r *http.Request) {
	var rev calculation.Revision
	if err := decodeJSON(r, &rev); err != nil {
		s.writeError(w, err)
		return
	}
	if len(rev.Items) > maxItems {
		s.writeError(w, fmt.Errorf("%w: at most %d items", errBadRequest, maxItems))
		return
	}

	out, err := s.calc.Revise(r.Context(), chi.URLParam(r, "id"), rev)
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, out)
}

// parseCalculationInput decodes a calculation request body. The dry_run query
// parameter, when present, wins over the body field.
func parseCalculationInput(r *http.Request) (calculation.Input, error) {
	var in calculation.Input
	if err := decodeJSON(r, &in); err != nil {
		return calculation.Input{}, err
	}

	in.Title = strings.TrimSpace(in.Title)
	in.Notes = strings.TrimSpace(in.Notes)
	if len(in.Items) > maxItems {
		return calculation.Input{}, fmt.Errorf("%w: at most %d items", errBadRequest, maxItems)
	}

	if raw := r.URL.Query().Get("dry_run"); raw != "" {
		dryRun, err := strconv.ParseBool(raw)
		if err != nil {
			return calculation.Input{}, fmt.Errorf("%w: dry_run must be a boolean", errBadRequest)
		}
		in.DryRun = dryRun
	}
	return in, nil
}

func decodeJSON(r *http.Request, v any) error {
	dec := json.NewDecoder(http.MaxBytesReader(nil, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return fmt.Errorf("%w: invalid JSON body: %v", errBadRequest, err)
	}
	if dec.More() {
		return fmt.Errorf("%w: body must contain a single JSON object", errBadRequest)
	}
	return nil
}

func parseLimit(raw string) (int, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return maxListLimit, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n <= 0 {
		return 0, fmt.Errorf("%w: limit must be a positive integer", errBadRequest)
	}
	if n > maxListLimit {
		n = maxListLimit
	}
	return n, nil
}

type errorResponse struct {
	Error  string `json:"error"`
	Kind   string `json:"kind,omitempty"`
	Entity string `json:"entity,omitempty"`
	ID     string `json:"id,omitempty"`
	Field  string `json:"field,omitempty"`
}

// statusFor maps an error to its HTTP status. Unknown errors are 500.
func statusFor(err error) int {
	switch {
	case errors.Is(err, errBadRequest),
		errors.Is(err, pricing.ErrValidation),
		errors.Is(err, pricing.ErrConfiguration):
		return http.StatusBadRequest
	case errors.Is(err, pricing.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, pricing.ErrDataIntegrity),
		errors.Is(err, pricing.ErrComputation):
		return http.StatusUnprocessableEntity
	default:
		return http.StatusInternalServerError
	}
}

func (s *server) writeError(w http.ResponseWriter, err error) {
	status := statusFor(err)
	if status == http.StatusInternalServerError {
		s.log.Error().Err(err).Msg("request failed")
		writeJSON(w, status, errorResponse{Error: "internal error"})
		return
	}

	resp := errorResponse{Error: err.Error()}
	if e, ok := pricing.AsError(err); ok {
		resp.Kind = e.Kind.Error()
		resp.Entity = e.Entity
		resp.ID = e.ID
		resp.Field = e.Field
	}
	writeJSON(w, status, resp)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
