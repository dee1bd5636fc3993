package httpserver

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/lutefd/draftpoints-api/internal/domain/points"
	"github.com/lutefd/draftpoints-api/internal/domain/scoring"
	"github.com/lutefd/draftpoints-api/internal/projections"
	"github.com/lutefd/draftpoints-api/internal/recompute"
	"github.com/lutefd/draftpoints-api/internal/rules"
	"github.com/lutefd/draftpoints-api/internal/storage"
)

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func decodeJSON(r *http.Request, dst any) error {
	return json.NewDecoder(r.Body).Decode(dst)
}

// decodeStrictJSON rejects keys dst has no field for.
func decodeStrictJSON(r *http.Request, dst any) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	return dec.Decode(dst)
}

func statusFor(err error) int {
	var missing *points.MissingFieldError
	switch {
	case errors.Is(err, rules.ErrNameConflict), errors.Is(err, recompute.ErrAlreadyRunning):
		return http.StatusConflict
	case errors.Is(err, scoring.ErrInvalidRule), errors.Is(err, projections.ErrInvalidRecord), errors.As(err, &missing):
		return http.StatusBadRequest
	case errors.Is(err, rules.ErrNotFound), errors.Is(err, storage.ErrNotFound):
		return http.StatusNotFound
	}
	return http.StatusInternalServerError
}

func writeError(w http.ResponseWriter, err error) {
	writeJSON(w, statusFor(err), map[string]string{"error": err.Error()})
}
