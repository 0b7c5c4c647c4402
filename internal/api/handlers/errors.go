package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"go.uber.org/zap"

	"github.com/medconnect/go-medconnect/internal/fhir/codec"
	"github.com/medconnect/go-medconnect/internal/fhir/validate"
	"github.com/medconnect/go-medconnect/internal/infrastructure/postgres"
	"github.com/medconnect/go-medconnect/internal/ingest"
)

// writeError maps pipeline errors onto HTTP statuses: malformed or invalid
// payloads are 400, unknown ids are 404, version collisions are 409,
// anything else is 500. Validation responses carry the full violations list.
func writeError(w http.ResponseWriter, logger *zap.Logger, err error) {
	var (
		decodeErr      *codec.DecodeError
		validationErr  *validate.ValidationError
		notFoundErr    *postgres.NotFoundError
		conflictErr    *postgres.ConflictError
		unsupportedErr *ingest.ErrUnsupportedResource
	)

	switch {
	case errors.As(err, &decodeErr):
		writeJSON(w, http.StatusBadRequest, map[string]any{"error": decodeErr.Error()})
	case errors.As(err, &validationErr):
		writeJSON(w, http.StatusBadRequest, map[string]any{
			"error":      validationErr.ResourceType + " validation failed",
			"violations": validationErr.Violations,
		})
	case errors.As(err, &notFoundErr):
		writeJSON(w, http.StatusNotFound, map[string]any{"error": notFoundErr.Error()})
	case errors.As(err, &conflictErr):
		writeJSON(w, http.StatusConflict, map[string]any{"error": conflictErr.Error()})
	case errors.As(err, &unsupportedErr):
		writeJSON(w, http.StatusBadRequest, map[string]any{"error": unsupportedErr.Error()})
	default:
		logger.Error("request failed", zap.Error(err))
		writeJSON(w, http.StatusInternalServerError, map[string]any{"error": "internal server error"})
	}
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(body)
}
