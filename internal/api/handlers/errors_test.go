package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/medconnect/go-medconnect/internal/fhir/codec"
	"github.com/medconnect/go-medconnect/internal/fhir/validate"
	"github.com/medconnect/go-medconnect/internal/infrastructure/postgres"
	"github.com/medconnect/go-medconnect/internal/ingest"
)

func TestWriteErrorStatusMapping(t *testing.T) {
	cases := []struct {
		name   string
		err    error
		status int
	}{
		{"decode", &codec.DecodeError{Resource: "Patient", Field: "name", Message: "must be a list"}, http.StatusBadRequest},
		{"validation", &validate.ValidationError{ResourceType: "Patient", Violations: []string{"patient gender is required"}}, http.StatusBadRequest},
		{"not found", &postgres.NotFoundError{Resource: "Patient", ID: "p-1"}, http.StatusNotFound},
		{"conflict", &postgres.ConflictError{Resource: "Patient", ID: "p-1", Version: "v1"}, http.StatusConflict},
		{"unsupported resource", &ingest.ErrUnsupportedResource{ResourceType: "Device"}, http.StatusBadRequest},
		{"wrapped not found", fmt.Errorf("lookup: %w", &postgres.NotFoundError{Resource: "Observation", ID: "o-1"}), http.StatusNotFound},
		{"unknown", errors.New("boom"), http.StatusInternalServerError},
	}

	logger := zap.NewNop()
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			writeError(rec, logger, tc.err)

			assert.Equal(t, tc.status, rec.Code)
			assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))
		})
	}
}

func TestWriteErrorValidationCarriesViolations(t *testing.T) {
	rec := httptest.NewRecorder()
	writeError(rec, zap.NewNop(), &validate.ValidationError{
		ResourceType: "Observation",
		Violations:   []string{"observation status is invalid", "observation id is required"},
	})

	var body struct {
		Error      string   `json:"error"`
		Violations []string `json:"violations"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))

	assert.Equal(t, "Observation validation failed", body.Error)
	assert.Equal(t, []string{"observation status is invalid", "observation id is required"}, body.Violations)
}

func TestWriteErrorHidesInternalDetail(t *testing.T) {
	rec := httptest.NewRecorder()
	writeError(rec, zap.NewNop(), errors.New("pq: connection refused"))

	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "internal server error", body["error"])
}
