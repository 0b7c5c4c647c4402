// Package postgres provides the PostgreSQL storage layer: versioned resource
// tables plus the transactional outbox used for reliable event publishing.
//
// Resources are stored append-only. Every write inserts a new (id, version)
// row; the latest version is the row with the greatest version token, and an
// update is a read-modify-insert, never an UPDATE of resource data. Index
// columns (patient_id, observation_type, mrn, model_id) are extracted at
// write time so the secondary access paths stay cheap.
package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/medconnect/go-medconnect/internal/fhir/model"
)

// NotFoundError reports a read against a resource id with no stored versions.
type NotFoundError struct {
	Resource string
	ID       string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s %s not found", e.Resource, e.ID)
}

// ConflictError reports a write rejected for clashing with existing state:
// an insert colliding on an (id, version) pair, or an update whose payload
// id disagrees with the id being updated.
type ConflictError struct {
	Resource  string
	ID        string
	Version   string // set on version collisions
	PayloadID string // set on identity mismatches
}

func (e *ConflictError) Error() string {
	if e.PayloadID != "" {
		return fmt.Sprintf("%s update targets %s but payload carries id %s", e.Resource, e.ID, e.PayloadID)
	}
	return fmt.Sprintf("%s %s version %s already exists", e.Resource, e.ID, e.Version)
}

const uniqueViolation = "23505"

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == uniqueViolation
}

// Store is the versioned resource store.
type Store struct {
	pool   *pgxpool.Pool
	logger *zap.Logger
	tracer trace.Tracer
}

// NewStore creates a store on the given pool.
func NewStore(pool *pgxpool.Pool, logger *zap.Logger) *Store {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Store{
		pool:   pool,
		logger: logger,
		tracer: otel.Tracer("postgres-store"),
	}
}

// Pool exposes the underlying pool for components that share it, such as the
// outbox processor and the idempotency inbox.
func (s *Store) Pool() *pgxpool.Pool { return s.pool }

// EnsureSchema creates the resource and outbox tables when absent.
func (s *Store) EnsureSchema(ctx context.Context) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS patients (
			patient_id TEXT NOT NULL,
			version    TEXT NOT NULL,
			mrn        TEXT NOT NULL DEFAULT '',
			data       JSONB NOT NULL,
			PRIMARY KEY (patient_id, version)
		)`,
		`CREATE INDEX IF NOT EXISTS patients_mrn_idx ON patients (mrn, version DESC)`,
		`CREATE TABLE IF NOT EXISTS observations (
			observation_id   TEXT NOT NULL,
			ts               TEXT NOT NULL,
			patient_id       TEXT NOT NULL,
			observation_type TEXT NOT NULL,
			data             JSONB NOT NULL,
			PRIMARY KEY (observation_id, ts)
		)`,
		`CREATE INDEX IF NOT EXISTS observations_patient_idx ON observations (patient_id, ts DESC)`,
		`CREATE INDEX IF NOT EXISTS observations_type_idx ON observations (observation_type, ts DESC)`,
		`CREATE TABLE IF NOT EXISTS predictions (
			prediction_id TEXT NOT NULL,
			ts            TEXT NOT NULL,
			patient_id    TEXT NOT NULL,
			model_id      TEXT NOT NULL,
			data          JSONB NOT NULL,
			PRIMARY KEY (prediction_id, ts)
		)`,
		`CREATE INDEX IF NOT EXISTS predictions_patient_idx ON predictions (patient_id, ts DESC)`,
		`CREATE INDEX IF NOT EXISTS predictions_model_idx ON predictions (model_id, ts DESC)`,
		`CREATE TABLE IF NOT EXISTS outbox (
			id           BIGSERIAL PRIMARY KEY,
			entity_id    TEXT NOT NULL,
			entity_type  TEXT NOT NULL,
			event_type   TEXT NOT NULL,
			payload      JSONB NOT NULL,
			kafka_topic  TEXT NOT NULL,
			kafka_key    TEXT NOT NULL,
			created_at   TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			updated_at   TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			processed_at TIMESTAMPTZ,
			retry_count  INT NOT NULL DEFAULT 0,
			last_error   TEXT
		)`,
		`CREATE INDEX IF NOT EXISTS outbox_pending_idx ON outbox (created_at) WHERE processed_at IS NULL`,
		`CREATE TABLE IF NOT EXISTS inbox (
			idempotency_key TEXT PRIMARY KEY,
			handler_name    TEXT NOT NULL,
			status          TEXT NOT NULL,
			payload         JSONB,
			result          JSONB,
			created_at      TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			updated_at      TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			expires_at      TIMESTAMPTZ
		)`,
	}
	for _, stmt := range stmts {
		if _, err := s.pool.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("ensure schema: %w", err)
		}
	}
	return nil
}

// PutPatient inserts a new patient version and the given outbox entries in
// one transaction. A colliding (id, version) pair is a ConflictError and
// nothing is written.
func (s *Store) PutPatient(ctx context.Context, p model.Patient, events ...*OutboxEntry) error {
	ctx, span := s.tracer.Start(ctx, "store_put_patient",
		trace.WithAttributes(attribute.String("patient_id", p.PatientID)))
	defer span.End()

	data, err := json.Marshal(p)
	if err != nil {
		return fmt.Errorf("marshal patient: %w", err)
	}

	return s.withTx(ctx, func(tx pgx.Tx) error {
		_, err := tx.Exec(ctx,
			`INSERT INTO patients (patient_id, version, mrn, data) VALUES ($1, $2, $3, $4)`,
			p.PatientID, p.Version, p.MRN(), data)
		if err != nil {
			if isUniqueViolation(err) {
				return &ConflictError{Resource: "Patient", ID: p.PatientID, Version: p.Version}
			}
			return fmt.Errorf("insert patient: %w", err)
		}
		return writeEntries(ctx, tx, events)
	})
}

// GetPatient returns the latest version of the patient.
func (s *Store) GetPatient(ctx context.Context, id string) (model.Patient, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT data FROM patients WHERE patient_id = $1 ORDER BY version DESC LIMIT 1`, id)
	return scanPatient(row, id)
}

// GetPatientVersion returns one specific stored version.
func (s *Store) GetPatientVersion(ctx context.Context, id, version string) (model.Patient, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT data FROM patients WHERE patient_id = $1 AND version = $2`, id, version)
	return scanPatient(row, id)
}

// GetPatientByMRN returns the latest version of the patient holding the
// given medical record number.
func (s *Store) GetPatientByMRN(ctx context.Context, mrn string) (model.Patient, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT data FROM patients WHERE mrn = $1 ORDER BY version DESC LIMIT 1`, mrn)
	p, err := scanPatient(row, mrn)
	if err != nil {
		var nf *NotFoundError
		if errors.As(err, &nf) {
			return model.Patient{}, &NotFoundError{Resource: "Patient (mrn)", ID: mrn}
		}
	}
	return p, err
}

// ListPatientVersions returns up to limit versions of a patient, newest
// first.
func (s *Store) ListPatientVersions(ctx context.Context, id string, limit int) ([]model.Patient, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT data FROM patients WHERE patient_id = $1 ORDER BY version DESC LIMIT $2`, id, limit)
	if err != nil {
		return nil, fmt.Errorf("query patient versions: %w", err)
	}
	defer rows.Close()

	var out []model.Patient
	for rows.Next() {
		var data []byte
		if err := rows.Scan(&data); err != nil {
			return nil, fmt.Errorf("scan patient: %w", err)
		}
		var p model.Patient
		if err := json.Unmarshal(data, &p); err != nil {
			return nil, fmt.Errorf("unmarshal patient: %w", err)
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

// DeletePatient removes every stored version of the patient and writes the
// outbox entries in the same transaction. Deleting an unknown id is a
// NotFoundError.
func (s *Store) DeletePatient(ctx context.Context, id string, events ...*OutboxEntry) error {
	return s.withTx(ctx, func(tx pgx.Tx) error {
		tag, err := tx.Exec(ctx, `DELETE FROM patients WHERE patient_id = $1`, id)
		if err != nil {
			return fmt.Errorf("delete patient: %w", err)
		}
		if tag.RowsAffected() == 0 {
			return &NotFoundError{Resource: "Patient", ID: id}
		}
		return writeEntries(ctx, tx, events)
	})
}

// PutObservation inserts a new observation version and the given outbox
// entries in one transaction.
func (s *Store) PutObservation(ctx context.Context, o model.Observation, events ...*OutboxEntry) error {
	ctx, span := s.tracer.Start(ctx, "store_put_observation",
		trace.WithAttributes(
			attribute.String("observation_id", o.ObservationID),
			attribute.String("observation_type", o.ObservationType)))
	defer span.End()

	data, err := marshalObservation(o)
	if err != nil {
		return err
	}

	return s.withTx(ctx, func(tx pgx.Tx) error {
		_, err := tx.Exec(ctx,
			`INSERT INTO observations (observation_id, ts, patient_id, observation_type, data) VALUES ($1, $2, $3, $4, $5)`,
			o.ObservationID, o.Timestamp, o.PatientID, o.ObservationType, data)
		if err != nil {
			if isUniqueViolation(err) {
				return &ConflictError{Resource: "Observation", ID: o.ObservationID, Version: o.Timestamp}
			}
			return fmt.Errorf("insert observation: %w", err)
		}
		return writeEntries(ctx, tx, events)
	})
}

// GetObservation returns the latest version of the observation.
func (s *Store) GetObservation(ctx context.Context, id string) (model.Observation, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT data FROM observations WHERE observation_id = $1 ORDER BY ts DESC LIMIT 1`, id)
	return scanObservation(row, id)
}

// ListObservationsByPatient returns up to limit observations for the
// patient, newest first.
func (s *Store) ListObservationsByPatient(ctx context.Context, patientID string, limit int) ([]model.Observation, error) {
	return s.queryObservations(ctx,
		`SELECT data FROM observations WHERE patient_id = $1 ORDER BY ts DESC LIMIT $2`, patientID, limit)
}

// ListObservationsByType returns up to limit observations of the given type,
// newest first.
func (s *Store) ListObservationsByType(ctx context.Context, observationType string, limit int) ([]model.Observation, error) {
	return s.queryObservations(ctx,
		`SELECT data FROM observations WHERE observation_type = $1 ORDER BY ts DESC LIMIT $2`, observationType, limit)
}

func (s *Store) queryObservations(ctx context.Context, query string, args ...any) ([]model.Observation, error) {
	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query observations: %w", err)
	}
	defer rows.Close()

	var out []model.Observation
	for rows.Next() {
		var data []byte
		if err := rows.Scan(&data); err != nil {
			return nil, fmt.Errorf("scan observation: %w", err)
		}
		o, err := unmarshalObservation(data)
		if err != nil {
			return nil, err
		}
		out = append(out, o)
	}
	return out, rows.Err()
}

// PutPrediction inserts a prediction record and the given outbox entries in
// one transaction.
func (s *Store) PutPrediction(ctx context.Context, p model.Prediction, events ...*OutboxEntry) error {
	data, err := json.Marshal(p)
	if err != nil {
		return fmt.Errorf("marshal prediction: %w", err)
	}
	return s.withTx(ctx, func(tx pgx.Tx) error {
		_, err := tx.Exec(ctx,
			`INSERT INTO predictions (prediction_id, ts, patient_id, model_id, data) VALUES ($1, $2, $3, $4, $5)`,
			p.PredictionID, p.Timestamp, p.PatientID, p.ModelID, data)
		if err != nil {
			if isUniqueViolation(err) {
				return &ConflictError{Resource: "Prediction", ID: p.PredictionID, Version: p.Timestamp}
			}
			return fmt.Errorf("insert prediction: %w", err)
		}
		return writeEntries(ctx, tx, events)
	})
}

// GetPrediction returns the latest record for the prediction id.
func (s *Store) GetPrediction(ctx context.Context, id string) (model.Prediction, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT data FROM predictions WHERE prediction_id = $1 ORDER BY ts DESC LIMIT 1`, id)
	var data []byte
	if err := row.Scan(&data); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return model.Prediction{}, &NotFoundError{Resource: "Prediction", ID: id}
		}
		return model.Prediction{}, fmt.Errorf("scan prediction: %w", err)
	}
	var p model.Prediction
	if err := json.Unmarshal(data, &p); err != nil {
		return model.Prediction{}, fmt.Errorf("unmarshal prediction: %w", err)
	}
	return p, nil
}

// ListPredictionsByPatient returns up to limit predictions for the patient,
// newest first.
func (s *Store) ListPredictionsByPatient(ctx context.Context, patientID string, limit int) ([]model.Prediction, error) {
	return s.queryPredictions(ctx,
		`SELECT data FROM predictions WHERE patient_id = $1 ORDER BY ts DESC LIMIT $2`, patientID, limit)
}

// ListPredictionsByModel returns up to limit predictions made by the model,
// newest first.
func (s *Store) ListPredictionsByModel(ctx context.Context, modelID string, limit int) ([]model.Prediction, error) {
	return s.queryPredictions(ctx,
		`SELECT data FROM predictions WHERE model_id = $1 ORDER BY ts DESC LIMIT $2`, modelID, limit)
}

func (s *Store) queryPredictions(ctx context.Context, query string, args ...any) ([]model.Prediction, error) {
	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query predictions: %w", err)
	}
	defer rows.Close()

	var out []model.Prediction
	for rows.Next() {
		var data []byte
		if err := rows.Scan(&data); err != nil {
			return nil, fmt.Errorf("scan prediction: %w", err)
		}
		var p model.Prediction
		if err := json.Unmarshal(data, &p); err != nil {
			return nil, fmt.Errorf("unmarshal prediction: %w", err)
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

func writeEntries(ctx context.Context, tx pgx.Tx, events []*OutboxEntry) error {
	for _, event := range events {
		if event == nil {
			continue
		}
		if err := WriteEntry(ctx, tx, event); err != nil {
			return err
		}
	}
	return nil
}

func (s *Store) withTx(ctx context.Context, fn func(tx pgx.Tx) error) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	if err := fn(tx); err != nil {
		return err
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}
	return nil
}

func marshalObservation(o model.Observation) ([]byte, error) {
	data, err := json.Marshal(o)
	if err != nil {
		return nil, fmt.Errorf("marshal observation: %w", err)
	}
	return data, nil
}

func unmarshalObservation(data []byte) (model.Observation, error) {
	var o model.Observation
	if err := json.Unmarshal(data, &o); err != nil {
		return model.Observation{}, fmt.Errorf("unmarshal observation: %w", err)
	}
	return o, nil
}

func scanPatient(row pgx.Row, id string) (model.Patient, error) {
	var data []byte
	if err := row.Scan(&data); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return model.Patient{}, &NotFoundError{Resource: "Patient", ID: id}
		}
		return model.Patient{}, fmt.Errorf("scan patient: %w", err)
	}
	var p model.Patient
	if err := json.Unmarshal(data, &p); err != nil {
		return model.Patient{}, fmt.Errorf("unmarshal patient: %w", err)
	}
	return p, nil
}

func scanObservation(row pgx.Row, id string) (model.Observation, error) {
	var data []byte
	if err := row.Scan(&data); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return model.Observation{}, &NotFoundError{Resource: "Observation", ID: id}
		}
		return model.Observation{}, fmt.Errorf("scan observation: %w", err)
	}
	return unmarshalObservation(data)
}
