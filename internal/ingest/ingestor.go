// Package ingest implements the shared resource ingestion pipeline:
// decode, validate, persist, and record the change event, in one pass. The
// HTTP bundle endpoint and the Kafka ingestion worker both run entries
// through it so a resource is accepted or rejected identically on every
// path.
package ingest

import (
	"context"
	"encoding/json"
	"fmt"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/medconnect/go-medconnect/internal/fhir/codec"
	"github.com/medconnect/go-medconnect/internal/fhir/model"
	"github.com/medconnect/go-medconnect/internal/fhir/validate"
	"github.com/medconnect/go-medconnect/internal/infrastructure/postgres"
	"github.com/medconnect/go-medconnect/internal/infrastructure/redpanda"
	"github.com/medconnect/go-medconnect/internal/observability/metrics"
	"github.com/medconnect/go-medconnect/pkg/workerpool"
)

// ErrUnsupportedResource reports a bundle entry whose resourceType the
// pipeline does not handle.
type ErrUnsupportedResource struct {
	ResourceType string
}

func (e *ErrUnsupportedResource) Error() string {
	return fmt.Sprintf("unsupported resource type %q", e.ResourceType)
}

// Ingestor runs resources through the ingestion pipeline.
type Ingestor struct {
	store   *postgres.Store
	metrics *metrics.Metrics
	logger  *zap.Logger
	tracer  trace.Tracer
}

// New creates an ingestor.
func New(store *postgres.Store, m *metrics.Metrics, logger *zap.Logger) *Ingestor {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Ingestor{
		store:   store,
		metrics: m,
		logger:  logger,
		tracer:  otel.Tracer("ingest"),
	}
}

// CreatePatient decodes, validates and persists a wire Patient, emitting the
// ingestion event in the same transaction.
func (i *Ingestor) CreatePatient(ctx context.Context, raw map[string]any) (model.Patient, error) {
	ctx, span := i.tracer.Start(ctx, "ingest_create_patient")
	defer span.End()

	p, err := codec.DecodePatientObject(raw)
	if err != nil {
		i.metrics.DecodeFailures.WithLabelValues("Patient").Inc()
		return model.Patient{}, err
	}
	if err := validate.ValidatePatient(p); err != nil {
		i.metrics.ValidationFailures.WithLabelValues("Patient").Inc()
		return model.Patient{}, err
	}
	span.SetAttributes(attribute.String("patient_id", p.PatientID))

	events := []*postgres.OutboxEntry{
		IngestionEntry("Patient", redpanda.OpCreate, p.PatientID, p),
		NotificationEntry("patient-created", p.PatientID, p.PatientID),
	}
	if err := i.store.PutPatient(ctx, p, events...); err != nil {
		return model.Patient{}, err
	}

	i.metrics.ResourcesCreated.WithLabelValues("Patient").Inc()
	i.logger.Info("patient created", zap.String("patient_id", p.PatientID))
	return p, nil
}

// UpdatePatient replaces the stored patient with a new version built from
// the wire payload. The id comes from the URL; a body carrying a different
// id is a ConflictError, and updating an unknown id is a NotFoundError.
func (i *Ingestor) UpdatePatient(ctx context.Context, id string, raw map[string]any) (model.Patient, error) {
	ctx, span := i.tracer.Start(ctx, "ingest_update_patient",
		trace.WithAttributes(attribute.String("patient_id", id)))
	defer span.End()

	p, err := codec.DecodePatientObject(raw)
	if err != nil {
		i.metrics.DecodeFailures.WithLabelValues("Patient").Inc()
		return model.Patient{}, err
	}
	if p.PatientID != "" && p.PatientID != id {
		return model.Patient{}, &postgres.ConflictError{Resource: "Patient", ID: id, PayloadID: p.PatientID}
	}

	current, err := i.store.GetPatient(ctx, id)
	if err != nil {
		return model.Patient{}, err
	}
	p.PatientID = current.PatientID
	p.CreatedAt = current.CreatedAt
	p = p.NewVersion()

	if err := validate.ValidatePatient(p); err != nil {
		i.metrics.ValidationFailures.WithLabelValues("Patient").Inc()
		return model.Patient{}, err
	}

	events := []*postgres.OutboxEntry{
		IngestionEntry("Patient", redpanda.OpUpdate, p.PatientID, p),
		NotificationEntry("patient-updated", p.PatientID, p.PatientID),
	}
	if err := i.store.PutPatient(ctx, p, events...); err != nil {
		return model.Patient{}, err
	}

	i.metrics.ResourcesUpdated.WithLabelValues("Patient").Inc()
	i.logger.Info("patient updated",
		zap.String("patient_id", p.PatientID),
		zap.String("version", p.Version))
	return p, nil
}

// DeletePatient removes all stored versions and emits the delete event.
func (i *Ingestor) DeletePatient(ctx context.Context, id string) error {
	events := []*postgres.OutboxEntry{
		IngestionEntry("Patient", redpanda.OpDelete, id, nil),
		NotificationEntry("patient-deleted", id, id),
	}
	if err := i.store.DeletePatient(ctx, id, events...); err != nil {
		return err
	}
	i.metrics.ResourcesDeleted.WithLabelValues("Patient").Inc()
	i.logger.Info("patient deleted", zap.String("patient_id", id))
	return nil
}

// CreateObservation decodes, validates and persists a wire Observation.
func (i *Ingestor) CreateObservation(ctx context.Context, raw map[string]any) (model.Observation, error) {
	ctx, span := i.tracer.Start(ctx, "ingest_create_observation")
	defer span.End()

	o, err := codec.DecodeObservationObject(raw)
	if err != nil {
		i.metrics.DecodeFailures.WithLabelValues("Observation").Inc()
		return model.Observation{}, err
	}
	if err := validate.ValidateObservation(o); err != nil {
		i.metrics.ValidationFailures.WithLabelValues("Observation").Inc()
		return model.Observation{}, err
	}
	span.SetAttributes(
		attribute.String("observation_id", o.ObservationID),
		attribute.String("observation_type", o.ObservationType))

	events := []*postgres.OutboxEntry{
		IngestionEntry("Observation", redpanda.OpCreate, o.ObservationID, o),
		NotificationEntry("observation-created", o.ObservationID, o.PatientID),
	}
	if err := i.store.PutObservation(ctx, o, events...); err != nil {
		return model.Observation{}, err
	}

	i.metrics.ResourcesCreated.WithLabelValues("Observation").Inc()
	i.logger.Info("observation created",
		zap.String("observation_id", o.ObservationID),
		zap.String("observation_type", o.ObservationType),
		zap.String("patient_id", o.PatientID))
	return o, nil
}

// UpdateObservation replaces the stored observation with a new version. The
// same identity rule as UpdatePatient applies: a body carrying a different
// id than the URL is a ConflictError.
func (i *Ingestor) UpdateObservation(ctx context.Context, id string, raw map[string]any) (model.Observation, error) {
	ctx, span := i.tracer.Start(ctx, "ingest_update_observation",
		trace.WithAttributes(attribute.String("observation_id", id)))
	defer span.End()

	o, err := codec.DecodeObservationObject(raw)
	if err != nil {
		i.metrics.DecodeFailures.WithLabelValues("Observation").Inc()
		return model.Observation{}, err
	}
	if o.ObservationID != "" && o.ObservationID != id {
		return model.Observation{}, &postgres.ConflictError{Resource: "Observation", ID: id, PayloadID: o.ObservationID}
	}

	current, err := i.store.GetObservation(ctx, id)
	if err != nil {
		return model.Observation{}, err
	}
	o.ObservationID = current.ObservationID
	o.CreatedAt = current.CreatedAt
	o = o.NewVersion()

	if err := validate.ValidateObservation(o); err != nil {
		i.metrics.ValidationFailures.WithLabelValues("Observation").Inc()
		return model.Observation{}, err
	}

	events := []*postgres.OutboxEntry{
		IngestionEntry("Observation", redpanda.OpUpdate, o.ObservationID, o),
		NotificationEntry("observation-updated", o.ObservationID, o.PatientID),
	}
	if err := i.store.PutObservation(ctx, o, events...); err != nil {
		return model.Observation{}, err
	}

	i.metrics.ResourcesUpdated.WithLabelValues("Observation").Inc()
	return o, nil
}

// IngestResource routes one wire resource through the pipeline by its
// resourceType. Used for bundle entries and replayed ingestion events.
func (i *Ingestor) IngestResource(ctx context.Context, entry codec.BundleEntry) (string, error) {
	switch entry.ResourceType {
	case "Patient":
		p, err := i.CreatePatient(ctx, entry.Resource)
		if err != nil {
			return "", err
		}
		return p.PatientID, nil
	case "Observation":
		o, err := i.CreateObservation(ctx, entry.Resource)
		if err != nil {
			return "", err
		}
		return o.ObservationID, nil
	default:
		return "", &ErrUnsupportedResource{ResourceType: entry.ResourceType}
	}
}

// EntryResult is the per-entry outcome of a bundle ingestion.
type EntryResult struct {
	ResourceType string `json:"resource_type"`
	EntityID     string `json:"entity_id,omitempty"`
	Error        string `json:"error,omitempty"`
}

// BundleTask is the worker pool payload for one bundle entry.
type BundleTask struct {
	Entry   codec.BundleEntry
	Results chan<- EntryResult
}

// WorkerFunc adapts the ingestor to the worker pool contract. The per-entry
// outcome travels on the task's result channel; the pool-level result only
// reflects whether the entry reached a terminal outcome, so the pool must
// run with retries disabled.
func (i *Ingestor) WorkerFunc() workerpool.WorkerFunc {
	return func(ctx context.Context, task *workerpool.Task) *workerpool.Result {
		bt, ok := task.Payload.(*BundleTask)
		if !ok {
			return &workerpool.Result{TaskID: task.ID, Success: false, Error: fmt.Errorf("unexpected payload type %T", task.Payload)}
		}
		id, err := i.IngestResource(ctx, bt.Entry)
		res := EntryResult{ResourceType: bt.Entry.ResourceType, EntityID: id}
		if err != nil {
			res.Error = err.Error()
		}
		bt.Results <- res
		return &workerpool.Result{TaskID: task.ID, Success: true, Data: res}
	}
}

// IngestionEntry builds the outbox entry for a resource change event,
// keyed by the entity id.
func IngestionEntry(resourceType, operation, entityID string, data any) *postgres.OutboxEntry {
	event := redpanda.IngestionEvent{
		ResourceType: resourceType,
		Operation:    operation,
		EntityID:     entityID,
		Timestamp:    model.Now(),
	}
	if data != nil {
		event.Data, _ = json.Marshal(data)
	}
	payload, _ := json.Marshal(event)
	return &postgres.OutboxEntry{
		EntityID:   entityID,
		EntityType: resourceType,
		EventType:  resourceType + "." + operation,
		Payload:    payload,
		KafkaTopic: redpanda.TopicIngestion,
		KafkaKey:   entityID,
	}
}

// NotificationEntry builds the outbox entry for a patient notification,
// keyed by the patient id so one patient's notifications stay ordered.
func NotificationEntry(notificationType, entityID, patientID string) *postgres.OutboxEntry {
	payload, _ := json.Marshal(redpanda.NotificationEvent{
		Type:      notificationType,
		EntityID:  entityID,
		PatientID: patientID,
		Timestamp: model.Now(),
	})
	return &postgres.OutboxEntry{
		EntityID:   entityID,
		EntityType: "Notification",
		EventType:  notificationType,
		Payload:    payload,
		KafkaTopic: redpanda.TopicNotifications,
		KafkaKey:   patientID,
	}
}
