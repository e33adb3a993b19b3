package reports

import "time"

const EventTypeReconciliationCompleted = "gst.reconciliation.completed"

// ReconciliationEvent is published once per successful run.
type ReconciliationEvent struct {
	Type          string                `json:"type"`
	CorrelationId string                `json:"correlation_id,omitempty"`
	CompletedAt   time.Time             `json:"completed_at"`
	ObjectKey     string                `json:"object_key,omitempty"`
	Summary       ReconciliationSummary `json:"summary"`
}

func (r *ReconciliationReport) CompletedEvent(correlationId, objectKey string, at time.Time) ReconciliationEvent {
	return ReconciliationEvent{
		Type:          EventTypeReconciliationCompleted,
		CorrelationId: correlationId,
		CompletedAt:   at.UTC(),
		ObjectKey:     objectKey,
		Summary:       r.Summary(),
	}
}

// Attributes are the Pub/Sub message attributes subscribers filter on.
func (e ReconciliationEvent) Attributes() map[string]string {
	return map[string]string{
		"type":   e.Type,
		"run_id": e.Summary.RunId,
	}
}
