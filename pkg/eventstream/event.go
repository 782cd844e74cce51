package eventstream

import (
	"time"

	"github.com/google/uuid"

	"github.com/papercomputeco/bpmnchat/pkg/sse"
	"github.com/papercomputeco/bpmnchat/pkg/storage"
)

const (
	// SchemaVersionV1 is the first version of the event payload schema.
	SchemaVersionV1 = 1

	// EventTypeSessionFinalized is emitted after a session record is persisted.
	EventTypeSessionFinalized = "bpmnchat.session.finalized"
)

// SessionFinalizedEvent is a transport-neutral event payload for a finished
// chat session.
type SessionFinalizedEvent struct {
	SchemaVersion int            `json:"schema_version"`
	EventType     string         `json:"event_type"`
	EventID       string         `json:"event_id"`
	EmittedAt     time.Time      `json:"emitted_at"`
	Source        EventSource    `json:"source"`
	RequestMeta   RequestMeta    `json:"request_meta"`
	Session       SessionSummary `json:"session"`
}

// EventSource identifies the upstream that produced the reply.
type EventSource struct {
	Provider string `json:"provider"`
	Model    string `json:"model"`
	Reasoner bool   `json:"reasoner"`
}

// RequestMeta captures request lifecycle metadata for the event.
type RequestMeta struct {
	Path        string    `json:"path,omitempty"`
	StartedAt   time.Time `json:"started_at"`
	CompletedAt time.Time `json:"completed_at"`
	DurationMs  int64     `json:"duration_ms"`
	HTTPStatus  int       `json:"http_status"`
}

// SessionSummary describes the session without its full text.
type SessionSummary struct {
	ID             string    `json:"id"`
	Outcome        string    `json:"outcome"`
	Error          string    `json:"error,omitempty"`
	ReasoningBytes int       `json:"reasoning_bytes"`
	DiagramBytes   int       `json:"diagram_bytes"`
	Stream         sse.Stats `json:"stream"`
}

// NewSessionFinalizedEvent builds the event for a stored record.
func NewSessionFinalizedEvent(rec *storage.Record, path string, status int, now time.Time) *SessionFinalizedEvent {
	return &SessionFinalizedEvent{
		SchemaVersion: SchemaVersionV1,
		EventType:     EventTypeSessionFinalized,
		EventID:       uuid.NewString(),
		EmittedAt:     now.UTC(),
		Source: EventSource{
			Provider: rec.Provider,
			Model:    rec.Model,
			Reasoner: rec.Reasoner,
		},
		RequestMeta: RequestMeta{
			Path:        path,
			StartedAt:   rec.StartedAt,
			CompletedAt: rec.FinishedAt,
			DurationMs:  rec.FinishedAt.Sub(rec.StartedAt).Milliseconds(),
			HTTPStatus:  status,
		},
		Session: SessionSummary{
			ID:             rec.ID,
			Outcome:        rec.Outcome,
			Error:          rec.Error,
			ReasoningBytes: len(rec.Reasoning),
			DiagramBytes:   len(rec.Diagram),
			Stream:         rec.Stats,
		},
	}
}
