package events

import "time"

// Event defines the contract for all system events.
type Event interface {
	// EventType returns the unique code for this event (e.g., "TRANSCRIPT_FINALIZED").
	EventType() string

	// Payload returns the data associated with the event.
	Payload() map[string]interface{}

	// Timestamp returns when the event occurred.
	Timestamp() time.Time
}

// BaseEvent helps embed common logic if needed,
// strictly creating valid implementations is preferred though.
type BaseEvent struct {
	Type       string
	Data       map[string]interface{}
	OccurredAt time.Time
}

func (e BaseEvent) EventType() string {
	return e.Type
}

func (e BaseEvent) Payload() map[string]interface{} {
	return e.Data
}

func (e BaseEvent) Timestamp() time.Time {
	return e.OccurredAt
}

const (
	TypeTranscriptFinalized = "TRANSCRIPT_FINALIZED"
	TypeCartUpdated         = "CART_UPDATED"
	TypeSessionReset        = "SESSION_RESET"
)

// NewTranscriptFinalized is emitted once per committed user utterance.
func NewTranscriptFinalized(tenant, sessionID, userID, text, lang string) Event {
	return BaseEvent{
		Type: TypeTranscriptFinalized,
		Data: map[string]interface{}{
			"tenant":     tenant,
			"session_id": sessionID,
			"user_id":    userID,
			"text":       text,
			"lang":       lang,
		},
		OccurredAt: time.Now(),
	}
}

// NewCartUpdated is emitted after a reply's cart operations are applied.
func NewCartUpdated(tenant, sessionID string, lineCount int) Event {
	return BaseEvent{
		Type: TypeCartUpdated,
		Data: map[string]interface{}{
			"tenant":     tenant,
			"session_id": sessionID,
			"line_count": lineCount,
		},
		OccurredAt: time.Now(),
	}
}

// NewSessionReset is emitted when a voice cycle hard-resets.
func NewSessionReset(tenant, sessionID, reason string) Event {
	return BaseEvent{
		Type: TypeSessionReset,
		Data: map[string]interface{}{
			"tenant":     tenant,
			"session_id": sessionID,
			"reason":     reason,
		},
		OccurredAt: time.Now(),
	}
}
