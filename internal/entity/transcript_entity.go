package entity

import (
	"time"

	"github.com/google/uuid"
)

// TranscriptTurn is one finalized utterance of an ordering conversation,
// either the guest's transcribed speech or the assistant's reply.
type TranscriptTurn struct {
	Id        uuid.UUID
	SessionId string
	UserId    string
	Role      string // "guest" | "assistant"
	Text      string
	Language  string
	Intent    string
	Tenant    string
	Branch    string
	CreatedAt time.Time
}

const (
	RoleGuest     = "guest"
	RoleAssistant = "assistant"
)
