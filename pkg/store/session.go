package store

import "time"

// Session is the in-memory state of one ordering session: who is talking,
// which UI surface they are on and what the pipeline is currently doing.
type Session struct {
	ID        string `json:"id"`
	UserID    string `json:"user_id"`
	Lang      string `json:"lang"`
	Timezone  string `json:"timezone"`
	UIContext string `json:"ui_context"` // "home" | "suggestions" | "tray" | "menu"
	Status    string `json:"status"`     // pipeline status, see constants below

	CreatedAt    time.Time `json:"created_at"`
	LastActiveAt time.Time `json:"last_active_at"`
}

const (
	StatusIdle      = "idle"
	StatusListening = "listening"
	StatusThinking  = "thinking"
	StatusSpeaking  = "speaking"
	StatusError     = "error"
)
