// FILE: internal/dto/voice_dto.go
package dto

// Voice ordering API DTOs

type CreateSessionRequest struct {
	UserId   string `json:"userId" validate:"omitempty,max=64"`
	Lang     string `json:"lang" validate:"omitempty,bcp47_language_tag"`
	Timezone string `json:"timezone" validate:"omitempty,timezone"`
}

type SessionResponse struct {
	SessionId string `json:"sessionId"`
	UIContext string `json:"uiContext"`
	Status    string `json:"status"`
	Lang      string `json:"lang"`
}

type CartLineResponse struct {
	ItemId    string  `json:"itemId"`
	Variation string  `json:"variation,omitempty"`
	Name      string  `json:"name"`
	Quantity  int     `json:"quantity"`
	UnitPrice float64 `json:"unitPrice"`
	Image     string  `json:"image,omitempty"`
	Notes     string  `json:"notes,omitempty"`
}

type CartResponse struct {
	SessionId string             `json:"sessionId"`
	Lines     []CartLineResponse `json:"lines"`
	Total     float64            `json:"total"`
}

type ConversationResponse struct {
	SessionId string `json:"sessionId"`
	Final     string `json:"final"`
	Live      string `json:"live"`
}

type TranscriptTurnResponse struct {
	Role      string `json:"role"`
	Text      string `json:"text"`
	Language  string `json:"language,omitempty"`
	Intent    string `json:"intent,omitempty"`
	CreatedAt string `json:"createdAt"`
}

type TranscriptResponse struct {
	SessionId string                   `json:"sessionId"`
	Turns     []TranscriptTurnResponse `json:"turns"`
}

// PublishTranscriptMessage is the bus payload handed to the archiver for
// every finalized turn.
type PublishTranscriptMessage struct {
	SessionId string `json:"session_id"`
	UserId    string `json:"user_id"`
	Role      string `json:"role"`
	Text      string `json:"text"`
	Language  string `json:"language"`
	Intent    string `json:"intent"`
	Tenant    string `json:"tenant"`
	Branch    string `json:"branch"`
}
