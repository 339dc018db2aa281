package transport

import (
	"encoding/json"

	"ai-waiter-service/pkg/cart"
	"ai-waiter-service/pkg/menu"
)

// Hello is the first text frame on every channel. Audio frames are only
// valid after it has been sent.
type Hello struct {
	Type       string `json:"type"`
	SessionID  string `json:"sessionId"`
	UserID     string `json:"userId,omitempty"`
	SampleRate int    `json:"sampleRate"`
	Channels   int    `json:"channels"`
	Lang       string `json:"lang"`
	Tenant     string `json:"tenant"`
	Branch     string `json:"branch"`
	Channel    string `json:"channel"`
	Timezone   string `json:"timezone"`
	LocalHour  int    `json:"localHour"`
}

type endMessage struct {
	Type      string `json:"type"`
	SessionID string `json:"sessionId"`
}

type pingMessage struct {
	Type string `json:"type"`
}

// Decision carries the backend's navigation override.
type Decision struct {
	ForceNavigate string `json:"forceNavigate,omitempty"`
}

// ReplyMeta is the structured half of an AI reply: the classified intent
// plus everything the UI and cart need to act on it.
type ReplyMeta struct {
	Intent      string      `json:"intent"`
	Language    string      `json:"language,omitempty"`
	Items       []menu.Item `json:"items,omitempty"`
	Suggestions []menu.Item `json:"suggestions,omitempty"`
	CartOps     []cart.Op   `json:"cartOps,omitempty"`
	ClearCart   bool        `json:"clearCart,omitempty"`
	Upsell      []menu.Item `json:"upsell,omitempty"`
	Decision    *Decision   `json:"decision,omitempty"`
}

// UnmarshalJSON accepts the legacy capitalized "Upsell" key still emitted
// by older backend builds. The canonical lowercase key wins when both are
// present.
func (m *ReplyMeta) UnmarshalJSON(b []byte) error {
	type plain ReplyMeta
	var p plain
	if err := json.Unmarshal(b, &p); err != nil {
		return err
	}
	*m = ReplyMeta(p)
	if len(m.Upsell) == 0 {
		var legacy struct {
			Upsell []menu.Item `json:"Upsell"`
		}
		if err := json.Unmarshal(b, &legacy); err == nil && len(legacy.Upsell) > 0 {
			m.Upsell = legacy.Upsell
		}
	}
	return nil
}

// EventKind classifies inbound channel traffic.
type EventKind string

const (
	KindPartial      EventKind = "stt_partial"
	KindFinal        EventKind = "stt_final"
	KindReplyPending EventKind = "ai_reply_pending"
	KindReply        EventKind = "ai_reply"
	KindReplyError   EventKind = "ai_reply_error"
	// KindClosed reports that the channel's read loop exited.
	KindClosed EventKind = "closed"
)

// Event is one decoded inbound frame, tagged with the channel generation
// it arrived on. Consumers drop events whose generation is stale.
type Event struct {
	Kind       EventKind
	Generation uint64
	Text       string
	Meta       *ReplyMeta
	Err        error
}

// inboundFrame is the common envelope of server text frames. Frames with
// an unrecognized type are ignored.
type inboundFrame struct {
	Type    string          `json:"type"`
	Text    string          `json:"text"`
	Message string          `json:"message"`
	Meta    json.RawMessage `json:"meta"`
}

func decodeFrame(data []byte, gen uint64) (Event, bool) {
	var f inboundFrame
	if err := json.Unmarshal(data, &f); err != nil {
		return Event{}, false
	}

	switch f.Type {
	case "stt_partial":
		return Event{Kind: KindPartial, Generation: gen, Text: f.Text}, true
	case "stt_final":
		return Event{Kind: KindFinal, Generation: gen, Text: f.Text}, true
	case "ai_reply_pending":
		return Event{Kind: KindReplyPending, Generation: gen}, true
	case "ai_reply":
		ev := Event{Kind: KindReply, Generation: gen, Text: f.Text}
		if len(f.Meta) > 0 {
			var meta ReplyMeta
			if err := json.Unmarshal(f.Meta, &meta); err == nil {
				ev.Meta = &meta
			}
		}
		return ev, true
	case "ai_reply_error":
		return Event{Kind: KindReplyError, Generation: gen, Text: f.Message}, true
	default:
		return Event{}, false
	}
}
