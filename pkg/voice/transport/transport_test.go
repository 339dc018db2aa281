package transport

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"ai-waiter-service/internal/config"
	"ai-waiter-service/internal/pkg/logger"
)

func TestDecodeFrameKinds(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		want EventKind
		ok   bool
		text string
	}{
		{"partial", `{"type":"stt_partial","text":"two bir"}`, KindPartial, true, "two bir"},
		{"final", `{"type":"stt_final","text":"two biryani please"}`, KindFinal, true, "two biryani please"},
		{"pending", `{"type":"ai_reply_pending"}`, KindReplyPending, true, ""},
		{"reply", `{"type":"ai_reply","text":"sure","meta":{"intent":"order"}}`, KindReply, true, "sure"},
		{"reply error", `{"type":"ai_reply_error","message":"model overloaded"}`, KindReplyError, true, "model overloaded"},
		{"unknown type", `{"type":"vendor_debug","text":"x"}`, "", false, ""},
		{"not json", `%%%`, "", false, ""},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			ev, ok := decodeFrame([]byte(tc.raw), 7)
			if ok != tc.ok {
				t.Fatalf("ok = %v, want %v", ok, tc.ok)
			}
			if !ok {
				return
			}
			if ev.Kind != tc.want {
				t.Errorf("kind = %v, want %v", ev.Kind, tc.want)
			}
			if ev.Text != tc.text {
				t.Errorf("text = %q, want %q", ev.Text, tc.text)
			}
			if ev.Generation != 7 {
				t.Errorf("generation = %d, want 7", ev.Generation)
			}
		})
	}
}

func TestReplyMetaDecodesReply(t *testing.T) {
	raw := `{"type":"ai_reply","text":"added","meta":{
		"intent":"order",
		"cartOps":[{"type":"add","itemId":"7","quantity":2}],
		"clearCart":false,
		"decision":{"forceNavigate":"tray"}}}`
	ev, ok := decodeFrame([]byte(raw), 1)
	if !ok || ev.Meta == nil {
		t.Fatal("meta not decoded")
	}
	if ev.Meta.Intent != "order" {
		t.Errorf("intent = %q", ev.Meta.Intent)
	}
	if len(ev.Meta.CartOps) != 1 || ev.Meta.CartOps[0].ItemID != "7" {
		t.Errorf("cartOps = %+v", ev.Meta.CartOps)
	}
	if ev.Meta.Decision == nil || ev.Meta.Decision.ForceNavigate != "tray" {
		t.Errorf("decision = %+v", ev.Meta.Decision)
	}
}

func TestReplyMetaLegacyUpsellKey(t *testing.T) {
	var m ReplyMeta
	if err := json.Unmarshal([]byte(`{"intent":"order","Upsell":[{"id":"9","name":"Borhani"}]}`), &m); err != nil {
		t.Fatal(err)
	}
	if len(m.Upsell) != 1 || m.Upsell[0].ID != "9" {
		t.Fatalf("legacy upsell not migrated: %+v", m.Upsell)
	}

	// Canonical key wins over the legacy one.
	m = ReplyMeta{}
	raw := `{"upsell":[{"id":"1","name":"New"}],"Upsell":[{"id":"2","name":"Old"}]}`
	if err := json.Unmarshal([]byte(raw), &m); err != nil {
		t.Fatal(err)
	}
	if len(m.Upsell) != 1 || m.Upsell[0].ID != "1" {
		t.Fatalf("canonical upsell should win: %+v", m.Upsell)
	}
}

// fakeBackend upgrades connections and records what each one received.
type fakeBackend struct {
	upgrader websocket.Upgrader

	mu     sync.Mutex
	texts  []string
	binary [][]byte
	conns  []*websocket.Conn
}

func (b *fakeBackend) handler(w http.ResponseWriter, r *http.Request) {
	conn, err := b.upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	b.mu.Lock()
	b.conns = append(b.conns, conn)
	b.mu.Unlock()
	for {
		mt, data, err := conn.ReadMessage()
		if err != nil {
			return
		}
		b.mu.Lock()
		if mt == websocket.TextMessage {
			b.texts = append(b.texts, string(data))
		} else {
			b.binary = append(b.binary, data)
		}
		b.mu.Unlock()
	}
}

func (b *fakeBackend) waitTexts(t *testing.T, n int) []string {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		b.mu.Lock()
		if len(b.texts) >= n {
			out := append([]string(nil), b.texts...)
			b.mu.Unlock()
			return out
		}
		b.mu.Unlock()
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("backend never received %d text frames", n)
	return nil
}

func newTestTransport(t *testing.T) (*Transport, *fakeBackend) {
	t.Helper()
	backend := &fakeBackend{}
	srv := httptest.NewServer(http.HandlerFunc(backend.handler))
	t.Cleanup(srv.Close)

	cfg := config.SpeechConfig{
		BackendURL:        "ws" + strings.TrimPrefix(srv.URL, "http"),
		SampleRate:        16000,
		Channels:          1,
		KeepaliveInterval: time.Hour,
	}
	tr := NewTransport(cfg, logger.Noop{})
	t.Cleanup(tr.Shutdown)
	return tr, backend
}

func TestOpenSendsHelloFirst(t *testing.T) {
	tr, backend := newTestTransport(t)

	gen, err := tr.Open(context.Background(), Hello{
		SessionID: "s1", SampleRate: 16000, Channels: 1,
		Lang: "en", Tenant: "qravy", Branch: "main", Channel: "kiosk",
		Timezone: "Asia/Dhaka", LocalHour: 13,
	})
	if err != nil {
		t.Fatal(err)
	}
	if gen == 0 {
		t.Fatal("generation must start at 1")
	}
	if err := tr.SendAudioFrame(gen, make([]byte, 640)); err != nil {
		t.Fatal(err)
	}

	texts := backend.waitTexts(t, 1)
	var hello Hello
	if err := json.Unmarshal([]byte(texts[0]), &hello); err != nil {
		t.Fatal(err)
	}
	if hello.Type != "hello" || hello.SessionID != "s1" || hello.SampleRate != 16000 {
		t.Fatalf("bad hello: %+v", hello)
	}
}

func TestInboundFramesCarryGeneration(t *testing.T) {
	tr, backend := newTestTransport(t)

	gen, err := tr.Open(context.Background(), Hello{SessionID: "s1"})
	if err != nil {
		t.Fatal(err)
	}
	backend.waitTexts(t, 1)

	backend.mu.Lock()
	conn := backend.conns[0]
	backend.mu.Unlock()
	if err := conn.WriteMessage(websocket.TextMessage, []byte(`{"type":"stt_partial","text":"hel"}`)); err != nil {
		t.Fatal(err)
	}

	select {
	case ev := <-tr.Events():
		if ev.Kind != KindPartial || ev.Generation != gen || ev.Text != "hel" {
			t.Fatalf("got %+v", ev)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("no event received")
	}
}

func TestSupersededGenerationWritesAreDropped(t *testing.T) {
	tr, backend := newTestTransport(t)

	old, err := tr.Open(context.Background(), Hello{SessionID: "s1"})
	if err != nil {
		t.Fatal(err)
	}
	if _, err := tr.Open(context.Background(), Hello{SessionID: "s1"}); err != nil {
		t.Fatal(err)
	}

	// Audio on the old generation is silently dropped, not an error.
	if err := tr.SendAudioFrame(old, make([]byte, 640)); err != nil {
		t.Fatalf("stale audio frame: %v", err)
	}
	// Control frames on the old generation do fail loudly.
	if err := tr.SendEnd(old, "s1"); err != ErrSuperseded {
		t.Fatalf("stale end = %v, want ErrSuperseded", err)
	}

	time.Sleep(50 * time.Millisecond)
	backend.mu.Lock()
	nbin := len(backend.binary)
	backend.mu.Unlock()
	if nbin != 0 {
		t.Fatalf("stale frame reached the wire (%d binary frames)", nbin)
	}
}

func TestEndFrameShape(t *testing.T) {
	tr, backend := newTestTransport(t)
	gen, err := tr.Open(context.Background(), Hello{SessionID: "s9"})
	if err != nil {
		t.Fatal(err)
	}
	if err := tr.SendEnd(gen, "s9"); err != nil {
		t.Fatal(err)
	}

	texts := backend.waitTexts(t, 2)
	var end endMessage
	if err := json.Unmarshal([]byte(texts[1]), &end); err != nil {
		t.Fatal(err)
	}
	if end.Type != "end" || end.SessionID != "s9" {
		t.Fatalf("bad end frame: %+v", end)
	}
}
