package transport

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"

	"ai-waiter-service/internal/config"
	"ai-waiter-service/internal/pkg/logger"
)

var (
	// ErrSuperseded means the caller holds a generation that is no longer
	// current; the frame was dropped.
	ErrSuperseded = errors.New("channel generation superseded")
	// ErrNotOpen means there is no live channel.
	ErrNotOpen = errors.New("channel not open")
)

// channel is one websocket connection to the speech backend. It lives for
// a single capture cycle.
type channel struct {
	conn      *websocket.Conn
	gen       uint64
	writeMu   sync.Mutex
	closeOnce sync.Once
	done      chan struct{}
}

func (c *channel) close() {
	c.closeOnce.Do(func() {
		close(c.done)
		c.conn.Close()
	})
}

func (c *channel) writeJSON(v interface{}) error {
	b, err := json.Marshal(v)
	if err != nil {
		return err
	}
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	return c.conn.WriteMessage(websocket.TextMessage, b)
}

func (c *channel) writeBinary(b []byte) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	return c.conn.WriteMessage(websocket.BinaryMessage, b)
}

// Transport manages the duplex channel to the speech backend. Each capture
// cycle opens a fresh channel under a new generation; the generation
// counter is the only cancellation primitive. Writes guarded by a stale
// generation are dropped, and inbound events carry their generation so
// consumers can do the same.
type Transport struct {
	cfg    config.SpeechConfig
	log    logger.ILogger
	dialer *websocket.Dialer

	gen    atomic.Uint64
	mu     sync.Mutex
	active *channel
	events chan Event
}

func NewTransport(cfg config.SpeechConfig, log logger.ILogger) *Transport {
	return &Transport{
		cfg:    cfg,
		log:    log,
		dialer: &websocket.Dialer{HandshakeTimeout: 10 * time.Second},
		events: make(chan Event, 64),
	}
}

// Events is the stream of decoded inbound frames across all generations.
func (t *Transport) Events() <-chan Event { return t.events }

// Current reports the live generation; 0 means nothing was ever opened.
func (t *Transport) Current() uint64 { return t.gen.Load() }

// Open supersedes any previous channel, dials the backend and sends the
// hello frame. The returned generation must accompany every subsequent
// write for this cycle.
func (t *Transport) Open(ctx context.Context, hello Hello) (uint64, error) {
	gen := t.gen.Add(1)

	t.mu.Lock()
	if prev := t.active; prev != nil {
		prev.close()
		t.active = nil
	}
	t.mu.Unlock()

	conn, _, err := t.dialer.DialContext(ctx, t.cfg.BackendURL, nil)
	if err != nil {
		return 0, err
	}
	ch := &channel{conn: conn, gen: gen, done: make(chan struct{})}

	hello.Type = "hello"
	if err := ch.writeJSON(hello); err != nil {
		ch.close()
		return 0, err
	}

	t.mu.Lock()
	if t.gen.Load() != gen {
		t.mu.Unlock()
		ch.close()
		return 0, ErrSuperseded
	}
	t.active = ch
	t.mu.Unlock()

	go t.readLoop(ch)
	go t.keepalive(ch)

	t.log.Info("transport", "channel opened", map[string]interface{}{
		"generation": gen, "session": hello.SessionID,
	})
	return gen, nil
}

func (t *Transport) channelFor(gen uint64) (*channel, error) {
	if t.gen.Load() != gen {
		return nil, ErrSuperseded
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.active == nil || t.active.gen != gen {
		return nil, ErrNotOpen
	}
	return t.active, nil
}

// SendAudioFrame ships one raw PCM frame. Frames holding a superseded
// generation are dropped without error; the cycle that queued them is gone.
func (t *Transport) SendAudioFrame(gen uint64, pcm []byte) error {
	ch, err := t.channelFor(gen)
	if err != nil {
		if errors.Is(err, ErrSuperseded) {
			return nil
		}
		return err
	}
	return ch.writeBinary(pcm)
}

// SendEnd tells the backend no more audio is coming for this cycle.
func (t *Transport) SendEnd(gen uint64, sessionID string) error {
	ch, err := t.channelFor(gen)
	if err != nil {
		return err
	}
	return ch.writeJSON(endMessage{Type: "end", SessionID: sessionID})
}

// Close tears down the channel for gen if it is still the live one.
func (t *Transport) Close(gen uint64) {
	t.mu.Lock()
	ch := t.active
	if ch != nil && ch.gen == gen {
		t.active = nil
	} else {
		ch = nil
	}
	t.mu.Unlock()
	if ch != nil {
		ch.close()
	}
}

// Shutdown closes whatever channel is live.
func (t *Transport) Shutdown() {
	t.Close(t.gen.Load())
}

func (t *Transport) readLoop(ch *channel) {
	defer ch.close()
	for {
		mt, data, err := ch.conn.ReadMessage()
		if err != nil {
			// Only the live generation gets to report a transport error;
			// a superseded channel dying is routine teardown.
			if t.gen.Load() == ch.gen {
				t.emit(Event{Kind: KindClosed, Generation: ch.gen, Err: err})
			}
			return
		}
		if mt != websocket.TextMessage {
			continue
		}
		ev, ok := decodeFrame(data, ch.gen)
		if !ok {
			continue
		}
		t.emit(ev)
	}
}

func (t *Transport) emit(ev Event) {
	select {
	case t.events <- ev:
	default:
		t.log.Warn("transport", "event buffer full, dropping frame", map[string]interface{}{
			"kind": string(ev.Kind), "generation": ev.Generation,
		})
	}
}

func (t *Transport) keepalive(ch *channel) {
	tick := time.NewTicker(t.cfg.KeepaliveInterval)
	defer tick.Stop()
	for {
		select {
		case <-ch.done:
			return
		case <-tick.C:
			if t.gen.Load() != ch.gen {
				return
			}
			if err := ch.writeJSON(pingMessage{Type: "ping"}); err != nil {
				return
			}
		}
	}
}
