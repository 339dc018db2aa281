// FILE: internal/service/voice_session_service.go
package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"ai-waiter-service/internal/config"
	"ai-waiter-service/internal/dto"
	"ai-waiter-service/internal/entity"
	"ai-waiter-service/internal/pkg/logger"
	"ai-waiter-service/internal/repository/contract"
	"ai-waiter-service/internal/repository/memory"
	"ai-waiter-service/internal/websocket"
	"ai-waiter-service/pkg/cart"
	"ai-waiter-service/pkg/conversation"
	"ai-waiter-service/pkg/events"
	"ai-waiter-service/pkg/menu"
	pktNats "ai-waiter-service/pkg/nats"
	"ai-waiter-service/pkg/store"
	"ai-waiter-service/pkg/utils"
	"ai-waiter-service/pkg/voice/capture"
	"ai-waiter-service/pkg/voice/intent"
	"ai-waiter-service/pkg/voice/synth"
	"ai-waiter-service/pkg/voice/transport"

	"github.com/google/uuid"
)

var ErrSessionNotFound = errors.New("session not found")

type IVoiceSessionService interface {
	CreateSession(ctx context.Context, req dto.CreateSessionRequest) (*dto.SessionResponse, error)
	GetSession(sessionID string) (*dto.SessionResponse, error)
	StartCapture(ctx context.Context, sessionID string) error
	StopCapture(ctx context.Context, sessionID string) error
	EndSession(ctx context.Context, sessionID string) error
	Conversation(sessionID string) (*dto.ConversationResponse, error)
	CartState(sessionID string) (*dto.CartResponse, error)
	Transcript(ctx context.Context, sessionID string) (*dto.TranscriptResponse, error)

	// Run drains transport events until ctx is cancelled.
	Run(ctx context.Context)

	// Reveal sink: called by the word-reveal scheduler as the assistant's
	// speech plays out.
	RevealWord(token string)
	Finalize()
}

// sessionRuntime is the per-session voice state that does not belong in
// the registry snapshot: the UI router, the cart and the cycle bookkeeping.
type sessionRuntime struct {
	cart      *cart.Cart
	router    *intent.Router
	lastFinal string
	lastMeta  *transport.ReplyMeta
}

type voiceSessionService struct {
	cfg       *config.Config
	logger    logger.ILogger
	transport *transport.Transport
	pipeline  *capture.Pipeline
	speech    *synth.Engine
	catalog   *menu.Catalog
	convo     *conversation.Store
	cartEng   *cart.Engine
	snapshots cart.SnapshotStore
	sessions  *memory.SessionRepository
	hub       *websocket.Hub
	publisher IPublisherService
	transcriptRepo contract.TranscriptRepository
	natsPub   *pktNats.Publisher

	mu       sync.Mutex
	runtimes map[string]*sessionRuntime
	// activeID is the session that owns the microphone; one capture cycle
	// at a time, matching the single physical device.
	activeID  string
	activeGen uint64
	// lastActive keeps the reveal target once a reply closes the cycle;
	// speech outlives the channel that delivered it.
	lastActive string
}

func NewVoiceSessionService(
	cfg *config.Config,
	log logger.ILogger,
	tr *transport.Transport,
	pipeline *capture.Pipeline,
	speech *synth.Engine,
	catalog *menu.Catalog,
	convo *conversation.Store,
	cartEng *cart.Engine,
	snapshots cart.SnapshotStore,
	sessions *memory.SessionRepository,
	hub *websocket.Hub,
	publisher IPublisherService,
	transcriptRepo contract.TranscriptRepository,
	natsPub *pktNats.Publisher,
) IVoiceSessionService {
	return &voiceSessionService{
		cfg:       cfg,
		logger:    log,
		transport: tr,
		pipeline:  pipeline,
		speech:    speech,
		catalog:   catalog,
		convo:     convo,
		cartEng:   cartEng,
		snapshots: snapshots,
		sessions:  sessions,
		hub:       hub,
		publisher: publisher,
		transcriptRepo: transcriptRepo,
		natsPub:   natsPub,
		runtimes:  make(map[string]*sessionRuntime),
	}
}

// ---------------------------------------------------------------------------
// Session lifecycle

func (vs *voiceSessionService) CreateSession(ctx context.Context, req dto.CreateSessionRequest) (*dto.SessionResponse, error) {
	sess := &store.Session{
		ID:        uuid.NewString(),
		UserID:    req.UserId,
		Lang:      req.Lang,
		Timezone:  req.Timezone,
		UIContext: string(intent.ContextHome),
		Status:    store.StatusIdle,
		CreatedAt: time.Now(),
	}
	vs.sessions.Save(sess)

	rt := &sessionRuntime{
		cart:   cart.New(),
		router: intent.NewRouter(),
	}
	vs.mu.Lock()
	vs.runtimes[sess.ID] = rt
	vs.mu.Unlock()

	// Resume a cart left over from a previous visit, if one was persisted.
	if lines, err := vs.snapshots.Load(ctx, vs.cfg.Tenant.Tenant, sess.ID); err == nil && len(lines) > 0 {
		rt.cart.Replace(lines)
	}

	vs.logger.Info("VoiceSession", "session created", map[string]interface{}{
		"session_id": sess.ID, "user_id": sess.UserID,
	})
	return vs.toSessionResponse(sess), nil
}

func (vs *voiceSessionService) GetSession(sessionID string) (*dto.SessionResponse, error) {
	sess, ok := vs.sessions.Get(sessionID)
	if !ok {
		return nil, ErrSessionNotFound
	}
	return vs.toSessionResponse(sess), nil
}

func (vs *voiceSessionService) toSessionResponse(sess *store.Session) *dto.SessionResponse {
	return &dto.SessionResponse{
		SessionId: sess.ID,
		UIContext: sess.UIContext,
		Status:    sess.Status,
		Lang:      sess.Lang,
	}
}

func (vs *voiceSessionService) runtime(sessionID string) (*sessionRuntime, *store.Session, error) {
	sess, ok := vs.sessions.Get(sessionID)
	if !ok {
		return nil, nil, ErrSessionNotFound
	}
	vs.mu.Lock()
	rt, ok := vs.runtimes[sessionID]
	if !ok {
		rt = &sessionRuntime{cart: cart.New(), router: intent.NewRouter()}
		vs.runtimes[sessionID] = rt
	}
	vs.mu.Unlock()
	return rt, sess, nil
}

// ---------------------------------------------------------------------------
// Capture cycle

// StartCapture opens a fresh channel generation, ducks playback and starts
// streaming microphone frames. Calling it while this session is already
// capturing is a no-op.
func (vs *voiceSessionService) StartCapture(ctx context.Context, sessionID string) error {
	rt, sess, err := vs.runtime(sessionID)
	if err != nil {
		return err
	}

	vs.mu.Lock()
	if vs.activeID == sessionID && sess.Status == store.StatusListening {
		vs.mu.Unlock()
		return nil
	}
	if vs.activeID != "" && vs.activeID != sessionID {
		vs.mu.Unlock()
		return fmt.Errorf("microphone busy with session %s", vs.activeID)
	}
	vs.mu.Unlock()

	vs.speech.Duck()

	hello := transport.Hello{
		SessionID:  sessionID,
		UserID:     sess.UserID,
		SampleRate: vs.cfg.Speech.SampleRate,
		Channels:   vs.cfg.Speech.Channels,
		Lang:       vs.sessionLang(sess, rt),
		Tenant:     vs.cfg.Tenant.Tenant,
		Branch:     vs.cfg.Tenant.Branch,
		Channel:    vs.cfg.Tenant.Channel,
	}
	hello.Timezone, hello.LocalHour = vs.localClock(sess)

	gen, err := vs.transport.Open(ctx, hello)
	if err != nil {
		vs.speech.Unduck()
		return fmt.Errorf("open channel: %w", err)
	}

	err = vs.pipeline.Start(ctx, func(frame []byte) {
		if sendErr := vs.transport.SendAudioFrame(gen, frame); sendErr != nil {
			vs.logger.Warn("VoiceSession", "audio frame send failed", map[string]interface{}{"error": sendErr.Error()})
		}
	})
	if err != nil {
		// Device failure aborts the whole cycle, not just the capture half.
		vs.transport.Close(gen)
		vs.speech.Unduck()
		vs.setStatus(sess, store.StatusIdle)
		return fmt.Errorf("start capture: %w", err)
	}

	vs.mu.Lock()
	vs.activeID = sessionID
	vs.activeGen = gen
	vs.lastActive = sessionID
	vs.mu.Unlock()

	vs.setStatus(sess, store.StatusListening)
	return nil
}

// StopCapture releases the microphone, completes the end handshake and
// arms the reply timeout. The reply itself arrives on the event loop.
func (vs *voiceSessionService) StopCapture(ctx context.Context, sessionID string) error {
	_, sess, err := vs.runtime(sessionID)
	if err != nil {
		return err
	}

	vs.mu.Lock()
	if vs.activeID != sessionID {
		vs.mu.Unlock()
		return nil
	}
	gen := vs.activeGen
	vs.mu.Unlock()

	stopErr := vs.pipeline.Stop(ctx, func() error {
		return vs.transport.SendEnd(gen, sessionID)
	})
	vs.speech.Unduck()
	if stopErr != nil {
		vs.hardReset(sessionID, "end handshake failed: "+stopErr.Error())
		return stopErr
	}

	vs.setStatus(sess, store.StatusThinking)
	vs.armReplyTimeout(sessionID, gen)
	return nil
}

func (vs *voiceSessionService) EndSession(ctx context.Context, sessionID string) error {
	rt, sess, err := vs.runtime(sessionID)
	if err != nil {
		return err
	}

	vs.mu.Lock()
	if vs.activeID == sessionID {
		gen := vs.activeGen
		vs.activeID = ""
		vs.mu.Unlock()
		vs.pipeline.Abort()
		vs.transport.Close(gen)
	} else {
		vs.mu.Unlock()
	}
	vs.speech.Stop()

	if err := vs.snapshots.Save(ctx, vs.cfg.Tenant.Tenant, sessionID, rt.cart.Lines()); err != nil {
		vs.logger.Warn("VoiceSession", "cart snapshot failed", map[string]interface{}{"error": err.Error()})
	}

	vs.convo.Reset(sessionID)
	vs.mu.Lock()
	delete(vs.runtimes, sessionID)
	if vs.lastActive == sessionID {
		vs.lastActive = ""
	}
	vs.mu.Unlock()
	vs.sessions.Delete(sessionID)

	vs.logger.Info("VoiceSession", "session ended", map[string]interface{}{"session_id": sess.ID})
	return nil
}

// armReplyTimeout degrades the cycle if no reply lands in time. The timer
// is generation-guarded: a newer cycle makes it a no-op.
func (vs *voiceSessionService) armReplyTimeout(sessionID string, gen uint64) {
	time.AfterFunc(vs.cfg.Speech.ReplyWaitTimeout, func() {
		vs.mu.Lock()
		stale := vs.activeID != sessionID || vs.activeGen != gen
		vs.mu.Unlock()
		if stale || vs.transport.Current() != gen {
			return
		}
		sess, ok := vs.sessions.Get(sessionID)
		if !ok || sess.Status != store.StatusThinking {
			return
		}
		vs.logger.Warn("VoiceSession", "reply timeout, closing cycle", map[string]interface{}{
			"session_id": sessionID, "generation": gen,
		})
		vs.closeCycle(sessionID, gen)
		vs.setStatus(sess, store.StatusIdle)
	})
}

func (vs *voiceSessionService) closeCycle(sessionID string, gen uint64) {
	vs.transport.Close(gen)
	vs.mu.Lock()
	if vs.activeID == sessionID && vs.activeGen == gen {
		vs.activeID = ""
	}
	vs.mu.Unlock()
}

// hardReset tears down audio, channel and UI status together. Partial
// cleanup risks a stuck microphone, so everything goes.
func (vs *voiceSessionService) hardReset(sessionID, reason string) {
	vs.logger.Error("VoiceSession", "hard reset", map[string]interface{}{
		"session_id": sessionID, "reason": reason,
	})

	vs.pipeline.Abort()
	vs.speech.Stop()

	vs.mu.Lock()
	gen := vs.activeGen
	if vs.activeID == sessionID {
		vs.activeID = ""
	}
	vs.mu.Unlock()
	vs.transport.Close(gen)

	if sess, ok := vs.sessions.Get(sessionID); ok {
		vs.setStatus(sess, store.StatusIdle)
	}
	vs.hub.Send(sessionID, "status", map[string]interface{}{
		"status": store.StatusIdle, "detail": reason,
	})

	if vs.natsPub != nil {
		evt := events.NewSessionReset(vs.cfg.Tenant.Tenant, sessionID, reason)
		if err := vs.natsPub.Publish(context.Background(), evt); err != nil {
			vs.logger.Warn("VoiceSession", "nats publish failed", map[string]interface{}{"error": err.Error()})
		}
	}
}

func (vs *voiceSessionService) setStatus(sess *store.Session, status string) {
	sess.Status = status
	vs.sessions.Save(sess)
	vs.hub.Send(sess.ID, "status", map[string]interface{}{"status": status})
}

func (vs *voiceSessionService) sessionLang(sess *store.Session, rt *sessionRuntime) string {
	if sess.Lang != "" {
		return sess.Lang
	}
	if vs.cfg.Speech.Language != "" {
		return vs.cfg.Speech.Language
	}
	if rt.lastFinal != "" {
		return utils.GuessLanguage(rt.lastFinal)
	}
	return "en"
}

func (vs *voiceSessionService) localClock(sess *store.Session) (string, int) {
	tz := sess.Timezone
	if tz == "" {
		tz = "Asia/Dhaka"
	}
	loc, err := time.LoadLocation(tz)
	if err != nil {
		loc = time.Local
	}
	return tz, time.Now().In(loc).Hour()
}

// ---------------------------------------------------------------------------
// Event loop

func (vs *voiceSessionService) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case ev := <-vs.transport.Events():
			vs.handleEvent(ctx, ev)
		}
	}
}

func (vs *voiceSessionService) handleEvent(ctx context.Context, ev transport.Event) {
	vs.mu.Lock()
	sessionID := vs.activeID
	gen := vs.activeGen
	vs.mu.Unlock()

	// Events from a superseded generation are orphans; they executed but
	// nothing listens anymore.
	if sessionID == "" || ev.Generation != gen {
		return
	}
	rt, sess, err := vs.runtime(sessionID)
	if err != nil {
		return
	}

	switch ev.Kind {
	case transport.KindPartial:
		vs.convo.SetLive(sessionID, ev.Text)
		vs.hub.Send(sessionID, "stt_partial", map[string]interface{}{"text": ev.Text})

	case transport.KindFinal:
		vs.onFinalTranscript(ctx, sess, rt, ev.Text)

	case transport.KindReplyPending:
		vs.setStatus(sess, store.StatusThinking)

	case transport.KindReply:
		vs.onReply(ctx, sess, rt, ev)

	case transport.KindReplyError:
		vs.logger.Warn("VoiceSession", "reply error from backend", map[string]interface{}{
			"session_id": sessionID, "message": ev.Text,
		})
		vs.closeCycle(sessionID, gen)
		vs.setStatus(sess, store.StatusIdle)
		vs.hub.Send(sessionID, "status", map[string]interface{}{
			"status": store.StatusIdle, "detail": "assistant unavailable",
		})

	case transport.KindClosed:
		reason := "channel closed"
		if ev.Err != nil {
			reason = ev.Err.Error()
		}
		vs.hardReset(sessionID, reason)
	}
}

func (vs *voiceSessionService) onFinalTranscript(ctx context.Context, sess *store.Session, rt *sessionRuntime, text string) {
	rt.lastFinal = text
	vs.pipeline.NotifyFinal()
	// The final transcript supersedes whatever partial is still in the
	// live buffer.
	vs.convo.SetLive(sess.ID, "")
	vs.convo.AppendFinal(sess.ID, text)
	vs.logger.Debug("VoiceSession", "final transcript", map[string]interface{}{
		"session_id": sess.ID, "text": utils.Clamp(text, 120),
	})
	vs.hub.Send(sess.ID, "stt_final", map[string]interface{}{"text": text})

	vs.publishTranscript(ctx, sess, entity.RoleGuest, text, "", utils.GuessLanguage(text))
}

func (vs *voiceSessionService) onReply(ctx context.Context, sess *store.Session, rt *sessionRuntime, ev transport.Event) {
	meta := ev.Meta
	if meta == nil {
		meta = &transport.ReplyMeta{}
	}
	rt.lastMeta = meta

	// 1. Intent -> UI context.
	classified := intent.Classify(meta.Intent, rt.lastFinal)
	if meta.Decision != nil && meta.Decision.ForceNavigate != "" {
		if target, ok := intent.ParseContext(meta.Decision.ForceNavigate); ok {
			rt.router.ForceNavigate(target)
		}
	} else {
		rt.router.Apply(classified)
	}
	sess.UIContext = string(rt.router.Current())
	sess.Lang = vs.replyLang(sess, meta)
	vs.sessions.Save(sess)
	vs.hub.Send(sess.ID, "ui_context", map[string]interface{}{
		"context": sess.UIContext, "intent": string(classified),
	})

	// 2. Cart mutations.
	if meta.ClearCart || len(meta.CartOps) > 0 {
		vs.cartEng.Apply(rt.cart, vs.catalog.Index(), meta.ClearCart, meta.CartOps)
		vs.pushCartState(ctx, sess.ID, rt)
	}

	// 3. Suggestions and upsell are pass-through UI payloads.
	if len(meta.Suggestions) > 0 {
		vs.hub.Send(sess.ID, "suggestions", meta.Suggestions)
	}
	if len(meta.Upsell) > 0 {
		vs.hub.Send(sess.ID, "upsell", meta.Upsell)
	}

	// 4. Speak. The reveal scheduler mirrors the words into the live
	// buffer as audio plays.
	if ev.Text != "" {
		vs.setStatus(sess, store.StatusSpeaking)
		go vs.watchSpeech(sess.ID, vs.speech.Speak(ev.Text))
		vs.publishTranscript(ctx, sess, entity.RoleAssistant, ev.Text, string(classified), meta.Language)
	} else {
		vs.setStatus(sess, store.StatusIdle)
	}

	// 5. A reply is terminal for its cycle.
	vs.closeCycle(sess.ID, ev.Generation)
}

// watchSpeech settles a speak promise. A synthesis failure produces no
// word or end events, so the reveal scheduler never finalizes; the session
// would stay speaking forever unless the failure path finalizes it here.
func (vs *voiceSessionService) watchSpeech(sessionID string, done <-chan error) {
	err := <-done
	if err == nil || errors.Is(err, synth.ErrStopped) {
		return
	}
	vs.logger.Warn("VoiceSession", "speech playback failed", map[string]interface{}{
		"session_id": sessionID, "error": err.Error(),
	})
	vs.convo.Finalize(sessionID)
	vs.hub.Send(sessionID, "reveal_final", nil)
	if sess, ok := vs.sessions.Get(sessionID); ok && sess.Status == store.StatusSpeaking {
		vs.setStatus(sess, store.StatusIdle)
	}
}

func (vs *voiceSessionService) replyLang(sess *store.Session, meta *transport.ReplyMeta) string {
	if meta.Language != "" {
		return meta.Language
	}
	return sess.Lang
}

func (vs *voiceSessionService) pushCartState(ctx context.Context, sessionID string, rt *sessionRuntime) {
	lines := rt.cart.Lines()
	vs.hub.Send(sessionID, "cart_state", vs.toCartResponse(sessionID, lines, rt.cart.Total()))

	if err := vs.snapshots.Save(ctx, vs.cfg.Tenant.Tenant, sessionID, lines); err != nil {
		vs.logger.Warn("VoiceSession", "cart snapshot failed", map[string]interface{}{"error": err.Error()})
	}
	if vs.natsPub != nil {
		evt := events.NewCartUpdated(vs.cfg.Tenant.Tenant, sessionID, len(lines))
		if err := vs.natsPub.Publish(ctx, evt); err != nil {
			vs.logger.Warn("VoiceSession", "nats publish failed", map[string]interface{}{"error": err.Error()})
		}
	}
}

func (vs *voiceSessionService) publishTranscript(ctx context.Context, sess *store.Session, role, text, intentName, lang string) {
	payload, err := json.Marshal(dto.PublishTranscriptMessage{
		SessionId: sess.ID,
		UserId:    sess.UserID,
		Role:      role,
		Text:      text,
		Language:  lang,
		Intent:    intentName,
		Tenant:    vs.cfg.Tenant.Tenant,
		Branch:    vs.cfg.Tenant.Branch,
	})
	if err != nil {
		return
	}
	if err := vs.publisher.Publish(ctx, payload); err != nil {
		vs.logger.Warn("VoiceSession", "transcript publish failed", map[string]interface{}{"error": err.Error()})
	}
}

// ---------------------------------------------------------------------------
// Reveal sink

func (vs *voiceSessionService) RevealWord(token string) {
	vs.mu.Lock()
	sessionID := vs.revealTarget()
	vs.mu.Unlock()
	if sessionID == "" {
		return
	}
	vs.convo.AppendLive(sessionID, token)
	vs.hub.Send(sessionID, "reveal_word", map[string]interface{}{"token": token})
}

func (vs *voiceSessionService) Finalize() {
	vs.mu.Lock()
	sessionID := vs.revealTarget()
	vs.mu.Unlock()
	if sessionID == "" {
		return
	}
	vs.convo.Finalize(sessionID)
	vs.hub.Send(sessionID, "reveal_final", nil)

	if sess, ok := vs.sessions.Get(sessionID); ok && sess.Status == store.StatusSpeaking {
		vs.setStatus(sess, store.StatusIdle)
	}
}

// revealTarget is the session whose assistant speech is playing. Callers
// hold vs.mu.
func (vs *voiceSessionService) revealTarget() string {
	if vs.activeID != "" {
		return vs.activeID
	}
	return vs.lastActive
}

// ---------------------------------------------------------------------------
// Read models

func (vs *voiceSessionService) Conversation(sessionID string) (*dto.ConversationResponse, error) {
	if _, ok := vs.sessions.Get(sessionID); !ok {
		return nil, ErrSessionNotFound
	}
	state, _ := vs.convo.Snapshot(sessionID)
	return &dto.ConversationResponse{
		SessionId: sessionID,
		Final:     state.Final,
		Live:      state.Live,
	}, nil
}

func (vs *voiceSessionService) CartState(sessionID string) (*dto.CartResponse, error) {
	rt, _, err := vs.runtime(sessionID)
	if err != nil {
		return nil, err
	}
	return vs.toCartResponse(sessionID, rt.cart.Lines(), rt.cart.Total()), nil
}

func (vs *voiceSessionService) toCartResponse(sessionID string, lines []cart.Line, total float64) *dto.CartResponse {
	out := make([]dto.CartLineResponse, len(lines))
	for i, l := range lines {
		out[i] = dto.CartLineResponse{
			ItemId:    l.ItemID,
			Variation: l.Variation,
			Name:      l.Name,
			Quantity:  l.Quantity,
			UnitPrice: l.UnitPrice,
			Image:     l.Image,
			Notes:     l.Notes,
		}
	}
	return &dto.CartResponse{SessionId: sessionID, Lines: out, Total: total}
}

func (vs *voiceSessionService) Transcript(ctx context.Context, sessionID string) (*dto.TranscriptResponse, error) {
	if vs.transcriptRepo == nil {
		return &dto.TranscriptResponse{SessionId: sessionID}, nil
	}
	turns, err := vs.transcriptRepo.FindBySession(ctx, sessionID, 200)
	if err != nil {
		return nil, err
	}
	out := make([]dto.TranscriptTurnResponse, len(turns))
	for i, t := range turns {
		out[i] = dto.TranscriptTurnResponse{
			Role:      t.Role,
			Text:      t.Text,
			Language:  t.Language,
			Intent:    t.Intent,
			CreatedAt: t.CreatedAt.Format(time.RFC3339),
		}
	}
	return &dto.TranscriptResponse{SessionId: sessionID, Turns: out}, nil
}
