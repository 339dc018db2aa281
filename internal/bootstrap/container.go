package bootstrap

import (
	"context"
	"log"
	"time"

	"ai-waiter-service/internal/config"
	"ai-waiter-service/internal/controller"
	"ai-waiter-service/internal/handler"
	"ai-waiter-service/internal/pkg/logger"
	"ai-waiter-service/internal/repository/contract"
	"ai-waiter-service/internal/repository/implementation"
	"ai-waiter-service/internal/repository/memory"
	"ai-waiter-service/internal/service"
	"ai-waiter-service/internal/websocket"
	"ai-waiter-service/pkg/cart"
	"ai-waiter-service/pkg/conversation"
	"ai-waiter-service/pkg/menu"
	"ai-waiter-service/pkg/voice/capture"
	"ai-waiter-service/pkg/voice/reveal"
	"ai-waiter-service/pkg/voice/synth"
	"ai-waiter-service/pkg/voice/transport"

	pktNats "ai-waiter-service/pkg/nats"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"
)

const transcriptTopic = "voice.transcripts"

type Container struct {
	// Controllers
	VoiceController controller.IVoiceController

	// Background services (exposed for main.go to run)
	VoiceService    service.IVoiceSessionService
	ArchiverService service.IArchiverService
	Catalog         *menu.Catalog
	CatalogFetcher  *menu.Fetcher
	SpeechEngine    *synth.Engine

	// WebSockets
	StreamHandler *handler.StreamHandler
	WebSocketHub  *websocket.Hub
}

func NewContainer(db *gorm.DB, cfg *config.Config) *Container {
	// 1. Core facades
	sysLogger := logger.NewZapLogger(cfg.App.LogFilePath, cfg.App.Environment == "production")

	// 2. Event bus
	watermillLogger := watermill.NewStdLogger(false, false)
	pubSub := gochannel.NewGoChannel(
		gochannel.Config{},
		watermillLogger,
	)

	// 2.5 Infrastructure
	// NATS
	natsPub, err := pktNats.NewPublisher(cfg.App.NatsURL)
	if err != nil {
		log.Printf("[WARN] Failed to connect to NATS Publisher: %v", err)
	}

	// Redis
	opt, err := redis.ParseURL(cfg.App.RedisURL)
	if err != nil {
		log.Printf("[WARN] Failed to parse Redis URL: %v. Using direct Addr", err)
		opt = &redis.Options{
			Addr: cfg.App.RedisURL,
		}
	}
	rdb := redis.NewClient(opt)

	var snapshots cart.SnapshotStore = cart.NoopStore{}
	if _, err := rdb.Ping(context.Background()).Result(); err != nil {
		log.Printf("[WARN] Failed to connect to Redis, cart snapshots disabled: %v", err)
	} else {
		snapshots = cart.NewRedisStore(rdb, 24*time.Hour)
	}

	// WebSocket hub for UI streams
	wsLogger := logger.NewIsolatedLogger("logs/stream.log")
	wsHub := websocket.NewHub(wsLogger)
	go wsHub.Run()

	// 3. Catalog
	catalog := menu.NewCatalog()
	fetcher := menu.NewFetcher(cfg.Tenant.MenuBaseURL, cfg.Tenant.Tenant, cfg.Tenant.Branch, sysLogger)

	// 4. Voice pipeline
	var synthesizer synth.Synthesizer
	if cfg.TTS.Provider == "azure" && cfg.TTS.Key != "" {
		synthesizer = synth.NewAzureSynthesizer(cfg.TTS.Key, cfg.TTS.Region, cfg.Speech.Language)
	} else {
		log.Printf("[WARN] TTS credentials missing, using silent synthesizer")
		synthesizer = synth.NewNoopSynthesizer()
	}

	var sink synth.AudioSink
	sink, err = synth.NewOtoSink(cfg.Speech.SampleRate)
	if err != nil {
		log.Printf("[WARN] Audio output unavailable: %v", err)
		sink = synth.DiscardSink{}
	}
	speechEngine := synth.NewEngine(synthesizer, sink, cfg.TTS.Voice, sysLogger)

	tr := transport.NewTransport(cfg.Speech, sysLogger)
	mic := capture.NewMalgoSource(cfg.Speech.SampleRate, cfg.Speech.Channels)
	pipeline := capture.NewPipeline(mic, cfg.Speech, sysLogger)

	convoStore := conversation.NewStore()
	cartEngine := cart.NewEngine(sysLogger)
	sessionRepo := memory.NewSessionRepository()

	// 5. Persistence
	var transcriptRepo contract.TranscriptRepository
	if db != nil {
		transcriptRepo = implementation.NewTranscriptRepository(db)
	}

	// 6. Services
	publisherService := service.NewPublisherService(transcriptTopic, pubSub)
	archiverService := service.NewArchiverService(pubSub, transcriptTopic, transcriptRepo, natsPub, sysLogger)

	voiceService := service.NewVoiceSessionService(
		cfg,
		sysLogger,
		tr,
		pipeline,
		speechEngine,
		catalog,
		convoStore,
		cartEngine,
		snapshots,
		sessionRepo,
		wsHub,
		publisherService,
		transcriptRepo,
		natsPub,
	)

	// The reveal scheduler watches the speech engine and feeds the service.
	revealScheduler := reveal.NewScheduler(cfg.Reveal, voiceService, sysLogger)
	speechEngine.Subscribe(revealScheduler)

	// 7. Controllers & handlers
	voiceController := controller.NewVoiceController(voiceService)
	streamHandler := handler.NewStreamHandler(voiceService, wsHub, wsLogger)

	return &Container{
		VoiceController: voiceController,
		VoiceService:    voiceService,
		ArchiverService: archiverService,
		Catalog:         catalog,
		CatalogFetcher:  fetcher,
		SpeechEngine:    speechEngine,
		StreamHandler:   streamHandler,
		WebSocketHub:    wsHub,
	}
}
