package config

import (
	"log"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	App     AppConfig
	Speech  SpeechConfig
	Reveal  RevealConfig
	Tenant  TenantConfig
	Store   StoreConfig
	TTS     TTSConfig
}

type AppConfig struct {
	Port               string
	Environment        string
	LogFilePath        string
	CorsAllowedOrigins string
	NatsURL            string
	RedisURL           string
}

type SpeechConfig struct {
	// BackendURL is the STT/AI websocket endpoint (one channel per cycle).
	BackendURL string
	SampleRate int
	Channels   int
	FrameMs    int
	// Language hint sent in the hello handshake; empty means auto-detect
	// from the last finalized utterance.
	Language string

	KeepaliveInterval time.Duration
	FinalWaitTimeout  time.Duration
	ReplyWaitTimeout  time.Duration
}

type RevealConfig struct {
	WarmUp       time.Duration
	MinStep      time.Duration
	FallbackStep time.Duration
	StartPack    int
	EndGrace     time.Duration
}

type TenantConfig struct {
	Tenant  string
	Branch  string
	Channel string
	// MenuBaseURL is the catalog fetch API of the storefront backend.
	MenuBaseURL string
}

type StoreConfig struct {
	// Connection is the Postgres DSN for the transcript archive.
	Connection string
}

type TTSConfig struct {
	Provider string // "azure" or "noop"
	Key      string
	Region   string
	Voice    string
}

func Load() *Config {
	if err := godotenv.Load(); err != nil {
		log.Println("Note: .env file not found, usage system environment")
	}

	return &Config{
		App: AppConfig{
			Port:               getEnv("APP_PORT", "7071"),
			Environment:        getEnv("GO_ENV", "development"),
			LogFilePath:        getEnv("LOG_FILE_PATH", "app.log"),
			CorsAllowedOrigins: getEnv("CORS_ALLOWED_ORIGINS", "http://localhost:5173"),
			NatsURL:            getEnv("NATS_URL", "nats://localhost:4222"),
			RedisURL:           getEnv("REDIS_URL", "redis://localhost:6379"),
		},
		Speech: SpeechConfig{
			BackendURL:        getEnv("SPEECH_BACKEND_URL", "ws://localhost:8091/ws"),
			SampleRate:        getEnvAsInt("AUDIO_SAMPLE_RATE", 16000),
			Channels:          getEnvAsInt("AUDIO_CHANNELS", 1),
			FrameMs:           getEnvAsInt("AUDIO_FRAME_MS", 20),
			Language:          getEnv("SPEECH_LANG", ""),
			KeepaliveInterval: getEnvAsDuration("SPEECH_KEEPALIVE_MS", 15000),
			FinalWaitTimeout:  getEnvAsDuration("FINAL_WAIT_TIMEOUT_MS", 8000),
			ReplyWaitTimeout:  getEnvAsDuration("REPLY_WAIT_TIMEOUT_MS", 8000),
		},
		Reveal: RevealConfig{
			WarmUp:       getEnvAsDuration("REVEAL_WARMUP_MS", 120),
			MinStep:      getEnvAsDuration("REVEAL_MIN_STEP_MS", 80),
			FallbackStep: getEnvAsDuration("REVEAL_FALLBACK_STEP_MS", 120),
			StartPack:    getEnvAsInt("REVEAL_START_PACK", 3),
			EndGrace:     getEnvAsDuration("REVEAL_END_GRACE_MS", 250),
		},
		Tenant: TenantConfig{
			Tenant:      getEnv("TENANT_ID", "qravy"),
			Branch:      getEnv("BRANCH_ID", "main"),
			Channel:     getEnv("ORDER_CHANNEL", "kiosk"),
			MenuBaseURL: getEnv("MENU_BASE_URL", "http://localhost:3000"),
		},
		Store: StoreConfig{
			Connection: getEnv("DB_CONNECTION_STRING", ""),
		},
		TTS: TTSConfig{
			Provider: getEnv("TTS_PROVIDER", "azure"),
			Key:      getEnv("TTS_API_KEY", ""),
			Region:   getEnv("TTS_REGION", "eastus"),
			Voice:    getEnv("TTS_VOICE", "en-US-JennyNeural"),
		},
	}
}

func getEnv(key, fallback string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return fallback
}

func getEnvAsInt(key string, fallback int) int {
	strValue := getEnv(key, "")
	if value, err := strconv.Atoi(strValue); err == nil {
		return value
	}
	return fallback
}

func getEnvAsDuration(key string, fallbackMs int) time.Duration {
	return time.Duration(getEnvAsInt(key, fallbackMs)) * time.Millisecond
}
