package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"

	"github.com/kakusiA/discord-bot-v1/internal/tts"
)

type Config struct {
	// Discord
	DiscordToken   string
	CommandPrefix  string
	TTSChannel     string
	MeetingChannel string

	// Storage
	DataDir         string
	LanguageStore   string // "json" or "badger"
	DefaultLanguage string

	// Speech
	FFmpegPath        string
	SynthTimeout      time.Duration
	MaxParallelSynth  int
	PurgeOnDisconnect bool
	SpeakChatReplies  bool

	// LLM
	LLMBackend     string // "openai" or "gemini"
	OpenAIAPIKey   string
	OpenAIModel    string
	GenAIAPIKey    string
	GenAIModel     string
	LLMMaxTokens   int
	LLMTemperature float64

	// YouTube
	YouTubeAPIKey string

	// Network
	SocksProxy string

	// Logging
	LogLevel string
}

// Load reads envFile when present, then the process environment.
func Load(envFile string) (*Config, error) {
	if err := godotenv.Load(envFile); err != nil {
		log.Warn().Err(err).Str("file", envFile).Msg("No .env file found, using environment variables only")
	}

	cfg := &Config{
		// Discord
		DiscordToken:   getEnvWithFallback("DISCORD_TOKEN", "discord_token"),
		CommandPrefix:  getEnvOrDefault("COMMAND_PREFIX", "/"),
		TTSChannel:     getEnvOrDefault("TTS_CHANNEL", "tts"),
		MeetingChannel: getEnvOrDefault("MEETING_CHANNEL", "meeting"),

		// Storage
		DataDir:         getEnvOrDefault("DATA_DIR", "./data"),
		LanguageStore:   getEnvOrDefault("LANGUAGE_STORE", "json"),
		DefaultLanguage: getEnvOrDefault("DEFAULT_LANGUAGE", "ko"),

		// Speech
		FFmpegPath:        os.Getenv("FFMPEG_PATH"),
		SynthTimeout:      time.Duration(getIntEnvOrDefault("SYNTH_TIMEOUT_SECONDS", 30)) * time.Second,
		MaxParallelSynth:  getIntEnvOrDefault("MAX_PARALLEL_SYNTH", 4),
		PurgeOnDisconnect: getBoolEnvOrDefault("PURGE_ON_DISCONNECT", true),
		SpeakChatReplies:  getBoolEnvOrDefault("SPEAK_CHAT_REPLIES", true),

		// LLM
		LLMBackend:     getEnvOrDefault("LLM_BACKEND", "openai"),
		OpenAIAPIKey:   os.Getenv("OPENAI_API_KEY"),
		OpenAIModel:    getEnvOrDefault("OPENAI_MODEL", "gpt-4o-mini"),
		GenAIAPIKey:    os.Getenv("GENAI_API_KEY"),
		GenAIModel:     getEnvOrDefault("GENAI_MODEL", "gemini-2.5-flash"),
		LLMMaxTokens:   getIntEnvOrDefault("LLM_MAX_TOKENS", 1000),
		LLMTemperature: getFloatEnvOrDefault("LLM_TEMPERATURE", 0.5),

		// YouTube
		YouTubeAPIKey: getEnvWithFallback("YOUTUBE_API_KEY", "youtube_key"),

		// Network
		SocksProxy: os.Getenv("SOCKS_PROXY"),

		// Logging
		LogLevel: getEnvOrDefault("LOG_LEVEL", "info"),
	}

	return cfg, cfg.validate()
}

func (c *Config) validate() error {
	if c.DiscordToken == "" {
		return fmt.Errorf("DISCORD_TOKEN is required")
	}

	if c.CommandPrefix == "" {
		return fmt.Errorf("COMMAND_PREFIX must not be empty")
	}

	if c.LanguageStore != "json" && c.LanguageStore != "badger" {
		return fmt.Errorf("LANGUAGE_STORE must be 'json' or 'badger'")
	}

	if _, ok := tts.Lookup(c.DefaultLanguage); !ok {
		return fmt.Errorf("DEFAULT_LANGUAGE %q is not a supported language code", c.DefaultLanguage)
	}

	switch c.LLMBackend {
	case "openai":
		if c.OpenAIAPIKey == "" {
			return fmt.Errorf("OPENAI_API_KEY is required when using openai backend")
		}
	case "gemini":
		if c.GenAIAPIKey == "" {
			return fmt.Errorf("GENAI_API_KEY is required when using gemini backend")
		}
	default:
		return fmt.Errorf("LLM_BACKEND must be 'openai' or 'gemini'")
	}

	if c.SynthTimeout <= 0 {
		return fmt.Errorf("SYNTH_TIMEOUT_SECONDS must be positive")
	}

	if c.MaxParallelSynth <= 0 {
		return fmt.Errorf("MAX_PARALLEL_SYNTH must be positive")
	}

	return nil
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvWithFallback also accepts the lowercase names older .env files use.
func getEnvWithFallback(key, legacy string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return os.Getenv(legacy)
}

func getIntEnvOrDefault(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

func getFloatEnvOrDefault(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if floatVal, err := strconv.ParseFloat(value, 64); err == nil {
			return floatVal
		}
	}
	return defaultValue
}

func getBoolEnvOrDefault(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolVal, err := strconv.ParseBool(value); err == nil {
			return boolVal
		}
	}
	return defaultValue
}
