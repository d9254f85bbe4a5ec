package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

var configKeys = []string{
	"DISCORD_TOKEN", "discord_token", "COMMAND_PREFIX", "TTS_CHANNEL", "MEETING_CHANNEL",
	"DATA_DIR", "LANGUAGE_STORE", "DEFAULT_LANGUAGE", "FFMPEG_PATH",
	"SYNTH_TIMEOUT_SECONDS", "MAX_PARALLEL_SYNTH", "PURGE_ON_DISCONNECT", "SPEAK_CHAT_REPLIES",
	"LLM_BACKEND", "OPENAI_API_KEY", "OPENAI_MODEL", "GENAI_API_KEY", "GENAI_MODEL",
	"LLM_MAX_TOKENS", "LLM_TEMPERATURE", "YOUTUBE_API_KEY", "youtube_key", "SOCKS_PROXY", "LOG_LEVEL",
}

// clearEnv blanks every key Load reads so the host environment cannot leak in.
func clearEnv(t *testing.T) {
	t.Helper()
	for _, key := range configKeys {
		t.Setenv(key, "")
	}
}

func missingEnvFile(t *testing.T) string {
	return filepath.Join(t.TempDir(), "missing.env")
}

func TestLoadDefaults(t *testing.T) {
	clearEnv(t)
	t.Setenv("DISCORD_TOKEN", "token")
	t.Setenv("OPENAI_API_KEY", "sk-test")

	cfg, err := Load(missingEnvFile(t))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	if cfg.CommandPrefix != "/" || cfg.TTSChannel != "tts" || cfg.MeetingChannel != "meeting" {
		t.Fatalf("discord defaults = %q %q %q", cfg.CommandPrefix, cfg.TTSChannel, cfg.MeetingChannel)
	}
	if cfg.DefaultLanguage != "ko" || cfg.LanguageStore != "json" {
		t.Fatalf("storage defaults = %q %q", cfg.DefaultLanguage, cfg.LanguageStore)
	}
	if cfg.SynthTimeout != 30*time.Second || cfg.MaxParallelSynth != 4 || !cfg.PurgeOnDisconnect {
		t.Fatalf("speech defaults = %v %d %v", cfg.SynthTimeout, cfg.MaxParallelSynth, cfg.PurgeOnDisconnect)
	}
	if cfg.OpenAIModel != "gpt-4o-mini" || cfg.LLMMaxTokens != 1000 || cfg.LLMTemperature != 0.5 {
		t.Fatalf("llm defaults = %q %d %v", cfg.OpenAIModel, cfg.LLMMaxTokens, cfg.LLMTemperature)
	}
}

func TestLoadLegacyKeys(t *testing.T) {
	clearEnv(t)
	t.Setenv("discord_token", "legacy-token")
	t.Setenv("youtube_key", "legacy-yt")
	t.Setenv("OPENAI_API_KEY", "sk-test")

	cfg, err := Load(missingEnvFile(t))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.DiscordToken != "legacy-token" || cfg.YouTubeAPIKey != "legacy-yt" {
		t.Fatalf("legacy keys = %q %q", cfg.DiscordToken, cfg.YouTubeAPIKey)
	}
}

func TestLoadEnvFile(t *testing.T) {
	clearEnv(t)
	// godotenv does not override variables that are already set, even when
	// empty, so drop them for this test.
	for _, key := range []string{"DISCORD_TOKEN", "LLM_BACKEND", "GENAI_API_KEY", "LLM_TEMPERATURE"} {
		os.Unsetenv(key)
	}

	path := filepath.Join(t.TempDir(), ".env")
	data := "DISCORD_TOKEN=file-token\nLLM_BACKEND=gemini\nGENAI_API_KEY=g-key\nLLM_TEMPERATURE=0.9\n"
	if err := os.WriteFile(path, []byte(data), 0644); err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() {
		for _, key := range []string{"DISCORD_TOKEN", "LLM_BACKEND", "GENAI_API_KEY", "LLM_TEMPERATURE"} {
			os.Unsetenv(key)
		}
	})

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.DiscordToken != "file-token" || cfg.LLMBackend != "gemini" || cfg.LLMTemperature != 0.9 {
		t.Fatalf("cfg = %+v", cfg)
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name string
		env  map[string]string
		want string
	}{
		{"missing token", map[string]string{"OPENAI_API_KEY": "k"}, "DISCORD_TOKEN"},
		{"bad backend", map[string]string{"DISCORD_TOKEN": "t", "LLM_BACKEND": "llama"}, "LLM_BACKEND"},
		{"missing openai key", map[string]string{"DISCORD_TOKEN": "t"}, "OPENAI_API_KEY"},
		{"missing gemini key", map[string]string{"DISCORD_TOKEN": "t", "LLM_BACKEND": "gemini"}, "GENAI_API_KEY"},
		{"bad language store", map[string]string{"DISCORD_TOKEN": "t", "OPENAI_API_KEY": "k", "LANGUAGE_STORE": "redis"}, "LANGUAGE_STORE"},
		{"bad default language", map[string]string{"DISCORD_TOKEN": "t", "OPENAI_API_KEY": "k", "DEFAULT_LANGUAGE": "klingon"}, "DEFAULT_LANGUAGE"},
		{"bad timeout", map[string]string{"DISCORD_TOKEN": "t", "OPENAI_API_KEY": "k", "SYNTH_TIMEOUT_SECONDS": "0"}, "SYNTH_TIMEOUT_SECONDS"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			clearEnv(t)
			for k, v := range tt.env {
				t.Setenv(k, v)
			}
			_, err := Load(missingEnvFile(t))
			if err == nil || !strings.Contains(err.Error(), tt.want) {
				t.Fatalf("err = %v, want mention of %s", err, tt.want)
			}
		})
	}
}
