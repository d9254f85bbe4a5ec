package store

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"
)

const LanguagesFile = "guild_languages.json"

// Languages maps guilds to their TTS language.
type Languages interface {
	Language(ctx context.Context, guildID string) string
	SetLanguage(ctx context.Context, guildID, code string) error
	Close() error
}

// LanguageFile keeps guild languages in a single JSON object rewritten on
// every change.
type LanguageFile struct {
	path     string
	fallback string

	mu    sync.RWMutex
	langs map[string]string
}

// OpenLanguageFile loads dir/guild_languages.json. Guilds with no entry
// report fallback.
func OpenLanguageFile(dir, fallback string) (*LanguageFile, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create data directory: %w", err)
	}

	f := &LanguageFile{
		path:     filepath.Join(dir, LanguagesFile),
		fallback: fallback,
		langs:    make(map[string]string),
	}
	if err := readJSON(f.path, &f.langs); err != nil {
		return nil, err
	}
	if f.langs == nil {
		f.langs = make(map[string]string)
	}
	return f, nil
}

func (f *LanguageFile) Language(_ context.Context, guildID string) string {
	f.mu.RLock()
	defer f.mu.RUnlock()
	if code, ok := f.langs[guildID]; ok && code != "" {
		return code
	}
	return f.fallback
}

func (f *LanguageFile) SetLanguage(_ context.Context, guildID, code string) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	prev, had := f.langs[guildID]
	f.langs[guildID] = code
	if err := writeJSON(f.path, f.langs); err != nil {
		if had {
			f.langs[guildID] = prev
		} else {
			delete(f.langs, guildID)
		}
		return err
	}
	return nil
}

func (f *LanguageFile) Close() error { return nil }
