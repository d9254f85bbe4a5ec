package store

import (
	"bufio"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
)

var ErrNotFound = errors.New("store: not found")

// MeetingEntry is one message captured from a meeting channel.
type MeetingEntry struct {
	Timestamp time.Time `json:"timestamp"`
	Author    string    `json:"author"`
	Content   string    `json:"content"`
}

// FileStore keeps meeting logs and generated notes on disk.
type FileStore struct {
	baseDir string
	mu      sync.Mutex
}

func NewFileStore(baseDir string) (*FileStore, error) {
	meetingDir := filepath.Join(baseDir, "meetings")
	notesDir := filepath.Join(baseDir, "notes")

	if err := os.MkdirAll(meetingDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create meeting directory: %w", err)
	}

	if err := os.MkdirAll(notesDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create notes directory: %w", err)
	}

	return &FileStore{
		baseDir: baseDir,
	}, nil
}

func (s *FileStore) meetingPath(guildID string) string {
	return filepath.Join(s.baseDir, "meetings", guildID+".jsonl")
}

// AppendMeetingEntry adds entry to the guild's NDJSON meeting log.
func (s *FileStore) AppendMeetingEntry(guildID string, entry MeetingEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	file, err := os.OpenFile(s.meetingPath(guildID), os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0644)
	if err != nil {
		return fmt.Errorf("failed to open meeting log: %w", err)
	}
	defer file.Close()

	if err := json.NewEncoder(file).Encode(entry); err != nil {
		return fmt.Errorf("failed to encode meeting entry: %w", err)
	}
	return nil
}

// LoadMeeting reads the guild's meeting log in order. Lines that do not
// decode are skipped.
func (s *FileStore) LoadMeeting(guildID string) ([]MeetingEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	file, err := os.Open(s.meetingPath(guildID))
	if errors.Is(err, os.ErrNotExist) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to open meeting log: %w", err)
	}
	defer file.Close()

	var entries []MeetingEntry
	scanner := bufio.NewScanner(file)
	scanner.Buffer(make([]byte, 64*1024), 1024*1024)
	for scanner.Scan() {
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}
		var entry MeetingEntry
		if err := json.Unmarshal(line, &entry); err != nil {
			log.Warn().Err(err).Str("guild_id", guildID).Msg("Skipping malformed meeting entry")
			continue
		}
		entries = append(entries, entry)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to read meeting log: %w", err)
	}

	return entries, nil
}

// ResetMeeting removes the guild's meeting log.
func (s *FileStore) ResetMeeting(guildID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := os.Remove(s.meetingPath(guildID)); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("failed to remove meeting log: %w", err)
	}
	return nil
}

func (s *FileStore) SaveNotes(sessionID string, notes string) (string, error) {
	filename := fmt.Sprintf("%s.md", sessionID)
	path := filepath.Join(s.baseDir, "notes", filename)

	if err := os.WriteFile(path, []byte(notes), 0644); err != nil {
		return "", fmt.Errorf("failed to write notes file: %w", err)
	}

	log.Info().
		Str("session_id", sessionID).
		Str("file", path).
		Int("size", len(notes)).
		Msg("Saved notes")

	return path, nil
}

func GenerateSessionID() string {
	return fmt.Sprintf("session_%s", time.Now().Format("20060102_150405"))
}
