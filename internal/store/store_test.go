package store

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestMeetingLogAppendAndLoad(t *testing.T) {
	s, err := NewFileStore(t.TempDir())
	if err != nil {
		t.Fatalf("NewFileStore: %v", err)
	}

	if _, err := s.LoadMeeting("g1"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("LoadMeeting on empty store = %v, want ErrNotFound", err)
	}

	ts := time.Date(2024, 3, 1, 9, 30, 0, 0, time.UTC)
	for i, content := range []string{"안건 1", "second"} {
		entry := MeetingEntry{Timestamp: ts.Add(time.Duration(i) * time.Minute), Author: "alice", Content: content}
		if err := s.AppendMeetingEntry("g1", entry); err != nil {
			t.Fatalf("AppendMeetingEntry: %v", err)
		}
	}

	entries, err := s.LoadMeeting("g1")
	if err != nil {
		t.Fatalf("LoadMeeting: %v", err)
	}
	if len(entries) != 2 || entries[0].Content != "안건 1" || entries[1].Content != "second" {
		t.Fatalf("entries = %+v", entries)
	}
	if !entries[1].Timestamp.Equal(ts.Add(time.Minute)) {
		t.Fatalf("timestamp = %v", entries[1].Timestamp)
	}

	if err := s.ResetMeeting("g1"); err != nil {
		t.Fatalf("ResetMeeting: %v", err)
	}
	if _, err := s.LoadMeeting("g1"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("LoadMeeting after reset = %v, want ErrNotFound", err)
	}
}

func TestLoadMeetingSkipsMalformedLines(t *testing.T) {
	dir := t.TempDir()
	s, err := NewFileStore(dir)
	if err != nil {
		t.Fatalf("NewFileStore: %v", err)
	}
	data := `{"timestamp":"2024-03-01T09:30:00Z","author":"a","content":"ok"}` + "\nnot json\n\n"
	if err := os.WriteFile(filepath.Join(dir, "meetings", "g1.jsonl"), []byte(data), 0644); err != nil {
		t.Fatal(err)
	}

	entries, err := s.LoadMeeting("g1")
	if err != nil {
		t.Fatalf("LoadMeeting: %v", err)
	}
	if len(entries) != 1 || entries[0].Content != "ok" {
		t.Fatalf("entries = %+v", entries)
	}
}

func TestSaveNotes(t *testing.T) {
	s, err := NewFileStore(t.TempDir())
	if err != nil {
		t.Fatalf("NewFileStore: %v", err)
	}
	path, err := s.SaveNotes("session_1", "# Notes")
	if err != nil {
		t.Fatalf("SaveNotes: %v", err)
	}
	if !strings.HasSuffix(path, filepath.Join("notes", "session_1.md")) {
		t.Fatalf("path = %q", path)
	}
	data, err := os.ReadFile(path)
	if err != nil || string(data) != "# Notes" {
		t.Fatalf("notes = %q, %v", data, err)
	}
}

func TestLanguageFileDefaultsAndPersists(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()

	f, err := OpenLanguageFile(dir, "ko")
	if err != nil {
		t.Fatalf("OpenLanguageFile: %v", err)
	}
	if got := f.Language(ctx, "g1"); got != "ko" {
		t.Fatalf("Language(unset) = %q, want %q", got, "ko")
	}
	if err := f.SetLanguage(ctx, "g1", "fr"); err != nil {
		t.Fatalf("SetLanguage: %v", err)
	}

	reopened, err := OpenLanguageFile(dir, "ko")
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	if got := reopened.Language(ctx, "g1"); got != "fr" {
		t.Fatalf("Language after reopen = %q, want %q", got, "fr")
	}
	if got := reopened.Language(ctx, "g2"); got != "ko" {
		t.Fatalf("Language(g2) = %q, want %q", got, "ko")
	}
}

func TestBadgerLanguages(t *testing.T) {
	ctx := context.Background()
	b, err := OpenBadgerLanguages(BadgerOptions{InMemory: true, Fallback: "ko"})
	if err != nil {
		t.Fatalf("OpenBadgerLanguages: %v", err)
	}
	t.Cleanup(func() { b.Close() })

	if got := b.Language(ctx, "g1"); got != "ko" {
		t.Fatalf("Language(unset) = %q, want %q", got, "ko")
	}
	if err := b.SetLanguage(ctx, "g1", "ja"); err != nil {
		t.Fatalf("SetLanguage: %v", err)
	}
	if got := b.Language(ctx, "g1"); got != "ja" {
		t.Fatalf("Language = %q, want %q", got, "ja")
	}
}

func TestConversationsPutGetReset(t *testing.T) {
	dir := t.TempDir()
	c, err := OpenConversations(dir)
	if err != nil {
		t.Fatalf("OpenConversations: %v", err)
	}

	if _, ok := c.Get("u1"); ok {
		t.Fatal("Get on empty store reported a history")
	}
	if existed, err := c.Reset("u1", nil); existed || err != nil {
		t.Fatalf("Reset(unknown) = %v, %v", existed, err)
	}

	seed := []Message{{Role: "system", Content: "sys"}}
	history := append(seed, Message{Role: "user", Content: "hi"}, Message{Role: "assistant", Content: "hello"})
	if err := c.Put("u1", history); err != nil {
		t.Fatalf("Put: %v", err)
	}

	reopened, err := OpenConversations(dir)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	got, ok := reopened.Get("u1")
	if !ok || len(got) != 3 || got[2].Content != "hello" {
		t.Fatalf("Get after reopen = %+v, %v", got, ok)
	}

	existed, err := reopened.Reset("u1", seed)
	if !existed || err != nil {
		t.Fatalf("Reset = %v, %v", existed, err)
	}
	got, _ = reopened.Get("u1")
	if len(got) != 1 || got[0].Role != "system" {
		t.Fatalf("history after reset = %+v", got)
	}
}
