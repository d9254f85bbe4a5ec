package main

import (
	"errors"
	"testing"
	"time"

	"github.com/rs/zerolog"
)

func TestShutdown(t *testing.T) {
	if err := shutdown(func() error { return nil }, time.Second); err != nil {
		t.Fatalf("clean stop = %v", err)
	}

	boom := errors.New("boom")
	if err := shutdown(func() error { return boom }, time.Second); !errors.Is(err, boom) {
		t.Fatalf("failing stop = %v, want boom", err)
	}

	block := make(chan struct{})
	defer close(block)
	err := shutdown(func() error { <-block; return nil }, 10*time.Millisecond)
	if !errors.Is(err, errShutdownTimeout) {
		t.Fatalf("stuck stop = %v, want errShutdownTimeout", err)
	}
}

func TestSetupLogging(t *testing.T) {
	prev := zerolog.GlobalLevel()
	defer zerolog.SetGlobalLevel(prev)

	setupLogging("debug")
	if got := zerolog.GlobalLevel(); got != zerolog.DebugLevel {
		t.Fatalf("level = %v, want debug", got)
	}
	setupLogging("nonsense")
	if got := zerolog.GlobalLevel(); got != zerolog.InfoLevel {
		t.Fatalf("level = %v, want info fallback", got)
	}
}
