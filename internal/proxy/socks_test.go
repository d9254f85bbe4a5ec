package proxy

import (
	"testing"
	"time"
)

func TestNewSocksClient(t *testing.T) {
	client, err := NewSocksClient("127.0.0.1:1080", 5*time.Second)
	if err != nil {
		t.Fatalf("NewSocksClient: %v", err)
	}
	if client.Timeout != 5*time.Second {
		t.Fatalf("Timeout = %v, want 5s", client.Timeout)
	}
	if client.Transport == nil {
		t.Fatal("client has no proxy transport")
	}
}
