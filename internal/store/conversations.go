package store

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"
)

const ConversationsFile = "conversations.json"

// Message is one turn of a stored conversation.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Conversations keeps per-user chat histories in one JSON document.
type Conversations struct {
	path string

	mu    sync.Mutex
	convs map[string][]Message
}

func OpenConversations(dir string) (*Conversations, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create data directory: %w", err)
	}

	c := &Conversations{
		path:  filepath.Join(dir, ConversationsFile),
		convs: make(map[string][]Message),
	}
	if err := readJSON(c.path, &c.convs); err != nil {
		return nil, err
	}
	if c.convs == nil {
		c.convs = make(map[string][]Message)
	}
	return c, nil
}

// Get returns a copy of the user's history and whether one exists.
func (c *Conversations) Get(userID string) ([]Message, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	msgs, ok := c.convs[userID]
	if !ok {
		return nil, false
	}
	return append([]Message(nil), msgs...), true
}

// Put replaces the user's history and rewrites the document.
func (c *Conversations) Put(userID string, msgs []Message) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	prev, had := c.convs[userID]
	c.convs[userID] = append([]Message(nil), msgs...)
	if err := writeJSON(c.path, c.convs); err != nil {
		if had {
			c.convs[userID] = prev
		} else {
			delete(c.convs, userID)
		}
		return err
	}
	return nil
}

// Reset replaces an existing history with seed. It reports false and leaves
// the document alone when the user has no history.
func (c *Conversations) Reset(userID string, seed []Message) (bool, error) {
	c.mu.Lock()
	_, ok := c.convs[userID]
	c.mu.Unlock()
	if !ok {
		return false, nil
	}
	return true, c.Put(userID, seed)
}
