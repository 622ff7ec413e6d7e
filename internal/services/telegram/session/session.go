// Package session keeps short-lived conversational state for the
// Telegram bot, keyed by chat. The bot is stateless between restarts
// except for what lives here, so the store backend decides whether a
// pending photo survives a redeploy.
package session

import (
	"context"
	"errors"
	"sync"
	"time"
)

// State is what the bot remembers about one chat between messages.
type State struct {
	// PendingPhotoFileID is a Telegram file waiting for a caption that
	// names the sale it belongs to.
	PendingPhotoFileID string `json:"pending_photo_file_id,omitempty"`
}

// Store keeps per-chat state with a TTL.
type Store interface {
	Put(ctx context.Context, chatID int64, state State, ttl time.Duration) error
	Get(ctx context.Context, chatID int64) (State, bool, error)
	Delete(ctx context.Context, chatID int64) error
}

// ErrTTLNotPositive rejects puts that would never expire.
var ErrTTLNotPositive = errors.New("session ttl must be positive")

// Memory is a process-local Store. Entries expire lazily on read, so
// an abandoned chat costs one map slot until it is touched again.
type Memory struct {
	now func() time.Time

	mu      sync.Mutex
	entries map[int64]memoryEntry
}

type memoryEntry struct {
	state     State
	expiresAt time.Time
}

// NewMemory builds an in-process store. A nil clock uses time.Now.
func NewMemory(clock func() time.Time) *Memory {
	if clock == nil {
		clock = time.Now
	}
	return &Memory{now: clock, entries: make(map[int64]memoryEntry)}
}

// Put stores state for a chat until the TTL lapses.
func (m *Memory) Put(ctx context.Context, chatID int64, state State, ttl time.Duration) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if ttl <= 0 {
		return ErrTTLNotPositive
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries[chatID] = memoryEntry{state: state, expiresAt: m.now().Add(ttl)}
	return nil
}

// Get loads the state for a chat. The second return is false when the
// chat has no live state.
func (m *Memory) Get(ctx context.Context, chatID int64) (State, bool, error) {
	if err := ctx.Err(); err != nil {
		return State{}, false, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	entry, ok := m.entries[chatID]
	if !ok {
		return State{}, false, nil
	}
	if !m.now().Before(entry.expiresAt) {
		delete(m.entries, chatID)
		return State{}, false, nil
	}
	return entry.state, true, nil
}

// Delete drops the state for a chat.
func (m *Memory) Delete(ctx context.Context, chatID int64) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.entries, chatID)
	return nil
}
