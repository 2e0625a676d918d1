// Package session keeps the short-lived state of a live voice call: whether
// the call is active and the running list of conversation turns.
package session

import (
	"context"
	"errors"
	"strings"
	"time"
)

var ErrCallIDRequired = errors.New("session: call id is required")

const (
	DefaultTTL      = time.Hour
	DefaultMaxTurns = 50
)

type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

type Turn struct {
	Role    Role      `json:"role"`
	Content string    `json:"content"`
	At      time.Time `json:"at"`
}

// Store is implemented by RedisStore and MemoryStore. Every write refreshes
// the session TTL; an expired session behaves as if it never existed.
type Store interface {
	Start(ctx context.Context, callID string) error
	Active(ctx context.Context, callID string) (bool, error)
	Append(ctx context.Context, callID string, turns ...Turn) error
	History(ctx context.Context, callID string) ([]Turn, error)
	// End removes the session. Ending an unknown call is not an error.
	End(ctx context.Context, callID string) error
	Ping(ctx context.Context) error
}

type Options struct {
	TTL      time.Duration
	MaxTurns int
}

func (o Options) withDefaults() Options {
	if o.TTL <= 0 {
		o.TTL = DefaultTTL
	}
	if o.MaxTurns <= 0 {
		o.MaxTurns = DefaultMaxTurns
	}
	return o
}

func normalizeID(callID string) (string, error) {
	id := strings.TrimSpace(callID)
	if id == "" {
		return "", ErrCallIDRequired
	}
	return id, nil
}

func activeKey(callID string) string  { return "call_active_" + callID }
func historyKey(callID string) string { return "call_history_" + callID }
