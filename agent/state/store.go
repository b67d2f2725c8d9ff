package state

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/puzpuzpuz/xsync/v3"
	contractx "github.com/tanpawarit/portfolio-copilot/agent/contract"
)

var (
	ErrInvalidSession = errors.New("session id is empty")
	ErrInvalidWindow  = errors.New("history window must be a positive even number")
)

const defaultWindow = 20

type Config struct {
	Window int `envconfig:"WINDOW" default:"20"`
}

// StoreOption customizes MemoryStore.
type StoreOption func(*MemoryStore)

// WithWindow sets how many turns a session keeps. Validated by NewMemoryStore.
func WithWindow(n int) StoreOption {
	return func(s *MemoryStore) {
		s.window = n
	}
}

type entry struct {
	mu    sync.Mutex
	turns []contractx.Turn
}

// MemoryStore keeps a bounded, per-session conversation history in process memory.
// Each session is guarded by its own lock, so different sessions never contend.
// Sessions are never evicted; the map grows with the number of distinct session ids.
type MemoryStore struct {
	sessions *xsync.MapOf[string, *entry]
	window   int
}

var _ contractx.TurnStore = (*MemoryStore)(nil)

func NewMemoryStore(opts ...StoreOption) (*MemoryStore, error) {
	s := &MemoryStore{
		sessions: xsync.NewMapOf[string, *entry](),
		window:   defaultWindow,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(s)
		}
	}
	if s.window <= 0 || s.window%2 != 0 {
		return nil, fmt.Errorf("%w: %d", ErrInvalidWindow, s.window)
	}
	return s, nil
}

// NewMemoryStoreFromConfig builds a store from the SESSION_* config block.
func NewMemoryStoreFromConfig(cfg Config) (*MemoryStore, error) {
	return NewMemoryStore(WithWindow(cfg.Window))
}

func (s *MemoryStore) Window() int {
	return s.window
}

// Get returns a copy of the session's turns, oldest first.
func (s *MemoryStore) Get(_ context.Context, sessionID string) ([]contractx.Turn, error) {
	e, err := s.entry(sessionID)
	if err != nil {
		return nil, err
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([]contractx.Turn(nil), e.turns...), nil
}

// Append adds a user/assistant pair and drops the oldest turns beyond the window.
func (s *MemoryStore) Append(ctx context.Context, sessionID string, user, assistant contractx.Turn) error {
	return s.Update(ctx, sessionID, func(turns []contractx.Turn) []contractx.Turn {
		return append(turns, user, assistant)
	})
}

// Update applies fn to the session's turns under the session lock. fn receives a copy;
// its result is trimmed to the window before being stored.
func (s *MemoryStore) Update(ctx context.Context, sessionID string, fn func([]contractx.Turn) []contractx.Turn) error {
	if fn == nil {
		return errors.New("update func is nil")
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	e, err := s.entry(sessionID)
	if err != nil {
		return err
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	next := fn(append([]contractx.Turn(nil), e.turns...))
	if over := len(next) - s.window; over > 0 {
		next = append([]contractx.Turn(nil), next[over:]...)
	}
	e.turns = next
	return nil
}

// Len reports how many sessions are tracked.
func (s *MemoryStore) Len() int {
	return s.sessions.Size()
}

func (s *MemoryStore) entry(sessionID string) (*entry, error) {
	if strings.TrimSpace(sessionID) == "" {
		return nil, ErrInvalidSession
	}
	e, _ := s.sessions.LoadOrCompute(sessionID, func() *entry {
		return &entry{}
	})
	return e, nil
}
