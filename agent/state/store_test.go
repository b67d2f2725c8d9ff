package state

import (
	"context"
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	contractx "github.com/tanpawarit/portfolio-copilot/agent/contract"
)

func TestNewMemoryStoreValidatesWindow(t *testing.T) {
	t.Parallel()

	for _, w := range []int{0, -2, 3} {
		_, err := NewMemoryStore(WithWindow(w))
		assert.ErrorIs(t, err, ErrInvalidWindow, "window=%d", w)
	}

	s, err := NewMemoryStore()
	require.NoError(t, err)
	assert.Equal(t, 20, s.Window())
}

func TestGetCreatesEmptySession(t *testing.T) {
	t.Parallel()

	s, err := NewMemoryStore()
	require.NoError(t, err)

	turns, err := s.Get(context.Background(), "u1:default")
	require.NoError(t, err)
	assert.Empty(t, turns)
	assert.Equal(t, 1, s.Len())

	_, err = s.Get(context.Background(), " ")
	assert.ErrorIs(t, err, ErrInvalidSession)
}

func TestAppendTrimsOldestTurnsFirst(t *testing.T) {
	t.Parallel()

	s, err := NewMemoryStore(WithWindow(4))
	require.NoError(t, err)
	ctx := context.Background()

	for i := 1; i <= 3; i++ {
		require.NoError(t, s.Append(ctx, "s", contractx.UserTurn(fmt.Sprintf("q%d", i)), contractx.AssistantTurn(fmt.Sprintf("a%d", i))))
	}

	turns, err := s.Get(ctx, "s")
	require.NoError(t, err)
	assert.Equal(t, []contractx.Turn{
		contractx.UserTurn("q2"), contractx.AssistantTurn("a2"),
		contractx.UserTurn("q3"), contractx.AssistantTurn("a3"),
	}, turns)
}

func TestGetReturnsCopy(t *testing.T) {
	t.Parallel()

	s, _ := NewMemoryStore()
	ctx := context.Background()
	require.NoError(t, s.Append(ctx, "s", contractx.UserTurn("q"), contractx.AssistantTurn("a")))

	turns, _ := s.Get(ctx, "s")
	turns[0].Content = "mutated"

	again, _ := s.Get(ctx, "s")
	assert.Equal(t, "q", again[0].Content)
}

func TestConcurrentAppendsLoseNoUpdates(t *testing.T) {
	t.Parallel()

	const writers = 10
	s, err := NewMemoryStore(WithWindow(writers * 2))
	require.NoError(t, err)
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := 0; i < writers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			q := fmt.Sprintf("q%d", i)
			assert.NoError(t, s.Append(ctx, "shared", contractx.UserTurn(q), contractx.AssistantTurn("a-"+q)))
		}(i)
	}
	wg.Wait()

	turns, err := s.Get(ctx, "shared")
	require.NoError(t, err)
	require.Len(t, turns, writers*2)

	// Pairs stay adjacent: no writer interleaved inside another's append.
	seen := make(map[string]bool, writers)
	for i := 0; i < len(turns); i += 2 {
		require.Equal(t, contractx.RoleUser, turns[i].Role)
		require.Equal(t, "a-"+turns[i].Content, turns[i+1].Content)
		seen[turns[i].Content] = true
	}
	assert.Len(t, seen, writers)
}

func TestUpdateSerializesReadModifyWrite(t *testing.T) {
	t.Parallel()

	s, _ := NewMemoryStore(WithWindow(2))
	ctx := context.Background()

	const n = 50
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = s.Update(ctx, "counter", func(turns []contractx.Turn) []contractx.Turn {
				count := 0
				if len(turns) == 1 {
					fmt.Sscanf(turns[0].Content, "%d", &count)
				}
				return []contractx.Turn{contractx.UserTurn(fmt.Sprint(count + 1))}
			})
		}()
	}
	wg.Wait()

	turns, _ := s.Get(ctx, "counter")
	require.Len(t, turns, 1)
	assert.Equal(t, fmt.Sprint(n), turns[0].Content)
}

func TestSessionsAreIndependent(t *testing.T) {
	t.Parallel()

	s, _ := NewMemoryStore()
	ctx := context.Background()
	require.NoError(t, s.Append(ctx, "a", contractx.UserTurn("qa"), contractx.AssistantTurn("aa")))

	turns, _ := s.Get(ctx, "b")
	assert.Empty(t, turns)
	assert.Equal(t, 2, s.Len())
}
