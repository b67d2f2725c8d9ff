package memo

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGetOrComputeConcurrentCallersShareOneComputation(t *testing.T) {
	t.Parallel()

	c := New(context.Background())
	defer c.Close()

	var calls atomic.Int32
	release := make(chan struct{})
	fn := func(ctx context.Context) (any, error) {
		calls.Add(1)
		<-release
		return 42, nil
	}

	const callers = 8
	var wg sync.WaitGroup
	results := make([]any, callers)
	errs := make([]error, callers)
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i], errs[i] = c.GetOrCompute(context.Background(), "snapshot:u1", fn)
		}(i)
	}

	require.Eventually(t, func() bool {
		return c.Stats().Computes+c.Stats().Hits == callers
	}, time.Second, time.Millisecond)
	close(release)
	wg.Wait()

	assert.Equal(t, int32(1), calls.Load())
	for i := 0; i < callers; i++ {
		require.NoError(t, errs[i])
		assert.Equal(t, 42, results[i])
	}
	assert.Equal(t, Stats{Computes: 1, Hits: callers - 1}, c.Stats())
}

func TestGetOrComputeFailureIsSharedThenEvicted(t *testing.T) {
	t.Parallel()

	c := New(context.Background())
	defer c.Close()

	boom := errors.New("db unavailable")
	release := make(chan struct{})
	var calls atomic.Int32
	failing := func(ctx context.Context) (any, error) {
		calls.Add(1)
		<-release
		return nil, boom
	}

	var wg sync.WaitGroup
	errs := make([]error, 2)
	for i := range errs {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = c.GetOrCompute(context.Background(), "k", failing)
		}(i)
	}
	require.Eventually(t, func() bool {
		s := c.Stats()
		return s.Computes+s.Hits == 2
	}, time.Second, time.Millisecond)
	close(release)
	wg.Wait()

	for _, err := range errs {
		assert.ErrorIs(t, err, boom)
	}
	assert.Equal(t, int32(1), calls.Load())

	got, err := c.GetOrCompute(context.Background(), "k", func(ctx context.Context) (any, error) {
		calls.Add(1)
		return "recovered", nil
	})
	require.NoError(t, err)
	assert.Equal(t, "recovered", got)
	assert.Equal(t, int32(2), calls.Load())
}

func TestGetOrComputeCallerDeadlineDoesNotFailOtherWaiters(t *testing.T) {
	t.Parallel()

	c := New(context.Background())
	defer c.Close()

	release := make(chan struct{})
	fn := func(ctx context.Context) (any, error) {
		<-release
		return "value", nil
	}

	short, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	_, err := c.GetOrCompute(short, "k", fn)
	require.ErrorIs(t, err, context.DeadlineExceeded)

	done := make(chan any, 1)
	go func() {
		v, _ := c.GetOrCompute(context.Background(), "k", fn)
		done <- v
	}()
	close(release)

	select {
	case v := <-done:
		assert.Equal(t, "value", v)
	case <-time.After(time.Second):
		t.Fatal("waiter never observed the shared result")
	}
	assert.Equal(t, int64(1), c.Stats().Computes)
}

func TestGetOrComputePanicBecomesError(t *testing.T) {
	t.Parallel()

	c := New(context.Background())
	defer c.Close()

	_, err := c.GetOrCompute(context.Background(), "k", func(ctx context.Context) (any, error) {
		panic("bad math")
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "panicked")
}

func TestClosedCacheRejectsCalls(t *testing.T) {
	t.Parallel()

	c := New(context.Background())
	c.Close()

	_, err := c.GetOrCompute(context.Background(), "k", func(ctx context.Context) (any, error) {
		return 1, nil
	})
	assert.ErrorIs(t, err, ErrClosed)
}

func TestDoWithoutCacheCallsThrough(t *testing.T) {
	t.Parallel()

	var calls int
	fn := func(ctx context.Context) (any, error) {
		calls++
		return calls, nil
	}
	_, _ = Do(context.Background(), "k", fn)
	_, _ = Do(context.Background(), "k", fn)
	assert.Equal(t, 2, calls)

	c := New(context.Background())
	defer c.Close()
	ctx := WithCache(context.Background(), c)
	calls = 0
	_, _ = Do(ctx, "k", fn)
	_, _ = Do(ctx, "k", fn)
	assert.Equal(t, 1, calls)
}

func TestFingerprintIgnoresOrderAndEmptyValues(t *testing.T) {
	t.Parallel()

	a, err := Fingerprint("portfolio.snapshot", map[string]any{
		"user_id":    "u1",
		"account_id": "",
		"filters":    map[string]any{"b": 2, "a": 1},
	})
	require.NoError(t, err)

	b, err := Fingerprint("portfolio.snapshot", map[string]any{
		"filters": map[string]any{"a": 1.0, "b": int64(2)},
		"user_id": " u1 ",
	})
	require.NoError(t, err)
	assert.Equal(t, a, b)

	other, err := Fingerprint("portfolio.snapshot", map[string]any{"user_id": "u2"})
	require.NoError(t, err)
	assert.NotEqual(t, a, other)

	scoped, err := Fingerprint("portfolio.transactions", map[string]any{"user_id": "u1"})
	require.NoError(t, err)
	plain, err := Fingerprint("portfolio.snapshot", map[string]any{"user_id": "u1"})
	require.NoError(t, err)
	assert.NotEqual(t, scoped, plain)

	_, err = Fingerprint(" ", nil)
	assert.Error(t, err)
}
