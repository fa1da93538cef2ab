package request

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGo_Resolves(t *testing.T) {
	r := Go(context.Background(), func(ctx context.Context) (string, error) {
		return "AAAA==", nil
	})

	v, err := r.Await(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "AAAA==", v)
	assert.True(t, r.Settled())
}

func TestGo_Rejects(t *testing.T) {
	boom := errors.New("quota exceeded")
	r := Go(context.Background(), func(ctx context.Context) (int, error) {
		return 0, boom
	})

	_, err := r.Await(context.Background())
	assert.ErrorIs(t, err, boom)
}

func TestGo_PanicBecomesRejection(t *testing.T) {
	r := Go(context.Background(), func(ctx context.Context) (int, error) {
		panic("cursor exploded")
	})

	_, err := r.Await(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "cursor exploded")
}

func TestSettle_OnlyFirstWins(t *testing.T) {
	r := New[int]()

	assert.True(t, r.Resolve(1))
	assert.False(t, r.Resolve(2))
	assert.False(t, r.Reject(errors.New("late")))

	v, err := r.Await(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, v)
}

func TestReject_NilErrorStillFails(t *testing.T) {
	r := New[int]()
	r.Reject(nil)

	_, err := r.Await(context.Background())
	assert.Error(t, err)
}

func TestAwait_ContextCancelled(t *testing.T) {
	r := New[int]()
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	_, err := r.Await(ctx)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.False(t, r.Settled())

	// The request can still settle for later waiters.
	r.Resolve(7)
	v, err := r.Await(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 7, v)
}

func TestAwait_SettledOutcomeWinsOverCancelledContext(t *testing.T) {
	r := New[int]()
	r.Resolve(3)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	for i := 0; i < 100; i++ {
		v, err := r.Await(ctx)
		require.NoError(t, err)
		assert.Equal(t, 3, v)
	}
}

func TestAwait_ManyWaitersSeeSameOutcome(t *testing.T) {
	r := New[string]()

	var wg sync.WaitGroup
	results := make([]string, 8)
	for i := range results {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			v, err := r.Await(context.Background())
			if err == nil {
				results[i] = v
			}
		}(i)
	}

	r.Resolve("ready")
	wg.Wait()

	for _, v := range results {
		assert.Equal(t, "ready", v)
	}
}
