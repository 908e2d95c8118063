package retry

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func fastPolicy(maxRetries int) Policy {
	return Policy{
		MaxRetries:   maxRetries,
		InitialDelay: time.Millisecond,
		MaxDelay:     5 * time.Millisecond,
		Multiplier:   2.0,
	}
}

func TestRetryer_SucceedsFirstTry(t *testing.T) {
	r := New(fastPolicy(3), zap.NewNop())

	calls := 0
	err := r.Do(context.Background(), func() error {
		calls++
		return nil
	})

	require.NoError(t, err)
	assert.Equal(t, 1, calls)
}

func TestRetryer_RetriesThenSucceeds(t *testing.T) {
	var retried []int
	p := fastPolicy(3)
	p.OnRetry = func(attempt int, _ error, _ time.Duration) { retried = append(retried, attempt) }
	r := New(p, zap.NewNop())

	calls := 0
	got, err := DoWithResult(context.Background(), r, func() (string, error) {
		calls++
		if calls < 3 {
			return "", errors.New("503")
		}
		return "ok", nil
	})

	require.NoError(t, err)
	assert.Equal(t, "ok", got)
	assert.Equal(t, 3, calls)
	assert.Equal(t, []int{1, 2}, retried)
}

func TestRetryer_Exhausted(t *testing.T) {
	r := New(fastPolicy(2), zap.NewNop())
	boom := errors.New("boom")

	calls := 0
	err := r.Do(context.Background(), func() error {
		calls++
		return boom
	})

	require.Error(t, err)
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, 3, calls)
}

func TestRetryer_PermanentStopsImmediately(t *testing.T) {
	r := New(fastPolicy(5), zap.NewNop())
	bad := errors.New("400 bad request")

	calls := 0
	err := r.Do(context.Background(), func() error {
		calls++
		return Permanent(bad)
	})

	assert.Same(t, bad, err)
	assert.Equal(t, 1, calls)
}

func TestRetryer_RetryIf(t *testing.T) {
	transient := errors.New("transient")
	p := fastPolicy(5)
	p.RetryIf = func(err error) bool { return errors.Is(err, transient) }
	r := New(p, zap.NewNop())

	calls := 0
	err := r.Do(context.Background(), func() error {
		calls++
		if calls == 1 {
			return transient
		}
		return errors.New("fatal")
	})

	assert.EqualError(t, err, "fatal")
	assert.Equal(t, 2, calls)
}

func TestRetryer_ContextCanceledDuringWait(t *testing.T) {
	p := fastPolicy(3)
	p.InitialDelay = time.Second
	p.MaxDelay = time.Second
	r := New(p, zap.NewNop())

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	start := time.Now()
	err := r.Do(ctx, func() error { return errors.New("down") })

	require.Error(t, err)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Less(t, time.Since(start), 500*time.Millisecond)
}

func TestRetryer_DelayBounds(t *testing.T) {
	r := New(Policy{MaxRetries: 5, InitialDelay: 10 * time.Millisecond, MaxDelay: 40 * time.Millisecond, Multiplier: 2, Jitter: true}, nil)

	for attempt := 1; attempt <= 5; attempt++ {
		d := r.delay(attempt)
		assert.GreaterOrEqual(t, d, 10*time.Millisecond)
		assert.LessOrEqual(t, d, 50*time.Millisecond)
	}
}

func TestNew_Defaults(t *testing.T) {
	r := New(Policy{MaxRetries: -1}, nil)
	assert.Equal(t, 0, r.policy.MaxRetries)
	assert.Equal(t, DefaultPolicy().InitialDelay, r.policy.InitialDelay)
	assert.Equal(t, 2.0, r.policy.Multiplier)
}

func TestPermanent_Nil(t *testing.T) {
	assert.NoError(t, Permanent(nil))
}
