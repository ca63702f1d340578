package circuitbreaker

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/sony/gobreaker"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExecute_OpensAfterFailures(t *testing.T) {
	w := NewWrapper(Config{
		Name:        "feed-test",
		MaxRequests: 1,
		Interval:    time.Minute,
		Timeout:     time.Minute,
		ReadyToTrip: RatioTrip(2, 0.5),
	})

	failing := func(context.Context) (int, error) { return 0, errors.New("500") }

	for i := 0; i < 2; i++ {
		_, err := Execute(context.Background(), w, failing)
		require.Error(t, err)
	}

	assert.True(t, w.IsOpen())
	_, err := Execute(context.Background(), w, func(context.Context) (int, error) { return 1, nil })
	assert.ErrorIs(t, err, gobreaker.ErrOpenState)
}

func TestExecute_ReturnsValue(t *testing.T) {
	w := NewWrapper(DefaultConfig("value-test"))

	got, err := Execute(context.Background(), w, func(context.Context) (string, error) { return "ok", nil })
	require.NoError(t, err)
	assert.Equal(t, "ok", got)
	assert.Equal(t, uint32(1), w.Counts().TotalSuccesses)
}

func TestExecute_CancelledContext(t *testing.T) {
	w := NewWrapper(DefaultConfig("ctx-test"))
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	called := false
	_, err := Execute(ctx, w, func(context.Context) (int, error) {
		called = true
		return 0, nil
	})

	assert.ErrorIs(t, err, context.Canceled)
	assert.False(t, called)
}

func TestIsSuccessful_IgnoresClientErrors(t *testing.T) {
	clientErr := errors.New("400")
	w := NewWrapper(Config{
		Name:         "classify-test",
		ReadyToTrip:  RatioTrip(1, 0.1),
		IsSuccessful: func(err error) bool { return err == nil || errors.Is(err, clientErr) },
	})

	for i := 0; i < 3; i++ {
		_, _ = Execute(context.Background(), w, func(context.Context) (int, error) { return 0, clientErr })
	}
	assert.False(t, w.IsOpen())
}
