package form

import (
	"context"
	"errors"
	"math/rand"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"microsite/internal/analytics"
	"microsite/internal/analytics/analyticstest"
	"microsite/internal/logger"
	apperrors "microsite/pkg/errors"
)

type blockingEndpoint struct {
	started chan struct{}
	release chan struct{}
}

func newBlockingEndpoint() *blockingEndpoint {
	return &blockingEndpoint{started: make(chan struct{}, 1), release: make(chan struct{})}
}

func (e *blockingEndpoint) Name() string { return "blocking" }

func (e *blockingEndpoint) Submit(ctx context.Context, sub Submission) (Outcome, error) {
	e.started <- struct{}{}
	select {
	case <-e.release:
		return Outcome{Success: true, Message: MsgSubmissionSuccess, SubmissionID: sub.ID}, nil
	case <-ctx.Done():
		return Outcome{}, ctx.Err()
	}
}

type funcEndpoint func(ctx context.Context, sub Submission) (Outcome, error)

func (f funcEndpoint) Name() string { return "func" }

func (f funcEndpoint) Submit(ctx context.Context, sub Submission) (Outcome, error) {
	return f(ctx, sub)
}

func testPayload() Payload {
	return Payload{"company": "Acme", "email": "ops@acme.io", "privacy": "on"}
}

func TestPipeline_Success(t *testing.T) {
	rec := analyticstest.NewRecorder()
	p := NewPipeline("early_access_form", NewSimulatedEndpoint(0, NeverFail{}), rec.Sink(), logger.NopLogger(), time.Second)

	outcome, err := p.Submit(context.Background(), "k", testPayload())
	require.NoError(t, err)

	assert.True(t, outcome.Success)
	assert.Equal(t, MsgSubmissionSuccess, outcome.Message)
	assert.NotEmpty(t, outcome.SubmissionID)

	events := rec.Named(analytics.EventFormSubmission)
	require.Len(t, events, 1)
	assert.Equal(t, true, events[0].Properties["success"])
	assert.Equal(t, "", events[0].Properties["errorMessage"])
	assert.Equal(t, "early_access_form", events[0].Properties["formName"])
}

func TestPipeline_Failure(t *testing.T) {
	rec := analyticstest.NewRecorder()
	p := NewPipeline("early_access_form", NewSimulatedEndpoint(0, AlwaysFail{}), rec.Sink(), logger.NopLogger(), time.Second)

	_, err := p.Submit(context.Background(), "k", testPayload())

	require.Error(t, err)
	assert.True(t, apperrors.IsServiceUnavailable(err))
	var appErr *apperrors.Error
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, MsgServerUnavailable, appErr.UserMessage())

	events := rec.Named(analytics.EventFormSubmission)
	require.Len(t, events, 1)
	assert.Equal(t, false, events[0].Properties["success"])
	assert.Equal(t, MsgServerUnavailable, events[0].Properties["errorMessage"])
}

func TestPipeline_SingleFlight(t *testing.T) {
	rec := analyticstest.NewRecorder()
	endpoint := newBlockingEndpoint()
	p := NewPipeline("early_access_form", endpoint, rec.Sink(), logger.NopLogger(), 0)

	done := make(chan error, 1)
	go func() {
		_, err := p.Submit(context.Background(), "visitor-1", testPayload())
		done <- err
	}()
	<-endpoint.started

	_, err := p.Submit(context.Background(), "visitor-1", testPayload())
	assert.ErrorIs(t, err, ErrSubmissionInFlight)
	assert.Equal(t, 409, apperrors.ToHTTPStatus(err))

	close(endpoint.release)
	require.NoError(t, <-done)

	events := rec.Named(analytics.EventFormSubmission)
	require.Len(t, events, 2)
	assert.Equal(t, MsgSubmissionInFlight, events[0].Properties["errorMessage"])
	assert.Equal(t, true, events[1].Properties["success"])

	_, err = p.Submit(context.Background(), "visitor-1", testPayload())
	assert.NoError(t, err, "key is released after completion")
}

func TestPipeline_DifferentKeysRunConcurrently(t *testing.T) {
	endpoint := newBlockingEndpoint()
	endpoint.started = make(chan struct{}, 2)
	p := NewPipeline("early_access_form", endpoint, nil, logger.NopLogger(), 0)

	errs := make(chan error, 2)
	for _, key := range []string{"a", "b"} {
		go func(key string) {
			_, err := p.Submit(context.Background(), key, testPayload())
			errs <- err
		}(key)
	}
	<-endpoint.started
	<-endpoint.started
	close(endpoint.release)

	assert.NoError(t, <-errs)
	assert.NoError(t, <-errs)
}

func TestPipeline_TimeoutReportsUnavailable(t *testing.T) {
	rec := analyticstest.NewRecorder()
	p := NewPipeline("early_access_form", NewSimulatedEndpoint(time.Minute, NeverFail{}), rec.Sink(), logger.NopLogger(), 10*time.Millisecond)

	_, err := p.Submit(context.Background(), "k", testPayload())

	require.Error(t, err)
	assert.True(t, apperrors.IsServiceUnavailable(err))
	assert.True(t, errors.Is(err, context.DeadlineExceeded))
	assert.Len(t, rec.Named(analytics.EventFormSubmission), 1)
}

func TestPipeline_PassesIdempotencyKey(t *testing.T) {
	var got Submission
	p := NewPipeline("early_access_form", funcEndpoint(func(_ context.Context, sub Submission) (Outcome, error) {
		got = sub
		return Outcome{Success: true, Message: MsgSubmissionSuccess, SubmissionID: sub.ID}, nil
	}), nil, logger.NopLogger(), 0)

	_, err := p.Submit(context.Background(), "k", testPayload())
	require.NoError(t, err)

	assert.Equal(t, testPayload().Fingerprint("early_access_form"), got.IdempotencyKey)
	assert.Equal(t, "early_access_form", got.FormName)
}

func TestProbabilityFault(t *testing.T) {
	never := NewProbabilityFault(0, rand.NewSource(1))
	always := NewProbabilityFault(1, rand.NewSource(1))
	for i := 0; i < 100; i++ {
		assert.False(t, never.ShouldFail())
		assert.True(t, always.ShouldFail())
	}

	f := NewProbabilityFault(0.05, rand.NewSource(42))
	fails := 0
	for i := 0; i < 10000; i++ {
		if f.ShouldFail() {
			fails++
		}
	}
	assert.InDelta(t, 500, fails, 150)
}
