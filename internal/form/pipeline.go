package form

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"

	"microsite/internal/analytics"
	"microsite/internal/logger"
	apperrors "microsite/pkg/errors"
	"microsite/pkg/logging"
	"microsite/pkg/metrics"
	"microsite/pkg/tracing"
)

const MsgSubmissionInFlight = "A submission for this form is already in progress."

// ErrSubmissionInFlight rejects a submission while another one for the same
// form instance has not finished.
var ErrSubmissionInFlight = apperrors.ErrConflict.WithDetail("message", MsgSubmissionInFlight)

const tracerName = "microsite-form"

// Pipeline submits validated payloads to an endpoint. At most one submission
// per key is in flight, and every call reports exactly one form_submission
// event before it returns.
type Pipeline struct {
	formName string
	endpoint Endpoint
	sink     *analytics.Sink
	logger   logger.Logger
	timeout  time.Duration

	mu       sync.Mutex
	inFlight map[string]struct{}
}

func NewPipeline(formName string, endpoint Endpoint, sink *analytics.Sink, log logger.Logger, timeout time.Duration) *Pipeline {
	return &Pipeline{
		formName: formName,
		endpoint: endpoint,
		sink:     sink,
		logger:   log,
		timeout:  timeout,
		inFlight: make(map[string]struct{}),
	}
}

func (p *Pipeline) FormName() string {
	return p.formName
}

func (p *Pipeline) acquire(key string) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	if _, busy := p.inFlight[key]; busy {
		return false
	}
	p.inFlight[key] = struct{}{}
	return true
}

func (p *Pipeline) release(key string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	delete(p.inFlight, key)
}

// InstanceKey scopes single-flight to one visitor's copy of the form.
func (p *Pipeline) InstanceKey(client string) string {
	return p.formName + ":" + client
}

func (p *Pipeline) Submit(ctx context.Context, key string, payload Payload) (outcome Outcome, err error) {
	start := time.Now()
	status := "success"
	defer func() {
		metrics.IncFormSubmission(p.formName, p.endpoint.Name(), status)
		metrics.ObserveFormSubmissionDuration(p.endpoint.Name(), status, time.Since(start))
	}()

	if !p.acquire(key) {
		status = "in_flight"
		p.sink.TrackFormSubmission(ctx, p.formName, false, MsgSubmissionInFlight)
		return Outcome{}, ErrSubmissionInFlight
	}
	defer p.release(key)

	ctx, span := tracing.StartSpan(ctx, tracerName, "form.submit",
		attribute.String("form.name", p.formName),
		attribute.String("form.endpoint", p.endpoint.Name()),
	)
	defer func() { tracing.EndSpan(span, err) }()

	sub := Submission{
		ID:             uuid.NewString(),
		FormName:       p.formName,
		Payload:        payload,
		SessionID:      logging.GetSessionID(ctx),
		IdempotencyKey: payload.Fingerprint(p.formName),
	}

	callCtx := ctx
	if p.timeout > 0 {
		var cancel context.CancelFunc
		callCtx, cancel = context.WithTimeout(ctx, p.timeout)
		defer cancel()
	}

	outcome, err = p.endpoint.Submit(callCtx, sub)
	if err == nil && !outcome.Success {
		err = ErrServerUnavailable
	}
	if err != nil {
		status = "failure"
		appErr := asSubmissionError(err)
		p.logger.WarnwCtx(ctx, "Form submission failed",
			"form", p.formName,
			"endpoint", p.endpoint.Name(),
			"error", err,
		)
		p.sink.TrackFormSubmission(ctx, p.formName, false, appErr.UserMessage())
		return Outcome{}, appErr
	}

	p.logger.InfowCtx(ctx, "Form submitted",
		"form", p.formName,
		"endpoint", p.endpoint.Name(),
		"submission_id", outcome.SubmissionID,
	)
	p.sink.TrackFormSubmission(ctx, p.formName, true, "")
	return outcome, nil
}

// asSubmissionError keeps endpoint application errors and reports anything
// else, timeouts included, as the server being unavailable.
func asSubmissionError(err error) *apperrors.Error {
	var appErr *apperrors.Error
	if errors.As(err, &appErr) {
		return appErr
	}
	return ErrServerUnavailable.WithCause(err)
}
