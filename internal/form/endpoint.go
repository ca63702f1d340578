package form

import (
	"context"
	"time"

	"microsite/internal/constants"
	apperrors "microsite/pkg/errors"
)

const (
	MsgSubmissionSuccess = "Thank you for your interest! We will contact you soon."
	MsgServerUnavailable = "Server temporarily unavailable. Please try again."
)

// ErrServerUnavailable is the transient failure every endpoint reports when
// a submission could not be accepted.
var ErrServerUnavailable = apperrors.ErrServiceUnavailable.WithDetail("message", MsgServerUnavailable)

// Submission is one attempt to submit a validated form.
type Submission struct {
	ID             string
	FormName       string
	Payload        Payload
	SessionID      string
	IdempotencyKey string
}

type Outcome struct {
	Success      bool   `json:"success"`
	Message      string `json:"message"`
	SubmissionID string `json:"submission_id,omitempty"`
}

// Endpoint accepts submissions. Implementations must be idempotent on
// Submission.IdempotencyKey when they persist anything.
type Endpoint interface {
	Name() string
	Submit(ctx context.Context, sub Submission) (Outcome, error)
}

// SimulatedEndpoint waits a fixed latency and then succeeds unless the fault
// strategy fires.
type SimulatedEndpoint struct {
	latency time.Duration
	fault   FaultStrategy
}

func NewSimulatedEndpoint(latency time.Duration, fault FaultStrategy) *SimulatedEndpoint {
	if fault == nil {
		fault = NewProbabilityFault(constants.DefaultFailureRate, nil)
	}
	return &SimulatedEndpoint{latency: latency, fault: fault}
}

func (e *SimulatedEndpoint) Name() string {
	return constants.EndpointSimulated
}

func (e *SimulatedEndpoint) Submit(ctx context.Context, sub Submission) (Outcome, error) {
	if e.latency > 0 {
		timer := time.NewTimer(e.latency)
		defer timer.Stop()
		select {
		case <-ctx.Done():
			return Outcome{}, ctx.Err()
		case <-timer.C:
		}
	}

	if e.fault.ShouldFail() {
		return Outcome{}, ErrServerUnavailable
	}
	return Outcome{Success: true, Message: MsgSubmissionSuccess, SubmissionID: sub.ID}, nil
}
