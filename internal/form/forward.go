package form

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"microsite/internal/constants"
	"microsite/internal/logger"
	"microsite/pkg/circuitbreaker"
)

const HeaderIdempotencyKey = "Idempotency-Key"

type forwardBody struct {
	SubmissionID string  `json:"submission_id"`
	FormName     string  `json:"form_name"`
	SessionID    string  `json:"session_id,omitempty"`
	Fields       Payload `json:"fields"`
}

type forwardResponse struct {
	ID      string `json:"id"`
	Message string `json:"message"`
}

// ForwardEndpoint posts submissions to an external intake service.
type ForwardEndpoint struct {
	client  *http.Client
	url     string
	headers map[string]string
	breaker *circuitbreaker.Wrapper
	logger  logger.Logger
}

func NewForwardEndpoint(client *http.Client, url string, headers map[string]string, breaker *circuitbreaker.Wrapper, log logger.Logger) *ForwardEndpoint {
	if client == nil {
		client = &http.Client{Timeout: constants.DefaultHTTPTimeout}
	}
	return &ForwardEndpoint{client: client, url: url, headers: headers, breaker: breaker, logger: log}
}

func (e *ForwardEndpoint) Name() string {
	return constants.EndpointForward
}

func (e *ForwardEndpoint) Submit(ctx context.Context, sub Submission) (Outcome, error) {
	body, err := json.Marshal(forwardBody{
		SubmissionID: sub.ID,
		FormName:     sub.FormName,
		SessionID:    sub.SessionID,
		Fields:       sub.Payload,
	})
	if err != nil {
		return Outcome{}, fmt.Errorf("failed to marshal submission: %w", err)
	}

	post := func(ctx context.Context) (forwardResponse, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, e.url, bytes.NewReader(body))
		if err != nil {
			return forwardResponse{}, fmt.Errorf("failed to build request: %w", err)
		}
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set(HeaderIdempotencyKey, sub.IdempotencyKey)
		for k, v := range e.headers {
			req.Header.Set(k, v)
		}

		resp, err := e.client.Do(req)
		if err != nil {
			return forwardResponse{}, fmt.Errorf("failed to forward submission: %w", err)
		}
		defer resp.Body.Close()

		data, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
		if resp.StatusCode < constants.HTTPStatusOKMin || resp.StatusCode >= constants.HTTPStatusOKMax {
			return forwardResponse{}, fmt.Errorf("intake service returned status %d", resp.StatusCode)
		}

		var out forwardResponse
		if len(bytes.TrimSpace(data)) > 0 {
			if err := json.Unmarshal(data, &out); err != nil {
				e.logger.DebugwCtx(ctx, "Ignoring non-JSON intake response", "error", err)
			}
		}
		return out, nil
	}

	var resp forwardResponse
	if e.breaker != nil {
		resp, err = circuitbreaker.Execute(ctx, e.breaker, post)
	} else {
		resp, err = post(ctx)
	}
	if err != nil {
		e.logger.WarnwCtx(ctx, "Submission forward failed", "url", e.url, "error", err)
		return Outcome{}, ErrServerUnavailable.WithCause(err)
	}

	id := resp.ID
	if id == "" {
		id = sub.ID
	}
	return Outcome{Success: true, Message: MsgSubmissionSuccess, SubmissionID: id}, nil
}
