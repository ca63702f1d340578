package announcement

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"microsite/internal/constants"
	"microsite/internal/logger"
	"microsite/pkg/cel"
	"microsite/pkg/circuitbreaker"
	"microsite/pkg/metrics"
)

// Source returns the raw feed document.
type Source interface {
	Fetch(ctx context.Context) ([]byte, error)
}

// FetchError is a non-success HTTP status from the feed URL.
type FetchError struct {
	URL    string
	Status int
}

func (e *FetchError) Error() string {
	return fmt.Sprintf("HTTP error! status: %d", e.Status)
}

// HTTPSource fetches the feed document over HTTP through a circuit breaker.
type HTTPSource struct {
	client  *http.Client
	url     string
	breaker *circuitbreaker.Wrapper
}

func NewHTTPSource(client *http.Client, url string, breaker *circuitbreaker.Wrapper) *HTTPSource {
	if client == nil {
		client = &http.Client{Timeout: constants.DefaultHTTPTimeout}
	}
	return &HTTPSource{client: client, url: url, breaker: breaker}
}

func (s *HTTPSource) Fetch(ctx context.Context) ([]byte, error) {
	get := func(ctx context.Context) ([]byte, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.url, nil)
		if err != nil {
			return nil, fmt.Errorf("failed to build request: %w", err)
		}
		req.Header.Set("Accept", "application/json")

		resp, err := s.client.Do(req)
		if err != nil {
			return nil, fmt.Errorf("failed to fetch announcements: %w", err)
		}
		defer resp.Body.Close()

		if resp.StatusCode < constants.HTTPStatusOKMin || resp.StatusCode >= constants.HTTPStatusOKMax {
			_, _ = io.Copy(io.Discard, resp.Body)
			return nil, &FetchError{URL: s.url, Status: resp.StatusCode}
		}
		return io.ReadAll(resp.Body)
	}

	if s.breaker == nil {
		return get(ctx)
	}
	return circuitbreaker.Execute(ctx, s.breaker, get)
}

// Loader fetches the feed and narrows it to what may be shown.
type Loader struct {
	source     Source
	visibility *cel.Filter
	timeout    time.Duration
	logger     logger.Logger
	now        func() time.Time
}

// NewLoader builds a loader. visibility may be nil.
func NewLoader(source Source, visibility *cel.Filter, timeout time.Duration, log logger.Logger) *Loader {
	return &Loader{
		source:     source,
		visibility: visibility,
		timeout:    timeout,
		logger:     log,
		now:        time.Now,
	}
}

// CompileVisibility compiles a feed visibility expression. An empty
// expression yields a nil filter.
func CompileVisibility(expression string) (*cel.Filter, error) {
	if expression == "" {
		return nil, nil
	}
	evaluator, err := cel.NewEvaluator(constants.VisibilityVariable)
	if err != nil {
		return nil, err
	}
	return evaluator.CompileFilter(expression)
}

// Load returns the active, visible announcements in document order. Fetch
// and parse failures are logged and yield an empty list.
func (l *Loader) Load(ctx context.Context) []Announcement {
	if l.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, l.timeout)
		defer cancel()
	}

	data, err := l.source.Fetch(ctx)
	if err != nil {
		metrics.IncFeedFetch("error")
		l.logger.ErrorwCtx(ctx, "Error loading announcements", "error", err)
		return []Announcement{}
	}

	list, err := Document(data)
	if err != nil {
		metrics.IncFeedFetch("parse_error")
		l.logger.ErrorwCtx(ctx, "Error loading announcements", "error", err)
		return []Announcement{}
	}
	metrics.IncFeedFetch("success")

	active := l.visible(ctx, FilterActive(list))
	metrics.SetFeedActiveAnnouncements(len(active))
	return active
}

func (l *Loader) visible(ctx context.Context, list []Announcement) []Announcement {
	if l.visibility == nil {
		return list
	}

	now := l.now()
	out := make([]Announcement, 0, len(list))
	for _, a := range list {
		ok, err := l.visibility.Matches(ctx, a.celDocument(), now)
		if err != nil {
			l.logger.WarnwCtx(ctx, "Visibility expression failed, hiding announcement",
				"announcement_id", a.ID.String(),
				"expression", l.visibility.Expression(),
				"error", err,
			)
			continue
		}
		if ok {
			out = append(out, a)
		}
	}
	return out
}
