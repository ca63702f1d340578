package analytics

import (
	"context"
	"errors"
	"math"
	"sync"
	"time"

	"github.com/google/uuid"

	"microsite/internal/logger"
	"microsite/pkg/logging"
	"microsite/pkg/metrics"
	"microsite/pkg/timing"
)

// ScrollMilestones are reported once each, in ascending order, the first time
// a session's scroll depth reaches them.
var ScrollMilestones = []int{25, 50, 75, 90}

// ScrollUpdate carries either a precomputed percentage or the raw viewport
// geometry it is derived from.
type ScrollUpdate struct {
	Percent        *int    `json:"percent,omitempty"`
	ScrollY        float64 `json:"scroll_y"`
	ScrollHeight   float64 `json:"scroll_height"`
	ViewportHeight float64 `json:"viewport_height"`
}

// Depth returns the scroll depth in whole percent, clamped to [0, 100]. A page
// shorter than the viewport counts as fully scrolled.
func (u ScrollUpdate) Depth() int {
	var pct float64
	if u.Percent != nil {
		pct = float64(*u.Percent)
	} else {
		scrollable := u.ScrollHeight - u.ViewportHeight
		if scrollable <= 0 {
			pct = 100
		} else {
			pct = math.Round(u.ScrollY / scrollable * 100)
		}
	}
	return int(math.Max(0, math.Min(100, pct)))
}

type ScrollResult struct {
	Throttled      bool  `json:"throttled"`
	Depth          int   `json:"depth"`
	MaxScrollDepth int   `json:"max_scroll_depth"`
	Reported       []int `json:"reported"`
}

type SessionSummary struct {
	ID             string `json:"id"`
	Seconds        int    `json:"seconds"`
	MaxScrollDepth int    `json:"max_scroll_depth"`
}

// Tracker owns page sessions: page views, scroll milestones and time on page.
type Tracker struct {
	store    SessionStore
	sink     *Sink
	throttle *timing.Throttle
	logger   logger.Logger
	now      func() time.Time
	locks    sync.Map
}

func NewTracker(store SessionStore, sink *Sink, throttle *timing.Throttle, log logger.Logger) *Tracker {
	return &Tracker{
		store:    store,
		sink:     sink,
		throttle: throttle,
		logger:   log,
		now:      time.Now,
	}
}

func (t *Tracker) lock(id string) func() {
	v, _ := t.locks.LoadOrStore(id, &sync.Mutex{})
	mu := v.(*sync.Mutex)
	mu.Lock()
	return mu.Unlock
}

// PruneLocks drops the per-session locks of sessions the store no longer
// holds, such as sessions that expired without an end. Locks currently held
// are left alone. It returns the number of locks dropped.
func (t *Tracker) PruneLocks(ctx context.Context) int {
	pruned := 0
	t.locks.Range(func(key, value interface{}) bool {
		mu := value.(*sync.Mutex)
		if !mu.TryLock() {
			return true
		}
		_, err := t.store.Get(ctx, key.(string))
		if errors.Is(err, ErrSessionNotFound) {
			t.locks.Delete(key)
			pruned++
		}
		mu.Unlock()
		return ctx.Err() == nil
	})
	return pruned
}

// Start opens a session for the page in ctx and reports the page view.
func (t *Tracker) Start(ctx context.Context, pageName string) (*PageSession, error) {
	page := PageFrom(ctx)
	page.SessionID = uuid.NewString()

	session := &PageSession{
		ID:         page.SessionID,
		StartedAt:  t.now().UTC(),
		Page:       page,
		Milestones: []int{},
	}
	if err := t.store.Save(ctx, session); err != nil {
		return nil, err
	}

	if pageName == "" {
		pageName = "home"
	}
	ctx = t.sessionContext(ctx, session)
	t.sink.TrackEvent(ctx, EventPageView, map[string]interface{}{
		"page":     pageName,
		"referrer": page.Referrer,
	})
	t.logger.DebugwCtx(ctx, "Page session started", "page", pageName)

	return session, nil
}

func (t *Tracker) sessionContext(ctx context.Context, session *PageSession) context.Context {
	ctx = WithPage(ctx, session.Page)
	return logging.WithSessionID(ctx, session.ID)
}

// Scroll records a scroll position. Updates arriving within the throttle
// window of the previous accepted one are dropped.
func (t *Tracker) Scroll(ctx context.Context, id string, update ScrollUpdate) (ScrollResult, error) {
	unlock := t.lock(id)
	defer unlock()

	session, err := t.store.Get(ctx, id)
	if err != nil {
		if errors.Is(err, ErrSessionNotFound) {
			t.locks.Delete(id)
		}
		return ScrollResult{}, err
	}

	depth := update.Depth()
	result := ScrollResult{Depth: depth, MaxScrollDepth: session.MaxScrollDepth, Reported: []int{}}

	if t.throttle != nil && !t.throttle.Allow(id) {
		result.Throttled = true
		return result, nil
	}

	if depth <= session.MaxScrollDepth {
		return result, nil
	}
	session.MaxScrollDepth = depth
	result.MaxScrollDepth = depth

	for _, milestone := range ScrollMilestones {
		if depth >= milestone && !session.reported(milestone) {
			session.Milestones = append(session.Milestones, milestone)
			result.Reported = append(result.Reported, milestone)
		}
	}

	if err := t.store.Save(ctx, session); err != nil {
		return ScrollResult{}, err
	}

	ctx = t.sessionContext(ctx, session)
	for _, milestone := range result.Reported {
		metrics.IncScrollMilestone(milestone)
		t.sink.TrackEvent(ctx, EventScrollDepth, map[string]interface{}{"depth": milestone})
	}

	return result, nil
}

// End closes the session and reports time on page.
func (t *Tracker) End(ctx context.Context, id string) (SessionSummary, error) {
	unlock := t.lock(id)
	defer func() {
		unlock()
		t.locks.Delete(id)
	}()

	session, err := t.store.Get(ctx, id)
	if err != nil {
		return SessionSummary{}, err
	}

	summary := SessionSummary{
		ID:             session.ID,
		Seconds:        int(math.Round(t.now().Sub(session.StartedAt).Seconds())),
		MaxScrollDepth: session.MaxScrollDepth,
	}

	if err := t.store.Delete(ctx, id); err != nil {
		return SessionSummary{}, err
	}
	if t.throttle != nil {
		t.throttle.Forget(id)
	}

	ctx = t.sessionContext(ctx, session)
	t.sink.TrackEvent(ctx, EventTimeOnPage, map[string]interface{}{
		"seconds":        summary.Seconds,
		"maxScrollDepth": summary.MaxScrollDepth,
	})

	return summary, nil
}
