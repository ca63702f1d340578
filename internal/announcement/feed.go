package announcement

import (
	"context"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"golang.org/x/sync/singleflight"

	"microsite/internal/analytics"
	"microsite/internal/logger"
	apperrors "microsite/pkg/errors"
	"microsite/pkg/metrics"
	"microsite/pkg/tracing"
)

const tracerName = "microsite-feed"

// Container is the region a render pass writes into. Replace is called
// exactly once per pass.
type Container interface {
	ID() string
	Replace(html string) error
}

// MemoryContainer holds the last markup written to it.
type MemoryContainer struct {
	id     string
	mu     sync.RWMutex
	html   string
	writes int
}

func NewMemoryContainer(id string) *MemoryContainer {
	return &MemoryContainer{id: id}
}

func (c *MemoryContainer) ID() string { return c.id }

func (c *MemoryContainer) Replace(html string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.html = html
	c.writes++
	return nil
}

func (c *MemoryContainer) HTML() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.html
}

// Writes counts Replace calls.
func (c *MemoryContainer) Writes() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.writes
}

type RenderResult struct {
	HTML          string         `json:"html"`
	Announcements []Announcement `json:"announcements"`
	Placeholder   bool           `json:"placeholder"`
	Failed        bool           `json:"failed"`
}

// Feed coordinates render passes: concurrent passes for one container share
// a single load, and a pass that started before Invalidate is rerun once.
type Feed struct {
	loader   *Loader
	renderer *Renderer
	sink     *analytics.Sink
	logger   logger.Logger

	group      singleflight.Group
	generation atomic.Uint64

	mu       sync.RWMutex
	rendered map[string]struct{}
}

func NewFeed(loader *Loader, renderer *Renderer, sink *analytics.Sink, log logger.Logger) *Feed {
	if renderer == nil {
		renderer = NewRenderer(false)
	}
	return &Feed{
		loader:   loader,
		renderer: renderer,
		sink:     sink,
		logger:   log,
		rendered: make(map[string]struct{}),
	}
}

// Invalidate marks the feed document as changed. Passes in progress discard
// what they loaded.
func (f *Feed) Invalidate() {
	f.generation.Add(1)
}

func (f *Feed) Generation() uint64 {
	return f.generation.Load()
}

// Render runs one render pass into container. A nil container is a no-op.
// Errors never reach the caller; they end up as the error placeholder.
func (f *Feed) Render(ctx context.Context, container Container) RenderResult {
	if container == nil {
		return RenderResult{}
	}

	v, _, shared := f.group.Do(container.ID(), func() (interface{}, error) {
		return renderPass{
			result:    f.pass(context.WithoutCancel(ctx), container),
			container: container,
		}, nil
	})
	p := v.(renderPass)
	if shared && p.container != container {
		if err := container.Replace(p.result.HTML); err != nil {
			f.logger.ErrorwCtx(ctx, "Failed to write announcements", "container", container.ID(), "error", err)
			p.result.Failed = true
		}
	}
	return p.result
}

// renderPass is what a shared pass hands to every caller joined on it.
type renderPass struct {
	result    RenderResult
	container Container
}

func (f *Feed) pass(ctx context.Context, container Container) (result RenderResult) {
	start := time.Now()
	ctx, span := tracing.StartSpan(ctx, tracerName, "feed.render",
		attribute.String("feed.container", container.ID()),
	)

	defer func() {
		if r := recover(); r != nil {
			err := apperrors.RecoverPanic(r)
			f.logger.ErrorwCtx(ctx, "Error rendering announcements", "error", err)
			result = f.fail(ctx, container)
		}
		status := "rendered"
		switch {
		case result.Failed:
			status = "error"
		case result.Placeholder:
			status = "empty"
		}
		metrics.ObserveFeedRender(status, time.Since(start))
		span.SetAttributes(attribute.Int("feed.count", len(result.Announcements)), attribute.String("feed.result", status))
		span.End()
	}()

	list, markup, err := f.build(ctx)
	if err != nil {
		f.logger.ErrorwCtx(ctx, "Error rendering announcements", "error", err)
		return f.fail(ctx, container)
	}

	if err := container.Replace(markup); err != nil {
		f.logger.ErrorwCtx(ctx, "Failed to write announcements", "container", container.ID(), "error", err)
		return RenderResult{HTML: markup, Announcements: list, Failed: true}
	}

	f.remember(list)
	if len(list) == 0 {
		return RenderResult{HTML: markup, Announcements: list, Placeholder: true}
	}

	f.sink.TrackEvent(ctx, analytics.EventAnnouncementsLoaded, map[string]interface{}{
		"count": len(list),
		"types": Types(list),
	})
	return RenderResult{HTML: markup, Announcements: list}
}

// build loads and renders, retrying once when the document changed while
// the first attempt was running.
func (f *Feed) build(ctx context.Context) ([]Announcement, string, error) {
	var (
		list   []Announcement
		markup string
		err    error
	)
	for attempt := 0; attempt < 2; attempt++ {
		gen := f.generation.Load()
		list, markup, err = f.buildOnce(ctx)
		if err != nil || f.generation.Load() == gen {
			break
		}
		f.logger.DebugwCtx(ctx, "Feed changed during render, rendering again", "generation", gen)
	}
	return list, markup, err
}

func (f *Feed) buildOnce(ctx context.Context) ([]Announcement, string, error) {
	list := f.loader.Load(ctx)
	if len(list) == 0 {
		return list, EmptyPlaceholder, nil
	}

	Sort(list)

	var sb strings.Builder
	for _, a := range list {
		card, err := f.renderer.Render(a)
		if err != nil {
			return nil, "", err
		}
		sb.WriteString(card)
	}
	return list, sb.String(), nil
}

func (f *Feed) fail(ctx context.Context, container Container) RenderResult {
	if err := container.Replace(ErrorPlaceholder); err != nil {
		f.logger.ErrorwCtx(ctx, "Failed to write announcements", "container", container.ID(), "error", err)
	}
	f.remember(nil)
	return RenderResult{HTML: ErrorPlaceholder, Announcements: []Announcement{}, Placeholder: true, Failed: true}
}

func (f *Feed) remember(list []Announcement) {
	ids := make(map[string]struct{}, len(list))
	for _, a := range list {
		ids[a.ID.String()] = struct{}{}
	}
	f.mu.Lock()
	f.rendered = ids
	f.mu.Unlock()
}

// ErrUnknownAnnouncement rejects clicks on cards the last pass did not render.
var ErrUnknownAnnouncement = apperrors.ErrNotFound.WithDetail("message", "announcement not found")

// TrackClick reports a click on a card rendered by the last pass.
func (f *Feed) TrackClick(ctx context.Context, id string) error {
	f.mu.RLock()
	_, ok := f.rendered[id]
	f.mu.RUnlock()
	if !ok {
		return ErrUnknownAnnouncement.WithDetail("announcement_id", id)
	}

	f.sink.TrackEvent(ctx, analytics.EventAnnouncementClicked, map[string]interface{}{
		"announcement_id": id,
	})
	return nil
}
