package announcement

import (
	"context"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"microsite/internal/analytics"
	"microsite/internal/analytics/analyticstest"
	"microsite/internal/logger"
	apperrors "microsite/pkg/errors"
)

func newTestFeed(source Source) (*Feed, *analyticstest.Recorder) {
	rec := analyticstest.NewRecorder()
	loader := NewLoader(source, nil, 0, logger.NopLogger())
	return NewFeed(loader, NewRenderer(false), rec.Sink(), logger.NopLogger()), rec
}

func cardIDs(html string) []string {
	var ids []string
	for _, part := range strings.Split(html, `data-id="`)[1:] {
		ids = append(ids, part[:strings.Index(part, `"`)])
	}
	return ids
}

func TestFeed_RenderScenario(t *testing.T) {
	feed, rec := newTestFeed(staticSource{data: []byte(scenarioDocument)})
	container := NewMemoryContainer("announcements-list")

	result := feed.Render(context.Background(), container)

	assert.False(t, result.Placeholder)
	assert.Equal(t, []string{"2", "1"}, cardIDs(container.HTML()))
	assert.Equal(t, 1, container.Writes())

	events := rec.Named(analytics.EventAnnouncementsLoaded)
	require.Len(t, events, 1)
	want := map[string]interface{}{"count": 2, "types": []string{"feature", "info"}}
	got := map[string]interface{}{"count": events[0].Properties["count"], "types": events[0].Properties["types"]}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("announcements_loaded mismatch (-want +got):\n%s", diff)
	}
}

func TestFeed_EmptyShowsPlaceholder(t *testing.T) {
	feed, rec := newTestFeed(&FetchErrorSource{Status: 500})
	container := NewMemoryContainer("announcements-list")

	result := feed.Render(context.Background(), container)

	assert.True(t, result.Placeholder)
	assert.False(t, result.Failed)
	assert.Equal(t, EmptyPlaceholder, container.HTML())
	assert.Empty(t, rec.Named(analytics.EventAnnouncementsLoaded))
}

// FetchErrorSource behaves like a feed URL answering with an error status.
type FetchErrorSource struct {
	Status int
}

func (s *FetchErrorSource) Fetch(context.Context) ([]byte, error) {
	return nil, &FetchError{Status: s.Status}
}

type panicSource struct{}

func (panicSource) Fetch(context.Context) ([]byte, error) {
	panic("unexpected")
}

func TestFeed_RenderErrorShowsErrorPlaceholder(t *testing.T) {
	feed, _ := newTestFeed(panicSource{})
	container := NewMemoryContainer("announcements-list")

	var result RenderResult
	assert.NotPanics(t, func() {
		result = feed.Render(context.Background(), container)
	})

	assert.True(t, result.Failed)
	assert.Equal(t, ErrorPlaceholder, container.HTML())
}

func TestFeed_NilContainerIsNoop(t *testing.T) {
	feed, rec := newTestFeed(staticSource{data: []byte(scenarioDocument)})

	result := feed.Render(context.Background(), nil)

	assert.Empty(t, result.HTML)
	assert.Empty(t, rec.Events())
}

type gatedSource struct {
	calls   atomic.Int32
	entered chan struct{}
	gate    chan struct{}
	data    []byte
	onFetch func(call int32)
}

func (s *gatedSource) Fetch(context.Context) ([]byte, error) {
	call := s.calls.Add(1)
	if s.onFetch != nil {
		s.onFetch(call)
	}
	if s.entered != nil && call == 1 {
		close(s.entered)
		<-s.gate
	}
	return s.data, nil
}

func TestFeed_ConcurrentRendersCoalesce(t *testing.T) {
	source := &gatedSource{entered: make(chan struct{}), gate: make(chan struct{}), data: []byte(scenarioDocument)}
	feed, rec := newTestFeed(source)
	container := NewMemoryContainer("announcements-list")

	var wg sync.WaitGroup
	results := make([]RenderResult, 5)
	wg.Add(1)
	go func() {
		defer wg.Done()
		results[0] = feed.Render(context.Background(), container)
	}()
	<-source.entered

	for i := 1; i < 5; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i] = feed.Render(context.Background(), container)
		}(i)
	}
	time.Sleep(50 * time.Millisecond)
	close(source.gate)
	wg.Wait()

	// coalesced callers share a pass: one fetch, one write and one event each
	passes := int(source.calls.Load())
	assert.Less(t, passes, 5)
	assert.Equal(t, passes, container.Writes())
	assert.Len(t, rec.Named(analytics.EventAnnouncementsLoaded), passes)
	for _, r := range results {
		assert.Equal(t, []string{"2", "1"}, cardIDs(r.HTML))
	}
}

func TestFeed_SharedPassWritesEveryContainer(t *testing.T) {
	source := &gatedSource{entered: make(chan struct{}), gate: make(chan struct{}), data: []byte(scenarioDocument)}
	feed, _ := newTestFeed(source)
	first := NewMemoryContainer("announcements-list")
	second := NewMemoryContainer("announcements-list")

	var wg sync.WaitGroup
	var firstResult, secondResult RenderResult
	wg.Add(2)
	go func() {
		defer wg.Done()
		firstResult = feed.Render(context.Background(), first)
	}()
	<-source.entered
	go func() {
		defer wg.Done()
		secondResult = feed.Render(context.Background(), second)
	}()
	time.Sleep(50 * time.Millisecond)
	close(source.gate)
	wg.Wait()

	assert.Equal(t, 1, first.Writes())
	assert.Equal(t, 1, second.Writes())
	assert.Equal(t, firstResult.HTML, first.HTML())
	assert.Equal(t, secondResult.HTML, second.HTML())
	assert.Equal(t, first.HTML(), second.HTML())
	assert.Equal(t, []string{"2", "1"}, cardIDs(second.HTML()))
}

func TestFeed_InvalidateDuringPassRendersFreshDocument(t *testing.T) {
	var feed *Feed
	source := &gatedSource{data: []byte(scenarioDocument)}
	source.onFetch = func(call int32) {
		if call == 1 {
			source.data = []byte(`[{"id":9,"title":"New","date":"2024-01-01","type":"info","priority":1,"active":true}]`)
			feed.Invalidate()
		}
	}
	feed, _ = newTestFeed(source)
	container := NewMemoryContainer("announcements-list")

	feed.Render(context.Background(), container)

	assert.Equal(t, int32(2), source.calls.Load())
	assert.Equal(t, 1, container.Writes())
	assert.Equal(t, []string{"9"}, cardIDs(container.HTML()))
	assert.Equal(t, uint64(1), feed.Generation())
}

func TestFeed_TrackClick(t *testing.T) {
	feed, rec := newTestFeed(staticSource{data: []byte(scenarioDocument)})
	feed.Render(context.Background(), NewMemoryContainer("announcements-list"))

	require.NoError(t, feed.TrackClick(context.Background(), "2"))
	clicks := rec.Named(analytics.EventAnnouncementClicked)
	require.Len(t, clicks, 1)
	assert.Equal(t, "2", clicks[0].Properties["announcement_id"])

	err := feed.TrackClick(context.Background(), "3")
	assert.True(t, apperrors.IsNotFound(err), "inactive announcements were never rendered")
}
