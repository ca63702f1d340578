// Package analyticstest provides a recording collector for tests.
package analyticstest

import (
	"context"
	"sync"

	"microsite/internal/analytics"
	"microsite/internal/logger"
)

type Recorded struct {
	Name       string
	Properties map[string]interface{}
}

// Recorder captures every event routed through the sink it builds.
type Recorder struct {
	mu     sync.Mutex
	events []Recorded
}

func NewRecorder() *Recorder {
	return &Recorder{}
}

func (r *Recorder) Track(_ context.Context, name string, properties map[string]interface{}) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, Recorded{Name: name, Properties: properties})
	return nil
}

// Sink returns a sink whose tracking function is the recorder.
func (r *Recorder) Sink(opts ...analytics.Option) *analytics.Sink {
	opts = append([]analytics.Option{analytics.WithTrackFunc(r.Track)}, opts...)
	return analytics.NewSink(logger.NopLogger(), opts...)
}

func (r *Recorder) Events() []Recorded {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Recorded(nil), r.events...)
}

// Named returns the recorded events with the given name, in order.
func (r *Recorder) Named(name string) []Recorded {
	var out []Recorded
	for _, e := range r.Events() {
		if e.Name == name {
			out = append(out, e)
		}
	}
	return out
}

func (r *Recorder) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = nil
}
