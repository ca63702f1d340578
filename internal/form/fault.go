package form

import (
	"math/rand"
	"sync"
	"time"
)

// FaultStrategy decides whether a simulated submission fails.
type FaultStrategy interface {
	ShouldFail() bool
}

// ProbabilityFault fails each call independently with probability P.
type ProbabilityFault struct {
	P   float64
	mu  sync.Mutex
	rnd *rand.Rand
}

func NewProbabilityFault(p float64, src rand.Source) *ProbabilityFault {
	if src == nil {
		src = rand.NewSource(time.Now().UnixNano())
	}
	return &ProbabilityFault{P: p, rnd: rand.New(src)}
}

func (f *ProbabilityFault) ShouldFail() bool {
	if f.P <= 0 {
		return false
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.rnd.Float64() < f.P
}

type AlwaysFail struct{}

func (AlwaysFail) ShouldFail() bool { return true }

type NeverFail struct{}

func (NeverFail) ShouldFail() bool { return false }
