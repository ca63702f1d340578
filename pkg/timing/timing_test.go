package timing

import (
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestDebouncer_CoalescesBursts(t *testing.T) {
	var calls atomic.Int32
	d := NewDebouncer(20*time.Millisecond, func() { calls.Add(1) })

	for i := 0; i < 5; i++ {
		d.Trigger()
		time.Sleep(2 * time.Millisecond)
	}

	assert.Eventually(t, func() bool { return calls.Load() == 1 }, time.Second, 5*time.Millisecond)
	time.Sleep(40 * time.Millisecond)
	assert.Equal(t, int32(1), calls.Load())
}

func TestDebouncer_Stop(t *testing.T) {
	var calls atomic.Int32
	d := NewDebouncer(10*time.Millisecond, func() { calls.Add(1) })

	d.Trigger()
	d.Stop()
	d.Trigger()

	time.Sleep(30 * time.Millisecond)
	assert.Zero(t, calls.Load())
}

func TestThrottle_Allow(t *testing.T) {
	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	th := NewThrottle(time.Second).WithClock(func() time.Time { return now })

	assert.True(t, th.Allow("s1"))
	assert.False(t, th.Allow("s1"))
	assert.True(t, th.Allow("s2"))

	now = now.Add(999 * time.Millisecond)
	assert.False(t, th.Allow("s1"))

	now = now.Add(time.Millisecond)
	assert.True(t, th.Allow("s1"))
}

func TestThrottle_ForgetAndPrune(t *testing.T) {
	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	th := NewThrottle(time.Second).WithClock(func() time.Time { return now })

	th.Allow("a")
	th.Forget("a")
	assert.True(t, th.Allow("a"))

	th.Allow("b")
	th.Prune(now.Add(5 * time.Second))
	assert.Empty(t, th.last)
}
