package schedule

import (
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestScheduleFires(t *testing.T) {
	s := New(5 * time.Millisecond)
	s.Start()
	defer s.Stop()

	var fired atomic.Int32
	s.Schedule("a", time.Now().Add(10*time.Millisecond), func() { fired.Add(1) })

	assert.Eventually(t, func() bool { return fired.Load() == 1 }, time.Second, 5*time.Millisecond)

	// Must not fire a second time
	time.Sleep(30 * time.Millisecond)
	assert.Equal(t, int32(1), fired.Load())
}

func TestCancel(t *testing.T) {
	s := New(5 * time.Millisecond)
	s.Start()
	defer s.Stop()

	var fired atomic.Int32
	s.Schedule("a", time.Now().Add(20*time.Millisecond), func() { fired.Add(1) })
	s.Cancel("a")

	time.Sleep(60 * time.Millisecond)
	assert.Equal(t, int32(0), fired.Load())
}

func TestCancelPrefix(t *testing.T) {
	s := New(5 * time.Millisecond)
	s.Start()
	defer s.Stop()

	var fired atomic.Int32
	s.Schedule("chan-1", time.Now().Add(20*time.Millisecond), func() { fired.Add(1) })
	s.Schedule("chan-2", time.Now().Add(20*time.Millisecond), func() { fired.Add(1) })
	s.Schedule("other-1", time.Now().Add(20*time.Millisecond), func() { fired.Add(1) })

	s.CancelPrefix("chan-")

	assert.Eventually(t, func() bool { return fired.Load() == 1 }, time.Second, 5*time.Millisecond)
	time.Sleep(30 * time.Millisecond)
	assert.Equal(t, int32(1), fired.Load())
}

func TestScheduleReplaces(t *testing.T) {
	s := New(5 * time.Millisecond)
	s.Start()
	defer s.Stop()

	var first, second atomic.Int32
	s.Schedule("a", time.Now().Add(15*time.Millisecond), func() { first.Add(1) })
	s.Schedule("a", time.Now().Add(15*time.Millisecond), func() { second.Add(1) })

	assert.Eventually(t, func() bool { return second.Load() == 1 }, time.Second, 5*time.Millisecond)
	assert.Equal(t, int32(0), first.Load())
}
