package typing

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type manualScheduler struct {
	mu        sync.Mutex
	period    time.Duration
	fn        func()
	scheduled int
	cancelled int
}

func (s *manualScheduler) Every(d time.Duration, fn func()) func() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.period = d
	s.fn = fn
	s.scheduled++
	return func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		s.cancelled++
	}
}

// advance fires n ticks of the most recent schedule, even after cancel.
func (s *manualScheduler) advance(n int) {
	s.mu.Lock()
	fn := s.fn
	s.mu.Unlock()
	for i := 0; i < n; i++ {
		fn()
	}
}

type recorder struct {
	mu     sync.Mutex
	events []bool
}

func (r *recorder) notify(typing bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, typing)
}

func (r *recorder) get() []bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]bool(nil), r.events...)
}

func TestDebouncerBurstYieldsOneStartOneStop(t *testing.T) {
	sched := &manualScheduler{}
	rec := &recorder{}
	db := NewDebouncer(rec.notify, WithScheduler(sched))

	for i := 0; i < 10; i++ {
		db.Keystroke()
		sched.advance(5)
	}
	assert.Equal(t, []bool{true}, rec.get())
	assert.Equal(t, StateTyping, db.State())
	assert.Equal(t, 1, sched.scheduled)
	assert.Equal(t, DefaultTick, sched.period)

	// 500ms already elapsed since the last keystroke.
	sched.advance(14)
	assert.Equal(t, StateTyping, db.State(), "1900ms of silence is still typing")

	sched.advance(1)
	assert.Equal(t, []bool{true, false}, rec.get())
	assert.Equal(t, StateIdle, db.State())
	assert.Equal(t, 1, sched.cancelled)
}

func TestDebouncerKeystrokeResetsElapsed(t *testing.T) {
	sched := &manualScheduler{}
	rec := &recorder{}
	db := NewDebouncer(rec.notify, WithScheduler(sched), WithTick(10*time.Millisecond), WithTimeout(50*time.Millisecond))

	db.Keystroke()
	sched.advance(4)
	db.Keystroke()
	sched.advance(4)
	assert.Equal(t, StateTyping, db.State())

	sched.advance(1)
	assert.Equal(t, StateIdle, db.State())
	assert.Equal(t, []bool{true, false}, rec.get())
}

func TestDebouncerStaleTicksAreIgnored(t *testing.T) {
	sched := &manualScheduler{}
	rec := &recorder{}
	db := NewDebouncer(rec.notify, WithScheduler(sched), WithTick(10*time.Millisecond), WithTimeout(20*time.Millisecond))

	db.Keystroke()
	sched.advance(2)
	require.Equal(t, StateIdle, db.State())

	// A tick delivered after the cancel must not change anything.
	sched.advance(3)
	assert.Equal(t, []bool{true, false}, rec.get())

	db.Keystroke()
	assert.Equal(t, []bool{true, false, true}, rec.get())
	assert.Equal(t, 2, sched.scheduled)
}

func TestDebouncerClose(t *testing.T) {
	sched := &manualScheduler{}
	rec := &recorder{}
	db := NewDebouncer(rec.notify, WithScheduler(sched))

	db.Keystroke()
	db.Close()
	assert.Equal(t, []bool{true, false}, rec.get())
	assert.Equal(t, 1, sched.cancelled)

	db.Keystroke()
	db.Close()
	assert.Equal(t, []bool{true, false}, rec.get(), "closed debouncer ignores input")
}

func TestDebouncerStopWhileIdle(t *testing.T) {
	rec := &recorder{}
	db := NewDebouncer(rec.notify, WithScheduler(&manualScheduler{}))
	db.Stop()
	assert.Empty(t, rec.get())
}

func TestDebouncerWithTicker(t *testing.T) {
	if testing.Short() {
		t.Skip("uses real time")
	}
	stopped := make(chan struct{})
	var once sync.Once
	db := NewDebouncer(func(typing bool) {
		if !typing {
			once.Do(func() { close(stopped) })
		}
	}, WithTick(5*time.Millisecond), WithTimeout(20*time.Millisecond))

	db.Keystroke()
	select {
	case <-stopped:
	case <-time.After(2 * time.Second):
		t.Fatal("debouncer never emitted stop")
	}
	assert.Equal(t, StateIdle, db.State())
}
