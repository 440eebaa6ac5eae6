// Package typing implements the client side of the typing indicator protocol:
// a burst of keystrokes becomes one start notification and, after a quiet
// period, one stop notification.
package typing

import (
	"sync"
	"time"
)

const (
	DefaultTick    = 100 * time.Millisecond
	DefaultTimeout = 2000 * time.Millisecond
)

// State is the debouncer state.
type State int

const (
	StateIdle State = iota
	StateTyping
)

func (s State) String() string {
	if s == StateTyping {
		return "typing"
	}
	return "idle"
}

// Scheduler runs fn every d until the returned cancel func is called.
type Scheduler interface {
	Every(d time.Duration, fn func()) (cancel func())
}

// TickerScheduler is a Scheduler backed by time.Ticker.
type TickerScheduler struct{}

// Every implements Scheduler.
func (TickerScheduler) Every(d time.Duration, fn func()) func() {
	ticker := time.NewTicker(d)
	done := make(chan struct{})
	go func() {
		for {
			select {
			case <-ticker.C:
				fn()
			case <-done:
				return
			}
		}
	}()

	var once sync.Once
	return func() {
		once.Do(func() {
			ticker.Stop()
			close(done)
		})
	}
}

// Notify receives true when typing starts and false when it stops. It is
// called with the debouncer lock held and must not block.
type Notify func(typing bool)

// Option configures a Debouncer.
type Option func(*Debouncer)

// WithTick sets the tick period.
func WithTick(d time.Duration) Option {
	return func(db *Debouncer) { db.tick = d }
}

// WithTimeout sets the quiet period after which typing stops.
func WithTimeout(d time.Duration) Option {
	return func(db *Debouncer) { db.timeout = d }
}

// WithScheduler replaces the ticker based scheduler.
func WithScheduler(s Scheduler) Option {
	return func(db *Debouncer) { db.scheduler = s }
}

// Debouncer is the Idle -> Typing(elapsed) -> Idle state machine.
type Debouncer struct {
	tick      time.Duration
	timeout   time.Duration
	scheduler Scheduler
	notify    Notify

	mu      sync.Mutex
	state   State
	elapsed time.Duration
	cancel  func()
	// gen changes on every schedule so a tick that raced a cancel is ignored.
	gen    uint64
	closed bool
}

// NewDebouncer creates an idle debouncer.
func NewDebouncer(notify Notify, opts ...Option) *Debouncer {
	db := &Debouncer{
		tick:      DefaultTick,
		timeout:   DefaultTimeout,
		scheduler: TickerScheduler{},
		notify:    notify,
	}
	for _, opt := range opts {
		opt(db)
	}
	return db
}

// Keystroke records one key press.
func (db *Debouncer) Keystroke() {
	db.mu.Lock()
	defer db.mu.Unlock()

	if db.closed {
		return
	}
	if db.state == StateTyping {
		db.elapsed = 0
		return
	}

	db.state = StateTyping
	db.elapsed = 0
	db.gen++
	gen := db.gen
	db.cancel = db.scheduler.Every(db.tick, func() { db.onTick(gen) })
	db.emit(true)
}

// Stop forces the debouncer back to Idle, for example after the message was sent.
func (db *Debouncer) Stop() {
	db.mu.Lock()
	defer db.mu.Unlock()
	db.toIdle()
}

// Close stops any pending schedule and emits stop if typing. Further
// keystrokes are ignored.
func (db *Debouncer) Close() {
	db.mu.Lock()
	defer db.mu.Unlock()
	db.toIdle()
	db.closed = true
}

// State returns the current state.
func (db *Debouncer) State() State {
	db.mu.Lock()
	defer db.mu.Unlock()
	return db.state
}

func (db *Debouncer) onTick(gen uint64) {
	db.mu.Lock()
	defer db.mu.Unlock()

	if db.state != StateTyping || gen != db.gen {
		return
	}
	db.elapsed += db.tick
	if db.elapsed >= db.timeout {
		db.toIdle()
	}
}

func (db *Debouncer) toIdle() {
	if db.state != StateTyping {
		return
	}
	if db.cancel != nil {
		db.cancel()
		db.cancel = nil
	}
	db.gen++
	db.state = StateIdle
	db.elapsed = 0
	db.emit(false)
}

func (db *Debouncer) emit(typing bool) {
	if db.notify != nil {
		db.notify(typing)
	}
}
