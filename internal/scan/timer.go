package scan

import (
	"sync"
	"time"
)

// SessionTimer drives one recording window: a tick per interval for elapsed
// display and a single edge-triggered deadline callback when the window is
// spent. A stopped timer never fires the deadline, and the deadline fires at
// most once no matter how Stop and expiry race.
type SessionTimer struct {
	seconds    int
	interval   time.Duration
	onTick     func(elapsed int)
	onDeadline func()

	mu      sync.Mutex
	started bool
	stopped bool
	stop    chan struct{}
	done    chan struct{}
}

func NewSessionTimer(seconds int, onTick func(elapsed int), onDeadline func()) *SessionTimer {
	return newSessionTimer(seconds, time.Second, onTick, onDeadline)
}

func newSessionTimer(seconds int, interval time.Duration, onTick func(elapsed int), onDeadline func()) *SessionTimer {
	return &SessionTimer{
		seconds:    seconds,
		interval:   interval,
		onTick:     onTick,
		onDeadline: onDeadline,
		stop:       make(chan struct{}),
		done:       make(chan struct{}),
	}
}

// Start launches the countdown. Starting twice, or after Stop, is a no-op.
func (t *SessionTimer) Start() {
	t.mu.Lock()
	if t.started || t.stopped {
		t.mu.Unlock()
		return
	}
	t.started = true
	t.mu.Unlock()
	go t.run()
}

func (t *SessionTimer) run() {
	defer close(t.done)
	ticker := time.NewTicker(t.interval)
	defer ticker.Stop()

	elapsed := 0
	for {
		select {
		case <-t.stop:
			return
		case <-ticker.C:
			elapsed++
			t.onTick(elapsed)
			if elapsed >= t.seconds {
				// Claiming the stop flag before the callback makes the
				// deadline mutually exclusive with Stop: whichever side
				// wins, the other becomes a no-op.
				if t.tryStop() {
					t.onDeadline()
				}
				return
			}
		}
	}
}

// Stop halts the countdown without firing the deadline. Safe to call more
// than once and after expiry; it returns once the tick loop has exited.
func (t *SessionTimer) Stop() {
	t.mu.Lock()
	started := t.started
	t.mu.Unlock()
	if t.tryStop() && started {
		<-t.done
	}
}

func (t *SessionTimer) tryStop() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.stopped {
		return false
	}
	t.stopped = true
	close(t.stop)
	return true
}
