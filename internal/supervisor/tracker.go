package supervisor

import (
	"sync"
	"time"
)

// tracker counts consecutive probe failures and owns the restart backoff.
// A restart is due once failures reach the threshold and the previous
// restart's backoff window has expired.
type tracker struct {
	threshold      int
	initialBackoff time.Duration
	maxBackoff     time.Duration

	mu             sync.Mutex
	failures       int
	currentBackoff time.Duration
	restartAfter   time.Time

	// now is injectable for testing. Defaults to time.Now.
	now func() time.Time
}

func newTracker(threshold int, initialBackoff, maxBackoff time.Duration) *tracker {
	if threshold <= 0 {
		threshold = 3
	}
	if initialBackoff <= 0 {
		initialBackoff = 2 * time.Second
	}
	if maxBackoff <= 0 {
		maxBackoff = 60 * time.Second
	}
	return &tracker{
		threshold:      threshold,
		initialBackoff: initialBackoff,
		maxBackoff:     maxBackoff,
		now:            time.Now,
	}
}

// RecordSuccess resets the failure count and the backoff ladder.
func (t *tracker) RecordSuccess() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.failures = 0
	t.currentBackoff = 0
	t.restartAfter = time.Time{}
}

// RecordFailure counts one failed probe and reports whether a restart is due.
func (t *tracker) RecordFailure() bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.failures++
	if t.failures < t.threshold {
		return false
	}
	return !t.now().Before(t.restartAfter)
}

// RecordRestart resets the failure count and arms the next backoff window.
// Each restart doubles the backoff up to the cap; a later successful probe
// resets the ladder.
func (t *tracker) RecordRestart() {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.failures = 0
	if t.currentBackoff == 0 {
		t.currentBackoff = t.initialBackoff
	} else {
		t.currentBackoff *= 2
	}
	if t.currentBackoff > t.maxBackoff {
		t.currentBackoff = t.maxBackoff
	}
	t.restartAfter = t.now().Add(t.currentBackoff)
}

// Failures returns the current consecutive failure count.
func (t *tracker) Failures() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.failures
}

// CurrentBackoff returns the backoff applied after the last restart.
func (t *tracker) CurrentBackoff() time.Duration {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.currentBackoff
}
