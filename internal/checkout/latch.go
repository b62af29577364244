package checkout

import (
	"sync"
	"time"
)

const (
	// DefaultSubmissionTTL bounds how long an unanswered gateway handoff blocks the session.
	DefaultSubmissionTTL = 15 * time.Minute

	// CleanupInterval is how often expired latches are dropped
	CleanupInterval = 30 * time.Second
)

// SubmissionLatch is the per-session isSubmitting flag. It is held from the
// start of Place Order until the gateway outcome is reported or a step fails,
// and expires after its TTL if the browser never reports back.
type SubmissionLatch struct {
	mu   sync.Mutex
	held map[string]time.Time // sessionID -> expiry
	ttl  time.Duration
	now  func() time.Time

	stopCleanup chan struct{}
	wg          sync.WaitGroup
}

func NewSubmissionLatch(ttl time.Duration) *SubmissionLatch {
	return newSubmissionLatch(ttl, time.Now)
}

func newSubmissionLatch(ttl time.Duration, now func() time.Time) *SubmissionLatch {
	if ttl <= 0 {
		ttl = DefaultSubmissionTTL
	}
	l := &SubmissionLatch{
		held:        make(map[string]time.Time),
		ttl:         ttl,
		now:         now,
		stopCleanup: make(chan struct{}),
	}

	l.wg.Add(1)
	go l.cleanupLoop(min(ttl, CleanupInterval))

	return l
}

func (l *SubmissionLatch) cleanupLoop(interval time.Duration) {
	defer l.wg.Done()

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			l.expire()
		case <-l.stopCleanup:
			return
		}
	}
}

func (l *SubmissionLatch) expire() {
	l.mu.Lock()
	defer l.mu.Unlock()
	now := l.now()
	for id, expiresAt := range l.held {
		if !now.Before(expiresAt) {
			delete(l.held, id)
		}
	}
}

// Acquire sets the latch and reports false if it was already held.
func (l *SubmissionLatch) Acquire(sessionID string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	if expiresAt, ok := l.held[sessionID]; ok && now.Before(expiresAt) {
		return false
	}
	l.held[sessionID] = now.Add(l.ttl)
	return true
}

func (l *SubmissionLatch) Release(sessionID string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	delete(l.held, sessionID)
}

func (l *SubmissionLatch) Held(sessionID string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	expiresAt, ok := l.held[sessionID]
	return ok && l.now().Before(expiresAt)
}

// Close stops the background cleanup and waits for it to finish
func (l *SubmissionLatch) Close() error {
	close(l.stopCleanup)
	l.wg.Wait()
	return nil
}
