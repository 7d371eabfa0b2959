package httpapi

import (
	"sync"
	"time"
)

type bucket struct {
	tokens float64
	last   time.Time
}

// tokenBucketLimiter throttles per-client request rates. Buckets refill at
// a sustained rate up to a burst ceiling; the map is the only shared state
// on the login path and is guarded by its own mutex so unrelated traffic
// never serializes behind it.
type tokenBucketLimiter struct {
	mu      sync.Mutex
	rate    float64 // tokens per second
	burst   float64
	buckets map[string]*bucket
	stopCh  chan struct{}
}

func newTokenBucketLimiter(ratePerSec float64, burst int) *tokenBucketLimiter {
	l := &tokenBucketLimiter{
		rate:    ratePerSec,
		burst:   float64(burst),
		buckets: make(map[string]*bucket),
		stopCh:  make(chan struct{}),
	}
	go l.cleanupLoop()
	return l
}

// Allow consumes one token for key. When the bucket is empty it returns
// false and how long until the next token becomes available; callers pass
// that on as an advisory Retry-After, nothing sleeps server-side.
func (l *tokenBucketLimiter) Allow(key string) (bool, time.Duration) {
	now := time.Now()
	l.mu.Lock()
	defer l.mu.Unlock()

	b := l.buckets[key]
	if b == nil {
		b = &bucket{tokens: l.burst, last: now}
		l.buckets[key] = b
	}

	elapsed := now.Sub(b.last).Seconds()
	b.tokens += elapsed * l.rate
	if b.tokens > l.burst {
		b.tokens = l.burst
	}
	b.last = now

	if b.tokens >= 1 {
		b.tokens--
		return true, 0
	}
	wait := time.Duration((1 - b.tokens) / l.rate * float64(time.Second))
	return false, wait
}

func (l *tokenBucketLimiter) cleanupLoop() {
	ticker := time.NewTicker(5 * time.Minute)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			l.cleanup()
		case <-l.stopCh:
			return
		}
	}
}

// cleanup drops buckets that have refilled completely; they carry no state
// a fresh bucket wouldn't.
func (l *tokenBucketLimiter) cleanup() {
	now := time.Now()
	l.mu.Lock()
	defer l.mu.Unlock()
	for key, b := range l.buckets {
		elapsed := now.Sub(b.last).Seconds()
		if b.tokens+elapsed*l.rate >= l.burst {
			delete(l.buckets, key)
		}
	}
}

func (l *tokenBucketLimiter) Stop() {
	close(l.stopCh)
}
