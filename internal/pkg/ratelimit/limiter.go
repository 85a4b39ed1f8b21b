// Package ratelimit is an in-process token bucket keyed by caller.
package ratelimit

import (
	"sync"
	"time"
)

const idleTTL = 10 * time.Minute

type Limiter struct {
	store *sync.Map // map[string]*bucket
	now   func() time.Time
	stop  chan struct{}
	once  sync.Once
}

type bucket struct {
	mu         sync.Mutex
	tokens     float64
	lastRefill time.Time
	lastAccess time.Time
}

func New() *Limiter {
	l := &Limiter{
		store: &sync.Map{},
		now:   time.Now,
		stop:  make(chan struct{}),
	}
	go l.cleanupLoop()
	return l
}

// Stop ends the cleanup goroutine.
func (l *Limiter) Stop() {
	l.once.Do(func() { close(l.stop) })
}

func (l *Limiter) cleanupLoop() {
	ticker := time.NewTicker(idleTTL)
	defer ticker.Stop()

	for {
		select {
		case <-l.stop:
			return
		case <-ticker.C:
			l.sweep()
		}
	}
}

func (l *Limiter) sweep() {
	now := l.now()
	l.store.Range(func(key, value interface{}) bool {
		b := value.(*bucket)
		b.mu.Lock()
		if now.Sub(b.lastAccess) > idleTTL {
			l.store.Delete(key)
		}
		b.mu.Unlock()
		return true
	})
}

// Allow takes one token from key's bucket. Buckets hold limit tokens and refill at limit per minute.
func (l *Limiter) Allow(key string, limit int) bool {
	if limit <= 0 {
		return true
	}
	now := l.now()

	val, _ := l.store.LoadOrStore(key, &bucket{
		tokens:     float64(limit),
		lastRefill: now,
		lastAccess: now,
	})
	b := val.(*bucket)
	b.mu.Lock()
	defer b.mu.Unlock()

	b.lastAccess = now
	if elapsed := now.Sub(b.lastRefill); elapsed > 0 {
		b.tokens += elapsed.Seconds() * float64(limit) / 60.0
		if b.tokens > float64(limit) {
			b.tokens = float64(limit)
		}
		b.lastRefill = now
	}

	if b.tokens >= 1 {
		b.tokens--
		return true
	}
	return false
}
