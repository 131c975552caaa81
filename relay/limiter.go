/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

package relay

import (
	"context"
	"sync"
	"time"
)

const (
	DefaultLimit  = 20
	DefaultWindow = time.Second
)

// Limiter allows at most limit calls per key in any trailing window. Each
// key keeps a log of its recent hits.
type Limiter struct {
	mu     sync.Mutex
	limit  int
	window time.Duration
	hits   map[string][]time.Time
	now    func() time.Time
}

func NewLimiter(limit int, window time.Duration) *Limiter {
	if limit <= 0 {
		limit = DefaultLimit
	}
	if window <= 0 {
		window = DefaultWindow
	}
	return &Limiter{
		limit:  limit,
		window: window,
		hits:   make(map[string][]time.Time),
		now:    time.Now,
	}
}

func (l *Limiter) Window() time.Duration {
	return l.window
}

func trim(hits []time.Time, cutoff time.Time) []time.Time {
	i := 0
	for i < len(hits) && !hits[i].After(cutoff) {
		i++
	}
	return hits[i:]
}

// Allow records a hit for key and reports whether it is within the limit.
// Refused hits are not recorded.
func (l *Limiter) Allow(key string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	hits := trim(l.hits[key], now.Add(-l.window))
	if len(hits) >= l.limit {
		l.hits[key] = hits
		return false
	}
	l.hits[key] = append(hits, now)
	return true
}

// Prune forgets keys with no hits inside the window.
func (l *Limiter) Prune() int {
	l.mu.Lock()
	defer l.mu.Unlock()

	cutoff := l.now().Add(-l.window)
	removed := 0
	for key, hits := range l.hits {
		if hits = trim(hits, cutoff); len(hits) == 0 {
			delete(l.hits, key)
			removed++
			continue
		}
		l.hits[key] = hits
	}
	return removed
}

func (l *Limiter) Run(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			l.Prune()
		}
	}
}
