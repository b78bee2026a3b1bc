package httpapi

import (
	"container/list"
	"errors"
	"net/http"
	"strconv"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"pkt.systems/pslog"
)

const (
	defaultMaxClients = 10000
	clientIdleTTL     = 10 * time.Minute
	sweepInterval     = 5 * time.Minute
)

// clientLimiter keeps one token bucket per client address with LRU eviction.
type clientLimiter struct {
	rps   rate.Limit
	burst int
	max   int

	mu        sync.Mutex
	items     map[string]*list.Element
	order     *list.List
	lastSweep time.Time
	now       func() time.Time
}

type clientBucket struct {
	key      string
	limiter  *rate.Limiter
	lastSeen time.Time
}

// newClientLimiter returns nil when rps is not positive; a nil limiter allows
// every request.
func newClientLimiter(rps float64, burst int) *clientLimiter {
	if rps <= 0 {
		return nil
	}
	if burst <= 0 {
		burst = 1
	}
	return &clientLimiter{
		rps:   rate.Limit(rps),
		burst: burst,
		max:   defaultMaxClients,
		items: make(map[string]*list.Element),
		order: list.New(),
		now:   time.Now,
	}
}

func (l *clientLimiter) allow(key string) bool {
	if l == nil {
		return true
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	now := l.now()
	l.sweepLocked(now)
	elem, ok := l.items[key]
	if ok {
		l.order.MoveToFront(elem)
		elem.Value.(*clientBucket).lastSeen = now
	} else {
		if l.order.Len() >= l.max {
			if back := l.order.Back(); back != nil {
				l.order.Remove(back)
				delete(l.items, back.Value.(*clientBucket).key)
			}
		}
		elem = l.order.PushFront(&clientBucket{
			key:      key,
			limiter:  rate.NewLimiter(l.rps, l.burst),
			lastSeen: now,
		})
		l.items[key] = elem
	}
	return elem.Value.(*clientBucket).limiter.AllowN(now, 1)
}

// sweepLocked drops idle clients; the LRU order tracks access, not idleness,
// so the whole list is walked.
func (l *clientLimiter) sweepLocked(now time.Time) {
	if now.Sub(l.lastSweep) < sweepInterval {
		return
	}
	l.lastSweep = now
	for e := l.order.Back(); e != nil; {
		prev := e.Prev()
		bucket := e.Value.(*clientBucket)
		if now.Sub(bucket.lastSeen) > clientIdleTTL {
			l.order.Remove(e)
			delete(l.items, bucket.key)
		}
		e = prev
	}
}

var errRateLimited = errors.New("too many requests, slow down")

// limit rejects requests from clients over their budget with 429.
func (l *clientLimiter) limit(next http.HandlerFunc) http.HandlerFunc {
	if l == nil {
		return next
	}
	return func(w http.ResponseWriter, r *http.Request) {
		ip := clientIP(r)
		if !l.allow(ip) {
			pslog.Ctx(r.Context()).Warn("http rate limited", "remote", ip, "path", r.URL.Path)
			w.Header().Set("Retry-After", strconv.Itoa(1))
			writeError(w, http.StatusTooManyRequests, errRateLimited)
			return
		}
		next(w, r)
	}
}
