package main

import (
	"net"
	"net/http"

	lru "github.com/hashicorp/golang-lru/v2"
	"golang.org/x/time/rate"
)

// ipLimiter is a token bucket per client IP. The LRU bounds memory; an
// evicted IP starts over with a full bucket.
type ipLimiter struct {
	buckets *lru.Cache[string, *rate.Limiter]
	limit   rate.Limit
	burst   int
}

func newIPLimiter(rps float64, burst, maxIPs int) (*ipLimiter, error) {
	buckets, err := lru.New[string, *rate.Limiter](maxIPs)
	if err != nil {
		return nil, err
	}
	return &ipLimiter{buckets: buckets, limit: rate.Limit(rps), burst: burst}, nil
}

func (l *ipLimiter) allow(ip string) bool {
	lim, ok := l.buckets.Get(ip)
	if !ok {
		lim = rate.NewLimiter(l.limit, l.burst)
		if prev, found, _ := l.buckets.PeekOrAdd(ip, lim); found {
			lim = prev
		}
	}
	return lim.Allow()
}

// middleware expects chi's RealIP to have rewritten RemoteAddr.
func (l *ipLimiter) middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ip := r.RemoteAddr
		if host, _, err := net.SplitHostPort(ip); err == nil {
			ip = host
		}
		if !l.allow(ip) {
			w.Header().Set("Retry-After", "1")
			writeJSONError(w, http.StatusTooManyRequests, "rate_limited", "Too many requests")
			return
		}
		next.ServeHTTP(w, r)
	})
}
