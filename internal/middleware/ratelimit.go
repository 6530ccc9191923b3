package middleware

import (
	"fmt"
	"net"
	"net/http"
	"strings"
	"sync"
	"time"
)

// window is one client's fixed rate-limit window.
type window struct {
	remaining int
	resets    time.Time
}

// RateLimit bounds each client to limit requests per window. The event
// stream endpoint sits behind this too, so the limit should stay well
// above one dashboard's reconnect rate. Over-limit requests get a 429
// with a Retry-After hint in the handlers' JSON error shape.
func RateLimit(limit int, per time.Duration) func(http.Handler) http.Handler {
	var mu sync.Mutex
	windows := make(map[string]*window)

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ip := clientIP(r)
			now := time.Now()

			mu.Lock()
			win, ok := windows[ip]
			if !ok || now.After(win.resets) {
				win = &window{remaining: limit, resets: now.Add(per)}
				windows[ip] = win
			}
			if win.remaining <= 0 {
				retryIn := time.Until(win.resets)
				mu.Unlock()
				w.Header().Set("Retry-After", fmt.Sprintf("%d", int(retryIn.Seconds())+1))
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(http.StatusTooManyRequests)
				_, _ = w.Write([]byte(`{"error":"rate_limited","detail":"request quota exhausted, slow down"}`))
				return
			}
			win.remaining--
			mu.Unlock()

			next.ServeHTTP(w, r)
		})
	}
}

// clientIP prefers the first valid X-Forwarded-For hop, then the remote
// address.
func clientIP(r *http.Request) string {
	if xf := r.Header.Get("X-Forwarded-For"); xf != "" {
		for _, part := range strings.Split(xf, ",") {
			ip := strings.TrimSpace(part)
			if ip == "" {
				continue
			}
			if net.ParseIP(ip) != nil {
				return ip
			}
		}
	}

	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err == nil {
		if net.ParseIP(host) != nil {
			return host
		}
	} else if net.ParseIP(r.RemoteAddr) != nil {
		return r.RemoteAddr
	}

	return r.RemoteAddr
}
