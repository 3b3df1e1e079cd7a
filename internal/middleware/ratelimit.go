package middleware

import (
	"net/http"

	"github.com/chatwave/internal/logger"
	"github.com/chatwave/internal/storage"
)

// RateLimitAPI throttles /api/* per client IP and per user id through the
// store's counters (shared across replicas when redis backs the store).
// Store failures fail open: throttling is protection, not correctness.
func RateLimitAPI(store storage.Store) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ip := r.RemoteAddr
			if x := r.Header.Get("X-Real-Ip"); x != "" {
				ip = x
			} else if x := r.Header.Get("X-Forwarded-For"); x != "" {
				ip = x
			}
			allowed, err := store.CheckRateLimit(r.Context(), "ip:"+ip)
			if err != nil {
				logger.Errorf("rate limit check ip=%s: %v", ip, err)
			} else if !allowed {
				http.Error(w, "too many requests", http.StatusTooManyRequests)
				return
			}
			if userID := GetUserID(r.Context()); userID != "" {
				allowed, err := store.CheckRateLimit(r.Context(), "u:"+userID)
				if err != nil {
					logger.Errorf("rate limit check user=%s: %v", userID, err)
				} else if !allowed {
					http.Error(w, "too many requests", http.StatusTooManyRequests)
					return
				}
			}
			next.ServeHTTP(w, r)
		})
	}
}
