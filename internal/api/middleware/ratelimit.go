// ratelimit.go — ограничение частоты запросов к выбранным маршрутам.
package middleware

import (
	"log/slog"
	"net/http"

	"golang.org/x/time/rate"

	apierrors "github.com/bigkaa/goartstore/file-organizer/internal/api/errors"
)

// RateLimit ограничивает запросы к маршрутам с указанными шаблонами chi
// общим token bucket. Остальные маршруты проходят без ограничений.
// limit <= 0 отключает ограничение.
func RateLimit(limit float64, burst int, logger *slog.Logger, patterns ...string) func(http.Handler) http.Handler {
	if limit <= 0 {
		return func(next http.Handler) http.Handler { return next }
	}
	if burst < 1 {
		burst = 1
	}

	limiter := rate.NewLimiter(rate.Limit(limit), burst)
	guarded := make(map[string]struct{}, len(patterns))
	for _, p := range patterns {
		guarded[p] = struct{}{}
	}
	log := logger.With(slog.String("component", "rate_limit"))

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if _, ok := guarded[routePattern(r)]; ok && !limiter.Allow() {
				log.Warn("Превышен лимит запросов",
					slog.String("path", r.URL.Path),
					slog.String("remote_addr", r.RemoteAddr),
				)
				apierrors.TooManyRequests(w, "Too many upload requests")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
