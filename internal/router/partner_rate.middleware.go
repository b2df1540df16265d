package router

import (
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// PartnerRateLimit caps calls per partner id on partner-scoped routes.
// This is an edge guard for the admin surface; the engine's own quota
// tracker meters the partner's transaction traffic separately.
func PartnerRateLimit(rdb *redis.Client, limit int64, logger *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()

			partnerID := chi.URLParam(r, "id")
			if partnerID == "" {
				next.ServeHTTP(w, r)
				return
			}

			key := fmt.Sprintf("partner:ratelimit:%s", partnerID)
			window := time.Minute

			count, err := rdb.Incr(ctx, key).Result()
			if err != nil {
				logger.Error("redis error during rate limiting", zap.Error(err))
				next.ServeHTTP(w, r)
				return
			}
			if count == 1 {
				rdb.Expire(ctx, key, window)
			}

			if count > limit {
				ttl, _ := rdb.TTL(ctx, key).Result()

				logger.Warn("partner rate limit exceeded",
					zap.String("partner_id", partnerID),
					zap.Int64("limit", limit),
					zap.Int64("count", count))

				w.Header().Set("X-RateLimit-Limit", fmt.Sprintf("%d", limit))
				w.Header().Set("X-RateLimit-Remaining", "0")
				w.Header().Set("Retry-After", fmt.Sprintf("%d", int(ttl.Seconds())))

				render.Status(r, http.StatusTooManyRequests)
				render.JSON(w, r, map[string]interface{}{
					"error":       "rate limit exceeded",
					"limit":       limit,
					"window":      "1 minute",
					"retry_after": int(ttl.Seconds()),
				})
				return
			}

			w.Header().Set("X-RateLimit-Limit", fmt.Sprintf("%d", limit))
			w.Header().Set("X-RateLimit-Remaining", fmt.Sprintf("%d", limit-count))

			next.ServeHTTP(w, r)
		})
	}
}
