package middleware

import (
	"fmt"
	"net/http"

	"github.com/benvon/focus-companion/internal/request"
	"github.com/redis/go-redis/v9"
	"github.com/ulule/limiter/v3"
	stdlibmw "github.com/ulule/limiter/v3/drivers/middleware/stdlib"
	memorystore "github.com/ulule/limiter/v3/drivers/store/memory"
	redisstore "github.com/ulule/limiter/v3/drivers/store/redis"
	"go.uber.org/zap"
)

const (
	defaultRatelimitRate = "60-M"
	ratelimitPrefix      = "focus_ratelimit"
)

// NewRateLimitStore returns a Redis backed store when client is set, otherwise an in-process one.
func NewRateLimitStore(client *redis.Client) (limiter.Store, error) {
	opts := limiter.StoreOptions{Prefix: ratelimitPrefix}
	if client == nil {
		return memorystore.NewStoreWithOptions(opts), nil
	}
	store, err := redisstore.NewStoreWithOptions(client, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to create redis rate limit store: %w", err)
	}
	return store, nil
}

// RateLimit throttles HTTP requests per authenticated user, or per client IP
// before authentication. rateStr uses the ulule format, e.g. "60-M".
// This is separate from the AI usage caps, which only count real provider calls.
func RateLimit(store limiter.Store, rateStr string, logger *zap.Logger) (func(http.Handler) http.Handler, error) {
	if rateStr == "" {
		rateStr = defaultRatelimitRate
	}
	rate, err := limiter.NewRateFromFormatted(rateStr)
	if err != nil {
		return nil, fmt.Errorf("invalid rate limit %q: %w", rateStr, err)
	}
	instance := limiter.New(store, rate)

	keyGetter := func(r *http.Request) string {
		if id := request.UserID(r); id != "" {
			return "user:" + id
		}
		return "ip:" + request.ClientIP(r)
	}
	mw := stdlibmw.NewMiddleware(instance,
		stdlibmw.WithKeyGetter(keyGetter),
		stdlibmw.WithLimitReachedHandler(func(w http.ResponseWriter, r *http.Request) {
			writeError(w, r, http.StatusTooManyRequests, "Rate limit exceeded, slow down", logger)
		}),
		stdlibmw.WithErrorHandler(func(w http.ResponseWriter, r *http.Request, err error) {
			logger.Error("rate_limit_store_error", zap.Error(err))
			writeError(w, r, http.StatusInternalServerError, "Rate limiter unavailable", logger)
		}),
	)
	return mw.Handler, nil
}
