package middleware

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/benvon/cookmate/internal/database"
	"github.com/benvon/cookmate/internal/models"
	"github.com/benvon/cookmate/internal/request"
	"github.com/redis/go-redis/v9"
	"github.com/ulule/limiter/v3"
	stdlibmw "github.com/ulule/limiter/v3/drivers/middleware/stdlib"
	redisstore "github.com/ulule/limiter/v3/drivers/store/redis"
	"go.uber.org/zap"
)

// Default rates per scope, in limiter's "<limit>-<period>" format
const (
	DefaultRatelimitRate      = "5-S"
	DefaultAuthRatelimitRate  = "10-M"
	DefaultCoachRatelimitRate = "30-M"
)

// DefaultRateForScope returns the built-in rate for a scope
func DefaultRateForScope(scope string) string {
	switch scope {
	case models.RatelimitScopeAuth:
		return DefaultAuthRatelimitRate
	case models.RatelimitScopeCoach:
		return DefaultCoachRatelimitRate
	default:
		return DefaultRatelimitRate
	}
}

// RateLimitReloader rate limits one route scope with ulule/limiter over Redis
// and periodically reloads that scope's rate from the database. One reloader
// may guard several routers; they share its counters.
type RateLimitReloader struct {
	scope       string
	store       limiter.Store
	repo        database.RatelimitConfigRepositoryInterface
	defaultRate string
	log         *zap.Logger
	interval    time.Duration

	mu   sync.RWMutex
	mw   *stdlibmw.Middleware
	rate string
}

// NewRateLimitReloader creates the limiter for scope and loads its rate.
// Counters for each scope live under their own Redis prefix.
func NewRateLimitReloader(redisClient *redis.Client, repo database.RatelimitConfigRepositoryInterface, scope, defaultRate string, log *zap.Logger, reloadInterval time.Duration) (*RateLimitReloader, error) {
	if scope == "" {
		scope = models.RatelimitScopeDefault
	}
	if defaultRate == "" {
		defaultRate = DefaultRateForScope(scope)
	}
	if _, err := limiter.NewRateFromFormatted(defaultRate); err != nil {
		return nil, fmt.Errorf("invalid default rate %q for scope %s: %w", defaultRate, scope, err)
	}
	store, err := redisstore.NewStoreWithOptions(redisClient, limiter.StoreOptions{
		Prefix: "cookmate_ratelimit_" + scope,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create redis store for rate limiter: %w", err)
	}
	r := &RateLimitReloader{
		scope:       scope,
		store:       store,
		repo:        repo,
		defaultRate: defaultRate,
		log:         log,
		interval:    reloadInterval,
	}
	r.load(context.Background())
	return r, nil
}

// Middleware limits requests with whatever rate is current when each request arrives.
// A store error lets the request through.
func (r *RateLimitReloader) Middleware() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
			req = req.WithContext(context.WithValue(req.Context(), failOpenKey{}, next))
			r.current().Handler(next).ServeHTTP(w, req)
		})
	}
}

// failOpenKey carries the guarded handler to the store error handler
type failOpenKey struct{}

func (r *RateLimitReloader) newMiddleware(rate limiter.Rate) *stdlibmw.Middleware {
	return stdlibmw.NewMiddleware(limiter.New(r.store, rate),
		stdlibmw.WithKeyGetter(rateLimitKey),
		stdlibmw.WithLimitReachedHandler(func(w http.ResponseWriter, req *http.Request) {
			writeError(w, req, http.StatusTooManyRequests, "Rate limit exceeded, please slow down", r.log)
		}),
		stdlibmw.WithErrorHandler(func(w http.ResponseWriter, req *http.Request, err error) {
			r.log.Error("ratelimit_store_error", zap.String("scope", r.scope), zap.Error(err))
			if next, ok := req.Context().Value(failOpenKey{}).(http.Handler); ok {
				next.ServeHTTP(w, req)
				return
			}
			writeError(w, req, http.StatusServiceUnavailable, "Rate limiter unavailable", r.log)
		}),
	)
}

// Start runs the reload loop until ctx is cancelled
func (r *RateLimitReloader) Start(ctx context.Context) {
	if r.interval <= 0 {
		return
	}
	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			r.load(ctx)
		}
	}
}

// Rate returns the rate currently enforced
func (r *RateLimitReloader) Rate() string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.rate
}

func (r *RateLimitReloader) current() *stdlibmw.Middleware {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.mw
}

func (r *RateLimitReloader) load(ctx context.Context) {
	rateStr := r.defaultRate
	cfg, err := r.repo.Get(ctx, r.scope)
	switch {
	case err != nil:
		r.log.Warn("failed_to_load_ratelimit_config_from_db_using_default",
			zap.String("scope", r.scope),
			zap.Error(err),
			zap.String("default_rate", r.defaultRate),
		)
	case cfg != nil && cfg.Rate != "":
		rateStr = cfg.Rate
	default:
		if err := r.repo.Set(ctx, &models.RatelimitConfig{ConfigKey: r.scope, Rate: r.defaultRate}); err != nil {
			r.log.Error("failed_to_save_default_ratelimit_config",
				zap.String("scope", r.scope),
				zap.Error(err),
			)
		}
	}

	rate, err := limiter.NewRateFromFormatted(rateStr)
	if err != nil {
		r.log.Error("failed_to_parse_rate_limit_using_default",
			zap.String("scope", r.scope),
			zap.Error(err),
			zap.String("rate_str", rateStr),
		)
		rateStr = r.defaultRate
		rate, _ = limiter.NewRateFromFormatted(rateStr)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if r.mw != nil && r.rate == rateStr {
		return
	}
	r.mw = r.newMiddleware(rate)
	r.rate = rateStr
	r.log.Info("ratelimit_config_loaded", zap.String("scope", r.scope), zap.String("rate", rateStr))
}

// rateLimitKey buckets signed-in users by account and everyone else by client IP
func rateLimitKey(req *http.Request) string {
	if u := request.UserFromContext(req); u != nil {
		return "user:" + u.ID.String()
	}
	return "ip:" + request.ClientIP(req)
}
