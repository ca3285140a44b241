// AngelaMos | 2026
// ratelimit.go

package middleware

import (
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	redis_rate "github.com/go-redis/redis_rate/v10"
	"github.com/redis/go-redis/v9"
	"golang.org/x/time/rate"

	"github.com/carterperez-dev/edu-platform/auth-service/internal/core"
)

type RateLimitConfig struct {
	Limit   redis_rate.Limit
	KeyFunc func(*http.Request) string
}

// RateLimiter counts requests in Redis and degrades to per-process buckets
// when Redis is unreachable. It never fails a request because of Redis.
type RateLimiter struct {
	limiter  *redis_rate.Limiter
	fallback *localLimiter
	keyFunc  func(*http.Request) string
	limitFor func(*http.Request) (redis_rate.Limit, string)
}

func NewRateLimiter(rdb *redis.Client, cfg RateLimitConfig) *RateLimiter {
	keyFunc := cfg.KeyFunc
	if keyFunc == nil {
		keyFunc = KeyByIP
	}

	return &RateLimiter{
		limiter:  redis_rate.NewLimiter(rdb),
		fallback: newLocalLimiter(),
		keyFunc:  keyFunc,
		limitFor: func(*http.Request) (redis_rate.Limit, string) {
			return cfg.Limit, ""
		},
	}
}

// DefaultTierLimits applies to proxied application traffic behind the gate.
var DefaultTierLimits = map[string]redis_rate.Limit{
	TierFree:    PerMinute(60, 10),
	TierPremium: PerMinute(600, 100),
}

// NewTieredRateLimiter sizes the bucket by the session's subscription tier.
// It must run after the gatekeeper has attached claims; anonymous and
// unknown tiers use the free limit.
func NewTieredRateLimiter(
	rdb *redis.Client,
	tiers map[string]redis_rate.Limit,
) *RateLimiter {
	return &RateLimiter{
		limiter:  redis_rate.NewLimiter(rdb),
		fallback: newLocalLimiter(),
		keyFunc:  keyBySession,
		limitFor: func(r *http.Request) (redis_rate.Limit, string) {
			tier := TierFree
			if GetClaims(r.Context()).IsPremium() {
				tier = TierPremium
			}
			if limit, ok := tiers[tier]; ok {
				return limit, tier
			}
			return tiers[TierFree], TierFree
		},
	}
}

func (rl *RateLimiter) Handler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		limit, tier := rl.limitFor(r)
		key := rl.keyFunc(r)

		res, err := rl.limiter.Allow(r.Context(), key, limit)
		if err != nil {
			slog.Debug("rate limit store unavailable, using local bucket",
				"error", err,
				"key", key,
			)
			res = rl.fallback.allow(key, limit)
		}

		if tier != "" {
			w.Header().Set("X-RateLimit-Tier", tier)
		}
		setRateLimitHeaders(w, res, limit)

		if res.Allowed == 0 {
			writeRateLimitExceeded(w, res)
			return
		}

		next.ServeHTTP(w, r)
	})
}

// KeyByIP trusts the last X-Forwarded-For hop, the one appended by our
// own proxy.
func KeyByIP(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		hops := strings.Split(xff, ",")
		return "ratelimit:ip:" + strings.TrimSpace(hops[len(hops)-1])
	}

	if xri := r.Header.Get("X-Real-IP"); xri != "" {
		return "ratelimit:ip:" + xri
	}

	ip, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		ip = r.RemoteAddr
	}
	return "ratelimit:ip:" + ip
}

// KeyByIPAndEndpoint buckets credential endpoints separately so that a
// burst of reset requests does not consume the login budget.
func KeyByIPAndEndpoint(r *http.Request) string {
	return KeyByIP(r) + ":endpoint:" + r.URL.Path
}

func keyBySession(r *http.Request) string {
	if claims := GetClaims(r.Context()); claims != nil && claims.UserID != "" {
		return "ratelimit:user:" + claims.UserID
	}
	return KeyByIP(r)
}

func setRateLimitHeaders(
	w http.ResponseWriter,
	res *redis_rate.Result,
	limit redis_rate.Limit,
) {
	h := w.Header()
	h.Set("X-RateLimit-Limit", strconv.Itoa(limit.Rate))
	h.Set("X-RateLimit-Remaining", strconv.Itoa(res.Remaining))
	h.Set("X-RateLimit-Reset", strconv.FormatInt(
		time.Now().Add(res.ResetAfter).Unix(), 10))
	h.Set("RateLimit-Policy", fmt.Sprintf("%d;w=%d",
		limit.Rate, int(limit.Period.Seconds())))
}

func writeRateLimitExceeded(w http.ResponseWriter, res *redis_rate.Result) {
	retryAfter := int(res.RetryAfter.Seconds())
	if retryAfter < 1 {
		retryAfter = 1
	}

	w.Header().Set("Retry-After", strconv.Itoa(retryAfter))
	core.JSONError(w, core.RateLimitedError())
}

const localSweepInterval = 10 * time.Minute

type localBucket struct {
	limiter *rate.Limiter
	seen    time.Time
}

// localLimiter keeps one token bucket per key in process memory. Idle
// buckets are dropped on the first call after each sweep interval.
type localLimiter struct {
	mu        sync.Mutex
	buckets   map[string]*localBucket
	lastSweep time.Time
}

func newLocalLimiter() *localLimiter {
	return &localLimiter{
		buckets:   make(map[string]*localBucket),
		lastSweep: time.Now(),
	}
}

func (l *localLimiter) allow(key string, limit redis_rate.Limit) *redis_rate.Result {
	perSecond := float64(limit.Rate) / limit.Period.Seconds()
	now := time.Now()

	l.mu.Lock()
	if now.Sub(l.lastSweep) >= localSweepInterval {
		for k, b := range l.buckets {
			if now.Sub(b.seen) >= localSweepInterval {
				delete(l.buckets, k)
			}
		}
		l.lastSweep = now
	}

	b, ok := l.buckets[key]
	if !ok {
		b = &localBucket{limiter: rate.NewLimiter(rate.Limit(perSecond), limit.Burst)}
		l.buckets[key] = b
	}
	b.seen = now
	allowed := b.limiter.AllowN(now, 1)
	tokens := b.limiter.TokensAt(now)
	l.mu.Unlock()

	res := &redis_rate.Result{
		Limit:      limit,
		Remaining:  max(int(tokens), 0),
		RetryAfter: -1,
		ResetAfter: time.Duration((float64(limit.Burst) - tokens) / perSecond * float64(time.Second)),
	}
	if allowed {
		res.Allowed = 1
	} else {
		res.RetryAfter = time.Duration((1 - tokens) / perSecond * float64(time.Second))
	}
	return res
}

func PerMinute(rate, burst int) redis_rate.Limit {
	return redis_rate.Limit{Rate: rate, Burst: burst, Period: time.Minute}
}

func PerHour(rate, burst int) redis_rate.Limit {
	return redis_rate.Limit{Rate: rate, Burst: burst, Period: time.Hour}
}
