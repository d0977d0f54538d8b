package middleware

import (
    "fmt"
    "math"
    "net/http"
    "strconv"
    "sync"
    "time"

    "github.com/labstack/echo/v4"
    "github.com/op/go-logging"
    "github.com/redis/go-redis/v9"
    "golang.org/x/time/rate"

    "github.com/iliyamo/movie-tracker/internal/config"
)

var log = logging.MustGetLogger("middleware")

var limiterScript = redis.NewScript(`
    local key = KEYS[1]
    local now_ms = tonumber(ARGV[1])
    local capacity = tonumber(ARGV[2])
    local refill_tokens = tonumber(ARGV[3])
    local interval_ms = tonumber(ARGV[4])
    local ttl_seconds = tonumber(ARGV[5])

    local state = redis.call('HMGET', key, 'tokens', 'last_refill_ms')
    local tokens = tonumber(state[1])
    local last_refill = tonumber(state[2])

    if tokens == nil or last_refill == nil then
        tokens = capacity
        last_refill = now_ms
    end

    local elapsed = math.max(0, now_ms - last_refill)
    local intervals = math.floor(elapsed / interval_ms)
    if intervals > 0 then
        tokens = math.min(capacity, tokens + (intervals * refill_tokens))
        last_refill = last_refill + (intervals * interval_ms)
    end

    local allowed = 0
    local retry_after_ms = 0
    if tokens > 0 then
        allowed = 1
        tokens = tokens - 1
    else
        retry_after_ms = math.max(0, interval_ms - (now_ms - last_refill))
    end

    redis.call('HSET', key, 'tokens', tokens, 'last_refill_ms', last_refill)
    redis.call('EXPIRE', key, ttl_seconds)

    return { allowed, tokens, retry_after_ms }
`)

// decision is the outcome of taking one token from a caller's bucket.
type decision struct {
    allowed   bool
    remaining int64
    retry     time.Duration
}

// limiter takes a token for key, reporting false when the backing store
// could not answer.
type limiter interface {
    take(c echo.Context, key string) (decision, bool)
}

type redisLimiter struct {
    cfg config.RateLimitConfig
    rdb *redis.Client
}

func (l redisLimiter) take(c echo.Context, key string) (decision, bool) {
    args := []interface{}{
        time.Now().UnixMilli(),
        l.cfg.Capacity,
        l.cfg.RefillTokens,
        l.cfg.RefillInterval.Milliseconds(),
        int64(l.cfg.TTL / time.Second),
    }
    vals, err := limiterScript.Run(c.Request().Context(), l.rdb, []string{key}, args...).Result()
    if err != nil {
        log.Warningf("ratelimit: redis error for key=%s: %v", key, err)
        return decision{}, false
    }
    arr, ok := vals.([]interface{})
    if !ok || len(arr) != 3 {
        log.Warningf("ratelimit: unexpected script result for key=%s: %#v", key, vals)
        return decision{}, false
    }
    return decision{
        allowed:   fmt.Sprint(arr[0]) == "1",
        remaining: asInt64(arr[1]),
        retry:     time.Duration(asInt64(arr[2])) * time.Millisecond,
    }, true
}

// localLimiter keeps one x/time/rate bucket per key in process.  Idle
// buckets are swept once they have been unused for the configured TTL.
type localLimiter struct {
    cfg config.RateLimitConfig

    mu      sync.Mutex
    buckets map[string]*localBucket
    swept   time.Time
}

type localBucket struct {
    lim  *rate.Limiter
    seen time.Time
}

func newLocalLimiter(cfg config.RateLimitConfig) *localLimiter {
    return &localLimiter{cfg: cfg, buckets: map[string]*localBucket{}, swept: time.Now()}
}

func (l *localLimiter) take(_ echo.Context, key string) (decision, bool) {
    now := time.Now()

    l.mu.Lock()
    defer l.mu.Unlock()

    if l.cfg.TTL > 0 && now.Sub(l.swept) > l.cfg.TTL {
        for k, b := range l.buckets {
            if now.Sub(b.seen) > l.cfg.TTL {
                delete(l.buckets, k)
            }
        }
        l.swept = now
    }

    b, ok := l.buckets[key]
    if !ok {
        every := l.cfg.RefillInterval / time.Duration(l.cfg.RefillTokens)
        b = &localBucket{lim: rate.NewLimiter(rate.Every(every), l.cfg.Capacity)}
        l.buckets[key] = b
    }
    b.seen = now

    r := b.lim.ReserveN(now, 1)
    if delay := r.DelayFrom(now); delay > 0 {
        r.CancelAt(now)
        return decision{allowed: false, retry: delay}, true
    }
    return decision{allowed: true, remaining: int64(b.lim.TokensAt(now))}, true
}

// NewTokenBucket limits requests per caller.  Buckets live in Redis when a
// client is given and in process otherwise; a failing Redis lets requests
// through.
func NewTokenBucket(cfg config.RateLimitConfig, rdb *redis.Client) echo.MiddlewareFunc {
    if !cfg.Enabled {
        return func(next echo.HandlerFunc) echo.HandlerFunc { return next }
    }
    var lim limiter
    if rdb != nil {
        lim = redisLimiter{cfg: cfg, rdb: rdb}
    } else {
        lim = newLocalLimiter(cfg)
    }

    return func(next echo.HandlerFunc) echo.HandlerFunc {
        return func(c echo.Context) error {
            key := cfg.Prefix + ":" + subject(c)
            d, ok := lim.take(c, key)
            if !ok {
                return next(c)
            }

            c.Response().Header().Set("X-RateLimit-Limit", strconv.Itoa(cfg.Capacity))
            c.Response().Header().Set("X-RateLimit-Remaining", strconv.FormatInt(max(d.remaining, 0), 10))

            if !d.allowed {
                secs := int(math.Ceil(d.retry.Seconds()))
                c.Response().Header().Set("Retry-After", strconv.Itoa(secs))
                log.Debugf("ratelimit: block key=%s retry=%s", key, d.retry)
                return c.JSON(http.StatusTooManyRequests, echo.Map{
                    "error":       "too_many_requests",
                    "message":     "rate limit exceeded",
                    "retry_after": secs,
                })
            }
            return next(c)
        }
    }
}

func asInt64(v interface{}) int64 {
    switch t := v.(type) {
    case int64:
        return t
    case int:
        return int64(t)
    case float64:
        return int64(t)
    case string:
        if n, err := strconv.ParseInt(t, 10, 64); err == nil {
            return n
        }
    }
    return 0
}
