package middleware

import (
	"crypto/subtle"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/Conversly/whatsapp-faq-bot/internal/utils"
)

// AdminAuth requires "Authorization: Bearer <apiKey>". An empty apiKey
// rejects every request.
func AdminAuth(apiKey string) gin.HandlerFunc {
	return func(c *gin.Context) {
		token, ok := strings.CutPrefix(c.GetHeader("Authorization"), "Bearer ")
		if !ok || apiKey == "" || subtle.ConstantTimeCompare([]byte(strings.TrimSpace(token)), []byte(apiKey)) != 1 {
			utils.Zlog.Warn("Unauthorized admin request",
				zap.String("path", c.Request.URL.Path),
				zap.String("client_ip", c.ClientIP()))
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
			return
		}
		c.Next()
	}
}

// maxIPEntries bounds how many per-IP buckets are kept before idle ones
// are dropped.
const maxIPEntries = 10_000

type ipBucket struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// IPRateLimiter hands out one token bucket per client IP.
type IPRateLimiter struct {
	limit rate.Limit
	burst int
	// idle is how long a bucket takes to refill completely; past that it is
	// indistinguishable from a new one.
	idle       time.Duration
	maxEntries int
	now        func() time.Time

	mu       sync.Mutex
	limiters map[string]*ipBucket
}

func NewIPRateLimiter(perSecond float64, burst int) *IPRateLimiter {
	if burst < 1 {
		burst = 1
	}
	l := &IPRateLimiter{
		limit:      rate.Limit(perSecond),
		burst:      burst,
		maxEntries: maxIPEntries,
		now:        time.Now,
		limiters:   make(map[string]*ipBucket),
	}
	if perSecond > 0 {
		l.idle = time.Duration(float64(burst) / perSecond * float64(time.Second))
	}
	return l
}

func (l *IPRateLimiter) get(key string) *rate.Limiter {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	b, exists := l.limiters[key]
	if !exists {
		if len(l.limiters) >= l.maxEntries {
			l.prune(now)
		}
		b = &ipBucket{limiter: rate.NewLimiter(l.limit, l.burst)}
		l.limiters[key] = b
	}
	b.lastSeen = now
	return b.limiter
}

func (l *IPRateLimiter) prune(now time.Time) {
	for k, b := range l.limiters {
		if now.Sub(b.lastSeen) >= l.idle {
			delete(l.limiters, k)
		}
	}
}

// Middleware rejects requests over the limit with 429. A non-positive rate
// disables limiting.
func (l *IPRateLimiter) Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		if l.limit <= 0 {
			c.Next()
			return
		}
		if !l.get(c.ClientIP()).Allow() {
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{"error": "rate_limit_exceeded"})
			return
		}
		c.Next()
	}
}
