package security

import (
	"context"
	"edupath_backend/internal/config"
	"edupath_backend/internal/util"
	"edupath_backend/pkg/logger"
	"edupath_backend/pkg/monitoring"
	"fmt"
	"math"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

const (
	corsAllowHeaders = "Content-Type, Authorization, X-Requested-With"
	corsAllowMethods = "GET, POST, PUT, OPTIONS"
)

// CORS 仅允许白名单中的 Origin；预检结果按配置缓存
func CORS(cfg config.CORSConfig) gin.HandlerFunc {
	originSet := make(map[string]bool, len(cfg.AllowedOrigins))
	for _, o := range cfg.AllowedOrigins {
		originSet[o] = true
	}

	return func(c *gin.Context) {
		origin := c.Request.Header.Get("Origin")
		if origin != "" && originSet[origin] {
			c.Header("Access-Control-Allow-Origin", origin)
			c.Header("Access-Control-Allow-Credentials", "true")
			c.Header("Vary", "Origin")
		}
		c.Header("Access-Control-Allow-Headers", corsAllowHeaders)
		c.Header("Access-Control-Allow-Methods", corsAllowMethods)

		if c.Request.Method == http.MethodOptions {
			if cfg.MaxAgeSeconds > 0 {
				c.Header("Access-Control-Max-Age", strconv.Itoa(cfg.MaxAgeSeconds))
			}
			c.AbortWithStatus(http.StatusNoContent)
			return
		}
		c.Next()
	}
}

// Secure 安全响应头。作答与评分结果按用户返回，禁止任何缓存
func Secure(cfg config.CORSConfig) gin.HandlerFunc {
	hsts := ""
	if cfg.HSTSMaxAge > 0 {
		hsts = fmt.Sprintf("max-age=%d; includeSubDomains", cfg.HSTSMaxAge)
	}
	return func(c *gin.Context) {
		c.Header("X-Content-Type-Options", "nosniff")
		c.Header("X-Frame-Options", "DENY")
		c.Header("Cache-Control", "no-store")
		if hsts != "" && c.Request.TLS != nil {
			c.Header("Strict-Transport-Security", hsts)
		}
		c.Next()
	}
}

// KeyFunc 决定限流维度
type KeyFunc func(c *gin.Context) string

func ClientIPKey(c *gin.Context) string {
	return "ip:" + c.ClientIP()
}

// UserKey 按 JWT 中的用户限流，须挂在认证中间件之后；未登录时退回 IP
func UserKey(c *gin.Context) string {
	if claims := util.GetUserFromContext(c); claims != nil {
		return fmt.Sprintf("user:%d", claims.UserID)
	}
	return ClientIPKey(c)
}

type visitor struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// Limiter 令牌桶限流，每个 key 一个桶，长时间不活跃的桶由 Run 清理
type Limiter struct {
	name   string
	key    KeyFunc
	limit  rate.Limit
	burst  int
	expiry time.Duration

	mu       sync.Mutex
	visitors map[string]*visitor
}

// NewLimiter window 内最多 maxRequests 次；maxRequests <= 0 表示不限流
func NewLimiter(name string, maxRequests int, window time.Duration, key KeyFunc) *Limiter {
	l := &Limiter{
		name:     name,
		key:      key,
		limit:    rate.Inf,
		burst:    1,
		expiry:   time.Minute,
		visitors: make(map[string]*visitor),
	}
	if maxRequests > 0 && window > 0 {
		l.limit = rate.Every(window / time.Duration(maxRequests))
		l.burst = maxRequests
		if 3*window > l.expiry {
			l.expiry = 3 * window
		}
	}
	return l
}

func (l *Limiter) allow(key string, now time.Time) (bool, time.Duration) {
	l.mu.Lock()
	v, ok := l.visitors[key]
	if !ok {
		v = &visitor{limiter: rate.NewLimiter(l.limit, l.burst)}
		l.visitors[key] = v
	}
	v.lastSeen = now
	l.mu.Unlock()

	r := v.limiter.ReserveN(now, 1)
	if !r.OK() {
		return false, 0
	}
	if delay := r.DelayFrom(now); delay > 0 {
		r.CancelAt(now)
		return false, delay
	}
	return true, 0
}

// sweep 删除超过 expiry 未访问的桶，返回删除数量
func (l *Limiter) sweep(now time.Time) int {
	l.mu.Lock()
	defer l.mu.Unlock()
	removed := 0
	for k, v := range l.visitors {
		if now.Sub(v.lastSeen) > l.expiry {
			delete(l.visitors, k)
			removed++
		}
	}
	return removed
}

// Run 定期清理，直到 ctx 结束
func (l *Limiter) Run(ctx context.Context) {
	ticker := time.NewTicker(time.Minute)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			if n := l.sweep(now); n > 0 {
				logger.Log.Debug("rate limiter swept", zap.String("limiter", l.name), zap.Int("removed", n))
			}
		}
	}
}

func (l *Limiter) Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		key := l.key(c)
		ok, retryAfter := l.allow(key, time.Now())
		if !ok {
			monitoring.RateLimited.WithLabelValues(l.name).Inc()
			logger.Log.Debug("request rate limited", zap.String("limiter", l.name), zap.String("key", key))
			if retryAfter > 0 {
				c.Header("Retry-After", strconv.Itoa(int(math.Ceil(retryAfter.Seconds()))))
			}
			util.Error(c, http.StatusTooManyRequests, "Too many requests")
			c.Abort()
			return
		}
		c.Next()
	}
}
