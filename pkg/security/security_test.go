package security

import (
	"edupath_backend/internal/config"
	"edupath_backend/internal/util"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func limitedRouter(l *Limiter, userID uint) *gin.Engine {
	r := gin.New()
	r.Use(func(c *gin.Context) {
		if userID != 0 {
			c.Set("user", &util.Claims{UserID: userID})
		}
		c.Next()
	})
	r.Use(l.Middleware())
	r.GET("/ping", func(c *gin.Context) { c.Status(http.StatusOK) })
	return r
}

func hit(r *gin.Engine) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/ping", nil)
	req.RemoteAddr = "10.0.0.1:1234"
	r.ServeHTTP(w, req)
	return w
}

func TestLimiterRejectsWithRetryAfter(t *testing.T) {
	l := NewLimiter("ip", 2, time.Minute, ClientIPKey)
	r := limitedRouter(l, 0)

	assert.Equal(t, http.StatusOK, hit(r).Code)
	assert.Equal(t, http.StatusOK, hit(r).Code)

	w := hit(r)
	assert.Equal(t, http.StatusTooManyRequests, w.Code)
	retry, err := strconv.Atoi(w.Header().Get("Retry-After"))
	require.NoError(t, err)
	assert.Greater(t, retry, 0)
}

func TestUserLimiterIsolatesUsers(t *testing.T) {
	l := NewLimiter("user", 1, time.Minute, UserKey)
	alice := limitedRouter(l, 1)
	bob := limitedRouter(l, 2)

	// 同一 IP 下不同用户各自计数
	assert.Equal(t, http.StatusOK, hit(alice).Code)
	assert.Equal(t, http.StatusTooManyRequests, hit(alice).Code)
	assert.Equal(t, http.StatusOK, hit(bob).Code)
}

func TestUnlimitedLimiter(t *testing.T) {
	l := NewLimiter("user", 0, 0, UserKey)
	r := limitedRouter(l, 1)
	for i := 0; i < 50; i++ {
		require.Equal(t, http.StatusOK, hit(r).Code)
	}
}

func TestLimiterSweep(t *testing.T) {
	l := NewLimiter("ip", 10, time.Minute, ClientIPKey)
	now := time.Now()
	ok, _ := l.allow("ip:a", now.Add(-time.Hour))
	require.True(t, ok)
	ok, _ = l.allow("ip:b", now)
	require.True(t, ok)

	assert.Equal(t, 1, l.sweep(now))
	assert.Len(t, l.visitors, 1)
	assert.Contains(t, l.visitors, "ip:b")
}

func TestCORSPreflight(t *testing.T) {
	r := gin.New()
	r.Use(CORS(config.CORSConfig{AllowedOrigins: []string{"https://edu.example"}, MaxAgeSeconds: 600}))
	r.POST("/api/login", func(c *gin.Context) { c.Status(http.StatusOK) })

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodOptions, "/api/login", nil)
	req.Header.Set("Origin", "https://edu.example")
	r.ServeHTTP(w, req)
	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.Equal(t, "https://edu.example", w.Header().Get("Access-Control-Allow-Origin"))
	assert.Equal(t, "600", w.Header().Get("Access-Control-Max-Age"))

	w = httptest.NewRecorder()
	req = httptest.NewRequest(http.MethodPost, "/api/login", nil)
	req.Header.Set("Origin", "https://evil.example")
	r.ServeHTTP(w, req)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Empty(t, w.Header().Get("Access-Control-Allow-Origin"))
}

func TestSecureHeaders(t *testing.T) {
	r := gin.New()
	r.Use(Secure(config.CORSConfig{HSTSMaxAge: 3600}))
	r.GET("/ping", func(c *gin.Context) { c.Status(http.StatusOK) })

	w := hit(r)
	assert.Equal(t, "no-store", w.Header().Get("Cache-Control"))
	assert.Equal(t, "nosniff", w.Header().Get("X-Content-Type-Options"))
	// 非 TLS 请求不下发 HSTS
	assert.Empty(t, w.Header().Get("Strict-Transport-Security"))
}
