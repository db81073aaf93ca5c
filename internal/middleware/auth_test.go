package middleware

import (
	"edupath_backend/internal/model"
	"edupath_backend/internal/util"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newRouter() *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	api := r.Group("/api", AuthMiddleware("secret"))
	api.GET("/me", func(c *gin.Context) { c.Status(http.StatusOK) })
	api.GET("/teacher", RoleMiddleware(model.Teacher), func(c *gin.Context) { c.Status(http.StatusOK) })
	return r
}

func request(t *testing.T, r *gin.Engine, path string, role model.UserRole) int {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, path, nil)
	if role != "" {
		token, err := util.GenerateJWT(&model.User{BaseModel: model.BaseModel{ID: 1}, Role: role}, "secret", time.Hour)
		require.NoError(t, err)
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w.Code
}

func TestAuthMiddleware(t *testing.T) {
	r := newRouter()
	assert.Equal(t, http.StatusUnauthorized, request(t, r, "/api/me", ""))
	assert.Equal(t, http.StatusOK, request(t, r, "/api/me", model.Student))
}

func TestRoleMiddleware(t *testing.T) {
	r := newRouter()
	assert.Equal(t, http.StatusForbidden, request(t, r, "/api/teacher", model.Student))
	assert.Equal(t, http.StatusOK, request(t, r, "/api/teacher", model.Teacher))
	assert.Equal(t, http.StatusOK, request(t, r, "/api/teacher", model.Admin))
}
