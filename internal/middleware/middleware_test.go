package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"estategate/internal/models"
	"estategate/internal/services"
	"estategate/pkg/config"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
)

func newEngine() *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(RequestID(), ErrorHandler())
	return r
}

func TestRequestID_GeneratedAndPropagated(t *testing.T) {
	r := newEngine()
	r.GET("/id", func(c *gin.Context) {
		c.String(http.StatusOK, c.GetString(RequestIDKey))
	})

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/id", nil))
	generated := w.Header().Get(RequestIDHeader)
	assert.Len(t, generated, 36)
	assert.Equal(t, generated, w.Body.String())

	req := httptest.NewRequest(http.MethodGet, "/id", nil)
	req.Header.Set(RequestIDHeader, "gate-42")
	w = httptest.NewRecorder()
	r.ServeHTTP(w, req)
	assert.Equal(t, "gate-42", w.Header().Get(RequestIDHeader))
	assert.Equal(t, "gate-42", w.Body.String())
}

func TestErrorHandler_RecoversPanic(t *testing.T) {
	r := newEngine()
	r.GET("/boom", func(c *gin.Context) {
		panic("scanner offline")
	})

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/boom", nil))
	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.Contains(t, w.Body.String(), "服务器内部错误")
}

func TestBearerToken(t *testing.T) {
	cases := []struct {
		name   string
		header string
		query  string
		want   string
		ok     bool
	}{
		{"header", "Bearer abc", "", "abc", true},
		{"wrong scheme", "Basic abc", "", "", false},
		{"query fallback", "", "token=xyz", "xyz", true},
		{"missing", "", "", "", false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			c, _ := gin.CreateTestContext(httptest.NewRecorder())
			c.Request = httptest.NewRequest(http.MethodGet, "/ws?"+tc.query, nil)
			if tc.header != "" {
				c.Request.Header.Set("Authorization", tc.header)
			}
			got, ok := BearerToken(c)
			assert.Equal(t, tc.ok, ok)
			assert.Equal(t, tc.want, got)
		})
	}
}

func TestSetupCORS_Wildcard(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(SetupCORS(config.CORSConfig{
		AllowOrigins: []string{"*"},
		AllowMethods: []string{"GET", "POST"},
	}))
	r.GET("/ping", func(c *gin.Context) { c.Status(http.StatusOK) })

	req := httptest.NewRequest(http.MethodGet, "/ping", nil)
	req.Header.Set("Origin", "https://gate.example.com")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	assert.Equal(t, "*", w.Header().Get("Access-Control-Allow-Origin"))
}

func TestRequireRole(t *testing.T) {
	m := &AuthMiddleware{}
	assert.Panics(t, func() { m.RequireRole() })

	r := newEngine()
	withActor := func(role models.UserRole) gin.HandlerFunc {
		return func(c *gin.Context) {
			c.Set(actorKey, services.Actor{ID: 1, EstateID: 1, Role: role})
		}
	}
	ok := func(c *gin.Context) { c.Status(http.StatusNoContent) }
	r.POST("/resident", withActor(models.RoleResident), m.RequireRole(models.RoleResident), ok)
	r.POST("/staff", withActor(models.RoleMaintainer), m.RequireRole(models.RoleResident), ok)
	r.POST("/anonymous", m.RequireRole(models.RoleResident), ok)

	cases := map[string]int{
		"/resident":  http.StatusNoContent,
		"/staff":     http.StatusForbidden,
		"/anonymous": http.StatusUnauthorized,
	}
	for path, want := range cases {
		w := httptest.NewRecorder()
		r.ServeHTTP(w, httptest.NewRequest(http.MethodPost, path, nil))
		assert.Equal(t, want, w.Code, path)
	}
}
