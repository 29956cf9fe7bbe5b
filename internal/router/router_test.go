package router

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"estategate/internal/models"
	"estategate/internal/services"
	"estategate/internal/testutil"
	"estategate/pkg/config"
	"estategate/pkg/jwt"
	"estategate/pkg/queue"

	"github.com/alicebob/miniredis/v2"
	"github.com/gin-gonic/gin"
	"github.com/go-redis/redis/v8"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

type apiResponse struct {
	Code    int             `json:"code"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
}

type testServer struct {
	engine   *gin.Engine
	db       *gorm.DB
	jwt      *jwt.JWTManager
	hub      *services.GateFeedHub
	resident *models.User
	staff    *models.User
	outsider *models.User
}

func newTestServer(t *testing.T, opts ...func(*Dependencies)) *testServer {
	t.Helper()
	gin.SetMode(gin.TestMode)

	db := testutil.NewTestDB(t)
	estates := services.NewEstateService(db)
	users := services.NewUserService(db)

	home, err := estates.Create("绿城小区", "greenwood", "")
	require.NoError(t, err)
	other, err := estates.Create("滨江小区", "riverside", "")
	require.NoError(t, err)

	mkUser := func(estateID uint, username string, role models.UserRole) *models.User {
		u, err := users.Create(services.CreateUserParams{
			EstateID: estateID,
			Username: username,
			Email:    username + "@example.com",
			Password: "secret123",
			Name:     "Test " + username,
			Role:     role,
		})
		require.NoError(t, err)
		return u
	}

	activities := services.NewActivityService(db)
	hub := services.NewGateFeedHub()
	visitorCodes := services.NewVisitorCodeService(services.NewGormVisitorCodeStore(db), activities, hub, nil)
	jwtManager := jwt.NewJWTManager("test-secret", time.Hour)

	deps := Dependencies{
		DB:           db,
		Config:       &config.Config{CORS: config.CORSConfig{AllowOrigins: []string{"*"}}},
		JWTManager:   jwtManager,
		Users:        users,
		Estates:      estates,
		VisitorCodes: visitorCodes,
		Activities:   activities,
		GateFeed:     hub,
	}
	for _, opt := range opts {
		opt(&deps)
	}
	engine := SetupRouter(deps)

	return &testServer{
		engine:   engine,
		db:       db,
		jwt:      jwtManager,
		hub:      hub,
		resident: mkUser(home.ID, "resident_ada", models.RoleResident),
		staff:    mkUser(home.ID, "guard_bola", models.RoleMaintainer),
		outsider: mkUser(other.ID, "guard_remi", models.RoleAdmin),
	}
}

func (s *testServer) do(t *testing.T, user *models.User, method, path string, body interface{}) (*httptest.ResponseRecorder, apiResponse) {
	t.Helper()

	var reader *bytes.Reader
	switch b := body.(type) {
	case nil:
		reader = bytes.NewReader(nil)
	case string:
		reader = bytes.NewReader([]byte(b))
	default:
		raw, err := json.Marshal(b)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	}

	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	if user != nil {
		token, err := s.jwt.GenerateToken(user.ID, user.EstateID, user.Username, string(user.Role))
		require.NoError(t, err)
		req.Header.Set("Authorization", "Bearer "+token)
	}

	w := httptest.NewRecorder()
	s.engine.ServeHTTP(w, req)

	var resp apiResponse
	if w.Body.Len() > 0 {
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp), w.Body.String())
	}
	return w, resp
}

func (s *testServer) issue(t *testing.T) models.VisitorCode {
	t.Helper()
	w, resp := s.do(t, s.resident, http.MethodPost, "/api/v1/visitor-codes", map[string]interface{}{
		"visitor_name":       "Chidi Okafor",
		"destination":        "Block B, Flat 12",
		"number_of_visitors": 2,
		"expires_at":         time.Now().Add(time.Hour).UTC().Format(time.RFC3339),
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	var vc models.VisitorCode
	require.NoError(t, json.Unmarshal(resp.Data, &vc))
	return vc
}

func TestRouter_Ping(t *testing.T) {
	s := newTestServer(t)

	w, _ := s.do(t, nil, http.MethodGet, "/api/v1/ping", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.NotEmpty(t, w.Header().Get("X-Request-ID"))
}

func TestRouter_Health(t *testing.T) {
	s := newTestServer(t)

	w, resp := s.do(t, nil, http.MethodGet, "/api/v1/health", nil)
	require.Equal(t, http.StatusOK, w.Code)

	var body struct {
		Status string                 `json:"status"`
		Checks map[string]interface{} `json:"checks"`
	}
	require.NoError(t, json.Unmarshal(resp.Data, &body))
	assert.Equal(t, "ok", body.Status)
	assert.Equal(t, "ok", body.Checks["database"])
	assert.Equal(t, "disabled", body.Checks["redis"])
}

func TestRouter_Health_ReportsQueueDepth(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	q := queue.NewRedisQueueWithClient(client, "estategate")
	require.NoError(t, q.Enqueue(context.Background(), services.VisitorEventQueue, map[string]string{"type": "visitor_code.issued"}))

	s := newTestServer(t, func(d *Dependencies) { d.EventQueue = q })

	w, resp := s.do(t, nil, http.MethodGet, "/api/v1/health", nil)
	require.Equal(t, http.StatusOK, w.Code)

	var body struct {
		Status string `json:"status"`
		Checks struct {
			Redis struct {
				Status     string `json:"status"`
				QueueDepth int64  `json:"queue_depth"`
			} `json:"redis"`
		} `json:"checks"`
	}
	require.NoError(t, json.Unmarshal(resp.Data, &body))
	assert.Equal(t, "ok", body.Status)
	assert.Equal(t, "ok", body.Checks.Redis.Status)
	assert.Equal(t, int64(1), body.Checks.Redis.QueueDepth)

	mr.Close()
	w, resp = s.do(t, nil, http.MethodGet, "/api/v1/health", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var degraded struct {
		Status string `json:"status"`
	}
	require.NoError(t, json.Unmarshal(resp.Data, &degraded))
	assert.Equal(t, "degraded", degraded.Status)
}

func TestRouter_Login(t *testing.T) {
	s := newTestServer(t)

	w, resp := s.do(t, nil, http.MethodPost, "/api/v1/auth/login", map[string]string{
		"username": "resident_ada",
		"password": "secret123",
	})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var login struct {
		Token string `json:"token"`
		User  struct {
			Role string `json:"role"`
		} `json:"user"`
	}
	require.NoError(t, json.Unmarshal(resp.Data, &login))
	assert.NotEmpty(t, login.Token)
	assert.Equal(t, "resident", login.User.Role)

	w, _ = s.do(t, nil, http.MethodPost, "/api/v1/auth/login", map[string]string{
		"username": "resident_ada",
		"password": "wrong-pass",
	})
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestRouter_RequiresLogin(t *testing.T) {
	s := newTestServer(t)

	w, _ := s.do(t, nil, http.MethodGet, "/api/v1/visitor-codes", nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/visitor-codes", nil)
	req.Header.Set("Authorization", "Bearer not-a-token")
	rec := httptest.NewRecorder()
	s.engine.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestRouter_IssueValidation(t *testing.T) {
	s := newTestServer(t)

	w, _ := s.do(t, s.resident, http.MethodPost, "/api/v1/visitor-codes", `{"visitor_name":`)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w, resp := s.do(t, s.resident, http.MethodPost, "/api/v1/visitor-codes", map[string]interface{}{
		"visitor_name":       "Chidi",
		"destination":        "Block B",
		"number_of_visitors": 11,
		"expires_at":         time.Now().Add(time.Hour).UTC().Format(time.RFC3339),
	})
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
	assert.Contains(t, resp.Message, "number_of_visitors")

	w, _ = s.do(t, s.resident, http.MethodPost, "/api/v1/visitor-codes", map[string]interface{}{
		"visitor_name":       "Chidi",
		"destination":        "Block B",
		"number_of_visitors": 1,
		"expires_at":         time.Now().Add(-time.Hour).UTC().Format(time.RFC3339),
	})
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)

	// 物业人员不能签发，请求在路由层被拦下
	w, resp = s.do(t, s.staff, http.MethodPost, "/api/v1/visitor-codes", map[string]interface{}{
		"visitor_name":       "Chidi",
		"destination":        "Block B",
		"number_of_visitors": 1,
		"expires_at":         time.Now().Add(time.Hour).UTC().Format(time.RFC3339),
	})
	assert.Equal(t, http.StatusForbidden, w.Code)
	assert.Contains(t, resp.Message, "resident")
}

func TestRouter_VisitorLifecycle(t *testing.T) {
	s := newTestServer(t)
	vc := s.issue(t)
	assert.Equal(t, models.VisitorCodeStatusPending, vc.Status)

	verifyPath := fmt.Sprintf("/api/v1/visitor-codes/%d/verify", vc.ID)

	w, _ := s.do(t, s.resident, http.MethodPost, verifyPath, nil)
	assert.Equal(t, http.StatusForbidden, w.Code)

	w, _ = s.do(t, s.outsider, http.MethodPost, verifyPath, nil)
	assert.Equal(t, http.StatusNotFound, w.Code)

	w, resp := s.do(t, s.staff, http.MethodPost, verifyPath, nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var verified models.VisitorCode
	require.NoError(t, json.Unmarshal(resp.Data, &verified))
	assert.Equal(t, models.VisitorCodeStatusActive, verified.Status)
	require.NotNil(t, verified.VerifiedBy)
	assert.Equal(t, s.staff.ID, *verified.VerifiedBy)

	w, _ = s.do(t, s.staff, http.MethodPost, verifyPath, nil)
	assert.Equal(t, http.StatusConflict, w.Code)

	w, _ = s.do(t, s.resident, http.MethodPost, fmt.Sprintf("/api/v1/visitor-codes/%d/cancel", vc.ID), nil)
	assert.Equal(t, http.StatusConflict, w.Code)

	w, resp = s.do(t, s.staff, http.MethodPost, fmt.Sprintf("/api/v1/visitor-codes/%d/time-out", vc.ID), nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var done models.VisitorCode
	require.NoError(t, json.Unmarshal(resp.Data, &done))
	assert.Equal(t, models.VisitorCodeStatusComplete, done.Status)

	w, _ = s.do(t, s.resident, http.MethodDelete, fmt.Sprintf("/api/v1/visitor-codes/%d", vc.ID), nil)
	assert.Equal(t, http.StatusOK, w.Code)

	w, _ = s.do(t, s.resident, http.MethodGet, fmt.Sprintf("/api/v1/visitor-codes/%d", vc.ID), nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestRouter_VerifyByCode(t *testing.T) {
	s := newTestServer(t)
	vc := s.issue(t)

	w, _ := s.do(t, s.staff, http.MethodPost, "/api/v1/visitor-codes/verify-by-code", map[string]string{})
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)

	w, _ = s.do(t, s.staff, http.MethodPost, "/api/v1/visitor-codes/verify-by-code", map[string]string{"code": "ZZZZZZ"})
	assert.Equal(t, http.StatusNotFound, w.Code)

	w, resp := s.do(t, s.staff, http.MethodPost, "/api/v1/visitor-codes/verify-by-code", map[string]string{
		"code": " " + string(bytes.ToLower([]byte(vc.Code))) + " ",
	})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var got models.VisitorCode
	require.NoError(t, json.Unmarshal(resp.Data, &got))
	assert.Equal(t, vc.ID, got.ID)

	w, _ = s.do(t, s.staff, http.MethodPost, "/api/v1/visitor-codes/verify-by-code", map[string]string{"code": vc.Code})
	assert.Equal(t, http.StatusConflict, w.Code)
}

func TestRouter_CancelThenVerify(t *testing.T) {
	s := newTestServer(t)
	vc := s.issue(t)

	w, resp := s.do(t, s.resident, http.MethodPost, fmt.Sprintf("/api/v1/visitor-codes/%d/cancel", vc.ID), nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var cancelled models.VisitorCode
	require.NoError(t, json.Unmarshal(resp.Data, &cancelled))
	assert.Equal(t, models.VisitorCodeStatusCancelled, cancelled.Status)

	w, _ = s.do(t, s.staff, http.MethodPost, fmt.Sprintf("/api/v1/visitor-codes/%d/verify", vc.ID), nil)
	assert.Equal(t, http.StatusConflict, w.Code)
}

func TestRouter_Lists(t *testing.T) {
	s := newTestServer(t)
	s.issue(t)
	s.issue(t)

	w, body := s.do(t, s.resident, http.MethodGet, "/api/v1/visitor-codes?status=pending", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var mine []models.VisitorCode
	require.NoError(t, json.Unmarshal(body.Data, &mine))
	assert.Len(t, mine, 2)

	w, _ = s.do(t, s.resident, http.MethodGet, "/api/v1/visitor-codes?status=bogus", nil)
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)

	w, _ = s.do(t, s.resident, http.MethodGet, "/api/v1/visitor-codes?from_date=yesterday", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w, _ = s.do(t, s.resident, http.MethodGet, "/api/v1/admin/visitor-codes", nil)
	assert.Equal(t, http.StatusForbidden, w.Code)

	w, body = s.do(t, s.staff, http.MethodGet, "/api/v1/admin/visitor-codes", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var estateCodes []models.VisitorCode
	require.NoError(t, json.Unmarshal(body.Data, &estateCodes))
	require.Len(t, estateCodes, 2)
	require.NotNil(t, estateCodes[0].User)
	assert.Equal(t, s.resident.ID, estateCodes[0].User.ID)

	w, body = s.do(t, s.outsider, http.MethodGet, "/api/v1/admin/visitor-codes", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var foreign []models.VisitorCode
	require.NoError(t, json.Unmarshal(body.Data, &foreign))
	assert.Empty(t, foreign)

	w, body = s.do(t, s.staff, http.MethodGet, "/api/v1/admin/activities?action=visitor_code_created", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var activities []models.Activity
	require.NoError(t, json.Unmarshal(body.Data, &activities))
	assert.Len(t, activities, 2)
}

func TestRouter_Me(t *testing.T) {
	s := newTestServer(t)

	w, resp := s.do(t, s.staff, http.MethodGet, "/api/v1/auth/me", nil)
	require.Equal(t, http.StatusOK, w.Code)

	var me struct {
		IsStaff bool `json:"is_staff"`
		Estate  struct {
			Code string `json:"code"`
		} `json:"estate"`
	}
	require.NoError(t, json.Unmarshal(resp.Data, &me))
	assert.True(t, me.IsStaff)
	assert.Equal(t, "greenwood", me.Estate.Code)
}

func TestRouter_GateFeed(t *testing.T) {
	s := newTestServer(t)
	srv := httptest.NewServer(s.engine)
	defer srv.Close()

	wsURL := "ws" + strings.TrimPrefix(srv.URL, "http") + "/api/v1/ws/gate-feed?token="

	residentToken, err := s.jwt.GenerateToken(s.resident.ID, s.resident.EstateID, s.resident.Username, string(s.resident.Role))
	require.NoError(t, err)
	_, resp, err := websocket.DefaultDialer.Dial(wsURL+residentToken, nil)
	require.Error(t, err)
	require.NotNil(t, resp)
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)

	staffToken, err := s.jwt.GenerateToken(s.staff.ID, s.staff.EstateID, s.staff.Username, string(s.staff.Role))
	require.NoError(t, err)
	conn, _, err := websocket.DefaultDialer.Dial(wsURL+staffToken, nil)
	require.NoError(t, err)
	defer conn.Close()

	require.Eventually(t, func() bool { return s.hub.SubscriberCount(s.staff.EstateID) == 1 },
		2*time.Second, 10*time.Millisecond)

	vc := s.issue(t)

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(3*time.Second)))
	var event services.VisitorEvent
	require.NoError(t, conn.ReadJSON(&event))
	assert.Equal(t, services.EventVisitorCodeIssued, event.Type)
	assert.Equal(t, vc.ID, event.VisitorCodeID)
	assert.Equal(t, vc.Code, event.Code)
}
