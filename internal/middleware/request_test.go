package middleware

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	apperrors "github.com/wfunc/highscore-api/internal/errors"
)

func newTestEngine(log *zap.Logger) *gin.Engine {
	gin.SetMode(gin.TestMode)
	engine := gin.New()
	engine.Use(RequestID(), Logger(log), Recovery(log), ErrorHandler(log))
	return engine
}

func TestRequestID(t *testing.T) {
	engine := newTestEngine(zap.NewNop())
	engine.GET("/id", func(c *gin.Context) {
		c.String(http.StatusOK, GetRequestID(c))
	})

	w := httptest.NewRecorder()
	engine.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/id", nil))
	generated := w.Header().Get(RequestIDHeader)
	assert.Len(t, generated, 36)
	assert.Equal(t, generated, w.Body.String())

	w = httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/id", nil)
	req.Header.Set(RequestIDHeader, "client-id")
	engine.ServeHTTP(w, req)
	assert.Equal(t, "client-id", w.Header().Get(RequestIDHeader))
}

func TestErrorHandlerShapes(t *testing.T) {
	core, logs := observer.New(zap.DebugLevel)
	engine := newTestEngine(zap.New(core))

	engine.GET("/db", func(c *gin.Context) {
		_ = c.Error(apperrors.Wrap(errors.New("relation high_scores does not exist"), apperrors.ErrDatabaseQuery))
	})
	engine.GET("/plain", func(c *gin.Context) {
		_ = c.Error(errors.New("boom"))
	})
	engine.GET("/missing", func(c *gin.Context) {
		_ = c.Error(apperrors.New(apperrors.ErrNotFound).WithMessage("High score with ID 9 not found"))
	})

	testCases := []struct {
		path   string
		status int
		body   string
	}{
		{"/db", http.StatusInternalServerError, `{"error":"Database Error","message":"A database error occurred"}`},
		{"/plain", http.StatusInternalServerError, `{"error":"Server Error","message":"An unexpected error occurred"}`},
		{"/missing", http.StatusNotFound, `{"error":"Not Found","message":"High score with ID 9 not found"}`},
	}

	for _, tc := range testCases {
		w := httptest.NewRecorder()
		engine.ServeHTTP(w, httptest.NewRequest(http.MethodGet, tc.path, nil))
		assert.Equal(t, tc.status, w.Code, tc.path)
		assert.JSONEq(t, tc.body, w.Body.String(), tc.path)
	}

	// 服务端错误完整落日志，内部细节不进入响应
	failures := logs.FilterMessage("request failed").All()
	assert.Len(t, failures, 2)
}

func TestRecovery(t *testing.T) {
	core, logs := observer.New(zap.DebugLevel)
	engine := newTestEngine(zap.New(core))
	engine.GET("/panic", func(c *gin.Context) {
		panic("unexpected")
	})

	w := httptest.NewRecorder()
	engine.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/panic", nil))

	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.JSONEq(t, `{"error":"Server Error","message":"An unexpected error occurred"}`, w.Body.String())
	assert.Equal(t, 1, logs.FilterMessage("panic recovered").Len())
	assert.Equal(t, 1, logs.FilterMessage("request").Len())
}

func TestCORS(t *testing.T) {
	gin.SetMode(gin.TestMode)

	engine := gin.New()
	engine.Use(CORS("*"))
	engine.GET("/x", func(c *gin.Context) { c.Status(http.StatusOK) })

	w := httptest.NewRecorder()
	engine.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/x", nil))
	assert.Equal(t, "*", w.Header().Get("Access-Control-Allow-Origin"))

	w = httptest.NewRecorder()
	engine.ServeHTTP(w, httptest.NewRequest(http.MethodOptions, "/x", nil))
	assert.Equal(t, http.StatusNoContent, w.Code)

	restricted := gin.New()
	restricted.Use(CORS("https://game.example.com, https://admin.example.com"))
	restricted.GET("/x", func(c *gin.Context) { c.Status(http.StatusOK) })

	w = httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/x", nil)
	req.Header.Set("Origin", "https://admin.example.com")
	restricted.ServeHTTP(w, req)
	assert.Equal(t, "https://admin.example.com", w.Header().Get("Access-Control-Allow-Origin"))

	w = httptest.NewRecorder()
	req = httptest.NewRequest(http.MethodGet, "/x", nil)
	req.Header.Set("Origin", "https://evil.example.com")
	restricted.ServeHTTP(w, req)
	assert.Empty(t, w.Header().Get("Access-Control-Allow-Origin"))
}
