package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"

	"github.com/turtacn/DataMention-Intelligence/internal/testutil"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func serve(r http.Handler, method, path string, header map[string]string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, nil)
	for k, v := range header {
		req.Header.Set(k, v)
	}
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	return rec
}

func TestRequestID_GeneratesAndPropagates(t *testing.T) {
	r := gin.New()
	r.Use(RequestID())
	r.GET("/", func(c *gin.Context) { c.String(http.StatusOK, GetRequestID(c)) })

	rec := serve(r, http.MethodGet, "/", nil)
	assert.NotEmpty(t, rec.Header().Get(HeaderRequestID))
	assert.Equal(t, rec.Header().Get(HeaderRequestID), rec.Body.String())

	rec = serve(r, http.MethodGet, "/", map[string]string{HeaderRequestID: "req-42"})
	assert.Equal(t, "req-42", rec.Header().Get(HeaderRequestID))
}

func TestRequestLogging_Levels(t *testing.T) {
	log := testutil.NewMockLogger()
	r := gin.New()
	r.Use(RequestLogging(log, DefaultLoggingConfig()))
	r.GET("/ok", func(c *gin.Context) { c.Status(http.StatusOK) })
	r.GET("/bad", func(c *gin.Context) { c.Status(http.StatusBadRequest) })
	r.GET("/boom", func(c *gin.Context) { c.Status(http.StatusInternalServerError) })

	serve(r, http.MethodGet, "/ok", nil)
	serve(r, http.MethodGet, "/bad", nil)
	serve(r, http.MethodGet, "/boom", nil)

	assert.True(t, log.HasMessage("info", "HTTP request completed"))
	assert.True(t, log.HasMessage("warn", "HTTP request completed with client error"))
	assert.True(t, log.HasMessage("error", "HTTP request completed with server error"))
}

func TestRequestLogging_SkipsHealthPaths(t *testing.T) {
	log := testutil.NewMockLogger()
	r := gin.New()
	r.Use(RequestLogging(log, DefaultLoggingConfig()))
	r.GET("/healthz", func(c *gin.Context) { c.Status(http.StatusOK) })

	serve(r, http.MethodGet, "/healthz", nil)
	assert.Empty(t, log.GetMessages())
}

func TestRequestLogging_Slow(t *testing.T) {
	log := testutil.NewMockLogger()
	r := gin.New()
	r.Use(RequestLogging(log, LoggingConfig{SlowThreshold: time.Millisecond}))
	r.GET("/slow", func(c *gin.Context) {
		time.Sleep(5 * time.Millisecond)
		c.Status(http.StatusOK)
	})

	serve(r, http.MethodGet, "/slow", nil)
	assert.True(t, log.HasMessage("warn", "HTTP request completed (slow)"))
}
