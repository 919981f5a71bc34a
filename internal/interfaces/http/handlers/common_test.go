package handlers

import (
	"bytes"
	"encoding/json"
	stderrors "errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/turtacn/DataMention-Intelligence/internal/application/extraction"
	"github.com/turtacn/DataMention-Intelligence/internal/intelligence/mention"
	"github.com/turtacn/DataMention-Intelligence/pkg/errors"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func doJSON(t *testing.T, h http.Handler, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if s, ok := body.(string); ok {
			buf.WriteString(s)
		} else {
			require.NoError(t, json.NewEncoder(&buf).Encode(body))
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v), rec.Body.String())
	return v
}

func newExtraction(t *testing.T) extraction.Service {
	t.Helper()
	seg := mention.SegmenterFunc(func(text string) []string { return strings.Split(text, "|") })
	ex, err := mention.NewExtractor(mention.NewLexicon([]string{"ADNI", "NHANES"}, nil), seg)
	require.NoError(t, err)
	return extraction.NewService(ex, nil)
}

func errorEngine(err error) *gin.Engine {
	r := gin.New()
	r.GET("/", func(c *gin.Context) { writeAppError(c, err) })
	return r
}

func TestWriteAppError_ClientError(t *testing.T) {
	rec := doJSON(t, errorEngine(errors.NewInvalidInput("text is empty").WithDetail("field text")), http.MethodGet, "/", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	resp := decode[ErrorResponse](t, rec)
	assert.Equal(t, errors.ErrCodeInvalidInput.String(), resp.Code)
	assert.Equal(t, "text is empty", resp.Message)
	assert.Equal(t, "field text", resp.Detail)
}

func TestWriteAppError_ServerErrorIsMasked(t *testing.T) {
	rec := doJSON(t, errorEngine(errors.New(errors.ErrCodeDatabaseError, "password=hunter2 rejected")), http.MethodGet, "/", nil)
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	resp := decode[ErrorResponse](t, rec)
	assert.Equal(t, "database error", resp.Message)
	assert.NotContains(t, rec.Body.String(), "hunter2")
}

func TestWriteAppError_UnavailableKeepsMessage(t *testing.T) {
	rec := doJSON(t, errorEngine(errors.New(errors.ErrCodeModelNotLoaded, "no model loaded")), http.MethodGet, "/", nil)
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Equal(t, "no model loaded", decode[ErrorResponse](t, rec).Message)
}

func TestWriteAppError_PlainError(t *testing.T) {
	rec := doJSON(t, errorEngine(stderrors.New("boom")), http.MethodGet, "/", nil)
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Equal(t, "internal server error", decode[ErrorResponse](t, rec).Message)
}

func TestQueryInt(t *testing.T) {
	r := gin.New()
	r.GET("/", func(c *gin.Context) { c.JSON(http.StatusOK, gin.H{"n": queryInt(c, "n", 7)}) })

	for q, want := range map[string]float64{"": 7, "?n=3": 3, "?n=-1": 7, "?n=abc": 7} {
		rec := doJSON(t, r, http.MethodGet, "/"+q, nil)
		assert.Equal(t, want, decode[map[string]float64](t, rec)["n"], q)
	}
}
