package logger

import (
	"bytes"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestAccessMiddleware_LevelByStatus(t *testing.T) {
	var buf bytes.Buffer
	l := New(&buf, "warn", "json")
	h := AccessMiddleware(l)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/bad" {
			w.WriteHeader(http.StatusBadRequest)
		}
		_, _ = w.Write([]byte("ok"))
	}))

	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/good", nil))
	assert.Empty(t, buf.String())

	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/bad", nil))
	out := buf.String()
	assert.Contains(t, out, `"msg":"http_access"`)
	assert.Contains(t, out, `"status":400`)
	assert.Contains(t, out, `"path":"/bad"`)
	assert.Contains(t, out, `"bytes":2`)
}

func TestParseLevel(t *testing.T) {
	assert.Equal(t, "DEBUG", parseLevel("Debug").String())
	assert.Equal(t, "INFO", parseLevel("").String())
	assert.Equal(t, "ERROR", parseLevel("error").String())
}
