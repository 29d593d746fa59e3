package web

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewEngine(t *testing.T) {
	engine, err := NewEngine()
	require.NoError(t, err, "templates should parse without error")

	rr := httptest.NewRecorder()
	require.NoError(t, engine.Render(rr, http.StatusTeapot, "index.html", pageData{Title: "T"}))
	assert.Equal(t, http.StatusTeapot, rr.Code)
	assert.Equal(t, "text/html; charset=utf-8", rr.Header().Get("Content-Type"))
	assert.Contains(t, rr.Body.String(), "<title>T</title>")

	var nilEngine *Engine
	assert.Error(t, nilEngine.Render(httptest.NewRecorder(), http.StatusOK, "index.html", nil))
}
