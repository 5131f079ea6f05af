package router

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
)

func serve(r *Router, method, path string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, nil)
	rec := httptest.NewRecorder()
	r.dispatch(rec, req)
	return rec
}

func TestRouterDispatch(t *testing.T) {
	r := New()
	r.GET("/api/v1/runs", func(w http.ResponseWriter, _ *http.Request) {
		w.Write([]byte("list"))
	})
	r.GET("/api/v1/runs/*", func(w http.ResponseWriter, _ *http.Request) {
		w.Write([]byte("one"))
	})
	r.GET("/api/v1/runs/*/grids", func(w http.ResponseWriter, _ *http.Request) {
		w.Write([]byte("grids"))
	})

	assert.Equal(t, "list", serve(r, http.MethodGet, "/api/v1/runs").Body.String())
	assert.Equal(t, "one", serve(r, http.MethodGet, "/api/v1/runs/abc-123").Body.String())

	// A wildcard matches exactly one segment, so the deeper route wins.
	assert.Equal(t, "grids", serve(r, http.MethodGet, "/api/v1/runs/abc-123/grids").Body.String())
}

func TestRouterMethodNotAllowed(t *testing.T) {
	r := New()
	r.GET("/api/v1/runs", func(w http.ResponseWriter, _ *http.Request) {})

	assert.Equal(t, http.StatusMethodNotAllowed, serve(r, http.MethodDelete, "/api/v1/runs").Code)
	assert.Equal(t, http.StatusNotFound, serve(r, http.MethodGet, "/api/v1/nope").Code)
}

func TestRouterMount(t *testing.T) {
	r := New()
	r.Mount("/swagger/", http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Write([]byte("docs"))
	}))

	assert.Equal(t, "docs", serve(r, http.MethodGet, "/swagger/index.html").Body.String())
}
