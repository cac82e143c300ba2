package main

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/geocode-cli/internal/resolver"
)

type stubResolver struct {
	res *resolver.Resolution
	err error
}

func (s *stubResolver) Resolve(_ context.Context, _ string) (*resolver.Resolution, error) {
	return s.res, s.err
}

func TestRouter_Healthz(t *testing.T) {
	router := newRouter(&stubResolver{})

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"status":"ok"`)
	assert.NotEmpty(t, rec.Header().Get("X-Request-ID"))
}

func TestRouter_RequestIDPassthrough(t *testing.T) {
	router := newRouter(&stubResolver{})

	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	req.Header.Set("X-Request-ID", "abc-123")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	assert.Equal(t, "abc-123", rec.Header().Get("X-Request-ID"))
}

func TestRouter_Resolve(t *testing.T) {
	router := newRouter(&stubResolver{res: &resolver.Resolution{
		RawAddress:  "2 Old Walcott Ave, Jamestown RI 02835",
		Latitude:    "41.4969428",
		Longitude:   "-71.3677388",
		Method:      "etags_nsz",
		DisplayName: "2, Old Walcott Avenue, Jamestown, Rhode Island, 02835",
	}})

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet,
		"/v1/resolve?address=2+Old+Walcott+Ave%2C+Jamestown+RI+02835", nil))

	require.Equal(t, http.StatusOK, rec.Code)

	var body resolveResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.True(t, body.Found)
	assert.Equal(t, "41.4969428", body.Latitude)
	assert.Equal(t, "etags_nsz", body.Method)
}

func TestRouter_ResolveNotFound(t *testing.T) {
	router := newRouter(&stubResolver{res: &resolver.Resolution{
		RawAddress: "nowhere",
		Error:      "No results",
	}})

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/v1/resolve?address=nowhere", nil))

	require.Equal(t, http.StatusNotFound, rec.Code)

	var body resolveResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.False(t, body.Found)
	assert.Equal(t, "No results", body.Error)
}

func TestRouter_ResolveMissingAddress(t *testing.T) {
	router := newRouter(&stubResolver{})

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/v1/resolve", nil))

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestRouter_ResolveInternalError(t *testing.T) {
	router := newRouter(&stubResolver{err: assert.AnError})

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/v1/resolve?address=x", nil))

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
}
