package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/heysubinoy/pyazac/internal/store"
	"github.com/heysubinoy/pyazac/pkg/autocomplete"
)

func newTestMux(t *testing.T) *http.ServeMux {
	t.Helper()

	mem := store.NewMemStore()
	srv := NewServer(
		autocomplete.NewPrefixRangeIndex(mem),
		autocomplete.NewRecentIndex(mem),
		nil,
		nil,
	)
	mux := http.NewServeMux()
	srv.RegisterRoutes(mux)
	return mux
}

func do(mux http.Handler, method, target, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)
	return rec
}

func matches(t *testing.T, rec *httptest.ResponseRecorder) []string {
	t.Helper()
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var resp findResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	return resp.Matches
}

func TestMembersEndpoints(t *testing.T) {
	mux := newTestMux(t)

	for _, v := range []string{"wind", "windy", "winding"} {
		rec := do(mux, http.MethodPost, "/members/add", `{"key":"allen","value":"`+v+`"}`)
		require.Equal(t, http.StatusNoContent, rec.Code, rec.Body.String())
	}

	got := matches(t, do(mux, http.MethodGet, "/members/find?key=allen&prefix=wind", ""))
	assert.Equal(t, []string{"wind", "winding", "windy"}, got)

	rec := do(mux, http.MethodPost, "/members/remove", `{"key":"allen","value":"winding"}`)
	require.Equal(t, http.StatusNoContent, rec.Code)

	got = matches(t, do(mux, http.MethodGet, "/members/find?key=allen&prefix=wind", ""))
	assert.Equal(t, []string{"wind", "windy"}, got)

	got = matches(t, do(mux, http.MethodGet, "/members/find?key=allen&prefix=q", ""))
	assert.Empty(t, got)
}

func TestRecentEndpoints(t *testing.T) {
	mux := newTestMux(t)

	for _, v := range []string{"wind", "Windy"} {
		rec := do(mux, http.MethodPost, "/recent/add", `{"key":"allen","value":"`+v+`"}`)
		require.Equal(t, http.StatusNoContent, rec.Code)
	}

	got := matches(t, do(mux, http.MethodGet, "/recent/find?key=allen&prefix=win", ""))
	assert.Equal(t, []string{"Windy", "wind"}, got)
}

func TestEndpointErrors(t *testing.T) {
	mux := newTestMux(t)

	tests := []struct {
		name   string
		method string
		target string
		body   string
		want   int
	}{
		{"add wrong method", http.MethodGet, "/members/add", "", http.StatusMethodNotAllowed},
		{"add bad json", http.MethodPost, "/members/add", "{", http.StatusBadRequest},
		{"add missing key", http.MethodPost, "/members/add", `{"value":"wind"}`, http.StatusBadRequest},
		{"add reserved char", http.MethodPost, "/members/add", `{"key":"allen","value":"a{"}`, http.StatusBadRequest},
		{"find wrong method", http.MethodPost, "/members/find?key=allen&prefix=w", "", http.StatusMethodNotAllowed},
		{"find missing key", http.MethodGet, "/members/find?prefix=w", "", http.StatusBadRequest},
		{"find empty prefix", http.MethodGet, "/members/find?key=allen", "", http.StatusBadRequest},
		{"find bad prefix", http.MethodGet, "/members/find?key=allen&prefix=W1", "", http.StatusBadRequest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := do(mux, tt.method, tt.target, tt.body)
			assert.Equal(t, tt.want, rec.Code, rec.Body.String())
		})
	}
}

func TestMetricsHandler(t *testing.T) {
	reg := prometheus.NewRegistry()
	metrics := store.NewMetrics(reg)
	_, err := store.NewInstrumentedStore(store.NewMemStore(), metrics).Version(context.Background(), "z")
	require.NoError(t, err)

	rec := do(MetricsHandler(reg), http.MethodGet, "/metrics", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `pyaz_store_operations_total{op="version"} 1`)
}
