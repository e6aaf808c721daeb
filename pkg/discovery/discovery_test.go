package discovery

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestRegistry(t *testing.T) (*Registry, *Client, *time.Time) {
	t.Helper()

	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	registry := NewRegistry()
	registry.now = func() time.Time { return now }

	srv := httptest.NewServer(registry.Handler())
	t.Cleanup(srv.Close)

	return registry, NewClient(srv.URL + "/"), &now
}

func TestLeaderAnnouncement(t *testing.T) {
	ctx := context.Background()
	registry, client, now := newTestRegistry(t)

	_, err := client.Leader(ctx)
	assert.ErrorIs(t, err, ErrNoLeader)

	require.NoError(t, client.AnnounceLeader(ctx, LeaderInfo{
		ID:       "node1",
		Addr:     "127.0.0.1:7001",
		HTTPAddr: ":8080",
		GRPCAddr: "10.0.0.1:9090",
		Term:     3,
	}))

	leader, err := client.Leader(ctx)
	require.NoError(t, err)
	assert.Equal(t, "node1", leader.ID)
	assert.EqualValues(t, 3, leader.Term)

	grpcAddr, err := client.LeaderGRPCAddr(ctx)
	require.NoError(t, err)
	assert.Equal(t, "10.0.0.1:9090", grpcAddr)

	httpAddr, err := client.LeaderHTTPAddr(ctx)
	require.NoError(t, err)
	assert.Equal(t, "localhost:8080", httpAddr)

	*now = now.Add(LeaderTTL + time.Second)
	_, err = client.Leader(ctx)
	assert.ErrorIs(t, err, ErrNoLeader)

	registry.Expire()
	assert.Nil(t, registry.leader)
}

func TestJoinRequests(t *testing.T) {
	ctx := context.Background()
	registry, client, now := newTestRegistry(t)

	require.NoError(t, client.RequestJoin(ctx, "node2", "127.0.0.1:7002"))
	require.NoError(t, client.RequestJoin(ctx, "node3", "127.0.0.1:7003"))
	assert.Error(t, client.RequestJoin(ctx, "", "127.0.0.1:7004"))

	list, err := client.JoinRequests(ctx)
	require.NoError(t, err)
	assert.Len(t, list, 2)

	require.NoError(t, client.DeleteJoinRequest(ctx, "node2"))
	list, err = client.JoinRequests(ctx)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, "node3", list[0].ID)

	*now = now.Add(JoinRequestTTL + time.Second)
	registry.Expire()
	list, err = client.JoinRequests(ctx)
	require.NoError(t, err)
	assert.Empty(t, list)
}

func TestRegistryRejectsBadRequests(t *testing.T) {
	registry := NewRegistry()
	handler := registry.Handler()

	tests := []struct {
		method string
		target string
		body   string
		want   int
	}{
		{http.MethodPost, "/leader", "", http.StatusMethodNotAllowed},
		{http.MethodPut, "/leader", "not json", http.StatusBadRequest},
		{http.MethodPost, "/join-requests", "{", http.StatusBadRequest},
		{http.MethodDelete, "/join-requests", "", http.StatusBadRequest},
		{http.MethodPatch, "/join-requests", "", http.StatusMethodNotAllowed},
	}
	for _, tt := range tests {
		req := httptest.NewRequest(tt.method, tt.target, strings.NewReader(tt.body))
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)
		assert.Equal(t, tt.want, rec.Code, "%s %s", tt.method, tt.target)
	}
}

func TestClientUnreachable(t *testing.T) {
	client := NewClient("http://127.0.0.1:1")
	client.HTTP.Timeout = time.Second

	_, err := client.Leader(context.Background())
	assert.Error(t, err)
	assert.NotErrorIs(t, err, ErrNoLeader)
}
