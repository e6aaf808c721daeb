/*
Package discovery is a soft-state discovery service for Raft joins.
It is NOT authoritative and NOT part of Raft correctness: nodes announce the
current leader and post join requests; the leader admits joiners as voters.
*/
package discovery

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"
)

const (
	LeaderTTL      = 10 * time.Second
	JoinRequestTTL = 30 * time.Second
	cleanupEvery   = 5 * time.Second
)

type LeaderInfo struct {
	ID        string    `json:"id"`
	Addr      string    `json:"addr"`
	HTTPAddr  string    `json:"http_addr"`
	GRPCAddr  string    `json:"grpc_addr"`
	Term      uint64    `json:"term"`
	UpdatedAt time.Time `json:"updated_at"`
}

type JoinRequest struct {
	ID        string    `json:"id"`
	Addr      string    `json:"addr"`
	StartedAt time.Time `json:"started_at"`
}

// Registry is the in-memory state behind the discovery HTTP API.
type Registry struct {
	mu           sync.Mutex
	leader       *LeaderInfo
	joinRequests map[string]JoinRequest
	now          func() time.Time
}

func NewRegistry() *Registry {
	return &Registry{
		joinRequests: make(map[string]JoinRequest),
		now:          time.Now,
	}
}

// Handler routes /leader and /join-requests.
func (s *Registry) Handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("/leader", func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case http.MethodGet:
			s.getLeader(w, r)
		case http.MethodPut:
			s.putLeader(w, r)
		default:
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		}
	})

	mux.HandleFunc("/join-requests", func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case http.MethodPost:
			s.postJoinRequest(w, r)
		case http.MethodGet:
			s.listJoinRequests(w, r)
		case http.MethodDelete:
			s.deleteJoinRequest(w, r)
		default:
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		}
	})

	return mux
}

func (s *Registry) getLeader(w http.ResponseWriter, _ *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.leader == nil || s.now().Sub(s.leader.UpdatedAt) > LeaderTTL {
		http.Error(w, "leader not available", http.StatusNotFound)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(s.leader)
}

func (s *Registry) putLeader(w http.ResponseWriter, r *http.Request) {
	var info LeaderInfo
	if err := json.NewDecoder(r.Body).Decode(&info); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	s.mu.Lock()
	info.UpdatedAt = s.now()
	s.leader = &info
	s.mu.Unlock()

	w.WriteHeader(http.StatusNoContent)
}

func (s *Registry) postJoinRequest(w http.ResponseWriter, r *http.Request) {
	var jr JoinRequest
	if err := json.NewDecoder(r.Body).Decode(&jr); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	if jr.ID == "" || jr.Addr == "" {
		http.Error(w, "id and addr are required", http.StatusBadRequest)
		return
	}

	s.mu.Lock()
	jr.StartedAt = s.now()
	s.joinRequests[jr.ID] = jr
	s.mu.Unlock()

	w.WriteHeader(http.StatusNoContent)
}

func (s *Registry) listJoinRequests(w http.ResponseWriter, _ *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()

	list := make([]JoinRequest, 0, len(s.joinRequests))
	for _, jr := range s.joinRequests {
		list = append(list, jr)
	}

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(list)
}

func (s *Registry) deleteJoinRequest(w http.ResponseWriter, r *http.Request) {
	id := r.URL.Query().Get("id")
	if id == "" {
		http.Error(w, "missing id", http.StatusBadRequest)
		return
	}

	s.mu.Lock()
	delete(s.joinRequests, id)
	s.mu.Unlock()

	w.WriteHeader(http.StatusNoContent)
}

// Expire drops the leader and join requests that outlived their TTL.
func (s *Registry) Expire() {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	if s.leader != nil && now.Sub(s.leader.UpdatedAt) > LeaderTTL {
		s.leader = nil
	}
	for id, jr := range s.joinRequests {
		if now.Sub(jr.StartedAt) > JoinRequestTTL {
			delete(s.joinRequests, id)
		}
	}
}

// CleanupLoop calls Expire periodically until ctx is done.
func (s *Registry) CleanupLoop(ctx context.Context) {
	ticker := time.NewTicker(cleanupEvery)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.Expire()
		}
	}
}
