package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/hashicorp/go-hclog"
	"github.com/hashicorp/raft"

	"github.com/heysubinoy/pyazac/pkg/autocomplete"
	"github.com/heysubinoy/pyazac/pkg/kv"
)

// Server exposes the autocomplete indexes over HTTP.
// Members is the ordered-set variant, Recent the recency list variant.
type Server struct {
	Members autocomplete.Index
	Recent  autocomplete.Index
	Raft    *raft.Raft
	Logger  hclog.Logger

	// LeaderHTTPAddr resolves the leader's HTTP address for redirects.
	// Without it followers answer 503.
	LeaderHTTPAddr func(ctx context.Context) (string, error)
}

// NewServer creates a new HTTP server. raftNode may be nil for a single node.
func NewServer(members, recent autocomplete.Index, raftNode *raft.Raft, logger hclog.Logger) *Server {
	if logger == nil {
		logger = hclog.NewNullLogger()
	}
	return &Server{
		Members: members,
		Recent:  recent,
		Raft:    raftNode,
		Logger:  logger.Named("http"),
	}
}

// RegisterRoutes registers all HTTP handlers on the given mux.
func (s *Server) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("/members/add", s.handleAdd(s.Members))
	mux.HandleFunc("/members/remove", s.handleRemove(s.Members))
	mux.HandleFunc("/members/find", s.handleFind(s.Members))
	mux.HandleFunc("/recent/add", s.handleAdd(s.Recent))
	mux.HandleFunc("/recent/remove", s.handleRemove(s.Recent))
	mux.HandleFunc("/recent/find", s.handleFind(s.Recent))
}

type memberRequest struct {
	Key   string `json:"key"`
	Value string `json:"value"`
}

type findResponse struct {
	Matches []string `json:"matches"`
}

// redirectToLeader answers for followers and reports whether it did.
// Every operation writes (queries insert sentinels), so all of them go to the leader.
func (s *Server) redirectToLeader(w http.ResponseWriter, r *http.Request) bool {
	if s.Raft == nil || s.Raft.State() == raft.Leader {
		return false
	}
	if s.Raft.Leader() == "" || s.LeaderHTTPAddr == nil {
		http.Error(w, "Not leader and no leader known", http.StatusServiceUnavailable)
		return true
	}
	addr, err := s.LeaderHTTPAddr(r.Context())
	if err != nil || addr == "" {
		http.Error(w, "Not leader and no leader known", http.StatusServiceUnavailable)
		return true
	}
	w.Header().Set("Location", "http://"+addr+r.URL.RequestURI())
	http.Error(w, "Not leader. Redirect to leader.", http.StatusTemporaryRedirect)
	return true
}

// writeError maps index errors to status codes.
func (s *Server) writeError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, autocomplete.ErrInvalidPrefix),
		errors.Is(err, autocomplete.ErrInvalidMember),
		errors.Is(err, kv.ErrInvalidArgument):
		http.Error(w, err.Error(), http.StatusBadRequest)
	case errors.Is(err, kv.ErrTxConflict):
		http.Error(w, err.Error(), http.StatusConflict)
	case errors.Is(err, kv.ErrStoreUnavailable):
		http.Error(w, err.Error(), http.StatusServiceUnavailable)
	default:
		s.Logger.Error("request failed", "error", err)
		http.Error(w, "Internal error", http.StatusInternalServerError)
	}
}

func decodeMember(w http.ResponseWriter, r *http.Request) (*memberRequest, bool) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return nil, false
	}
	var req memberRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid JSON", http.StatusBadRequest)
		return nil, false
	}
	if req.Key == "" {
		http.Error(w, "Missing key field", http.StatusBadRequest)
		return nil, false
	}
	return &req, true
}

// handleAdd handles POST requests with JSON body.
// Expects: {"key": "allen", "value": "wind"}
func (s *Server) handleAdd(index autocomplete.Index) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		req, ok := decodeMember(w, r)
		if !ok || s.redirectToLeader(w, r) {
			return
		}
		if err := index.Add(r.Context(), req.Key, req.Value); err != nil {
			s.writeError(w, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

// handleRemove handles POST requests with JSON body.
// Expects: {"key": "allen", "value": "wind"}
func (s *Server) handleRemove(index autocomplete.Index) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		req, ok := decodeMember(w, r)
		if !ok || s.redirectToLeader(w, r) {
			return
		}
		if err := index.Remove(r.Context(), req.Key, req.Value); err != nil {
			s.writeError(w, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

// handleFind handles GET ?key=allen&prefix=wi requests.
// Returns {"matches": [...]}.
func (s *Server) handleFind(index autocomplete.Index) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
			return
		}
		key := r.URL.Query().Get("key")
		if key == "" {
			http.Error(w, "Missing key parameter", http.StatusBadRequest)
			return
		}
		if s.redirectToLeader(w, r) {
			return
		}

		matches, err := index.FindPrefix(r.Context(), key, r.URL.Query().Get("prefix"))
		if err != nil {
			s.writeError(w, err)
			return
		}

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(findResponse{Matches: matches})
	}
}
