// Package api provides the HTTP server and handlers for search and
// Dropbox webhooks.
package api

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/dshills/dropsearch/internal/indexer"
	"github.com/dshills/dropsearch/internal/logging"
	"github.com/dshills/dropsearch/pkg/types"
)

// Searcher answers search queries
type Searcher interface {
	Search(ctx context.Context, query types.SearchQuery) (*types.SearchResponse, error)
}

// Syncer accepts change notifications and reports sync state
type Syncer interface {
	Notify()
	Status() indexer.Status
}

// DocumentCounter reports the index size
type DocumentCounter interface {
	Count(ctx context.Context) (int, error)
}

// Config configures the HTTP surface
type Config struct {
	CORSOrigins     []string
	RateLimitWindow time.Duration
	RateLimitMax    int    // 0 disables rate limiting
	AppSecret       string // verifies webhook signatures when set
}

// Server is the HTTP server
type Server struct {
	searcher Searcher
	syncer   Syncer
	counter  DocumentCounter
	limiter  *RateLimiter
	cfg      Config
}

// NewServer creates a new server. counter may be nil.
func NewServer(searcher Searcher, syncer Syncer, counter DocumentCounter, cfg Config) *Server {
	s := &Server{
		searcher: searcher,
		syncer:   syncer,
		counter:  counter,
		cfg:      cfg,
	}
	if cfg.RateLimitMax > 0 && cfg.RateLimitWindow > 0 {
		s.limiter = NewRateLimiter(cfg.RateLimitMax, cfg.RateLimitWindow)
	}
	return s
}

// Handler returns the HTTP handler for the server
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /api/health", s.handleHealth)

	// Search API
	mux.Handle("GET /api/search", s.rateLimit(http.HandlerFunc(s.handleSearch)))

	// Dropbox webhook
	mux.HandleFunc("GET /api/webhook", s.handleWebhookChallenge)
	mux.HandleFunc("POST /api/webhook", s.handleWebhookNotify)

	return instrument(mux, logging.Middleware(cors(s.cfg.CORSOrigins, mux)))
}

// Cleanup drops idle rate limit buckets until ctx is cancelled
func (s *Server) Cleanup(ctx context.Context) {
	if s.limiter == nil {
		return
	}
	ticker := time.NewTicker(s.cfg.RateLimitWindow)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.limiter.Cleanup(s.cfg.RateLimitWindow)
		}
	}
}

// errorResponse is the JSON body of a failed request
type errorResponse struct {
	Error   string `json:"error"`
	Details string `json:"details,omitempty"`
}

func writeJSON(w http.ResponseWriter, code int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func sendError(w http.ResponseWriter, code int, message, details string) {
	writeJSON(w, code, errorResponse{Error: message, Details: details})
}
