package api

import (
	"net/http"
	"time"

	"github.com/dshills/dropsearch/internal/indexer"
	"github.com/dshills/dropsearch/internal/logging"
)

type healthResponse struct {
	Status    string          `json:"status"`
	Time      time.Time       `json:"time"`
	Documents *int            `json:"documents,omitempty"`
	Sync      *indexer.Status `json:"sync,omitempty"`
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	resp := healthResponse{Status: "ok", Time: time.Now().UTC()}

	if s.syncer != nil {
		status := s.syncer.Status()
		resp.Sync = &status
	}

	if s.counter != nil {
		count, err := s.counter.Count(r.Context())
		if err != nil {
			logging.WithContext(r.Context()).Warn("failed to count documents", logging.Err(err))
			resp.Status = "degraded"
			writeJSON(w, http.StatusServiceUnavailable, resp)
			return
		}
		resp.Documents = &count
	}

	writeJSON(w, http.StatusOK, resp)
}
