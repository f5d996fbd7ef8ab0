// Package api exposes the query surface over HTTP for the presentation
// layer: a submission lookup and an indexing status endpoint. Responses are
// always a consistent snapshot — either current, or stale with the status
// endpoint flagging that indexing halted.
package api

import (
	"encoding/json"
	"net/http"

	"github.com/ethereum/go-ethereum/common"
	"github.com/gorilla/mux"
	"github.com/sirupsen/logrus"

	"github.com/rony4d/go-humanity-index/query"
	"github.com/rony4d/go-humanity-index/store"
)

// Status reports how far indexing has progressed and whether it halted.
type Status struct {
	LastBlock uint64 `json:"lastBlock"`
	Records   uint32 `json:"records"`
	Halted    bool   `json:"halted"`
}

// Server routes read requests to the query layer.
type Server struct {
	query  *query.Reader
	store  *store.Store
	halted func() bool
	log    *logrus.Entry
	router *mux.Router
}

// New builds the HTTP handler. halted is polled per status request; pass
// the engine's Halted method.
func New(q *query.Reader, s *store.Store, halted func() bool, log *logrus.Logger) *Server {
	srv := &Server{
		query:  q,
		store:  s,
		halted: halted,
		log:    log.WithField("module", "api"),
		router: mux.NewRouter(),
	}
	srv.router.HandleFunc("/submissions/{id}", srv.handleSubmission).Methods(http.MethodGet)
	srv.router.HandleFunc("/status", srv.handleStatus).Methods(http.MethodGet)
	return srv
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

func (s *Server) handleSubmission(w http.ResponseWriter, r *http.Request) {
	raw := mux.Vars(r)["id"]
	if !common.IsHexAddress(raw) {
		s.writeError(w, http.StatusBadRequest, "invalid submission address")
		return
	}
	view, err := s.query.Submission(common.HexToAddress(raw))
	if err != nil {
		s.log.WithError(err).Error("submission lookup failed")
		s.writeError(w, http.StatusInternalServerError, "lookup failed")
		return
	}
	if view == nil {
		s.writeError(w, http.StatusNotFound, "submission not found")
		return
	}
	s.writeJSON(w, http.StatusOK, view)
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	pos, err := s.store.Checkpoint()
	if err != nil {
		s.log.WithError(err).Error("checkpoint read failed")
		s.writeError(w, http.StatusInternalServerError, "status unavailable")
		return
	}
	s.writeJSON(w, http.StatusOK, Status{
		LastBlock: uint64(pos.Block),
		Records:   pos.Records,
		Halted:    s.halted(),
	})
}

func (s *Server) writeJSON(w http.ResponseWriter, code int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.log.WithError(err).Warn("response write failed")
	}
}

func (s *Server) writeError(w http.ResponseWriter, code int, msg string) {
	s.writeJSON(w, code, map[string]string{"error": msg})
}
