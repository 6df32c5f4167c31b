package web

import (
	"context"
	"encoding/hex"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"zigbee-rgb-light/internal/dispatch"
	"zigbee-rgb-light/internal/light"
	"zigbee-rgb-light/internal/ncp"
	"zigbee-rgb-light/internal/relay"
	"zigbee-rgb-light/internal/store"
)

const defaultJournalLimit = 50

type stateResponse struct {
	Endpoint  uint8           `json:"endpoint"`
	State     light.State     `json:"state"`
	Intensity light.Intensity `json:"intensity"`
	Duty      [3]uint16       `json:"duty"`
	Stats     relay.Stats     `json:"stats"`

	JournalEntries *int `json:"journal_entries,omitempty"`
}

func (s *Server) handleAPIState(w http.ResponseWriter, r *http.Request) {
	last := s.light.Last()
	resp := stateResponse{
		Endpoint:  s.light.Endpoint(),
		State:     s.light.Snapshot(),
		Intensity: last.Intensity,
		Duty:      last.Duty,
		Stats:     s.injector.Stats(),
	}
	if s.journal != nil {
		if n, err := s.journal.Len(); err != nil {
			s.logger.Warn("journal length", "err", err)
		} else {
			resp.JournalEntries = &n
		}
	}
	s.writeJSON(w, http.StatusOK, resp)
}

// attributeRequest injects one attribute write. Value is hex in wire order.
type attributeRequest struct {
	Endpoint  *uint8 `json:"endpoint"`
	ClusterID uint16 `json:"cluster_id"`
	AttrID    uint16 `json:"attr_id"`
	DataType  uint8  `json:"data_type"`
	Value     string `json:"value"`
}

func (s *Server) handleAPIAttribute(w http.ResponseWriter, r *http.Request) {
	var req attributeRequest
	r.Body = http.MaxBytesReader(w, r.Body, 1<<16)
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	value, err := hex.DecodeString(strings.ReplaceAll(req.Value, " ", ""))
	if err != nil {
		s.writeError(w, http.StatusBadRequest, "value must be hex")
		return
	}
	msg := ncp.AttributeMessage{
		Endpoint:  s.light.Endpoint(),
		ClusterID: req.ClusterID,
		AttrID:    req.AttrID,
		DataType:  req.DataType,
		Value:     value,
	}
	if req.Endpoint != nil {
		msg.Endpoint = *req.Endpoint
	}

	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()
	out, err := s.injector.Dispatch(ctx, msg)
	switch {
	case errors.Is(err, relay.ErrStopped):
		s.writeError(w, http.StatusServiceUnavailable, "relay stopped")
		return
	case err != nil:
		s.writeError(w, http.StatusGatewayTimeout, err.Error())
		return
	}

	s.logger.Debug("attribute injected", "msg", msg.String(), "outcome", out.Kind)
	status := http.StatusOK
	if out.Kind == dispatch.Rejected {
		status = http.StatusUnprocessableEntity
	}
	s.writeJSON(w, status, out)
}

func (s *Server) handleAPIJournal(w http.ResponseWriter, r *http.Request) {
	if s.journal == nil {
		s.writeError(w, http.StatusNotFound, "journal disabled")
		return
	}
	limit := defaultJournalLimit
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			s.writeError(w, http.StatusBadRequest, "limit must be a positive integer")
			return
		}
		limit = n
	}
	entries, err := s.journal.Recent(limit)
	if err != nil {
		s.logger.Error("read journal", "err", err)
		s.writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}
	s.writeJSON(w, http.StatusOK, entries)
}

func (s *Server) handleAPIJournalEntry(w http.ResponseWriter, r *http.Request) {
	if s.journal == nil {
		s.writeError(w, http.StatusNotFound, "journal disabled")
		return
	}
	seq, err := strconv.ParseUint(r.PathValue("seq"), 10, 64)
	if err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid sequence number")
		return
	}
	e, err := s.journal.Get(seq)
	if errors.Is(err, store.ErrNotFound) {
		s.writeError(w, http.StatusNotFound, "entry not found")
		return
	}
	if err != nil {
		s.logger.Error("read journal entry", "seq", seq, "err", err)
		s.writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}
	s.writeJSON(w, http.StatusOK, e)
}

func (s *Server) handleAPIListClusters(w http.ResponseWriter, r *http.Request) {
	if s.registry == nil {
		s.writeJSON(w, http.StatusOK, []any{})
		return
	}
	s.writeJSON(w, http.StatusOK, s.registry.All())
}

func (s *Server) handleAPIVersion(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]string{"version": s.version})
}
