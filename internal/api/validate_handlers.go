package api

import (
	"log/slog"
	"net/http"

	"github.com/callpath/callpath/internal/database/models"
	"github.com/callpath/callpath/internal/routing"
)

// validationSnapshot loads a fresh snapshot for validation so references are
// checked against what is currently saved.
func (s *Server) validationSnapshot(w http.ResponseWriter, r *http.Request) *routing.Validator {
	snap, err := s.loader.Load(r.Context())
	if err != nil {
		slog.Error("loading snapshot for validation", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to load routing configuration")
		return nil
	}
	return routing.NewValidator(snap, slog.Default())
}

// handleValidateSchedule validates a business-hours schedule payload without
// saving it.
func (s *Server) handleValidateSchedule(w http.ResponseWriter, r *http.Request) {
	var sched models.BusinessHoursSchedule
	if errMsg := readJSON(r, &sched); errMsg != "" {
		writeError(w, http.StatusBadRequest, errMsg)
		return
	}
	v := s.validationSnapshot(w, r)
	if v == nil {
		return
	}
	writeJSON(w, http.StatusOK, v.ValidateSchedule(&sched))
}

// handleValidateRingGroup validates a ring group payload without saving it.
func (s *Server) handleValidateRingGroup(w http.ResponseWriter, r *http.Request) {
	var group models.RingGroup
	if errMsg := readJSON(r, &group); errMsg != "" {
		writeError(w, http.StatusBadRequest, errMsg)
		return
	}
	v := s.validationSnapshot(w, r)
	if v == nil {
		return
	}
	writeJSON(w, http.StatusOK, v.ValidateRingGroup(&group))
}

// handleValidateIVRMenu validates an IVR menu payload without saving it.
func (s *Server) handleValidateIVRMenu(w http.ResponseWriter, r *http.Request) {
	var menu models.IVRMenu
	if errMsg := readJSON(r, &menu); errMsg != "" {
		writeError(w, http.StatusBadRequest, errMsg)
		return
	}
	v := s.validationSnapshot(w, r)
	if v == nil {
		return
	}
	writeJSON(w, http.StatusOK, v.ValidateIVRMenu(&menu))
}

// handleRoutingLog returns the most recent routing decisions, newest first.
func (s *Server) handleRoutingLog(w http.ResponseWriter, r *http.Request) {
	pg, errMsg := parsePagination(r)
	if errMsg != "" {
		writeError(w, http.StatusBadRequest, errMsg)
		return
	}

	entries, err := s.routingLog.ListRecent(r.Context(), pg.Limit, pg.Offset)
	if err != nil {
		slog.Error("listing routing log", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to list routing log")
		return
	}
	total, err := s.routingLog.Count(r.Context())
	if err != nil {
		slog.Error("counting routing log", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to count routing log")
		return
	}

	writeJSON(w, http.StatusOK, PaginatedResponse{
		Items:  entries,
		Total:  total,
		Limit:  pg.Limit,
		Offset: pg.Offset,
	})
}
