package api

import (
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/callpath/callpath/internal/database/models"
	"github.com/callpath/callpath/internal/routing"
)

// decideRequest asks what the routing core would decide for an entry point.
// Exactly one of entry or schedule_id must be set; at defaults to now.
type decideRequest struct {
	Entry      *models.DestinationRef `json:"entry,omitempty"`
	ScheduleID int64                  `json:"schedule_id,omitempty"`
	At         string                 `json:"at,omitempty"` // RFC3339
}

type dialTargetPreview struct {
	ExtensionID int64 `json:"extension_id"`
	TimeoutSec  int   `json:"timeout_sec"`
}

type dialBatchPreview struct {
	Targets []dialTargetPreview `json:"targets"`
}

type planPreview struct {
	GroupID       int64               `json:"group_id"`
	Strategy      models.RingStrategy `json:"strategy"`
	Batches       []dialBatchPreview  `json:"batches"`
	Fallback      string              `json:"fallback"`
	FallbackError string              `json:"fallback_error,omitempty"`
}

type decideResponse struct {
	IsOpen           *bool          `json:"is_open,omitempty"`
	Decision         string         `json:"decision"`
	ResolveError     string         `json:"resolve_error,omitempty"`
	ExtensionID      int64          `json:"extension_id,omitempty"`
	ConferenceRoomID int64          `json:"conference_room_id,omitempty"`
	Number           string         `json:"number,omitempty"`
	Prompt           *models.Prompt `json:"prompt,omitempty"`
	Plan             *planPreview   `json:"plan,omitempty"`
}

// handleDecide previews the routing decision for an entry point without
// executing it. Ring group previews use the non-advancing cursor read so a
// preview never skews live round-robin rotation.
func (s *Server) handleDecide(w http.ResponseWriter, r *http.Request) {
	var req decideRequest
	if errMsg := readJSON(r, &req); errMsg != "" {
		writeError(w, http.StatusBadRequest, errMsg)
		return
	}
	if (req.Entry == nil) == (req.ScheduleID == 0) {
		writeError(w, http.StatusBadRequest, "exactly one of entry or schedule_id is required")
		return
	}

	at := time.Now()
	if req.At != "" {
		parsed, err := time.Parse(time.RFC3339, req.At)
		if err != nil {
			writeError(w, http.StatusBadRequest, "at must be RFC3339")
			return
		}
		at = parsed
	}

	snap, err := s.loader.Load(r.Context())
	if err != nil {
		slog.Error("loading routing snapshot", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to load routing configuration")
		return
	}
	resolver := routing.NewResolver(snap, slog.Default())

	resp := &decideResponse{}
	var entry models.DestinationRef
	if req.Entry != nil {
		entry = *req.Entry
	} else {
		sched, ok := snap.ScheduleByID(req.ScheduleID)
		if !ok {
			writeError(w, http.StatusNotFound, fmt.Sprintf("schedule %d not found", req.ScheduleID))
			return
		}
		eval := s.evaluator.EvaluateAt(sched, at)
		resp.IsOpen = &eval.IsOpen
		entry = eval.Action
	}

	action, err := resolver.Resolve(entry)
	if err != nil {
		reason := routing.ResolveErrorReason(err)
		if reason == "" {
			slog.Error("resolving entry point", "entry", entry, "error", err)
			writeError(w, http.StatusInternalServerError, "failed to resolve entry point")
			return
		}
		// The runtime degrades unresolvable entry points to a safe hangup;
		// the preview reports the same outcome with the reason attached.
		resp.Decision = string(routing.DecisionHangup)
		resp.ResolveError = reason
		writeJSON(w, http.StatusOK, resp)
		return
	}

	s.previewAction(resp, snap, resolver, action)
	writeJSON(w, http.StatusOK, resp)
}

// previewAction fills the response for a resolved action.
func (s *Server) previewAction(resp *decideResponse, snap *routing.Snapshot, resolver *routing.Resolver, action *routing.ResolvedAction) {
	switch action.Kind {
	case routing.ActionDialExtension:
		resp.Decision = string(routing.DecisionDial)
		resp.ExtensionID = action.Extension.ID

	case routing.ActionDialConference:
		resp.Decision = string(routing.DecisionDial)
		resp.ConferenceRoomID = action.Conference.ID

	case routing.ActionForward:
		resp.Decision = string(routing.DecisionForward)
		resp.Number = action.Number

	case routing.ActionIVRMenu:
		resp.Decision = string(routing.DecisionPlayPromptCollect)
		prompt := action.Menu.Prompt
		resp.Prompt = &prompt

	case routing.ActionRingGroup:
		group := action.Group
		reachable := make([]models.RingGroupMember, 0, len(group.Members))
		for _, m := range group.Members {
			if ext, ok := snap.ExtensionByID(m.ExtensionID); ok && ext.Status == models.StatusActive {
				reachable = append(reachable, m)
			}
		}
		plan := s.engine.PlanPreview(group, reachable, resolver)

		resp.Decision = string(routing.DecisionDial)
		pv := &planPreview{
			GroupID:  plan.GroupID,
			Strategy: plan.Strategy,
			Fallback: actionLabel(plan.Fallback),
		}
		if plan.FallbackErr != nil {
			pv.FallbackError = routing.ResolveErrorReason(plan.FallbackErr)
		}
		for _, b := range plan.Batches {
			batch := dialBatchPreview{Targets: make([]dialTargetPreview, len(b.Targets))}
			for i, t := range b.Targets {
				batch.Targets[i] = dialTargetPreview{ExtensionID: t.ExtensionID, TimeoutSec: t.TimeoutSec}
			}
			pv.Batches = append(pv.Batches, batch)
		}
		resp.Plan = pv

	default:
		resp.Decision = string(routing.DecisionHangup)
	}
}

// actionLabel renders a resolved action as a short human-readable label for
// plan previews and the routing log.
func actionLabel(a *routing.ResolvedAction) string {
	if a == nil {
		return "hangup"
	}
	switch a.Kind {
	case routing.ActionDialExtension:
		return fmt.Sprintf("extension:%d", a.Extension.ID)
	case routing.ActionDialConference:
		return fmt.Sprintf("conference_room:%d", a.Conference.ID)
	case routing.ActionRingGroup:
		return fmt.Sprintf("ring_group:%d", a.Group.ID)
	case routing.ActionIVRMenu:
		return fmt.Sprintf("ivr_menu:%d", a.Menu.ID)
	case routing.ActionForward:
		return fmt.Sprintf("forward:%s", a.Number)
	default:
		return "hangup"
	}
}
