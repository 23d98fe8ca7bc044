package routing

import (
	"context"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/callpath/callpath/internal/database/models"
)

// maxRouteHops bounds the execution loop across fallback chains. The
// resolver already rejects cyclic configurations; this is the runtime
// backstop for the loop itself.
const maxRouteHops = 16

// EventKind discriminates call events observed from the signaling layer.
type EventKind string

const (
	// EventAnswer reports that a rung extension answered.
	EventAnswer EventKind = "answer"
	// EventDigit reports a collected DTMF digit.
	EventDigit EventKind = "digit"
	// EventHangup reports that the caller hung up.
	EventHangup EventKind = "hangup"
)

// CallEvent is one event observed for an in-progress call.
type CallEvent struct {
	Kind        EventKind
	ExtensionID int64
	Digit       rune
}

// CallActions abstracts the emissions the decision core makes toward the
// telephony/call-control layer. Emissions are fire-and-forget: outcomes are
// observed later as CallEvents. The signaling layer implements this.
type CallActions interface {
	// Dial rings the given targets. The first answer is reported as an
	// EventAnswer; the core cancels the rest via CancelDial.
	Dial(ctx context.Context, callID string, targets []DialTarget) error

	// CancelDial stops all in-progress ringing for the call.
	CancelDial(ctx context.Context, callID string) error

	// PlayPrompt plays an IVR prompt and begins digit collection. Digits
	// arrive as EventDigit events.
	PlayPrompt(ctx context.Context, callID string, prompt models.Prompt, maxDigits, interDigitTimeoutSec int) error

	// JoinConference places the call into a conference room.
	JoinConference(ctx context.Context, callID string, roomID int64) error

	// Forward sends the call to an external number.
	Forward(ctx context.Context, callID string, number string) error

	// Hangup terminates the call.
	Hangup(ctx context.Context, callID string) error
}

// DecisionRecorder persists routing outcomes for operator visibility.
type DecisionRecorder interface {
	Record(ctx context.Context, entry *models.RoutingLogEntry) error
}

// RouteResult summarizes how a routing attempt ended.
type RouteResult struct {
	CallID     string
	Terminal   DecisionKind
	AnsweredBy int64 // extension id, set when Terminal is dial and a member answered
	ResolveErr error // set when a resolver failure degraded the call to hangup
	Hops       int
}

// Router drives a call through the decision core: it resolves the entry
// destination, executes dial plans and IVR sessions against the signaling
// layer, follows fallbacks, and degrades to hangup on resolver errors.
// One Route call handles one call; many may run concurrently.
type Router struct {
	engine    *RingStrategyEngine
	evaluator *ScheduleEvaluator
	actions   CallActions
	recorder  DecisionRecorder
	logger    *slog.Logger

	active atomic.Int64
}

// NewRouter creates a router. recorder may be nil to skip routing logs.
func NewRouter(engine *RingStrategyEngine, evaluator *ScheduleEvaluator, actions CallActions, recorder DecisionRecorder, logger *slog.Logger) *Router {
	return &Router{
		engine:    engine,
		evaluator: evaluator,
		actions:   actions,
		recorder:  recorder,
		logger:    logger.With("subsystem", "router"),
	}
}

// ActiveCalls returns the number of routing attempts currently in flight.
func (r *Router) ActiveCalls() int {
	return int(r.active.Load())
}

// RouteSchedule evaluates a business-hours schedule for the call's instant
// and routes to the resulting open/closed action.
func (r *Router) RouteSchedule(ctx context.Context, callID string, snap *Snapshot, scheduleID int64, at time.Time, events <-chan CallEvent) (*RouteResult, error) {
	sched, ok := snap.ScheduleByID(scheduleID)
	if !ok {
		r.logger.Error("schedule not found, hanging up", "call_id", callID, "schedule_id", scheduleID)
		err := fmt.Errorf("%w: schedule %d", ErrNotFound, scheduleID)
		r.hangup(ctx, callID)
		res := &RouteResult{CallID: callID, Terminal: DecisionHangup, ResolveErr: err}
		r.record(ctx, callID, models.DestinationRef{}, res)
		return res, nil
	}

	eval := r.evaluator.EvaluateAt(sched, at)
	r.logger.Info("schedule evaluated",
		"call_id", callID,
		"schedule_id", scheduleID,
		"open", eval.IsOpen,
		"action", eval.Action,
	)
	return r.Route(ctx, callID, snap, eval.Action, events)
}

// Route resolves and executes routing for one call, starting at entry.
// It returns when the call reached a terminal decision; resolver failures
// are reported inside the result, never raised into the signaling layer.
func (r *Router) Route(ctx context.Context, callID string, snap *Snapshot, entry models.DestinationRef, events <-chan CallEvent) (*RouteResult, error) {
	r.active.Add(1)
	defer r.active.Add(-1)

	resolver := NewResolver(snap, r.logger)
	result := &RouteResult{CallID: callID}

	action, err := resolver.Resolve(entry)
	if err != nil {
		r.logger.Error("destination failed to resolve, hanging up",
			"call_id", callID,
			"entry", entry,
			"error", err,
		)
		result.Terminal = DecisionHangup
		result.ResolveErr = err
		r.hangup(ctx, callID)
		r.record(ctx, callID, entry, result)
		return result, nil
	}

	for hop := 0; ; hop++ {
		result.Hops = hop
		if hop >= maxRouteHops {
			r.logger.Error("route hop limit reached, hanging up", "call_id", callID)
			result.Terminal = DecisionHangup
			result.ResolveErr = fmt.Errorf("%w: %d route hops", ErrDepthExceeded, hop)
			r.hangup(ctx, callID)
			break
		}

		next := r.step(ctx, callID, resolver, action, result, events)
		if next == nil {
			break
		}
		action = next
	}

	r.record(ctx, callID, entry, result)
	return result, nil
}

// step executes one resolved action, recording the terminal decision on
// result. It returns a non-nil next action when routing continues
// (unanswered ring group fallback, IVR outcome), or nil when the call
// reached a terminal decision.
func (r *Router) step(ctx context.Context, callID string, resolver *Resolver, action *ResolvedAction, result *RouteResult, events <-chan CallEvent) *ResolvedAction {
	switch action.Kind {
	case ActionHangup:
		r.hangup(ctx, callID)
		result.Terminal = DecisionHangup
		return nil

	case ActionForward:
		if err := r.actions.Forward(ctx, callID, action.Number); err != nil {
			r.logger.Error("forward emission failed", "call_id", callID, "error", err)
		}
		result.Terminal = DecisionForward
		return nil

	case ActionDialConference:
		if err := r.actions.JoinConference(ctx, callID, action.Conference.ID); err != nil {
			r.logger.Error("conference emission failed", "call_id", callID, "error", err)
		}
		result.Terminal = DecisionDial
		return nil

	case ActionDialExtension:
		batch := singleBatch(action.Extension.ID, defaultRingTimeoutSec)
		outcome := r.runBatch(ctx, callID, batch, events)
		if outcome.answered {
			result.Terminal = DecisionDial
			result.AnsweredBy = outcome.answeredBy
			return nil
		}
		if !outcome.hungup {
			// No answer on a direct extension dial ends the call.
			r.hangup(ctx, callID)
		}
		result.Terminal = DecisionHangup
		return nil

	case ActionRingGroup:
		return r.runRingGroup(ctx, callID, resolver, action.Group, result, events)

	case ActionIVRMenu:
		next, err := r.runIVR(ctx, callID, resolver, action.Menu, events)
		if err != nil {
			result.Terminal = DecisionHangup
			result.ResolveErr = err
			return nil
		}
		if next == nil {
			// Caller hung up during the session.
			result.Terminal = DecisionHangup
			return nil
		}
		return next

	default:
		r.logger.Error("unknown resolved action kind, hanging up",
			"call_id", callID,
			"kind", action.Kind,
		)
		r.hangup(ctx, callID)
		result.Terminal = DecisionHangup
		return nil
	}
}

// runRingGroup executes the group's dial plan batch by batch. If no batch is
// answered, routing continues with the plan's resolved fallback action.
func (r *Router) runRingGroup(ctx context.Context, callID string, resolver *Resolver, group *models.RingGroup, result *RouteResult, events <-chan CallEvent) *ResolvedAction {
	plan := r.engine.Plan(group, r.reachableMembers(resolver, group), resolver)
	if plan.FallbackErr != nil && result.ResolveErr == nil {
		result.ResolveErr = plan.FallbackErr
	}

	for i, batch := range plan.Batches {
		r.logger.Debug("ringing batch",
			"call_id", callID,
			"group_id", group.ID,
			"batch", i+1,
			"batches", len(plan.Batches),
			"targets", len(batch.Targets),
		)
		outcome := r.runBatch(ctx, callID, batch, events)
		if outcome.answered {
			result.Terminal = DecisionDial
			result.AnsweredBy = outcome.answeredBy
			return nil
		}
		if outcome.hungup {
			result.Terminal = DecisionHangup
			return nil
		}
	}

	r.logger.Info("ring group exhausted, following fallback",
		"call_id", callID,
		"group_id", group.ID,
		"fallback_kind", plan.Fallback.Kind,
	)
	return plan.Fallback
}

// reachableMembers filters group members to those whose extension exists and
// is active in the snapshot. Device-level reachability (registrations, DND)
// belongs to the signaling layer and is reported back as unanswered batches.
func (r *Router) reachableMembers(resolver *Resolver, group *models.RingGroup) []models.RingGroupMember {
	reachable := make([]models.RingGroupMember, 0, len(group.Members))
	for _, m := range group.Members {
		ext, ok := resolver.snap.ExtensionByID(m.ExtensionID)
		if !ok || ext.Status != models.StatusActive {
			r.logger.Warn("ring group member unavailable, skipping",
				"group_id", group.ID,
				"extension_id", m.ExtensionID,
			)
			continue
		}
		reachable = append(reachable, m)
	}
	return reachable
}

// batchOutcome is the resolved outcome of ringing one batch.
type batchOutcome struct {
	answered   bool
	answeredBy int64
	hungup     bool
}

// runBatch rings one batch and waits for the first of: answer, caller
// hangup, ring timeout, or context cancellation. Exactly one outcome wins;
// ringing is always cancelled before returning so no timers or forks dangle.
func (r *Router) runBatch(ctx context.Context, callID string, batch DialBatch, events <-chan CallEvent) batchOutcome {
	if len(batch.Targets) == 0 {
		return batchOutcome{}
	}
	if err := r.actions.Dial(ctx, callID, batch.Targets); err != nil {
		r.logger.Error("dial emission failed", "call_id", callID, "error", err)
		return batchOutcome{}
	}

	timeout := time.Duration(batch.Targets[0].TimeoutSec) * time.Second
	timer := time.NewTimer(timeout)
	defer timer.Stop()

	for {
		select {
		case ev, ok := <-events:
			if !ok {
				r.cancelDial(ctx, callID)
				return batchOutcome{hungup: true}
			}
			switch ev.Kind {
			case EventAnswer:
				// First answer wins; cancel ringing on all other targets.
				r.cancelDial(ctx, callID)
				return batchOutcome{answered: true, answeredBy: ev.ExtensionID}
			case EventHangup:
				r.cancelDial(ctx, callID)
				return batchOutcome{hungup: true}
			case EventDigit:
				// Digits are meaningless while ringing; drop them.
			}
		case <-timer.C:
			r.cancelDial(ctx, callID)
			return batchOutcome{}
		case <-ctx.Done():
			r.cancelDial(ctx, callID)
			return batchOutcome{hungup: true}
		}
	}
}

// runIVR drives an IvrSession from call events, owning the inter-digit
// timer. It returns the resolved action the session routed or failed over
// to, nil when the caller hung up, or the resolver error that degraded the
// session to hangup (the hangup emission already sent).
func (r *Router) runIVR(ctx context.Context, callID string, resolver *Resolver, menu *models.IVRMenu, events <-chan CallEvent) (*ResolvedAction, error) {
	session := NewIvrSession(menu, resolver, r.logger)

	step := session.Start()
	if step.Replay == nil {
		return nil, nil
	}
	r.playPrompt(ctx, callID, *step.Replay)

	interDigit := time.Duration(step.Replay.InterDigitTimeoutSec) * time.Second
	timer := time.NewTimer(interDigit)
	defer timer.Stop()

	for {
		select {
		case ev, ok := <-events:
			if !ok {
				session.OnHangup()
				return nil, nil
			}
			switch ev.Kind {
			case EventDigit:
				next, err := session.OnDigit(ev.Digit)
				if done, action, err := r.applyStep(ctx, callID, next, err, timer, interDigit); done {
					return action, err
				}
			case EventHangup:
				session.OnHangup()
				return nil, nil
			case EventAnswer:
				// Not expected while collecting; ignore.
			}
		case <-timer.C:
			next, err := session.OnTimeout()
			if done, action, err := r.applyStep(ctx, callID, next, err, timer, interDigit); done {
				return action, err
			}
		case <-ctx.Done():
			session.OnHangup()
			return nil, nil
		}
	}
}

// applyStep performs the side effects of an IvrStep: replaying the prompt,
// restarting the inter-digit timer, or terminating. done is true when the
// session reached a terminal state.
func (r *Router) applyStep(ctx context.Context, callID string, step IvrStep, stepErr error, timer *time.Timer, interDigit time.Duration) (done bool, action *ResolvedAction, err error) {
	if stepErr != nil {
		r.hangup(ctx, callID)
		return true, nil, stepErr
	}
	if step.Routed != nil {
		return true, step.Routed, nil
	}
	if step.Hangup {
		r.hangup(ctx, callID)
		return true, nil, nil
	}
	if step.Replay != nil {
		r.playPrompt(ctx, callID, *step.Replay)
	}
	// Collecting continues; restart the inter-digit window.
	if !timer.Stop() {
		select {
		case <-timer.C:
		default:
		}
	}
	timer.Reset(interDigit)
	return false, nil, nil
}

func (r *Router) playPrompt(ctx context.Context, callID string, d RoutingDecision) {
	if d.Prompt == nil {
		return
	}
	if err := r.actions.PlayPrompt(ctx, callID, *d.Prompt, d.MaxDigits, d.InterDigitTimeoutSec); err != nil {
		r.logger.Error("prompt emission failed", "call_id", callID, "error", err)
	}
}

func (r *Router) hangup(ctx context.Context, callID string) {
	if err := r.actions.Hangup(ctx, callID); err != nil {
		r.logger.Error("hangup emission failed", "call_id", callID, "error", err)
	}
}

func (r *Router) cancelDial(ctx context.Context, callID string) {
	if err := r.actions.CancelDial(ctx, callID); err != nil {
		r.logger.Error("cancel dial emission failed", "call_id", callID, "error", err)
	}
}

func (r *Router) record(ctx context.Context, callID string, entry models.DestinationRef, result *RouteResult) {
	if r.recorder == nil {
		return
	}
	logEntry := &models.RoutingLogEntry{
		CallID:       callID,
		Entry:        entry,
		DecisionKind: string(result.Terminal),
	}
	if result.ResolveErr != nil {
		logEntry.ResolveError = ResolveErrorReason(result.ResolveErr)
	}
	if err := r.recorder.Record(ctx, logEntry); err != nil {
		r.logger.Error("failed to record routing decision", "call_id", callID, "error", err)
	}
}
