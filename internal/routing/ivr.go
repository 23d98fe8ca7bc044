package routing

import (
	"log/slog"
	"strings"
	"sync"

	"github.com/google/uuid"

	"github.com/callpath/callpath/internal/database/models"
)

// defaultInterDigitTimeoutSec is used when a menu's inter-digit timeout is unset.
const defaultInterDigitTimeoutSec = 5

// IvrState is the state of an IVR session.
type IvrState string

const (
	StatePrompting  IvrState = "prompting"
	StateCollecting IvrState = "collecting"
	StateEvaluating IvrState = "evaluating"
	StateRouted     IvrState = "routed"
	StateRetrying   IvrState = "retrying"
	StateFailedOver IvrState = "failed_over"
	StateHangup     IvrState = "hangup"
)

// IvrStep is what the session asks the call-control layer to do after an
// event. At most one field is set: Replay requests the prompt be (re)played
// and digits collected; Routed carries the resolved terminal action; Hangup
// terminates the call. A zero IvrStep means keep collecting.
type IvrStep struct {
	Replay *RoutingDecision
	Routed *ResolvedAction
	Hangup bool
}

// IvrSession is the per-call digit-collection state machine for one IVR
// menu: Prompting -> Collecting -> Evaluating -> {Routed | Retrying |
// FailedOver | Hangup}. State is strictly per call; the mutex only guards
// against a hangup signal arriving from another goroutine.
type IvrSession struct {
	id       string
	menu     *models.IVRMenu
	resolver *Resolver
	logger   *slog.Logger

	mu     sync.Mutex
	state  IvrState
	buffer strings.Builder
	turns  int
}

// NewIvrSession creates a session for the menu in the Prompting state.
func NewIvrSession(menu *models.IVRMenu, resolver *Resolver, logger *slog.Logger) *IvrSession {
	id := uuid.NewString()
	return &IvrSession{
		id:       id,
		menu:     menu,
		resolver: resolver,
		logger: logger.With(
			"subsystem", "ivr_session",
			"session_id", id,
			"menu_id", menu.ID,
		),
		state: StatePrompting,
	}
}

// ID returns the session's unique id.
func (s *IvrSession) ID() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.id
}

// State returns the current state.
func (s *IvrSession) State() IvrState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Turns returns how many prompt turns have completed without a match.
func (s *IvrSession) Turns() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.turns
}

// Start emits the initial prompt decision and moves to Collecting.
func (s *IvrSession) Start() IvrStep {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state != StatePrompting {
		return IvrStep{}
	}
	s.logger.Info("ivr session started", "menu", s.menu.Name)
	return s.promptLocked()
}

// OnDigit feeds one collected DTMF digit into the session. Because the
// option set is prefix-free, an exact match is unambiguous the moment it
// appears; no further digits are awaited. Returns the next step and, when
// the session degraded to hangup, the resolver error that caused it.
func (s *IvrSession) OnDigit(digit rune) (IvrStep, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state != StateCollecting {
		return IvrStep{}, nil
	}

	s.buffer.WriteRune(digit)
	entered := s.buffer.String()

	for i := range s.menu.Options {
		if s.menu.Options[i].InputDigits == entered {
			return s.evaluateLocked(&s.menu.Options[i])
		}
	}

	// No exact match yet; keep collecting until the inter-digit timeout.
	s.logger.Debug("ivr digits pending", "entered", entered)
	return IvrStep{}, nil
}

// OnTimeout signals that the inter-digit timeout elapsed without a match.
func (s *IvrSession) OnTimeout() (IvrStep, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state != StateCollecting {
		return IvrStep{}, nil
	}
	return s.evaluateLocked(nil)
}

// OnHangup signals caller hangup. Terminal from any state; no further side
// effects are emitted.
func (s *IvrSession) OnHangup() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state == StateHangup {
		return
	}
	s.logger.Info("ivr session hangup", "state", s.state, "turns", s.turns)
	s.state = StateHangup
}

// evaluateLocked runs the Evaluating state: route on a match, retry while
// turns remain, otherwise fail over. Resolver errors degrade the session to
// Hangup and are returned for the operational log.
func (s *IvrSession) evaluateLocked(matched *models.IVROption) (IvrStep, error) {
	s.state = StateEvaluating

	if matched != nil {
		action, err := s.resolver.Resolve(matched.Destination)
		if err != nil {
			s.logger.Error("ivr option destination failed to resolve",
				"digits", matched.InputDigits,
				"destination", matched.Destination,
				"error", err,
			)
			s.state = StateHangup
			return IvrStep{Hangup: true}, err
		}
		s.logger.Info("ivr option matched",
			"digits", matched.InputDigits,
			"destination", matched.Destination,
		)
		s.state = StateRouted
		return IvrStep{Routed: action}, nil
	}

	s.turns++
	maxTurns := s.menu.MaxTurns
	if maxTurns <= 0 {
		maxTurns = 1
	}
	if s.turns < maxTurns {
		s.logger.Debug("ivr no match, retrying", "turn", s.turns, "max_turns", maxTurns)
		s.state = StateRetrying
		return s.promptLocked(), nil
	}

	s.state = StateFailedOver
	action, err := s.resolver.Resolve(s.menu.Failover)
	if err != nil {
		s.logger.Error("ivr failover failed to resolve",
			"failover", s.menu.Failover,
			"error", err,
		)
		s.state = StateHangup
		return IvrStep{Hangup: true}, err
	}
	s.logger.Info("ivr failed over", "turns", s.turns, "failover", s.menu.Failover)
	return IvrStep{Routed: action}, nil
}

// promptLocked builds the play-and-collect decision and enters Collecting.
func (s *IvrSession) promptLocked() IvrStep {
	s.buffer.Reset()
	s.state = StateCollecting

	interDigit := s.menu.InterDigitTimeoutSec
	if interDigit <= 0 {
		interDigit = defaultInterDigitTimeoutSec
	}

	maxDigits := 1
	for _, opt := range s.menu.Options {
		if len(opt.InputDigits) > maxDigits {
			maxDigits = len(opt.InputDigits)
		}
	}

	d := PromptDecision(s.menu.Prompt, maxDigits, interDigit)
	return IvrStep{Replay: &d}
}
