package routing

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/callpath/callpath/internal/database/models"
)

// mockActions records call-control emissions in order.
type mockActions struct {
	mu     sync.Mutex
	calls  []string
	dialed [][]DialTarget
}

func (m *mockActions) record(name string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = append(m.calls, name)
}

func (m *mockActions) Dial(ctx context.Context, callID string, targets []DialTarget) error {
	m.mu.Lock()
	m.calls = append(m.calls, "dial")
	m.dialed = append(m.dialed, targets)
	m.mu.Unlock()
	return nil
}

func (m *mockActions) CancelDial(ctx context.Context, callID string) error {
	m.record("cancel_dial")
	return nil
}

func (m *mockActions) PlayPrompt(ctx context.Context, callID string, prompt models.Prompt, maxDigits, interDigitTimeoutSec int) error {
	m.record("play_prompt")
	return nil
}

func (m *mockActions) JoinConference(ctx context.Context, callID string, roomID int64) error {
	m.record("join_conference")
	return nil
}

func (m *mockActions) Forward(ctx context.Context, callID string, number string) error {
	m.record("forward")
	return nil
}

func (m *mockActions) Hangup(ctx context.Context, callID string) error {
	m.record("hangup")
	return nil
}

func (m *mockActions) has(name string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, c := range m.calls {
		if c == name {
			return true
		}
	}
	return false
}

func (m *mockActions) count(name string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, c := range m.calls {
		if c == name {
			n++
		}
	}
	return n
}

// mockRecorder captures routing log entries.
type mockRecorder struct {
	mu      sync.Mutex
	entries []models.RoutingLogEntry
}

func (m *mockRecorder) Record(ctx context.Context, entry *models.RoutingLogEntry) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries = append(m.entries, *entry)
	return nil
}

func (m *mockRecorder) last(t *testing.T) models.RoutingLogEntry {
	t.Helper()
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.entries) == 0 {
		t.Fatal("no routing log entries recorded")
	}
	return m.entries[len(m.entries)-1]
}

func newTestRouter() (*Router, *mockActions, *mockRecorder) {
	actions := &mockActions{}
	recorder := &mockRecorder{}
	engine := NewRingStrategyEngine(NewCursorStore(), testLogger())
	evaluator := NewScheduleEvaluator(testLogger())
	return NewRouter(engine, evaluator, actions, recorder, testLogger()), actions, recorder
}

func eventChan(events ...CallEvent) chan CallEvent {
	ch := make(chan CallEvent, len(events)+1)
	for _, ev := range events {
		ch <- ev
	}
	return ch
}

func TestRouteDirectExtensionAnswered(t *testing.T) {
	router, actions, recorder := newTestRouter()
	snap := NewSnapshot([]models.Extension{activeExt(1)}, nil, nil, nil, nil)
	events := eventChan(CallEvent{Kind: EventAnswer, ExtensionID: 1})

	result, err := router.Route(context.Background(), "call-1", snap, models.ExtensionRef(1), events)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.Terminal != DecisionDial || result.AnsweredBy != 1 {
		t.Fatalf("unexpected result: %+v", result)
	}
	if !actions.has("dial") || !actions.has("cancel_dial") {
		t.Errorf("expected dial then cancel_dial, got %v", actions.calls)
	}
	if got := recorder.last(t); got.DecisionKind != "dial" || got.CallID != "call-1" {
		t.Errorf("unexpected log entry: %+v", got)
	}
}

func TestRouteResolveFailureDegradesToHangup(t *testing.T) {
	router, actions, recorder := newTestRouter()
	snap := NewSnapshot(nil, nil, nil, nil, nil)

	result, err := router.Route(context.Background(), "call-2", snap, models.ExtensionRef(404), eventChan())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.Terminal != DecisionHangup {
		t.Errorf("Terminal = %q, want hangup", result.Terminal)
	}
	if !errors.Is(result.ResolveErr, ErrNotFound) {
		t.Errorf("ResolveErr = %v, want ErrNotFound", result.ResolveErr)
	}
	if !actions.has("hangup") {
		t.Error("expected hangup emission")
	}
	if got := recorder.last(t); got.DecisionKind != "hangup" || got.ResolveError != "not_found" {
		t.Errorf("unexpected log entry: %+v", got)
	}
}

func TestRouteForwardAndHangupEntries(t *testing.T) {
	router, actions, _ := newTestRouter()
	snap := NewSnapshot(nil, nil, nil, nil, nil)

	result, err := router.Route(context.Background(), "call-3", snap, models.ForwardRef("+15551230000"), eventChan())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.Terminal != DecisionForward {
		t.Errorf("Terminal = %q, want forward", result.Terminal)
	}
	if !actions.has("forward") {
		t.Error("expected forward emission")
	}

	result, err = router.Route(context.Background(), "call-4", snap, models.HangupRef(), eventChan())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.Terminal != DecisionHangup {
		t.Errorf("Terminal = %q, want hangup", result.Terminal)
	}
}

func TestRouteConferenceEntry(t *testing.T) {
	router, actions, _ := newTestRouter()
	snap := NewSnapshot(nil, nil,
		[]models.ConferenceRoom{{ID: 5, Name: "allhands", Extension: "8005", Status: models.StatusActive}},
		nil, nil,
	)

	result, err := router.Route(context.Background(), "call-5", snap, models.ConferenceRoomRef(5), eventChan())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.Terminal != DecisionDial {
		t.Errorf("Terminal = %q, want dial", result.Terminal)
	}
	if !actions.has("join_conference") {
		t.Error("expected join_conference emission")
	}
}

func TestRouteRingGroupFirstAnswerWins(t *testing.T) {
	router, actions, _ := newTestRouter()
	snap := NewSnapshot(
		[]models.Extension{activeExt(10), activeExt(20)},
		[]models.RingGroup{{
			ID: 1, Name: "sales", Status: models.StatusActive,
			Strategy: models.StrategySimultaneous,
			Members: []models.RingGroupMember{
				{ExtensionID: 10, Priority: 1},
				{ExtensionID: 20, Priority: 2},
			},
			RingTimeoutSec: 15,
			RingTurns:      1,
			Fallback:       models.HangupRef(),
		}},
		nil, nil, nil,
	)
	events := eventChan(CallEvent{Kind: EventAnswer, ExtensionID: 20})

	result, err := router.Route(context.Background(), "call-6", snap, models.RingGroupRef(1), events)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.Terminal != DecisionDial || result.AnsweredBy != 20 {
		t.Fatalf("unexpected result: %+v", result)
	}
	// Ringing is cancelled on the losing target.
	if actions.count("cancel_dial") != 1 {
		t.Errorf("expected one cancel_dial, got %v", actions.calls)
	}
}

func TestRouteRingGroupCallerHangup(t *testing.T) {
	router, _, _ := newTestRouter()
	snap := NewSnapshot(
		[]models.Extension{activeExt(10)},
		[]models.RingGroup{{
			ID: 1, Name: "sales", Status: models.StatusActive,
			Strategy:       models.StrategySimultaneous,
			Members:        []models.RingGroupMember{{ExtensionID: 10, Priority: 1}},
			RingTimeoutSec: 15,
			RingTurns:      1,
			Fallback:       models.ForwardRef("+15550001111"),
		}},
		nil, nil, nil,
	)
	events := eventChan(CallEvent{Kind: EventHangup})

	result, err := router.Route(context.Background(), "call-7", snap, models.RingGroupRef(1), events)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.Terminal != DecisionHangup {
		t.Errorf("Terminal = %q, want hangup (fallback must not run after caller hangup)", result.Terminal)
	}
}

func TestRouteRingGroupExhaustedFollowsFallback(t *testing.T) {
	router, actions, _ := newTestRouter()
	snap := NewSnapshot(
		[]models.Extension{activeExt(10)},
		[]models.RingGroup{{
			ID: 1, Name: "sales", Status: models.StatusActive,
			Strategy:       models.StrategySequential,
			Members:        []models.RingGroupMember{{ExtensionID: 10, Priority: 1}},
			RingTimeoutSec: 1,
			RingTurns:      1,
			Fallback:       models.ForwardRef("+15550001111"),
		}},
		nil, nil, nil,
	)

	result, err := router.Route(context.Background(), "call-8", snap, models.RingGroupRef(1), eventChan())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.Terminal != DecisionForward {
		t.Errorf("Terminal = %q, want forward via fallback", result.Terminal)
	}
	if !actions.has("forward") {
		t.Error("expected forward emission")
	}
	if result.Hops != 1 {
		t.Errorf("Hops = %d, want 1", result.Hops)
	}
}

func TestRouteIVRDigitToExtension(t *testing.T) {
	router, actions, _ := newTestRouter()
	snap := NewSnapshot(
		[]models.Extension{activeExt(1)},
		nil, nil,
		[]models.IVRMenu{{
			ID: 1, Name: "main", Status: models.StatusActive,
			Prompt:               models.Prompt{Kind: models.PromptTTS, Value: "press 1"},
			MaxTurns:             3,
			InterDigitTimeoutSec: 5,
			Options:              []models.IVROption{{InputDigits: "1", Destination: models.ExtensionRef(1)}},
			Failover:             models.HangupRef(),
		}},
		nil,
	)
	events := eventChan(
		CallEvent{Kind: EventDigit, Digit: '1'},
		CallEvent{Kind: EventAnswer, ExtensionID: 1},
	)

	result, err := router.Route(context.Background(), "call-9", snap, models.IVRMenuRef(1), events)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.Terminal != DecisionDial || result.AnsweredBy != 1 {
		t.Fatalf("unexpected result: %+v", result)
	}
	if !actions.has("play_prompt") || !actions.has("dial") {
		t.Errorf("expected play_prompt then dial, got %v", actions.calls)
	}
}

func TestRouteIVRHangupDuringCollection(t *testing.T) {
	router, _, _ := newTestRouter()
	snap := NewSnapshot(
		[]models.Extension{activeExt(1)},
		nil, nil,
		[]models.IVRMenu{{
			ID: 1, Name: "main", Status: models.StatusActive,
			Prompt:               models.Prompt{Kind: models.PromptTTS, Value: "press 1"},
			MaxTurns:             3,
			InterDigitTimeoutSec: 5,
			Options:              []models.IVROption{{InputDigits: "1", Destination: models.ExtensionRef(1)}},
			Failover:             models.HangupRef(),
		}},
		nil,
	)
	events := eventChan(CallEvent{Kind: EventHangup})

	result, err := router.Route(context.Background(), "call-10", snap, models.IVRMenuRef(1), events)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.Terminal != DecisionHangup {
		t.Errorf("Terminal = %q, want hangup", result.Terminal)
	}
}

func TestRouteScheduleClosedAction(t *testing.T) {
	router, actions, _ := newTestRouter()
	sched := officeSchedule()
	snap := NewSnapshot(nil, nil, nil, nil, []models.BusinessHoursSchedule{*sched})

	// Sunday: closed, routes to the forward closed action.
	at := nyTime(t, 2024, time.December, 22, 12, 0)
	result, err := router.RouteSchedule(context.Background(), "call-11", snap, sched.ID, at, eventChan())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.Terminal != DecisionForward {
		t.Errorf("Terminal = %q, want forward closed action", result.Terminal)
	}
	if !actions.has("forward") {
		t.Error("expected forward emission")
	}
}

func TestRouteScheduleNotFound(t *testing.T) {
	router, actions, recorder := newTestRouter()
	snap := NewSnapshot(nil, nil, nil, nil, nil)

	result, err := router.RouteSchedule(context.Background(), "call-12", snap, 99, time.Now(), eventChan())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.Terminal != DecisionHangup {
		t.Errorf("Terminal = %q, want hangup", result.Terminal)
	}
	if !errors.Is(result.ResolveErr, ErrNotFound) {
		t.Errorf("ResolveErr = %v, want ErrNotFound", result.ResolveErr)
	}
	if !actions.has("hangup") {
		t.Error("expected hangup emission")
	}
	if got := recorder.last(t); got.ResolveError != "not_found" {
		t.Errorf("unexpected log entry: %+v", got)
	}
}

func TestRouteActiveCallsGauge(t *testing.T) {
	router, _, _ := newTestRouter()
	snap := NewSnapshot(nil, nil, nil, nil, nil)

	if got := router.ActiveCalls(); got != 0 {
		t.Fatalf("ActiveCalls = %d, want 0", got)
	}
	if _, err := router.Route(context.Background(), "call-13", snap, models.HangupRef(), eventChan()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got := router.ActiveCalls(); got != 0 {
		t.Errorf("ActiveCalls after route = %d, want 0", got)
	}
}
