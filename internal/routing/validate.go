package routing

import (
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"time"

	"github.com/callpath/callpath/internal/database/models"
)

// Numeric field bounds enforced at save time.
const (
	minRingTimeoutSec = 5
	maxRingTimeoutSec = 300
	maxRingTurns      = 9
	maxGroupMembers   = 50
	maxIvrTurns       = 9
	maxIvrOptions     = 20
	minutesPerDay     = 24 * 60
)

// validDTMF is the alphabet allowed in IVR option digit strings.
const validDTMF = "0123456789*#"

// ValidationSeverity indicates the severity of a validation issue.
type ValidationSeverity string

const (
	// SeverityError indicates a violation that must reject the save.
	SeverityError ValidationSeverity = "error"
	// SeverityWarning indicates a condition that will degrade at runtime.
	SeverityWarning ValidationSeverity = "warning"
)

// ValidationIssue describes a single problem found during validation.
type ValidationIssue struct {
	Severity ValidationSeverity `json:"severity"`
	Field    string             `json:"field,omitempty"`
	Message  string             `json:"message"`
}

// ValidationResult holds the outcome of validating one entity.
type ValidationResult struct {
	Valid  bool              `json:"valid"`
	Issues []ValidationIssue `json:"issues"`
}

func (r *ValidationResult) addError(field, format string, args ...any) {
	r.Valid = false
	r.Issues = append(r.Issues, ValidationIssue{
		Severity: SeverityError,
		Field:    field,
		Message:  fmt.Sprintf(format, args...),
	})
}

func (r *ValidationResult) addWarning(field, format string, args ...any) {
	r.Issues = append(r.Issues, ValidationIssue{
		Severity: SeverityWarning,
		Field:    field,
		Message:  fmt.Sprintf(format, args...),
	})
}

// Validator owns the canonical save-time invariants for routing
// configuration. Every entry point that produces configuration (API, batch
// import) must validate through it, so the runtime core only ever sees
// configurations that satisfied these rules when saved.
type Validator struct {
	snap     *Snapshot
	resolver *Resolver
}

// NewValidator creates a validator that checks destination references
// against the given snapshot.
func NewValidator(snap *Snapshot, logger *slog.Logger) *Validator {
	return &Validator{
		snap:     snap,
		resolver: NewResolver(snap, logger),
	}
}

// ValidateSchedule checks a business-hours schedule: total weekly coverage,
// well-formed non-overlapping ranges, unique sorted exception dates, and
// resolvable open/closed actions.
func (v *Validator) ValidateSchedule(s *models.BusinessHoursSchedule) *ValidationResult {
	result := &ValidationResult{Valid: true}

	if strings.TrimSpace(s.Name) == "" {
		result.addError("name", "name is required")
	}
	if s.Timezone != "" {
		if _, err := time.LoadLocation(s.Timezone); err != nil {
			result.addError("timezone", "unknown timezone %q", s.Timezone)
		}
	}

	for day := time.Sunday; day <= time.Saturday; day++ {
		v.validateRanges(fmt.Sprintf("weekly.%s", strings.ToLower(day.String())), s.Weekly[day].Ranges, result)
	}

	seen := make(map[string]bool, len(s.Exceptions))
	for i, exc := range s.Exceptions {
		field := fmt.Sprintf("exceptions[%d]", i)
		if _, err := time.Parse(civilDateFormat, exc.Date); err != nil {
			result.addError(field, "invalid date %q, want YYYY-MM-DD", exc.Date)
			continue
		}
		if seen[exc.Date] {
			result.addError(field, "duplicate exception for date %s", exc.Date)
		}
		seen[exc.Date] = true

		switch exc.Kind {
		case models.ExceptionClosed:
			if len(exc.Ranges) > 0 {
				result.addError(field, "closed exception must not carry time ranges")
			}
		case models.ExceptionSpecialHours:
			if len(exc.Ranges) == 0 {
				result.addError(field, "special_hours exception requires at least one time range")
			}
			v.validateRanges(field, exc.Ranges, result)
		default:
			result.addError(field, "unknown exception kind %q", exc.Kind)
		}
	}

	v.validateDestination("open_action", s.OpenAction, result)
	v.validateDestination("closed_action", s.ClosedAction, result)

	return result
}

// ValidateRingGroup checks member count and priorities, numeric bounds, the
// strategy, and the fallback reference.
func (v *Validator) ValidateRingGroup(g *models.RingGroup) *ValidationResult {
	result := &ValidationResult{Valid: true}

	if strings.TrimSpace(g.Name) == "" {
		result.addError("name", "name is required")
	}

	switch g.Strategy {
	case models.StrategySimultaneous, models.StrategyRoundRobin, models.StrategySequential:
	default:
		result.addError("strategy", "unknown strategy %q", g.Strategy)
	}

	if g.RingTimeoutSec < minRingTimeoutSec || g.RingTimeoutSec > maxRingTimeoutSec {
		result.addError("ring_timeout_sec", "must be between %d and %d, got %d",
			minRingTimeoutSec, maxRingTimeoutSec, g.RingTimeoutSec)
	}
	if g.RingTurns < 1 || g.RingTurns > maxRingTurns {
		result.addError("ring_turns", "must be between 1 and %d, got %d", maxRingTurns, g.RingTurns)
	}

	if len(g.Members) < 1 || len(g.Members) > maxGroupMembers {
		result.addError("members", "must have between 1 and %d members, got %d",
			maxGroupMembers, len(g.Members))
	}

	// Priorities must be unique and cover 1..N; extensions must be unique
	// and exist.
	prios := make(map[int]bool, len(g.Members))
	exts := make(map[int64]bool, len(g.Members))
	for i, m := range g.Members {
		field := fmt.Sprintf("members[%d]", i)
		if m.Priority < 1 || m.Priority > len(g.Members) {
			result.addError(field, "priority %d out of range 1..%d", m.Priority, len(g.Members))
		} else if prios[m.Priority] {
			result.addError(field, "duplicate priority %d", m.Priority)
		}
		prios[m.Priority] = true

		if exts[m.ExtensionID] {
			result.addError(field, "duplicate extension %d", m.ExtensionID)
		}
		exts[m.ExtensionID] = true

		ext, ok := v.snap.ExtensionByID(m.ExtensionID)
		if !ok {
			result.addError(field, "extension %d not found", m.ExtensionID)
		} else if ext.Status != models.StatusActive {
			result.addWarning(field, "extension %d is inactive", m.ExtensionID)
		}
	}

	v.validateDestination("fallback", g.Fallback, result)

	return result
}

// ValidateIVRMenu checks the prompt, numeric bounds, option digit strings
// (alphabet and prefix-freedom), and all destination references.
func (v *Validator) ValidateIVRMenu(m *models.IVRMenu) *ValidationResult {
	result := &ValidationResult{Valid: true}

	if strings.TrimSpace(m.Name) == "" {
		result.addError("name", "name is required")
	}

	switch m.Prompt.Kind {
	case models.PromptAudio, models.PromptTTS:
		if strings.TrimSpace(m.Prompt.Value) == "" {
			result.addError("prompt", "prompt value is required")
		}
	default:
		result.addError("prompt", "unknown prompt kind %q", m.Prompt.Kind)
	}

	if m.MaxTurns < 1 || m.MaxTurns > maxIvrTurns {
		result.addError("max_turns", "must be between 1 and %d, got %d", maxIvrTurns, m.MaxTurns)
	}
	if m.InterDigitTimeoutSec < 1 {
		result.addError("inter_digit_timeout_sec", "must be at least 1, got %d", m.InterDigitTimeoutSec)
	}
	if len(m.Options) > maxIvrOptions {
		result.addError("options", "at most %d options allowed, got %d", maxIvrOptions, len(m.Options))
	}

	seen := make(map[string]bool, len(m.Options))
	for i, opt := range m.Options {
		field := fmt.Sprintf("options[%d]", i)
		if opt.InputDigits == "" {
			result.addError(field, "input digits are required")
			continue
		}
		for _, c := range opt.InputDigits {
			if !strings.ContainsRune(validDTMF, c) {
				result.addError(field, "invalid digit %q in %q", c, opt.InputDigits)
				break
			}
		}
		if seen[opt.InputDigits] {
			result.addError(field, "duplicate input digits %q", opt.InputDigits)
		}
		seen[opt.InputDigits] = true

		v.validateDestination(field+".destination", opt.Destination, result)
	}

	// Prefix-freedom: no option's digits may be a strict prefix of
	// another's, so greedy matching is unambiguous.
	for i, a := range m.Options {
		for j, b := range m.Options {
			if i == j || a.InputDigits == b.InputDigits {
				continue
			}
			if strings.HasPrefix(b.InputDigits, a.InputDigits) {
				result.addError(fmt.Sprintf("options[%d]", i),
					"input digits %q are a prefix of %q", a.InputDigits, b.InputDigits)
			}
		}
	}

	v.validateDestination("failover", m.Failover, result)

	return result
}

// validateRanges checks that every range is within the day, strictly
// forward (start < end, so overnight ranges are rejected), and that the set
// is pairwise non-overlapping.
func (v *Validator) validateRanges(field string, ranges []models.TimeRange, result *ValidationResult) {
	for i, r := range ranges {
		f := fmt.Sprintf("%s.ranges[%d]", field, i)
		if r.Start < 0 || r.Start >= minutesPerDay {
			result.addError(f, "start %d out of range 0..%d", r.Start, minutesPerDay-1)
		}
		if r.End < 1 || r.End > minutesPerDay {
			result.addError(f, "end %d out of range 1..%d", r.End, minutesPerDay)
		}
		if r.Start >= r.End {
			result.addError(f, "start %d must be before end %d (overnight ranges are not supported)", r.Start, r.End)
		}
	}

	// Overlap check on a sorted copy; adjacent ranges sharing a boundary
	// minute do not overlap because ranges are half-open.
	sorted := make([]models.TimeRange, len(ranges))
	copy(sorted, ranges)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Start < sorted[j].Start })
	for i := 1; i < len(sorted); i++ {
		if sorted[i].Start < sorted[i-1].End {
			result.addError(field, "ranges %d:%d and %d:%d overlap",
				sorted[i-1].Start, sorted[i-1].End, sorted[i].Start, sorted[i].End)
		}
	}
}

// validateDestination checks that a reference is present, well-formed, and
// resolvable: dangling references and cycles are save-time errors, inactive
// targets a warning (the runtime degrades gracefully if they stay inactive).
func (v *Validator) validateDestination(field string, ref models.DestinationRef, result *ValidationResult) {
	if ref.IsZero() {
		result.addError(field, "destination is required")
		return
	}

	switch ref.Kind {
	case models.DestExtension, models.DestRingGroup, models.DestConferenceRoom, models.DestIVRMenu:
		if ref.ID <= 0 {
			result.addError(field, "destination id is required for kind %q", ref.Kind)
			return
		}
	case models.DestForward:
		if !validE164(ref.Number) {
			result.addError(field, "invalid forward number %q", ref.Number)
			return
		}
	case models.DestHangup:
		return
	default:
		result.addError(field, "unknown destination kind %q", ref.Kind)
		return
	}

	if _, err := v.resolver.Resolve(ref); err != nil {
		switch ResolveErrorReason(err) {
		case "cycle_detected":
			result.addError(field, "destination chain contains a cycle: %v", err)
		case "depth_exceeded":
			result.addError(field, "destination chain too deep: %v", err)
		case "not_found":
			result.addError(field, "destination does not exist: %v", err)
		case "inactive":
			result.addWarning(field, "destination is inactive: %v", err)
		default:
			result.addError(field, "destination failed to resolve: %v", err)
		}
	}
}

// validE164 performs a light E.164 shape check: optional leading +, then
// 2..15 digits.
func validE164(number string) bool {
	n := strings.TrimPrefix(number, "+")
	if len(n) < 2 || len(n) > 15 {
		return false
	}
	for _, c := range n {
		if c < '0' || c > '9' {
			return false
		}
	}
	return true
}
