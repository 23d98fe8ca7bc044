package models

import "time"

// EntityStatus is the lifecycle state of a configurable routing entity.
type EntityStatus string

const (
	StatusActive   EntityStatus = "active"
	StatusInactive EntityStatus = "inactive"
)

// Extension represents a PBX extension/user that can be dialed directly.
type Extension struct {
	ID        int64        `json:"id"`
	Extension string       `json:"extension"`
	Name      string       `json:"name"`
	Email     string       `json:"email,omitempty"`
	Status    EntityStatus `json:"status"`
	CreatedAt time.Time    `json:"created_at"`
	UpdatedAt time.Time    `json:"updated_at"`
}

// ConferenceRoom represents a conference room destination.
type ConferenceRoom struct {
	ID         int64        `json:"id"`
	Name       string       `json:"name"`
	Extension  string       `json:"extension"`
	PIN        string       `json:"pin,omitempty"`
	MaxMembers int          `json:"max_members"`
	Status     EntityStatus `json:"status"`
	CreatedAt  time.Time    `json:"created_at"`
}

// TimeRange is a half-open [Start, End) interval of minutes since midnight.
// Start must be strictly less than End; overnight ranges are rejected at
// validation time.
type TimeRange struct {
	Start int `json:"start"`
	End   int `json:"end"`
}

// Contains reports whether the given minute-of-day falls within the range.
func (r TimeRange) Contains(minute int) bool {
	return minute >= r.Start && minute < r.End
}

// DaySchedule holds the open ranges for a single day of the week.
// When Enabled is false the ranges are ignored at evaluation time but
// remain stored for the operator.
type DaySchedule struct {
	Enabled bool        `json:"enabled"`
	Ranges  []TimeRange `json:"ranges"`
}

// WeeklySchedule holds exactly one DaySchedule per day of week, indexed by
// time.Weekday (Sunday = 0). No day may be absent.
type WeeklySchedule [7]DaySchedule

// ExceptionKind discriminates calendar exception behavior.
type ExceptionKind string

const (
	// ExceptionClosed marks the whole date as closed.
	ExceptionClosed ExceptionKind = "closed"
	// ExceptionSpecialHours replaces the weekly ranges for the date.
	ExceptionSpecialHours ExceptionKind = "special_hours"
)

// ExceptionDate overrides the weekly pattern for a single calendar date.
// Date is a civil date with no time or timezone component ("2006-01-02").
// Ranges is present iff Kind is ExceptionSpecialHours.
type ExceptionDate struct {
	Date   string        `json:"date"`
	Name   string        `json:"name"`
	Kind   ExceptionKind `json:"kind"`
	Ranges []TimeRange   `json:"ranges,omitempty"`
}

// BusinessHoursSchedule is an operator-defined open/closed schedule with
// weekly patterns, calendar exceptions, and the destinations to route to in
// either state. Read-only to the decision core.
type BusinessHoursSchedule struct {
	ID           int64           `json:"id"`
	Name         string          `json:"name"`
	Status       EntityStatus    `json:"status"`
	Timezone     string          `json:"timezone"`
	Weekly       WeeklySchedule  `json:"weekly"`
	Exceptions   []ExceptionDate `json:"exceptions"` // kept sorted by date
	OpenAction   DestinationRef  `json:"open_action"`
	ClosedAction DestinationRef  `json:"closed_action"`
	CreatedAt    time.Time       `json:"created_at"`
	UpdatedAt    time.Time       `json:"updated_at"`
}

// RingStrategy selects how ring group members are dialed.
type RingStrategy string

const (
	StrategySimultaneous RingStrategy = "simultaneous"
	StrategyRoundRobin   RingStrategy = "round_robin"
	StrategySequential   RingStrategy = "sequential"
)

// RingGroupMember is one extension in a ring group with its dial priority.
// Priorities are unique within a group and run 1..N.
type RingGroupMember struct {
	ExtensionID int64 `json:"extension_id"`
	Priority    int   `json:"priority"`
}

// RingGroup is a set of extensions rung together or in sequence for one
// logical destination.
type RingGroup struct {
	ID             int64             `json:"id"`
	Name           string            `json:"name"`
	Status         EntityStatus      `json:"status"`
	Strategy       RingStrategy      `json:"strategy"`
	Members        []RingGroupMember `json:"members"`
	RingTimeoutSec int               `json:"ring_timeout_sec"`
	RingTurns      int               `json:"ring_turns"`
	Fallback       DestinationRef    `json:"fallback"`
	CreatedAt      time.Time         `json:"created_at"`
	UpdatedAt      time.Time         `json:"updated_at"`
}

// PromptKind discriminates how an IVR prompt is rendered.
type PromptKind string

const (
	PromptAudio PromptKind = "audio"
	PromptTTS   PromptKind = "tts"
)

// Prompt is an IVR greeting, either an audio file reference or TTS text.
type Prompt struct {
	Kind  PromptKind `json:"kind"`
	Value string     `json:"value"`
}

// IVROption maps a DTMF digit string to a destination. The set of digit
// strings across one menu must be prefix-free.
type IVROption struct {
	InputDigits string         `json:"input_digits"`
	Destination DestinationRef `json:"destination"`
}

// IVRMenu is an interactive menu that plays a prompt, collects digits, and
// routes on the matched option or the failover destination.
type IVRMenu struct {
	ID                   int64          `json:"id"`
	Name                 string         `json:"name"`
	Status               EntityStatus   `json:"status"`
	Prompt               Prompt         `json:"prompt"`
	MaxTurns             int            `json:"max_turns"`
	InterDigitTimeoutSec int            `json:"inter_digit_timeout_sec"`
	Options              []IVROption    `json:"options"`
	Failover             DestinationRef `json:"failover"`
	CreatedAt            time.Time      `json:"created_at"`
	UpdatedAt            time.Time      `json:"updated_at"`
}

// RoutingLogEntry records one routing attempt for operator visibility.
type RoutingLogEntry struct {
	ID           int64          `json:"id"`
	CallID       string         `json:"call_id"`
	Entry        DestinationRef `json:"entry"`
	DecisionKind string         `json:"decision_kind"`
	ResolveError string         `json:"resolve_error,omitempty"`
	CreatedAt    time.Time      `json:"created_at"`
}
