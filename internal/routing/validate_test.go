package routing

import (
	"strings"
	"testing"
	"time"

	"github.com/callpath/callpath/internal/database/models"
)

func validatorFixture() *Validator {
	snap := NewSnapshot(
		[]models.Extension{activeExt(1), activeExt(2), inactiveExt(9)},
		[]models.RingGroup{
			{
				ID: 1, Name: "support", Status: models.StatusActive,
				Strategy:       models.StrategySimultaneous,
				Members:        []models.RingGroupMember{{ExtensionID: 1, Priority: 1}},
				RingTimeoutSec: 15,
				RingTurns:      1,
				Fallback:       models.RingGroupRef(2),
			},
			{
				ID: 2, Name: "overflow", Status: models.StatusActive,
				Strategy:       models.StrategySimultaneous,
				Members:        []models.RingGroupMember{{ExtensionID: 2, Priority: 1}},
				RingTimeoutSec: 15,
				RingTurns:      1,
				Fallback:       models.RingGroupRef(1),
			},
		},
		nil, nil, nil,
	)
	return NewValidator(snap, testLogger())
}

func hasIssue(result *ValidationResult, severity ValidationSeverity, substr string) bool {
	for _, issue := range result.Issues {
		if issue.Severity == severity && strings.Contains(issue.Message, substr) {
			return true
		}
	}
	return false
}

func validSchedule() *models.BusinessHoursSchedule {
	s := &models.BusinessHoursSchedule{
		Name:         "office",
		Status:       models.StatusActive,
		Timezone:     "America/New_York",
		OpenAction:   models.ExtensionRef(1),
		ClosedAction: models.HangupRef(),
	}
	s.Weekly[time.Monday] = models.DaySchedule{
		Enabled: true,
		Ranges:  []models.TimeRange{{Start: 540, End: 1020}},
	}
	return s
}

func TestValidateScheduleAccepts(t *testing.T) {
	v := validatorFixture()
	result := v.ValidateSchedule(validSchedule())
	if !result.Valid {
		t.Fatalf("expected valid, got issues: %+v", result.Issues)
	}
}

func TestValidateScheduleRejects(t *testing.T) {
	v := validatorFixture()

	tests := []struct {
		name    string
		mutate  func(s *models.BusinessHoursSchedule)
		message string
	}{
		{
			"empty name",
			func(s *models.BusinessHoursSchedule) { s.Name = " " },
			"name is required",
		},
		{
			"unknown timezone",
			func(s *models.BusinessHoursSchedule) { s.Timezone = "Mars/Olympus_Mons" },
			"unknown timezone",
		},
		{
			"overnight range",
			func(s *models.BusinessHoursSchedule) {
				s.Weekly[time.Monday].Ranges[0] = models.TimeRange{Start: 1320, End: 120}
			},
			"overnight ranges are not supported",
		},
		{
			"overlapping ranges",
			func(s *models.BusinessHoursSchedule) {
				s.Weekly[time.Monday].Ranges = []models.TimeRange{
					{Start: 540, End: 720},
					{Start: 700, End: 1020},
				}
			},
			"overlap",
		},
		{
			"range past end of day",
			func(s *models.BusinessHoursSchedule) {
				s.Weekly[time.Monday].Ranges[0].End = 1441
			},
			"out of range",
		},
		{
			"malformed exception date",
			func(s *models.BusinessHoursSchedule) {
				s.Exceptions = []models.ExceptionDate{{Date: "Dec 25", Kind: models.ExceptionClosed}}
			},
			"invalid date",
		},
		{
			"duplicate exception dates",
			func(s *models.BusinessHoursSchedule) {
				s.Exceptions = []models.ExceptionDate{
					{Date: "2026-12-25", Kind: models.ExceptionClosed},
					{Date: "2026-12-25", Kind: models.ExceptionClosed},
				}
			},
			"duplicate exception",
		},
		{
			"closed exception with ranges",
			func(s *models.BusinessHoursSchedule) {
				s.Exceptions = []models.ExceptionDate{{
					Date: "2026-12-25", Kind: models.ExceptionClosed,
					Ranges: []models.TimeRange{{Start: 540, End: 720}},
				}}
			},
			"must not carry time ranges",
		},
		{
			"special hours without ranges",
			func(s *models.BusinessHoursSchedule) {
				s.Exceptions = []models.ExceptionDate{{Date: "2026-12-31", Kind: models.ExceptionSpecialHours}}
			},
			"requires at least one time range",
		},
		{
			"dangling open action",
			func(s *models.BusinessHoursSchedule) { s.OpenAction = models.ExtensionRef(404) },
			"does not exist",
		},
		{
			"unset closed action",
			func(s *models.BusinessHoursSchedule) { s.ClosedAction = models.DestinationRef{} },
			"destination is required",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := validSchedule()
			tt.mutate(s)
			result := v.ValidateSchedule(s)
			if result.Valid {
				t.Fatal("expected invalid")
			}
			if !hasIssue(result, SeverityError, tt.message) {
				t.Errorf("missing error containing %q, got %+v", tt.message, result.Issues)
			}
		})
	}
}

func TestValidateScheduleAdjacentRangesShareBoundary(t *testing.T) {
	v := validatorFixture()
	s := validSchedule()
	// [09:00,12:00) and [12:00,17:00) touch but do not overlap.
	s.Weekly[time.Monday].Ranges = []models.TimeRange{
		{Start: 540, End: 720},
		{Start: 720, End: 1020},
	}
	if result := v.ValidateSchedule(s); !result.Valid {
		t.Errorf("adjacent ranges must be accepted, got %+v", result.Issues)
	}
}

func validGroup() *models.RingGroup {
	return &models.RingGroup{
		Name:     "sales",
		Status:   models.StatusActive,
		Strategy: models.StrategyRoundRobin,
		Members: []models.RingGroupMember{
			{ExtensionID: 1, Priority: 1},
			{ExtensionID: 2, Priority: 2},
		},
		RingTimeoutSec: 20,
		RingTurns:      2,
		Fallback:       models.HangupRef(),
	}
}

func TestValidateRingGroupAccepts(t *testing.T) {
	v := validatorFixture()
	if result := v.ValidateRingGroup(validGroup()); !result.Valid {
		t.Fatalf("expected valid, got issues: %+v", result.Issues)
	}
}

func TestValidateRingGroupRejects(t *testing.T) {
	v := validatorFixture()

	tests := []struct {
		name    string
		mutate  func(g *models.RingGroup)
		message string
	}{
		{
			"unknown strategy",
			func(g *models.RingGroup) { g.Strategy = "longest_idle" },
			"unknown strategy",
		},
		{
			"timeout below minimum",
			func(g *models.RingGroup) { g.RingTimeoutSec = 2 },
			"must be between 5 and 300",
		},
		{
			"zero turns",
			func(g *models.RingGroup) { g.RingTurns = 0 },
			"must be between 1 and",
		},
		{
			"no members",
			func(g *models.RingGroup) { g.Members = nil },
			"between 1 and",
		},
		{
			"priority out of range",
			func(g *models.RingGroup) { g.Members[1].Priority = 5 },
			"priority 5 out of range",
		},
		{
			"duplicate priority",
			func(g *models.RingGroup) { g.Members[1].Priority = 1 },
			"duplicate priority",
		},
		{
			"duplicate extension",
			func(g *models.RingGroup) { g.Members[1].ExtensionID = 1 },
			"duplicate extension",
		},
		{
			"missing extension",
			func(g *models.RingGroup) { g.Members[1].ExtensionID = 404 },
			"extension 404 not found",
		},
		{
			"dangling fallback",
			func(g *models.RingGroup) { g.Fallback = models.IVRMenuRef(404) },
			"does not exist",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			g := validGroup()
			tt.mutate(g)
			result := v.ValidateRingGroup(g)
			if result.Valid {
				t.Fatal("expected invalid")
			}
			if !hasIssue(result, SeverityError, tt.message) {
				t.Errorf("missing error containing %q, got %+v", tt.message, result.Issues)
			}
		})
	}
}

func TestValidateRingGroupInactiveMemberWarns(t *testing.T) {
	v := validatorFixture()
	g := validGroup()
	g.Members[1].ExtensionID = 9

	result := v.ValidateRingGroup(g)
	if !result.Valid {
		t.Fatalf("inactive member must not reject the save, got %+v", result.Issues)
	}
	if !hasIssue(result, SeverityWarning, "inactive") {
		t.Errorf("missing inactive warning, got %+v", result.Issues)
	}
}

func TestValidateRingGroupFallbackCycle(t *testing.T) {
	v := validatorFixture()
	g := validGroup()
	// Group 1's fallback chain reaches group 2, whose fallback points back at
	// group 1.
	g.Fallback = models.RingGroupRef(1)

	result := v.ValidateRingGroup(g)
	if result.Valid {
		t.Fatal("expected cycle to reject the save")
	}
	if !hasIssue(result, SeverityError, "cycle") {
		t.Errorf("missing cycle error, got %+v", result.Issues)
	}
}

func validMenu() *models.IVRMenu {
	return &models.IVRMenu{
		Name:                 "main",
		Status:               models.StatusActive,
		Prompt:               models.Prompt{Kind: models.PromptTTS, Value: "welcome"},
		MaxTurns:             3,
		InterDigitTimeoutSec: 5,
		Options: []models.IVROption{
			{InputDigits: "1", Destination: models.ExtensionRef(1)},
			{InputDigits: "2", Destination: models.ExtensionRef(2)},
		},
		Failover: models.HangupRef(),
	}
}

func TestValidateIVRMenuAccepts(t *testing.T) {
	v := validatorFixture()
	if result := v.ValidateIVRMenu(validMenu()); !result.Valid {
		t.Fatalf("expected valid, got issues: %+v", result.Issues)
	}
}

func TestValidateIVRMenuRejects(t *testing.T) {
	v := validatorFixture()

	tests := []struct {
		name    string
		mutate  func(m *models.IVRMenu)
		message string
	}{
		{
			"empty prompt value",
			func(m *models.IVRMenu) { m.Prompt.Value = "" },
			"prompt value is required",
		},
		{
			"unknown prompt kind",
			func(m *models.IVRMenu) { m.Prompt.Kind = "video" },
			"unknown prompt kind",
		},
		{
			"zero max turns",
			func(m *models.IVRMenu) { m.MaxTurns = 0 },
			"must be between 1 and",
		},
		{
			"zero inter-digit timeout",
			func(m *models.IVRMenu) { m.InterDigitTimeoutSec = 0 },
			"must be at least 1",
		},
		{
			"empty input digits",
			func(m *models.IVRMenu) { m.Options[0].InputDigits = "" },
			"input digits are required",
		},
		{
			"invalid digit character",
			func(m *models.IVRMenu) { m.Options[0].InputDigits = "1a" },
			"invalid digit",
		},
		{
			"duplicate input digits",
			func(m *models.IVRMenu) { m.Options[1].InputDigits = "1" },
			"duplicate input digits",
		},
		{
			"prefix violation",
			func(m *models.IVRMenu) { m.Options[1].InputDigits = "12" },
			"prefix",
		},
		{
			"dangling option destination",
			func(m *models.IVRMenu) { m.Options[0].Destination = models.ConferenceRoomRef(404) },
			"does not exist",
		},
		{
			"dangling failover",
			func(m *models.IVRMenu) { m.Failover = models.ExtensionRef(404) },
			"does not exist",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := validMenu()
			tt.mutate(m)
			result := v.ValidateIVRMenu(m)
			if result.Valid {
				t.Fatal("expected invalid")
			}
			if !hasIssue(result, SeverityError, tt.message) {
				t.Errorf("missing error containing %q, got %+v", tt.message, result.Issues)
			}
		})
	}
}

func TestValidateIVRMenuStarAndPoundDigits(t *testing.T) {
	v := validatorFixture()
	m := validMenu()
	m.Options = append(m.Options,
		models.IVROption{InputDigits: "*", Destination: models.ExtensionRef(1)},
		models.IVROption{InputDigits: "#9", Destination: models.ExtensionRef(2)},
	)
	if result := v.ValidateIVRMenu(m); !result.Valid {
		t.Errorf("* and # are part of the DTMF alphabet, got %+v", result.Issues)
	}
}

func TestValidateIVRMenuInactiveDestinationWarns(t *testing.T) {
	v := validatorFixture()
	m := validMenu()
	m.Options[0].Destination = models.ExtensionRef(9)

	result := v.ValidateIVRMenu(m)
	if !result.Valid {
		t.Fatalf("inactive destination must not reject the save, got %+v", result.Issues)
	}
	if !hasIssue(result, SeverityWarning, "inactive") {
		t.Errorf("missing inactive warning, got %+v", result.Issues)
	}
}

func TestValidE164(t *testing.T) {
	tests := []struct {
		number string
		want   bool
	}{
		{"+15550001111", true},
		{"15550001111", true},
		{"+44", true},
		{"+1", false},
		{"", false},
		{"+1555000111122345", false},
		{"+1555-000", false},
	}
	for _, tt := range tests {
		if got := validE164(tt.number); got != tt.want {
			t.Errorf("validE164(%q) = %v, want %v", tt.number, got, tt.want)
		}
	}
}
