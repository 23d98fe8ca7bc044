package routing

import (
	"log/slog"
	"sort"
	"time"

	"github.com/callpath/callpath/internal/database/models"
)

// civilDateFormat is the layout for exception dates (no time, no zone).
const civilDateFormat = "2006-01-02"

// Evaluation is the result of evaluating a schedule at an instant.
type Evaluation struct {
	IsOpen bool
	Action models.DestinationRef
}

// ScheduleEvaluator decides open/closed for business-hours schedules.
// It is pure over the schedule value and safe for concurrent use.
type ScheduleEvaluator struct {
	logger *slog.Logger
}

// NewScheduleEvaluator creates a schedule evaluator.
func NewScheduleEvaluator(logger *slog.Logger) *ScheduleEvaluator {
	return &ScheduleEvaluator{logger: logger.With("subsystem", "schedule")}
}

// Evaluate converts the instant to a local date and minute-of-day in loc,
// applies calendar exceptions first and the weekly pattern otherwise, and
// returns the open/closed state with the matching action. It is total: every
// valid schedule and instant yields exactly one result, never an error.
//
// An inactive schedule evaluates as always-closed so callers need not check
// status first. All ranges are half-open [start, end). A day that is
// disabled, or enabled with zero ranges, is closed for the whole day.
func (e *ScheduleEvaluator) Evaluate(s *models.BusinessHoursSchedule, at time.Time, loc *time.Location) Evaluation {
	if loc == nil {
		loc = time.UTC
	}
	if s.Status != models.StatusActive {
		return Evaluation{IsOpen: false, Action: s.ClosedAction}
	}

	local := at.In(loc)
	date := local.Format(civilDateFormat)
	minute := local.Hour()*60 + local.Minute()

	// Exceptions are kept sorted by date; binary search for an exact match.
	i := sort.Search(len(s.Exceptions), func(i int) bool {
		return s.Exceptions[i].Date >= date
	})
	if i < len(s.Exceptions) && s.Exceptions[i].Date == date {
		exc := s.Exceptions[i]
		switch exc.Kind {
		case models.ExceptionClosed:
			e.logger.Debug("schedule exception closed",
				"schedule_id", s.ID,
				"date", date,
				"exception", exc.Name,
			)
			return Evaluation{IsOpen: false, Action: s.ClosedAction}
		case models.ExceptionSpecialHours:
			open := anyRangeContains(exc.Ranges, minute)
			e.logger.Debug("schedule exception special hours",
				"schedule_id", s.ID,
				"date", date,
				"exception", exc.Name,
				"open", open,
			)
			return e.result(s, open)
		}
	}

	day := s.Weekly[local.Weekday()]
	if !day.Enabled {
		return Evaluation{IsOpen: false, Action: s.ClosedAction}
	}
	return e.result(s, anyRangeContains(day.Ranges, minute))
}

// EvaluateAt evaluates the schedule in its own configured timezone, falling
// back to UTC if the timezone name does not load.
func (e *ScheduleEvaluator) EvaluateAt(s *models.BusinessHoursSchedule, at time.Time) Evaluation {
	loc, err := time.LoadLocation(s.Timezone)
	if err != nil {
		e.logger.Warn("schedule has invalid timezone, using UTC",
			"schedule_id", s.ID,
			"timezone", s.Timezone,
		)
		loc = time.UTC
	}
	return e.Evaluate(s, at, loc)
}

func (e *ScheduleEvaluator) result(s *models.BusinessHoursSchedule, open bool) Evaluation {
	if open {
		return Evaluation{IsOpen: true, Action: s.OpenAction}
	}
	return Evaluation{IsOpen: false, Action: s.ClosedAction}
}

func anyRangeContains(ranges []models.TimeRange, minute int) bool {
	for _, r := range ranges {
		if r.Contains(minute) {
			return true
		}
	}
	return false
}
