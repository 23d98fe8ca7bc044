package routing

import (
	"context"
	"log/slog"

	"github.com/callpath/callpath/internal/database/models"
)

// LogActions is a CallActions implementation that only logs emissions. It
// stands in when no signaling layer is attached, so the router stays fully
// wired in dry-run deployments and tests.
type LogActions struct {
	logger *slog.Logger
}

var _ CallActions = (*LogActions)(nil)

// NewLogActions creates a log-only call action sink.
func NewLogActions(logger *slog.Logger) *LogActions {
	return &LogActions{logger: logger.With("subsystem", "call_actions")}
}

func (a *LogActions) Dial(ctx context.Context, callID string, targets []DialTarget) error {
	a.logger.Info("dial", "call_id", callID, "targets", len(targets))
	return nil
}

func (a *LogActions) CancelDial(ctx context.Context, callID string) error {
	a.logger.Info("cancel dial", "call_id", callID)
	return nil
}

func (a *LogActions) PlayPrompt(ctx context.Context, callID string, prompt models.Prompt, maxDigits, interDigitTimeoutSec int) error {
	a.logger.Info("play prompt",
		"call_id", callID,
		"prompt_kind", prompt.Kind,
		"max_digits", maxDigits,
		"inter_digit_timeout_sec", interDigitTimeoutSec,
	)
	return nil
}

func (a *LogActions) JoinConference(ctx context.Context, callID string, roomID int64) error {
	a.logger.Info("join conference", "call_id", callID, "room_id", roomID)
	return nil
}

func (a *LogActions) Forward(ctx context.Context, callID string, number string) error {
	a.logger.Info("forward", "call_id", callID, "number", number)
	return nil
}

func (a *LogActions) Hangup(ctx context.Context, callID string) error {
	a.logger.Info("hangup", "call_id", callID)
	return nil
}
