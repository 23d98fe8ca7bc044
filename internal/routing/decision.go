package routing

import "github.com/callpath/callpath/internal/database/models"

// DecisionKind discriminates a RoutingDecision.
type DecisionKind string

const (
	DecisionDial              DecisionKind = "dial"
	DecisionPlayPromptCollect DecisionKind = "play_prompt_then_collect"
	DecisionForward           DecisionKind = "forward"
	DecisionHangup            DecisionKind = "hangup"
)

// RoutingDecision is the output of the decision core, emitted to the
// call-control layer. It carries only what that layer needs to execute the
// decision; the wire encoding is owned by call control, not by this core.
//
// Fields are populated per kind: dial uses Extensions (or ConferenceRoomID
// for a conference dial) and TimeoutSec; play_prompt_then_collect uses
// Prompt, MaxDigits, and InterDigitTimeoutSec; forward uses Number.
type RoutingDecision struct {
	Kind                 DecisionKind   `json:"kind"`
	Extensions           []int64        `json:"extensions,omitempty"`
	ConferenceRoomID     int64          `json:"conference_room_id,omitempty"`
	TimeoutSec           int            `json:"timeout_sec,omitempty"`
	Prompt               *models.Prompt `json:"prompt,omitempty"`
	MaxDigits            int            `json:"max_digits,omitempty"`
	InterDigitTimeoutSec int            `json:"inter_digit_timeout_sec,omitempty"`
	Number               string         `json:"number,omitempty"`
}

// DialDecision returns a decision to ring the given extensions for
// timeoutSec seconds.
func DialDecision(extensions []int64, timeoutSec int) RoutingDecision {
	return RoutingDecision{Kind: DecisionDial, Extensions: extensions, TimeoutSec: timeoutSec}
}

// ConferenceDecision returns a decision to place the call into a conference room.
func ConferenceDecision(roomID int64) RoutingDecision {
	return RoutingDecision{Kind: DecisionDial, ConferenceRoomID: roomID}
}

// PromptDecision returns a decision to play a prompt and collect digits.
func PromptDecision(prompt models.Prompt, maxDigits, interDigitTimeoutSec int) RoutingDecision {
	p := prompt
	return RoutingDecision{
		Kind:                 DecisionPlayPromptCollect,
		Prompt:               &p,
		MaxDigits:            maxDigits,
		InterDigitTimeoutSec: interDigitTimeoutSec,
	}
}

// ForwardDecision returns a decision to forward the call to an external number.
func ForwardDecision(number string) RoutingDecision {
	return RoutingDecision{Kind: DecisionForward, Number: number}
}

// HangupDecision returns a decision to terminate the call.
func HangupDecision() RoutingDecision {
	return RoutingDecision{Kind: DecisionHangup}
}
