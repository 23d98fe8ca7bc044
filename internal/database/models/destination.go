package models

import "fmt"

// DestinationKind discriminates the DestinationRef variant.
type DestinationKind string

const (
	DestExtension      DestinationKind = "extension"
	DestRingGroup      DestinationKind = "ring_group"
	DestConferenceRoom DestinationKind = "conference_room"
	DestIVRMenu        DestinationKind = "ivr_menu"
	DestForward        DestinationKind = "forward"
	DestHangup         DestinationKind = "hangup"
)

// DestinationRef is an opaque pointer to the next routing target. It is a
// closed tagged variant: ID is meaningful for entity kinds (extension,
// ring_group, conference_room, ivr_menu) and Number carries the E.164
// number for forward. Hangup carries nothing. Values are immutable and
// owned by whichever entity holds them.
type DestinationRef struct {
	Kind   DestinationKind `json:"kind"`
	ID     int64           `json:"id,omitempty"`
	Number string          `json:"number,omitempty"`
}

// ExtensionRef returns a reference to an extension.
func ExtensionRef(id int64) DestinationRef {
	return DestinationRef{Kind: DestExtension, ID: id}
}

// RingGroupRef returns a reference to a ring group.
func RingGroupRef(id int64) DestinationRef {
	return DestinationRef{Kind: DestRingGroup, ID: id}
}

// ConferenceRoomRef returns a reference to a conference room.
func ConferenceRoomRef(id int64) DestinationRef {
	return DestinationRef{Kind: DestConferenceRoom, ID: id}
}

// IVRMenuRef returns a reference to an IVR menu.
func IVRMenuRef(id int64) DestinationRef {
	return DestinationRef{Kind: DestIVRMenu, ID: id}
}

// ForwardRef returns a reference that forwards to an external number.
func ForwardRef(number string) DestinationRef {
	return DestinationRef{Kind: DestForward, Number: number}
}

// HangupRef returns a reference that terminates the call.
func HangupRef() DestinationRef {
	return DestinationRef{Kind: DestHangup}
}

// IsZero reports whether the reference is unset.
func (r DestinationRef) IsZero() bool {
	return r.Kind == ""
}

// IsTerminal reports whether the reference resolves without recursion.
func (r DestinationRef) IsTerminal() bool {
	return r.Kind == DestHangup || r.Kind == DestForward
}

// Key returns a stable identity string for cycle detection. Entity kinds
// key on kind+id; forward keys on the number; hangup keys on the kind alone.
func (r DestinationRef) Key() string {
	switch r.Kind {
	case DestExtension, DestRingGroup, DestConferenceRoom, DestIVRMenu:
		return fmt.Sprintf("%s:%d", r.Kind, r.ID)
	case DestForward:
		return fmt.Sprintf("%s:%s", r.Kind, r.Number)
	default:
		return string(r.Kind)
	}
}

// String implements fmt.Stringer for log output.
func (r DestinationRef) String() string {
	return r.Key()
}
