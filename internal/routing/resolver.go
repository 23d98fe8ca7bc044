package routing

import (
	"errors"
	"fmt"
	"log/slog"

	"github.com/callpath/callpath/internal/database/models"
)

// ErrNotFound is returned when a destination references a missing entity.
var ErrNotFound = errors.New("destination not found")

// ErrInactive is returned when a destination references an inactive entity.
var ErrInactive = errors.New("destination inactive")

// ErrCycleDetected is returned when destination references form a cycle.
var ErrCycleDetected = errors.New("destination cycle detected")

// ErrDepthExceeded is returned when resolution exceeds maxResolveDepth hops.
var ErrDepthExceeded = errors.New("destination depth exceeded")

// maxResolveDepth bounds transitive resolution through ring group fallbacks
// and IVR failovers. Valid configurations never come close; the bound exists
// so a bad snapshot cannot recurse unboundedly.
const maxResolveDepth = 10

// ActionKind discriminates a ResolvedAction.
type ActionKind string

const (
	ActionDialExtension  ActionKind = "dial_extension"
	ActionDialConference ActionKind = "dial_conference"
	ActionRingGroup      ActionKind = "ring_group"
	ActionIVRMenu        ActionKind = "ivr_menu"
	ActionForward        ActionKind = "forward"
	ActionHangup         ActionKind = "hangup"
)

// ResolvedAction is the concrete next step a DestinationRef resolves to.
// Exactly one of the entity pointers is set for entity kinds; Number is set
// for forward.
type ResolvedAction struct {
	Kind       ActionKind
	Extension  *models.Extension
	Conference *models.ConferenceRoom
	Group      *models.RingGroup
	Menu       *models.IVRMenu
	Number     string
}

// Resolver resolves destination references against a configuration snapshot.
// Resolution is a pure function of the snapshot: no I/O, safe for concurrent
// use by any number of calls.
type Resolver struct {
	snap   *Snapshot
	logger *slog.Logger
}

// NewResolver creates a resolver over the given snapshot.
func NewResolver(snap *Snapshot, logger *slog.Logger) *Resolver {
	return &Resolver{
		snap:   snap,
		logger: logger.With("subsystem", "resolver"),
	}
}

// Resolve resolves a destination reference to a concrete action. Ring group
// and IVR menu references are resolved transitively through their embedded
// fallback/failover so that configuration cycles and excessive chains
// surface here as ErrCycleDetected/ErrDepthExceeded rather than at dial time.
func (r *Resolver) Resolve(ref models.DestinationRef) (*ResolvedAction, error) {
	return r.resolve(ref, make(map[string]bool), 0)
}

func (r *Resolver) resolve(ref models.DestinationRef, visited map[string]bool, depth int) (*ResolvedAction, error) {
	if depth > maxResolveDepth {
		return nil, fmt.Errorf("%w: %d hops at %s", ErrDepthExceeded, depth, ref)
	}

	switch ref.Kind {
	case models.DestHangup:
		return &ResolvedAction{Kind: ActionHangup}, nil

	case models.DestForward:
		return &ResolvedAction{Kind: ActionForward, Number: ref.Number}, nil

	case models.DestExtension:
		ext, ok := r.snap.ExtensionByID(ref.ID)
		if !ok {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, ref)
		}
		if ext.Status != models.StatusActive {
			return nil, fmt.Errorf("%w: %s", ErrInactive, ref)
		}
		return &ResolvedAction{Kind: ActionDialExtension, Extension: ext}, nil

	case models.DestConferenceRoom:
		room, ok := r.snap.ConferenceRoomByID(ref.ID)
		if !ok {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, ref)
		}
		if room.Status != models.StatusActive {
			return nil, fmt.Errorf("%w: %s", ErrInactive, ref)
		}
		return &ResolvedAction{Kind: ActionDialConference, Conference: room}, nil

	case models.DestRingGroup:
		group, ok := r.snap.RingGroupByID(ref.ID)
		if !ok {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, ref)
		}
		if group.Status != models.StatusActive {
			return nil, fmt.Errorf("%w: %s", ErrInactive, ref)
		}
		if err := r.checkEmbedded(ref, group.Fallback, visited, depth); err != nil {
			return nil, fmt.Errorf("ring group %d fallback: %w", group.ID, err)
		}
		return &ResolvedAction{Kind: ActionRingGroup, Group: group}, nil

	case models.DestIVRMenu:
		menu, ok := r.snap.IVRMenuByID(ref.ID)
		if !ok {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, ref)
		}
		if menu.Status != models.StatusActive {
			return nil, fmt.Errorf("%w: %s", ErrInactive, ref)
		}
		if err := r.checkEmbedded(ref, menu.Failover, visited, depth); err != nil {
			return nil, fmt.Errorf("ivr menu %d failover: %w", menu.ID, err)
		}
		return &ResolvedAction{Kind: ActionIVRMenu, Menu: menu}, nil

	default:
		return nil, fmt.Errorf("%w: unknown destination kind %q", ErrNotFound, ref.Kind)
	}
}

// checkEmbedded walks the embedded fallback/failover reference of a composite
// destination. The current ref is marked visited before recursing; if the
// next ref was already visited the graph is cyclic.
func (r *Resolver) checkEmbedded(current, next models.DestinationRef, visited map[string]bool, depth int) error {
	visited[current.Key()] = true
	if next.IsZero() {
		// No fallback configured; the entity terminates on its own.
		return nil
	}
	if visited[next.Key()] {
		return fmt.Errorf("%w: %s -> %s", ErrCycleDetected, current, next)
	}
	if _, err := r.resolve(next, visited, depth+1); err != nil {
		return err
	}
	return nil
}

// IsResolveError reports whether err is one of the resolver's sentinel
// error classes.
func IsResolveError(err error) bool {
	return errors.Is(err, ErrNotFound) ||
		errors.Is(err, ErrInactive) ||
		errors.Is(err, ErrCycleDetected) ||
		errors.Is(err, ErrDepthExceeded)
}

// ResolveErrorReason returns a short label for the resolver error class,
// for metrics and the routing log. Returns "" for non-resolver errors.
func ResolveErrorReason(err error) string {
	switch {
	case errors.Is(err, ErrCycleDetected):
		return "cycle_detected"
	case errors.Is(err, ErrDepthExceeded):
		return "depth_exceeded"
	case errors.Is(err, ErrNotFound):
		return "not_found"
	case errors.Is(err, ErrInactive):
		return "inactive"
	default:
		return ""
	}
}
