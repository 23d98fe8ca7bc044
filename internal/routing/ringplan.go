package routing

import (
	"log/slog"
	"sort"

	"github.com/callpath/callpath/internal/database/models"
)

// defaultRingTimeoutSec is used when a group's ring timeout is unset.
const defaultRingTimeoutSec = 30

// DialTarget is one extension to ring with its timeout.
type DialTarget struct {
	ExtensionID int64
	TimeoutSec  int
}

// DialBatch is one set of extensions rung together. The first answer within
// a batch wins and cancels the rest of the batch.
type DialBatch struct {
	Targets []DialTarget
}

// DialPlan is the ordered sequence of ring batches for one routing attempt
// through a ring group, ending in the resolved fallback action if no batch
// is answered.
type DialPlan struct {
	GroupID  int64
	Strategy models.RingStrategy
	Batches  []DialBatch

	// Fallback is the terminal action when all batches go unanswered.
	// It is never nil: when fallback resolution fails the plan degrades
	// to hangup and FallbackErr records why.
	Fallback    *ResolvedAction
	FallbackErr error
}

// RingStrategyEngine produces dial plans for ring groups under the three
// distribution strategies. Plan generation is pure apart from the
// round-robin cursor advancement at admission.
type RingStrategyEngine struct {
	cursors *CursorStore
	logger  *slog.Logger
}

// NewRingStrategyEngine creates a ring strategy engine.
func NewRingStrategyEngine(cursors *CursorStore, logger *slog.Logger) *RingStrategyEngine {
	return &RingStrategyEngine{
		cursors: cursors,
		logger:  logger.With("subsystem", "ring_strategy"),
	}
}

// Plan builds the dial plan for an admitted routing attempt. For round_robin
// groups this advances the group's persistent cursor by exactly one
// position, so concurrent attempts receive distinct consecutive starting
// members. Use PlanPreview when the plan will not be executed.
func (e *RingStrategyEngine) Plan(group *models.RingGroup, reachable []models.RingGroupMember, resolver *Resolver) *DialPlan {
	start := 0
	if group.Strategy == models.StrategyRoundRobin && len(reachable) > 0 {
		start = e.cursors.Next(group.ID) % len(reachable)
	}
	return e.planAt(group, reachable, resolver, start)
}

// PlanPreview builds the plan a routing attempt would receive right now
// without advancing the round-robin cursor.
func (e *RingStrategyEngine) PlanPreview(group *models.RingGroup, reachable []models.RingGroupMember, resolver *Resolver) *DialPlan {
	start := 0
	if group.Strategy == models.StrategyRoundRobin && len(reachable) > 0 {
		start = e.cursors.Peek(group.ID) % len(reachable)
	}
	return e.planAt(group, reachable, resolver, start)
}

func (e *RingStrategyEngine) planAt(group *models.RingGroup, reachable []models.RingGroupMember, resolver *Resolver, start int) *DialPlan {
	plan := &DialPlan{GroupID: group.ID, Strategy: group.Strategy}

	timeout := group.RingTimeoutSec
	if timeout <= 0 {
		timeout = defaultRingTimeoutSec
	}
	turns := group.RingTurns
	if turns <= 0 {
		turns = 1
	}

	// Ascending priority order is the base ordering for every strategy.
	members := make([]models.RingGroupMember, len(reachable))
	copy(members, reachable)
	sort.Slice(members, func(i, j int) bool {
		return members[i].Priority < members[j].Priority
	})

	if len(members) > 0 {
		switch group.Strategy {
		case models.StrategySimultaneous:
			batch := DialBatch{Targets: make([]DialTarget, len(members))}
			for i, m := range members {
				batch.Targets[i] = DialTarget{ExtensionID: m.ExtensionID, TimeoutSec: timeout}
			}
			plan.Batches = []DialBatch{batch}

		case models.StrategyRoundRobin:
			// Single-member batches, ring_turns attempts total, rotating
			// from the cursor-assigned start.
			for i := 0; i < turns; i++ {
				m := members[(start+i)%len(members)]
				plan.Batches = append(plan.Batches, singleBatch(m.ExtensionID, timeout))
			}

		case models.StrategySequential:
			// Full passes in priority order, ring_turns passes total.
			for t := 0; t < turns; t++ {
				for _, m := range members {
					plan.Batches = append(plan.Batches, singleBatch(m.ExtensionID, timeout))
				}
			}

		default:
			e.logger.Warn("unknown ring strategy, falling back to simultaneous",
				"group_id", group.ID,
				"strategy", group.Strategy,
			)
			batch := DialBatch{Targets: make([]DialTarget, len(members))}
			for i, m := range members {
				batch.Targets[i] = DialTarget{ExtensionID: m.ExtensionID, TimeoutSec: timeout}
			}
			plan.Batches = []DialBatch{batch}
		}
	} else {
		e.logger.Warn("ring group has no reachable members",
			"group_id", group.ID,
			"group", group.Name,
		)
	}

	// Resolve the fallback up front so the terminal action is always known.
	if group.Fallback.IsZero() {
		plan.Fallback = &ResolvedAction{Kind: ActionHangup}
		return plan
	}
	fb, err := resolver.Resolve(group.Fallback)
	if err != nil {
		e.logger.Error("ring group fallback failed to resolve, degrading to hangup",
			"group_id", group.ID,
			"fallback", group.Fallback,
			"error", err,
		)
		plan.Fallback = &ResolvedAction{Kind: ActionHangup}
		plan.FallbackErr = err
	} else {
		plan.Fallback = fb
	}

	e.logger.Debug("dial plan built",
		"group_id", group.ID,
		"strategy", group.Strategy,
		"members", len(members),
		"batches", len(plan.Batches),
		"start", start,
	)

	return plan
}

func singleBatch(extensionID int64, timeoutSec int) DialBatch {
	return DialBatch{Targets: []DialTarget{{ExtensionID: extensionID, TimeoutSec: timeoutSec}}}
}
