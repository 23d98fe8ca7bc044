package routing

import (
	"context"
	"fmt"
	"time"

	"github.com/callpath/callpath/internal/database"
	"github.com/callpath/callpath/internal/database/models"
)

// Snapshot is an immutable view of the routing configuration taken at call
// start. All resolution and evaluation reads the snapshot, never the store,
// so a call in flight is unaffected by concurrent configuration edits.
// A Snapshot is safe for concurrent use by any number of calls.
type Snapshot struct {
	extensions map[int64]*models.Extension
	groups     map[int64]*models.RingGroup
	rooms      map[int64]*models.ConferenceRoom
	menus      map[int64]*models.IVRMenu
	schedules  map[int64]*models.BusinessHoursSchedule
	takenAt    time.Time
}

// NewSnapshot builds a snapshot from entity slices. The slices are copied
// into lookup maps; callers must not mutate the entities afterwards.
func NewSnapshot(
	extensions []models.Extension,
	groups []models.RingGroup,
	rooms []models.ConferenceRoom,
	menus []models.IVRMenu,
	schedules []models.BusinessHoursSchedule,
) *Snapshot {
	s := &Snapshot{
		extensions: make(map[int64]*models.Extension, len(extensions)),
		groups:     make(map[int64]*models.RingGroup, len(groups)),
		rooms:      make(map[int64]*models.ConferenceRoom, len(rooms)),
		menus:      make(map[int64]*models.IVRMenu, len(menus)),
		schedules:  make(map[int64]*models.BusinessHoursSchedule, len(schedules)),
		takenAt:    time.Now(),
	}
	for i := range extensions {
		s.extensions[extensions[i].ID] = &extensions[i]
	}
	for i := range groups {
		s.groups[groups[i].ID] = &groups[i]
	}
	for i := range rooms {
		s.rooms[rooms[i].ID] = &rooms[i]
	}
	for i := range menus {
		s.menus[menus[i].ID] = &menus[i]
	}
	for i := range schedules {
		s.schedules[schedules[i].ID] = &schedules[i]
	}
	return s
}

// ExtensionByID returns the extension with the given id, if present.
func (s *Snapshot) ExtensionByID(id int64) (*models.Extension, bool) {
	e, ok := s.extensions[id]
	return e, ok
}

// RingGroupByID returns the ring group with the given id, if present.
func (s *Snapshot) RingGroupByID(id int64) (*models.RingGroup, bool) {
	g, ok := s.groups[id]
	return g, ok
}

// ConferenceRoomByID returns the conference room with the given id, if present.
func (s *Snapshot) ConferenceRoomByID(id int64) (*models.ConferenceRoom, bool) {
	r, ok := s.rooms[id]
	return r, ok
}

// IVRMenuByID returns the IVR menu with the given id, if present.
func (s *Snapshot) IVRMenuByID(id int64) (*models.IVRMenu, bool) {
	m, ok := s.menus[id]
	return m, ok
}

// ScheduleByID returns the business-hours schedule with the given id, if present.
func (s *Snapshot) ScheduleByID(id int64) (*models.BusinessHoursSchedule, bool) {
	sc, ok := s.schedules[id]
	return sc, ok
}

// TakenAt returns when the snapshot was built.
func (s *Snapshot) TakenAt() time.Time {
	return s.takenAt
}

// Loader builds configuration snapshots from the persistence layer.
type Loader struct {
	extensions database.ExtensionRepository
	groups     database.RingGroupRepository
	rooms      database.ConferenceRoomRepository
	menus      database.IVRMenuRepository
	schedules  database.ScheduleRepository
}

// NewLoader creates a snapshot loader backed by the given repositories.
func NewLoader(
	extensions database.ExtensionRepository,
	groups database.RingGroupRepository,
	rooms database.ConferenceRoomRepository,
	menus database.IVRMenuRepository,
	schedules database.ScheduleRepository,
) *Loader {
	return &Loader{
		extensions: extensions,
		groups:     groups,
		rooms:      rooms,
		menus:      menus,
		schedules:  schedules,
	}
}

// Load reads all routing entities and returns an immutable snapshot.
func (l *Loader) Load(ctx context.Context) (*Snapshot, error) {
	exts, err := l.extensions.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("loading extensions: %w", err)
	}
	groups, err := l.groups.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("loading ring groups: %w", err)
	}
	rooms, err := l.rooms.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("loading conference rooms: %w", err)
	}
	menus, err := l.menus.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("loading ivr menus: %w", err)
	}
	schedules, err := l.schedules.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("loading schedules: %w", err)
	}
	return NewSnapshot(exts, groups, rooms, menus, schedules), nil
}
