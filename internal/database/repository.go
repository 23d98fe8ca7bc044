package database

import (
	"context"

	"github.com/callpath/callpath/internal/database/models"
)

// ExtensionRepository manages PBX extensions.
type ExtensionRepository interface {
	Create(ctx context.Context, ext *models.Extension) error
	GetByID(ctx context.Context, id int64) (*models.Extension, error)
	List(ctx context.Context) ([]models.Extension, error)
	Update(ctx context.Context, ext *models.Extension) error
	Delete(ctx context.Context, id int64) error
}

// ConferenceRoomRepository manages conference rooms.
type ConferenceRoomRepository interface {
	Create(ctx context.Context, room *models.ConferenceRoom) error
	GetByID(ctx context.Context, id int64) (*models.ConferenceRoom, error)
	List(ctx context.Context) ([]models.ConferenceRoom, error)
	Update(ctx context.Context, room *models.ConferenceRoom) error
	Delete(ctx context.Context, id int64) error
}

// RingGroupRepository manages ring groups.
type RingGroupRepository interface {
	Create(ctx context.Context, rg *models.RingGroup) error
	GetByID(ctx context.Context, id int64) (*models.RingGroup, error)
	List(ctx context.Context) ([]models.RingGroup, error)
	Update(ctx context.Context, rg *models.RingGroup) error
	Delete(ctx context.Context, id int64) error
}

// IVRMenuRepository manages IVR menus.
type IVRMenuRepository interface {
	Create(ctx context.Context, menu *models.IVRMenu) error
	GetByID(ctx context.Context, id int64) (*models.IVRMenu, error)
	List(ctx context.Context) ([]models.IVRMenu, error)
	Update(ctx context.Context, menu *models.IVRMenu) error
	Delete(ctx context.Context, id int64) error
}

// ScheduleRepository manages business-hours schedules.
type ScheduleRepository interface {
	Create(ctx context.Context, s *models.BusinessHoursSchedule) error
	GetByID(ctx context.Context, id int64) (*models.BusinessHoursSchedule, error)
	List(ctx context.Context) ([]models.BusinessHoursSchedule, error)
	Update(ctx context.Context, s *models.BusinessHoursSchedule) error
	Delete(ctx context.Context, id int64) error
}

// RoutingLogRepository records routing decisions for operator visibility.
type RoutingLogRepository interface {
	Record(ctx context.Context, entry *models.RoutingLogEntry) error
	ListRecent(ctx context.Context, limit, offset int) ([]models.RoutingLogEntry, error)
	Count(ctx context.Context) (int64, error)
	CountByDecision(ctx context.Context) (map[string]int64, error)
	CountByResolveError(ctx context.Context) (map[string]int64, error)
}
