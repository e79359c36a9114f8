package service

import (
	"time"

	"heating_bridge/internal/config"
	"heating_bridge/internal/models"
)

// Authorization signs dashboard users in and validates their tokens.
type Authorization interface {
	SignIn(username, password string) (string, error)
	ParseToken(accessToken string) (string, error)
}

// TaskStatuses exposes the scheduler's live view to the HTTP layer.
type TaskStatuses interface {
	GetTaskStatus(taskID string) (models.TaskStatus, bool)
	GetAllTaskStatuses() []models.TaskStatus
	UpdateInterval(taskID string, intervalMinutes int) error
}

// Zones exposes the cached device snapshot.
type Zones interface {
	GetSnapshot() []models.Device
	GetZoneByName(name string) (models.Device, bool)
	GetScheduledValue(zoneID string, now time.Time) *float64
}

// Overrides answers whether a manual override is currently permitted
// for a room.
type Overrides interface {
	IsOverrideAllowed(room string, now time.Time) bool
	Rules() []models.OverrideRule
}

// Service aggregates the sub-services the HTTP layer consumes.
type Service struct {
	Authorization
	TaskStatuses
	Zones
	Overrides
}

// NewService wires the engine components into the aggregate consumed
// by handlers.
func NewService(cfg config.Config, tasks TaskStatuses, zones Zones) *Service {
	return &Service{
		Authorization: NewAuthService(cfg.Dashboard),
		TaskStatuses:  tasks,
		Zones:         zones,
		Overrides:     NewOverrideService(cfg.OverrideRules),
	}
}
