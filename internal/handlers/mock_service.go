package handlers

// Test doubles for the service interfaces. Each mock records the last
// call and returns scripted values.

import (
	"net/http"
	"time"

	"heating_bridge/internal/models"
	"heating_bridge/internal/service"

	"github.com/gin-gonic/gin"
)

type mockAuth struct {
	signInToken string
	signInErr   error
	parseUser   string
	parseErr    error

	lastUsername string
	lastPassword string
	lastToken    string
}

func (m *mockAuth) SignIn(username, password string) (string, error) {
	m.lastUsername = username
	m.lastPassword = password
	return m.signInToken, m.signInErr
}

func (m *mockAuth) ParseToken(accessToken string) (string, error) {
	m.lastToken = accessToken
	return m.parseUser, m.parseErr
}

type mockTasks struct {
	statuses  []models.TaskStatus
	byID      map[string]models.TaskStatus
	updateErr error

	lastUpdateID       string
	lastUpdateInterval int
}

func (m *mockTasks) GetTaskStatus(taskID string) (models.TaskStatus, bool) {
	st, ok := m.byID[taskID]
	return st, ok
}

func (m *mockTasks) GetAllTaskStatuses() []models.TaskStatus {
	return m.statuses
}

func (m *mockTasks) UpdateInterval(taskID string, intervalMinutes int) error {
	m.lastUpdateID = taskID
	m.lastUpdateInterval = intervalMinutes
	return m.updateErr
}

type mockZones struct {
	devices   []models.Device
	byName    map[string]models.Device
	scheduled *float64
}

func (m *mockZones) GetSnapshot() []models.Device {
	return m.devices
}

func (m *mockZones) GetZoneByName(name string) (models.Device, bool) {
	d, ok := m.byName[name]
	return d, ok
}

func (m *mockZones) GetScheduledValue(zoneID string, now time.Time) *float64 {
	return m.scheduled
}

type mockOverrides struct {
	allowed  bool
	lastRoom string
}

func (m *mockOverrides) IsOverrideAllowed(room string, now time.Time) bool {
	m.lastRoom = room
	return m.allowed
}

func (m *mockOverrides) Rules() []models.OverrideRule {
	return nil
}

// ---- Shared Test Helpers ----

func newTestRouter(s *service.Service) *gin.Engine {
	h := NewHandler(s, nil)
	gin.SetMode(gin.TestMode)
	return h.InitRoutes()
}

func authHeader(token string) http.Header {
	h := http.Header{}
	if token != "" {
		h.Set("Authorization", "Bearer "+token)
	}
	return h
}
