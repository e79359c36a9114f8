package poller

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"testing"
	"time"

	"heating_bridge/internal/clock"
	"heating_bridge/internal/config"
	"heating_bridge/internal/devcache"
	"heating_bridge/internal/models"
	"heating_bridge/internal/remote"
	"heating_bridge/internal/scheduler"
	"heating_bridge/internal/session"
)

// stubAPI scripts the vendor calls.
type stubAPI struct {
	mu           sync.Mutex
	devices      []models.Device
	deviceErrs   []error // consumed per GetDevices call, nil entries succeed
	cancelErr    error
	cancelled    []string
	deviceCalls  int
	setpointSets []string
}

func (s *stubAPI) GetDevices(ctx context.Context, sess session.Session) ([]models.Device, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.deviceCalls++
	if len(s.deviceErrs) > 0 {
		err := s.deviceErrs[0]
		s.deviceErrs = s.deviceErrs[1:]
		if err != nil {
			return nil, err
		}
	}
	return s.devices, nil
}

func (s *stubAPI) SetHeatSetpoint(ctx context.Context, sess session.Session, deviceID string, setpoint float64, mode string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.setpointSets = append(s.setpointSets, deviceID)
	return nil
}

func (s *stubAPI) CancelOverride(ctx context.Context, sess session.Session, deviceID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cancelErr != nil {
		return s.cancelErr
	}
	s.cancelled = append(s.cancelled, deviceID)
	return nil
}

// stubAuth satisfies session.Authenticator and counts logins.
type stubAuth struct {
	mu     sync.Mutex
	logins int
}

func (a *stubAuth) Login(ctx context.Context, creds session.Credentials) (session.Session, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.logins++
	return session.Session{SessionID: "sess", UserID: "u"}, nil
}

func (a *stubAuth) RequestToken(ctx context.Context, creds session.Credentials) (session.TokenGrant, error) {
	return session.TokenGrant{AccessToken: "tok", ExpiresIn: time.Hour}, nil
}

func (a *stubAuth) loginCount() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.logins
}

func testStart() time.Time {
	return time.Date(2026, 1, 5, 20, 0, 0, 0, time.UTC) // Monday evening
}

func newTestPoller(api *stubAPI, auth *stubAuth, rules []models.OverrideRule) (*Poller, *devcache.Cache, *clock.Fake) {
	clk := clock.NewFake(testStart())
	cache := devcache.New(clk, 5*time.Second)
	sessions := session.NewManager(auth, clk, nil)
	p := New(api, sessions, cache, rules, session.Credentials{Username: "u"}, clk, nil)
	return p, cache, clk
}

func TestPollDevices_RefreshesSnapshot(t *testing.T) {
	t.Parallel()

	api := &stubAPI{devices: []models.Device{
		{ID: "z1", Name: "Kitchen", Thermostat: &models.Thermostat{HeatSetpoint: 20, SetpointMode: models.SetpointModeScheduled}},
	}}
	auth := &stubAuth{}
	p, cache, _ := newTestPoller(api, auth, nil)

	if err := p.PollDevices(context.Background()); err != nil {
		t.Fatalf("PollDevices: %v", err)
	}
	if _, ok := cache.GetDevice("z1"); !ok {
		t.Error("snapshot missing polled device")
	}
	if auth.loginCount() != 1 {
		t.Errorf("logins: got %d, want 1", auth.loginCount())
	}

	// A second poll reuses the cached session.
	if err := p.PollDevices(context.Background()); err != nil {
		t.Fatalf("second PollDevices: %v", err)
	}
	if auth.loginCount() != 1 {
		t.Errorf("logins after second poll: got %d, want 1", auth.loginCount())
	}
}

func TestPollDevices_RejectedSessionRetriesWithFreshLogin(t *testing.T) {
	t.Parallel()

	api := &stubAPI{
		devices:    []models.Device{{ID: "z1", Name: "Kitchen"}},
		deviceErrs: []error{&remote.Error{StatusCode: http.StatusUnauthorized, Detail: "session expired"}},
	}
	auth := &stubAuth{}
	p, cache, _ := newTestPoller(api, auth, nil)

	if err := p.PollDevices(context.Background()); err != nil {
		t.Fatalf("PollDevices: %v", err)
	}
	if auth.loginCount() != 2 {
		t.Errorf("logins: got %d, want 2 (401 forces a fresh login)", auth.loginCount())
	}
	if _, ok := cache.GetDevice("z1"); !ok {
		t.Error("snapshot missing after the retried poll")
	}
}

func TestPollDevices_OtherFailuresSurface(t *testing.T) {
	t.Parallel()

	boom := errors.New("connection refused")
	api := &stubAPI{deviceErrs: []error{boom, boom}}
	auth := &stubAuth{}
	p, _, _ := newTestPoller(api, auth, nil)

	if err := p.PollDevices(context.Background()); !errors.Is(err, boom) {
		t.Fatalf("err: got %v, want %v", err, boom)
	}
	if auth.loginCount() != 1 {
		t.Errorf("a transient failure must not force a re-login, got %d logins", auth.loginCount())
	}
}

func TestEnforceOverrides_RevertsBlockedZone(t *testing.T) {
	t.Parallel()

	overridden := models.Device{
		ID:   "z1",
		Name: "Nursery",
		Thermostat: &models.Thermostat{
			HeatSetpoint: 25,
			SetpointMode: models.SetpointModeTemporary,
			Schedule: []models.DaySchedule{{
				Day:          time.Monday,
				Switchpoints: []models.Switchpoint{{TimeOfDay: "19:00", HeatSetpoint: 18}},
			}},
		},
	}
	untouched := models.Device{
		ID:         "z2",
		Name:       "Kitchen",
		Thermostat: &models.Thermostat{HeatSetpoint: 22, SetpointMode: models.SetpointModeTemporary},
	}
	rules := []models.OverrideRule{
		{Room: "Nursery", BlockOverrides: true}, // blocks at all times
	}

	api := &stubAPI{}
	p, cache, _ := newTestPoller(api, &stubAuth{}, rules)
	cache.SetSnapshot([]models.Device{overridden, untouched})

	if err := p.EnforceOverrides(context.Background()); err != nil {
		t.Fatalf("EnforceOverrides: %v", err)
	}

	api.mu.Lock()
	cancelled := append([]string(nil), api.cancelled...)
	api.mu.Unlock()
	if len(cancelled) != 1 || cancelled[0] != "z1" {
		t.Fatalf("cancelled: got %v, want [z1]", cancelled)
	}

	// The reverted zone shows its scheduled setpoint optimistically.
	got, _ := cache.GetDevice("z1")
	if got.Thermostat.SetpointMode != models.SetpointModeScheduled {
		t.Errorf("mode: got %q, want %q", got.Thermostat.SetpointMode, models.SetpointModeScheduled)
	}
	if got.Thermostat.HeatSetpoint != 18 {
		t.Errorf("setpoint: got %v, want scheduled 18", got.Thermostat.HeatSetpoint)
	}

	// The unblocked zone keeps its manual override.
	other, _ := cache.GetDevice("z2")
	if other.Thermostat.SetpointMode != models.SetpointModeTemporary {
		t.Errorf("unblocked zone was touched: %+v", other.Thermostat)
	}
}

func TestEnforceOverrides_ScheduledZonesIgnored(t *testing.T) {
	t.Parallel()

	api := &stubAPI{}
	rules := []models.OverrideRule{{Room: "Kitchen", BlockOverrides: true}}
	p, cache, _ := newTestPoller(api, &stubAuth{}, rules)
	cache.SetSnapshot([]models.Device{
		{ID: "z1", Name: "Kitchen", Thermostat: &models.Thermostat{SetpointMode: models.SetpointModeScheduled}},
	})

	if err := p.EnforceOverrides(context.Background()); err != nil {
		t.Fatalf("EnforceOverrides: %v", err)
	}
	if len(api.cancelled) != 0 {
		t.Errorf("scheduled zone must not be reverted: %v", api.cancelled)
	}
}

func TestEnforceOverrides_FailureIsReported(t *testing.T) {
	t.Parallel()

	api := &stubAPI{cancelErr: errors.New("boiler offline")}
	rules := []models.OverrideRule{{Room: "Nursery", BlockOverrides: true}}
	p, cache, _ := newTestPoller(api, &stubAuth{}, rules)
	cache.SetSnapshot([]models.Device{
		{ID: "z1", Name: "Nursery", Thermostat: &models.Thermostat{SetpointMode: models.SetpointModePermanent}},
	})

	if err := p.EnforceOverrides(context.Background()); err == nil {
		t.Fatal("a failed revert must surface in the task result")
	}
}

func TestRegisterTasks(t *testing.T) {
	t.Parallel()

	clk := clock.NewFake(testStart())
	p, _, _ := newTestPoller(&stubAPI{}, &stubAuth{}, nil)
	s := scheduler.New(clk, nil, scheduler.Tuning{})

	cfg := config.Polling{DeviceIntervalMinutes: 5, OverrideIntervalMinutes: 10, MinRescheduleMinutes: 1}
	if err := p.RegisterTasks(s, cfg); err != nil {
		t.Fatalf("RegisterTasks: %v", err)
	}

	statuses := s.GetAllTaskStatuses()
	if len(statuses) != 2 {
		t.Fatalf("tasks: got %d, want 2", len(statuses))
	}
	// Device polling outranks override enforcement.
	if statuses[0].ID != TaskPollDevices || statuses[1].ID != TaskEnforceOverrides {
		t.Errorf("priority order: got [%s %s]", statuses[0].ID, statuses[1].ID)
	}

	if err := p.RegisterTasks(s, cfg); err == nil {
		t.Error("double registration must fail")
	}
}
