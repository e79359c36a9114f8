// Package poller owns the recurring work: polling the vendor API for
// device state and reverting manual overrides that the configured
// time windows disallow.
package poller

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"heating_bridge/internal/clock"
	"heating_bridge/internal/config"
	"heating_bridge/internal/devcache"
	"heating_bridge/internal/logger"
	"heating_bridge/internal/models"
	"heating_bridge/internal/override"
	"heating_bridge/internal/retry"
	"heating_bridge/internal/scheduler"
	"heating_bridge/internal/session"
)

// Task identities and queue priorities. Device polling outranks
// override enforcement: enforcement reads the snapshot polling wrote.
const (
	TaskPollDevices      = "poll-devices"
	TaskEnforceOverrides = "enforce-overrides"

	priorityPollDevices      = 1
	priorityEnforceOverrides = 2
)

// API is the subset of vendor calls the poller performs.
type API interface {
	GetDevices(ctx context.Context, s session.Session) ([]models.Device, error)
	SetHeatSetpoint(ctx context.Context, s session.Session, deviceID string, setpoint float64, mode string) error
	CancelOverride(ctx context.Context, s session.Session, deviceID string) error
}

// Poller runs the recurring tasks against the vendor API.
type Poller struct {
	api      API
	sessions *session.Manager
	cache    *devcache.Cache
	rules    []models.OverrideRule
	creds    session.Credentials
	clk      clock.Clock
	log      *logger.Logger
}

func New(api API, sessions *session.Manager, cache *devcache.Cache, rules []models.OverrideRule, creds session.Credentials, clk clock.Clock, log *logger.Logger) *Poller {
	return &Poller{
		api:      api,
		sessions: sessions,
		cache:    cache,
		rules:    rules,
		creds:    creds,
		clk:      clk,
		log:      log,
	}
}

// RegisterTasks registers the poller's recurring tasks with the
// scheduler using the configured intervals.
func (p *Poller) RegisterTasks(s *scheduler.Scheduler, cfg config.Polling) error {
	tasks := []models.TaskConfig{
		{
			ID:                   TaskPollDevices,
			Label:                "Poll device state",
			IntervalMinutes:      cfg.DeviceIntervalMinutes,
			Priority:             priorityPollDevices,
			Handler:              p.PollDevices,
			RunOnStartup:         true,
			MinRescheduleMinutes: cfg.MinRescheduleMinutes,
		},
		{
			ID:                   TaskEnforceOverrides,
			Label:                "Enforce override windows",
			IntervalMinutes:      cfg.OverrideIntervalMinutes,
			Priority:             priorityEnforceOverrides,
			Handler:              p.EnforceOverrides,
			MinRescheduleMinutes: cfg.MinRescheduleMinutes,
		},
	}
	for _, t := range tasks {
		if err := s.RegisterTask(t); err != nil {
			return err
		}
	}
	return nil
}

// PollDevices fetches the current device snapshot and merges it into
// the cache. A rejected session is cleared and retried once with a
// fresh login before the failure surfaces.
func (p *Poller) PollDevices(ctx context.Context) error {
	devices, err := p.fetchDevices(ctx)
	if isUnauthorized(err) {
		p.sessions.ClearSession()
		devices, err = p.fetchDevices(ctx)
	}
	if err != nil {
		return err
	}
	p.cache.SetSnapshot(devices)
	if p.log != nil {
		p.log.Debugw("device snapshot refreshed", "devices", len(devices))
	}
	return nil
}

// EnforceOverrides reverts every manually-overridden zone whose room
// rules block overrides at the current moment, applying the scheduled
// setpoint optimistically so the dashboard updates before the next
// poll confirms it.
func (p *Poller) EnforceOverrides(ctx context.Context) error {
	now := p.clk.Now()
	var failed int
	for _, d := range p.cache.GetSnapshot() {
		if d.Thermostat == nil || d.Thermostat.SetpointMode == models.SetpointModeScheduled {
			continue
		}
		if override.IsOverrideAllowed(d.Name, p.rules, now) {
			continue
		}
		if err := p.revertOverride(ctx, d, now); err != nil {
			failed++
			if p.log != nil {
				p.log.Errorw("override revert failed", "zone", d.Name, "err", err)
			}
		}
	}
	if failed > 0 {
		return fmt.Errorf("failed to revert %d override(s)", failed)
	}
	return nil
}

func (p *Poller) fetchDevices(ctx context.Context) ([]models.Device, error) {
	s, err := p.sessions.GetSession(ctx, p.creds)
	if err != nil {
		return nil, err
	}
	return retry.Do(ctx, p.clk, func() ([]models.Device, error) {
		return p.api.GetDevices(ctx, s)
	}, retry.WithNotifier(p.notice))
}

func (p *Poller) revertOverride(ctx context.Context, d models.Device, now time.Time) error {
	s, err := p.sessions.GetSession(ctx, p.creds)
	if err != nil {
		return err
	}
	commandID := uuid.NewString()
	_, err = retry.Do(ctx, p.clk, func() (struct{}, error) {
		return struct{}{}, p.api.CancelOverride(ctx, s, d.ID)
	}, retry.WithNotifier(p.notice))
	if err != nil {
		return err
	}

	setpoint := d.Thermostat.HeatSetpoint
	if v := p.cache.GetScheduledValue(d.ID, now); v != nil {
		setpoint = *v
	}
	p.cache.ApplyOptimisticUpdate(d.ID, setpoint, models.SetpointModeScheduled)
	if p.log != nil {
		p.log.Infow("override reverted", "zone", d.Name, "command_id", commandID, "setpoint", setpoint)
	}
	return nil
}

func (p *Poller) notice(message string) {
	if p.log != nil {
		p.log.Log(message, "poller", logger.WarnLevel)
	}
}

func isUnauthorized(err error) bool {
	if err == nil {
		return false
	}
	var ua interface{ Unauthorized() bool }
	return errors.As(err, &ua) && ua.Unauthorized()
}
