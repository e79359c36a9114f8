// Package devcache holds the last known snapshot of remote device
// state plus locally-applied optimistic mutations. Snapshot refreshes
// must not clobber a field this process wrote moments ago: the vendor
// is eventually consistent and reflects commands with a lag.
package devcache

import (
	"strconv"
	"strings"
	"sync"
	"time"

	"heating_bridge/internal/clock"
	"heating_bridge/internal/models"
)

// DefaultPreserveWindow is how long a local write outranks an incoming
// snapshot value for the same field.
const DefaultPreserveWindow = 5 * time.Second

// Thermostat fields tracked with optimistic markers.
const (
	fieldHeatSetpoint = "heat_setpoint"
	fieldSetpointMode = "setpoint_mode"
)

// Cache is the optimistic device-state cache. Safe for concurrent use:
// the polling task replaces snapshots while command handling applies
// single-field updates.
type Cache struct {
	clk      clock.Clock
	preserve time.Duration

	mu      sync.RWMutex
	devices map[string]models.Device
	order   []string // snapshot order, for stable listing
	markers map[string]map[string]time.Time
}

// New returns a cache using preserve as the optimistic-preserve
// window; preserve <= 0 selects DefaultPreserveWindow.
func New(clk clock.Clock, preserve time.Duration) *Cache {
	if preserve <= 0 {
		preserve = DefaultPreserveWindow
	}
	return &Cache{
		clk:      clk,
		preserve: preserve,
		devices:  make(map[string]models.Device),
		markers:  make(map[string]map[string]time.Time),
	}
}

// SetSnapshot stores an incoming device snapshot. For a device already
// cached, any thermostat field carrying an optimistic marker younger
// than the preserve window keeps its local value when the incoming
// value differs; the vendor has not caught up with our own command
// yet. Everything else takes the incoming value.
func (c *Cache) SetSnapshot(devices []models.Device) {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.clk.Now()
	fresh := make(map[string]models.Device, len(devices))
	order := make([]string, 0, len(devices))
	for _, incoming := range devices {
		merged := incoming
		if cached, ok := c.devices[incoming.ID]; ok {
			merged = c.mergeLocked(cached, incoming, now)
		}
		fresh[merged.ID] = merged
		order = append(order, merged.ID)
	}
	c.devices = fresh
	c.order = order
}

// ApplyOptimisticUpdate writes a setpoint and mode into the cached
// device immediately after the command is sent, stamping per-field
// markers so the next poll cannot revert them.
func (c *Cache) ApplyOptimisticUpdate(deviceID string, heatSetpoint float64, mode string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	d, ok := c.devices[deviceID]
	if !ok || d.Thermostat == nil {
		return false
	}
	t := *d.Thermostat
	t.HeatSetpoint = heatSetpoint
	t.SetpointMode = mode
	d.Thermostat = &t
	c.devices[deviceID] = d

	now := c.clk.Now()
	m := c.markers[deviceID]
	if m == nil {
		m = make(map[string]time.Time, 2)
		c.markers[deviceID] = m
	}
	m[fieldHeatSetpoint] = now
	m[fieldSetpointMode] = now
	return true
}

// GetSnapshot returns the cached devices in snapshot order.
func (c *Cache) GetSnapshot() []models.Device {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]models.Device, 0, len(c.order))
	for _, id := range c.order {
		out = append(out, c.devices[id])
	}
	return out
}

// GetDevice returns the cached device, or false on a miss.
func (c *Cache) GetDevice(deviceID string) (models.Device, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	d, ok := c.devices[deviceID]
	return d, ok
}

// GetZoneByName finds a thermostat-bearing device by its zone label,
// case-insensitively. Misses return false, never an error.
func (c *Cache) GetZoneByName(name string) (models.Device, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	for _, id := range c.order {
		d := c.devices[id]
		if d.Thermostat != nil && strings.EqualFold(d.Name, name) {
			return d, true
		}
	}
	return models.Device{}, false
}

// GetScheduledValue answers what setpoint the zone's schedule calls
// for at now: the latest switchpoint at or before now's time of day on
// now's weekday. A day with no earlier switchpoint carries over the
// last switchpoint of the most recent prior day that has any. Returns
// nil when no schedule is cached for the zone.
func (c *Cache) GetScheduledValue(zoneID string, now time.Time) *float64 {
	c.mu.RLock()
	defer c.mu.RUnlock()

	d, ok := c.devices[zoneID]
	if !ok || d.Thermostat == nil || len(d.Thermostat.Schedule) == 0 {
		return nil
	}
	schedule := d.Thermostat.Schedule

	minute := now.Hour()*60 + now.Minute()
	if sp := latestAtOrBefore(schedule, now.Weekday(), minute); sp != nil {
		return sp
	}
	// Carry-over: walk back through prior days for their final switchpoint.
	for back := 1; back <= 7; back++ {
		day := (now.Weekday() + time.Weekday(7-back)) % 7
		if sp := lastOfDay(schedule, day); sp != nil {
			return sp
		}
	}
	return nil
}

// mergeLocked folds an incoming device over the cached one, keeping
// recently-written thermostat fields. Called with c.mu held.
func (c *Cache) mergeLocked(cached, incoming models.Device, now time.Time) models.Device {
	if cached.Thermostat == nil || incoming.Thermostat == nil {
		return incoming
	}
	m := c.markers[incoming.ID]
	if m == nil {
		return incoming
	}

	merged := incoming
	t := *incoming.Thermostat
	if c.markerFreshLocked(m, fieldHeatSetpoint, now) && cached.Thermostat.HeatSetpoint != t.HeatSetpoint {
		t.HeatSetpoint = cached.Thermostat.HeatSetpoint
	}
	if c.markerFreshLocked(m, fieldSetpointMode, now) && cached.Thermostat.SetpointMode != t.SetpointMode {
		t.SetpointMode = cached.Thermostat.SetpointMode
	}
	merged.Thermostat = &t
	return merged
}

func (c *Cache) markerFreshLocked(m map[string]time.Time, field string, now time.Time) bool {
	stamp, ok := m[field]
	return ok && now.Sub(stamp) < c.preserve
}

func latestAtOrBefore(schedule []models.DaySchedule, day time.Weekday, minute int) *float64 {
	var best *float64
	bestMinute := -1
	for _, ds := range schedule {
		if ds.Day != day {
			continue
		}
		for i := range ds.Switchpoints {
			sp := ds.Switchpoints[i]
			spMinute, ok := parseTimeOfDay(sp.TimeOfDay)
			if !ok || spMinute > minute || spMinute < bestMinute {
				continue
			}
			bestMinute = spMinute
			v := sp.HeatSetpoint
			best = &v
		}
	}
	return best
}

func lastOfDay(schedule []models.DaySchedule, day time.Weekday) *float64 {
	var best *float64
	bestMinute := -1
	for _, ds := range schedule {
		if ds.Day != day {
			continue
		}
		for i := range ds.Switchpoints {
			sp := ds.Switchpoints[i]
			spMinute, ok := parseTimeOfDay(sp.TimeOfDay)
			if !ok || spMinute < bestMinute {
				continue
			}
			bestMinute = spMinute
			v := sp.HeatSetpoint
			best = &v
		}
	}
	return best
}

// parseTimeOfDay accepts "HH:MM" or "HH:MM:SS" and returns minutes
// since midnight.
func parseTimeOfDay(s string) (int, bool) {
	parts := strings.Split(s, ":")
	if len(parts) < 2 {
		return 0, false
	}
	h, err := strconv.Atoi(parts[0])
	if err != nil || h < 0 || h > 23 {
		return 0, false
	}
	m, err := strconv.Atoi(parts[1])
	if err != nil || m < 0 || m > 59 {
		return 0, false
	}
	return h*60 + m, true
}
