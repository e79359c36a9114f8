package models

import "time"

// Setpoint modes reported by the vendor API.
const (
	SetpointModeScheduled = "Scheduled"
	SetpointModeTemporary = "Temporary"
	SetpointModePermanent = "Permanent"
)

// Device is one unit as the vendor API reports it. Gateways and other
// non-heating hardware carry a nil Thermostat.
type Device struct {
	ID         string      `json:"device_id"`
	Name       string      `json:"name"` // zone/room label
	Model      string      `json:"model,omitempty"`
	Thermostat *Thermostat `json:"thermostat,omitempty"`
}

// Thermostat is the controllable part of a zone device.
type Thermostat struct {
	IndoorTemperature float64       `json:"indoor_temperature"`
	HeatSetpoint      float64       `json:"heat_setpoint"`
	SetpointMode      string        `json:"setpoint_mode"` // Scheduled | Temporary | Permanent
	Units             string        `json:"units,omitempty"`
	Schedule          []DaySchedule `json:"schedule,omitempty"`
}

// DaySchedule lists the switchpoints for one weekday.
type DaySchedule struct {
	Day          time.Weekday  `json:"day"`
	Switchpoints []Switchpoint `json:"switchpoints"`
}

// Switchpoint is a scheduled setpoint change at a time of day.
type Switchpoint struct {
	TimeOfDay    string  `json:"time_of_day"` // "HH:MM" or "HH:MM:SS"
	HeatSetpoint float64 `json:"heat_setpoint"`
}

// HasThermostat reports whether the device carries a controllable zone.
func (d Device) HasThermostat() bool {
	return d.Thermostat != nil
}
