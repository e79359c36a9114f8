package models

// TimeWindow is a wall-clock span on a set of weekdays. End before
// Start means the window crosses midnight into the following day.
type TimeWindow struct {
	Start string   `json:"start" mapstructure:"start"` // "HH:MM"
	End   string   `json:"end" mapstructure:"end"`     // "HH:MM"
	Days  []string `json:"days" mapstructure:"days"`   // lowercase weekday names
}

// OverrideRule decides whether manual setpoint overrides are blocked
// for a room. No rule, or BlockOverrides=false, permits overrides;
// BlockOverrides=true with no windows blocks permanently; with windows
// it blocks only inside them.
type OverrideRule struct {
	Room           string       `json:"room" mapstructure:"room"`
	BlockOverrides bool         `json:"block_overrides" mapstructure:"block_overrides"`
	Windows        []TimeWindow `json:"windows" mapstructure:"windows"`
}
