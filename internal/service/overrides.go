package service

import (
	"time"

	"heating_bridge/internal/models"
	"heating_bridge/internal/override"
)

// OverrideService evaluates the configured override rules. The rule
// set is a read-only snapshot taken at construction.
type OverrideService struct {
	rules []models.OverrideRule
}

func NewOverrideService(rules []models.OverrideRule) *OverrideService {
	return &OverrideService{rules: rules}
}

// IsOverrideAllowed applies the configured rules for a room at now.
func (s *OverrideService) IsOverrideAllowed(room string, now time.Time) bool {
	return override.IsOverrideAllowed(room, s.rules, now)
}

// Rules returns the configured rule set.
func (s *OverrideService) Rules() []models.OverrideRule {
	return s.rules
}
