package service

import (
	"time"

	"github.com/noah-isme/dataportal-api/internal/models"
)

// DefaultVolatilityWindow is how long a release stays mutable.
const DefaultVolatilityWindow = 24 * time.Hour

// VolatilityPolicy decides whether a revision may still be replaced in place.
// It is the only place the volatility window is evaluated.
type VolatilityPolicy struct {
	window time.Duration
}

// NewVolatilityPolicy builds a policy, falling back to DefaultVolatilityWindow.
func NewVolatilityPolicy(window time.Duration) VolatilityPolicy {
	if window <= 0 {
		window = DefaultVolatilityWindow
	}
	return VolatilityPolicy{window: window}
}

// Window returns the configured volatility window.
func (p VolatilityPolicy) Window() time.Duration {
	if p.window <= 0 {
		return DefaultVolatilityWindow
	}
	return p.window
}

// IsVolatile applies, in order: an explicit unfreeze, an explicit freeze,
// then the age of the last release.
func (p VolatilityPolicy) IsVolatile(rev models.FileRevision, now time.Time) bool {
	if rev.VolatileOverride != nil {
		return *rev.VolatileOverride
	}
	return now.Sub(rev.ReleasedAt) < p.Window()
}
