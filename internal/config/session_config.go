package config

import "time"

const navThrottleVar = "NAV_THROTTLE"

type Session struct{}

var _ SessionConfig = Session{}

// GetNavThrottle is the minimum interval between two accepted navigations.
func (Session) GetNavThrottle() time.Duration {
	return GetDuration(navThrottleVar, 500*time.Millisecond)
}
