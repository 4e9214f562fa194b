package monitor

import (
	"context"
	"time"
)

// SetSleep replaces the monitor's sleep function.
func SetSleep(m *Monitor, fn func(ctx context.Context, d time.Duration) error) {
	m.sleep = fn
}
