package cache

import (
	"fmt"

	"github.com/robfig/cron/v3"

	appLog "schedcal/internal/log"
)

// StartJanitor runs m.Sweep on the given 5-field cron schedule. The
// returned cron must be stopped by the caller.
func StartJanitor(spec string, m *Memory) (*cron.Cron, error) {
	c := cron.New()
	_, err := c.AddFunc(spec, func() {
		if n := m.Sweep(); n > 0 {
			appLog.Debug("cache sweep", "removed", n, "remaining", m.Len())
		}
	})
	if err != nil {
		return nil, fmt.Errorf("invalid cache sweep schedule %q: %w", spec, err)
	}
	c.Start()
	return c, nil
}
