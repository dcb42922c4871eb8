// internal/ratelimit/sweeper.go
package ratelimit

import (
	"fmt"

	"recruit-intake/internal/common/logger"

	"github.com/robfig/cron/v3"
)

// StartSweeper runs s.Sweep on schedule (cron spec or "@every <dur>") and
// returns the running scheduler. Stop it on shutdown.
func StartSweeper(s Sweeper, schedule string, log logger.Logger) (*cron.Cron, error) {
	c := cron.New()
	_, err := c.AddFunc(schedule, func() {
		if removed := s.Sweep(); removed > 0 {
			log.Debug("swept expired rate limit buckets", map[string]interface{}{
				"removed": removed,
			})
		}
	})
	if err != nil {
		return nil, fmt.Errorf("invalid sweep schedule %q: %w", schedule, err)
	}
	c.Start()
	return c, nil
}
