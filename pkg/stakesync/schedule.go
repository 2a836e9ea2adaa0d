package stakesync

import (
	"context"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
)

// DefaultSchedule runs the remote sync every ten minutes (seconds field included).
const DefaultSchedule = "0 */10 * * * *"

// Schedule registers Run on c. Each run is bounded by timeout.
func (s *Syncer) Schedule(ctx context.Context, c *cron.Cron, spec string, timeout time.Duration) (cron.EntryID, error) {
	return c.AddFunc(spec, func() {
		rctx, cancel := context.WithTimeout(ctx, timeout)
		defer cancel()
		if _, err := s.Run(rctx); err != nil {
			s.logger.Warn("[stakesync] scheduled sync failed", zap.String("url", s.url), zap.Error(err))
		}
	})
}
