package cooldown

import (
	"context"
	"time"

	"go.uber.org/zap"
)

// RunCleaner sweeps expired cooldown windows every interval until ctx is done.
// Call from main or app lifecycle.
func RunCleaner(ctx context.Context, l *Ledger, interval time.Duration, log *zap.Logger) error {
	if interval <= 0 {
		interval = time.Minute
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			if n := l.Sweep(); n > 0 && log != nil {
				log.Debug("expired cooldowns cleared", zap.Int("count", n), zap.Int("remaining", l.Len()))
			}
		}
	}
}
