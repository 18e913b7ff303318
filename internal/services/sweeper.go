package services

import (
	"context"
	"log/slog"
	"time"
)

// StartTokenSweeper periodically deletes expired, unredeemed merge tokens.
func StartTokenSweeper(tokens *MergeTokenService, interval time.Duration, done chan struct{}) {
	if interval <= 0 {
		interval = time.Hour
	}
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
				if _, err := tokens.SweepExpired(ctx); err != nil {
					slog.Error("merge token sweep failed", "action", "merge_token_sweep", "error", err)
				}
				cancel()
			case <-done:
				return
			}
		}
	}()
}
