package server

import (
	"context"
	"log/slog"
	"time"

	"github.com/incidentdesk/apiserver/internal/auth"
	"github.com/incidentdesk/apiserver/internal/metrics"
)

const refreshJanitorInterval = time.Hour

// runRefreshJanitor prunes expired refresh tokens every interval until ctx
// is done and keeps the live-token gauge current.
func runRefreshJanitor(ctx context.Context, tokens *auth.TokenService, interval time.Duration, log *slog.Logger) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			pruneRefreshTokens(ctx, tokens, log)
		}
	}
}

func pruneRefreshTokens(ctx context.Context, tokens *auth.TokenService, log *slog.Logger) {
	removed, err := tokens.PruneExpired(ctx)
	if err != nil {
		log.Error("prune refresh tokens", "error", err)
		return
	}
	live, err := tokens.LiveRefreshTokens(ctx)
	if err != nil {
		log.Error("count refresh tokens", "error", err)
		return
	}
	metrics.RefreshTokensLive.Set(float64(live))
	if removed > 0 {
		log.Info("pruned expired refresh tokens", "removed", removed, "live", live)
	}
}
