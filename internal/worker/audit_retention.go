package worker

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"github.com/clinicore/clinic-api/internal/config"
	"github.com/clinicore/clinic-api/internal/repository"
)

// AuditRetention purges audit rows older than the configured retention
// window. A retention of zero days disables purging entirely.
type AuditRetention struct {
	repo   repository.AuditRepository
	cfg    config.AuditConfig
	logger zerolog.Logger
}

func NewAuditRetention(repo repository.AuditRepository, cfg config.AuditConfig, logger zerolog.Logger) *AuditRetention {
	return &AuditRetention{
		repo:   repo,
		cfg:    cfg,
		logger: logger.With().Str("component", "audit_retention").Logger(),
	}
}

// Run purges on the configured interval until the context is cancelled.
func (w *AuditRetention) Run(ctx context.Context) {
	if w.cfg.RetentionDays <= 0 {
		w.logger.Info().Msg("audit retention disabled, keeping audit rows forever")
		return
	}

	ticker := time.NewTicker(w.cfg.CleanupInterval)
	defer ticker.Stop()

	w.logger.Info().
		Int("retention_days", w.cfg.RetentionDays).
		Dur("interval", w.cfg.CleanupInterval).
		Msg("audit retention started")

	for {
		select {
		case <-ctx.Done():
			w.logger.Info().Msg("audit retention stopped")
			return
		case <-ticker.C:
			w.purge(ctx)
		}
	}
}

func (w *AuditRetention) purge(ctx context.Context) {
	cutoff := time.Now().AddDate(0, 0, -w.cfg.RetentionDays)
	deleted, err := w.repo.DeleteBefore(ctx, cutoff)
	if err != nil {
		w.logger.Error().Err(err).Msg("audit purge failed")
		return
	}
	if deleted > 0 {
		w.logger.Info().Int64("deleted", deleted).Time("cutoff", cutoff).Msg("purged audit rows")
	}
}
