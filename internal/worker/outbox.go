package worker

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/clinicore/clinic-api/internal/config"
	"github.com/clinicore/clinic-api/internal/email"
	"github.com/clinicore/clinic-api/internal/model"
	"github.com/clinicore/clinic-api/internal/repository"
	"github.com/clinicore/clinic-api/pkg/messaging"
	"github.com/clinicore/clinic-api/pkg/metrics"
)

// OutboxProcessor drains due outbox events: it dispatches the side effect,
// publishes a copy to the event channel, and marks the row processed. A
// failed event is re-queued with a growing backoff until the retry cap,
// then parked as failed.
type OutboxProcessor struct {
	repo    repository.OutboxRepository
	mailer  email.Service
	broker  messaging.Broker
	metrics *metrics.Metrics
	cfg     config.OutboxConfig
	baseURL string
	logger  zerolog.Logger
}

func NewOutboxProcessor(
	repo repository.OutboxRepository,
	mailer email.Service,
	broker messaging.Broker,
	m *metrics.Metrics,
	cfg config.OutboxConfig,
	baseURL string,
	logger zerolog.Logger,
) *OutboxProcessor {
	return &OutboxProcessor{
		repo:    repo,
		mailer:  mailer,
		broker:  broker,
		metrics: m,
		cfg:     cfg,
		baseURL: baseURL,
		logger:  logger.With().Str("component", "outbox_processor").Logger(),
	}
}

// Run polls until the context is cancelled.
func (p *OutboxProcessor) Run(ctx context.Context) {
	ticker := time.NewTicker(p.cfg.PollInterval)
	defer ticker.Stop()

	p.logger.Info().Dur("poll_interval", p.cfg.PollInterval).Msg("outbox processor started")
	for {
		select {
		case <-ctx.Done():
			p.logger.Info().Msg("outbox processor stopped")
			return
		case <-ticker.C:
			p.drain(ctx)
		}
	}
}

func (p *OutboxProcessor) drain(ctx context.Context) {
	events, err := p.repo.GetDue(ctx, p.cfg.BatchSize)
	if err != nil {
		p.logger.Error().Err(err).Msg("failed to fetch due events")
		return
	}

	for _, event := range events {
		start := time.Now()
		if err := p.process(ctx, event); err != nil {
			p.fail(ctx, event, err)
			continue
		}

		p.metrics.OutboxEventsProcessed.Inc()
		p.metrics.OutboxProcessingTime.Observe(time.Since(start).Seconds())
		if err := p.repo.MarkProcessed(ctx, event.ID); err != nil {
			p.logger.Error().Err(err).Str("event_id", event.ID.String()).Msg("failed to mark event processed")
		}
	}
}

// fail re-queues the event with a linearly growing backoff, or parks it as
// failed once the retry cap is reached.
func (p *OutboxProcessor) fail(ctx context.Context, event *model.OutboxEvent, procErr error) {
	attempt := event.RetryCount + 1
	if attempt < p.cfg.MaxRetries {
		retryAt := time.Now().Add(p.cfg.RetryDelay * time.Duration(attempt))
		p.metrics.OutboxEventsRetried.Inc()
		p.logger.Warn().Err(procErr).
			Str("event_id", event.ID.String()).
			Str("event_type", event.EventType).
			Int("attempt", attempt).
			Time("retry_at", retryAt).
			Msg("event processing failed, will retry")
		if markErr := p.repo.MarkForRetry(ctx, event.ID, procErr.Error(), retryAt); markErr != nil {
			p.logger.Error().Err(markErr).Str("event_id", event.ID.String()).Msg("failed to mark event for retry")
		}
		return
	}

	p.metrics.OutboxEventsFailed.Inc()
	p.logger.Error().Err(procErr).
		Str("event_id", event.ID.String()).
		Str("event_type", event.EventType).
		Int("attempt", attempt).
		Msg("event processing failed permanently")
	if markErr := p.repo.MarkFailed(ctx, event.ID, procErr.Error()); markErr != nil {
		p.logger.Error().Err(markErr).Str("event_id", event.ID.String()).Msg("failed to mark event failed")
	}
}

func (p *OutboxProcessor) process(ctx context.Context, event *model.OutboxEvent) error {
	switch event.EventType {
	case model.EventTypePasswordReset:
		if err := p.sendPasswordReset(ctx, event); err != nil {
			return err
		}
	default:
		return fmt.Errorf("unknown event type %q", event.EventType)
	}

	// Fan the event out for other consumers. Publish failures are logged
	// but do not fail the event; the side effect already happened.
	if err := p.broker.Publish(ctx, p.cfg.EventChannel, event); err != nil {
		p.logger.Warn().Err(err).Str("event_id", event.ID.String()).Msg("failed to publish event")
	}
	return nil
}

func (p *OutboxProcessor) sendPasswordReset(ctx context.Context, event *model.OutboxEvent) error {
	var payload model.PasswordResetPayload
	if err := json.Unmarshal(event.Payload, &payload); err != nil {
		return fmt.Errorf("invalid password reset payload: %w", err)
	}
	resetURL := fmt.Sprintf("%s?token=%s", p.baseURL, payload.Token)
	return p.mailer.SendPasswordReset(ctx, payload.Email, payload.Name, resetURL)
}
