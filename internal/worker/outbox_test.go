package worker

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/clinicore/clinic-api/internal/config"
	"github.com/clinicore/clinic-api/internal/model"
	"github.com/clinicore/clinic-api/pkg/metrics"
)

// Registered once; promauto collectors cannot be registered twice.
var testMetrics = metrics.New("outbox_worker_test")

type fakeOutboxRepo struct {
	events []*model.OutboxEvent
}

func (r *fakeOutboxRepo) Create(_ context.Context, e *model.OutboxEvent) error {
	e.ID = uuid.New()
	e.Status = model.OutboxStatusPending
	copied := *e
	r.events = append(r.events, &copied)
	return nil
}

func (r *fakeOutboxRepo) GetDue(_ context.Context, limit int) ([]*model.OutboxEvent, error) {
	var out []*model.OutboxEvent
	for _, e := range r.events {
		if len(out) == limit {
			break
		}
		due := e.Status == model.OutboxStatusPending ||
			(e.Status == model.OutboxStatusRetry && e.RetryAt != nil && !e.RetryAt.After(time.Now()))
		if due {
			copied := *e
			out = append(out, &copied)
		}
	}
	return out, nil
}

func (r *fakeOutboxRepo) MarkProcessed(_ context.Context, id uuid.UUID) error {
	e := r.get(id)
	e.Status = model.OutboxStatusProcessed
	now := time.Now()
	e.ProcessedAt = &now
	return nil
}

func (r *fakeOutboxRepo) MarkForRetry(_ context.Context, id uuid.UUID, errMsg string, retryAt time.Time) error {
	e := r.get(id)
	e.Status = model.OutboxStatusRetry
	e.ErrorMessage = &errMsg
	e.RetryCount++
	e.RetryAt = &retryAt
	return nil
}

func (r *fakeOutboxRepo) MarkFailed(_ context.Context, id uuid.UUID, errMsg string) error {
	e := r.get(id)
	e.Status = model.OutboxStatusFailed
	e.ErrorMessage = &errMsg
	e.RetryCount++
	return nil
}

func (r *fakeOutboxRepo) get(id uuid.UUID) *model.OutboxEvent {
	for _, e := range r.events {
		if e.ID == id {
			return e
		}
	}
	return nil
}

type sentMail struct {
	to, name, url string
}

type fakeMailer struct {
	err  error
	sent []sentMail
}

func (m *fakeMailer) SendPasswordReset(_ context.Context, to, name, resetURL string) error {
	if m.err != nil {
		return m.err
	}
	m.sent = append(m.sent, sentMail{to: to, name: name, url: resetURL})
	return nil
}

type fakeBroker struct {
	err      error
	channels []string
}

func (b *fakeBroker) Publish(_ context.Context, channel string, _ interface{}) error {
	if b.err != nil {
		return b.err
	}
	b.channels = append(b.channels, channel)
	return nil
}

func (b *fakeBroker) Subscribe(_ context.Context, _ string) (<-chan []byte, error) {
	return nil, nil
}

func (b *fakeBroker) Close() error { return nil }

type outboxEnv struct {
	proc   *OutboxProcessor
	repo   *fakeOutboxRepo
	mailer *fakeMailer
	broker *fakeBroker
}

func newOutboxEnv(t *testing.T) *outboxEnv {
	t.Helper()
	repo := &fakeOutboxRepo{}
	mailer := &fakeMailer{}
	broker := &fakeBroker{}
	cfg := config.OutboxConfig{
		BatchSize:    10,
		PollInterval: time.Second,
		EventChannel: "clinic.events",
		MaxRetries:   3,
		RetryDelay:   time.Minute,
	}
	proc := NewOutboxProcessor(repo, mailer, broker, testMetrics, cfg, "https://clinic.example/reset", zerolog.Nop())
	return &outboxEnv{proc: proc, repo: repo, mailer: mailer, broker: broker}
}

func (e *outboxEnv) queueReset(t *testing.T) *model.OutboxEvent {
	t.Helper()
	payload, err := json.Marshal(model.PasswordResetPayload{
		UserID: 1,
		Email:  "jane.doe@example.com",
		Name:   "Jane Doe",
		Token:  "tok-123",
	})
	require.NoError(t, err)
	event := &model.OutboxEvent{EventType: model.EventTypePasswordReset, Payload: payload}
	require.NoError(t, e.repo.Create(context.Background(), event))
	return e.repo.events[len(e.repo.events)-1]
}

// forceDue makes a retry event eligible without waiting out the backoff.
func forceDue(e *model.OutboxEvent) {
	past := time.Now().Add(-time.Second)
	e.RetryAt = &past
}

func TestOutboxProcessor(t *testing.T) {
	t.Run("delivers a password reset", func(t *testing.T) {
		e := newOutboxEnv(t)
		event := e.queueReset(t)

		e.proc.drain(context.Background())

		assert.Equal(t, model.OutboxStatusProcessed, event.Status)
		require.Len(t, e.mailer.sent, 1)
		assert.Equal(t, "jane.doe@example.com", e.mailer.sent[0].to)
		assert.Equal(t, "https://clinic.example/reset?token=tok-123", e.mailer.sent[0].url)
		assert.Equal(t, []string{"clinic.events"}, e.broker.channels)
	})

	t.Run("transient mail failure is re-queued and retried", func(t *testing.T) {
		e := newOutboxEnv(t)
		event := e.queueReset(t)

		e.mailer.err = assert.AnError
		e.proc.drain(context.Background())

		assert.Equal(t, model.OutboxStatusRetry, event.Status)
		assert.Equal(t, 1, event.RetryCount)
		require.NotNil(t, event.RetryAt)
		assert.True(t, event.RetryAt.After(time.Now()))

		// Not due yet: nothing happens.
		e.mailer.err = nil
		e.proc.drain(context.Background())
		assert.Empty(t, e.mailer.sent)

		forceDue(event)
		e.proc.drain(context.Background())
		assert.Equal(t, model.OutboxStatusProcessed, event.Status)
		require.Len(t, e.mailer.sent, 1)
	})

	t.Run("gives up after the retry cap", func(t *testing.T) {
		e := newOutboxEnv(t)
		event := e.queueReset(t)
		e.mailer.err = assert.AnError

		for i := 0; i < 3; i++ {
			forceDue(event)
			e.proc.drain(context.Background())
		}

		assert.Equal(t, model.OutboxStatusFailed, event.Status)
		assert.Equal(t, 3, event.RetryCount)
		require.NotNil(t, event.ErrorMessage)

		// A parked event is never picked up again.
		e.mailer.err = nil
		e.proc.drain(context.Background())
		assert.Equal(t, model.OutboxStatusFailed, event.Status)
		assert.Empty(t, e.mailer.sent)
	})

	t.Run("publish failure does not fail the event", func(t *testing.T) {
		e := newOutboxEnv(t)
		event := e.queueReset(t)
		e.broker.err = assert.AnError

		e.proc.drain(context.Background())

		assert.Equal(t, model.OutboxStatusProcessed, event.Status)
		require.Len(t, e.mailer.sent, 1)
	})

	t.Run("unknown event type is retried like any failure", func(t *testing.T) {
		e := newOutboxEnv(t)
		event := &model.OutboxEvent{EventType: "NO_SUCH_TYPE", Payload: json.RawMessage(`{}`)}
		require.NoError(t, e.repo.Create(context.Background(), event))
		event = e.repo.events[0]

		e.proc.drain(context.Background())

		assert.Equal(t, model.OutboxStatusRetry, event.Status)
		assert.Empty(t, e.mailer.sent)
	})
}
