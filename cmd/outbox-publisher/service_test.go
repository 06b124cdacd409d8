package main

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"testing"
	"time"

	gcppubsub "cloud.google.com/go/pubsub/v2"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/angelmondragon/carestaff-backend/pkg/config"
	"github.com/angelmondragon/carestaff-backend/pkg/db/models"
	"github.com/angelmondragon/carestaff-backend/pkg/enums"
	"github.com/angelmondragon/carestaff-backend/pkg/logger"
	"github.com/angelmondragon/carestaff-backend/pkg/metrics"
	"github.com/angelmondragon/carestaff-backend/pkg/outbox"
	"github.com/angelmondragon/carestaff-backend/pkg/outbox/payloads"
	"github.com/angelmondragon/carestaff-backend/pkg/outbox/registry"
)

var fixedNow = time.Date(2026, 3, 2, 9, 30, 0, 0, time.UTC)

type harness struct {
	svc      *Service
	repo     *fakeRepo
	dlq      *fakeDLQ
	topic    *fakeTopic
	resolver *fakeResolver
	topics   []string
}

func newHarness(t *testing.T, outboxCfg config.OutboxConfig, events ...models.OutboxEvent) *harness {
	t.Helper()
	h := &harness{
		repo:     &fakeRepo{events: events},
		dlq:      &fakeDLQ{},
		topic:    &fakeTopic{},
		resolver: &fakeResolver{topic: "cs-decision-events"},
	}
	svc, err := NewService(ServiceParams{
		Config:        &config.Config{Outbox: outboxCfg},
		Logger:        logger.New(logger.Options{ServiceName: "outbox-publisher-test", Output: io.Discard}),
		DB:            fakeDB{},
		PubSub:        fakePubSub{},
		Repository:    h.repo,
		Registry:      h.resolver,
		DLQRepository: h.dlq,
		Metrics:       metrics.NewOutboxMetrics(prometheus.NewRegistry()),
		Topics: func(topic string) topicPublisher {
			h.topics = append(h.topics, topic)
			if h.topic == nil {
				return nil
			}
			return h.topic
		},
		Now: func() time.Time { return fixedNow },
	})
	require.NoError(t, err)
	h.svc = svc
	return h
}

func TestProcessBatchKeepsGoingAfterTransientFailure(t *testing.T) {
	first, second := timesheetRow(t, 0), timesheetRow(t, 0)
	h := newHarness(t, config.OutboxConfig{BatchSize: 2, MaxAttempts: 5}, first, second)
	h.topic.errs = []error{errors.New("unavailable"), nil}

	outcome, err := h.svc.processBatch(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, outcome.claimed)
	assert.Equal(t, 1, outcome.total(metrics.OutboxRetried))
	assert.Equal(t, 1, outcome.total(metrics.OutboxPublished))

	assert.Equal(t, []uuid.UUID{first.ID}, h.repo.failed)
	assert.Equal(t, []uuid.UUID{second.ID}, h.repo.published)
	assert.Equal(t, fixedNow, h.repo.publishedAt)
	assert.Empty(t, h.dlq.entries)
}

func TestProcessBatchIdle(t *testing.T) {
	h := newHarness(t, config.OutboxConfig{})
	outcome, err := h.svc.processBatch(context.Background())
	require.NoError(t, err)
	assert.Zero(t, outcome.claimed)
	assert.Equal(t, defaultBatchSize, h.repo.limit)
	assert.Equal(t, defaultMaxAttempts, h.repo.maxAttempts)
}

func TestPublishSendsStoredEnvelopeWithRoutingAttributes(t *testing.T) {
	row := timesheetRow(t, 0)
	h := newHarness(t, config.OutboxConfig{}, row)

	_, err := h.svc.processBatch(context.Background())
	require.NoError(t, err)

	assert.Equal(t, []string{"cs-decision-events"}, h.topics)
	require.Len(t, h.topic.sent, 1)
	msg := h.topic.sent[0]
	assert.Equal(t, []byte(row.Payload), msg.Data)
	assert.Equal(t, string(enums.EventTimesheetValidated), msg.Attributes["event_type"])
	assert.Equal(t, string(enums.AggregateTimesheet), msg.Attributes["aggregate_type"])
	assert.Equal(t, row.AggregateID.String(), msg.Attributes["aggregate_id"])
	assert.Equal(t, "evt-"+row.ID.String(), msg.Attributes["event_id"])
}

func TestUnresolvableRowIsDeadLettered(t *testing.T) {
	row := timesheetRow(t, 0)
	h := newHarness(t, config.OutboxConfig{}, row)
	h.resolver.err = registry.Permanent(errors.New("aggregate_id is empty"))

	outcome, err := h.svc.processBatch(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, outcome.total(metrics.OutboxDeadLettered))

	require.Len(t, h.dlq.entries, 1)
	entry := h.dlq.entries[0]
	assert.Equal(t, row.ID, entry.EventID)
	assert.Equal(t, enums.OutboxDLQReasonNonRetryable, entry.ErrorReason)
	assert.Equal(t, []byte(row.Payload), []byte(entry.Payload))
	assert.Equal(t, fixedNow, entry.FailedAt)
	require.NotNil(t, entry.ErrorMessage)
	assert.Contains(t, *entry.ErrorMessage, "aggregate_id is empty")
	assert.Equal(t, []uuid.UUID{row.ID}, h.repo.terminal)
	assert.Empty(t, h.topics, "nothing is published for an unresolvable row")
}

func TestMissingPublisherIsDeadLettered(t *testing.T) {
	h := newHarness(t, config.OutboxConfig{}, timesheetRow(t, 0))
	h.topic = nil

	_, err := h.svc.processBatch(context.Background())
	require.NoError(t, err)
	require.Len(t, h.dlq.entries, 1)
	assert.Equal(t, enums.OutboxDLQReasonNonRetryable, h.dlq.entries[0].ErrorReason)
	assert.Empty(t, h.repo.published)
}

func TestLastAttemptIsDeadLettered(t *testing.T) {
	row := timesheetRow(t, 1)
	h := newHarness(t, config.OutboxConfig{MaxAttempts: 2}, row)
	h.topic.errs = []error{errors.New("deadline exceeded")}

	_, err := h.svc.processBatch(context.Background())
	require.NoError(t, err)
	require.Len(t, h.dlq.entries, 1)
	assert.Equal(t, enums.OutboxDLQReasonMaxAttempts, h.dlq.entries[0].ErrorReason)
	assert.Contains(t, *h.dlq.entries[0].ErrorMessage, "gave up after 2 attempts")
	assert.Empty(t, h.repo.failed, "a dead-lettered row is not also marked failed")
}

func TestStorageFailureAbortsBatch(t *testing.T) {
	h := newHarness(t, config.OutboxConfig{}, timesheetRow(t, 0), timesheetRow(t, 0))
	h.repo.markErr = errors.New("connection reset")

	_, err := h.svc.processBatch(context.Background())
	assert.ErrorContains(t, err, "mark published")
	assert.Len(t, h.topic.sent, 1)
}

func TestRunStopsWithContext(t *testing.T) {
	h := newHarness(t, config.OutboxConfig{PollIntervalMS: 5})
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Millisecond)
	defer cancel()
	assert.ErrorIs(t, h.svc.Run(ctx), context.DeadlineExceeded)
}

func TestNewServiceValidates(t *testing.T) {
	_, err := NewService(ServiceParams{
		Config:     &config.Config{},
		Logger:     logger.New(logger.Options{ServiceName: "outbox-publisher-test", Output: io.Discard}),
		DB:         fakeDB{},
		PubSub:     fakePubSub{},
		Repository: &fakeRepo{},
		Registry:   &fakeResolver{},
	})
	assert.EqualError(t, err, "dlq repository is required")
}

func TestFailureBackoffIsCapped(t *testing.T) {
	h := newHarness(t, config.OutboxConfig{PollIntervalMS: 500})
	b := h.svc.failureBackoff()
	var last time.Duration
	for i := 0; i < 12; i++ {
		last, _ = b.Next()
		assert.LessOrEqual(t, last, maxBackoff)
	}
	assert.Greater(t, last, 5*time.Second)
}

func timesheetRow(t *testing.T, attempts int) models.OutboxEvent {
	t.Helper()
	id := uuid.New()
	data, err := json.Marshal(payloads.TimesheetValidatedEvent{TimesheetID: uuid.New(), Decision: enums.DecisionAutoApprove})
	require.NoError(t, err)
	envelope, err := json.Marshal(outbox.PayloadEnvelope{
		Version:    1,
		EventID:    "evt-" + id.String(),
		OccurredAt: fixedNow,
		Data:       data,
	})
	require.NoError(t, err)
	return models.OutboxEvent{
		ID:            id,
		EventType:     enums.EventTimesheetValidated,
		AggregateType: enums.AggregateTimesheet,
		AggregateID:   uuid.New(),
		Payload:       envelope,
		AttemptCount:  attempts,
	}
}

type fakeRepo struct {
	events      []models.OutboxEvent
	limit       int
	maxAttempts int
	published   []uuid.UUID
	publishedAt time.Time
	failed      []uuid.UUID
	terminal    []uuid.UUID
	markErr     error
}

func (f *fakeRepo) FetchUnpublishedForPublish(_ *gorm.DB, limit, maxAttempts int) ([]models.OutboxEvent, error) {
	f.limit, f.maxAttempts = limit, maxAttempts
	return f.events, nil
}

func (f *fakeRepo) MarkPublishedTx(_ *gorm.DB, id uuid.UUID, at time.Time) error {
	if f.markErr != nil {
		return f.markErr
	}
	f.published = append(f.published, id)
	f.publishedAt = at
	return nil
}

func (f *fakeRepo) MarkFailedTx(_ *gorm.DB, id uuid.UUID, _ error) error {
	f.failed = append(f.failed, id)
	return nil
}

func (f *fakeRepo) MarkTerminalTx(_ *gorm.DB, id uuid.UUID, _ time.Time, _ error) error {
	f.terminal = append(f.terminal, id)
	return nil
}

type fakeDLQ struct {
	entries []models.OutboxDLQ
}

func (f *fakeDLQ) InsertTx(_ *gorm.DB, entry models.OutboxDLQ) error {
	f.entries = append(f.entries, entry)
	return nil
}

// fakeResolver routes every row to one topic, echoing the envelope event id.
type fakeResolver struct {
	topic string
	err   error
}

func (f *fakeResolver) Resolve(event models.OutboxEvent) (*registry.ResolvedEvent, error) {
	if f.err != nil {
		return nil, f.err
	}
	var envelope outbox.PayloadEnvelope
	if err := json.Unmarshal(event.Payload, &envelope); err != nil {
		return nil, registry.Permanent(err)
	}
	return &registry.ResolvedEvent{
		Route:    registry.Route{EventType: event.EventType, AggregateType: event.AggregateType, Topic: f.topic},
		Envelope: envelope,
	}, nil
}

type fakeTopic struct {
	errs []error
	sent []*gcppubsub.Message
}

func (f *fakeTopic) Publish(_ context.Context, msg *gcppubsub.Message) publishResult {
	f.sent = append(f.sent, msg)
	var err error
	if len(f.errs) > 0 {
		err, f.errs = f.errs[0], f.errs[1:]
	}
	return fakeResult{err: err}
}

type fakeResult struct{ err error }

func (r fakeResult) Get(context.Context) (string, error) { return "server-id", r.err }

type fakeDB struct{}

func (fakeDB) Ping(context.Context) error { return nil }

func (fakeDB) WithTx(_ context.Context, fn func(*gorm.DB) error) error { return fn(nil) }

type fakePubSub struct{}

func (fakePubSub) Ping(context.Context) error { return nil }

func (fakePubSub) Publisher(string) *gcppubsub.Publisher { return nil }
