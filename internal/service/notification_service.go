package service

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/facultydesk/substitute-api/internal/models"
	"github.com/facultydesk/substitute-api/pkg/config"
	"github.com/facultydesk/substitute-api/pkg/jobs"
)

// Dispatcher is the fire-and-forget notification boundary. Implementations
// must never block the caller on delivery and must swallow their own
// failures; the returned error exists only so callers can log it.
type Dispatcher interface {
	Dispatch(ctx context.Context, event models.NotificationEvent) error
}

// NopDispatcher drops every event. Used in tests and when push is disabled.
type NopDispatcher struct{}

// Dispatch implements Dispatcher.
func (NopDispatcher) Dispatch(context.Context, models.NotificationEvent) error { return nil }

const expoPushTokenPrefix = "ExponentPushToken"

type tokenStore interface {
	TokensForUser(ctx context.Context, userID string) ([]string, error)
	TokensForAllExcept(ctx context.Context, excludeUserID string) ([]string, error)
}

// PushDispatcher fans lifecycle events out to device push tokens. Messages
// are written to a Redis outbox list in Expo push format; the delivery
// worker that talks to Expo's API consumes the list out of process.
// Token resolution and the Redis write run on an in-process worker queue so
// HTTP handlers never wait on them.
type PushDispatcher struct {
	tokens tokenStore
	client *redis.Client
	cfg    config.NotificationsConfig
	logger *zap.Logger
	queue  *jobs.Queue
}

// NewPushDispatcher constructs the dispatcher. Call Start before use.
func NewPushDispatcher(tokens tokenStore, client *redis.Client, cfg config.NotificationsConfig, logger *zap.Logger) *PushDispatcher {
	if logger == nil {
		logger = zap.NewNop()
	}
	d := &PushDispatcher{
		tokens: tokens,
		client: client,
		cfg:    cfg,
		logger: logger,
	}
	d.queue = jobs.NewQueue("notifications", d.process, jobs.QueueConfig{
		Workers: cfg.Workers,
		Logger:  logger,
	})
	return d
}

// Start launches the dispatch workers.
func (d *PushDispatcher) Start(ctx context.Context) {
	d.queue.Start(ctx)
}

// Stop drains the workers.
func (d *PushDispatcher) Stop() {
	d.queue.Stop()
}

// Dispatch implements Dispatcher by queueing the event for async fan-out.
func (d *PushDispatcher) Dispatch(_ context.Context, event models.NotificationEvent) error {
	if !d.cfg.Enabled {
		return nil
	}
	d.queue.Enqueue(jobs.Job{
		ID:      uuid.NewString(),
		Type:    string(event.Type),
		Payload: event,
	})
	return nil
}

func (d *PushDispatcher) process(ctx context.Context, job jobs.Job) error {
	event, ok := job.Payload.(models.NotificationEvent)
	if !ok {
		return fmt.Errorf("unexpected payload type %T", job.Payload)
	}

	ctx, cancel := context.WithTimeout(ctx, d.cfg.DispatchTimeout)
	defer cancel()

	var (
		tokens []string
		err    error
	)
	if event.TargetUserID != "" {
		tokens, err = d.tokens.TokensForUser(ctx, event.TargetUserID)
	} else {
		tokens, err = d.tokens.TokensForAllExcept(ctx, event.ExcludeUserID)
	}
	if err != nil {
		return fmt.Errorf("resolve push tokens: %w", err)
	}

	queued := 0
	for _, token := range tokens {
		if !strings.HasPrefix(token, expoPushTokenPrefix) {
			d.logger.Debug("skipping invalid push token", zap.String("token_prefix", prefixOf(token)))
			continue
		}
		message := models.PushMessage{
			To:        token,
			Title:     event.Title,
			Body:      event.Body,
			Data:      event.Data,
			Sound:     "default",
			Badge:     1,
			ChannelID: "substitute-requests",
		}
		encoded, err := json.Marshal(message)
		if err != nil {
			return fmt.Errorf("encode push message: %w", err)
		}
		if err := d.client.LPush(ctx, d.cfg.OutboxKey, encoded).Err(); err != nil {
			return fmt.Errorf("enqueue push message: %w", err)
		}
		queued++
	}

	d.logger.Info("push notifications queued",
		zap.String("event", string(event.Type)),
		zap.Int("devices", queued),
	)
	return nil
}

func prefixOf(token string) string {
	if len(token) > 12 {
		return token[:12]
	}
	return token
}
