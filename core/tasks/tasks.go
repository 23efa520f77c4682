package tasks

import (
	"encoding/json"

	"github.com/google/uuid"
	"github.com/hibiken/asynq"

	"musobuddy/core/config"
)

// Task type names processed by the background worker.
const (
	TypeCalendarSync  = "calendar:sync"
	TypeRenewChannels = "calendar:renew_channels"
	TypePeriodicSync  = "calendar:periodic_sync"
)

// Sync trigger reasons, carried for logging only.
const (
	ReasonInitial  = "initial"
	ReasonWebhook  = "webhook"
	ReasonManual   = "manual"
	ReasonPeriodic = "periodic"
)

// CalendarSyncPayload asks the worker to run one sync pass for one user.
type CalendarSyncPayload struct {
	UserID    uuid.UUID `json:"user_id"`
	Direction string    `json:"direction"` // export | import | bidirectional
	Reason    string    `json:"reason"`
}

func NewCalendarSyncTask(payload CalendarSyncPayload) (*asynq.Task, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	// MaxRetry 0: a failed pass is picked up by the periodic safety net,
	// retried passes would race the per-user lock for no benefit.
	return asynq.NewTask(TypeCalendarSync, data, asynq.MaxRetry(0)), nil
}

func NewRenewChannelsTask() *asynq.Task {
	return asynq.NewTask(TypeRenewChannels, nil)
}

func NewPeriodicSyncTask() *asynq.Task {
	return asynq.NewTask(TypePeriodicSync, nil)
}

// Client wraps the asynq client so modules enqueue without knowing redis.
type Client struct {
	inner *asynq.Client
}

func NewClient(cfg config.RedisConfig) *Client {
	return &Client{
		inner: asynq.NewClient(asynq.RedisClientOpt{
			Addr:     cfg.Addr,
			Password: cfg.Password,
			DB:       cfg.DB,
		}),
	}
}

func (c *Client) Enqueue(task *asynq.Task, opts ...asynq.Option) error {
	_, err := c.inner.Enqueue(task, opts...)
	return err
}

func (c *Client) Close() error {
	return c.inner.Close()
}
