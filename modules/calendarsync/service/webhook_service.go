package service

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/hibiken/asynq"

	"musobuddy/core/cache"
	"musobuddy/core/config"
	"musobuddy/core/constants"
	"musobuddy/core/errors"
	"musobuddy/core/logger"
	"musobuddy/core/tasks"
	"musobuddy/core/utils"
	"musobuddy/modules/calendarsync/client"
	"musobuddy/modules/calendarsync/entity"
	"musobuddy/modules/calendarsync/repository"
)

// Provider resource states on webhook notifications.
const (
	resourceStateSync   = "sync"   // initial channel confirmation
	resourceStateExists = "exists" // something changed, go re-check
)

// WebhookService registers, renews and validates push-notification
// channels, and turns notifications into incremental sync passes.
type WebhookService interface {
	Register(ctx context.Context, userID uuid.UUID) error
	HandleNotification(ctx context.Context, channelID, resourceState, token string) error
	RenewExpiring(ctx context.Context) error
}

// TaskEnqueuer is the slice of the task client the services need.
type TaskEnqueuer interface {
	Enqueue(task *asynq.Task, opts ...asynq.Option) error
}

type webhookService struct {
	integrations repository.IntegrationRepository
	client       client.CalendarClient
	cache        cache.Cache
	tasks        TaskEnqueuer
}

func NewWebhookService(
	integrations repository.IntegrationRepository,
	cal client.CalendarClient,
	c cache.Cache,
	taskClient TaskEnqueuer,
) WebhookService {
	return &webhookService{
		integrations: integrations,
		client:       cal,
		cache:        c,
		tasks:        taskClient,
	}
}

// Register opens a fresh push channel for the user's calendar and stores
// the channel metadata on the integration row.
func (s *webhookService) Register(ctx context.Context, userID uuid.UUID) error {
	cfg, ok := config.GetSafe()
	if !ok {
		return errors.NewAppError(errors.ErrInternalServer, "config not initialized", nil)
	}
	if cfg.GoogleAPI.WebhookCallbackURL == "" {
		logger.Info("WebhookService:Register:Skipped", "reason", "no webhook callback URL configured")
		return nil
	}

	integ, err := s.integrations.GetByUserID(ctx, userID)
	if err != nil {
		return errors.NewAppError(errors.ErrStorageUnavailable, "failed to load integration", err)
	}
	if integ == nil {
		return errors.NewAppError(errors.ErrNotConnected, "no calendar connected", nil)
	}

	channelID := utils.GenerateID()
	watch, err := s.client.Watch(ctx, userID, integ.CalendarID, channelID,
		cfg.GoogleAPI.WebhookCallbackURL, cfg.GoogleAPI.WebhookToken)
	if err != nil {
		return err
	}

	if err := s.integrations.UpdateWebhookChannel(ctx, userID, watch.ChannelID, watch.ResourceID, watch.ExpiresAt); err != nil {
		return errors.NewAppError(errors.ErrStorageUnavailable, "failed to persist channel", err)
	}

	// Read-through cache for the notification hot path; the DB row stays
	// authoritative.
	if err := s.cache.SetWebhookChannelUser(ctx, watch.ChannelID, userID.String()); err != nil {
		logger.Warn("WebhookService:Register:Cache:Error", "error", err, "channel_id", watch.ChannelID)
	}

	logger.Info("WebhookService:Register:Success",
		"user_id", userID,
		"channel_id", watch.ChannelID,
		"expires_at", watch.ExpiresAt,
	)
	return nil
}

// HandleNotification verifies the shared token first and unconditionally;
// a mismatch has no side effects and never triggers a sync. The body of a
// notification is empty, it is purely a "go re-check" signal.
func (s *webhookService) HandleNotification(ctx context.Context, channelID, resourceState, token string) error {
	cfg, ok := config.GetSafe()
	if !ok {
		return errors.NewAppError(errors.ErrInternalServer, "config not initialized", nil)
	}
	if cfg.GoogleAPI.WebhookToken == "" || token != cfg.GoogleAPI.WebhookToken {
		return errors.NewAppError(errors.ErrWebhookUnverified, "webhook token mismatch", nil)
	}

	if resourceState != resourceStateExists {
		// Initial "sync" confirmation or anything else: acknowledged,
		// nothing to do.
		return nil
	}

	userID, err := s.resolveChannelUser(ctx, channelID)
	if err != nil {
		return err
	}

	payload := tasks.CalendarSyncPayload{
		UserID:    userID,
		Direction: entity.DirectionImport,
		Reason:    tasks.ReasonWebhook,
	}
	task, err := tasks.NewCalendarSyncTask(payload)
	if err != nil {
		return errors.NewAppError(errors.ErrInternalServer, "failed to build sync task", err)
	}
	if err := s.tasks.Enqueue(task); err != nil {
		return errors.NewAppError(errors.ErrInternalServer, "failed to enqueue sync task", err)
	}

	logger.Info("WebhookService:HandleNotification:Enqueued", "channel_id", channelID, "user_id", userID)
	return nil
}

func (s *webhookService) resolveChannelUser(ctx context.Context, channelID string) (uuid.UUID, error) {
	if cached, err := s.cache.GetWebhookChannelUser(ctx, channelID); err == nil && cached != "" {
		if userID, err := uuid.Parse(cached); err == nil {
			return userID, nil
		}
	}

	integ, err := s.integrations.GetByChannelID(ctx, channelID)
	if err != nil {
		return uuid.Nil, errors.NewAppError(errors.ErrStorageUnavailable, "failed to resolve channel", err)
	}
	if integ == nil {
		// Stale channel from a disconnected or re-registered integration.
		return uuid.Nil, errors.NewAppError(errors.ErrChannelNotFound, "unknown webhook channel", nil)
	}

	if err := s.cache.SetWebhookChannelUser(ctx, channelID, integ.UserID.String()); err != nil {
		logger.Warn("WebhookService:ResolveChannel:Cache:Error", "error", err, "channel_id", channelID)
	}
	return integ.UserID, nil
}

// RenewExpiring proactively re-registers every channel expiring within the
// safety margin. A lapsed channel silently stops all real-time sync with
// no error signal, so renewal happens before expiry, never after. One
// user's failure does not block the rest of the sweep.
func (s *webhookService) RenewExpiring(ctx context.Context) error {
	cutoff := time.Now().Add(constants.ChannelRenewalMargin)
	integs, err := s.integrations.ListExpiringChannels(ctx, cutoff)
	if err != nil {
		return errors.NewAppError(errors.ErrStorageUnavailable, "failed to list expiring channels", err)
	}

	logger.Info("WebhookService:RenewExpiring:Start", "count", len(integs), "cutoff", cutoff)

	for _, integ := range integs {
		if integ.ChannelID != nil && integ.ChannelResourceID != nil {
			// Best effort; an already-dead channel returns an error we
			// do not care about.
			if err := s.client.StopChannel(ctx, integ.UserID, *integ.ChannelID, *integ.ChannelResourceID); err != nil {
				logger.Debug("WebhookService:RenewExpiring:Stop:Error", "error", err, "user_id", integ.UserID)
			}
			if err := s.cache.DeleteWebhookChannel(ctx, *integ.ChannelID); err != nil {
				logger.Debug("WebhookService:RenewExpiring:CacheDel:Error", "error", err)
			}
		}

		if err := s.Register(ctx, integ.UserID); err != nil {
			logger.Error("WebhookService:RenewExpiring:Register:Error", "error", err, "user_id", integ.UserID)
			continue
		}
	}
	return nil
}
