package service

import (
	"context"
	"time"

	"github.com/google/uuid"

	"musobuddy/core/cache"
	"musobuddy/core/constants"
	"musobuddy/core/errors"
	"musobuddy/core/logger"
	"musobuddy/core/tasks"
	"musobuddy/core/utils"
	"musobuddy/modules/calendarsync/client"
	"musobuddy/modules/calendarsync/dto"
	"musobuddy/modules/calendarsync/entity"
	"musobuddy/modules/calendarsync/repository"
)

// IntegrationService handles the connection lifecycle: OAuth consent,
// callback, status, preferences and disconnect.
type IntegrationService interface {
	ConnectURL(ctx context.Context, userID uuid.UUID) (string, error)
	HandleCallback(ctx context.Context, state, code string) error
	Status(ctx context.Context, userID uuid.UUID) (*dto.StatusResponse, error)
	UpdateSettings(ctx context.Context, userID uuid.UUID, req *dto.UpdateSettingsRequest) (*entity.Integration, error)
	Disconnect(ctx context.Context, userID uuid.UUID) error
}

type integrationService struct {
	integrations repository.IntegrationRepository
	states       repository.OAuthStateRepository
	client       client.CalendarClient
	webhooks     WebhookService
	cache        cache.Cache
	tasks        TaskEnqueuer
}

func NewIntegrationService(
	integrations repository.IntegrationRepository,
	states repository.OAuthStateRepository,
	cal client.CalendarClient,
	webhooks WebhookService,
	c cache.Cache,
	taskClient TaskEnqueuer,
) IntegrationService {
	return &integrationService{
		integrations: integrations,
		states:       states,
		client:       cal,
		webhooks:     webhooks,
		cache:        c,
		tasks:        taskClient,
	}
}

// ConnectURL mints a one-time state token bound to the user and returns
// the provider consent URL.
func (s *integrationService) ConnectURL(ctx context.Context, userID uuid.UUID) (string, error) {
	state := utils.GenerateRandomString(32)
	expiresAt := time.Now().Add(constants.OAuthStateLifetime)
	if err := s.states.Save(ctx, state, userID, expiresAt); err != nil {
		return "", errors.NewAppError(errors.ErrStorageUnavailable, "failed to persist oauth state", err)
	}

	authURL, err := s.client.AuthorizationURL(state)
	if err != nil {
		return "", err
	}

	logger.Info("IntegrationService:ConnectURL:Issued", "user_id", userID)
	return authURL, nil
}

// HandleCallback consumes the state token, exchanges the code for tokens
// and provisions the integration. The first sync and the webhook channel
// are kicked off here so a fresh connection is live without further input.
func (s *integrationService) HandleCallback(ctx context.Context, state, code string) error {
	stored, err := s.states.Get(ctx, state)
	if err != nil {
		return errors.NewAppError(errors.ErrStorageUnavailable, "failed to load oauth state", err)
	}
	if stored == nil {
		return errors.NewAppError(errors.ErrUnauthorized, "unknown or expired oauth state", nil)
	}
	// One-time use, even if the exchange below fails.
	if err := s.states.Delete(ctx, state); err != nil {
		logger.Warn("IntegrationService:HandleCallback:StateDelete:Error", "error", err)
	}

	tokens, err := s.client.ExchangeCode(ctx, code)
	if err != nil {
		logger.Error("IntegrationService:HandleCallback:Exchange:Error", "error", err, "user_id", stored.UserID)
		return err
	}

	integ := &entity.Integration{
		UserID:           stored.UserID,
		Provider:         "google",
		CalendarID:       "primary",
		RefreshToken:     tokens.RefreshToken,
		AccessToken:      tokens.AccessToken,
		TokenExpiresAt:   tokens.ExpiresAt,
		SyncEnabled:      true,
		AutoSyncBookings: true,
		AutoImportEvents: true,
		SyncDirection:    entity.DirectionBidirectional,
	}
	if _, err := s.integrations.Save(ctx, integ); err != nil {
		return errors.NewAppError(errors.ErrStorageUnavailable, "failed to save integration", err)
	}

	if err := s.webhooks.Register(ctx, stored.UserID); err != nil {
		// Sync still works via the periodic pass; channel registration
		// is retried by the renewal sweep.
		logger.Warn("IntegrationService:HandleCallback:Webhook:Error", "error", err, "user_id", stored.UserID)
	}

	task, err := tasks.NewCalendarSyncTask(tasks.CalendarSyncPayload{
		UserID:    stored.UserID,
		Direction: entity.DirectionBidirectional,
		Reason:    tasks.ReasonInitial,
	})
	if err == nil {
		err = s.tasks.Enqueue(task)
	}
	if err != nil {
		logger.Warn("IntegrationService:HandleCallback:EnqueueSync:Error", "error", err, "user_id", stored.UserID)
	}

	logger.Info("IntegrationService:HandleCallback:Connected", "user_id", stored.UserID)
	return nil
}

func (s *integrationService) Status(ctx context.Context, userID uuid.UUID) (*dto.StatusResponse, error) {
	integ, err := s.integrations.GetByUserID(ctx, userID)
	if err != nil {
		return nil, errors.NewAppError(errors.ErrStorageUnavailable, "failed to load integration", err)
	}
	if integ == nil {
		return &dto.StatusResponse{Connected: false}, nil
	}

	webhookActive := integ.ChannelID != nil &&
		integ.ChannelExpiresAt != nil && integ.ChannelExpiresAt.After(time.Now())

	return &dto.StatusResponse{
		Connected:        true,
		Provider:         integ.Provider,
		CalendarID:       integ.CalendarID,
		SyncEnabled:      integ.SyncEnabled,
		NeedsReconnect:   integ.NeedsReconnect,
		AutoSyncBookings: integ.AutoSyncBookings,
		AutoImportEvents: integ.AutoImportEvents,
		SyncDirection:    integ.SyncDirection,
		LastSyncedAt:     integ.LastSyncedAt,
		WebhookActive:    webhookActive,
	}, nil
}

func (s *integrationService) UpdateSettings(ctx context.Context, userID uuid.UUID, req *dto.UpdateSettingsRequest) (*entity.Integration, error) {
	integ, err := s.integrations.GetByUserID(ctx, userID)
	if err != nil {
		return nil, errors.NewAppError(errors.ErrStorageUnavailable, "failed to load integration", err)
	}
	if integ == nil {
		return nil, errors.NewAppError(errors.ErrNotConnected, "no calendar connected", nil)
	}

	if req.SyncEnabled != nil {
		integ.SyncEnabled = *req.SyncEnabled
	}
	if req.AutoSyncBookings != nil {
		integ.AutoSyncBookings = *req.AutoSyncBookings
	}
	if req.AutoImportEvents != nil {
		integ.AutoImportEvents = *req.AutoImportEvents
	}
	if req.SyncDirection != nil {
		switch *req.SyncDirection {
		case entity.DirectionExport, entity.DirectionImport, entity.DirectionBidirectional:
			integ.SyncDirection = *req.SyncDirection
		default:
			return nil, errors.NewAppError(errors.ErrInvalidInput, "invalid sync direction", nil)
		}
	}

	if err := s.integrations.UpdateSettings(ctx, integ); err != nil {
		return nil, errors.NewAppError(errors.ErrStorageUnavailable, "failed to update settings", err)
	}

	logger.Info("IntegrationService:UpdateSettings:Updated", "user_id", userID, "direction", integ.SyncDirection)
	return integ, nil
}

// Disconnect tears the connection down: stop the push channel, drop the
// cached channel lookup, then delete the integration and its mappings.
// External events created by past exports are left in place.
func (s *integrationService) Disconnect(ctx context.Context, userID uuid.UUID) error {
	integ, err := s.integrations.GetByUserID(ctx, userID)
	if err != nil {
		return errors.NewAppError(errors.ErrStorageUnavailable, "failed to load integration", err)
	}
	if integ == nil {
		return errors.NewAppError(errors.ErrNotConnected, "no calendar connected", nil)
	}

	if integ.ChannelID != nil && integ.ChannelResourceID != nil {
		if err := s.client.StopChannel(ctx, userID, *integ.ChannelID, *integ.ChannelResourceID); err != nil {
			logger.Warn("IntegrationService:Disconnect:StopChannel:Error", "error", err, "user_id", userID)
		}
		if err := s.cache.DeleteWebhookChannel(ctx, *integ.ChannelID); err != nil {
			logger.Warn("IntegrationService:Disconnect:CacheDelete:Error", "error", err, "user_id", userID)
		}
	}

	if err := s.integrations.Delete(ctx, userID); err != nil {
		return errors.NewAppError(errors.ErrStorageUnavailable, "failed to delete integration", err)
	}

	logger.Info("IntegrationService:Disconnect:Done", "user_id", userID)
	return nil
}
