package controller

import (
	"strings"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	coreController "musobuddy/core/controller"
	"musobuddy/core/errors"
	"musobuddy/core/middleware"
	"musobuddy/core/utils"
	"musobuddy/modules/calendarsync/dto"
	"musobuddy/modules/calendarsync/entity"
	"musobuddy/modules/calendarsync/service"
)

// Push notification headers set by the provider.
const (
	headerChannelID     = "X-Goog-Channel-ID"
	headerResourceState = "X-Goog-Resource-State"
	headerChannelToken  = "X-Goog-Channel-Token"
)

type SyncController struct {
	coreController.BaseController
	integrations service.IntegrationService
	sync         service.SyncService
	webhooks     service.WebhookService
}

func NewSyncController(
	integrations service.IntegrationService,
	syncSvc service.SyncService,
	webhooks service.WebhookService,
) *SyncController {
	return &SyncController{
		BaseController: coreController.NewBaseController(),
		integrations:   integrations,
		sync:           syncSvc,
		webhooks:       webhooks,
	}
}

// Connect starts the OAuth consent flow and returns the provider URL.
// The route is public because the browser lands here from a redirect;
// the user is identified by a token query param or bearer header.
// GET /api/v1/public/calendar/google/connect
func (c *SyncController) Connect(ctx echo.Context) error {
	userID, err := c.identify(ctx)
	if err != nil {
		return c.ErrorResponse(ctx, err)
	}

	authURL, err := c.integrations.ConnectURL(ctx.Request().Context(), userID)
	if err != nil {
		return c.ErrorResponse(ctx, err)
	}
	return c.SuccessResponse(ctx, dto.ConnectResponse{AuthURL: authURL}, "Success")
}

// Callback completes the consent flow. Google identifies the user via
// the state token minted in Connect, not via our session.
// GET /api/v1/public/calendar/google/callback
func (c *SyncController) Callback(ctx echo.Context) error {
	if errParam := ctx.QueryParam("error"); errParam != "" {
		return c.ErrorResponse(ctx, errors.NewAppError(errors.ErrUnauthorized, "consent was denied: "+errParam, nil))
	}

	state := ctx.QueryParam("state")
	code := ctx.QueryParam("code")
	if state == "" || code == "" {
		return c.ErrorResponse(ctx, errors.NewAppError(errors.ErrInvalidInput, "missing state or code", nil))
	}

	if err := c.integrations.HandleCallback(ctx.Request().Context(), state, code); err != nil {
		return c.ErrorResponse(ctx, err)
	}
	return c.SuccessResponse(ctx, nil, "Calendar connected")
}

// Webhook receives push notifications. Kept fast: verification plus a
// task enqueue, never a sync pass inline.
// POST /api/v1/public/calendar/google/webhook
func (c *SyncController) Webhook(ctx echo.Context) error {
	channelID := ctx.Request().Header.Get(headerChannelID)
	resourceState := ctx.Request().Header.Get(headerResourceState)
	token := ctx.Request().Header.Get(headerChannelToken)

	if err := c.webhooks.HandleNotification(ctx.Request().Context(), channelID, resourceState, token); err != nil {
		return c.ErrorResponse(ctx, err)
	}
	return c.SuccessResponse(ctx, nil, "Success")
}

// Status reports the connection state for the current user.
// GET /api/v1/private/calendar/status
func (c *SyncController) Status(ctx echo.Context) error {
	userID, ok := ctx.Get(middleware.ContextKeyUserID).(uuid.UUID)
	if !ok {
		return c.ErrorResponse(ctx, errors.NewAppError(errors.ErrUnauthorized, "invalid user", nil))
	}

	status, err := c.integrations.Status(ctx.Request().Context(), userID)
	if err != nil {
		return c.ErrorResponse(ctx, err)
	}
	return c.SuccessResponse(ctx, status, "Success")
}

// UpdateSettings applies partial preference changes.
// PATCH /api/v1/private/calendar/settings
func (c *SyncController) UpdateSettings(ctx echo.Context) error {
	userID, ok := ctx.Get(middleware.ContextKeyUserID).(uuid.UUID)
	if !ok {
		return c.ErrorResponse(ctx, errors.NewAppError(errors.ErrUnauthorized, "invalid user", nil))
	}

	var req dto.UpdateSettingsRequest
	if err := ctx.Bind(&req); err != nil {
		return c.ErrorResponse(ctx, errors.NewAppError(errors.ErrInvalidRequestData, "invalid request body", err))
	}

	integ, err := c.integrations.UpdateSettings(ctx.Request().Context(), userID, &req)
	if err != nil {
		return c.ErrorResponse(ctx, err)
	}
	return c.SuccessResponse(ctx, integ, "Settings updated")
}

// TriggerSync runs a manual pass inline and returns its result.
// POST /api/v1/private/calendar/sync
func (c *SyncController) TriggerSync(ctx echo.Context) error {
	userID, ok := ctx.Get(middleware.ContextKeyUserID).(uuid.UUID)
	if !ok {
		return c.ErrorResponse(ctx, errors.NewAppError(errors.ErrUnauthorized, "invalid user", nil))
	}

	var req dto.SyncRequest
	if err := ctx.Bind(&req); err != nil {
		return c.ErrorResponse(ctx, errors.NewAppError(errors.ErrInvalidRequestData, "invalid request body", err))
	}

	direction := ""
	if req.Direction != nil {
		switch *req.Direction {
		case entity.DirectionExport, entity.DirectionImport, entity.DirectionBidirectional:
			direction = *req.Direction
		default:
			return c.ErrorResponse(ctx, errors.NewAppError(errors.ErrInvalidInput, "invalid sync direction", nil))
		}
	}

	result, err := c.sync.RunSync(ctx.Request().Context(), userID, direction)
	if err != nil {
		return c.ErrorResponse(ctx, err)
	}
	return c.SuccessResponse(ctx, dto.SyncResponse{
		Direction: result.Direction,
		Exported:  result.Exported,
		Imported:  result.Imported,
		Deleted:   result.Deleted,
		Errors:    result.Errors,
	}, "Sync completed")
}

// Disconnect removes the integration for the current user.
// DELETE /api/v1/private/calendar/disconnect
func (c *SyncController) Disconnect(ctx echo.Context) error {
	userID, ok := ctx.Get(middleware.ContextKeyUserID).(uuid.UUID)
	if !ok {
		return c.ErrorResponse(ctx, errors.NewAppError(errors.ErrUnauthorized, "invalid user", nil))
	}

	if err := c.integrations.Disconnect(ctx.Request().Context(), userID); err != nil {
		return c.ErrorResponse(ctx, err)
	}
	return c.SuccessResponse(ctx, nil, "Calendar disconnected")
}

// identify resolves the user from a token query param or bearer header.
func (c *SyncController) identify(ctx echo.Context) (uuid.UUID, error) {
	raw := ctx.QueryParam("token")
	if raw == "" {
		auth := ctx.Request().Header.Get("Authorization")
		raw = strings.TrimPrefix(auth, "Bearer ")
	}
	if raw == "" {
		return uuid.Nil, errors.NewAppError(errors.ErrMissingAuthorizationHeader, "missing token", nil)
	}

	data, err := utils.ValidateAndParseToken(raw)
	if err != nil {
		return uuid.Nil, errors.NewAppError(errors.ErrUnauthorized, "invalid token", err)
	}
	return data.UserID, nil
}
