package worker

import (
	"context"
	"encoding/json"

	"github.com/hibiken/asynq"

	"musobuddy/core/errors"
	"musobuddy/core/logger"
	"musobuddy/core/tasks"
	"musobuddy/modules/calendarsync/repository"
	"musobuddy/modules/calendarsync/service"
)

// Worker executes the calendar background tasks: on-demand sync passes,
// channel renewal sweeps and the periodic all-users pass.
type Worker struct {
	sync         service.SyncService
	webhooks     service.WebhookService
	integrations repository.IntegrationRepository
	states       repository.OAuthStateRepository
	enqueuer     service.TaskEnqueuer
}

func New(
	syncSvc service.SyncService,
	webhooks service.WebhookService,
	integrations repository.IntegrationRepository,
	states repository.OAuthStateRepository,
	enqueuer service.TaskEnqueuer,
) *Worker {
	return &Worker{
		sync:         syncSvc,
		webhooks:     webhooks,
		integrations: integrations,
		states:       states,
		enqueuer:     enqueuer,
	}
}

// Register mounts the handlers on the asynq mux.
func (w *Worker) Register(mux *asynq.ServeMux) {
	mux.HandleFunc(tasks.TypeCalendarSync, w.HandleCalendarSync)
	mux.HandleFunc(tasks.TypeRenewChannels, w.HandleRenewChannels)
	mux.HandleFunc(tasks.TypePeriodicSync, w.HandlePeriodicSync)
}

// HandleCalendarSync runs one pass for one user. A coalesced trigger is
// success: the in-flight pass picks up the same delta.
func (w *Worker) HandleCalendarSync(ctx context.Context, t *asynq.Task) error {
	var payload tasks.CalendarSyncPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		logger.Error("Worker:HandleCalendarSync:Payload:Error", "error", err)
		return err
	}

	logger.Info("Worker:HandleCalendarSync:Start", "user_id", payload.UserID, "reason", payload.Reason)
	result, err := w.sync.RunSync(ctx, payload.UserID, payload.Direction)
	if err != nil {
		if errors.CodeOf(err) == errors.ErrSyncInProgress {
			logger.Info("Worker:HandleCalendarSync:Coalesced", "user_id", payload.UserID)
			return nil
		}
		logger.Error("Worker:HandleCalendarSync:Error", "error", err, "user_id", payload.UserID, "reason", payload.Reason)
		return err
	}

	logger.Info("Worker:HandleCalendarSync:Done",
		"user_id", payload.UserID, "reason", payload.Reason,
		"exported", result.Exported, "imported", result.Imported, "deleted", result.Deleted,
		"item_errors", len(result.Errors))
	return nil
}

// HandleRenewChannels sweeps expiring push channels.
func (w *Worker) HandleRenewChannels(ctx context.Context, _ *asynq.Task) error {
	return w.webhooks.RenewExpiring(ctx)
}

// HandlePeriodicSync fans out one sync task per sync-enabled user. The
// safety net behind webhooks; also the moment to drop stale oauth states.
// One user's failure never blocks the rest.
func (w *Worker) HandlePeriodicSync(ctx context.Context, _ *asynq.Task) error {
	if err := w.states.CleanupExpired(ctx); err != nil {
		logger.Warn("Worker:HandlePeriodicSync:StateCleanup:Error", "error", err)
	}

	integs, err := w.integrations.ListSyncEnabled(ctx)
	if err != nil {
		logger.Error("Worker:HandlePeriodicSync:List:Error", "error", err)
		return err
	}

	var failed int
	for i := range integs {
		userID := integs[i].UserID
		task, err := tasks.NewCalendarSyncTask(tasks.CalendarSyncPayload{
			UserID:    userID,
			Direction: "",
			Reason:    tasks.ReasonPeriodic,
		})
		if err == nil {
			err = w.enqueuer.Enqueue(task)
		}
		if err != nil {
			failed++
			logger.Error("Worker:HandlePeriodicSync:User:Error", "error", err, "user_id", userID)
		}
	}

	logger.Info("Worker:HandlePeriodicSync:Done", "users", len(integs), "failed", failed)
	return nil
}
