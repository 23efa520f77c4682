package calendarsync

import (
	"github.com/labstack/echo/v4"

	"musobuddy/core/cache"
	"musobuddy/core/config"
	"musobuddy/core/database"
	"musobuddy/core/middleware"
	"musobuddy/core/tasks"
	"musobuddy/modules/calendarsync/client"
	"musobuddy/modules/calendarsync/controller"
	"musobuddy/modules/calendarsync/repository"
	"musobuddy/modules/calendarsync/router"
	"musobuddy/modules/calendarsync/service"
	"musobuddy/modules/calendarsync/worker"
)

// Module bundles the sync engine's services so the server can mount both
// the HTTP surface and the background task handlers.
type Module struct {
	Integrations service.IntegrationService
	Sync         service.SyncService
	Webhooks     service.WebhookService
	Worker       *worker.Worker
}

// Init wires the calendar sync module. The booking service doubles as the
// engine's booking store and receives the deletion observer hookup in
// the server, not here, to keep module init order flat.
func Init(
	e *echo.Echo,
	db database.IDatabase,
	c cache.Cache,
	taskClient *tasks.Client,
	bookings service.BookingStore,
	cfg *config.Config,
) *Module {
	integRepo := repository.NewIntegrationRepository(db)
	mappingRepo := repository.NewMappingRepository(db)
	stateRepo := repository.NewOAuthStateRepository(db)

	cal := client.NewGoogleClient(integRepo)
	translator := service.NewTranslator(cfg.Sync.Timezone)

	syncSvc := service.NewSyncService(integRepo, mappingRepo, bookings, cal, translator)
	webhookSvc := service.NewWebhookService(integRepo, cal, c, taskClient)
	integSvc := service.NewIntegrationService(integRepo, stateRepo, cal, webhookSvc, c, taskClient)

	ctrl := controller.NewSyncController(integSvc, syncSvc, webhookSvc)

	mw := middleware.NewMiddleware(c)
	router.NewSyncRouter(ctrl).Setup(e, mw)

	return &Module{
		Integrations: integSvc,
		Sync:         syncSvc,
		Webhooks:     webhookSvc,
		Worker:       worker.New(syncSvc, webhookSvc, integRepo, stateRepo, taskClient),
	}
}
