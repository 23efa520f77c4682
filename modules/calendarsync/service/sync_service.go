package service

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"musobuddy/core/constants"
	"musobuddy/core/errors"
	"musobuddy/core/logger"
	bookingEntity "musobuddy/modules/booking/entity"
	"musobuddy/modules/calendarsync/client"
	"musobuddy/modules/calendarsync/entity"
	"musobuddy/modules/calendarsync/repository"
)

// BookingStore is the narrow collaborator surface the sync engine consumes.
// The record variants bypass the booking module's deletion observer so a
// sync-initiated delete cannot feed back into the engine.
type BookingStore interface {
	List(ctx context.Context, userID uuid.UUID) ([]bookingEntity.Booking, error)
	CreateRecord(ctx context.Context, b *bookingEntity.Booking) (*bookingEntity.Booking, error)
	DeleteRecord(ctx context.Context, id uuid.UUID) error
}

// SyncResult is the aggregate outcome of one pass. Per-item failures are
// collected here, never raised.
type SyncResult struct {
	Direction string   `json:"direction"`
	Exported  int      `json:"exported"`
	Imported  int      `json:"imported"`
	Deleted   int      `json:"deleted"`
	Errors    []string `json:"errors,omitempty"`
}

// SyncService drives sync passes: export, import and delete reconciliation.
type SyncService interface {
	RunSync(ctx context.Context, userID uuid.UUID, direction string) (*SyncResult, error)

	// BookingDeleted implements the booking module's DeletionObserver.
	BookingDeleted(ctx context.Context, userID, bookingID uuid.UUID)
}

type syncService struct {
	integrations repository.IntegrationRepository
	mappings     repository.MappingRepository
	bookings     BookingStore
	client       client.CalendarClient
	translator   *Translator
	locks        *keyedLock
}

func NewSyncService(
	integrations repository.IntegrationRepository,
	mappings repository.MappingRepository,
	bookings BookingStore,
	cal client.CalendarClient,
	translator *Translator,
) SyncService {
	return &syncService{
		integrations: integrations,
		mappings:     mappings,
		bookings:     bookings,
		client:       cal,
		translator:   translator,
		locks:        newKeyedLock(),
	}
}

// RunSync executes one pass under the per-user lock. A concurrent trigger
// for the same user is coalesced: the in-flight pass picks up the same
// delta, so the second caller gets ErrSyncInProgress and nothing is lost.
func (s *syncService) RunSync(ctx context.Context, userID uuid.UUID, direction string) (*SyncResult, error) {
	key := userID.String()
	if !s.locks.TryAcquire(key) {
		return nil, errors.NewAppError(errors.ErrSyncInProgress, "a sync pass is already running for this user", nil)
	}
	defer s.locks.Release(key)

	ctx, cancel := context.WithTimeout(ctx, constants.SyncPassTimeout)
	defer cancel()

	integ, err := s.integrations.GetByUserID(ctx, userID)
	if err != nil {
		return nil, errors.NewAppError(errors.ErrStorageUnavailable, "failed to load integration", err)
	}
	if integ == nil {
		return nil, errors.NewAppError(errors.ErrNotConnected, "no calendar connected", nil)
	}
	if !integ.SyncEnabled {
		return nil, errors.NewAppError(errors.ErrSyncDisabled, "calendar sync is disabled", nil)
	}

	if direction == "" {
		direction = integ.SyncDirection
	}
	result := &SyncResult{Direction: direction}

	doExport := entity.DirectionIncludesExport(direction) && integ.AutoSyncBookings
	doImport := entity.DirectionIncludesImport(direction) && integ.AutoImportEvents

	logger.Info("SyncService:RunSync:Start", "user_id", userID, "direction", direction, "export", doExport, "import", doImport)

	if doExport {
		if err := s.exportPhase(ctx, integ, result); err != nil {
			return nil, s.failPass(ctx, integ, err)
		}
	}
	if doImport {
		if err := s.importPhase(ctx, integ, result); err != nil {
			return nil, s.failPass(ctx, integ, err)
		}
	}
	if doExport {
		if err := s.reconcileDeletes(ctx, integ, result); err != nil {
			return nil, s.failPass(ctx, integ, err)
		}
	}

	if err := s.integrations.UpdateSyncMeta(ctx, userID, integ.SyncToken, time.Now()); err != nil {
		return nil, errors.NewAppError(errors.ErrStorageUnavailable, "failed to persist sync state", err)
	}

	logger.Info("SyncService:RunSync:Complete",
		"user_id", userID,
		"exported", result.Exported,
		"imported", result.Imported,
		"deleted", result.Deleted,
		"errors", len(result.Errors),
	)
	return result, nil
}

// failPass resolves an unrecoverable phase error. Authentication failures
// disable sync for the user so we never retry a revoked grant indefinitely.
func (s *syncService) failPass(ctx context.Context, integ *entity.Integration, err error) error {
	if ae, ok := err.(*errors.AppError); ok && ae.Code == errors.ErrReconnectRequired {
		logger.Warn("SyncService:RunSync:ReconnectRequired", "user_id", integ.UserID)
		if dbErr := s.integrations.MarkReconnectRequired(ctx, integ.UserID); dbErr != nil {
			logger.Error("SyncService:RunSync:DisableSync:Error", "error", dbErr, "user_id", integ.UserID)
		}
	}
	logger.Error("SyncService:RunSync:Failed", "error", err, "user_id", integ.UserID)
	return err
}

// fatal reports whether an error must abort the whole pass rather than be
// recorded as a per-item failure.
func fatal(err error) bool {
	code := errors.CodeOf(err)
	return code == errors.ErrReconnectRequired || code == errors.ErrStorageUnavailable || code == errors.ErrNotConnected
}

// exportPhase pushes every dated local booking out. No change detection:
// pushing identical data is idempotent on the provider side, a few
// redundant calls buy simplicity.
func (s *syncService) exportPhase(ctx context.Context, integ *entity.Integration, result *SyncResult) error {
	bookings, err := s.bookings.List(ctx, integ.UserID)
	if err != nil {
		return errors.NewAppError(errors.ErrStorageUnavailable, "failed to list bookings", err)
	}

	for i := range bookings {
		b := &bookings[i]
		if b.EventDate == nil {
			continue
		}

		if err := s.exportBooking(ctx, integ, b); err != nil {
			if fatal(err) {
				return err
			}
			logger.Warn("SyncService:Export:ItemFailed", "error", err, "booking_id", b.ID, "user_id", integ.UserID)
			result.Errors = append(result.Errors, fmt.Sprintf("export booking %s: %v", b.ID, err))
			continue
		}
		result.Exported++
	}
	return nil
}

func (s *syncService) exportBooking(ctx context.Context, integ *entity.Integration, b *bookingEntity.Booking) error {
	mapping, err := s.mappings.GetByLocalID(ctx, integ.UserID, b.ID, constants.LocalTypeBooking, integ.CalendarID)
	if err != nil {
		return errors.NewAppError(errors.ErrStorageUnavailable, "failed to look up mapping", err)
	}

	event := s.translator.ToExternal(b)

	if mapping != nil {
		return s.client.UpdateEvent(ctx, integ.UserID, integ.CalendarID, mapping.ExternalEventID, event)
	}

	externalID, err := s.client.CreateEvent(ctx, integ.UserID, integ.CalendarID, event)
	if err != nil {
		return err
	}

	created, err := s.mappings.Insert(ctx, &entity.SyncMapping{
		UserID:          integ.UserID,
		LocalID:         b.ID,
		LocalType:       constants.LocalTypeBooking,
		ExternalEventID: externalID,
		CalendarID:      integ.CalendarID,
		Direction:       entity.LocalOriginated,
	})
	if err != nil {
		return errors.NewAppError(errors.ErrStorageUnavailable, "failed to persist mapping", err)
	}
	if !created {
		// Lost the insert race: a mapping for this booking already
		// exists, so the event we just created is a duplicate.
		if delErr := s.client.DeleteEvent(ctx, integ.UserID, integ.CalendarID, externalID); delErr != nil {
			logger.Warn("SyncService:Export:DuplicateCleanup:Error", "error", delErr, "external_id", externalID)
		}
	}
	return nil
}

// importPhase pulls the foreign event delta in. Cursor expiry downgrades
// transparently to a full listing; it is an expected condition, not a
// failure.
func (s *syncService) importPhase(ctx context.Context, integ *entity.Integration, result *SyncResult) error {
	var (
		list *client.ListResult
		err  error
	)

	if integ.SyncToken != nil && *integ.SyncToken != "" {
		list, err = s.client.ListEventsIncremental(ctx, integ.UserID, integ.CalendarID, *integ.SyncToken)
		if err != nil && errors.CodeOf(err) == errors.ErrCursorExpired {
			logger.Info("SyncService:Import:CursorExpired", "user_id", integ.UserID)
			list, err = s.client.ListEventsFull(ctx, integ.UserID, integ.CalendarID)
		}
	} else {
		list, err = s.client.ListEventsFull(ctx, integ.UserID, integ.CalendarID)
	}
	if err != nil {
		return err
	}

	for i := range list.Events {
		ev := &list.Events[i]

		if ev.Cancelled() {
			if err := s.importCancellation(ctx, integ, ev, result); err != nil {
				if fatal(err) {
					return err
				}
				result.Errors = append(result.Errors, fmt.Sprintf("cancel event %s: %v", ev.ID, err))
			}
			continue
		}

		// Dedup rule: the engine's own exported events carry the
		// provenance stamp and must never round-trip back in.
		if ev.PrivateProperty(constants.ExtPropIDKey) != "" {
			continue
		}

		if err := s.importEvent(ctx, integ, ev, result); err != nil {
			if fatal(err) {
				return err
			}
			logger.Warn("SyncService:Import:ItemFailed", "error", err, "event_id", ev.ID, "user_id", integ.UserID)
			result.Errors = append(result.Errors, fmt.Sprintf("import event %s: %v", ev.ID, err))
		}
	}

	if list.SyncToken != "" {
		token := list.SyncToken
		integ.SyncToken = &token
	}
	return nil
}

func (s *syncService) importEvent(ctx context.Context, integ *entity.Integration, ev *client.Event, result *SyncResult) error {
	existing, err := s.mappings.GetByExternalID(ctx, ev.ID, integ.CalendarID)
	if err != nil {
		return errors.NewAppError(errors.ErrStorageUnavailable, "failed to look up mapping", err)
	}
	if existing != nil {
		// Already imported. Foreign edits are not re-applied locally.
		return nil
	}

	b := s.translator.FromExternal(ev)
	b.UserID = integ.UserID

	created, err := s.bookings.CreateRecord(ctx, b)
	if err != nil {
		return errors.NewAppError(errors.ErrStorageUnavailable, "failed to create booking", err)
	}

	inserted, err := s.mappings.Insert(ctx, &entity.SyncMapping{
		UserID:          integ.UserID,
		LocalID:         created.ID,
		LocalType:       constants.LocalTypeBooking,
		ExternalEventID: ev.ID,
		CalendarID:      integ.CalendarID,
		Direction:       entity.ExternalOriginated,
	})
	if err != nil {
		return errors.NewAppError(errors.ErrStorageUnavailable, "failed to persist mapping", err)
	}
	if !inserted {
		// A concurrent pass imported this event first; drop our copy.
		if delErr := s.bookings.DeleteRecord(ctx, created.ID); delErr != nil {
			logger.Warn("SyncService:Import:DuplicateCleanup:Error", "error", delErr, "booking_id", created.ID)
		}
		return nil
	}

	result.Imported++
	return nil
}

// importCancellation applies the asymmetric delete policy: an imported
// booking follows its foreign event to the grave, but a booking the engine
// exported is locally authoritative and survives external deletion.
func (s *syncService) importCancellation(ctx context.Context, integ *entity.Integration, ev *client.Event, result *SyncResult) error {
	mapping, err := s.mappings.GetByExternalID(ctx, ev.ID, integ.CalendarID)
	if err != nil {
		return errors.NewAppError(errors.ErrStorageUnavailable, "failed to look up mapping", err)
	}
	if mapping == nil || mapping.Direction != entity.ExternalOriginated {
		return nil
	}

	if err := s.bookings.DeleteRecord(ctx, mapping.LocalID); err != nil {
		return errors.NewAppError(errors.ErrStorageUnavailable, "failed to delete imported booking", err)
	}
	if err := s.mappings.Delete(ctx, mapping.ID); err != nil {
		return errors.NewAppError(errors.ErrStorageUnavailable, "failed to delete mapping", err)
	}

	result.Deleted++
	return nil
}

// reconcileDeletes removes external events for bookings that were deleted
// locally while no pass was running. The external event must go before the
// mapping, otherwise it becomes unreachable garbage.
func (s *syncService) reconcileDeletes(ctx context.Context, integ *entity.Integration, result *SyncResult) error {
	mappings, err := s.mappings.ListByUser(ctx, integ.UserID)
	if err != nil {
		return errors.NewAppError(errors.ErrStorageUnavailable, "failed to list mappings", err)
	}

	bookings, err := s.bookings.List(ctx, integ.UserID)
	if err != nil {
		return errors.NewAppError(errors.ErrStorageUnavailable, "failed to list bookings", err)
	}
	alive := make(map[uuid.UUID]struct{}, len(bookings))
	for _, b := range bookings {
		alive[b.ID] = struct{}{}
	}

	for _, m := range mappings {
		if m.Direction != entity.LocalOriginated || m.LocalType != constants.LocalTypeBooking {
			continue
		}
		if _, ok := alive[m.LocalID]; ok {
			continue
		}

		if err := s.client.DeleteEvent(ctx, integ.UserID, integ.CalendarID, m.ExternalEventID); err != nil {
			if fatal(err) {
				return err
			}
			// Keep the mapping so the next pass retries the delete.
			result.Errors = append(result.Errors, fmt.Sprintf("delete event %s: %v", m.ExternalEventID, err))
			continue
		}
		if err := s.mappings.Delete(ctx, m.ID); err != nil {
			return errors.NewAppError(errors.ErrStorageUnavailable, "failed to delete mapping", err)
		}
		result.Deleted++
	}
	return nil
}

// BookingDeleted reacts to a user deleting a booking: the exported event is
// removed from the provider right away instead of waiting for the next
// pass. Runs detached so the HTTP delete is not held open.
func (s *syncService) BookingDeleted(ctx context.Context, userID, bookingID uuid.UUID) {
	go func() {
		bgCtx, cancel := context.WithTimeout(context.Background(), constants.DefaultTimeout)
		defer cancel()

		integ, err := s.integrations.GetByUserID(bgCtx, userID)
		if err != nil || integ == nil || !integ.SyncEnabled {
			return
		}

		mapping, err := s.mappings.GetByLocalID(bgCtx, userID, bookingID, constants.LocalTypeBooking, integ.CalendarID)
		if err != nil || mapping == nil || mapping.Direction != entity.LocalOriginated {
			return
		}

		if err := s.client.DeleteEvent(bgCtx, userID, integ.CalendarID, mapping.ExternalEventID); err != nil {
			// Mapping stays; the reconcile phase retries on the next pass.
			logger.Warn("SyncService:BookingDeleted:DeleteEvent:Error", "error", err, "booking_id", bookingID)
			return
		}
		if err := s.mappings.Delete(bgCtx, mapping.ID); err != nil {
			logger.Error("SyncService:BookingDeleted:DeleteMapping:Error", "error", err, "booking_id", bookingID)
		}
	}()
}
