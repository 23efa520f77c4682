package service

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/hibiken/asynq"

	coreErrors "musobuddy/core/errors"
	bookingEntity "musobuddy/modules/booking/entity"
	"musobuddy/modules/calendarsync/client"
	"musobuddy/modules/calendarsync/entity"
)

// In-memory fakes for the persistence and provider boundaries. They keep
// the same conflict and not-found semantics as the real implementations.

type fakeIntegrationRepo struct {
	mu                sync.Mutex
	integ             *entity.Integration
	reconnectMarked   bool
	lastSyncToken     *string
	syncMetaUpdates   int
	settingsSnapshots []entity.Integration
}

func (f *fakeIntegrationRepo) Save(_ context.Context, integ *entity.Integration) (*entity.Integration, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if integ.ID == uuid.Nil {
		integ.ID = uuid.New()
	}
	integ.NeedsReconnect = false
	f.integ = integ
	return integ, nil
}

func (f *fakeIntegrationRepo) GetByUserID(_ context.Context, userID uuid.UUID) (*entity.Integration, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.integ == nil || f.integ.UserID != userID {
		return nil, nil
	}
	cp := *f.integ
	return &cp, nil
}

func (f *fakeIntegrationRepo) GetByChannelID(_ context.Context, channelID string) (*entity.Integration, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.integ == nil || f.integ.ChannelID == nil || *f.integ.ChannelID != channelID {
		return nil, nil
	}
	cp := *f.integ
	return &cp, nil
}

func (f *fakeIntegrationRepo) ListSyncEnabled(_ context.Context) ([]entity.Integration, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.integ == nil || !f.integ.SyncEnabled {
		return nil, nil
	}
	return []entity.Integration{*f.integ}, nil
}

func (f *fakeIntegrationRepo) ListExpiringChannels(_ context.Context, before time.Time) ([]entity.Integration, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.integ == nil || f.integ.ChannelExpiresAt == nil || !f.integ.ChannelExpiresAt.Before(before) {
		return nil, nil
	}
	return []entity.Integration{*f.integ}, nil
}

func (f *fakeIntegrationRepo) UpdateTokens(_ context.Context, _ uuid.UUID, accessToken string, expiresAt time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.integ != nil {
		f.integ.AccessToken = accessToken
		f.integ.TokenExpiresAt = expiresAt
	}
	return nil
}

func (f *fakeIntegrationRepo) UpdateSyncMeta(_ context.Context, _ uuid.UUID, syncToken *string, syncedAt time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.syncMetaUpdates++
	f.lastSyncToken = syncToken
	if f.integ != nil {
		f.integ.SyncToken = syncToken
		f.integ.LastSyncedAt = &syncedAt
	}
	return nil
}

func (f *fakeIntegrationRepo) UpdateWebhookChannel(_ context.Context, _ uuid.UUID, channelID, resourceID string, expiresAt time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.integ != nil {
		f.integ.ChannelID = &channelID
		f.integ.ChannelResourceID = &resourceID
		f.integ.ChannelExpiresAt = &expiresAt
	}
	return nil
}

func (f *fakeIntegrationRepo) UpdateSettings(_ context.Context, integ *entity.Integration) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.settingsSnapshots = append(f.settingsSnapshots, *integ)
	f.integ = integ
	return nil
}

func (f *fakeIntegrationRepo) SetSyncEnabled(_ context.Context, _ uuid.UUID, enabled bool) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.integ != nil {
		f.integ.SyncEnabled = enabled
	}
	return nil
}

func (f *fakeIntegrationRepo) MarkReconnectRequired(_ context.Context, _ uuid.UUID) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.reconnectMarked = true
	if f.integ != nil {
		f.integ.SyncEnabled = false
		f.integ.NeedsReconnect = true
	}
	return nil
}

func (f *fakeIntegrationRepo) Delete(_ context.Context, _ uuid.UUID) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.integ = nil
	return nil
}

type mappingKey struct {
	userID     uuid.UUID
	localID    uuid.UUID
	localType  string
	calendarID string
}

type fakeMappingRepo struct {
	mu       sync.Mutex
	byLocal  map[mappingKey]*entity.SyncMapping
	byExtern map[string]*entity.SyncMapping

	// loseNextInsert makes the next Insert report a conflict without
	// storing, as if a concurrent pass won the unique-index race.
	loseNextInsert bool
}

func newFakeMappingRepo() *fakeMappingRepo {
	return &fakeMappingRepo{
		byLocal:  make(map[mappingKey]*entity.SyncMapping),
		byExtern: make(map[string]*entity.SyncMapping),
	}
}

func (f *fakeMappingRepo) externKey(externalEventID, calendarID string) string {
	return externalEventID + "|" + calendarID
}

func (f *fakeMappingRepo) Insert(_ context.Context, m *entity.SyncMapping) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.loseNextInsert {
		f.loseNextInsert = false
		return false, nil
	}
	lk := mappingKey{m.UserID, m.LocalID, m.LocalType, m.CalendarID}
	ek := f.externKey(m.ExternalEventID, m.CalendarID)
	if _, ok := f.byLocal[lk]; ok {
		return false, nil
	}
	if _, ok := f.byExtern[ek]; ok {
		return false, nil
	}
	m.ID = uuid.New()
	m.CreatedAt = time.Now()
	cp := *m
	f.byLocal[lk] = &cp
	f.byExtern[ek] = &cp
	return true, nil
}

func (f *fakeMappingRepo) GetByLocalID(_ context.Context, userID, localID uuid.UUID, localType, calendarID string) (*entity.SyncMapping, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if m, ok := f.byLocal[mappingKey{userID, localID, localType, calendarID}]; ok {
		cp := *m
		return &cp, nil
	}
	return nil, nil
}

func (f *fakeMappingRepo) GetByExternalID(_ context.Context, externalEventID, calendarID string) (*entity.SyncMapping, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if m, ok := f.byExtern[f.externKey(externalEventID, calendarID)]; ok {
		cp := *m
		return &cp, nil
	}
	return nil, nil
}

func (f *fakeMappingRepo) ListByUser(_ context.Context, userID uuid.UUID) ([]entity.SyncMapping, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []entity.SyncMapping
	for _, m := range f.byLocal {
		if m.UserID == userID {
			out = append(out, *m)
		}
	}
	return out, nil
}

func (f *fakeMappingRepo) Delete(_ context.Context, id uuid.UUID) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for k, m := range f.byLocal {
		if m.ID == id {
			delete(f.byExtern, f.externKey(m.ExternalEventID, m.CalendarID))
			delete(f.byLocal, k)
			return nil
		}
	}
	return nil
}

func (f *fakeMappingRepo) DeleteByUser(_ context.Context, userID uuid.UUID) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for k, m := range f.byLocal {
		if m.UserID == userID {
			delete(f.byExtern, f.externKey(m.ExternalEventID, m.CalendarID))
			delete(f.byLocal, k)
		}
	}
	return nil
}

func (f *fakeMappingRepo) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.byLocal)
}

type fakeBookingStore struct {
	mu       sync.Mutex
	bookings map[uuid.UUID]*bookingEntity.Booking
	created  int
	deleted  int
}

func newFakeBookingStore() *fakeBookingStore {
	return &fakeBookingStore{bookings: make(map[uuid.UUID]*bookingEntity.Booking)}
}

func (f *fakeBookingStore) add(b *bookingEntity.Booking) *bookingEntity.Booking {
	f.mu.Lock()
	defer f.mu.Unlock()
	if b.ID == uuid.Nil {
		b.ID = uuid.New()
	}
	f.bookings[b.ID] = b
	return b
}

func (f *fakeBookingStore) List(_ context.Context, userID uuid.UUID) ([]bookingEntity.Booking, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []bookingEntity.Booking
	for _, b := range f.bookings {
		if b.UserID == userID {
			out = append(out, *b)
		}
	}
	return out, nil
}

func (f *fakeBookingStore) CreateRecord(_ context.Context, b *bookingEntity.Booking) (*bookingEntity.Booking, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	b.ID = uuid.New()
	f.bookings[b.ID] = b
	f.created++
	return b, nil
}

func (f *fakeBookingStore) DeleteRecord(_ context.Context, id uuid.UUID) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.bookings, id)
	f.deleted++
	return nil
}

// fakeCalendarClient scripts provider behavior per call site. Errors are
// injected by event/booking id.
type fakeCalendarClient struct {
	mu sync.Mutex

	events map[string]*client.Event
	nextID int

	listFull        *client.ListResult
	listIncremental *client.ListResult
	incrementalErr  error
	createErr       map[string]error // keyed by event summary
	fullCalls       int
	incrCalls       int
	created         []string
	updated         []string
	deleted         []string
	stopped         []string
	watchErr        error
}

func newFakeCalendarClient() *fakeCalendarClient {
	return &fakeCalendarClient{
		events:    make(map[string]*client.Event),
		createErr: make(map[string]error),
	}
}

func (f *fakeCalendarClient) AuthorizationURL(state string) (string, error) {
	return "https://accounts.example.com/consent?state=" + state, nil
}

func (f *fakeCalendarClient) ExchangeCode(_ context.Context, _ string) (*client.Tokens, error) {
	return &client.Tokens{
		AccessToken:  "access",
		RefreshToken: "refresh",
		ExpiresAt:    time.Now().Add(time.Hour),
	}, nil
}

func (f *fakeCalendarClient) CreateEvent(_ context.Context, _ uuid.UUID, _ string, event *client.Event) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err, ok := f.createErr[event.Summary]; ok {
		return "", err
	}
	f.nextID++
	id := fmt.Sprintf("ext-%d", f.nextID)
	cp := *event
	cp.ID = id
	f.events[id] = &cp
	f.created = append(f.created, id)
	return id, nil
}

func (f *fakeCalendarClient) UpdateEvent(_ context.Context, _ uuid.UUID, _ string, eventID string, event *client.Event) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	cp := *event
	cp.ID = eventID
	f.events[eventID] = &cp
	f.updated = append(f.updated, eventID)
	return nil
}

func (f *fakeCalendarClient) DeleteEvent(_ context.Context, _ uuid.UUID, _ string, eventID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.events, eventID)
	f.deleted = append(f.deleted, eventID)
	return nil
}

func (f *fakeCalendarClient) ListEventsFull(_ context.Context, _ uuid.UUID, _ string) (*client.ListResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.fullCalls++
	if f.listFull != nil {
		return f.listFull, nil
	}
	return &client.ListResult{SyncToken: "fresh-token"}, nil
}

func (f *fakeCalendarClient) ListEventsIncremental(_ context.Context, _ uuid.UUID, _, _ string) (*client.ListResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.incrCalls++
	if f.incrementalErr != nil {
		return nil, f.incrementalErr
	}
	if f.listIncremental != nil {
		return f.listIncremental, nil
	}
	return &client.ListResult{SyncToken: "incr-token"}, nil
}

func (f *fakeCalendarClient) Watch(_ context.Context, _ uuid.UUID, _, channelID, _, _ string) (*client.WatchResult, error) {
	if f.watchErr != nil {
		return nil, f.watchErr
	}
	return &client.WatchResult{
		ChannelID:  channelID,
		ResourceID: "resource-" + channelID,
		ExpiresAt:  time.Now().Add(6 * 24 * time.Hour),
	}, nil
}

func (f *fakeCalendarClient) StopChannel(_ context.Context, _ uuid.UUID, channelID, _ string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.stopped = append(f.stopped, channelID)
	return nil
}

type fakeCache struct {
	mu       sync.Mutex
	channels map[string]string
}

func newFakeCache() *fakeCache {
	return &fakeCache{channels: make(map[string]string)}
}

func (f *fakeCache) IsTokenBlacklisted(_ context.Context, _ string) (bool, error) {
	return false, nil
}

func (f *fakeCache) SetWebhookChannelUser(_ context.Context, channelID, userID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.channels[channelID] = userID
	return nil
}

func (f *fakeCache) GetWebhookChannelUser(_ context.Context, channelID string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.channels[channelID], nil
}

func (f *fakeCache) DeleteWebhookChannel(_ context.Context, channelID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.channels, channelID)
	return nil
}

func (f *fakeCache) Close() error { return nil }

type fakeStateRepo struct {
	mu     sync.Mutex
	states map[string]*entity.OAuthState
}

func newFakeStateRepo() *fakeStateRepo {
	return &fakeStateRepo{states: make(map[string]*entity.OAuthState)}
}

func (f *fakeStateRepo) Save(_ context.Context, state string, userID uuid.UUID, expiresAt time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.states[state] = &entity.OAuthState{
		State:     state,
		UserID:    userID,
		ExpiresAt: expiresAt,
	}
	return nil
}

func (f *fakeStateRepo) Get(_ context.Context, state string) (*entity.OAuthState, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	s, ok := f.states[state]
	if !ok || s.ExpiresAt.Before(time.Now()) {
		return nil, nil
	}
	cp := *s
	return &cp, nil
}

func (f *fakeStateRepo) Delete(_ context.Context, state string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.states, state)
	return nil
}

func (f *fakeStateRepo) CleanupExpired(_ context.Context) error { return nil }

type fakeEnqueuer struct {
	mu    sync.Mutex
	tasks []string
}

func (f *fakeEnqueuer) Enqueue(task *asynq.Task, _ ...asynq.Option) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.tasks = append(f.tasks, task.Type())
	return nil
}

func reconnectErr() error {
	return coreErrors.NewAppError(coreErrors.ErrReconnectRequired, "token revoked", nil)
}

func cursorExpiredErr() error {
	return coreErrors.NewAppError(coreErrors.ErrCursorExpired, "sync token expired", nil)
}
