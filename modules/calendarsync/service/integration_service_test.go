package service

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"

	coreErrors "musobuddy/core/errors"
	"musobuddy/core/tasks"
	"musobuddy/modules/calendarsync/dto"
	"musobuddy/modules/calendarsync/entity"
)

func dtoSettings(direction string) *dto.UpdateSettingsRequest {
	return &dto.UpdateSettingsRequest{SyncDirection: &direction}
}

func newTestIntegrationService(integRepo *fakeIntegrationRepo) (IntegrationService, *fakeStateRepo, *fakeEnqueuer, *fakeCache) {
	states := newFakeStateRepo()
	cal := newFakeCalendarClient()
	c := newFakeCache()
	enq := &fakeEnqueuer{}
	webhooks := NewWebhookService(integRepo, cal, c, enq)
	svc := NewIntegrationService(integRepo, states, cal, webhooks, c, enq)
	return svc, states, enq, c
}

func TestConnectURLBindsStateToUser(t *testing.T) {
	initTestConfig(t)

	userID := uuid.New()
	svc, states, _, _ := newTestIntegrationService(&fakeIntegrationRepo{})

	authURL, err := svc.ConnectURL(context.Background(), userID)
	if err != nil {
		t.Fatalf("ConnectURL: %v", err)
	}
	if !strings.Contains(authURL, "state=") {
		t.Fatalf("auth url missing state: %q", authURL)
	}
	if len(states.states) != 1 {
		t.Fatalf("states stored = %d, want 1", len(states.states))
	}
	for _, s := range states.states {
		if s.UserID != userID {
			t.Errorf("state bound to %v, want %v", s.UserID, userID)
		}
	}
}

func TestHandleCallbackProvisionsIntegration(t *testing.T) {
	initTestConfig(t)

	userID := uuid.New()
	integRepo := &fakeIntegrationRepo{}
	svc, states, enq, _ := newTestIntegrationService(integRepo)

	states.Save(context.Background(), "state-1", userID, time.Now().Add(time.Minute))

	if err := svc.HandleCallback(context.Background(), "state-1", "auth-code"); err != nil {
		t.Fatalf("HandleCallback: %v", err)
	}

	integ := integRepo.integ
	if integ == nil {
		t.Fatal("no integration saved")
	}
	if integ.UserID != userID {
		t.Errorf("user = %v, want %v", integ.UserID, userID)
	}
	if integ.CalendarID != "primary" || !integ.SyncEnabled || integ.SyncDirection != entity.DirectionBidirectional {
		t.Errorf("unexpected defaults: %+v", integ)
	}
	if integ.ChannelID == nil {
		t.Error("webhook channel was not registered")
	}

	// State is one-time.
	if s, _ := states.Get(context.Background(), "state-1"); s != nil {
		t.Error("state token survived the callback")
	}

	found := false
	for _, typ := range enq.tasks {
		if typ == tasks.TypeCalendarSync {
			found = true
		}
	}
	if !found {
		t.Error("initial sync was not enqueued")
	}
}

func TestHandleCallbackRejectsUnknownState(t *testing.T) {
	initTestConfig(t)

	svc, _, _, _ := newTestIntegrationService(&fakeIntegrationRepo{})

	err := svc.HandleCallback(context.Background(), "never-issued", "auth-code")
	if coreErrors.CodeOf(err) != coreErrors.ErrUnauthorized {
		t.Fatalf("expected ErrUnauthorized, got %v", err)
	}
}

func TestStatusNotConnected(t *testing.T) {
	initTestConfig(t)

	svc, _, _, _ := newTestIntegrationService(&fakeIntegrationRepo{})

	status, err := svc.Status(context.Background(), uuid.New())
	if err != nil {
		t.Fatalf("Status: %v", err)
	}
	if status.Connected {
		t.Error("expected not connected")
	}
}

func TestStatusReportsReconnect(t *testing.T) {
	initTestConfig(t)

	userID := uuid.New()
	integ := testIntegration(userID)
	integ.SyncEnabled = false
	integ.NeedsReconnect = true
	svc, _, _, _ := newTestIntegrationService(&fakeIntegrationRepo{integ: integ})

	status, err := svc.Status(context.Background(), userID)
	if err != nil {
		t.Fatalf("Status: %v", err)
	}
	if !status.Connected || !status.NeedsReconnect || status.SyncEnabled {
		t.Errorf("status = %+v", status)
	}
}

func TestUpdateSettingsRejectsBadDirection(t *testing.T) {
	initTestConfig(t)

	userID := uuid.New()
	svc, _, _, _ := newTestIntegrationService(&fakeIntegrationRepo{integ: testIntegration(userID)})

	_, err := svc.UpdateSettings(context.Background(), userID, dtoSettings("sideways"))
	if coreErrors.CodeOf(err) != coreErrors.ErrInvalidInput {
		t.Fatalf("expected ErrInvalidInput, got %v", err)
	}
}

func TestUpdateSettingsPartialUpdate(t *testing.T) {
	initTestConfig(t)

	userID := uuid.New()
	integRepo := &fakeIntegrationRepo{integ: testIntegration(userID)}
	svc, _, _, _ := newTestIntegrationService(integRepo)

	updated, err := svc.UpdateSettings(context.Background(), userID, dtoSettings(entity.DirectionExport))
	if err != nil {
		t.Fatalf("UpdateSettings: %v", err)
	}
	if updated.SyncDirection != entity.DirectionExport {
		t.Errorf("direction = %q", updated.SyncDirection)
	}
	// Untouched preferences keep their values.
	if !updated.AutoSyncBookings || !updated.AutoImportEvents {
		t.Errorf("auto flags were clobbered: %+v", updated)
	}
}

func TestDisconnectStopsChannelAndDeletes(t *testing.T) {
	initTestConfig(t)

	userID := uuid.New()
	integ := testIntegration(userID)
	channelID := "chan-9"
	resourceID := "res-9"
	integ.ChannelID = &channelID
	integ.ChannelResourceID = &resourceID

	integRepo := &fakeIntegrationRepo{integ: integ}
	svc, _, _, c := newTestIntegrationService(integRepo)
	c.channels[channelID] = userID.String()

	if err := svc.Disconnect(context.Background(), userID); err != nil {
		t.Fatalf("Disconnect: %v", err)
	}

	if integRepo.integ != nil {
		t.Error("integration row survived disconnect")
	}
	if _, ok := c.channels[channelID]; ok {
		t.Error("channel cache entry survived disconnect")
	}
}

func TestDisconnectWithoutConnection(t *testing.T) {
	initTestConfig(t)

	svc, _, _, _ := newTestIntegrationService(&fakeIntegrationRepo{})

	err := svc.Disconnect(context.Background(), uuid.New())
	if coreErrors.CodeOf(err) != coreErrors.ErrNotConnected {
		t.Fatalf("expected ErrNotConnected, got %v", err)
	}
}
