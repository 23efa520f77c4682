package client

import (
	"context"
	"io"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"

	"musobuddy/core/errors"
	"musobuddy/modules/calendarsync/entity"
	"musobuddy/modules/calendarsync/repository"
)

// tokenRepo serves one integration with a token that never needs a
// refresh, so event calls hit the transport directly.
type tokenRepo struct {
	repository.IntegrationRepository
	integ *entity.Integration
}

func (r *tokenRepo) GetByUserID(_ context.Context, _ uuid.UUID) (*entity.Integration, error) {
	return r.integ, nil
}

// scriptedTransport answers every request with a fixed status.
type scriptedTransport struct {
	status int
}

func (t *scriptedTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	return &http.Response{
		StatusCode: t.status,
		Body:       io.NopCloser(strings.NewReader("{}")),
		Header:     make(http.Header),
		Request:    req,
	}, nil
}

func newStatusClient(status int) *googleClient {
	return &googleClient{
		repo: &tokenRepo{integ: &entity.Integration{
			UserID:         uuid.New(),
			CalendarID:     "primary",
			AccessToken:    "live-token",
			TokenExpiresAt: time.Now().Add(time.Hour),
		}},
		http: &http.Client{Transport: &scriptedTransport{status: status}},
	}
}

func TestDeleteEventTreatsGoneAsAlreadyDeleted(t *testing.T) {
	for _, status := range []int{http.StatusNotFound, http.StatusGone} {
		g := newStatusClient(status)
		if err := g.DeleteEvent(context.Background(), uuid.New(), "primary", "evt-1"); err != nil {
			t.Fatalf("status %d: expected nil, got %v", status, err)
		}
	}
}

func TestDeleteEventPropagatesOtherFailures(t *testing.T) {
	g := newStatusClient(http.StatusInternalServerError)
	err := g.DeleteEvent(context.Background(), uuid.New(), "primary", "evt-1")
	if errors.CodeOf(err) != errors.ErrProviderAPI {
		t.Fatalf("expected ErrProviderAPI, got %v", err)
	}
}

func TestListIncrementalMapsGoneToCursorExpired(t *testing.T) {
	g := newStatusClient(http.StatusGone)
	_, err := g.ListEventsIncremental(context.Background(), uuid.New(), "primary", "stale-cursor")
	if errors.CodeOf(err) != errors.ErrCursorExpired {
		t.Fatalf("expected ErrCursorExpired, got %v", err)
	}
}
