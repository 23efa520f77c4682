package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"

	"musobuddy/core/config"
	"musobuddy/core/constants"
	"musobuddy/core/errors"
	"musobuddy/core/logger"
	"musobuddy/modules/calendarsync/repository"
)

const calendarAPIBase = "https://www.googleapis.com/calendar/v3"

const calendarScope = "https://www.googleapis.com/auth/calendar"

// CalendarClient is all network I/O against the provider, hiding
// authentication. Every event call is independently retryable.
type CalendarClient interface {
	AuthorizationURL(state string) (string, error)
	ExchangeCode(ctx context.Context, code string) (*Tokens, error)

	CreateEvent(ctx context.Context, userID uuid.UUID, calendarID string, event *Event) (string, error)
	UpdateEvent(ctx context.Context, userID uuid.UUID, calendarID, eventID string, event *Event) error
	DeleteEvent(ctx context.Context, userID uuid.UUID, calendarID, eventID string) error

	ListEventsFull(ctx context.Context, userID uuid.UUID, calendarID string) (*ListResult, error)
	ListEventsIncremental(ctx context.Context, userID uuid.UUID, calendarID, syncToken string) (*ListResult, error)

	Watch(ctx context.Context, userID uuid.UUID, calendarID, channelID, callbackURL, token string) (*WatchResult, error)
	StopChannel(ctx context.Context, userID uuid.UUID, channelID, resourceID string) error
}

type googleClient struct {
	repo repository.IntegrationRepository
	http *http.Client
}

func NewGoogleClient(repo repository.IntegrationRepository) CalendarClient {
	return &googleClient{
		repo: repo,
		http: &http.Client{Timeout: constants.HTTPClientTimeout},
	}
}

func (g *googleClient) oauthConfig() (*oauth2.Config, error) {
	cfg, ok := config.GetSafe()
	if !ok {
		return nil, errors.NewAppError(errors.ErrInternalServer, "config not initialized", nil)
	}
	if cfg.GoogleAPI.ClientID == "" || cfg.GoogleAPI.ClientSecret == "" || cfg.GoogleAPI.RedirectURI == "" {
		return nil, errors.NewAppError(errors.ErrInternalServer, "Google OAuth configuration is missing", nil)
	}
	return &oauth2.Config{
		ClientID:     cfg.GoogleAPI.ClientID,
		ClientSecret: cfg.GoogleAPI.ClientSecret,
		RedirectURL:  cfg.GoogleAPI.RedirectURI,
		Scopes:       []string{calendarScope},
		Endpoint:     google.Endpoint,
	}, nil
}

// AuthorizationURL builds the consent URL. AccessTypeOffline plus
// ApprovalForce so the provider returns a refresh token; background sync
// cannot run on an access-token-only grant.
func (g *googleClient) AuthorizationURL(state string) (string, error) {
	oauthConfig, err := g.oauthConfig()
	if err != nil {
		return "", err
	}
	return oauthConfig.AuthCodeURL(state, oauth2.AccessTypeOffline, oauth2.ApprovalForce), nil
}

func (g *googleClient) ExchangeCode(ctx context.Context, code string) (*Tokens, error) {
	oauthConfig, err := g.oauthConfig()
	if err != nil {
		return nil, err
	}

	token, err := oauthConfig.Exchange(ctx, code)
	if err != nil {
		logger.Error("GoogleClient:ExchangeCode:Error", "error", err)
		return nil, errors.NewAppError(errors.ErrProviderAPI, "failed to exchange authorization code", err)
	}

	if token.RefreshToken == "" {
		// An access-token-only grant breaks background sync; fail the
		// connection attempt rather than silently degrading.
		return nil, errors.NewAppError(errors.ErrNoRefreshToken,
			"provider did not return a refresh token; revoke access and reconnect", nil)
	}

	return &Tokens{
		AccessToken:  token.AccessToken,
		RefreshToken: token.RefreshToken,
		ExpiresAt:    token.Expiry,
	}, nil
}

// accessToken returns a live access token for the user, refreshing and
// persisting when within the expiry margin.
func (g *googleClient) accessToken(ctx context.Context, userID uuid.UUID) (string, error) {
	integ, err := g.repo.GetByUserID(ctx, userID)
	if err != nil {
		return "", errors.NewAppError(errors.ErrStorageUnavailable, "failed to load integration", err)
	}
	if integ == nil {
		return "", errors.NewAppError(errors.ErrNotConnected, "no calendar connected", nil)
	}

	if integ.AccessToken != "" && time.Now().Before(integ.TokenExpiresAt.Add(-constants.TokenRefreshMargin)) {
		return integ.AccessToken, nil
	}

	logger.Info("GoogleClient:AccessToken:Refreshing", "user_id", userID)

	oauthConfig, err := g.oauthConfig()
	if err != nil {
		return "", err
	}

	tokenSource := oauthConfig.TokenSource(ctx, &oauth2.Token{RefreshToken: integ.RefreshToken})
	newToken, err := tokenSource.Token()
	if err != nil {
		if isInvalidGrant(err) {
			// Refresh token revoked or expired. Fatal for this
			// integration until the user reconnects.
			return "", errors.NewAppError(errors.ErrReconnectRequired, "calendar authorization revoked, reconnect required", err)
		}
		logger.Error("GoogleClient:AccessToken:Refresh:Error", "error", err, "user_id", userID)
		return "", errors.NewAppError(errors.ErrProviderAPI, "failed to refresh access token", err)
	}

	if err := g.repo.UpdateTokens(ctx, userID, newToken.AccessToken, newToken.Expiry); err != nil {
		logger.Error("GoogleClient:AccessToken:Persist:Error", "error", err, "user_id", userID)
		// Keep going with the fresh token; next call refreshes again.
	}

	return newToken.AccessToken, nil
}

func isInvalidGrant(err error) bool {
	var retrieveErr *oauth2.RetrieveError
	if ok := asRetrieveError(err, &retrieveErr); ok {
		return strings.Contains(string(retrieveErr.Body), "invalid_grant")
	}
	return strings.Contains(err.Error(), "invalid_grant")
}

func asRetrieveError(err error, target **oauth2.RetrieveError) bool {
	for err != nil {
		if re, ok := err.(*oauth2.RetrieveError); ok {
			*target = re
			return true
		}
		u, ok := err.(interface{ Unwrap() error })
		if !ok {
			return false
		}
		err = u.Unwrap()
	}
	return false
}

func (g *googleClient) CreateEvent(ctx context.Context, userID uuid.UUID, calendarID string, event *Event) (string, error) {
	endpoint := fmt.Sprintf("%s/calendars/%s/events", calendarAPIBase, url.PathEscape(calendarID))

	var created Event
	if err := g.doJSON(ctx, userID, http.MethodPost, endpoint, event, &created); err != nil {
		return "", err
	}
	return created.ID, nil
}

func (g *googleClient) UpdateEvent(ctx context.Context, userID uuid.UUID, calendarID, eventID string, event *Event) error {
	endpoint := fmt.Sprintf("%s/calendars/%s/events/%s", calendarAPIBase, url.PathEscape(calendarID), url.PathEscape(eventID))
	return g.doJSON(ctx, userID, http.MethodPut, endpoint, event, nil)
}

func (g *googleClient) DeleteEvent(ctx context.Context, userID uuid.UUID, calendarID, eventID string) error {
	endpoint := fmt.Sprintf("%s/calendars/%s/events/%s", calendarAPIBase, url.PathEscape(calendarID), url.PathEscape(eventID))

	err := g.doJSON(ctx, userID, http.MethodDelete, endpoint, nil, nil)
	if err != nil {
		if ae, ok := err.(*errors.AppError); ok {
			// 404, and 410 for an event deleted on the provider side.
			// doJSON maps 410 to the cursor sentinel for listing calls;
			// on a delete it just means the event is already gone.
			if ae.Code == errors.ErrNotFound || ae.Code == errors.ErrCursorExpired {
				return nil
			}
		}
		return err
	}
	return nil
}

func (g *googleClient) ListEventsFull(ctx context.Context, userID uuid.UUID, calendarID string) (*ListResult, error) {
	params := url.Values{}
	params.Set("maxResults", "250")
	params.Set("showDeleted", "true")
	return g.listEvents(ctx, userID, calendarID, params)
}

func (g *googleClient) ListEventsIncremental(ctx context.Context, userID uuid.UUID, calendarID, syncToken string) (*ListResult, error) {
	params := url.Values{}
	params.Set("maxResults", "250")
	params.Set("syncToken", syncToken)
	return g.listEvents(ctx, userID, calendarID, params)
}

// listEvents paginates until the provider hands back a nextSyncToken.
func (g *googleClient) listEvents(ctx context.Context, userID uuid.UUID, calendarID string, params url.Values) (*ListResult, error) {
	result := &ListResult{}

	for {
		endpoint := fmt.Sprintf("%s/calendars/%s/events?%s", calendarAPIBase, url.PathEscape(calendarID), params.Encode())

		var page struct {
			Items         []Event `json:"items"`
			NextPageToken string  `json:"nextPageToken"`
			NextSyncToken string  `json:"nextSyncToken"`
		}
		if err := g.doJSON(ctx, userID, http.MethodGet, endpoint, nil, &page); err != nil {
			return nil, err
		}

		result.Events = append(result.Events, page.Items...)

		if page.NextPageToken == "" {
			result.SyncToken = page.NextSyncToken
			return result, nil
		}
		params.Set("pageToken", page.NextPageToken)
	}
}

func (g *googleClient) Watch(ctx context.Context, userID uuid.UUID, calendarID, channelID, callbackURL, token string) (*WatchResult, error) {
	endpoint := fmt.Sprintf("%s/calendars/%s/events/watch", calendarAPIBase, url.PathEscape(calendarID))

	body := map[string]string{
		"id":      channelID,
		"type":    "web_hook",
		"address": callbackURL,
		"token":   token,
	}

	var resp struct {
		ResourceID string `json:"resourceId"`
		Expiration string `json:"expiration"` // epoch millis as string
	}
	if err := g.doJSON(ctx, userID, http.MethodPost, endpoint, body, &resp); err != nil {
		return nil, err
	}

	millis, err := strconv.ParseInt(resp.Expiration, 10, 64)
	if err != nil {
		return nil, errors.NewAppError(errors.ErrProviderAPI, "invalid channel expiration in watch response", err)
	}

	return &WatchResult{
		ChannelID:  channelID,
		ResourceID: resp.ResourceID,
		ExpiresAt:  time.UnixMilli(millis),
	}, nil
}

func (g *googleClient) StopChannel(ctx context.Context, userID uuid.UUID, channelID, resourceID string) error {
	endpoint := calendarAPIBase + "/channels/stop"
	body := map[string]string{
		"id":         channelID,
		"resourceId": resourceID,
	}
	return g.doJSON(ctx, userID, http.MethodPost, endpoint, body, nil)
}

// doJSON performs one authenticated provider call, mapping the distinguished
// provider statuses onto the error taxonomy.
func (g *googleClient) doJSON(ctx context.Context, userID uuid.UUID, method, endpoint string, body, out any) error {
	accessToken, err := g.accessToken(ctx, userID)
	if err != nil {
		return err
	}

	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return errors.NewAppError(errors.ErrInternalServer, "failed to encode request body", err)
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, endpoint, reader)
	if err != nil {
		return errors.NewAppError(errors.ErrInternalServer, "failed to create request", err)
	}
	req.Header.Set("Authorization", "Bearer "+accessToken)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := g.http.Do(req)
	if err != nil {
		logger.Error("GoogleClient:Request:Error", "error", err, "method", method, "url", endpoint)
		return errors.NewAppError(errors.ErrProviderAPI, "calendar API request failed", err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusUnauthorized:
		return errors.NewAppError(errors.ErrReconnectRequired, "calendar authorization rejected", nil)
	case resp.StatusCode == http.StatusGone:
		// For listing calls this is the distinguished "sync token
		// expired" condition; callers fall back to a full listing.
		return errors.NewAppError(errors.ErrCursorExpired, "sync cursor expired", nil)
	case resp.StatusCode == http.StatusNotFound:
		return errors.NewAppError(errors.ErrNotFound, "calendar resource not found", nil)
	case resp.StatusCode >= 400:
		respBody, _ := io.ReadAll(resp.Body)
		logger.Error("GoogleClient:APIError", "status", resp.StatusCode, "body", string(respBody), "url", endpoint)
		return errors.NewAppError(errors.ErrProviderAPI, fmt.Sprintf("calendar API error: %d", resp.StatusCode), nil)
	}

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		logger.Error("GoogleClient:Decode:Error", "error", err, "url", endpoint)
		return errors.NewAppError(errors.ErrProviderAPI, "failed to parse calendar API response", err)
	}
	return nil
}
