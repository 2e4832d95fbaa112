package session

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/fitwire/strava-client/pkg/client"
	"github.com/fitwire/strava-client/pkg/pagination"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// Config holds the application-level Strava settings shared by all
// managers.
type Config struct {
	ClientID     string
	ClientSecret string
	RedirectURI  string

	// WebhookCallbackURL receives push subscription events.
	WebhookCallbackURL string

	// WebhookVerifyToken is the secret echoed during callback validation.
	// Defaults to client.DefaultVerifyToken.
	WebhookVerifyToken string

	// DefaultAthleteID/DefaultRefreshToken seed ByDefaultAthlete.
	DefaultAthleteID    int64
	DefaultRefreshToken string
}

func (c Config) verifyToken() string {
	if c.WebhookVerifyToken == "" {
		return client.DefaultVerifyToken
	}
	return c.WebhookVerifyToken
}

// Manager binds one athlete's persisted credentials to a client and wraps
// every authenticated operation with the token lifecycle: an expiry
// pre-check before the call and exactly one refresh-and-retry when the
// remote service answers 401.
//
// Managers are not reentrant-safe across concurrent callers sharing one
// session: two callers observing an expired token may both refresh. The
// store applies updates last-write-wins, and either refresh yields a
// usable token.
type Manager struct {
	cfg       Config
	store     Store
	client    *client.Client
	athleteID int64
	logger    zerolog.Logger

	// now is a clock hook for tests.
	now func() time.Time
}

// NewManager creates a manager for the athlete's stored credentials.
func NewManager(cfg Config, store Store, cl *client.Client, athleteID int64) *Manager {
	return &Manager{
		cfg:       cfg,
		store:     store,
		client:    cl,
		athleteID: athleteID,
		logger:    log.With().Str("component", "strava-session").Int64("athlete_id", athleteID).Logger(),
		now:       time.Now,
	}
}

// ByDefaultAthlete returns a manager for the configured default athlete,
// creating its auth record from the configured refresh token when absent.
func ByDefaultAthlete(ctx context.Context, cfg Config, store Store, cl *client.Client) (*Manager, error) {
	_, err := store.Find(ctx, cfg.DefaultAthleteID)
	if err == ErrNotFound {
		rec := &Record{
			AthleteID:    cfg.DefaultAthleteID,
			RefreshToken: cfg.DefaultRefreshToken,
		}
		if err := store.Create(ctx, rec); err != nil && err != ErrAlreadyExists {
			return nil, err
		}
	} else if err != nil {
		return nil, err
	}
	return NewManager(cfg, store, cl, cfg.DefaultAthleteID), nil
}

// Exchange trades an authorization code for a token pair, persists the
// resulting auth record (creating it, or partially updating the fields
// that changed), and returns a manager bound to the athlete.
func Exchange(ctx context.Context, cfg Config, store Store, cl *client.Client, code string, scopes []client.Scope) (*Manager, error) {
	tok, err := cl.ExchangeToken(ctx, cfg.ClientID, cfg.ClientSecret, code)
	if err != nil {
		return nil, err
	}

	var athlete struct {
		ID int64 `json:"id"`
	}
	if err := json.Unmarshal(tok.Athlete, &athlete); err != nil {
		return nil, fmt.Errorf("decode athlete payload: %w", err)
	}

	rec := &Record{
		AthleteID:    athlete.ID,
		AccessToken:  tok.AccessToken,
		RefreshToken: tok.RefreshToken,
		ExpiresAt:    tok.Expiry(),
		Scope:        scopes,
	}

	existing, err := store.Find(ctx, athlete.ID)
	switch err {
	case nil:
		changes := Changes{}
		if existing.AccessToken != rec.AccessToken {
			changes[FieldAccessToken] = rec.AccessToken
		}
		if existing.RefreshToken != rec.RefreshToken {
			changes[FieldRefreshToken] = rec.RefreshToken
		}
		if !existing.ExpiresAt.Equal(rec.ExpiresAt) {
			changes[FieldExpiresAt] = rec.ExpiresAt
		}
		if client.JoinScopes(existing.Scope) != client.JoinScopes(rec.Scope) {
			changes[FieldScope] = rec.Scope
		}
		if len(changes) > 0 {
			if err := store.Update(ctx, athlete.ID, changes); err != nil {
				return nil, err
			}
		}
	case ErrNotFound:
		if err := store.Create(ctx, rec); err != nil {
			return nil, err
		}
	default:
		return nil, err
	}

	return NewManager(cfg, store, cl, athlete.ID), nil
}

// AuthorizationURL builds the OAuth redirect URL from the configured
// application credentials.
func (c Config) AuthorizationURL(opts client.AuthorizationURLOptions) (string, error) {
	opts.ClientID = c.ClientID
	opts.RedirectURI = c.RedirectURI
	return client.AuthorizationURL("", opts)
}

// AthleteID returns the athlete this manager is bound to.
func (m *Manager) AthleteID() int64 {
	return m.athleteID
}

// Record returns the persisted auth record.
func (m *Manager) Record(ctx context.Context) (*Record, error) {
	return m.store.Find(ctx, m.athleteID)
}

// Refresh exchanges the stored refresh token for a new token pair and
// persists the fields that changed: access token and expiry always, the
// refresh token only when the service rotated it (the newly received value
// differs from the stored one).
func (m *Manager) Refresh(ctx context.Context) error {
	rec, err := m.store.Find(ctx, m.athleteID)
	if err != nil {
		return err
	}

	tok, err := m.client.RefreshToken(ctx, m.cfg.ClientID, m.cfg.ClientSecret, rec.RefreshToken)
	if err != nil {
		return fmt.Errorf("refresh token: %w", err)
	}

	changes := Changes{
		FieldAccessToken: tok.AccessToken,
		FieldExpiresAt:   tok.Expiry(),
	}
	rotated := tok.RefreshToken != "" && tok.RefreshToken != rec.RefreshToken
	if rotated {
		changes[FieldRefreshToken] = tok.RefreshToken
	}
	if err := m.store.Update(ctx, m.athleteID, changes); err != nil {
		return err
	}

	m.logger.Info().
		Time("expires_at", tok.Expiry()).
		Bool("refresh_token_rotated", rotated).
		Msg("Access token refreshed")
	return nil
}

// invoke runs an authenticated operation under the token lifecycle: an
// expired (but not unknown) expiry triggers a refresh before the call, and
// a 401 from the call triggers exactly one refresh-and-retry. A second 401
// propagates; the retry budget is one.
func (m *Manager) invoke(ctx context.Context, op func(ctx context.Context, cl *client.Client) (json.RawMessage, error)) (json.RawMessage, error) {
	rec, err := m.store.Find(ctx, m.athleteID)
	if err != nil {
		return nil, err
	}

	if rec.Expired(m.now()) {
		if err := m.Refresh(ctx); err != nil {
			return nil, err
		}
	} else {
		m.client.SetAccessToken(rec.AccessToken)
	}

	res, err := op(ctx, m.client)
	if err == nil || !client.IsUnauthenticated(err) {
		return res, err
	}

	m.logger.Debug().Msg("Unauthenticated response, refreshing and retrying once")
	if rerr := m.Refresh(ctx); rerr != nil {
		return nil, rerr
	}
	return op(ctx, m.client)
}

// AthleteProfile returns the athlete's profile.
func (m *Manager) AthleteProfile(ctx context.Context) (json.RawMessage, error) {
	return m.invoke(ctx, func(ctx context.Context, cl *client.Client) (json.RawMessage, error) {
		return cl.AthleteProfile(ctx)
	})
}

// Activities returns a lazy iterator over the athlete's activities. Every
// page fetch runs under the token lifecycle, so long iterations survive a
// token expiring mid-way.
func (m *Manager) Activities(filter client.ActivityFilter) *pagination.BatchIterator[json.RawMessage] {
	perPage := filter.PerPage
	if perPage <= 0 {
		perPage = 50
	}

	fetch := func(ctx context.Context, page, perPage int) ([]json.RawMessage, error) {
		var items []json.RawMessage
		_, err := m.invoke(ctx, func(ctx context.Context, cl *client.Client) (json.RawMessage, error) {
			var err error
			items, err = cl.ActivitiesPage(ctx, filter, page, perPage)
			return nil, err
		})
		return items, err
	}

	opts := []pagination.Option{pagination.WithPerPage(perPage)}
	if filter.Limited {
		opts = append(opts, pagination.WithLimit(filter.Limit))
	}
	return pagination.New(fetch, opts...)
}

// Activity returns a single activity by id.
func (m *Manager) Activity(ctx context.Context, activityID int64, includeAllEfforts bool) (json.RawMessage, error) {
	return m.invoke(ctx, func(ctx context.Context, cl *client.Client) (json.RawMessage, error) {
		return cl.Activity(ctx, activityID, includeAllEfforts)
	})
}

// ExploreSegments returns the top segments within the boundary.
func (m *Manager) ExploreSegments(ctx context.Context, bounds client.SegmentBounds, opts client.ExploreSegmentsOptions) (json.RawMessage, error) {
	return m.invoke(ctx, func(ctx context.Context, cl *client.Client) (json.RawMessage, error) {
		return cl.ExploreSegments(ctx, bounds, opts)
	})
}

// Segment returns a single segment by id.
func (m *Manager) Segment(ctx context.Context, segmentID int64) (json.RawMessage, error) {
	return m.invoke(ctx, func(ctx context.Context, cl *client.Client) (json.RawMessage, error) {
		return cl.Segment(ctx, segmentID)
	})
}

// SegmentEfforts returns a lazy iterator over the athlete's efforts on a
// segment, page fetches running under the token lifecycle.
func (m *Manager) SegmentEfforts(segmentID int64, perPage, limit int, limited bool) *pagination.BatchIterator[json.RawMessage] {
	if perPage <= 0 {
		perPage = 50
	}

	fetch := func(ctx context.Context, page, perPage int) ([]json.RawMessage, error) {
		var items []json.RawMessage
		_, err := m.invoke(ctx, func(ctx context.Context, cl *client.Client) (json.RawMessage, error) {
			var err error
			items, err = cl.SegmentEffortsPage(ctx, segmentID, page, perPage)
			return nil, err
		})
		return items, err
	}

	opts := []pagination.Option{pagination.WithPerPage(perPage)}
	if limited {
		opts = append(opts, pagination.WithLimit(limit))
	}
	return pagination.New(fetch, opts...)
}

// SegmentEffort returns a single segment effort by id.
func (m *Manager) SegmentEffort(ctx context.Context, effortID int64) (json.RawMessage, error) {
	return m.invoke(ctx, func(ctx context.Context, cl *client.Client) (json.RawMessage, error) {
		return cl.SegmentEffort(ctx, effortID)
	})
}

// Deauthorize revokes the stored access token.
func (m *Manager) Deauthorize(ctx context.Context) error {
	rec, err := m.store.Find(ctx, m.athleteID)
	if err != nil {
		return err
	}
	return m.client.Deauthorize(ctx, rec.AccessToken)
}

// SubscribeWebhook registers the configured callback URL for push events.
func (m *Manager) SubscribeWebhook(ctx context.Context) (json.RawMessage, error) {
	return m.client.SubscribeWebhook(ctx, m.cfg.ClientID, m.cfg.ClientSecret, m.cfg.WebhookCallbackURL, m.cfg.verifyToken())
}

// ValidateWebhookSubscription answers Strava's callback validation request
// against the configured verify token.
func (m *Manager) ValidateWebhookSubscription(hubMode, hubChallenge, verifyToken string) (map[string]string, error) {
	return client.ValidateSubscription(hubMode, hubChallenge, verifyToken, m.cfg.verifyToken())
}

// CheckWebhookSubscription lists the registered push subscriptions.
func (m *Manager) CheckWebhookSubscription(ctx context.Context) (json.RawMessage, error) {
	return m.client.CheckWebhookSubscription(ctx, m.cfg.ClientID, m.cfg.ClientSecret)
}

// DeleteWebhookSubscription removes a push subscription by id.
func (m *Manager) DeleteWebhookSubscription(ctx context.Context, subscriptionID int64) error {
	return m.client.DeleteWebhookSubscription(ctx, subscriptionID, m.cfg.ClientID, m.cfg.ClientSecret)
}
