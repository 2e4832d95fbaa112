// Package session persists per-athlete OAuth credentials and wraps client
// operations with transparent token refresh.
package session

import (
	"time"

	"github.com/fitwire/strava-client/pkg/client"
)

// Record associates a local athlete identity with its OAuth token and the
// scopes granted during authorization. At most one record exists per
// athlete id. Only the refresh flow mutates the token fields.
type Record struct {
	AthleteID    int64          `json:"athlete_id"`
	AccessToken  string         `json:"access_token"`
	RefreshToken string         `json:"refresh_token"`
	Scope        []client.Scope `json:"scope,omitempty"`

	// ExpiresAt is the access token expiry. Zero means not yet known; the
	// expiry pre-check is skipped until a refresh reports one.
	ExpiresAt time.Time `json:"expires_at"`
}

// Expired reports whether the access token expiry has passed at the given
// instant. An unknown expiry is never considered expired.
func (r *Record) Expired(now time.Time) bool {
	if r.ExpiresAt.IsZero() {
		return false
	}
	return r.ExpiresAt.UTC().Before(now.UTC())
}

// Field names accepted by Store.Update.
const (
	FieldAccessToken  = "access_token"
	FieldRefreshToken = "refresh_token"
	FieldExpiresAt    = "expires_at"
	FieldScope        = "scope"
)

// Changes maps changed field names to their new values for a partial
// update. How the change is applied is the store's decision.
type Changes map[string]any

// apply writes the changed fields onto a record. Unknown field names and
// mismatched value types are ignored.
func (c Changes) apply(rec *Record) {
	for field, value := range c {
		switch field {
		case FieldAccessToken:
			if v, ok := value.(string); ok {
				rec.AccessToken = v
			}
		case FieldRefreshToken:
			if v, ok := value.(string); ok {
				rec.RefreshToken = v
			}
		case FieldExpiresAt:
			if v, ok := value.(time.Time); ok {
				rec.ExpiresAt = v
			}
		case FieldScope:
			if v, ok := value.([]client.Scope); ok {
				rec.Scope = v
			}
		}
	}
}
