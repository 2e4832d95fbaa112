package client

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strings"
	"time"
)

// OAuth endpoint paths relative to the API domain.
const (
	oauthAuthorizePath       = "oauth/authorize/"
	oauthMobileAuthorizePath = "oauth/mobile/authorize/"
	oauthTokenPath           = "oauth/token/"
	oauthDeauthorizePath     = "oauth/deauthorize/"
)

// TokenResponse is the payload returned by the token endpoint on exchange
// and refresh.
type TokenResponse struct {
	AccessToken  string          `json:"access_token"`
	RefreshToken string          `json:"refresh_token"`
	ExpiresAt    int64           `json:"expires_at"`
	ExpiresIn    int64           `json:"expires_in"`
	TokenType    string          `json:"token_type"`
	Athlete      json.RawMessage `json:"athlete,omitempty"`
}

// Expiry converts the epoch expiry to a UTC timestamp. Zero when the
// service did not report one.
func (t *TokenResponse) Expiry() time.Time {
	if t.ExpiresAt == 0 {
		return time.Time{}
	}
	return time.Unix(t.ExpiresAt, 0).UTC()
}

// AuthorizationURLOptions configures the OAuth redirect URL.
type AuthorizationURLOptions struct {
	ClientID    string
	RedirectURI string

	// ApprovalPrompt defaults to "auto".
	ApprovalPrompt ApprovalPrompt

	// Scopes defaults to [read, activity:read_all].
	Scopes []Scope

	// State is echoed back in the redirect URI when set.
	State string

	// Mobile selects the mobile authorization path.
	Mobile bool

	// DeepLink selects the strava:// app deep-link scheme. Takes precedence
	// over Mobile.
	DeepLink bool
}

// AuthorizationURL builds the Strava authorization redirect URL. Scope and
// approval prompt values are validated against their fixed vocabularies
// before anything leaves the process.
//
// See https://developers.strava.com/docs/authentication/
func AuthorizationURL(baseURL string, opts AuthorizationURLOptions) (string, error) {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}

	prompt := opts.ApprovalPrompt
	if prompt == "" {
		prompt = ApprovalPromptAuto
	}
	if !prompt.Valid() {
		return "", fmt.Errorf("%w: %q", ErrInvalidApprovalPrompt, prompt)
	}

	scopes := opts.Scopes
	if len(scopes) == 0 {
		scopes = []Scope{ScopeRead, ScopeActivityReadAll}
	}
	for _, s := range scopes {
		if !s.Valid() {
			return "", fmt.Errorf("%w: %q", ErrInvalidScope, s)
		}
	}

	qs := url.Values{}
	qs.Set("client_id", opts.ClientID)
	qs.Set("redirect_uri", opts.RedirectURI)
	qs.Set("response_type", "code")
	qs.Set("approval_prompt", string(prompt))
	qs.Set("scope", JoinScopes(scopes))
	if opts.State != "" {
		qs.Set("state", opts.State)
	}

	host := strings.TrimPrefix(strings.TrimPrefix(baseURL, "https://"), "http://")
	host = strings.TrimSuffix(host, "/")

	scheme := "https"
	path := oauthAuthorizePath
	switch {
	case opts.DeepLink:
		scheme = "strava"
		path = oauthMobileAuthorizePath
	case opts.Mobile:
		path = oauthMobileAuthorizePath
	}

	u := url.URL{
		Scheme:   scheme,
		Host:     host,
		Path:     "/" + path,
		RawQuery: qs.Encode(),
	}
	return u.String(), nil
}

// ExchangeToken exchanges the authorization code received on the redirect
// URI for a token pair. The returned access token is attached to the
// client for subsequent calls.
func (c *Client) ExchangeToken(ctx context.Context, clientID, clientSecret, code string) (*TokenResponse, error) {
	params := url.Values{}
	params.Set("client_id", clientID)
	params.Set("client_secret", clientSecret)
	params.Set("code", code)
	params.Set("grant_type", "authorization_code")

	return c.tokenRequest(ctx, params)
}

// RefreshToken exchanges a refresh token for a new access/refresh token
// pair. The returned access token is attached to the client.
func (c *Client) RefreshToken(ctx context.Context, clientID, clientSecret, refreshToken string) (*TokenResponse, error) {
	params := url.Values{}
	params.Set("client_id", clientID)
	params.Set("client_secret", clientSecret)
	params.Set("grant_type", "refresh_token")
	params.Set("refresh_token", refreshToken)

	return c.tokenRequest(ctx, params)
}

func (c *Client) tokenRequest(ctx context.Context, params url.Values) (*TokenResponse, error) {
	raw, err := c.dispatch(ctx, "POST", oauthTokenPath, requestOptions{params: params})
	if err != nil {
		return nil, err
	}

	var token TokenResponse
	if err := json.Unmarshal(raw, &token); err != nil {
		return nil, fmt.Errorf("decode token response: %w", err)
	}
	c.accessToken = token.AccessToken
	return &token, nil
}

// Deauthorize revokes the given access token, invalidating the grant.
func (c *Client) Deauthorize(ctx context.Context, accessToken string) error {
	params := url.Values{}
	params.Set("access_token", accessToken)

	_, err := c.dispatch(ctx, "POST", oauthDeauthorizePath, requestOptions{params: params})
	return err
}
