package client

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"strconv"
)

const webhookSubscriptionPath = "push_subscriptions/"

// DefaultVerifyToken is the verify token used when none is configured.
const DefaultVerifyToken = "STRAVA"

// Webhook callback validation errors.
var (
	ErrInvalidHubMode     = errors.New("invalid hub mode")
	ErrInvalidVerifyToken = errors.New("invalid verify token")
)

// SubscribeWebhook creates a push subscription pointing at callbackURL.
// Strava validates the callback with a GET carrying hub.* parameters; see
// ValidateSubscription.
func (c *Client) SubscribeWebhook(ctx context.Context, clientID, clientSecret, callbackURL, verifyToken string) (json.RawMessage, error) {
	if verifyToken == "" {
		verifyToken = DefaultVerifyToken
	}

	params := url.Values{}
	params.Set("client_id", clientID)
	params.Set("client_secret", clientSecret)
	params.Set("callback_url", callbackURL)
	params.Set("verify_token", verifyToken)

	return c.dispatch(ctx, "POST", webhookSubscriptionPath, requestOptions{params: params, webhook: true})
}

// CheckWebhookSubscription returns the push subscriptions registered for
// the application.
func (c *Client) CheckWebhookSubscription(ctx context.Context, clientID, clientSecret string) (json.RawMessage, error) {
	params := url.Values{}
	params.Set("client_id", clientID)
	params.Set("client_secret", clientSecret)

	return c.dispatch(ctx, "GET", webhookSubscriptionPath, requestOptions{params: params, webhook: true})
}

// DeleteWebhookSubscription removes a push subscription by id.
func (c *Client) DeleteWebhookSubscription(ctx context.Context, subscriptionID int64, clientID, clientSecret string) error {
	params := url.Values{}
	params.Set("id", strconv.FormatInt(subscriptionID, 10))
	params.Set("client_id", clientID)
	params.Set("client_secret", clientSecret)

	_, err := c.dispatch(ctx, "DELETE", webhookSubscriptionPath, requestOptions{params: params, webhook: true})
	return err
}

// ValidateSubscription answers the callback validation request Strava
// sends after SubscribeWebhook. hubMode must be the literal "subscribe"
// and verifyToken must match the expected secret; the challenge is echoed
// back under the "hub.challenge" key.
func ValidateSubscription(hubMode, hubChallenge, verifyToken, expectedToken string) (map[string]string, error) {
	if hubMode != "subscribe" {
		return nil, fmt.Errorf("%w: %q", ErrInvalidHubMode, hubMode)
	}
	if expectedToken == "" {
		expectedToken = DefaultVerifyToken
	}
	if verifyToken != expectedToken {
		return nil, fmt.Errorf("%w: %q", ErrInvalidVerifyToken, verifyToken)
	}
	return map[string]string{"hub.challenge": hubChallenge}, nil
}
