package client

import (
	"errors"
	"fmt"
	"net/http"
)

// Common errors returned by the client.
var (
	// ErrImproperlyConfigured is returned when the client configuration is
	// incomplete. It is a local error, never caused by the remote service.
	ErrImproperlyConfigured = errors.New("improperly configured")

	// ErrInvalidScope is returned when a scope outside the fixed vocabulary
	// is requested.
	ErrInvalidScope = errors.New("invalid scope")

	// ErrInvalidApprovalPrompt is returned for approval prompt values other
	// than "auto" or "force".
	ErrInvalidApprovalPrompt = errors.New("invalid approval prompt")
)

// Kind classifies an API error by the HTTP status that produced it.
type Kind string

const (
	// KindInvalidRequest maps HTTP 400.
	KindInvalidRequest Kind = "invalid_request"

	// KindUnauthenticated maps HTTP 401.
	KindUnauthenticated Kind = "unauthenticated"

	// KindPremiumAccountRequired maps HTTP 402.
	KindPremiumAccountRequired Kind = "premium_account_required"

	// KindPermissionDenied maps HTTP 403.
	KindPermissionDenied Kind = "permission_denied"

	// KindNotFound maps HTTP 404.
	KindNotFound Kind = "not_found"

	// KindRequestLimitExceeded maps HTTP 429.
	KindRequestLimitExceeded Kind = "request_limit_exceeded"

	// KindServiceError covers every other non-2xx status.
	KindServiceError Kind = "service_error"
)

// APIError represents an error response from the Strava API. It carries a
// snapshot of the original response for caller inspection.
type APIError struct {
	StatusCode int
	Kind       Kind
	Body       []byte
	Header     http.Header
}

// Error implements the error interface.
func (e *APIError) Error() string {
	if len(e.Body) > 0 {
		return fmt.Sprintf("strava %s error (status %d): %s", e.Kind, e.StatusCode, e.Body)
	}
	return fmt.Sprintf("strava %s error (status %d)", e.Kind, e.StatusCode)
}

// classifyStatus maps an HTTP status code to an error Kind. Returns the
// empty Kind for 2xx statuses.
func classifyStatus(code int) Kind {
	if code >= 200 && code < 300 {
		return ""
	}
	switch code {
	case http.StatusBadRequest:
		return KindInvalidRequest
	case http.StatusUnauthorized:
		return KindUnauthenticated
	case http.StatusPaymentRequired:
		return KindPremiumAccountRequired
	case http.StatusForbidden:
		return KindPermissionDenied
	case http.StatusNotFound:
		return KindNotFound
	case http.StatusTooManyRequests:
		return KindRequestLimitExceeded
	default:
		return KindServiceError
	}
}

// IsUnauthenticated reports whether err is an APIError with status 401.
// The session manager uses it to decide on a refresh-and-retry.
func IsUnauthenticated(err error) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.Kind == KindUnauthenticated
}

// IsNotFound reports whether err is an APIError with status 404.
func IsNotFound(err error) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.Kind == KindNotFound
}
