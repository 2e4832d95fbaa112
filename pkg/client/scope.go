package client

import "strings"

// Scope is an OAuth permission from the fixed Strava vocabulary.
type Scope string

const (
	ScopeRead            Scope = "read"
	ScopeReadAll         Scope = "read_all"
	ScopeProfileReadAll  Scope = "profile:read_all"
	ScopeProfileWrite    Scope = "profile:write"
	ScopeActivityRead    Scope = "activity:read"
	ScopeActivityReadAll Scope = "activity:read_all"
	ScopeActivityWrite   Scope = "activity:write"
)

// allScopes is the closed vocabulary accepted by the authorization server.
var allScopes = map[Scope]struct{}{
	ScopeRead:            {},
	ScopeReadAll:         {},
	ScopeProfileReadAll:  {},
	ScopeProfileWrite:    {},
	ScopeActivityRead:    {},
	ScopeActivityReadAll: {},
	ScopeActivityWrite:   {},
}

// Valid reports whether s belongs to the fixed scope vocabulary.
func (s Scope) Valid() bool {
	_, ok := allScopes[s]
	return ok
}

// JoinScopes renders scopes as the comma-separated form used in the
// authorization URL and stored on the auth record.
func JoinScopes(scopes []Scope) string {
	parts := make([]string, len(scopes))
	for i, s := range scopes {
		parts[i] = string(s)
	}
	return strings.Join(parts, ",")
}

// SplitScopes parses the comma-separated form back into scopes. Unknown
// values are preserved as-is; validation is the caller's concern.
func SplitScopes(joined string) []Scope {
	if joined == "" {
		return nil
	}
	parts := strings.Split(joined, ",")
	scopes := make([]Scope, len(parts))
	for i, p := range parts {
		scopes[i] = Scope(strings.TrimSpace(p))
	}
	return scopes
}

// ApprovalPrompt controls whether the authorization prompt is shown again
// to a user that already granted access.
type ApprovalPrompt string

const (
	ApprovalPromptAuto  ApprovalPrompt = "auto"
	ApprovalPromptForce ApprovalPrompt = "force"
)

// Valid reports whether p is one of the two accepted prompt values.
func (p ApprovalPrompt) Valid() bool {
	return p == ApprovalPromptAuto || p == ApprovalPromptForce
}
