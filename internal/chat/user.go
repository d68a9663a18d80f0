package chat

import "strings"

// Scope names a permission a command handler may require.
type Scope string

const (
	// ScopeModerator is held by channel moderators.
	ScopeModerator Scope = "moderator"
	// ScopeVIP is held by channel VIPs.
	ScopeVIP Scope = "vip"
	// ScopeStreamer is held only by the channel owner.
	ScopeStreamer Scope = "streamer"
	// ScopeBypassURLWhitelist lets a user post links outside the whitelist.
	ScopeBypassURLWhitelist Scope = "chat_bypass_url_whitelist"
)

// User is the principal behind one chat message: either a chat-observed
// login with role tags, or an injected principal carrying explicit scopes
// (used by internal callers that synthesize a command dispatch, e.g. the
// web API surface).
type User struct {
	Login       string
	DisplayName string
	Tags        map[string]string

	IsModerator bool
	IsVIP       bool
	IsStreamer  bool

	// Injected scopes beyond the role-derived ones above.
	ExtraScopes map[Scope]bool
}

// HasScope reports whether the user satisfies scope, deriving Moderator,
// VIP, and Streamer from their role flags and consulting ExtraScopes for
// everything else.
func (u User) HasScope(scope Scope) bool {
	switch scope {
	case ScopeModerator:
		return u.IsModerator || u.IsStreamer
	case ScopeVIP:
		return u.IsVIP || u.IsModerator || u.IsStreamer
	case ScopeStreamer:
		return u.IsStreamer
	default:
		return u.ExtraScopes[scope]
	}
}

// Tag returns a tag value by name.
func (u User) Tag(name string) (string, bool) {
	v, ok := u.Tags[name]
	return v, ok
}

// NewUserFromTags builds a User from a PRIVMSG's tags and sender login,
// resolving role membership against the shared moderator/VIP sets.
func NewUserFromTags(login string, tags map[string]string, isModerator, isVIP, isStreamer bool) User {
	return User{
		Login:       strings.ToLower(strings.TrimSpace(login)),
		DisplayName: tags["display-name"],
		Tags:        tags,
		IsModerator: isModerator,
		IsVIP:       isVIP,
		IsStreamer:  isStreamer,
	}
}
