package chat

import (
	"context"
	"strings"

	"github.com/clefbot/clef/internal/bus"
	"github.com/clefbot/clef/internal/cooldown"
	"github.com/clefbot/clef/internal/registry"
)

// NotificationKind enumerates events the handler broadcasts for other
// components to observe.
type NotificationKind int

const (
	// NotificationPing fires whenever the hard-coded !ping command runs.
	NotificationPing NotificationKind = iota
)

// Notification is one event broadcast on the handler's bus.
type Notification struct {
	Kind NotificationKind
	User string
}

// MessageHook observes every PRIVMSG after it is parsed, independent of
// command dispatch. Hooks run concurrently in the background and never
// block dispatch.
type MessageHook func(ctx context.Context, user User, message string)

// BadWords checks a single (already-lowercased, trimmed) word against the
// channel's configured bad-word list.
type BadWords interface {
	Enabled() bool
	Check(word string) (reason string, matched bool)
}

// URLWhitelist checks whether a URL host may be posted without moderator
// or bypass-scope privilege.
type URLWhitelist interface {
	Enabled() bool
	IsAllowed(host string) bool
}

// RespondErr lets a command handler control the exact text of its failure
// reply instead of the generic fallback message.
type RespondErr struct {
	Message string
}

func (e *RespondErr) Error() string { return e.Message }

// ScopeRequirements maps a registry command name to the scope a caller
// must hold to invoke it. Handlers that don't need authorization simply
// aren't present in the map.
type ScopeRequirements map[string]Scope

// Handler implements the per-message chat algorithm: hooks, idle tracking,
// alias expansion, command-DB templates, bang-command dispatch, and
// moderation deletion checks.
type Handler struct {
	sender    *Sender
	registry  *registry.Registry
	scopes    ScopeRequirements
	aliases   AliasStore
	commands  CommandDB
	cooldowns *cooldown.ScopeCooldowns
	idle      *cooldown.Idle
	pending   *PendingTasks
	notify    *bus.Bus[Notification]
	badWords  BadWords
	whitelist URLWhitelist
	hooks     []MessageHook

	apiURL        string
	streamerLogin string
}

// Config bundles a Handler's dependencies.
type Config struct {
	Sender        *Sender
	Registry      *registry.Registry
	Scopes        ScopeRequirements
	Aliases       AliasStore
	Commands      CommandDB
	Cooldowns     *cooldown.ScopeCooldowns
	Idle          *cooldown.Idle
	Pending       *PendingTasks
	Notify        *bus.Bus[Notification]
	BadWords      BadWords
	URLWhitelist  URLWhitelist
	Hooks         []MessageHook
	APIURL        string
	StreamerLogin string
}

// NewHandler constructs a Handler from cfg.
func NewHandler(cfg Config) *Handler {
	if cfg.Scopes == nil {
		cfg.Scopes = ScopeRequirements{}
	}
	if cfg.Pending == nil {
		cfg.Pending = NewPendingTasks(0)
	}
	return &Handler{
		sender:        cfg.Sender,
		registry:      cfg.Registry,
		scopes:        cfg.Scopes,
		aliases:       cfg.Aliases,
		commands:      cfg.Commands,
		cooldowns:     cfg.Cooldowns,
		idle:          cfg.Idle,
		pending:       cfg.Pending,
		notify:        cfg.Notify,
		badWords:      cfg.BadWords,
		whitelist:     cfg.URLWhitelist,
		hooks:         cfg.Hooks,
		apiURL:        cfg.APIURL,
		streamerLogin: cfg.StreamerLogin,
	}
}

// HandlePrivmsg runs the full per-message algorithm for one PRIVMSG.
func (h *Handler) HandlePrivmsg(ctx context.Context, msg Message, user User) {
	body := msg.Trailing()
	msgID, _ := msg.Tag("id")

	for _, hook := range h.hooks {
		hook := hook
		h.pending.Spawn(ctx, func(ctx context.Context) {
			hook(ctx, user, body)
		})
	}

	if !user.IsStreamer {
		h.idle.Bump()
	}

	expanded, err := ExpandAlias(h.aliases, h.streamerLogin, body)
	if err != nil {
		if _, ok := err.(*AliasCycleError); ok {
			h.sender.Privmsg(err.Error())
		}
		return
	}
	body = expanded

	first, rest := splitFirstWord(body)
	if first == "" {
		return
	}

	if rendered, matched, err := MatchCommand(h.commands, h.streamerLogin, strings.ToLower(first), rest); err == nil && matched {
		h.sender.Privmsg(rendered)
		return
	}

	if strings.HasPrefix(first, "!") {
		h.dispatchBangCommand(ctx, strings.TrimPrefix(first, "!"), rest, user)
	}

	h.runDeletionCheck(user, body, msgID)
}

func (h *Handler) dispatchBangCommand(ctx context.Context, name, rest string, user User) {
	if name == "ping" {
		h.sender.Privmsg("What do you want?")
		h.notify.Send(Notification{Kind: NotificationPing, User: user.Login})
		return
	}

	handler, ok := h.registry.Lookup(name)
	if !ok {
		return
	}

	if scope, ok := h.scopes[name]; ok {
		if !user.HasScope(scope) {
			if user.IsModerator {
				h.sender.Privmsg("not allowed")
			} else {
				h.sender.Privmsg(rejectionQuip())
			}
			return
		}
	}

	words := strings.Fields(rest)
	h.pending.Spawn(ctx, func(ctx context.Context) {
		cmdCtx := registry.Context{
			APIURL: h.apiURL,
			User:   user.Login,
			Args:   words,
			Respond: func(message string) {
				h.sender.Privmsg(respondTo(user, message))
			},
		}
		if err := handler(cmdCtx); err != nil {
			if respondErr, ok := err.(*RespondErr); ok {
				h.sender.Privmsg(respondErr.Message)
				return
			}
			h.sender.Privmsg("Sorry, something went wrong :(")
		}
	})
}

// respondTo prefixes a command response with the requesting user's display
// name, matching the convention every reply carries in the upstream chat
// crate's User::respond.
func respondTo(user User, message string) string {
	name := user.DisplayName
	if name == "" {
		name = user.Login
	}
	return name + " -> " + message
}

func rejectionQuip() string {
	return "nice try, but no."
}

func (h *Handler) runDeletionCheck(user User, body, msgID string) {
	if msgID == "" || user.IsModerator {
		return
	}
	if h.badWords != nil && h.badWords.Enabled() {
		for _, word := range strings.Fields(body) {
			word = strings.ToLower(strings.Trim(word, ".,!?\"'"))
			if word == "" {
				continue
			}
			if reason, matched := h.badWords.Check(word); matched {
				h.sender.Privmsg(reason)
				h.sender.Delete(msgID)
				return
			}
		}
	}
	if h.whitelist != nil && h.whitelist.Enabled() && !user.HasScope(ScopeBypassURLWhitelist) {
		for _, host := range extractURLHosts(body) {
			if !h.whitelist.IsAllowed(host) {
				h.sender.Delete(msgID)
				return
			}
		}
	}
}
