package chat

import (
	"context"
	"strings"

	"github.com/clefbot/clef/internal/roles"
)

// HistoryLog is the subset of the message/event history log the router
// needs to honor moderation deletions.
type HistoryLog interface {
	Enabled() bool
	DeleteMessage(messageID string)
	DeleteUser(login string)
	DeleteAll()
}

// messageAppender is an optional capability of a HistoryLog that also
// records inbound messages for later deletion lookup (history.Writer
// implements it; test fakes that only exercise deletion need not).
type messageAppender interface {
	AppendMessage(messageID, login, text string) error
}

// Router classifies every parsed protocol Message and dispatches it to the
// right handler: PRIVMSG goes through the full chat algorithm, CAP/PING/
// NOTICE/CLEARMSG/CLEARCHAT are handled here directly since they never
// touch command dispatch.
type Router struct {
	handler       *Handler
	roles         *roles.Store
	history       HistoryLog
	streamerLogin string

	onPong        func()
	onAuthFailure func()
}

// RouterConfig bundles a Router's dependencies.
type RouterConfig struct {
	Handler       *Handler
	Roles         *roles.Store
	History       HistoryLog
	StreamerLogin string
	OnPong        func()
	OnAuthFailure func()
}

// NewRouter constructs a Router from cfg.
func NewRouter(cfg RouterConfig) *Router {
	return &Router{
		handler:       cfg.Handler,
		roles:         cfg.Roles,
		history:       cfg.History,
		streamerLogin: cfg.StreamerLogin,
		onPong:        cfg.OnPong,
		onAuthFailure: cfg.OnAuthFailure,
	}
}

// Route dispatches one parsed Message.
func (r *Router) Route(ctx context.Context, msg Message) {
	switch msg.Command {
	case "PRIVMSG":
		r.routePrivmsg(ctx, msg)
	case "PING":
		r.handler.sender.SendImmediate(EncodePong(msg.Trailing()))
	case "PONG":
		if r.onPong != nil {
			r.onPong()
		}
	case "CAP":
		r.routeCap(msg)
	case "NOTICE":
		r.routeNotice(msg)
	case "CLEARMSG":
		r.routeClearMsg(msg)
	case "CLEARCHAT":
		r.routeClearChat(msg)
	}
}

func (r *Router) routePrivmsg(ctx context.Context, msg Message) {
	login := prefixLogin(msg.Prefix)
	user := NewUserFromTags(
		login,
		msg.Tags,
		r.roles.IsModerator(login),
		r.roles.IsVIP(login),
		login == r.streamerLogin,
	)
	if id, ok := msg.Tag("id"); ok && r.history != nil && r.history.Enabled() {
		if appender, ok := r.history.(messageAppender); ok {
			_ = appender.AppendMessage(id, login, msg.Trailing())
		}
	}
	r.handler.HandlePrivmsg(ctx, msg, user)
}

func (r *Router) routeCap(msg Message) {
	for _, p := range msg.Params {
		if strings.EqualFold(p, "ACK") {
			r.handler.sender.Mods()
			r.handler.sender.Vips()
			return
		}
	}
}

func (r *Router) routeNotice(msg Message) {
	msgID, _ := msg.Tag("msg-id")
	body := msg.Trailing()

	switch msgID {
	case "room_mods":
		r.roles.ApplyModerators(ParseNoticeRoleList(body))
	case "vips_success":
		r.roles.ApplyVIPs(ParseNoticeRoleList(body))
	case "no_mods":
		r.roles.ApplyModerators(nil)
	case "no_vips":
		r.roles.ApplyVIPs(nil)
	}

	if strings.Contains(body, "Login authentication failed") && r.onAuthFailure != nil {
		r.onAuthFailure()
	}
}

func (r *Router) routeClearMsg(msg Message) {
	if r.history == nil || !r.history.Enabled() {
		return
	}
	if id, ok := msg.Tag("target-msg-id"); ok && id != "" {
		r.history.DeleteMessage(id)
	}
}

func (r *Router) routeClearChat(msg Message) {
	if r.history == nil || !r.history.Enabled() {
		return
	}
	if len(msg.Params) >= 2 && msg.Params[len(msg.Params)-1] != "" {
		r.history.DeleteUser(msg.Params[len(msg.Params)-1])
	} else {
		r.history.DeleteAll()
	}
}

// prefixLogin extracts the lowercased login from a protocol prefix of the
// form nick!user@host, or returns the whole prefix lowercased if it carries
// no user/host suffix.
func prefixLogin(prefix string) string {
	if idx := strings.IndexByte(prefix, '!'); idx >= 0 {
		return strings.ToLower(prefix[:idx])
	}
	return strings.ToLower(prefix)
}
