package chat

import (
	"context"
	"testing"
	"time"

	"github.com/clefbot/clef/internal/bus"
	"github.com/clefbot/clef/internal/cooldown"
	"github.com/clefbot/clef/internal/logging"
	"github.com/clefbot/clef/internal/registry"
)

type fakeBadWords struct {
	enabled bool
	reason  string
	bad     map[string]bool
}

func (f *fakeBadWords) Enabled() bool { return f.enabled }
func (f *fakeBadWords) Check(word string) (string, bool) {
	if f.bad[word] {
		return f.reason, true
	}
	return "", false
}

type fakeWhitelist struct {
	enabled   bool
	allowed   map[string]bool
}

func (f *fakeWhitelist) Enabled() bool              { return f.enabled }
func (f *fakeWhitelist) IsAllowed(host string) bool  { return f.allowed[host] }

func newTestHandler(t *testing.T, conn *fakeConn, reg *registry.Registry, scopes ScopeRequirements) (*Handler, *fakeBadWords, *fakeWhitelist) {
	t.Helper()
	sender := NewSender(conn, "streamer", 1000, 100, logging.NewTestLogger())
	t.Cleanup(sender.Close)

	bw := &fakeBadWords{bad: map[string]bool{}}
	wl := &fakeWhitelist{allowed: map[string]bool{}}

	h := NewHandler(Config{
		Sender:        sender,
		Registry:      reg,
		Scopes:        scopes,
		Aliases:       mapAliasStore{},
		Commands:      &mapCommandDB{commands: map[string]StoredCommand{}},
		Cooldowns:     cooldown.NewScopeCooldowns(time.Minute),
		Idle:          cooldown.NewIdle(5),
		Pending:       NewPendingTasks(8),
		Notify:        bus.New[Notification](),
		BadWords:      bw,
		URLWhitelist:  wl,
		APIURL:        "https://api.example.com",
		StreamerLogin: "streamer",
	})
	return h, bw, wl
}

func privmsg(tags map[string]string, login, body string) Message {
	return Message{
		Tags:    tags,
		Prefix:  login + "!" + login + "@" + login + ".tmi.twitch.tv",
		Command: "PRIVMSG",
		Params:  []string{"#streamer", body},
	}
}

func TestHandlePingIsHardCoded(t *testing.T) {
	conn := &fakeConn{}
	h, _, _ := newTestHandler(t, conn, registry.New(), nil)
	reader := h.notify.Subscribe(4)
	defer reader.Close()

	h.HandlePrivmsg(context.Background(), privmsg(map[string]string{"id": "1"}, "viewer1", "!ping"), User{Login: "viewer1"})
	h.pending.Wait()

	lines := waitForLines(t, conn, 1)
	if lines[0] != "PRIVMSG #streamer :What do you want?" {
		t.Fatalf("unexpected ping reply: %q", lines[0])
	}
	select {
	case n := <-reader.Messages():
		if n.Kind != NotificationPing {
			t.Fatalf("expected a ping notification, got %+v", n)
		}
	default:
		t.Fatal("expected a ping notification broadcast")
	}
}

func TestHandleBangCommandDispatchesRegisteredHandler(t *testing.T) {
	conn := &fakeConn{}
	reg := registry.New()
	var gotArgs []string
	reg.RegisterNative("shoutout", func(ctx registry.Context) error {
		gotArgs = ctx.Args
		ctx.Respond("shouting out " + ctx.Args[0])
		return nil
	})
	h, _, _ := newTestHandler(t, conn, reg, nil)

	h.HandlePrivmsg(context.Background(), privmsg(map[string]string{"id": "1"}, "viewer1", "!shoutout someuser"), User{Login: "viewer1"})
	h.pending.Wait()

	lines := waitForLines(t, conn, 1)
	if lines[0] != "PRIVMSG #streamer :viewer1 -> shouting out someuser" {
		t.Fatalf("unexpected response: %q", lines[0])
	}
	if len(gotArgs) != 1 || gotArgs[0] != "someuser" {
		t.Fatalf("unexpected args: %v", gotArgs)
	}
}

func TestHandleBangCommandRejectsMissingScope(t *testing.T) {
	conn := &fakeConn{}
	reg := registry.New()
	reg.RegisterNative("ban", func(ctx registry.Context) error {
		t.Fatal("handler should not run without required scope")
		return nil
	})
	h, _, _ := newTestHandler(t, conn, reg, ScopeRequirements{"ban": ScopeModerator})

	h.HandlePrivmsg(context.Background(), privmsg(map[string]string{"id": "1"}, "viewer1", "!ban someone"), User{Login: "viewer1"})
	h.pending.Wait()

	lines := waitForLines(t, conn, 1)
	if lines[0] == "PRIVMSG #streamer :not allowed" {
		t.Fatal("expected the humorous rejection for a non-moderator, not the moderator message")
	}
}

func TestHandleBangCommandErrorUsesRespondErr(t *testing.T) {
	conn := &fakeConn{}
	reg := registry.New()
	reg.RegisterNative("boom", func(ctx registry.Context) error {
		return &RespondErr{Message: "custom failure"}
	})
	h, _, _ := newTestHandler(t, conn, reg, nil)

	h.HandlePrivmsg(context.Background(), privmsg(map[string]string{"id": "1"}, "viewer1", "!boom"), User{Login: "viewer1"})
	h.pending.Wait()

	lines := waitForLines(t, conn, 1)
	if lines[0] != "PRIVMSG #streamer :custom failure" {
		t.Fatalf("unexpected error response: %q", lines[0])
	}
}

func TestHandleBangCommandGenericFailureMessage(t *testing.T) {
	conn := &fakeConn{}
	reg := registry.New()
	reg.RegisterNative("boom", func(ctx registry.Context) error {
		return errGeneric
	})
	h, _, _ := newTestHandler(t, conn, reg, nil)

	h.HandlePrivmsg(context.Background(), privmsg(map[string]string{"id": "1"}, "viewer1", "!boom"), User{Login: "viewer1"})
	h.pending.Wait()

	lines := waitForLines(t, conn, 1)
	if lines[0] != "PRIVMSG #streamer :Sorry, something went wrong :(" {
		t.Fatalf("unexpected fallback response: %q", lines[0])
	}
}

func TestHandleDeletesBadWordMessage(t *testing.T) {
	conn := &fakeConn{}
	h, bw, _ := newTestHandler(t, conn, registry.New(), nil)
	bw.enabled = true
	bw.reason = "watch your language"
	bw.bad["badword"] = true

	h.HandlePrivmsg(context.Background(), privmsg(map[string]string{"id": "msg-1"}, "viewer1", "that's a badword"), User{Login: "viewer1"})
	h.pending.Wait()

	lines := waitForLines(t, conn, 2)
	wantReason := "PRIVMSG #streamer :watch your language"
	wantDelete := "PRIVMSG #streamer :/delete msg-1"
	if !(lines[0] == wantReason || lines[1] == wantReason) {
		t.Fatalf("expected moderation reply among %v", lines)
	}
	if !(lines[0] == wantDelete || lines[1] == wantDelete) {
		t.Fatalf("expected delete directive among %v", lines)
	}
}

func TestHandleModeratorExemptFromDeletion(t *testing.T) {
	conn := &fakeConn{}
	h, bw, _ := newTestHandler(t, conn, registry.New(), nil)
	bw.enabled = true
	bw.bad["badword"] = true

	h.HandlePrivmsg(context.Background(), privmsg(map[string]string{"id": "msg-1"}, "mod1", "badword"), User{Login: "mod1", IsModerator: true})
	h.pending.Wait()

	if lines := conn.written(); len(lines) != 0 {
		t.Fatalf("expected no moderation action for a moderator, got %v", lines)
	}
}

func TestHandleDeletesDisallowedURL(t *testing.T) {
	conn := &fakeConn{}
	h, _, wl := newTestHandler(t, conn, registry.New(), nil)
	wl.enabled = true

	h.HandlePrivmsg(context.Background(), privmsg(map[string]string{"id": "msg-1"}, "viewer1", "check out https://spam.example.com/offer"), User{Login: "viewer1"})
	h.pending.Wait()

	lines := waitForLines(t, conn, 1)
	if lines[0] != "PRIVMSG #streamer :/delete msg-1" {
		t.Fatalf("expected delete directive for disallowed url, got %q", lines[0])
	}
}

func TestHandleAllowsURLForBypassScope(t *testing.T) {
	conn := &fakeConn{}
	h, _, wl := newTestHandler(t, conn, registry.New(), nil)
	wl.enabled = true

	user := User{Login: "viewer1", ExtraScopes: map[Scope]bool{ScopeBypassURLWhitelist: true}}
	h.HandlePrivmsg(context.Background(), privmsg(map[string]string{"id": "msg-1"}, "viewer1", "https://spam.example.com"), user)
	h.pending.Wait()

	if lines := conn.written(); len(lines) != 0 {
		t.Fatalf("expected no deletion for a bypass-scoped user, got %v", lines)
	}
}

var errGeneric = &genericErr{}

type genericErr struct{}

func (e *genericErr) Error() string { return "boom" }
