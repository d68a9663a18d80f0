package chat

import (
	"context"
	"testing"
	"time"

	"github.com/clefbot/clef/internal/logging"
	"github.com/clefbot/clef/internal/registry"
	"github.com/clefbot/clef/internal/roles"
)

type fakeHistory struct {
	enabled      bool
	deletedMsg   []string
	deletedUsers []string
	deletedAll   bool
}

func (f *fakeHistory) Enabled() bool                { return f.enabled }
func (f *fakeHistory) DeleteMessage(id string)       { f.deletedMsg = append(f.deletedMsg, id) }
func (f *fakeHistory) DeleteUser(login string)       { f.deletedUsers = append(f.deletedUsers, login) }
func (f *fakeHistory) DeleteAll()                    { f.deletedAll = true }

type nullLister struct{}

func (nullLister) ListModerators(ctx context.Context) ([]string, error) { return nil, nil }
func (nullLister) ListVIPs(ctx context.Context) ([]string, error)       { return nil, nil }

func newTestRouter(t *testing.T, conn *fakeConn) (*Router, *fakeHistory, *roles.Store) {
	t.Helper()
	h, _, _ := newTestHandler(t, conn, registry.New(), nil)
	roleStore := roles.New(nullLister{}, time.Hour, logging.NewTestLogger())
	hist := &fakeHistory{}
	router := NewRouter(RouterConfig{
		Handler:       h,
		Roles:         roleStore,
		History:       hist,
		StreamerLogin: "streamer",
	})
	return router, hist, roleStore
}

func TestRouterRespondsToPing(t *testing.T) {
	conn := &fakeConn{}
	router, _, _ := newTestRouter(t, conn)
	router.Route(context.Background(), Message{Command: "PING", Params: []string{"tmi.twitch.tv"}})

	lines := waitForLines(t, conn, 1)
	if lines[0] != "PONG :tmi.twitch.tv" {
		t.Fatalf("unexpected pong reply: %q", lines[0])
	}
}

func TestRouterPongInvokesCallback(t *testing.T) {
	conn := &fakeConn{}
	h, _, _ := newTestHandler(t, conn, registry.New(), nil)
	var called bool
	router := NewRouter(RouterConfig{
		Handler: h,
		Roles:   roles.New(nullLister{}, time.Hour, logging.NewTestLogger()),
		OnPong:  func() { called = true },
	})
	router.Route(context.Background(), Message{Command: "PONG"})
	if !called {
		t.Fatal("expected OnPong callback invoked")
	}
}

func TestRouterCapAckRequestsRoles(t *testing.T) {
	conn := &fakeConn{}
	router, _, _ := newTestRouter(t, conn)
	router.Route(context.Background(), Message{Command: "CAP", Params: []string{"*", "ACK", "twitch.tv/tags twitch.tv/commands"}})

	lines := waitForLines(t, conn, 2)
	if lines[0] != "PRIVMSG #streamer :/mods" || lines[1] != "PRIVMSG #streamer :/vips" {
		t.Fatalf("expected mods/vips queries, got %v", lines)
	}
}

func TestRouterNoticeRoomModsUpdatesRoleStore(t *testing.T) {
	conn := &fakeConn{}
	router, _, roleStore := newTestRouter(t, conn)
	router.Route(context.Background(), Message{
		Command: "NOTICE",
		Tags:    map[string]string{"msg-id": "room_mods"},
		Params:  []string{"#streamer", "The moderators of this channel are: alice, bob."},
	})
	if !roleStore.IsModerator("alice") || !roleStore.IsModerator("bob") {
		t.Fatal("expected room_mods notice to populate moderator set")
	}
}

func TestRouterNoticeAuthFailureInvokesCallback(t *testing.T) {
	conn := &fakeConn{}
	h, _, _ := newTestHandler(t, conn, registry.New(), nil)
	var called bool
	router := NewRouter(RouterConfig{
		Handler:       h,
		Roles:         roles.New(nullLister{}, time.Hour, logging.NewTestLogger()),
		OnAuthFailure: func() { called = true },
	})
	router.Route(context.Background(), Message{
		Command: "NOTICE",
		Params:  []string{"#streamer", "Login authentication failed"},
	})
	if !called {
		t.Fatal("expected OnAuthFailure callback invoked")
	}
}

func TestRouterClearMsgDeletesByTargetID(t *testing.T) {
	conn := &fakeConn{}
	router, hist, _ := newTestRouter(t, conn)
	hist.enabled = true
	router.Route(context.Background(), Message{
		Command: "CLEARMSG",
		Tags:    map[string]string{"target-msg-id": "msg-42"},
	})
	if len(hist.deletedMsg) != 1 || hist.deletedMsg[0] != "msg-42" {
		t.Fatalf("expected deletion of msg-42, got %v", hist.deletedMsg)
	}
}

func TestRouterClearChatDeletesByUserOrAll(t *testing.T) {
	conn := &fakeConn{}
	router, hist, _ := newTestRouter(t, conn)
	hist.enabled = true

	router.Route(context.Background(), Message{Command: "CLEARCHAT", Params: []string{"#streamer", "baduser"}})
	if len(hist.deletedUsers) != 1 || hist.deletedUsers[0] != "baduser" {
		t.Fatalf("expected deletion of baduser, got %v", hist.deletedUsers)
	}

	router.Route(context.Background(), Message{Command: "CLEARCHAT", Params: []string{"#streamer"}})
	if !hist.deletedAll {
		t.Fatal("expected a full chat clear when no target user is present")
	}
}

func TestRouterPrivmsgDispatchesToHandler(t *testing.T) {
	conn := &fakeConn{}
	router, _, _ := newTestRouter(t, conn)
	router.Route(context.Background(), privmsg(map[string]string{"id": "1"}, "viewer1", "!ping"))

	lines := waitForLines(t, conn, 1)
	if lines[0] != "PRIVMSG #streamer :What do you want?" {
		t.Fatalf("unexpected response: %q", lines[0])
	}
}
