package chat

import (
	"sync"
	"testing"
	"time"

	"github.com/clefbot/clef/internal/logging"
)

type fakeConn struct {
	mu    sync.Mutex
	lines []string
}

func (f *fakeConn) WriteLine(line string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.lines = append(f.lines, line)
	return nil
}

func (f *fakeConn) written() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]string, len(f.lines))
	copy(out, f.lines)
	return out
}

func waitForLines(t *testing.T, conn *fakeConn, n int) []string {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if lines := conn.written(); len(lines) >= n {
			return lines
		}
		time.Sleep(time.Millisecond)
	}
	t.Fatalf("timed out waiting for %d lines, got %v", n, conn.written())
	return nil
}

func TestPrivmsgIsQueuedAndSent(t *testing.T) {
	conn := &fakeConn{}
	s := NewSender(conn, "streamer", 100, 10, logging.NewTestLogger())
	defer s.Close()

	s.Privmsg("hello there")

	lines := waitForLines(t, conn, 1)
	if lines[0] != "PRIVMSG #streamer :hello there" {
		t.Fatalf("unexpected line %q", lines[0])
	}
}

func TestImmediateSendBypassesQueue(t *testing.T) {
	conn := &fakeConn{}
	s := NewSender(conn, "streamer", 100, 10, logging.NewTestLogger())
	defer s.Close()

	s.SendImmediate(EncodePong("tmi.twitch.tv"))

	lines := waitForLines(t, conn, 1)
	if lines[0] != "PONG :tmi.twitch.tv" {
		t.Fatalf("unexpected line %q", lines[0])
	}
}

func TestModerationDirectives(t *testing.T) {
	conn := &fakeConn{}
	s := NewSender(conn, "streamer", 100, 10, logging.NewTestLogger())
	defer s.Close()

	s.Delete("msg-123")
	s.Mods()
	s.Vips()

	lines := waitForLines(t, conn, 3)
	want := []string{
		"PRIVMSG #streamer :/delete msg-123",
		"PRIVMSG #streamer :/mods",
		"PRIVMSG #streamer :/vips",
	}
	for i, w := range want {
		if lines[i] != w {
			t.Fatalf("expected %q at index %d, got %q", w, i, lines[i])
		}
	}
}

func TestRateLimiterThrottlesQueuedSends(t *testing.T) {
	conn := &fakeConn{}
	// 5 messages/second, burst of 1: the second send must wait roughly
	// 200ms for a fresh token rather than landing immediately.
	s := NewSender(conn, "streamer", 5, 1, logging.NewTestLogger())
	defer s.Close()

	s.Privmsg("first")
	waitForLines(t, conn, 1)

	start := time.Now()
	s.Privmsg("second")
	waitForLines(t, conn, 2)
	if elapsed := time.Since(start); elapsed < 100*time.Millisecond {
		t.Fatalf("expected second send to be throttled by roughly 200ms, took %v", elapsed)
	}
}

func TestChannelAccessor(t *testing.T) {
	conn := &fakeConn{}
	s := NewSender(conn, "streamer", 10, 10, logging.NewTestLogger())
	defer s.Close()
	if s.Channel() != "streamer" {
		t.Fatalf("unexpected channel %q", s.Channel())
	}
}
