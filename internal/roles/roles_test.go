package roles

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/clefbot/clef/internal/logging"
)

type fakeLister struct {
	mu   sync.Mutex
	mods []string
	vips []string
}

func (f *fakeLister) ListModerators(ctx context.Context) ([]string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.mods...), nil
}

func (f *fakeLister) ListVIPs(ctx context.Context) ([]string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.vips...), nil
}

func (f *fakeLister) set(mods, vips []string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.mods = mods
	f.vips = vips
}

func TestRunPerformsImmediateRefresh(t *testing.T) {
	lister := &fakeLister{mods: []string{"alice"}, vips: []string{"bob"}}
	s := New(lister, time.Hour, logging.NewTestLogger())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go s.Run(ctx)
	defer s.Stop()

	deadline := time.Now().Add(time.Second)
	for time.Now().Before(deadline) {
		if s.IsModerator("alice") && s.IsVIP("bob") {
			return
		}
		time.Sleep(time.Millisecond)
	}
	t.Fatal("expected immediate refresh to populate role sets")
}

func TestNotifyRefreshPicksUpChanges(t *testing.T) {
	lister := &fakeLister{}
	s := New(lister, time.Hour, logging.NewTestLogger())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go s.Run(ctx)
	defer s.Stop()

	time.Sleep(10 * time.Millisecond)
	if s.IsModerator("carol") {
		t.Fatal("expected carol not to be a moderator yet")
	}

	lister.set([]string{"carol"}, nil)
	s.NotifyRefresh()

	deadline := time.Now().Add(time.Second)
	for time.Now().Before(deadline) {
		if s.IsModerator("carol") {
			return
		}
		time.Sleep(time.Millisecond)
	}
	t.Fatal("expected NotifyRefresh to pick up the updated moderator list")
}

func TestIsModeratorFalseForUnknownLogin(t *testing.T) {
	s := New(&fakeLister{}, time.Hour, logging.NewTestLogger())
	if s.IsModerator("nobody") {
		t.Fatal("expected unknown login to not be a moderator")
	}
}

func TestApplyModeratorsReplacesSetImmediately(t *testing.T) {
	s := New(&fakeLister{}, time.Hour, logging.NewTestLogger())
	s.ApplyModerators([]string{"dave", "erin"})
	if !s.IsModerator("dave") || !s.IsModerator("erin") {
		t.Fatal("expected both applied logins to be moderators")
	}
	if s.IsModerator("frank") {
		t.Fatal("expected an un-applied login to not be a moderator")
	}
}

func TestApplyVIPsReplacesSetImmediately(t *testing.T) {
	s := New(&fakeLister{}, time.Hour, logging.NewTestLogger())
	s.ApplyVIPs([]string{"gina"})
	if !s.IsVIP("gina") {
		t.Fatal("expected applied login to be a vip")
	}
}
