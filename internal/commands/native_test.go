package commands

import (
	"testing"
	"time"

	"github.com/clefbot/clef/internal/bus"
	"github.com/clefbot/clef/internal/injector"
	"github.com/clefbot/clef/internal/player"
	"github.com/clefbot/clef/internal/registry"
)

type fakeBackend struct {
	played bool
}

func (f *fakeBackend) Play(trackID player.TrackID, offset time.Duration) error {
	f.played = true
	return nil
}
func (f *fakeBackend) Pause() error                                      { return nil }
func (f *fakeBackend) Stop() error                                       { return nil }
func (f *fakeBackend) Next() error                                       { return nil }
func (f *fakeBackend) Queue(trackID player.TrackID) error                { return nil }
func (f *fakeBackend) Volume(mod player.VolumeModification) (int, error) { return 0, nil }
func (f *fakeBackend) CurrentVolume() int                                { return 0 }
func (f *fakeBackend) Events() <-chan player.BackendEvent                { return nil }

func newTestCore(t *testing.T) (*player.Core, *player.Mixer) {
	t.Helper()
	mixer, err := player.New(player.Config{MaxQueueLength: 10, MaxSongsPerUser: 5}, nil)
	if err != nil {
		t.Fatalf("new mixer: %v", err)
	}
	core := player.NewCore(mixer, injector.New(), bus.New[player.Event](), &fakeBackend{}, &fakeBackend{})
	return core, mixer
}

func TestNowPlayingRespondsWhenEmpty(t *testing.T) {
	core, mixer := newTestCore(t)
	reg := registry.New()
	Register(reg, Config{Core: core, Mixer: mixer, Resolver: &MultiResolver{}})

	handler, ok := reg.Lookup("nowplaying")
	if !ok {
		t.Fatalf("expected nowplaying to be registered")
	}
	var got string
	if err := handler(registry.Context{Respond: func(m string) { got = m }}); err != nil {
		t.Fatalf("handler: %v", err)
	}
	if got != "nothing is playing right now" {
		t.Fatalf("unexpected response: %q", got)
	}
}

func TestSongRequestRejectsUnparseableTrack(t *testing.T) {
	core, mixer := newTestCore(t)
	reg := registry.New()
	Register(reg, Config{Core: core, Mixer: mixer, Resolver: &MultiResolver{}})

	handler, ok := reg.Lookup("sr")
	if !ok {
		t.Fatalf("expected sr to be registered")
	}
	var got string
	err := handler(registry.Context{
		User:    "alice",
		Args:    []string{"not-a-track"},
		Respond: func(m string) { got = m },
	})
	if err != nil {
		t.Fatalf("handler: %v", err)
	}
	if got == "" {
		t.Fatalf("expected a response message")
	}
}

func TestSongRequestSubcommandAddsTrack(t *testing.T) {
	core, mixer := newTestCore(t)
	reg := registry.New()
	Register(reg, Config{
		Core:     core,
		Mixer:    mixer,
		Resolver: &MultiResolver{YouTube: NewYouTubeResolver(fakeVideoLookup{title: "A Video", duration: 90 * time.Second})},
	})

	handler, ok := reg.Lookup("song")
	if !ok {
		t.Fatalf("expected song to be registered")
	}
	var got string
	err := handler(registry.Context{
		User:    "alice",
		Args:    []string{"request", "https://www.youtube.com/watch?v=abc"},
		Respond: func(m string) { got = m },
	})
	if err != nil {
		t.Fatalf("handler: %v", err)
	}
	if want := `Added "A Video" by  at position #1!`; got != want {
		t.Fatalf("expected %q, got %q", want, got)
	}
}

func TestSongSkipSubcommandSkipsCurrent(t *testing.T) {
	core, mixer := newTestCore(t)
	mixer.SetFallbackItems([]player.Item{{TrackID: player.TrackID{Platform: player.PlatformYouTube, ID: "abc"}, Playable: true}})
	reg := registry.New()
	Register(reg, Config{Core: core, Mixer: mixer, Resolver: &MultiResolver{}})
	if err := core.Play(); err != nil {
		t.Fatalf("play: %v", err)
	}

	handler, ok := reg.Lookup("song")
	if !ok {
		t.Fatalf("expected song to be registered")
	}
	var got string
	err := handler(registry.Context{
		User:    "alice",
		Args:    []string{"skip"},
		Respond: func(m string) { got = m },
	})
	if err != nil {
		t.Fatalf("handler: %v", err)
	}
	if got != "skipped" {
		t.Fatalf("unexpected response: %q", got)
	}
}

func TestSongUnknownSubcommandRespondsWithUsage(t *testing.T) {
	core, mixer := newTestCore(t)
	reg := registry.New()
	Register(reg, Config{Core: core, Mixer: mixer, Resolver: &MultiResolver{}})

	handler, ok := reg.Lookup("song")
	if !ok {
		t.Fatalf("expected song to be registered")
	}
	var got string
	err := handler(registry.Context{
		Args:    []string{"nonsense"},
		Respond: func(m string) { got = m },
	})
	if err != nil {
		t.Fatalf("handler: %v", err)
	}
	if got == "" {
		t.Fatalf("expected usage response")
	}
}
