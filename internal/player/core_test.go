package player

import (
	"testing"
	"time"

	"github.com/clefbot/clef/internal/bus"
	"github.com/clefbot/clef/internal/injector"
)

type fakeBackend struct {
	played []TrackID
	volume int
	events chan BackendEvent
}

func newFakeBackend() *fakeBackend {
	return &fakeBackend{events: make(chan BackendEvent, 1)}
}

func (f *fakeBackend) Play(trackID TrackID, offset time.Duration) error {
	f.played = append(f.played, trackID)
	return nil
}
func (f *fakeBackend) Pause() error           { return nil }
func (f *fakeBackend) Stop() error            { return nil }
func (f *fakeBackend) Next() error            { return nil }
func (f *fakeBackend) Queue(TrackID) error    { return nil }
func (f *fakeBackend) CurrentVolume() int     { return f.volume }
func (f *fakeBackend) Events() <-chan BackendEvent { return f.events }
func (f *fakeBackend) Volume(mod VolumeModification) (int, error) {
	f.volume = mod.Apply(f.volume)
	return f.volume, nil
}

func newTestCore(t *testing.T) (*Core, *Mixer, *fakeBackend, *fakeBackend) {
	t.Helper()
	mixer, err := New(Config{}, nil)
	if err != nil {
		t.Fatal(err)
	}
	inj := injector.New()
	b := bus.New[Event]()
	spotify := newFakeBackend()
	youtube := newFakeBackend()
	core := NewCore(mixer, inj, b, spotify, youtube)
	return core, mixer, spotify, youtube
}

func TestPlayPullsNextSongWhenNoneCurrent(t *testing.T) {
	core, mixer, spotify, _ := newTestCore(t)
	mixer.SetFallbackItems([]Item{{TrackID: trackA(), Playable: true}})

	if err := core.Play(); err != nil {
		t.Fatalf("Play: %v", err)
	}
	if len(spotify.played) != 1 || spotify.played[0] != trackA() {
		t.Fatalf("expected spotify to receive play for trackA, got %v", spotify.played)
	}
}

func TestPlayBroadcastsEmptyWhenNoSongAvailable(t *testing.T) {
	core, _, _, _ := newTestCore(t)
	reader := core.bus.Subscribe(4)
	defer reader.Close()

	if err := core.Play(); err != nil {
		t.Fatalf("Play: %v", err)
	}

	select {
	case evt := <-reader.Messages():
		if evt.Kind != EventEmpty {
			t.Fatalf("expected EventEmpty, got %v", evt.Kind)
		}
	default:
		t.Fatal("expected a broadcast event")
	}
}

func TestPauseStopsAdvancingElapsed(t *testing.T) {
	core, mixer, _, _ := newTestCore(t)
	mixer.SetFallbackItems([]Item{{TrackID: trackA(), Playable: true}})
	if err := core.Play(); err != nil {
		t.Fatal(err)
	}
	if err := core.Pause(); err != nil {
		t.Fatal(err)
	}
	song, ok := injector.Get[*Song](core.inj, currentSongTag)
	if !ok || song.IsPlaying() {
		t.Fatal("expected current song to be paused")
	}
}

func TestInjectSidelinesCurrentSong(t *testing.T) {
	core, mixer, _, _ := newTestCore(t)
	mixer.SetFallbackItems([]Item{{TrackID: trackA(), Playable: true}})
	if err := core.Play(); err != nil {
		t.Fatal(err)
	}

	if err := core.Inject(Item{TrackID: trackB(), Playable: true}, 0); err != nil {
		t.Fatal(err)
	}
	if !mixer.Sidelined() {
		t.Fatal("expected the preempted song to be sidelined")
	}
	song, ok := injector.Get[*Song](core.inj, currentSongTag)
	if !ok || song.Item.TrackID != trackB() {
		t.Fatalf("expected injected track current, got %+v", song)
	}
}

func TestDetachClearsCurrentAndSidelines(t *testing.T) {
	core, mixer, _, _ := newTestCore(t)
	mixer.SetFallbackItems([]Item{{TrackID: trackA(), Playable: true}})
	if err := core.Play(); err != nil {
		t.Fatal(err)
	}

	core.UpdateDetached(true, true)

	if _, ok := injector.Get[*Song](core.inj, currentSongTag); ok {
		t.Fatal("expected current song cleared on detach")
	}
	if !mixer.Sidelined() {
		t.Fatal("expected paused current song sidelined on detach")
	}
}

func TestUpdatePlaybackModeQueueDetaches(t *testing.T) {
	core, mixer, _, _ := newTestCore(t)
	mixer.SetFallbackItems([]Item{{TrackID: trackA(), Playable: true}})
	if err := core.Play(); err != nil {
		t.Fatal(err)
	}

	core.UpdatePlaybackMode(ModeQueue)

	if !core.detached {
		t.Fatal("expected switching into queue mode to detach the core")
	}
	if _, ok := injector.Get[*Song](core.inj, currentSongTag); ok {
		t.Fatal("expected current song cleared when entering queue mode")
	}
	if !mixer.Sidelined() {
		t.Fatal("expected the prior current song sidelined when entering queue mode")
	}

	core.mu.Lock()
	mode := core.mode
	core.mu.Unlock()
	if mode != ModeQueue {
		t.Fatalf("expected mode to be ModeQueue, got %v", mode)
	}
}

func TestManualCallWhileDetachedBroadcastsDetached(t *testing.T) {
	core, _, _, _ := newTestCore(t)
	core.UpdateDetached(true, true)
	reader := core.bus.Subscribe(4)
	defer reader.Close()

	if err := core.Play(); err != nil {
		t.Fatal(err)
	}

	select {
	case evt := <-reader.Messages():
		if evt.Kind != EventDetached {
			t.Fatalf("expected EventDetached, got %v", evt.Kind)
		}
	default:
		t.Fatal("expected a broadcast event")
	}
}

func TestHandlePlayerEventReissuesPlayOnDeviceChange(t *testing.T) {
	core, mixer, spotify, _ := newTestCore(t)
	mixer.SetFallbackItems([]Item{{TrackID: trackA(), Playable: true}})
	if err := core.Play(); err != nil {
		t.Fatal(err)
	}
	spotify.played = nil

	if err := core.HandlePlayerEvent(BackendEvent{Kind: EventDeviceChanged, DeviceID: "new-device"}); err != nil {
		t.Fatal(err)
	}
	if len(spotify.played) != 1 {
		t.Fatalf("expected re-issued play on device change, got %v", spotify.played)
	}
}

func TestSwitchingBackendStopsPrevious(t *testing.T) {
	core, mixer, _, _ := newTestCore(t)
	mixer.SetFallbackItems([]Item{{TrackID: trackA(), Playable: true}})
	if err := core.Play(); err != nil {
		t.Fatal(err)
	}
	if err := core.Inject(Item{TrackID: TrackID{Platform: PlatformYouTube, ID: "yt1"}, Playable: true}, 0); err != nil {
		t.Fatal(err)
	}
	if core.backend != BackendYouTube {
		t.Fatalf("expected backend switched to youtube, got %v", core.backend)
	}
}
