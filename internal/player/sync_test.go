package player

import (
	"context"
	"sync"
	"testing"
	"time"
)

type fakeRemoteSource struct {
	mu      sync.Mutex
	context RemotePlaybackContext
	err     error
}

func (f *fakeRemoteSource) set(ctx RemotePlaybackContext) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.context = ctx
}

func (f *fakeRemoteSource) FetchRemotePlayback(ctx context.Context) (RemotePlaybackContext, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.context, f.err
}

func TestPollerSyncsWhenNoCurrentSong(t *testing.T) {
	core, _, _, _ := newTestCore(t)
	source := &fakeRemoteSource{}
	source.set(RemotePlaybackContext{HasTrack: true, TrackID: trackA(), IsPlaying: true, Duration: time.Minute})

	poller := NewPoller(core, source, time.Hour, nil)
	poller.reconcile(context.Background())

	song, ok := core.CurrentSong()
	if !ok || song.Item.TrackID != trackA() {
		t.Fatalf("expected core synced to remote track, got %+v ok=%v", song, ok)
	}
}

func TestPollerSyncsOnTrackMismatch(t *testing.T) {
	core, mixer, _, _ := newTestCore(t)
	mixer.SetFallbackItems([]Item{{TrackID: trackA(), Playable: true}})
	if err := core.Play(); err != nil {
		t.Fatal(err)
	}

	source := &fakeRemoteSource{}
	source.set(RemotePlaybackContext{HasTrack: true, TrackID: trackB(), IsPlaying: true, Duration: time.Minute})

	poller := NewPoller(core, source, time.Hour, nil)
	poller.reconcile(context.Background())

	song, ok := core.CurrentSong()
	if !ok || song.Item.TrackID != trackB() {
		t.Fatalf("expected core synced to trackB, got %+v ok=%v", song, ok)
	}
}

func TestPollerIgnoresRemoteWithNoTrack(t *testing.T) {
	core, mixer, _, _ := newTestCore(t)
	mixer.SetFallbackItems([]Item{{TrackID: trackA(), Playable: true}})
	if err := core.Play(); err != nil {
		t.Fatal(err)
	}

	source := &fakeRemoteSource{}
	poller := NewPoller(core, source, time.Hour, nil)
	poller.reconcile(context.Background())

	song, ok := core.CurrentSong()
	if !ok || song.Item.TrackID != trackA() {
		t.Fatalf("expected core unchanged when remote has no track, got %+v ok=%v", song, ok)
	}
}

func TestPollerRunReconcilesImmediatelyOnStart(t *testing.T) {
	core, _, _, _ := newTestCore(t)
	source := &fakeRemoteSource{}
	source.set(RemotePlaybackContext{HasTrack: true, TrackID: trackA(), IsPlaying: true, Duration: time.Minute})

	poller := NewPoller(core, source, time.Hour, nil)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		poller.Run(ctx)
		close(done)
	}()

	deadline := time.After(time.Second)
	for {
		if song, ok := core.CurrentSong(); ok && song.Item.TrackID == trackA() {
			break
		}
		select {
		case <-deadline:
			t.Fatal("timed out waiting for initial reconcile")
		case <-time.After(time.Millisecond):
		}
	}

	cancel()
	<-done
}
