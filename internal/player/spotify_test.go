package player

import (
	"context"
	"testing"
	"time"

	spotifyapi "github.com/zmb3/spotify/v2"
)

type fakeSpotifyClient struct {
	played    []spotifyapi.URI
	paused    int
	queued    []spotifyapi.ID
	nexted    int
	volume    int
	state     *spotifyapi.PlayerState
	lastDevID *spotifyapi.ID
}

func (f *fakeSpotifyClient) PlayOpt(ctx context.Context, opt *spotifyapi.PlayOptions) error {
	f.lastDevID = opt.DeviceID
	f.played = append(f.played, opt.URIs...)
	return nil
}

func (f *fakeSpotifyClient) PauseOpt(ctx context.Context, opt *spotifyapi.PlayOptions) error {
	f.paused++
	return nil
}

func (f *fakeSpotifyClient) NextOpt(ctx context.Context, opt *spotifyapi.PlayOptions) error {
	f.nexted++
	return nil
}

func (f *fakeSpotifyClient) QueueSongOpt(ctx context.Context, trackID spotifyapi.ID, opt *spotifyapi.PlayOptions) error {
	f.queued = append(f.queued, trackID)
	return nil
}

func (f *fakeSpotifyClient) VolumeOpt(ctx context.Context, percent int, opt *spotifyapi.PlayOptions) error {
	f.volume = percent
	return nil
}

func (f *fakeSpotifyClient) PlayerState(ctx context.Context, opts ...spotifyapi.RequestOption) (*spotifyapi.PlayerState, error) {
	return f.state, nil
}

func TestSpotifyBackendPlaySendsTrackURI(t *testing.T) {
	client := &fakeSpotifyClient{}
	b := NewSpotifyBackend(client, 0, nil)

	track := TrackID{Platform: PlatformSpotify, ID: "abc123"}
	if err := b.Play(track, 5*time.Second); err != nil {
		t.Fatalf("Play: %v", err)
	}
	if len(client.played) != 1 || client.played[0] != spotifyapi.URI("spotify:track:abc123") {
		t.Fatalf("expected track URI sent, got %v", client.played)
	}
}

func TestSpotifyBackendPlayRejectsNonSpotifyTrack(t *testing.T) {
	b := NewSpotifyBackend(&fakeSpotifyClient{}, 0, nil)
	track := TrackID{Platform: PlatformYouTube, ID: "xyz"}
	if err := b.Play(track, 0); err == nil {
		t.Fatal("expected an error for a non-spotify track")
	}
}

func TestSpotifyBackendSetDeviceEmitsChangeEvent(t *testing.T) {
	b := NewSpotifyBackend(&fakeSpotifyClient{}, 0, nil)
	b.SetDevice("device-1")

	select {
	case evt := <-b.Events():
		if evt.Kind != EventDeviceChanged || evt.DeviceID != "device-1" {
			t.Fatalf("unexpected event %+v", evt)
		}
	default:
		t.Fatal("expected a device-changed event")
	}
}

func TestSpotifyBackendSetDeviceNoEventOnSameDevice(t *testing.T) {
	b := NewSpotifyBackend(&fakeSpotifyClient{}, 0, nil)
	b.SetDevice("device-1")
	<-b.Events()
	b.SetDevice("device-1")

	select {
	case evt := <-b.Events():
		t.Fatalf("expected no duplicate event, got %+v", evt)
	default:
	}
}

func TestSpotifyBackendVolumeAppliesModification(t *testing.T) {
	client := &fakeSpotifyClient{}
	b := NewSpotifyBackend(client, 0, nil)

	got, err := b.Volume(VolumeModification{Increase: 20})
	if err != nil {
		t.Fatalf("Volume: %v", err)
	}
	if got != 20 || client.volume != 20 {
		t.Fatalf("expected volume 20, got %d (client saw %d)", got, client.volume)
	}
	if b.CurrentVolume() != 20 {
		t.Fatalf("expected CurrentVolume to reflect push, got %d", b.CurrentVolume())
	}
}

func TestSpotifyBackendQueueRejectsYouTubeTrack(t *testing.T) {
	b := NewSpotifyBackend(&fakeSpotifyClient{}, 0, nil)
	err := b.Queue(TrackID{Platform: PlatformYouTube, ID: "xyz"})
	if err != ErrUnsupportedPlaybackMode {
		t.Fatalf("expected ErrUnsupportedPlaybackMode, got %v", err)
	}
}

func TestSpotifyBackendPollDeviceUpdatesCache(t *testing.T) {
	client := &fakeSpotifyClient{
		state: &spotifyapi.PlayerState{
			Device: spotifyapi.PlayerDevice{ID: spotifyapi.ID("remote-device"), Volume: 42},
		},
	}
	b := NewSpotifyBackend(client, 0, nil)

	if err := b.PollDevice(context.Background()); err != nil {
		t.Fatalf("PollDevice: %v", err)
	}
	if b.CurrentVolume() != 42 {
		t.Fatalf("expected volume synced from remote state, got %d", b.CurrentVolume())
	}
	select {
	case evt := <-b.Events():
		if evt.DeviceID != "remote-device" {
			t.Fatalf("unexpected device in event: %+v", evt)
		}
	default:
		t.Fatal("expected a device-changed event from poll")
	}
}
