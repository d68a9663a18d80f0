package player

import (
	"context"
	"fmt"
	"sync"
	"time"

	spotifyapi "github.com/zmb3/spotify/v2"

	"github.com/clefbot/clef/internal/logging"
)

// SpotifyClient is the subset of *spotify.Client the backend adapter
// drives, narrowed to ease testing.
type SpotifyClient interface {
	PlayOpt(ctx context.Context, opt *spotifyapi.PlayOptions) error
	PauseOpt(ctx context.Context, opt *spotifyapi.PlayOptions) error
	NextOpt(ctx context.Context, opt *spotifyapi.PlayOptions) error
	QueueSongOpt(ctx context.Context, trackID spotifyapi.ID, opt *spotifyapi.PlayOptions) error
	VolumeOpt(ctx context.Context, percent int, opt *spotifyapi.PlayOptions) error
	PlayerState(ctx context.Context, opts ...spotifyapi.RequestOption) (*spotifyapi.PlayerState, error)
}

// SpotifyBackend drives playback through the Spotify Web API against
// whichever device is currently selected in its ConnectDevice holder.
// Commands never block on a network round trip longer than ctxTimeout.
type SpotifyBackend struct {
	mu         sync.Mutex
	client     SpotifyClient
	deviceID   *spotifyapi.ID
	volume     int
	ctxTimeout time.Duration
	log        *logging.Logger
	events     chan BackendEvent
}

// NewSpotifyBackend constructs a SpotifyBackend over client.
func NewSpotifyBackend(client SpotifyClient, ctxTimeout time.Duration, log *logging.Logger) *SpotifyBackend {
	if ctxTimeout <= 0 {
		ctxTimeout = 10 * time.Second
	}
	return &SpotifyBackend{
		client:     client,
		ctxTimeout: ctxTimeout,
		log:        log,
		events:     make(chan BackendEvent, 8),
	}
}

// SetDevice updates the device commands are targeted at, the "ConnectDevice"
// holder the spec calls for. An empty id targets the user's active device.
func (b *SpotifyBackend) SetDevice(id string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if id == "" {
		b.deviceID = nil
		return
	}
	spID := spotifyapi.ID(id)
	changed := b.deviceID == nil || *b.deviceID != spID
	b.deviceID = &spID
	if changed {
		select {
		case b.events <- BackendEvent{Kind: EventDeviceChanged, DeviceID: id}:
		default:
		}
	}
}

func (b *SpotifyBackend) playOptions() *spotifyapi.PlayOptions {
	b.mu.Lock()
	defer b.mu.Unlock()
	return &spotifyapi.PlayOptions{DeviceID: b.deviceID}
}

func (b *SpotifyBackend) ctx() (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.Background(), b.ctxTimeout)
}

// Play starts the given track at offset on the currently selected device.
func (b *SpotifyBackend) Play(trackID TrackID, offset time.Duration) error {
	if trackID.Platform != PlatformSpotify {
		return fmt.Errorf("player: spotify backend given a %s track", trackID.Platform)
	}
	opt := b.playOptions()
	opt.URIs = []spotifyapi.URI{spotifyapi.URI("spotify:track:" + trackID.ID)}
	opt.PositionMs = spotifyapi.Numeric(offset.Milliseconds())
	ctx, cancel := b.ctx()
	defer cancel()
	return b.client.PlayOpt(ctx, opt)
}

// Pause pauses the currently selected device.
func (b *SpotifyBackend) Pause() error {
	ctx, cancel := b.ctx()
	defer cancel()
	return b.client.PauseOpt(ctx, b.playOptions())
}

// Stop is Spotify's equivalent of Pause; there is no hard-stop endpoint.
func (b *SpotifyBackend) Stop() error {
	return b.Pause()
}

// Next skips to the next track on the remote device's own queue.
func (b *SpotifyBackend) Next() error {
	ctx, cancel := b.ctx()
	defer cancel()
	return b.client.NextOpt(ctx, b.playOptions())
}

// Queue enqueues trackID on the remote device without taking over the
// playhead, used by Queue mode.
func (b *SpotifyBackend) Queue(trackID TrackID) error {
	if trackID.Platform != PlatformSpotify {
		return ErrUnsupportedPlaybackMode
	}
	ctx, cancel := b.ctx()
	defer cancel()
	return b.client.QueueSongOpt(ctx, spotifyapi.ID(trackID.ID), b.playOptions())
}

// Volume applies mod against the device's last known volume and pushes the
// new value, translating the device's reported 0-100 to the internal
// 0-100 scale (Spotify already reports percent, so this is the identity
// scale; the method stays separate so a future non-percent backend has a
// place to convert).
func (b *SpotifyBackend) Volume(mod VolumeModification) (int, error) {
	b.mu.Lock()
	current := b.volume
	b.mu.Unlock()

	next := mod.Apply(current)
	ctx, cancel := b.ctx()
	defer cancel()
	if err := b.client.VolumeOpt(ctx, next, b.playOptions()); err != nil {
		return current, err
	}
	b.mu.Lock()
	b.volume = next
	b.mu.Unlock()
	return next, nil
}

// CurrentVolume returns the last volume pushed or observed.
func (b *SpotifyBackend) CurrentVolume() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.volume
}

// Events delivers device-change notifications.
func (b *SpotifyBackend) Events() <-chan BackendEvent {
	return b.events
}

// PollDevice fetches the remote player state and, if its reported device
// differs from the locally cached one, updates SetDevice and the cached
// volume — the "update the local device cache and volume" half of the
// remote-synchronization poll described in spec.md §4.10.
func (b *SpotifyBackend) PollDevice(ctx context.Context) error {
	state, err := b.client.PlayerState(ctx)
	if err != nil {
		return err
	}
	if state == nil {
		return nil
	}
	b.SetDevice(string(state.Device.ID))
	b.mu.Lock()
	b.volume = int(state.Device.Volume)
	b.mu.Unlock()
	return nil
}

var _ BackendPlayer = (*SpotifyBackend)(nil)
