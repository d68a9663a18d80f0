package player

import (
	"sync"
	"time"

	"github.com/clefbot/clef/internal/bus"
	"github.com/clefbot/clef/internal/injector"
)

// Backend names which adapter currently drives playback.
type Backend int

const (
	// BackendNone means no backend is selected.
	BackendNone Backend = iota
	// BackendSpotify is Spotify Connect.
	BackendSpotify
	// BackendYouTube is the YouTube server-driven player.
	BackendYouTube
)

// Mode names the playback mode.
type Mode int

const (
	// ModeDefault: the core drives the backend's playhead directly.
	ModeDefault Mode = iota
	// ModeQueue: Spotify Connect's own queue endpoint is used; the core
	// does not own the playhead.
	ModeQueue
)

// ChangeReason distinguishes a manual (user-triggered) call from an
// internal one, used to decide whether a broadcast fires.
type ChangeReason int

const (
	// ReasonManual: triggered directly by a user command.
	ReasonManual ChangeReason = iota
	// ReasonInternal: triggered by internal bookkeeping (sync, events).
	ReasonInternal
)

// EventKind enumerates the broadcasts Player Core publishes on its bus.
type EventKind int

const (
	// EventEmpty: no song to play.
	EventEmpty EventKind = iota
	// EventPausing: playback paused.
	EventPausing
	// EventModified: the queue or current song changed shape.
	EventModified
	// EventDetached: the core is detached and ignored a manual call.
	EventDetached
	// EventChanged: the current song or backend selection changed.
	EventChanged
)

// Event is one broadcast emitted by Player Core.
type Event struct {
	Kind EventKind
	Song *Song
}

const currentSongTag = "player-core"

// Core is the playback state machine over (backend, detached, mode). All
// mutating operations run serialized behind one lock, matching the spec's
// "only one of {play, pause, skip, ...} executes at a time" invariant;
// observers reading the current song from the Injector may see
// intermediate states between calls.
type Core struct {
	mu sync.Mutex

	backend  Backend
	detached bool
	mode     Mode

	mixer *Mixer
	inj   *injector.Injector
	bus   *bus.Bus[Event]

	spotify BackendPlayer
	youtube BackendPlayer

	device struct {
		id     string
		volume int
	}
}

// NewCore constructs a Player Core wired to its mixer, injector, event bus,
// and backend adapters.
func NewCore(mixer *Mixer, inj *injector.Injector, b *bus.Bus[Event], spotify, youtube BackendPlayer) *Core {
	return &Core{mixer: mixer, inj: inj, bus: b, spotify: spotify, youtube: youtube}
}

// CurrentSong returns the song Player Core currently considers active, if
// any, for observers outside the package (the remote-sync poller, snapshot
// capture).
func (c *Core) CurrentSong() (*Song, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.currentLocked()
}

func (c *Core) currentLocked() (*Song, bool) {
	return injector.Get[*Song](c.inj, currentSongTag)
}

func (c *Core) setCurrentLocked(song *Song) {
	if song == nil {
		injector.Clear[*Song](c.inj, currentSongTag)
		return
	}
	injector.Update(c.inj, song, currentSongTag)
}

func (c *Core) backendFor(b Backend) BackendPlayer {
	switch b {
	case BackendSpotify:
		return c.spotify
	case BackendYouTube:
		return c.youtube
	default:
		return nil
	}
}

// switchBackendLocked stops the previously selected backend (if any) and
// selects next. A switch never loses the current Song — only who drives
// it — so callers must not touch current here.
func (c *Core) switchBackendLocked(next Backend) {
	if c.backend == next {
		return
	}
	if prev := c.backendFor(c.backend); prev != nil {
		_ = prev.Stop()
	}
	c.backend = next
}

func (c *Core) publish(kind EventKind, song *Song) {
	c.bus.Send(Event{Kind: kind, Song: song})
}

// Play starts playback of the current song, or pulls the next one if none
// is current.
func (c *Core) Play() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.detached {
		c.publish(EventDetached, nil)
		return nil
	}

	if song, ok := c.currentLocked(); ok {
		song.Play()
		backend := trackBackend(song.Item.TrackID)
		if bp := c.backendFor(backend); bp != nil {
			if err := bp.Play(song.Item.TrackID, song.Elapsed()); err != nil {
				return err
			}
		}
		c.switchBackendLocked(backend)
		c.setCurrentLocked(song)
		c.publish(EventChanged, song)
		return nil
	}

	song, ok := c.mixer.NextSong()
	if !ok {
		c.setCurrentLocked(nil)
		c.publish(EventEmpty, nil)
		return nil
	}
	backend := trackBackend(song.Item.TrackID)
	if bp := c.backendFor(backend); bp != nil {
		if err := bp.Play(song.Item.TrackID, 0); err != nil {
			return err
		}
	}
	c.switchBackendLocked(backend)
	song.Play()
	c.setCurrentLocked(song)
	c.publish(EventChanged, song)
	return nil
}

// Pause pauses the current song.
func (c *Core) Pause() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.detached {
		c.publish(EventDetached, nil)
		return nil
	}
	if bp := c.backendFor(c.backend); bp != nil {
		if err := bp.Pause(); err != nil {
			return err
		}
	}
	song, ok := c.currentLocked()
	if ok {
		song.Pause()
		c.setCurrentLocked(song)
	}
	c.publish(EventPausing, song)
	return nil
}

// Toggle plays if paused, pauses if playing.
func (c *Core) Toggle() error {
	c.mu.Lock()
	song, ok := c.currentLocked()
	playing := ok && song.IsPlaying()
	c.mu.Unlock()
	if playing {
		return c.Pause()
	}
	return c.Play()
}

// Skip advances to the next song. If currently playing, the new song
// starts playing; if paused, it is only switched in, not started.
func (c *Core) Skip() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.detached {
		c.publish(EventDetached, nil)
		return nil
	}
	playing := false
	if current, ok := c.currentLocked(); ok {
		playing = current.IsPlaying()
	}

	song, ok := c.mixer.NextSong()
	if !ok {
		c.setCurrentLocked(nil)
		c.publish(EventEmpty, nil)
		return nil
	}
	backend := trackBackend(song.Item.TrackID)
	c.switchBackendLocked(backend)
	if playing {
		if bp := c.backendFor(backend); bp != nil {
			if err := bp.Play(song.Item.TrackID, 0); err != nil {
				return err
			}
		}
		song.Play()
	}
	c.setCurrentLocked(song)
	c.publish(EventChanged, song)
	return nil
}

// EndOfTrack fires when a backend reports its track finished.
func (c *Core) EndOfTrack() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	song, ok := c.mixer.NextSong()
	if !ok {
		c.setCurrentLocked(nil)
		c.publish(EventEmpty, nil)
		return nil
	}
	backend := trackBackend(song.Item.TrackID)
	c.switchBackendLocked(backend)
	if bp := c.backendFor(backend); bp != nil {
		if err := bp.Play(song.Item.TrackID, 0); err != nil {
			return err
		}
	}
	song.Play()
	c.setCurrentLocked(song)
	c.publish(EventChanged, song)
	return nil
}

// Inject preempts the current song: if one exists, it is paused and pushed
// onto the sideline, then a fresh Song is played at offset.
func (c *Core) Inject(item Item, offset time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if current, ok := c.currentLocked(); ok {
		current.Pause()
		c.mixer.Sideline(current.Item)
	}
	song := NewSongAt(item, offset)
	backend := trackBackend(item.TrackID)
	c.switchBackendLocked(backend)
	if bp := c.backendFor(backend); bp != nil {
		if err := bp.Play(item.TrackID, offset); err != nil {
			return err
		}
	}
	song.Play()
	c.setCurrentLocked(song)
	c.publish(EventChanged, song)
	return nil
}

// Modified pulls a next song if none is current, and always broadcasts.
func (c *Core) Modified() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, ok := c.currentLocked(); !ok {
		if song, ok := c.mixer.NextSong(); ok {
			c.setCurrentLocked(song)
		}
	}
	song, _ := c.currentLocked()
	c.publish(EventModified, song)
	return nil
}

// UpdateDetached toggles detachment. Entering detachment stops the backend,
// clears current, and sidelines the paused current song.
func (c *Core) UpdateDetached(detached bool, manual bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if detached == c.detached {
		return
	}
	if detached {
		c.detachLocked()
	}
	c.detached = detached
	if manual && detached {
		c.publish(EventDetached, nil)
	}
}

func (c *Core) detachLocked() {
	if song, ok := c.currentLocked(); ok {
		song.Pause()
		c.mixer.Sideline(song.Item)
	}
	c.switchBackendLocked(BackendNone)
	c.setCurrentLocked(nil)
}

// UpdatePlaybackMode switches between Default and Queue modes. Switching
// into Queue mode detaches the core — Spotify Connect's own queue endpoint
// owns the playhead from that point on, so the current song (if any) is
// paused and sidelined exactly as a manual detach would do, preserving it
// for when Default mode resumes.
func (c *Core) UpdatePlaybackMode(mode Mode) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if mode == ModeQueue && !c.detached {
		c.detachLocked()
		c.detached = true
	}
	c.mode = mode
}

// Sync reconciles local state with a remote-reported song: switches
// backend and updates current without issuing a play command, used by the
// periodic remote-synchronization poll.
func (c *Core) Sync(song *Song) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.detached {
		return
	}
	backend := trackBackend(song.Item.TrackID)
	c.switchBackendLocked(backend)
	c.setCurrentLocked(song)
	c.publish(EventChanged, song)
}

// HandlePlayerEvent reacts to a backend integration event. A device change
// while playing re-issues play with the current elapsed time on the new
// device.
func (c *Core) HandlePlayerEvent(event BackendEvent) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if event.Kind != EventDeviceChanged {
		return nil
	}
	c.device.id = event.DeviceID
	song, ok := c.currentLocked()
	if !ok || !song.IsPlaying() {
		return nil
	}
	if bp := c.backendFor(c.backend); bp != nil {
		return bp.Play(song.Item.TrackID, song.Elapsed())
	}
	return nil
}

// AddTrack adds a user-requested track through the mixer, then broadcasts
// Modified(Manual). In Queue mode, Spotify tracks enqueue on the remote
// device directly and YouTube is rejected.
func (c *Core) AddTrack(user string, trackID TrackID, bypass bool, maxDuration time.Duration, resolver Resolver) (int, Item, error) {
	c.mu.Lock()
	mode := c.mode
	c.mu.Unlock()

	if mode == ModeQueue {
		item, err := resolver.Resolve(trackID)
		if err != nil {
			return 0, Item{}, err
		}
		if trackID.Platform == PlatformYouTube {
			return 0, item, ErrUnsupportedPlaybackMode
		}
		if c.spotify != nil {
			if err := c.spotify.Queue(trackID); err != nil {
				return 0, item, err
			}
		}
		return 0, item, nil
	}

	pos, item, err := c.mixer.AddTrack(user, trackID, bypass, maxDuration, resolver)
	if err != nil {
		return 0, Item{}, err
	}
	_ = c.Modified()
	return pos, item, nil
}

func trackBackend(t TrackID) Backend {
	switch t.Platform {
	case PlatformSpotify:
		return BackendSpotify
	case PlatformYouTube:
		return BackendYouTube
	default:
		return BackendNone
	}
}
