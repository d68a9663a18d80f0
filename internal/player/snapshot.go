package player

import (
	"encoding/json"
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/clefbot/clef/internal/logging"
)

// SnapshotOption configures a Snapshotter.
type SnapshotOption func(*Snapshotter)

// WithSnapshotClock overrides the snapshot time source, for tests.
func WithSnapshotClock(clock func() time.Time) SnapshotOption {
	return func(s *Snapshotter) {
		if clock != nil {
			s.now = clock
		}
	}
}

// PlaybackSnapshot is the durable record of what was playing, so a restart
// can resume instead of starting cold.
type PlaybackSnapshot struct {
	SavedAt  time.Time  `json:"saved_at"`
	Backend  Backend    `json:"backend"`
	Mode     Mode       `json:"mode"`
	Detached bool       `json:"detached"`
	Song     *SongState `json:"song,omitempty"`
}

// SongState is the serializable subset of Song needed to resume playback.
type SongState struct {
	TrackID     TrackID       `json:"track_id"`
	Title       string        `json:"title"`
	Artists     []string      `json:"artists"`
	Duration    time.Duration `json:"duration"`
	RequestedBy string        `json:"requested_by"`
	Elapsed     time.Duration `json:"elapsed"`
	Playing     bool          `json:"playing"`
}

// Snapshotter periodically persists the current playback snapshot to disk
// so the player can resume across a restart.
type Snapshotter struct {
	mu       sync.RWMutex
	path     string
	interval time.Duration
	log      *logging.Logger
	now      func() time.Time

	current PlaybackSnapshot
	dirty   bool

	flushCh chan struct{}
	stopCh  chan struct{}
	doneCh  chan struct{}
}

// NewSnapshotter constructs a Snapshotter backed by path, loading any
// existing snapshot immediately and flushing at interval thereafter. A
// zero path or non-positive interval disables persistence; all methods on
// a nil *Snapshotter are safe no-ops, matching the teacher's pattern of
// tolerating a disabled snapshotter.
func NewSnapshotter(path string, interval time.Duration, log *logging.Logger) (*Snapshotter, error) {
	if path == "" || interval <= 0 {
		return nil, nil
	}
	if log == nil {
		log = logging.L()
	}
	s := &Snapshotter{
		path:     path,
		interval: interval,
		log:      log,
		now:      time.Now,
		flushCh:  make(chan struct{}, 1),
		stopCh:   make(chan struct{}),
		doneCh:   make(chan struct{}),
	}
	if err := s.load(); err != nil {
		return nil, err
	}
	go s.loop()
	return s, nil
}

func (s *Snapshotter) load() error {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		return err
	}
	var snap PlaybackSnapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return err
	}
	s.mu.Lock()
	s.current = snap
	s.mu.Unlock()
	return nil
}

// Loaded returns the snapshot read at startup, if any was found.
func (s *Snapshotter) Loaded() (PlaybackSnapshot, bool) {
	if s == nil {
		return PlaybackSnapshot{}, false
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.current, s.current.Song != nil || s.current.Backend != BackendNone
}

func (s *Snapshotter) loop() {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()
	defer close(s.doneCh)
	for {
		select {
		case <-ticker.C:
			s.flush()
		case <-s.flushCh:
			s.flush()
		case <-s.stopCh:
			s.flush()
			return
		}
	}
}

// Record replaces the in-memory snapshot and schedules an out-of-band
// flush; Close or the next tick guarantees it reaches disk.
func (s *Snapshotter) Record(snap PlaybackSnapshot) {
	if s == nil {
		return
	}
	snap.SavedAt = s.now().UTC()
	s.mu.Lock()
	s.current = snap
	s.dirty = true
	s.mu.Unlock()
	select {
	case s.flushCh <- struct{}{}:
	default:
	}
}

// Flush immediately persists the current snapshot to disk.
func (s *Snapshotter) Flush() error {
	if s == nil {
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.dirty {
		return nil
	}
	data, err := json.MarshalIndent(s.current, "", "  ")
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(s.path), 0o755); err != nil && !errors.Is(err, fs.ErrExist) {
		return err
	}
	if err := os.WriteFile(s.path, data, 0o644); err != nil {
		return err
	}
	s.dirty = false
	return nil
}

func (s *Snapshotter) flush() {
	if err := s.Flush(); err != nil {
		s.log.Error("failed to persist playback snapshot", logging.Error(err))
	}
}

// Close stops the persistence goroutine and flushes any pending state.
func (s *Snapshotter) Close() error {
	if s == nil {
		return nil
	}
	close(s.stopCh)
	<-s.doneCh
	return nil
}

// SnapshotOf captures c's current state into a PlaybackSnapshot.
func SnapshotOf(c *Core) PlaybackSnapshot {
	c.mu.Lock()
	defer c.mu.Unlock()
	snap := PlaybackSnapshot{Backend: c.backend, Mode: c.mode, Detached: c.detached}
	if song, ok := c.currentLocked(); ok {
		snap.Song = &SongState{
			TrackID:     song.Item.TrackID,
			Title:       song.Item.Title,
			Artists:     song.Item.Artists,
			Duration:    song.Item.Duration,
			RequestedBy: song.Item.RequestedBy,
			Elapsed:     song.Elapsed(),
			Playing:     song.IsPlaying(),
		}
	}
	return snap
}
