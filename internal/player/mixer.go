package player

import (
	"errors"
	"fmt"
	"math/rand"
	"sync"
	"time"
)

// Rejection is a typed add_track rejection carrying user-facing detail.
type Rejection struct {
	Kind    string
	Detail  string
	Message string
}

func (r *Rejection) Error() string { return r.Message }

func rejectQueueFull() error {
	return &Rejection{Kind: "QueueFull", Message: "the queue is full right now"}
}

func rejectContainsTrack(index int) error {
	return &Rejection{Kind: "QueueContainsTrack", Message: fmt.Sprintf("Player already contains that track (position #%d).", index+1)}
}

func rejectTooManyUserTracks(limit int) error {
	return &Rejection{Kind: "TooManyUserTracks", Message: fmt.Sprintf("<3 your enthusiasm, but you already have %d tracks in the queue.", limit)}
}

func rejectClosed(reason string) error {
	msg := "song requests are closed"
	if reason != "" {
		msg = reason
	}
	return &Rejection{Kind: "PlayerClosed", Message: msg}
}

func rejectDuplicate(by, age, window string) error {
	return &Rejection{Kind: "Duplicate", Detail: fmt.Sprintf("by=%s age=%s window=%s", by, age, window),
		Message: "that song was already played recently"}
}

// ErrMissingAuth is returned when resolving a track requires auth that
// is not available.
var ErrMissingAuth = &Rejection{Kind: "MissingAuth", Message: "song requests need the bot to be authorized"}

// ErrNotPlayable is returned when a resolved item cannot play in the
// streamer's market.
var ErrNotPlayable = &Rejection{Kind: "NotPlayable", Message: "that track is not playable here"}

// ErrUnsupportedPlaybackMode is returned for operations invalid in the
// mixer's current playback mode (e.g. YouTube items in Queue mode).
var ErrUnsupportedPlaybackMode = &Rejection{Kind: "UnsupportedPlaybackMode", Message: "that isn't supported in the current playback mode"}

// QueueEntry is one persisted queue row.
type QueueEntry struct {
	Item    Item
	AddedAt time.Time
}

// Persister durably stores and removes queue entries. Grounded on the
// Database component (C15); the mixer calls it synchronously from within
// its own lock-protected methods, mirroring the teacher's "blocking-task
// offload happens at the boundary, never while holding an in-memory lock
// across an await" discipline — callers must ensure Persister methods do
// not themselves block on the mixer.
type Persister interface {
	AppendQueueEntry(entry QueueEntry) error
	RemoveQueueEntry(trackID TrackID) error
	LoadQueue() ([]QueueEntry, error)
}

// Config bounds mixer policy.
type Config struct {
	MaxQueueLength    int
	MaxSongsPerUser   int
	DuplicateDuration time.Duration
	MinFallbackShuffle int
}

const defaultMinFallbackShuffle = 10

// Mixer computes the next song to play from four ordered sources: an
// injected sideline, the user-submitted queue, and a shuffled fallback
// pool refilled from a configured item list.
type Mixer struct {
	mu     sync.Mutex
	cfg    Config
	queue  []QueueEntry
	sidelined []Item
	fallbackItems    []Item
	fallbackShuffled []Item
	persist Persister
	closed  *string
	now     func() time.Time
	rand    *rand.Rand
}

// New constructs a Mixer. If persist is non-nil, LoadQueue is called to
// rehydrate the in-memory queue from the database.
func New(cfg Config, persist Persister) (*Mixer, error) {
	if cfg.MinFallbackShuffle <= 0 {
		cfg.MinFallbackShuffle = defaultMinFallbackShuffle
	}
	m := &Mixer{
		cfg:     cfg,
		persist: persist,
		now:     time.Now,
		rand:    rand.New(rand.NewSource(1)),
	}
	if persist != nil {
		entries, err := persist.LoadQueue()
		if err != nil {
			return nil, fmt.Errorf("player: rehydrate queue: %w", err)
		}
		m.queue = entries
	}
	return m, nil
}

// SetFallbackItems replaces the fallback pool (e.g. a configured playlist
// or the streamer's saved library), clearing any stale shuffled view.
func (m *Mixer) SetFallbackItems(items []Item) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.fallbackItems = append([]Item(nil), items...)
	m.fallbackShuffled = nil
}

// Close marks the mixer closed to new requests with the given reason;
// Open() clears it. Bypassing callers (moderators, scripted injects) are
// unaffected.
func (m *Mixer) Close(reason string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	r := reason
	m.closed = &r
}

// Open clears a prior Close.
func (m *Mixer) Open() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = nil
}

// NextSong pops from sidelined first, then queue, then a refilled shuffled
// fallback pool. Returns (nil, false) if every source is empty.
func (m *Mixer) NextSong() (*Song, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if len(m.sidelined) > 0 {
		item := m.sidelined[0]
		m.sidelined = m.sidelined[1:]
		return NewSong(item), true
	}

	if len(m.queue) > 0 {
		entry := m.queue[0]
		m.queue = m.queue[1:]
		if m.persist != nil {
			_ = m.persist.RemoveQueueEntry(entry.Item.TrackID)
		}
		return NewSong(entry.Item), true
	}

	if len(m.fallbackShuffled) == 0 && len(m.fallbackItems) > 0 {
		m.refillFallbackLocked()
	}
	if len(m.fallbackShuffled) > 0 {
		item := m.fallbackShuffled[0]
		m.fallbackShuffled = m.fallbackShuffled[1:]
		item.RequestedBy = ""
		return NewSong(item), true
	}

	return nil, false
}

func (m *Mixer) refillFallbackLocked() {
	if len(m.fallbackItems) == 0 {
		return
	}
	shuffled := make([]Item, 0, len(m.fallbackItems))
	for len(shuffled) < m.cfg.MinFallbackShuffle {
		batch := append([]Item(nil), m.fallbackItems...)
		m.rand.Shuffle(len(batch), func(i, j int) { batch[i], batch[j] = batch[j], batch[i] })
		shuffled = append(shuffled, batch...)
	}
	m.fallbackShuffled = shuffled
}

// Sideline pushes item onto the front of the sideline queue. Only the Item
// is kept: the paused Song's elapsed time is not stored, and NextSong
// returns a sidelined item as a fresh Song starting at zero elapsed.
func (m *Mixer) Sideline(item Item) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sidelined = append([]Item{item}, m.sidelined...)
}

// Sidelined reports whether anything is waiting in the sideline.
func (m *Mixer) Sidelined() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.sidelined) > 0
}

// QueueLen reports the current user-submitted queue length.
func (m *Mixer) QueueLen() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.queue)
}

// Resolver resolves a TrackID to a full Item, honoring the streamer's
// market and the caller's auth.
type Resolver interface {
	Resolve(trackID TrackID) (Item, error)
}

// AddTrack validates and appends a user-requested track to the queue per
// spec.md §4.10's add_track algorithm. bypassConstraints skips the closed/
// length/duplicate/per-user-quota checks (used for moderator or script
// injects); maxDuration, if positive, clamps the resolved item's duration.
func (m *Mixer) AddTrack(user string, trackID TrackID, bypassConstraints bool, maxDuration time.Duration, resolver Resolver) (int, Item, error) {
	m.mu.Lock()
	if !bypassConstraints {
		if m.closed != nil {
			reason := *m.closed
			m.mu.Unlock()
			return 0, Item{}, rejectClosed(reason)
		}
		if m.cfg.MaxQueueLength > 0 && len(m.queue) >= m.cfg.MaxQueueLength {
			m.mu.Unlock()
			return 0, Item{}, rejectQueueFull()
		}
		if m.cfg.DuplicateDuration > 0 {
			if entry, ok := m.lastSongWithinLocked(trackID, m.cfg.DuplicateDuration); ok {
				by := entry.Item.RequestedBy
				if by == "" {
					by = "unknown"
				}
				age := m.now().Sub(entry.AddedAt)
				m.mu.Unlock()
				return 0, Item{}, rejectDuplicate(by, age.String(), m.cfg.DuplicateDuration.String())
			}
		}
	}

	userCount := 0
	matchIndex := -1
	for i, entry := range m.queue {
		if entry.Item.RequestedBy == user {
			userCount++
		}
		if entry.Item.TrackID == trackID {
			matchIndex = i
		}
	}
	if matchIndex >= 0 {
		m.mu.Unlock()
		return 0, Item{}, rejectContainsTrack(matchIndex)
	}
	if !bypassConstraints && m.cfg.MaxSongsPerUser > 0 && userCount >= m.cfg.MaxSongsPerUser {
		m.mu.Unlock()
		return 0, Item{}, rejectTooManyUserTracks(m.cfg.MaxSongsPerUser)
	}
	m.mu.Unlock()

	item, err := resolver.Resolve(trackID)
	if err != nil {
		if errors.Is(err, ErrMissingAuth) {
			return 0, Item{}, ErrMissingAuth
		}
		return 0, Item{}, fmt.Errorf("player: resolve track: %w", err)
	}
	if !item.Playable {
		return 0, Item{}, ErrNotPlayable
	}
	item.RequestedBy = user
	item = item.WithCappedDuration(maxDuration)

	m.mu.Lock()
	defer m.mu.Unlock()
	entry := QueueEntry{Item: item, AddedAt: m.now()}
	if m.persist != nil {
		if err := m.persist.AppendQueueEntry(entry); err != nil {
			return 0, Item{}, fmt.Errorf("player: persist queue entry: %w", err)
		}
	}
	m.queue = append(m.queue, entry)
	return len(m.queue) - 1, item, nil
}

func (m *Mixer) lastSongWithinLocked(trackID TrackID, window time.Duration) (QueueEntry, bool) {
	cutoff := m.now().Add(-window)
	for i := len(m.queue) - 1; i >= 0; i-- {
		entry := m.queue[i]
		if entry.Item.TrackID != trackID {
			continue
		}
		if entry.AddedAt.Before(cutoff) {
			return QueueEntry{}, false
		}
		return entry, true
	}
	return QueueEntry{}, false
}
