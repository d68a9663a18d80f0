// Package roles maintains the channel's moderator and VIP sets, refreshed
// periodically from the streaming platform's REST API. The refresh cadence
// is modeled on the broker's timesync.Service ticker loop (periodic poll,
// immediate first sample, explicit notify channel); the sets themselves
// follow the broker's documented concurrency model for shared
// RWMutex-guarded sets written by one refresher and read by many handlers.
package roles

import (
	"context"
	"sync"
	"time"

	"github.com/clefbot/clef/internal/logging"
)

// DefaultRefreshInterval is how often the role sets are refreshed absent
// configuration, and matches the spec's "every 5 minutes" contract.
const DefaultRefreshInterval = 5 * time.Minute

// Lister fetches the current moderator and VIP logins from the platform's
// REST API. Implementations page through the platform's list endpoints.
type Lister interface {
	ListModerators(ctx context.Context) ([]string, error)
	ListVIPs(ctx context.Context) ([]string, error)
}

// Store holds the current moderator/VIP sets. Reads never block behind a
// refresh in progress; only the refresh loop and ApplyModerators/ApplyVIPs
// take the write lock.
type Store struct {
	mu         sync.RWMutex
	moderators map[string]struct{}
	vips       map[string]struct{}

	lister   Lister
	interval time.Duration
	log      *logging.Logger
	now      func() time.Time

	notify chan struct{}
	stopCh chan struct{}
	doneCh chan struct{}
	once   sync.Once
}

// New constructs a Store. Call Run to start the periodic refresh loop.
func New(lister Lister, interval time.Duration, log *logging.Logger) *Store {
	if interval <= 0 {
		interval = DefaultRefreshInterval
	}
	return &Store{
		moderators: make(map[string]struct{}),
		vips:       make(map[string]struct{}),
		lister:     lister,
		interval:   interval,
		log:        log,
		now:        time.Now,
		notify:     make(chan struct{}, 1),
		stopCh:     make(chan struct{}),
		doneCh:     make(chan struct{}),
	}
}

// IsModerator reports whether login currently holds the moderator role.
func (s *Store) IsModerator(login string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.moderators[login]
	return ok
}

// IsVIP reports whether login currently holds the VIP role.
func (s *Store) IsVIP(login string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.vips[login]
	return ok
}

// NotifyRefresh requests an out-of-cadence refresh as soon as the loop is
// next able to run it. Non-blocking: a refresh already pending is not
// duplicated.
func (s *Store) NotifyRefresh() {
	select {
	case s.notify <- struct{}{}:
	default:
	}
}

// Run starts the periodic refresh loop; it blocks until ctx is done or Stop
// is called.
func (s *Store) Run(ctx context.Context) {
	defer close(s.doneCh)
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	s.refresh(ctx)

	for {
		select {
		case <-ctx.Done():
			return
		case <-s.stopCh:
			return
		case <-ticker.C:
			s.refresh(ctx)
		case <-s.notify:
			s.refresh(ctx)
		}
	}
}

// Stop ends the refresh loop. Safe to call more than once.
func (s *Store) Stop() {
	s.once.Do(func() {
		close(s.stopCh)
	})
}

// ApplyModerators replaces the moderator set directly, used when the chat
// connection itself reports the list via its inline `/mods` NOTICE reply
// rather than waiting for the next REST refresh.
func (s *Store) ApplyModerators(logins []string) {
	set := make(map[string]struct{}, len(logins))
	for _, login := range logins {
		set[login] = struct{}{}
	}
	s.mu.Lock()
	s.moderators = set
	s.mu.Unlock()
}

// ApplyVIPs replaces the VIP set directly from a chat-reported `/vips` list.
func (s *Store) ApplyVIPs(logins []string) {
	set := make(map[string]struct{}, len(logins))
	for _, login := range logins {
		set[login] = struct{}{}
	}
	s.mu.Lock()
	s.vips = set
	s.mu.Unlock()
}

func (s *Store) refresh(ctx context.Context) {
	mods, err := s.lister.ListModerators(ctx)
	if err != nil {
		s.log.Error("moderator list refresh failed", logging.Error(err))
		return
	}
	vips, err := s.lister.ListVIPs(ctx)
	if err != nil {
		s.log.Error("vip list refresh failed", logging.Error(err))
		return
	}

	modSet := make(map[string]struct{}, len(mods))
	for _, login := range mods {
		modSet[login] = struct{}{}
	}
	vipSet := make(map[string]struct{}, len(vips))
	for _, login := range vips {
		vipSet[login] = struct{}{}
	}

	s.mu.Lock()
	s.moderators = modSet
	s.vips = vipSet
	s.mu.Unlock()

	s.log.Debug("role sets refreshed",
		logging.Int("moderators", len(modSet)),
		logging.Int("vips", len(vipSet)))
}
