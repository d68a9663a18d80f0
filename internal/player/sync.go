package player

import (
	"context"
	"sync"
	"time"

	"github.com/clefbot/clef/internal/logging"
)

// RemoteSource is polled to detect drift between the locally tracked
// playback state and what the actual streaming device reports (a user
// pausing/skipping from their own phone, for instance, bypasses the bot
// entirely and must be reconciled).
type RemoteSource interface {
	FetchRemotePlayback(ctx context.Context) (RemotePlaybackContext, error)
}

// DevicePoller additionally refreshes a backend's device/volume cache; only
// Spotify Connect currently implements it.
type DevicePoller interface {
	PollDevice(ctx context.Context) error
}

// DefaultSyncInterval is used when a non-positive interval is supplied.
const DefaultSyncInterval = 5 * time.Second

// Poller periodically reconciles Player Core against a RemoteSource.
type Poller struct {
	core     *Core
	source   RemoteSource
	devices  []DevicePoller
	interval time.Duration
	log      *logging.Logger

	notify chan struct{}
	stopCh chan struct{}
	doneCh chan struct{}
	once   sync.Once
}

// NewPoller constructs a Poller. devices are polled for device/volume drift
// alongside each playback reconciliation.
func NewPoller(core *Core, source RemoteSource, interval time.Duration, log *logging.Logger, devices ...DevicePoller) *Poller {
	if interval <= 0 {
		interval = DefaultSyncInterval
	}
	if log == nil {
		log = logging.L()
	}
	return &Poller{
		core:     core,
		source:   source,
		devices:  devices,
		interval: interval,
		log:      log,
		notify:   make(chan struct{}, 1),
		stopCh:   make(chan struct{}),
		doneCh:   make(chan struct{}),
	}
}

// NotifyRefresh requests an out-of-band reconciliation, coalesced with any
// already-pending request.
func (p *Poller) NotifyRefresh() {
	select {
	case p.notify <- struct{}{}:
	default:
	}
}

// Run drives the poll loop until ctx is cancelled or Stop is called. An
// initial reconciliation fires immediately, matching the ticker-loop shape
// used elsewhere for periodic refresh.
func (p *Poller) Run(ctx context.Context) {
	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()
	defer close(p.doneCh)

	p.reconcile(ctx)
	for {
		select {
		case <-ctx.Done():
			return
		case <-p.stopCh:
			return
		case <-ticker.C:
			p.reconcile(ctx)
		case <-p.notify:
			p.reconcile(ctx)
		}
	}
}

// Stop halts the poll loop and waits for it to exit.
func (p *Poller) Stop() {
	p.once.Do(func() {
		close(p.stopCh)
		<-p.doneCh
	})
}

func (p *Poller) reconcile(ctx context.Context) {
	for _, d := range p.devices {
		if err := d.PollDevice(ctx); err != nil {
			p.log.Debug("device poll failed", logging.Error(err))
		}
	}

	remote, err := p.source.FetchRemotePlayback(ctx)
	if err != nil {
		p.log.Debug("remote playback poll failed", logging.Error(err))
		return
	}

	remoteSong, hasRemote := SongFromRemotePlayback(remote)
	current, hasCurrent := p.core.CurrentSong()

	switch {
	case !hasRemote:
		return
	case !hasCurrent:
		p.core.Sync(remoteSong)
	case current.Item.TrackID != remote.TrackID:
		p.core.Sync(remoteSong)
	case current.IsPlaying() != remote.IsPlaying:
		p.core.Sync(remoteSong)
	}
}
