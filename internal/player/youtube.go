package player

import (
	"context"
	"fmt"
	"sync"
	"time"

	youtubeapi "google.golang.org/api/youtube/v3"

	"github.com/clefbot/clef/internal/bus"
)

// OverlayCommandKind enumerates the directives pushed to the browser
// overlay that actually drives YouTube playback; the server never embeds
// a player itself.
type OverlayCommandKind int

const (
	// OverlayPlay starts (or resumes) a video at Offset.
	OverlayPlay OverlayCommandKind = iota
	// OverlayPause pauses whatever is loaded.
	OverlayPause
	// OverlayStop unloads the current video.
	OverlayStop
	// OverlaySetVolume sets the overlay's player volume, 0-100.
	OverlaySetVolume
)

// OverlayCommand is one directive published to the overlay bus.
type OverlayCommand struct {
	Kind    OverlayCommandKind
	VideoID string
	Offset  time.Duration
	Volume  int
}

// OverlayReport is a position tick the overlay reports back over the
// `/ws/youtube` channel as it plays.
type OverlayReport struct {
	VideoID  string
	Position time.Duration
	Duration time.Duration
	Playing  bool
}

// VideoLookup is the subset of the YouTube Data API the backend needs to
// resolve a bare video id into metadata.
type VideoLookup interface {
	LookupVideo(ctx context.Context, videoID string) (title string, duration time.Duration, err error)
}

// apiVideoLookup implements VideoLookup against the real YouTube Data API.
type apiVideoLookup struct {
	svc *youtubeapi.Service
}

// NewAPIVideoLookup wraps a *youtube.Service for metadata lookups.
func NewAPIVideoLookup(svc *youtubeapi.Service) VideoLookup {
	return &apiVideoLookup{svc: svc}
}

func (a *apiVideoLookup) LookupVideo(ctx context.Context, videoID string) (string, time.Duration, error) {
	call := a.svc.Videos.List([]string{"snippet", "contentDetails"}).Id(videoID).Context(ctx)
	resp, err := call.Do()
	if err != nil {
		return "", 0, err
	}
	if len(resp.Items) == 0 {
		return "", 0, fmt.Errorf("player: no video found for id %q", videoID)
	}
	item := resp.Items[0]
	dur, err := parseISO8601Duration(item.ContentDetails.Duration)
	if err != nil {
		return item.Snippet.Title, 0, nil
	}
	return item.Snippet.Title, dur, nil
}

// parseISO8601Duration parses the subset of ISO-8601 durations the YouTube
// Data API returns (PT#H#M#S).
func parseISO8601Duration(s string) (time.Duration, error) {
	var h, m, sec int
	n, err := fmt.Sscanf(s, "PT%dH%dM%dS", &h, &m, &sec)
	if err == nil && n == 3 {
		return time.Duration(h)*time.Hour + time.Duration(m)*time.Minute + time.Duration(sec)*time.Second, nil
	}
	h, m, sec = 0, 0, 0
	if n, err := fmt.Sscanf(s, "PT%dM%dS", &m, &sec); err == nil && n == 2 {
		return time.Duration(m)*time.Minute + time.Duration(sec)*time.Second, nil
	}
	if n, err := fmt.Sscanf(s, "PT%dS", &sec); err == nil && n == 1 {
		return time.Duration(sec) * time.Second, nil
	}
	return 0, fmt.Errorf("player: unrecognised duration format %q", s)
}

// YouTubeBackend drives playback by publishing OverlayCommands on a bus the
// browser overlay subscribes to over `/ws/youtube`; it never plays audio
// itself. End-of-track is detected from the overlay's own position reports,
// not from a server-side timer.
type YouTubeBackend struct {
	mu      sync.Mutex
	cmds    *bus.Bus[OverlayCommand]
	volume  int
	events  chan BackendEvent
	onEnded func(videoID string)
}

// NewYouTubeBackend constructs a YouTubeBackend publishing commands on cmds.
// onEnded, if non-nil, is invoked (outside any lock) when an overlay report
// shows a video reached its end.
func NewYouTubeBackend(cmds *bus.Bus[OverlayCommand], onEnded func(videoID string)) *YouTubeBackend {
	return &YouTubeBackend{
		cmds:    cmds,
		events:  make(chan BackendEvent, 8),
		onEnded: onEnded,
	}
}

// Play publishes an OverlayPlay command for trackID at offset.
func (y *YouTubeBackend) Play(trackID TrackID, offset time.Duration) error {
	if trackID.Platform != PlatformYouTube {
		return fmt.Errorf("player: youtube backend given a %s track", trackID.Platform)
	}
	y.cmds.Send(OverlayCommand{Kind: OverlayPlay, VideoID: trackID.ID, Offset: offset})
	return nil
}

// Pause publishes an OverlayPause command.
func (y *YouTubeBackend) Pause() error {
	y.cmds.Send(OverlayCommand{Kind: OverlayPause})
	return nil
}

// Stop publishes an OverlayStop command, unloading the overlay's video.
func (y *YouTubeBackend) Stop() error {
	y.cmds.Send(OverlayCommand{Kind: OverlayStop})
	return nil
}

// Next is not supported server-side for YouTube; the caller (Player Core)
// is expected to pull the next track itself and call Play.
func (y *YouTubeBackend) Next() error {
	return nil
}

// Queue is not supported for YouTube; only Spotify Connect exposes a remote
// queue endpoint.
func (y *YouTubeBackend) Queue(trackID TrackID) error {
	return ErrUnsupportedPlaybackMode
}

// Volume publishes an OverlaySetVolume command with the new level.
func (y *YouTubeBackend) Volume(mod VolumeModification) (int, error) {
	y.mu.Lock()
	next := mod.Apply(y.volume)
	y.volume = next
	y.mu.Unlock()
	y.cmds.Send(OverlayCommand{Kind: OverlaySetVolume, Volume: next})
	return next, nil
}

// CurrentVolume returns the last volume pushed.
func (y *YouTubeBackend) CurrentVolume() int {
	y.mu.Lock()
	defer y.mu.Unlock()
	return y.volume
}

// Events delivers integration events. YouTube has no device concept, so
// nothing is ever sent on this channel; end of track is reported through
// HandleOverlayReport's onEnded callback instead.
func (y *YouTubeBackend) Events() <-chan BackendEvent {
	return y.events
}

// HandleOverlayReport treats a reported position at or past duration as the
// end-of-track trigger, since the overlay -- not the server -- owns the
// actual playhead.
func (y *YouTubeBackend) HandleOverlayReport(report OverlayReport) {
	if report.Duration <= 0 || report.Position < report.Duration {
		return
	}
	if y.onEnded != nil {
		y.onEnded(report.VideoID)
	}
}

var _ BackendPlayer = (*YouTubeBackend)(nil)
