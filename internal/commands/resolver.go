// Package commands registers the bang-command handlers the Command
// Registry dispatches bare chat commands to: song requests, transport
// controls, and the now-playing lookup, all driven through Player Core
// and the Mixer exactly as spec.md §4.7/§4.10 describe.
package commands

import (
	"context"
	"fmt"

	spotifyapi "github.com/zmb3/spotify/v2"

	"github.com/clefbot/clef/internal/player"
)

// SpotifyResolver resolves a Spotify TrackID to a playable Item via the
// Spotify Web API's track lookup, calling the full *spotify.Client directly.
type SpotifyResolver struct {
	client *spotifyapi.Client
}

// NewSpotifyResolver wraps a real Spotify client for track resolution.
func NewSpotifyResolver(client *spotifyapi.Client) *SpotifyResolver {
	return &SpotifyResolver{client: client}
}

func (r *SpotifyResolver) resolve(trackID player.TrackID) (player.Item, error) {
	track, err := r.client.GetTrack(context.Background(), spotifyapi.ID(trackID.ID))
	if err != nil {
		return player.Item{}, fmt.Errorf("spotify: get track %s: %w", trackID.ID, err)
	}
	artists := make([]string, len(track.Artists))
	for i, a := range track.Artists {
		artists[i] = a.Name
	}
	playable := track.IsPlayable == nil || *track.IsPlayable
	return player.Item{
		TrackID:  trackID,
		Title:    track.Name,
		Artists:  artists,
		Playable: playable,
		Duration: track.TimeDuration(),
	}, nil
}

// YouTubeResolver resolves a YouTube TrackID to a playable Item via the
// same VideoLookup the YouTube backend uses for overlay metadata.
type YouTubeResolver struct {
	lookup player.VideoLookup
}

// NewYouTubeResolver wraps a VideoLookup for track resolution.
func NewYouTubeResolver(lookup player.VideoLookup) *YouTubeResolver {
	return &YouTubeResolver{lookup: lookup}
}

func (r *YouTubeResolver) resolve(trackID player.TrackID) (player.Item, error) {
	title, duration, err := r.lookup.LookupVideo(context.Background(), trackID.ID)
	if err != nil {
		return player.Item{}, fmt.Errorf("youtube: lookup video %s: %w", trackID.ID, err)
	}
	return player.Item{TrackID: trackID, Title: title, Playable: true, Duration: duration}, nil
}

// MultiResolver dispatches track resolution to the backend matching the
// track id's platform, implementing player.Resolver over both backends at
// once so AddTrack never needs to know which platform a request named.
type MultiResolver struct {
	Spotify *SpotifyResolver
	YouTube *YouTubeResolver
}

// Resolve implements player.Resolver.
func (m *MultiResolver) Resolve(trackID player.TrackID) (player.Item, error) {
	switch trackID.Platform {
	case player.PlatformSpotify:
		if m.Spotify == nil {
			return player.Item{}, fmt.Errorf("commands: spotify backend not configured")
		}
		return m.Spotify.resolve(trackID)
	case player.PlatformYouTube:
		if m.YouTube == nil {
			return player.Item{}, fmt.Errorf("commands: youtube backend not configured")
		}
		return m.YouTube.resolve(trackID)
	default:
		return player.Item{}, fmt.Errorf("commands: unsupported track platform %v", trackID.Platform)
	}
}
