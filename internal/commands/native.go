package commands

import (
	"fmt"
	"strings"
	"time"

	"github.com/clefbot/clef/internal/chat"
	"github.com/clefbot/clef/internal/player"
	"github.com/clefbot/clef/internal/registry"
)

// Config bundles the dependencies the native transport and song-request
// commands need.
type Config struct {
	Core     *player.Core
	Mixer    *player.Mixer
	Resolver player.Resolver
	// MaxRequestDuration caps a requested track's length; zero means
	// uncapped.
	MaxRequestDuration time.Duration
}

// Register installs the native command set into reg. Native registrations
// always win a key collision against a script-loaded command of the same
// name.
func Register(reg *registry.Registry, cfg Config) {
	reg.RegisterNative("play", func(ctx registry.Context) error {
		if err := cfg.Core.Play(); err != nil {
			return &chat.RespondErr{Message: err.Error()}
		}
		ctx.Respond("playing")
		return nil
	})

	reg.RegisterNative("pause", func(ctx registry.Context) error {
		if err := cfg.Core.Pause(); err != nil {
			return &chat.RespondErr{Message: err.Error()}
		}
		ctx.Respond("paused")
		return nil
	})

	reg.RegisterNative("skip", func(ctx registry.Context) error {
		if err := cfg.Core.Skip(); err != nil {
			return &chat.RespondErr{Message: err.Error()}
		}
		ctx.Respond("skipped")
		return nil
	})

	reg.RegisterNative("nowplaying", func(ctx registry.Context) error {
		song, ok := cfg.Core.CurrentSong()
		if !ok {
			ctx.Respond("nothing is playing right now")
			return nil
		}
		artists := strings.Join(song.Item.Artists, ", ")
		ctx.Respond(fmt.Sprintf("now playing: %s — %s", song.Item.Title, artists))
		return nil
	})

	reg.RegisterNative("sr", func(ctx registry.Context) error {
		return requestSong(ctx, cfg)
	})
	reg.RegisterNative("songrequest", func(ctx registry.Context) error {
		return requestSong(ctx, cfg)
	})

	reg.RegisterNative("song", func(ctx registry.Context) error {
		if len(ctx.Args) == 0 {
			ctx.Respond("usage: !song request <track url or id> | !song skip")
			return nil
		}
		sub, rest := ctx.Args[0], ctx.Args[1:]
		switch sub {
		case "request":
			return requestSong(registry.Context{APIURL: ctx.APIURL, User: ctx.User, Args: rest, Respond: ctx.Respond}, cfg)
		case "skip":
			if err := cfg.Core.Skip(); err != nil {
				return &chat.RespondErr{Message: err.Error()}
			}
			ctx.Respond("skipped")
			return nil
		default:
			ctx.Respond("usage: !song request <track url or id> | !song skip")
			return nil
		}
	})
}

func requestSong(ctx registry.Context, cfg Config) error {
	if len(ctx.Args) == 0 {
		ctx.Respond("usage: !sr <track url or id>")
		return nil
	}
	raw := strings.Join(ctx.Args, " ")
	trackID, err := player.ParseTrackID(raw)
	if err != nil {
		ctx.Respond(fmt.Sprintf("couldn't recognize %q as a track", raw))
		return nil
	}

	position, item, err := cfg.Mixer.AddTrack(ctx.User, trackID, false, cfg.MaxRequestDuration, cfg.Resolver)
	if err != nil {
		return &chat.RespondErr{Message: err.Error()}
	}
	artists := strings.Join(item.Artists, ", ")
	ctx.Respond(fmt.Sprintf("Added %q by %s at position #%d!", item.Title, artists, position+1))
	if err := cfg.Core.Modified(); err != nil {
		return err
	}
	return nil
}
