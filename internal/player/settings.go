package player

import (
	"context"
	"encoding/json"

	"github.com/clefbot/clef/internal/logging"
	"github.com/clefbot/clef/internal/settings"
)

// ModeDefault/ModeQueue round-trip through the settings store as these
// strings, matching the "default"/"queue" wire values the bot's original
// settings schema used for the playback-mode key.
const (
	modeSettingDefault = "default"
	modeSettingQueue   = "queue"
)

func modeFromSetting(raw json.RawMessage) (Mode, bool) {
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return ModeDefault, false
	}
	switch s {
	case modeSettingQueue:
		return ModeQueue, true
	default:
		return ModeDefault, true
	}
}

// WatchSettings subscribes Core to the "detached" and "playback-mode"
// settings keys, applying every change the operator makes through the
// settings API directly to the state machine. It runs until ctx is
// cancelled.
func WatchSettings(ctx context.Context, core *Core, store *settings.Store, log *logging.Logger) {
	detachedReader, detachedRaw, ok := store.Stream("detached")
	if ok {
		var detached bool
		if err := json.Unmarshal(detachedRaw, &detached); err == nil {
			core.UpdateDetached(detached, false)
		}
	}
	defer detachedReader.Close()

	modeReader, modeRaw, ok := store.Stream("playback-mode")
	if ok {
		if mode, ok := modeFromSetting(modeRaw); ok {
			core.UpdatePlaybackMode(mode)
		}
	}
	defer modeReader.Close()

	for {
		select {
		case <-ctx.Done():
			return
		case change, ok := <-detachedReader.Messages():
			if !ok {
				return
			}
			switch change.Kind {
			case settings.ChangeSet:
				var detached bool
				if err := json.Unmarshal(change.Value, &detached); err != nil {
					log.Warn("ignoring malformed detached setting", logging.Error(err))
					continue
				}
				core.UpdateDetached(detached, true)
			case settings.ChangeClear:
				core.UpdateDetached(false, true)
			}
		case change, ok := <-modeReader.Messages():
			if !ok {
				return
			}
			switch change.Kind {
			case settings.ChangeSet:
				mode, ok := modeFromSetting(change.Value)
				if !ok {
					log.Warn("ignoring malformed playback-mode setting")
					continue
				}
				core.UpdatePlaybackMode(mode)
			case settings.ChangeClear:
				core.UpdatePlaybackMode(ModeDefault)
			}
		}
	}
}
