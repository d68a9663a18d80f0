// Command clef runs the chat bot: joining a channel's chat, dispatching
// commands, mixing and relaying playback to Spotify or the browser
// overlay, and serving the accompanying web API.
package main

import (
	"fmt"
	"os"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
