// PixelPanel keeps a live, validated view of a PixelIt LED matrix and serves
// it to browsers, MQTT and InfluxDB.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/nerrad567/pixelpanel/cmd/pixelpanel/commands"
)

// Set at build time via ldflags:
// go build -ldflags "-X main.version=1.0.0 -X main.commit=abc123"
var (
	version = "dev"
	commit  = "unknown"
	date    = "unknown"
)

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	root := commands.NewRootCmd(commands.BuildInfo{Version: version, Commit: commit, Date: date})
	if err := root.ExecuteContext(ctx); err != nil {
		if !errors.Is(err, commands.ErrReported) {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		}
		cancel()
		os.Exit(1)
	}
}
