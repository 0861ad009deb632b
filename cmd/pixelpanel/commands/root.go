// Package commands implements the pixelpanel command line.
package commands

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

// defaultConfigPath is used when neither --config nor PIXELPANEL_CONFIG is set.
const defaultConfigPath = "configs/config.yaml"

// ErrReported is returned after a command has already printed its failure.
// Callers only set the exit code.
var ErrReported = errors.New("failure already reported")

// BuildInfo identifies the binary.
type BuildInfo struct {
	Version string
	Commit  string
	Date    string
}

func (b BuildInfo) String() string {
	return fmt.Sprintf("%s (commit: %s, built: %s)", b.Version, b.Commit, b.Date)
}

// NewRootCmd builds the command tree. Running the root without a
// subcommand starts the service.
func NewRootCmd(info BuildInfo) *cobra.Command {
	var configPath string

	root := &cobra.Command{
		Use:   "pixelpanel",
		Short: "PixelPanel - state sync and config validation for PixelIt matrices",
		Long: `PixelPanel holds a live connection to a PixelIt LED matrix, mirrors its
state to browsers over WebSocket, to MQTT and to InfluxDB, and validates every
configuration change before it reaches the device.`,
		Version:       info.String(),
		SilenceErrors: true,
		SilenceUsage:  true,
		Args:          cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runServe(cmd.Context(), configPath, info)
		},
	}

	root.PersistentFlags().StringVarP(&configPath, "config", "c", configPathFromEnv(),
		"path to the YAML configuration file (env PIXELPANEL_CONFIG)")

	root.AddCommand(
		newServeCmd(&configPath, info),
		newValidateCmd(),
		newReferenceCmd(),
		newHashPasswordCmd(),
		newVersionCmd(info),
	)
	return root
}

func configPathFromEnv() string {
	if path := os.Getenv("PIXELPANEL_CONFIG"); path != "" {
		return path
	}
	return defaultConfigPath
}

func newVersionCmd(info BuildInfo) *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, _ []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "pixelpanel %s\n", info)
		},
	}
}
