package commands

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"maps"
	"os"
	"slices"

	"github.com/spf13/cobra"

	"github.com/nerrad567/pixelpanel/internal/printer"
	"github.com/nerrad567/pixelpanel/internal/reference"
	"github.com/nerrad567/pixelpanel/internal/validation"
)

func newValidateCmd() *cobra.Command {
	var withDefaults bool

	cmd := &cobra.Command{
		Use:   "validate [file.json]",
		Short: "Validate a device configuration offline",
		Long: `Validate checks a PixelIt configuration against the field rules and the
pin assignment rules without contacting the device.

The file holds one JSON object, as returned by the device or by
GET /api/v1/config. Use "-" to read standard input. With --defaults the file
is merged over the firmware defaults first, so a partial edit can be checked;
without a file the defaults themselves are checked.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) == 0 && !withDefaults {
				return errors.New("a config file is required unless --defaults is set")
			}

			snapshot := map[string]any{}
			if withDefaults {
				snapshot = reference.DefaultConfig()
			}
			source := "firmware defaults"
			if len(args) == 1 {
				source = args[0]
				file, err := readSnapshot(cmd.InOrStdin(), args[0])
				if err != nil {
					return err
				}
				maps.Copy(snapshot, file)
			}

			return reportValidation(printer.New(cmd.OutOrStdout()), source, validation.New().ValidateSnapshot(snapshot))
		},
	}

	cmd.Flags().BoolVar(&withDefaults, "defaults", false, "merge the file over the firmware defaults")
	return cmd
}

func readSnapshot(stdin io.Reader, path string) (map[string]any, error) {
	var (
		data []byte
		err  error
	)
	if path == "-" {
		data, err = io.ReadAll(stdin)
	} else {
		data, err = os.ReadFile(path)
	}
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}

	var snapshot map[string]any
	if err := json.Unmarshal(data, &snapshot); err != nil {
		return nil, fmt.Errorf("parsing %s: %w", path, err)
	}
	if snapshot == nil {
		return nil, fmt.Errorf("parsing %s: expected a JSON object", path)
	}
	return snapshot, nil
}

func reportValidation(p *printer.Printer, source string, err error) error {
	if err == nil {
		p.Success("%s is valid", source)
		return nil
	}

	var verr *validation.Error
	if !errors.As(err, &verr) {
		return err
	}

	p.Failure("%s has %d invalid field(s)", source, len(verr.Fields))
	for _, key := range slices.Sorted(maps.Keys(verr.Fields)) {
		p.Field(key, verr.Fields[key])
	}
	return ErrReported
}
