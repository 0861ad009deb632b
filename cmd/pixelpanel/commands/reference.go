package commands

import (
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/nerrad567/pixelpanel/internal/printer"
	"github.com/nerrad567/pixelpanel/internal/reference"
)

func newReferenceCmd() *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "reference",
		Short: "Print the matrix types, pins and other reference tables",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			tables := reference.All()
			if asJSON {
				enc := json.NewEncoder(cmd.OutOrStdout())
				enc.SetIndent("", "  ")
				return enc.Encode(tables)
			}
			printTables(printer.New(cmd.OutOrStdout()), tables)
			return nil
		},
	}

	cmd.Flags().BoolVar(&asJSON, "json", false, "print the tables as JSON")
	return cmd
}

func printTables(p *printer.Printer, t reference.Tables) {
	p.Heading("Matrix types")
	for _, m := range t.MatrixTypes {
		p.Row(strconv.Itoa(m.ID), m.Name)
	}

	p.Heading("Colour corrections")
	for _, c := range t.ColorCorrections {
		p.Row(c, "")
	}

	p.Heading("Light sensors")
	for _, s := range t.LightSensors {
		p.Row(string(s), "")
	}

	p.Heading("Pins")
	for _, pin := range t.Pins {
		p.Row(string(pin), "")
	}

	p.Heading("Pin roles")
	for _, r := range t.PinRoles {
		detail := r.Label
		if r.EnabledKey != "" {
			detail = fmt.Sprintf("%s (when %s)", r.Label, r.EnabledKey)
		}
		p.Row(r.Key, detail)
	}

	p.Heading("Button actions")
	for _, a := range t.ButtonActions {
		p.Row(strconv.Itoa(a.ID), a.Name)
	}
}
