package main

import (
	"fmt"
	"io"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/joanies-kitchen/recipes-cli/internal/model"
)

var sourcesCmd = &cobra.Command{
	Use:   "sources",
	Short: "List configured ingestion sources",
	RunE: func(cmd *cobra.Command, _ []string) error {
		formatSources(os.Stdout)
		return nil
	},
}

func formatSources(out io.Writer) {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(w, "SOURCE\tKIND\tCONFIGURED\tLOCATION")

	row := func(src model.Source, kind, location string) {
		configured := "no"
		if location != "" {
			configured = "yes"
		}
		if location == "" {
			location = "-"
		}
		_, _ = fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", src, kind, configured, location)
	}

	row(model.SourceCSVDump, "csv file", cfg.Sources.CSVPath)
	row(model.SourceScraped, "json file", cfg.Sources.JSONPath)
	row(model.SourceAPI, "http api", cfg.Sources.APIBaseURL)

	_ = w.Flush()
}

func init() {
	rootCmd.AddCommand(sourcesCmd)
}
