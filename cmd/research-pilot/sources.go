// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/pdiddy/research-pilot/internal/dispatch"
)

var sourcesCmd = &cobra.Command{
	Use:   "sources",
	Short: "List the source catalog and probe source health",
	RunE:  runSources,
}

func runSources(cmd *cobra.Command, args []string) error {
	p, err := buildPipeline(cmd)
	if err != nil {
		return err
	}
	defer p.Close()

	statuses := p.dispatcher.CheckAll(cmd.Context())
	summary := dispatch.Summarize(statuses)

	jsonOutput, _ := cmd.Flags().GetBool("json")
	if jsonOutput {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(map[string]any{"sources": statuses, "summary": summary})
	}

	fmt.Fprintf(os.Stdout, "%-12s  %-22s  %-10s  %s\n", "ID", "Name", "Status", "Error")
	for _, st := range statuses {
		fmt.Fprintf(os.Stdout, "%-12s  %-22s  %-10s  %s\n", st.Source, st.Name, st.Status, st.Error)
	}
	fmt.Fprintf(os.Stdout, "\n%d/%d healthy (%.0f%%)\n", summary.Healthy, summary.Total, summary.Percentage)
	return nil
}

func init() {
	sourcesCmd.Flags().Bool("json", false, "output as JSON")

	rootCmd.AddCommand(sourcesCmd)
}
