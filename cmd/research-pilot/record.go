// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/pdiddy/research-pilot/pkg/types"
)

var recordCmd = &cobra.Command{
	Use:   "record",
	Short: "Inspect stored research records (status, stream, history, export, delete)",
	Long: `Record works with the persisted research database. Use subcommands to
inspect one record, follow a running one, list past research, export the
whole database, or delete a record.`,
}

// --- status subcommand ---

var recordStatusCmd = &cobra.Command{
	Use:   "status [id]",
	Short: "Show one research record",
	Args:  cobra.ExactArgs(1),
	RunE:  runRecordStatus,
}

func runRecordStatus(cmd *cobra.Command, args []string) error {
	p, err := buildPipeline(cmd)
	if err != nil {
		return err
	}
	defer p.Close()

	rec, err := p.store.Get(context.Background(), args[0])
	if err != nil {
		return err
	}

	jsonOutput, _ := cmd.Flags().GetBool("json")
	if jsonOutput {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(rec)
	}

	fmt.Printf("id:      %s\n", rec.ID)
	fmt.Printf("status:  %s\n", rec.Status)
	fmt.Printf("query:   %s\n", rec.Query)
	fmt.Printf("created: %s\n", rec.CreatedAt.Format("2006-01-02 15:04:05"))
	if rec.CompletedAt != nil {
		fmt.Printf("completed: %s\n", rec.CompletedAt.Format("2006-01-02 15:04:05"))
	}
	if len(rec.Results) > 0 {
		fmt.Printf("sources: %d queried\n", len(rec.Results))
		for _, r := range rec.Results {
			line := fmt.Sprintf("  %-12s %-8s %.2fs", r.Source, r.Status, r.ResponseTime)
			if r.Error != "" {
				line += "  " + r.Error
			}
			fmt.Println(line)
		}
	}
	if rec.CredibilityScore != nil {
		fmt.Printf("credibility: %.2f\n", *rec.CredibilityScore)
	}
	if rec.Error != "" {
		fmt.Printf("error:   %s\n", rec.Error)
	}
	if rec.Synthesis != "" {
		fmt.Printf("\n%s\n", rec.Synthesis)
	}
	return nil
}

// --- stream subcommand ---

var recordStreamCmd = &cobra.Command{
	Use:   "stream [id]",
	Short: "Follow a research record until it reaches a terminal state",
	Long: `Stream polls the record and prints one snapshot line per change until the
record completes, fails, or the poll budget runs out.`,
	Args: cobra.ExactArgs(1),
	RunE: runRecordStream,
}

func runRecordStream(cmd *cobra.Command, args []string) error {
	p, err := buildPipeline(cmd)
	if err != nil {
		return err
	}
	defer p.Close()

	var lastStatus types.Status
	for snap := range p.publisher.Observe(cmd.Context(), args[0]) {
		if snap.Err != "" {
			return fmt.Errorf("%s", snap.Err)
		}
		if snap.Record.Status != lastStatus {
			lastStatus = snap.Record.Status
			fmt.Printf("status: %s\n", lastStatus)
		}
		if snap.Terminal() {
			if snap.Record.Status == types.StatusFailed {
				return fmt.Errorf("research failed: %s", snap.Record.Error)
			}
			fmt.Printf("\n%s\n", snap.Record.Synthesis)
		}
	}
	return nil
}

// --- history subcommand ---

var recordHistoryCmd = &cobra.Command{
	Use:   "history",
	Short: "List past research, newest first",
	RunE:  runRecordHistory,
}

func runRecordHistory(cmd *cobra.Command, args []string) error {
	p, err := buildPipeline(cmd)
	if err != nil {
		return err
	}
	defer p.Close()

	limit, _ := cmd.Flags().GetInt("limit")
	offset, _ := cmd.Flags().GetInt("offset")

	records, err := p.store.List(context.Background(), limit, offset)
	if err != nil {
		return err
	}

	jsonOutput, _ := cmd.Flags().GetBool("json")
	if jsonOutput {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(records)
	}

	if len(records) == 0 {
		fmt.Println("No research records found.")
		return nil
	}

	fmt.Fprintf(os.Stdout, "%-36s  %-10s  %-19s  %s\n", "ID", "Status", "Created", "Query")
	fmt.Fprintln(os.Stdout, strings.Repeat("-", 100))
	for _, rec := range records {
		query := rec.Query
		if len(query) > 40 {
			query = query[:37] + "..."
		}
		fmt.Fprintf(os.Stdout, "%-36s  %-10s  %-19s  %s\n",
			rec.ID, rec.Status, rec.CreatedAt.Format("2006-01-02 15:04:05"), query)
	}
	fmt.Fprintf(os.Stdout, "\n%d records\n", len(records))
	return nil
}

// --- export subcommand ---

var recordExportCmd = &cobra.Command{
	Use:   "export",
	Short: "Export all research records to YAML or JSON",
	RunE:  runRecordExport,
}

func runRecordExport(cmd *cobra.Command, args []string) error {
	p, err := buildPipeline(cmd)
	if err != nil {
		return err
	}
	defer p.Close()

	format, _ := cmd.Flags().GetString("format")
	switch format {
	case "yaml", "":
		return p.store.ExportYAML(context.Background(), os.Stdout)
	case "json":
		return p.store.ExportJSON(context.Background(), os.Stdout)
	default:
		return fmt.Errorf("unsupported format %q: use yaml or json", format)
	}
}

// --- delete subcommand ---

var recordDeleteCmd = &cobra.Command{
	Use:   "delete [id]",
	Short: "Delete one research record",
	Args:  cobra.ExactArgs(1),
	RunE:  runRecordDelete,
}

func runRecordDelete(cmd *cobra.Command, args []string) error {
	p, err := buildPipeline(cmd)
	if err != nil {
		return err
	}
	defer p.Close()

	if err := p.store.Delete(context.Background(), args[0]); err != nil {
		return err
	}
	fmt.Printf("Deleted %s\n", args[0])
	return nil
}

func init() {
	recordStatusCmd.Flags().Bool("json", false, "output the record as JSON")

	recordHistoryCmd.Flags().Int("limit", 50, "maximum records to list")
	recordHistoryCmd.Flags().Int("offset", 0, "records to skip")
	recordHistoryCmd.Flags().Bool("json", false, "output records as JSON")

	recordExportCmd.Flags().String("format", "yaml", "export format: yaml or json")

	recordCmd.AddCommand(recordStatusCmd)
	recordCmd.AddCommand(recordStreamCmd)
	recordCmd.AddCommand(recordHistoryCmd)
	recordCmd.AddCommand(recordExportCmd)
	recordCmd.AddCommand(recordDeleteCmd)

	rootCmd.AddCommand(recordCmd)
}
