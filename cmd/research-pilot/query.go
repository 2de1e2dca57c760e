// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/pdiddy/research-pilot/internal/coordinator"
	"github.com/pdiddy/research-pilot/pkg/types"
)

var queryCmd = &cobra.Command{
	Use:   "query [question]",
	Short: "Run a single research question and print the answer",
	Long: `Query runs the full pipeline for one question: source selection, fan-out,
and synthesis. The record is persisted like any other, so it shows up in
history and can be used as the parent of a follow-up question.

With no --sources flag the model picks the sources; pass --sources to
query an explicit set.`,
	Args: cobra.MinimumNArgs(1),
	RunE: runQuery,
}

func runQuery(cmd *cobra.Command, args []string) error {
	question := strings.Join(args, " ")
	if len(question) < 10 {
		return fmt.Errorf("query too short (minimum 10 characters)")
	}

	p, err := buildPipeline(cmd)
	if err != nil {
		return err
	}
	defer p.Close()

	sources, _ := cmd.Flags().GetStringSlice("sources")
	parentID, _ := cmd.Flags().GetString("parent")
	noCredibility, _ := cmd.Flags().GetBool("no-credibility")

	rec := &types.ResearchRecord{
		ID:               uuid.NewString(),
		Query:            question,
		RequestedSources: sources,
		ParentID:         parentID,
	}

	ctx := context.Background()
	if err := p.store.Create(ctx, rec); err != nil {
		return err
	}
	if err := p.coordinator.Run(ctx, rec.ID, coordinator.RunOptions{IncludeCredibility: !noCredibility}); err != nil {
		return err
	}

	final, err := p.store.Get(ctx, rec.ID)
	if err != nil {
		return err
	}

	jsonOutput, _ := cmd.Flags().GetBool("json")
	if jsonOutput {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(final)
	}

	if final.Status == types.StatusFailed {
		return fmt.Errorf("research failed: %s", final.Error)
	}

	fmt.Println(final.Synthesis)
	fmt.Printf("\nid: %s", final.ID)
	if final.CredibilityScore != nil {
		fmt.Printf("  credibility: %.2f", *final.CredibilityScore)
	}
	fmt.Println()
	return nil
}

func init() {
	queryCmd.Flags().StringSlice("sources", nil, "explicit source ids (default: AI-selected)")
	queryCmd.Flags().String("parent", "", "parent research id for a follow-up question")
	queryCmd.Flags().Bool("no-credibility", false, "skip the credibility score")
	queryCmd.Flags().Bool("json", false, "output the full record as JSON")

	rootCmd.AddCommand(queryCmd)
}
