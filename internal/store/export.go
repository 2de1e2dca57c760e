// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package store

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"time"

	"go.yaml.in/yaml/v3"
)

// ExportEntry is one research record flattened for export.
type ExportEntry struct {
	ID               string   `json:"id" yaml:"id"`
	Query            string   `json:"query" yaml:"query"`
	Status           string   `json:"status" yaml:"status"`
	RequestedSources []string `json:"requested_sources" yaml:"requested_sources"`
	Synthesis        string   `json:"synthesis,omitempty" yaml:"synthesis,omitempty"`
	CredibilityScore *float64 `json:"credibility_score,omitempty" yaml:"credibility_score,omitempty"`
	Error            string   `json:"error,omitempty" yaml:"error,omitempty"`
	ParentID         string   `json:"parent_research_id,omitempty" yaml:"parent_research_id,omitempty"`
	CreatedAt        string   `json:"created_at" yaml:"created_at"`
	CompletedAt      string   `json:"completed_at,omitempty" yaml:"completed_at,omitempty"`
}

const exportLimit = 100000

// ExportYAML writes all records to w as YAML, newest first.
func (s *Store) ExportYAML(ctx context.Context, w io.Writer) error {
	entries, err := s.exportEntries(ctx)
	if err != nil {
		return err
	}
	data, err := yaml.Marshal(entries)
	if err != nil {
		return fmt.Errorf("marshaling YAML: %w", err)
	}
	_, err = w.Write(data)
	return err
}

// ExportJSON writes all records to w as indented JSON, newest first.
func (s *Store) ExportJSON(ctx context.Context, w io.Writer) error {
	entries, err := s.exportEntries(ctx)
	if err != nil {
		return err
	}
	data, err := json.MarshalIndent(entries, "", "  ")
	if err != nil {
		return fmt.Errorf("marshaling JSON: %w", err)
	}
	_, err = w.Write(data)
	return err
}

func (s *Store) exportEntries(ctx context.Context) ([]ExportEntry, error) {
	records, err := s.List(ctx, exportLimit, 0)
	if err != nil {
		return nil, fmt.Errorf("querying for export: %w", err)
	}

	entries := make([]ExportEntry, len(records))
	for i, r := range records {
		entries[i] = ExportEntry{
			ID:               r.ID,
			Query:            r.Query,
			Status:           string(r.Status),
			RequestedSources: r.RequestedSources,
			Synthesis:        r.Synthesis,
			CredibilityScore: r.CredibilityScore,
			Error:            r.Error,
			ParentID:         r.ParentID,
			CreatedAt:        r.CreatedAt.Format(time.RFC3339),
		}
		if r.CompletedAt != nil {
			entries[i].CompletedAt = r.CompletedAt.Format(time.RFC3339)
		}
	}
	return entries, nil
}
