// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package types defines the shared data and configuration types for the
// research pipeline.
package types

import (
	"encoding/json"
	"fmt"
	"time"
)

// Status is the lifecycle state of a research record. It only ever advances:
// pending -> processing -> completed | failed.
type Status string

const (
	StatusPending    Status = "pending"
	StatusProcessing Status = "processing"
	StatusCompleted  Status = "completed"
	StatusFailed     Status = "failed"
)

// Terminal reports whether no further transitions are allowed from s.
func (s Status) Terminal() bool {
	return s == StatusCompleted || s == StatusFailed
}

// Rank returns the position of s in the lifecycle ordering. Both terminal
// states share the highest rank.
func (s Status) Rank() int {
	switch s {
	case StatusPending:
		return 0
	case StatusProcessing:
		return 1
	case StatusCompleted, StatusFailed:
		return 2
	default:
		return -1
	}
}

// ResearchRecord is the unit of work and its outcome. It is created once,
// claimed by the coordinator, accumulates results, synthesis, and a
// credibility score, and ends in exactly one terminal state.
type ResearchRecord struct {
	ID               string         `json:"id"`
	Query            string         `json:"query"`
	Status           Status         `json:"status"`
	RequestedSources []string       `json:"requested_sources"`
	Results          []SourceResult `json:"results,omitempty"`
	Synthesis        string         `json:"synthesis,omitempty"`
	CredibilityScore *float64       `json:"credibility_score,omitempty"`
	Error            string         `json:"error,omitempty"`
	ParentID         string         `json:"parent_research_id,omitempty"`
	CreatedAt        time.Time      `json:"created_at"`
	CompletedAt      *time.Time     `json:"completed_at,omitempty"`
}

// ParentContext is the slice of a prior record carried into a follow-up run.
type ParentContext struct {
	Query     string
	Synthesis string
	Sources   []string
}

// ParentContext extracts the follow-up context from a completed record.
func (r *ResearchRecord) ParentContext() *ParentContext {
	return &ParentContext{
		Query:     r.Query,
		Synthesis: r.Synthesis,
		Sources:   r.RequestedSources,
	}
}

// SourceStatus classifies the outcome of querying one source.
type SourceStatus string

const (
	SourceSuccess SourceStatus = "success"
	SourceError   SourceStatus = "error"
	SourceTimeout SourceStatus = "timeout"
)

// SourceResult is the outcome of querying a single source. Data is present
// only on success; Error only on error or timeout. ResponseTime is the
// elapsed duration of the call in seconds.
type SourceResult struct {
	Source       string       `json:"source"`
	Status       SourceStatus `json:"status"`
	Data         *SourceData  `json:"data,omitempty"`
	Error        string       `json:"error,omitempty"`
	ResponseTime float64      `json:"response_time"`
}

// SourceDataKind tags the shape of a source payload.
type SourceDataKind int

const (
	// DataItems is a list of titled entries (search hits, papers, repos).
	DataItems SourceDataKind = iota
	// DataFields is a flat key-value map.
	DataFields
	// DataText is an opaque text blob.
	DataText
)

// SourceItem is one entry in an item-list payload.
type SourceItem struct {
	Title   string `json:"title,omitempty"`
	Snippet string `json:"snippet,omitempty"`
	URL     string `json:"url,omitempty"`
}

// SourceData is the payload returned by a source, normalized into a closed
// set of shapes so downstream rendering can switch exhaustively on Kind.
type SourceData struct {
	Kind   SourceDataKind
	Items  []SourceItem
	Fields map[string]string
	Text   string
}

// UnmarshalJSON sniffs the payload shape. Objects with a "results" array
// become DataItems, other objects become DataFields, bare arrays become
// DataItems, and anything else is kept verbatim as DataText.
func (d *SourceData) UnmarshalJSON(data []byte) error {
	var wrapper struct {
		Results []SourceItem `json:"results"`
	}
	if err := json.Unmarshal(data, &wrapper); err == nil && wrapper.Results != nil {
		d.Kind = DataItems
		d.Items = wrapper.Results
		return nil
	}

	var items []SourceItem
	if err := json.Unmarshal(data, &items); err == nil {
		d.Kind = DataItems
		d.Items = items
		return nil
	}

	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err == nil {
		d.Kind = DataFields
		d.Fields = make(map[string]string, len(raw))
		for k, v := range raw {
			var s string
			if err := json.Unmarshal(v, &s); err == nil {
				d.Fields[k] = s
			} else {
				d.Fields[k] = string(v)
			}
		}
		return nil
	}

	var text string
	if err := json.Unmarshal(data, &text); err == nil {
		d.Kind = DataText
		d.Text = text
		return nil
	}

	d.Kind = DataText
	d.Text = string(data)
	return nil
}

// MarshalJSON reproduces the shape the payload was decoded from.
func (d SourceData) MarshalJSON() ([]byte, error) {
	switch d.Kind {
	case DataItems:
		return json.Marshal(struct {
			Results []SourceItem `json:"results"`
			Count   int          `json:"count"`
		}{Results: d.Items, Count: len(d.Items)})
	case DataFields:
		return json.Marshal(d.Fields)
	case DataText:
		return json.Marshal(d.Text)
	default:
		return nil, fmt.Errorf("unknown source data kind %d", d.Kind)
	}
}

// Snapshot is one emission of the live feed: either a full record or a
// distinguished error shape that always terminates the sequence.
type Snapshot struct {
	Record *ResearchRecord
	Err    string
}

// MarshalJSON emits the full record, or {"error": ...} for sentinel events.
func (s Snapshot) MarshalJSON() ([]byte, error) {
	if s.Err != "" {
		sentinel := struct {
			Error  string `json:"error"`
			Status Status `json:"status,omitempty"`
		}{Error: s.Err}
		if s.Record != nil {
			sentinel.Status = s.Record.Status
		}
		return json.Marshal(sentinel)
	}
	return json.Marshal(s.Record)
}

// Terminal reports whether this snapshot ends the feed.
func (s Snapshot) Terminal() bool {
	return s.Err != "" || (s.Record != nil && s.Record.Status.Terminal())
}
