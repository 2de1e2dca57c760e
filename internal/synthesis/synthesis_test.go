// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package synthesis

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/pdiddy/research-pilot/pkg/types"
)

func successResult(source string, data *types.SourceData) types.SourceResult {
	return types.SourceResult{Source: source, Status: types.SourceSuccess, Data: data}
}

func newTestClient(url string) *Client {
	return NewClient(types.SynthesisConfig{
		APIURL:    url,
		Model:     "test-model",
		Timeout:   5 * time.Second,
		MaxTokens: 2000,
	}, nil, zap.NewNop())
}

// --- effort heuristic ---

func TestReasoningEffort(t *testing.T) {
	tests := []struct {
		name  string
		query string
		want  Effort
	}{
		{"analytical keyword", "Compare the performance of PostgreSQL and SQLite", EffortHigh},
		{"evaluate keyword", "Evaluate the security model of WebAssembly", EffortHigh},
		{"lookup keyword", "What is a bloom filter", EffortLow},
		{"definition", "Give me the definition of CRDT", EffortLow},
		{"short query", "Rust async runtimes", EffortLow},
		{"medium query", "Recent approaches to vector search in production retrieval systems today", EffortMedium},
		{
			"long query",
			strings.Repeat("detail ", 45),
			EffortHigh,
		},
		{"analytical beats lookup", "What is better, compare redis and memcached", EffortHigh},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ReasoningEffort(tt.query); got != tt.want {
				t.Errorf("ReasoningEffort(%q) = %s, want %s", tt.query, got, tt.want)
			}
		})
	}
}

// --- context rendering ---

func TestBuildContextItems(t *testing.T) {
	results := []types.SourceResult{
		successResult("web-search", &types.SourceData{
			Kind: types.DataItems,
			Items: []types.SourceItem{
				{Title: "Paper A", Snippet: "about things", URL: "http://a"},
			},
		}),
	}

	got := buildContext(results)
	for _, want := range []string{"## Web Search", "**1. Paper A**", "about things", "Source: http://a"} {
		if !strings.Contains(got, want) {
			t.Errorf("context missing %q:\n%s", want, got)
		}
	}
}

func TestBuildContextFieldsAndText(t *testing.T) {
	results := []types.SourceResult{
		successResult("database", &types.SourceData{
			Kind:   types.DataFields,
			Fields: map[string]string{"cached_answer": "42", "count": "3"},
		}),
		successResult("filesystem", &types.SourceData{
			Kind: types.DataText,
			Text: "raw notes",
		}),
	}

	got := buildContext(results)
	if !strings.Contains(got, "**Cached Answer**: 42") {
		t.Errorf("fields not rendered:\n%s", got)
	}
	if strings.Contains(got, "count") {
		t.Errorf("bookkeeping key should be skipped:\n%s", got)
	}
	if !strings.Contains(got, "raw notes") {
		t.Errorf("text payload not rendered:\n%s", got)
	}
}

func TestBuildContextSkipsFailures(t *testing.T) {
	results := []types.SourceResult{
		{Source: "arxiv", Status: types.SourceTimeout, Error: "request timeout"},
		{Source: "news", Status: types.SourceError, Error: "HTTP 500"},
	}

	got := buildContext(results)
	if got != "No data available from sources." {
		t.Errorf("context = %q, want placeholder for all-failed results", got)
	}
}

// --- prompts ---

func TestBuildPromptFollowup(t *testing.T) {
	parent := &types.ParentContext{
		Query:     "What is Raft?",
		Synthesis: strings.Repeat("x", 2000),
	}

	got, err := buildPrompt("How does it compare to Paxos?", "ctx", parent)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(got, "FOLLOW-UP") {
		t.Error("follow-up prompt should use follow-up framing")
	}
	if !strings.Contains(got, "What is Raft?") {
		t.Error("follow-up prompt should carry the parent query")
	}
	if strings.Count(got, "x") > 1100 {
		t.Error("parent synthesis should be truncated")
	}
}

func TestBuildPromptInitial(t *testing.T) {
	got, err := buildPrompt("What is Raft?", "ctx", nil)
	if err != nil {
		t.Fatal(err)
	}
	if strings.Contains(got, "FOLLOW-UP") {
		t.Error("initial prompt should not use follow-up framing")
	}
	if !strings.Contains(got, "Sources") {
		t.Error("prompt should instruct source attribution")
	}
}

// --- batch mode ---

func TestSynthesizeBatch(t *testing.T) {
	var gotReq chatRequest
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewDecoder(r.Body).Decode(&gotReq)
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `{"choices": [{"message": {"content": "the answer"}}]}`)
	}))
	defer ts.Close()

	c := newTestClient(ts.URL)
	results := []types.SourceResult{
		successResult("web-search", &types.SourceData{Kind: types.DataText, Text: "stuff"}),
	}

	got, err := c.Synthesize(context.Background(), "compare a and b", results, nil, Options{})
	if err != nil {
		t.Fatal(err)
	}
	if got != "the answer" {
		t.Errorf("synthesis = %q, want %q", got, "the answer")
	}
	if gotReq.Stream {
		t.Error("batch mode should not request streaming")
	}
	if gotReq.ReasoningEffort != "high" {
		t.Errorf("reasoning effort = %q, want high", gotReq.ReasoningEffort)
	}
}

func TestSynthesizeErrorPropagates(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "overloaded", http.StatusServiceUnavailable)
	}))
	defer ts.Close()

	c := newTestClient(ts.URL)
	_, err := c.Synthesize(context.Background(), "anything here", nil, nil, Options{})
	if err == nil {
		t.Fatal("expected error from non-success status")
	}
	if !strings.Contains(err.Error(), "503") {
		t.Errorf("error = %v, want status mention", err)
	}
}

// --- stream mode ---

func TestSynthesizeStream(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/event-stream")
		frames := []string{
			`{"choices":[{"delta":{"reasoning":"thinking hard"}}]}`,
			`{"choices":[{"delta":{"content":"Hello"}}]}`,
			`{"choices":[{"delta":{"content":" world"}}]}`,
		}
		for _, f := range frames {
			fmt.Fprintf(w, "data: %s\n\n", f)
		}
		fmt.Fprint(w, "data: [DONE]\n\n")
	}))
	defer ts.Close()

	c := newTestClient(ts.URL)

	var chunks []string
	got, err := c.Synthesize(context.Background(), "short query", nil, nil, Options{
		Stream:  true,
		OnChunk: func(s string) error { chunks = append(chunks, s); return nil },
	})
	if err != nil {
		t.Fatal(err)
	}
	if got != "Hello world" {
		t.Errorf("full text = %q, want %q", got, "Hello world")
	}
	if len(chunks) != 2 {
		t.Errorf("chunks = %v, want 2 content deltas (reasoning discarded)", chunks)
	}
}

func TestSynthesizeSchemaDisablesStreaming(t *testing.T) {
	var gotReq chatRequest
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewDecoder(r.Body).Decode(&gotReq)
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `{"choices": [{"message": {"content": "{\"answer\": \"x\"}"}}]}`)
	}))
	defer ts.Close()

	c := newTestClient(ts.URL)

	var deliveries int
	got, err := c.Synthesize(context.Background(), "short query", nil, nil, Options{
		Stream:  true,
		Schema:  json.RawMessage(`{"type": "object"}`),
		OnChunk: func(string) error { deliveries++; return nil },
	})
	if err != nil {
		t.Fatal(err)
	}
	if gotReq.Stream {
		t.Error("structured output must not stream")
	}
	if gotReq.ResponseFormat == nil || gotReq.ResponseFormat.Type != "json_schema" {
		t.Error("response_format not set for structured output")
	}
	if deliveries != 1 {
		t.Errorf("deliveries = %d, want a single full-body delivery", deliveries)
	}
	if got == "" {
		t.Error("structured response should be returned")
	}
}
