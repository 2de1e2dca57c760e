// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package synthesis turns fan-out results into a single natural-language
// answer via a chat-completions API. Failures here are deliberately not
// caught: the coordinator owns translating them into a terminal failure.
package synthesis

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"go.uber.org/zap"

	"github.com/pdiddy/research-pilot/internal/httputil"
	"github.com/pdiddy/research-pilot/pkg/types"
)

// Client calls the chat-completions API.
type Client struct {
	cfg    types.SynthesisConfig
	client *http.Client
	logger *zap.Logger
}

// NewClient builds a synthesis client. httpClient may be nil.
func NewClient(cfg types.SynthesisConfig, httpClient *http.Client, logger *zap.Logger) *Client {
	if httpClient == nil {
		httpClient = &http.Client{}
	}
	if cfg.MaxTokens <= 0 {
		cfg.MaxTokens = 2000
	}
	if cfg.Temperature == 0 {
		cfg.Temperature = 0.7
	}
	return &Client{cfg: cfg, client: httpClient, logger: logger}
}

// Options control the delivery mode of a synthesis call.
type Options struct {
	// Stream requests incremental delivery of content deltas via OnChunk.
	Stream bool

	// OnChunk receives each content delta in stream mode. A non-nil error
	// aborts the stream.
	OnChunk func(chunk string) error

	// Schema constrains the response to a fixed JSON schema. Structured
	// output is incompatible with streaming: when both are set the full
	// response is collected in one shot and OnChunk (if any) sees it as a
	// single delivery.
	Schema json.RawMessage
}

// Synthesize renders the successful source results plus optional parent
// context into a prompt and asks the model for one coherent answer. Any
// non-success status or timeout is returned as an error for the coordinator
// to handle.
func (c *Client) Synthesize(ctx context.Context, query string, results []types.SourceResult, parent *types.ParentContext, opts Options) (string, error) {
	prompt, err := buildPrompt(query, buildContext(results), parent)
	if err != nil {
		return "", fmt.Errorf("rendering synthesis prompt: %w", err)
	}

	effort := ReasoningEffort(query)
	c.logger.Debug("synthesis call",
		zap.String("effort", string(effort)),
		zap.Bool("stream", opts.Stream),
		zap.Bool("structured", opts.Schema != nil))

	req := c.newRequest(systemPrompt, prompt, c.cfg.MaxTokens, effort)

	// Schema validation needs the full body; streaming is disabled for
	// structured output regardless of what was asked for.
	if opts.Stream && opts.Schema == nil {
		return c.streamCompletion(ctx, req, opts.OnChunk)
	}

	req.ResponseFormat = schemaFormat(opts.Schema)
	text, err := c.complete(ctx, req)
	if err != nil {
		return "", err
	}
	if opts.OnChunk != nil {
		if err := opts.OnChunk(text); err != nil {
			return "", err
		}
	}
	return text, nil
}

// Complete performs a plain completion with a custom system prompt and
// output budget. Used by the source selector for its meta-decision.
func (c *Client) Complete(ctx context.Context, system, user string, maxTokens int) (string, error) {
	req := c.newRequest(system, user, maxTokens, "")
	return c.complete(ctx, req)
}

// Chat-completions wire structures.
type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type responseFormat struct {
	Type       string          `json:"type"`
	JSONSchema json.RawMessage `json:"json_schema,omitempty"`
}

type chatRequest struct {
	Model           string          `json:"model"`
	Messages        []chatMessage   `json:"messages"`
	Stream          bool            `json:"stream"`
	Temperature     float64         `json:"temperature"`
	MaxTokens       int             `json:"max_tokens"`
	ReasoningEffort string          `json:"reasoning_effort,omitempty"`
	ResponseFormat  *responseFormat `json:"response_format,omitempty"`
}

type chatResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
}

// streamChunk is one SSE data frame of a chunked response. The reasoning
// field is a side channel some models emit; it is not answer content.
type streamChunk struct {
	Choices []struct {
		Delta struct {
			Content   string `json:"content"`
			Reasoning string `json:"reasoning"`
		} `json:"delta"`
	} `json:"choices"`
}

func (c *Client) newRequest(system, user string, maxTokens int, effort Effort) chatRequest {
	if maxTokens <= 0 {
		maxTokens = c.cfg.MaxTokens
	}
	return chatRequest{
		Model: c.cfg.Model,
		Messages: []chatMessage{
			{Role: "system", Content: system},
			{Role: "user", Content: user},
		},
		Temperature:     c.cfg.Temperature,
		MaxTokens:       maxTokens,
		ReasoningEffort: string(effort),
	}
}

func schemaFormat(schema json.RawMessage) *responseFormat {
	if schema == nil {
		return nil
	}
	return &responseFormat{Type: "json_schema", JSONSchema: schema}
}

// withTimeout derives the per-call context from the configured synthesis
// timeout.
func (c *Client) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if c.cfg.Timeout > 0 {
		return context.WithTimeout(ctx, c.cfg.Timeout)
	}
	return context.WithCancel(ctx)
}

// complete performs a single-shot call and returns the full response body's
// content.
func (c *Client) complete(ctx context.Context, req chatRequest) (string, error) {
	ctx, cancel := c.withTimeout(ctx)
	defer cancel()

	req.Stream = false
	resp, err := c.do(ctx, req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	var cr chatResponse
	if err := json.NewDecoder(resp.Body).Decode(&cr); err != nil {
		return "", fmt.Errorf("decoding synthesis response: %w", err)
	}
	if len(cr.Choices) == 0 {
		return "", fmt.Errorf("synthesis API returned no choices")
	}
	return cr.Choices[0].Message.Content, nil
}

// streamCompletion consumes a chunked response, forwarding content deltas
// to onChunk and discarding reasoning deltas. It returns the concatenated
// content.
func (c *Client) streamCompletion(ctx context.Context, req chatRequest, onChunk func(string) error) (string, error) {
	ctx, cancel := c.withTimeout(ctx)
	defer cancel()

	req.Stream = true
	resp, err := c.do(ctx, req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	var full strings.Builder
	scanner := bufio.NewScanner(resp.Body)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if !strings.HasPrefix(line, "data: ") {
			continue
		}
		data := strings.TrimPrefix(line, "data: ")
		if data == "[DONE]" {
			break
		}

		var chunk streamChunk
		if err := json.Unmarshal([]byte(data), &chunk); err != nil {
			// Partial frames happen; skip rather than abort.
			continue
		}
		if len(chunk.Choices) == 0 {
			continue
		}
		content := chunk.Choices[0].Delta.Content
		if content == "" {
			continue
		}
		full.WriteString(content)
		if onChunk != nil {
			if err := onChunk(content); err != nil {
				return "", err
			}
		}
	}
	if err := scanner.Err(); err != nil {
		return "", fmt.Errorf("reading synthesis stream: %w", err)
	}
	return full.String(), nil
}

// do issues the HTTP call with the shared 429 retry policy. A non-success
// status is an error; the caller never sees the response in that case.
func (c *Client) do(ctx context.Context, req chatRequest) (*http.Response, error) {
	body, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("marshaling synthesis request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.APIURL, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("creating synthesis request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	if c.cfg.APIKey != "" {
		httpReq.Header.Set("Authorization", "Bearer "+c.cfg.APIKey)
	}

	resp, err := httputil.DoWithRetry(ctx, c.client, httpReq, 0)
	if err != nil {
		return nil, fmt.Errorf("synthesis API request: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		resp.Body.Close()
		return nil, fmt.Errorf("synthesis API returned %d: %s", resp.StatusCode, string(snippet))
	}
	return resp, nil
}
