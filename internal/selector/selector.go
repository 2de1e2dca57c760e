// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package selector decides which sources a research run queries. The caller
// either supplies an explicit set or delegates the choice to the model; the
// AI-assisted path never errors and never returns an empty set.
package selector

import (
	"context"
	"fmt"
	"strings"
	"text/template"

	"go.uber.org/zap"

	"github.com/pdiddy/research-pilot/internal/registry"
	"github.com/pdiddy/research-pilot/pkg/types"
)

// Completer is the completion capability the AI-assisted strategy needs.
// *synthesis.Client satisfies it.
type Completer interface {
	Complete(ctx context.Context, system, user string, maxTokens int) (string, error)
}

// Selector resolves the source set for one research run.
type Selector struct {
	registry  *registry.Registry
	completer Completer
	cfg       types.SelectorConfig
	logger    *zap.Logger
}

// New builds a selector over the given catalog and completion capability.
func New(reg *registry.Registry, completer Completer, cfg types.SelectorConfig, logger *zap.Logger) *Selector {
	if cfg.MaxTokens <= 0 {
		cfg.MaxTokens = 100
	}
	return &Selector{registry: reg, completer: completer, cfg: cfg, logger: logger}
}

// selectionSystemTmpl builds the meta-decision prompt from the live catalog
// so newly configured sources are offered without a code change.
var selectionSystemTmpl = template.Must(template.New("selection").Parse(`You are a research planning assistant. Your job is to select the BEST data sources for answering a user's question.

Available sources:
{{- range .}}
- {{.ID}}: {{if .Description}}{{.Description}}{{else}}{{.Name}}{{end}}
{{- end}}

Instructions:
1. Analyze the user's question carefully
2. Select 2-4 sources that are MOST relevant (don't select all!)
3. Respond with ONLY a JSON array of source names, like: ["web-search", "arxiv"]
4. Be selective - fewer high-quality sources are better than many irrelevant ones

Examples:
- "Latest AI developments" -> ["web-search", "news"]
- "Quantum computing research papers" -> ["arxiv", "web-search"]
- "Best Python libraries for ML" -> ["github", "web-search"]
- "Climate change impact" -> ["arxiv", "web-search", "news"]
`))

// Select resolves the source set. A non-empty explicit list is validated
// against the catalog and wins; otherwise the AI-assisted strategy runs.
// The returned set is never empty.
func (s *Selector) Select(ctx context.Context, query string, explicit []string, parent *types.ParentContext) []string {
	if len(explicit) > 0 {
		if valid := s.registry.Filter(explicit); len(valid) > 0 {
			return valid
		}
		s.logger.Warn("explicit source list had no known sources, using defaults",
			zap.Strings("requested", explicit))
		return s.defaults()
	}
	return s.selectWithAI(ctx, query, parent)
}

// selectWithAI asks the model to pick sources and resolves every failure
// mode through the fallback ladder. Selection failures are never surfaced to
// the caller.
func (s *Selector) selectWithAI(ctx context.Context, query string, parent *types.ParentContext) []string {
	system, err := s.renderSystemPrompt()
	if err != nil {
		s.logger.Error("rendering selection prompt failed", zap.Error(err))
		return s.defaults()
	}

	user := fmt.Sprintf("Select the best sources for this question:\n\n%s", query)
	if parent != nil && parent.Query != "" {
		user += fmt.Sprintf("\n\nContext from previous question: %s", parent.Query)
	}

	response, err := s.completer.Complete(ctx, system, user, s.cfg.MaxTokens)
	if err != nil {
		// Call failure: fall back to the broader set to bias toward
		// recoverable coverage.
		s.logger.Warn("source selection call failed, using failure fallback", zap.Error(err))
		return s.failureDefaults()
	}

	selected, err := parseSelection(response)
	if err != nil {
		s.logger.Warn("could not parse source selection, using defaults",
			zap.String("response", response), zap.Error(err))
		return s.defaults()
	}

	// Filter treats an empty list as "all sources"; an empty selection must
	// fall back instead.
	var valid []string
	if len(selected) > 0 {
		valid = s.registry.Filter(selected)
	}
	if len(valid) == 0 {
		s.logger.Warn("model selected no known sources, using defaults",
			zap.Strings("selected", selected))
		return s.defaults()
	}

	s.logger.Info("model selected sources", zap.Strings("sources", valid))
	return valid
}

func (s *Selector) renderSystemPrompt() (string, error) {
	var b strings.Builder
	if err := selectionSystemTmpl.Execute(&b, s.registry.Catalog()); err != nil {
		return "", err
	}
	return b.String(), nil
}

func (s *Selector) defaults() []string {
	if len(s.cfg.DefaultSources) > 0 {
		return append([]string(nil), s.cfg.DefaultSources...)
	}
	return s.registry.IDs()
}

func (s *Selector) failureDefaults() []string {
	if len(s.cfg.FailureSources) > 0 {
		return append([]string(nil), s.cfg.FailureSources...)
	}
	return s.defaults()
}
