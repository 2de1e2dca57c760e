// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package synthesis

import (
	"fmt"
	"sort"
	"strings"

	"github.com/pdiddy/research-pilot/pkg/types"
)

const (
	maxItemsPerSource = 10
	snippetLimit      = 200
	fieldLimit        = 300
	textLimit         = 500
)

// buildContext renders the successful source results into the labeled text
// block handed to the model. Failed and timed-out results contribute
// nothing. The switch over payload kinds is exhaustive.
func buildContext(results []types.SourceResult) string {
	var b strings.Builder

	for _, r := range results {
		if r.Status != types.SourceSuccess || r.Data == nil {
			continue
		}

		fmt.Fprintf(&b, "\n## %s\n", sourceHeading(r.Source))

		switch r.Data.Kind {
		case types.DataItems:
			renderItems(&b, r.Data.Items)
		case types.DataFields:
			renderFields(&b, r.Data.Fields)
		case types.DataText:
			fmt.Fprintf(&b, "%s\n", truncate(r.Data.Text, textLimit))
		}
		b.WriteString("\n")
	}

	if b.Len() == 0 {
		return "No data available from sources."
	}
	return b.String()
}

// renderItems writes up to maxItemsPerSource entries as numbered
// title/snippet/url blocks.
func renderItems(b *strings.Builder, items []types.SourceItem) {
	for i, item := range items {
		if i >= maxItemsPerSource {
			break
		}
		title := item.Title
		if title == "" {
			title = fmt.Sprintf("Result %d", i+1)
		}
		fmt.Fprintf(b, "\n**%d. %s**\n", i+1, title)
		if item.Snippet != "" {
			fmt.Fprintf(b, "%s\n", truncate(item.Snippet, snippetLimit))
		}
		if item.URL != "" {
			fmt.Fprintf(b, "Source: %s\n", item.URL)
		}
	}
}

// renderFields writes a key-value payload as bold-labeled lines, skipping
// bookkeeping keys.
func renderFields(b *strings.Builder, fields map[string]string) {
	for _, key := range sortedKeys(fields) {
		if key == "count" || key == "source" {
			continue
		}
		fmt.Fprintf(b, "**%s**: %s\n", titleize(key), truncate(fields[key], fieldLimit))
	}
}

// sourceHeading turns a source id like "web-search" into "Web Search".
func sourceHeading(id string) string {
	return titleize(strings.ReplaceAll(id, "-", " "))
}

// titleize uppercases the first letter of each word, with underscores
// treated as spaces.
func titleize(s string) string {
	words := strings.Fields(strings.ReplaceAll(s, "_", " "))
	for i, w := range words {
		words[i] = strings.ToUpper(w[:1]) + w[1:]
	}
	return strings.Join(words, " ")
}

// sortedKeys returns the map keys in stable order so rendering is
// deterministic.
func sortedKeys(m map[string]string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
