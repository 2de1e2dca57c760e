// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package synthesis

import (
	"bytes"
	"text/template"

	"github.com/pdiddy/research-pilot/pkg/types"
)

// systemPrompt frames every synthesis call. Kept short: the per-call prompt
// carries the formatting instructions.
const systemPrompt = "You are a helpful AI research assistant. Answer questions directly and conversationally. Focus on what the user asked for. Use clear formatting with headers, bullet points, and numbered lists. Be comprehensive but concise. Always cite sources."

// parentSynthesisLimit bounds how much of a prior answer is carried into a
// follow-up prompt.
const parentSynthesisLimit = 1000

// initialPromptTmpl is the prompt for a fresh question.
var initialPromptTmpl = template.Must(template.New("initial").Parse(`User Question: {{.Query}}

Information from multiple sources:

{{.Context}}

Instructions:
1. Answer the user's question DIRECTLY - if they ask for a ranking, give a ranked list
2. Use a conversational, easy-to-read style
3. Format with markdown: ## for main sections, numbered or bulleted lists, **bold** for key terms
4. Keep it comprehensive but scannable - use short paragraphs
5. End with a brief "Sources" section listing what each source contributed
6. Be specific with names, numbers, and facts - avoid vague generalizations
`))

// followupPromptTmpl is the prompt for a follow-up question. It carries the
// prior turn's question and (truncated) answer and instructs the model to
// relate the new answer back to it.
var followupPromptTmpl = template.Must(template.New("followup").Parse(`This is a FOLLOW-UP question in an ongoing research conversation.

PREVIOUS RESEARCH CONTEXT:
Previous Question: {{.ParentQuery}}

Previous Answer (Summary):
{{.ParentSynthesis}}

CURRENT FOLLOW-UP QUESTION: {{.Query}}

NEW Information from multiple sources:

{{.Context}}

Instructions:
1. Use the PREVIOUS RESEARCH CONTEXT above to understand what this builds on
2. Answer the follow-up question DIRECTLY, referencing the previous context when relevant
3. Phrases like "compare", "what about", or "how do they differ" refer to things in the previous answer
4. Format with markdown: ## for main sections, numbered or bulleted lists, **bold** for key terms
5. End with a brief "Sources" section listing what each source contributed
6. Be specific with names, numbers, and facts - avoid vague generalizations
`))

// buildPrompt renders the synthesis prompt. A parent context switches to the
// follow-up framing; both variants instruct the model to attribute which
// source contributed which information.
func buildPrompt(query, context string, parent *types.ParentContext) (string, error) {
	if parent != nil && parent.Synthesis != "" {
		data := struct {
			Query           string
			Context         string
			ParentQuery     string
			ParentSynthesis string
		}{
			Query:           query,
			Context:         context,
			ParentQuery:     parent.Query,
			ParentSynthesis: truncate(parent.Synthesis, parentSynthesisLimit),
		}
		var buf bytes.Buffer
		if err := followupPromptTmpl.Execute(&buf, data); err != nil {
			return "", err
		}
		return buf.String(), nil
	}

	var buf bytes.Buffer
	err := initialPromptTmpl.Execute(&buf, struct{ Query, Context string }{Query: query, Context: context})
	if err != nil {
		return "", err
	}
	return buf.String(), nil
}

func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max]
}
