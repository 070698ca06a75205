// Package ai holds the model-facing capabilities: block classification and
// contract data extraction. Model output is untrusted input; everything that
// comes back goes through parse-and-validate before it reaches the store.
package ai

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"strings"
	"unicode/utf8"

	"iosplit/internal/classify"
	"iosplit/internal/contract"
	"iosplit/internal/fault"
	"iosplit/internal/llm"
)

// maxBlockTextLen caps block text sent to the model to save tokens.
const maxBlockTextLen = 500

const classifySystemPrompt = `You are a document analyst specializing in multi-show sponsorship contracts.

You will receive a list of text blocks extracted from a PDF contract. Each block
has an integer ID and its text content. The contract covers sponsorship terms for
MULTIPLE shows/programs.

Your task:
1. Identify every unique show/program name mentioned in the contract.
2. Classify each block into exactly ONE of the following categories:
   - A specific show name (if the block relates to that show only).
   - "GLOBAL" — if the block applies to ALL shows (e.g., general terms,
     signatures, party names, dates, governing law, universal clauses).
   - "GLOBAL_REDACT" — if the block contains aggregate or cross-show figures
     (e.g., combined totals across shows) that must never appear in a
     single-show document.
   - "UNCLASSIFIED" — if you cannot confidently determine which show
     the block belongs to.

Rules:
- Every block ID must appear in exactly one category.
- Show names should be normalized (consistent capitalization/spelling).
- Section headers that introduce a show-specific section belong to that show.
- Shared header/footer text, preamble, and signature blocks are GLOBAL.

You MUST respond with ONLY valid JSON (no markdown, no explanation) in this exact structure:
{
  "shows": ["Show Name A", "Show Name B"],
  "assignments": {
    "Show Name A": [1, 3, 5],
    "Show Name B": [2, 4, 6],
    "GLOBAL": [0, 7, 8],
    "GLOBAL_REDACT": [9],
    "UNCLASSIFIED": [10]
  }
}`

// Classifier classifies text blocks by show via the configured LLM.
type Classifier struct {
	provider  llm.Provider
	maxTokens int
}

// NewClassifier creates a classifier on top of an LLM provider.
func NewClassifier(provider llm.Provider, maxTokens int) *Classifier {
	if maxTokens <= 0 {
		maxTokens = 4096
	}
	return &Classifier{provider: provider, maxTokens: maxTokens}
}

// Classify sends the blocks to the model and reconciles its answer into a
// validated classification. An unparsable response degrades to an
// all-UNCLASSIFIED map with a warning; transport failures are returned.
func (c *Classifier) Classify(ctx context.Context, blocks []contract.TextBlock) (classify.Result, error) {
	if c.provider == nil {
		return classify.Result{}, fault.Unavailable(nil, "no LLM provider configured")
	}

	prompt := buildClassifyMessage(blocks)
	log.Printf("Classifying %d blocks (%d chars in prompt)", len(blocks), len(prompt))

	responseText, err := c.provider.Generate(ctx, classifySystemPrompt, prompt, c.maxTokens)
	if err != nil {
		return classify.Result{}, err
	}

	raw, err := decodeAssignments(responseText)
	if err != nil {
		log.Printf("Classifier response unparsable, defaulting all blocks to UNCLASSIFIED: %v", err)
		result := classify.Reconcile(blocks, nil)
		result.Warnings = append([]string{
			fmt.Sprintf("classifier returned an unparsable response (%v); all blocks defaulted to %s",
				err, contract.LabelUnclassified),
		}, result.Warnings...)
		return result, nil
	}

	return classify.Reconcile(blocks, raw), nil
}

// buildClassifyMessage formats extracted blocks into a numbered list.
func buildClassifyMessage(blocks []contract.TextBlock) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "The document contains %d text blocks:\n", len(blocks))
	for _, b := range blocks {
		fmt.Fprintf(&sb, "[Block %d] (Page %d): %q\n", b.ID, b.Page, truncate(b.Text, maxBlockTextLen))
	}
	return sb.String()
}

// truncate cuts s to at most n bytes on a rune boundary, appending an
// ellipsis when anything was dropped.
func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	for n > 0 && !utf8.RuneStart(s[n]) {
		n--
	}
	return s[:n] + "…"
}

// decodeAssignments parses the classifier's JSON answer, preserving the
// order of the assignment labels; last-seen-wins reconciliation depends on
// it. Non-integer ids and non-array values are dropped.
func decodeAssignments(text string) ([]classify.RawAssignment, error) {
	var envelope struct {
		Assignments json.RawMessage `json:"assignments"`
	}
	if err := json.Unmarshal([]byte(llm.StripFences(text)), &envelope); err != nil {
		return nil, fmt.Errorf("parsing classifier JSON: %w", err)
	}
	if len(envelope.Assignments) == 0 {
		return nil, fmt.Errorf("classifier JSON has no assignments object")
	}

	dec := json.NewDecoder(strings.NewReader(string(envelope.Assignments)))

	tok, err := dec.Token()
	if err != nil {
		return nil, fmt.Errorf("reading assignments: %w", err)
	}
	if delim, ok := tok.(json.Delim); !ok || delim != '{' {
		return nil, fmt.Errorf("assignments is not a JSON object")
	}

	var raw []classify.RawAssignment
	for dec.More() {
		keyTok, err := dec.Token()
		if err != nil {
			return nil, fmt.Errorf("reading assignment label: %w", err)
		}
		label, _ := keyTok.(string)

		var value json.RawMessage
		if err := dec.Decode(&value); err != nil {
			return nil, fmt.Errorf("assignment %q has an unreadable value: %w", label, err)
		}
		var ids []json.Number
		if err := json.Unmarshal(value, &ids); err != nil {
			log.Printf("Assignment %q is not a block id list, ignoring", label)
			continue
		}

		a := classify.RawAssignment{Label: label}
		for _, n := range ids {
			id, err := n.Int64()
			if err != nil {
				log.Printf("Assignment %q contains non-integer id %q, ignoring", label, n.String())
				continue
			}
			a.BlockIDs = append(a.BlockIDs, int(id))
		}
		raw = append(raw, a)
	}

	return raw, nil
}
