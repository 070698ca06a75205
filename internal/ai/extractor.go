package ai

import (
	"context"
	"fmt"
	"log"
	"sort"
	"strings"

	"iosplit/internal/contract"
	"iosplit/internal/fault"
	"iosplit/internal/llm"
)

const extractSystemPrompt = `You are a contract data analyst specializing in multi-show sponsorship agreements.

You will receive the text of a sponsorship contract organized by section, along with
the list of show names that appear in the contract. For EACH show, extract the
following fields. Use both show-specific sections and any shared/global sections.

Fields per show:
1. show_name — the show/program name (use the exact name provided)
2. agency — the booking agency, if any
3. advertiser — the sponsoring company or brand
4. type — the insertion type (e.g. "podcast", "newsletter"). If podcast and
   newsletter insertions are billed together as ONE combined line item, use
   exactly "podcast and newsletter". If they are billed separately, return two
   separate show records instead.
5. insertion_dates — array of individual insertion dates, in contract order.
   Empty array if the contract has no date-level schedule.
6. amounts — array of per-insertion net amounts aligned with insertion_dates.
   If the contract only states one total for the show, return that single
   figure alone; NEVER divide a total into per-date amounts yourself.
7. payment_terms — e.g. "Net 30", "Net 60", "Due on receipt"
8. draft_required — "Yes", "No", or "Unknown" (creative/draft approval required)
9. pixel_required — "Yes", "No", or "Unknown" (tracking pixel setup required)
10. impressions — guaranteed impressions, if stated
11. notes — anything unusual worth a human's attention

Rules:
- If a field is not mentioned, use "Not specified" (or an empty array).
- Be precise with dollar amounts; include the currency symbol.
- Dates in a readable format (e.g. "Jan 5, 2026").
- Never answer "Yes" or "No" for the flag fields unless the contract says so.

You MUST respond with ONLY valid JSON (no markdown, no explanation):
{
  "shows": [
    {
      "show_name": "...",
      "agency": "...",
      "advertiser": "...",
      "type": "...",
      "insertion_dates": ["..."],
      "amounts": ["..."],
      "payment_terms": "...",
      "draft_required": "...",
      "pixel_required": "...",
      "impressions": "...",
      "notes": "..."
    }
  ]
}`

const notSpecified = "Not specified"

// Extractor extracts structured sponsorship data per show via the LLM.
type Extractor struct {
	provider  llm.Provider
	maxTokens int
}

// NewExtractor creates an extractor on top of an LLM provider.
func NewExtractor(provider llm.Provider, maxTokens int) *Extractor {
	if maxTokens <= 0 {
		maxTokens = 4096
	}
	return &Extractor{provider: provider, maxTokens: maxTokens}
}

// Extract returns one ShowData per show. Unlike classification there is no
// useful degraded mode: an unparsable answer is a data-quality failure.
func (e *Extractor) Extract(ctx context.Context, blocks []contract.TextBlock, categories contract.CategoryMap, shows []string) ([]contract.ShowData, error) {
	if e.provider == nil {
		return nil, fault.Unavailable(nil, "no LLM provider configured")
	}

	prompt := buildExtractMessage(blocks, categories, shows)
	log.Printf("Extracting contract data for %d shows (%d chars in prompt)", len(shows), len(prompt))

	responseText, err := e.provider.Generate(ctx, extractSystemPrompt, prompt, e.maxTokens)
	if err != nil {
		return nil, err
	}

	parsed := llm.ParseJSONResponse(responseText)
	if parsed == nil {
		return nil, fault.DataQuality("extraction response is not valid JSON")
	}

	rawShows, ok := parsed["shows"].([]any)
	if !ok {
		return nil, fault.DataQuality("extraction response has no shows list")
	}

	var result []contract.ShowData
	for _, item := range rawShows {
		obj, ok := item.(map[string]any)
		if !ok {
			continue
		}
		result = append(result, parseShowData(obj))
	}

	log.Printf("Extracted data for %d shows", len(result))
	return result, nil
}

// buildExtractMessage assembles the contract text by section: shared blocks
// first, then each show's blocks, so the model sees the full relevant
// context for every show.
func buildExtractMessage(blocks []contract.TextBlock, categories contract.CategoryMap, shows []string) string {
	byShow := make(map[string][]contract.TextBlock)
	var global []contract.TextBlock
	for _, b := range blocks {
		switch c := categories[b.ID]; c.Kind {
		case contract.Global:
			global = append(global, b)
		case contract.ShowSpecific:
			byShow[c.Show] = append(byShow[c.Show], b)
		}
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "Shows found in this contract: %s\n\n", strings.Join(shows, ", "))
	sb.WriteString("--- FULL CONTRACT TEXT (organized by section) ---\n\n")

	if len(global) > 0 {
		sb.WriteString("== SHARED / GLOBAL SECTIONS ==\n")
		writeBlocks(&sb, global)
		sb.WriteByte('\n')
	}

	for _, show := range shows {
		sblocks := byShow[show]
		if len(sblocks) == 0 {
			continue
		}
		fmt.Fprintf(&sb, "== SHOW: %s ==\n", show)
		writeBlocks(&sb, sblocks)
		sb.WriteByte('\n')
	}

	return sb.String()
}

func writeBlocks(sb *strings.Builder, blocks []contract.TextBlock) {
	sort.SliceStable(blocks, func(i, j int) bool { return blocks[i].ID < blocks[j].ID })
	for _, b := range blocks {
		fmt.Fprintf(sb, "(Page %d) %s\n", b.Page, b.Text)
	}
}

// parseShowData converts one untrusted JSON record into a ShowData,
// applying field defaults. Flags that the model did not answer clearly stay
// Unknown; Unknown is never collapsed to No.
func parseShowData(obj map[string]any) contract.ShowData {
	return contract.ShowData{
		Show:           getStr(obj, "show_name", notSpecified),
		Agency:         getStr(obj, "agency", notSpecified),
		Advertiser:     getStr(obj, "advertiser", notSpecified),
		Type:           getStr(obj, "type", notSpecified),
		InsertionDates: getStrList(obj, "insertion_dates"),
		Amounts:        getStrList(obj, "amounts"),
		PaymentTerms:   getStr(obj, "payment_terms", notSpecified),
		DraftRequired:  contract.ParseFlag(getStr(obj, "draft_required", "")),
		PixelRequired:  contract.ParseFlag(getStr(obj, "pixel_required", "")),
		Impressions:    getStr(obj, "impressions", notSpecified),
		Notes:          getStr(obj, "notes", ""),
	}
}

func getStr(m map[string]any, key, fallback string) string {
	if v, ok := m[key]; ok {
		if s, ok := v.(string); ok && strings.TrimSpace(s) != "" {
			return strings.TrimSpace(s)
		}
	}
	return fallback
}

func getStrList(m map[string]any, key string) []string {
	v, ok := m[key]
	if !ok {
		return nil
	}
	arr, ok := v.([]any)
	if !ok {
		return nil
	}
	var out []string
	for _, item := range arr {
		if s, ok := item.(string); ok && strings.TrimSpace(s) != "" {
			out = append(out, strings.TrimSpace(s))
		}
	}
	return out
}
