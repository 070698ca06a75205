// Package classify reconciles a raw classifier assignment into a validated
// per-block category map. The raw result comes from a non-deterministic
// external model and is treated as untrusted: every rule here exists because
// the classifier has violated its contract in the field.
package classify

import (
	"fmt"
	"strings"

	"iosplit/internal/contract"
)

// RawAssignment is one label entry of the raw classification result, in the
// order the classifier produced it. Labels are either one of the reserved
// category labels or a show name.
type RawAssignment struct {
	Label    string
	BlockIDs []int
}

// Result is a validated classification for one document.
type Result struct {
	Categories contract.CategoryMap
	// Shows lists the discovered show names in raw-result order, deduplicated.
	Shows []string
	// Warnings records data-quality conditions that were recovered by the
	// documented defaults (duplicate assignments, unknown block ids, omitted
	// blocks). They are reported, not fatal.
	Warnings []string
}

// Reconcile validates raw against the document's blocks and produces a
// complete category map: every block ends up with exactly one category.
//
// Defaulting rules:
//   - blocks the raw result omits become Unclassified
//   - a block assigned to two labels keeps the last-seen assignment
//   - block ids outside the document are discarded
//
// Re-classification calls Reconcile again from scratch; results are never
// merged.
func Reconcile(blocks []contract.TextBlock, raw []RawAssignment) Result {
	known := make(map[int]bool, len(blocks))
	for _, b := range blocks {
		known[b.ID] = true
	}

	r := Result{Categories: make(contract.CategoryMap, len(blocks))}

	var unknownIDs []int
	var dupOrder []int
	dupLabels := make(map[int][]string)
	seenShow := make(map[string]bool)

	for _, a := range raw {
		cat, show, ok := categoryForLabel(a.Label)
		if !ok {
			continue // blank label after trimming
		}
		if show != "" && !seenShow[show] {
			seenShow[show] = true
			r.Shows = append(r.Shows, show)
		}
		for _, id := range a.BlockIDs {
			if !known[id] {
				unknownIDs = append(unknownIDs, id)
				continue
			}
			if prev, dup := r.Categories[id]; dup && prev != cat {
				if _, seen := dupLabels[id]; !seen {
					dupOrder = append(dupOrder, id)
				}
				dupLabels[id] = append(dupLabels[id], prev.Label())
			}
			// Last-seen assignment wins.
			r.Categories[id] = cat
		}
	}

	var omitted []int
	for _, b := range blocks {
		if _, ok := r.Categories[b.ID]; !ok {
			r.Categories[b.ID] = contract.Category{Kind: contract.Unclassified}
			omitted = append(omitted, b.ID)
		}
	}

	if len(unknownIDs) > 0 {
		r.Warnings = append(r.Warnings, fmt.Sprintf(
			"classifier returned %d unknown block id(s), discarded: %v", len(unknownIDs), unknownIDs))
	}
	for _, id := range dupOrder {
		r.Warnings = append(r.Warnings, fmt.Sprintf(
			"block %d assigned to multiple categories (%s), kept last assignment %s",
			id, strings.Join(dupLabels[id], ", "), r.Categories[id].Label()))
	}
	if len(omitted) > 0 {
		r.Warnings = append(r.Warnings, fmt.Sprintf(
			"classifier omitted %d block(s), defaulted to %s: %v",
			len(omitted), contract.LabelUnclassified, omitted))
	}

	return r
}

// categoryForLabel maps a raw label to a category. Labels that are not one of
// the reserved names are show names; surrounding whitespace is stripped and
// names compare case-sensitively as opaque strings.
func categoryForLabel(label string) (contract.Category, string, bool) {
	label = strings.TrimSpace(label)
	switch label {
	case "":
		return contract.Category{}, "", false
	case contract.LabelGlobal:
		return contract.Category{Kind: contract.Global}, "", true
	case contract.LabelGlobalRedact:
		return contract.Category{Kind: contract.GlobalRedact}, "", true
	case contract.LabelUnclassified:
		return contract.Category{Kind: contract.Unclassified}, "", true
	default:
		return contract.ShowCategory(label), label, true
	}
}
