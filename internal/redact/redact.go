// Package redact computes the keep/redact partition for a selected show.
package redact

import (
	"sort"

	"iosplit/internal/contract"
	"iosplit/internal/fault"
)

// Plan returns the ordered regions to black out when keeping selectedShow.
//
// A block is kept only if its category is the selected show or Global.
// GlobalRedact and Unclassified are redacted no matter which show is
// selected; cross-show confidentiality wins over completeness.
//
// Plan is pure: the same inputs always yield the same region list, ordered
// by page then block id, so redacted output is reproducible.
func Plan(blocks []contract.TextBlock, categories contract.CategoryMap, shows []string, selectedShow string) ([]contract.Region, error) {
	if !containsShow(shows, selectedShow) {
		return nil, fault.Precondition("show %q not found in classification; available: %v", selectedShow, shows)
	}

	var regions []contract.Region
	for _, b := range blocks {
		if keep(categories[b.ID], selectedShow) {
			continue
		}
		regions = append(regions, contract.Region{Page: b.Page, BBox: b.BBox, BlockID: b.ID})
	}

	sort.SliceStable(regions, func(i, j int) bool {
		if regions[i].Page != regions[j].Page {
			return regions[i].Page < regions[j].Page
		}
		return regions[i].BlockID < regions[j].BlockID
	})
	return regions, nil
}

// keep reports whether a block with the given category survives redaction
// for the selected show.
func keep(c contract.Category, selectedShow string) bool {
	switch c.Kind {
	case contract.Global:
		return true
	case contract.ShowSpecific:
		return c.Show == selectedShow
	default:
		// GlobalRedact, Unclassified, and anything unmapped.
		return false
	}
}

func containsShow(shows []string, name string) bool {
	for _, s := range shows {
		if s == name {
			return true
		}
	}
	return false
}
