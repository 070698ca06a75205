// Package expand flattens per-show contract data into one export row per
// insertion date.
package expand

import (
	"sort"
	"time"

	"github.com/araddon/dateparse"

	"iosplit/internal/contract"
)

// Rows expands every show's data into export rows.
//
// Output ordering: shows appear in showOrder (classification discovery
// order; shows missing from showOrder sort after it, in data order), and
// within a show rows are ordered by ascending insertion date with undated
// rows last. Shows present in data but absent from the classification are
// still expanded; the extractor owns that mismatch, not the expander.
func Rows(data []contract.ShowData, showOrder []string) []contract.ExportRow {
	rank := make(map[string]int, len(showOrder))
	for i, s := range showOrder {
		rank[s] = i
	}

	ordered := make([]contract.ShowData, len(data))
	copy(ordered, data)
	sort.SliceStable(ordered, func(i, j int) bool {
		ri, iOK := rank[ordered[i].Show]
		rj, jOK := rank[ordered[j].Show]
		switch {
		case iOK && jOK:
			return ri < rj
		case iOK:
			return true
		default:
			return false
		}
	})

	var rows []contract.ExportRow
	for _, sd := range ordered {
		rows = append(rows, expandShow(sd)...)
	}
	return rows
}

// expandShow emits one row per insertion date. A show without date-level
// billing still produces exactly one summary row with the date left unset.
func expandShow(sd contract.ShowData) []contract.ExportRow {
	base := contract.ExportRow{
		Show:          sd.Show,
		Agency:        sd.Agency,
		Advertiser:    sd.Advertiser,
		Type:          sd.Type,
		DraftRequired: sd.DraftRequired,
		Impressions:   sd.Impressions,
		PaymentTerms:  sd.PaymentTerms,
		PixelRequired: sd.PixelRequired,
		Notes:         sd.Notes,
	}

	if len(sd.InsertionDates) == 0 {
		row := base
		if len(sd.Amounts) > 0 {
			row.Amount = sd.Amounts[0]
		}
		return []contract.ExportRow{row}
	}

	// Per-date amounts exist only when the extractor produced one amount per
	// insertion date. A single amount across several dates is an aggregate
	// and is carried through marked as such; dividing it here would invent a
	// per-date figure the contract never stated.
	perDate := len(sd.Amounts) == len(sd.InsertionDates)
	aggregate := ""
	if !perDate && len(sd.Amounts) > 0 {
		aggregate = sd.Amounts[0]
	}

	rows := make([]contract.ExportRow, 0, len(sd.InsertionDates))
	for i, date := range sd.InsertionDates {
		row := base
		row.InsertionDate = date
		if perDate {
			row.Amount = sd.Amounts[i]
		} else if aggregate != "" {
			row.Amount = aggregate
			row.AmountAggregate = len(sd.InsertionDates) > 1
		}
		rows = append(rows, row)
	}

	sort.SliceStable(rows, func(i, j int) bool {
		return dateLess(rows[i].InsertionDate, rows[j].InsertionDate)
	})
	return rows
}

// dateLess orders insertion dates ascending. Dates the parser cannot read
// keep their original relative order after parsable ones; empty dates sort
// last.
func dateLess(a, b string) bool {
	ta, aOK := parseDate(a)
	tb, bOK := parseDate(b)
	switch {
	case aOK && bOK:
		return ta.Before(tb)
	case aOK:
		return true
	case bOK:
		return false
	case a != "" && b == "":
		return true
	default:
		return false
	}
}

func parseDate(s string) (time.Time, bool) {
	if s == "" {
		return time.Time{}, false
	}
	t, err := dateparse.ParseAny(s)
	if err != nil {
		return time.Time{}, false
	}
	return t, true
}
