// Package pdf implements the PDF primitives the core consumes: text block
// extraction with per-block geometry, and irreversible block redaction.
// Input is assumed text-based; scanned documents yield no blocks.
package pdf

import (
	"bytes"
	"fmt"
	"io"
	"math"

	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"

	"iosplit/internal/contract"
)

// Extract parses a PDF into text blocks with approximate bounding boxes.
// Block ids are sequential across the whole document in extraction order.
// Returns the blocks and the page count.
func Extract(pdfBytes []byte) ([]contract.TextBlock, int, error) {
	ctx, err := readContext(pdfBytes)
	if err != nil {
		return nil, 0, err
	}

	var blocks []contract.TextBlock
	nextID := 0

	for pageNr := 1; pageNr <= ctx.PageCount; pageNr++ {
		content, err := pageContent(ctx, pageNr)
		if err != nil || len(content) == 0 {
			continue
		}
		for _, b := range groupRuns(parseRuns(content)) {
			text := cleanText(b.text)
			if text == "" {
				continue
			}
			blocks = append(blocks, contract.TextBlock{
				ID:   nextID,
				Page: pageNr,
				BBox: b.rect,
				Text: text,
			})
			nextID++
		}
	}

	return blocks, ctx.PageCount, nil
}

func readContext(pdfBytes []byte) (*model.Context, error) {
	conf := model.NewDefaultConfiguration()
	ctx, err := api.ReadValidateAndOptimize(bytes.NewReader(pdfBytes), conf)
	if err != nil {
		return nil, fmt.Errorf("pdfcpu read: %w", err)
	}
	return ctx, nil
}

// pageContent returns the decoded, concatenated content stream of a page.
func pageContent(ctx *model.Context, pageNr int) ([]byte, error) {
	r, err := pdfcpu.ExtractPageContent(ctx, pageNr)
	if err != nil {
		return nil, err
	}
	return io.ReadAll(r)
}

// groupRuns merges consecutive text runs into blocks. Runs on the same
// baseline extend the current line; a modest downward step continues the
// block as a new line; anything else starts a new block. The thresholds are
// relative to the run's font height so dense and sparse layouts group alike.
func groupRuns(runs []run) []run {
	var blocks []run
	var cur run
	var curBaseline float64
	open := false

	flush := func() {
		if open && cur.text != "" {
			blocks = append(blocks, cur)
		}
		open = false
	}

	for _, r := range runs {
		h := r.rect.Y1 - r.rect.Y0
		baseline := r.rect.Y0

		if !open {
			cur, curBaseline, open = r, baseline, true
			continue
		}

		sameLine := math.Abs(baseline-curBaseline) < 0.3*h
		nextLine := curBaseline-baseline > 0 && curBaseline-baseline <= 1.8*h

		if sameLine {
			if r.rect.X0-cur.rect.X1 > 2*h {
				// Far-apart runs on one baseline are separate layout cells
				// (e.g. a label column and a value column).
				flush()
				cur, curBaseline, open = r, baseline, true
				continue
			}
			cur.text += " " + r.text
			cur.rect = union(cur.rect, r.rect)
			continue
		}

		if nextLine {
			cur.text += " " + r.text
			cur.rect = union(cur.rect, r.rect)
			curBaseline = baseline
			continue
		}

		flush()
		cur, curBaseline, open = r, baseline, true
	}
	flush()

	return blocks
}

func union(a, b contract.Rect) contract.Rect {
	return contract.Rect{
		X0: math.Min(a.X0, b.X0),
		Y0: math.Min(a.Y0, b.Y0),
		X1: math.Max(a.X1, b.X1),
		Y1: math.Max(a.Y1, b.Y1),
	}
}
