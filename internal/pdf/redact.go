package pdf

import (
	"bytes"
	"fmt"
	"regexp"

	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"

	"iosplit/internal/contract"
)

// regionPad widens redaction regions slightly so runs whose estimated
// geometry lands a hair outside the block box are still removed.
const regionPad = 2.0

var (
	showTjRe = regexp.MustCompile(`\((?:[^()\\]|\\.)*\)\s*(?:Tj|')`)
	showTJRe = regexp.MustCompile(`\[[^\]]*\]\s*TJ`)
)

// Redact returns new PDF bytes with every region blacked out and the text
// underneath removed from the content stream, not merely covered. The same
// input always yields the same visual output.
func Redact(pdfBytes []byte, regions []contract.Region) ([]byte, error) {
	ctx, err := readContext(pdfBytes)
	if err != nil {
		return nil, err
	}

	byPage := make(map[int][]contract.Rect)
	for _, reg := range regions {
		byPage[reg.Page] = append(byPage[reg.Page], pad(reg.BBox))
	}

	for pageNr, rects := range byPage {
		if pageNr < 1 || pageNr > ctx.PageCount {
			return nil, fmt.Errorf("redaction region on page %d of a %d-page document", pageNr, ctx.PageCount)
		}
		content, err := pageContent(ctx, pageNr)
		if err != nil {
			return nil, fmt.Errorf("reading page %d content: %w", pageNr, err)
		}
		redacted := redactContent(content, rects)
		if err := replacePageContent(ctx, pageNr, redacted); err != nil {
			return nil, fmt.Errorf("rewriting page %d: %w", pageNr, err)
		}
	}

	var buf bytes.Buffer
	if err := api.WriteContext(ctx, &buf); err != nil {
		return nil, fmt.Errorf("pdfcpu write: %w", err)
	}
	return buf.Bytes(), nil
}

// redactContent strips text-showing operators whose run intersects any
// region and appends opaque fills for the regions themselves. Positioning
// operators stay untouched so the remaining text keeps its layout.
func redactContent(content []byte, rects []contract.Rect) []byte {
	st := newTextState()
	var out bytes.Buffer

	for _, line := range bytes.Split(content, []byte{'\n'}) {
		trimmed := bytes.TrimSpace(line)
		if bytes.Equal(trimmed, []byte("BT")) {
			st.reset()
			out.Write(line)
			out.WriteByte('\n')
			continue
		}

		st.applyPositioning(trimmed)

		if isShowOp(trimmed) {
			text := lineText(trimmed)
			r := st.showText(text)
			if text != "" && intersectsAny(r.rect, rects) {
				// Drop only the showing operator; the rest of the line may
				// carry state the following text depends on.
				line = showTjRe.ReplaceAll(line, nil)
				line = showTJRe.ReplaceAll(line, nil)
			}
		}

		out.Write(line)
		out.WriteByte('\n')
	}

	// Black fills drawn after the page content sit on top of anything the
	// operator filter missed.
	out.WriteString("q\n0 g\n")
	for _, r := range rects {
		fmt.Fprintf(&out, "%.2f %.2f %.2f %.2f re f\n", r.X0, r.Y0, r.X1-r.X0, r.Y1-r.Y0)
	}
	out.WriteString("Q\n")

	return out.Bytes()
}

// replacePageContent swaps the page's Contents for a single new stream.
func replacePageContent(ctx *model.Context, pageNr int, content []byte) error {
	pageDict, _, _, err := ctx.PageDict(pageNr, false)
	if err != nil {
		return err
	}

	sd, err := ctx.XRefTable.NewStreamDictForBuf(content)
	if err != nil {
		return err
	}
	if err := sd.Encode(); err != nil {
		return err
	}

	indRef, err := ctx.IndRefForNewObject(*sd)
	if err != nil {
		return err
	}

	pageDict.Update("Contents", *indRef)
	return nil
}

func pad(r contract.Rect) contract.Rect {
	return contract.Rect{X0: r.X0 - regionPad, Y0: r.Y0 - regionPad, X1: r.X1 + regionPad, Y1: r.Y1 + regionPad}
}

func intersectsAny(r contract.Rect, rects []contract.Rect) bool {
	for _, o := range rects {
		if r.Intersects(o) {
			return true
		}
	}
	return false
}
