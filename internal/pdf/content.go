package pdf

import (
	"bytes"
	"regexp"
	"strconv"
	"strings"
	"unicode"

	"iosplit/internal/contract"
)

// run is one text-showing operation with its approximate extent in page
// coordinates.
type run struct {
	rect contract.Rect
	text string
}

// textState tracks the subset of the PDF text state needed to place runs:
// font size, leading, and the text cursor. Text space is treated as page
// space; rotated or skewed text matrices degrade to their translation,
// which is good enough for block-level geometry.
type textState struct {
	fontSize float64
	leading  float64
	x, y     float64 // current cursor
	lineX    float64 // start of current line
	lineY    float64
}

// avgGlyphWidth estimates glyph advance as a fraction of the font size.
// Helvetica averages ~0.55em; erring low keeps boxes from swallowing
// neighbours, the redactor pads regions on its side.
const avgGlyphWidth = 0.5

var (
	// pdfStringRe matches PDF string literals in parentheses: (text here)
	pdfStringRe = regexp.MustCompile(`\(((?:[^()\\]|\\.)*)\)`)

	tfRe = regexp.MustCompile(`/\S+\s+(-?[\d.]+)\s+Tf`)
	tmRe = regexp.MustCompile(`(-?[\d.]+)\s+(-?[\d.]+)\s+(-?[\d.]+)\s+(-?[\d.]+)\s+(-?[\d.]+)\s+(-?[\d.]+)\s+Tm`)
	tdRe = regexp.MustCompile(`(-?[\d.]+)\s+(-?[\d.]+)\s+T([dD])\b`)
	tlRe = regexp.MustCompile(`(-?[\d.]+)\s+TL\b`)
)

func newTextState() *textState {
	return &textState{fontSize: 12}
}

// applyPositioning updates the state from any positioning operators on the
// line. Returns true if the line repositioned the cursor.
func (st *textState) applyPositioning(line []byte) bool {
	moved := false

	if m := tfRe.FindSubmatch(line); m != nil {
		if v, err := strconv.ParseFloat(string(m[1]), 64); err == nil && v > 0 {
			st.fontSize = v
		}
	}
	if m := tlRe.FindSubmatch(line); m != nil {
		if v, err := strconv.ParseFloat(string(m[1]), 64); err == nil {
			st.leading = v
		}
	}
	if m := tmRe.FindSubmatch(line); m != nil {
		e, err1 := strconv.ParseFloat(string(m[5]), 64)
		f, err2 := strconv.ParseFloat(string(m[6]), 64)
		if err1 == nil && err2 == nil {
			st.lineX, st.lineY = e, f
			st.x, st.y = e, f
			moved = true
		}
	}
	if m := tdRe.FindSubmatch(line); m != nil {
		tx, err1 := strconv.ParseFloat(string(m[1]), 64)
		ty, err2 := strconv.ParseFloat(string(m[2]), 64)
		if err1 == nil && err2 == nil {
			if m[3][0] == 'D' {
				st.leading = -ty
			}
			st.lineX += tx
			st.lineY += ty
			st.x, st.y = st.lineX, st.lineY
			moved = true
		}
	}
	if bytes.Equal(bytes.TrimSpace(line), []byte("T*")) || bytes.HasSuffix(line, []byte("'")) {
		st.nextLine()
		moved = true
	}

	return moved
}

func (st *textState) nextLine() {
	lead := st.leading
	if lead == 0 {
		lead = st.fontSize * 1.2
	}
	st.lineY -= lead
	st.x, st.y = st.lineX, st.lineY
}

func (st *textState) reset() {
	st.x, st.y = 0, 0
	st.lineX, st.lineY = 0, 0
	st.leading = 0
}

// showText emits a run for the given decoded text at the current cursor and
// advances it.
func (st *textState) showText(text string) run {
	w := float64(len([]rune(text))) * st.fontSize * avgGlyphWidth
	r := run{
		rect: contract.Rect{
			X0: st.x,
			Y0: st.y - 0.2*st.fontSize,
			X1: st.x + w,
			Y1: st.y + 0.8*st.fontSize,
		},
		text: text,
	}
	st.x += w
	return r
}

// isShowOp reports whether the line ends in a text-showing operator.
func isShowOp(line []byte) bool {
	return bytes.HasSuffix(line, []byte("Tj")) ||
		bytes.HasSuffix(line, []byte("TJ")) ||
		(bytes.HasSuffix(line, []byte("'")) && bytes.Contains(line, []byte("(")))
}

// lineText decodes every string literal on a text-showing line.
func lineText(line []byte) string {
	var sb strings.Builder
	for _, m := range pdfStringRe.FindAllSubmatch(line, -1) {
		sb.WriteString(decodePDFString(m[1]))
	}
	return sb.String()
}

// parseRuns walks a decoded page content stream and returns the text runs
// in stream order.
func parseRuns(data []byte) []run {
	st := newTextState()
	var runs []run

	for _, line := range bytes.Split(data, []byte{'\n'}) {
		line = bytes.TrimSpace(line)
		if len(line) == 0 {
			continue
		}
		if bytes.Equal(line, []byte("BT")) {
			st.reset()
			continue
		}

		st.applyPositioning(line)

		if isShowOp(line) {
			if text := lineText(line); text != "" {
				runs = append(runs, st.showText(text))
			}
		}
	}
	return runs
}

// decodePDFString handles basic PDF escape sequences.
func decodePDFString(raw []byte) string {
	var sb strings.Builder
	for i := 0; i < len(raw); i++ {
		if raw[i] == '\\' && i+1 < len(raw) {
			i++
			switch raw[i] {
			case 'n':
				sb.WriteByte('\n')
			case 'r':
				sb.WriteByte('\r')
			case 't':
				sb.WriteByte('\t')
			case '\\':
				sb.WriteByte('\\')
			case '(':
				sb.WriteByte('(')
			case ')':
				sb.WriteByte(')')
			default:
				// Octal escape (e.g. \040 for space).
				if raw[i] >= '0' && raw[i] <= '7' {
					val := int(raw[i] - '0')
					if i+1 < len(raw) && raw[i+1] >= '0' && raw[i+1] <= '7' {
						i++
						val = val*8 + int(raw[i]-'0')
						if i+1 < len(raw) && raw[i+1] >= '0' && raw[i+1] <= '7' {
							i++
							val = val*8 + int(raw[i]-'0')
						}
					}
					sb.WriteByte(byte(val))
				} else {
					sb.WriteByte(raw[i])
				}
			}
		} else {
			sb.WriteByte(raw[i])
		}
	}
	return sb.String()
}

// cleanText normalises whitespace in extracted text.
func cleanText(text string) string {
	var sb strings.Builder
	prevSpace := false
	for _, r := range text {
		if unicode.IsSpace(r) {
			if !prevSpace && sb.Len() > 0 {
				sb.WriteByte(' ')
				prevSpace = true
			}
		} else if unicode.IsPrint(r) {
			sb.WriteRune(r)
			prevSpace = false
		}
	}
	return strings.TrimSpace(sb.String())
}
