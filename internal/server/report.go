package server

import (
	"bytes"
	"fmt"
	"html/template"
	"log"
	"net/http"
	"sort"
	"strings"
	"unicode/utf8"

	"github.com/go-chi/chi/v5"
	"github.com/yuin/goldmark"

	"iosplit/internal/contract"
	"iosplit/internal/store"
)

var md = goldmark.New()

const reportShell = `<!DOCTYPE html>
<html lang="en">
<head>
<meta charset="utf-8">
<title>%s — classification report</title>
<style>
body { font-family: system-ui, sans-serif; max-width: 56rem; margin: 2rem auto; padding: 0 1rem; color: #1a1a1a; }
table { border-collapse: collapse; }
th, td { border: 1px solid #ccc; padding: 0.3rem 0.6rem; text-align: left; }
code { background: #f2f2f2; padding: 0.1rem 0.3rem; }
</style>
</head>
<body>
%s
</body>
</html>`

// handleReport renders a human-readable summary of a document's
// classification and extracted data.
func (s *Server) handleReport(w http.ResponseWriter, r *http.Request) {
	doc, err := s.svc.Document(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, err)
		return
	}

	var buf bytes.Buffer
	if err := md.Convert([]byte(buildReport(doc)), &buf); err != nil {
		log.Printf("Rendering report for %s: %v", doc.ID, err)
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	fmt.Fprintf(w, reportShell, template.HTMLEscapeString(doc.Name), buf.String())
}

// buildReport assembles the report as markdown.
func buildReport(doc store.Document) string {
	var sb strings.Builder

	fmt.Fprintf(&sb, "# %s\n\n", doc.Name)
	fmt.Fprintf(&sb, "Document `%s` — %d pages, %d text blocks.\n\n", doc.ID, doc.PageCount, len(doc.Blocks))

	if !doc.Classified() {
		sb.WriteString("Not yet classified.\n")
		return sb.String()
	}

	fmt.Fprintf(&sb, "## Shows\n\n")
	if len(doc.Shows) == 0 {
		sb.WriteString("No shows identified.\n\n")
	}
	for _, show := range doc.Shows {
		fmt.Fprintf(&sb, "- %s\n", show)
	}
	sb.WriteByte('\n')

	sb.WriteString("## Block classification\n\n")
	writeCategorySection(&sb, doc)

	if doc.Extracted() {
		sb.WriteString("## Extracted contract data\n\n")
		for _, data := range doc.ShowData {
			writeShowSection(&sb, data)
		}
	}

	return sb.String()
}

func writeCategorySection(sb *strings.Builder, doc store.Document) {
	byLabel := make(map[string][]contract.TextBlock)
	for _, b := range doc.Blocks {
		label := doc.Categories[b.ID].Label()
		byLabel[label] = append(byLabel[label], b)
	}

	labels := make([]string, 0, len(byLabel))
	for label := range byLabel {
		labels = append(labels, label)
	}
	sort.Strings(labels)

	for _, label := range labels {
		blocks := byLabel[label]
		fmt.Fprintf(sb, "### %s (%d blocks)\n\n", label, len(blocks))
		for _, b := range blocks {
			fmt.Fprintf(sb, "- **Block %d** (page %d): %s\n", b.ID, b.Page, excerpt(b.Text, 120))
		}
		sb.WriteByte('\n')
	}
}

// excerpt cuts s to at most n bytes without splitting a rune.
func excerpt(s string, n int) string {
	if len(s) <= n {
		return s
	}
	for n > 0 && !utf8.RuneStart(s[n]) {
		n--
	}
	return s[:n] + "…"
}

func writeShowSection(sb *strings.Builder, data contract.ShowData) {
	fmt.Fprintf(sb, "### %s\n\n", data.Show)
	fmt.Fprintf(sb, "| Field | Value |\n|---|---|\n")
	fmt.Fprintf(sb, "| Agency | %s |\n", data.Agency)
	fmt.Fprintf(sb, "| Advertiser | %s |\n", data.Advertiser)
	fmt.Fprintf(sb, "| Type | %s |\n", data.Type)
	fmt.Fprintf(sb, "| Insertion dates | %s |\n", strings.Join(data.InsertionDates, ", "))
	fmt.Fprintf(sb, "| Amounts | %s |\n", strings.Join(data.Amounts, ", "))
	fmt.Fprintf(sb, "| Payment terms | %s |\n", data.PaymentTerms)
	fmt.Fprintf(sb, "| Draft required | %s |\n", data.DraftRequired)
	fmt.Fprintf(sb, "| Pixel required | %s |\n", data.PixelRequired)
	fmt.Fprintf(sb, "| Impressions | %s |\n", data.Impressions)
	if data.Notes != "" {
		fmt.Fprintf(sb, "| Notes | %s |\n", data.Notes)
	}
	sb.WriteByte('\n')
}
