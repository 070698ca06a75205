package pipeline

import (
	"context"
	"path/filepath"
	"testing"

	"iosplit/internal/config"
	"iosplit/internal/contract"
	"iosplit/internal/database"
	"iosplit/internal/fault"
	"iosplit/internal/store"
)

// scriptedProvider returns canned responses in call order.
type scriptedProvider struct {
	responses []string
	errs      []error
	calls     int
}

func (p *scriptedProvider) Generate(_ context.Context, _, _ string, _ int) (string, error) {
	i := p.calls
	p.calls++
	if i < len(p.errs) && p.errs[i] != nil {
		return "", p.errs[i]
	}
	if i < len(p.responses) {
		return p.responses[i], nil
	}
	return "", fault.Unavailable(nil, "no scripted response left")
}

func (p *scriptedProvider) IsConfigured() bool { return true }

// fakeAppender records appended rows.
type fakeAppender struct {
	batches [][]contract.ExportRow
	err     error
}

func (f *fakeAppender) Append(_ context.Context, rows []contract.ExportRow) (string, error) {
	if f.err != nil {
		return "", f.err
	}
	f.batches = append(f.batches, rows)
	return "https://docs.google.com/spreadsheets/d/test", nil
}

const classifyResponse = `{
	"shows": ["The Daily Brew", "Night Owls"],
	"assignments": {
		"GLOBAL": [0],
		"The Daily Brew": [1],
		"Night Owls": [2]
	}
}`

const extractResponse = `{
	"shows": [
		{
			"show_name": "The Daily Brew",
			"advertiser": "BrandCo",
			"type": "podcast",
			"insertion_dates": ["Jan 5, 2026", "Jan 12, 2026"],
			"amounts": ["$500", "$500"],
			"payment_terms": "Net 30",
			"draft_required": "Yes"
		},
		{
			"show_name": "Night Owls",
			"advertiser": "BrandCo",
			"amounts": ["$4,800"]
		}
	]
}`

func testService(t *testing.T, provider *scriptedProvider, appender *fakeAppender) *Service {
	t.Helper()
	cfg := &config.Config{AI: config.AI{MaxTokens: 1024, TimeoutSeconds: 5}}

	db, err := database.Open(filepath.Join(t.TempDir(), "ledger.db"))
	if err != nil {
		t.Fatalf("opening ledger: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	var svc *Service
	if appender != nil {
		svc = New(cfg, store.New(), db, provider, appender)
	} else {
		svc = New(cfg, store.New(), db, provider, nil)
	}
	svc.SetPrimitives(
		func(pdfBytes []byte) ([]contract.TextBlock, int, error) {
			return []contract.TextBlock{
				{ID: 0, Page: 1, Text: "Agreement between Acme Media and BrandCo"},
				{ID: 1, Page: 1, Text: "The Daily Brew: 2 insertions at $500"},
				{ID: 2, Page: 2, Text: "Night Owls: flat $4,800"},
			}, 2, nil
		},
		func(pdfBytes []byte, regions []contract.Region) ([]byte, error) {
			return append([]byte("REDACTED:"), pdfBytes...), nil
		},
	)
	return svc
}

func uploadTestDoc(t *testing.T, svc *Service) string {
	t.Helper()
	doc, err := svc.Upload("contract.pdf", []byte("%PDF-1.4 test"))
	if err != nil {
		t.Fatalf("Upload failed: %v", err)
	}
	return doc.ID
}

func TestUploadRejectsEmptyFile(t *testing.T) {
	svc := testService(t, &scriptedProvider{}, nil)
	_, err := svc.Upload("empty.pdf", nil)
	if fault.KindOf(err) != fault.KindInvalidInput {
		t.Errorf("expected invalid input, got %v", err)
	}
}

func TestUploadRejectsTextFreePDF(t *testing.T) {
	svc := testService(t, &scriptedProvider{}, nil)
	svc.SetPrimitives(
		func([]byte) ([]contract.TextBlock, int, error) { return nil, 1, nil },
		nil,
	)
	_, err := svc.Upload("scan.pdf", []byte("%PDF-1.4"))
	if fault.KindOf(err) != fault.KindUnprocessable {
		t.Errorf("expected unprocessable, got %v", err)
	}
}

func TestClassifyCommits(t *testing.T) {
	svc := testService(t, &scriptedProvider{responses: []string{classifyResponse}}, nil)
	id := uploadTestDoc(t, svc)

	result, err := svc.Classify(context.Background(), id)
	if err != nil {
		t.Fatalf("Classify failed: %v", err)
	}
	if len(result.Shows) != 2 {
		t.Errorf("expected 2 shows, got %v", result.Shows)
	}

	doc, _ := svc.Document(id)
	if !doc.Classified() {
		t.Error("classification was not committed")
	}
	if doc.Categories[1] != contract.ShowCategory("The Daily Brew") {
		t.Errorf("unexpected committed map: %+v", doc.Categories)
	}
}

func TestClassifyWithoutProviderIsUnavailable(t *testing.T) {
	cfg := &config.Config{AI: config.AI{MaxTokens: 1024, TimeoutSeconds: 5}}
	svc := New(cfg, store.New(), nil, nil, nil)
	svc.SetPrimitives(
		func([]byte) ([]contract.TextBlock, int, error) {
			return []contract.TextBlock{{ID: 0, Page: 1, Text: "terms"}}, 1, nil
		},
		nil,
	)

	doc, err := svc.Upload("contract.pdf", []byte("%PDF-1.4"))
	if err != nil {
		t.Fatalf("Upload failed: %v", err)
	}

	// An unconfigured provider is an unavailable upstream, not a panic.
	_, err = svc.Classify(context.Background(), doc.ID)
	if fault.KindOf(err) != fault.KindUpstreamUnavailable {
		t.Errorf("expected unavailable, got %v", err)
	}
}

func TestClassifyFailureCommitsNothing(t *testing.T) {
	provider := &scriptedProvider{errs: []error{fault.Timeout(context.DeadlineExceeded, "model call")}}
	svc := testService(t, provider, nil)
	id := uploadTestDoc(t, svc)

	_, err := svc.Classify(context.Background(), id)
	if fault.KindOf(err) != fault.KindUpstreamTimeout {
		t.Fatalf("expected timeout, got %v", err)
	}

	doc, _ := svc.Document(id)
	if doc.Classified() {
		t.Error("failed classification must not commit")
	}
}

func TestRedactRequiresClassification(t *testing.T) {
	svc := testService(t, &scriptedProvider{}, nil)
	id := uploadTestDoc(t, svc)

	_, err := svc.Redact(id, "The Daily Brew")
	if fault.KindOf(err) != fault.KindPreconditionFailed {
		t.Errorf("expected precondition failure, got %v", err)
	}
}

func TestRedactUnknownDocument(t *testing.T) {
	svc := testService(t, &scriptedProvider{}, nil)
	if _, err := svc.Redact("nope", "A"); fault.KindOf(err) != fault.KindNotFound {
		t.Errorf("expected not found, got %v", err)
	}
}

func TestRedactProducesShowFile(t *testing.T) {
	svc := testService(t, &scriptedProvider{responses: []string{classifyResponse}}, nil)
	id := uploadTestDoc(t, svc)
	if _, err := svc.Classify(context.Background(), id); err != nil {
		t.Fatal(err)
	}

	result, err := svc.Redact(id, "The Daily Brew")
	if err != nil {
		t.Fatalf("Redact failed: %v", err)
	}
	if result.Filename != "redacted_The_Daily_Brew.pdf" {
		t.Errorf("unexpected filename %q", result.Filename)
	}
	// Block 2 (the other show) is the only redacted region.
	if len(result.Regions) != 1 || result.Regions[0].BlockID != 2 {
		t.Errorf("unexpected regions: %+v", result.Regions)
	}
}

func TestExtractClassifiesFirstAndExports(t *testing.T) {
	provider := &scriptedProvider{responses: []string{classifyResponse, extractResponse}}
	appender := &fakeAppender{}
	svc := testService(t, provider, appender)
	id := uploadTestDoc(t, svc)

	result, err := svc.Extract(context.Background(), id)
	if err != nil {
		t.Fatalf("Extract failed: %v", err)
	}

	doc, _ := svc.Document(id)
	if !doc.Classified() || !doc.Extracted() {
		t.Error("extract must commit classification and show data")
	}

	// Daily Brew has two dated rows, Night Owls one summary row.
	if result.RowsAppended != 3 {
		t.Errorf("expected 3 rows, got %d", result.RowsAppended)
	}
	if len(appender.batches) != 1 || len(appender.batches[0]) != 3 {
		t.Errorf("unexpected batches: %+v", appender.batches)
	}
	if appender.batches[0][0].Show != "The Daily Brew" {
		t.Errorf("show order lost: %+v", appender.batches[0])
	}
	if result.SheetURL == "" || result.Repeat {
		t.Errorf("unexpected result: %+v", result)
	}
}

func TestExtractRepeatDetection(t *testing.T) {
	provider := &scriptedProvider{responses: []string{
		classifyResponse, extractResponse, extractResponse,
	}}
	appender := &fakeAppender{}
	svc := testService(t, provider, appender)
	id := uploadTestDoc(t, svc)

	first, err := svc.Extract(context.Background(), id)
	if err != nil {
		t.Fatalf("first Extract failed: %v", err)
	}
	if first.Repeat {
		t.Error("first export flagged as repeat")
	}

	second, err := svc.Extract(context.Background(), id)
	if err != nil {
		t.Fatalf("second Extract failed: %v", err)
	}
	if !second.Repeat {
		t.Error("identical re-export not flagged as repeat")
	}
	if len(appender.batches) != 2 {
		t.Errorf("repeat detection must not block the append, got %d batches", len(appender.batches))
	}
}

func TestExtractWithoutAppender(t *testing.T) {
	provider := &scriptedProvider{responses: []string{classifyResponse, extractResponse}}
	svc := testService(t, provider, nil)
	id := uploadTestDoc(t, svc)

	_, err := svc.Extract(context.Background(), id)
	if fault.KindOf(err) != fault.KindPreconditionFailed {
		t.Fatalf("expected precondition failure, got %v", err)
	}

	// The extraction itself is still committed for later inspection.
	doc, _ := svc.Document(id)
	if !doc.Extracted() {
		t.Error("show data should be committed even when export is unconfigured")
	}
}

func TestExtractDataQualitySurfaces(t *testing.T) {
	provider := &scriptedProvider{responses: []string{classifyResponse, "not json at all"}}
	svc := testService(t, provider, &fakeAppender{})
	id := uploadTestDoc(t, svc)

	_, err := svc.Extract(context.Background(), id)
	if fault.KindOf(err) != fault.KindUpstreamDataQuality {
		t.Fatalf("expected data-quality failure, got %v", err)
	}

	doc, _ := svc.Document(id)
	if doc.Extracted() {
		t.Error("failed extraction must not commit show data")
	}
	if !doc.Classified() {
		t.Error("the committed classification must survive the failed extraction")
	}
}

func TestSanitizeFilename(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"The Daily Brew", "The_Daily_Brew"},
		{"Night Owls!", "Night_Owls"},
		{"a/b\\c", "abc"},
		{"***", "show"},
	}
	for _, tt := range tests {
		if got := sanitizeFilename(tt.in); got != tt.want {
			t.Errorf("sanitizeFilename(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}
