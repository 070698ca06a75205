package ai

import (
	"context"
	"strings"
	"testing"

	"iosplit/internal/contract"
	"iosplit/internal/fault"
)

func extractFixture() ([]contract.TextBlock, contract.CategoryMap, []string) {
	blocks := []contract.TextBlock{
		{ID: 0, Page: 1, Text: "Agreement between Acme Media and BrandCo"},
		{ID: 1, Page: 1, Text: "The Daily Brew: insertions Jan 5, Jan 12"},
		{ID: 2, Page: 2, Text: "Night Owls: 4 insertions at $1,200"},
		{ID: 3, Page: 2, Text: "Combined total: $10,800"},
	}
	categories := contract.CategoryMap{
		0: {Kind: contract.Global},
		1: contract.ShowCategory("The Daily Brew"),
		2: contract.ShowCategory("Night Owls"),
		3: {Kind: contract.GlobalRedact},
	}
	return blocks, categories, []string{"The Daily Brew", "Night Owls"}
}

func TestExtractWithoutProvider(t *testing.T) {
	e := NewExtractor(nil, 0)
	blocks, categories, shows := extractFixture()
	_, err := e.Extract(context.Background(), blocks, categories, shows)
	if fault.KindOf(err) != fault.KindUpstreamUnavailable {
		t.Errorf("expected an unavailable error without a provider, got %v", err)
	}
}

func TestExtractParsesShowData(t *testing.T) {
	mock := &mockProvider{response: `{
		"shows": [
			{
				"show_name": "The Daily Brew",
				"agency": "MediaBuy Inc",
				"advertiser": "BrandCo",
				"type": "podcast",
				"insertion_dates": ["Jan 5, 2026", "Jan 12, 2026"],
				"amounts": ["$500", "$500"],
				"payment_terms": "Net 30",
				"draft_required": "Yes",
				"pixel_required": "No",
				"impressions": "50,000",
				"notes": ""
			}
		]
	}`}

	e := NewExtractor(mock, 0)
	blocks, categories, shows := extractFixture()
	data, err := e.Extract(context.Background(), blocks, categories, shows)
	if err != nil {
		t.Fatalf("Extract failed: %v", err)
	}

	if len(data) != 1 {
		t.Fatalf("expected 1 show, got %d", len(data))
	}
	sd := data[0]
	if sd.Show != "The Daily Brew" || sd.Agency != "MediaBuy Inc" {
		t.Errorf("unexpected show data: %+v", sd)
	}
	if len(sd.InsertionDates) != 2 || sd.Amounts[1] != "$500" {
		t.Errorf("dates/amounts mangled: %+v", sd)
	}
	if sd.DraftRequired != contract.FlagYes || sd.PixelRequired != contract.FlagNo {
		t.Errorf("flags mangled: %+v", sd)
	}
}

func TestExtractDefaultsMissingFields(t *testing.T) {
	mock := &mockProvider{response: `{"shows": [{"show_name": "Night Owls"}]}`}

	e := NewExtractor(mock, 0)
	blocks, categories, shows := extractFixture()
	data, err := e.Extract(context.Background(), blocks, categories, shows)
	if err != nil {
		t.Fatalf("Extract failed: %v", err)
	}

	sd := data[0]
	if sd.Agency != notSpecified || sd.PaymentTerms != notSpecified {
		t.Errorf("missing strings must default to %q: %+v", notSpecified, sd)
	}
	if sd.DraftRequired != contract.FlagUnknown || sd.PixelRequired != contract.FlagUnknown {
		t.Errorf("missing flags must stay Unknown, never No: %+v", sd)
	}
	if len(sd.InsertionDates) != 0 {
		t.Errorf("missing dates must be empty: %+v", sd)
	}
}

func TestExtractUnparsableIsDataQuality(t *testing.T) {
	mock := &mockProvider{response: "The contract mentions two shows."}

	e := NewExtractor(mock, 0)
	blocks, categories, shows := extractFixture()
	_, err := e.Extract(context.Background(), blocks, categories, shows)
	if fault.KindOf(err) != fault.KindUpstreamDataQuality {
		t.Errorf("expected data-quality failure, got %v", err)
	}
}

func TestExtractTransportErrorSurfaces(t *testing.T) {
	mock := &mockProvider{err: fault.Timeout(context.DeadlineExceeded, "model call")}

	e := NewExtractor(mock, 0)
	blocks, categories, shows := extractFixture()
	_, err := e.Extract(context.Background(), blocks, categories, shows)
	if fault.KindOf(err) != fault.KindUpstreamTimeout {
		t.Errorf("expected the timeout to surface, got %v", err)
	}
}

func TestBuildExtractMessageSections(t *testing.T) {
	blocks, categories, shows := extractFixture()
	msg := buildExtractMessage(blocks, categories, shows)

	globalIdx := strings.Index(msg, "== SHARED / GLOBAL SECTIONS ==")
	brewIdx := strings.Index(msg, "== SHOW: The Daily Brew ==")
	owlsIdx := strings.Index(msg, "== SHOW: Night Owls ==")
	if globalIdx < 0 || brewIdx < 0 || owlsIdx < 0 {
		t.Fatalf("missing sections:\n%s", msg)
	}
	if !(globalIdx < brewIdx && brewIdx < owlsIdx) {
		t.Errorf("sections out of order: global=%d brew=%d owls=%d", globalIdx, brewIdx, owlsIdx)
	}
	// Aggregate figures are for redaction only, never shown to the extractor.
	if strings.Contains(msg, "$10,800") {
		t.Error("GLOBAL_REDACT content leaked into the extraction prompt")
	}
}
