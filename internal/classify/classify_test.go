package classify

import (
	"reflect"
	"strings"
	"testing"

	"iosplit/internal/contract"
)

func makeBlocks(ids ...int) []contract.TextBlock {
	blocks := make([]contract.TextBlock, 0, len(ids))
	for _, id := range ids {
		blocks = append(blocks, contract.TextBlock{ID: id, Page: 1, Text: "block"})
	}
	return blocks
}

func TestReconcileCompleteMap(t *testing.T) {
	blocks := makeBlocks(0, 1, 2, 3)
	raw := []RawAssignment{
		{Label: "GLOBAL", BlockIDs: []int{0}},
		{Label: "Show A", BlockIDs: []int{1}},
		{Label: "Show B", BlockIDs: []int{2}},
		{Label: "GLOBAL_REDACT", BlockIDs: []int{3}},
	}

	r := Reconcile(blocks, raw)

	if len(r.Categories) != len(blocks) {
		t.Fatalf("expected %d categories, got %d", len(blocks), len(r.Categories))
	}
	if r.Categories[0].Kind != contract.Global {
		t.Errorf("block 0: expected Global, got %v", r.Categories[0])
	}
	if got := r.Categories[1]; got != contract.ShowCategory("Show A") {
		t.Errorf("block 1: expected Show A, got %v", got)
	}
	if r.Categories[3].Kind != contract.GlobalRedact {
		t.Errorf("block 3: expected GlobalRedact, got %v", r.Categories[3])
	}
	if want := []string{"Show A", "Show B"}; !reflect.DeepEqual(r.Shows, want) {
		t.Errorf("expected shows %v, got %v", want, r.Shows)
	}
	if len(r.Warnings) != 0 {
		t.Errorf("expected no warnings, got %v", r.Warnings)
	}
}

func TestReconcileOmittedBlocksDefaultToUnclassified(t *testing.T) {
	blocks := makeBlocks(0, 1, 2)
	raw := []RawAssignment{{Label: "Show A", BlockIDs: []int{0}}}

	r := Reconcile(blocks, raw)

	for _, id := range []int{1, 2} {
		if r.Categories[id].Kind != contract.Unclassified {
			t.Errorf("block %d: expected Unclassified, got %v", id, r.Categories[id])
		}
	}
	if len(r.Warnings) != 1 || !strings.Contains(r.Warnings[0], "omitted 2 block(s)") {
		t.Errorf("expected omission warning, got %v", r.Warnings)
	}
}

func TestReconcileNilRawDefaultsEverything(t *testing.T) {
	blocks := makeBlocks(0, 1)

	r := Reconcile(blocks, nil)

	if len(r.Categories) != 2 {
		t.Fatalf("expected 2 categories, got %d", len(r.Categories))
	}
	for id, c := range r.Categories {
		if c.Kind != contract.Unclassified {
			t.Errorf("block %d: expected Unclassified, got %v", id, c)
		}
	}
	if len(r.Shows) != 0 {
		t.Errorf("expected no shows, got %v", r.Shows)
	}
}

func TestReconcileLastSeenWinsOnDuplicate(t *testing.T) {
	blocks := makeBlocks(0, 1)
	raw := []RawAssignment{
		{Label: "Show A", BlockIDs: []int{0, 1}},
		{Label: "Show B", BlockIDs: []int{1}},
	}

	r := Reconcile(blocks, raw)

	if got := r.Categories[1]; got != contract.ShowCategory("Show B") {
		t.Errorf("block 1: expected last assignment Show B, got %v", got)
	}
	if got := r.Categories[0]; got != contract.ShowCategory("Show A") {
		t.Errorf("block 0: expected Show A, got %v", got)
	}
	if len(r.Warnings) != 1 {
		t.Fatalf("expected 1 duplicate warning, got %v", r.Warnings)
	}
	if !strings.Contains(r.Warnings[0], "block 1") || !strings.Contains(r.Warnings[0], "Show B") {
		t.Errorf("warning should name the block and the kept label: %s", r.Warnings[0])
	}
}

func TestReconcileRepeatedSameLabelIsNotADuplicate(t *testing.T) {
	blocks := makeBlocks(0)
	raw := []RawAssignment{
		{Label: "Show A", BlockIDs: []int{0}},
		{Label: "Show A", BlockIDs: []int{0}},
	}

	r := Reconcile(blocks, raw)
	if len(r.Warnings) != 0 {
		t.Errorf("same-label repeat should not warn, got %v", r.Warnings)
	}
}

func TestReconcileDiscardsUnknownIDs(t *testing.T) {
	blocks := makeBlocks(0, 1)
	raw := []RawAssignment{
		{Label: "Show A", BlockIDs: []int{0, 1, 99}},
	}

	r := Reconcile(blocks, raw)

	if _, ok := r.Categories[99]; ok {
		t.Error("hallucinated block id 99 must not enter the map")
	}
	if len(r.Categories) != 2 {
		t.Errorf("expected 2 categories, got %d", len(r.Categories))
	}
	if len(r.Warnings) != 1 || !strings.Contains(r.Warnings[0], "[99]") {
		t.Errorf("expected unknown-id warning naming 99, got %v", r.Warnings)
	}
}

func TestReconcileShowDiscoveryOrder(t *testing.T) {
	blocks := makeBlocks(0, 1, 2)
	raw := []RawAssignment{
		{Label: "Zebra Show", BlockIDs: []int{0}},
		{Label: "Alpha Show", BlockIDs: []int{1}},
		{Label: "Zebra Show", BlockIDs: []int{2}},
	}

	r := Reconcile(blocks, raw)
	if want := []string{"Zebra Show", "Alpha Show"}; !reflect.DeepEqual(r.Shows, want) {
		t.Errorf("expected discovery order %v, got %v", want, r.Shows)
	}
}

func TestReconcileIsDeterministic(t *testing.T) {
	blocks := makeBlocks(0, 1, 2, 3)
	raw := []RawAssignment{
		{Label: "Show A", BlockIDs: []int{0, 1, 2}},
		{Label: "Show B", BlockIDs: []int{1, 2}},
		{Label: "GLOBAL", BlockIDs: []int{2}},
	}

	first := Reconcile(blocks, raw)
	for i := 0; i < 20; i++ {
		again := Reconcile(blocks, raw)
		if !reflect.DeepEqual(first, again) {
			t.Fatalf("run %d differed:\nfirst: %+v\nagain: %+v", i, first, again)
		}
	}
}

func TestCategoryForLabel(t *testing.T) {
	tests := []struct {
		label string
		want  contract.Category
		ok    bool
	}{
		{"GLOBAL", contract.Category{Kind: contract.Global}, true},
		{"GLOBAL_REDACT", contract.Category{Kind: contract.GlobalRedact}, true},
		{"UNCLASSIFIED", contract.Category{Kind: contract.Unclassified}, true},
		{"  The Daily Brew  ", contract.ShowCategory("The Daily Brew"), true},
		{"global", contract.ShowCategory("global"), true}, // reserved labels are case-sensitive
		{"   ", contract.Category{}, false},
	}
	for _, tt := range tests {
		got, _, ok := categoryForLabel(tt.label)
		if ok != tt.ok || got != tt.want {
			t.Errorf("categoryForLabel(%q) = %v, %v; want %v, %v", tt.label, got, ok, tt.want, tt.ok)
		}
	}
}
