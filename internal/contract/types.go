// Package contract defines the domain types shared across the pipeline:
// extracted text blocks, block categories, per-show contract data, and the
// flattened export rows pushed to the spreadsheet.
package contract

// Rect is an axis-aligned rectangle in PDF page coordinates (origin bottom-left).
type Rect struct {
	X0 float64 `json:"x0"`
	Y0 float64 `json:"y0"`
	X1 float64 `json:"x1"`
	Y1 float64 `json:"y1"`
}

// Intersects reports whether r and o overlap.
func (r Rect) Intersects(o Rect) bool {
	return r.X0 < o.X1 && o.X0 < r.X1 && r.Y0 < o.Y1 && o.Y0 < r.Y1
}

// TextBlock is a single text fragment extracted from a PDF page.
// Blocks are created once at upload and never mutated; IDs are unique within
// a document and follow extraction order.
type TextBlock struct {
	ID   int    `json:"block_id"`
	Page int    `json:"page_number"` // 1-based
	BBox Rect   `json:"bbox"`
	Text string `json:"text"`
}

// Region is one rectangle to black out on a page.
type Region struct {
	Page    int  `json:"page_number"`
	BBox    Rect `json:"bbox"`
	BlockID int  `json:"block_id"`
}

// CategoryKind discriminates the tagged Category value.
type CategoryKind int

const (
	// Unclassified is the zero value on purpose: a block nobody vouched for
	// is always redacted.
	Unclassified CategoryKind = iota
	Global
	GlobalRedact
	ShowSpecific
)

// Raw classifier labels for the non-show categories.
const (
	LabelGlobal       = "GLOBAL"
	LabelGlobalRedact = "GLOBAL_REDACT"
	LabelUnclassified = "UNCLASSIFIED"
)

// Category is the tagged classification of one block. Show holds the show
// name only when Kind is ShowSpecific.
type Category struct {
	Kind CategoryKind `json:"kind"`
	Show string       `json:"show,omitempty"`
}

// ShowCategory returns the category for a named show.
func ShowCategory(name string) Category {
	return Category{Kind: ShowSpecific, Show: name}
}

// Label renders the category as its classifier label.
func (c Category) Label() string {
	switch c.Kind {
	case Global:
		return LabelGlobal
	case GlobalRedact:
		return LabelGlobalRedact
	case ShowSpecific:
		return c.Show
	default:
		return LabelUnclassified
	}
}

// CategoryMap assigns exactly one category to every block of a document.
// It is produced by the reconciler and replaced wholesale on re-classification.
type CategoryMap map[int]Category

// ShowData holds the structured contract fields extracted for one show.
// Produced once per show per extraction call; immutable afterwards.
type ShowData struct {
	Show           string   `json:"show"`
	Agency         string   `json:"agency"`
	Advertiser     string   `json:"advertiser"`
	Type           string   `json:"type"`
	InsertionDates []string `json:"insertion_dates"`
	// Amounts is aligned with InsertionDates when per-date figures exist.
	// A single element alongside multiple dates is an aggregate figure.
	Amounts       []string `json:"amounts"`
	PaymentTerms  string   `json:"payment_terms"`
	DraftRequired Flag     `json:"draft_required"`
	PixelRequired Flag     `json:"pixel_required"`
	Impressions   string   `json:"impressions"`
	Notes         string   `json:"notes"`
}

// ExportRow is one flattened spreadsheet record: a ShowData collapsed to a
// single insertion date. Derived, never mutated after creation.
type ExportRow struct {
	Show          string `json:"show"`
	Agency        string `json:"agency"`
	Advertiser    string `json:"advertiser"`
	Type          string `json:"type"`
	InsertionDate string `json:"insertion_date"` // empty when the contract has no date-level billing
	DraftRequired Flag   `json:"draft_required"`
	Impressions   string `json:"impressions"`
	Amount        string `json:"amount"`
	// AmountAggregate marks an amount that covers all insertions of the show
	// rather than this date alone. Aggregates are carried through as-is,
	// never divided into fabricated per-date figures.
	AmountAggregate bool   `json:"amount_aggregate,omitempty"`
	PaymentTerms    string `json:"payment_terms"`
	PixelRequired   Flag   `json:"pixel_required"`
	Notes           string `json:"notes"`
}

// SheetHeader is the fixed column order of the export spreadsheet.
var SheetHeader = []string{
	"Podcast Booked",
	"Agency",
	"Advertiser",
	"Type",
	"Insertion Date Per IO",
	"Draft Required (Y/N)",
	"Impressions",
	"Amount",
	"Payment Terms",
	"Requires Pixel Tracker(Y/N)",
	"Notes",
}

// SheetValues renders the row in SheetHeader column order.
func (r ExportRow) SheetValues() []any {
	amount := r.Amount
	if r.AmountAggregate && amount != "" {
		amount += " (aggregate)"
	}
	return []any{
		r.Show,
		r.Agency,
		r.Advertiser,
		r.Type,
		r.InsertionDate,
		r.DraftRequired.String(),
		r.Impressions,
		amount,
		r.PaymentTerms,
		r.PixelRequired.String(),
		r.Notes,
	}
}
