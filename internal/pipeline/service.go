// Package pipeline orchestrates the document flow: upload → classify →
// {redact, extract}. The HTTP surface and the CLI both drive this service;
// neither talks to the model or the store directly.
package pipeline

import (
	"context"
	"log"
	"sync"

	"iosplit/internal/ai"
	"iosplit/internal/classify"
	"iosplit/internal/config"
	"iosplit/internal/contract"
	"iosplit/internal/database"
	"iosplit/internal/expand"
	"iosplit/internal/fault"
	"iosplit/internal/llm"
	"iosplit/internal/pdf"
	"iosplit/internal/redact"
	"iosplit/internal/sheets"
	"iosplit/internal/store"
)

// Extractor is the block-extraction primitive; swapped in tests.
type Extractor func(pdfBytes []byte) ([]contract.TextBlock, int, error)

// Redactor is the PDF redaction primitive; swapped in tests.
type Redactor func(pdfBytes []byte, regions []contract.Region) ([]byte, error)

// Service wires the pure core components to their external collaborators.
// All per-document operations are serialized on a per-id lock so concurrent
// classify/extract calls can neither tear state nor double-append rows.
type Service struct {
	cfg        *config.Config
	docs       *store.Store
	ledger     *database.DB
	classifier *ai.Classifier
	extractor  *ai.Extractor
	appender   sheets.Appender
	extract    Extractor
	redactPDF  Redactor

	mu  sync.Mutex
	ops map[string]*sync.Mutex
}

// New builds a service from configuration. The ledger may be nil (exports
// are then not recorded); the appender may be nil (exports fail with a
// precondition error until the sheet is configured).
func New(cfg *config.Config, docs *store.Store, ledger *database.DB, provider llm.Provider, appender sheets.Appender) *Service {
	return &Service{
		cfg:        cfg,
		docs:       docs,
		ledger:     ledger,
		classifier: ai.NewClassifier(provider, cfg.AI.MaxTokens),
		extractor:  ai.NewExtractor(provider, cfg.AI.MaxTokens),
		appender:   appender,
		extract:    pdf.Extract,
		redactPDF:  pdf.Redact,
		ops:        make(map[string]*sync.Mutex),
	}
}

// SetPrimitives replaces the PDF primitives, for tests.
func (s *Service) SetPrimitives(extract Extractor, redactPDF Redactor) {
	s.extract = extract
	s.redactPDF = redactPDF
}

// opLock returns the mutex serializing operations for one document id.
func (s *Service) opLock(id string) *sync.Mutex {
	s.mu.Lock()
	defer s.mu.Unlock()
	m, ok := s.ops[id]
	if !ok {
		m = &sync.Mutex{}
		s.ops[id] = m
	}
	return m
}

// Upload extracts text blocks from a PDF and registers the document.
func (s *Service) Upload(name string, pdfBytes []byte) (store.Document, error) {
	if len(pdfBytes) == 0 {
		return store.Document{}, fault.InvalidInput("uploaded file is empty")
	}

	blocks, pageCount, err := s.extract(pdfBytes)
	if err != nil {
		return store.Document{}, fault.InvalidInput("could not parse PDF: %v", err)
	}
	if len(blocks) == 0 {
		return store.Document{}, fault.Unprocessable("no text blocks found in the PDF; is it a scanned document?")
	}

	id := s.docs.Create(name, pdfBytes, blocks, pageCount)
	if s.ledger != nil {
		if err := s.ledger.RecordDocument(id, name, pageCount, len(blocks)); err != nil {
			log.Printf("Failed to record document %s in ledger: %v", id, err)
		}
	}

	log.Printf("Uploaded document %s — %d blocks across %d pages", id, len(blocks), pageCount)
	return s.docs.Get(id)
}

// Document returns a snapshot of the document's current state.
func (s *Service) Document(id string) (store.Document, error) {
	return s.docs.Get(id)
}

// Classify runs the classification capability and commits the result,
// replacing any previous category map. Nothing is committed on failure.
func (s *Service) Classify(ctx context.Context, id string) (classify.Result, error) {
	lock := s.opLock(id)
	lock.Lock()
	defer lock.Unlock()

	doc, err := s.docs.Get(id)
	if err != nil {
		return classify.Result{}, err
	}
	return s.classifyLocked(ctx, doc)
}

// classifyLocked does the model call and commit; callers hold the op lock.
func (s *Service) classifyLocked(ctx context.Context, doc store.Document) (classify.Result, error) {
	cctx, cancel := context.WithTimeout(ctx, s.cfg.AI.Timeout())
	defer cancel()

	result, err := s.classifier.Classify(cctx, doc.Blocks)
	if err != nil {
		return classify.Result{}, err
	}
	for _, w := range result.Warnings {
		log.Printf("Classification warning for %s: %s", doc.ID, w)
	}

	if err := s.docs.SetClassification(doc.ID, result.Categories, result.Shows); err != nil {
		return classify.Result{}, err
	}
	log.Printf("Classified document %s — shows: %v", doc.ID, result.Shows)
	return result, nil
}

// RedactResult is a rendered single-show PDF.
type RedactResult struct {
	Show     string
	Regions  []contract.Region
	PDF      []byte
	Filename string
}

// Redact renders the PDF for one show, blacking out every block that is not
// the show's or Global. Requires a committed classification.
func (s *Service) Redact(id, selectedShow string) (RedactResult, error) {
	doc, err := s.docs.Get(id)
	if err != nil {
		return RedactResult{}, err
	}
	if !doc.Classified() {
		return RedactResult{}, fault.Precondition("document %s has not been classified; classify it first", id)
	}

	regions, err := redact.Plan(doc.Blocks, doc.Categories, doc.Shows, selectedShow)
	if err != nil {
		return RedactResult{}, err
	}

	out, err := s.redactPDF(doc.PDF, regions)
	if err != nil {
		return RedactResult{}, err
	}

	log.Printf("Redacted document %s for show %q — %d regions", id, selectedShow, len(regions))
	return RedactResult{
		Show:     selectedShow,
		Regions:  regions,
		PDF:      out,
		Filename: "redacted_" + sanitizeFilename(selectedShow) + ".pdf",
	}, nil
}

// ExtractResult is the outcome of a data extraction and export.
type ExtractResult struct {
	Shows        []contract.ShowData
	Rows         []contract.ExportRow
	RowsAppended int
	SheetURL     string
	// Repeat marks a batch identical to the document's previous export.
	Repeat bool
}

// Extract pulls structured data for every show and appends the expanded
// rows to the sheet. If the document has no category map yet, it is
// classified first and that classification is committed before extraction
// proceeds, so a later redact sees the same map the rows came from.
func (s *Service) Extract(ctx context.Context, id string) (ExtractResult, error) {
	lock := s.opLock(id)
	lock.Lock()
	defer lock.Unlock()

	doc, err := s.docs.Get(id)
	if err != nil {
		return ExtractResult{}, err
	}

	if !doc.Classified() {
		if _, err := s.classifyLocked(ctx, doc); err != nil {
			return ExtractResult{}, err
		}
		doc, err = s.docs.Get(id)
		if err != nil {
			return ExtractResult{}, err
		}
	}

	ectx, cancel := context.WithTimeout(ctx, s.cfg.AI.Timeout())
	data, err := s.extractor.Extract(ectx, doc.Blocks, doc.Categories, doc.Shows)
	cancel()
	if err != nil {
		return ExtractResult{}, err
	}
	if len(data) == 0 {
		return ExtractResult{}, fault.DataQuality("model could not extract any show data from the contract")
	}

	if err := s.docs.SetShowData(id, data); err != nil {
		return ExtractResult{}, err
	}

	rows := expand.Rows(data, doc.Shows)
	result := ExtractResult{Shows: data, Rows: rows}

	if s.appender == nil {
		return result, fault.Precondition("no spreadsheet configured; rows were extracted but not exported")
	}

	url, err := s.appender.Append(ctx, rows)
	if err != nil {
		return result, err
	}
	result.SheetURL = url
	result.RowsAppended = len(rows)

	if s.ledger != nil {
		fp := database.Fingerprint(id, rows)
		last, err := s.ledger.LastExportFingerprint(id)
		if err == nil && last == fp {
			result.Repeat = true
			log.Printf("Export for %s repeats the previous batch", id)
		}
		if _, err := s.ledger.RecordExport(id, doc.Shows, len(rows), fp, url); err != nil {
			log.Printf("Failed to record export for %s in ledger: %v", id, err)
		}
	}

	log.Printf("Exported %d rows for document %s", len(rows), id)
	return result, nil
}

func sanitizeFilename(s string) string {
	out := make([]rune, 0, len(s))
	for _, r := range s {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-', r == '_':
			out = append(out, r)
		case r == ' ':
			out = append(out, '_')
		}
	}
	if len(out) == 0 {
		return "show"
	}
	return string(out)
}
