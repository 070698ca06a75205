package pipeline

import (
	"context"
	"fmt"
	"log"
	"os"
	"path/filepath"
)

// StepResult holds the result of a single processing step.
type StepResult struct {
	Name    string
	Summary string
	Err     error
}

// Result holds the results of a full one-shot run over one PDF.
type Result struct {
	DocumentID string
	Steps      []StepResult
}

// ProcessOptions selects what the one-shot run does beyond classification.
type ProcessOptions struct {
	// OutDir receives the per-show redacted PDFs; empty skips redaction.
	OutDir string
	// Show restricts redaction to one show; empty redacts every show.
	Show string
	// Export appends the expanded rows to the configured sheet.
	Export bool
}

// Process runs the full flow for a PDF on disk: upload, classify, redact
// every show, optionally export. Each step records a summary or an error; a
// failed upload or classification stops the run, a failed per-show redaction
// does not.
func (s *Service) Process(ctx context.Context, path string, opts ProcessOptions) *Result {
	r := &Result{}

	step := s.runUpload(path, r)
	r.Steps = append(r.Steps, step)
	if step.Err != nil {
		return r
	}

	step = s.runClassify(ctx, r.DocumentID)
	r.Steps = append(r.Steps, step)
	if step.Err != nil {
		return r
	}

	if opts.OutDir != "" {
		r.Steps = append(r.Steps, s.runRedactAll(r.DocumentID, opts.OutDir, opts.Show))
	}

	if opts.Export {
		r.Steps = append(r.Steps, s.runExport(ctx, r.DocumentID))
	}

	return r
}

func (s *Service) runUpload(path string, r *Result) StepResult {
	log.Println("Step 1: Extracting text blocks...")
	data, err := os.ReadFile(path)
	if err != nil {
		return StepResult{Name: "Upload", Err: err}
	}

	doc, err := s.Upload(filepath.Base(path), data)
	if err != nil {
		return StepResult{Name: "Upload", Err: err}
	}
	r.DocumentID = doc.ID
	return StepResult{
		Name:    "Upload",
		Summary: fmt.Sprintf("Extracted %d blocks from %d pages", len(doc.Blocks), doc.PageCount),
	}
}

func (s *Service) runClassify(ctx context.Context, id string) StepResult {
	log.Println("Step 2: Classifying blocks by show...")
	result, err := s.Classify(ctx, id)
	if err != nil {
		return StepResult{Name: "Classify", Err: err}
	}
	summary := fmt.Sprintf("Found %d shows: %v", len(result.Shows), result.Shows)
	if len(result.Warnings) > 0 {
		summary += fmt.Sprintf(" (%d warnings)", len(result.Warnings))
	}
	return StepResult{Name: "Classify", Summary: summary}
}

func (s *Service) runRedactAll(id, outDir, selectedShow string) StepResult {
	log.Println("Step 3: Writing per-show redacted PDFs...")
	doc, err := s.Document(id)
	if err != nil {
		return StepResult{Name: "Redact", Err: err}
	}
	if err := os.MkdirAll(outDir, 0o755); err != nil {
		return StepResult{Name: "Redact", Err: err}
	}

	shows := doc.Shows
	if selectedShow != "" {
		shows = []string{selectedShow}
	}

	written := 0
	for _, show := range shows {
		result, err := s.Redact(id, show)
		if err != nil {
			log.Printf("Redacting for show %q: %v", show, err)
			continue
		}
		out := filepath.Join(outDir, result.Filename)
		if err := os.WriteFile(out, result.PDF, 0o644); err != nil {
			log.Printf("Writing %s: %v", out, err)
			continue
		}
		written++
	}
	return StepResult{
		Name:    "Redact",
		Summary: fmt.Sprintf("Wrote %d of %d show PDFs to %s", written, len(shows), outDir),
	}
}

func (s *Service) runExport(ctx context.Context, id string) StepResult {
	log.Println("Step 4: Extracting contract data and exporting rows...")
	result, err := s.Extract(ctx, id)
	if err != nil {
		return StepResult{Name: "Export", Err: err}
	}
	summary := fmt.Sprintf("Appended %d rows for %d shows", result.RowsAppended, len(result.Shows))
	if result.SheetURL != "" {
		summary += " to " + result.SheetURL
	}
	if result.Repeat {
		summary += " (identical to the previous export)"
	}
	return StepResult{Name: "Export", Summary: summary}
}
