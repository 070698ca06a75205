package server

import (
	"encoding/json"
	"io"
	"log"
	"net/http"
	"sort"
	"strings"

	"github.com/go-chi/chi/v5"

	"iosplit/internal/contract"
	"iosplit/internal/fault"
)

type uploadResponse struct {
	DocumentID string               `json:"document_id"`
	Name       string               `json:"name"`
	PageCount  int                  `json:"page_count"`
	Blocks     []contract.TextBlock `json:"blocks"`
}

func (s *Server) handleUpload(w http.ResponseWriter, r *http.Request) {
	maxBytes := int64(s.cfg.Server.MaxUploadMB) << 20
	r.Body = http.MaxBytesReader(w, r.Body, maxBytes)

	file, header, err := r.FormFile("file")
	if err != nil {
		writeError(w, fault.InvalidInput("missing file field in multipart form"))
		return
	}
	defer file.Close()

	if !strings.HasSuffix(strings.ToLower(header.Filename), ".pdf") {
		writeError(w, fault.InvalidInput("only PDF files are accepted"))
		return
	}

	data, err := io.ReadAll(file)
	if err != nil {
		writeError(w, fault.InvalidInput("reading upload: %v", err))
		return
	}

	doc, err := s.svc.Upload(header.Filename, data)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, uploadResponse{
		DocumentID: doc.ID,
		Name:       doc.Name,
		PageCount:  doc.PageCount,
		Blocks:     doc.Blocks,
	})
}

type classifyRequest struct {
	DocumentID string `json:"document_id"`
}

type classifyResponse struct {
	Shows       []string         `json:"shows"`
	Assignments map[string][]int `json:"assignments"`
	Warnings    []string         `json:"warnings"`
}

func (s *Server) handleClassify(w http.ResponseWriter, r *http.Request) {
	var req classifyRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	result, err := s.svc.Classify(r.Context(), req.DocumentID)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, classifyResponse{
		Shows:       emptyIfNil(result.Shows),
		Assignments: groupAssignments(result.Categories),
		Warnings:    emptyIfNil(result.Warnings),
	})
}

type redactRequest struct {
	DocumentID   string `json:"document_id"`
	SelectedShow string `json:"selected_show"`
}

func (s *Server) handleRedact(w http.ResponseWriter, r *http.Request) {
	var req redactRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if strings.TrimSpace(req.SelectedShow) == "" {
		writeError(w, fault.InvalidInput("selected_show is required"))
		return
	}

	result, err := s.svc.Redact(req.DocumentID, req.SelectedShow)
	if err != nil {
		writeError(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/pdf")
	w.Header().Set("Content-Disposition", `attachment; filename="`+result.Filename+`"`)
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write(result.PDF); err != nil {
		log.Printf("Writing redacted PDF: %v", err)
	}
}

type extractRequest struct {
	DocumentID string `json:"document_id"`
}

type extractResponse struct {
	Shows        []contract.ShowData `json:"shows"`
	RowsAppended int                 `json:"rows_appended"`
	SheetURL     string              `json:"sheet_url,omitempty"`
	Repeat       bool                `json:"repeat,omitempty"`
}

func (s *Server) handleExtract(w http.ResponseWriter, r *http.Request) {
	var req extractRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	result, err := s.svc.Extract(r.Context(), req.DocumentID)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, extractResponse{
		Shows:        result.Shows,
		RowsAppended: result.RowsAppended,
		SheetURL:     result.SheetURL,
		Repeat:       result.Repeat,
	})
}

type documentResponse struct {
	DocumentID string   `json:"document_id"`
	Name       string   `json:"name"`
	PageCount  int      `json:"page_count"`
	BlockCount int      `json:"block_count"`
	State      string   `json:"state"`
	Shows      []string `json:"shows"`
}

func (s *Server) handleDocument(w http.ResponseWriter, r *http.Request) {
	doc, err := s.svc.Document(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, err)
		return
	}

	state := "uploaded"
	switch {
	case doc.Extracted():
		state = "extracted"
	case doc.Classified():
		state = "classified"
	}

	writeJSON(w, http.StatusOK, documentResponse{
		DocumentID: doc.ID,
		Name:       doc.Name,
		PageCount:  doc.PageCount,
		BlockCount: len(doc.Blocks),
		State:      state,
		Shows:      emptyIfNil(doc.Shows),
	})
}

// groupAssignments inverts a category map into label → sorted block ids,
// the shape the classifier originally answered in.
func groupAssignments(categories contract.CategoryMap) map[string][]int {
	out := make(map[string][]int)
	for id, c := range categories {
		label := c.Label()
		out[label] = append(out[label], id)
	}
	for _, ids := range out {
		sort.Ints(ids)
	}
	return out
}

func emptyIfNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}

func decodeJSON(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		writeError(w, fault.InvalidInput("invalid JSON body: %v", err))
		return false
	}
	return true
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Printf("Encoding response: %v", err)
	}
}

// writeError maps an error kind to an HTTP status and emits the JSON error
// body. Unknown errors are logged and hidden behind a generic message.
func writeError(w http.ResponseWriter, err error) {
	kind := fault.KindOf(err)
	msg := err.Error()

	var status int
	switch kind {
	case fault.KindInvalidInput:
		status = http.StatusBadRequest
	case fault.KindUnprocessable:
		status = http.StatusUnprocessableEntity
	case fault.KindNotFound:
		status = http.StatusNotFound
	case fault.KindPreconditionFailed:
		status = http.StatusConflict
	case fault.KindUpstreamDataQuality:
		status = http.StatusBadGateway
	case fault.KindUpstreamTimeout:
		status = http.StatusGatewayTimeout
	case fault.KindUpstreamUnavailable:
		status = http.StatusServiceUnavailable
	default:
		status = http.StatusInternalServerError
		log.Printf("Internal error: %v", err)
		msg = "internal server error"
	}

	writeJSON(w, status, map[string]string{
		"error": msg,
		"kind":  kind.String(),
	})
}
