// Package store holds the process-wide document registry, the only shared
// mutable state in the core. Documents live in memory and disappear on
// restart; there is no persistence and no explicit deletion.
package store

import (
	"sync"

	"github.com/google/uuid"

	"iosplit/internal/contract"
	"iosplit/internal/fault"
)

// Document is the aggregate state of one uploaded contract.
//
// Lifecycle: Create populates PDF, Blocks and PageCount; SetClassification
// sets or replaces Categories and Shows; SetShowData sets or replaces
// ShowData. A nil Categories map means "not yet classified"; nil ShowData
// means "not yet extracted". Callers use those to decide which step to
// demand next.
type Document struct {
	ID        string
	Name      string
	PDF       []byte
	Blocks    []contract.TextBlock
	PageCount int

	Categories contract.CategoryMap
	Shows      []string
	ShowData   []contract.ShowData
}

// Classified reports whether a category map has been committed.
func (d *Document) Classified() bool { return d.Categories != nil }

// Extracted reports whether show data has been committed.
func (d *Document) Extracted() bool { return d.ShowData != nil }

type entry struct {
	mu  sync.Mutex
	doc Document
}

// Store maps document ids to documents, serializing all operations on a
// single id so concurrent classify/extract calls cannot produce a torn
// category map. Documents are independent; there is no cross-document lock.
type Store struct {
	mu   sync.RWMutex
	docs map[string]*entry
}

// New creates an empty store.
func New() *Store {
	return &Store{docs: make(map[string]*entry)}
}

// Create registers a freshly extracted document and returns its id.
func (s *Store) Create(name string, pdf []byte, blocks []contract.TextBlock, pageCount int) string {
	id := uuid.NewString()
	e := &entry{doc: Document{
		ID:        id,
		Name:      name,
		PDF:       pdf,
		Blocks:    blocks,
		PageCount: pageCount,
	}}
	s.mu.Lock()
	s.docs[id] = e
	s.mu.Unlock()
	return id
}

// Get returns a snapshot of the document. The snapshot shares the immutable
// block and PDF data but its classification state is fixed at call time, so
// a concurrent re-classification cannot tear what the caller observes.
func (s *Store) Get(id string) (Document, error) {
	e, err := s.lookup(id)
	if err != nil {
		return Document{}, err
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.doc, nil
}

// SetClassification commits a complete category map and show list,
// replacing any previous classification. Prior show data is dropped with
// it: rows extracted under an old map must not outlive that map.
func (s *Store) SetClassification(id string, categories contract.CategoryMap, shows []string) error {
	return s.WithLock(id, func(doc *Document) error {
		doc.Categories = categories
		doc.Shows = shows
		doc.ShowData = nil
		return nil
	})
}

// SetShowData commits extracted show data. Fails if the document has never
// been classified; extraction depends on a committed category map.
func (s *Store) SetShowData(id string, data []contract.ShowData) error {
	return s.WithLock(id, func(doc *Document) error {
		if doc.Categories == nil {
			return fault.Precondition("document %s has not been classified", id)
		}
		doc.ShowData = data
		return nil
	})
}

// WithLock runs fn while holding the document's lock. It is the commit
// primitive under SetClassification and SetShowData: fn works on a scratch
// copy of the document, and the copy replaces the live document only if fn
// returns nil.
func (s *Store) WithLock(id string, fn func(doc *Document) error) error {
	e, err := s.lookup(id)
	if err != nil {
		return err
	}
	e.mu.Lock()
	defer e.mu.Unlock()

	// fn works on a copy; a failure path must leave last-known-good state.
	scratch := e.doc
	if err := fn(&scratch); err != nil {
		return err
	}
	e.doc = scratch
	return nil
}

// Len returns the number of live documents.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.docs)
}

func (s *Store) lookup(id string) (*entry, error) {
	s.mu.RLock()
	e, ok := s.docs[id]
	s.mu.RUnlock()
	if !ok {
		return nil, fault.NotFound("document %s not found", id)
	}
	return e, nil
}
