package memory

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/aretw0/proofline/pkg/ports"
)

// ErrDocumentNotFound is returned by Documents.Load for unknown IDs.
var ErrDocumentNotFound = errors.New("document not found")

// Documents implements ports.DocumentStore in memory.
type Documents struct {
	mu   sync.RWMutex
	docs map[string]ports.Document
}

// NewDocuments creates a document store pre-filled with the given drafts, keyed by ID.
func NewDocuments(seed map[string]string) *Documents {
	d := &Documents{docs: make(map[string]ports.Document, len(seed))}
	for id, content := range seed {
		d.docs[id] = ports.Document{ID: id, Content: content}
	}
	return d
}

// Load returns a copy of the document.
func (d *Documents) Load(ctx context.Context, id string) (*ports.Document, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	doc, ok := d.docs[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrDocumentNotFound, id)
	}
	return &doc, nil
}

// Save stores the document, replacing any previous version.
func (d *Documents) Save(ctx context.Context, doc ports.Document) error {
	if doc.ID == "" {
		return errors.New("document id is required")
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	d.docs[doc.ID] = doc
	return nil
}
