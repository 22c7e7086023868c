// Package loam keeps drafts and exported corrections as Markdown documents with
// YAML frontmatter, using the Loam document store.
package loam

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"sort"
	"strings"

	"github.com/aretw0/loam"
	"github.com/aretw0/loam/pkg/core"
	"github.com/aretw0/proofline/pkg/ports"
)

// Workspace implements ports.DocumentStore on top of a Loam repository.
// Frontmatter is decoded weakly: hand-edited or re-serialized files may carry
// numbers as strings.
type Workspace struct {
	Repo core.Repository
}

// New wraps an existing repository.
func New(repo core.Repository) *Workspace {
	return &Workspace{Repo: repo}
}

// Open initializes a Loam repository rooted at dir. Versioning is disabled: the
// workspace is a plain directory of Markdown files.
func Open(dir string) (*Workspace, error) {
	absPath, err := filepath.Abs(dir)
	if err != nil {
		return nil, fmt.Errorf("invalid workspace path: %w", err)
	}

	repo, err := loam.Init(absPath,
		loam.WithVersioning(false),
		loam.WithForceTemp(false),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize loam: %w", err)
	}
	return New(repo), nil
}

// Load reads a document by ID. The ".md" extension is optional.
func (w *Workspace) Load(ctx context.Context, id string) (*ports.Document, error) {
	id = normalizeID(id)
	doc, err := w.Repo.Get(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("loam get failed for %s: %w", id, err)
	}
	meta, err := decodeMetadata(doc.Metadata)
	if err != nil {
		return nil, fmt.Errorf("invalid frontmatter in %s: %w", id, err)
	}
	return &ports.Document{
		ID:      id,
		Content: doc.Content,
		Meta:    meta.toMeta(),
	}, nil
}

// Save writes the document, replacing any previous version.
func (w *Workspace) Save(ctx context.Context, doc ports.Document) error {
	id := normalizeID(doc.ID)
	if id == "" {
		return errors.New("document id is required")
	}

	err := w.Repo.Save(ctx, core.Document{
		ID:       id,
		Content:  doc.Content,
		Metadata: fromMeta(doc.Meta).fields(),
	})
	if err != nil {
		return fmt.Errorf("loam save failed for %s: %w", id, err)
	}
	return nil
}

// List returns the IDs of all documents, sorted, without extensions.
func (w *Workspace) List(ctx context.Context) ([]string, error) {
	docs, err := w.Repo.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("loam list failed: %w", err)
	}

	ids := make([]string, 0, len(docs))
	for _, doc := range docs {
		ids = append(ids, normalizeID(doc.ID))
	}
	sort.Strings(ids)
	return ids, nil
}

// ExportID is the document ID used for the corrected version of a draft.
func ExportID(draftID string) string {
	return normalizeID(draftID) + "-corrected"
}

func normalizeID(id string) string {
	id = filepath.ToSlash(strings.TrimSpace(id))
	if ext := filepath.Ext(id); ext == ".md" {
		id = strings.TrimSuffix(id, ext)
	}
	return id
}
