package ports

import (
	"context"
	"time"
)

// Document is a draft or an exported text with its metadata.
type Document struct {
	ID      string
	Content string
	Meta    DocumentMeta
}

// DocumentMeta is stored as frontmatter next to the text.
type DocumentMeta struct {
	Title            string    `yaml:"title,omitempty" mapstructure:"title"`
	Source           string    `yaml:"source,omitempty" mapstructure:"source"`
	Tone             string    `yaml:"tone,omitempty" mapstructure:"tone"`
	ReadabilityScore string    `yaml:"readability,omitempty" mapstructure:"readability"`
	AppliedIssues    int       `yaml:"applied_issues,omitempty" mapstructure:"applied_issues"`
	PendingIssues    int       `yaml:"pending_issues,omitempty" mapstructure:"pending_issues"`
	ExportedAt       time.Time `yaml:"exported_at,omitempty" mapstructure:"exported_at"`
}

// DocumentStore loads drafts and saves corrected text.
type DocumentStore interface {
	Load(ctx context.Context, id string) (*Document, error)
	Save(ctx context.Context, doc Document) error
}
