package loam

import (
	"reflect"
	"time"

	"github.com/aretw0/proofline/pkg/ports"
	"github.com/mitchellh/mapstructure"
)

// Metadata is the frontmatter of a workspace document.
// Timestamps are kept as RFC 3339 strings so every serializer agrees on them.
type Metadata struct {
	Title            string `mapstructure:"title"`
	Source           string `mapstructure:"source"`
	Tone             string `mapstructure:"tone"`
	ReadabilityScore string `mapstructure:"readability"`
	AppliedIssues    int    `mapstructure:"applied_issues"`
	PendingIssues    int    `mapstructure:"pending_issues"`
	ExportedAt       string `mapstructure:"exported_at"`
}

func fromMeta(m ports.DocumentMeta) Metadata {
	out := Metadata{
		Title:            m.Title,
		Source:           m.Source,
		Tone:             m.Tone,
		ReadabilityScore: m.ReadabilityScore,
		AppliedIssues:    m.AppliedIssues,
		PendingIssues:    m.PendingIssues,
	}
	if !m.ExportedAt.IsZero() {
		out.ExportedAt = m.ExportedAt.UTC().Format(time.RFC3339)
	}
	return out
}

func (m Metadata) toMeta() ports.DocumentMeta {
	out := ports.DocumentMeta{
		Title:            m.Title,
		Source:           m.Source,
		Tone:             m.Tone,
		ReadabilityScore: m.ReadabilityScore,
		AppliedIssues:    m.AppliedIssues,
		PendingIssues:    m.PendingIssues,
	}
	if ts, err := time.Parse(time.RFC3339, m.ExportedAt); err == nil {
		out.ExportedAt = ts
	}
	return out
}

// fields is the frontmatter map written to disk; zero values are left out.
func (m Metadata) fields() map[string]any {
	out := make(map[string]any)
	put := func(key string, v any, zero bool) {
		if !zero {
			out[key] = v
		}
	}
	put("title", m.Title, m.Title == "")
	put("source", m.Source, m.Source == "")
	put("tone", m.Tone, m.Tone == "")
	put("readability", m.ReadabilityScore, m.ReadabilityScore == "")
	put("applied_issues", m.AppliedIssues, m.AppliedIssues == 0)
	put("pending_issues", m.PendingIssues, m.PendingIssues == 0)
	put("exported_at", m.ExportedAt, m.ExportedAt == "")
	return out
}

// decodeMetadata reads frontmatter with weak typing, so "3" and 3 are both
// accepted for counts and a YAML timestamp is read back as RFC 3339.
func decodeMetadata(raw map[string]any) (Metadata, error) {
	var meta Metadata
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           &meta,
		WeaklyTypedInput: true,
		DecodeHook:       timeToString,
	})
	if err != nil {
		return meta, err
	}
	return meta, dec.Decode(raw)
}

func timeToString(from, to reflect.Type, data any) (any, error) {
	if t, ok := data.(time.Time); ok && to.Kind() == reflect.String {
		return t.UTC().Format(time.RFC3339), nil
	}
	return data, nil
}
