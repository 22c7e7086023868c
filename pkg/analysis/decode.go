package analysis

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"

	"fortio.org/safecast"
	"github.com/aretw0/proofline/pkg/domain"
	"github.com/getkin/kin-openapi/openapi3"
)

var errEmptyBody = errors.New("empty response body")

// Decode parses a response body, validates it against schema and maps it to a result.
// OriginalText is left empty; the caller attaches the submitted text.
func Decode(body []byte, schema *openapi3.Schema) (*domain.AnalysisResult, error) {
	body = stripFence(body)
	if len(body) == 0 {
		return nil, errEmptyBody
	}

	var doc any
	if err := json.Unmarshal(body, &doc); err != nil {
		return nil, fmt.Errorf("invalid JSON: %w", err)
	}
	if err := schema.VisitJSON(doc, openapi3.MultiErrors()); err != nil {
		return nil, fmt.Errorf("schema violation: %w", err)
	}

	// Shape is guaranteed by the schema from here on.
	root := doc.(map[string]any)
	res := &domain.AnalysisResult{
		CorrectedFullText: root[fieldCorrectedFullText].(string),
	}

	rawIssues := root[fieldIssues].([]any)
	res.Issues = make([]domain.Issue, 0, len(rawIssues))
	for i, raw := range rawIssues {
		m := raw.(map[string]any)
		res.Issues = append(res.Issues, domain.Issue{
			ID:          i,
			Original:    m[fieldOriginal].(string),
			Replacement: m[fieldReplacement].(string),
			Explanation: m[fieldExplanation].(string),
			Category:    domain.Category(m[fieldCategory].(string)),
			Context:     m[fieldContext].(string),
		})
	}

	stats := root[fieldStatistics].(map[string]any)
	words, err := toCount(stats[fieldWordCount])
	if err != nil {
		return nil, fmt.Errorf("%s: %w", fieldWordCount, err)
	}
	chars, err := toCount(stats[fieldCharacterCount])
	if err != nil {
		return nil, fmt.Errorf("%s: %w", fieldCharacterCount, err)
	}
	res.Statistics = domain.Statistics{
		WordCount:        words,
		CharacterCount:   chars,
		ReadabilityScore: stats[fieldReadabilityScore].(string),
		Tone:             stats[fieldTone].(string),
	}

	return res, nil
}

func toCount(v any) (int, error) {
	f, ok := v.(float64)
	if !ok {
		return 0, fmt.Errorf("expected number, got %T", v)
	}
	return safecast.Convert[int](f)
}

// stripFence removes a markdown code fence some models wrap around JSON.
func stripFence(body []byte) []byte {
	body = bytes.TrimSpace(body)
	if !bytes.HasPrefix(body, []byte("```")) {
		return body
	}
	body = bytes.TrimPrefix(body, []byte("```"))
	if nl := bytes.IndexByte(body, '\n'); nl >= 0 {
		body = body[nl+1:]
	}
	body = bytes.TrimSuffix(bytes.TrimSpace(body), []byte("```"))
	return bytes.TrimSpace(body)
}
