package ports

import (
	"context"

	"github.com/aretw0/proofline/pkg/domain"
	"github.com/getkin/kin-openapi/openapi3"
)

// Analyzer runs one analysis of the given text.
// Failures are reported as *domain.AnalysisError.
type Analyzer interface {
	Analyze(ctx context.Context, text string) (*domain.AnalysisResult, error)
}

// AnalyzerFunc adapts a plain function to the Analyzer interface.
type AnalyzerFunc func(ctx context.Context, text string) (*domain.AnalysisResult, error)

// Analyze calls f(ctx, text).
func (f AnalyzerFunc) Analyze(ctx context.Context, text string) (*domain.AnalysisResult, error) {
	return f(ctx, text)
}

// GenerateRequest is one structured-output call to a hosted model.
type GenerateRequest struct {
	// Model overrides the generator's default model when set.
	Model string

	// Prompt is the natural-language instruction, with the user text embedded.
	Prompt string

	// Schema is the strict output schema the response must follow.
	Schema *openapi3.Schema
}

// Generator is the outbound port to the external text-analysis service.
// It returns the raw response body; parsing is the caller's job.
type Generator interface {
	Generate(ctx context.Context, req GenerateRequest) ([]byte, error)
}
