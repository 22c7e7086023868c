package analysis

import (
	"context"
	"log/slog"
	"time"

	"github.com/aretw0/proofline/internal/logging"
	"github.com/aretw0/proofline/pkg/domain"
	"github.com/aretw0/proofline/pkg/ports"
	"github.com/getkin/kin-openapi/openapi3"
)

const opAnalyze = "analyze"

// Client implements ports.Analyzer on top of a structured-output Generator.
// It makes a single attempt per call: no retries, no rate limiting.
type Client struct {
	generator ports.Generator
	model     string
	schema    *openapi3.Schema
	logger    *slog.Logger
}

var _ ports.Analyzer = (*Client)(nil)

// Option configures the Client.
type Option func(*Client)

// WithModel overrides the generator's default model.
func WithModel(model string) Option {
	return func(c *Client) {
		c.model = model
	}
}

// WithLogger configures the structured logger.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Client) {
		c.logger = logger
	}
}

// New creates an analysis client.
func New(gen ports.Generator, opts ...Option) *Client {
	c := &Client{
		generator: gen,
		schema:    ResponseSchema(),
		logger:    logging.NewNop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Analyze sends text to the service and returns the validated result.
func (c *Client) Analyze(ctx context.Context, text string) (*domain.AnalysisResult, error) {
	if domain.IsBlank(text) {
		return nil, &domain.AnalysisError{Op: opAnalyze, Kind: domain.KindEmptyInput, Err: domain.ErrEmptyInput}
	}

	start := time.Now()
	body, err := c.generator.Generate(ctx, ports.GenerateRequest{
		Model:  c.model,
		Prompt: BuildPrompt(text),
		Schema: c.schema,
	})
	if err != nil {
		c.logger.Warn("analysis.transport_failed", "err", err, "elapsed", time.Since(start))
		return nil, &domain.AnalysisError{Op: opAnalyze, Kind: domain.KindTransport, Err: err}
	}

	res, err := Decode(body, c.schema)
	if err != nil {
		c.logger.Warn("analysis.malformed_response", "err", err, "body_bytes", len(body))
		return nil, &domain.AnalysisError{Op: opAnalyze, Kind: domain.KindMalformedResponse, Err: err}
	}

	// The service does not echo the submitted text.
	res.OriginalText = text

	c.logger.Debug("analysis.decoded",
		"issues", len(res.Issues),
		"elapsed", time.Since(start),
	)
	return res, nil
}
