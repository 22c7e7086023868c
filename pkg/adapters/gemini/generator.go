package gemini

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"sync"

	"github.com/aretw0/proofline/internal/logging"
	"github.com/aretw0/proofline/pkg/ports"
	"google.golang.org/genai"
)

// DefaultModel is used when neither the request nor the generator names one.
const DefaultModel = "gemini-3-flash-preview"

// Environment variables consulted for the API key, in order.
var APIKeyEnv = []string{"GEMINI_API_KEY", "API_KEY"}

// Generator implements ports.Generator with the Gemini API.
//
// The SDK client is created on first use, so a missing or invalid key surfaces
// as a failed call rather than a startup error.
type Generator struct {
	apiKey  string
	model   string
	baseURL string
	logger  *slog.Logger

	mu     sync.Mutex
	client *genai.Client
}

var _ ports.Generator = (*Generator)(nil)

// Option configures the Generator.
type Option func(*Generator)

// WithAPIKey sets the key explicitly instead of reading the environment.
func WithAPIKey(key string) Option {
	return func(g *Generator) {
		g.apiKey = key
	}
}

// WithModel sets the default model.
func WithModel(model string) Option {
	return func(g *Generator) {
		g.model = model
	}
}

// WithBaseURL points the client at another endpoint, such as a proxy.
func WithBaseURL(u string) Option {
	return func(g *Generator) {
		g.baseURL = u
	}
}

// WithLogger configures the structured logger.
func WithLogger(logger *slog.Logger) Option {
	return func(g *Generator) {
		g.logger = logger
	}
}

// New creates a Gemini generator. The key is read from the environment at
// construction time unless WithAPIKey is given.
func New(opts ...Option) *Generator {
	g := &Generator{
		apiKey: LookupAPIKey(),
		model:  DefaultModel,
		logger: logging.NewNop(),
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// LookupAPIKey returns the first non-empty key from APIKeyEnv.
func LookupAPIKey() string {
	for _, name := range APIKeyEnv {
		if v := os.Getenv(name); v != "" {
			return v
		}
	}
	return ""
}

// Generate sends one structured-output request and returns the response text.
func (g *Generator) Generate(ctx context.Context, req ports.GenerateRequest) ([]byte, error) {
	client, err := g.sdk(ctx)
	if err != nil {
		return nil, err
	}

	schema, err := ConvertSchema(req.Schema)
	if err != nil {
		return nil, fmt.Errorf("convert schema: %w", err)
	}

	model := req.Model
	if model == "" {
		model = g.model
	}

	g.logger.Debug("gemini.generate", "model", model, "prompt_bytes", len(req.Prompt))

	resp, err := client.Models.GenerateContent(ctx, model, genai.Text(req.Prompt), &genai.GenerateContentConfig{
		ResponseMIMEType: "application/json",
		ResponseSchema:   schema,
	})
	if err != nil {
		return nil, fmt.Errorf("generate content: %w", err)
	}

	// An empty body is the caller's to classify, not a transport failure.
	return []byte(resp.Text()), nil
}

func (g *Generator) sdk(ctx context.Context) (*genai.Client, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.client != nil {
		return g.client, nil
	}

	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:      g.apiKey,
		Backend:     genai.BackendGeminiAPI,
		HTTPOptions: genai.HTTPOptions{BaseURL: g.baseURL},
	})
	if err != nil {
		return nil, fmt.Errorf("create gemini client: %w", err)
	}
	g.client = client
	return client, nil
}
