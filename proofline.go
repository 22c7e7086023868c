package proofline

import (
	"context"
	_ "embed"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/aretw0/proofline/internal/config"
	"github.com/aretw0/proofline/internal/logging"
	"github.com/aretw0/proofline/pkg/adapters/gemini"
	loamAdapter "github.com/aretw0/proofline/pkg/adapters/loam"
	"github.com/aretw0/proofline/pkg/adapters/memory"
	"github.com/aretw0/proofline/pkg/adapters/redis"
	"github.com/aretw0/proofline/pkg/analysis"
	"github.com/aretw0/proofline/pkg/domain"
	"github.com/aretw0/proofline/pkg/editor"
	"github.com/aretw0/proofline/pkg/input"
	"github.com/aretw0/proofline/pkg/persistence/middleware"
	"github.com/aretw0/proofline/pkg/ports"
	"github.com/aretw0/proofline/pkg/session"
)

//go:embed VERSION
var rawVersion string

// Version is the release of this build.
var Version = strings.TrimSpace(rawVersion)

// Config is the application configuration.
type Config = config.Config

// DefaultConfig returns the built-in configuration.
func DefaultConfig() *Config {
	return config.Default()
}

// LoadConfig reads a config file (or the default search path) and the environment.
func LoadConfig(path string) (*Config, error) {
	return config.Load(path)
}

// App wires the analyzer, stores and editor machines from one configuration.
type App struct {
	cfg       *Config
	analyzer  ports.Analyzer
	generator ports.Generator
	hooks     domain.LifecycleHooks
	logger    *slog.Logger
}

// Option configures an App.
type Option func(*App)

// WithAnalyzer replaces the Gemini-backed analysis client.
func WithAnalyzer(a ports.Analyzer) Option {
	return func(app *App) {
		app.analyzer = a
	}
}

// WithGenerator keeps the analysis client but swaps the model backend.
func WithGenerator(g ports.Generator) Option {
	return func(app *App) {
		app.generator = g
	}
}

// WithLifecycleHooks registers observers on every machine the App creates.
func WithLifecycleHooks(hooks domain.LifecycleHooks) Option {
	return func(app *App) {
		app.hooks = app.hooks.Merge(hooks)
	}
}

// WithLogger sets a custom structured logger.
func WithLogger(logger *slog.Logger) Option {
	return func(app *App) {
		app.logger = logger
	}
}

// New validates cfg and builds the App. A nil cfg means DefaultConfig.
// The Gemini client is created lazily, so a missing API key only shows up as
// failed analyses.
func New(cfg *Config, opts ...Option) (*App, error) {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	app := &App{cfg: cfg}
	for _, opt := range opts {
		opt(app)
	}
	if app.logger == nil {
		app.logger = logging.NewNop()
	}

	if app.analyzer == nil {
		if app.generator == nil {
			genOpts := []gemini.Option{gemini.WithAPIKey(cfg.APIKey()), gemini.WithLogger(app.logger)}
			if cfg.Model != "" {
				genOpts = append(genOpts, gemini.WithModel(cfg.Model))
			}
			app.generator = gemini.New(genOpts...)
		}
		app.analyzer = analysis.New(app.generator,
			analysis.WithModel(cfg.Model),
			analysis.WithLogger(app.logger),
		)
	}
	return app, nil
}

// Config returns the configuration the App was built with.
func (a *App) Config() *Config {
	return a.cfg
}

// Analyzer returns the analysis client shared by all machines.
func (a *App) Analyzer() ports.Analyzer {
	return a.analyzer
}

// Logger returns the App logger.
func (a *App) Logger() *slog.Logger {
	return a.logger
}

// Sanitizer returns the input policy from the configuration.
func (a *App) Sanitizer() input.Sanitizer {
	return input.Sanitizer{MaxSize: a.cfg.Input.MaxSize}
}

// NewMachine creates a standalone editor machine (terminal editor, one-shot check).
func (a *App) NewMachine(sessionID string, opts ...editor.Option) *editor.Machine {
	base := []editor.Option{
		editor.WithLogger(a.logger),
		editor.WithLifecycleHooks(a.hooks),
		editor.WithTimeout(a.cfg.Analysis.Timeout),
	}
	return editor.New(sessionID, a.analyzer, append(base, opts...)...)
}

// Backend is the session store selected by the configuration.
type Backend struct {
	Store  ports.StateStore
	Locker ports.DistributedLocker // nil for the in-memory store
	Close  func() error
}

// OpenBackend connects to redis when store.redis_url is set and falls back to
// an in-memory store otherwise. Snapshots are sealed with AES-GCM when encryption keys are configured.
func (a *App) OpenBackend(ctx context.Context) (*Backend, error) {
	b, err := a.openStore(ctx)
	if err != nil {
		return nil, err
	}

	keys, err := a.cfg.EncryptionKeys()
	if err != nil {
		_ = b.Close()
		return nil, err
	}
	if len(keys) > 0 {
		mw, err := middleware.NewEncryptionMiddleware(middleware.EncryptionConfig{
			ActiveKey:    keys[0],
			FallbackKeys: keys[1:],
		})
		if err != nil {
			_ = b.Close()
			return nil, err
		}
		b.Store = middleware.Chain(b.Store, mw)
		a.logger.Info("Session snapshots are encrypted", "fallback_keys", len(keys)-1)
	}
	return b, nil
}

func (a *App) openStore(ctx context.Context) (*Backend, error) {
	if a.cfg.Store.RedisURL == "" {
		a.logger.Info("Using in-memory session store")
		return &Backend{Store: memory.NewStore(), Close: func() error { return nil }}, nil
	}

	store, err := redis.New(a.cfg.Store.RedisURL,
		redis.WithTTL(a.cfg.Store.SessionTTL),
		redis.WithPrefix(a.cfg.Store.Prefix),
	)
	if err != nil {
		return nil, err
	}
	if err := store.Ping(ctx); err != nil {
		_ = store.Close()
		return nil, fmt.Errorf("redis unreachable: %w", err)
	}

	a.logger.Info("Using redis session store", "prefix", store.Prefix(), "ttl", a.cfg.Store.SessionTTL)
	return &Backend{
		Store:  store,
		Locker: redis.NewLocker(store.Client(), store.Prefix()),
		Close:  store.Close,
	}, nil
}

// NewSessionManager builds a session manager over b with the App's analyzer,
// hooks and timeout.
func (a *App) NewSessionManager(b *Backend, opts ...session.Option) *session.Manager {
	base := []session.Option{
		session.WithLogger(a.logger),
		session.WithLifecycleHooks(a.hooks),
		session.WithMachineOptions(editor.WithTimeout(a.cfg.Analysis.Timeout)),
	}
	if b.Locker != nil {
		base = append(base, session.WithLocker(b.Locker))
	}
	return session.NewManager(b.Store, a.analyzer, append(base, opts...)...)
}

// OpenWorkspace opens the document workspace at workspace.dir.
func (a *App) OpenWorkspace() (*loamAdapter.Workspace, error) {
	return loamAdapter.Open(a.cfg.Workspace.Dir)
}

// ExportDocument builds the workspace document for the current draft of st.
// applied is the number of corrections taken since the analysis.
func ExportDocument(draftID string, st *domain.State, applied int) ports.Document {
	doc := ports.Document{
		ID:      loamAdapter.ExportID(draftID),
		Content: st.InputText,
		Meta: ports.DocumentMeta{
			Title:         draftID,
			Source:        draftID,
			AppliedIssues: applied,
			PendingIssues: st.PendingIssues(),
			ExportedAt:    time.Now().UTC().Truncate(time.Second),
		},
	}
	if st.Result != nil {
		doc.Meta.Tone = st.Result.Statistics.Tone
		doc.Meta.ReadabilityScore = st.Result.Statistics.ReadabilityScore
	}
	return doc
}
