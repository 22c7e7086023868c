package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/aretw0/proofline/internal/logging"
	"github.com/aretw0/proofline/pkg/domain"
	"github.com/aretw0/proofline/pkg/editor"
	"github.com/aretw0/proofline/pkg/ports"
	"github.com/google/uuid"
)

// DefaultLockTTL bounds how long a crashed replica can hold a session lock.
const DefaultLockTTL = 30 * time.Second

// lockEntry holds the mutex and the reference count.
type lockEntry struct {
	mu   sync.Mutex
	refs int
}

// Manager owns the live editor machines of a process and keeps their snapshots
// in a StateStore. Every accepted transition is persisted.
// It uses reference counting to garbage collect unused locks.
type Manager struct {
	store    ports.StateStore
	analyzer ports.Analyzer

	mu    sync.Mutex            // Global lock for the maps
	locks map[string]*lockEntry // Map of active locks
	live  map[string]*editor.Machine

	locker      ports.DistributedLocker
	lockTTL     time.Duration
	hooks       domain.LifecycleHooks
	machineOpts []editor.Option
	newID       func() string
	logger      *slog.Logger
}

// Option configures the Manager.
type Option func(*Manager)

// WithLocker enables distributed locking.
func WithLocker(locker ports.DistributedLocker) Option {
	return func(m *Manager) {
		m.locker = locker
	}
}

// WithLockTTL sets the distributed lock expiry.
func WithLockTTL(ttl time.Duration) Option {
	return func(m *Manager) {
		if ttl > 0 {
			m.lockTTL = ttl
		}
	}
}

// WithLogger configures a logger for the Manager.
func WithLogger(logger *slog.Logger) Option {
	return func(m *Manager) {
		m.logger = logger
	}
}

// WithLifecycleHooks attaches hooks to every machine the manager creates or restores.
func WithLifecycleHooks(hooks domain.LifecycleHooks) Option {
	return func(m *Manager) {
		m.hooks = m.hooks.Merge(hooks)
	}
}

// WithMachineOptions passes extra options to every machine.
func WithMachineOptions(opts ...editor.Option) Option {
	return func(m *Manager) {
		m.machineOpts = append(m.machineOpts, opts...)
	}
}

// WithIDGenerator replaces the random session ID generator.
func WithIDGenerator(fn func() string) Option {
	return func(m *Manager) {
		m.newID = fn
	}
}

// NewManager creates a new session manager.
func NewManager(store ports.StateStore, analyzer ports.Analyzer, opts ...Option) *Manager {
	m := &Manager{
		store:    store,
		analyzer: analyzer,
		locks:    make(map[string]*lockEntry),
		live:     make(map[string]*editor.Machine),
		lockTTL:  DefaultLockTTL,
		newID:    uuid.NewString,
		logger:   logging.NewNop(), // Default to no-op
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Create starts a new Idle session and persists it immediately to reserve the ID.
func (m *Manager) Create(ctx context.Context) (*editor.Machine, error) {
	return m.GetOrCreate(ctx, m.newID())
}

// Get returns the live machine for sessionID, restoring it from the store when
// this process has not seen it yet. Returns domain.ErrSessionNotFound otherwise.
func (m *Manager) Get(ctx context.Context, sessionID string) (*editor.Machine, error) {
	if mc := m.lookup(sessionID); mc != nil {
		return mc, nil
	}

	var mc *editor.Machine
	err := m.WithLock(ctx, sessionID, func(ctx context.Context) error {
		if mc = m.lookup(sessionID); mc != nil {
			return nil
		}
		state, err := m.store.Load(ctx, sessionID)
		if err != nil {
			return err
		}
		mc, err = m.restore(ctx, sessionID, state)
		return err
	})
	return mc, err
}

// GetOrCreate returns the session, creating it when the store does not know it.
func (m *Manager) GetOrCreate(ctx context.Context, sessionID string) (*editor.Machine, error) {
	if mc := m.lookup(sessionID); mc != nil {
		return mc, nil
	}

	var mc *editor.Machine
	err := m.WithLock(ctx, sessionID, func(ctx context.Context) error {
		if mc = m.lookup(sessionID); mc != nil {
			return nil
		}

		state, err := m.store.Load(ctx, sessionID)
		if err == nil {
			mc, err = m.restore(ctx, sessionID, state)
			return err
		}
		if !errors.Is(err, domain.ErrSessionNotFound) {
			return fmt.Errorf("failed to check session existence: %w", err)
		}

		mc = m.build(func(opts ...editor.Option) *editor.Machine {
			return editor.New(sessionID, m.analyzer, opts...)
		})
		if err := m.store.Save(ctx, sessionID, mc.Snapshot()); err != nil {
			return fmt.Errorf("failed to initialize session: %w", err)
		}
		m.register(sessionID, mc)
		m.logger.Info("session.created", "session_id", sessionID)
		return nil
	})
	return mc, err
}

// Delete forgets the live machine and removes its snapshot.
// An analysis still outstanding completes against the detached machine.
func (m *Manager) Delete(ctx context.Context, sessionID string) error {
	return m.WithLock(ctx, sessionID, func(ctx context.Context) error {
		m.mu.Lock()
		_, wasLive := m.live[sessionID]
		delete(m.live, sessionID)
		m.mu.Unlock()

		if err := m.store.Delete(ctx, sessionID); err != nil {
			return err
		}
		if !wasLive {
			m.logger.Debug("session.deleted_cold", "session_id", sessionID)
		}
		return nil
	})
}

// List delegates to the store.
func (m *Manager) List(ctx context.Context) ([]string, error) {
	return m.store.List(ctx)
}

// Store returns the underlying state store.
func (m *Manager) Store() ports.StateStore {
	return m.store
}

// WithLock executes a function while holding the lock for the session.
func (m *Manager) WithLock(ctx context.Context, sessionID string, fn func(context.Context) error) error {
	entry := m.acquire(sessionID)
	entry.mu.Lock()
	defer func() {
		entry.mu.Unlock()
		m.release(sessionID)
	}()

	if m.locker != nil {
		unlock, err := m.locker.Lock(ctx, sessionID, m.lockTTL)
		if err != nil {
			return fmt.Errorf("failed to acquire distributed lock: %w", err)
		}
		defer func() {
			if err := unlock(context.WithoutCancel(ctx)); err != nil {
				m.logger.Warn("Failed to release distributed lock (will expire via TTL)",
					"session_id", sessionID,
					"err", err,
				)
			}
		}()
	}

	return fn(ctx)
}

func (m *Manager) restore(ctx context.Context, sessionID string, state *domain.State) (*editor.Machine, error) {
	if state.SessionID != sessionID {
		state = state.Clone()
		state.SessionID = sessionID
	}
	mc := m.build(func(opts ...editor.Option) *editor.Machine {
		return editor.Restore(state, m.analyzer, opts...)
	})
	snap := mc.Snapshot()

	if state.IsAnalyzing {
		m.logger.Warn("session.analysis_interrupted", "session_id", snap.SessionID)
		if err := m.store.Save(ctx, snap.SessionID, snap); err != nil {
			return nil, fmt.Errorf("failed to persist restored session: %w", err)
		}
	}

	m.register(snap.SessionID, mc)
	if m.hooks.OnTransition != nil {
		m.hooks.OnTransition(ctx, &domain.TransitionEvent{
			EventBase: domain.EventBase{Timestamp: time.Now().UTC(), Type: domain.EventRestored, SessionID: snap.SessionID},
			Previous:  state,
			State:     snap,
		})
	}
	m.logger.Info("session.restored", "session_id", snap.SessionID, "status", snap.Status())
	return mc, nil
}

// build wires persistence into a new machine. Snapshots are saved in transition
// order, and only while the machine is the registered one for its session.
func (m *Manager) build(construct func(opts ...editor.Option) *editor.Machine) *editor.Machine {
	var mc *editor.Machine
	persist := func(ctx context.Context, ev *domain.TransitionEvent) {
		if m.lookup(ev.SessionID) != mc {
			return
		}
		if err := m.store.Save(context.WithoutCancel(ctx), ev.SessionID, ev.State); err != nil {
			m.logger.Error("session.persist_failed",
				"session_id", ev.SessionID,
				"event", ev.Type,
				"err", err,
			)
		}
	}

	hooks := domain.LifecycleHooks{OnTransition: persist}.Merge(m.hooks)
	opts := []editor.Option{editor.WithLogger(m.logger), editor.WithLifecycleHooks(hooks)}
	mc = construct(append(opts, m.machineOpts...)...)
	return mc
}

func (m *Manager) lookup(sessionID string) *editor.Machine {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.live[sessionID]
}

func (m *Manager) register(sessionID string, mc *editor.Machine) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.live[sessionID] = mc
}

// acquire gets or creates a lock entry and increments its reference count.
// The caller MUST Lock the entry.mu, and then call release(sessionID) after unlocking.
func (m *Manager) acquire(sessionID string) *lockEntry {
	m.mu.Lock()
	defer m.mu.Unlock()

	entry, exists := m.locks[sessionID]
	if !exists {
		entry = &lockEntry{}
		m.locks[sessionID] = entry
	}
	entry.refs++
	return entry
}

// release decrements the reference count and deletes the entry if it reaches zero.
func (m *Manager) release(sessionID string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	entry, exists := m.locks[sessionID]
	if !exists {
		return
	}

	entry.refs--
	if entry.refs <= 0 {
		delete(m.locks, sessionID)
	}
}
