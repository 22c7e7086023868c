package editor

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/aretw0/proofline/internal/logging"
	"github.com/aretw0/proofline/pkg/correction"
	"github.com/aretw0/proofline/pkg/domain"
	"github.com/aretw0/proofline/pkg/ports"
	"golang.org/x/sync/semaphore"
)

// Machine is the state machine of one editing session.
// It is safe for concurrent use.
type Machine struct {
	analyzer ports.Analyzer
	hooks    domain.LifecycleHooks
	logger   *slog.Logger
	timeout  time.Duration

	// gate admits at most one outstanding analysis.
	gate *semaphore.Weighted

	// emitMu orders hook emission the same as mutations.
	// Hooks must not call mutators of the machine that emitted them.
	emitMu sync.Mutex

	mu    sync.Mutex
	state *domain.State
}

// New creates an Idle machine for the given session.
func New(sessionID string, analyzer ports.Analyzer, opts ...Option) *Machine {
	return newMachine(domain.NewState(sessionID), analyzer, opts...)
}

// Restore rebuilds a machine from a persisted snapshot.
// A snapshot taken while an analysis was outstanding cannot resume it; the
// restored session reports the analysis as failed and keeps any prior result.
func Restore(state *domain.State, analyzer ports.Analyzer, opts ...Option) *Machine {
	st := state.Clone()
	if st.IsAnalyzing {
		st.IsAnalyzing = false
		st.Error = domain.InterruptedAnalysisError
	}
	return newMachine(st, analyzer, opts...)
}

func newMachine(state *domain.State, analyzer ports.Analyzer, opts ...Option) *Machine {
	m := &Machine{
		analyzer: analyzer,
		logger:   logging.NewNop(),
		gate:     semaphore.NewWeighted(1),
		state:    state,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// SessionID returns the session identifier.
func (m *Machine) SessionID() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state.SessionID
}

// Snapshot returns a deep copy of the current state.
func (m *Machine) Snapshot() *domain.State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state.Clone()
}

// CorrectedText returns the service's fully corrected text of the last successful
// analysis. It reflects the request-time draft, not corrections applied since.
func (m *Machine) CorrectedText() (string, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.state.Result == nil {
		return "", false
	}
	return m.state.Result.CorrectedFullText, true
}

// EditText replaces the draft. Valid in every state; it never touches the
// result, the error or an outstanding analysis.
func (m *Machine) EditText(ctx context.Context, text string) {
	_ = m.transition(ctx, domain.EventTextEdited, func(st *domain.State) error {
		st.InputText = text
		return nil
	}, nil)
}

// Clear drops the draft, the result and the error. It is idempotent and does not
// cancel an outstanding analysis, whose completion still lands afterwards.
func (m *Machine) Clear(ctx context.Context) {
	_ = m.transition(ctx, domain.EventCleared, func(st *domain.State) error {
		st.InputText = ""
		st.Result = nil
		st.Error = ""
		return nil
	}, nil)
}

// StartAnalysis admits a new analysis of the current draft and runs it in the
// background. It returns domain.ErrEmptyInput for a blank draft and
// domain.ErrAnalysisInFlight while another analysis is outstanding; in both cases
// the state is unchanged and no request is issued.
//
// The request outlives ctx: cancelling ctx only affects values carried by it.
func (m *Machine) StartAnalysis(ctx context.Context) (*Pending, error) {
	var text string
	pending := newPending()

	err := m.transition(ctx, domain.EventAnalysisStarted, func(st *domain.State) error {
		if domain.IsBlank(st.InputText) {
			return domain.ErrEmptyInput
		}
		if !m.gate.TryAcquire(1) {
			return domain.ErrAnalysisInFlight
		}
		st.IsAnalyzing = true
		st.Error = ""
		text = st.InputText
		return nil
	}, func(_, next *domain.State) {
		if m.hooks.OnAnalysisStart != nil {
			m.hooks.OnAnalysisStart(ctx, &domain.AnalysisEvent{
				EventBase:  m.eventBase(domain.EventAnalysisStarted, next),
				TextLength: domain.CountCharacters(text),
			})
		}
	})
	if err != nil {
		m.logger.Debug("analysis.rejected", "session_id", m.SessionID(), "reason", err)
		return nil, err
	}

	m.logger.Info("analysis.started", "session_id", m.SessionID(), "chars", domain.CountCharacters(text))

	runCtx := context.WithoutCancel(ctx)
	go m.run(runCtx, text, pending)
	return pending, nil
}

// Analyze starts an analysis and waits for its completion.
// The returned error is the rejection or the underlying analysis failure; the
// user-facing message is recorded in the state either way.
func (m *Machine) Analyze(ctx context.Context) (*domain.AnalysisResult, error) {
	p, err := m.StartAnalysis(ctx)
	if err != nil {
		return nil, err
	}
	return p.Wait(ctx)
}

// ApplyCorrection applies the pending issue with the given ID to the draft and
// removes it from the result. The rest of the result is left untouched.
func (m *Machine) ApplyCorrection(ctx context.Context, issueID int) (correction.Outcome, error) {
	var out correction.Outcome
	err := m.transition(ctx, domain.EventCorrectionApplied, func(st *domain.State) error {
		var err error
		out, err = correction.Apply(st, issueID)
		return err
	}, func(_, next *domain.State) {
		if m.hooks.OnCorrectionApplied != nil {
			m.hooks.OnCorrectionApplied(ctx, &domain.CorrectionEvent{
				EventBase:   m.eventBase(domain.EventCorrectionApplied, next),
				Issue:       out.Issue,
				TextChanged: out.TextChanged,
				Remaining:   next.PendingIssues(),
			})
		}
	})
	if err != nil {
		return out, err
	}

	if !out.TextChanged {
		m.logger.Debug("correction.not_found_in_text", "session_id", m.SessionID(), "issue_id", issueID)
	}
	return out, nil
}

// ApplyAll applies every pending issue in order in a single transition.
// OnCorrectionApplied still fires once per issue.
func (m *Machine) ApplyAll(ctx context.Context) ([]correction.Outcome, error) {
	var outcomes []correction.Outcome
	err := m.transition(ctx, domain.EventCorrectionApplied, func(st *domain.State) error {
		if st.Result == nil {
			return domain.ErrNoResult
		}
		outcomes = correction.ApplyAll(st)
		return nil
	}, func(_, next *domain.State) {
		if m.hooks.OnCorrectionApplied == nil {
			return
		}
		for i, out := range outcomes {
			m.hooks.OnCorrectionApplied(ctx, &domain.CorrectionEvent{
				EventBase:   m.eventBase(domain.EventCorrectionApplied, next),
				Issue:       out.Issue,
				TextChanged: out.TextChanged,
				Remaining:   len(outcomes) - i - 1 + next.PendingIssues(),
			})
		}
	})
	return outcomes, err
}

func (m *Machine) run(ctx context.Context, text string, p *Pending) {
	if m.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, m.timeout)
		defer cancel()
	}

	res, err := m.invoke(ctx, text)
	if err == nil && res == nil {
		err = &domain.AnalysisError{Op: "analyze", Kind: domain.KindMalformedResponse, Err: errors.New("analyzer returned no result")}
	}

	if err != nil {
		m.failed(ctx, err, p)
	} else {
		m.succeeded(ctx, res, p)
	}
}

// invoke reports an analyzer panic as a transport failure, so every admitted
// analysis ends in a completion event.
func (m *Machine) invoke(ctx context.Context, text string) (res *domain.AnalysisResult, err error) {
	defer func() {
		if r := recover(); r != nil {
			res = nil
			err = &domain.AnalysisError{Op: "analyze", Kind: domain.KindTransport, Err: fmt.Errorf("analyzer panic: %v", r)}
		}
	}()
	return m.analyzer.Analyze(ctx, text)
}

func (m *Machine) succeeded(ctx context.Context, res *domain.AnalysisResult, p *Pending) {
	_ = m.transition(ctx, domain.EventAnalysisSucceeded, func(st *domain.State) error {
		st.Result = res.Clone()
		st.IsAnalyzing = false
		m.gate.Release(1)
		return nil
	}, func(_, next *domain.State) {
		if m.hooks.OnAnalysisFinish != nil {
			m.hooks.OnAnalysisFinish(ctx, &domain.AnalysisEvent{
				EventBase:  m.eventBase(domain.EventAnalysisSucceeded, next),
				TextLength: domain.CountCharacters(res.OriginalText),
				IssueCount: len(res.Issues),
				Duration:   time.Since(p.StartedAt),
			})
		}
	})

	m.logger.Info("analysis.succeeded",
		"session_id", m.SessionID(),
		"issues", len(res.Issues),
		"duration", time.Since(p.StartedAt),
	)
	p.resolve(res.Clone(), nil)
}

// failed records the static user-facing message. The previous result, if any,
// stays visible.
func (m *Machine) failed(ctx context.Context, cause error, p *Pending) {
	kind := domain.KindOf(cause)
	if kind == "" {
		kind = domain.KindTransport
	}

	_ = m.transition(ctx, domain.EventAnalysisFailed, func(st *domain.State) error {
		st.Error = domain.UserFacingAnalysisError
		st.IsAnalyzing = false
		m.gate.Release(1)
		return nil
	}, func(_, next *domain.State) {
		if m.hooks.OnAnalysisFinish != nil {
			m.hooks.OnAnalysisFinish(ctx, &domain.AnalysisEvent{
				EventBase: m.eventBase(domain.EventAnalysisFailed, next),
				Duration:  time.Since(p.StartedAt),
				Kind:      kind,
				Err:       cause,
			})
		}
	})

	m.logger.Error("analysis.failed",
		"session_id", m.SessionID(),
		"kind", kind,
		"error", cause,
		"duration", time.Since(p.StartedAt),
	)
	p.resolve(nil, cause)
}

// transition applies fn to the live state under the lock. When fn returns an
// error the state is rolled back and nothing is emitted. Otherwise OnTransition
// and then after run with the before and after snapshots.
func (m *Machine) transition(ctx context.Context, typ domain.EventType, fn func(*domain.State) error, after func(prev, next *domain.State)) error {
	m.emitMu.Lock()
	defer m.emitMu.Unlock()

	m.mu.Lock()
	prev := m.state.Clone()
	if err := fn(m.state); err != nil {
		m.state = prev
		m.mu.Unlock()
		return err
	}
	m.state.UpdatedAt = time.Now().UTC()
	next := m.state.Clone()
	m.mu.Unlock()

	if m.hooks.OnTransition != nil {
		m.hooks.OnTransition(ctx, &domain.TransitionEvent{
			EventBase: m.eventBase(typ, next),
			Previous:  prev,
			State:     next,
		})
	}
	if after != nil {
		after(prev, next)
	}
	return nil
}

func (m *Machine) eventBase(typ domain.EventType, st *domain.State) domain.EventBase {
	return domain.EventBase{
		Timestamp: st.UpdatedAt,
		Type:      typ,
		SessionID: st.SessionID,
	}
}
