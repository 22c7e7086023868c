package editor

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/aretw0/proofline/pkg/domain"
	"github.com/aretw0/proofline/pkg/ports"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// stubAnalyzer counts calls and optionally blocks until released.
type stubAnalyzer struct {
	calls   atomic.Int32
	release chan struct{}
	result  func(text string) *domain.AnalysisResult
	err     error
}

func (s *stubAnalyzer) Analyze(_ context.Context, text string) (*domain.AnalysisResult, error) {
	s.calls.Add(1)
	if s.release != nil {
		<-s.release
	}
	if s.err != nil {
		return nil, s.err
	}
	return s.result(text), nil
}

func resultFor(issues ...domain.Issue) func(string) *domain.AnalysisResult {
	return func(text string) *domain.AnalysisResult {
		return &domain.AnalysisResult{
			OriginalText:      text,
			CorrectedFullText: "corrected: " + text,
			Issues:            issues,
			Statistics: domain.Statistics{
				WordCount:        domain.CountWords(text),
				CharacterCount:   domain.CountCharacters(text),
				ReadabilityScore: "Easy",
				Tone:             "Neutral",
			},
		}
	}
}

func waitDone(t *testing.T, p *Pending) {
	t.Helper()
	select {
	case <-p.Done():
	case <-time.After(2 * time.Second):
		t.Fatal("analysis did not complete")
	}
}

func TestMachine_InitialState(t *testing.T) {
	m := New("s1", &stubAnalyzer{})
	st := m.Snapshot()

	assert.Equal(t, "s1", st.SessionID)
	assert.Equal(t, domain.StatusIdle, st.Status())
	assert.Empty(t, st.InputText)
	assert.Nil(t, st.Result)
	assert.Empty(t, st.Error)
}

func TestMachine_EditText(t *testing.T) {
	m := New("s1", &stubAnalyzer{})
	m.EditText(context.Background(), "hello")
	assert.Equal(t, "hello", m.Snapshot().InputText)

	m.EditText(context.Background(), "")
	assert.Equal(t, "", m.Snapshot().InputText)
}

func TestMachine_StartAnalysis_BlankIsNoOp(t *testing.T) {
	an := &stubAnalyzer{result: resultFor()}
	m := New("s1", an)

	for _, text := range []string{"", "   ", "\n\t "} {
		m.EditText(context.Background(), text)
		before := m.Snapshot()

		p, err := m.StartAnalysis(context.Background())
		assert.ErrorIs(t, err, domain.ErrEmptyInput)
		assert.Nil(t, p)

		after := m.Snapshot()
		assert.Equal(t, before.InputText, after.InputText)
		assert.False(t, after.IsAnalyzing)
		assert.Nil(t, after.Result)
		assert.Empty(t, after.Error)
	}
	assert.Zero(t, an.calls.Load())
}

func TestMachine_Analyze_Success(t *testing.T) {
	an := &stubAnalyzer{result: resultFor(
		domain.Issue{ID: 0, Original: "go", Replacement: "goes", Category: domain.CategoryGrammar},
	)}
	m := New("s1", an)
	m.EditText(context.Background(), "He go to school.")

	res, err := m.Analyze(context.Background())
	require.NoError(t, err)
	require.NotNil(t, res)

	st := m.Snapshot()
	assert.False(t, st.IsAnalyzing)
	assert.Empty(t, st.Error)
	assert.Equal(t, domain.StatusSuccess, st.Status())
	require.NotNil(t, st.Result)
	assert.Equal(t, "He go to school.", st.Result.OriginalText)
	assert.Len(t, st.Result.Issues, 1)
	assert.Equal(t, int32(1), an.calls.Load())
}

func TestMachine_ScenarioA_AnalyzeThenApply(t *testing.T) {
	an := &stubAnalyzer{result: resultFor(
		domain.Issue{ID: 0, Original: "go", Replacement: "goes", Category: domain.CategoryGrammar},
	)}
	m := New("s1", an)
	m.EditText(context.Background(), "He go to school.")
	_, err := m.Analyze(context.Background())
	require.NoError(t, err)

	out, err := m.ApplyCorrection(context.Background(), 0)
	require.NoError(t, err)
	assert.True(t, out.TextChanged)

	st := m.Snapshot()
	assert.Equal(t, "He goes to school.", st.InputText)
	assert.Empty(t, st.Result.Issues)
	assert.Equal(t, "He go to school.", st.Result.OriginalText)
	assert.Equal(t, "corrected: He go to school.", st.Result.CorrectedFullText)
	assert.Equal(t, domain.StatusSuccess, st.Status())
}

func TestMachine_ScenarioC_SecondStartRejected(t *testing.T) {
	an := &stubAnalyzer{release: make(chan struct{}), result: resultFor()}
	m := New("s1", an)
	m.EditText(context.Background(), "some text")

	p, err := m.StartAnalysis(context.Background())
	require.NoError(t, err)
	assert.True(t, m.Snapshot().IsAnalyzing)

	again, err := m.StartAnalysis(context.Background())
	assert.ErrorIs(t, err, domain.ErrAnalysisInFlight)
	assert.Nil(t, again)

	close(an.release)
	waitDone(t, p)

	assert.Equal(t, int32(1), an.calls.Load())
	assert.False(t, m.Snapshot().IsAnalyzing)
}

func TestMachine_ConcurrentStartsAdmitOne(t *testing.T) {
	an := &stubAnalyzer{release: make(chan struct{}), result: resultFor()}
	m := New("s1", an)
	m.EditText(context.Background(), "some text")

	var (
		wg       sync.WaitGroup
		admitted atomic.Int32
		rejected atomic.Int32
		pendings = make(chan *Pending, 16)
	)
	for range 16 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			p, err := m.StartAnalysis(context.Background())
			if err != nil {
				rejected.Add(1)
				return
			}
			admitted.Add(1)
			pendings <- p
		}()
	}
	wg.Wait()
	close(an.release)

	assert.Equal(t, int32(1), admitted.Load())
	assert.Equal(t, int32(15), rejected.Load())
	waitDone(t, <-pendings)
	assert.Equal(t, int32(1), an.calls.Load())
}

func TestMachine_ScenarioD_FailureKeepsResult(t *testing.T) {
	an := &stubAnalyzer{result: resultFor(domain.Issue{ID: 0, Original: "teh", Replacement: "the"})}
	m := New("s1", an)
	m.EditText(context.Background(), "teh cat")
	_, err := m.Analyze(context.Background())
	require.NoError(t, err)
	prior := m.Snapshot().Result

	transport := &domain.AnalysisError{Op: "analyze", Kind: domain.KindTransport, Err: errors.New("dial tcp: no route to host")}
	an.err = transport

	_, err = m.Analyze(context.Background())
	require.Error(t, err)
	assert.True(t, domain.IsKind(err, domain.KindTransport))

	st := m.Snapshot()
	assert.False(t, st.IsAnalyzing)
	assert.Equal(t, domain.UserFacingAnalysisError, st.Error)
	assert.Equal(t, domain.StatusFailed, st.Status())
	assert.Equal(t, prior, st.Result)
}

func TestMachine_FailureWithoutPriorResult(t *testing.T) {
	an := &stubAnalyzer{err: &domain.AnalysisError{Op: "analyze", Kind: domain.KindMalformedResponse}}
	m := New("s1", an)
	m.EditText(context.Background(), "text")

	_, err := m.Analyze(context.Background())
	require.Error(t, err)

	st := m.Snapshot()
	assert.Nil(t, st.Result)
	assert.Equal(t, domain.UserFacingAnalysisError, st.Error)
}

func TestMachine_StartClearsPreviousError(t *testing.T) {
	an := &stubAnalyzer{err: errors.New("boom")}
	m := New("s1", an)
	m.EditText(context.Background(), "text")
	_, _ = m.Analyze(context.Background())
	require.NotEmpty(t, m.Snapshot().Error)

	an.err = nil
	an.result = resultFor()
	an.release = make(chan struct{})

	p, err := m.StartAnalysis(context.Background())
	require.NoError(t, err)
	st := m.Snapshot()
	assert.Empty(t, st.Error)
	assert.Equal(t, domain.StatusAnalyzing, st.Status())

	close(an.release)
	waitDone(t, p)
	assert.Equal(t, domain.StatusSuccess, m.Snapshot().Status())
}

func TestMachine_AnalyzerPanicFails(t *testing.T) {
	m := New("s1", ports.AnalyzerFunc(func(context.Context, string) (*domain.AnalysisResult, error) {
		panic("unexpected")
	}))
	m.EditText(context.Background(), "text")

	_, err := m.Analyze(context.Background())
	require.Error(t, err)
	assert.True(t, domain.IsKind(err, domain.KindTransport))
	assert.False(t, m.Snapshot().IsAnalyzing)

	// The gate was released.
	_, err = m.Analyze(context.Background())
	require.Error(t, err)
}

func TestMachine_NilResultIsMalformed(t *testing.T) {
	m := New("s1", ports.AnalyzerFunc(func(context.Context, string) (*domain.AnalysisResult, error) {
		return nil, nil
	}))
	m.EditText(context.Background(), "text")

	_, err := m.Analyze(context.Background())
	assert.True(t, domain.IsKind(err, domain.KindMalformedResponse))
}

func TestMachine_Clear(t *testing.T) {
	an := &stubAnalyzer{result: resultFor(domain.Issue{ID: 0, Original: "a", Replacement: "b"})}
	m := New("s1", an)
	m.EditText(context.Background(), "a text")
	_, err := m.Analyze(context.Background())
	require.NoError(t, err)

	m.Clear(context.Background())
	st := m.Snapshot()
	assert.Empty(t, st.InputText)
	assert.Nil(t, st.Result)
	assert.Empty(t, st.Error)
	assert.Equal(t, domain.StatusIdle, st.Status())

	m.Clear(context.Background())
	again := m.Snapshot()
	assert.Equal(t, st.InputText, again.InputText)
	assert.Equal(t, st.Result, again.Result)
	assert.Equal(t, st.Error, again.Error)
}

func TestMachine_ClearDuringAnalysisStillLands(t *testing.T) {
	an := &stubAnalyzer{release: make(chan struct{}), result: resultFor()}
	m := New("s1", an)
	m.EditText(context.Background(), "first draft")

	p, err := m.StartAnalysis(context.Background())
	require.NoError(t, err)

	m.Clear(context.Background())
	st := m.Snapshot()
	assert.Empty(t, st.InputText)
	assert.True(t, st.IsAnalyzing)

	close(an.release)
	waitDone(t, p)

	st = m.Snapshot()
	require.NotNil(t, st.Result)
	assert.Equal(t, "first draft", st.Result.OriginalText)
	assert.Empty(t, st.InputText)
}

func TestMachine_EditDuringAnalysisUsesSnapshot(t *testing.T) {
	an := &stubAnalyzer{release: make(chan struct{}), result: resultFor()}
	m := New("s1", an)
	m.EditText(context.Background(), "before")

	p, err := m.StartAnalysis(context.Background())
	require.NoError(t, err)
	m.EditText(context.Background(), "after")

	close(an.release)
	waitDone(t, p)

	st := m.Snapshot()
	assert.Equal(t, "after", st.InputText)
	assert.Equal(t, "before", st.Result.OriginalText)
}

func TestMachine_ApplyCorrection_Errors(t *testing.T) {
	an := &stubAnalyzer{result: resultFor(domain.Issue{ID: 0, Original: "x", Replacement: "y"})}
	m := New("s1", an)

	_, err := m.ApplyCorrection(context.Background(), 0)
	assert.ErrorIs(t, err, domain.ErrNoResult)

	m.EditText(context.Background(), "x marks")
	_, err = m.Analyze(context.Background())
	require.NoError(t, err)

	_, err = m.ApplyCorrection(context.Background(), 7)
	assert.ErrorIs(t, err, domain.ErrIssueNotFound)
	assert.Equal(t, "x marks", m.Snapshot().InputText)
	assert.Len(t, m.Snapshot().Result.Issues, 1)
}

func TestMachine_ApplyCorrection_StableIDs(t *testing.T) {
	an := &stubAnalyzer{result: resultFor(
		domain.Issue{ID: 0, Original: "teh", Replacement: "the"},
		domain.Issue{ID: 1, Original: "dgo", Replacement: "dog"},
		domain.Issue{ID: 2, Original: "jmups", Replacement: "jumps"},
	)}
	m := New("s1", an)
	m.EditText(context.Background(), "teh dgo jmups")
	_, err := m.Analyze(context.Background())
	require.NoError(t, err)

	_, err = m.ApplyCorrection(context.Background(), 1)
	require.NoError(t, err)
	_, err = m.ApplyCorrection(context.Background(), 2)
	require.NoError(t, err)

	st := m.Snapshot()
	assert.Equal(t, "teh dog jumps", st.InputText)
	require.Len(t, st.Result.Issues, 1)
	assert.Equal(t, 0, st.Result.Issues[0].ID)
}

func TestMachine_ApplyAll(t *testing.T) {
	an := &stubAnalyzer{result: resultFor(
		domain.Issue{ID: 0, Original: "teh", Replacement: "the"},
		domain.Issue{ID: 1, Original: "missing", Replacement: "gone"},
		domain.Issue{ID: 2, Original: "dgo", Replacement: "dog"},
	)}

	var (
		remaining []int
		changed   []bool
		kinds     []domain.EventType
	)
	m := New("s1", an, WithLifecycleHooks(domain.LifecycleHooks{
		OnTransition: func(_ context.Context, e *domain.TransitionEvent) {
			kinds = append(kinds, e.Type)
		},
		OnCorrectionApplied: func(_ context.Context, e *domain.CorrectionEvent) {
			remaining = append(remaining, e.Remaining)
			changed = append(changed, e.TextChanged)
		},
	}))

	_, err := m.ApplyAll(context.Background())
	assert.ErrorIs(t, err, domain.ErrNoResult)

	m.EditText(context.Background(), "teh dgo")
	_, err = m.Analyze(context.Background())
	require.NoError(t, err)
	kinds = nil

	outs, err := m.ApplyAll(context.Background())
	require.NoError(t, err)
	require.Len(t, outs, 3)
	assert.Equal(t, []int{0, 1, 2}, []int{outs[0].Issue.ID, outs[1].Issue.ID, outs[2].Issue.ID})

	st := m.Snapshot()
	assert.Equal(t, "the dog", st.InputText)
	assert.Empty(t, st.Result.Issues)
	assert.Equal(t, []domain.EventType{domain.EventCorrectionApplied}, kinds, "one transition for the batch")
	assert.Equal(t, []int{2, 1, 0}, remaining)
	assert.Equal(t, []bool{true, false, true}, changed)

	outs, err = m.ApplyAll(context.Background())
	require.NoError(t, err)
	assert.Empty(t, outs)
}

func TestMachine_CorrectedText(t *testing.T) {
	an := &stubAnalyzer{result: resultFor()}
	m := New("s1", an)

	_, ok := m.CorrectedText()
	assert.False(t, ok)

	m.EditText(context.Background(), "draft")
	_, err := m.Analyze(context.Background())
	require.NoError(t, err)

	text, ok := m.CorrectedText()
	assert.True(t, ok)
	assert.Equal(t, "corrected: draft", text)
}

func TestMachine_SnapshotIsolated(t *testing.T) {
	an := &stubAnalyzer{result: resultFor(domain.Issue{ID: 0, Original: "a", Replacement: "b"})}
	m := New("s1", an)
	m.EditText(context.Background(), "a")
	_, err := m.Analyze(context.Background())
	require.NoError(t, err)

	snap := m.Snapshot()
	snap.InputText = "mutated"
	snap.Result.Issues = nil

	st := m.Snapshot()
	assert.Equal(t, "a", st.InputText)
	assert.Len(t, st.Result.Issues, 1)
}

func TestMachine_HooksOrder(t *testing.T) {
	an := &stubAnalyzer{result: resultFor(domain.Issue{ID: 0, Original: "go", Replacement: "goes"})}

	var (
		mu     sync.Mutex
		events []string
	)
	record := func(s string) {
		mu.Lock()
		defer mu.Unlock()
		events = append(events, s)
	}

	var (
		finish     *domain.AnalysisEvent
		firstCount = -1
	)
	hooks := domain.LifecycleHooks{
		OnTransition: func(_ context.Context, e *domain.TransitionEvent) {
			record("transition:" + string(e.Type))
		},
		OnAnalysisStart: func(_ context.Context, e *domain.AnalysisEvent) {
			record("start")
		},
		OnAnalysisFinish: func(_ context.Context, e *domain.AnalysisEvent) {
			mu.Lock()
			finish = e
			if firstCount < 0 {
				firstCount = e.IssueCount
			}
			mu.Unlock()
			record("finish")
		},
		OnCorrectionApplied: func(_ context.Context, e *domain.CorrectionEvent) {
			assert.Equal(t, 0, e.Remaining)
			assert.True(t, e.TextChanged)
			record("correction")
		},
	}

	m := New("s1", an, WithLifecycleHooks(hooks))
	m.EditText(context.Background(), "He go")
	_, err := m.Analyze(context.Background())
	require.NoError(t, err)
	_, err = m.ApplyCorrection(context.Background(), 0)
	require.NoError(t, err)

	p, err := m.StartAnalysis(context.Background())
	require.NoError(t, err)
	waitDone(t, p)

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, []string{
		"transition:text_edited",
		"transition:analysis_started",
		"start",
		"transition:analysis_succeeded",
		"finish",
		"transition:correction_applied",
		"correction",
		"transition:analysis_started",
		"start",
		"transition:analysis_succeeded",
		"finish",
	}, events)
	require.NotNil(t, finish)
	assert.Equal(t, 1, firstCount)
	assert.Equal(t, "s1", finish.SessionID)
}

func TestMachine_RejectedStartEmitsNothing(t *testing.T) {
	var count atomic.Int32
	m := New("s1", &stubAnalyzer{}, WithLifecycleHooks(domain.LifecycleHooks{
		OnTransition: func(context.Context, *domain.TransitionEvent) { count.Add(1) },
	}))

	_, err := m.StartAnalysis(context.Background())
	assert.ErrorIs(t, err, domain.ErrEmptyInput)
	assert.Zero(t, count.Load())
}

func TestMachine_Timeout(t *testing.T) {
	m := New("s1", ports.AnalyzerFunc(func(ctx context.Context, _ string) (*domain.AnalysisResult, error) {
		<-ctx.Done()
		return nil, &domain.AnalysisError{Op: "analyze", Kind: domain.KindTransport, Err: ctx.Err()}
	}), WithTimeout(20*time.Millisecond))
	m.EditText(context.Background(), "text")

	_, err := m.Analyze(context.Background())
	require.Error(t, err)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Equal(t, domain.UserFacingAnalysisError, m.Snapshot().Error)
}

func TestMachine_AnalysisOutlivesCallerContext(t *testing.T) {
	an := &stubAnalyzer{release: make(chan struct{}), result: resultFor()}
	m := New("s1", an)
	m.EditText(context.Background(), "text")

	ctx, cancel := context.WithCancel(context.Background())
	p, err := m.StartAnalysis(ctx)
	require.NoError(t, err)
	cancel()

	_, err = p.Wait(ctx)
	assert.ErrorIs(t, err, context.Canceled)

	close(an.release)
	waitDone(t, p)
	assert.Equal(t, domain.StatusSuccess, m.Snapshot().Status())
}

func TestRestore(t *testing.T) {
	t.Run("Settled", func(t *testing.T) {
		st := domain.NewState("s9")
		st.InputText = "draft"
		st.Result = resultFor()("draft")

		m := Restore(st, &stubAnalyzer{})
		got := m.Snapshot()
		assert.Equal(t, "s9", got.SessionID)
		assert.Equal(t, "draft", got.InputText)
		assert.Equal(t, domain.StatusSuccess, got.Status())
	})

	t.Run("Interrupted", func(t *testing.T) {
		st := domain.NewState("s9")
		st.InputText = "draft"
		st.IsAnalyzing = true
		st.Result = resultFor()("older")

		m := Restore(st, &stubAnalyzer{result: resultFor()})
		got := m.Snapshot()
		assert.False(t, got.IsAnalyzing)
		assert.Equal(t, domain.InterruptedAnalysisError, got.Error)
		assert.Equal(t, "older", got.Result.OriginalText)

		// A new analysis can be admitted.
		_, err := m.Analyze(context.Background())
		require.NoError(t, err)
		assert.Empty(t, m.Snapshot().Error)
	})
}
