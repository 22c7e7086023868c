package domain

import (
	"context"
	"time"
)

// EventType defines the category of the event.
type EventType string

const (
	EventTextEdited        EventType = "text_edited"
	EventCleared           EventType = "cleared"
	EventAnalysisStarted   EventType = "analysis_started"
	EventAnalysisSucceeded EventType = "analysis_succeeded"
	EventAnalysisFailed    EventType = "analysis_failed"
	EventCorrectionApplied EventType = "correction_applied"
	EventRestored          EventType = "restored"
)

// EventBase contains common fields for all events.
type EventBase struct {
	Timestamp time.Time `json:"timestamp"`
	Type      EventType `json:"type"`
	SessionID string    `json:"session_id"`
}

// TransitionEvent is emitted after every accepted state mutation.
// State is a snapshot taken after the mutation.
type TransitionEvent struct {
	EventBase
	Previous *State `json:"-"`
	State    *State `json:"state"`
}

// AnalysisEvent describes the start or completion of an analysis.
type AnalysisEvent struct {
	EventBase
	TextLength int           `json:"text_length"`
	IssueCount int           `json:"issue_count,omitempty"`
	Duration   time.Duration `json:"duration,omitempty"`
	Kind       ErrorKind     `json:"kind,omitempty"`
	Err        error         `json:"-"`
}

// CorrectionEvent describes one applied correction.
type CorrectionEvent struct {
	EventBase
	Issue       Issue `json:"issue"`
	TextChanged bool  `json:"text_changed"`
	Remaining   int   `json:"remaining"`
}

// LifecycleHooks defines callbacks for editor observability.
// Hooks run synchronously after the state lock is released; they must not block.
type LifecycleHooks struct {
	OnTransition        func(context.Context, *TransitionEvent)
	OnAnalysisStart     func(context.Context, *AnalysisEvent)
	OnAnalysisFinish    func(context.Context, *AnalysisEvent)
	OnCorrectionApplied func(context.Context, *CorrectionEvent)
}

// Merge combines two hook sets; both callbacks run, h first.
func (h LifecycleHooks) Merge(other LifecycleHooks) LifecycleHooks {
	return LifecycleHooks{
		OnTransition:        chain(h.OnTransition, other.OnTransition),
		OnAnalysisStart:     chain(h.OnAnalysisStart, other.OnAnalysisStart),
		OnAnalysisFinish:    chain(h.OnAnalysisFinish, other.OnAnalysisFinish),
		OnCorrectionApplied: chain(h.OnCorrectionApplied, other.OnCorrectionApplied),
	}
}

func chain[E any](a, b func(context.Context, E)) func(context.Context, E) {
	switch {
	case a == nil:
		return b
	case b == nil:
		return a
	}
	return func(ctx context.Context, e E) {
		a(ctx, e)
		b(ctx, e)
	}
}
