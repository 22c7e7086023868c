package domain

import "time"

// Status is the observable mode of an editing session.
// It is derived from State, never stored.
type Status string

const (
	StatusIdle      Status = "idle"      // No result, no error, not analyzing
	StatusAnalyzing Status = "analyzing" // A request is outstanding
	StatusSuccess   Status = "success"   // A result is present
	StatusFailed    Status = "failed"    // The last analysis failed
)

// State is the single mutable aggregate of an editing session.
type State struct {
	// SessionID identifies the session in stores and streams.
	SessionID string `json:"session_id"`

	// InputText is the current working draft.
	InputText string `json:"input_text"`

	// IsAnalyzing is true only while a request is outstanding.
	IsAnalyzing bool `json:"is_analyzing"`

	// Result is the last successful analysis, or nil.
	Result *AnalysisResult `json:"result,omitempty"`

	// Error is the last user-facing failure message. Empty means none.
	Error string `json:"error,omitempty"`

	UpdatedAt time.Time `json:"updated_at"`
}

// NewState creates the initial Idle state for a session.
func NewState(sessionID string) *State {
	return &State{
		SessionID: sessionID,
		UpdatedAt: time.Now().UTC(),
	}
}

// Status derives the session mode. Analyzing wins over a stale error or result.
func (s *State) Status() Status {
	switch {
	case s.IsAnalyzing:
		return StatusAnalyzing
	case s.Error != "":
		return StatusFailed
	case s.Result != nil:
		return StatusSuccess
	default:
		return StatusIdle
	}
}

// PendingIssues returns the number of issues not yet applied.
func (s *State) PendingIssues() int {
	if s.Result == nil {
		return 0
	}
	return len(s.Result.Issues)
}

// Clone returns a deep copy of the state.
func (s *State) Clone() *State {
	if s == nil {
		return nil
	}
	c := *s
	c.Result = s.Result.Clone()
	return &c
}
