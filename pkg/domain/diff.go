package domain

// StateDiff represents the changes between two states.
// It is designed to be serialized to JSON for partial updates on the client.
type StateDiff struct {
	// SessionID is always present to identify the target.
	SessionID string `json:"session_id"`

	InputText *string `json:"input_text,omitempty"`
	Status    *Status `json:"status,omitempty"`

	// Error carries the new message; an empty string means the error was cleared.
	Error *string `json:"error,omitempty"`

	// Result is sent whole when it appears or is replaced.
	Result *AnalysisResult `json:"result,omitempty"`

	// ResultCleared is set when the result was dropped (Clear).
	ResultCleared bool `json:"result_cleared,omitempty"`

	// RemovedIssues lists issue IDs pruned from an unchanged result.
	RemovedIssues []int `json:"removed_issues,omitempty"`
}

// Diff calculates the difference between oldState and newState.
// If oldState is nil, it returns a diff representing the entire newState (initial load).
func Diff(oldState, newState *State) *StateDiff {
	if newState == nil {
		return nil
	}

	diff := &StateDiff{SessionID: newState.SessionID}

	if oldState == nil || oldState.InputText != newState.InputText {
		diff.InputText = &newState.InputText
	}
	if oldState == nil || oldState.Status() != newState.Status() {
		st := newState.Status()
		diff.Status = &st
	}
	if oldState == nil {
		if newState.Error != "" {
			diff.Error = &newState.Error
		}
	} else if oldState.Error != newState.Error {
		diff.Error = &newState.Error
	}

	diffResult(diff, oldState, newState)

	if diff.IsEmpty() {
		return nil
	}
	return diff
}

func diffResult(diff *StateDiff, old, new *State) {
	var oldRes *AnalysisResult
	if old != nil {
		oldRes = old.Result
	}
	newRes := new.Result

	switch {
	case newRes == nil && oldRes == nil:
		return
	case newRes == nil:
		diff.ResultCleared = true
		return
	case oldRes == nil || !sameAnalysis(oldRes, newRes):
		diff.Result = newRes
		return
	}

	// Same analysis: only pruning is possible.
	pending := make(map[int]struct{}, len(newRes.Issues))
	for _, is := range newRes.Issues {
		pending[is.ID] = struct{}{}
	}
	for _, is := range oldRes.Issues {
		if _, ok := pending[is.ID]; !ok {
			diff.RemovedIssues = append(diff.RemovedIssues, is.ID)
		}
	}
}

// sameAnalysis reports whether b is a (possibly pruned) version of a.
func sameAnalysis(a, b *AnalysisResult) bool {
	if a.OriginalText != b.OriginalText ||
		a.CorrectedFullText != b.CorrectedFullText ||
		a.Statistics != b.Statistics {
		return false
	}
	for _, is := range b.Issues {
		prev, ok := a.Issue(is.ID)
		if !ok || prev != is {
			return false
		}
	}
	return true
}

// IsEmpty checks if the diff contains any actionable changes.
func (d *StateDiff) IsEmpty() bool {
	return d.InputText == nil &&
		d.Status == nil &&
		d.Error == nil &&
		d.Result == nil &&
		!d.ResultCleared &&
		len(d.RemovedIssues) == 0
}
