// Package correction applies a single analysis issue to the working draft.
//
// Application is a plain first-occurrence substring replace. It is not scoped by the
// issue's context snippet, so an issue whose original text has been edited away
// applies to nothing, and one whose text occurs several times edits the first
// occurrence. In both cases the issue is still removed from the pending list.
package correction

import (
	"strings"

	"github.com/aretw0/proofline/pkg/domain"
)

// Outcome reports what Apply did.
type Outcome struct {
	// Issue is the issue that was removed from the pending list.
	Issue domain.Issue

	// TextChanged is false when Original was absent (or empty) in the draft.
	TextChanged bool

	// Offset is the byte offset of the replaced span in the old draft, or -1.
	Offset int
}

// Apply replaces the first occurrence of the issue's Original in state.InputText
// with its Replacement and removes exactly that issue (by ID) from the result.
// CorrectedFullText, OriginalText and Statistics are never touched.
func Apply(state *domain.State, issueID int) (Outcome, error) {
	if state.Result == nil {
		return Outcome{Offset: -1}, domain.ErrNoResult
	}

	idx := -1
	for i, is := range state.Result.Issues {
		if is.ID == issueID {
			idx = i
			break
		}
	}
	if idx < 0 {
		return Outcome{Offset: -1}, domain.ErrIssueNotFound
	}

	issue := state.Result.Issues[idx]
	out := Outcome{Issue: issue, Offset: -1}

	if issue.Original != "" {
		if at := strings.Index(state.InputText, issue.Original); at >= 0 {
			state.InputText = state.InputText[:at] + issue.Replacement + state.InputText[at+len(issue.Original):]
			out.TextChanged = true
			out.Offset = at
		}
	}

	remaining := make([]domain.Issue, 0, len(state.Result.Issues)-1)
	remaining = append(remaining, state.Result.Issues[:idx]...)
	remaining = append(remaining, state.Result.Issues[idx+1:]...)
	state.Result.Issues = remaining

	return out, nil
}

// ApplyAll applies every pending issue in order and returns the outcomes.
func ApplyAll(state *domain.State) []Outcome {
	if state.Result == nil {
		return nil
	}
	ids := make([]int, len(state.Result.Issues))
	for i, is := range state.Result.Issues {
		ids[i] = is.ID
	}

	outcomes := make([]Outcome, 0, len(ids))
	for _, id := range ids {
		out, err := Apply(state, id)
		if err != nil {
			continue
		}
		outcomes = append(outcomes, out)
	}
	return outcomes
}
