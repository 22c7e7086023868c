package domain

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestState_Status(t *testing.T) {
	tests := []struct {
		name  string
		state State
		want  Status
	}{
		{"Idle", State{}, StatusIdle},
		{"Analyzing", State{IsAnalyzing: true, Result: &AnalysisResult{}}, StatusAnalyzing},
		{"Failed with stale result", State{Error: "x", Result: &AnalysisResult{}}, StatusFailed},
		{"Success", State{Result: &AnalysisResult{}}, StatusSuccess},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.state.Status())
		})
	}
}

func TestState_CloneIsDeep(t *testing.T) {
	st := NewState("s")
	st.Result = &AnalysisResult{Issues: []Issue{{ID: 0, Original: "a"}}}

	c := st.Clone()
	c.Result.Issues[0].Original = "b"
	c.Result.Issues = c.Result.Issues[:0]

	assert.Equal(t, "a", st.Result.Issues[0].Original)
	assert.Equal(t, 1, st.PendingIssues())
}

func TestCountWords(t *testing.T) {
	assert.Equal(t, 0, CountWords("   \n\t"))
	assert.Equal(t, 4, CountWords("He go to school."))
	assert.Equal(t, 3, CountCharacters("héé"))
	assert.True(t, IsBlank(" \n"))
	assert.False(t, IsBlank(" a "))
}

func TestIsKind(t *testing.T) {
	base := &AnalysisError{Op: "analyze", Kind: KindTransport, Err: errors.New("dial tcp")}
	wrapped := fmt.Errorf("session s1: %w", base)

	assert.True(t, IsKind(wrapped, KindTransport))
	assert.False(t, IsKind(wrapped, KindMalformedResponse))
	assert.Equal(t, KindTransport, KindOf(wrapped))
	assert.Equal(t, ErrorKind(""), KindOf(errors.New("plain")))
	assert.Equal(t, "analyze: transport: dial tcp", base.Error())
}

func TestCategory_Valid(t *testing.T) {
	for _, c := range Categories() {
		assert.True(t, c.Valid())
	}
	assert.False(t, Category("grammar").Valid())
	assert.Equal(t, "style", CategoryStyle.Label())
}
