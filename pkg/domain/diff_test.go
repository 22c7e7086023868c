package domain

import (
	"encoding/json"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleResult() *AnalysisResult {
	return &AnalysisResult{
		OriginalText:      "teh cat sat",
		CorrectedFullText: "The cat sat.",
		Issues: []Issue{
			{ID: 0, Original: "teh", Replacement: "the", Category: CategorySpelling},
			{ID: 1, Original: "sat", Replacement: "sat.", Category: CategoryPunctuation},
		},
		Statistics: Statistics{WordCount: 3, CharacterCount: 11, ReadabilityScore: "Easy", Tone: "Neutral"},
	}
}

func TestDiff_InitialLoad(t *testing.T) {
	st := &State{SessionID: "s1", InputText: "hello"}

	d := Diff(nil, st)
	require.NotNil(t, d)
	assert.Equal(t, "s1", d.SessionID)
	require.NotNil(t, d.InputText)
	assert.Equal(t, "hello", *d.InputText)
	require.NotNil(t, d.Status)
	assert.Equal(t, StatusIdle, *d.Status)
	assert.Nil(t, d.Error)
	assert.Nil(t, d.Result)
}

func TestDiff_NoChanges(t *testing.T) {
	a := &State{SessionID: "s1", InputText: "x", Result: sampleResult()}
	b := a.Clone()
	assert.Nil(t, Diff(a, b))
}

func TestDiff_AnalysisLifecycle(t *testing.T) {
	idle := &State{SessionID: "s1", InputText: "teh cat sat", Error: "boom"}
	analyzing := idle.Clone()
	analyzing.IsAnalyzing = true
	analyzing.Error = ""

	d := Diff(idle, analyzing)
	require.NotNil(t, d)
	assert.Equal(t, StatusAnalyzing, *d.Status)
	require.NotNil(t, d.Error)
	assert.Empty(t, *d.Error, "cleared error is sent as empty string")

	done := analyzing.Clone()
	done.IsAnalyzing = false
	done.Result = sampleResult()

	d = Diff(analyzing, done)
	require.NotNil(t, d)
	assert.Equal(t, StatusSuccess, *d.Status)
	assert.Equal(t, done.Result, d.Result)
}

func TestDiff_PrunedIssue(t *testing.T) {
	before := &State{SessionID: "s1", InputText: "teh cat sat", Result: sampleResult()}
	after := before.Clone()
	after.InputText = "the cat sat"
	after.Result.Issues = after.Result.Issues[1:]

	d := Diff(before, after)
	require.NotNil(t, d)
	assert.Nil(t, d.Result, "pruning must not resend the whole result")
	assert.Equal(t, []int{0}, d.RemovedIssues)
	assert.Equal(t, "the cat sat", *d.InputText)
}

func TestDiff_ClearedResult(t *testing.T) {
	before := &State{SessionID: "s1", InputText: "x", Result: sampleResult()}
	after := &State{SessionID: "s1"}

	d := Diff(before, after)
	require.NotNil(t, d)
	assert.True(t, d.ResultCleared)

	b, err := json.Marshal(d)
	require.NoError(t, err)
	assert.True(t, strings.Contains(string(b), `"result_cleared":true`))
}
