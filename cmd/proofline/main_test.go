package main

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/aretw0/proofline"
	loamAdapter "github.com/aretw0/proofline/pkg/adapters/loam"
	"github.com/aretw0/proofline/pkg/domain"
	"github.com/aretw0/proofline/pkg/ports"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func stubAnalyzer() ports.Analyzer {
	return ports.AnalyzerFunc(func(_ context.Context, text string) (*domain.AnalysisResult, error) {
		if strings.Contains(text, "offline") {
			return nil, &domain.AnalysisError{Op: "analyze", Kind: domain.KindTransport}
		}
		if strings.Contains(text, "polished") {
			return &domain.AnalysisResult{
				OriginalText:      text,
				CorrectedFullText: text + " Reworded.",
				Statistics:        domain.Statistics{WordCount: 3, CharacterCount: len(text), Tone: "Neutral"},
			}, nil
		}
		return &domain.AnalysisResult{
			OriginalText:      text,
			CorrectedFullText: strings.ReplaceAll(strings.ReplaceAll(text, "teh", "the"), " go ", " goes "),
			Issues: []domain.Issue{
				{ID: 0, Original: "teh", Replacement: "the", Category: domain.CategorySpelling},
				{ID: 1, Original: "go", Replacement: "goes", Category: domain.CategoryGrammar},
			},
			Statistics: domain.Statistics{WordCount: 5, CharacterCount: len(text), Tone: "Neutral"},
		}, nil
	})
}

// execute runs the root command with fresh flag values and captures stdout.
func execute(t *testing.T, stdin string, args ...string) (string, error) {
	t.Helper()
	appOptions = []proofline.Option{proofline.WithAnalyzer(stubAnalyzer())}
	t.Cleanup(func() { appOptions = nil })

	resetFlags(rootCmd)
	var out, errOut bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&errOut)
	rootCmd.SetIn(strings.NewReader(stdin))
	rootCmd.SetArgs(args)
	err := rootCmd.Execute()
	return out.String(), err
}

func resetFlags(cmd *cobra.Command) {
	reset := func(f *pflag.Flag) {
		_ = f.Value.Set(f.DefValue)
		f.Changed = false
	}
	cmd.PersistentFlags().VisitAll(reset)
	cmd.Flags().VisitAll(reset)
	for _, c := range cmd.Commands() {
		resetFlags(c)
	}
}

func writeConfig(t *testing.T, workspace string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "proofline.yaml")
	body := "log_level: error\nworkspace:\n  dir: " + workspace + "\n"
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestVersion(t *testing.T) {
	out, err := execute(t, "", "version")
	require.NoError(t, err)
	assert.Equal(t, "proofline version "+proofline.Version+"\n", out)
}

func TestCheck_TextReportFromStdin(t *testing.T) {
	cfg := writeConfig(t, t.TempDir())
	out, err := execute(t, "He go to teh park.", "check", "-", "--config", cfg, "--format", "text")
	require.NoError(t, err)

	assert.Contains(t, out, "Analysis Results")
	assert.Contains(t, out, "#0")
	assert.Contains(t, out, "teh")
	assert.Contains(t, out, "He goes to the park.")
}

func TestCheck_JSON(t *testing.T) {
	cfg := writeConfig(t, t.TempDir())
	out, err := execute(t, "He go to teh park.", "check", "-", "--config", cfg, "--format", "json")
	require.NoError(t, err)

	var report struct {
		Status        domain.Status `json:"status"`
		PendingIssues int           `json:"pending_issues"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &report))
	assert.Equal(t, domain.StatusSuccess, report.Status)
	assert.Equal(t, 2, report.PendingIssues)
}

func TestCheck_ApplyWriteAndExport(t *testing.T) {
	ws := t.TempDir()
	cfg := writeConfig(t, ws)

	src := filepath.Join(t.TempDir(), "essay.txt")
	require.NoError(t, os.WriteFile(src, []byte("He go to teh park."), 0o644))
	dst := filepath.Join(t.TempDir(), "out.txt")

	_, err := execute(t, "", "check", src, "--config", cfg, "--format", "json",
		"--apply", "--write", dst, "--export", "essay")
	require.NoError(t, err)

	written, err := os.ReadFile(dst)
	require.NoError(t, err)
	assert.Equal(t, "He goes to the park.", string(written))

	workspace, err := loamAdapter.Open(ws)
	require.NoError(t, err)
	doc, err := workspace.Load(context.Background(), "essay-corrected")
	require.NoError(t, err)
	assert.Equal(t, "He goes to the park.", strings.TrimSpace(doc.Content))
	assert.Equal(t, 2, doc.Meta.AppliedIssues)
	assert.Zero(t, doc.Meta.PendingIssues)
}

func TestCheck_ApplyWithoutIssuesKeepsDraft(t *testing.T) {
	cfg := writeConfig(t, t.TempDir())
	dir := t.TempDir()

	applied := filepath.Join(dir, "applied.txt")
	_, err := execute(t, "A polished draft.", "check", "-", "--config", cfg, "--format", "text",
		"--apply", "--write", applied)
	require.NoError(t, err)
	written, err := os.ReadFile(applied)
	require.NoError(t, err)
	assert.Equal(t, "A polished draft.", string(written))

	corrected := filepath.Join(dir, "corrected.txt")
	_, err = execute(t, "A polished draft.", "check", "-", "--config", cfg, "--format", "text",
		"--write", corrected)
	require.NoError(t, err)
	written, err = os.ReadFile(corrected)
	require.NoError(t, err)
	assert.Equal(t, "A polished draft. Reworded.", string(written))
}

func TestCheck_Failures(t *testing.T) {
	cfg := writeConfig(t, t.TempDir())

	_, err := execute(t, "   ", "check", "-", "--config", cfg, "--format", "text")
	assert.ErrorIs(t, err, domain.ErrEmptyInput)

	out, err := execute(t, "offline text", "check", "-", "--config", cfg, "--format", "text")
	require.Error(t, err)
	assert.Equal(t, domain.UserFacingAnalysisError, err.Error())
	assert.Contains(t, out, domain.UserFacingAnalysisError)

	_, err = execute(t, "text", "check", "-", "--config", cfg, "--format", "html")
	assert.ErrorContains(t, err, "unknown format")
}

func TestCheckFormat_DefaultsToTextWhenPiped(t *testing.T) {
	resetFlags(rootCmd)
	checkCmd.SetOut(&bytes.Buffer{})
	t.Cleanup(func() { checkCmd.SetOut(nil) })

	f, err := checkFormat(checkCmd)
	require.NoError(t, err)
	assert.Equal(t, "text", string(f))
}

func TestEdit_RejectsStdin(t *testing.T) {
	_, err := execute(t, "", "edit", "-")
	assert.ErrorContains(t, err, "stdin")
}

func TestReadDraft_File(t *testing.T) {
	resetFlags(rootCmd)
	path := filepath.Join(t.TempDir(), "notes.md")
	require.NoError(t, os.WriteFile(path, []byte("draft body"), 0o644))

	in, err := readDraft(context.Background(), checkCmd, nil, []string{path})
	require.NoError(t, err)
	assert.Equal(t, "notes", in.ID)
	assert.Equal(t, "draft body", in.Text)

	in, err = readDraft(context.Background(), checkCmd, nil, nil)
	require.NoError(t, err)
	assert.Equal(t, "draft", in.ID)
	assert.Empty(t, in.Text)
}
