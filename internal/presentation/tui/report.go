package tui

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/aretw0/proofline/pkg/domain"
	"github.com/fatih/color"
)

// Format selects how a report is written.
type Format string

const (
	FormatMarkdown Format = "markdown"
	FormatText     Format = "text"
	FormatJSON     Format = "json"
)

const (
	emptyTitle  = "Text is looking great!"
	emptyDetail = "We didn't find any glaring grammatical or spelling errors."
	noResult    = "Results will appear here after analysis."
	analyzing   = "Running syntactic rule check..."
)

// ParseFormat validates a --format value.
func ParseFormat(s string) (Format, error) {
	switch f := Format(strings.ToLower(strings.TrimSpace(s))); f {
	case FormatMarkdown, FormatText, FormatJSON:
		return f, nil
	}
	return "", fmt.Errorf("unknown format %q (want markdown, text or json)", s)
}

// WriteReport writes st in the given format. render is only used for markdown
// and may be nil, in which case the raw markdown is written.
func WriteReport(w io.Writer, f Format, st *domain.State, render func(string) (string, error)) error {
	switch f {
	case FormatJSON:
		return WriteJSON(w, st)
	case FormatText:
		return WriteText(w, st)
	}

	md := Markdown(st)
	if render != nil {
		out, err := render(md)
		if err != nil {
			return fmt.Errorf("render markdown: %w", err)
		}
		md = out
	}
	_, err := io.WriteString(w, md)
	return err
}

// jsonReport mirrors the HTTP state view.
type jsonReport struct {
	*domain.State
	Status        domain.Status `json:"status"`
	PendingIssues int           `json:"pending_issues"`
}

// WriteJSON writes the state as indented JSON.
func WriteJSON(w io.Writer, st *domain.State) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(jsonReport{State: st, Status: st.Status(), PendingIssues: st.PendingIssues()})
}

// Markdown builds the analysis panel: error, stats, issue cards and the full correction.
func Markdown(st *domain.State) string {
	var b strings.Builder
	b.WriteString("# Analysis Results\n\n")

	if st.Error != "" {
		fmt.Fprintf(&b, "> **Error:** %s\n\n", st.Error)
	}
	if st.IsAnalyzing {
		fmt.Fprintf(&b, "_%s_\n\n", analyzing)
	}

	res := st.Result
	if res == nil {
		if !st.IsAnalyzing && st.Error == "" {
			fmt.Fprintf(&b, "_%s_\n", noResult)
		}
		return b.String()
	}

	b.WriteString("| Issues Found | Readability | Tone | Words | Characters |\n")
	b.WriteString("|---|---|---|---|---|\n")
	fmt.Fprintf(&b, "| %d | %s | %s | %d | %d |\n\n",
		len(res.Issues), cell(res.Statistics.ReadabilityScore), cell(res.Statistics.Tone),
		res.Statistics.WordCount, res.Statistics.CharacterCount)

	if len(res.Issues) == 0 {
		fmt.Fprintf(&b, "## ✓ %s\n\n%s\n\n", emptyTitle, emptyDetail)
	}
	for _, is := range res.Issues {
		fmt.Fprintf(&b, "### #%d `%s`\n\n", is.ID, is.Category)
		fmt.Fprintf(&b, "~~%s~~ → **%s**\n\n", is.Original, is.Replacement)
		if is.Context != "" {
			fmt.Fprintf(&b, "> \"%s\"\n\n", is.Context)
		}
		if is.Explanation != "" {
			fmt.Fprintf(&b, "%s\n\n", is.Explanation)
		}
	}

	b.WriteString("## Full Correction\n\n")
	fmt.Fprintf(&b, "%s\n", quoteBlock(res.CorrectedFullText))
	return b.String()
}

var (
	headerColor  = color.New(color.Bold)
	errorColor   = color.New(color.FgRed)
	okColor      = color.New(color.FgGreen, color.Bold)
	removedColor = color.New(color.FgRed, color.CrossedOut)
	addedColor   = color.New(color.FgGreen, color.Bold)
	faintColor   = color.New(color.Faint)
)

var categoryColors = map[domain.Category]*color.Color{
	domain.CategoryGrammar:     color.New(color.FgHiRed, color.Bold),
	domain.CategorySpelling:    color.New(color.FgHiYellow, color.Bold),
	domain.CategoryPunctuation: color.New(color.FgHiBlue, color.Bold),
	domain.CategoryStyle:       color.New(color.FgHiMagenta, color.Bold),
}

// WriteText writes a plain report. Colours follow color.NoColor, which is set
// when stdout is not a terminal or NO_COLOR is present.
func WriteText(w io.Writer, st *domain.State) error {
	ew := &errWriter{w: w}

	headerColor.Fprintln(ew, "Analysis Results")
	if st.Error != "" {
		errorColor.Fprintln(ew, st.Error)
	}
	if st.IsAnalyzing {
		faintColor.Fprintln(ew, analyzing)
	}

	res := st.Result
	if res == nil {
		if !st.IsAnalyzing && st.Error == "" {
			faintColor.Fprintln(ew, noResult)
		}
		return ew.err
	}

	fmt.Fprintf(ew, "Issues: %d  Readability: %s  Tone: %s  Words: %d  Characters: %d\n\n",
		len(res.Issues), cell(res.Statistics.ReadabilityScore), cell(res.Statistics.Tone),
		res.Statistics.WordCount, res.Statistics.CharacterCount)

	if len(res.Issues) == 0 {
		okColor.Fprintln(ew, emptyTitle)
		fmt.Fprintln(ew, emptyDetail)
		fmt.Fprintln(ew)
	}
	for _, is := range res.Issues {
		fmt.Fprintf(ew, "#%d %s  %s → %s\n", is.ID, badge(is.Category),
			removedColor.Sprint(is.Original), addedColor.Sprint(is.Replacement))
		if is.Context != "" {
			faintColor.Fprintf(ew, "   %q\n", is.Context)
		}
		if is.Explanation != "" {
			fmt.Fprintf(ew, "   %s\n", is.Explanation)
		}
		fmt.Fprintln(ew)
	}

	headerColor.Fprintln(ew, "Full Correction")
	fmt.Fprintln(ew, res.CorrectedFullText)
	return ew.err
}

func badge(c domain.Category) string {
	if col, ok := categoryColors[c]; ok {
		return col.Sprintf("[%s]", c)
	}
	return fmt.Sprintf("[%s]", c)
}

func cell(s string) string {
	if s == "" {
		return "-"
	}
	return strings.ReplaceAll(s, "|", "\\|")
}

func quoteBlock(s string) string {
	lines := strings.Split(strings.TrimRight(s, "\n"), "\n")
	for i, l := range lines {
		lines[i] = "> " + l
	}
	return strings.Join(lines, "\n")
}

// errWriter keeps the first write error so report code can stay linear.
type errWriter struct {
	w   io.Writer
	err error
}

func (e *errWriter) Write(p []byte) (int, error) {
	if e.err != nil {
		return 0, e.err
	}
	n, err := e.w.Write(p)
	e.err = err
	return n, err
}
