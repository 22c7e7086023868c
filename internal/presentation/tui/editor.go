package tui

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/aretw0/proofline/pkg/domain"
	"github.com/aretw0/proofline/pkg/editor"
	"github.com/aretw0/proofline/pkg/input"
	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textarea"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/muesli/termenv"
)

// Exporter stores the final text somewhere and returns where it went.
type Exporter func(ctx context.Context, text string) (string, error)

type focusArea int

const (
	focusText focusArea = iota
	focusIssues
)

type analysisDoneMsg struct {
	err error
}

// Editor is the bubbletea model of the terminal editor.
type Editor struct {
	machine   *editor.Machine
	sanitizer input.Sanitizer
	export    Exporter
	copy      func(string)

	textarea textarea.Model
	spinner  spinner.Model
	pending  *editor.Pending

	focus    focusArea
	selected int
	status   string
	width    int
	height   int
}

// EditorOption configures an Editor.
type EditorOption func(*Editor)

// WithExporter enables ctrl+s.
func WithExporter(fn Exporter) EditorOption {
	return func(e *Editor) {
		e.export = fn
	}
}

// WithSanitizer sets the draft size limit checked before each analysis.
func WithSanitizer(sz input.Sanitizer) EditorOption {
	return func(e *Editor) {
		e.sanitizer = sz
	}
}

// WithClipboard replaces the OSC52 clipboard writer.
func WithClipboard(fn func(string)) EditorOption {
	return func(e *Editor) {
		e.copy = fn
	}
}

// NewEditor builds the model around mc. The textarea starts with the machine's draft.
func NewEditor(mc *editor.Machine, opts ...EditorOption) *Editor {
	ta := textarea.New()
	ta.Placeholder = "Paste or type your text here to analyze syntax, grammar, and style..."
	ta.CharLimit = 0
	ta.ShowLineNumbers = false
	ta.SetWidth(80)
	ta.SetHeight(16)
	ta.SetValue(mc.Snapshot().InputText)
	ta.Focus()

	sp := spinner.New()
	sp.Spinner = spinner.Dot
	sp.Style = lipgloss.NewStyle().Foreground(lipgloss.Color("63"))

	e := &Editor{
		machine:  mc,
		copy:     termenv.Copy,
		textarea: ta,
		spinner:  sp,
		status:   "Ready for syntax analysis",
		width:    80,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// RunEditor runs the editor full screen until the user quits or ctx is done.
func RunEditor(ctx context.Context, mc *editor.Machine, opts ...EditorOption) error {
	p := tea.NewProgram(NewEditor(mc, opts...), tea.WithAltScreen(), tea.WithContext(ctx))
	_, err := p.Run()
	if errors.Is(err, tea.ErrProgramKilled) && ctx.Err() != nil {
		return nil
	}
	return err
}

func (e *Editor) Init() tea.Cmd {
	return textarea.Blink
}

func (e *Editor) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		e.resize(msg.Width, msg.Height)
		return e, nil

	case analysisDoneMsg:
		e.pending = nil
		st := e.machine.Snapshot()
		switch {
		case st.Error != "":
			e.status = st.Error
		case st.Result != nil:
			e.status = fmt.Sprintf("Analysis complete: %d issue(s)", len(st.Result.Issues))
		default:
			e.status = "Ready for syntax analysis"
		}
		e.selected = 0
		return e, nil

	case spinner.TickMsg:
		if e.pending == nil {
			return e, nil
		}
		var cmd tea.Cmd
		e.spinner, cmd = e.spinner.Update(msg)
		return e, cmd

	case tea.KeyMsg:
		return e.handleKey(msg)
	}

	var cmd tea.Cmd
	e.textarea, cmd = e.textarea.Update(msg)
	return e, cmd
}

func (e *Editor) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	ctx := context.Background()

	switch msg.String() {
	case "ctrl+c":
		return e, tea.Quit
	case "ctrl+r":
		return e, e.startAnalysis(ctx)
	case "tab":
		e.toggleFocus()
		return e, nil
	case "ctrl+l":
		e.machine.Clear(ctx)
		e.textarea.Reset()
		e.selected = 0
		e.status = "Cleared"
		return e, nil
	case "ctrl+y":
		text, ok := e.machine.CorrectedText()
		if !ok {
			e.status = "Nothing to copy yet"
			return e, nil
		}
		e.copy(text)
		e.status = "Fully corrected text copied to clipboard!"
		return e, nil
	case "ctrl+s":
		e.exportText(ctx)
		return e, nil
	}

	if e.focus == focusIssues {
		e.handleIssueKey(ctx, msg)
		return e, nil
	}

	// The draft is read-only while a request is outstanding.
	if e.pending != nil {
		return e, nil
	}

	before := e.textarea.Value()
	var cmd tea.Cmd
	e.textarea, cmd = e.textarea.Update(msg)
	if after := e.textarea.Value(); after != before {
		e.machine.EditText(ctx, after)
	}
	return e, cmd
}

func (e *Editor) handleIssueKey(ctx context.Context, msg tea.KeyMsg) {
	issues := e.issues()
	switch msg.String() {
	case "up", "k":
		if e.selected > 0 {
			e.selected--
		}
	case "down", "j":
		if e.selected < len(issues)-1 {
			e.selected++
		}
	case "enter":
		if len(issues) == 0 {
			return
		}
		out, err := e.machine.ApplyCorrection(ctx, issues[e.selected].ID)
		if err != nil {
			e.status = err.Error()
			return
		}
		e.textarea.SetValue(e.machine.Snapshot().InputText)
		if out.TextChanged {
			e.status = fmt.Sprintf("Applied: %s → %s", out.Issue.Original, out.Issue.Replacement)
		} else {
			e.status = fmt.Sprintf("%q is no longer in the text; issue dismissed", out.Issue.Original)
		}
		if remaining := len(e.issues()); e.selected >= remaining && remaining > 0 {
			e.selected = remaining - 1
		}
	}
}

func (e *Editor) startAnalysis(ctx context.Context) tea.Cmd {
	clean, err := e.sanitizer.Sanitize(e.textarea.Value())
	if err != nil {
		e.status = err.Error()
		return nil
	}
	if clean != e.textarea.Value() {
		e.textarea.SetValue(clean)
	}
	e.machine.EditText(ctx, clean)

	pending, err := e.machine.StartAnalysis(ctx)
	switch {
	case errors.Is(err, domain.ErrEmptyInput):
		e.status = "Type some text first"
		return nil
	case err != nil:
		e.status = err.Error()
		return nil
	}

	e.pending = pending
	e.status = analyzing
	return tea.Batch(e.spinner.Tick, waitFor(pending))
}

func waitFor(p *editor.Pending) tea.Cmd {
	return func() tea.Msg {
		_, err := p.Wait(context.Background())
		return analysisDoneMsg{err: err}
	}
}

func (e *Editor) exportText(ctx context.Context) {
	if e.export == nil {
		e.status = "Export is not configured"
		return
	}
	text := e.machine.Snapshot().InputText
	if domain.IsBlank(text) {
		e.status = "Nothing to export"
		return
	}
	where, err := e.export(ctx, text)
	if err != nil {
		e.status = fmt.Sprintf("Export failed: %v", err)
		return
	}
	e.status = "Exported to " + where
}

func (e *Editor) toggleFocus() {
	if e.focus == focusText {
		e.focus = focusIssues
		e.textarea.Blur()
		return
	}
	e.focus = focusText
	e.textarea.Focus()
}

func (e *Editor) issues() []domain.Issue {
	st := e.machine.Snapshot()
	if st.Result == nil {
		return nil
	}
	return st.Result.Issues
}

func (e *Editor) resize(width, height int) {
	e.width, e.height = width, height
	editorWidth := width - 4
	if width >= 100 {
		editorWidth = width*3/5 - 4
	}
	if editorWidth < 20 {
		editorWidth = 20
	}
	editorHeight := height - 8
	if editorHeight < 5 {
		editorHeight = 5
	}
	e.textarea.SetWidth(editorWidth)
	e.textarea.SetHeight(editorHeight)
}

var (
	titleStyle   = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("63"))
	faintStyle   = lipgloss.NewStyle().Faint(true)
	errorStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("9"))
	okStyle      = lipgloss.NewStyle().Foreground(lipgloss.Color("10")).Bold(true)
	selectStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("212")).Bold(true)
	removedStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("9")).Strikethrough(true)
	addedStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("10")).Bold(true)
	panelStyle   = lipgloss.NewStyle().
			Padding(0, 1).
			BorderStyle(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("63"))
)

func (e *Editor) View() string {
	st := e.machine.Snapshot()

	counts := fmt.Sprintf("%d characters  %d words",
		domain.CountCharacters(e.textarea.Value()), domain.CountWords(e.textarea.Value()))

	status := e.status
	if e.pending != nil {
		status = e.spinner.View() + " " + status
	}

	left := lipgloss.JoinVertical(lipgloss.Left,
		titleStyle.Render("Text Editor"),
		e.textarea.View(),
		faintStyle.Render(counts),
	)

	panelWidth := e.width - 4
	if e.width >= 100 {
		panelWidth = e.width*2/5 - 4
	}
	right := panelStyle.Width(max(panelWidth, 20)).Render(e.panel(st))

	var body string
	if e.width >= 100 {
		body = lipgloss.JoinHorizontal(lipgloss.Top, left, " ", right)
	} else {
		body = lipgloss.JoinVertical(lipgloss.Left, left, right)
	}

	help := faintStyle.Render("ctrl+r analyze • tab issues • enter apply • ctrl+l clear • ctrl+y copy • ctrl+s export • ctrl+c quit")
	return lipgloss.JoinVertical(lipgloss.Left, body, status, help)
}

func (e *Editor) panel(st *domain.State) string {
	var b strings.Builder
	b.WriteString(titleStyle.Render("Analysis Results"))
	b.WriteString("\n")

	if st.Error != "" {
		b.WriteString(errorStyle.Render(st.Error))
		b.WriteString("\n")
	}
	if st.IsAnalyzing {
		b.WriteString(faintStyle.Render(analyzing))
		b.WriteString("\n")
	}

	res := st.Result
	if res == nil {
		if !st.IsAnalyzing && st.Error == "" {
			b.WriteString(faintStyle.Render(noResult))
		}
		return b.String()
	}

	fmt.Fprintf(&b, "Issues %d · Readability %s · Tone %s\n\n",
		len(res.Issues), cell(res.Statistics.ReadabilityScore), cell(res.Statistics.Tone))

	if len(res.Issues) == 0 {
		b.WriteString(okStyle.Render("✓ " + emptyTitle))
		b.WriteString("\n")
		b.WriteString(emptyDetail)
		return b.String()
	}

	for i, is := range res.Issues {
		marker := "  "
		label := fmt.Sprintf("[%s]", is.Category)
		if e.focus == focusIssues && i == e.selected {
			marker = selectStyle.Render("> ")
			label = selectStyle.Render(label)
		}
		fmt.Fprintf(&b, "%s%s %s → %s\n", marker, label,
			removedStyle.Render(is.Original), addedStyle.Render(is.Replacement))
		if e.focus == focusIssues && i == e.selected && is.Explanation != "" {
			fmt.Fprintf(&b, "    %s\n", faintStyle.Render(is.Explanation))
		}
	}
	return b.String()
}
