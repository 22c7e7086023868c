package main

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/aretw0/proofline"
	"github.com/aretw0/proofline/internal/config"
	"github.com/aretw0/proofline/internal/logging"
	"github.com/aretw0/proofline/internal/presentation/tui"
	"github.com/aretw0/proofline/pkg/domain"
	"github.com/spf13/cobra"
	"golang.org/x/term"
)

var checkCmd = &cobra.Command{
	Use:   "check [file|-]",
	Short: "Analyze a text once and print the issues",
	Long: `Analyzes a file, stdin ("-") or a workspace document (--doc) and prints the report.

On a terminal the report is rendered Markdown; otherwise plain text. Use --apply to
take every suggestion in order, --write to save the resulting text and --export to
store it in the workspace. The command fails when the analysis fails.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runCheck,
}

func init() {
	rootCmd.AddCommand(checkCmd)

	checkCmd.Flags().String("doc", "", "Workspace document to check instead of a file")
	checkCmd.Flags().StringP("format", "f", "", "Output format: markdown, text or json (default: markdown on a terminal, text otherwise)")
	checkCmd.Flags().Bool("apply", false, "Apply every issue to the draft in order")
	checkCmd.Flags().StringP("write", "w", "", "Write the resulting text to this path")
	checkCmd.Flags().String("export", "", "Save the resulting text to the workspace as <id>-corrected")
}

func runCheck(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	app, err := newApp(cmd, quietLogger(cmd))
	if err != nil {
		return err
	}

	format, err := checkFormat(cmd)
	if err != nil {
		return err
	}

	in, err := readDraft(ctx, cmd, app, args)
	if err != nil {
		return err
	}
	text, err := app.Sanitizer().Sanitize(in.Text)
	if err != nil {
		return fmt.Errorf("input rejected: %w", err)
	}

	mc := app.NewMachine(in.ID)
	mc.EditText(ctx, text)
	if _, err := mc.Analyze(ctx); err != nil {
		if errors.Is(err, domain.ErrEmptyInput) {
			return err
		}
		app.Logger().Debug("Analysis failed", "draft", in.ID, "err", err)
	}

	applied := 0
	apply, _ := cmd.Flags().GetBool("apply")
	if apply && mc.Snapshot().Result != nil {
		outs, err := mc.ApplyAll(ctx)
		if err != nil {
			return err
		}
		applied = len(outs)
	}

	st := mc.Snapshot()
	var render func(string) (string, error)
	if format == tui.FormatMarkdown && isTerminal(cmd.OutOrStdout()) {
		if render, err = tui.NewRenderer(terminalWidth(cmd.OutOrStdout())); err != nil {
			return err
		}
	}
	if err := tui.WriteReport(cmd.OutOrStdout(), format, st, render); err != nil {
		return err
	}

	if st.Error != "" {
		return errors.New(st.Error)
	}

	// --apply keeps the draft even when nothing was left to apply.
	final := st.InputText
	if !apply {
		final, _ = mc.CorrectedText()
	}

	if path, _ := cmd.Flags().GetString("write"); path != "" {
		if err := os.WriteFile(path, []byte(final), 0o644); err != nil {
			return fmt.Errorf("failed to write %s: %w", path, err)
		}
		app.Logger().Info("Wrote corrected text", "path", path)
	}

	if id, _ := cmd.Flags().GetString("export"); id != "" {
		ws, err := app.OpenWorkspace()
		if err != nil {
			return err
		}
		doc := proofline.ExportDocument(id, st, applied)
		doc.Content = final
		if err := ws.Save(ctx, doc); err != nil {
			return err
		}
		fmt.Fprintf(cmd.ErrOrStderr(), "Exported to %s\n", doc.ID)
	}
	return nil
}

// checkFormat honours --format and picks markdown for terminals, text otherwise.
func checkFormat(cmd *cobra.Command) (tui.Format, error) {
	if f, _ := cmd.Flags().GetString("format"); f != "" {
		return tui.ParseFormat(f)
	}
	if isTerminal(cmd.OutOrStdout()) {
		return tui.FormatMarkdown, nil
	}
	return tui.FormatText, nil
}

func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	return ok && term.IsTerminal(int(f.Fd()))
}

func terminalWidth(w io.Writer) int {
	f, ok := w.(*os.File)
	if !ok {
		return 0
	}
	width, _, err := term.GetSize(int(f.Fd()))
	if err != nil {
		return 0
	}
	return width
}

// quietLogger keeps the one-shot command to warnings unless a level was asked for.
func quietLogger(cmd *cobra.Command) func(slog.Level) *slog.Logger {
	return func(level slog.Level) *slog.Logger {
		if !cmd.Flags().Changed("log-level") && os.Getenv(config.EnvLogLevel) == "" && level < slog.LevelWarn {
			level = slog.LevelWarn
		}
		return logging.New(level)
	}
}
