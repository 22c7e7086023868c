package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"sync/atomic"
	"syscall"

	"github.com/aretw0/proofline"
	"github.com/aretw0/proofline/internal/logging"
	"github.com/aretw0/proofline/internal/presentation/tui"
	"github.com/aretw0/proofline/pkg/domain"
	"github.com/aretw0/proofline/pkg/editor"
	"github.com/spf13/cobra"
)

var editCmd = &cobra.Command{
	Use:   "edit [file]",
	Short: "Open the interactive proofreading editor",
	Long: `Opens a full-screen editor. Type or paste text, press ctrl+r to analyze it,
tab to move to the issue list and enter to apply the selected suggestion.
ctrl+y copies the full correction and ctrl+s exports the draft to the workspace.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runEdit,
}

func init() {
	rootCmd.AddCommand(editCmd)

	editCmd.Flags().String("doc", "", "Workspace document to open")
	editCmd.Flags().String("log-file", "", "Write JSON logs to this file (the screen stays log-free)")
}

func runEdit(cmd *cobra.Command, args []string) error {
	if len(args) > 0 && args[0] == "-" {
		return errors.New("edit needs the terminal for input; pass a file or --doc instead of stdin")
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var logFile *os.File
	if path, _ := cmd.Flags().GetString("log-file"); path != "" {
		f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			return fmt.Errorf("failed to open log file: %w", err)
		}
		defer f.Close()
		logFile = f
	}

	app, err := newApp(cmd, func(level slog.Level) *slog.Logger {
		if logFile == nil {
			return logging.NewNop()
		}
		return logging.NewJSONTo(logFile, level)
	})
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

	var applied appliedCounter
	mc := app.NewMachine(in.ID, editor.WithLifecycleHooks(applied.Hooks()))
	if !domain.IsBlank(text) {
		mc.EditText(ctx, text)
	}

	return tui.RunEditor(ctx, mc,
		tui.WithSanitizer(app.Sanitizer()),
		tui.WithExporter(workspaceExporter(app, in.ID, mc.Snapshot, &applied)),
	)
}

// appliedCounter counts corrections taken since the last successful analysis.
type appliedCounter struct {
	n atomic.Int64
}

func (c *appliedCounter) Hooks() domain.LifecycleHooks {
	return domain.LifecycleHooks{
		OnAnalysisFinish: func(_ context.Context, e *domain.AnalysisEvent) {
			if e.Type == domain.EventAnalysisSucceeded {
				c.n.Store(0)
			}
		},
		OnCorrectionApplied: func(context.Context, *domain.CorrectionEvent) {
			c.n.Add(1)
		},
	}
}

func (c *appliedCounter) Value() int {
	return int(c.n.Load())
}

// workspaceExporter saves the draft to the workspace as "<id>-corrected".
func workspaceExporter(app *proofline.App, draftID string, snapshot func() *domain.State, applied *appliedCounter) tui.Exporter {
	return func(ctx context.Context, text string) (string, error) {
		ws, err := app.OpenWorkspace()
		if err != nil {
			return "", err
		}
		doc := proofline.ExportDocument(draftID, snapshot(), applied.Value())
		doc.Content = text
		if err := ws.Save(ctx, doc); err != nil {
			return "", err
		}
		return doc.ID, nil
	}
}
