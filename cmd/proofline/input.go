package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/aretw0/proofline"
	"github.com/spf13/cobra"
)

// draft is the text a command starts from and the name it exports under.
type draft struct {
	ID   string
	Text string
}

// readDraft resolves the input of check and edit: --doc loads from the
// workspace, "-" reads stdin and any other argument is a file path.
func readDraft(ctx context.Context, cmd *cobra.Command, app *proofline.App, args []string) (draft, error) {
	if docID, _ := cmd.Flags().GetString("doc"); docID != "" {
		ws, err := app.OpenWorkspace()
		if err != nil {
			return draft{}, err
		}
		doc, err := ws.Load(ctx, docID)
		if err != nil {
			return draft{}, err
		}
		return draft{ID: doc.ID, Text: doc.Content}, nil
	}

	if len(args) == 0 {
		return draft{ID: "draft"}, nil
	}

	if args[0] == "-" {
		data, err := io.ReadAll(cmd.InOrStdin())
		if err != nil {
			return draft{}, fmt.Errorf("failed to read stdin: %w", err)
		}
		return draft{ID: "stdin", Text: string(data)}, nil
	}

	data, err := os.ReadFile(args[0])
	if err != nil {
		return draft{}, err
	}
	base := filepath.Base(args[0])
	return draft{ID: strings.TrimSuffix(base, filepath.Ext(base)), Text: string(data)}, nil
}
