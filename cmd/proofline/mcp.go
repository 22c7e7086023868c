package main

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/aretw0/proofline"
	"github.com/aretw0/proofline/internal/logging"
	"github.com/aretw0/proofline/pkg/adapters/mcp"
	"github.com/spf13/cobra"
)

var mcpCmd = &cobra.Command{
	Use:   "mcp",
	Short: "Run the Model Context Protocol (MCP) server",
	Long: `Exposes editing sessions as MCP tools so AI agents can analyze text and apply
corrections. Calls that name no session use the "default" one.

Supported Transports:
- stdio (default): Uses Standard Input/Output. Ideal for local process integration.
- sse: Uses Server-Sent Events over HTTP. Ideal for remote agents or debuggers.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		transport, _ := cmd.Flags().GetString("transport")
		addr, _ := cmd.Flags().GetString("addr")

		// Logs go to stderr so they never corrupt JSON-RPC on stdout.
		app, err := newApp(cmd, logging.New)
		if err != nil {
			return err
		}
		logger := app.Logger()

		backend, err := app.OpenBackend(ctx)
		if err != nil {
			return err
		}
		defer backend.Close()

		srv := mcp.NewServer(app.NewSessionManager(backend), proofline.Version,
			mcp.WithSanitizer(app.Sanitizer()),
			mcp.WithLogger(logger),
		)

		switch transport {
		case "stdio":
			logger.Info("Starting proofline MCP server (stdio)")
			return srv.ServeStdio()
		case "sse":
			baseURL, _ := cmd.Flags().GetString("base-url")
			if baseURL == "" {
				baseURL = "http://localhost" + addr
			}
			if err := srv.ServeSSE(ctx, addr, baseURL); err != nil {
				return err
			}
			logger.Info("MCP server stopped gracefully")
			return nil
		default:
			return fmt.Errorf("unknown transport %q (supported: stdio, sse)", transport)
		}
	},
}

func init() {
	rootCmd.AddCommand(mcpCmd)

	mcpCmd.Flags().String("transport", "stdio", "Transport protocol to use: 'stdio' or 'sse'")
	mcpCmd.Flags().String("addr", ":8081", "Address to listen on (only for SSE)")
	mcpCmd.Flags().String("base-url", "", "Public base URL announced to SSE clients (default: http://localhost<addr>)")
}
