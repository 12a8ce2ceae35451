package main

import (
	"context"
	"errors"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/dshills/askdocs/internal/mcp"
	"github.com/dshills/askdocs/internal/storage"
	"github.com/dshills/askdocs/internal/watcher"
)

var (
	serveWatch  bool
	serveNoWait bool
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the MCP server on stdio",
	Long: `Start the Model Context Protocol server. The index is synced before the
server accepts requests. With --watch the documents directory is watched and
the index is rebuilt after changes.

MCP client configuration:
  {
    "mcpServers": {
      "askdocs": {
        "command": "/path/to/askdocs",
        "args": ["serve", "--watch"]
      }
    }
  }`,
	Args: cobra.NoArgs,
	RunE: runServe,
}

func init() {
	serveCmd.Flags().BoolVarP(&serveWatch, "watch", "w", false, "rebuild the index when documents change")
	serveCmd.Flags().BoolVar(&serveNoWait, "no-wait", false, "skip the backend readiness check")
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, _ []string) error {
	log.Printf("askdocs %s starting (build mode %s, driver %s)", version, storage.BuildMode, storage.DriverName)

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := startApp(ctx, !serveNoWait)
	if err != nil {
		return err
	}
	defer func() { _ = a.Close() }()

	if serveWatch {
		w := watcher.New(a.Indexer, a.Config.Watch.Debounce())
		go func() {
			if err := w.Run(ctx); err != nil {
				log.Printf("Watcher stopped: %v", err)
			}
		}()
	}

	server, err := mcp.NewServer(a)
	if err != nil {
		return err
	}

	log.Println("MCP server ready, listening on stdio...")
	err = server.Serve(ctx)
	if errors.Is(err, context.Canceled) {
		log.Println("Server stopped")
		return nil
	}
	return err
}
