package main

import (
	"fmt"
	"os"
	"path/filepath"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"

	"github.com/dshills/askdocs/internal/logger"
	"github.com/dshills/askdocs/internal/tui"
)

var chatNoWait bool

var chatCmd = &cobra.Command{
	Use:   "chat",
	Short: "Launch the interactive chat",
	Long: `Sync the index and open a terminal chat window. Each answer shows the
strategy that produced it and the document sections it used.

Controls:
  Enter          - Ask
  PgUp/PgDown    - Scroll the conversation
  Esc, Ctrl+C    - Quit

While the chat runs, logs go to askdocs.log in the data directory.`,
	Args: cobra.NoArgs,
	RunE: runChat,
}

func init() {
	chatCmd.Flags().BoolVar(&chatNoWait, "no-wait", false, "skip the backend readiness check")
	rootCmd.AddCommand(chatCmd)
}

func runChat(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()
	a, err := startApp(ctx, !chatNoWait)
	if err != nil {
		return err
	}
	defer func() { _ = a.Close() }()

	logFile, err := os.OpenFile(filepath.Join(a.Config.DataDir, "askdocs.log"), os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return fmt.Errorf("failed to open log file: %w", err)
	}
	defer func() { _ = logFile.Close() }()
	logger.SetOutput(logFile)
	defer logger.SetOutput(os.Stderr)

	summary := fmt.Sprintf("%d sections indexed from %s | %s via %s",
		a.Index.Count(), a.Config.DocsDir, a.Generator.Model(), a.Config.LLM.Provider)

	p := tea.NewProgram(tui.New(ctx, a.Router, summary), tea.WithAltScreen(), tea.WithContext(ctx))
	if _, err := p.Run(); err != nil {
		return fmt.Errorf("chat failed: %w", err)
	}
	return nil
}
