package main

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/dshills/askdocs/pkg/types"
)

var (
	askJSON   bool
	askNoWait bool
)

var askCmd = &cobra.Command{
	Use:   "ask [question]",
	Short: "Answer one question",
	Long: `Sync the index, answer one question and print the answer with its sources.
Words after the command are joined into the question.`,
	Args: cobra.MinimumNArgs(1),
	RunE: runAsk,
}

func init() {
	askCmd.Flags().BoolVar(&askJSON, "json", false, "output the response as JSON")
	askCmd.Flags().BoolVar(&askNoWait, "no-wait", false, "skip the backend readiness check")
	rootCmd.AddCommand(askCmd)
}

func runAsk(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	a, err := startApp(ctx, !askNoWait)
	if err != nil {
		return err
	}
	defer func() { _ = a.Close() }()

	resp, err := a.Router.Ask(ctx, strings.Join(args, " "))
	if err != nil {
		return fmt.Errorf("ask failed: %w", err)
	}

	out := cmd.OutOrStdout()
	if askJSON {
		data, err := json.MarshalIndent(resp, "", "  ")
		if err != nil {
			return fmt.Errorf("failed to marshal response: %w", err)
		}
		_, err = fmt.Fprintln(out, string(data))
		return err
	}
	printResponse(out, resp)
	return nil
}

// printResponse writes the answer followed by the tool that produced it and its sources
func printResponse(w io.Writer, resp *types.Response) {
	fmt.Fprintln(w, resp.Answer)
	fmt.Fprintln(w)
	if resp.FellBack() {
		fmt.Fprintf(w, "Tool: %s (fallback from %s)\n", resp.Strategy.Label(), resp.Requested.Label())
	} else {
		fmt.Fprintf(w, "Tool: %s\n", resp.Strategy.Label())
	}
	if len(resp.Sources) > 0 {
		fmt.Fprintln(w, "Sources:")
		for _, src := range resp.Sources {
			fmt.Fprintf(w, "  - %s > %s\n", src.SourceID, src.Header)
		}
	}
	fmt.Fprintf(w, "Time: %s\n", resp.Duration.Round(time.Millisecond))
}
