package main

import (
	"context"
	"encoding/json"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/aretw0/teller"
	"github.com/aretw0/teller/internal/presentation/tui"
	"github.com/aretw0/teller/internal/sanitize"
	"github.com/aretw0/teller/pkg/assistant"
	"github.com/aretw0/teller/pkg/assistant/etransfer"
	"github.com/aretw0/teller/pkg/assistant/tfsa"
	"github.com/aretw0/teller/pkg/domain"
	"github.com/spf13/cobra"
)

type streamer interface {
	Stream(ctx context.Context, input, userID string) *teller.Execution
}

var tfsaCmd = &cobra.Command{
	Use:   "tfsa <request>",
	Short: "Ask the TFSA contribution assistant",
	Example: `  teller tfsa "How much room do I have?"
  teller tfsa "Contribute $500 to my TFSA" --user user_123`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runWorkflow(cmd, strings.Join(args, " "),
			func(a *app) streamer { return a.tfsa },
			func(s *domain.State) any { return tfsa.ResultFrom(s) })
	},
}

var etransferCmd = &cobra.Command{
	Use:     "etransfer <request>",
	Aliases: []string{"e-transfer"},
	Short:   "Ask the e-Transfer limit assistant",
	Example: `  teller etransfer "What is my daily limit?"
  teller etransfer "Please increase my limit" --user user_456`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runWorkflow(cmd, strings.Join(args, " "),
			func(a *app) streamer { return a.transfer },
			func(s *domain.State) any { return etransfer.ResultFrom(s) })
	},
}

func runWorkflow(cmd *cobra.Command, request string, pick func(*app) streamer, result func(*domain.State) any) error {
	a, err := newApp(cmd)
	if err != nil {
		return err
	}
	defer a.Close()

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	if err := a.seed(ctx); err != nil {
		return err
	}

	input, err := sanitize.Input(request, a.cfg.Engine.MaxInputSize)
	if err != nil {
		return err
	}
	user, _ := cmd.Flags().GetString("user")
	jsonOut, _ := cmd.Flags().GetBool("json")

	printer := tui.NewPrinter(cmd.OutOrStdout())
	run := pick(a).Stream(ctx, input, user)
	for step := range run.Steps() {
		if !jsonOut {
			printer.Step(step)
		}
	}
	if err := run.Err(); err != nil {
		return err
	}

	if jsonOut {
		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		return enc.Encode(result(run.State()))
	}
	printer.Reply(assistant.Reply(run.State()))
	return nil
}

func init() {
	for _, c := range []*cobra.Command{tfsaCmd, etransferCmd} {
		c.Flags().StringP("user", "u", "", "Customer id (defaults to the demo customer)")
		c.Flags().Bool("json", false, "Print the final result as JSON instead of the step trace")
		rootCmd.AddCommand(c)
	}
}
