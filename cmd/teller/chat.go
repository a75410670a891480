package main

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/aretw0/teller"
	"github.com/aretw0/teller/internal/presentation/tui"
	"github.com/aretw0/teller/internal/sanitize"
	"github.com/spf13/cobra"
)

var chatCmd = &cobra.Command{
	Use:   "chat [message]",
	Short: "Route messages to the right assistant",
	Long: `Classifies each message and hands it to the TFSA or e-Transfer assistant.
With a message argument it answers once; otherwise it starts an interactive
session. Type 'exit' or 'quit' to leave.`,
	RunE: func(cmd *cobra.Command, args []string) error {
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

		user, _ := cmd.Flags().GetString("user")
		jsonOut, _ := cmd.Flags().GetBool("json")
		out := cmd.OutOrStdout()
		printer := tui.NewPrinter(out)

		ask := func(message string) error {
			input, err := sanitize.Input(message, a.cfg.Engine.MaxInputSize)
			if err != nil {
				return err
			}
			reply, err := a.router.Handle(ctx, input, user)
			if err != nil {
				return err
			}
			if jsonOut {
				return json.NewEncoder(out).Encode(reply)
			}
			for _, c := range reply.Components {
				fmt.Fprintf(out, "  · %s %s\n", c.Type, c.Name)
			}
			printer.Reply(reply.Response)
			return nil
		}

		if len(args) > 0 {
			return ask(strings.Join(args, " "))
		}

		if printer.Styled() {
			tui.PrintBanner(out, teller.Version)
		}
		sc := bufio.NewScanner(cmd.InOrStdin())
		for {
			fmt.Fprint(out, "> ")
			if !sc.Scan() {
				fmt.Fprintln(out)
				return sc.Err()
			}
			line := strings.TrimSpace(sc.Text())
			switch line {
			case "":
				continue
			case "exit", "quit":
				fmt.Fprintln(out, "Bye!")
				return nil
			}
			if err := ask(line); err != nil {
				if ctx.Err() != nil {
					return nil
				}
				printer.Error(err)
			}
		}
	},
}

func init() {
	rootCmd.AddCommand(chatCmd)
	chatCmd.Flags().StringP("user", "u", "", "Customer id (defaults to each assistant's demo customer)")
	chatCmd.Flags().Bool("json", false, "Print each reply as JSON")
}
