package main

import (
	"fmt"

	"github.com/aretw0/teller/internal/presentation/graph"
	"github.com/spf13/cobra"
)

var graphCmd = &cobra.Command{
	Use:       "graph <tfsa|etransfer>",
	Short:     "Export a workflow graph as Mermaid",
	Long:      `Outputs a Mermaid diagram (graph TD) of the workflow nodes and routing.`,
	Args:      cobra.ExactArgs(1),
	ValidArgs: []string{"tfsa", "etransfer"},
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(cmd)
		if err != nil {
			return err
		}
		defer a.Close()

		switch args[0] {
		case a.tfsa.Name():
			fmt.Fprint(cmd.OutOrStdout(), graph.GenerateMermaid(a.tfsa.Graph(), nil))
		case a.transfer.Name():
			fmt.Fprint(cmd.OutOrStdout(), graph.GenerateMermaid(a.transfer.Graph(), nil))
		default:
			return fmt.Errorf("unknown workflow %q (want tfsa or etransfer)", args[0])
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(graphCmd)
}
