package main

import (
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/aretw0/teller"
	"github.com/aretw0/teller/pkg/adapters/mcp"
	"github.com/spf13/cobra"
)

var mcpCmd = &cobra.Command{
	Use:   "mcp <tfsa|etransfer>",
	Short: "Run an assistant as a Model Context Protocol (MCP) server",
	Long: `Exposes one assistant as MCP tools, prompts and resources.

Supported Transports:
- stdio (default): Uses Standard Input/Output. Ideal for local process integration.
- sse: Uses Server-Sent Events over HTTP. Ideal for remote agents or debuggers.`,
	Args:      cobra.ExactArgs(1),
	ValidArgs: []string{"tfsa", "etransfer"},
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

		mcp.Version = teller.Version
		opts := []mcp.Option{mcp.WithLogger(a.logger), mcp.WithMaxInputSize(a.cfg.Engine.MaxInputSize)}
		var srv *mcp.Server
		switch args[0] {
		case a.tfsa.Name():
			srv = mcp.NewTFSAServer(a.tfsa, opts...)
		case a.transfer.Name():
			srv = mcp.NewTransferServer(a.transfer, opts...)
		default:
			return fmt.Errorf("unknown workflow %q (want tfsa or etransfer)", args[0])
		}

		transport, _ := cmd.Flags().GetString("transport")
		switch transport {
		case "stdio":
			// Ensure logs don't corrupt JSON-RPC on Stdout
			log.SetOutput(os.Stderr)
			a.logger.Info("starting MCP server", "workflow", args[0], "transport", transport)
			return srv.ServeStdio()
		case "sse":
			addr, _ := cmd.Flags().GetString("addr")
			if addr == "" {
				addr = a.cfg.MCP.Addr
			}
			a.logger.Info("starting MCP server", "workflow", args[0], "transport", transport, "addr", addr)
			if err := srv.ServeSSE(ctx, addr, a.cfg.MCP.BaseURL); err != nil {
				return err
			}
			a.logger.Info("MCP server stopped")
			return nil
		default:
			return fmt.Errorf("unknown transport %q (supported: stdio, sse)", transport)
		}
	},
}

func init() {
	rootCmd.AddCommand(mcpCmd)

	mcpCmd.Flags().String("transport", "stdio", "Transport protocol to use: 'stdio' or 'sse'")
	mcpCmd.Flags().String("addr", "", "Address to listen on (only for SSE, defaults to mcp.addr)")
}
