package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/aretw0/teller"
	httpAdapter "github.com/aretw0/teller/pkg/adapters/http"
	"github.com/aretw0/teller/pkg/adapters/mcp"
	"github.com/aretw0/teller/pkg/assistant/etransfer"
	"github.com/aretw0/teller/pkg/assistant/tfsa"
	"github.com/aretw0/teller/pkg/domain"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP API",
	Long: `Serves the assistants as a JSON API with Prometheus metrics on /metrics.
With --mcp the TFSA and e-Transfer MCP servers are started over SSE as well.`,
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

		addr, _ := cmd.Flags().GetString("addr")
		if addr == "" {
			addr = a.cfg.HTTP.Addr
		}
		handler := httpAdapter.NewHandler(httpAdapter.Config{
			TFSA: httpAdapter.Endpoint{
				Workflow: a.tfsa,
				Result:   func(s *domain.State) any { return tfsa.ResultFrom(s) },
			},
			Transfer: httpAdapter.Endpoint{
				Workflow: a.transfer,
				Result:   func(s *domain.State) any { return etransfer.ResultFrom(s) },
			},
			Chat:              a.router,
			Gatherer:          a.registry,
			Registerer:        a.registry,
			Logger:            a.logger,
			AllowedOrigins:    a.cfg.HTTP.AllowedOrigins,
			MaxInputSize:      a.cfg.Engine.MaxInputSize,
			ContributionRate:  rate.Every(time.Minute / time.Duration(a.cfg.HTTP.ContributionsPerMinute)),
			ContributionBurst: a.cfg.HTTP.ContributionsPerMinute,
		})
		srv := &http.Server{
			Addr:              addr,
			Handler:           handler,
			ReadHeaderTimeout: 10 * time.Second,
		}

		g, gctx := errgroup.WithContext(ctx)
		g.Go(func() error {
			a.logger.Info("HTTP API listening", "addr", addr, "store", a.cfg.Store.Driver)
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return err
			}
			return nil
		})
		g.Go(func() error {
			<-gctx.Done()
			shutdownCtx, cancel := context.WithTimeout(context.Background(), a.cfg.HTTP.ShutdownTimeout)
			defer cancel()
			a.logger.Info("shutting down HTTP API")
			return srv.Shutdown(shutdownCtx)
		})

		if withMCP, _ := cmd.Flags().GetBool("mcp"); withMCP {
			mcp.Version = teller.Version
			transferAddr, _ := cmd.Flags().GetString("mcp-transfer-addr")
			opts := []mcp.Option{mcp.WithLogger(a.logger), mcp.WithMaxInputSize(a.cfg.Engine.MaxInputSize)}
			tfsaMCP := mcp.NewTFSAServer(a.tfsa, opts...)
			transferMCP := mcp.NewTransferServer(a.transfer, opts...)
			g.Go(func() error { return tfsaMCP.ServeSSE(gctx, a.cfg.MCP.Addr, a.cfg.MCP.BaseURL) })
			g.Go(func() error { return transferMCP.ServeSSE(gctx, transferAddr, "") })
		}

		err = g.Wait()
		a.logger.Info("teller stopped")
		return err
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)
	serveCmd.Flags().StringP("addr", "a", "", "Address to listen on (defaults to http.addr)")
	serveCmd.Flags().Bool("mcp", false, "Also serve both assistants as MCP over SSE")
	serveCmd.Flags().String("mcp-transfer-addr", ":8002", "Address of the e-Transfer MCP server")
}
