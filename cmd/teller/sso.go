package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/aretw0/teller/pkg/auth/google"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
)

var ssoCmd = &cobra.Command{
	Use:   "sso",
	Short: "Google sign-in demos",
}

var ssoDesktopCmd = &cobra.Command{
	Use:   "desktop",
	Short: "Sign in with the desktop PKCE flow",
	Long: `Starts a local callback server, prints the Google sign-in URL and waits for
the redirect. The resulting deep link is verified as the app would on launch.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig(cmd)
		if err != nil {
			return err
		}
		logger := newLogger(cfg)

		d, err := google.NewDesktop(cfg.Google.Desktop, google.WithLogger(logger))
		if err != nil {
			return err
		}

		timeout, _ := cmd.Flags().GetDuration("timeout")
		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()
		ctx, cancel := context.WithTimeout(ctx, timeout)
		defer cancel()

		out := cmd.OutOrStdout()
		link, err := d.Login(ctx, func(authURL string) error {
			fmt.Fprintf(out, "Open this URL in your browser to sign in:\n\n  %s\n\n", authURL)
			return nil
		})
		if err != nil {
			return err
		}

		id, err := d.HandleDeepLink(ctx, link)
		if err != nil {
			return fmt.Errorf("authentication failed: %w", err)
		}
		fmt.Fprintf(out, "Authenticated user: %s\n", id.Email)
		return nil
	},
}

var ssoVerifyCmd = &cobra.Command{
	Use:   "verify <deep-link>",
	Short: "Verify a deep link such as teller://auth?id_token=...",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig(cmd)
		if err != nil {
			return err
		}
		d, err := google.NewDesktop(cfg.Google.Desktop, google.WithLogger(newLogger(cfg)))
		if err != nil {
			return err
		}
		id, err := d.HandleDeepLink(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		return enc.Encode(id)
	},
}

var ssoWebCmd = &cobra.Command{
	Use:   "web",
	Short: "Serve the web sign-in flow",
	Long:  `Serves /login, /oauth2callback, /protected and /logout with a signed session cookie.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig(cmd)
		if err != nil {
			return err
		}
		logger := newLogger(cfg)

		w, err := google.NewWeb(cfg.Google.Web, google.WithLogger(logger))
		if err != nil {
			return err
		}

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		srv := &http.Server{
			Addr:              cfg.Google.WebAddr,
			Handler:           w.Handler(),
			ReadHeaderTimeout: 10 * time.Second,
		}
		g, gctx := errgroup.WithContext(ctx)
		g.Go(func() error {
			logger.Info("SSO web demo listening", "addr", srv.Addr)
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return err
			}
			return nil
		})
		g.Go(func() error {
			<-gctx.Done()
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			return srv.Shutdown(shutdownCtx)
		})
		return g.Wait()
	},
}

func init() {
	rootCmd.AddCommand(ssoCmd)
	ssoCmd.AddCommand(ssoDesktopCmd, ssoVerifyCmd, ssoWebCmd)
	ssoDesktopCmd.Flags().Duration("timeout", 5*time.Minute, "How long to wait for the browser")
}
