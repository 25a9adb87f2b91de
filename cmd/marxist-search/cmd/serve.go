package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/domwxyz/marxist-search/internal/httpapi"
	"github.com/domwxyz/marxist-search/internal/profiling"
	"github.com/domwxyz/marxist-search/pkg/search"
)

var (
	serveAddrFlag       string
	serveProfileDirFlag string
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP façade over the retrieval core",
	RunE:  runServe,
}

func init() {
	serveCmd.Flags().StringVar(&serveAddrFlag, "addr", "", "listen address (default host:port from config)")
	serveCmd.Flags().StringVar(&serveProfileDirFlag, "profile-dir", "", "write pprof CPU/heap profiles for this run into the given directory")
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	if serveProfileDirFlag != "" {
		session, err := profiling.Start(serveProfileDirFlag)
		if err != nil {
			return fmt.Errorf("start profiling: %w", err)
		}
		defer func() {
			if err := session.Stop(); err != nil {
				out.Warningf("stop profiling: %v", err)
			} else {
				out.Statusf("", "profiles written to %s", session.Dir())
			}
		}()
	}

	svc, err := search.Open(ctx, cfg)
	if err != nil {
		return fmt.Errorf("open search service: %w", err)
	}
	defer svc.Close()

	addr := serveAddrFlag
	if addr == "" {
		addr = fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	}

	opts := httpapi.Options{
		Addr:           addr,
		RequestTimeout: cfg.Server.RequestTimeout,
		Logger:         slog.Default(),
	}
	if cfg.Server.WatchForReload {
		opts.WatchIndexPath = cfg.IndexPath()
	}
	srv := httpapi.New(svc.Engine, opts)

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.ListenAndServe()
	}()

	out.Successf("listening on %s", addr)

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)

	select {
	case err := <-errCh:
		if err != nil && err != http.ErrServerClosed {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	case <-sigCh:
		out.Status("", "shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	}
}
