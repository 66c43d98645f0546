package cli

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the audit HTTP API",
	Long: `Serve exposes audits, job polling, scouting and report history over HTTP.

Routes:
  POST /audit                 audit a promise (200 report, 202 pending job)
  GET  /jobs/{fingerprint}    poll a job
  GET  /scout/{subject}       new news items for a subject
  GET  /reports?politician=   stored reports
  GET  /reports/{fingerprint} latest report for a fingerprint
  GET  /healthz               liveness
  GET  /metrics               Prometheus metrics

Example:
  promessa serve --addr :8088`,
	Args: cobra.NoArgs,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().String("addr", "", "listen address (default from server.addr)")
	serveCmd.Flags().Duration("sync-wait", 0, "how long POST /audit waits before answering 202")
	serveCmd.Flags().String("log-format", "", "log format: text or json")

	_ = viper.BindPFlag("server.addr", serveCmd.Flags().Lookup("addr"))
	_ = viper.BindPFlag("server.sync_wait", serveCmd.Flags().Lookup("sync-wait"))
	_ = viper.BindPFlag("log.format", serveCmd.Flags().Lookup("log-format"))
}

func runServe(cmd *cobra.Command, args []string) error {
	s, err := openSession(cmd)
	if err != nil {
		return err
	}
	defer s.close()

	srv := s.pipeline.Server()
	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Start()
	}()

	s.ui.Success("Serving on %s", s.cfg.Server.Addr)

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("serve: %w", err)
	case <-cmd.Context().Done():
	}

	s.logger.Info("shutting down")
	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	return nil
}
