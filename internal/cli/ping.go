package cli

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
)

var pingCmd = &cobra.Command{
	Use:   "ping",
	Short: "Repeatedly ask the server for its backend process ID",
	Long: `Repeatedly ask the server for its backend process ID.  The ID changes whenever the
connection was lost and reopened, e.g. after

  SELECT pg_terminate_backend(<pid>);

from another session.`,
	Args: cobra.NoArgs,
	RunE: runPing,
}

func init() {
	pingCmd.Flags().Duration("interval", time.Second, "Time between pings")
	pingCmd.Flags().Int("count", 0, "Number of pings; 0 pings until interrupted")
	pingCmd.Flags().String("metrics-addr", "", "Serve Prometheus metrics at this address, e.g. :9090; overrides the configuration")

	rootCmd.AddCommand(pingCmd)
}

func runPing(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	interval, _ := cmd.Flags().GetDuration("interval")
	count, _ := cmd.Flags().GetInt("count")

	reg := prometheus.NewRegistry()

	s, err := open(ctx, cmd, reg)
	if err != nil {
		return err
	}
	defer s.close(ctx)

	addr := s.cfg.Metrics.Addr
	if flagAddr, _ := cmd.Flags().GetString("metrics-addr"); flagAddr != "" {
		addr = flagAddr
	}

	if addr != "" {
		srv := &http.Server{
			Addr:              addr,
			Handler:           promhttp.HandlerFor(reg, promhttp.HandlerOpts{}),
			ReadHeaderTimeout: 5 * time.Second,
		}

		go func() {
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				s.logger.Error().Err(err).Str("addr", addr).Msg("metrics server failed")
			}
		}()
		defer srv.Close()

		s.logger.Info().Str("addr", addr).Msg("serving metrics")
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for n := 1; count == 0 || n <= count; n++ {
		var pid int32
		if err := s.conn.QueryRow(ctx, "SELECT pg_backend_pid()").Scan(&pid); err != nil {
			s.logger.Error().Err(err).Int("ping", n).Msg("ping failed")
		} else {
			fmt.Fprintf(cmd.OutOrStdout(), "ping %d: backend %d\n", n, pid)
		}

		if count != 0 && n == count {
			break
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}

	return nil
}
