package commands

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/nfcgo/ncicore/internal/logger"
	"github.com/nfcgo/ncicore/internal/metrics"
	"github.com/nfcgo/ncicore/pkg/nci"
)

var serveMetricsCmd = &cobra.Command{
	Use:   "serve-metrics",
	Short: "Run the controller in discovery and serve Prometheus metrics",
	Long: `serve-metrics bootstraps the controller, enters RFST_DISCOVERY, and keeps
polling while serving the /metrics endpoint on --metrics-addr. Activated
targets are released back to discovery immediately, so the metrics reflect a
continuous polling loop.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		addr := viper.GetString("metrics.addr")
		if addr == "" {
			return fmt.Errorf("serve-metrics requires --metrics-addr")
		}
		metrics.InitRegistry()

		core, closer, err := openCore()
		if err != nil {
			return err
		}
		defer closer()

		if err := bootstrap(core); err != nil {
			return err
		}

		// Release every activated target so polling never parks on one.
		sub := core.SubscribeIntfActivated(func(ev nci.IntfActivatedEvent) {
			logger.Info("target activated", "discovery_id", ev.DiscoveryID, "rf_interface", rfInterfaceName(ev.RFInterface))
			go func() {
				if _, err := core.SetState(nci.StateDiscovery); err != nil {
					logger.Warn("failed to release target", "error", err)
				}
			}()
		})
		defer core.Unsubscribe(sub)

		if ok, err := core.SetState(nci.StateDiscovery); err != nil || !ok {
			return fmt.Errorf("entering discovery: %w", err)
		}
		if err := waitForState(core, nci.StateDiscovery, bootstrapTimeout); err != nil {
			return err
		}

		mux := http.NewServeMux()
		mux.Handle("/metrics", metrics.Handler())
		server := &http.Server{Addr: addr, Handler: mux}

		serveErr := make(chan error, 1)
		go func() {
			logger.Info("serving metrics", "addr", addr)
			if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				serveErr <- err
			}
		}()

		interrupt := make(chan os.Signal, 1)
		signal.Notify(interrupt, os.Interrupt, syscall.SIGTERM)
		defer signal.Stop(interrupt)

		select {
		case err := <-serveErr:
			return fmt.Errorf("metrics server: %w", err)
		case <-interrupt:
		}

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	},
}
