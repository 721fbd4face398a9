package cmd

import (
	"context"
	"errors"
	"fmt"
	"net"
	"os/signal"
	"strconv"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"golang.org/x/sync/errgroup"

	"github.com/kang022878/WheelCity-back-2025/internal/api"
	"github.com/kang022878/WheelCity-back-2025/internal/logging"
	"github.com/kang022878/WheelCity-back-2025/internal/service/reconcile"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP API",
	Long: `Start the wheelcity HTTP API.

Examples:
  # Start with defaults (localhost:8080)
  wheelcity serve

  # Listen on all interfaces
  wheelcity serve --host 0.0.0.0 --port 3000

  # Disable CORS (behind a reverse proxy)
  wheelcity serve --no-cors

On start, venues whose consensus check was interrupted (for example by a
crash after a report was stored) are rechecked in the background.`,
	RunE: runServe,
}

var (
	serveNoCORS         bool
	serveNoStartupCheck bool
)

const startupRecheckParallel = 4

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().String("host", "localhost", "Host address to bind to")
	serveCmd.Flags().IntP("port", "p", 8080, "Port to listen on")
	serveCmd.Flags().BoolVar(&serveNoCORS, "no-cors", false, "Disable CORS headers")
	serveCmd.Flags().BoolVar(&serveNoStartupCheck, "no-startup-recheck", false, "Skip the background recheck of every venue on start")

	_ = viper.BindPFlag("server.host", serveCmd.Flags().Lookup("host"))
	_ = viper.BindPFlag("server.port", serveCmd.Flags().Lookup("port"))
}

func runServe(cmd *cobra.Command, _ []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	rt, err := openRuntime(ctx)
	if err != nil {
		return err
	}
	defer func() {
		if err := rt.Close(); err != nil {
			rt.logger.Warn("closing runtime", "error", err)
		}
	}()

	cfg := rt.cfg
	origins := cfg.Server.CORSOrigins
	if serveNoCORS {
		origins = nil
	}
	if cfg.Internal.APIKey == "" {
		rt.logger.Warn("internal.api_key is empty; internal routes will reject every request")
	}

	server := api.NewServer(rt.engine, rt.store, rt.store,
		api.WithLogger(rt.logger.WithComponent("api")),
		api.WithEventBus(rt.bus),
		api.WithInternalAPIKey(cfg.Internal.APIKey),
		api.WithCORSOrigins(origins),
		api.WithRequestTimeout(cfg.Server.RequestTimeout),
	)
	addr := net.JoinHostPort(cfg.Server.Host, strconv.Itoa(cfg.Server.Port))

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		err := server.ListenAndServe(gctx, addr)
		rt.logger.Info("server stopped")
		return err
	})
	if !serveNoStartupCheck {
		g.Go(func() error {
			recheckDeferred(gctx, rt.engine, rt.logger, startupRecheckParallel)
			return nil
		})
	}

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		return fmt.Errorf("server: %w", err)
	}
	return nil
}

// recheckDeferred runs the consensus check on every venue and returns how
// many re-evaluations it triggered. Failures are logged; they never stop
// the server.
func recheckDeferred(ctx context.Context, engine *reconcile.Engine, logger *logging.Logger, parallel int) int {
	results, err := engine.RecheckAll(ctx, parallel)
	if err != nil {
		if ctx.Err() == nil {
			logger.Warn("startup recheck failed", "error", err)
		}
		return 0
	}

	triggered := 0
	for id, res := range results {
		if res.Decision != reconcile.DecisionReevaluate {
			continue
		}
		triggered++
		logger.Info("deferred window re-evaluated", "venue_id", string(id), "outcome", string(res.Result.Outcome))
	}
	logger.Info("startup recheck finished", "venues", len(results), "triggered", triggered)
	return triggered
}
