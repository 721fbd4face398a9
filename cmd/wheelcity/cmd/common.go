package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/kang022878/WheelCity-back-2025/internal/adapters/evidence"
	"github.com/kang022878/WheelCity-back-2025/internal/adapters/inference"
	"github.com/kang022878/WheelCity-back-2025/internal/adapters/store"
	"github.com/kang022878/WheelCity-back-2025/internal/config"
	"github.com/kang022878/WheelCity-back-2025/internal/events"
	"github.com/kang022878/WheelCity-back-2025/internal/logging"
	"github.com/kang022878/WheelCity-back-2025/internal/service/reconcile"
)

// eventBufferSize is the per-subscriber buffer of the notification bus.
const eventBufferSize = 100

// runtime holds the collaborators shared by the commands that touch data.
type runtime struct {
	cfg    *config.Config
	logger *logging.Logger
	store  *store.SQLiteStore
	bus    *events.EventBus
	engine *reconcile.Engine
}

func newLogger(cfg *config.Config) *logging.Logger {
	return logging.New(logging.Config{
		Level:   cfg.Log.Level,
		Format:  cfg.Log.Format,
		Output:  os.Stderr,
		Secrets: cfg.Secrets(),
	})
}

// openRuntime opens the store and wires the reconciliation engine from the
// loaded configuration.
func openRuntime(ctx context.Context) (*runtime, error) {
	if appConfig == nil {
		return nil, errors.New("configuration not loaded")
	}
	cfg := appConfig
	logger := newLogger(cfg)

	st, err := store.Open(cfg.Store.Path)
	if err != nil {
		return nil, fmt.Errorf("opening store: %w", err)
	}

	gateway, err := inference.New(ctx, inference.Config{
		Provider:          cfg.Inference.Provider,
		APIKey:            cfg.Inference.APIKey,
		Model:             cfg.Inference.Model,
		Timeout:           cfg.Inference.Timeout,
		Temperature:       cfg.Inference.Temperature,
		RequestsPerSecond: cfg.Inference.RequestsPerSecond,
		Burst:             cfg.Inference.Burst,
		MaxConcurrent:     cfg.Inference.MaxConcurrent,
		AllowedMIMETypes:  cfg.Inference.AllowedMIMETypes,
	}, logger.WithComponent("inference"))
	if err != nil {
		_ = st.Close()
		return nil, fmt.Errorf("creating inference gateway: %w", err)
	}

	fetcher := evidence.NewHTTPFetcher(evidence.Config{
		Timeout:   cfg.Evidence.Timeout,
		MaxBytes:  cfg.Evidence.MaxBytes,
		UserAgent: cfg.Evidence.UserAgent,
	})

	bus := events.New(eventBufferSize)
	engine := reconcile.NewEngine(reconcile.Deps{
		Venues:      st,
		Reports:     st,
		Fetcher:     fetcher,
		Gateway:     gateway,
		Notifier:    bus,
		Logger:      logger.WithComponent("reconcile"),
		CallTimeout: cfg.Reconcile.CallTimeout,
	})

	logger.Debug("runtime ready",
		"store", cfg.Store.Path,
		"gateway", gateway.Name(),
	)
	return &runtime{cfg: cfg, logger: logger, store: st, bus: bus, engine: engine}, nil
}

func (r *runtime) Close() error {
	r.bus.Close()
	return r.store.Close()
}
