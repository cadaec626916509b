// Maestro Server — оркестратор сервисов с HTTP API.
//
// Процесс:
//   - Загружает конфигурацию (maestro.yaml + env)
//   - Подключает базу знаний PostgreSQL и RabbitMQ, если они включены
//   - Запускает orchestrator, регистрирует сервисы из конфигурации
//   - Запускает scheduler и HTTP API (/api/v1, /healthz, /metrics)
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/shaiso/Maestro/internal/api"
	"github.com/shaiso/Maestro/internal/config"
	"github.com/shaiso/Maestro/internal/mq"
	"github.com/shaiso/Maestro/internal/orchestrator"
	"github.com/shaiso/Maestro/internal/registry"
	"github.com/shaiso/Maestro/internal/repo"
	"github.com/shaiso/Maestro/internal/scheduler"
	"github.com/shaiso/Maestro/internal/service"
	"github.com/shaiso/Maestro/internal/services"
	"github.com/shaiso/Maestro/internal/telemetry"
)

// version задаётся через ldflags при сборке.
var version = "dev"

func main() {
	var configPath string

	rootCmd := &cobra.Command{
		Use:           "maestro-server",
		Short:         "Maestro service orchestrator",
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(configPath)
			if err != nil {
				return err
			}

			ctx, cancel := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer cancel()

			return run(ctx, cfg)
		},
	}

	rootCmd.Flags().StringVar(&configPath, "config", "", "Path to config file (default: ./maestro.yaml)")

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg *config.Config) error {
	// Инициализируем structured logging
	logger := telemetry.SetupLogger(telemetry.Options{Level: cfg.Log.Level, Format: cfg.Log.Format})
	logger.Info("starting maestro-server", "version", version)

	// Метрики: свой registry + стандартные коллекторы процесса
	promReg := prometheus.NewRegistry()
	promReg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	metrics := telemetry.NewMetrics(promReg)

	deps := services.Deps{
		Logger:  logger,
		Metrics: metrics,
		Anthropic: services.AnthropicConfig{
			APIKey:      cfg.Anthropic.APIKey,
			Model:       cfg.Anthropic.Model,
			MaxTokens:   cfg.Anthropic.MaxTokens,
			Temperature: &cfg.Anthropic.Temperature,
		},
	}

	// База знаний
	if cfg.Database.Enabled {
		pool, err := repo.NewPool(ctx, repo.PoolConfig{URL: cfg.Database.URL, MaxConns: cfg.Database.MaxConns})
		if err != nil {
			logger.Warn("knowledge base not available, database and rag services will fail to start", "error", err)
		} else {
			defer pool.Close()

			knowledge := repo.NewKnowledgeRepo(pool)
			if err := knowledge.EnsureSchema(ctx); err != nil {
				return fmt.Errorf("ensure knowledge schema: %w", err)
			}
			deps.Knowledge = knowledge
			logger.Info("database connected")
		}
	}

	// RabbitMQ
	var (
		mqConn    *mq.Connection
		publisher *mq.Publisher
	)
	if cfg.RabbitMQ.Enabled {
		conn, err := mq.NewConnection(cfg.RabbitMQ.URL, logger)
		if err != nil {
			logger.Warn("RabbitMQ not available, events will not be published", "error", err)
		} else {
			mqConn = conn
			defer mqConn.Close()

			if err := mq.SetupTopology(ctx, mqConn); err != nil {
				return fmt.Errorf("setup topology: %w", err)
			}
			publisher = mq.NewPublisher(mqConn, logger)
			logger.Info("RabbitMQ connected")
		}
	}

	orchCfg := orchestrator.Config{
		Registry: registry.New(registry.Config{
			HealthInterval: cfg.Registry.HealthCheckInterval,
			ErrorBackoff:   cfg.Registry.LoopErrorBackoff,
			Logger:         logger,
			Metrics:        metrics,
		}),
		Factory:                 services.NewFactory(deps),
		RetryBaseDelay:          cfg.Orchestrator.RetryBaseDelay,
		CancelSiblingsOnFailure: cfg.Orchestrator.CancelSiblingsOnFailure,
		Logger:                  logger,
		Metrics:                 metrics,
	}
	if publisher != nil {
		orchCfg.Publisher = publisher
	}
	orch := orchestrator.New(orchCfg)

	orchSvc := orch.AsService(service.Config{Version: version})
	if err := orchSvc.Start(ctx); err != nil {
		return fmt.Errorf("start orchestrator: %w", err)
	}
	defer func() {
		stopCtx, stopCancel := context.WithTimeout(context.WithoutCancel(ctx), cfg.Server.ShutdownTimeout)
		defer stopCancel()
		if err := orchSvc.Stop(stopCtx); err != nil {
			logger.Error("orchestrator stop error", "error", err)
		}
	}()

	registerServices(ctx, orch, cfg, logger)

	// Scheduler
	sched := scheduler.New(scheduler.Config{Submitter: orch, Logger: logger})
	for _, sc := range cfg.Schedules {
		s, err := sc.Schedule()
		if err == nil {
			err = sched.Add(s)
		}
		if err != nil {
			return fmt.Errorf("schedule %q: %w", sc.Name, err)
		}
	}

	handler := api.NewHandler(api.Config{
		Orchestrator: orch,
		Metrics:      metrics,
		Gatherer:     promReg,
		Logger:       logger,
	})

	server := &http.Server{
		Addr:    cfg.Server.Addr,
		Handler: handler.Routes(),
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		logger.Info("listening", "addr", server.Addr)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		logger.Info("shutting down")

		shutdownCtx, shutdownCancel := context.WithTimeout(context.WithoutCancel(gctx), cfg.Server.ShutdownTimeout)
		defer shutdownCancel()
		return server.Shutdown(shutdownCtx)
	})

	if len(cfg.Schedules) > 0 {
		g.Go(func() error {
			sched.Run(gctx)
			return nil
		})
	}

	if mqConn != nil {
		consumer := mq.NewConsumer(mqConn, logger, mq.ConsumerConfig{
			Queue:   mq.QueueWorkflowsSubmit,
			Handler: mq.SubmitHandler(orch, logger),
		})
		g.Go(func() error {
			if err := consumer.Run(gctx); err != nil && !errors.Is(err, context.Canceled) {
				return fmt.Errorf("submit consumer: %w", err)
			}
			return nil
		})
	}

	err := g.Wait()
	logger.Info("maestro-server stopped")
	return err
}

// registerServices создаёт сервисы из конфигурации в порядке объявления.
// Ошибка одного сервиса не останавливает процесс.
func registerServices(ctx context.Context, orch *orchestrator.Orchestrator, cfg *config.Config, logger *slog.Logger) {
	for _, sc := range cfg.Services {
		reg, err := orch.RegisterService(ctx, sc.Type, sc.ServiceSettings(cfg.Runner.MaxConcurrency))
		if err != nil {
			logger.Error("failed to register service", "service_type", sc.Type, "name", sc.Name, "error", err)
			continue
		}
		if !reg.DependenciesOK {
			logger.Warn("service registered with missing dependencies",
				"service", reg.ServiceName,
				"missing", reg.Missing,
			)
		}
	}
}
