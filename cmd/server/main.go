package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"google.golang.org/grpc"

	"github.com/maxim618/inventory-reservation-service/internal/adapter/handler"
	"github.com/maxim618/inventory-reservation-service/internal/adapter/handler/rpc"
	"github.com/maxim618/inventory-reservation-service/internal/adapter/storage"
	"github.com/maxim618/inventory-reservation-service/internal/config"
	"github.com/maxim618/inventory-reservation-service/internal/core/domain"
	"github.com/maxim618/inventory-reservation-service/internal/core/service"
	"github.com/maxim618/inventory-reservation-service/internal/port"
)

func main() {
	if err := newRootCommand().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCommand() *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:          "server",
		Short:        "Inventory reservation service (HTTP + gRPC)",
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(configPath)
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}

			logger, err := config.NewLogger(cfg.Log)
			if err != nil {
				return fmt.Errorf("init logger: %w", err)
			}
			defer logger.Sync()

			return run(cmd.Context(), cfg, logger)
		},
	}

	cmd.PersistentFlags().StringVarP(&configPath, "config", "c", "config.yaml", "path to the yaml config file, empty for env only")
	cmd.AddCommand(newInventoryCommand(&configPath))

	return cmd
}

func run(ctx context.Context, cfg *config.Config, logger *zap.Logger) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	// Reservation store
	var store port.ReservationStore
	switch cfg.Store.Backend {
	case "redis":
		rdb, err := config.NewRedisClient(ctx, cfg.Redis)
		if err != nil {
			return err
		}
		defer rdb.Close()
		store = storage.NewRedisAdapter(rdb)
		logger.Info("connected to redis", zap.String("addr", cfg.Redis.Addr))
	case "memory":
		store = storage.NewMemoryAdapter()
		logger.Info("using in-memory reservation store")
	}

	// Journal
	repo, closeJournal, err := openJournal(ctx, cfg.Journal, logger)
	if err != nil {
		return err
	}
	defer closeJournal()

	queueSize := 0
	if repo != nil {
		queueSize = cfg.Journal.QueueSize
	}
	reservations := service.NewReservationService(store, logger, service.Options{
		DefaultTTL:       cfg.Reservation.DefaultTTL,
		JournalQueueSize: queueSize,
		History:          repo,
	})

	// Seed stock counters that do not exist yet
	if err := seedStock(ctx, cfg, repo, reservations); err != nil {
		return err
	}

	waitJournal := func() {}
	if repo != nil {
		waitJournal = service.StartJournalWorkers(reservations.Journal(), repo, cfg.Journal.Workers, cfg.Journal.WriteTimeout, logger)
	}

	// gRPC server
	grpcServer := grpc.NewServer(grpc.UnaryInterceptor(handler.UnaryLoggingInterceptor(logger)))
	rpc.RegisterReservationServer(grpcServer, handler.NewGRPCHandler(reservations))

	lis, err := net.Listen("tcp", cfg.Server.GRPCAddr)
	if err != nil {
		return fmt.Errorf("listen grpc: %w", err)
	}

	serveErr := make(chan error, 2)
	go func() {
		logger.Info("gRPC server listening", zap.String("addr", cfg.Server.GRPCAddr))
		if err := grpcServer.Serve(lis); err != nil {
			serveErr <- fmt.Errorf("grpc server: %w", err)
		}
	}()

	// HTTP server
	httpServer := &http.Server{
		Addr:         cfg.Server.HTTPAddr,
		Handler:      handler.NewRouter(handler.NewHTTPHandler(reservations), logger),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	go func() {
		logger.Info("HTTP server listening", zap.String("addr", cfg.Server.HTTPAddr))
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- fmt.Errorf("http server: %w", err)
		}
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	var runErr error
	select {
	case <-quit:
		logger.Info("shutting down...")
	case runErr = <-serveErr:
		logger.Error("server failed, shutting down", zap.Error(runErr))
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.Server.GracefulShutdownTimeout)
	defer shutdownCancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Warn("HTTP server forced to shutdown", zap.Error(err))
	}
	logger.Info("HTTP server stopped")

	grpcServer.GracefulStop()
	logger.Info("gRPC server stopped")

	// Close the journal queue and wait for workers
	reservations.Close()
	waitJournal()
	logger.Info("journal workers stopped")

	return runErr
}

// openJournal opens the configured journal backend. It returns a nil
// repository when journaling is off.
func openJournal(ctx context.Context, cfg config.JournalConfig, logger *zap.Logger) (port.JournalRepository, func(), error) {
	switch cfg.Backend {
	case "mysql":
		db, err := config.NewMySQLDB(ctx, cfg.MySQLDSN)
		if err != nil {
			return nil, nil, err
		}
		mysqlAdapter := storage.NewMySQLAdapter(db)
		if err := mysqlAdapter.EnsureSchema(ctx); err != nil {
			db.Close()
			return nil, nil, err
		}
		logger.Info("connected to mysql journal")
		return mysqlAdapter, func() { db.Close() }, nil
	case "sqlite":
		sqliteAdapter, err := storage.OpenSQLite(cfg.SQLitePath)
		if err != nil {
			return nil, nil, err
		}
		logger.Info("opened sqlite journal", zap.String("path", cfg.SQLitePath))
		return sqliteAdapter, func() { sqliteAdapter.Close() }, nil
	default:
		return nil, func() {}, nil
	}
}

func seedStock(ctx context.Context, cfg *config.Config, repo port.JournalRepository, reservations *service.ReservationService) error {
	var levels []domain.StockLevel
	for _, seed := range cfg.Stock.Seed {
		levels = append(levels, domain.StockLevel{StockID: seed.ID, Quantity: seed.Quantity})
	}

	if repo != nil && cfg.Journal.SeedFromDB {
		fromDB, err := repo.LoadStockLevels(ctx)
		if err != nil {
			return fmt.Errorf("load stock levels: %w", err)
		}
		levels = append(levels, fromDB...)
	}

	if _, err := reservations.SeedStock(ctx, levels); err != nil {
		return err
	}
	return nil
}
