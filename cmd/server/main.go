package main

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"os/signal"
	"runtime"
	"sync"
	"syscall"
	"time"

	"hospital-queue/internal/config"
	"hospital-queue/internal/http/handler"
	"hospital-queue/internal/http/middleware"
	"hospital-queue/internal/monitoring"
	"hospital-queue/internal/queue"
	"hospital-queue/internal/realtime"
	"hospital-queue/internal/storage"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/gofiber/fiber/v2/middleware/requestid"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "queue-server",
		Short: "Hospital queue real-time coordination server",
	}

	rootCmd.AddCommand(serveCmd())
	rootCmd.AddCommand(tokenCmd())

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func serveCmd() *cobra.Command {
	var envFile string
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP and WebSocket server",
		RunE: func(cmd *cobra.Command, args []string) error {
			var files []string
			if envFile != "" {
				files = append(files, envFile)
			}
			return runServer(files...)
		},
	}
	cmd.Flags().StringVar(&envFile, "env-file", "", "dotenv file to load instead of .env")
	return cmd
}

// tokenCmd issues a signed bearer token for displays, kiosks and staff consoles
// that are not fronted by the hospital login service.
func tokenCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "token",
		Short: "Issue a signed bearer token",
		RunE: func(cmd *cobra.Command, args []string) error {
			userID, _ := cmd.Flags().GetString("user")
			if userID == "" {
				return fmt.Errorf("--user is required")
			}
			username, _ := cmd.Flags().GetString("username")
			role, _ := cmd.Flags().GetString("role")
			ttl, _ := cmd.Flags().GetDuration("ttl")
			envFile, _ := cmd.Flags().GetString("env-file")

			var files []string
			if envFile != "" {
				files = append(files, envFile)
			}
			cfg, err := config.Load(files...)
			if err != nil {
				return err
			}

			token, err := config.GenerateToken(cfg.JWTSecret, userID, username, role, ttl)
			if err != nil {
				return err
			}
			fmt.Println(token)
			return nil
		},
	}
	cmd.Flags().String("user", "", "User id placed in the token")
	cmd.Flags().String("username", "", "Display name placed in the token")
	cmd.Flags().String("role", middleware.RoleStaff, "Role: admin, staff or patient")
	cmd.Flags().Duration("ttl", 12*time.Hour, "Token lifetime")
	cmd.Flags().String("env-file", "", "dotenv file to load instead of .env")
	return cmd
}

func runServer(envFiles ...string) error {
	runtime.GOMAXPROCS(runtime.NumCPU())

	cfg, err := config.Load(envFiles...)
	if err != nil {
		return err
	}
	logger := config.NewLogger(cfg.LogLevel, cfg.LogPretty)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Storage
	var redisClient *redis.Client
	if cfg.NumberBackend == config.BackendRedis {
		redisClient, err = config.NewRedis(ctx, cfg)
		if err != nil {
			return err
		}
		defer redisClient.Close()
		logger.Info().Str("addr", cfg.RedisAddr).Int("db", cfg.RedisDB).Msg("redis connected")
	}

	var db *sql.DB
	if cfg.CatalogBackend == config.BackendMySQL {
		db, err = config.NewMySQL(ctx, cfg.MySQLDSN)
		if err != nil {
			return err
		}
		defer db.Close()
		logger.Info().Msg("mysql connected")
	}

	// Queue
	var catalog queue.Catalog = queue.NewMemoryCatalog(defaultServices...)
	if db != nil {
		catalog = storage.NewMySQLCatalog(db)
	}
	var numbers queue.NumberSource = &queue.SequenceNumbers{}
	if redisClient != nil {
		numbers = storage.NewRedisCounter(redisClient)
	}
	var predictor queue.Predictor
	if cfg.PredictorURL != "" {
		predictor = queue.NewHTTPPredictor(cfg.PredictorURL)
	}
	estimator := queue.NewEstimator(logger, predictor, cfg.PredictorTimeout)
	store := queue.NewStore(logger, catalog, numbers, estimator)
	ops := monitoring.NewQueue(logger, store)

	// Realtime
	registry := realtime.NewRegistry(logger, realtime.WithSendBufferSize(cfg.SendBufferSize))
	conns := monitoring.NewConnections(logger, registry)
	broadcaster := realtime.NewBroadcaster(logger, registry, conns)
	monitor := monitoring.NewMonitor(registry, broadcaster)
	broadcaster.WithRecorder(monitor)
	presence := realtime.NewPresenceTracker(logger, registry, broadcaster)
	supervisor := realtime.NewHeartbeatSupervisor(logger, registry, conns, cfg.HeartbeatInterval, cfg.HeartbeatTimeout).
		WithRecorder(monitor)

	var sinks []realtime.EventSink
	if redisClient != nil {
		sinks = append(sinks, storage.NewRedisPublisher(redisClient))
	}
	if db != nil {
		sinks = append(sinks, storage.NewMySQLJournal(db))
	}
	dispatcher := realtime.NewDispatcher(logger, broadcaster, cfg.SinkTimeout, sinks...)
	store.Subscribe(dispatcher.Handle)

	hub := realtime.NewHub(logger, realtime.HubConfig{
		HeartbeatInterval:  cfg.HeartbeatInterval,
		MaxMalformedFrames: cfg.MaxMalformedFrames,
	}, registry, conns, broadcaster, presence, ops)

	workerCtx, stopWorkers := context.WithCancel(context.Background())
	var wg sync.WaitGroup
	for _, run := range []func(context.Context) error{broadcaster.Run, dispatcher.Run, supervisor.Run, monitor.Run} {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := run(workerCtx); err != nil {
				logger.Error().Err(err).Msg("background worker stopped")
			}
		}()
	}

	// HTTP
	app := fiber.New(fiber.Config{
		Prefork:               false,
		CaseSensitive:         true,
		StrictRouting:         true,
		DisableStartupMessage: true,
	})

	app.Use(recover.New())
	app.Use(requestid.New())
	app.Use(middleware.Logger(logger))
	app.Use(cors.New(cors.Config{
		AllowOrigins: "*",
		AllowHeaders: "Origin, Content-Type, Accept, Authorization",
		AllowMethods: "GET, POST, PUT, DELETE",
	}))

	deps := handler.Deps{
		Log:       logger,
		Queue:     ops,
		Registry:  registry,
		Presence:  presence,
		WebSocket: handler.NewWebSocketHandler(logger, hub, cfg.PingInterval, cfg.HeartbeatTimeout),
		JWTSecret: cfg.JWTSecret,
	}
	if cfg.MetricsEnabled() {
		deps.Metrics = adaptor.HTTPHandler(promhttp.Handler())
		deps.MetricsUser = cfg.MetricsUser
		deps.MetricsPass = cfg.MetricsPass
	}
	handler.Register(app, deps)

	errChan := make(chan error, 1)
	go func() {
		logger.Info().Str("addr", cfg.Addr()).
			Str("catalog", cfg.CatalogBackend).Str("numbers", cfg.NumberBackend).
			Int("sinks", len(sinks)).Msg("server listening")
		if err := app.Listen(cfg.Addr()); err != nil {
			errChan <- fmt.Errorf("http server: %w", err)
		}
	}()

	select {
	case <-ctx.Done():
		logger.Info().Msg("shutting down gracefully")
	case err := <-errChan:
		stopWorkers()
		wg.Wait()
		return err
	}

	shutdown(logger, app, registry, conns)
	stopWorkers()
	wg.Wait()
	logger.Info().Msg("server stopped cleanly")
	return nil
}

// shutdown closes live sockets first so their handlers return, then drains HTTP.
func shutdown(logger zerolog.Logger, app *fiber.App, registry *realtime.Registry, conns realtime.Connections) {
	for _, c := range registry.All() {
		conns.Disconnect(c.ID)
	}
	if err := app.ShutdownWithTimeout(10 * time.Second); err != nil {
		logger.Error().Err(err).Msg("http shutdown")
	}
}
