package main

import (
	"context"
	"database/sql"
	stderrors "errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"sodeclick-chat/auth"
	"sodeclick-chat/internal"
	"sodeclick-chat/moderation"
	"sodeclick-chat/observability"
	"sodeclick-chat/repositories"
	"sodeclick-chat/runtime"
	"sodeclick-chat/runtime/workers"
	"sodeclick-chat/services"
	"sodeclick-chat/ws"
	"syscall"
	"time"

	"github.com/Netflix/go-env"
	"github.com/dgraph-io/badger/v4"
	"github.com/joho/godotenv"
	_ "github.com/lib/pq"
	"github.com/mama165/sdk-go/logs"
	"github.com/redis/go-redis/v9"
)

const defaultLimitMessages = 50

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "Fatal error: %v\n", err)
		os.Exit(1)
	}
}

// run wires every component and owns the shutdown order, so that deferred
// cleanups run before the process exits.
func run() error {
	// 1. Configuration & Logger
	_ = godotenv.Load()
	var config internal.Config
	if _, err := env.UnmarshalFromEnviron(&config); err != nil {
		return fmt.Errorf("config error: %w", err)
	}
	log := logs.GetLoggerFromString(config.LogLevel)
	policy, err := config.TierPolicy()
	if err != nil {
		return fmt.Errorf("config error: %w", err)
	}
	censoredChar, err := internal.CharacterRune(config.CharReplacement)
	if err != nil {
		return fmt.Errorf("config error: %w", err)
	}
	limitMessages := defaultLimitMessages
	if config.LimitMessages != nil {
		limitMessages = *config.LimitMessages
	}

	// 2. Storage: BadgerDB for history, PostgreSQL for users, Redis for usage
	db, err := badger.Open(badger.DefaultOptions(config.BadgerFilepath).
		WithLoggingLevel(badger.INFO))
	if err != nil {
		return fmt.Errorf("database opening failed: %w", err)
	}
	defer func() {
		log.Info("Closing BadgerDB...")
		_ = db.Close()
	}()

	sqlDB, err := sql.Open("postgres", config.DatabaseURL)
	if err != nil {
		return fmt.Errorf("postgres opening failed: %w", err)
	}
	defer func() { _ = sqlDB.Close() }()
	users := repositories.NewUserRepository(sqlDB)

	rdb := redis.NewClient(&redis.Options{
		Addr:     config.RedisAddr,
		Password: config.RedisPassword,
		DB:       config.RedisDB,
	})
	defer func() { _ = rdb.Close() }()

	// 3. Context & Signals
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err = users.Migrate(ctx); err != nil {
		return fmt.Errorf("postgres migration failed: %w", err)
	}
	if err = rdb.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("redis unreachable: %w", err)
	}

	// 4. Moderation
	censored, err := moderation.LoadCensored(moderation.CensoredFiles, "censored")
	if err != nil {
		return fmt.Errorf("censored words loading failed: %w", err)
	}
	moderator, err := moderation.NewModerator(censored.Words, censoredChar, log)
	if err != nil {
		return fmt.Errorf("moderator failed: %w", err)
	}

	// 5. Presence, fan-out & supervision
	metrics := observability.NewMetrics()
	registry := runtime.NewPresenceRegistry(log)
	metrics.WatchPresence(registry)
	fanout := workers.NewEventFanout(log, registry, config.BufferSize, config.SinkTimeout, metrics.BroadcastFailures)
	capacity := workers.NewChannelCapacityWorker(log,
		[]workers.NamedChannel{{Name: "fanout", Channel: fanout.Channel()}},
		metrics.ChannelLength, metrics.ChannelCapacity, config.MetricInterval)

	sup := workers.NewSupervisor(log).WithRestartDelay(config.RestartInterval)
	heartbeat := workers.NewHeartbeatWorker(log, registry, metrics.ProcessCPU, config.HeartbeatInterval)
	sup.Add(registry, fanout, capacity, heartbeat)

	service := services.NewChatService(log, services.Dependencies{
		Authenticator: auth.NewAuthenticator(auth.NewTokenSigner(config.JWTSecret, config.JWTIssuer), users, log),
		Users:         users,
		Rooms:         repositories.NewRoomRepository(db),
		Messages:      repositories.NewMessageRepository(db, log, limitMessages),
		Conversations: repositories.NewConversationRepository(db),
		Limits:        policy,
		Usage:         repositories.NewUsageRepository(rdb),
		Broadcaster:   fanout,
		Registry:      registry,
		Limiter:       runtime.NewRateLimiter(config.RateLimits()),
		Moderator:     &moderator,
		Metrics:       metrics,
	})

	// 6. HTTP & websocket server
	var inspect http.Handler
	if config.DebugInspect {
		inspect = internal.InspectHandler(db, limitMessages, nil, func() map[string]any {
			onlineUsers, connections, addresses := registry.Counts()
			return map[string]any{"online_users": onlineUsers, "connections": connections, "joined_addresses": addresses}
		})
	}
	server := ws.NewServer(log, service, metrics, ws.Options{
		AllowedOrigins: config.Origins(),
		BufferSize:     config.ConnectionBufferSize,
		PingInterval:   config.PingInterval,
		WriteTimeout:   config.SinkTimeout,
		MaxFrameSize:   config.MaxFrameSize,
	})
	httpServer := &http.Server{
		Addr:              config.Address(),
		Handler:           ws.NewRouter(server, metrics.Handler(), inspect, config.Origins()),
		ReadHeaderTimeout: 10 * time.Second,
	}

	supDone := make(chan struct{})
	go func() {
		sup.Run(ctx)
		close(supDone)
	}()

	errChan := make(chan error, 1)
	go func() {
		log.Info("Starting chat server", "address", config.Address(), "at", time.Now().UTC())
		if err := httpServer.ListenAndServe(); err != nil && !stderrors.Is(err, http.ErrServerClosed) {
			errChan <- fmt.Errorf("http server error: %w", err)
		}
	}()

	// 7. Wait for Stop or Error
	select {
	case <-ctx.Done():
		log.Info("Shutting down gracefully...")
	case err = <-errChan:
		sup.Stop()
		<-supDone
		return err
	}

	// 8. Final Cleanup: stopping the registry closes every websocket
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	_ = httpServer.Shutdown(shutdownCtx)
	sup.Stop()
	<-supDone
	log.Info("Program stopped cleanly")
	return nil
}
