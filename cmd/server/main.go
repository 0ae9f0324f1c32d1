package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/iudanet/boardkeeper/internal/server/handlers"
	"github.com/iudanet/boardkeeper/internal/server/hub"
	"github.com/iudanet/boardkeeper/internal/server/jwt"
	"github.com/iudanet/boardkeeper/internal/server/middleware"
	"github.com/iudanet/boardkeeper/internal/server/storage/sqlite"
	"github.com/iudanet/boardkeeper/internal/validation"
)

var (
	// Version information set via ldflags during build
	Version   = "dev"
	BuildDate = "unknown"
	GitCommit = "unknown"
)

func main() {
	var (
		showVersion = flag.Bool("version", false, "Show version information")
		listenAddr  = flag.String("listen", ":8080", "HTTP listen address")
		dbPath      = flag.String("db", "boardkeeper.db", "Path to SQLite database file")
		redisAddr   = flag.String("redis", "", "Redis address for multi-instance fanout (empty = single instance)")
		jwtSecret   = flag.String("jwt-secret", "", "Secret for workspace token signing (required)")
		tokenTTL    = flag.Duration("token-ttl", 24*time.Hour, "Workspace token lifetime")
		issueToken  = flag.String("issue-token", "", "Issue a token for workspace:actor and exit")
	)
	flag.Parse()

	if *showVersion {
		printVersion()
		os.Exit(0)
	}

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))

	if *jwtSecret == "" {
		logger.Error("Flag -jwt-secret is required")
		os.Exit(1)
	}

	tokens := jwt.NewService(*jwtSecret, *tokenTTL)

	// Утилита выпуска workspace-токена: -issue-token <workspace>:<actor>
	if *issueToken != "" {
		if err := printIssuedToken(tokens, *issueToken); err != nil {
			logger.Error("Failed to issue token", "error", err)
			os.Exit(1)
		}
		return
	}

	if err := run(logger, tokens, *listenAddr, *dbPath, *redisAddr); err != nil {
		logger.Error("Server stopped with error", "error", err)
		os.Exit(1)
	}
}

func run(logger *slog.Logger, tokens *jwt.Service, listenAddr, dbPath, redisAddr string) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	store, err := sqlite.New(ctx, dbPath)
	if err != nil {
		return fmt.Errorf("failed to open storage: %w", err)
	}
	defer func() {
		if cerr := store.Close(); cerr != nil {
			logger.Error("Failed to close storage", "error", cerr)
		}
	}()

	var rdb *redis.Client
	if redisAddr != "" {
		rdb = redis.NewClient(&redis.Options{Addr: redisAddr})
		if err := rdb.Ping(ctx).Err(); err != nil {
			return fmt.Errorf("failed to connect to redis: %w", err)
		}
		defer func() {
			_ = rdb.Close()
		}()
		logger.Info("Redis fanout enabled", "addr", redisAddr)
	}

	syncHub := hub.New(rdb, logger)

	router := &handlers.Router{
		Health:    handlers.NewHealthHandler(logger, Version),
		Workspace: handlers.NewWorkspaceHandler(logger, store, store),
		Sync:      handlers.NewSyncHandler(logger, syncHub, store, store),
	}

	// Workspace API за auth-цепочкой, health снаружи
	authed := middleware.AuthMiddleware(logger, tokens)(router.Mux())

	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/v1/health", router.Health.Health)
	mux.Handle("/api/v1/workspaces/", authed)

	// Health-пробы не логируем
	handler := middleware.RecoveryMiddleware(logger)(
		middleware.LoggingWithSkip(logger, []string{"/api/v1/health"})(
			middleware.RateLimitMiddleware(600, time.Minute, logger)(mux)))

	srv := &http.Server{
		Addr:              listenAddr,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("Server listening", "addr", listenAddr, "version", Version)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	logger.Info("Shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown failed: %w", err)
	}

	return nil
}

func printIssuedToken(tokens *jwt.Service, spec string) error {
	workspaceID, actorID, ok := splitTokenSpec(spec)
	if !ok {
		return fmt.Errorf("expected format <workspace_id>:<actor_id>, got %q", spec)
	}
	if err := validation.ValidateWorkspaceID(workspaceID); err != nil {
		return err
	}

	token, err := tokens.GenerateToken(workspaceID, actorID)
	if err != nil {
		return err
	}

	fmt.Println(token)
	return nil
}

func splitTokenSpec(spec string) (workspaceID, actorID string, ok bool) {
	for i := 0; i < len(spec); i++ {
		if spec[i] == ':' {
			if i == 0 || i == len(spec)-1 {
				return "", "", false
			}
			return spec[:i], spec[i+1:], true
		}
	}
	return "", "", false
}

func printVersion() {
	fmt.Printf("BoardKeeper Server\n")
	fmt.Printf("Version:    %s\n", Version)
	fmt.Printf("Build Date: %s\n", BuildDate)
	fmt.Printf("Git Commit: %s\n", GitCommit)
}
