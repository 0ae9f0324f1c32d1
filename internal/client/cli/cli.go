// Package cli — командная оболочка клиента. Каждая инвокация открывает
// workspace-сессию: гидратация store из bridge (или локального кэша),
// выполнение команды, flush накопленных изменений при закрытии.
package cli

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/iudanet/boardkeeper/internal/client/api"
	"github.com/iudanet/boardkeeper/internal/client/iocli"
	"github.com/iudanet/boardkeeper/internal/client/storage/boltdb"
	"github.com/iudanet/boardkeeper/internal/validation"
	"github.com/iudanet/boardkeeper/internal/workspace"
)

// Config параметры сессии
type Config struct {
	ServerURL   string
	SyncURL     string // ws endpoint; пустой — выводится из ServerURL
	Token       string
	WorkspaceID string
	DBPath      string
}

type Cli struct {
	io     iocli.IO
	cfg    Config
	cache  *boltdb.Storage
	store  *workspace.Store
	logger *slog.Logger
}

// New открывает workspace-сессию: локальный кэш, API клиент, гидратация.
func New(ctx context.Context, cfg Config, out iocli.IO, logger *slog.Logger) (*Cli, error) {
	if err := validation.ValidateWorkspaceID(cfg.WorkspaceID); err != nil {
		return nil, fmt.Errorf("invalid workspace (use --workspace): %w", err)
	}
	if logger == nil {
		logger = slog.Default()
	}

	cache, err := boltdb.New(ctx, cfg.DBPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open local cache: %w", err)
	}

	apiClient := api.NewClient(cfg.ServerURL, cfg.Token)
	store := workspace.NewStore(workspace.Config{WorkspaceID: cfg.WorkspaceID}, apiClient, cache, logger)

	if err := store.Hydrate(ctx); err != nil {
		_ = cache.Close()
		return nil, fmt.Errorf("failed to open workspace: %w", err)
	}

	return &Cli{
		io:     out,
		cfg:    cfg,
		cache:  cache,
		store:  store,
		logger: logger,
	}, nil
}

// Close сбрасывает несохраненные изменения и закрывает сессию.
func (c *Cli) Close(ctx context.Context) error {
	var errs []error
	if err := c.store.Close(ctx); err != nil {
		errs = append(errs, fmt.Errorf("failed to close workspace: %w", err))
	}
	if err := c.cache.Close(); err != nil {
		errs = append(errs, fmt.Errorf("failed to close local cache: %w", err))
	}
	return errors.Join(errs...)
}

// syncURL возвращает адрес WebSocket endpoint'а workspace.
func (c *Cli) syncURL() string {
	if c.cfg.SyncURL != "" {
		return c.cfg.SyncURL
	}

	base := c.cfg.ServerURL
	switch {
	case strings.HasPrefix(base, "https://"):
		base = "wss://" + strings.TrimPrefix(base, "https://")
	case strings.HasPrefix(base, "http://"):
		base = "ws://" + strings.TrimPrefix(base, "http://")
	}
	return fmt.Sprintf("%s/api/v1/workspaces/%s/sync", base, c.cfg.WorkspaceID)
}

func PrintUsage() {
	fmt.Println("BoardKeeper Client")
	fmt.Println()
	fmt.Println("Usage:")
	fmt.Println("  boardkeeper [OPTIONS] COMMAND")
	fmt.Println()
	fmt.Println("Options:")
	fmt.Println("  --version            Show version information")
	fmt.Println("  --server URL         Server URL (default: http://localhost:8080)")
	fmt.Println("  --workspace ID       Workspace to open (required)")
	fmt.Println("  --token TOKEN        Workspace access token (or BOARDKEEPER_TOKEN env var)")
	fmt.Println("  --db PATH            Path to local cache (default: boardkeeper-client.db)")
	fmt.Println("  --sync-url URL       Override WebSocket sync endpoint")
	fmt.Println()
	fmt.Println("Commands:")
	fmt.Println("  status                       Show workspace summary")
	fmt.Println("  list                         List nodes and connections")
	fmt.Println("  add-node [flags]             Create a node (-x -y -w -h -type -content)")
	fmt.Println("  move <id> -x X -y Y          Move a node")
	fmt.Println("  lock <id> | unlock <id>      Toggle node lock")
	fmt.Println("  link <source> <target>       Connect two nodes (-label)")
	fmt.Println("  delete <id>                  Delete a node or connection")
	fmt.Println("  align <mode> <id>...         Align nodes (left|right|top|bottom|centerH|centerV)")
	fmt.Println("  distribute <axis> <id>...    Distribute nodes evenly (horizontal|vertical)")
	fmt.Println("  export [-o file] [id]...     Export selection (or all) to a file")
	fmt.Println("  import <file> [-x X -y Y]    Import a file centered at the given point")
	fmt.Println("  watch                        Stay connected and print live updates")
	fmt.Println()
	fmt.Println("Examples:")
	fmt.Println("  boardkeeper --workspace demo add-node -x 100 -y 200 -content '{\"text\":\"hello\"}'")
	fmt.Println("  boardkeeper --workspace demo align left 0b45... 19ff... 27aa...")
	fmt.Println("  boardkeeper --workspace demo export -o board.json")
	fmt.Println("  boardkeeper --workspace demo watch")
}
