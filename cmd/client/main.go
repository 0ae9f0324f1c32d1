package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/iudanet/boardkeeper/internal/client/cli"
	"github.com/iudanet/boardkeeper/internal/client/iocli"
)

var (
	// Version information set via ldflags during build
	Version   = "dev"
	BuildDate = "unknown"
	GitCommit = "unknown"
)

func main() {
	// Глобальные флаги
	showVersion := flag.Bool("version", false, "Show version information")
	serverURL := flag.String("server", "http://localhost:8080", "Server URL")
	syncURL := flag.String("sync-url", "", "Override WebSocket sync endpoint")
	workspaceID := flag.String("workspace", "", "Workspace to open")
	token := flag.String("token", "", "Workspace access token (or BOARDKEEPER_TOKEN env var)")
	dbPath := flag.String("db", "boardkeeper-client.db", "Path to local cache")

	flag.Parse()

	// Show version and exit if requested
	if *showVersion {
		printVersion()
		os.Exit(0)
	}

	// Получаем команду
	args := flag.Args()
	if len(args) == 0 {
		cli.PrintUsage()
		os.Exit(1)
	}

	command := args[0]

	accessToken := *token
	if accessToken == "" {
		accessToken = os.Getenv("BOARDKEEPER_TOKEN")
	}

	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: slog.LevelWarn,
	}))

	// watch живет до Ctrl+C, остальные команды — одна инвокация
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	session, err := cli.New(ctx, cli.Config{
		ServerURL:   *serverURL,
		SyncURL:     *syncURL,
		Token:       accessToken,
		WorkspaceID: *workspaceID,
		DBPath:      *dbPath,
	}, iocli.NewStdio(), logger)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	runErr := runCommand(ctx, session, command, args[1:])

	// Закрытие сессии сбрасывает несохраненные изменения; контекст
	// команды к этому моменту может быть уже отменен
	if err := session.Close(context.Background()); err != nil {
		fmt.Fprintf(os.Stderr, "Warning: %v\n", err)
	}

	if runErr != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", runErr)
		os.Exit(1)
	}
}

func runCommand(ctx context.Context, session *cli.Cli, command string, args []string) error {
	switch command {
	case "status":
		return session.RunStatus(ctx, args)
	case "list":
		return session.RunList(ctx, args)
	case "add-node":
		return session.RunAddNode(ctx, args)
	case "move":
		return session.RunMoveNode(ctx, args)
	case "lock":
		return session.RunSetLock(ctx, args, true)
	case "unlock":
		return session.RunSetLock(ctx, args, false)
	case "link":
		return session.RunLink(ctx, args)
	case "delete":
		return session.RunDelete(ctx, args)
	case "align":
		return session.RunAlign(ctx, args)
	case "distribute":
		return session.RunDistribute(ctx, args)
	case "export":
		return session.RunExport(ctx, args)
	case "import":
		return session.RunImport(ctx, args)
	case "watch":
		return session.RunWatch(ctx, args)
	default:
		cli.PrintUsage()
		return fmt.Errorf("unknown command: %s", command)
	}
}

func printVersion() {
	fmt.Printf("BoardKeeper Client\n")
	fmt.Printf("Version:    %s\n", Version)
	fmt.Printf("Build Date: %s\n", BuildDate)
	fmt.Printf("Git Commit: %s\n", GitCommit)
}
