package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"watchlist/pkg/commands"
	"watchlist/pkg/config"
	"watchlist/pkg/server"
	"watchlist/pkg/store"

	"github.com/spf13/pflag"
)

const usage = `Usage: watchlist [--config path] <command> [flags]

Commands:
  serve    run the web server
  initdb   create the tables (--drop to recreate them)
  forge    fill the database with demo data
  admin    create or update the login account
`

func main() {
	flags := pflag.NewFlagSet("watchlist", pflag.ExitOnError)
	flags.SetInterspersed(false)
	configPath := flags.StringP("config", "c", "config.yaml", "path to the YAML config file")
	flags.Usage = func() {
		fmt.Fprint(os.Stderr, usage)
		flags.PrintDefaults()
	}
	_ = flags.Parse(os.Args[1:])

	if flags.NArg() == 0 {
		flags.Usage()
		os.Exit(2)
	}

	// Load configuration
	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}

	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: cfg.SlogLevel()}))
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err = run(ctx, cfg, logger, flags.Arg(0), flags.Args()[1:])
	stop()
	if err != nil {
		logger.Error("command failed", "command", flags.Arg(0), "error", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg *config.Config, logger *slog.Logger, command string, args []string) error {
	sub := pflag.NewFlagSet(command, pflag.ContinueOnError)
	drop := sub.Bool("drop", false, "drop the tables before creating them (initdb)")
	username := sub.String("username", "", "login username (admin)")
	password := sub.String("password", "", "login password (admin)")
	if err := sub.Parse(args); err != nil {
		return err
	}

	switch command {
	case "serve", "initdb", "forge", "admin":
	default:
		return fmt.Errorf("unknown command %q", command)
	}

	// Initialize store
	st, err := store.Open(cfg.Database)
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	defer st.Close()

	switch command {
	case "initdb":
		return commands.InitDB(ctx, st, *drop, os.Stdout)
	case "forge":
		return commands.Forge(ctx, st, os.Stdout)
	case "admin":
		return commands.Admin(ctx, st, commands.NewPrompter(), *username, *password)
	}

	if err := st.Init(ctx, false); err != nil {
		return fmt.Errorf("create tables: %w", err)
	}

	logger.Debug("database ready", "driver", cfg.Database.Driver)
	return server.New(cfg, st, logger).Run(ctx)
}
