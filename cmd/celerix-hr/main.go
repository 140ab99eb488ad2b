package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/celerix-dev/celerix-hr/internal/config"
	"github.com/celerix-dev/celerix-hr/internal/index"
	"github.com/celerix-dev/celerix-hr/internal/logging"
	"github.com/celerix-dev/celerix-hr/internal/repositories/repomanager"
	"github.com/celerix-dev/celerix-hr/pkg/engine"
	"github.com/celerix-dev/celerix-hr/pkg/sdk"
)

func main() {
	cfg, err := config.LoadConfig(os.Args[1:])
	if err != nil {
		log.Fatalf("Invalid configuration: %v", err)
	}
	args := config.Args(os.Args[1:])
	if len(args) < 1 {
		printUsage()
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()

	// Output goes to stdout; logs stay on stderr.
	logger := logging.NewSlogLogger(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: logging.ParseLevel(cfg.LogLevel)})))
	if err := run(ctx, cfg, logger, strings.ToUpper(args[0]), args[1:]); err != nil {
		log.Fatal(err)
	}
}

func run(ctx context.Context, cfg *config.Config, logger logging.Logger, command string, args []string) error {
	if command == "PING" {
		c, err := sdk.Connect(ctx, cfg.RemoteAddr, sdk.ClientOptions{TLS: cfg.TLS, Log: logger})
		if err != nil {
			return err
		}
		defer c.Close()
		if err := c.Ping(ctx); err != nil {
			return err
		}
		fmt.Println("PONG")
		return nil
	}

	store, closeStore, err := sdk.Open(ctx, cfg.StoreOptions(logger))
	if err != nil {
		return fmt.Errorf("failed to open %s store: %w", cfg.Backend, err)
	}
	defer closeStore()

	switch command {
	case "GET":
		if len(args) != 1 {
			return fmt.Errorf("usage: celerix-hr get <key>")
		}
		val, err := store.Get(ctx, args[0])
		if err != nil {
			return err
		}
		fmt.Println(string(val))

	case "PUT":
		if len(args) != 2 {
			return fmt.Errorf("usage: celerix-hr put <key> <value>")
		}
		if err := store.Put(ctx, args[0], []byte(args[1])); err != nil {
			return err
		}
		fmt.Println("OK")

	case "DEL":
		if len(args) != 1 {
			return fmt.Errorf("usage: celerix-hr del <key>")
		}
		if err := store.Delete(ctx, args[0]); err != nil {
			return err
		}
		fmt.Println("OK")

	case "LIST":
		prefix, limit := "", 0
		if len(args) > 0 {
			prefix = args[0]
		}
		if len(args) > 1 {
			if limit, err = strconv.Atoi(args[1]); err != nil {
				return fmt.Errorf("invalid limit %q", args[1])
			}
		}
		keys, err := store.List(ctx, prefix, limit)
		if err != nil {
			return err
		}
		printJSON(keys)

	case "MIGRATE":
		if len(args) != 2 {
			return fmt.Errorf("usage: celerix-hr migrate <memory|sqlite|postgres|remote> <dir|file|dsn|addr>")
		}
		dst, closeDst, err := sdk.Open(ctx, destination(cfg, args[0], args[1], logger))
		if err != nil {
			return fmt.Errorf("failed to open destination: %w", err)
		}
		defer closeDst()
		n, err := engine.Migrate(ctx, store, dst)
		if err != nil {
			return err
		}
		fmt.Printf("Migrated %d keys to %s.\n", n, args[0])

	case "REINDEX":
		keys, err := index.ParseLayout(cfg.Layout)
		if err != nil {
			return err
		}
		repos := repomanager.New(store, repomanager.Options{Keys: keys, Log: logger, MaxGroupSize: cfg.MaxGroupSize})
		rep, err := repos.Reindex(ctx)
		if err != nil {
			return err
		}
		printJSON(rep)

	default:
		printUsage()
		return fmt.Errorf("unknown command: %s", command)
	}
	return nil
}

// destination builds the options of a migrate target named on the command
// line.
func destination(cfg *config.Config, backend, location string, logger logging.Logger) sdk.StoreOptions {
	opts := sdk.StoreOptions{Backend: backend, TLS: cfg.TLS, Log: logger}
	switch backend {
	case sdk.BackendMemory:
		opts.DataDir = location
	case sdk.BackendSQLite:
		opts.SQLitePath = location
	case sdk.BackendPostgres:
		opts.DSN = location
	case sdk.BackendRemote:
		opts.RemoteAddr = location
	}
	return opts
}

func printUsage() {
	fmt.Println("Celerix HR CLI - raw access to the HR key/value store")
	fmt.Println("\nUsage:")
	fmt.Println("  celerix-hr [flags] get <key>")
	fmt.Println("  celerix-hr [flags] put <key> <value>")
	fmt.Println("  celerix-hr [flags] del <key>")
	fmt.Println("  celerix-hr [flags] list [prefix] [limit]")
	fmt.Println("  celerix-hr [flags] ping")
	fmt.Println("  celerix-hr [flags] migrate <memory|sqlite|postgres|remote> <dir|file|dsn|addr>")
	fmt.Println("  celerix-hr [flags] reindex")
	fmt.Println("\nFlags:")
	fmt.Println("  -b backend   memory, sqlite, postgres or remote (CELERIX_BACKEND)")
	fmt.Println("  -r addr      remote store address (CELERIX_STORE_ADDR, default localhost:7001)")
	fmt.Println("  -tls=false   disable TLS (CELERIX_DISABLE_TLS=true)")
	fmt.Println("  -c file      JSON config file")
}

func printJSON(v any) {
	bytes, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		fmt.Println(v)
		return
	}
	fmt.Println(string(bytes))
}
