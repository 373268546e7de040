package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/lotas/tabflow/internal/applog"
	"github.com/lotas/tabflow/internal/client"
	"github.com/lotas/tabflow/internal/config"
	"github.com/lotas/tabflow/internal/domain"
	"github.com/lotas/tabflow/internal/engine"
	"github.com/lotas/tabflow/internal/export"
	"github.com/lotas/tabflow/internal/render"
	"github.com/lotas/tabflow/internal/server"
	"github.com/lotas/tabflow/internal/storage"
)

func main() {
	args := os.Args[1:]
	cmd := "serve"
	if len(args) > 0 && !strings.HasPrefix(args[0], "-") {
		cmd, args = args[0], args[1:]
	}

	switch cmd {
	case "serve":
		runServe(args)
	case "stats":
		runStats(args)
	case "group":
		runGroup(args)
	case "colors":
		runColors(args)
	case "help", "--help", "-h":
		printHelp()
	default:
		fmt.Fprintf(os.Stderr, "Unknown command %q\n\n", cmd)
		printHelp()
		os.Exit(2)
	}
}

func printHelp() {
	fmt.Print(`tabflow: group browser tabs by domain

Usage:
  tabflow [serve]                  Run the daemon the extension connects to (default)
    --config <file>        YAML config file (default: ~/.config/tabflow/config.yaml)
    --port <n>             Listen port (default: 19192)
    --db <path>            Color database (default: ~/.local/share/tabflow/tabflow.db)
    --log-level <level>    debug, info, warn or error
    --verbose              Also write log lines to stderr

  tabflow stats                    Show open tabs per domain
    --port <n>             Daemon port
    -v                     List tab titles under each domain
    --json                 Print as JSON
    --md                   Print as markdown

  tabflow group                    Group all open tabs by domain now
    --port <n>             Daemon port

  tabflow colors                   Show persisted domain colors
    --db <path>            Color database

Environment:
  TABFLOW_PORT, TABFLOW_DB, TABFLOW_DATA_DIR, TABFLOW_LOG_DIR, TABFLOW_LOG_LEVEL,
  TABFLOW_DOMAIN_MODE, TABFLOW_CACHE_SIZE, TABFLOW_CURRENT_WINDOW_ONLY,
  TABFLOW_DEBOUNCE, TABFLOW_SNAPSHOT_TTL, TABFLOW_SYNC_INTERVAL,
  TABFLOW_SAVE_DELAY, TABFLOW_ATTACH_DELAY, TABFLOW_COMMAND_TIMEOUT
  A .env file in the working directory is read first.
`)
}

// loadConfig reads the config and applies explicitly set flags on top.
func loadConfig(path string, port int, dbPath, logLevel string) *config.Config {
	cfg, err := config.Load(path)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading config: %v\n", err)
		os.Exit(1)
	}
	if port != 0 {
		cfg.Port = port
	}
	if dbPath != "" {
		cfg.DBPath = dbPath
	}
	if logLevel != "" {
		cfg.LogLevel = logLevel
	}
	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	return cfg
}

func runServe(args []string) {
	fs := flag.NewFlagSet("serve", flag.ExitOnError)
	configPath := fs.String("config", "", "YAML config file")
	port := fs.Int("port", 0, "Listen port")
	dbPath := fs.String("db", "", "Color database path")
	logLevel := fs.String("log-level", "", "Log level")
	verbose := fs.Bool("verbose", false, "Also write log lines to stderr")
	fs.Parse(args)

	cfg := loadConfig(*configPath, *port, *dbPath, *logLevel)

	var echo io.Writer
	if *verbose {
		echo = os.Stderr
	}
	if err := applog.Init(cfg.LogDir, cfg.LogLevel, echo); err != nil {
		fmt.Fprintf(os.Stderr, "Warning: logging disabled: %v\n", err)
	}
	defer applog.Close()

	db, err := storage.OpenDB(cfg.DBPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error opening database: %v\n", err)
		os.Exit(1)
	}
	defer db.Close()

	srv := server.New(cfg.Port)
	srv.SetCommandTimeout(cfg.CommandTimeout)

	eng := engine.New(engine.Options{
		Host:              srv,
		Colors:            storage.ColorStore{DB: db},
		DomainMode:        domain.ParseMode(cfg.DomainMode),
		CacheSize:         cfg.CacheSize,
		DebounceDelay:     cfg.DebounceDelay,
		SnapshotTTL:       cfg.SnapshotTTL,
		SyncInterval:      cfg.SyncInterval,
		SaveDelay:         cfg.SaveDelay,
		AttachDelay:       cfg.AttachDelay,
		CurrentWindowOnly: cfg.CurrentWindowOnly,
	})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := eng.Load(ctx); err != nil {
		applog.Error("colors.load", err)
		fmt.Fprintf(os.Stderr, "Warning: starting with empty colors: %v\n", err)
	}

	done := make(chan struct{})
	go func() {
		defer close(done)
		if err := eng.Run(ctx, srv.Events()); err != nil && !errors.Is(err, context.Canceled) {
			applog.Error("engine.run", err)
		}
	}()

	fmt.Fprintf(os.Stderr, "Listening on 127.0.0.1:%d (logs in %s)\n", srv.Port(), cfg.LogDir)
	serveErr := srv.ListenAndServe(ctx, eng)
	stop()
	<-done
	srv.Close()
	eng.Close()

	if serveErr != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", serveErr)
		os.Exit(1)
	}
}

func runStats(args []string) {
	fs := flag.NewFlagSet("stats", flag.ExitOnError)
	port := fs.Int("port", 0, "Daemon port")
	verbose := fs.Bool("v", false, "List tab titles")
	jsonFlag := fs.Bool("json", false, "Print as JSON")
	mdFlag := fs.Bool("md", false, "Print as markdown")
	fs.Parse(args)

	cfg := loadConfig("", *port, "", "")
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	stats, err := client.New(cfg.Port).Stats(ctx)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	switch {
	case *jsonFlag:
		out, err := export.JSON(stats, time.Now())
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error generating JSON: %v\n", err)
			os.Exit(1)
		}
		fmt.Print(out)
	case *mdFlag:
		fmt.Print(export.Markdown(stats, time.Now()))
	default:
		fmt.Print(render.Stats(stats, *verbose))
	}
}

func runGroup(args []string) {
	fs := flag.NewFlagSet("group", flag.ExitOnError)
	port := fs.Int("port", 0, "Daemon port")
	fs.Parse(args)

	cfg := loadConfig("", *port, "", "")
	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	// Grouping every domain can take many host round trips.
	if err := client.New(cfg.Port).WithTimeout(time.Minute).GroupNow(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	fmt.Println("Tabs grouped by domain.")
}

func runColors(args []string) {
	fs := flag.NewFlagSet("colors", flag.ExitOnError)
	dbPath := fs.String("db", "", "Color database path")
	fs.Parse(args)

	cfg := loadConfig("", 0, *dbPath, "")
	db, err := storage.OpenDB(cfg.DBPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error opening database: %v\n", err)
		os.Exit(1)
	}
	defer db.Close()

	state, err := storage.LoadColorState(context.Background(), db)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	fmt.Print(render.Colors(state))
}
