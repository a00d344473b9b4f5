// Package main is the holokernel CLI entry point.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/hyperjump/holokernel/internal/cli"
	"github.com/hyperjump/holokernel/internal/config"
	"github.com/hyperjump/holokernel/internal/diag"
	"github.com/hyperjump/holokernel/internal/kernel"
	"github.com/hyperjump/holokernel/internal/metrics"
	"github.com/hyperjump/holokernel/internal/models"
	"github.com/hyperjump/holokernel/internal/platform"
	"github.com/hyperjump/holokernel/internal/server"
	"github.com/hyperjump/holokernel/internal/storage"
	"github.com/hyperjump/holokernel/internal/watcher"
	"github.com/hyperjump/holokernel/pkg/utils"
)

var version = "dev"

const (
	defaultConfigPath = "/usr/local/etc/holokernel/config.yaml"
	defaultServerURL  = "http://localhost:8090"
	shutdownTimeout   = 10 * time.Second
)

// loadConfig loads config from path. When path is the default, config.yaml in the
// current directory wins if present; if neither exists the built-in defaults are used,
// still with HOLO_* environment overrides. Returns the config and the path loaded
// (empty for built-in defaults).
func loadConfig(path string) (*config.Config, string, error) {
	if path == defaultConfigPath {
		if cwd, cwdErr := os.Getwd(); cwdErr == nil {
			fallback := filepath.Join(cwd, "config.yaml")
			if _, statErr := os.Stat(fallback); statErr == nil {
				cfg, loadErr := config.Load(fallback)
				if loadErr != nil {
					return nil, "", loadErr
				}
				return cfg, fallback, nil
			}
		}
		if _, statErr := os.Stat(path); errors.Is(statErr, os.ErrNotExist) {
			cfg := &config.Config{}
			if err := config.ApplyEnv(cfg, ".env"); err != nil {
				return nil, "", err
			}
			config.ApplyDefaults(cfg)
			if err := cfg.Validate(); err != nil {
				return nil, "", err
			}
			return cfg, "", nil
		}
	}
	cfg, err := config.Load(path)
	if err != nil {
		return nil, "", err
	}
	return cfg, path, nil
}

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}
	command := os.Args[1]
	switch command {
	case "boot":
		runBoot()
	case "server":
		runServer()
	case "encode":
		runEncode()
	case "associate":
		runAssociate()
	case "recall":
		runRecall()
	case "status":
		runStatus()
	case "selftest":
		runSelfTest()
	case "journal":
		runJournal()
	case "config":
		runConfig()
	case "version", "--version", "-v":
		fmt.Printf("holokernel version %s\n", version)
	case "help", "--help", "-h":
		printUsage()
	default:
		fmt.Printf("Unknown command: %s\n", command)
		printUsage()
		os.Exit(1)
	}
}

// components are the long-lived pieces shared by boot and server.
type components struct {
	Kernel  *kernel.Kernel
	Journal storage.Journal
}

func (c *components) Close() {
	if c.Kernel != nil {
		c.Kernel.Shutdown()
	}
	if c.Journal != nil {
		_ = c.Journal.Close()
	}
}

func initializeComponents(cfg *config.Config, logger *zap.Logger, extra ...kernel.Option) (*components, error) {
	c := &components{}
	opts := []kernel.Option{
		kernel.WithLogger(logger),
		kernel.WithProbe(platform.NewHostProbe(cfg.Kernel.MemoryKB)),
		kernel.WithSelfTest(cfg.Kernel.SelfTestOrDefault()),
	}
	if cfg.Storage.JournalPath != "" {
		j, err := storage.NewSQLiteJournal(cfg.Storage.JournalPath)
		if err != nil {
			return nil, fmt.Errorf("failed to open journal: %w", err)
		}
		c.Journal = j
		opts = append(opts, kernel.WithJournal(j, cfg.Storage.JournalPath))
	}
	opts = append(opts, extra...)
	c.Kernel = kernel.New(opts...)
	return c, nil
}

func newLogger(debug bool) *zap.Logger {
	logger, err := utils.NewLogger(debug)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to create logger: %v\n", err)
		os.Exit(1)
	}
	return logger
}

func runBoot() {
	fs := flag.NewFlagSet("boot", flag.ExitOnError)
	configPath := fs.String("config", defaultConfigPath, "config file path")
	debug := fs.Bool("debug", false, "enable debug logging")
	_ = fs.Parse(os.Args[2:])

	cfg, _, err := loadConfig(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}
	logger := newLogger(cfg.Debug || *debug)
	defer logger.Sync()

	c, err := initializeComponents(cfg, logger, kernel.WithSink(diag.NewWriterSink(os.Stdout)))
	if err != nil {
		logger.Fatal("Failed to initialize components", zap.Error(err))
	}
	report, err := c.Kernel.Boot(context.Background())
	c.Close()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Boot failed: %v\n", err)
		os.Exit(1)
	}
	if report != nil && !report.Passed {
		fmt.Fprintf(os.Stderr, "Self test failed: %v\n", report.Err())
		os.Exit(1)
	}
}

func runServer() {
	fs := flag.NewFlagSet("server", flag.ExitOnError)
	configPath := fs.String("config", defaultConfigPath, "config file path")
	debug := fs.Bool("debug", false, "enable debug logging (requests, ingest events, dispatch)")
	_ = fs.Parse(os.Args[2:])

	cfg, resolvedConfigPath, err := loadConfig(*configPath)
	if err != nil {
		fmt.Printf("Failed to load config: %v\n", err)
		os.Exit(1)
	}
	debugMode := cfg.Debug || *debug
	logger := newLogger(debugMode)
	defer logger.Sync()

	logger.Info("config loaded",
		zap.String("config_path", resolvedConfigPath),
		zap.Bool("debug", debugMode),
	)

	extra := []kernel.Option{kernel.WithSink(diag.NewLogSink(logger))}
	if cfg.Kernel.Echo {
		extra = append(extra, kernel.WithSink(diag.NewWriterSink(os.Stdout)))
	}
	if cfg.Metrics.Enabled {
		extra = append(extra,
			kernel.WithStoreObserver(metrics.Observer{}),
			kernel.WithTaskObserver(metrics.Observer{}),
		)
	}
	c, err := initializeComponents(cfg, logger, extra...)
	if err != nil {
		logger.Fatal("Failed to initialize components", zap.Error(err))
	}
	defer c.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	report, err := c.Kernel.Boot(ctx)
	if err != nil {
		logger.Fatal("Boot failed", zap.Error(err))
	}
	if report != nil && !report.Passed {
		logger.Warn("serving with a failed self test", zap.Error(report.Err()))
	}

	srv := server.NewServer(c.Kernel, cfg, logger)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server failed: %w", err)
		}
		return nil
	})
	if cfg.Watch.Directory != "" {
		ingester := watcher.NewIngester(c.Kernel, models.MaxInputBytes, logger)
		watchOpts := []watcher.WatcherOption{watcher.WithSyncOnStart(true)}
		if debugMode {
			watchOpts = append(watchOpts, watcher.WithLogger(logger))
		}
		w := watcher.NewWatcher(cfg.Watch.Directory, cfg.Watch.Extensions, ingester.Handle, watchOpts...)
		if err := w.Start(gctx); err != nil {
			logger.Fatal("Failed to start watcher", zap.Error(err))
		}
		logger.Info("ingest directory watched", zap.String("dir", w.Dir()))
		g.Go(func() error {
			w.Wait()
			return nil
		})
	}
	g.Go(func() error {
		c.Kernel.Heartbeat(gctx, kernel.HeartbeatInterval)
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		logger.Info("Shutting down...")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return srv.Stop(shutdownCtx)
	})
	if err := g.Wait(); err != nil {
		logger.Error("server exited", zap.Error(err))
		c.Close()
		os.Exit(1)
	}
}

func parseFormat(s string) (cli.OutputFormat, error) {
	switch s {
	case "text":
		return cli.OutputText, nil
	case "json":
		return cli.OutputJSON, nil
	default:
		return "", fmt.Errorf("unknown output format %q; use text or json", s)
	}
}

// argsReorder moves any flags (and their values) that appear after the positional
// arguments to the front so that flag.Parse sees them. The flag package stops at
// the first non-flag argument.
func argsReorder(args []string) []string {
	for i, a := range args {
		if len(a) > 0 && a[0] == '-' {
			if i == 0 {
				return args
			}
			reordered := make([]string, 0, len(args))
			reordered = append(reordered, args[i:]...)
			reordered = append(reordered, args[:i]...)
			return reordered
		}
	}
	return args
}

// joinInput joins positional args with spaces so multi-word input works with or
// without shell quoting. Interior spacing of a single quoted arg is preserved.
func joinInput(args []string) string {
	return strings.Join(args, " ")
}

func runEncode() {
	fs := flag.NewFlagSet("encode", flag.ExitOnError)
	withComponents := fs.Bool("components", false, "list active components")
	compare := fs.String("compare", "", "also encode this text and report the similarity of the two vectors")
	outputFormat := fs.String("output", "text", "output format: text or json")
	fs.Usage = func() {
		fmt.Fprintf(fs.Output(), "Usage: holokernel encode [flags] <text>\n\n")
		fs.PrintDefaults()
	}
	_ = fs.Parse(argsReorder(os.Args[2:]))
	format, err := parseFormat(*outputFormat)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	input := joinInput(fs.Args())
	k := kernel.New(kernel.WithProbe(platform.StaticProbe{}))
	if *compare != "" {
		if err := cli.WriteComparison(os.Stdout, compareInputs(k, input, *compare, *withComponents), format); err != nil {
			fmt.Fprintf(os.Stderr, "Output failed: %v\n", err)
			os.Exit(1)
		}
		return
	}
	v := k.Encode([]byte(input))
	summary := models.Summarize(&v, *withComponents)
	if err := cli.WriteVector(os.Stdout, input, &summary, format); err != nil {
		fmt.Fprintf(os.Stderr, "Output failed: %v\n", err)
		os.Exit(1)
	}
}

// compareInputs encodes both inputs and measures their similarity.
func compareInputs(k *kernel.Kernel, input, other string, withComponents bool) *cli.Comparison {
	a := k.Encode([]byte(input))
	b := k.Encode([]byte(other))
	return &cli.Comparison{
		Input:      input,
		Other:      other,
		Vector:     models.Summarize(&a, withComponents),
		OtherVec:   models.Summarize(&b, withComponents),
		Similarity: models.Compare(&a, &b),
	}
}

func runAssociate() {
	fs := flag.NewFlagSet("associate", flag.ExitOnError)
	serverURL := fs.String("server", defaultServerURL, "server URL")
	outputFormat := fs.String("output", "text", "output format: text or json")
	fs.Usage = func() {
		fmt.Fprintf(fs.Output(), "Usage: holokernel associate [flags] <key> <value>\n\n")
		fs.PrintDefaults()
	}
	_ = fs.Parse(argsReorder(os.Args[2:]))
	if fs.NArg() != 2 {
		fs.Usage()
		os.Exit(1)
	}
	format, err := parseFormat(*outputFormat)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	resp, err := associateViaHTTP(*serverURL, &models.AssociateRequest{Key: fs.Arg(0), Value: fs.Arg(1)})
	if err != nil {
		fmt.Fprintf(os.Stderr, "Associate failed: %v\n", err)
		os.Exit(1)
	}
	if err := cli.WriteAssociate(os.Stdout, resp, format); err != nil {
		fmt.Fprintf(os.Stderr, "Output failed: %v\n", err)
		os.Exit(1)
	}
}

func runRecall() {
	fs := flag.NewFlagSet("recall", flag.ExitOnError)
	serverURL := fs.String("server", defaultServerURL, "server URL")
	withComponents := fs.Bool("components", false, "list active components of the recalled vector")
	outputFormat := fs.String("output", "text", "output format: text or json")
	fs.Usage = func() {
		fmt.Fprintf(fs.Output(), "Usage: holokernel recall [flags] <text>\n\n")
		fs.PrintDefaults()
	}
	_ = fs.Parse(argsReorder(os.Args[2:]))
	format, err := parseFormat(*outputFormat)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	resp, err := recallViaHTTP(*serverURL, &models.InputRequest{Input: joinInput(fs.Args()), Components: *withComponents})
	if err != nil {
		fmt.Fprintf(os.Stderr, "Recall failed: %v\n", err)
		os.Exit(1)
	}
	if err := cli.WriteRecall(os.Stdout, resp, format); err != nil {
		fmt.Fprintf(os.Stderr, "Output failed: %v\n", err)
		os.Exit(1)
	}
	if !resp.Found {
		os.Exit(2)
	}
}

func runStatus() {
	fs := flag.NewFlagSet("status", flag.ExitOnError)
	serverURL := fs.String("server", defaultServerURL, "server URL")
	outputFormat := fs.String("output", "text", "output format: text or json")
	_ = fs.Parse(os.Args[2:])
	format, err := parseFormat(*outputFormat)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	status, err := statusViaHTTP(*serverURL)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Status failed: %v\n", err)
		os.Exit(1)
	}
	if err := cli.WriteStatus(os.Stdout, status, format); err != nil {
		fmt.Fprintf(os.Stderr, "Output failed: %v\n", err)
		os.Exit(1)
	}
}

func runSelfTest() {
	fs := flag.NewFlagSet("selftest", flag.ExitOnError)
	outputFormat := fs.String("output", "text", "output format: text or json")
	_ = fs.Parse(os.Args[2:])
	format, err := parseFormat(*outputFormat)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	resp := kernel.New(kernel.WithProbe(platform.StaticProbe{})).SelfTest()
	if err := cli.WriteSelfTest(os.Stdout, &resp, format); err != nil {
		fmt.Fprintf(os.Stderr, "Output failed: %v\n", err)
		os.Exit(1)
	}
	if !resp.Report.Passed {
		os.Exit(1)
	}
}

func runJournal() {
	fs := flag.NewFlagSet("journal", flag.ExitOnError)
	serverURL := fs.String("server", defaultServerURL, "server URL")
	outputFormat := fs.String("output", "text", "output format: text or json")
	kindFlag := fs.String("kind", "", "event kind filter: console, insert, overwrite or task")
	offset := fs.Int("offset", 0, "skip this many rows")
	limit := fs.Int("limit", 50, "maximum rows to list (server caps at 500)")
	fs.Usage = func() {
		fmt.Fprintf(fs.Output(), "Usage: holokernel journal [flags] [session-id]\n\n")
		fmt.Fprintf(fs.Output(), "Without a session ID, lists boot sessions newest first.\n\n")
		fs.PrintDefaults()
	}
	_ = fs.Parse(argsReorder(os.Args[2:]))
	if fs.NArg() > 1 {
		fs.Usage()
		os.Exit(1)
	}
	format, err := parseFormat(*outputFormat)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	kind, err := models.ParseEventKind(*kindFlag)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	if fs.NArg() == 0 {
		resp, err := sessionsViaHTTP(*serverURL, *offset, *limit)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Journal failed: %v\n", err)
			os.Exit(1)
		}
		if err := cli.WriteSessions(os.Stdout, resp, format); err != nil {
			fmt.Fprintf(os.Stderr, "Output failed: %v\n", err)
			os.Exit(1)
		}
		return
	}
	resp, err := eventsViaHTTP(*serverURL, fs.Arg(0), kind, *offset, *limit)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Journal failed: %v\n", err)
		os.Exit(1)
	}
	if err := cli.WriteEvents(os.Stdout, resp, format); err != nil {
		fmt.Fprintf(os.Stderr, "Output failed: %v\n", err)
		os.Exit(1)
	}
}

func runConfig() {
	if len(os.Args) < 3 || os.Args[2] != "init" {
		fmt.Println("Usage: holokernel config init [--path config.yaml] [--force]")
		os.Exit(1)
	}
	fs := flag.NewFlagSet("config init", flag.ExitOnError)
	path := fs.String("path", "config.yaml", "where to write the config file")
	force := fs.Bool("force", false, "overwrite an existing file")
	_ = fs.Parse(os.Args[3:])

	if err := writeDefaultConfig(*path, *force); err != nil {
		fmt.Fprintf(os.Stderr, "Config init failed: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("Wrote default config to %s\n", *path)
}

// writeDefaultConfig writes the built-in defaults to path. An existing file is kept
// unless force is set.
func writeDefaultConfig(path string, force bool) error {
	if !force {
		if _, err := os.Stat(path); err == nil {
			return fmt.Errorf("%s already exists; use --force to overwrite", path)
		}
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("failed to create %s: %w", dir, err)
		}
	}
	return config.Save(path, config.Default())
}

func printUsage() {
	fmt.Println(`holokernel - Holographic associative memory kernel

Usage:
  holokernel boot [flags]                       Boot, print the console transcript, and halt
  holokernel server [flags]                     Boot and serve the HTTP API
  holokernel encode [flags] <text>              Encode text into a vector (local)
  holokernel associate [flags] <key> <value>    Store a key/value association
  holokernel recall [flags] <text>              Look up the value stored under text
  holokernel status [flags]                     Show kernel, store and entity status
  holokernel selftest [flags]                   Run the diagnostic self test (local)
  holokernel journal [flags] [session-id]       List boot sessions, or one session's events
  holokernel config init [--path p] [--force]   Write the default config file
  holokernel version                            Show version
  holokernel help                               Show this help

Boot/Server Flags:
  --config string    Config file path (default: /usr/local/etc/holokernel/config.yaml)
  --debug            Enable debug logging

Client Flags (associate, recall, status, journal):
  --server string    Server URL (default: http://localhost:8090)
  --output string    Output format: text or json (default: text)

Encode/Recall Flags:
  --components       List active vector components
  --compare string   (encode) Also encode this text and report cosine similarity

Journal Flags:
  --kind string      Event kind: console, insert, overwrite or task
  --offset int       Skip this many rows
  --limit int        Maximum rows to list (default: 50)

Environment:
  HOLO_* variables override config keys, e.g. HOLO_SERVER_PORT=9000 HOLO_DEBUG=true
  HOLO_SERVER_RATE_LIMIT_RPS=5 HOLO_STORAGE_JOURNAL_PATH=./journal.db

Examples:
  holokernel boot
  holokernel server --debug
  holokernel encode --components "Hello Holographic World"
  holokernel associate TEST_PATTERN EXPECTED_RESULT
  holokernel recall TEST_PATTERN
  holokernel encode --compare EXPECTED_RESULT TEST_PATTERN
  holokernel journal --kind insert <session-id>
  holokernel config init --path ./config.yaml
  holokernel status --output json`)
}
