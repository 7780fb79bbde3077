// Pressbot is a Telegram bot that builds newspaper front-page posts.
//
// Users fill an inline-menu form (news photo, overline, headline, event
// lines, render toggles and counters) through a chat conversation; every
// change re-renders a live preview through an external renderer, and
// Finish delivers the final artifact to the user and the audit channel.
//
// Usage:
//
//	pressbot serve             Start the bot
//	pressbot init [dir]        Initialize a working directory with defaults
//	pressbot version           Print version and build information
//	pressbot -o json version   Output version information as JSON
package main

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/zamaneghtesad/pressbot/internal/audit"
	"github.com/zamaneghtesad/pressbot/internal/buildinfo"
	"github.com/zamaneghtesad/pressbot/internal/config"
	"github.com/zamaneghtesad/pressbot/internal/form"
	"github.com/zamaneghtesad/pressbot/internal/mqtt"
	"github.com/zamaneghtesad/pressbot/internal/render"
	"github.com/zamaneghtesad/pressbot/internal/telegram"

	_ "github.com/mattn/go-sqlite3" // SQLite driver for database/sql
)

// main is intentionally minimal. It constructs the OS-level environment
// (context, stdio, argv) and delegates immediately to [run] so the full
// startup-to-shutdown lifecycle can be driven from tests.
func main() {
	ctx := context.Background()

	if err := run(ctx, os.Stdout, os.Stderr, os.Args[1:]); err != nil {
		fmt.Fprintf(os.Stderr, "%s\n", err)
		os.Exit(1)
	}
}

// run is the real entry point for the pressbot command. Arguments are
// parsed by hand: the flag package relies on package-level globals
// which interfere with calling run() concurrently from tests, and the
// argument surface here is small.
func run(ctx context.Context, stdout io.Writer, stderr io.Writer, args []string) error {
	var configPath string
	var outputFmt string // "text" (default) or "json"
	var command string
	var cmdArgs []string

	for i := 0; i < len(args); i++ {
		switch {
		case args[i] == "-config" && i+1 < len(args):
			configPath = args[i+1]
			i++ // skip the value
		case strings.HasPrefix(args[i], "-config="):
			configPath = strings.TrimPrefix(args[i], "-config=")
		case (args[i] == "-o" || args[i] == "--output") && i+1 < len(args):
			outputFmt = args[i+1]
			i++
		case strings.HasPrefix(args[i], "-o="):
			outputFmt = strings.TrimPrefix(args[i], "-o=")
		case strings.HasPrefix(args[i], "--output="):
			outputFmt = strings.TrimPrefix(args[i], "--output=")
		case args[i] == "-h" || args[i] == "-help" || args[i] == "--help":
			return printUsage(stdout)
		case !strings.HasPrefix(args[i], "-") && command == "":
			command = args[i]
		default:
			if command != "" {
				cmdArgs = append(cmdArgs, args[i])
			} else {
				return fmt.Errorf("unknown flag: %s", args[i])
			}
		}
	}

	if outputFmt == "" {
		outputFmt = "text"
	}
	if outputFmt != "text" && outputFmt != "json" {
		return fmt.Errorf("unknown output format: %q (expected text or json)", outputFmt)
	}

	switch command {
	case "serve":
		return runServe(ctx, stdout, configPath)
	case "init":
		dir := "."
		if len(cmdArgs) > 0 {
			dir = cmdArgs[0]
		}
		return runInit(stdout, dir)
	case "version", "":
		return runVersion(stdout, outputFmt)
	default:
		fmt.Fprintf(stderr, "unknown command: %s\n\n", command)
		return printUsage(stdout)
	}
}

func printUsage(w io.Writer) error {
	fmt.Fprint(w, `pressbot - newspaper post bot

Usage:
  pressbot serve             Start the bot
  pressbot init [dir]        Initialize a working directory with defaults
  pressbot version           Print version and build information

Flags:
  -config <path>   Explicit config file location
  -o <format>      Output format: text (default) or json
`)
	return nil
}

func runVersion(w io.Writer, format string) error {
	if format == "json" {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(buildinfo.Info())
	}
	fmt.Fprintln(w, buildinfo.String())
	return nil
}

// defaultConfigYAML is written by `pressbot init` when no config exists.
const defaultConfigYAML = `# pressbot configuration

telegram:
  token: "$PRESSBOT_TELEGRAM_TOKEN"
  # Chat ID of the audit channel; 0 disables audit forwarding.
  audit_channel_id: 0

renderer:
  command: python3
  script: ./craft/newspaper_template.py
  placeholder_image: ./assets/logo.png
  timeout_sec: 30

# mqtt:
#   enabled: true
#   broker: mqtt://localhost:1883
#   device_name: pressbot

data_dir: data
log_level: info
`

// runInit initializes a pressbot working directory with default files.
// Existing files are never overwritten.
func runInit(w io.Writer, dir string) error {
	fmt.Fprintf(w, "Initializing pressbot workspace in %s\n", dir)

	for _, sub := range []string{"data", "data/images", "data/out", "assets"} {
		path := filepath.Join(dir, sub)
		if err := os.MkdirAll(path, 0o755); err != nil {
			return fmt.Errorf("create %s: %w", path, err)
		}
	}

	configPath := filepath.Join(dir, "config.yaml")
	if err := writeIfMissing(configPath, []byte(defaultConfigYAML)); err != nil {
		return err
	}
	fmt.Fprintf(w, "  ✓ %s\n", configPath)

	fmt.Fprintln(w)
	fmt.Fprintln(w, "Edit config.yaml, add your renderer script and placeholder image, then run: pressbot serve")
	return nil
}

// writeIfMissing writes content to path unless the file already exists.
func writeIfMissing(path string, content []byte) error {
	if _, err := os.Stat(path); err == nil {
		return nil
	}
	if err := os.WriteFile(path, content, 0o644); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	return nil
}

// runServe wires the full bot: config, logging, session store,
// renderer, transport, audit sink, and the update bridge. It blocks
// until the context is cancelled by SIGINT/SIGTERM.
func runServe(ctx context.Context, stdout io.Writer, configPath string) error {
	path, err := config.FindConfig(configPath)
	if err != nil {
		return err
	}
	cfg, err := config.Load(path)
	if err != nil {
		return fmt.Errorf("load config %s: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("config %s: %w", path, err)
	}

	level, err := config.ParseLogLevel(cfg.LogLevel)
	if err != nil {
		return err
	}
	logger := slog.New(slog.NewTextHandler(stdout, &slog.HandlerOptions{
		Level:       level,
		ReplaceAttr: config.ReplaceLogLevelNames,
	}))
	slog.SetDefault(logger)

	logger.Info("starting", "build", buildinfo.String(), "config", path)

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	for _, sub := range []string{"images", "out"} {
		if err := os.MkdirAll(filepath.Join(cfg.DataDir, sub), 0o755); err != nil {
			return fmt.Errorf("create data dir: %w", err)
		}
	}

	dbPath := filepath.Join(cfg.DataDir, "sessions.db")
	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return fmt.Errorf("open session database: %w", err)
	}
	defer db.Close()

	schema := form.Newspaper()
	store, err := form.NewStore(db, schema, logger.With("component", "store"))
	if err != nil {
		return fmt.Errorf("session store: %w", err)
	}

	client, err := telegram.NewClient(cfg.Telegram.Token, logger.With("component", "telegram"))
	if err != nil {
		return err
	}

	invoker := render.New(cfg.Renderer, logger.With("component", "render"))

	var events audit.EventPublisher
	if cfg.MQTT.Enabled {
		publisher := mqtt.New(cfg.MQTT, logger.With("component", "mqtt"))
		if err := publisher.Start(ctx); err != nil {
			logger.Warn("mqtt disabled after connect failure", "error", err)
		} else {
			events = publisher
			defer func() {
				stopCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
				defer cancel()
				if err := publisher.Stop(stopCtx); err != nil {
					logger.Warn("mqtt shutdown failed", "error", err)
				}
			}()
		}
	}

	sink := audit.NewSink(cfg.Telegram.AuditChannelID, client, events, logger.With("component", "audit"))

	controller := form.NewController(form.Config{
		Schema:           schema,
		Store:            store,
		Transport:        client,
		Renderer:         invoker,
		Sink:             sink,
		Logger:           logger.With("component", "form"),
		PlaceholderImage: cfg.Renderer.PlaceholderImage,
		DataDir:          cfg.DataDir,
	})

	bridge := telegram.NewBridge(telegram.BridgeConfig{
		Client:      client,
		Controller:  controller,
		Sink:        sink,
		Logger:      logger.With("component", "bridge"),
		PollTimeout: cfg.Telegram.PollTimeoutSec,
	})

	return bridge.Start(ctx)
}
