// Package render invokes the external image renderer that composes the
// final newspaper artifact from a form snapshot.
package render

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/zamaneghtesad/pressbot/internal/config"
	"github.com/zamaneghtesad/pressbot/internal/form"
)

// Invoker runs the renderer as a subprocess with a fixed named-argument
// contract. Renders for the same conversation are serialized by a
// per-conversation lock so two callers can never interleave writes to
// the same output path; renders for different conversations run freely
// in parallel.
type Invoker struct {
	command     string
	script      string
	placeholder string
	timeout     time.Duration
	logger      *slog.Logger

	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

// New creates a renderer invoker from configuration.
func New(cfg config.RendererConfig, logger *slog.Logger) *Invoker {
	if logger == nil {
		logger = slog.Default()
	}
	timeout := time.Duration(cfg.TimeoutSec) * time.Second
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Invoker{
		command:     cfg.Command,
		script:      cfg.Script,
		placeholder: cfg.PlaceholderImage,
		timeout:     timeout,
		logger:      logger,
		locks:       make(map[string]*sync.Mutex),
	}
}

// Render runs the renderer for the snapshot and waits for it to exit.
// Success means exit code zero and an output file present at
// outputPath; anything else is a render failure returned as an error,
// never a fatal condition for the caller's conversation.
func (r *Invoker) Render(ctx context.Context, snap form.Snapshot, outputPath string) error {
	lock := r.lockFor(snap.Conversation)
	lock.Lock()
	defer lock.Unlock()

	if err := os.MkdirAll(filepath.Dir(outputPath), 0o755); err != nil {
		return fmt.Errorf("create output dir: %w", err)
	}

	requestID := uuid.NewString()
	args := r.buildArgs(snap, outputPath)

	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	cmd := exec.CommandContext(ctx, r.command, args...)
	var stderr strings.Builder
	cmd.Stderr = &stderr

	r.logger.Debug("renderer starting",
		"request_id", requestID,
		"conversation_id", snap.Conversation,
		"command", r.command,
	)

	start := time.Now()
	err := cmd.Run()
	if err != nil {
		if ctx.Err() == context.DeadlineExceeded {
			return fmt.Errorf("renderer timed out after %s", r.timeout)
		}
		return fmt.Errorf("renderer failed: %w (%s)", err, tail(stderr.String(), 300))
	}

	if _, err := os.Stat(outputPath); err != nil {
		return fmt.Errorf("renderer produced no output at %s", outputPath)
	}

	r.logger.Info("render completed",
		"request_id", requestID,
		"conversation_id", snap.Conversation,
		"duration_ms", time.Since(start).Milliseconds(),
		"output", outputPath,
	)
	return nil
}

// buildArgs assembles the renderer's argument list. Every named
// argument is always present: unset text fields pass empty strings, the
// unset image falls back to the placeholder, integers are stringified.
// Boolean flags appear only when true (the renderer treats them as
// store-true switches).
func (r *Invoker) buildArgs(snap form.Snapshot, outputPath string) []string {
	var args []string
	if r.script != "" {
		args = append(args, r.script)
	}

	imagePath := r.placeholder
	if img, ok := snap.Image("image1"); ok {
		imagePath = img.LocalPath
	}

	args = append(args,
		"--user_image_path", imagePath,
		"--overline_text", snap.Text("overline"),
		"--main_headline_text", snap.Text("headline"),
		"--output_path", outputPath,
		"--days_into_future", strconv.Itoa(snap.Counter("days")),
		"--overline_font_size_delta", strconv.Itoa(snap.Counter("overline_font_delta")),
		"--main_headline_font_size_delta", strconv.Itoa(snap.Counter("headline_font_delta")),
		"--event1_text", snap.Text("event1"),
		"--event2_text", snap.Text("event2"),
		"--event3_text", snap.Text("event3"),
	)

	if snap.Toggle("dynamic_font") {
		args = append(args, "--dynamic_font_size")
	}
	if snap.Toggle("watermark") {
		args = append(args, "--watermark")
	}
	if snap.Toggle("composed") {
		args = append(args, "--composed")
	}

	return args
}

// lockFor returns the per-conversation render lock, creating it on
// first use. Locks are never evicted; one mutex per conversation is
// cheap at this bot's scale.
func (r *Invoker) lockFor(conversation string) *sync.Mutex {
	r.mu.Lock()
	defer r.mu.Unlock()
	lock, ok := r.locks[conversation]
	if !ok {
		lock = &sync.Mutex{}
		r.locks[conversation] = lock
	}
	return lock
}

// tail returns the last max bytes of s.
func tail(s string, max int) string {
	s = strings.TrimSpace(s)
	if len(s) <= max {
		return s
	}
	return "..." + s[len(s)-max:]
}
