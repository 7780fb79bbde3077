package config

import (
	"log/slog"
	"os"
	"path/filepath"
	"testing"
)

func TestFindConfig_Explicit(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "test.yaml")
	os.WriteFile(path, []byte("data_dir: /tmp/pressbot\n"), 0600)

	got, err := FindConfig(path)
	if err != nil {
		t.Fatalf("FindConfig(%q) error: %v", path, err)
	}
	if got != path {
		t.Errorf("FindConfig(%q) = %q, want %q", path, got, path)
	}
}

func TestFindConfig_ExplicitMissing(t *testing.T) {
	_, err := FindConfig("/nonexistent/config.yaml")
	if err == nil {
		t.Fatal("FindConfig with missing explicit path should error")
	}
}

func TestFindConfig_CWD(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	os.WriteFile(path, []byte("data_dir: data\n"), 0600)

	orig, _ := os.Getwd()
	os.Chdir(dir)
	defer os.Chdir(orig)

	got, err := FindConfig("")
	if err != nil {
		t.Fatalf("FindConfig(\"\") error: %v", err)
	}
	if got != "config.yaml" {
		t.Errorf("FindConfig(\"\") = %q, want %q", got, "config.yaml")
	}
}

func TestLoad(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	content := `
telegram:
  token: "12345:abcdef"
  audit_channel_id: -1002302354978
renderer:
  command: python3
  script: ./craft/newspaper_template.py
  placeholder_image: assets/logo.png
  timeout_sec: 45
data_dir: /var/lib/pressbot
log_level: debug
`
	os.WriteFile(path, []byte(content), 0600)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}

	if cfg.Telegram.Token != "12345:abcdef" {
		t.Errorf("Telegram.Token = %q", cfg.Telegram.Token)
	}
	if cfg.Telegram.AuditChannelID != -1002302354978 {
		t.Errorf("Telegram.AuditChannelID = %d", cfg.Telegram.AuditChannelID)
	}
	if cfg.Renderer.Script != "./craft/newspaper_template.py" {
		t.Errorf("Renderer.Script = %q", cfg.Renderer.Script)
	}
	if cfg.Renderer.TimeoutSec != 45 {
		t.Errorf("Renderer.TimeoutSec = %d", cfg.Renderer.TimeoutSec)
	}
	// Defaults survive partial configs.
	if cfg.Telegram.PollTimeoutSec != 30 {
		t.Errorf("Telegram.PollTimeoutSec = %d, want default 30", cfg.Telegram.PollTimeoutSec)
	}
}

func TestLoad_EnvExpansion(t *testing.T) {
	t.Setenv("PRESSBOT_TEST_TOKEN", "999:token-from-env")

	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	os.WriteFile(path, []byte("telegram:\n  token: \"$PRESSBOT_TEST_TOKEN\"\n"), 0600)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	if cfg.Telegram.Token != "999:token-from-env" {
		t.Errorf("Telegram.Token = %q, want env-expanded value", cfg.Telegram.Token)
	}
}

func TestValidate(t *testing.T) {
	cfg := Default()
	if err := cfg.Validate(); err == nil {
		t.Error("Validate() with no token should error")
	}

	cfg.Telegram.Token = "12345:abcdef"
	if err := cfg.Validate(); err != nil {
		t.Errorf("Validate() with token error: %v", err)
	}
}

func TestParseLogLevel(t *testing.T) {
	tests := []struct {
		in      string
		want    slog.Level
		wantErr bool
	}{
		{in: "", want: slog.LevelInfo},
		{in: "info", want: slog.LevelInfo},
		{in: "trace", want: LevelTrace},
		{in: "debug", want: slog.LevelDebug},
		{in: "WARN", want: slog.LevelWarn},
		{in: "warning", want: slog.LevelWarn},
		{in: "error", want: slog.LevelError},
		{in: "loud", want: slog.LevelInfo, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseLogLevel(tt.in)
			if (err != nil) != tt.wantErr {
				t.Fatalf("ParseLogLevel(%q) error = %v, wantErr %v", tt.in, err, tt.wantErr)
			}
			if got != tt.want {
				t.Errorf("ParseLogLevel(%q) = %v, want %v", tt.in, got, tt.want)
			}
		})
	}
}
