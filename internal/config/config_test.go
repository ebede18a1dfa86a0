package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("write %s: %v", name, err)
	}
	return path
}

func TestDefault_IsValid(t *testing.T) {
	cfg := Default()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("default config invalid: %v", err)
	}
	if cfg.Output.Prefix != "video_no_audio" || cfg.Output.MimeType != "video/mp4" {
		t.Errorf("unexpected output defaults %+v", cfg.Output)
	}
}

func TestLoad_NoFile(t *testing.T) {
	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Server.Addr != Default().Server.Addr {
		t.Errorf("expected default addr, got %q", cfg.Server.Addr)
	}
}

func TestLoad_YAML(t *testing.T) {
	path := writeFile(t, "shutter.yaml", `
server:
  addr: "127.0.0.1:9000"
log:
  level: debug
camera:
  facing:
    /dev/video0: front
    /dev/video2: back
output:
  root: /srv/media
executor:
  drain_timeout: 750ms
error_history: 4
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Server.Addr != "127.0.0.1:9000" {
		t.Errorf("unexpected addr %q", cfg.Server.Addr)
	}
	if cfg.Log.Level != "debug" {
		t.Errorf("unexpected level %q", cfg.Log.Level)
	}
	if cfg.Camera.Facing["/dev/video0"] != "front" {
		t.Errorf("unexpected facing map %v", cfg.Camera.Facing)
	}
	if cfg.Camera.FFmpeg != "ffmpeg" {
		t.Errorf("expected default ffmpeg to survive a partial file, got %q", cfg.Camera.FFmpeg)
	}
	if cfg.Output.Root != "/srv/media" || cfg.Output.RelativePath != "Movies/Shutter" {
		t.Errorf("unexpected output %+v", cfg.Output)
	}
	if cfg.Executor.DrainTimeout.Std() != 750*time.Millisecond {
		t.Errorf("unexpected drain timeout %v", cfg.Executor.DrainTimeout.Std())
	}
	if cfg.ErrorHistory != 4 {
		t.Errorf("unexpected error history %d", cfg.ErrorHistory)
	}
}

func TestLoad_JSON(t *testing.T) {
	path := writeFile(t, "shutter.json", `{"executor": {"drain_timeout": "3s"}, "log": {"development": true}}`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Executor.DrainTimeout.Std() != 3*time.Second {
		t.Errorf("unexpected drain timeout %v", cfg.Executor.DrainTimeout.Std())
	}
	if !cfg.Log.Development {
		t.Error("expected development logging")
	}
}

func TestLoad_Invalid(t *testing.T) {
	tests := []struct {
		name    string
		content string
		want    string
	}{
		{"bad level", "log:\n  level: loud\n", "Level"},
		{"bad facing", "camera:\n  facing:\n    /dev/video0: up\n", "Facing"},
		{"zero drain", "executor:\n  drain_timeout: 0s\n", "DrainTimeout"},
		{"prefix with slash", "output:\n  prefix: a/b\n", "Prefix"},
		{"bad duration", "executor:\n  drain_timeout: soon\n", "drain"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load(writeFile(t, "shutter.yaml", tt.content))
			if err == nil {
				t.Fatal("expected error")
			}
			if !strings.Contains(err.Error(), tt.want) {
				t.Errorf("expected error mentioning %q, got %v", tt.want, err)
			}
		})
	}
}

func TestLoad_MissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Error("expected error for missing file")
	}
}

func TestApplyEnv(t *testing.T) {
	env := map[string]string{
		"SHUTTER_ADDR":            ":7000",
		"SHUTTER_FFMPEG":          "/opt/ffmpeg",
		"SHUTTER_DRAIN_TIMEOUT":   "5s",
		"SHUTTER_ERROR_HISTORY":   "2",
		"SHUTTER_LOG_DEVELOPMENT": "true",
	}
	lookup := func(k string) (string, bool) {
		v, ok := env[k]
		return v, ok
	}

	cfg := Default()
	if err := cfg.applyEnv(lookup); err != nil {
		t.Fatalf("applyEnv() error = %v", err)
	}
	if cfg.Server.Addr != ":7000" || cfg.Camera.FFmpeg != "/opt/ffmpeg" {
		t.Errorf("string overrides not applied: %+v", cfg)
	}
	if cfg.Executor.DrainTimeout.Std() != 5*time.Second || cfg.ErrorHistory != 2 || !cfg.Log.Development {
		t.Errorf("typed overrides not applied: %+v", cfg)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("overridden config invalid: %v", err)
	}
}

func TestApplyEnv_Malformed(t *testing.T) {
	for _, key := range []string{"SHUTTER_DRAIN_TIMEOUT", "SHUTTER_ERROR_HISTORY", "SHUTTER_LOG_DEVELOPMENT"} {
		cfg := Default()
		err := cfg.applyEnv(func(k string) (string, bool) {
			if k == key {
				return "not-a-value", true
			}
			return "", false
		})
		if err == nil || !strings.Contains(err.Error(), key) {
			t.Errorf("%s: expected error naming the variable, got %v", key, err)
		}
	}
}
