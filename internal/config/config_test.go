package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Server.Port != 8080 {
		t.Errorf("Port = %d, want 8080", cfg.Server.Port)
	}
	if cfg.Server.BasePath != "" {
		t.Errorf("BasePath = %q, want empty", cfg.Server.BasePath)
	}
	if cfg.Matching.MinConfidence != 0.70 {
		t.Errorf("MinConfidence = %v, want 0.70", cfg.Matching.MinConfidence)
	}
	if cfg.Scanner.Workers != 4 {
		t.Errorf("Workers = %d, want 4", cfg.Scanner.Workers)
	}
}

func TestLoad_BackupDirDefaultsBesideDatabase(t *testing.T) {
	path := writeConfig(t, "database:\n  path: /srv/tm/trackmend.db\n  maintenance_interval: 0s\n")
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Database.BackupDir != "/srv/tm/backups" {
		t.Errorf("BackupDir = %q, want /srv/tm/backups", cfg.Database.BackupDir)
	}
	if cfg.Database.BackupRetention != 5 {
		t.Errorf("BackupRetention = %d, want 5", cfg.Database.BackupRetention)
	}
	if cfg.Database.MaintenanceInterval != 0 {
		t.Errorf("MaintenanceInterval = %v, want disabled", cfg.Database.MaintenanceInterval)
	}

	t.Setenv("TM_BACKUP_DIR", "/mnt/snapshots")
	cfg, err = Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Database.BackupDir != "/mnt/snapshots" {
		t.Errorf("BackupDir = %q, want /mnt/snapshots", cfg.Database.BackupDir)
	}
}

func TestLoad_QuarantineBesideLibrary(t *testing.T) {
	t.Setenv("TM_MUSIC_PATH", "/music")
	t.Setenv("TM_QUARANTINE_PATH", "/music-quarantine")
	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Music.QuarantinePath != "/music-quarantine" {
		t.Errorf("QuarantinePath = %q", cfg.Music.QuarantinePath)
	}
}

func TestLoad_MissingFileUsesDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Music.LibraryPath != "/music" {
		t.Errorf("LibraryPath = %q, want /music", cfg.Music.LibraryPath)
	}
}

func TestLoad_File(t *testing.T) {
	path := writeConfig(t, `
server:
  port: 9090
  base_path: /trackmend/
music:
  library_path: /srv/music/
  quarantine_path: /srv/quarantine
scanner:
  workers: 8
  extensions: [flac, mp3]
  watch: true
  debounce: 10s
matching:
  min_confidence: 0.95
logging:
  level: debug
  format: text
webhooks:
  lidarr_token: s3cret
  outbound:
    - name: discord
      url: https://discord.example/api/webhooks/1
      type: discord
      events: [dedupe.completed, wishlist.completed]
`)
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Server.Port != 9090 {
		t.Errorf("Port = %d, want 9090", cfg.Server.Port)
	}
	if cfg.Server.BasePath != "/trackmend" {
		t.Errorf("BasePath = %q, want /trackmend", cfg.Server.BasePath)
	}
	if cfg.Music.LibraryPath != "/srv/music" {
		t.Errorf("LibraryPath = %q, want /srv/music", cfg.Music.LibraryPath)
	}
	if cfg.Music.QuarantinePath != "/srv/quarantine" {
		t.Errorf("QuarantinePath = %q", cfg.Music.QuarantinePath)
	}
	if cfg.Scanner.Workers != 8 || !cfg.Scanner.Watch || len(cfg.Scanner.Extensions) != 2 {
		t.Errorf("Scanner = %+v", cfg.Scanner)
	}
	if cfg.Scanner.Debounce != 10*time.Second {
		t.Errorf("Debounce = %v, want 10s", cfg.Scanner.Debounce)
	}
	if cfg.Matching.MinConfidence != 0.95 {
		t.Errorf("MinConfidence = %v, want 0.95", cfg.Matching.MinConfidence)
	}
	if cfg.Logging.Level != "debug" || cfg.Logging.Format != "text" {
		t.Errorf("Logging = %+v", cfg.Logging)
	}
	if len(cfg.Webhooks.Outbound) != 1 || cfg.Webhooks.Outbound[0].Type != "discord" || len(cfg.Webhooks.Outbound[0].Events) != 2 {
		t.Errorf("Webhooks = %+v", cfg.Webhooks)
	}
	if cfg.Webhooks.LidarrToken != "s3cret" {
		t.Errorf("LidarrToken = %q", cfg.Webhooks.LidarrToken)
	}
	if cfg.Logging.FileMaxFiles != 3 {
		t.Errorf("FileMaxFiles = %d, want default 3", cfg.Logging.FileMaxFiles)
	}
}

func TestLoad_EnvOverridesFile(t *testing.T) {
	path := writeConfig(t, "server:\n  port: 9090\n")
	t.Setenv("TM_PORT", "7070")
	t.Setenv("TM_MUSIC_PATH", "/mnt/music")
	t.Setenv("TM_SCAN_EXTENSIONS", "flac, opus ,")
	t.Setenv("TM_WATCH", "true")
	t.Setenv("TM_MIN_CONFIDENCE", "1")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Server.Port != 7070 {
		t.Errorf("Port = %d, want 7070", cfg.Server.Port)
	}
	if cfg.Music.LibraryPath != "/mnt/music" {
		t.Errorf("LibraryPath = %q, want /mnt/music", cfg.Music.LibraryPath)
	}
	if got := strings.Join(cfg.Scanner.Extensions, ","); got != "flac,opus" {
		t.Errorf("Extensions = %q, want flac,opus", got)
	}
	if !cfg.Scanner.Watch {
		t.Error("expected Watch to be true")
	}
	if cfg.Matching.MinConfidence != 1 {
		t.Errorf("MinConfidence = %v, want 1", cfg.Matching.MinConfidence)
	}
}

func TestLoad_Invalid(t *testing.T) {
	tests := []struct {
		name string
		env  map[string]string
		body string
	}{
		{name: "bad port env", env: map[string]string{"TM_PORT": "http"}},
		{name: "port out of range", body: "server:\n  port: 70000\n"},
		{name: "confidence above one", env: map[string]string{"TM_MIN_CONFIDENCE": "1.5"}},
		{name: "zero workers", body: "scanner:\n  workers: 0\n"},
		{name: "quarantine equals library", body: "music:\n  library_path: /m\n  quarantine_path: /m/\n"},
		{name: "quarantine inside library", env: map[string]string{"TM_MUSIC_PATH": "/music", "TM_QUARANTINE_PATH": "/music/quarantine"}},
		{name: "negative retention", body: "database:\n  backup_retention: -1\n"},
		{name: "negative maintenance interval", body: "database:\n  maintenance_interval: -1h\n"},
		{name: "webhook without url", body: "webhooks:\n  outbound:\n    - name: x\n"},
		{name: "bad log level", env: map[string]string{"TM_LOG_LEVEL": "loud"}},
		{name: "malformed yaml", body: "server: [\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			for k, v := range tt.env {
				t.Setenv(k, v)
			}
			path := ""
			if tt.body != "" {
				path = writeConfig(t, tt.body)
			}
			if _, err := Load(path); err == nil {
				t.Error("expected error")
			}
		})
	}
}
