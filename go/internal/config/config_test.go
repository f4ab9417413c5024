package config

import (
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"
)

func TestParseEnvDefaults(t *testing.T) {
	var cfg Config

	if err := ParseEnv(&cfg); err != nil {
		t.Fatalf("parse env: %v", err)
	}
	if cfg.Port != "8080" || cfg.LogLevel != "info" || cfg.TickInterval != 100*time.Millisecond {
		t.Fatalf("unexpected defaults %+v", cfg)
	}
	if cfg.StreamName != "SESSION_EVENTS" || cfg.ShutdownTimeout != 10*time.Second {
		t.Fatalf("unexpected defaults %+v", cfg)
	}
	if cfg.BusEnabled() {
		t.Fatal("bus should be disabled without NATS_URL")
	}
}

func TestParseEnvOverrides(t *testing.T) {
	t.Setenv("STILLPOINT_PORT", "9090")
	t.Setenv("STILLPOINT_TICK_INTERVAL", "250ms")
	t.Setenv("STILLPOINT_PROGRAMS_FILE", "programs.yaml")
	t.Setenv("NATS_URL", "nats://bus:4222")

	var cfg Config
	if err := ParseEnv(&cfg); err != nil {
		t.Fatalf("parse env: %v", err)
	}
	if cfg.Port != "9090" || cfg.TickInterval != 250*time.Millisecond || cfg.ProgramsFile != "programs.yaml" {
		t.Fatalf("unexpected config %+v", cfg)
	}
	if !cfg.BusEnabled() {
		t.Fatal("bus should be enabled")
	}
}

func TestParseEnvError(t *testing.T) {
	var cfg Config
	t.Setenv("STILLPOINT_TICK_INTERVAL", "soon")

	err := ParseEnv(&cfg)
	if err == nil {
		t.Fatal("expected error")
	}
	if !strings.Contains(err.Error(), "parse env:") {
		t.Fatalf("expected parse env prefix, got %v", err)
	}
}

func TestLoadRejectsNegativeInterval(t *testing.T) {
	t.Chdir(t.TempDir())
	t.Setenv("STILLPOINT_TICK_INTERVAL", "-1s")

	if _, err := Load(); err == nil {
		t.Fatal("expected error")
	}
}

func TestSetupLogging(t *testing.T) {
	defer zerolog.SetGlobalLevel(zerolog.InfoLevel)

	tests := []struct {
		level   string
		want    zerolog.Level
		wantErr bool
	}{
		{level: "debug", want: zerolog.DebugLevel},
		{level: "warn", want: zerolog.WarnLevel},
		{level: "", want: zerolog.InfoLevel},
		{level: "loud", want: zerolog.InfoLevel, wantErr: true},
	}

	for _, tt := range tests {
		err := SetupLogging(tt.level)
		if (err != nil) != tt.wantErr {
			t.Fatalf("%q: unexpected error %v", tt.level, err)
		}
		if got := zerolog.GlobalLevel(); got != tt.want {
			t.Fatalf("%q: expected %s, got %s", tt.level, tt.want, got)
		}
	}
}
