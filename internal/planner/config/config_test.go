package config

import (
	"testing"
	"time"

	"github.com/ahplanner/planner-server/pkg/planner"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if cfg.Server.Port != 8080 {
		t.Errorf("port = %d, want 8080", cfg.Server.Port)
	}
	if cfg.Server.Addr() != "0.0.0.0:8080" {
		t.Errorf("addr = %q", cfg.Server.Addr())
	}
	if cfg.Database.Path != "planner.db" {
		t.Errorf("db path = %q", cfg.Database.Path)
	}
	if cfg.Planner.SnapshotStaleAfter != 24*time.Hour {
		t.Errorf("stale after = %v", cfg.Planner.SnapshotStaleAfter)
	}
	if cfg.Planner.DefaultPriceMode != planner.PriceModeMin {
		t.Errorf("price mode = %q", cfg.Planner.DefaultPriceMode)
	}
}

func TestLoadFromEnvironment(t *testing.T) {
	t.Setenv("SERVER_PORT", "9000")
	t.Setenv("DB_PATH", "/var/lib/planner/planner.db")
	t.Setenv("SNAPSHOT_STALE_AFTER", "6h")
	t.Setenv("DEFAULT_PRICE_MODE", "median")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if cfg.Server.Port != 9000 {
		t.Errorf("port = %d, want 9000", cfg.Server.Port)
	}
	if cfg.Database.Path != "/var/lib/planner/planner.db" {
		t.Errorf("db path = %q", cfg.Database.Path)
	}
	if cfg.Planner.SnapshotStaleAfter != 6*time.Hour {
		t.Errorf("stale after = %v", cfg.Planner.SnapshotStaleAfter)
	}
	if cfg.Planner.DefaultPriceMode != planner.PriceModeMedian {
		t.Errorf("price mode = %q", cfg.Planner.DefaultPriceMode)
	}
}

func TestLoadRejectsBadValues(t *testing.T) {
	t.Setenv("SERVER_PORT", "not-a-port")
	if _, err := Load(); err == nil {
		t.Error("bad port must fail")
	}
}

func TestLoadRejectsBadPriceMode(t *testing.T) {
	t.Setenv("DEFAULT_PRICE_MODE", "average")
	if _, err := Load(); err == nil {
		t.Error("unknown price mode must fail")
	}
}
