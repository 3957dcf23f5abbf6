package config_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/nimbusd/nimbusd/internal/config"
)

func TestLoadAppliesDefaultsWithNoFile(t *testing.T) {
	c, err := config.Load("")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if c.Listen == "" {
		t.Fatal("Listen default not applied")
	}
	if c.Stream.MaxQueuedInbound != 1 {
		t.Fatalf("Stream.MaxQueuedInbound = %d, want 1", c.Stream.MaxQueuedInbound)
	}
	if !c.Audit.Enabled {
		t.Fatal("Audit.Enabled default should be true")
	}
}

func TestLoadOverridesFromFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "nimbusd.yaml")
	contents := "listen: \":9999\"\nstream:\n  max_queued_inbound: 3\n"
	if err := os.WriteFile(path, []byte(contents), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	c, err := config.Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if c.Listen != ":9999" {
		t.Fatalf("Listen = %q, want :9999", c.Listen)
	}
	if c.Stream.MaxQueuedInbound != 3 {
		t.Fatalf("Stream.MaxQueuedInbound = %d, want 3", c.Stream.MaxQueuedInbound)
	}
}

func TestLoadRejectsUnreadableFile(t *testing.T) {
	if _, err := config.Load(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Fatal("Load with a nonexistent path returned nil error")
	}
}
