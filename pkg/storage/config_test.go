package storage_test

import (
	"testing"

	"github.com/JaimeStill/insight/pkg/storage"
)

func TestFinalizeDefaults(t *testing.T) {
	cfg := storage.Config{}
	if err := cfg.Finalize(nil); err != nil {
		t.Fatalf("finalize failed: %v", err)
	}

	if cfg.ContainerName != "insight-reports" {
		t.Errorf("container_name: got %s, want insight-reports", cfg.ContainerName)
	}
	if cfg.Enabled() {
		t.Error("storage should be disabled without a connection string")
	}
}

func TestFinalizeEnvOverrides(t *testing.T) {
	t.Setenv("TEST_CONTAINER", "exports")
	t.Setenv("TEST_CONN", "override-connection")

	env := &storage.Env{
		ContainerName:    "TEST_CONTAINER",
		ConnectionString: "TEST_CONN",
	}

	cfg := storage.Config{}
	if err := cfg.Finalize(env); err != nil {
		t.Fatalf("finalize failed: %v", err)
	}

	if cfg.ContainerName != "exports" {
		t.Errorf("container_name: got %s, want exports", cfg.ContainerName)
	}
	if !cfg.Enabled() {
		t.Error("storage should be enabled once a connection string is set")
	}
}

func TestMerge(t *testing.T) {
	base := storage.Config{
		ContainerName:    "insight-reports",
		ConnectionString: "base-conn",
	}

	overlay := storage.Config{ConnectionString: "overlay-conn"}
	base.Merge(&overlay)

	if base.ContainerName != "insight-reports" {
		t.Errorf("container_name should remain insight-reports, got %s", base.ContainerName)
	}
	if base.ConnectionString != "overlay-conn" {
		t.Errorf("connection_string: got %s, want overlay-conn", base.ConnectionString)
	}
}
