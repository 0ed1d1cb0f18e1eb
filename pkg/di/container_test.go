package di

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/uxkjaer/cds-caching/caching"
)

func TestNewContainer(t *testing.T) {
	config := caching.DefaultConfig()
	config.DefaultTTL = caching.Duration(5 * time.Minute)
	config.Memory.Capacity = 1000
	config.Statistics.KeyTracking = true

	container, err := NewContainer(config, nil)
	if err != nil {
		t.Fatalf("NewContainer() failed: %v", err)
	}

	if container.Coordinator() == nil {
		t.Error("Container should have a non-nil coordinator")
	}
	if container.Store() == nil {
		t.Error("Container should have a non-nil store")
	}
	if container.Recorder() == nil {
		t.Error("Container should have a non-nil recorder")
	}

	stored := container.Config()
	if stored.DefaultTTL != config.DefaultTTL {
		t.Errorf("Expected default TTL %v, got %v", config.DefaultTTL, stored.DefaultTTL)
	}
	if stored.Memory.Capacity != config.Memory.Capacity {
		t.Errorf("Expected capacity %d, got %d", config.Memory.Capacity, stored.Memory.Capacity)
	}
	if !container.Recorder().KeyTracking() {
		t.Error("Recorder should have key tracking enabled from config")
	}
}

func TestNewContainerWithDefaults(t *testing.T) {
	container, err := NewContainerWithDefaults()
	if err != nil {
		t.Fatalf("NewContainerWithDefaults() failed: %v", err)
	}

	config := container.Config()
	defaults := caching.DefaultConfig()

	if config.Store != defaults.Store {
		t.Errorf("Expected default store %q, got %q", defaults.Store, config.Store)
	}
	if config.Memory.Capacity != defaults.Memory.Capacity {
		t.Errorf("Expected default capacity %d, got %d", defaults.Memory.Capacity, config.Memory.Capacity)
	}
	if !container.Recorder().Enabled() {
		t.Error("Recorder should be enabled by default")
	}
}

func TestNewContainer_InvalidConfig(t *testing.T) {
	config := caching.Config{Store: caching.StoreMemory}

	if _, err := NewContainer(config, nil); err == nil {
		t.Error("NewContainer() should fail with a zero memory config")
	}
}

func TestNewContainerFromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	content := `store: memory
defaultTTL: 2m
statistics:
  enabled: true
  keyTracking: true
`
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	container, err := NewContainerFromFile(path, nil)
	if err != nil {
		t.Fatalf("NewContainerFromFile() failed: %v", err)
	}

	if got := container.Config().DefaultTTL.Std(); got != 2*time.Minute {
		t.Errorf("DefaultTTL = %v, want 2m", got)
	}
	if !container.Recorder().KeyTracking() {
		t.Error("key tracking should be on per config file")
	}
}

func TestNewContainerFromFile_MissingFile(t *testing.T) {
	if _, err := NewContainerFromFile(filepath.Join(t.TempDir(), "absent.yaml"), nil); err == nil {
		t.Error("NewContainerFromFile() should fail for a missing file")
	}
}

func TestContainerSingletonBehavior(t *testing.T) {
	container, err := NewContainerWithDefaults()
	if err != nil {
		t.Fatalf("NewContainerWithDefaults() failed: %v", err)
	}

	if container.Coordinator() != container.Coordinator() {
		t.Error("Coordinator() should return the same instance (singleton behavior)")
	}
	if container.Store() != container.Store() {
		t.Error("Store() should return the same instance (singleton behavior)")
	}
	if container.Recorder() != container.Recorder() {
		t.Error("Recorder() should return the same instance (singleton behavior)")
	}
}

func TestContainerFetchIntegration(t *testing.T) {
	container, err := NewContainerWithDefaults()
	if err != nil {
		t.Fatalf("NewContainerWithDefaults() failed: %v", err)
	}
	defer container.Close()

	ctx := context.Background()
	rc := caching.RequestContext{Tenant: "acme"}
	inv := caching.Invocation{Name: "list-titles"}

	calls := 0
	load := func(ctx context.Context) ([]string, error) {
		calls++
		return []string{"Emma", "Dracula"}, nil
	}

	first, res, err := Fetch(ctx, container, rc, inv, load, nil)
	if err != nil {
		t.Fatalf("Fetch() failed: %v", err)
	}
	if res.Metadata.Hit {
		t.Error("first Fetch() should be a miss")
	}
	if len(first) != 2 {
		t.Fatalf("Fetch() returned %d titles, want 2", len(first))
	}

	second, res, err := Fetch(ctx, container, rc, inv, load, nil)
	if err != nil {
		t.Fatalf("Fetch() failed: %v", err)
	}
	if !res.Metadata.Hit {
		t.Error("second Fetch() should be a hit")
	}
	if calls != 1 {
		t.Errorf("origin called %d times, want 1", calls)
	}
	if second[0] != first[0] || second[1] != first[1] {
		t.Errorf("cached value %v differs from original %v", second, first)
	}

	stats := container.Recorder().Snapshot()
	if stats.Hits != 1 || stats.Misses != 1 {
		t.Errorf("recorder counted hits=%d misses=%d, want 1/1", stats.Hits, stats.Misses)
	}
}

func TestContainerClose(t *testing.T) {
	container, err := NewContainerWithDefaults()
	if err != nil {
		t.Fatalf("NewContainerWithDefaults() failed: %v", err)
	}
	if err := container.Close(); err != nil {
		t.Errorf("Close() failed: %v", err)
	}
}
