package tiercache

import (
	"context"
	"reflect"
	"testing"
	"time"
)

func TestComputeConfigDefaults(t *testing.T) {
	config := ComputeConfig(DeviceSignals{})
	base := NewDefaultConfig()

	if config.MaxEntries != base.MaxEntries {
		t.Fatalf("Expected default entries %d, got %d", base.MaxEntries, config.MaxEntries)
	}
	if config.MaxSizeBytes != base.MaxSizeBytes {
		t.Fatalf("Expected default budget %d, got %d", base.MaxSizeBytes, config.MaxSizeBytes)
	}
	if config.AggressiveGC {
		t.Fatal("Default profile must not enable aggressive GC")
	}
}

func TestComputeConfigLowMemory(t *testing.T) {
	base := NewDefaultConfig()
	config := ComputeConfig(DeviceSignals{MemoryBytes: 2 << 30})

	if config.MaxEntries != base.MaxEntries/2 {
		t.Fatalf("Expected halved entries, got %d", config.MaxEntries)
	}
	if config.MaxSizeBytes != base.MaxSizeBytes/2 {
		t.Fatalf("Expected halved budget, got %d", config.MaxSizeBytes)
	}
	if config.PressureThreshold != 0.8 {
		t.Fatalf("Expected 0.8 threshold, got %v", config.PressureThreshold)
	}
	if !config.AggressiveGC {
		t.Fatal("Low-memory profile must enable aggressive GC")
	}
}

func TestComputeConfigSlowNetwork(t *testing.T) {
	base := NewDefaultConfig()

	for _, class := range []string{"slow-2g", "2g", "3g"} {
		config := ComputeConfig(DeviceSignals{NetworkClass: class})
		if config.DefaultTTL != 2*base.DefaultTTL {
			t.Errorf("%s: expected doubled TTL, got %v", class, config.DefaultTTL)
		}
		if config.Compression.MinSize != base.Compression.MinSize/2 {
			t.Errorf("%s: expected halved compression threshold, got %d", class, config.Compression.MinSize)
		}
	}

	for _, class := range []string{"4g", "wifi", ""} {
		config := ComputeConfig(DeviceSignals{NetworkClass: class})
		if config.DefaultTTL != base.DefaultTTL {
			t.Errorf("%s: expected default TTL, got %v", class, config.DefaultTTL)
		}
	}
}

func TestComputeConfigIsDeterministic(t *testing.T) {
	signals := DeviceSignals{MemoryBytes: 1 << 30, NetworkClass: "2g"}

	first := ComputeConfig(signals)
	second := ComputeConfig(signals)

	if !reflect.DeepEqual(first, second) {
		t.Fatal("Same signals must produce the same configuration")
	}
}

func TestComputeConfigCombinedSignals(t *testing.T) {
	config := ComputeConfig(DeviceSignals{MemoryBytes: 1 << 30, NetworkClass: "slow-2g"})
	base := NewDefaultConfig()

	if config.MaxEntries != base.MaxEntries/2 || config.DefaultTTL != 2*base.DefaultTTL {
		t.Fatal("Expected both low-memory and slow-network adjustments")
	}
}

func TestNewAdaptive(t *testing.T) {
	cache, err := NewAdaptive(
		DeviceSignals{MemoryBytes: 1 << 30},
		func(c *Config) { c.DefaultTTL = time.Minute },
	)
	if err != nil {
		t.Fatalf("NewAdaptive failed: %v", err)
	}
	defer func() { _ = cache.Close(context.Background()) }()

	if cache.config.MaxEntries != NewDefaultConfig().MaxEntries/2 {
		t.Fatalf("Expected low-memory entry budget, got %d", cache.config.MaxEntries)
	}
	if cache.config.DefaultTTL != time.Minute {
		t.Fatalf("Expected option override, got %v", cache.config.DefaultTTL)
	}
}
