package tiercache

// DeviceSignals describes the host the cache runs on. Signals are consulted
// once at startup; unknown values fall back to a 4GB / "4g" profile.
type DeviceSignals struct {
	// MemoryBytes is the approximate host memory size.
	MemoryBytes int64

	// NetworkClass is the coarse network quality: "slow-2g", "2g", "3g",
	// "4g", or "wifi".
	NetworkClass string
}

const (
	defaultDeviceMemory = 4 * 1024 * 1024 * 1024
	lowMemoryCeiling    = 2 * 1024 * 1024 * 1024
)

func slowNetwork(class string) bool {
	switch class {
	case "slow-2g", "2g", "3g":
		return true
	default:
		return false
	}
}

// ComputeConfig derives a configuration from device signals. It is pure and
// deterministic: the same signals always produce the same configuration.
//
// Hosts at or below 2GB get roughly half the entry and byte budgets, a lower
// critical pressure threshold, and aggressive GC hints. Slow network classes
// double the default TTL and halve the compression threshold, trading CPU
// for fewer reloads.
func ComputeConfig(signals DeviceSignals) *Config {
	config := NewDefaultConfig()

	memory := signals.MemoryBytes
	if memory <= 0 {
		memory = defaultDeviceMemory
	}
	network := signals.NetworkClass
	if network == "" {
		network = "4g"
	}

	if memory <= lowMemoryCeiling {
		config.MaxEntries /= 2
		config.MaxSizeBytes /= 2
		config.PressureThreshold = 0.8
		config.AggressiveGC = true
	}

	if slowNetwork(network) {
		config.DefaultTTL *= 2
		config.Compression.MinSize /= 2
	}

	return config
}

// NewAdaptive creates a cache sized from device signals. Options mutate the
// derived configuration before construction.
func NewAdaptive(signals DeviceSignals, opts ...func(*Config)) (*Cache, error) {
	config := ComputeConfig(signals)
	for _, opt := range opts {
		opt(config)
	}
	return New(config)
}
