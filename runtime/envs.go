package runtime

import (
	"os"
	"strconv"
)

// Envs holds the core runtime's environment-derived tuning knobs, per
// spec.md §6 (mirroring original_source/phlow-runtime/src/settings/envs.rs).
type Envs struct {
	// PackageConsumersCount bounds the number of Packages processed
	// concurrently off the main inbound channel.
	PackageConsumersCount int

	// MinAllocatedMemoryMB, if > 0, is passed to debug.SetMemoryLimit as a
	// soft floor hint.
	MinAllocatedMemoryMB int

	// GarbageCollectionEnabled turns on a periodic forced GC.
	GarbageCollectionEnabled bool

	// GarbageCollectionIntervalSeconds is the period between forced GC
	// passes when GarbageCollectionEnabled is set.
	GarbageCollectionIntervalSeconds int

	// LogLevel is PHLOW_LOG, consumed by cmd/phlowd to configure zap.
	LogLevel string
}

// LoadEnvs reads the core's environment variables, applying the defaults
// documented in spec.md §6.
func LoadEnvs() Envs {
	return Envs{
		PackageConsumersCount:            envInt("PHLOW_PACKAGE_CONSUMERS_COUNT", 10),
		MinAllocatedMemoryMB:             envInt("PHLOW_MIN_ALLOCATED_MEMORY_MB", 0),
		GarbageCollectionEnabled:         envBool("PHLOW_GARBAGE_COLLECTION_ENABLED", false),
		GarbageCollectionIntervalSeconds: envInt("PHLOW_GARBAGE_COLLECTION_INTERVAL_SECONDS", 60),
		LogLevel:                         os.Getenv("PHLOW_LOG"),
	}
}

func envInt(name string, fallback int) int {
	raw, ok := os.LookupEnv(name)
	if !ok {
		return fallback
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return fallback
	}
	return v
}

func envBool(name string, fallback bool) bool {
	raw, ok := os.LookupEnv(name)
	if !ok {
		return fallback
	}
	v, err := strconv.ParseBool(raw)
	if err != nil {
		return fallback
	}
	return v
}
