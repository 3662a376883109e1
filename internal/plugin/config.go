package plugin

import (
	"os"
	"strings"
	"time"
)

// DefaultInitTimeout bounds a single plugin Init call.
const DefaultInitTimeout = 30 * time.Second

// RegistryConfig configures plugin initialization.
type RegistryConfig struct {
	InitTimeout time.Duration
}

// DefaultConfig returns defaults, honouring ORBISDB_PLUGIN_INIT_TIMEOUT when
// it holds a valid Go duration.
func DefaultConfig() *RegistryConfig {
	cfg := &RegistryConfig{InitTimeout: DefaultInitTimeout}
	if raw := strings.TrimSpace(os.Getenv("ORBISDB_PLUGIN_INIT_TIMEOUT")); raw != "" {
		if d, err := time.ParseDuration(raw); err == nil && d > 0 {
			cfg.InitTimeout = d
		}
	}
	return cfg
}
