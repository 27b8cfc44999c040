package config

import "github.com/caarlos0/env/v11"

// parseEnv overlays AUTH_* environment variables. Unset variables leave the
// current value untouched. Malformed values panic, like the other sources.
func parseEnv(config *Config) {
	if err := env.Parse(config); err != nil {
		panic(err)
	}
}
