package config

// ApplyDefaults sets default values for any zero values in cfg.
func ApplyDefaults(cfg *Config) {
	if cfg.Server.Host == "" {
		cfg.Server.Host = "localhost"
	}
	if cfg.Server.Port == 0 {
		cfg.Server.Port = 8090
	}
	if cfg.Server.RateLimitRPS > 0 && cfg.Server.RateLimitBurst == 0 {
		cfg.Server.RateLimitBurst = int(cfg.Server.RateLimitRPS)
		if cfg.Server.RateLimitBurst < 1 {
			cfg.Server.RateLimitBurst = 1
		}
	}
	if cfg.Kernel.MemoryKB == 0 {
		cfg.Kernel.MemoryKB = 64 * 1024
	}
	// RunSelfTest defaults to true when unset (nil).
	if cfg.Kernel.RunSelfTest == nil {
		t := true
		cfg.Kernel.RunSelfTest = &t
	}
	if cfg.Metrics.Path == "" {
		cfg.Metrics.Path = "/metrics"
	}
	if cfg.Watch.Directory != "" && cfg.Watch.Extensions == nil {
		cfg.Watch.Extensions = []string{".txt", ".md"}
	}
}

// Default returns a config with every default applied and no file behind it.
func Default() *Config {
	cfg := &Config{}
	ApplyDefaults(cfg)
	return cfg
}
