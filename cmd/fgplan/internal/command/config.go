package command

import (
	"errors"
	"fmt"
	"os"

	"github.com/pelletier/go-toml/v2"

	"github.com/gogpu/framegraph/pool"
	"github.com/gogpu/framegraph/recording"
)

// Config is the fgplan configuration file.
//
//	profile = "async-compute"
//	async_compute = true
//	log_level = "info"
//
//	[pools]
//	view_cache_limit = 512
type Config struct {
	// Profile names the recording device profile graphs run on.
	Profile string `toml:"profile"`

	// AsyncCompute lets async compute passes use the second queue when the
	// profile has one. Unset means true.
	AsyncCompute *bool `toml:"async_compute"`

	// LogLevel is one of silent, debug, info, warn or error.
	LogLevel string `toml:"log_level"`

	Pools PoolConfig `toml:"pools"`
}

// PoolConfig mirrors pool.Config.
type PoolConfig struct {
	ViewCacheLimit      int  `toml:"view_cache_limit"`
	BindGroupCacheLimit int  `toml:"bind_group_cache_limit"`
	PipelineCacheLimit  int  `toml:"pipeline_cache_limit"`
	ShaderDebug         bool `toml:"shader_debug"`
}

// DefaultProfile is used when no profile is configured.
const DefaultProfile = "async-compute"

// DefaultConfig returns the configuration used without a config file.
func DefaultConfig() Config {
	return Config{Profile: DefaultProfile}
}

// LoadConfig reads a TOML config file over the defaults. Unknown keys are
// rejected.
func LoadConfig(path string) (Config, error) {
	cfg := DefaultConfig()
	f, err := os.Open(path)
	if err != nil {
		return cfg, fmt.Errorf("config: %w", err)
	}
	defer f.Close()

	dec := toml.NewDecoder(f).DisallowUnknownFields()
	if err := dec.Decode(&cfg); err != nil {
		var strict *toml.StrictMissingError
		if errors.As(err, &strict) {
			return cfg, fmt.Errorf("config %s: %s", path, strict.String())
		}
		return cfg, fmt.Errorf("config %s: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return cfg, fmt.Errorf("config %s: %w", path, err)
	}
	return cfg, nil
}

// Validate checks the profile name.
func (c Config) Validate() error {
	if !recording.IsRegistered(c.Profile) {
		return fmt.Errorf("unknown profile %q (have %v)", c.Profile, recording.Profiles())
	}
	return nil
}

// Async reports whether async compute is enabled.
func (c Config) Async() bool {
	return c.AsyncCompute == nil || *c.AsyncCompute
}

// PoolConfig returns the pool configuration.
func (c Config) PoolConfig() pool.Config {
	return pool.Config{
		ViewCacheLimit:      c.Pools.ViewCacheLimit,
		BindGroupCacheLimit: c.Pools.BindGroupCacheLimit,
		PipelineCacheLimit:  c.Pools.PipelineCacheLimit,
		ShaderDebug:         c.Pools.ShaderDebug,
	}
}
