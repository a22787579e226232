// Package config loads this engine's runtime configuration, trimmed
// from the teacher's root-level config.go to the fields the core chain
// engine actually reads: data directory, network selection, orphan
// pool sizing, and checkpoint controls.
package config

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/viper"
)

const (
	defaultDataDirname     = "data"
	defaultLogDirname      = "logs"
	defaultLogLevel        = "info"
	defaultNetwork         = "mainnet"
	defaultOrphanCapacity  = 100
	defaultMmapGrowthMiB   = 64
	defaultDisableCkpoints = false
)

// Config is the root configuration structure, populated by viper from a
// YAML file plus mapstructure tags, exactly as the teacher's Config
// does for its own (much larger) surface.
type Config struct {
	Engine struct {
		DataDir            string   `mapstructure:"dataDir"`
		LogDir             string   `mapstructure:"logDir"`
		LogLevel           string   `mapstructure:"logLevel"`
		Network            string   `mapstructure:"network"`
		OrphanCapacity     int      `mapstructure:"orphanCapacity"`
		MmapGrowthMiB      int      `mapstructure:"mmapGrowthMiB"`
		DisableCheckpoints bool     `mapstructure:"disableCheckpoints"`
		AddCheckpoints     []string `mapstructure:"addCheckpoints"`
	} `mapstructure:"engine"`
}

func defaults() *Config {
	var cfg Config
	cfg.Engine.DataDir = defaultDataDirname
	cfg.Engine.LogDir = defaultLogDirname
	cfg.Engine.LogLevel = defaultLogLevel
	cfg.Engine.Network = defaultNetwork
	cfg.Engine.OrphanCapacity = defaultOrphanCapacity
	cfg.Engine.MmapGrowthMiB = defaultMmapGrowthMiB
	cfg.Engine.DisableCheckpoints = defaultDisableCkpoints
	return &cfg
}

// Load reads configuration from configFile if given, or searches for
// engine.yml next to the executable and then in the current directory,
// mirroring the teacher's loadConfigFile fallback order. Missing config
// files are not an error: Load falls back to defaults.
func Load(configFile string) (*Config, error) {
	v := viper.New()
	cfg := defaults()

	if configFile != "" {
		v.SetConfigFile(configFile)
	} else {
		baseDir := "."
		if exe, err := os.Executable(); err == nil {
			baseDir = filepath.Dir(exe)
		}
		v.SetConfigName("engine")
		v.SetConfigType("yml")
		v.AddConfigPath(baseDir)
		v.AddConfigPath(".")
	}

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); ok || os.IsNotExist(err) {
			return cfg, nil
		}
		return nil, fmt.Errorf("read config: %w", err)
	}

	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	return cfg, nil
}

// NetworkDataDir joins the configured data directory with the network
// subdirectory, per the layout spec §6 names (<datadir>/<network>/).
func (c *Config) NetworkDataDir() string {
	return filepath.Join(c.Engine.DataDir, c.Engine.Network)
}
