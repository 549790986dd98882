package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"
	"gopkg.in/yaml.v3"

	"gatehook/crypto"
)

const (
	DefaultNetworkName = "gatehook-local"
	DefaultDataDir     = "./gatehook-data"
	DefaultLogLevel    = "info"
)

// DefaultProgramID is the deployed transfer hook program.
const DefaultProgramID = "cto22FHACEgis1zXbY4QJo5Rj6soAQguh1686nZJfNY"

type LogConfig struct {
	Level       string `toml:"Level" yaml:"level"`
	Environment string `toml:"Environment" yaml:"environment"`
	// File enables rotated file output in addition to stdout.
	File       string `toml:"File" yaml:"file"`
	MaxSizeMB  int    `toml:"MaxSizeMB" yaml:"maxSizeMB"`
	MaxBackups int    `toml:"MaxBackups" yaml:"maxBackups"`
	MaxAgeDays int    `toml:"MaxAgeDays" yaml:"maxAgeDays"`
}

type TelemetryConfig struct {
	Endpoint string `toml:"Endpoint" yaml:"endpoint"`
	Insecure bool   `toml:"Insecure" yaml:"insecure"`
	Headers  string `toml:"Headers" yaml:"headers"`
	Metrics  bool   `toml:"Metrics" yaml:"metrics"`
	Traces   bool   `toml:"Traces" yaml:"traces"`

	// SampleRatio keeps this fraction of traces; zero keeps all.
	SampleRatio float64 `toml:"SampleRatio" yaml:"sampleRatio"`
}

type Config struct {
	ProgramID   string `toml:"ProgramID" yaml:"programId"`
	KeypairPath string `toml:"KeypairPath" yaml:"keypairPath"`
	DataDir     string `toml:"DataDir" yaml:"dataDir"`
	NetworkName string `toml:"NetworkName" yaml:"networkName"`
	// GatekeeperNetwork is the default network used when a command does not
	// name one.
	GatekeeperNetwork string          `toml:"GatekeeperNetwork" yaml:"gatekeeperNetwork"`
	Log               LogConfig       `toml:"Log" yaml:"log"`
	Telemetry         TelemetryConfig `toml:"Telemetry" yaml:"telemetry"`
}

func isYAML(path string) bool {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return true
	default:
		return false
	}
}

// Load loads the configuration from the given path. A missing file is
// created with defaults and a freshly generated keypair.
func Load(path string) (*Config, error) {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return createDefault(path)
	} else if err != nil {
		return nil, err
	}

	cfg := &Config{}
	if isYAML(path) {
		raw, err := os.ReadFile(path)
		if err != nil {
			return nil, err
		}
		if err := yaml.Unmarshal(raw, cfg); err != nil {
			return nil, fmt.Errorf("parse %s: %w", path, err)
		}
	} else {
		meta, err := toml.DecodeFile(path, cfg)
		if err != nil {
			return nil, fmt.Errorf("parse %s: %w", path, err)
		}
		if undecoded := meta.Undecoded(); len(undecoded) > 0 {
			return nil, fmt.Errorf("config file %s has unknown field %s", path, undecoded[0])
		}
	}

	cfg.applyDefaults()
	if err := ensureKeypair(path, cfg); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) applyDefaults() {
	if strings.TrimSpace(c.ProgramID) == "" {
		c.ProgramID = DefaultProgramID
	}
	if strings.TrimSpace(c.DataDir) == "" {
		c.DataDir = DefaultDataDir
	}
	if strings.TrimSpace(c.NetworkName) == "" {
		c.NetworkName = DefaultNetworkName
	}
	if strings.TrimSpace(c.Log.Level) == "" {
		c.Log.Level = DefaultLogLevel
	}
	if c.Log.File != "" {
		if c.Log.MaxSizeMB <= 0 {
			c.Log.MaxSizeMB = 100
		}
		if c.Log.MaxBackups <= 0 {
			c.Log.MaxBackups = 3
		}
		if c.Log.MaxAgeDays <= 0 {
			c.Log.MaxAgeDays = 28
		}
	}
}

func ensureKeypair(configPath string, cfg *Config) error {
	keypairPath := cfg.KeypairPath
	if keypairPath == "" {
		keypairPath = defaultKeypairPath(configPath)
	}

	if _, err := os.Stat(keypairPath); os.IsNotExist(err) {
		key, genErr := crypto.GenerateKeypair()
		if genErr != nil {
			return genErr
		}
		if err := crypto.SaveKeypair(keypairPath, key); err != nil {
			return err
		}
	} else if err != nil {
		return err
	}

	if cfg.KeypairPath != keypairPath {
		cfg.KeypairPath = keypairPath
		return persist(configPath, cfg)
	}
	return nil
}

// createDefault creates and saves a default configuration file.
func createDefault(path string) (*Config, error) {
	cfg := &Config{}
	cfg.applyDefaults()
	if err := ensureKeypair(path, cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

func persist(path string, cfg *Config) error {
	dir := filepath.Dir(path)
	if dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return err
		}
	}
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_TRUNC|os.O_CREATE, 0o644)
	if err != nil {
		return err
	}
	defer f.Close()

	if isYAML(path) {
		enc := yaml.NewEncoder(f)
		defer enc.Close()
		return enc.Encode(cfg)
	}
	return toml.NewEncoder(f).Encode(cfg)
}

func defaultKeypairPath(configPath string) string {
	return filepath.Join(filepath.Dir(configPath), "authority.json")
}
