package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"gatehook/crypto"
)

const testNetwork = "gatem74V238djXdzWnJf94Wo1DcnuGkfijbf3AuBhfs"

func TestLoadCreatesDefault(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.toml")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.ProgramID != DefaultProgramID || cfg.NetworkName != DefaultNetworkName || cfg.DataDir != DefaultDataDir {
		t.Fatalf("unexpected defaults: %+v", cfg)
	}
	if cfg.KeypairPath != filepath.Join(dir, "authority.json") {
		t.Fatalf("unexpected keypair path %s", cfg.KeypairPath)
	}
	if _, err := crypto.LoadKeypair(cfg.KeypairPath); err != nil {
		t.Fatalf("generated keypair unreadable: %v", err)
	}
	if _, err := os.Stat(path); err != nil {
		t.Fatalf("expected config file to be written: %v", err)
	}

	reloaded, err := Load(path)
	if err != nil {
		t.Fatalf("reload: %v", err)
	}
	if reloaded.KeypairPath != cfg.KeypairPath {
		t.Fatalf("keypair path changed on reload: %s", reloaded.KeypairPath)
	}
}

func TestLoadParsesTOML(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "hook.toml")
	contents := `DataDir = "./ledger"
NetworkName = "devnet"
GatekeeperNetwork = "` + testNetwork + `"

[Log]
Level = "debug"
File = "hook.log"

[Telemetry]
Endpoint = "collector:4318"
Traces = true
`
	if err := os.WriteFile(path, []byte(contents), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.DataDir != "./ledger" || cfg.NetworkName != "devnet" || cfg.GatekeeperNetwork != testNetwork {
		t.Fatalf("unexpected config: %+v", cfg)
	}
	if cfg.Log.Level != "debug" || cfg.Log.MaxSizeMB != 100 || cfg.Log.MaxBackups != 3 {
		t.Fatalf("unexpected log config: %+v", cfg.Log)
	}
	if !cfg.Telemetry.Traces || cfg.Telemetry.Metrics || cfg.Telemetry.Endpoint != "collector:4318" {
		t.Fatalf("unexpected telemetry config: %+v", cfg.Telemetry)
	}
	if cfg.Program().String() != DefaultProgramID {
		t.Fatalf("unexpected program %s", cfg.Program())
	}
}

func TestLoadParsesYAML(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "hook.yaml")
	contents := `dataDir: /var/lib/gatehook
networkName: mainnet
log:
  level: warn
telemetry:
  metrics: true
`
	if err := os.WriteFile(path, []byte(contents), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.DataDir != "/var/lib/gatehook" || cfg.NetworkName != "mainnet" || cfg.Log.Level != "warn" || !cfg.Telemetry.Metrics {
		t.Fatalf("unexpected config: %+v", cfg)
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read config: %v", err)
	}
	if !strings.Contains(string(raw), "keypairPath:") {
		t.Fatalf("expected keypair path to be persisted as yaml, got:\n%s", raw)
	}
}

func TestLoadRejectsUnknownTOMLField(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	if err := os.WriteFile(path, []byte("ValidatorKey = \"abc\"\n"), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	if _, err := Load(path); err == nil || !strings.Contains(err.Error(), "ValidatorKey") {
		t.Fatalf("expected unknown field error, got %v", err)
	}
}

func TestValidate(t *testing.T) {
	cfg := &Config{}
	cfg.applyDefaults()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("defaults should validate: %v", err)
	}

	bad := *cfg
	bad.ProgramID = "not-base58!"
	if err := bad.Validate(); err == nil {
		t.Fatalf("expected invalid program id to fail")
	}

	bad = *cfg
	bad.GatekeeperNetwork = "0OIl"
	if err := bad.Validate(); err == nil {
		t.Fatalf("expected invalid gatekeeper network to fail")
	}

	bad = *cfg
	bad.Log.Level = "chatty"
	if err := bad.Validate(); err == nil {
		t.Fatalf("expected unknown log level to fail")
	}

	bad = *cfg
	bad.Telemetry.SampleRatio = 1.5
	if err := bad.Validate(); err == nil {
		t.Fatalf("expected sample ratio above one to fail")
	}
}
