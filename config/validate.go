package config

import (
	"fmt"
	"log/slog"
	"strings"

	"github.com/gagliardetto/solana-go"

	"gatehook/crypto"
)

// Validate checks that addresses decode and the log and telemetry settings are in range.
func (c *Config) Validate() error {
	if _, err := crypto.DecodePublicKey(c.ProgramID); err != nil {
		return fmt.Errorf("ProgramID: %w", err)
	}
	if c.GatekeeperNetwork != "" {
		if _, err := crypto.DecodePublicKey(c.GatekeeperNetwork); err != nil {
			return fmt.Errorf("GatekeeperNetwork: %w", err)
		}
	}
	if _, err := ParseLevel(c.Log.Level); err != nil {
		return err
	}
	if c.Telemetry.SampleRatio < 0 || c.Telemetry.SampleRatio > 1 {
		return fmt.Errorf("telemetry: sample ratio %v outside [0, 1]", c.Telemetry.SampleRatio)
	}
	if c.Log.MaxSizeMB < 0 || c.Log.MaxBackups < 0 || c.Log.MaxAgeDays < 0 {
		return fmt.Errorf("log: rotation limits must not be negative")
	}
	return nil
}

// Program returns the configured transfer hook program id.
func (c *Config) Program() solana.PublicKey {
	return crypto.MustDecodePublicKey(c.ProgramID)
}

// ParseLevel maps a textual level onto slog levels.
func ParseLevel(level string) (slog.Level, error) {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "debug":
		return slog.LevelDebug, nil
	case "", "info":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return slog.LevelInfo, fmt.Errorf("log: unknown level %q", level)
	}
}
