package observability

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/cuihairu/croupier-go/config"
)

func TestSetupLoggerLevels(t *testing.T) {
	for _, level := range []string{"debug", "info", "warn", "warning", "error", "bogus"} {
		logger, err := SetupLogger(config.LogConfig{Level: level, Format: "json"})
		if err != nil {
			t.Fatalf("level %q: %v", level, err)
		}
		logger.Sync()
	}
}

func TestSetupLoggerFileOutput(t *testing.T) {
	path := filepath.Join(t.TempDir(), "croupier.log")
	logger, err := SetupLogger(config.LogConfig{
		Level:   "info",
		Format:  "json",
		Outputs: []string{path},
	})
	if err != nil {
		t.Fatal(err)
	}
	logger.Info("function registered")
	logger.Sync()

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(string(data), "function registered") {
		t.Fatalf("log file missing entry, got: %s", data)
	}
}

func TestSetupLoggerRotatedFileOutput(t *testing.T) {
	path := filepath.Join(t.TempDir(), "rotated.log")
	logger, err := SetupLogger(config.LogConfig{
		Level:   "debug",
		Format:  "console",
		Outputs: []string{path},
		Rotation: config.RotationConfig{
			Enable:    true,
			MaxSizeMB: 1,
		},
	})
	if err != nil {
		t.Fatal(err)
	}
	logger.Debug("rotation enabled")
	logger.Sync()

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(string(data), "rotation enabled") {
		t.Fatalf("rotated log file missing entry, got: %s", data)
	}
}

func TestSetupLoggerDefaultsToStdout(t *testing.T) {
	logger, err := SetupLogger(config.LogConfig{})
	if err != nil {
		t.Fatal(err)
	}
	logger.Info("defaults ok")
	logger.Sync()
}
