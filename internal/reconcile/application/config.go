package application

import (
	"errors"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// Thresholds defines mismatch thresholds.
type Thresholds struct {
	AmountAbs float64 `yaml:"amount_abs"`
	AmountPct float64 `yaml:"amount_pct"`
}

// Config defines reconcile configuration.
type Config struct {
	Defaults    Thresholds            `yaml:"defaults"`
	Parks       map[string]Thresholds `yaml:"parks"`
	StorageRoot string                `yaml:"storage_root"`
	WebhookURL  string                `yaml:"webhook_url"`
}

// LoadConfig loads config from yaml or env.
func LoadConfig() (Config, error) {
	cfg := Config{
		Defaults: Thresholds{
			AmountAbs: 0.01,
			AmountPct: 0.005,
		},
		StorageRoot: getenvDefault("RECONCILE_STORAGE_ROOT", filepath.FromSlash("var/reports/reconcile")),
		WebhookURL:  os.Getenv("RECONCILE_WEBHOOK_URL"),
	}

	if path := os.Getenv("RECONCILE_CONFIG"); path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return cfg, err
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return cfg, err
		}
	}

	if cfg.WebhookURL == "" {
		cfg.WebhookURL = os.Getenv("RECONCILE_WEBHOOK_URL")
	}
	if cfg.StorageRoot == "" {
		return cfg, errors.New("reconcile: storage root required")
	}
	return cfg, nil
}

// ThresholdsForPark returns thresholds for a park.
func (c Config) ThresholdsForPark(parkID string) Thresholds {
	if c.Parks != nil {
		if override, ok := c.Parks[parkID]; ok {
			return mergeThresholds(c.Defaults, override)
		}
	}
	return c.Defaults
}

func mergeThresholds(base, override Thresholds) Thresholds {
	if override.AmountAbs != 0 {
		base.AmountAbs = override.AmountAbs
	}
	if override.AmountPct != 0 {
		base.AmountPct = override.AmountPct
	}
	return base
}

func getenvDefault(key, fallback string) string {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return fallback
	}
	return value
}
