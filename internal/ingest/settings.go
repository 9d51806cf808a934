package ingest

import (
	"embed"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

//go:embed config/watch.yaml
var watchYAML embed.FS

// Settings is the watcher configuration embedded at build time.
type Settings struct {
	API struct {
		BaseURL        string `yaml:"base_url"`
		Ticket         string `yaml:"ticket"`
		OrgCode        string `yaml:"organization_code"`
		Status         string `yaml:"status"`
		TimeoutSeconds int    `yaml:"timeout_seconds"`
		MaxAttempts    int    `yaml:"max_attempts"`
		BackoffBaseMS  int    `yaml:"backoff_base_ms"`
		CallDelayMS    int    `yaml:"call_delay_ms"`
	} `yaml:"api"`
	Refresh struct {
		IntervalHours int `yaml:"interval_hours"`
	} `yaml:"refresh"`
}

// LoadSettings reads the embedded watch.yaml, expanding ${VAR} references
// from the environment (the API ticket in particular).
func LoadSettings() (*Settings, error) {
	data, err := watchYAML.ReadFile("config/watch.yaml")
	if err != nil {
		return nil, fmt.Errorf("reading embedded settings: %w", err)
	}

	expanded := os.ExpandEnv(string(data))

	var s Settings
	if err := yaml.Unmarshal([]byte(expanded), &s); err != nil {
		return nil, fmt.Errorf("parsing settings: %w", err)
	}
	return &s, nil
}

func (s *Settings) Timeout() time.Duration {
	return time.Duration(s.API.TimeoutSeconds) * time.Second
}

func (s *Settings) BackoffBase() time.Duration {
	return time.Duration(s.API.BackoffBaseMS) * time.Millisecond
}

func (s *Settings) CallDelay() time.Duration {
	return time.Duration(s.API.CallDelayMS) * time.Millisecond
}

func (s *Settings) RefreshInterval() time.Duration {
	return time.Duration(s.Refresh.IntervalHours) * time.Hour
}
