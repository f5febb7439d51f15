package config

import (
	"os"
	"time"
	_ "time/tzdata"

	"gopkg.in/yaml.v3"
)

type Config struct {
	Server struct {
		Port string `yaml:"port"`
	} `yaml:"server"`
	Redis struct {
		Addr     string `yaml:"addr"`
		Password string `yaml:"password"`
		DB       int    `yaml:"db"`
		// TTL bounds how long committed aggregates live in Redis; empty keeps them until replaced.
		TTL string `yaml:"ttl"`
	} `yaml:"redis"`
	Postgres struct {
		URL string `yaml:"url"`
	} `yaml:"postgres"`
	Analytics struct {
		MaxAge               string `yaml:"max_age"`
		RefreshInterval      string `yaml:"refresh_interval"`
		Timezone             string `yaml:"timezone"`
		DefinitionTTL        string `yaml:"definition_ttl"`
		DashboardConcurrency int    `yaml:"dashboard_concurrency"`
		// LeaseTTL bounds how long a crashed instance can hold a target's recompute lease in Redis.
		LeaseTTL string `yaml:"lease_ttl"`
	} `yaml:"analytics"`
	Log struct {
		Level string `yaml:"level"`
	} `yaml:"log"`
}

// Load reads YAML config from path.
func Load(path string) (Config, error) {
	cfg := Config{}
	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, err
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// TTLDuration parses a duration string or returns the fallback if empty.
func TTLDuration(raw string, fallback time.Duration) time.Duration {
	if raw == "" {
		return fallback
	}
	if d, err := time.ParseDuration(raw); err == nil {
		return d
	}
	return fallback
}

// Location resolves the configured timezone used for calendar-day windows.
// An empty name means UTC.
func (c Config) Location() (*time.Location, error) {
	if c.Analytics.Timezone == "" {
		return time.UTC, nil
	}
	return time.LoadLocation(c.Analytics.Timezone)
}
