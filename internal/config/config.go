package config

import (
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"quiz-lobby-service/internal/presence"
)

type Config struct {
	Server struct {
		Port string `yaml:"port"`
	} `yaml:"server"`
	Redis struct {
		Addr     string `yaml:"addr"`
		Password string `yaml:"password"`
		DB       int    `yaml:"db"`
		TTL      string `yaml:"ttl"`
	} `yaml:"redis"`
	Postgres struct {
		URL string `yaml:"url"`
	} `yaml:"postgres"`
	Presence struct {
		BaseURL string `yaml:"baseUrl"`
		Token   string `yaml:"token"`
	} `yaml:"presence"`
	Results struct {
		BaseURL string `yaml:"baseUrl"`
		TTL     string `yaml:"ttl"`
	} `yaml:"results"`
	Poll struct {
		JoinedInterval   string `yaml:"joinedInterval"`
		UnjoinedInterval string `yaml:"unjoinedInterval"`
		ManualRefresh    *bool  `yaml:"manualRefresh"`
	} `yaml:"poll"`
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

// TTLDuration parses a duration string or returns the fallback if empty or
// malformed.
func TTLDuration(raw string, fallback time.Duration) time.Duration {
	if raw == "" {
		return fallback
	}
	if d, err := time.ParseDuration(raw); err == nil {
		return d
	}
	return fallback
}

// PollConfig resolves the adaptive cadence, falling back to the defaults for
// anything unset. Manual refresh stays enabled unless explicitly disabled.
func (c Config) PollConfig() presence.PollConfig {
	def := presence.DefaultPollConfig()
	out := presence.PollConfig{
		JoinedInterval:   TTLDuration(c.Poll.JoinedInterval, def.JoinedInterval),
		UnjoinedInterval: TTLDuration(c.Poll.UnjoinedInterval, def.UnjoinedInterval),
		ManualRefresh:    true,
	}
	if c.Poll.ManualRefresh != nil {
		out.ManualRefresh = *c.Poll.ManualRefresh
	}
	return out
}
