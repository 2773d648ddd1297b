package config

import (
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

type Config struct {
	Server struct {
		Addr                string `yaml:"addr"`
		HTTPAddr            string `yaml:"http_addr"`
		AdminName           string `yaml:"admin_name"`
		AdminUpdateInterval string `yaml:"admin_update_interval"`
		MailboxSize         int    `yaml:"mailbox_size"`
	} `yaml:"server"`
	Quiz struct {
		Dir       string `yaml:"dir"`
		TTL       string `yaml:"ttl"`
		TimeLimit string `yaml:"time_limit"`
		Grace     string `yaml:"grace"`
		Pause     string `yaml:"pause"`
	} `yaml:"quiz"`
	Redis struct {
		Addr     string `yaml:"addr"`
		Password string `yaml:"password"`
		DB       int    `yaml:"db"`
		TTL      string `yaml:"ttl"`
	} `yaml:"redis"`
	Postgres struct {
		URL string `yaml:"url"`
	} `yaml:"postgres"`
}

// Default is the configuration used when no file is given. Redis and
// Postgres stay disabled.
func Default() Config {
	cfg := Config{}
	cfg.Server.Addr = ":8888"
	cfg.Server.HTTPAddr = ":8080"
	cfg.Server.AdminName = "ADMIN"
	cfg.Server.AdminUpdateInterval = "2s"
	cfg.Server.MailboxSize = 64
	cfg.Quiz.Dir = "."
	cfg.Quiz.TTL = "1m"
	cfg.Quiz.TimeLimit = "30s"
	cfg.Quiz.Grace = "5s"
	cfg.Quiz.Pause = "3s"
	cfg.Redis.TTL = "10m"
	return cfg
}

// Load reads YAML config from path. Keys absent from the file keep their
// Default values.
func Load(path string) (Config, error) {
	cfg := Default()
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
