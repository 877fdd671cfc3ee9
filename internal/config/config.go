package config

import (
	"fmt"
	"os"
	"strconv"

	"gopkg.in/yaml.v3"
)

// Config holds all adaptivealpha configuration.
type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Database  DatabaseConfig  `yaml:"database"`
	Engine    EngineConfig    `yaml:"engine"`
	Retention RetentionConfig `yaml:"retention"`
}

type ServerConfig struct {
	Bind string `yaml:"bind"`
	Port int    `yaml:"port"`
}

type DatabaseConfig struct {
	Path string `yaml:"path"`
}

type EngineConfig struct {
	SimilarityThreshold float64 `yaml:"similarity_threshold"` // default pattern-match τ
	CascadeDepth        int     `yaml:"cascade_depth"`        // default prediction depth
	MatchLimit          int     `yaml:"match_limit"`
}

type RetentionConfig struct {
	Days       int `yaml:"days"`        // 0 disables the sweep
	SweepHours int `yaml:"sweep_hours"` // interval between sweeps
}

// Default returns a Config with sensible defaults.
func Default() Config {
	return Config{
		Server: ServerConfig{
			Bind: "127.0.0.1",
			Port: 38311,
		},
		Database: DatabaseConfig{
			Path: "", // resolved at runtime via store.DefaultDBPath()
		},
		Engine: EngineConfig{
			SimilarityThreshold: 0.7,
			CascadeDepth:        5,
			MatchLimit:          10,
		},
		Retention: RetentionConfig{
			Days:       0,
			SweepHours: 24,
		},
	}
}

// Load reads configuration from a YAML file layered over the defaults,
// then applies environment overrides. A missing file is not an error;
// defaults plus environment apply.
func Load(path string) (Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			if !os.IsNotExist(err) {
				return cfg, fmt.Errorf("read config %s: %w", path, err)
			}
		} else if err := yaml.Unmarshal(data, &cfg); err != nil {
			return cfg, fmt.Errorf("parse config %s: %w", path, err)
		}
	}

	cfg.applyEnv()

	if err := cfg.validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

func (c *Config) applyEnv() {
	if v := os.Getenv("ADAPTIVEALPHA_BIND"); v != "" {
		c.Server.Bind = v
	}
	if v := os.Getenv("ADAPTIVEALPHA_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			c.Server.Port = port
		}
	}
	if v := os.Getenv("ADAPTIVEALPHA_DB"); v != "" {
		c.Database.Path = v
	}
	if v := os.Getenv("ADAPTIVEALPHA_RETENTION_DAYS"); v != "" {
		if days, err := strconv.Atoi(v); err == nil {
			c.Retention.Days = days
		}
	}
}

func (c *Config) validate() error {
	if c.Engine.SimilarityThreshold < 0 || c.Engine.SimilarityThreshold > 1 {
		return fmt.Errorf("similarity_threshold %f out of range [0,1]", c.Engine.SimilarityThreshold)
	}
	if c.Engine.CascadeDepth < 1 {
		return fmt.Errorf("cascade_depth %d must be at least 1", c.Engine.CascadeDepth)
	}
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("port %d out of range", c.Server.Port)
	}
	return nil
}

// ListenAddr returns the bind:port address string.
func (c *Config) ListenAddr() string {
	return fmt.Sprintf("%s:%d", c.Server.Bind, c.Server.Port)
}
