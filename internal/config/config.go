package config

import (
	"os"
	"time"

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
	} `yaml:"redis"`
	Postgres struct {
		URL string `yaml:"url"`
	} `yaml:"postgres"`
	Questions struct {
		APIURL string `yaml:"api_url"`
	} `yaml:"questions"`
	Game GameConfig `yaml:"game"`
}

// GameConfig holds the tunable timings and limits of a quiz session.
// Zero values fall back to the defaults the game was designed around.
type GameConfig struct {
	MaxMembers      int    `yaml:"max_members"`
	PointsPerAnswer int    `yaml:"points_per_answer"`
	AnswerSeconds   int    `yaml:"answer_seconds"`
	GraceSeconds    int    `yaml:"grace_seconds"`
	ReadyDelay      string `yaml:"ready_delay"`
	ResultsDelay    string `yaml:"results_delay"`
	TickInterval    string `yaml:"tick_interval"`
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

// Duration parses a duration string or returns the fallback if empty or
// malformed.
func Duration(raw string, fallback time.Duration) time.Duration {
	if raw == "" {
		return fallback
	}
	if d, err := time.ParseDuration(raw); err == nil {
		return d
	}
	return fallback
}
