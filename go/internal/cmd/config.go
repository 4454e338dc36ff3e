package main

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/mcdev12/planning-poker/go/internal/poker/room"
)

const (
	storeMemory   = "memory"
	storePostgres = "postgres"
)

type Config struct {
	Server struct {
		Port           string   `yaml:"port"`
		LogLevel       string   `yaml:"log_level"`
		AllowedOrigins []string `yaml:"allowed_origins"`
	} `yaml:"server"`
	Rooms struct {
		Store       string `yaml:"store"`
		MaxMessages int    `yaml:"max_messages"`
	} `yaml:"rooms"`
	NATS struct {
		URL           string `yaml:"url"`
		SubjectPrefix string `yaml:"subject_prefix"`
	} `yaml:"nats"`
	WebSocket struct {
		PingInterval   time.Duration `yaml:"ping_interval"`
		ReadTimeout    time.Duration `yaml:"read_timeout"`
		MaxMessageSize int64         `yaml:"max_message_size"`
	} `yaml:"websocket"`
}

func defaultConfig() *Config {
	var c Config
	c.Server.Port = "8080"
	c.Server.LogLevel = "info"
	c.Server.AllowedOrigins = []string{"*"}
	c.Rooms.Store = storeMemory
	c.Rooms.MaxMessages = room.DefaultMaxMessages
	c.NATS.SubjectPrefix = "poker.rooms"
	return &c
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

// loadConfig reads the yaml file at path over the defaults, then applies
// environment overrides. An empty path skips the file.
func loadConfig(path string) (*Config, error) {
	config := defaultConfig()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, config); err != nil {
			return nil, fmt.Errorf("failed to parse config: %w", err)
		}
	}

	config.Server.Port = getEnv("PORT", config.Server.Port)
	config.Server.LogLevel = getEnv("LOG_LEVEL", config.Server.LogLevel)
	config.Rooms.Store = strings.ToLower(getEnv("STORE_DRIVER", config.Rooms.Store))
	config.Rooms.MaxMessages = getEnvAsInt("MAX_MESSAGES", config.Rooms.MaxMessages)
	config.NATS.URL = getEnv("NATS_URL", config.NATS.URL)

	switch config.Rooms.Store {
	case storeMemory, storePostgres:
	default:
		return nil, fmt.Errorf("unknown room store %q", config.Rooms.Store)
	}
	return config, nil
}
