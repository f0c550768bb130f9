package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config aggregates every setting the service reads from the environment.
type Config struct {
	Server ServerConfig
	Engine EngineConfig
	Chat   ChatConfig
}

// Load resolves the full configuration from environment variables.
func Load() (*Config, error) {
	server, err := loadServerConfig()
	if err != nil {
		return nil, err
	}

	engine, err := loadEngineConfig()
	if err != nil {
		return nil, err
	}

	chat, err := loadChatConfig()
	if err != nil {
		return nil, err
	}

	return &Config{Server: server, Engine: engine, Chat: chat}, nil
}

// ServerConfig describes the HTTP listener.
type ServerConfig struct {
	Addr string
}

func loadServerConfig() (ServerConfig, error) {
	port := strings.TrimSpace(os.Getenv("PORT"))
	if port == "" {
		port = "8080"
	}

	if strings.Contains(port, ":") {
		// Accept ":8080" or "127.0.0.1:8080" verbatim.
		return ServerConfig{Addr: port}, nil
	}

	if strings.Contains(port, " ") {
		return ServerConfig{}, fmt.Errorf("invalid PORT value: %q", port)
	}

	return ServerConfig{Addr: ":" + port}, nil
}

// EngineConfig describes the locally hosted inference engine.
type EngineConfig struct {
	Endpoint string
	Model    string
	Timeout  time.Duration
}

func loadEngineConfig() (EngineConfig, error) {
	timeout, err := parseOptionalIntEnv("ENGINE_TIMEOUT")
	if err != nil {
		return EngineConfig{}, err
	}
	timeoutSeconds := 120
	if timeout != nil {
		if *timeout < 1 {
			return EngineConfig{}, fmt.Errorf("ENGINE_TIMEOUT must be at least 1 second, got %d", *timeout)
		}
		timeoutSeconds = *timeout
	}

	return EngineConfig{
		Endpoint: getEnvOrDefault("ENGINE_URL", "http://localhost:11434"),
		Model:    getEnvOrDefault("ENGINE_MODEL", "llama3.2:3b"),
		Timeout:  time.Duration(timeoutSeconds) * time.Second,
	}, nil
}

// ChatConfig describes conversation behavior.
type ChatConfig struct {
	StreamResponse bool
	HistoryLimit   int
	CharactersFile string
	SessionIdleTTL time.Duration
}

func loadChatConfig() (ChatConfig, error) {
	stream, err := parseBoolEnv("CHAT_STREAM", true)
	if err != nil {
		return ChatConfig{}, err
	}

	historyLimit := 10
	if override, err := parseOptionalIntEnv("CHAT_HISTORY_LIMIT"); err != nil {
		return ChatConfig{}, err
	} else if override != nil {
		if *override < 1 {
			historyLimit = 1
		} else {
			historyLimit = *override
		}
	}

	idleMinutes := 120
	if override, err := parseOptionalIntEnv("SESSION_IDLE_MINUTES"); err != nil {
		return ChatConfig{}, err
	} else if override != nil && *override > 0 {
		idleMinutes = *override
	}

	return ChatConfig{
		StreamResponse: stream,
		HistoryLimit:   historyLimit,
		CharactersFile: strings.TrimSpace(os.Getenv("CHARACTERS_FILE")),
		SessionIdleTTL: time.Duration(idleMinutes) * time.Minute,
	}, nil
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := strings.TrimSpace(os.Getenv(key)); value != "" {
		return value
	}
	return defaultValue
}

func parseBoolEnv(key string, defaultValue bool) (bool, error) {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return defaultValue, nil
	}

	val, err := strconv.ParseBool(raw)
	if err != nil {
		return false, fmt.Errorf("invalid %s value %q: %w", key, raw, err)
	}
	return val, nil
}

func parseOptionalIntEnv(key string) (*int, error) {
	raw, ok := os.LookupEnv(key)
	if !ok {
		return nil, nil
	}

	value := strings.TrimSpace(raw)
	if value == "" {
		return nil, nil
	}

	val, err := strconv.Atoi(value)
	if err != nil {
		return nil, fmt.Errorf("invalid %s value %q: %w", key, value, err)
	}
	return &val, nil
}
