package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/core-coin/go-core/v2/common"
	"github.com/joho/godotenv"

	"github.com/core-coin/bursa/pkg/validation"
)

const (
	// ConnectorNode asks the RPC node for the accounts it manages.
	ConnectorNode = "node"
	// ConnectorWatch follows a fixed, read-only address.
	ConnectorWatch = "watch"

	// DefaultPollingInterval is how often the network client polls the chain.
	DefaultPollingInterval = 12 * time.Second
)

type Config struct {
	Development bool
	LogFile     string

	// Wallet configuration
	Connector    string
	WatchAddress string

	// Blockchain configuration
	BlockchainServiceURL string
	NetworkID            uint64
	SupportedNetworks    []uint64
	PollingInterval      time.Duration
	CurrencyGlyph        string

	// API configuration
	APIPort int

	// Postgres configuration, history is disabled without a host
	PostgresUser     string
	PostgresPassword string
	PostgresHost     string
	PostgresPort     int
	PostgresDB       string

	// Notification configuration
	TelegramBotToken string
	TelegramChatID   string
}

// GetNetworkName returns the network name for a network id.
// NetworkID 1 = xcb (mainnet), NetworkID 3 = xab (devin testnet)
func GetNetworkName(id uint64) string {
	switch id {
	case 1:
		return "xcb"
	case 3:
		return "xab"
	}
	return fmt.Sprintf("network-%d", id)
}

// HistoryEnabled reports whether a database is configured.
func (c *Config) HistoryEnabled() bool {
	return c.PostgresHost != ""
}

// NotificationsEnabled reports whether telegram notifications are configured.
func (c *Config) NotificationsEnabled() bool {
	return c.TelegramBotToken != "" && c.TelegramChatID != ""
}

// LoadConfig loads the configuration from environment variables
func LoadConfig() (*Config, error) {
	// Load .env file if it exists
	_ = godotenv.Load()

	cfg := &Config{
		Development:          getEnvAsBool("DEVELOPMENT", false),
		LogFile:              getEnv("LOG_FILE", ""),
		Connector:            getEnv("CONNECTOR", ConnectorNode),
		WatchAddress:         getEnv("WATCH_ADDRESS", ""),
		BlockchainServiceURL: getEnv("BLOCKCHAIN_SERVICE_URL", "http://localhost:8545"),
		NetworkID:            getEnvAsUint("NETWORK_ID", 1), // Default to Mainnet ID
		SupportedNetworks:    getEnvAsUintList("SUPPORTED_NETWORKS", []uint64{1, 3}),
		PollingInterval:      getEnvAsDuration("POLLING_INTERVAL", DefaultPollingInterval),
		CurrencyGlyph:        getEnv("CURRENCY_GLYPH", "Ξ"),
		APIPort:              getEnvAsInt("API_PORT", 6533),
		PostgresUser:         getEnv("POSTGRES_USER", "postgres"),
		PostgresPassword:     getEnv("POSTGRES_PASSWORD", "password"),
		PostgresHost:         getEnv("POSTGRES_HOST", ""),
		PostgresPort:         getEnvAsInt("POSTGRES_PORT", 5432),
		PostgresDB:           getEnv("POSTGRES_DB", "bursa"),
		TelegramBotToken:     getEnv("TELEGRAM_BOT_TOKEN", ""),
		TelegramChatID:       getEnv("TELEGRAM_CHAT_ID", ""),
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Apply sets process wide defaults derived from the configuration.
// go-core validates address prefixes against the default network id.
func (c *Config) Apply() {
	common.DefaultNetworkID = common.NetworkID(c.NetworkID)
}

// Validate checks that all required configuration fields are properly set
func (c *Config) Validate() error {
	switch c.Connector {
	case ConnectorNode:
	case ConnectorWatch:
		if c.WatchAddress == "" {
			return fmt.Errorf("WATCH_ADDRESS is required for the %q connector", ConnectorWatch)
		}
		if _, err := validation.ValidateAndNormalizeAddress(c.WatchAddress); err != nil {
			return fmt.Errorf("invalid WATCH_ADDRESS format: %w", err)
		}
	default:
		return fmt.Errorf("unknown CONNECTOR %q (expected %q or %q)", c.Connector, ConnectorNode, ConnectorWatch)
	}

	if c.BlockchainServiceURL == "" {
		return fmt.Errorf("BLOCKCHAIN_SERVICE_URL is required")
	}

	if c.PollingInterval <= 0 {
		return fmt.Errorf("POLLING_INTERVAL must be positive")
	}

	if c.APIPort <= 0 || c.APIPort > 65535 {
		return fmt.Errorf("API_PORT out of range: %d", c.APIPort)
	}

	if c.HistoryEnabled() && c.PostgresDB == "" {
		return fmt.Errorf("POSTGRES_DB is required")
	}

	return nil
}

// Helper functions to read environment variables
func getEnv(key string, defaultValue string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return defaultValue
}

func getEnvAsInt(name string, defaultValue int) int {
	if valueStr, exists := os.LookupEnv(name); exists {
		if value, err := strconv.Atoi(valueStr); err == nil {
			return value
		}
	}
	return defaultValue
}

func getEnvAsUint(name string, defaultValue uint64) uint64 {
	if valueStr, exists := os.LookupEnv(name); exists {
		if value, err := strconv.ParseUint(valueStr, 10, 64); err == nil {
			return value
		}
	}
	return defaultValue
}

func getEnvAsBool(name string, defaultValue bool) bool {
	if valueStr, exists := os.LookupEnv(name); exists {
		if value, err := strconv.ParseBool(valueStr); err == nil {
			return value
		}
	}
	return defaultValue
}

func getEnvAsDuration(name string, defaultValue time.Duration) time.Duration {
	if valueStr, exists := os.LookupEnv(name); exists {
		if value, err := time.ParseDuration(valueStr); err == nil {
			return value
		}
	}
	return defaultValue
}

// getEnvAsUintList parses a comma separated list. An empty value yields an
// empty list, which means "any network".
func getEnvAsUintList(name string, defaultValue []uint64) []uint64 {
	valueStr, exists := os.LookupEnv(name)
	if !exists {
		return defaultValue
	}
	list, err := ParseNetworkList(valueStr)
	if err != nil {
		return defaultValue
	}
	return list
}

// ParseNetworkList parses a comma separated list of network ids.
func ParseNetworkList(s string) ([]uint64, error) {
	list := []uint64{}
	for _, part := range strings.Split(s, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		id, err := strconv.ParseUint(part, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid network id %q: %w", part, err)
		}
		list = append(list, id)
	}
	return list, nil
}
