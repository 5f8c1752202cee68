package common

import (
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"
)

// --------------------------------------------------------------------------
// Storage configuration
// --------------------------------------------------------------------------

type StorageType string

const (
	StorageTypeFile   StorageType = "file"
	StorageTypeRedis  StorageType = "redis"
	StorageTypeMemory StorageType = "memory"
)

// StorageConfig selects the durable storage backend.
type StorageConfig struct {
	Type      StorageType
	DataDir   string // used by StorageTypeFile
	RedisAddr string // used by StorageTypeRedis
	RedisDB   int
}

// --------------------------------------------------------------------------
// Client configuration struct
// --------------------------------------------------------------------------

// ClientConfig holds all configuration parameters of the engine.
type ClientConfig struct {
	// remote API
	Endpoint             string
	TimeoutSecond        int
	RetryCount           int
	RetryBaseMillisecond int

	// response cache lifetimes per route class
	CatalogTTLSecond int
	CartTTLSecond    int
	DefaultTTLSecond int

	// background sync and cart behaviour
	SyncIntervalSecond  int
	DebounceMillisecond int

	Storage StorageConfig

	// Logging configuration
	LogLevel string
}

// DefaultClientConfig returns the configuration used when nothing is overridden.
func DefaultClientConfig() ClientConfig {
	return ClientConfig{
		Endpoint:             "http://localhost:3000",
		TimeoutSecond:        10,
		RetryCount:           2,
		RetryBaseMillisecond: 200,
		CatalogTTLSecond:     300,
		CartTTLSecond:        30,
		DefaultTTLSecond:     60,
		SyncIntervalSecond:   300,
		DebounceMillisecond:  500,
		Storage: StorageConfig{
			Type:    StorageTypeFile,
			DataDir: "data",
		},
		LogLevel: "info",
	}
}

func (c *ClientConfig) Timeout() time.Duration {
	return time.Duration(c.TimeoutSecond) * time.Second
}

func (c *ClientConfig) RetryBase() time.Duration {
	return time.Duration(c.RetryBaseMillisecond) * time.Millisecond
}

func (c *ClientConfig) SyncInterval() time.Duration {
	return time.Duration(c.SyncIntervalSecond) * time.Second
}

func (c *ClientConfig) DebounceWindow() time.Duration {
	return time.Duration(c.DebounceMillisecond) * time.Millisecond
}

// Validate checks the configuration for values the engine cannot work with.
func (c *ClientConfig) Validate() error {
	u, err := url.Parse(c.Endpoint)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return fmt.Errorf("invalid endpoint %q", c.Endpoint)
	}
	if c.TimeoutSecond <= 0 {
		return fmt.Errorf("timeout must be positive, got %d", c.TimeoutSecond)
	}
	if c.RetryCount < 0 {
		return fmt.Errorf("retry count must not be negative, got %d", c.RetryCount)
	}
	if c.CatalogTTLSecond < 0 || c.CartTTLSecond < 0 || c.DefaultTTLSecond < 0 {
		return fmt.Errorf("cache ttls must not be negative")
	}
	if c.SyncIntervalSecond <= 0 {
		return fmt.Errorf("sync interval must be positive, got %d", c.SyncIntervalSecond)
	}
	if c.DebounceMillisecond < 0 {
		return fmt.Errorf("debounce window must not be negative, got %d", c.DebounceMillisecond)
	}
	switch c.Storage.Type {
	case StorageTypeFile:
		if c.Storage.DataDir == "" {
			return fmt.Errorf("file storage needs a data directory")
		}
	case StorageTypeRedis:
		if c.Storage.RedisAddr == "" {
			return fmt.Errorf("redis storage needs an address")
		}
	case StorageTypeMemory:
	default:
		return fmt.Errorf("invalid storage type %q. must be one of file, redis, memory", c.Storage.Type)
	}
	if _, err := ParseLogLevel(c.LogLevel); err != nil {
		return err
	}
	return nil
}

// String returns a formatted string representation of the client configuration
func (c *ClientConfig) String() string {
	var sb strings.Builder

	// Create helper functions for consistent formatting
	addSection := func(title string) {
		sb.WriteString("\n")
		sb.WriteString(fmt.Sprintf("%s\n", strings.ToUpper(title)))
	}

	addField := func(name, value string) {
		sb.WriteString(fmt.Sprintf("  %-22s: %s\n", name, value))
	}

	// Remote API
	addSection("Remote API")
	addField("Endpoint", c.Endpoint)
	addField("Timeout", fmt.Sprintf("%d sec", c.TimeoutSecond))
	addField("Retry Count", strconv.Itoa(c.RetryCount))
	addField("Retry Base", fmt.Sprintf("%d ms", c.RetryBaseMillisecond))

	// Cache
	addSection("Response Cache")
	addField("Catalog TTL", fmt.Sprintf("%d sec", c.CatalogTTLSecond))
	addField("Cart TTL", fmt.Sprintf("%d sec", c.CartTTLSecond))
	addField("Default TTL", fmt.Sprintf("%d sec", c.DefaultTTLSecond))

	// Sync
	addSection("Sync")
	addField("Interval", fmt.Sprintf("%d sec", c.SyncIntervalSecond))
	addField("Cart Debounce", fmt.Sprintf("%d ms", c.DebounceMillisecond))

	// Storage
	addSection("Storage")
	addField("Backend", string(c.Storage.Type))
	switch c.Storage.Type {
	case StorageTypeFile:
		addField("Data Directory", c.Storage.DataDir)
	case StorageTypeRedis:
		addField("Redis Address", c.Storage.RedisAddr)
		addField("Redis DB", strconv.Itoa(c.Storage.RedisDB))
	}

	// Logging configuration
	addSection("Logging")
	addField("Log Level", c.LogLevel)

	return sb.String()
}
