package util

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/ValentinKolb/dShop/lib/cart"
	"github.com/ValentinKolb/dShop/lib/engine"
	"github.com/ValentinKolb/dShop/rpc/common"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

const (
	// Wrap is the number of characters to Wrap the help text at
	Wrap int = 50
)

// WrapString wraps a string at Wrap characters
func WrapString(text string) string {
	var wrappedLines []string
	var currentLine strings.Builder
	lineWidth := 0

	for _, word := range strings.Fields(text) {
		wordWidth := len(word)

		if lineWidth > 0 && lineWidth+1+wordWidth > Wrap {
			wrappedLines = append(wrappedLines, currentLine.String())
			currentLine.Reset()
			lineWidth = 0
		}

		if lineWidth > 0 {
			currentLine.WriteString(" ")
			lineWidth++
		}

		currentLine.WriteString(word)
		lineWidth += wordWidth
	}

	if currentLine.Len() > 0 {
		wrappedLines = append(wrappedLines, currentLine.String())
	}

	return strings.Join(wrappedLines, "\n")
}

// SetupClientFlags adds the engine flags to a command
func SetupClientFlags(cmd *cobra.Command) {
	def := common.DefaultClientConfig()
	flags := cmd.PersistentFlags()

	flags.String("endpoint", def.Endpoint, WrapString("Base URL of the storefront API"))
	flags.Int("timeout", def.TimeoutSecond, WrapString("The timeout in seconds of a single API call"))
	flags.Int("retries", def.RetryCount, WrapString("How many times a failed read is retried (network errors, 5xx, 408 and 429 only)"))
	flags.Int("retry-base", def.RetryBaseMillisecond, WrapString("Initial backoff between retries in milliseconds, doubled on every attempt"))

	flags.Int("catalog-ttl", def.CatalogTTLSecond, WrapString("Lifetime in seconds of cached catalog responses"))
	flags.Int("cart-ttl", def.CartTTLSecond, WrapString("Lifetime in seconds of cached cart responses"))
	flags.Int("default-ttl", def.DefaultTTLSecond, WrapString("Lifetime in seconds of all other cached responses"))

	flags.Int("sync-interval", def.SyncIntervalSecond, WrapString("Seconds after which the local snapshot is considered stale and resynchronized in the background"))
	flags.Int("debounce", def.DebounceMillisecond, WrapString("Quiet period in milliseconds before a cart quantity change is sent"))

	flags.String("storage", string(def.Storage.Type), WrapString("Durable storage backend (file, redis, memory)"))
	flags.String("data-dir", def.Storage.DataDir, WrapString("Directory of the file storage backend"))
	flags.String("redis-addr", "localhost:6379", WrapString("Address of the redis storage backend"))
	flags.Int("redis-db", 0, WrapString("Database of the redis storage backend"))

	flags.String("log-level", def.LogLevel, WrapString("Log level (debug, info, warn, error)"))
}

// InitClientConfig initializes configuration from environment variables
func InitClientConfig() {
	// load env files
	_ = godotenv.Load(".env")
	_ = godotenv.Load(".env.local")

	// initialize viper
	viper.SetEnvPrefix("dshop")
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	viper.AutomaticEnv() // read in environment variables that match
}

// GetClientConfig reads client configuration from viper
func GetClientConfig() common.ClientConfig {
	return common.ClientConfig{
		Endpoint:             viper.GetString("endpoint"),
		TimeoutSecond:        viper.GetInt("timeout"),
		RetryCount:           viper.GetInt("retries"),
		RetryBaseMillisecond: viper.GetInt("retry-base"),
		CatalogTTLSecond:     viper.GetInt("catalog-ttl"),
		CartTTLSecond:        viper.GetInt("cart-ttl"),
		DefaultTTLSecond:     viper.GetInt("default-ttl"),
		SyncIntervalSecond:   viper.GetInt("sync-interval"),
		DebounceMillisecond:  viper.GetInt("debounce"),
		Storage: common.StorageConfig{
			Type:      common.StorageType(strings.ToLower(viper.GetString("storage"))),
			DataDir:   viper.GetString("data-dir"),
			RedisAddr: viper.GetString("redis-addr"),
			RedisDB:   viper.GetInt("redis-db"),
		},
		LogLevel: viper.GetString("log-level"),
	}
}

// BindCommandFlags binds a command's flags to viper
func BindCommandFlags(cmd *cobra.Command) error {
	return viper.BindPFlags(cmd.Flags())
}

// OpenEngine binds the flags of cmd, initializes logging and creates an
// engine from the resulting configuration. Cart notices are printed to stderr.
func OpenEngine(cmd *cobra.Command) (*engine.Engine, error) {
	if err := BindCommandFlags(cmd); err != nil {
		return nil, err
	}
	conf := GetClientConfig()
	if err := common.InitLoggers(conf.LogLevel); err != nil {
		return nil, err
	}
	return engine.New(conf, engine.Deps{
		Notifier: cart.NotifierFunc(func(n cart.Notice) {
			fmt.Fprintln(os.Stderr, n)
		}),
	})
}

// PrintJSON writes v as indented JSON to stdout
func PrintJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
