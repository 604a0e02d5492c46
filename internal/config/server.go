package config

import (
	"time"

	"github.com/spf13/viper"
)

type ServerConfig struct {
	BankAddr        string
	AdminEnabled    bool
	AdminAddr       string
	TLSCertFile     string
	TLSKeyFile      string
	StoreBackend    string
	StorePath       string
	OutboxDir       string
	IntentEndpoint  string
	IntentAPIKey    string
	IntentModel     string
	IntentCacheTTL  time.Duration
	ShutdownTimeout time.Duration
}

// LoadServerConfig reads the server's settings from the environment with
// sensible defaults for local development.
func LoadServerConfig() *ServerConfig {
	viper.SetDefault("server.bank_addr", ":4433")
	viper.SetDefault("server.admin_enabled", true)
	viper.SetDefault("server.admin_addr", ":8080")
	viper.SetDefault("server.tls_cert_file", "")
	viper.SetDefault("server.tls_key_file", "")
	viper.SetDefault("server.shutdown_timeout", 30*time.Second)
	viper.SetDefault("store.backend", "file")
	viper.SetDefault("store.path", "users.txt")
	viper.SetDefault("settlement.outbox_dir", "outbox")
	viper.SetDefault("intent.endpoint", "")
	viper.SetDefault("intent.api_key", "")
	viper.SetDefault("intent.model", "gpt-4o-mini")
	viper.SetDefault("intent.cache_ttl", time.Hour)

	return &ServerConfig{
		BankAddr:        viper.GetString("server.bank_addr"),
		AdminEnabled:    viper.GetBool("server.admin_enabled"),
		AdminAddr:       viper.GetString("server.admin_addr"),
		TLSCertFile:     viper.GetString("server.tls_cert_file"),
		TLSKeyFile:      viper.GetString("server.tls_key_file"),
		StoreBackend:    viper.GetString("store.backend"),
		StorePath:       viper.GetString("store.path"),
		OutboxDir:       viper.GetString("settlement.outbox_dir"),
		IntentEndpoint:  viper.GetString("intent.endpoint"),
		IntentAPIKey:    viper.GetString("intent.api_key"),
		IntentModel:     viper.GetString("intent.model"),
		IntentCacheTTL:  viper.GetDuration("intent.cache_ttl"),
		ShutdownTimeout: viper.GetDuration("server.shutdown_timeout"),
	}
}
