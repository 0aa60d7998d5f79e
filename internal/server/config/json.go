package config

import (
	"encoding/json"
	"os"

	"github.com/dmitrijs2005/pushrelay/internal/flagx"
	"github.com/dmitrijs2005/pushrelay/internal/timex"
)

// JsonConfig mirrors Config for JSON unmarshalling. Interval fields use
// timex.Duration, which accepts both strings such as "20s" and integer
// nanoseconds. Zero values are treated as "not set" and leave the defaults
// in place.
type JsonConfig struct {
	EndpointAddr            string         `json:"endpoint_addr"`
	UnixSocketPath          string         `json:"unix_socket_path"`
	ServerCertFile          string         `json:"server_cert_file"`
	ServerKeyFile           string         `json:"server_key_file"`
	DatabaseDSN             string         `json:"database_dsn"`
	ConnectRetries          int            `json:"connect_retries"`
	ConnectRetryDelay       timex.Duration `json:"connect_retry_delay"`
	ReceiveTimeout          timex.Duration `json:"receive_timeout"`
	MaxMessageSize          int            `json:"max_message_size"`
	BruteforceMaxAttempts   int            `json:"bruteforce_max_attempts"`
	BruteforceWindow        timex.Duration `json:"bruteforce_window"`
	BruteforceBlockDuration timex.Duration `json:"bruteforce_block_duration"`
	GatewayURL              string         `json:"gateway_url"`
	GatewayAuthKey          string         `json:"gateway_auth_key"`
	GatewayTimeout          timex.Duration `json:"gateway_timeout"`
	InlineLimit             int            `json:"inline_limit"`
	NotificationChannel     string         `json:"notification_channel"`
	StatisticsLifeSpanDays  *int           `json:"statistics_life_span_days"`
	PayloadLifeSpanDays     *int           `json:"payload_life_span_days"`
	CleanerInterval         timex.Duration `json:"cleaner_interval"`
	CleanerTick             timex.Duration `json:"cleaner_tick"`
}

// parseJson loads configuration values from a JSON file into the provided
// Config. The file path comes from the -c or -config command-line flags; if
// neither is set, no JSON file is loaded. An unreadable or invalid file
// panics, as the server must not start half-configured.
func parseJson(config *Config) {

	jsonConfigFile := flagx.JsonConfigFlags()
	if jsonConfigFile == "" {
		return
	}

	c := &JsonConfig{}

	file, err := os.ReadFile(jsonConfigFile)
	if err != nil {
		panic(err)
	}

	if err := json.Unmarshal(file, c); err != nil {
		panic(err)
	}

	if c.EndpointAddr != "" {
		config.EndpointAddr = c.EndpointAddr
	}
	if c.UnixSocketPath != "" {
		config.UnixSocketPath = c.UnixSocketPath
	}
	if c.ServerCertFile != "" {
		config.ServerCertFile = c.ServerCertFile
	}
	if c.ServerKeyFile != "" {
		config.ServerKeyFile = c.ServerKeyFile
	}
	if c.DatabaseDSN != "" {
		config.DatabaseDSN = c.DatabaseDSN
	}
	if c.ConnectRetries != 0 {
		config.ConnectRetries = c.ConnectRetries
	}
	if c.ConnectRetryDelay.Duration != 0 {
		config.ConnectRetryDelay = c.ConnectRetryDelay.Duration
	}
	if c.ReceiveTimeout.Duration != 0 {
		config.ReceiveTimeout = c.ReceiveTimeout.Duration
	}
	if c.MaxMessageSize != 0 {
		config.MaxMessageSize = c.MaxMessageSize
	}
	if c.BruteforceMaxAttempts != 0 {
		config.BruteforceMaxAttempts = c.BruteforceMaxAttempts
	}
	if c.BruteforceWindow.Duration != 0 {
		config.BruteforceWindow = c.BruteforceWindow.Duration
	}
	if c.BruteforceBlockDuration.Duration != 0 {
		config.BruteforceBlockDuration = c.BruteforceBlockDuration.Duration
	}
	if c.GatewayURL != "" {
		config.GatewayURL = c.GatewayURL
	}
	if c.GatewayAuthKey != "" {
		config.GatewayAuthKey = c.GatewayAuthKey
	}
	if c.GatewayTimeout.Duration != 0 {
		config.GatewayTimeout = c.GatewayTimeout.Duration
	}
	if c.InlineLimit != 0 {
		config.InlineLimit = c.InlineLimit
	}
	if c.NotificationChannel != "" {
		config.NotificationChannel = c.NotificationChannel
	}
	// Life spans distinguish "absent" from an explicit 0 (= disabled).
	if c.StatisticsLifeSpanDays != nil {
		config.StatisticsLifeSpanDays = *c.StatisticsLifeSpanDays
	}
	if c.PayloadLifeSpanDays != nil {
		config.PayloadLifeSpanDays = *c.PayloadLifeSpanDays
	}
	if c.CleanerInterval.Duration != 0 {
		config.CleanerInterval = c.CleanerInterval.Duration
	}
	if c.CleanerTick.Duration != 0 {
		config.CleanerTick = c.CleanerTick.Duration
	}
}
