package config

import (
	"flag"
	"os"

	"github.com/dmitrijs2005/pushrelay/internal/flagx"
)

// parseFlags populates selected server Config fields from command-line flags.
//
// Supported flags (short forms):
//
//	-a string   TLS listener bind address (e.g., ":14944")
//	-x string   unix socket path for the trusted same-host listener
//	-d string   PostgreSQL DSN
//	-cert string server certificate file
//	-key string  server key file
//	-k string   gateway authorization key
//	-g string   gateway URL
//	-n string   reserved notification channel name
//
// The function first filters os.Args to only the flags it recognizes using
// flagx.FilterArgs, avoiding collisions with other components (the JSON
// config file flag in particular).
func parseFlags(config *Config) {
	args := flagx.FilterArgs(os.Args[1:], []string{"-a", "-x", "-d", "-cert", "-key", "-k", "-g", "-n"})

	fs := flag.NewFlagSet("main", flag.ContinueOnError)

	fs.StringVar(&config.EndpointAddr, "a", config.EndpointAddr, "address and port to run server")
	fs.StringVar(&config.UnixSocketPath, "x", config.UnixSocketPath, "unix socket path (trusted listener)")
	fs.StringVar(&config.DatabaseDSN, "d", config.DatabaseDSN, "database DSN")
	fs.StringVar(&config.ServerCertFile, "cert", config.ServerCertFile, "server certificate file")
	fs.StringVar(&config.ServerKeyFile, "key", config.ServerKeyFile, "server key file")
	fs.StringVar(&config.GatewayAuthKey, "k", config.GatewayAuthKey, "gateway authorization key")
	fs.StringVar(&config.GatewayURL, "g", config.GatewayURL, "gateway URL")
	fs.StringVar(&config.NotificationChannel, "n", config.NotificationChannel, "reserved notification channel")

	if err := fs.Parse(args); err != nil {
		panic(err)
	}
}
