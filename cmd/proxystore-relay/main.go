// Command proxystore-relay serves a relay daemon from a TOML config path
// or CLI flags (spec §6). The CLI's own argument semantics are out of
// scope per spec.md §1; this wires recognized flags to pkg/relay.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	"github.com/proxystore-go/proxystore/pkg/psconfig"
	"github.com/proxystore-go/proxystore/pkg/pslog"
	"github.com/proxystore-go/proxystore/pkg/relay"
)

const buildVersion = "0.1.0"

func main() {
	os.Exit(run(os.Args[1:]))
}

func run(args []string) int {
	fs := flag.NewFlagSet("proxystore-relay", flag.ContinueOnError)
	configPath := fs.String("config", "", "path to relay config.toml")
	host := fs.String("host", "", "bind host, overrides config")
	port := fs.Int("port", 0, "bind port, overrides config (default 8700)")
	version := fs.Bool("version", false, "print version and exit")
	if err := fs.Parse(args); err != nil {
		return 1
	}
	if *version {
		fmt.Println(buildVersion)
		return 0
	}

	var cfg psconfig.RelayConfig
	if *configPath != "" {
		loaded, err := psconfig.LoadRelayConfig(*configPath)
		if err != nil {
			fmt.Fprintln(os.Stderr, err)
			return 1
		}
		cfg = *loaded
	}
	if *host != "" {
		cfg.Host = *host
	}
	if *port != 0 {
		cfg.Port = *port
	}
	if err := cfg.Validate(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 1
	}

	logger := pslog.New("relay", pslog.LogLevelInfo)
	srv := relay.NewServer(relay.Config{
		Auth:            relay.NullAuthenticator{},
		MaxMessageBytes: cfg.MaxMessageBytes,
		Logger:          logger,
	})

	addr := fmt.Sprintf("%s:%d", cfg.Host, cfg.Port)
	if err := relay.Run(context.Background(), srv, relay.ListenConfig{
		Addr:     addr,
		CertFile: cfg.CertFile,
		KeyFile:  cfg.KeyFile,
	}); err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 1
	}
	return 0
}
