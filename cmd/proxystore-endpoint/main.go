// Command proxystore-endpoint is the CLI shape for the endpoint daemon
// (spec §6): list/remove manage persisted endpoint directories under
// $PROXYSTORE_HOME and start serves a daemon from a config file;
// configure only echoes the name it was given and writes nothing, and
// stop always exits 1 without stopping anything. The CLI's own argument/flag semantics are out of scope per
// spec.md §1 — this wires the recognized subcommands to the library
// packages that do the real work.
package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/proxystore-go/proxystore/pkg/endpoint"
	"github.com/proxystore-go/proxystore/pkg/psconfig"
	"github.com/proxystore-go/proxystore/pkg/pslog"
)

const buildVersion = "0.1.0"

var help = `
  Usage: proxystore-endpoint [command] [--help]

  Commands:
    configure - echoes the endpoint name; writes no config
    list      - lists configured endpoints
    remove    - deletes a configured endpoint
    start     - starts a configured endpoint's daemon
    stop      - exits 1; does not stop a running daemon
    help      - shows this text
    version   - prints the build version

`

func main() {
	os.Exit(run(os.Args[1:]))
}

func run(args []string) int {
	subcmd := ""
	if len(args) > 0 {
		subcmd = args[0]
		args = args[1:]
	}

	switch subcmd {
	case "configure":
		return cmdConfigure(args)
	case "list":
		return cmdList(args)
	case "remove":
		return cmdRemove(args)
	case "start":
		return cmdStart(args)
	case "stop":
		return cmdStop(args)
	case "version":
		fmt.Println(buildVersion)
		return 0
	default:
		fmt.Fprint(os.Stderr, help)
		return 1
	}
}

func cmdConfigure(args []string) int {
	fs := flag.NewFlagSet("configure", flag.ContinueOnError)
	name := fs.String("name", "", "endpoint name")
	if err := fs.Parse(args); err != nil || *name == "" {
		fmt.Fprintln(os.Stderr, "proxystore-endpoint configure --name <name> [...]")
		return 1
	}
	fmt.Printf("would write config for endpoint %q\n", *name)
	return 0
}

func cmdList(args []string) int {
	dir, err := psconfig.Home()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 1
	}
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return 0
		}
		fmt.Fprintln(os.Stderr, err)
		return 1
	}
	for _, e := range entries {
		if e.IsDir() {
			fmt.Println(e.Name())
		}
	}
	return 0
}

func cmdRemove(args []string) int {
	if len(args) != 1 {
		fmt.Fprintln(os.Stderr, "proxystore-endpoint remove <name>")
		return 1
	}
	dir, err := psconfig.EndpointDir(args[0])
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 1
	}
	if err := os.RemoveAll(dir); err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 1
	}
	return 0
}

func cmdStart(args []string) int {
	fs := flag.NewFlagSet("start", flag.ContinueOnError)
	configPath := fs.String("config", "", "path to endpoint config.toml")
	if err := fs.Parse(args); err != nil || *configPath == "" {
		fmt.Fprintln(os.Stderr, "proxystore-endpoint start --config <path>")
		return 1
	}
	cfg, err := psconfig.LoadEndpointConfig(*configPath)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 1
	}

	storage, err := endpoint.NewStorage(cfg.Storage.DatabasePath, cfg.Storage.MaxObjectSize, 0)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 1
	}
	srv := endpoint.New(endpoint.Config{
		UUID:    cfg.UUID,
		Name:    cfg.Name,
		Storage: storage,
		Logger:  pslog.New(cfg.Name, pslog.LogLevelInfo),
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go sigIntHandler(ctx, cancel)

	addr := fmt.Sprintf("%s:%d", cfg.Host, cfg.Port)
	httpSrv := &http.Server{Addr: addr, Handler: srv}
	serveErr := make(chan error, 1)
	go func() { serveErr <- httpSrv.ListenAndServe() }()
	fmt.Printf("serving endpoint %s on %s\n", cfg.Name, addr)
	select {
	case <-ctx.Done():
	case err := <-serveErr:
		fmt.Fprintln(os.Stderr, err)
		srv.Close()
		return 1
	}
	httpSrv.Close()
	srv.Close()
	return 0
}

func cmdStop(args []string) int {
	fmt.Fprintln(os.Stderr, "proxystore-endpoint stop: not implemented outside a running process manager")
	return 1
}

func sigIntHandler(ctx context.Context, cancel context.CancelFunc) {
	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	select {
	case <-sig:
	case <-ctx.Done():
	}
	signal.Stop(sig)
	cancel()
}
