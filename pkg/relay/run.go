package relay

import (
	"context"
	"crypto/tls"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"
)

// ListenConfig describes how to bind the relay's HTTP(S) listener.
type ListenConfig struct {
	Addr     string // host:port, e.g. ":8700"
	CertFile string // optional; enables TLS when both Cert/Key set
	KeyFile  string
}

// Run binds Config's server to ListenConfig.Addr and serves until the
// process receives SIGINT/SIGTERM, then drains via lifecycle.Helper and
// returns. This mirrors the teacher's main-loop shutdown pattern
// (cmd/wstuncli + cmd/wstunsrv use the same signal.Notify + Helper drain),
// adapted for the relay daemon instead of a tunnel server.
func Run(ctx context.Context, s *Server, lc ListenConfig) error {
	mux := http.NewServeMux()
	mux.Handle("/", s)

	httpServer := &http.Server{
		Addr:    lc.Addr,
		Handler: mux,
	}

	errCh := make(chan error, 1)
	go func() {
		var err error
		if lc.CertFile != "" && lc.KeyFile != "" {
			httpServer.TLSConfig = &tls.Config{MinVersion: tls.VersionTLS12}
			err = httpServer.ListenAndServeTLS(lc.CertFile, lc.KeyFile)
		} else {
			err = httpServer.ListenAndServe()
		}
		if err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()
	s.ILogf("relay listening on %s", lc.Addr)

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigCh)

	select {
	case <-ctx.Done():
	case <-sigCh:
		s.ILogf("received shutdown signal")
	case err := <-errCh:
		return fmt.Errorf("relay: listen: %w", err)
	}

	s.StartShutdown(nil)

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		s.WLogf("http shutdown: %s", err)
	}

	s.WaitShutdown()
	return nil
}
