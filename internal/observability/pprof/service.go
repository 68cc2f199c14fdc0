// Package pprof serves the runtime profiling endpoints on a loopback
// address for live diagnosis of a long-running daemon.
package pprof

import (
	"context"
	"errors"
	"net"
	"net/http"
	hpprof "net/http/pprof"
	"strings"
	"time"

	"gplanner/pkg/logx"
)

// Config controls the optional pprof HTTP server. Bind to loopback; this
// server carries no auth.
type Config struct {
	Enabled bool
	Addr    string // default "127.0.0.1:6060"
}

type Service struct {
	cfg Config
	log logx.Logger
	srv *http.Server
	ln  net.Listener
}

func New(cfg Config, log logx.Logger) *Service {
	if cfg.Addr == "" {
		cfg.Addr = "127.0.0.1:6060"
	}
	if log.IsZero() {
		log = logx.Nop()
	}
	return &Service{cfg: cfg, log: log}
}

func (s *Service) Start() error {
	if !s.cfg.Enabled {
		return nil
	}
	if !isLoopback(s.cfg.Addr) {
		return errors.New("pprof: refusing to bind a non-loopback address")
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/debug/pprof/", hpprof.Index)
	mux.HandleFunc("/debug/pprof/cmdline", hpprof.Cmdline)
	mux.HandleFunc("/debug/pprof/profile", hpprof.Profile)
	mux.HandleFunc("/debug/pprof/symbol", hpprof.Symbol)
	mux.HandleFunc("/debug/pprof/trace", hpprof.Trace)

	ln, err := net.Listen("tcp", s.cfg.Addr)
	if err != nil {
		return err
	}
	s.ln = ln
	s.srv = &http.Server{
		Handler:      mux,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		if err := s.srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.log.Warn("pprof server stopped", logx.Err(err))
		}
	}()
	s.log.Info("pprof listening", logx.String("addr", ln.Addr().String()))
	return nil
}

func (s *Service) Stop(ctx context.Context) {
	if s.srv == nil {
		return
	}
	if err := s.srv.Shutdown(ctx); err != nil {
		s.log.Warn("pprof shutdown failed", logx.Err(err))
	}
	s.srv = nil
}

func isLoopback(addr string) bool {
	host, _, err := net.SplitHostPort(addr)
	if err != nil {
		return false
	}
	if strings.EqualFold(host, "localhost") {
		return true
	}
	ip := net.ParseIP(host)
	return ip != nil && ip.IsLoopback()
}
