// Package server implements the demo change-notification server: a filtered
// WebSocket stream of change records, a metadata endpoint, a browser console
// and a file server of the watched root.
package server

import (
	"context"
	"encoding/json"
	"net/http"
	"net/url"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/gorilla/websocket"
	"github.com/gyokuro/filewatch/internal/client"
	"github.com/gyokuro/filewatch/internal/config"
	"github.com/gyokuro/filewatch/internal/frontend"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	"github.com/shirou/gopsutil/v3/host"
)

// Info is the body of the metadata endpoint.
type Info struct {
	Version   string    `json:"version"`
	Root      string    `json:"root"`
	Recursive bool      `json:"recursive"`
	Mock      bool      `json:"mock"`
	StartedAt time.Time `json:"started_at"`
	Uptime    string    `json:"uptime"`
	Clients   int       `json:"clients"`
	Host      *HostInfo `json:"host,omitempty"`
}

// HostInfo is the subset of host metadata reported to clients.
type HostInfo struct {
	Hostname        string `json:"hostname"`
	OS              string `json:"os"`
	Platform        string `json:"platform"`
	PlatformVersion string `json:"platform_version"`
	KernelVersion   string `json:"kernel_version"`
	Arch            string `json:"arch"`
	Uptime          string `json:"uptime"`
}

type Server struct {
	cfg     config.ServerConfig
	hub     *Hub
	version string
	started time.Time
	logger  zerolog.Logger

	hostInfo func(ctx context.Context) (*host.InfoStat, error)
}

func New(cfg config.ServerConfig, hub *Hub, version string, logger zerolog.Logger) *Server {
	return &Server{
		cfg:      cfg,
		hub:      hub,
		version:  version,
		started:  time.Now(),
		logger:   logger,
		hostInfo: host.InfoWithContext,
	}
}

func (s *Server) SetupRoutes(mux *http.ServeMux) {
	mux.HandleFunc(client.WatchPath, s.handleWatch)
	mux.HandleFunc(client.InfoPath, s.handleInfo)
	mux.Handle(frontend.Prefix, securityHeaders(frontend.Handler()))
	mux.Handle("/", securityHeaders(http.FileServer(http.Dir(s.cfg.Root))))
}

// compileFilter compiles a filter pattern; an empty pattern matches all.
func compileFilter(pattern string) (*regexp.Regexp, error) {
	if strings.TrimSpace(pattern) == "" {
		pattern = client.DefaultPattern
	}
	return regexp.Compile(pattern)
}

func (s *Server) handleWatch(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	sub, err := compileFilter(q.Get("subscription"))
	if err != nil {
		http.Error(w, "invalid subscription: "+err.Error(), http.StatusBadRequest)
		return
	}
	ev, err := compileFilter(q.Get("event"))
	if err != nil {
		http.Error(w, "invalid event: "+err.Error(), http.StatusBadRequest)
		return
	}

	upgrader := websocket.Upgrader{CheckOrigin: checkOrigin}
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Warn().Err(err).Str("remote", r.RemoteAddr).Msg("ws upgrade")
		return
	}

	c := s.hub.Add(conn, sub, ev)
	go func() {
		defer s.hub.Remove(c)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()
}

func (s *Server) handleInfo(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(s.Info(r.Context())); err != nil {
		s.logger.Warn().Err(err).Msg("encode info")
	}
}

// Info collects the current server metadata. Host fields are omitted when
// the platform lookup fails.
func (s *Server) Info(ctx context.Context) Info {
	info := Info{
		Version:   s.version,
		Root:      s.cfg.Root,
		Recursive: s.cfg.Recursive,
		Mock:      s.cfg.Mock,
		StartedAt: s.started,
		Uptime:    since(s.started),
		Clients:   s.hub.ClientCount(),
	}
	if s.hostInfo == nil {
		return info
	}
	hi, err := s.hostInfo(ctx)
	if err != nil {
		s.logger.Debug().Err(err).Msg("host info")
		return info
	}
	info.Host = &HostInfo{
		Hostname:        hi.Hostname,
		OS:              hi.OS,
		Platform:        hi.Platform,
		PlatformVersion: hi.PlatformVersion,
		KernelVersion:   hi.KernelVersion,
		Arch:            hi.KernelArch,
		Uptime:          since(time.Now().Add(-time.Duration(hi.Uptime) * time.Second)),
	}
	return info
}

func since(t time.Time) string {
	return strings.TrimSpace(humanize.RelTime(t, time.Now(), "", ""))
}

func securityHeaders(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		h := w.Header()
		h.Set("X-Content-Type-Options", "nosniff")
		h.Set("X-Frame-Options", "DENY")
		h.Set("Content-Security-Policy", "default-src 'self'")
		next.ServeHTTP(w, r)
	})
}

// checkOrigin accepts non-browser clients, same-host pages and loopback
// origins.
func checkOrigin(r *http.Request) bool {
	origin := r.Header.Get("Origin")
	if origin == "" {
		return true
	}
	parsed, err := url.Parse(origin)
	if err != nil || parsed.Host == "" {
		return false
	}
	if parsed.Host == r.Host {
		return true
	}
	switch parsed.Hostname() {
	case "localhost", "127.0.0.1", "::1":
		return true
	}
	return false
}

// ListenAndServe serves mux on bind:port until ctx is cancelled.
func ListenAndServe(ctx context.Context, bind string, port int, mux http.Handler, logger zerolog.Logger) error {
	addr := bind + ":" + strconv.Itoa(port)
	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 10 * time.Second}

	errCh := make(chan error, 1)
	go func() {
		logger.Info().Str("addr", addr).Msg("server listening")
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return errors.Wrap(err, "listen")
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return errors.Wrap(err, "shutdown")
		}
		return nil
	}
}
