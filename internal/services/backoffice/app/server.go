// Package app assembles the back-office server process: the SQLite
// store, the courier poller, and the REST API with its metrics under
// one HTTP listener.
package app

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/sync/errgroup"

	"github.com/atelier-erp/atelier/internal/platform/timeouts"
	"github.com/atelier-erp/atelier/internal/services/backoffice/api/rest"
	"github.com/atelier-erp/atelier/internal/services/backoffice/storage/sqlite"
	"github.com/atelier-erp/atelier/internal/services/backoffice/tracking"
)

// Config carries process configuration for the back-office server.
type Config struct {
	// Addr is the HTTP listen address. Empty means ":8080".
	Addr string
	// DBPath locates the SQLite database file. Parent directories are
	// created on startup. Empty means data/atelier.db.
	DBPath string
	// MediaRoot is where sale photos land. Empty means data/media.
	MediaRoot string
	// JWTSecret signs staff tokens. Required.
	JWTSecret string
	// ServiceToken authenticates the bot and the MCP bridge. Empty
	// disables service-token endpoints.
	ServiceToken string
	// CourierTrackURL is the courier tracking page pattern with one %s
	// for the tracking code. Empty disables the courier integration.
	CourierTrackURL string
	// PricingRulePath points at a Lua pricing script loaded at startup.
	// A rule stored as active in the database takes precedence.
	PricingRulePath string
	// ShipmentCheckEvery overrides how long a shipment rests between
	// courier checks. Zero keeps the poller default.
	ShipmentCheckEvery time.Duration
	// ShipmentPollInterval overrides the sweep cadence. Zero keeps the
	// poller default.
	ShipmentPollInterval time.Duration
}

// Server hosts the back-office HTTP API and its background poller.
type Server struct {
	listener   net.Listener
	httpServer *http.Server
	store      *sqlite.Store
	poller     *tracking.Poller
}

// New builds a configured server listening on cfg.Addr.
func New(cfg Config) (*Server, error) {
	addr := strings.TrimSpace(cfg.Addr)
	if addr == "" {
		addr = ":8080"
	}
	secret := strings.TrimSpace(cfg.JWTSecret)
	if secret == "" {
		return nil, errors.New("jwt secret is required")
	}

	store, err := openStore(cfg.DBPath)
	if err != nil {
		return nil, err
	}
	mediaRoot, err := ensureMediaRoot(cfg.MediaRoot)
	if err != nil {
		_ = store.Close()
		return nil, err
	}
	pricingScript, err := loadPricingScript(cfg.PricingRulePath)
	if err != nil {
		_ = store.Close()
		return nil, err
	}

	// Each server carries its own registry so restarts inside one
	// process never trip duplicate registration.
	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	restCfg := rest.Config{
		Store:         store,
		JWTSecret:     []byte(secret),
		ServiceToken:  strings.TrimSpace(cfg.ServiceToken),
		MediaRoot:     mediaRoot,
		PricingScript: pricingScript,
		Metrics:       rest.NewMetrics(registry),
	}

	var poller *tracking.Poller
	if strings.TrimSpace(cfg.CourierTrackURL) != "" {
		courier, err := tracking.NewClient(cfg.CourierTrackURL, nil)
		if err != nil {
			_ = store.Close()
			return nil, fmt.Errorf("configure courier: %w", err)
		}
		poller = tracking.NewPoller(store, courier, tracking.Config{
			CheckEvery:   cfg.ShipmentCheckEvery,
			PollInterval: cfg.ShipmentPollInterval,
		}, tracking.NewMetrics(registry), nil)
		restCfg.Tracker = poller
		restCfg.Courier = courier
	}

	restServer, err := rest.New(restCfg)
	if err != nil {
		_ = store.Close()
		return nil, fmt.Errorf("build rest server: %w", err)
	}

	mux := http.NewServeMux()
	mux.Handle(http.MethodGet+" /metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{}))
	mux.Handle("/", restServer.Handler())

	listener, err := net.Listen("tcp", addr)
	if err != nil {
		_ = store.Close()
		return nil, fmt.Errorf("listen on %s: %w", addr, err)
	}

	return &Server{
		listener: listener,
		httpServer: &http.Server{
			Handler:           mux,
			ReadHeaderTimeout: timeouts.ReadHeader,
		},
		store:  store,
		poller: poller,
	}, nil
}

// Addr returns the bound listener address.
func (s *Server) Addr() string {
	if s == nil || s.listener == nil {
		return ""
	}
	return s.listener.Addr().String()
}

// Serve runs the HTTP server and the courier poller until the context
// ends, then drains in-flight requests before returning.
func (s *Server) Serve(ctx context.Context) error {
	if ctx == nil {
		ctx = context.Background()
	}
	defer s.closeStore()

	log.Printf("backoffice api listening on %s", s.listener.Addr())
	if s.poller == nil {
		log.Printf("courier tracking disabled, no track url configured")
	}

	group, groupCtx := errgroup.WithContext(ctx)
	group.Go(func() error {
		err := s.httpServer.Serve(s.listener)
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("serve http: %w", err)
	})
	group.Go(func() error {
		<-groupCtx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), timeouts.Shutdown)
		defer cancel()
		if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("shutdown http server: %w", err)
		}
		return nil
	})
	if s.poller != nil {
		group.Go(func() error {
			err := s.poller.Run(groupCtx)
			if errors.Is(err, context.Canceled) {
				return nil
			}
			return err
		})
	}

	err := group.Wait()
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

// Run creates and serves a back-office server until the context ends.
func Run(ctx context.Context, cfg Config) error {
	server, err := New(cfg)
	if err != nil {
		return err
	}
	return server.Serve(ctx)
}

func openStore(path string) (*sqlite.Store, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		path = filepath.Join("data", "atelier.db")
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create storage dir: %w", err)
		}
	}
	store, err := sqlite.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite store: %w", err)
	}
	return store, nil
}

func ensureMediaRoot(root string) (string, error) {
	root = strings.TrimSpace(root)
	if root == "" {
		root = filepath.Join("data", "media")
	}
	if err := os.MkdirAll(root, 0o755); err != nil {
		return "", fmt.Errorf("create media root: %w", err)
	}
	return root, nil
}

func loadPricingScript(path string) (string, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		return "", nil
	}
	script, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("read pricing rule: %w", err)
	}
	return string(script), nil
}

func (s *Server) closeStore() {
	if s == nil || s.store == nil {
		return
	}
	if err := s.store.Close(); err != nil {
		log.Printf("close store: %v", err)
	}
}
