// Package service hosts the MCP bridge: an MCP server whose tools and
// resources are thin views over the back-office REST API. It speaks
// stdio for desktop MCP clients and HTTP for networked ones, and holds
// startup until the back office answers its health probe.
package service

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/atelier-erp/atelier/internal/services/backoffice/api/client"
)

const (
	// serverName identifies this MCP server to clients.
	serverName = "Atelier ERP MCP"
	// serverVersion identifies the MCP server version.
	serverVersion = "0.1.0"
)

// healthProbeInterval paces the background health check while the HTTP
// transport is serving.
const healthProbeInterval = 30 * time.Second

// TransportKind identifies the MCP transport implementation.
type TransportKind string

const (
	// TransportStdio uses standard input/output for MCP.
	TransportStdio TransportKind = "stdio"
	// TransportHTTP serves MCP over an HTTP listener.
	TransportHTTP TransportKind = "http"
)

// Config configures the MCP bridge.
type Config struct {
	// APIBaseURL is the back-office server root.
	APIBaseURL string
	// ServiceToken authenticates bridge calls against the API.
	ServiceToken string
	// Transport selects stdio or http. Empty means stdio.
	Transport TransportKind
	// HTTPAddr is the listen address for the http transport. Empty
	// defaults to localhost:8081.
	HTTPAddr string
}

// Server hosts the MCP server over a back-office API client.
type Server struct {
	mcpServer  *mcp.Server
	backoffice *client.Client
}

// New creates a configured MCP server exposing the ERP tools and
// resources.
func New(backoffice *client.Client) (*Server, error) {
	if backoffice == nil {
		return nil, fmt.Errorf("back office client is required")
	}

	mcpServer := mcp.NewServer(&mcp.Implementation{Name: serverName, Version: serverVersion}, &mcp.ServerOptions{
		CompletionHandler: completionHandler,
	})

	registerCatalogTools(mcpServer, backoffice)
	registerSaleTools(mcpServer, backoffice)
	registerShippingTools(mcpServer, backoffice)
	registerResources(mcpServer, backoffice)

	return &Server{mcpServer: mcpServer, backoffice: backoffice}, nil
}

// completionHandler answers completion/complete requests with empty
// results; the ERP tools take free-form arguments.
func completionHandler(ctx context.Context, req *mcp.CompleteRequest) (*mcp.CompleteResult, error) {
	return &mcp.CompleteResult{
		Completion: mcp.CompletionResultDetails{
			Values: []string{},
		},
	}, nil
}

// Run creates and serves the MCP bridge until the context ends.
func Run(ctx context.Context, cfg Config) error {
	if cfg.Transport == "" {
		cfg.Transport = TransportStdio
	}

	backoffice, err := client.New(client.Config{BaseURL: cfg.APIBaseURL, Token: cfg.ServiceToken})
	if err != nil {
		return fmt.Errorf("build api client: %w", err)
	}

	switch cfg.Transport {
	case TransportStdio:
		return runWithTransport(ctx, backoffice, &mcp.StdioTransport{})
	case TransportHTTP:
		return runWithHTTPTransport(ctx, backoffice, cfg.HTTPAddr)
	default:
		return fmt.Errorf("transport %q is not supported", cfg.Transport)
	}
}

// runWithTransport creates a server and serves it over the provided
// transport once the back office is reachable.
func runWithTransport(ctx context.Context, backoffice *client.Client, transport mcp.Transport) error {
	server, err := New(backoffice)
	if err != nil {
		return err
	}
	if err := server.waitForHealth(ctx); err != nil {
		return err
	}
	return server.serveWithTransport(ctx, transport)
}

// runWithHTTPTransport creates a server and serves it over HTTP.
func runWithHTTPTransport(ctx context.Context, backoffice *client.Client, httpAddr string) error {
	server, err := New(backoffice)
	if err != nil {
		return err
	}
	if err := server.waitForHealth(ctx); err != nil {
		return err
	}

	// Keep probing while serving so API outages show up in the logs
	// rather than only as failing tool calls.
	healthCtx, healthCancel := context.WithCancel(ctx)
	defer healthCancel()
	go server.monitorHealth(healthCtx)

	transport := NewHTTPTransport(httpAddr, server.mcpServer)
	return transport.Start(ctx)
}

// Serve starts the MCP server on stdio and blocks until it stops or the
// context ends.
func (s *Server) Serve(ctx context.Context) error {
	return s.serveWithTransport(ctx, &mcp.StdioTransport{})
}

// serveWithTransport starts the MCP server using the provided transport.
func (s *Server) serveWithTransport(ctx context.Context, transport mcp.Transport) error {
	if s == nil || s.mcpServer == nil {
		return fmt.Errorf("MCP server is not configured")
	}
	if ctx == nil {
		ctx = context.Background()
	}
	err := s.mcpServer.Run(ctx, transport)
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		err = nil
	}
	if err != nil {
		return fmt.Errorf("serve MCP: %w", err)
	}
	return nil
}

// waitForHealth blocks until the back office answers its health probe,
// backing off between attempts.
func (s *Server) waitForHealth(ctx context.Context) error {
	if s == nil || s.backoffice == nil {
		return fmt.Errorf("back office client is not configured")
	}

	backoff := 200 * time.Millisecond
	for {
		callCtx, cancel := context.WithTimeout(ctx, time.Second)
		err := s.backoffice.Health(callCtx)
		cancel()
		if err == nil {
			log.Printf("back office is healthy")
			return nil
		}
		log.Printf("waiting for back office: %v", err)

		select {
		case <-ctx.Done():
			return fmt.Errorf("wait for back office health: %w", ctx.Err())
		case <-time.After(backoff):
		}

		if backoff < time.Second {
			backoff *= 2
			if backoff > time.Second {
				backoff = time.Second
			}
		}
	}
}

// monitorHealth logs back-office outages while the HTTP transport
// serves. Probes that fail are logged, not fatal; individual tool calls
// report their own errors.
func (s *Server) monitorHealth(ctx context.Context) {
	ticker := time.NewTicker(healthProbeInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			callCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
			err := s.backoffice.Health(callCtx)
			cancel()
			if err != nil {
				log.Printf("back office health check failed: %v", err)
			}
		}
	}
}
