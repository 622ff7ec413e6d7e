package mcp

import (
	"flag"
	"testing"
)

func TestParseConfigDefaults(t *testing.T) {
	fs := flag.NewFlagSet("mcp", flag.ContinueOnError)
	cfg, err := ParseConfig(fs, nil)
	if err != nil {
		t.Fatalf("parse config: %v", err)
	}
	if cfg.APIBaseURL != "http://127.0.0.1:8080" {
		t.Fatalf("api url = %q, want default", cfg.APIBaseURL)
	}
	if cfg.Transport != "stdio" {
		t.Fatalf("transport = %q, want stdio", cfg.Transport)
	}
	if cfg.HTTPAddr != "localhost:8081" {
		t.Fatalf("http addr = %q, want default", cfg.HTTPAddr)
	}
}

func TestParseConfigFlagsOverrideEnv(t *testing.T) {
	t.Setenv("ATELIER_SERVICE_TOKEN", "svc-token")
	t.Setenv("ATELIER_MCP_TRANSPORT", "http")

	fs := flag.NewFlagSet("mcp", flag.ContinueOnError)
	cfg, err := ParseConfig(fs, []string{"-http-addr", "127.0.0.1:9090", "-api-url", "http://api.internal:8080"})
	if err != nil {
		t.Fatalf("parse config: %v", err)
	}
	if cfg.ServiceToken != "svc-token" {
		t.Fatalf("service token = %q, want env value", cfg.ServiceToken)
	}
	if cfg.Transport != "http" {
		t.Fatalf("transport = %q, want env value", cfg.Transport)
	}
	if cfg.HTTPAddr != "127.0.0.1:9090" {
		t.Fatalf("http addr = %q, want flag value", cfg.HTTPAddr)
	}
	if cfg.APIBaseURL != "http://api.internal:8080" {
		t.Fatalf("api url = %q, want flag value", cfg.APIBaseURL)
	}
}
