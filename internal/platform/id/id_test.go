package id

import (
	"encoding/base32"
	"strings"
	"testing"
)

func TestNewIDShape(t *testing.T) {
	got, err := NewID()
	if err != nil {
		t.Fatalf("new id: %v", err)
	}
	if len(got) != 26 {
		t.Fatalf("len = %d, want 26", len(got))
	}
	if got != strings.ToLower(got) {
		t.Fatalf("id %q is not lowercase", got)
	}
	if strings.ContainsAny(got, "=-") {
		t.Fatalf("id %q carries padding or dashes", got)
	}

	raw, err := base32.StdEncoding.WithPadding(base32.NoPadding).DecodeString(strings.ToUpper(got))
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(raw) != 16 {
		t.Fatalf("decoded bytes = %d, want 16", len(raw))
	}
	// The UUIDv4 version and variant bits survive the encoding.
	if version := raw[6] >> 4; version != 4 {
		t.Fatalf("uuid version = %d, want 4", version)
	}
	if variant := raw[8] & 0xC0; variant != 0x80 {
		t.Fatalf("uuid variant = %#x, want 0x80", variant)
	}
}

func TestNewIDDoesNotRepeat(t *testing.T) {
	seen := make(map[string]bool)
	for range 64 {
		got, err := NewID()
		if err != nil {
			t.Fatalf("new id: %v", err)
		}
		if seen[got] {
			t.Fatalf("id %q repeated", got)
		}
		seen[got] = true
	}
}
