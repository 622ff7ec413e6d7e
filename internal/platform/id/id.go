// Package id generates the opaque identifiers used across the system.
//
// Identifiers are random UUIDv4 values encoded as lowercase, unpadded
// base32. The encoding keeps ids URL- and filename-safe while staying
// shorter than the canonical dashed UUID form.
package id

import (
	"encoding/base32"
	"fmt"
	"strings"

	"github.com/google/uuid"
)

var encoding = base32.StdEncoding.WithPadding(base32.NoPadding)

// NewID returns a new 26-character identifier.
func NewID() (string, error) {
	u, err := uuid.NewRandom()
	if err != nil {
		return "", fmt.Errorf("generate uuid: %w", err)
	}
	return strings.ToLower(encoding.EncodeToString(u[:])), nil
}
