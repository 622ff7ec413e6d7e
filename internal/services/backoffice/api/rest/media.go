package rest

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	apperrors "github.com/atelier-erp/atelier/internal/errors"
)

// mediaStore writes uploaded photos under the media root. Records store
// the path relative to the root so the tree can move between hosts.
type mediaStore struct {
	root string
}

func (m mediaStore) configured() bool {
	return strings.TrimSpace(m.root) != ""
}

// saveSalePhoto writes one photo and returns its relative path.
func (m mediaStore) saveSalePhoto(saleID, fileName string, head []byte, rest io.Reader) (string, error) {
	if !m.configured() {
		return "", apperrors.New(apperrors.CodeUnknown, "media root is not configured")
	}
	relative := filepath.Join("sales", saleID, fileName)
	absolute := filepath.Join(m.root, relative)
	if err := os.MkdirAll(filepath.Dir(absolute), 0o755); err != nil {
		return "", fmt.Errorf("create media directory: %w", err)
	}
	out, err := os.OpenFile(absolute, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if err != nil {
		return "", fmt.Errorf("create photo file: %w", err)
	}
	defer out.Close()
	if _, err := out.Write(head); err != nil {
		return "", fmt.Errorf("write photo: %w", err)
	}
	if _, err := io.Copy(out, rest); err != nil {
		return "", fmt.Errorf("write photo: %w", err)
	}
	return relative, nil
}
