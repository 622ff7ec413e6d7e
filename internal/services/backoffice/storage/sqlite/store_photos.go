package sqlite

import (
	"context"
	"fmt"
	"strings"

	"github.com/atelier-erp/atelier/internal/services/backoffice/domain"
	"github.com/atelier-erp/atelier/internal/services/backoffice/storage"
)

// PutSalePhoto inserts one photo record. The image bytes live on disk
// under the media root.
func (s *Store) PutSalePhoto(ctx context.Context, photo domain.SalePhoto) error {
	if err := s.ready(ctx); err != nil {
		return err
	}
	photoID := strings.TrimSpace(photo.ID)
	if photoID == "" {
		return fmt.Errorf("photo id is required")
	}
	if strings.TrimSpace(photo.SaleID) == "" {
		return fmt.Errorf("photo sale id is required")
	}
	if strings.TrimSpace(photo.FilePath) == "" {
		return fmt.Errorf("photo file path is required")
	}

	_, err := s.sqlDB.ExecContext(ctx,
		`INSERT INTO sale_photos (
		   id, sale_id, file_path, caption, submitted_by, submitted_via,
		   telegram_file_id, created_at
		 ) VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		photoID, photo.SaleID, photo.FilePath, photo.Caption, photo.SubmittedBy,
		photo.SubmittedVia.String(), photo.TelegramFileID, toMillis(photo.CreatedAt),
	)
	if err != nil {
		if isUniqueViolation(err, "sale_photos.id") {
			return fmt.Errorf("photo %s: %w", photoID, storage.ErrAlreadyExists)
		}
		return fmt.Errorf("put sale photo: %w", err)
	}
	return nil
}

// ListSalePhotos returns the photos attached to a sale, oldest first.
func (s *Store) ListSalePhotos(ctx context.Context, saleID string) ([]domain.SalePhoto, error) {
	if err := s.ready(ctx); err != nil {
		return nil, err
	}
	saleID = strings.TrimSpace(saleID)
	if saleID == "" {
		return nil, fmt.Errorf("sale id is required")
	}

	rows, err := s.sqlDB.QueryContext(ctx,
		`SELECT id, sale_id, file_path, caption, submitted_by, submitted_via,
		        telegram_file_id, created_at
		   FROM sale_photos WHERE sale_id = ? ORDER BY created_at ASC, id ASC`, saleID,
	)
	if err != nil {
		return nil, fmt.Errorf("list sale photos: %w", err)
	}
	defer rows.Close()

	var photos []domain.SalePhoto
	for rows.Next() {
		var photo domain.SalePhoto
		var via string
		var createdAt int64
		if err := rows.Scan(
			&photo.ID, &photo.SaleID, &photo.FilePath, &photo.Caption,
			&photo.SubmittedBy, &via, &photo.TelegramFileID, &createdAt,
		); err != nil {
			return nil, fmt.Errorf("list sale photos: %w", err)
		}
		photo.SubmittedVia, err = domain.ParsePhotoSource(via)
		if err != nil {
			return nil, fmt.Errorf("photo %s: %w", photo.ID, err)
		}
		photo.CreatedAt = fromMillis(createdAt)
		photos = append(photos, photo)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list sale photos: %w", err)
	}
	return photos, nil
}

var _ storage.PhotoStore = (*Store)(nil)
