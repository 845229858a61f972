package repository

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/google/uuid"

	"bazaar-service/internal/domain"
)

type ImageRepository interface {
	GetImage(ctx context.Context, id string) (*domain.Image, error)
	CreateImage(ctx context.Context, fileName string, data []byte, mimeType string) (string, error)
	DeleteImage(ctx context.Context, id string) error
}

// localImageRepository stores each image as a content file plus a
// .meta JSON sidecar in a flat directory. Referential integrity with
// the ads table is best-effort only.
type localImageRepository struct {
	dir string
}

type imageMetadata struct {
	FileName string `json:"file_name"`
	MimeType string `json:"mime_type"`
}

func NewLocalImageRepository(dir string) (ImageRepository, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create image directory %s: %w", dir, err)
	}
	return &localImageRepository{dir: dir}, nil
}

func (r *localImageRepository) GetImage(ctx context.Context, id string) (*domain.Image, error) {
	data, err := os.ReadFile(r.contentPath(id))
	if err != nil {
		return nil, fmt.Errorf("failed to read image %s: %w", id, err)
	}

	metaBytes, err := os.ReadFile(r.metaPath(id))
	if err != nil {
		return nil, fmt.Errorf("failed to read image metadata %s: %w", id, err)
	}

	var meta imageMetadata
	if err := json.Unmarshal(metaBytes, &meta); err != nil {
		return nil, fmt.Errorf("failed to decode image metadata %s: %w", id, err)
	}

	return &domain.Image{
		ID:       id,
		FileName: meta.FileName,
		MimeType: meta.MimeType,
		Bytes:    data,
	}, nil
}

func (r *localImageRepository) CreateImage(ctx context.Context, fileName string, data []byte, mimeType string) (string, error) {
	id := uuid.NewString()

	meta, err := json.Marshal(imageMetadata{FileName: fileName, MimeType: mimeType})
	if err != nil {
		return "", fmt.Errorf("failed to encode image metadata: %w", err)
	}

	if err := os.WriteFile(r.contentPath(id), data, 0o644); err != nil {
		return "", fmt.Errorf("failed to write image %s: %w", id, err)
	}

	if err := os.WriteFile(r.metaPath(id), meta, 0o644); err != nil {
		return "", fmt.Errorf("failed to write image metadata %s: %w", id, err)
	}

	return id, nil
}

func (r *localImageRepository) DeleteImage(ctx context.Context, id string) error {
	if err := os.Remove(r.contentPath(id)); err != nil {
		return fmt.Errorf("failed to remove image %s: %w", id, err)
	}
	if err := os.Remove(r.metaPath(id)); err != nil {
		return fmt.Errorf("failed to remove image metadata %s: %w", id, err)
	}
	return nil
}

func (r *localImageRepository) contentPath(id string) string {
	return filepath.Join(r.dir, id)
}

func (r *localImageRepository) metaPath(id string) string {
	return filepath.Join(r.dir, id+".meta")
}
