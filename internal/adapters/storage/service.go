// Package storage resolves lead attachments in S3-compatible object storage
// to presigned URLs. Uploads are owned by a separate service.
package storage

import (
	"context"

	"leadmarket_backend/internal/leads/ports"
	"leadmarket_backend/platform/logger"

	"github.com/google/uuid"
)

// Presigner creates download URLs for stored objects.
type Presigner interface {
	PresignGet(ctx context.Context, bucket, fileKey string) (string, error)
}

// ThumbnailProvider implements ports.ThumbnailProvider: the first attachment
// of each lead becomes its thumbnail.
type ThumbnailProvider struct {
	files     ports.LeadFileIndex
	presigner Presigner
	bucket    string
	log       *logger.Logger
}

var _ ports.ThumbnailProvider = (*ThumbnailProvider)(nil)

// NewThumbnailProvider creates a thumbnail provider over bucket.
func NewThumbnailProvider(files ports.LeadFileIndex, presigner Presigner, bucket string, log *logger.Logger) *ThumbnailProvider {
	return &ThumbnailProvider{files: files, presigner: presigner, bucket: bucket, log: log}
}

// Thumbnails presigns the first attachment per lead. A key that fails to
// presign is left out; only a failed key lookup is an error.
func (p *ThumbnailProvider) Thumbnails(ctx context.Context, leadIDs []uuid.UUID) (map[uuid.UUID]string, error) {
	keys, err := p.files.FirstFileKeys(ctx, leadIDs)
	if err != nil {
		return nil, err
	}

	urls := make(map[uuid.UUID]string, len(keys))
	for leadID, key := range keys {
		u, err := p.presigner.PresignGet(ctx, p.bucket, key)
		if err != nil {
			p.log.Warn("thumbnail presign failed", "lead_id", leadID.String(), "error", err)
			continue
		}
		urls[leadID] = u
	}
	return urls, nil
}
