package storage

import (
	"context"
	"fmt"
	"io"
)

// BlobStore is the binary object store for photo originals and thumbnails.
// Paths follow originals/{listingId}/{photoId}.{ext} and
// thumbs/{listingId}/{photoId}_thumb.jpg.
type BlobStore interface {
	Upload(ctx context.Context, path string, data []byte) error
	Download(ctx context.Context, path string) ([]byte, error)
	// Open returns a reader for streaming, e.g. into a ZIP archive.
	Open(ctx context.Context, path string) (io.ReadCloser, error)
	// Delete removes a blob; deleting a missing blob is not an error.
	Delete(ctx context.Context, path string) error
}

// OriginalPath is the blob path of a photo's original bytes.
func OriginalPath(listingID, photoID, ext string) string {
	return fmt.Sprintf("originals/%s/%s.%s", listingID, photoID, ext)
}

// ThumbPath is the blob path of a photo's JPEG thumbnail.
func ThumbPath(listingID, photoID string) string {
	return fmt.Sprintf("thumbs/%s/%s_thumb.jpg", listingID, photoID)
}
