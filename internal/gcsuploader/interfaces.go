package gcsuploader

import (
	"context"
	"fmt"

	"cloud.google.com/go/storage"
)

// StorageService moves feed files in and out of Cloud Storage.
type StorageService interface {
	// UploadFile uploads a local file to bucketName/objectName.
	UploadFile(ctx context.Context, bucketName, objectName, filePath string) error

	// UploadBytes writes data to bucketName/objectName with the given content type.
	UploadBytes(ctx context.Context, bucketName, objectName, contentType string, data []byte) error

	// FetchFromGCS downloads the object behind a gs:// URI.
	FetchFromGCS(ctx context.Context, gcsURI string) ([]byte, error)
}

// GCSStorageService implements StorageService with one shared client.
type GCSStorageService struct {
	client *storage.Client
}

// NewGCSStorageService creates a storage client using Application Default
// Credentials.
func NewGCSStorageService(ctx context.Context) (*GCSStorageService, error) {
	client, err := storage.NewClient(ctx)
	if err != nil {
		return nil, fmt.Errorf("NewGCSStorageService: creating storage client: %w", err)
	}
	return &GCSStorageService{client: client}, nil
}

// Close releases the storage client.
func (s *GCSStorageService) Close() error {
	if s.client != nil {
		return s.client.Close()
	}
	return nil
}

// UploadFile implements StorageService.
func (s *GCSStorageService) UploadFile(ctx context.Context, bucketName, objectName, filePath string) error {
	return UploadFileWithClient(ctx, s.client, bucketName, objectName, filePath)
}

// UploadBytes implements StorageService.
func (s *GCSStorageService) UploadBytes(ctx context.Context, bucketName, objectName, contentType string, data []byte) error {
	return UploadBytesWithClient(ctx, s.client, bucketName, objectName, contentType, data)
}

// FetchFromGCS implements StorageService.
func (s *GCSStorageService) FetchFromGCS(ctx context.Context, gcsURI string) ([]byte, error) {
	bucketName, objectName, err := ParseGCSURI(gcsURI)
	if err != nil {
		return nil, fmt.Errorf("FetchFromGCS: %w", err)
	}
	return DownloadFileWithClient(ctx, s.client, bucketName, objectName)
}

var _ StorageService = (*GCSStorageService)(nil)
