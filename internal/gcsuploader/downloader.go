package gcsuploader

import (
	"context"
	"fmt"
	"io"

	"cloud.google.com/go/storage"
)

// DownloadFileWithClient reads a whole object into memory.
func DownloadFileWithClient(ctx context.Context, client *storage.Client, bucketName, objectName string) ([]byte, error) {
	r, err := client.Bucket(bucketName).Object(objectName).NewReader(ctx)
	if err != nil {
		return nil, fmt.Errorf("DownloadFile: opening %s/%s: %w", bucketName, objectName, err)
	}
	defer r.Close()

	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("DownloadFile: reading %s/%s: %w", bucketName, objectName, err)
	}

	return data, nil
}
