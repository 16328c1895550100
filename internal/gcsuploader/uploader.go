package gcsuploader

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os"
	"path"
	"strings"
	"time"

	"cloud.google.com/go/storage"
)

const uploadTimeout = 2 * time.Minute

// UploadFileWithClient uploads a local feed file. JSON files get an
// application/json content type.
func UploadFileWithClient(ctx context.Context, client *storage.Client, bucketName, objectName, filePath string) error {
	f, err := os.Open(filePath)
	if err != nil {
		return fmt.Errorf("UploadFile: open file %q: %w", filePath, err)
	}
	defer f.Close()

	contentType := ""
	if strings.EqualFold(path.Ext(filePath), ".json") {
		contentType = "application/json"
	}

	return write(ctx, client, bucketName, objectName, contentType, f)
}

// UploadBytesWithClient uploads an in-memory payload.
func UploadBytesWithClient(ctx context.Context, client *storage.Client, bucketName, objectName, contentType string, data []byte) error {
	return write(ctx, client, bucketName, objectName, contentType, bytes.NewReader(data))
}

func write(ctx context.Context, client *storage.Client, bucketName, objectName, contentType string, src io.Reader) error {
	ctx, cancel := context.WithTimeout(ctx, uploadTimeout)
	defer cancel()

	w := client.Bucket(bucketName).Object(objectName).NewWriter(ctx)
	if contentType != "" {
		w.ContentType = contentType
	}

	if _, err := io.Copy(w, src); err != nil {
		_ = w.Close()
		return fmt.Errorf("upload %s/%s: copy: %w", bucketName, objectName, err)
	}

	// Close finalizes the upload.
	if err := w.Close(); err != nil {
		return fmt.Errorf("upload %s/%s: finalize: %w", bucketName, objectName, err)
	}

	return nil
}

// ParseGCSURI splits gs://bucket/path/to/object into bucket and object.
func ParseGCSURI(uri string) (bucket, object string, err error) {
	if !strings.HasPrefix(uri, "gs://") {
		return "", "", fmt.Errorf("invalid GCS URI: %s", uri)
	}

	parts := strings.SplitN(strings.TrimPrefix(uri, "gs://"), "/", 2)
	if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
		return "", "", fmt.Errorf("invalid GCS URI (no object path): %s", uri)
	}

	return parts[0], parts[1], nil
}

// ExtractFilenameFromGCSURI returns the last path element of a GCS URI,
// e.g. "gs://bucket/feeds/2024-06.json" gives "2024-06.json".
func ExtractFilenameFromGCSURI(uri string) string {
	trimmed := strings.TrimPrefix(uri, "gs://")

	parts := strings.SplitN(trimmed, "/", 2)
	if len(parts) < 2 {
		return trimmed
	}

	return path.Base(parts[1])
}
