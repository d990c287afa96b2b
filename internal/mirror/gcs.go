package mirror

import (
	"context"
	"io"
	"strings"

	"cloud.google.com/go/storage"
	"google.golang.org/api/iterator"
	"google.golang.org/api/option"

	apperrors "muwi-backup/internal/errors"
)

// GCSProvider mirrors copies into a Google Cloud Storage bucket
type GCSProvider struct {
	client *storage.Client
	bucket string
	prefix string
}

// NewGCSProvider creates a new GCSProvider instance
func NewGCSProvider(ctx context.Context, config *GCSConfig, prefix string) (*GCSProvider, error) {
	if config == nil {
		return nil, apperrors.NewAppError(apperrors.ErrorTypeValidation, "GCS mirror configuration is required", nil)
	}
	if err := config.Validate(); err != nil {
		return nil, apperrors.NewAppError(apperrors.ErrorTypeValidation, "invalid GCS mirror configuration", err)
	}

	var client *storage.Client
	var err error
	if config.CredentialsPath != "" {
		client, err = storage.NewClient(ctx, option.WithCredentialsFile(config.CredentialsPath))
	} else {
		client, err = storage.NewClient(ctx)
	}
	if err != nil {
		return nil, storageError("failed to create GCS client", err)
	}

	return &GCSProvider{client: client, bucket: config.Bucket, prefix: prefix}, nil
}

// Put uploads a copy
func (gp *GCSProvider) Put(ctx context.Context, name string, content []byte) error {
	writer := gp.client.Bucket(gp.bucket).Object(gp.prefix + name).NewWriter(ctx)
	writer.ContentType = "application/octet-stream"

	if _, err := writer.Write(content); err != nil {
		writer.Close()
		return storageError("failed to upload mirror copy to GCS", err)
	}
	if err := writer.Close(); err != nil {
		return storageError("failed to finalize mirror copy in GCS", err)
	}
	return nil
}

// Get downloads a copy
func (gp *GCSProvider) Get(ctx context.Context, name string) ([]byte, error) {
	reader, err := gp.client.Bucket(gp.bucket).Object(gp.prefix + name).NewReader(ctx)
	if err != nil {
		return nil, storageError("failed to open mirror copy in GCS", err)
	}
	defer reader.Close()

	content, err := io.ReadAll(reader)
	if err != nil {
		return nil, storageError("failed to read mirror copy from GCS", err)
	}
	return content, nil
}

// List returns the copies under the prefix
func (gp *GCSProvider) List(ctx context.Context) ([]Object, error) {
	var objects []Object
	it := gp.client.Bucket(gp.bucket).Objects(ctx, &storage.Query{Prefix: gp.prefix})
	for {
		attrs, err := it.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, storageError("failed to list mirror copies in GCS", err)
		}

		name := strings.TrimPrefix(attrs.Name, gp.prefix)
		if name == "" || strings.Contains(name, "/") {
			continue
		}
		objects = append(objects, Object{Name: name, Size: attrs.Size, ModTime: attrs.Updated})
	}
	return objects, nil
}

// Delete removes the named copies
func (gp *GCSProvider) Delete(ctx context.Context, names []string) error {
	bucket := gp.client.Bucket(gp.bucket)
	for _, name := range names {
		if err := bucket.Object(gp.prefix + name).Delete(ctx); err != nil && err != storage.ErrObjectNotExist {
			return storageError("failed to delete mirror copy from GCS", err)
		}
	}
	return nil
}

// Describe returns the bucket URL
func (gp *GCSProvider) Describe() string {
	return "gs://" + gp.bucket + "/" + gp.prefix
}

// Close releases the GCS client
func (gp *GCSProvider) Close() error {
	return gp.client.Close()
}
