package mirror

import (
	"context"
	"fmt"
	"io"
	"net/url"
	"strings"

	"github.com/Azure/azure-storage-blob-go/azblob"

	apperrors "muwi-backup/internal/errors"
)

// AzureProvider mirrors copies into an Azure Blob Storage container
type AzureProvider struct {
	containerURL azblob.ContainerURL
	container    string
	prefix       string
}

// NewAzureProvider creates a new AzureProvider instance
func NewAzureProvider(config *AzureConfig, prefix string) (*AzureProvider, error) {
	if config == nil {
		return nil, apperrors.NewAppError(apperrors.ErrorTypeValidation, "Azure mirror configuration is required", nil)
	}
	if err := config.Validate(); err != nil {
		return nil, apperrors.NewAppError(apperrors.ErrorTypeValidation, "invalid Azure mirror configuration", err)
	}

	credential, err := azblob.NewSharedKeyCredential(config.AccountName, config.AccountKey)
	if err != nil {
		return nil, storageError("failed to create Azure credentials", err)
	}

	serviceURL, err := url.Parse(fmt.Sprintf("https://%s.blob.core.windows.net", config.AccountName))
	if err != nil {
		return nil, storageError("failed to parse Azure service URL", err)
	}

	pipeline := azblob.NewPipeline(credential, azblob.PipelineOptions{})
	return &AzureProvider{
		containerURL: azblob.NewServiceURL(*serviceURL, pipeline).NewContainerURL(config.ContainerName),
		container:    config.ContainerName,
		prefix:       prefix,
	}, nil
}

// Put uploads a copy as a block blob
func (ap *AzureProvider) Put(ctx context.Context, name string, content []byte) error {
	blobURL := ap.containerURL.NewBlockBlobURL(ap.prefix + name)
	_, err := azblob.UploadBufferToBlockBlob(ctx, content, blobURL, azblob.UploadToBlockBlobOptions{
		BlobHTTPHeaders: azblob.BlobHTTPHeaders{ContentType: "application/octet-stream"},
	})
	if err != nil {
		return storageError("failed to upload mirror copy to Azure", err)
	}
	return nil
}

// Get downloads a copy
func (ap *AzureProvider) Get(ctx context.Context, name string) ([]byte, error) {
	blobURL := ap.containerURL.NewBlobURL(ap.prefix + name)
	response, err := blobURL.Download(ctx, 0, azblob.CountToEnd, azblob.BlobAccessConditions{}, false, azblob.ClientProvidedKeyOptions{})
	if err != nil {
		return nil, storageError("failed to download mirror copy from Azure", err)
	}

	body := response.Body(azblob.RetryReaderOptions{MaxRetryRequests: 20})
	defer body.Close()

	content, err := io.ReadAll(body)
	if err != nil {
		return nil, storageError("failed to read mirror copy from Azure", err)
	}
	return content, nil
}

// List returns the copies under the prefix
func (ap *AzureProvider) List(ctx context.Context) ([]Object, error) {
	var objects []Object
	for marker := (azblob.Marker{}); marker.NotDone(); {
		response, err := ap.containerURL.ListBlobsFlatSegment(ctx, marker, azblob.ListBlobsSegmentOptions{
			Prefix: ap.prefix,
		})
		if err != nil {
			return nil, storageError("failed to list mirror copies in Azure", err)
		}

		for _, blob := range response.Segment.BlobItems {
			name := strings.TrimPrefix(blob.Name, ap.prefix)
			if name == "" || strings.Contains(name, "/") {
				continue
			}
			var size int64
			if blob.Properties.ContentLength != nil {
				size = *blob.Properties.ContentLength
			}
			objects = append(objects, Object{Name: name, Size: size, ModTime: blob.Properties.LastModified})
		}
		marker = response.NextMarker
	}
	return objects, nil
}

// Delete removes the named copies with their snapshots
func (ap *AzureProvider) Delete(ctx context.Context, names []string) error {
	for _, name := range names {
		blobURL := ap.containerURL.NewBlobURL(ap.prefix + name)
		if _, err := blobURL.Delete(ctx, azblob.DeleteSnapshotsOptionInclude, azblob.BlobAccessConditions{}); err != nil {
			return storageError("failed to delete mirror copy from Azure", err)
		}
	}
	return nil
}

// Describe returns the container URL
func (ap *AzureProvider) Describe() string {
	return "azure://" + ap.container + "/" + ap.prefix
}
