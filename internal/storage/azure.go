package storage

import (
	"context"
	"fmt"
	"io"

	"github.com/Azure/azure-sdk-for-go/sdk/azidentity"
	"github.com/Azure/azure-sdk-for-go/sdk/storage/azblob"
	"github.com/Azure/azure-sdk-for-go/sdk/storage/azblob/bloberror"
	"github.com/sirupsen/logrus"
)

// AzureStorage archives recommendation runs and moderation reports in Blob Storage
type AzureStorage struct {
	client        *azblob.Client
	containerName string
}

// Ensure AzureStorage implements StorageInterface
var _ StorageInterface = (*AzureStorage)(nil)

// NewAzureStorage creates a blob client authenticated with the default credential chain
func NewAzureStorage(ctx context.Context, accountName, containerName string) (*AzureStorage, error) {
	if accountName == "" {
		return nil, fmt.Errorf("storage account name is required")
	}

	credential, err := azidentity.NewDefaultAzureCredential(nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create Azure credential: %w", err)
	}

	serviceURL := fmt.Sprintf("https://%s.blob.core.windows.net/", accountName)
	client, err := azblob.NewClient(serviceURL, credential, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create Azure blob client: %w", err)
	}

	storage := &AzureStorage{
		client:        client,
		containerName: containerName,
	}

	if err := storage.ensureContainer(ctx); err != nil {
		return nil, fmt.Errorf("failed to ensure container exists: %w", err)
	}

	return storage, nil
}

func (s *AzureStorage) ensureContainer(ctx context.Context) error {
	_, err := s.client.CreateContainer(ctx, s.containerName, nil)
	if err != nil {
		if !bloberror.HasCode(err, bloberror.ContainerAlreadyExists) {
			return fmt.Errorf("failed to create container: %w", err)
		}
		logrus.Debugf("Container %s already exists", s.containerName)
		return nil
	}

	logrus.Infof("Created container %s", s.containerName)
	return nil
}

// Store uploads an archive object
func (s *AzureStorage) Store(ctx context.Context, name string, data []byte) error {
	_, err := s.client.UploadBuffer(ctx, s.containerName, name, data, &azblob.UploadBufferOptions{
		BlockSize:   int64(1024 * 1024),
		Concurrency: 3,
	})
	if err != nil {
		return fmt.Errorf("failed to upload blob %s: %w", name, err)
	}

	logrus.WithFields(logrus.Fields{"blob": name, "bytes": len(data)}).Debug("Archived blob")
	return nil
}

// Retrieve downloads an archive object
func (s *AzureStorage) Retrieve(ctx context.Context, name string) ([]byte, error) {
	response, err := s.client.DownloadStream(ctx, s.containerName, name, nil)
	if err != nil {
		if bloberror.HasCode(err, bloberror.BlobNotFound) {
			return nil, fmt.Errorf("blob %s: %w", name, ErrNotFound)
		}
		return nil, fmt.Errorf("failed to download blob %s: %w", name, err)
	}
	defer response.Body.Close()

	data, err := io.ReadAll(response.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read blob content: %w", err)
	}

	return data, nil
}

// List returns the names of archive objects under prefix
func (s *AzureStorage) List(ctx context.Context, prefix string) ([]string, error) {
	var names []string
	pager := s.client.NewListBlobsFlatPager(s.containerName, &azblob.ListBlobsFlatOptions{
		Prefix: &prefix,
	})

	for pager.More() {
		page, err := pager.NextPage(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to list blobs: %w", err)
		}

		for _, blob := range page.Segment.BlobItems {
			if blob.Name != nil {
				names = append(names, *blob.Name)
			}
		}
	}

	return names, nil
}

// Delete removes an archive object
func (s *AzureStorage) Delete(ctx context.Context, name string) error {
	_, err := s.client.DeleteBlob(ctx, s.containerName, name, nil)
	if err != nil {
		if bloberror.HasCode(err, bloberror.BlobNotFound) {
			return nil
		}
		return fmt.Errorf("failed to delete blob %s: %w", name, err)
	}

	logrus.Infof("Deleted %s from Azure Blob Storage", name)
	return nil
}
