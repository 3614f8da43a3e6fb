package storage

import (
	"context"
	"fmt"
	"time"

	"github.com/Azure/azure-sdk-for-go/sdk/azidentity"
	"github.com/Azure/azure-sdk-for-go/sdk/storage/azblob"
	"github.com/Azure/azure-sdk-for-go/sdk/storage/azblob/bloberror"
	"github.com/codeGROOVE-dev/retry"
	"github.com/sirupsen/logrus"
)

const uploadAttempts = 3

// BlobArchive keeps alert trail archives in an Azure Blob Storage container
type BlobArchive struct {
	client    *azblob.Client
	container string
}

// Ensure BlobArchive implements ArchiveStore
var _ ArchiveStore = (*BlobArchive)(nil)

// NewBlobArchive creates a blob client using the default Azure credential
// chain and makes sure the archive container exists.
func NewBlobArchive(ctx context.Context, accountName, container string) (*BlobArchive, error) {
	if accountName == "" {
		return nil, fmt.Errorf("archive storage account is required")
	}
	if container == "" {
		return nil, fmt.Errorf("archive container is required")
	}

	credential, err := azidentity.NewDefaultAzureCredential(nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create Azure credential: %w", err)
	}

	serviceURL := fmt.Sprintf("https://%s.blob.core.windows.net/", accountName)
	client, err := azblob.NewClient(serviceURL, credential, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create archive blob client: %w", err)
	}

	s := &BlobArchive{
		client:    client,
		container: container,
	}

	if err := s.ensureContainer(ctx); err != nil {
		return nil, fmt.Errorf("failed to prepare archive container: %w", err)
	}

	return s, nil
}

func (s *BlobArchive) ensureContainer(ctx context.Context) error {
	_, err := s.client.CreateContainer(ctx, s.container, nil)
	if err == nil {
		logrus.Infof("Created archive container %s", s.container)
		return nil
	}
	if bloberror.HasCode(err, bloberror.ContainerAlreadyExists) {
		logrus.Debugf("Archive container %s already exists", s.container)
		return nil
	}
	return fmt.Errorf("failed to create archive container: %w", err)
}

// Store uploads data, retrying transient failures
func (s *BlobArchive) Store(ctx context.Context, filename string, data []byte) error {
	err := retry.Do(
		func() error {
			_, err := s.client.UploadBuffer(ctx, s.container, filename, data, &azblob.UploadBufferOptions{
				BlockSize:   int64(1024 * 1024),
				Concurrency: 3,
			})
			if bloberror.HasCode(err, bloberror.AuthenticationFailed, bloberror.AuthorizationFailure, bloberror.ContainerNotFound) {
				return retry.Unrecoverable(err)
			}
			return err
		},
		retry.Attempts(uploadAttempts),
		retry.Delay(time.Second),
		retry.MaxDelay(30*time.Second),
		retry.Context(ctx),
		retry.OnRetry(func(n uint, err error) {
			logrus.Warnf("Upload of %s failed (attempt %d): %v", filename, n+1, err)
		}),
	)
	if err != nil {
		return fmt.Errorf("failed to upload archive %s: %w", filename, err)
	}

	logrus.Infof("Archived %s to container %s", filename, s.container)
	return nil
}

// List returns blob names in the container starting with prefix
func (s *BlobArchive) List(ctx context.Context, prefix string) ([]string, error) {
	var names []string
	pager := s.client.NewListBlobsFlatPager(s.container, &azblob.ListBlobsFlatOptions{
		Prefix: &prefix,
	})

	for pager.More() {
		page, err := pager.NextPage(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to list archives: %w", err)
		}
		for _, blob := range page.Segment.BlobItems {
			if blob.Name != nil {
				names = append(names, *blob.Name)
			}
		}
	}

	return names, nil
}

// Delete removes a blob. A blob that is already gone is not an error.
func (s *BlobArchive) Delete(ctx context.Context, filename string) error {
	_, err := s.client.DeleteBlob(ctx, s.container, filename, nil)
	if err != nil && !bloberror.HasCode(err, bloberror.BlobNotFound) {
		return fmt.Errorf("failed to delete archive %s: %w", filename, err)
	}

	logrus.Infof("Pruned archive %s", filename)
	return nil
}
