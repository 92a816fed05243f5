package storage

import (
	"context"
	"fmt"
	"io"
	"net/url"

	"github.com/Azure/azure-sdk-for-go/sdk/storage/azblob"
)

// BlobImageFetcher fetches image bytes from Azure blob storage. The
// blob URL path names the container and the "blob" query parameter
// names the blob, e.g. https://host/scans?blob=chest-xray-001.png
type BlobImageFetcher struct {
	client *azblob.Client
}

// NewBlobImageFetcher creates a fetcher authenticated with a shared key
func NewBlobImageFetcher(accountName, accountKey string) (*BlobImageFetcher, error) {
	credential, err := azblob.NewSharedKeyCredential(accountName, accountKey)
	if err != nil {
		return nil, err
	}

	client, err := azblob.NewClientWithSharedKeyCredential(
		fmt.Sprintf("https://%s.blob.core.windows.net", accountName),
		credential,
		nil,
	)
	if err != nil {
		return nil, err
	}

	return &BlobImageFetcher{client: client}, nil
}

// FetchImage implements ImageFetcher
func (f *BlobImageFetcher) FetchImage(ctx context.Context, blobURL string) ([]byte, error) {
	parsedURL, err := url.Parse(blobURL)
	if err != nil {
		return nil, fmt.Errorf("invalid blob URL: %w", err)
	}
	if len(parsedURL.Path) < 2 {
		return nil, fmt.Errorf("blob URL missing container name: %s", blobURL)
	}
	containerName := parsedURL.Path[1:] // Remove leading slash
	blobName := parsedURL.Query().Get("blob")
	if blobName == "" {
		return nil, fmt.Errorf("blob URL missing blob query parameter: %s", blobURL)
	}

	downloadResponse, err := f.client.DownloadStream(ctx, containerName, blobName, nil)
	if err != nil {
		return nil, fmt.Errorf("download failed: %w", err)
	}

	retryReader := downloadResponse.Body
	defer retryReader.Close()

	return io.ReadAll(retryReader)
}
