package network

import (
	"fmt"

	"github.com/minio/minio-go"
)

// StagingClient moves files in and out of the ingest staging bucket
// shared with the remote archival storage service. The staging store
// is a plain S3-compatible server, but unlike the object store spaces
// it always deals in whole local files, so the minio convenience
// calls fit it well.
type StagingClient struct {
	Endpoint  string
	AccessKey string
	SecretKey string
	UseSSL    bool

	client *minio.Client
}

// NewStagingClient returns a client for the staging store at endpoint.
func NewStagingClient(endpoint, accessKey, secretKey string, useSSL bool) (*StagingClient, error) {
	client, err := minio.New(endpoint, accessKey, secretKey, useSSL)
	if err != nil {
		return nil, fmt.Errorf("Error connecting to staging store at %s: %v", endpoint, err)
	}
	return &StagingClient{
		Endpoint:  endpoint,
		AccessKey: accessKey,
		SecretKey: secretKey,
		UseSSL:    useSSL,
		client:    client,
	}, nil
}

// Upload copies the local file at filePath into the staging bucket
// under key.
func (client *StagingClient) Upload(bucket, key, filePath, contentType string) error {
	_, err := client.client.FPutObject(bucket, key, filePath,
		minio.PutObjectOptions{ContentType: contentType})
	if err != nil {
		return fmt.Errorf("Error uploading '%s' to staging bucket %s as '%s': %v",
			filePath, bucket, key, err)
	}
	return nil
}

// Download copies the object at key in the staging bucket to the
// local file at filePath, creating parent directories as needed.
func (client *StagingClient) Download(bucket, key, filePath string) error {
	err := client.client.FGetObject(bucket, key, filePath, minio.GetObjectOptions{})
	if err != nil {
		return fmt.Errorf("Error downloading '%s' from staging bucket %s to '%s': %v",
			key, bucket, filePath, err)
	}
	return nil
}

// List returns the keys of all objects under prefix in the staging
// bucket.
func (client *StagingClient) List(bucket, prefix string) ([]string, error) {
	doneCh := make(chan struct{})
	defer close(doneCh)
	keys := make([]string, 0)
	for object := range client.client.ListObjects(bucket, prefix, true, doneCh) {
		if object.Err != nil {
			return nil, fmt.Errorf("Error listing staging bucket %s: %v", bucket, object.Err)
		}
		keys = append(keys, object.Key)
	}
	return keys, nil
}
