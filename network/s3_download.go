package network

import (
	"os"
	"path/filepath"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/session"
	"github.com/aws/aws-sdk-go/service/s3"
	"github.com/aws/aws-sdk-go/service/s3/s3manager"
)

// S3Download fetches one object from an S3-compatible store into a
// local file, creating parent directories as needed.
type S3Download struct {
	Config       S3Config
	BucketName   string
	KeyName      string
	LocalPath    string
	BytesCopied  int64
	ErrorMessage string

	session *session.Session
}

// NewS3Download sets up a new S3 download. Params:
//
// config     - Connection settings for the object store.
// bucketName - The name of the bucket to download from.
// keyName    - The key of the object to download.
// localPath  - Path to which to save the downloaded file.
func NewS3Download(config S3Config, bucketName, keyName, localPath string) *S3Download {
	return &S3Download{
		Config:     config,
		BucketName: bucketName,
		KeyName:    keyName,
		LocalPath:  localPath,
	}
}

// UseSession makes the client reuse an already resolved session.
func (client *S3Download) UseSession(_session *session.Session) {
	client.session = _session
}

// GetSession returns an S3 session for this download.
func (client *S3Download) GetSession() *session.Session {
	if client.session == nil {
		var err error
		client.session, err = GetS3Session(client.Config)
		if err != nil {
			client.ErrorMessage = err.Error()
		}
	}
	return client.session
}

// Fetch downloads the object. If ErrorMessage == "", the download
// succeeded and BytesCopied says how much data landed in LocalPath.
func (client *S3Download) Fetch() {
	_session := client.GetSession()
	if _session == nil {
		return
	}
	err := os.MkdirAll(filepath.Dir(client.LocalPath), 0755)
	if err != nil {
		client.ErrorMessage = err.Error()
		return
	}
	file, err := os.Create(client.LocalPath)
	if err != nil {
		client.ErrorMessage = err.Error()
		return
	}
	defer file.Close()

	downloader := s3manager.NewDownloader(_session)
	client.BytesCopied, err = downloader.Download(file, &s3.GetObjectInput{
		Bucket: aws.String(client.BucketName),
		Key:    aws.String(client.KeyName),
	})
	if err != nil {
		client.ErrorMessage = err.Error()
	}
}
