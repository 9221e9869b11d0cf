package network

import (
	"io"

	"github.com/aws/aws-sdk-go/aws/session"
	"github.com/aws/aws-sdk-go/service/s3/s3manager"
)

// S3Upload uploads one object to an S3-compatible store.
//
// Typical usage:
//
// upload := NewS3Upload(config, bucket, "births-2018/bag.tar.gz", "application/gzip")
// reader, err := os.Open("/path/to/bag.tar.gz")
// if err != nil {
//    ... whatever ...
// }
// defer reader.Close()
// upload.Send(reader)
// if upload.ErrorMessage != "" {
//    ... do something ...
// }
// urlOfNewItem := upload.Response.Location
type S3Upload struct {
	Config       S3Config
	ErrorMessage string
	UploadInput  *s3manager.UploadInput
	Response     *s3manager.UploadOutput
	session      *session.Session
}

func NewS3Upload(config S3Config, bucket, key, contentType string) *S3Upload {
	uploadInput := &s3manager.UploadInput{
		Bucket:      &bucket,
		Key:         &key,
		ContentType: &contentType,
	}
	uploadInput.Metadata = make(map[string]*string)
	return &S3Upload{
		Config:      config,
		UploadInput: uploadInput,
	}
}

// UseSession makes the client reuse an already resolved session.
func (client *S3Upload) UseSession(_session *session.Session) {
	client.session = _session
}

// GetSession returns an S3 session for this upload.
func (client *S3Upload) GetSession() *session.Session {
	if client.session == nil {
		var err error
		client.session, err = GetS3Session(client.Config)
		if err != nil {
			client.ErrorMessage = err.Error()
		}
	}
	return client.session
}

// AddMetadata adds an x-amz-meta-* header to the upload.
func (client *S3Upload) AddMetadata(key, value string) {
	client.UploadInput.Metadata[key] = &value
}

// Send uploads the reader's content to S3. If ErrorMessage == "", the
// upload succeeded. Caller is responsible for closing the reader.
func (client *S3Upload) Send(reader io.Reader) {
	_session := client.GetSession()
	if _session == nil {
		return
	}
	client.UploadInput.Body = reader
	uploader := s3manager.NewUploader(_session, func(u *s3manager.Uploader) {
		// Don't leave orphan parts behind after a failed multipart upload.
		u.LeavePartsOnError = false
	})
	var err error
	client.Response, err = uploader.Upload(client.UploadInput)
	if err != nil {
		client.ErrorMessage = err.Error()
	}
}
