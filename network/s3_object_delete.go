package network

import (
	"fmt"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/session"
	"github.com/aws/aws-sdk-go/service/s3"
)

// S3ObjectDelete wraps an S3 client that performs delete
// operations on S3 objects.
type S3ObjectDelete struct {
	Config       S3Config
	ErrorMessage string

	DeleteObjectsInput *s3.DeleteObjectsInput
	Response           *s3.DeleteObjectsOutput

	session *session.Session
}

// NewS3ObjectDelete returns a new S3ObjectDelete object. Param bucket
// is the name of the bucket that contains the keys you want to delete.
// Param keys is a list of keys you want to delete from that bucket.
func NewS3ObjectDelete(config S3Config, bucket string, keys []string) *S3ObjectDelete {
	objects := make([]*s3.ObjectIdentifier, len(keys))
	for i := range keys {
		objects[i] = &s3.ObjectIdentifier{
			Key: aws.String(keys[i]),
		}
	}
	deleteObjectsInput := &s3.DeleteObjectsInput{
		Bucket: &bucket,
		Delete: &s3.Delete{
			Objects: objects,
		},
	}
	return &S3ObjectDelete{
		Config:             config,
		DeleteObjectsInput: deleteObjectsInput,
	}
}

// UseSession makes the client reuse an already resolved session.
func (client *S3ObjectDelete) UseSession(_session *session.Session) {
	client.session = _session
}

// GetSession returns an S3 session for this object.
func (client *S3ObjectDelete) GetSession() *session.Session {
	if client.session == nil {
		var err error
		client.session, err = GetS3Session(client.Config)
		if err != nil {
			client.ErrorMessage = err.Error()
		}
	}
	return client.session
}

// DeleteList deletes the list of keys you specified. Check
// ErrorMessage afterward to see if anything failed. Detailed errors
// will be in Response.Errors.
//
// Note that if you try to delete keys that don't exist, you will not
// get an error, and those keys will be shown as deleted in
// Response.Deleted. That's AWS' design decision.
func (client *S3ObjectDelete) DeleteList() {
	_session := client.GetSession()
	if _session == nil {
		return
	}
	var err error = nil
	service := s3.New(_session)

	client.Response, err = service.DeleteObjects(client.DeleteObjectsInput)
	if err != nil {
		client.ErrorMessage = err.Error()
		return
	}
	for _, deleteError := range client.Response.Errors {
		client.ErrorMessage += fmt.Sprintf("Error deleting key '%s': %s. ",
			aws.StringValue(deleteError.Key), aws.StringValue(deleteError.Message))
	}
}
