package network

import (
	"fmt"

	"github.com/aws/aws-sdk-go/aws/session"
	"github.com/aws/aws-sdk-go/service/s3"
)

// S3ObjectList lists the objects in a bucket, one page at a time.
type S3ObjectList struct {
	Config       S3Config
	ErrorMessage string

	ListObjectsInput *s3.ListObjectsInput
	Response         *s3.ListObjectsOutput

	session *session.Session
}

func NewS3ObjectList(config S3Config, bucket string, maxKeys int64) *S3ObjectList {
	listObjectsInput := &s3.ListObjectsInput{
		Bucket:  &bucket,
		MaxKeys: &maxKeys,
	}
	return &S3ObjectList{
		Config:           config,
		ListObjectsInput: listObjectsInput,
	}
}

// UseSession makes the client reuse an already resolved session
// instead of building its own. Backends that cache a session (for
// assumed-role credential leases) pass it in this way.
func (client *S3ObjectList) UseSession(_session *session.Session) {
	client.session = _session
}

// GetSession returns an S3 session for this object list.
func (client *S3ObjectList) GetSession() *session.Session {
	if client.session == nil {
		var err error
		client.session, err = GetS3Session(client.Config)
		if err != nil {
			client.ErrorMessage = err.Error()
		}
	}
	return client.session
}

// GetList returns a list of objects whose keys begin with prefix.
// Check *S3ObjectList.Response.IsTruncated to see if you got the
// complete list. If not, keep calling GetList until
// IsTruncated == false.
func (client *S3ObjectList) GetList(prefix string) {
	_session := client.GetSession()
	if _session == nil {
		return
	}
	var err error = nil
	service := s3.New(_session)

	client.ListObjectsInput.Prefix = &prefix
	if client.Response != nil && *client.Response.IsTruncated {
		// NextMarker is only populated when listing with a
		// delimiter; otherwise the last key serves as the marker.
		if client.Response.NextMarker != nil {
			client.ListObjectsInput.Marker = client.Response.NextMarker
		} else if len(client.Response.Contents) > 0 {
			client.ListObjectsInput.Marker =
				client.Response.Contents[len(client.Response.Contents)-1].Key
		}
	}

	client.Response, err = service.ListObjects(client.ListObjectsInput)
	if err != nil {
		client.ErrorMessage = err.Error()
	}
}

// All pages through the bucket and returns every object whose key
// begins with prefix.
func (client *S3ObjectList) All(prefix string) ([]*s3.Object, error) {
	objects := make([]*s3.Object, 0)
	for {
		client.GetList(prefix)
		if client.ErrorMessage != "" {
			return nil, fmt.Errorf("Error listing objects with prefix '%s': %s",
				prefix, client.ErrorMessage)
		}
		objects = append(objects, client.Response.Contents...)
		if client.Response.IsTruncated == nil || !*client.Response.IsTruncated {
			break
		}
	}
	return objects, nil
}
