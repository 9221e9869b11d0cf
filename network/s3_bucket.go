package network

import (
	"github.com/artefactual-labs/spaces"
	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/awserr"
	"github.com/aws/aws-sdk-go/service/s3"
	"github.com/warpfork/go-errcat"
)

// EnsureBucket checks that the named bucket exists, creating it if
// the store reports it missing. A probe failure that is not a plain
// "no such bucket" is returned as a storage error.
func EnsureBucket(config S3Config, bucket string) error {
	_session, err := GetS3Session(config)
	if err != nil {
		return errcat.Errorf(spaces.ErrStorage,
			"Error connecting to object store for bucket '%s': %v", bucket, err)
	}
	service := s3.New(_session)
	_, err = service.HeadBucket(&s3.HeadBucketInput{
		Bucket: aws.String(bucket),
	})
	if err == nil {
		return nil
	}
	if !isBucketMissing(err) {
		return errcat.Errorf(spaces.ErrStorage,
			"Error checking for bucket '%s': %v", bucket, err)
	}
	_, err = service.CreateBucket(&s3.CreateBucketInput{
		Bucket: aws.String(bucket),
	})
	if err != nil {
		return errcat.Errorf(spaces.ErrStorage,
			"Error creating bucket '%s': %v", bucket, err)
	}
	return nil
}

func isBucketMissing(err error) bool {
	if awsErr, ok := err.(awserr.Error); ok {
		code := awsErr.Code()
		return code == s3.ErrCodeNoSuchBucket || code == "NotFound"
	}
	return false
}
