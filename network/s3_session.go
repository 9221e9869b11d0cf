package network

import (
	"fmt"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/credentials"
	"github.com/aws/aws-sdk-go/aws/credentials/stscreds"
	"github.com/aws/aws-sdk-go/aws/session"
)

// S3Config carries everything needed to open a connection to an
// S3-compatible object store. Endpoint is empty for AWS proper; for
// MinIO and other compatible stores it is the server URL, and path
// style addressing is forced because those servers rarely support
// virtual-host bucket addressing. When AccessKeyID is empty the
// default AWS credential chain applies (environment, shared config,
// instance role).
type S3Config struct {
	Region          string
	Endpoint        string
	AccessKeyID     string
	SecretAccessKey string

	// RoleARN, when set, makes every request run under temporary
	// credentials for this assumed role. The credential lease renews
	// itself before expiry, so long-running copies spanning the
	// session duration keep working.
	RoleARN string
}

// GetS3Session returns an S3 session for the given config.
func GetS3Session(config S3Config) (*session.Session, error) {
	awsConfig := &aws.Config{
		Region: aws.String(config.Region),
	}
	if config.Endpoint != "" {
		awsConfig.Endpoint = aws.String(config.Endpoint)
		awsConfig.S3ForcePathStyle = aws.Bool(true)
	}
	if config.AccessKeyID != "" {
		awsConfig.Credentials = credentials.NewStaticCredentials(
			config.AccessKeyID, config.SecretAccessKey, "")
	}
	_session, err := session.NewSession(awsConfig)
	if err != nil {
		return nil, fmt.Errorf("Error creating AWS session: %v", err)
	}
	if config.RoleARN != "" {
		roleConfig := awsConfig.Copy()
		roleConfig.Credentials = stscreds.NewCredentials(_session, config.RoleARN)
		_session, err = session.NewSession(roleConfig)
		if err != nil {
			return nil, fmt.Errorf("Error creating AWS session for role %s: %v",
				config.RoleARN, err)
		}
	}
	return _session, nil
}
