package locations

import (
	"os"
	"strings"
	"sync"

	"github.com/artefactual-labs/spaces"
	"github.com/artefactual-labs/spaces/models"
	"github.com/artefactual-labs/spaces/network"
	"github.com/artefactual-labs/spaces/util"
	"github.com/artefactual-labs/spaces/util/fileutil"
	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/session"
	"github.com/aws/aws-sdk-go/service/s3"
	"github.com/gabriel-vasile/mimetype"
	"github.com/op/go-logging"
	"github.com/warpfork/go-errcat"
)

// Batch size for bulk deletes, which is also the S3 API's limit.
const deleteBatchSize = 1000

// ObjectStoreConfig is the protocol-specific configuration record for
// an S3 space. Bucket defaults to the owning space's UUID.
type ObjectStoreConfig struct {
	Endpoint        string `json:"endpoint"`
	Region          string `json:"region"`
	Bucket          string `json:"bucket"`
	AccessKeyID     string `json:"access_key_id"`
	SecretAccessKey string `json:"secret_access_key"`
	RoleARN         string `json:"role_arn"`
}

// ObjectStore implements the space contract against an S3-compatible
// object store.
type ObjectStore struct {
	space  *models.Space
	config ObjectStoreConfig
	log    *logging.Logger

	sessionOnce sync.Once
	session     *session.Session
	sessionErr  error
}

func NewObjectStore(space *models.Space, config ObjectStoreConfig, log *logging.Logger) *ObjectStore {
	return &ObjectStore{
		space:  space,
		config: config,
		log:    log,
	}
}

func (backend *ObjectStore) Protocol() string {
	return backend.space.AccessProtocol
}

func (backend *ObjectStore) Space() *models.Space {
	return backend.space
}

// BucketName returns the configured bucket, or the owning space's
// UUID when no bucket is configured.
func (backend *ObjectStore) BucketName() string {
	if backend.config.Bucket != "" {
		return backend.config.Bucket
	}
	return backend.space.UUID
}

func (backend *ObjectStore) s3Config() network.S3Config {
	return network.S3Config{
		Region:          backend.config.Region,
		Endpoint:        backend.config.Endpoint,
		AccessKeyID:     backend.config.AccessKeyID,
		SecretAccessKey: backend.config.SecretAccessKey,
		RoleARN:         backend.config.RoleARN,
	}
}

// getSession resolves the backend's session exactly once. With an
// assumed role configured, the session carries a self-renewing
// credential lease, so the cached session stays valid for the life of
// the backend.
func (backend *ObjectStore) getSession() (*session.Session, error) {
	backend.sessionOnce.Do(func() {
		backend.session, backend.sessionErr = network.GetS3Session(backend.s3Config())
	})
	return backend.session, backend.sessionErr
}

// EnsureBucketExists creates the backend's bucket if the store
// reports it missing.
func (backend *ObjectStore) EnsureBucketExists() error {
	return network.EnsureBucket(backend.s3Config(), backend.BucketName())
}

// Browse lists all objects whose key has the given prefix and
// partitions them into immediate-child directories versus leaf
// entries.
func (backend *ObjectStore) Browse(path string) (*BrowseResult, error) {
	prefix := normalizeBrowsePrefix(path)
	objects, err := backend.listObjects(prefix)
	if err != nil {
		return nil, err
	}
	return partitionObjects(prefix, objects), nil
}

// DeletePath deletes every object under the key prefix. Zero matching
// objects is not an error.
func (backend *ObjectStore) DeletePath(path string) error {
	prefix := strings.TrimLeft(path, "/")
	objects, err := backend.listObjects(prefix)
	if err != nil {
		return err
	}
	keys := make([]string, len(objects))
	for i, object := range objects {
		keys[i] = util.PointerToString(object.Key)
	}
	for start := 0; start < len(keys); start += deleteBatchSize {
		end := start + deleteBatchSize
		if end > len(keys) {
			end = len(keys)
		}
		deleter := network.NewS3ObjectDelete(backend.s3Config(), backend.BucketName(), keys[start:end])
		if _session, err := backend.getSession(); err == nil {
			deleter.UseSession(_session)
		}
		deleter.DeleteList()
		if deleter.ErrorMessage != "" {
			return errcat.Errorf(spaces.ErrStorage,
				"Error deleting objects under '%s': %s", prefix, deleter.ErrorMessage)
		}
	}
	return nil
}

// MoveToStorageService downloads every object under the src prefix
// into the local directory tree rooted at destPath, preserving the
// relative path under the prefix.
func (backend *ObjectStore) MoveToStorageService(srcPath, destPath string, destSpace *models.Space) error {
	if err := backend.EnsureBucketExists(); err != nil {
		return err
	}
	srcPrefix := strings.TrimLeft(srcPath, "/")
	objects, err := backend.listObjects(srcPrefix)
	if err != nil {
		return err
	}
	for _, object := range objects {
		key := util.PointerToString(object.Key)
		destFile := strings.Replace(key, srcPrefix, destPath, 1)
		download := network.NewS3Download(backend.s3Config(), backend.BucketName(), key, destFile)
		if _session, err := backend.getSession(); err == nil {
			download.UseSession(_session)
		}
		download.Fetch()
		if download.ErrorMessage != "" {
			return errcat.Errorf(spaces.ErrStorage,
				"Error downloading '%s' to '%s': %s", key, destFile, download.ErrorMessage)
		}
		backend.log.Info("Downloaded %s to %s (%d bytes)", key, destFile, download.BytesCopied)
	}
	return nil
}

// MoveFromStorageService uploads the file or directory tree at
// srcPath to the corresponding object keys under destPath.
func (backend *ObjectStore) MoveFromStorageService(srcPath, destPath string, pkg *models.Package) error {
	if err := backend.EnsureBucketExists(); err != nil {
		return err
	}
	if fileutil.IsDir(srcPath) {
		srcPath = strings.TrimSuffix(srcPath, string(os.PathSeparator)) + string(os.PathSeparator)
		destPath = strings.TrimLeft(strings.TrimSuffix(destPath, "/")+"/", "/")
		files, err := fileutil.RecursiveFileList(srcPath)
		if err != nil {
			return errcat.Errorf(spaces.ErrStorage,
				"Error listing '%s': %v", srcPath, err)
		}
		for _, file := range files {
			key := strings.Replace(file, srcPath, destPath, 1)
			if err := backend.uploadFile(file, key); err != nil {
				return err
			}
		}
		return nil
	}
	if fileutil.IsFile(srcPath) {
		return backend.uploadFile(srcPath, strings.TrimLeft(destPath, "/"))
	}
	return errcat.Errorf(spaces.ErrStorage,
		"%s is neither a file nor a directory, may not exist", srcPath)
}

func (backend *ObjectStore) uploadFile(filePath, key string) error {
	contentType := "application/octet-stream"
	if mime, err := mimetype.DetectFile(filePath); err == nil {
		contentType = mime.String()
	}
	file, err := os.Open(filePath)
	if err != nil {
		return errcat.Errorf(spaces.ErrStorage,
			"Error opening '%s' for upload: %v", filePath, err)
	}
	defer file.Close()
	upload := network.NewS3Upload(backend.s3Config(), backend.BucketName(), key, contentType)
	if _session, err := backend.getSession(); err == nil {
		upload.UseSession(_session)
	}
	upload.Send(file)
	if upload.ErrorMessage != "" {
		return errcat.Errorf(spaces.ErrStorage,
			"Error uploading '%s' to '%s': %s", filePath, key, upload.ErrorMessage)
	}
	backend.log.Info("Uploaded %s to %s", filePath, key)
	return nil
}

func (backend *ObjectStore) listObjects(prefix string) ([]*s3.Object, error) {
	list := network.NewS3ObjectList(backend.s3Config(), backend.BucketName(), deleteBatchSize)
	if _session, err := backend.getSession(); err == nil {
		list.UseSession(_session)
	}
	objects, err := list.All(prefix)
	if err != nil {
		return nil, errcat.Errorf(spaces.ErrStorage, "%v", err)
	}
	return objects, nil
}

// normalizeBrowsePrefix strips a leading slash and forces a trailing
// slash on non-empty prefixes, because a path like "path/to/requirements"
// would happily prefix-match "path/to/requirements.txt", which is not
// the intention.
func normalizeBrowsePrefix(path string) string {
	path = strings.TrimLeft(path, "/")
	if path != "" {
		path = strings.TrimRight(path, "/") + "/"
	}
	return path
}

// partitionObjects splits a listing into immediate-child directories
// versus leaf entries. Directories also appear in Entries; only leaf
// entries get size, timestamp and etag properties.
func partitionObjects(prefix string, objects []*s3.Object) *BrowseResult {
	result := EmptyBrowseResult()
	seen := make(map[string]bool)
	for _, object := range objects {
		relativeKey := strings.TrimLeft(strings.Replace(util.PointerToString(object.Key), prefix, "", 1), "/")
		if idx := strings.Index(relativeKey, "/"); idx >= 0 {
			directoryName := relativeKey[:idx]
			if directoryName != "" && !seen[directoryName] {
				seen[directoryName] = true
				result.Directories = append(result.Directories, directoryName)
				result.Entries = append(result.Entries, directoryName)
			}
		} else if relativeKey != "" && !seen[relativeKey] {
			seen[relativeKey] = true
			result.Entries = append(result.Entries, relativeKey)
			result.Properties[relativeKey] = &EntryProperties{
				Size:         util.PointerToInt64(object.Size),
				LastModified: aws.TimeValue(object.LastModified),
				ETag:         strings.Trim(util.PointerToString(object.ETag), `"`),
			}
		}
	}
	return result
}
