package locations

import (
	"fmt"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/artefactual-labs/spaces"
	"github.com/artefactual-labs/spaces/constants"
	"github.com/artefactual-labs/spaces/identifier"
	"github.com/artefactual-labs/spaces/models"
	"github.com/artefactual-labs/spaces/store"
	"github.com/artefactual-labs/spaces/tarball"
	"github.com/artefactual-labs/spaces/util/fileutil"
	"github.com/gabriel-vasile/mimetype"
	"github.com/op/go-logging"
	"github.com/warpfork/go-errcat"
)

// RemoteArchiveConfig is the protocol-specific configuration record
// for a remote archival storage space: the API and its OAuth token
// endpoint, the staging object store shared with the remote service,
// and the callback endpoint we advertise on ingest creation.
type RemoteArchiveConfig struct {
	APIRootURL   string `json:"api_root_url"`
	TokenURL     string `json:"token_url"`
	ClientID     string `json:"client_id"`
	ClientSecret string `json:"client_secret"`

	// ArchiveSpace is the remote space packages are ingested into,
	// unless identifier resolution diverts them.
	ArchiveSpace string `json:"archive_space"`

	StagingEndpoint  string `json:"staging_endpoint"`
	StagingAccessKey string `json:"staging_access_key"`
	StagingSecretKey string `json:"staging_secret_key"`
	StagingUseSSL    bool   `json:"staging_use_ssl"`
	StagingBucket    string `json:"staging_bucket"`
	StagingPrefix    string `json:"staging_prefix"`

	CallbackBaseURL  string `json:"callback_base_url"`
	CallbackUsername string `json:"callback_username"`
	CallbackAPIKey   string `json:"callback_api_key"`
}

// archiveAPI is the remote ingest API surface the backend needs.
// Satisfied by network.ArchiveClient.
type archiveAPI interface {
	CreateIngest(space, externalIdentifier, ingestType, bucket, key, callbackUrl string) (string, error)
	GetIngest(locationRef string) (*models.Ingest, error)
	GetBag(space, externalIdentifier, version string) (*models.Bag, error)
}

// stagingStore moves files in and out of the object store shared with
// the remote service. Satisfied by network.StagingClient.
type stagingStore interface {
	Upload(bucket, key, filePath, contentType string) error
	Download(bucket, key, filePath string) error
	List(bucket, prefix string) ([]string, error)
}

// identifierResolver derives an external identifier for a package
// archive. Satisfied by identifier.Resolver.
type identifierResolver interface {
	Resolve(archivePath, packageUUID string) (*identifier.ExternalIdentifier, error)
}

// RemoteArchive implements the space contract against an asynchronous
// bag-archival service. Uploads stage the package in a shared object
// store, request a remote ingest, and then reconcile completion via a
// race between an inbound callback (which updates the package record
// out of band) and active polling of the remote job.
type RemoteArchive struct {
	space    *models.Space
	config   RemoteArchiveConfig
	api      archiveAPI
	staging  stagingStore
	resolver identifierResolver
	packages *store.PackageStore
	repack   *tarball.RepackPool
	log      *logging.Logger

	// waitFn sleeps between reconciliation sub-waits. Tests replace
	// it to run the loop without real delays.
	waitFn func(time.Duration)
}

func NewRemoteArchive(space *models.Space, config RemoteArchiveConfig, api archiveAPI,
	staging stagingStore, resolver identifierResolver, packages *store.PackageStore,
	repack *tarball.RepackPool, log *logging.Logger) *RemoteArchive {
	return &RemoteArchive{
		space:    space,
		config:   config,
		api:      api,
		staging:  staging,
		resolver: resolver,
		packages: packages,
		repack:   repack,
		log:      log,
		waitFn:   time.Sleep,
	}
}

func (backend *RemoteArchive) Protocol() string {
	return backend.space.AccessProtocol
}

func (backend *RemoteArchive) Space() *models.Space {
	return backend.space
}

// MoveFromStorageService uploads the package archive at srcPath to
// the staging store, requests a remote ingest, and blocks until the
// ingest reaches a terminal state. The package record is persisted in
// STAGING before the wait begins, so a process restart or an inbound
// callback can pick up reconciliation independently.
func (backend *RemoteArchive) MoveFromStorageService(srcPath, destPath string, pkg *models.Package) error {
	if !fileutil.IsFile(srcPath) {
		return errcat.Errorf(spaces.ErrStorage,
			"%s is neither a file nor a directory, may not exist", srcPath)
	}

	// Identifier resolution may rewrite the archive, so it has to
	// happen before the upload: the staged bytes must match the
	// identifier the ingest is recorded under.
	archiveSpace := backend.config.ArchiveSpace
	bagIdentifier := pkg.BagIdentifier()
	if bagIdentifier == "" {
		resolved, err := backend.resolver.Resolve(srcPath, pkg.UUID)
		if err != nil {
			return errcat.Errorf(spaces.ErrStorage,
				"Error resolving identifier for package %s: %v", pkg.UUID, err)
		}
		bagIdentifier = resolved.ExternalIdentifier
		archiveSpace = resolved.Space
		pkg.SetAttr(constants.AttrBagIdentifier, bagIdentifier)
		pkg.SetAttr(constants.AttrArchiveSpace, archiveSpace)
	} else if recorded := pkg.Attr(constants.AttrArchiveSpace); recorded != "" {
		archiveSpace = recorded
	}

	stagingKey := path.Join(backend.config.StagingPrefix, pkg.UUID, filepath.Base(srcPath))
	contentType := "application/octet-stream"
	if mime, err := mimetype.DetectFile(srcPath); err == nil {
		contentType = mime.String()
	}
	err := backend.staging.Upload(backend.config.StagingBucket, stagingKey, srcPath, contentType)
	if err != nil {
		return errcat.Errorf(spaces.ErrStorage,
			"Error staging package %s: %v", pkg.UUID, err)
	}

	ingestType, err := backend.ingestType(archiveSpace, bagIdentifier, pkg.UUID)
	if err != nil {
		return err
	}

	locationRef, err := backend.api.CreateIngest(archiveSpace, bagIdentifier, ingestType,
		backend.config.StagingBucket, stagingKey, backend.callbackURL(pkg.UUID))
	if err != nil {
		return err
	}
	backend.log.Info("Requested %s ingest of package %s as '%s' in space %s (ref %s)",
		ingestType, pkg.UUID, bagIdentifier, archiveSpace, locationRef)

	pkg.Status = constants.StatusStaging
	pkg.SetAttr(constants.AttrIngestRef, locationRef)
	if err = backend.packages.Save(pkg); err != nil {
		return errcat.Errorf(spaces.ErrStorage,
			"Error persisting package %s before ingest wait: %v", pkg.UUID, err)
	}

	backend.reconcile(pkg, locationRef)

	if pkg.Status == constants.StatusFail {
		return errcat.Errorf(spaces.ErrStorage, "Failed to store package %s", pkg.UUID)
	}
	return nil
}

// ingestType returns "create" for a first-time ingest and "update"
// when the remote service already holds a bag under this identifier.
// An identifier equal to the package UUID is always a create: the
// remote service has never seen it, so probing would only waste a
// round trip.
func (backend *RemoteArchive) ingestType(archiveSpace, bagIdentifier, packageUUID string) (string, error) {
	if bagIdentifier == packageUUID {
		return constants.IngestTypeCreate, nil
	}
	_, err := backend.api.GetBag(archiveSpace, bagIdentifier, "")
	if err == nil {
		return constants.IngestTypeUpdate, nil
	}
	if spaces.CategoryOf(err) == spaces.ErrBagNotFound {
		return constants.IngestTypeCreate, nil
	}
	return "", err
}

// callbackURL builds the URL the remote service POSTs the finished
// ingest body to. Empty when no callback base is configured, in which
// case reconciliation relies on polling alone.
func (backend *RemoteArchive) callbackURL(packageUUID string) string {
	if backend.config.CallbackBaseURL == "" {
		return ""
	}
	creds := url.Values{}
	creds.Set("username", backend.config.CallbackUsername)
	creds.Set("api_key", backend.config.CallbackAPIKey)
	return fmt.Sprintf("%s/api/%s/file/%s/callback?%s",
		strings.TrimRight(backend.config.CallbackBaseURL, "/"),
		constants.CallbackAPIVersion, packageUUID, creds.Encode())
}

// reconcile blocks while the package stays in STAGING. Each round is
// several short sub-waits, reloading the package after each so an
// inbound callback is noticed quickly; only after a full silent round
// does it query the remote status endpoint, treating the fetched body
// as authoritative because the callback is then assumed lost.
func (backend *RemoteArchive) reconcile(pkg *models.Package, locationRef string) {
	for pkg.Status == constants.StatusStaging {
		for i := 0; i < constants.IngestPollSubWaits && pkg.Status == constants.StatusStaging; i++ {
			backend.waitFn(constants.IngestPollSubWait)
			if err := backend.packages.Reload(pkg); err != nil {
				backend.log.Warning("Could not reload package %s: %v", pkg.UUID, err)
			}
		}
		if pkg.Status != constants.StatusStaging {
			break
		}
		ingest, err := backend.api.GetIngest(locationRef)
		if err != nil {
			backend.log.Warning("Error polling ingest %s for package %s: %v",
				locationRef, pkg.UUID, err)
			continue
		}
		if ingest.Status.ID == constants.IngestProcessing ||
			ingest.Status.ID == constants.IngestAccepted {
			backend.log.Info("Ingest %s still %s, waiting for callback", ingest.ID, ingest.Status.ID)
			continue
		}
		backend.ApplyIngest(pkg, ingest)
		if err = backend.packages.Save(pkg); err != nil {
			backend.log.Warning("Could not save package %s: %v", pkg.UUID, err)
		}
	}
}

// ApplyIngest applies a terminal ingest body to the package. Shared
// by the poll fallback and the callback service, and idempotent: a
// package no longer in STAGING is left untouched, so a re-delivered
// callback cannot change a recorded identifier or version a second
// time.
func (backend *RemoteArchive) ApplyIngest(pkg *models.Package, ingest *models.Ingest) {
	ApplyIngest(pkg, ingest, backend.log)
}

// ApplyIngest is the package-level form, for callers that hold no
// backend instance.
func ApplyIngest(pkg *models.Package, ingest *models.Ingest, log *logging.Logger) {
	if pkg.Status != constants.StatusStaging {
		log.Info("Package %s is %s, ignoring ingest %s", pkg.UUID, pkg.Status, ingest.ID)
		return
	}
	switch ingest.Status.ID {
	case constants.IngestSucceeded:
		pkg.Status = constants.StatusUploaded
		pkg.CurrentPath = filepath.Base(pkg.CurrentPath)
		if ingest.Bag.Info.ExternalIdentifier != "" {
			pkg.SetAttr(constants.AttrBagIdentifier, ingest.Bag.Info.ExternalIdentifier)
		}
		if ingest.Bag.Info.Version != "" {
			pkg.SetAttr(constants.AttrBagVersion, ingest.Bag.Info.Version)
		}
		log.Info("Package %s stored as '%s' version %s", pkg.UUID,
			ingest.Bag.Info.ExternalIdentifier, ingest.Bag.Info.Version)
	case constants.IngestFailed:
		pkg.Status = constants.StatusFail
		for _, event := range ingest.Events {
			log.Error("Ingest %s: %s", ingest.ID, event.Description)
		}
	default:
		log.Info("Ignoring unrecognized ingest status '%s' for package %s",
			ingest.Status.ID, pkg.UUID)
	}
}

// UpdatePackageStatus re-polls a package stuck in STAGING using the
// ingest reference recorded before the wait loop started. This is how
// a restarted process resumes reconciliation.
func (backend *RemoteArchive) UpdatePackageStatus(pkg *models.Package) (string, error) {
	if pkg.Status != constants.StatusStaging {
		return pkg.Status, nil
	}
	locationRef := pkg.Attr(constants.AttrIngestRef)
	if locationRef == "" {
		return pkg.Status, errcat.Errorf(spaces.ErrStorage,
			"Package %s is in STAGING but has no recorded ingest reference", pkg.UUID)
	}
	ingest, err := backend.api.GetIngest(locationRef)
	if err != nil {
		return pkg.Status, err
	}
	backend.ApplyIngest(pkg, ingest)
	if err = backend.packages.Save(pkg); err != nil {
		return pkg.Status, errcat.Errorf(spaces.ErrStorage,
			"Error saving package %s: %v", pkg.UUID, err)
	}
	return pkg.Status, nil
}

// BagLocator builds the locator path for a stored package from the
// identity recorded in its attribute bag. Callers pass it back as the
// source of a download move.
func BagLocator(pkg *models.Package) string {
	segments := []string{
		pkg.Attr(constants.AttrArchiveSpace),
		pkg.BagIdentifier(),
	}
	if version := pkg.Attr(constants.AttrBagVersion); version != "" {
		segments = append(segments, version)
	}
	return "/" + strings.Join(segments, "/")
}

var versionSegment = regexp.MustCompile(`^v\d+$`)

// ParseBagLocator splits a path of the form
// /<space>/<external-identifier>/<version> into its parts. The
// identifier may itself contain separators; the version segment is
// recognized by its v<N> shape and is optional.
func ParseBagLocator(locator string) (space, bagIdentifier, version string, err error) {
	segments := strings.Split(strings.Trim(locator, "/"), "/")
	if len(segments) >= 3 && versionSegment.MatchString(segments[len(segments)-1]) {
		version = segments[len(segments)-1]
		segments = segments[:len(segments)-1]
	}
	if len(segments) < 2 {
		return "", "", "", errcat.Errorf(spaces.ErrStorage,
			"'%s' is not a bag locator of the form <space>/<identifier>[/<version>]", locator)
	}
	return segments[0], strings.Join(segments[1:], "/"), version, nil
}

// MoveToStorageService downloads the bag named by the srcPath locator
// into the single compressed archive the caller expects at destPath.
// A bag stored as one compressed object streams straight through;
// anything else is fetched file by file into a scratch tree and
// repacked through the shared pool so a slow compression cannot stall
// the caller's other packages.
func (backend *RemoteArchive) MoveToStorageService(srcPath, destPath string, destSpace *models.Space) error {
	archiveSpace, bagIdentifier, version, err := ParseBagLocator(srcPath)
	if err != nil {
		return err
	}
	bag, err := backend.api.GetBag(archiveSpace, bagIdentifier, version)
	if err != nil {
		return err
	}

	files := bag.Manifest.Files
	if len(files) == 0 {
		// Bags stored before the service recorded manifests carry an
		// empty file list; discover the stored objects by listing the
		// bag's version prefix instead.
		prefix := strings.Trim(path.Join(bag.Location.Path, bag.Version), "/") + "/"
		keys, err := backend.staging.List(bag.Location.Bucket, prefix)
		if err != nil {
			return errcat.Errorf(spaces.ErrStorage,
				"Error listing objects of bag %s/%s: %v", archiveSpace, bagIdentifier, err)
		}
		for _, key := range keys {
			name := strings.TrimPrefix(key, prefix)
			files = append(files, models.BagFile{Name: name, Path: path.Join(bag.Version, name)})
		}
		if len(files) == 0 {
			return errcat.Errorf(spaces.ErrStorage,
				"Bag %s/%s has no stored files under '%s'", archiveSpace, bagIdentifier, prefix)
		}
	}

	if len(files) == 1 && tarball.IsCompressedBag(files[0].Name) {
		file := files[0]
		err = backend.staging.Download(bag.Location.Bucket,
			path.Join(bag.Location.Path, file.Path), destPath)
		if err != nil {
			return errcat.Errorf(spaces.ErrStorage,
				"Error downloading bag %s/%s: %v", archiveSpace, bagIdentifier, err)
		}
		return nil
	}

	scratchDir, err := os.MkdirTemp("", "bag-download")
	if err != nil {
		return errcat.Errorf(spaces.ErrStorage,
			"Error creating scratch directory for bag %s/%s: %v", archiveSpace, bagIdentifier, err)
	}
	defer os.RemoveAll(scratchDir)

	bagDir := filepath.Join(scratchDir, archiveBaseName(destPath))
	for _, file := range files {
		err = backend.staging.Download(bag.Location.Bucket,
			path.Join(bag.Location.Path, file.Path),
			filepath.Join(bagDir, filepath.FromSlash(file.Name)))
		if err != nil {
			return errcat.Errorf(spaces.ErrStorage,
				"Error downloading '%s' of bag %s/%s: %v", file.Name, archiveSpace, bagIdentifier, err)
		}
	}
	if err = backend.repack.Repack(bagDir, destPath); err != nil {
		return errcat.Errorf(spaces.ErrStorage,
			"Error repacking bag %s/%s to '%s': %v", archiveSpace, bagIdentifier, destPath, err)
	}
	return nil
}

// archiveBaseName strips the archive extension from destPath's base
// name; it becomes the bag's top-level directory name.
func archiveBaseName(destPath string) string {
	name := filepath.Base(destPath)
	for _, ext := range []string{".tar.gz", ".tgz", ".tar"} {
		if strings.HasSuffix(strings.ToLower(name), ext) {
			return name[:len(name)-len(ext)]
		}
	}
	return name
}
