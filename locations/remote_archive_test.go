package locations

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/artefactual-labs/spaces"
	"github.com/artefactual-labs/spaces/constants"
	"github.com/artefactual-labs/spaces/identifier"
	"github.com/artefactual-labs/spaces/models"
	"github.com/artefactual-labs/spaces/store"
	"github.com/artefactual-labs/spaces/tarball"
	"github.com/artefactual-labs/spaces/util/logger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/warpfork/go-errcat"
)

const remoteTestUUID = "88a46b3e-9a2b-4c8f-81d2-21e89a43e8c4"

type createIngestCall struct {
	space              string
	externalIdentifier string
	ingestType         string
	bucket             string
	key                string
	callbackUrl        string
}

type fakeArchiveAPI struct {
	createCalls    []createIngestCall
	createRef      string
	getIngestCalls int
	ingest         *models.Ingest
	getBagCalls    int
	bags           map[string]*models.Bag
}

func (api *fakeArchiveAPI) CreateIngest(space, externalIdentifier, ingestType, bucket, key, callbackUrl string) (string, error) {
	api.createCalls = append(api.createCalls, createIngestCall{
		space:              space,
		externalIdentifier: externalIdentifier,
		ingestType:         ingestType,
		bucket:             bucket,
		key:                key,
		callbackUrl:        callbackUrl,
	})
	return api.createRef, nil
}

func (api *fakeArchiveAPI) GetIngest(locationRef string) (*models.Ingest, error) {
	api.getIngestCalls++
	return api.ingest, nil
}

func (api *fakeArchiveAPI) GetBag(space, externalIdentifier, version string) (*models.Bag, error) {
	api.getBagCalls++
	if bag, ok := api.bags[space+"/"+externalIdentifier]; ok {
		return bag, nil
	}
	return nil, errcat.Errorf(spaces.ErrBagNotFound,
		"No bag found at %s/%s", space, externalIdentifier)
}

type stagedObject struct {
	bucket string
	key    string
}

type fakeStagingStore struct {
	uploads    []stagedObject
	downloads  []stagedObject
	listCalls  []stagedObject
	storedKeys []string
}

func (staging *fakeStagingStore) Upload(bucket, key, filePath, contentType string) error {
	staging.uploads = append(staging.uploads, stagedObject{bucket: bucket, key: key})
	return nil
}

func (staging *fakeStagingStore) Download(bucket, key, filePath string) error {
	staging.downloads = append(staging.downloads, stagedObject{bucket: bucket, key: key})
	if err := os.MkdirAll(filepath.Dir(filePath), 0755); err != nil {
		return err
	}
	return os.WriteFile(filePath, []byte("object "+key), 0644)
}

func (staging *fakeStagingStore) List(bucket, prefix string) ([]string, error) {
	staging.listCalls = append(staging.listCalls, stagedObject{bucket: bucket, key: prefix})
	keys := []string{}
	for _, key := range staging.storedKeys {
		if strings.HasPrefix(key, prefix) {
			keys = append(keys, key)
		}
	}
	return keys, nil
}

type fakeResolver struct {
	calls  int
	result *identifier.ExternalIdentifier
}

func (resolver *fakeResolver) Resolve(archivePath, packageUUID string) (*identifier.ExternalIdentifier, error) {
	resolver.calls++
	if resolver.result != nil {
		return resolver.result, nil
	}
	return &identifier.ExternalIdentifier{
		Space:              "digitised",
		ExternalIdentifier: packageUUID,
		InternalIdentifier: packageUUID,
	}, nil
}

type remoteFixture struct {
	backend  *RemoteArchive
	api      *fakeArchiveAPI
	staging  *fakeStagingStore
	resolver *fakeResolver
	packages *store.PackageStore
	dir      string
}

func newRemoteFixture(t *testing.T) *remoteFixture {
	t.Helper()
	dir := t.TempDir()
	packages, err := store.NewPackageStore(filepath.Join(dir, "packages.db"))
	require.NoError(t, err)
	t.Cleanup(packages.Close)

	space := &models.Space{
		UUID:           "c0a8f3fa-89b6-44d0-9848-fde46e1f12c1",
		AccessProtocol: constants.ProtocolRemoteArchive,
		StagingPath:    filepath.Join(dir, "staging"),
	}
	config := RemoteArchiveConfig{
		ArchiveSpace:     "digitised",
		StagingBucket:    "ingest-staging",
		CallbackBaseURL:  "http://storage.example.org:8000",
		CallbackUsername: "ingest",
		CallbackAPIKey:   "secret",
	}
	api := &fakeArchiveAPI{
		createRef: "http://archive.example.org/storage/v1/ingests/ingest-1",
		bags:      map[string]*models.Bag{},
	}
	staging := &fakeStagingStore{}
	resolver := &fakeResolver{}

	backend := NewRemoteArchive(space, config, api, staging, resolver, packages,
		tarball.NewRepackPool(1), logger.DiscardLogger("remote_archive_test"))
	backend.waitFn = func(time.Duration) {}

	return &remoteFixture{
		backend:  backend,
		api:      api,
		staging:  staging,
		resolver: resolver,
		packages: packages,
		dir:      dir,
	}
}

func (fixture *remoteFixture) newArchiveFile(t *testing.T, name string) string {
	t.Helper()
	path := filepath.Join(fixture.dir, name)
	writeFile(t, path, "archive bytes")
	return path
}

func succeededIngest(externalIdentifier, version string) *models.Ingest {
	ingest := &models.Ingest{}
	ingest.ID = "ingest-1"
	ingest.Status.ID = constants.IngestSucceeded
	ingest.Bag.Info.ExternalIdentifier = externalIdentifier
	ingest.Bag.Info.Version = version
	return ingest
}

func failedIngest() *models.Ingest {
	ingest := &models.Ingest{}
	ingest.ID = "ingest-1"
	ingest.Status.ID = constants.IngestFailed
	ingest.Events = []models.IngestEvent{
		{Description: "Verification failed: invalid checksum"},
	}
	return ingest
}

func TestRemoteArchiveFirstUpload(t *testing.T) {
	fixture := newRemoteFixture(t)
	fixture.resolver.result = &identifier.ExternalIdentifier{
		Space:              "digitised",
		ExternalIdentifier: "births/2018",
		InternalIdentifier: remoteTestUUID,
	}
	fixture.api.ingest = succeededIngest("births/2018", "v2")

	src := fixture.newArchiveFile(t, "bag.tar.gz")
	pkg := models.NewPackage(remoteTestUUID, src, fixture.backend.Space().UUID)
	require.NoError(t, fixture.packages.Save(pkg))

	require.NoError(t, fixture.backend.MoveFromStorageService(src, "", pkg))

	assert.Equal(t, 1, fixture.resolver.calls)
	require.Len(t, fixture.staging.uploads, 1)
	assert.Equal(t, "ingest-staging", fixture.staging.uploads[0].bucket)
	assert.Equal(t, remoteTestUUID+"/bag.tar.gz", fixture.staging.uploads[0].key)

	require.Len(t, fixture.api.createCalls, 1)
	call := fixture.api.createCalls[0]
	assert.Equal(t, "digitised", call.space)
	assert.Equal(t, "births/2018", call.externalIdentifier)
	assert.Equal(t, constants.IngestTypeCreate, call.ingestType)
	assert.True(t, strings.HasPrefix(call.callbackUrl,
		"http://storage.example.org:8000/api/v2/file/"+remoteTestUUID+"/callback?"))
	assert.Contains(t, call.callbackUrl, "username=ingest")
	assert.Contains(t, call.callbackUrl, "api_key=secret")

	assert.Equal(t, constants.StatusUploaded, pkg.Status)
	assert.Equal(t, "bag.tar.gz", pkg.CurrentPath)
	assert.Equal(t, "births/2018", pkg.BagIdentifier())
	assert.Equal(t, "v2", pkg.Attr(constants.AttrBagVersion))
	assert.Equal(t, fixture.api.createRef, pkg.Attr(constants.AttrIngestRef))

	stored, err := fixture.packages.Find(remoteTestUUID)
	require.NoError(t, err)
	assert.Equal(t, constants.StatusUploaded, stored.Status)
}

func TestRemoteArchiveReingestIsUpdate(t *testing.T) {
	fixture := newRemoteFixture(t)
	fixture.api.bags["digitised/births/2018"] = &models.Bag{ID: "births/2018"}
	fixture.api.ingest = succeededIngest("births/2018", "v3")

	src := fixture.newArchiveFile(t, "bag.tar.gz")
	pkg := models.NewPackage(remoteTestUUID, src, fixture.backend.Space().UUID)
	pkg.SetAttr(constants.AttrBagIdentifier, "births/2018")
	pkg.SetAttr(constants.AttrArchiveSpace, "digitised")
	require.NoError(t, fixture.packages.Save(pkg))

	require.NoError(t, fixture.backend.MoveFromStorageService(src, "", pkg))

	// The recorded identifier is reused, never re-derived.
	assert.Equal(t, 0, fixture.resolver.calls)
	assert.Equal(t, 1, fixture.api.getBagCalls)
	require.Len(t, fixture.api.createCalls, 1)
	assert.Equal(t, constants.IngestTypeUpdate, fixture.api.createCalls[0].ingestType)
	assert.Equal(t, "v3", pkg.Attr(constants.AttrBagVersion))
}

func TestRemoteArchiveUUIDIdentifierSkipsBagProbe(t *testing.T) {
	fixture := newRemoteFixture(t)
	fixture.api.ingest = succeededIngest(remoteTestUUID, "v1")

	src := fixture.newArchiveFile(t, "bag.tar.gz")
	pkg := models.NewPackage(remoteTestUUID, src, fixture.backend.Space().UUID)
	pkg.SetAttr(constants.AttrBagIdentifier, remoteTestUUID)
	require.NoError(t, fixture.packages.Save(pkg))

	require.NoError(t, fixture.backend.MoveFromStorageService(src, "", pkg))

	assert.Equal(t, 0, fixture.api.getBagCalls)
	require.Len(t, fixture.api.createCalls, 1)
	assert.Equal(t, constants.IngestTypeCreate, fixture.api.createCalls[0].ingestType)
}

func TestRemoteArchiveCallbackWinsOverPolling(t *testing.T) {
	fixture := newRemoteFixture(t)

	src := fixture.newArchiveFile(t, "bag.tar.gz")
	pkg := models.NewPackage(remoteTestUUID, src, fixture.backend.Space().UUID)
	require.NoError(t, fixture.packages.Save(pkg))

	// Simulate the callback service landing a terminal ingest while
	// the reconciliation loop is mid-wait.
	fixture.backend.waitFn = func(time.Duration) {
		stored, err := fixture.packages.Find(remoteTestUUID)
		require.NoError(t, err)
		if stored.Status != constants.StatusStaging {
			return
		}
		ApplyIngest(stored, succeededIngest("births/2018", "v2"),
			logger.DiscardLogger("remote_archive_test"))
		require.NoError(t, fixture.packages.Save(stored))
	}

	require.NoError(t, fixture.backend.MoveFromStorageService(src, "", pkg))

	assert.Equal(t, 0, fixture.api.getIngestCalls)
	assert.Equal(t, constants.StatusUploaded, pkg.Status)
	assert.Equal(t, "births/2018", pkg.BagIdentifier())
}

func TestRemoteArchiveFailedIngest(t *testing.T) {
	fixture := newRemoteFixture(t)
	fixture.api.ingest = failedIngest()

	src := fixture.newArchiveFile(t, "bag.tar.gz")
	pkg := models.NewPackage(remoteTestUUID, src, fixture.backend.Space().UUID)
	require.NoError(t, fixture.packages.Save(pkg))

	err := fixture.backend.MoveFromStorageService(src, "", pkg)
	require.Error(t, err)
	assert.Equal(t, spaces.ErrStorage, spaces.CategoryOf(err))
	assert.Equal(t, constants.StatusFail, pkg.Status)
}

func TestRemoteArchiveMissingSource(t *testing.T) {
	fixture := newRemoteFixture(t)
	pkg := models.NewPackage(remoteTestUUID, "nope", fixture.backend.Space().UUID)
	err := fixture.backend.MoveFromStorageService(filepath.Join(fixture.dir, "nope"), "", pkg)
	require.Error(t, err)
	assert.Equal(t, spaces.ErrStorage, spaces.CategoryOf(err))
}

func TestApplyIngestIdempotent(t *testing.T) {
	log := logger.DiscardLogger("remote_archive_test")
	pkg := models.NewPackage(remoteTestUUID, "bag.tar.gz", "space")
	pkg.Status = constants.StatusUploaded
	pkg.SetAttr(constants.AttrBagVersion, "v2")

	// A re-delivered callback must not touch a settled package.
	ApplyIngest(pkg, succeededIngest("births/2018", "v9"), log)
	assert.Equal(t, constants.StatusUploaded, pkg.Status)
	assert.Equal(t, "v2", pkg.Attr(constants.AttrBagVersion))
}

func TestApplyIngestUnrecognizedStatus(t *testing.T) {
	log := logger.DiscardLogger("remote_archive_test")
	pkg := models.NewPackage(remoteTestUUID, "bag.tar.gz", "space")
	pkg.Status = constants.StatusStaging

	ingest := succeededIngest("births/2018", "v1")
	ingest.Status.ID = "paused"
	ApplyIngest(pkg, ingest, log)
	assert.Equal(t, constants.StatusStaging, pkg.Status)
}

func TestUpdatePackageStatusResumesFromStoredRef(t *testing.T) {
	fixture := newRemoteFixture(t)
	fixture.api.ingest = succeededIngest("births/2018", "v2")

	pkg := models.NewPackage(remoteTestUUID, "bag.tar.gz", fixture.backend.Space().UUID)
	pkg.Status = constants.StatusStaging
	pkg.SetAttr(constants.AttrIngestRef, fixture.api.createRef)
	require.NoError(t, fixture.packages.Save(pkg))

	status, err := fixture.backend.UpdatePackageStatus(pkg)
	require.NoError(t, err)
	assert.Equal(t, constants.StatusUploaded, status)
	assert.Equal(t, 1, fixture.api.getIngestCalls)

	stored, err := fixture.packages.Find(remoteTestUUID)
	require.NoError(t, err)
	assert.Equal(t, constants.StatusUploaded, stored.Status)
}

func TestUpdatePackageStatusWithoutRef(t *testing.T) {
	fixture := newRemoteFixture(t)
	pkg := models.NewPackage(remoteTestUUID, "bag.tar.gz", fixture.backend.Space().UUID)
	pkg.Status = constants.StatusStaging

	_, err := fixture.backend.UpdatePackageStatus(pkg)
	require.Error(t, err)
	assert.Equal(t, spaces.ErrStorage, spaces.CategoryOf(err))
}

func TestParseBagLocator(t *testing.T) {
	space, bagIdentifier, version, err := ParseBagLocator("/digitised/births/2018/v2")
	require.NoError(t, err)
	assert.Equal(t, "digitised", space)
	assert.Equal(t, "births/2018", bagIdentifier)
	assert.Equal(t, "v2", version)

	space, bagIdentifier, version, err = ParseBagLocator("digitised/b-1234")
	require.NoError(t, err)
	assert.Equal(t, "digitised", space)
	assert.Equal(t, "b-1234", bagIdentifier)
	assert.Equal(t, "", version)

	_, _, _, err = ParseBagLocator("digitised")
	require.Error(t, err)

	// A v-shaped final segment only counts as a version when an
	// identifier remains in front of it.
	space, bagIdentifier, version, err = ParseBagLocator("digitised/v2")
	require.NoError(t, err)
	assert.Equal(t, "digitised", space)
	assert.Equal(t, "v2", bagIdentifier)
	assert.Equal(t, "", version)
}

func TestBagLocator(t *testing.T) {
	pkg := models.NewPackage(remoteTestUUID, "bag.tar.gz", "space")
	pkg.SetAttr(constants.AttrArchiveSpace, "digitised")
	pkg.SetAttr(constants.AttrBagIdentifier, "births/2018")
	pkg.SetAttr(constants.AttrBagVersion, "v2")
	assert.Equal(t, "/digitised/births/2018/v2", BagLocator(pkg))

	space, bagIdentifier, version, err := ParseBagLocator(BagLocator(pkg))
	require.NoError(t, err)
	assert.Equal(t, "digitised", space)
	assert.Equal(t, "births/2018", bagIdentifier)
	assert.Equal(t, "v2", version)
}

func TestRemoteArchiveDownloadSingleArchive(t *testing.T) {
	fixture := newRemoteFixture(t)
	fixture.api.bags["digitised/births/2018"] = &models.Bag{
		ID: "births/2018",
		Location: models.BagLocation{
			Bucket: "archive-bucket",
			Path:   "digitised/births/2018",
		},
		Manifest: models.BagManifest{
			Files: []models.BagFile{
				{Name: "bag.tar.gz", Path: "v2/bag.tar.gz", Size: 2048},
			},
		},
		Version: "v2",
	}

	dest := filepath.Join(fixture.dir, "out", "bag.tar.gz")
	err := fixture.backend.MoveToStorageService("/digitised/births/2018/v2", dest, fixture.backend.Space())
	require.NoError(t, err)

	require.Len(t, fixture.staging.downloads, 1)
	assert.Equal(t, "archive-bucket", fixture.staging.downloads[0].bucket)
	assert.Equal(t, "digitised/births/2018/v2/bag.tar.gz", fixture.staging.downloads[0].key)
	assert.FileExists(t, dest)
}

func TestRemoteArchiveDownloadUnpackedBag(t *testing.T) {
	fixture := newRemoteFixture(t)
	fixture.api.bags["digitised/births/2018"] = &models.Bag{
		ID: "births/2018",
		Location: models.BagLocation{
			Bucket: "archive-bucket",
			Path:   "digitised/births/2018",
		},
		Manifest: models.BagManifest{
			Files: []models.BagFile{
				{Name: "bagit.txt", Path: "v1/bagit.txt"},
				{Name: "bag-info.txt", Path: "v1/bag-info.txt"},
				{Name: "data/METS.xml", Path: "v1/data/METS.xml"},
			},
		},
		Version: "v1",
	}

	dest := filepath.Join(fixture.dir, "out", "births-2018.tar.gz")
	err := fixture.backend.MoveToStorageService("/digitised/births/2018/v1", dest, fixture.backend.Space())
	require.NoError(t, err)
	require.FileExists(t, dest)
	assert.Len(t, fixture.staging.downloads, 3)

	unpackDir := filepath.Join(fixture.dir, "unpacked")
	require.NoError(t, os.MkdirAll(unpackDir, 0755))
	bagDir, err := tarball.Unpack(dest, unpackDir)
	require.NoError(t, err)
	assert.Equal(t, "births-2018", filepath.Base(bagDir))
	assert.FileExists(t, filepath.Join(bagDir, "bagit.txt"))
	assert.FileExists(t, filepath.Join(bagDir, "data", "METS.xml"))
}

func TestRemoteArchiveDownloadWithoutManifest(t *testing.T) {
	fixture := newRemoteFixture(t)
	fixture.api.bags["digitised/births/2018"] = &models.Bag{
		ID: "births/2018",
		Location: models.BagLocation{
			Bucket: "archive-bucket",
			Path:   "digitised/births/2018",
		},
		Version: "v1",
	}
	fixture.staging.storedKeys = []string{
		"digitised/births/2018/v1/bagit.txt",
		"digitised/births/2018/v1/data/METS.xml",
		"digitised/other-bag/v1/bagit.txt",
	}

	dest := filepath.Join(fixture.dir, "out", "births-2018.tar.gz")
	err := fixture.backend.MoveToStorageService("/digitised/births/2018/v1", dest, fixture.backend.Space())
	require.NoError(t, err)
	require.FileExists(t, dest)

	require.Len(t, fixture.staging.listCalls, 1)
	assert.Equal(t, "archive-bucket", fixture.staging.listCalls[0].bucket)
	assert.Equal(t, "digitised/births/2018/v1/", fixture.staging.listCalls[0].key)
	assert.Len(t, fixture.staging.downloads, 2)

	bagDir, err := tarball.Unpack(dest, filepath.Join(fixture.dir, "unpacked"))
	require.NoError(t, err)
	assert.FileExists(t, filepath.Join(bagDir, "bagit.txt"))
	assert.FileExists(t, filepath.Join(bagDir, "data", "METS.xml"))
}

func TestRemoteArchiveDownloadUnknownBag(t *testing.T) {
	fixture := newRemoteFixture(t)
	dest := filepath.Join(fixture.dir, "out", "bag.tar.gz")
	err := fixture.backend.MoveToStorageService("/digitised/missing/v1", dest, fixture.backend.Space())
	require.Error(t, err)
	assert.Equal(t, spaces.ErrBagNotFound, spaces.CategoryOf(err))
}
