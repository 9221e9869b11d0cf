package locations

import (
	"encoding/json"
	"path/filepath"
	"testing"

	"github.com/artefactual-labs/spaces"
	"github.com/artefactual-labs/spaces/constants"
	"github.com/artefactual-labs/spaces/models"
	"github.com/artefactual-labs/spaces/store"
	"github.com/artefactual-labs/spaces/tarball"
	"github.com/artefactual-labs/spaces/util/logger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func buildTestDispatcher(t *testing.T, config *models.Config) (*Dispatcher, error) {
	t.Helper()
	dir := t.TempDir()
	packages, err := store.NewPackageStore(filepath.Join(dir, "packages.db"))
	require.NoError(t, err)
	t.Cleanup(packages.Close)
	return BuildDispatcher(config, packages, tarball.NewRepackPool(1),
		logger.DiscardLogger("factory_test"))
}

func TestBuildDispatcher(t *testing.T) {
	config := &models.Config{
		Spaces: []models.SpaceConfig{
			{
				Space: models.Space{
					UUID:           "11111111-1111-1111-1111-111111111111",
					AccessProtocol: constants.ProtocolLocalFilesystem,
					Path:           "/var/spaces/local",
					StagingPath:    "/var/spaces/staging",
				},
			},
			{
				Space: models.Space{
					UUID:           "22222222-2222-2222-2222-222222222222",
					AccessProtocol: constants.ProtocolObjectStore,
					StagingPath:    "/var/spaces/staging",
				},
				Settings: json.RawMessage(`{"region": "eu-west-1", "bucket": "preservation"}`),
			},
		},
	}
	dispatcher, err := buildTestDispatcher(t, config)
	require.NoError(t, err)

	backend, err := dispatcher.ResolveBackend("11111111-1111-1111-1111-111111111111")
	require.NoError(t, err)
	assert.IsType(t, &LocalFilesystem{}, backend)

	backend, err = dispatcher.ResolveBackend("22222222-2222-2222-2222-222222222222")
	require.NoError(t, err)
	objectStore, ok := backend.(*ObjectStore)
	require.True(t, ok)
	assert.Equal(t, "preservation", objectStore.BucketName())
}

func TestBuildDispatcherUnknownProtocol(t *testing.T) {
	config := &models.Config{
		Spaces: []models.SpaceConfig{
			{
				Space: models.Space{
					UUID:           "33333333-3333-3333-3333-333333333333",
					AccessProtocol: "FTP",
					StagingPath:    "/var/spaces/staging",
					Path:           "/var/spaces/local",
				},
			},
		},
	}
	_, err := buildTestDispatcher(t, config)
	require.Error(t, err)
	assert.Equal(t, spaces.ErrUnknownProtocol, spaces.CategoryOf(err))
}

func TestBuildDispatcherMissingSettings(t *testing.T) {
	config := &models.Config{
		Spaces: []models.SpaceConfig{
			{
				Space: models.Space{
					UUID:           "22222222-2222-2222-2222-222222222222",
					AccessProtocol: constants.ProtocolObjectStore,
					StagingPath:    "/var/spaces/staging",
				},
			},
		},
	}
	_, err := buildTestDispatcher(t, config)
	require.Error(t, err)
	assert.Equal(t, spaces.ErrUnknownProtocol, spaces.CategoryOf(err))
}