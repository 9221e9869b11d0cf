package locations

import (
	"encoding/json"

	"github.com/artefactual-labs/spaces"
	"github.com/artefactual-labs/spaces/constants"
	"github.com/artefactual-labs/spaces/identifier"
	"github.com/artefactual-labs/spaces/models"
	"github.com/artefactual-labs/spaces/network"
	"github.com/artefactual-labs/spaces/store"
	"github.com/artefactual-labs/spaces/tarball"
	"github.com/op/go-logging"
	"github.com/warpfork/go-errcat"
)

// NewBackend builds the backend for one configured space, decoding
// the space's raw settings according to its access protocol.
func NewBackend(spaceConfig *models.SpaceConfig, callback models.CallbackConfig,
	packages *store.PackageStore, repack *tarball.RepackPool, log *logging.Logger) (Backend, error) {
	space := &spaceConfig.Space
	if err := space.Validate(); err != nil {
		return nil, err
	}
	switch space.AccessProtocol {
	case constants.ProtocolLocalFilesystem, constants.ProtocolNFS, constants.ProtocolPipelineLocalFS:
		return NewLocalFilesystem(space, log), nil
	case constants.ProtocolObjectStore:
		config := ObjectStoreConfig{}
		if err := decodeSettings(space, spaceConfig.Settings, &config); err != nil {
			return nil, err
		}
		return NewObjectStore(space, config, log), nil
	case constants.ProtocolRemoteArchive:
		config := RemoteArchiveConfig{}
		if err := decodeSettings(space, spaceConfig.Settings, &config); err != nil {
			return nil, err
		}
		// The callback endpoint is deployment-wide; a space only
		// overrides it when it talks to a different network.
		if config.CallbackBaseURL == "" {
			config.CallbackBaseURL = callback.BaseURL
			config.CallbackUsername = callback.Username
			config.CallbackAPIKey = callback.APIKey
		}
		staging, err := network.NewStagingClient(config.StagingEndpoint,
			config.StagingAccessKey, config.StagingSecretKey, config.StagingUseSSL)
		if err != nil {
			return nil, errcat.Errorf(spaces.ErrStorage,
				"Error setting up staging store for space %s: %v", space.UUID, err)
		}
		api := network.NewArchiveClient(config.APIRootURL, config.TokenURL,
			config.ClientID, config.ClientSecret)
		resolver := identifier.NewResolver(config.ArchiveSpace, repack, log)
		return NewRemoteArchive(space, config, api, staging, resolver, packages, repack, log), nil
	}
	return nil, errcat.Errorf(spaces.ErrUnknownProtocol,
		"Space %s has unknown access protocol '%s'", space.UUID, space.AccessProtocol)
}

// BuildDispatcher builds a dispatcher serving every space in the
// config, persisting each space record so operations can look them up
// later.
func BuildDispatcher(config *models.Config, packages *store.PackageStore,
	repack *tarball.RepackPool, log *logging.Logger) (*Dispatcher, error) {
	dispatcher := NewDispatcher(log)
	for i := range config.Spaces {
		spaceConfig := &config.Spaces[i]
		backend, err := NewBackend(spaceConfig, config.Callback, packages, repack, log)
		if err != nil {
			return nil, err
		}
		if err = packages.SaveSpace(backend.Space()); err != nil {
			return nil, err
		}
		dispatcher.Register(backend)
		log.Info("Serving space %s (%s)", backend.Space().UUID, backend.Protocol())
	}
	return dispatcher, nil
}

func decodeSettings(space *models.Space, settings json.RawMessage, value interface{}) error {
	if len(settings) == 0 {
		return errcat.Errorf(spaces.ErrUnknownProtocol,
			"Space %s (%s) has no protocol settings", space.UUID, space.AccessProtocol)
	}
	if err := json.Unmarshal(settings, value); err != nil {
		return errcat.Errorf(spaces.ErrUnknownProtocol,
			"Error decoding settings for space %s: %v", space.UUID, err)
	}
	return nil
}
