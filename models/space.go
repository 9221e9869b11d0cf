package models

import (
	"fmt"
	"path/filepath"
	"time"

	"github.com/artefactual-labs/spaces/constants"
	"github.com/artefactual-labs/spaces/util"
)

// Space describes a storage location. The Space knows which protocol
// to use to reach its contents, but all protocol-specific information
// lives in the backend configuration record registered with the
// dispatcher under the Space's UUID.
type Space struct {
	// UUID is the unique identifier of this space.
	UUID string `json:"uuid"`
	// AccessProtocol says how the space can be accessed. See
	// constants.Protocols.
	AccessProtocol string `json:"access_protocol"`
	// Path is the absolute path to the space on the machine running
	// this service. Not required for object-storage protocols.
	Path string `json:"path"`
	// StagingPath is the absolute path to a staging area, preferably
	// on the same filesystem as Path.
	StagingPath string `json:"staging_path"`
	// Size is the size of the space in bytes. Zero means unknown.
	Size int64 `json:"size"`
	// Used is the number of bytes currently used in this space.
	Used int64 `json:"used"`
	// Verified says whether the space has been verified to be
	// accessible.
	Verified bool `json:"verified"`
	// LastVerified is the time this space was last verified to be
	// accessible.
	LastVerified time.Time `json:"last_verified"`
}

// IsObjectStorage returns true if this space's protocol addresses
// objects by key rather than by mounted path.
func (space *Space) IsObjectStorage() bool {
	return util.StringListContains(constants.ObjectStorageProtocols, space.AccessProtocol)
}

// Validate checks the invariants every space must satisfy: the staging
// path must be absolute, and the base path is required (and absolute)
// unless the protocol is an object-storage protocol.
func (space *Space) Validate() error {
	if space.StagingPath == "" || !filepath.IsAbs(space.StagingPath) {
		return fmt.Errorf("Staging path '%s' of space %s must begin with a %s",
			space.StagingPath, space.UUID, string(filepath.Separator))
	}
	if !space.IsObjectStorage() {
		if space.Path == "" {
			return fmt.Errorf("Path is required for space %s with protocol %s",
				space.UUID, space.AccessProtocol)
		}
		if !filepath.IsAbs(space.Path) {
			return fmt.Errorf("Path '%s' of space %s must begin with a %s",
				space.Path, space.UUID, string(filepath.Separator))
		}
	}
	return nil
}

func (space *Space) String() string {
	return fmt.Sprintf("%s: %s (%s)", space.UUID, space.Path, space.AccessProtocol)
}
