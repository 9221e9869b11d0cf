// Package locations implements the storage space backends and the
// dispatcher that routes operations to them by protocol tag.
package locations

import (
	"time"

	"github.com/artefactual-labs/spaces/models"
)

// EntryProperties annotates a browse entry. Size applies to file-like
// entries; ObjectCount applies to directory-like entries and counts
// files recursively. LastModified and ETag are only available from
// object-store backends.
type EntryProperties struct {
	Size         int64     `json:"size,omitempty"`
	ObjectCount  int       `json:"object_count,omitempty"`
	LastModified time.Time `json:"last_modified,omitempty"`
	ETag         string    `json:"e_tag,omitempty"`
}

// BrowseResult describes the objects at a path. Every directory also
// appears in Entries. Properties may not contain all values from
// Entries.
type BrowseResult struct {
	Entries     []string                    `json:"entries"`
	Directories []string                    `json:"directories"`
	Properties  map[string]*EntryProperties `json:"properties"`
}

// EmptyBrowseResult is what browsing a missing path returns. A missing
// path is not an error.
func EmptyBrowseResult() *BrowseResult {
	return &BrowseResult{
		Entries:     []string{},
		Directories: []string{},
		Properties:  map[string]*EntryProperties{},
	}
}

// Backend is the minimal contract every protocol backend satisfies.
// Everything else is a capability: the dispatcher probes for the
// narrower interfaces below and falls back (or refuses) when a backend
// does not implement one.
type Backend interface {
	Protocol() string
	Space() *models.Space
}

// Browser lists the contents of a path.
type Browser interface {
	Browse(absPath string) (*BrowseResult, error)
}

// Deleter removes everything at a path.
type Deleter interface {
	DeletePath(absPath string) error
}

// MoverTo copies an object from this space into the storage service's
// staging area for destSpace. Both paths arrive absolute; the
// dispatcher has already done the path mangling.
type MoverTo interface {
	MoveToStorageService(srcPath, destPath string, destSpace *models.Space) error
}

// MoverFrom copies an object from this space's staging area to its
// final destination within the space.
type MoverFrom interface {
	MoveFromStorageService(srcPath, destPath string, pkg *models.Package) error
}

// PostMoverTo runs after a move into the storage service.
type PostMoverTo interface {
	PostMoveToStorageService(pkg *models.Package) error
}

// PostMoverFrom runs after a move out of the storage service.
type PostMoverFrom interface {
	PostMoveFromStorageService(stagingPath, destPath string, pkg *models.Package) error
}

// StatusUpdater refreshes a package's status from the backend's
// authoritative source and returns the (possibly unchanged) status.
type StatusUpdater interface {
	UpdatePackageStatus(pkg *models.Package) (string, error)
}
