package models

import (
	"github.com/artefactual-labs/spaces/constants"
)

// Package is a content-addressed archival unit moving between storage
// locations. The MiscAttributes bag persists backend bookkeeping
// (externally assigned identifiers, remote bag version, ingest
// correlation reference) across the asynchronous ingest workflow, which
// can span process restarts.
type Package struct {
	// UUID is the canonical internal identifier of this package.
	UUID string `json:"uuid"`
	// CurrentPath is where the package currently lives, relative to
	// its current space. After a successful remote ingest this is
	// reduced to the archive file's basename.
	CurrentPath string `json:"current_path"`
	// SpaceUUID refers to the Space that currently holds the package.
	SpaceUUID string `json:"space_uuid"`
	// Status is one of constants.PackageStatuses.
	Status string `json:"status"`
	// MiscAttributes holds backend-specific metadata keyed by the
	// constants.Attr* keys.
	MiscAttributes map[string]string `json:"misc_attributes"`
}

// NewPackage returns a package in PENDING status with an empty
// attribute bag.
func NewPackage(uuid, currentPath, spaceUUID string) *Package {
	return &Package{
		UUID:           uuid,
		CurrentPath:    currentPath,
		SpaceUUID:      spaceUUID,
		Status:         constants.StatusPending,
		MiscAttributes: make(map[string]string),
	}
}

// Attr returns the value stored under key in the package's attribute
// bag, or an empty string if the key is absent.
func (pkg *Package) Attr(key string) string {
	if pkg.MiscAttributes == nil {
		return ""
	}
	return pkg.MiscAttributes[key]
}

// SetAttr stores value under key in the package's attribute bag.
func (pkg *Package) SetAttr(key, value string) {
	if pkg.MiscAttributes == nil {
		pkg.MiscAttributes = make(map[string]string)
	}
	pkg.MiscAttributes[key] = value
}

// BagIdentifier returns the externally assigned bag identifier recorded
// for this package, or an empty string if the package has never been
// uploaded.
func (pkg *Package) BagIdentifier() string {
	return pkg.Attr(constants.AttrBagIdentifier)
}
