package models

// MoveRequest is the unit of work consumed by the move worker. It is
// published to NSQ as JSON by whoever wants a package moved through
// the storage service.
type MoveRequest struct {
	// PackageUUID identifies the package to move.
	PackageUUID string `json:"package_uuid"`
	// Direction is either "to_storage" or "from_storage".
	Direction string `json:"direction"`
	// Source is the path the package should be read from. For
	// to_storage moves this is relative to the source space; for
	// from_storage moves it is relative to the destination space's
	// holdings.
	Source string `json:"source"`
	// Destination is the path the package should be written to,
	// relative to the destination space.
	Destination string `json:"destination"`
	// SpaceUUID identifies the space on the far side of the move.
	SpaceUUID string `json:"space_uuid"`
	// SourceSpaceUUID identifies the space a to_storage move reads
	// from. Unused for from_storage moves, which read from the
	// destination space's own staging area.
	SourceSpaceUUID string `json:"source_space_uuid,omitempty"`
}

// Move directions.
const (
	MoveToStorage   = "to_storage"
	MoveFromStorage = "from_storage"
)
