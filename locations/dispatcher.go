package locations

import (
	"os"

	"github.com/artefactual-labs/spaces"
	"github.com/artefactual-labs/spaces/constants"
	"github.com/artefactual-labs/spaces/models"
	"github.com/op/go-logging"
	"github.com/warpfork/go-errcat"
)

// Dispatcher routes space operations to the backend registered for
// each space. Backends advertise what they can do by implementing the
// capability interfaces; for browse and delete the dispatcher falls
// back to the local filesystem when a backend with a local path does
// not implement them itself.
type Dispatcher struct {
	registry map[string]Backend
	log      *logging.Logger
}

func NewDispatcher(log *logging.Logger) *Dispatcher {
	return &Dispatcher{
		registry: make(map[string]Backend),
		log:      log,
	}
}

// Register makes a backend available under its space's UUID. A second
// registration for the same space replaces the first.
func (dispatcher *Dispatcher) Register(backend Backend) {
	dispatcher.registry[backend.Space().UUID] = backend
}

// ResolveBackend returns the backend registered for the space.
func (dispatcher *Dispatcher) ResolveBackend(spaceUUID string) (Backend, error) {
	backend, ok := dispatcher.registry[spaceUUID]
	if !ok {
		return nil, errcat.Errorf(spaces.ErrUnknownProtocol,
			"No backend registered for space %s", spaceUUID)
	}
	return backend, nil
}

// Browse lists the contents of relPath within the space.
func (dispatcher *Dispatcher) Browse(spaceUUID, relPath string) (*BrowseResult, error) {
	backend, err := dispatcher.ResolveBackend(spaceUUID)
	if err != nil {
		return nil, err
	}
	absPath := ToBackendPath(backend.Space(), relPath)
	if browser, ok := backend.(Browser); ok {
		return browser.Browse(absPath)
	}
	if backend.Space().Path == "" {
		return nil, errcat.Errorf(spaces.ErrNotSupported,
			"Space protocol %s does not support browsing", backend.Protocol())
	}
	return NewLocalFilesystem(backend.Space(), dispatcher.log).Browse(absPath)
}

// DeletePath removes everything at relPath within the space. For
// spaces with a local base path, containment is checked here, before
// any backend sees the resolved path, so a relPath like "../other"
// can never reach past the space.
func (dispatcher *Dispatcher) DeletePath(spaceUUID, relPath string) error {
	backend, err := dispatcher.ResolveBackend(spaceUUID)
	if err != nil {
		return err
	}
	absPath := ToBackendPath(backend.Space(), relPath)
	if backend.Space().Path != "" {
		if err = EnforceContainment(backend.Space(), absPath); err != nil {
			return err
		}
	}
	if deleter, ok := backend.(Deleter); ok {
		return deleter.DeletePath(absPath)
	}
	if backend.Space().Path == "" {
		return errcat.Errorf(spaces.ErrNotSupported,
			"Space protocol %s does not support deletion", backend.Protocol())
	}
	return NewLocalFilesystem(backend.Space(), dispatcher.log).DeletePath(absPath)
}

// MoveToStorageService copies srcPath out of the source space into the
// destination space's staging area. srcPath is relative to the source
// space's base path; destPath is relative to the destination space's
// staging path.
func (dispatcher *Dispatcher) MoveToStorageService(srcSpaceUUID, srcPath, destSpaceUUID, destPath string, pkg *models.Package) error {
	srcBackend, err := dispatcher.ResolveBackend(srcSpaceUUID)
	if err != nil {
		return err
	}
	destBackend, err := dispatcher.ResolveBackend(destSpaceUUID)
	if err != nil {
		return err
	}
	mover, ok := srcBackend.(MoverTo)
	if !ok {
		return errcat.Errorf(spaces.ErrNotSupported,
			"Space protocol %s does not support moves into the storage service", srcBackend.Protocol())
	}
	absSrc := WithTrailingSepIfDir(ToBackendPath(srcBackend.Space(), srcPath))
	absDest := ToStagingPath(destBackend.Space(), destPath)
	if err = mover.MoveToStorageService(absSrc, absDest, destBackend.Space()); err != nil {
		return err
	}
	if post, ok := srcBackend.(PostMoverTo); ok && pkg != nil {
		return post.PostMoveToStorageService(pkg)
	}
	return nil
}

// MoveFromStorageService copies the staged copy at srcPath into its
// final destination destPath within the space, then runs the post-move
// hook. srcPath is relative to the space's staging path; destPath is
// relative to its base path.
func (dispatcher *Dispatcher) MoveFromStorageService(spaceUUID, srcPath, destPath string, pkg *models.Package) error {
	backend, err := dispatcher.ResolveBackend(spaceUUID)
	if err != nil {
		return err
	}
	mover, ok := backend.(MoverFrom)
	if !ok {
		return errcat.Errorf(spaces.ErrNotSupported,
			"Space protocol %s does not support moves out of the storage service", backend.Protocol())
	}
	absSrc := WithTrailingSepIfDir(ToStagingPath(backend.Space(), srcPath))
	absDest := ToBackendPath(backend.Space(), destPath)
	if err = mover.MoveFromStorageService(absSrc, absDest, pkg); err != nil {
		return err
	}
	if pkg != nil && pkg.Status == constants.StatusPending {
		pkg.Status = constants.StatusUploaded
	}
	if post, ok := backend.(PostMoverFrom); ok {
		return post.PostMoveFromStorageService(absSrc, absDest, pkg)
	}
	dispatcher.removeStagedCopy(absSrc, absDest)
	return nil
}

// removeStagedCopy deletes the staging copy after a successful move
// out of the storage service. Failure to delete never fails the move.
func (dispatcher *Dispatcher) removeStagedCopy(stagingPath, destPath string) {
	if stagingPath == destPath || stagingPath == "" {
		return
	}
	if err := os.RemoveAll(stagingPath); err != nil {
		dispatcher.log.Warning("Could not remove staged copy '%s': %v", stagingPath, err)
	}
}

// UpdatePackageStatus asks the package's space for its current status.
func (dispatcher *Dispatcher) UpdatePackageStatus(pkg *models.Package) (string, error) {
	backend, err := dispatcher.ResolveBackend(pkg.SpaceUUID)
	if err != nil {
		return pkg.Status, err
	}
	updater, ok := backend.(StatusUpdater)
	if !ok {
		return pkg.Status, errcat.Errorf(spaces.ErrNotSupported,
			"Space protocol %s does not support status updates", backend.Protocol())
	}
	return updater.UpdatePackageStatus(pkg)
}
