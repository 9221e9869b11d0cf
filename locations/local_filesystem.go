package locations

import (
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/artefactual-labs/spaces"
	"github.com/artefactual-labs/spaces/models"
	"github.com/artefactual-labs/spaces/util/fileutil"
	"github.com/op/go-logging"
	"github.com/warpfork/go-errcat"
)

// LocalFilesystem serves spaces mounted on the local machine: plain
// local disks, NFS mounts, and pipeline-local paths all behave the
// same once mounted. It also acts as the dispatcher's fallback for
// Browse and DeletePath when a protocol backend has no implementation
// of its own.
type LocalFilesystem struct {
	space *models.Space
	log   *logging.Logger
}

func NewLocalFilesystem(space *models.Space, log *logging.Logger) *LocalFilesystem {
	return &LocalFilesystem{
		space: space,
		log:   log,
	}
}

func (backend *LocalFilesystem) Protocol() string {
	return backend.space.AccessProtocol
}

func (backend *LocalFilesystem) Space() *models.Space {
	return backend.space
}

// Browse returns the entries at absPath. Hidden files are excluded,
// entries are sorted case-insensitively, and every readable directory
// gets a recursive object count. Browsing a missing path returns an
// empty result, not an error.
func (backend *LocalFilesystem) Browse(absPath string) (*BrowseResult, error) {
	if !fileutil.FileExists(absPath) {
		backend.log.Info("%s in %s does not exist", absPath, backend.space.UUID)
		return EmptyBrowseResult(), nil
	}
	dirEntries, err := os.ReadDir(absPath)
	if err != nil {
		return nil, errcat.Errorf(spaces.ErrStorage,
			"Error browsing '%s': %v", absPath, err)
	}
	result := EmptyBrowseResult()
	for _, dirEntry := range dirEntries {
		if strings.HasPrefix(dirEntry.Name(), ".") {
			continue
		}
		result.Entries = append(result.Entries, dirEntry.Name())
	}
	sort.Slice(result.Entries, func(i, j int) bool {
		return strings.ToLower(result.Entries[i]) < strings.ToLower(result.Entries[j])
	})
	for _, name := range result.Entries {
		fullPath := filepath.Join(absPath, name)
		properties := &EntryProperties{}
		if info, err := os.Stat(fullPath); err == nil {
			properties.Size = info.Size()
		}
		if fileutil.IsDir(fullPath) {
			result.Directories = append(result.Directories, name)
			properties.ObjectCount = fileutil.CountFiles(fullPath)
		}
		result.Properties[name] = properties
	}
	return result, nil
}

// DeletePath removes the file or directory tree at absPath. An absent
// path is a no-op. A path too short to plausibly be package storage is
// refused rather than handed to RemoveAll.
func (backend *LocalFilesystem) DeletePath(absPath string) error {
	if !fileutil.FileExists(absPath) {
		return nil
	}
	if !fileutil.LooksSafeToDelete(absPath, 12, 3) {
		return errcat.Errorf(spaces.ErrStorage,
			"Path '%s' does not look safe to delete", absPath)
	}
	if err := os.RemoveAll(absPath); err != nil {
		backend.log.Warning("Error deleting %s: %v", absPath, err)
		return errcat.Errorf(spaces.ErrStorage,
			"Error deleting '%s': %v", absPath, err)
	}
	return nil
}

// CreateDirectory creates absPath and its parents. Already existing is
// fine. The chmod after creation is best effort because some network
// filesystems reject it.
func (backend *LocalFilesystem) CreateDirectory(absPath string) error {
	if err := os.MkdirAll(absPath, 0775); err != nil {
		return errcat.Errorf(spaces.ErrStorage,
			"Error creating directory '%s': %v", absPath, err)
	}
	if err := os.Chmod(absPath, 0775); err != nil {
		backend.log.Warning("Could not chmod %s: %v", absPath, err)
	}
	return nil
}

// MoveToStorageService copies srcPath into destSpace's staging area at
// destPath. Both paths arrive absolute.
func (backend *LocalFilesystem) MoveToStorageService(srcPath, destPath string, destSpace *models.Space) error {
	return backend.copyLocal(srcPath, destPath)
}

// MoveFromStorageService copies the staging copy at srcPath to its
// final home at destPath.
func (backend *LocalFilesystem) MoveFromStorageService(srcPath, destPath string, pkg *models.Package) error {
	return backend.copyLocal(srcPath, destPath)
}

func (backend *LocalFilesystem) copyLocal(srcPath, destPath string) error {
	srcPath = strings.TrimSuffix(srcPath, string(os.PathSeparator))
	if fileutil.IsDir(srcPath) {
		files, err := fileutil.RecursiveFileList(srcPath)
		if err != nil {
			return errcat.Errorf(spaces.ErrStorage,
				"Error listing '%s': %v", srcPath, err)
		}
		for _, file := range files {
			relPath, err := filepath.Rel(srcPath, file)
			if err != nil {
				return errcat.Errorf(spaces.ErrStorage,
					"Error resolving '%s' against '%s': %v", file, srcPath, err)
			}
			if _, err = fileutil.CopyFile(file, filepath.Join(destPath, relPath)); err != nil {
				return errcat.Errorf(spaces.ErrStorage,
					"Error copying '%s': %v", file, err)
			}
		}
		return nil
	}
	if fileutil.IsFile(srcPath) {
		if _, err := fileutil.CopyFile(srcPath, destPath); err != nil {
			return errcat.Errorf(spaces.ErrStorage,
				"Error copying '%s' to '%s': %v", srcPath, destPath, err)
		}
		return nil
	}
	return errcat.Errorf(spaces.ErrStorage,
		"%s is neither a file nor a directory, may not exist", srcPath)
}
