package locations

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/artefactual-labs/spaces"
	"github.com/artefactual-labs/spaces/models"
	"github.com/warpfork/go-errcat"
)

// ToBackendPath joins relPath to the space's base path. A leading
// separator on relPath is stripped first, so a path presented as
// absolute cannot escape the base path.
func ToBackendPath(space *models.Space, relPath string) string {
	return filepath.Join(space.Path, stripLeadingSep(relPath))
}

// ToStagingPath joins relPath to the space's staging path, stripping a
// leading separator the same way.
func ToStagingPath(space *models.Space, relPath string) string {
	return filepath.Join(space.StagingPath, stripLeadingSep(relPath))
}

// WithTrailingSepIfDir appends a path separator when path is an
// existing directory. A directory source must carry the trailing
// separator so later prefix replacement cannot confuse /a/b with
// /a/bc.
func WithTrailingSepIfDir(path string) string {
	if info, err := os.Stat(path); err == nil && info.IsDir() &&
		!strings.HasSuffix(path, string(os.PathSeparator)) {
		return path + string(os.PathSeparator)
	}
	return path
}

// EnforceContainment rejects targets that resolve outside the space's
// base path.
func EnforceContainment(space *models.Space, target string) error {
	base := filepath.Clean(space.Path)
	cleaned := filepath.Clean(target)
	if cleaned != base && !strings.HasPrefix(cleaned, base+string(os.PathSeparator)) {
		return errcat.Errorf(spaces.ErrPathEscape,
			"Path '%s' is not within '%s'", target, space.Path)
	}
	return nil
}

func stripLeadingSep(path string) string {
	return strings.TrimLeft(path, string(os.PathSeparator))
}
