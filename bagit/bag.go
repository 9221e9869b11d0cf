package bagit

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/artefactual-labs/spaces/constants"
	"github.com/artefactual-labs/spaces/util/fileutil"
)

const bagInfoFile = "bag-info.txt"
const externalIdentifierLabel = "External-Identifier"

// Bag is an unpacked bag on disk.
type Bag struct {
	// Path is the absolute path to the bag's top-level directory.
	Path string
}

// LoadBag returns a Bag for the directory at path. The directory must
// contain a bagit.txt declaration.
func LoadBag(path string) (*Bag, error) {
	if !fileutil.IsFile(filepath.Join(path, "bagit.txt")) {
		return nil, fmt.Errorf("Directory '%s' is not a bag: bagit.txt is missing", path)
	}
	return &Bag{Path: path}, nil
}

// ExternalIdentifier returns the External-Identifier tag from
// bag-info.txt, or an empty string if the bag carries none.
func (bag *Bag) ExternalIdentifier() (string, error) {
	lines, err := bag.readInfoLines()
	if err != nil {
		if os.IsNotExist(err) {
			return "", nil
		}
		return "", err
	}
	for _, line := range lines {
		label, value, ok := splitTag(line)
		if ok && label == externalIdentifierLabel {
			return value, nil
		}
	}
	return "", nil
}

// SetExternalIdentifier writes identifier as the External-Identifier
// tag in bag-info.txt, replacing any existing value, then updates the
// bag-info.txt entries in whatever tag manifests the bag carries so
// the bag still validates.
func (bag *Bag) SetExternalIdentifier(identifier string) error {
	lines, err := bag.readInfoLines()
	if err != nil && !os.IsNotExist(err) {
		return err
	}
	newLine := fmt.Sprintf("%s: %s", externalIdentifierLabel, identifier)
	replaced := false
	for i, line := range lines {
		label, _, ok := splitTag(line)
		if ok && label == externalIdentifierLabel {
			lines[i] = newLine
			replaced = true
			break
		}
	}
	if !replaced {
		lines = append(lines, newLine)
	}
	infoPath := filepath.Join(bag.Path, bagInfoFile)
	err = os.WriteFile(infoPath, []byte(strings.Join(lines, "\n")+"\n"), 0644)
	if err != nil {
		return fmt.Errorf("Error writing '%s': %v", infoPath, err)
	}
	return bag.updateTagManifests()
}

// updateTagManifests recomputes the bag-info.txt digest in each tag
// manifest present in the bag.
func (bag *Bag) updateTagManifests() error {
	manifests := map[string]string{
		"tagmanifest-md5.txt":    constants.AlgMd5,
		"tagmanifest-sha256.txt": constants.AlgSha256,
	}
	for manifestFile, algorithm := range manifests {
		manifestPath := filepath.Join(bag.Path, manifestFile)
		if !fileutil.IsFile(manifestPath) {
			continue
		}
		digest, err := fileutil.CalculateChecksum(filepath.Join(bag.Path, bagInfoFile), algorithm)
		if err != nil {
			return err
		}
		if err = replaceManifestEntry(manifestPath, bagInfoFile, digest); err != nil {
			return err
		}
	}
	return nil
}

// replaceManifestEntry rewrites the digest recorded for fileName in
// the manifest at manifestPath, appending an entry if none exists.
func replaceManifestEntry(manifestPath, fileName, digest string) error {
	data, err := os.ReadFile(manifestPath)
	if err != nil {
		return err
	}
	lines := strings.Split(strings.TrimRight(string(data), "\n"), "\n")
	newLine := fmt.Sprintf("%s  %s", digest, fileName)
	replaced := false
	for i, line := range lines {
		fields := strings.Fields(line)
		if len(fields) == 2 && fields[1] == fileName {
			lines[i] = newLine
			replaced = true
			break
		}
	}
	if !replaced {
		lines = append(lines, newLine)
	}
	return os.WriteFile(manifestPath, []byte(strings.Join(lines, "\n")+"\n"), 0644)
}

func (bag *Bag) readInfoLines() ([]string, error) {
	data, err := os.ReadFile(filepath.Join(bag.Path, bagInfoFile))
	if err != nil {
		return nil, err
	}
	text := strings.TrimRight(string(data), "\n")
	if text == "" {
		return []string{}, nil
	}
	return strings.Split(text, "\n"), nil
}

func splitTag(line string) (label, value string, ok bool) {
	parts := strings.SplitN(line, ":", 2)
	if len(parts) != 2 {
		return "", "", false
	}
	return strings.TrimSpace(parts[0]), strings.TrimSpace(parts[1]), true
}
