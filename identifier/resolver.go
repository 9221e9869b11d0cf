package identifier

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/artefactual-labs/spaces/bagit"
	"github.com/artefactual-labs/spaces/constants"
	"github.com/artefactual-labs/spaces/tarball"
	"github.com/artefactual-labs/spaces/util/fileutil"
	"github.com/op/go-logging"
)

// ExternalIdentifier is the derived identity of a package: the space
// it should be ingested into and the human-meaningful identifier to
// record it under. InternalIdentifier is always the package UUID.
// Computed once per first-time upload and then cached in the package's
// attribute bag.
type ExternalIdentifier struct {
	Space              string
	ExternalIdentifier string
	InternalIdentifier string
}

// Resolver derives an external identifier for a package by inspecting
// the METS metadata embedded in its bag. When derivation succeeds, the
// bag on disk is rewritten to carry the identifier, so the uploaded
// bytes always match the externally recorded identity.
type Resolver struct {
	// Space is the default target space for resolved identifiers.
	Space string

	log    *logging.Logger
	repack *tarball.RepackPool
}

// NewResolver returns a resolver targeting the given space. Repacks
// after a rewrite go through the shared pool.
func NewResolver(space string, repack *tarball.RepackPool, log *logging.Logger) *Resolver {
	return &Resolver{
		Space:  space,
		log:    log,
		repack: repack,
	}
}

// Resolve derives an identifier for the package archive at
// archivePath. Every failure short of a broken rewrite degenerates to
// the package UUID; only a failed bag rewrite or repack is an error,
// because at that point the archive may no longer match its recorded
// identity.
func (resolver *Resolver) Resolve(archivePath, packageUUID string) (*ExternalIdentifier, error) {
	result := &ExternalIdentifier{
		Space:              resolver.Space,
		ExternalIdentifier: packageUUID,
		InternalIdentifier: packageUUID,
	}

	if !tarball.IsCompressedBag(archivePath) {
		resolver.log.Info("Package %s (%s) is not a serialized bag, using UUID as identifier",
			packageUUID, archivePath)
		return result, nil
	}

	scratchDir, err := os.MkdirTemp("", "identifier")
	if err != nil {
		return nil, err
	}
	defer os.RemoveAll(scratchDir)

	bagDir, err := tarball.Unpack(archivePath, scratchDir)
	if err != nil {
		resolver.log.Warning("Could not unpack package %s (%s): %v. Using UUID as identifier.",
			packageUUID, archivePath, err)
		return result, nil
	}

	derived, err := resolver.derive(bagDir, packageUUID)
	if err != nil {
		return nil, err
	}
	if derived == nil {
		resolver.log.Info("No identifier found in package %s, using UUID", packageUUID)
		return result, nil
	}

	if strings.HasPrefix(derived.ExternalIdentifier, constants.ReservedTestPrefix) {
		resolver.log.Info("Identifier '%s' carries the reserved test prefix, "+
			"diverting package %s to the %s space",
			derived.ExternalIdentifier, packageUUID, constants.TestingSpace)
		derived.Space = constants.TestingSpace
	}

	// The bag now has to carry the identifier it will be recorded
	// under, so rewrite bag-info.txt and replace the archive.
	bag, err := bagit.LoadBag(bagDir)
	if err != nil {
		resolver.log.Warning("Package %s unpacked but is not a bag: %v. Using UUID as identifier.",
			packageUUID, err)
		result.Space = derived.Space
		return result, nil
	}
	if err = bag.SetExternalIdentifier(derived.ExternalIdentifier); err != nil {
		return nil, fmt.Errorf("Error writing identifier '%s' into bag %s: %v",
			derived.ExternalIdentifier, packageUUID, err)
	}
	if err = resolver.repack.Repack(bagDir, archivePath); err != nil {
		return nil, fmt.Errorf("Error repacking bag %s after identifier rewrite: %v",
			packageUUID, err)
	}
	resolver.log.Info("Resolved package %s to identifier '%s' in space %s",
		packageUUID, derived.ExternalIdentifier, derived.Space)
	return derived, nil
}

// derive runs the primary and secondary metadata scans. Returns nil
// when neither scan yields an identifier.
func (resolver *Resolver) derive(bagDir, packageUUID string) (*ExternalIdentifier, error) {
	metsPath := filepath.Join(bagDir, "data", fmt.Sprintf("METS.%s.xml", packageUUID))
	if fileutil.IsFile(metsPath) {
		values, err := dcIdentifiers(metsPath)
		if err != nil {
			resolver.log.Warning("Error reading METS document %s: %v", metsPath, err)
		}
		if len(values) > 0 {
			prefix, err := CommonPrefix(values)
			if err == nil {
				return &ExternalIdentifier{
					Space:              resolver.Space,
					ExternalIdentifier: prefix,
					InternalIdentifier: packageUUID,
				}, nil
			}
			resolver.log.Info("Identifiers in %s share no common prefix", metsPath)
		}
	}

	// Secondary scan: accession numbers from the transfer-level METS
	// documents. These route to the accessions variant of the space.
	values, err := resolver.scanTransferMets(bagDir)
	if err != nil {
		return nil, err
	}
	if len(values) > 0 {
		prefix, err := CommonPrefix(values)
		if err == nil {
			return &ExternalIdentifier{
				Space:              resolver.Space + constants.AccessionsSuffix,
				ExternalIdentifier: prefix,
				InternalIdentifier: packageUUID,
			}, nil
		}
		resolver.log.Info("Accession numbers in bag %s share no common prefix", packageUUID)
	}
	return nil, nil
}

// scanTransferMets collects accession numbers from every transfer
// METS.xml in the bag.
func (resolver *Resolver) scanTransferMets(bagDir string) ([]string, error) {
	files, err := fileutil.RecursiveFileList(bagDir)
	if err != nil {
		return nil, err
	}
	values := make([]string, 0)
	for _, file := range files {
		if filepath.Base(file) != "METS.xml" {
			continue
		}
		numbers, err := accessionNumbers(file)
		if err != nil {
			resolver.log.Warning("Error reading transfer METS document %s: %v", file, err)
			continue
		}
		values = append(values, numbers...)
	}
	return values, nil
}
