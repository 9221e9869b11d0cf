package identifier_test

import (
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/artefactual-labs/spaces/bagit"
	"github.com/artefactual-labs/spaces/identifier"
	"github.com/artefactual-labs/spaces/tarball"
	"github.com/artefactual-labs/spaces/util/logger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testUUID = "40691e86-2d13-4ab4-9cb1-08f3d7a763f8"

func metsWithIdentifiers(identifiers ...string) string {
	body := `<mets xmlns:dc="http://purl.org/dc/elements/1.1/">` +
		`<dmdSec><mdWrap><xmlData><dublincore>`
	for _, id := range identifiers {
		body += fmt.Sprintf("<dc:identifier>%s</dc:identifier>", id)
	}
	return body + `</dublincore></xmlData></mdWrap></dmdSec></mets>`
}

func transferMetsWithAccessions(accessions ...string) string {
	body := `<mets:mets xmlns:mets="http://www.loc.gov/METS/"><mets:metsHdr>`
	for _, acc := range accessions {
		body += fmt.Sprintf(`<mets:altRecordID TYPE="Accession number">%s</mets:altRecordID>`, acc)
	}
	return body + `</mets:metsHdr></mets:mets>`
}

// makeBagArchive builds a serialized bag with the given METS content.
// Either document may be empty to omit it.
func makeBagArchive(t *testing.T, uuid, metsBody, transferMetsBody string) string {
	bagDir := filepath.Join(t.TempDir(), "my-bag")
	require.NoError(t, os.MkdirAll(filepath.Join(bagDir, "data"), 0755))
	require.NoError(t, os.WriteFile(filepath.Join(bagDir, "bagit.txt"),
		[]byte("BagIt-Version: 0.97\nTag-File-Character-Encoding: UTF-8\n"), 0644))
	require.NoError(t, os.WriteFile(filepath.Join(bagDir, "bag-info.txt"),
		[]byte("Bagging-Date: 2018-04-09\n"), 0644))
	if metsBody != "" {
		require.NoError(t, os.WriteFile(
			filepath.Join(bagDir, "data", fmt.Sprintf("METS.%s.xml", uuid)),
			[]byte(metsBody), 0644))
	}
	if transferMetsBody != "" {
		transferDir := filepath.Join(bagDir, "data", "objects", "submissionDocumentation",
			"transfer-a", "metadata")
		require.NoError(t, os.MkdirAll(transferDir, 0755))
		require.NoError(t, os.WriteFile(filepath.Join(transferDir, "METS.xml"),
			[]byte(transferMetsBody), 0644))
	}
	archivePath := filepath.Join(t.TempDir(), "my-bag.tar.gz")
	require.NoError(t, tarball.Pack(bagDir, archivePath))
	return archivePath
}

func newTestResolver() *identifier.Resolver {
	return identifier.NewResolver("born-digital", tarball.NewRepackPool(1),
		logger.DiscardLogger("identifier_test"))
}

func TestResolveNotAnArchive(t *testing.T) {
	resolver := newTestResolver()
	path := filepath.Join(t.TempDir(), "object.txt")
	require.NoError(t, os.WriteFile(path, []byte("payload"), 0644))
	result, err := resolver.Resolve(path, testUUID)
	require.NoError(t, err)
	assert.Equal(t, testUUID, result.ExternalIdentifier)
	assert.Equal(t, testUUID, result.InternalIdentifier)
	assert.Equal(t, "born-digital", result.Space)
}

func TestResolveNoMets(t *testing.T) {
	resolver := newTestResolver()
	archivePath := makeBagArchive(t, testUUID, "", "")
	result, err := resolver.Resolve(archivePath, testUUID)
	require.NoError(t, err)
	assert.Equal(t, testUUID, result.ExternalIdentifier)
}

func TestResolveFromDublinCore(t *testing.T) {
	resolver := newTestResolver()
	archivePath := makeBagArchive(t, testUUID,
		metsWithIdentifiers("births/2018/1", "births/2018/2"), "")
	result, err := resolver.Resolve(archivePath, testUUID)
	require.NoError(t, err)
	assert.Equal(t, "births/2018", result.ExternalIdentifier)
	assert.Equal(t, "born-digital", result.Space)
	assert.Equal(t, testUUID, result.InternalIdentifier)

	// The archive was rewritten to carry the identifier.
	bagDir, err := tarball.Unpack(archivePath, t.TempDir())
	require.NoError(t, err)
	bag, err := bagit.LoadBag(bagDir)
	require.NoError(t, err)
	id, err := bag.ExternalIdentifier()
	require.NoError(t, err)
	assert.Equal(t, "births/2018", id)
}

func TestResolveFallsBackToAccessions(t *testing.T) {
	resolver := newTestResolver()
	archivePath := makeBagArchive(t, testUUID,
		metsWithIdentifiers("AA/1", "BB/2"),
		transferMetsWithAccessions("ACC/2018/1", "ACC/2018/2"))
	result, err := resolver.Resolve(archivePath, testUUID)
	require.NoError(t, err)
	assert.Equal(t, "ACC/2018", result.ExternalIdentifier)
	assert.Equal(t, "born-digital-accessions", result.Space)
}

func TestResolveNoCommonPrefixAnywhere(t *testing.T) {
	resolver := newTestResolver()
	archivePath := makeBagArchive(t, testUUID,
		metsWithIdentifiers("AA/1", "BB/2"),
		transferMetsWithAccessions("CC/1", "DD/2"))
	result, err := resolver.Resolve(archivePath, testUUID)
	require.NoError(t, err)
	assert.Equal(t, testUUID, result.ExternalIdentifier)
	assert.Equal(t, "born-digital", result.Space)
}

func TestResolveTestPrefixDiverts(t *testing.T) {
	resolver := newTestResolver()
	archivePath := makeBagArchive(t, testUUID,
		metsWithIdentifiers("TEST/1", "TEST/2"), "")
	result, err := resolver.Resolve(archivePath, testUUID)
	require.NoError(t, err)
	assert.Equal(t, "TEST", result.ExternalIdentifier)
	assert.Equal(t, "testing", result.Space)
}
