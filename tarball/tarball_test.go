package tarball_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/artefactual-labs/spaces/tarball"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func makeBagDir(t *testing.T, parent, name string) string {
	bagDir := filepath.Join(parent, name)
	require.NoError(t, os.MkdirAll(filepath.Join(bagDir, "data"), 0755))
	require.NoError(t, os.WriteFile(filepath.Join(bagDir, "bagit.txt"),
		[]byte("BagIt-Version: 0.97\nTag-File-Character-Encoding: UTF-8\n"), 0644))
	require.NoError(t, os.WriteFile(filepath.Join(bagDir, "data", "object.txt"),
		[]byte("payload"), 0644))
	return bagDir
}

func TestIsCompressedBag(t *testing.T) {
	assert.True(t, tarball.IsCompressedBag("bag.tar"))
	assert.True(t, tarball.IsCompressedBag("bag.tar.gz"))
	assert.True(t, tarball.IsCompressedBag("bag.TGZ"))
	assert.False(t, tarball.IsCompressedBag("bag.zip"))
	assert.False(t, tarball.IsCompressedBag("bag"))
}

func TestPackAndUnpack(t *testing.T) {
	for _, ext := range []string{".tar", ".tar.gz", ".tgz"} {
		srcParent := t.TempDir()
		bagDir := makeBagDir(t, srcParent, "my-bag")
		archivePath := filepath.Join(t.TempDir(), "my-bag"+ext)
		require.NoError(t, tarball.Pack(bagDir, archivePath))

		destDir := t.TempDir()
		topDir, err := tarball.Unpack(archivePath, destDir)
		require.NoError(t, err)
		assert.Equal(t, filepath.Join(destDir, "my-bag"), topDir)
		data, err := os.ReadFile(filepath.Join(topDir, "data", "object.txt"))
		require.NoError(t, err)
		assert.Equal(t, "payload", string(data))
	}
}

func TestDetectFormat(t *testing.T) {
	srcParent := t.TempDir()
	bagDir := makeBagDir(t, srcParent, "my-bag")

	tarPath := filepath.Join(t.TempDir(), "bag.tar")
	require.NoError(t, tarball.Pack(bagDir, tarPath))
	format, err := tarball.DetectFormat(tarPath)
	require.NoError(t, err)
	assert.Equal(t, tarball.FormatTar, format)

	tgzPath := filepath.Join(t.TempDir(), "bag.tar.gz")
	require.NoError(t, tarball.Pack(bagDir, tgzPath))
	format, err = tarball.DetectFormat(tgzPath)
	require.NoError(t, err)
	assert.Equal(t, tarball.FormatTarGz, format)

	textPath := filepath.Join(t.TempDir(), "notes.txt")
	require.NoError(t, os.WriteFile(textPath, []byte("just text"), 0644))
	format, err = tarball.DetectFormat(textPath)
	require.NoError(t, err)
	assert.Equal(t, "", format)
}

func TestUnpackRejectsNonArchive(t *testing.T) {
	textPath := filepath.Join(t.TempDir(), "notes.tar")
	require.NoError(t, os.WriteFile(textPath, []byte("just text"), 0644))
	_, err := tarball.Unpack(textPath, t.TempDir())
	assert.Error(t, err)
}

func TestRepackAtomic(t *testing.T) {
	srcParent := t.TempDir()
	bagDir := makeBagDir(t, srcParent, "my-bag")
	archivePath := filepath.Join(t.TempDir(), "my-bag.tar.gz")
	require.NoError(t, tarball.Pack(bagDir, archivePath))

	// Modify the bag, repack over the original archive, unpack and
	// check that the change came through.
	require.NoError(t, os.WriteFile(filepath.Join(bagDir, "bag-info.txt"),
		[]byte("External-Identifier: births/2018\n"), 0644))
	require.NoError(t, tarball.RepackAtomic(bagDir, archivePath))

	format, err := tarball.DetectFormat(archivePath)
	require.NoError(t, err)
	assert.Equal(t, tarball.FormatTarGz, format)

	topDir, err := tarball.Unpack(archivePath, t.TempDir())
	require.NoError(t, err)
	data, err := os.ReadFile(filepath.Join(topDir, "bag-info.txt"))
	require.NoError(t, err)
	assert.Equal(t, "External-Identifier: births/2018\n", string(data))

	// No temp droppings left behind.
	entries, err := os.ReadDir(filepath.Dir(archivePath))
	require.NoError(t, err)
	assert.Equal(t, 1, len(entries))
}

func TestRepackAtomicCreatesDestinationDir(t *testing.T) {
	srcParent := t.TempDir()
	bagDir := makeBagDir(t, srcParent, "my-bag")

	archivePath := filepath.Join(t.TempDir(), "out", "nested", "my-bag.tar.gz")
	require.NoError(t, tarball.RepackAtomic(bagDir, archivePath))

	topDir, err := tarball.Unpack(archivePath, t.TempDir())
	require.NoError(t, err)
	assert.FileExists(t, filepath.Join(topDir, "bagit.txt"))
}

func TestRepackPool(t *testing.T) {
	pool := tarball.NewRepackPool(2)
	archiveDir := t.TempDir()
	for i, name := range []string{"bag-a", "bag-b", "bag-c"} {
		bagDir := makeBagDir(t, t.TempDir(), name)
		archivePath := filepath.Join(archiveDir, name+".tar.gz")
		require.NoError(t, pool.Repack(bagDir, archivePath), "bag %d", i)
		_, err := tarball.Unpack(archivePath, t.TempDir())
		require.NoError(t, err)
	}
}
