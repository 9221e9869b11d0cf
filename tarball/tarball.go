package tarball

import (
	"archive/tar"
	"compress/gzip"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/gabriel-vasile/mimetype"
	"github.com/satori/go.uuid"
)

// Archive formats we know how to read and write.
const (
	FormatTar   = "tar"
	FormatTarGz = "tgz"
)

// IsCompressedBag returns true if the file name looks like a serialized
// bag we can unpack: .tar, .tar.gz or .tgz.
func IsCompressedBag(pathToFile string) bool {
	name := strings.ToLower(pathToFile)
	return strings.HasSuffix(name, ".tar") ||
		strings.HasSuffix(name, ".tar.gz") ||
		strings.HasSuffix(name, ".tgz")
}

// DetectFormat sniffs the content of the file at pathToFile and
// returns FormatTar, FormatTarGz, or an empty string if the file is
// neither. The file extension is not consulted.
func DetectFormat(pathToFile string) (string, error) {
	mime, err := mimetype.DetectFile(pathToFile)
	if err != nil {
		return "", err
	}
	if mime.Is("application/gzip") {
		return FormatTarGz, nil
	}
	if mime.Is("application/x-tar") {
		return FormatTar, nil
	}
	return "", nil
}

// Unpack extracts the tar or tar.gz archive at tarFilePath into
// destDir and returns the absolute path of the archive's single
// top-level directory. Serialized bags must untar to exactly one
// top-level directory; anything else is an error. Entries whose names
// would escape destDir are rejected.
func Unpack(tarFilePath, destDir string) (string, error) {
	format, err := DetectFormat(tarFilePath)
	if err != nil {
		return "", fmt.Errorf("Cannot read archive '%s': %v", tarFilePath, err)
	}
	if format == "" {
		return "", fmt.Errorf("File '%s' is neither a tar nor a tar.gz archive", tarFilePath)
	}

	file, err := os.Open(tarFilePath)
	if err != nil {
		return "", fmt.Errorf("Could not open file %s for untarring: %v", tarFilePath, err)
	}
	defer file.Close()

	var reader io.Reader = file
	if format == FormatTarGz {
		gzReader, err := gzip.NewReader(file)
		if err != nil {
			return "", fmt.Errorf("Error reading gzip header of '%s': %v", tarFilePath, err)
		}
		defer gzReader.Close()
		reader = gzReader
	}

	topLevelDir := ""
	tarReader := tar.NewReader(reader)
	for {
		header, err := tarReader.Next()
		if err == io.EOF {
			break // end of archive
		}
		if err != nil {
			return "", fmt.Errorf("Error reading tar file header: %v. "+
				"Either this is not a tar file, or the file is corrupt.", err)
		}

		name := filepath.Clean(header.Name)
		if filepath.IsAbs(name) || strings.HasPrefix(name, "..") {
			return "", fmt.Errorf("Archive entry '%s' would escape the destination directory", header.Name)
		}

		topDir := strings.SplitN(name, string(filepath.Separator), 2)[0]
		if topLevelDir == "" {
			topLevelDir = topDir
		} else if topDir != topLevelDir {
			return "", fmt.Errorf("Bag '%s' should untar to a single folder, "+
				"but it contains both '%s' and '%s'. Please repackage this bag and try again.",
				filepath.Base(tarFilePath), topLevelDir, topDir)
		}

		outputPath := filepath.Join(destDir, name)
		switch header.Typeflag {
		case tar.TypeDir:
			if err = os.MkdirAll(outputPath, 0755); err != nil {
				return "", fmt.Errorf("Could not create directory '%s' "+
					"while unpacking tar archive: %v", outputPath, err)
			}
		case tar.TypeReg, tar.TypeRegA:
			if err = os.MkdirAll(filepath.Dir(outputPath), 0755); err != nil {
				return "", fmt.Errorf("Could not create destination directory for '%s' "+
					"while unpacking tar archive: %v", outputPath, err)
			}
			if err = saveFile(outputPath, tarReader); err != nil {
				return "", fmt.Errorf("Error copying file from tar archive to '%s': %v", outputPath, err)
			}
		default:
			// Symlinks and other oddities are skipped. Bags
			// should not contain them.
		}
	}
	if topLevelDir == "" {
		return "", fmt.Errorf("Archive '%s' is empty", tarFilePath)
	}
	return filepath.Join(destDir, topLevelDir), nil
}

// Saves a file from the tar archive to local disk.
func saveFile(destination string, tarReader *tar.Reader) error {
	outputWriter, err := os.OpenFile(destination, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0644)
	if err != nil {
		return err
	}
	defer outputWriter.Close()
	_, err = io.Copy(outputWriter, tarReader)
	return err
}

// Pack serializes the directory at srcDir into an archive at
// tarFilePath. All entries go under a single top-level directory
// named after srcDir's base name. The archive is gzip-compressed if
// tarFilePath ends in .gz or .tgz.
func Pack(srcDir, tarFilePath string) error {
	tarFile, err := os.Create(tarFilePath)
	if err != nil {
		return fmt.Errorf("Error creating tar file: %v", err)
	}
	defer tarFile.Close()

	var writer io.Writer = tarFile
	var gzWriter *gzip.Writer
	lowered := strings.ToLower(tarFilePath)
	if strings.HasSuffix(lowered, ".gz") || strings.HasSuffix(lowered, ".tgz") {
		gzWriter = gzip.NewWriter(tarFile)
		writer = gzWriter
	}
	tarWriter := tar.NewWriter(writer)

	topDir := filepath.Base(srcDir)
	err = filepath.Walk(srcDir, func(filePath string, finfo os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if !finfo.Mode().IsRegular() {
			return nil
		}
		relPath, err := filepath.Rel(srcDir, filePath)
		if err != nil {
			return err
		}
		return addToArchive(tarWriter, filePath, filepath.Join(topDir, relPath), finfo)
	})
	if err != nil {
		return err
	}
	if err = tarWriter.Close(); err != nil {
		return err
	}
	if gzWriter != nil {
		return gzWriter.Close()
	}
	return nil
}

// Adds a file to a tar archive.
func addToArchive(tarWriter *tar.Writer, filePath, pathWithinArchive string, finfo os.FileInfo) error {
	header := &tar.Header{
		Name:    pathWithinArchive,
		Size:    finfo.Size(),
		Mode:    int64(finfo.Mode().Perm()),
		ModTime: finfo.ModTime(),
	}
	if err := tarWriter.WriteHeader(header); err != nil {
		return err
	}
	file, err := os.Open(filePath)
	if err != nil {
		return err
	}
	defer file.Close()
	bytesWritten, err := io.Copy(tarWriter, file)
	if err != nil {
		return fmt.Errorf("Error copying %s into tar archive: %v", filePath, err)
	}
	if bytesWritten != header.Size {
		return fmt.Errorf("Copied only %d of %d bytes for file %s",
			bytesWritten, header.Size, filePath)
	}
	return nil
}

// RepackAtomic serializes srcDir and replaces the archive at
// tarFilePath in one step. The new archive is written to a temp file
// beside the target and renamed into place, so a reader never sees a
// half-written archive.
func RepackAtomic(srcDir, tarFilePath string) error {
	if err := os.MkdirAll(filepath.Dir(tarFilePath), 0755); err != nil {
		return fmt.Errorf("Error creating directory for %s: %v", tarFilePath, err)
	}
	// The temp file keeps the target's base name as a suffix so
	// Pack applies the same compression.
	tempPath := filepath.Join(filepath.Dir(tarFilePath),
		fmt.Sprintf(".repack-%s-%s", uuid.NewV4().String(), filepath.Base(tarFilePath)))
	if err := Pack(srcDir, tempPath); err != nil {
		os.Remove(tempPath)
		return err
	}
	if err := os.Rename(tempPath, tarFilePath); err != nil {
		os.Remove(tempPath)
		return err
	}
	return nil
}
