package fileutil

import (
	"crypto/md5"
	"crypto/sha256"
	"encoding/json"
	"fmt"
	"hash"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/artefactual-labs/spaces/constants"
	"github.com/artefactual-labs/spaces/util"
)

// FileExists returns true if the file at path exists, false if not.
func FileExists(path string) bool {
	_, err := os.Stat(path)
	if err != nil && os.IsNotExist(err) {
		return false
	}
	return true
}

// IsDir returns true if the item at path exists and is a directory.
func IsDir(path string) bool {
	stat, err := os.Stat(path)
	return err == nil && stat.IsDir()
}

// IsFile returns true if the item at path exists and is a regular file.
func IsFile(path string) bool {
	stat, err := os.Stat(path)
	return err == nil && stat.Mode().IsRegular()
}

// JsonFileToObject reads data from the file at absPath and unmarshals
// it into obj. Returns an error if there's a problem reading the file
// or unmarshalling the data into the type you passed in.
func JsonFileToObject(absPath string, obj interface{}) error {
	data, err := os.ReadFile(absPath)
	if err != nil {
		return err
	}
	return json.Unmarshal(data, obj)
}

// RecursiveFileList returns a list of all files in path dir
// and its subfolders. It does not return directories.
func RecursiveFileList(dir string) ([]string, error) {
	files := make([]string, 0)
	err := filepath.Walk(dir, func(filePath string, f os.FileInfo, err error) error {
		if f != nil && f.IsDir() == false {
			files = append(files, filePath)
		}
		return nil
	})
	return files, err
}

// CountFiles returns the number of files in a directory, including
// those in its subdirectories.
func CountFiles(dir string) int {
	total := 0
	filepath.Walk(dir, func(filePath string, f os.FileInfo, err error) error {
		if f != nil && f.IsDir() == false {
			total++
		}
		return nil
	})
	return total
}

// LooksSafeToDelete returns true if the path specified by dir has at
// least minLength characters and at least minSeparators path
// separators. This is for testing paths you want to pass into
// os.RemoveAll(), so you don't wind up deleting "/" or "/etc" or
// something catastrophic like that. The filesystem root is never safe,
// whatever the thresholds.
func LooksSafeToDelete(dir string, minLength, minSeparators int) bool {
	separator := string(os.PathSeparator)
	if filepath.Clean(dir) == separator {
		return false
	}
	separatorCount := (len(dir) - len(strings.Replace(dir, separator, "", -1)))
	return len(dir) >= minLength && separatorCount >= minSeparators
}

// CalculateChecksum calculates the md5 or sha256 checksum of a file.
// Param pathToFile is the path to the file, and algorithm should be one
// of constants.AlgMd5 or constants.AlgSha256. Returns the hex-encoded
// digest or an error.
func CalculateChecksum(pathToFile, algorithm string) (string, error) {
	if !util.StringListContains(constants.ChecksumAlgorithms, algorithm) {
		return "", fmt.Errorf("Unsupported algorithm: %s", algorithm)
	}
	var _hash hash.Hash
	if algorithm == constants.AlgMd5 {
		_hash = md5.New()
	} else {
		_hash = sha256.New()
	}
	inputFile, err := os.Open(pathToFile)
	if err != nil {
		return "", err
	}
	defer inputFile.Close()
	if _, err = io.Copy(_hash, inputFile); err != nil {
		return "", err
	}
	return fmt.Sprintf("%x", _hash.Sum(nil)), nil
}

// ExpandTilde expands the tilde in a file path to the current user's
// home directory. Returns the path unchanged if it has no tilde.
func ExpandTilde(filePath string) (string, error) {
	if strings.Index(filePath, "~") < 0 {
		return filePath, nil
	}
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	separator := string(os.PathSeparator)
	homeDir = homeDir + separator
	expandedDir := strings.Replace(filePath, "~"+separator, homeDir, 1)
	return expandedDir, nil
}

// CopyFile copies the file at src to dest, creating dest's parent
// directories as needed.
func CopyFile(src, dest string) (int64, error) {
	if err := os.MkdirAll(filepath.Dir(dest), 0755); err != nil {
		return 0, err
	}
	in, err := os.Open(src)
	if err != nil {
		return 0, err
	}
	defer in.Close()
	out, err := os.Create(dest)
	if err != nil {
		return 0, err
	}
	defer out.Close()
	return io.Copy(out, in)
}
