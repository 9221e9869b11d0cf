package store

import (
	"bytes"
	"encoding/gob"
	"fmt"

	"github.com/artefactual-labs/spaces/models"
	"github.com/boltdb/bolt"
)

const PACKAGE_BUCKET = "packages"
const SPACE_BUCKET = "spaces"

// PackageStore is a bolt database, a single-file key-value store,
// holding our package and space records. Package status has to survive
// process restarts because a remote ingest can take hours and the
// completion callback may arrive long after the uploading process has
// moved on.
type PackageStore struct {
	db       *bolt.DB
	filePath string
}

// NewPackageStore opens a bolt database at filePath, creating the DB
// file if it doesn't already exist.
func NewPackageStore(filePath string) (store *PackageStore, err error) {
	db, err := bolt.Open(filePath, 0644, nil)
	if err == nil {
		store = &PackageStore{
			db:       db,
			filePath: filePath,
		}
		err = store.initBuckets()
	}
	return store, err
}

func (store *PackageStore) initBuckets() error {
	return store.db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists([]byte(PACKAGE_BUCKET))
		if err != nil {
			return fmt.Errorf("Error creating package bucket: %s", err)
		}
		_, err = tx.CreateBucketIfNotExists([]byte(SPACE_BUCKET))
		if err != nil {
			return fmt.Errorf("Error creating space bucket: %s", err)
		}
		return nil
	})
}

// FilePath returns the path to the bolt DB file.
func (store *PackageStore) FilePath() string {
	return store.filePath
}

// Close closes the bolt database.
func (store *PackageStore) Close() {
	store.db.Close()
}

// Save saves a package record, keyed by its UUID.
func (store *PackageStore) Save(pkg *models.Package) error {
	return store.save(PACKAGE_BUCKET, pkg.UUID, pkg)
}

// Find returns the package with the given UUID. If the UUID is not
// found, this returns nil and no error.
func (store *PackageStore) Find(uuid string) (*models.Package, error) {
	pkg := &models.Package{}
	found, err := store.load(PACKAGE_BUCKET, uuid, pkg)
	if !found {
		pkg = nil
	}
	return pkg, err
}

// Reload refreshes pkg in place from the stored record. Callers
// waiting on an asynchronous ingest use this to pick up status
// changes written by the callback service. Returns an error if the
// package is no longer in the store.
func (store *PackageStore) Reload(pkg *models.Package) error {
	fresh, err := store.Find(pkg.UUID)
	if err != nil {
		return err
	}
	if fresh == nil {
		return fmt.Errorf("Package %s is not in the store", pkg.UUID)
	}
	*pkg = *fresh
	return nil
}

// UUIDs returns the UUIDs of all packages in the store.
func (store *PackageStore) UUIDs() []string {
	keys := make([]string, 0)
	store.db.View(func(tx *bolt.Tx) error {
		b := tx.Bucket([]byte(PACKAGE_BUCKET))
		c := b.Cursor()
		for k, _ := c.First(); k != nil; k, _ = c.Next() {
			keys = append(keys, string(k))
		}
		return nil
	})
	return keys
}

// SaveSpace saves a space record, keyed by its UUID.
func (store *PackageStore) SaveSpace(space *models.Space) error {
	return store.save(SPACE_BUCKET, space.UUID, space)
}

// FindSpace returns the space with the given UUID. If the UUID is not
// found, this returns nil and no error.
func (store *PackageStore) FindSpace(uuid string) (*models.Space, error) {
	space := &models.Space{}
	found, err := store.load(SPACE_BUCKET, uuid, space)
	if !found {
		space = nil
	}
	return space, err
}

func (store *PackageStore) save(bucketName, key string, value interface{}) error {
	var byteSlice []byte
	buf := bytes.NewBuffer(byteSlice)
	encoder := gob.NewEncoder(buf)
	err := encoder.Encode(value)
	if err == nil {
		err = store.db.Update(func(tx *bolt.Tx) error {
			bucket := tx.Bucket([]byte(bucketName))
			return bucket.Put([]byte(key), buf.Bytes())
		})
	}
	return err
}

func (store *PackageStore) load(bucketName, key string, value interface{}) (bool, error) {
	var err error
	found := false
	err = store.db.View(func(tx *bolt.Tx) error {
		bucket := tx.Bucket([]byte(bucketName))
		data := bucket.Get([]byte(key))
		if len(data) > 0 {
			found = true
			buf := bytes.NewBuffer(data)
			decoder := gob.NewDecoder(buf)
			err = decoder.Decode(value)
		}
		return err
	})
	return found, err
}
