package models

// Bag describes a stored bag as reported by the remote archival
// storage API. Location.Path is the key prefix of the bag's root in
// the remote object store; each manifest file's Path is relative to
// that prefix and includes the version directory.
type Bag struct {
	ID       string      `json:"id"`
	Location BagLocation `json:"location"`
	Manifest BagManifest `json:"manifest"`
	Version  string      `json:"version"`
}

// BagLocation says which bucket and key prefix hold the bag's objects.
type BagLocation struct {
	Provider BagProvider `json:"provider"`
	Bucket   string      `json:"bucket"`
	Path     string      `json:"path"`
}

// BagProvider identifies the storage provider holding a bag.
type BagProvider struct {
	ID string `json:"id"`
}

// BagManifest lists the files making up a stored bag version.
type BagManifest struct {
	Files []BagFile `json:"files"`
}

// BagFile is a single file within a stored bag. Name is the file's
// logical path inside the bag; Path is its storage path relative to
// the bag's location prefix.
type BagFile struct {
	Name string `json:"name"`
	Path string `json:"path"`
	Size int64  `json:"size"`
}
