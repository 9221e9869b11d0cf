// Common vars and constants, shared by many parts of the spaces library.
package constants

import (
	"time"
)

// Access protocols. Each Space carries exactly one of these tags, and
// the tag selects the protocol-specific backend that knows how to reach
// the space's contents.
const (
	ProtocolLocalFilesystem = "FS"
	ProtocolNFS             = "NFS"
	ProtocolPipelineLocalFS = "PIPE_FS"
	ProtocolObjectStore     = "S3"
	ProtocolRemoteArchive   = "ARCHIVE"
)

var Protocols = []string{
	ProtocolLocalFilesystem,
	ProtocolNFS,
	ProtocolPipelineLocalFS,
	ProtocolObjectStore,
	ProtocolRemoteArchive,
}

// ObjectStorageProtocols lists the protocols that address objects by
// key rather than by mounted path. Spaces using these protocols do not
// require a local base path.
var ObjectStorageProtocols = []string{
	ProtocolObjectStore,
	ProtocolRemoteArchive,
}

// Package statuses. STAGING is the durable wait state of the remote
// ingest workflow: a package stays in STAGING from the moment an ingest
// is requested until a callback or a status poll reports a terminal
// result.
const (
	StatusPending  = "PENDING"
	StatusStaging  = "STAGING"
	StatusUploaded = "UPLOADED"
	StatusFail     = "FAIL"
	StatusDeleted  = "DELETED"
)

var PackageStatuses = []string{
	StatusPending,
	StatusStaging,
	StatusUploaded,
	StatusFail,
	StatusDeleted,
}

// Statuses reported by the remote archival ingest service. Values the
// reconciliation loop does not recognize are logged and ignored.
const (
	IngestAccepted   = "accepted"
	IngestProcessing = "processing"
	IngestSucceeded  = "succeeded"
	IngestFailed     = "failed"
)

// Ingest types for remote ingest creation.
const (
	IngestTypeCreate = "create"
	IngestTypeUpdate = "update"
)

// Keys used in Package.MiscAttributes to persist backend bookkeeping
// across the asynchronous ingest workflow.
const (
	AttrBagIdentifier = "bag_identifier"
	AttrBagVersion    = "bag_version"
	AttrIngestRef     = "ingest_location"
	AttrArchiveSpace  = "archive_space"
)

// Identifier routing conventions. Identifiers beginning with
// ReservedTestPrefix are diverted to TestingSpace regardless of how
// they were derived. Identifiers derived from accession numbers land
// in a space tagged with AccessionsSuffix.
const (
	ReservedTestPrefix = "TEST"
	TestingSpace       = "testing"
	AccessionsSuffix   = "-accessions"
)

// Reconciliation loop tuning. A full round is IngestPollSubWaits
// sub-waits of IngestPollSubWait each; the package status is rechecked
// after every sub-wait so an inbound callback is noticed quickly, and
// the remote status endpoint is only queried after a full round.
const (
	IngestPollSubWait  = 10 * time.Second
	IngestPollSubWaits = 6
)

// CallbackAPIVersion is the protocol version segment embedded in
// ingest callback URLs.
const CallbackAPIVersion = "v2"

// Checksum algorithms used in bag tag manifests.
const (
	AlgMd5    = "md5"
	AlgSha256 = "sha256"
)

var ChecksumAlgorithms = []string{AlgMd5, AlgSha256}
