package models

// Ingest is the body of a remote asynchronous ingest job, as returned
// by the archival storage API's ingest endpoint and as delivered to our
// callback endpoint. The local system never persists it; it only ever
// holds a location reference and polls, or receives the body pushed.
type Ingest struct {
	ID       string         `json:"id"`
	Status   IngestStatus   `json:"status"`
	Callback IngestCallback `json:"callback"`
	Bag      IngestBag      `json:"bag"`
	Events   []IngestEvent  `json:"events"`
}

// IngestStatus wraps the status identifier. See the constants.Ingest*
// values for the statuses we recognize.
type IngestStatus struct {
	ID string `json:"id"`
}

// IngestCallback reports whether the remote service managed to deliver
// its completion callback.
type IngestCallback struct {
	Status IngestStatus `json:"status"`
}

// IngestBag identifies the bag an ingest operated on.
type IngestBag struct {
	Info IngestBagInfo `json:"info"`
}

// IngestBagInfo carries the remote-assigned identity of a stored bag.
type IngestBagInfo struct {
	ExternalIdentifier string `json:"externalIdentifier"`
	Version            string `json:"version"`
}

// IngestEvent is a progress or failure report attached to an ingest.
type IngestEvent struct {
	Description string `json:"description"`
	CreatedDate string `json:"createdDate"`
}
