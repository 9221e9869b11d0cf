package network

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/artefactual-labs/spaces"
	"github.com/artefactual-labs/spaces/models"
	"github.com/warpfork/go-errcat"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/clientcredentials"
)

// Don't log error messages longer than this
const MAX_ERR_MSG_SIZE = 2048

// ArchiveClient talks to the remote archival storage service's HTTP
// API: it creates asynchronous ingest jobs, polls them, and looks up
// stored bags. Authentication is OAuth2 client credentials; the token
// source refreshes itself, so one client serves a long-running worker.
type ArchiveClient struct {
	HostUrl    string
	httpClient *http.Client
	transport  *http.Transport
}

// NewArchiveClient creates a new client for the storage API rooted at
// hostUrl. If clientID is empty, requests go out unauthenticated,
// which is only useful against a test server.
func NewArchiveClient(hostUrl, tokenUrl, clientID, clientSecret string) *ArchiveClient {
	transport := &http.Transport{
		MaxIdleConnsPerHost: 8,
		DisableKeepAlives:   false,
		Dial: (&net.Dialer{
			Timeout:   10 * time.Second,
			KeepAlive: 30 * time.Second,
		}).Dial,
		ResponseHeaderTimeout: 10 * time.Second,
		TLSHandshakeTimeout:   10 * time.Second,
	}
	baseClient := &http.Client{
		Transport: transport,
	}
	httpClient := baseClient
	if clientID != "" {
		conf := &clientcredentials.Config{
			ClientID:     clientID,
			ClientSecret: clientSecret,
			TokenURL:     tokenUrl,
		}
		ctx := context.WithValue(context.Background(), oauth2.HTTPClient, baseClient)
		httpClient = conf.Client(ctx)
	}
	// Trim trailing slashes from host url
	for strings.HasSuffix(hostUrl, "/") {
		hostUrl = hostUrl[:len(hostUrl)-1]
	}
	return &ArchiveClient{
		HostUrl:    hostUrl,
		httpClient: httpClient,
		transport:  transport,
	}
}

// BuildUrl combines the host and protocol in client.HostUrl with
// relativeUrl to create an absolute URL. For example, if client.HostUrl
// is "http://localhost:3456", then client.BuildUrl("/path/to/action")
// would return "http://localhost:3456/path/to/action".
func (client *ArchiveClient) BuildUrl(relativeUrl string, queryParams *url.Values) string {
	fullUrl := client.HostUrl + relativeUrl
	if queryParams != nil {
		fullUrl = fmt.Sprintf("%s?%s", fullUrl, queryParams.Encode())
	}
	return fullUrl
}

// NewJsonRequest returns a new request with headers indicating
// JSON request and response formats.
func (client *ArchiveClient) NewJsonRequest(method, targetUrl string, body io.Reader) (*http.Request, error) {
	req, err := http.NewRequest(method, targetUrl, body)
	if err != nil {
		return nil, err
	}
	req.Header.Add("Content-Type", "application/json")
	req.Header.Add("Accept", "application/json")
	req.Header.Add("Connection", "Keep-Alive")
	return req, nil
}

// ingestRequest is the body POSTed to the ingests endpoint.
type ingestRequest struct {
	Type           string            `json:"type"`
	IngestType     typedId           `json:"ingestType"`
	Space          typedId           `json:"space"`
	SourceLocation ingestSource      `json:"sourceLocation"`
	Callback       ingestCallbackUrl `json:"callback"`
	Bag            models.IngestBag  `json:"bag"`
}

type typedId struct {
	ID   string `json:"id"`
	Type string `json:"type"`
}

type ingestSource struct {
	Type     string  `json:"type"`
	Provider typedId `json:"provider"`
	Bucket   string  `json:"bucket"`
	Path     string  `json:"path"`
}

type ingestCallbackUrl struct {
	Type string `json:"type"`
	URL  string `json:"url"`
}

// CreateIngest asks the remote service to ingest the object staged at
// bucket/key into the given space under externalIdentifier. Param
// ingestType is constants.IngestTypeCreate or constants.IngestTypeUpdate.
// The remote service will POST completion to callbackUrl, if non-empty.
// Returns a location reference for polling the new ingest job.
func (client *ArchiveClient) CreateIngest(space, externalIdentifier, ingestType, bucket, key, callbackUrl string) (string, error) {
	body := &ingestRequest{
		Type:       "Ingest",
		IngestType: typedId{ID: ingestType, Type: "IngestType"},
		Space:      typedId{ID: space, Type: "Space"},
		SourceLocation: ingestSource{
			Type:     "Location",
			Provider: typedId{ID: "amazon-s3", Type: "Provider"},
			Bucket:   bucket,
			Path:     key,
		},
		Callback: ingestCallbackUrl{Type: "Callback", URL: callbackUrl},
		Bag: models.IngestBag{
			Info: models.IngestBagInfo{ExternalIdentifier: externalIdentifier},
		},
	}
	payload, err := json.Marshal(body)
	if err != nil {
		return "", err
	}
	absUrl := client.BuildUrl("/storage/v1/ingests", nil)
	req, err := client.NewJsonRequest("POST", absUrl, bytes.NewBuffer(payload))
	if err != nil {
		return "", err
	}
	response, data, err := client.doRequest(req)
	if err != nil {
		return "", errcat.Errorf(spaces.ErrStorage,
			"Error creating ingest for '%s': %v", externalIdentifier, err)
	}
	if response.StatusCode != http.StatusCreated {
		return "", errcat.Errorf(spaces.ErrStorage,
			"Ingest request for '%s' returned status %d: %s",
			externalIdentifier, response.StatusCode, truncate(data))
	}
	location := response.Header.Get("Location")
	if location == "" {
		return "", errcat.Errorf(spaces.ErrStorage,
			"Ingest request for '%s' returned no location reference", externalIdentifier)
	}
	return location, nil
}

// GetIngest fetches the current state of the ingest job at
// locationRef, which came from CreateIngest.
func (client *ArchiveClient) GetIngest(locationRef string) (*models.Ingest, error) {
	targetUrl := locationRef
	if strings.HasPrefix(locationRef, "/") {
		targetUrl = client.BuildUrl(locationRef, nil)
	}
	req, err := client.NewJsonRequest("GET", targetUrl, nil)
	if err != nil {
		return nil, err
	}
	response, data, err := client.doRequest(req)
	if err != nil {
		return nil, errcat.Errorf(spaces.ErrStorage,
			"Error fetching ingest %s: %v", locationRef, err)
	}
	if response.StatusCode != http.StatusOK {
		return nil, errcat.Errorf(spaces.ErrStorage,
			"Ingest %s returned status %d: %s",
			locationRef, response.StatusCode, truncate(data))
	}
	ingest := &models.Ingest{}
	if err = json.Unmarshal(data, ingest); err != nil {
		return nil, errcat.Errorf(spaces.ErrStorage,
			"Error parsing ingest %s: %v", locationRef, err)
	}
	return ingest, nil
}

// GetBag looks up the stored bag identified by space and
// externalIdentifier. Version may be empty for the latest version. A
// miss comes back as ErrBagNotFound, which callers use to select
// create-vs-update ingest typing.
func (client *ArchiveClient) GetBag(space, externalIdentifier, version string) (*models.Bag, error) {
	relativeUrl := fmt.Sprintf("/storage/v1/bags/%s/%s",
		url.PathEscape(space), url.PathEscape(externalIdentifier))
	var queryParams *url.Values
	if version != "" {
		queryParams = &url.Values{}
		queryParams.Set("version", version)
	}
	req, err := client.NewJsonRequest("GET", client.BuildUrl(relativeUrl, queryParams), nil)
	if err != nil {
		return nil, err
	}
	response, data, err := client.doRequest(req)
	if err != nil {
		return nil, errcat.Errorf(spaces.ErrStorage,
			"Error fetching bag %s/%s: %v", space, externalIdentifier, err)
	}
	if response.StatusCode == http.StatusNotFound {
		return nil, errcat.Errorf(spaces.ErrBagNotFound,
			"Bag %s/%s not found", space, externalIdentifier)
	}
	if response.StatusCode != http.StatusOK {
		return nil, errcat.Errorf(spaces.ErrStorage,
			"Bag %s/%s returned status %d: %s",
			space, externalIdentifier, response.StatusCode, truncate(data))
	}
	bag := &models.Bag{}
	if err = json.Unmarshal(data, bag); err != nil {
		return nil, errcat.Errorf(spaces.ErrStorage,
			"Error parsing bag %s/%s: %v", space, externalIdentifier, err)
	}
	return bag, nil
}

func (client *ArchiveClient) doRequest(req *http.Request) (*http.Response, []byte, error) {
	response, err := client.httpClient.Do(req)
	if err != nil {
		return nil, nil, err
	}
	defer response.Body.Close()
	data, err := io.ReadAll(response.Body)
	if err != nil {
		return response, nil, err
	}
	return response, data, nil
}

func truncate(data []byte) string {
	if len(data) > MAX_ERR_MSG_SIZE {
		data = data[:MAX_ERR_MSG_SIZE]
	}
	return string(data)
}
