package network

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/artefactual-labs/spaces/models"
)

// NSQStats contains basic info about the status of NSQ and its
// topics. This info comes from a GET call to the /stats endpoint.
type NSQStats struct {
	Version string          `json:"version"`
	Health  string          `json:"health"`
	Topics  []NSQTopicStats `json:"topics"`
}

type NSQTopicStats struct {
	TopicName    string `json:"topic_name"`
	Depth        int64  `json:"depth"`
	MessageCount uint64 `json:"message_count"`
}

type NSQClient struct {
	URL string
}

// NewNSQClient returns a new NSQ client that will connect to the NSQ
// server at the specified url. The URL is typically available through
// Config.NsqdHttpAddress, and usually ends with :4151. This is the
// URL to which we post items we want to queue, and from which our
// workers read.
//
// Note that this client provides write access to the queue, so we can
// add things. It does not provide read access. The workers do the
// reading.
func NewNSQClient(url string) *NSQClient {
	return &NSQClient{URL: url}
}

// Enqueue posts data to NSQ, which essentially means putting it into
// a work topic. Param topic is the topic under which you want to queue
// something, e.g. the move worker's topic.
func (client *NSQClient) Enqueue(topic string, data []byte) error {
	url := fmt.Sprintf("%s/pub?topic=%s", client.URL, topic)
	resp, err := http.Post(url, "application/json", bytes.NewBuffer(data))
	if err != nil {
		return fmt.Errorf("Nsqd returned an error when queuing data: %v", err)
	}
	if resp == nil {
		return fmt.Errorf("No response from nsqd at '%s'. Is it running?", url)
	}

	// nsqd sends a simple OK. We have to read the response body,
	// or the connection will hang open forever.
	body, _ := io.ReadAll(resp.Body)
	resp.Body.Close()

	if resp.StatusCode != 200 {
		bodyText := "[no response body]"
		if len(body) > 0 {
			bodyText = string(body)
		}
		return fmt.Errorf("nsqd returned status code %d when attempting to queue data. "+
			"Response body: %s", resp.StatusCode, bodyText)
	}
	return nil
}

// EnqueueMove marshals a move request and puts it into the topic.
func (client *NSQClient) EnqueueMove(topic string, request *models.MoveRequest) error {
	data, err := json.Marshal(request)
	if err != nil {
		return fmt.Errorf("Error marshalling move request for package %s: %v",
			request.PackageUUID, err)
	}
	return client.Enqueue(topic, data)
}

// GetStats allows us to get some basic stats from NSQ. The NSQ /stats
// endpoint returns a richer set of stats than what this function
// returns, but we only need topic depths for integration tests. Note
// that requests to /stats/ (with trailing slash) produce a 404.
func (client *NSQClient) GetStats() (*NSQStats, error) {
	url := fmt.Sprintf("%s/stats?format=json", client.URL)
	resp, err := http.Get(url)
	if err != nil {
		return nil, err
	}
	body, err := io.ReadAll(resp.Body)
	resp.Body.Close()
	if err != nil {
		return nil, err
	}
	if resp.StatusCode != 200 {
		return nil, fmt.Errorf("NSQ returned status code %d, body: %s",
			resp.StatusCode, body)
	}
	stats := &NSQStats{}
	err = json.Unmarshal(body, stats)
	if err != nil {
		return nil, err
	}
	return stats, nil
}
