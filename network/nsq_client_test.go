package network_test

import (
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/artefactual-labs/spaces/models"
	"github.com/artefactual-labs/spaces/network"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNSQEnqueue(t *testing.T) {
	var gotTopic, gotBody string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/pub", r.URL.Path)
		gotTopic = r.URL.Query().Get("topic")
		body, _ := io.ReadAll(r.Body)
		gotBody = string(body)
		fmt.Fprint(w, "OK")
	}))
	defer server.Close()

	client := network.NewNSQClient(server.URL)
	require.NoError(t, client.Enqueue("package_move_topic", []byte(`{"x":1}`)))
	assert.Equal(t, "package_move_topic", gotTopic)
	assert.Equal(t, `{"x":1}`, gotBody)
}

func TestNSQEnqueueMove(t *testing.T) {
	var gotBody string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		gotBody = string(body)
		fmt.Fprint(w, "OK")
	}))
	defer server.Close()

	client := network.NewNSQClient(server.URL)
	request := &models.MoveRequest{
		PackageUUID: "40691e86-2d13-4ab4-9cb1-08f3d7a763f8",
		Direction:   models.MoveFromStorage,
		Source:      "staging/bag.tar.gz",
		Destination: "bag.tar.gz",
		SpaceUUID:   "3a6b9a39-cfd6-4147-80d4-67a29ed419dc",
	}
	require.NoError(t, client.EnqueueMove("package_move_topic", request))
	assert.Contains(t, gotBody, `"package_uuid":"40691e86-2d13-4ab4-9cb1-08f3d7a763f8"`)
	assert.Contains(t, gotBody, `"direction":"from_storage"`)
}

func TestNSQEnqueueError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "no such topic", http.StatusInternalServerError)
	}))
	defer server.Close()

	client := network.NewNSQClient(server.URL)
	err := client.Enqueue("bad_topic", []byte("x"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "500")
}

func TestNSQGetStats(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/stats", r.URL.Path)
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `{"version":"1.2.1","health":"OK","topics":[{"topic_name":"package_move_topic","depth":3,"message_count":12}]}`)
	}))
	defer server.Close()

	client := network.NewNSQClient(server.URL)
	stats, err := client.GetStats()
	require.NoError(t, err)
	require.Equal(t, 1, len(stats.Topics))
	assert.Equal(t, "package_move_topic", stats.Topics[0].TopicName)
	assert.Equal(t, int64(3), stats.Topics[0].Depth)
}
