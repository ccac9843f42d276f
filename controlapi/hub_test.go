package controlapi

import (
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/incendiarybean/proxy-address-blocker/logger"
	"github.com/incendiarybean/proxy-address-blocker/proxy"
)

func TestHub_BroadcastsStatusChangeToConnectedClient(t *testing.T) {
	log := logger.New(logger.LevelWarning, logger.FormatText)
	hub := NewHub(log)

	server := httptest.NewServer(hub)
	defer server.Close()

	wsURL := "ws" + strings.TrimPrefix(server.URL, "http") + "/ws/events"
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	require.NoError(t, err)
	defer conn.Close()

	// Give the server goroutine a moment to register the connection
	// before publishing, since Publish only reaches clients already in
	// the registry.
	time.Sleep(50 * time.Millisecond)

	hub.Publish(proxy.Event{Kind: proxy.EventStatusChanged, Status: proxy.Status{Kind: proxy.Running}})

	conn.SetReadDeadline(time.Now().Add(2 * time.Second)) //nolint:errcheck
	var received hubEvent
	require.NoError(t, conn.ReadJSON(&received))

	assert.Equal(t, "status", received.Kind)
	assert.Equal(t, "RUNNING", received.Status)
}

func TestHub_PublishAfterClientDisconnectDoesNotPanic(t *testing.T) {
	log := logger.New(logger.LevelWarning, logger.FormatText)
	hub := NewHub(log)

	server := httptest.NewServer(hub)
	defer server.Close()

	wsURL := "ws" + strings.TrimPrefix(server.URL, "http") + "/ws/events"
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	require.NoError(t, err)

	time.Sleep(50 * time.Millisecond)
	conn.Close()
	time.Sleep(50 * time.Millisecond)

	assert.NotPanics(t, func() {
		hub.Publish(proxy.Event{Kind: proxy.EventStatusChanged, Status: proxy.Status{Kind: proxy.Stopped}})
	})
}
