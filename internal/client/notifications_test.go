package client

import (
	"encoding/json"
	"os"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/mcpgo/mcpgo/internal/logging"
	"github.com/mcpgo/mcpgo/internal/protocol"
)

func TestHandleNotificationInvalidatesListCaches(t *testing.T) {
	c := New("test-client", "1.0", nil)
	conn := &ServerConnection{
		Name:  "alpha",
		tools: []protocol.Tool{{Name: "cached"}},
	}

	c.handleNotification(conn, "notifications/tools/list_changed", nil)

	conn.mu.RLock()
	defer conn.mu.RUnlock()
	if conn.tools != nil {
		t.Error("expected tools cache to be invalidated")
	}
}

func TestHandleNotificationLogsResourceUpdated(t *testing.T) {
	logger := logging.New("test", true)
	traceFile, err := logger.EnableTrace()
	require.NoError(t, err)
	defer os.Remove(traceFile)
	defer logger.DisableTrace()

	c := New("test-client", "1.0", logger)
	conn := &ServerConnection{Name: "alpha"}

	params, err := json.Marshal(map[string]any{"uri": "file:///watched.txt"})
	require.NoError(t, err)

	c.handleNotification(conn, "notifications/resources/updated", params)

	contents, err := os.ReadFile(traceFile)
	require.NoError(t, err)
	if !strings.Contains(string(contents), "file:///watched.txt") {
		t.Errorf("expected trace to mention the updated resource uri, got: %s", contents)
	}
}
