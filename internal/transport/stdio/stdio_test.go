package stdio

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/mcpgo/mcpgo/internal/protocol"
)

type collectingDispatcher struct {
	mu       sync.Mutex
	received []*protocol.Message
}

func (c *collectingDispatcher) Dispatch(msg *protocol.Message) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.received = append(c.received, msg)
}

func (c *collectingDispatcher) count() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.received)
}

// TestStdioRoundTrip spawns `cat`, which echoes every line written to its
// stdin back out on stdout, to exercise the framing and dispatch wiring
// without needing a real MCP server process.
func TestStdioRoundTrip(t *testing.T) {
	tr := New("cat", nil, nil, nil)
	disp := &collectingDispatcher{}
	tr.SetDispatcher(disp)

	ctx := context.Background()
	if err := tr.Connect(ctx); err != nil {
		t.Fatalf("Connect: %v", err)
	}
	defer tr.Close()

	msg, err := protocol.NewRequest(1, "ping", nil)
	if err != nil {
		t.Fatalf("NewRequest: %v", err)
	}
	if _, err := tr.Deliver(ctx, msg); err != nil {
		t.Fatalf("Deliver: %v", err)
	}

	deadline := time.Now().Add(2 * time.Second)
	for disp.count() == 0 && time.Now().Before(deadline) {
		time.Sleep(10 * time.Millisecond)
	}
	if disp.count() != 1 {
		t.Fatalf("expected 1 echoed message, got %d", disp.count())
	}
}

func TestStdioCloseIsIdempotent(t *testing.T) {
	tr := New("cat", nil, nil, nil)
	if err := tr.Connect(context.Background()); err != nil {
		t.Fatalf("Connect: %v", err)
	}
	if err := tr.Close(); err != nil {
		t.Errorf("first Close: %v", err)
	}
	if err := tr.Close(); err != nil {
		t.Errorf("second Close: %v", err)
	}
}
