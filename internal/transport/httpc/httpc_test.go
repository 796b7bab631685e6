package httpc

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/mcpgo/mcpgo/internal/protocol"
	"github.com/mcpgo/mcpgo/internal/transport"
	"github.com/mcpgo/mcpgo/internal/transport/httpbase"
)

func TestDeliverRoundTrip(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var msg protocol.Message
		json.NewDecoder(r.Body).Decode(&msg)
		resp, _ := protocol.NewResultResponse(msg.ID, map[string]any{"ok": true})
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(resp)
	}))
	defer srv.Close()

	tr := New(srv.URL, httpbase.NewClient(5*time.Second))
	if tr.Shape() != transport.ShapeRoundTrip {
		t.Errorf("Shape() = %v, want ShapeRoundTrip", tr.Shape())
	}

	req, _ := protocol.NewRequest(1, "tools/list", nil)
	resp, err := tr.Deliver(context.Background(), req)
	if err != nil {
		t.Fatalf("Deliver: %v", err)
	}
	if resp == nil {
		t.Fatal("expected a synchronous response for a round-trip transport")
	}
	var decoded struct {
		OK bool `json:"ok"`
	}
	json.Unmarshal(resp.Result, &decoded)
	if !decoded.OK {
		t.Errorf("decoded result = %+v, want ok=true", decoded)
	}
}

func TestDeliverNotificationDiscardsBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	tr := New(srv.URL, httpbase.NewClient(5*time.Second))
	notif, _ := protocol.NewNotification("notifications/initialized", nil)
	resp, err := tr.Deliver(context.Background(), notif)
	if err != nil {
		t.Fatalf("Deliver: %v", err)
	}
	if resp != nil {
		t.Errorf("expected nil response for a notification, got %+v", resp)
	}
}

func TestDeliverSurfacesServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		w.Write([]byte("boom"))
	}))
	defer srv.Close()

	tr := New(srv.URL, httpbase.NewClient(5*time.Second))
	tr.Client.Retry.MaxRetries = 0
	req, _ := protocol.NewRequest(1, "tools/list", nil)
	if _, err := tr.Deliver(context.Background(), req); err == nil {
		t.Fatal("expected an error for a 500 response")
	}
}
