package client

import (
	"context"
	"testing"

	"github.com/mcpgo/mcpgo/internal/config"
)

func TestConnectAllToleratesFailureByDefault(t *testing.T) {
	c := New("test-client", "1.0", nil)
	cfgs := []config.ServerConfig{
		{Name: "broken", Command: "this-command-does-not-exist-xyz"},
	}

	results, err := c.ConnectAll(context.Background(), cfgs, false)
	if err != nil {
		t.Fatalf("ConnectAll returned a fatal error in tolerant mode: %v", err)
	}
	if len(results) != 1 || results[0].Err == nil {
		t.Fatalf("results = %+v, want one failed result", results)
	}
	if len(c.Servers()) != 0 {
		t.Errorf("Servers() = %v, want none connected", c.Servers())
	}
}

func TestConnectAllFastFailsOnOAuthServer(t *testing.T) {
	c := New("test-client", "1.0", nil)
	cfgs := []config.ServerConfig{
		{Name: "broken-oauth", URL: "http://127.0.0.1:1/mcp", OAuthEnabled: true, OAuthClientName: "test"},
		{Name: "never-reached", Command: "this-command-does-not-exist-xyz"},
	}

	_, err := c.ConnectAll(context.Background(), cfgs, true)
	if err == nil {
		t.Fatal("expected ConnectAll to abort on the first OAuth-enabled server's failure")
	}
}

func TestConnectOneUnknownTransport(t *testing.T) {
	c := New("test-client", "1.0", nil)
	_, err := c.connectOne(context.Background(), config.ServerConfig{Name: "nowhere"})
	if err == nil {
		t.Fatal("expected an error for a server with neither command nor url")
	}
}

func TestConnectByProbingTriesEveryCandidateThenFails(t *testing.T) {
	c := New("test-client", "1.0", nil)
	cfg := config.ServerConfig{Name: "unreachable", URL: "http://127.0.0.1:1/rpc"}

	if !NeedsProbe(cfg) {
		t.Fatal("expected this ambiguous URL to need probing")
	}

	_, err := c.connectOne(context.Background(), cfg)
	if err == nil {
		t.Fatal("expected an error when every probed transport fails to connect")
	}
}

func TestServerByName(t *testing.T) {
	c := New("test-client", "1.0", nil)
	conn := &ServerConnection{Name: "alpha"}
	c.servers = []*ServerConnection{conn}

	got, ok := c.ServerByName("alpha")
	if !ok || got != conn {
		t.Fatalf("ServerByName(alpha) = %v, %v", got, ok)
	}

	_, ok = c.ServerByName("missing")
	if ok {
		t.Error("ServerByName(missing) found a server that doesn't exist")
	}
}
