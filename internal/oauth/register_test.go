package oauth

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestRegisterSuccess(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req registrationRequest
		json.NewDecoder(r.Body).Decode(&req)
		if req.TokenEndpointAuthMethod != "none" {
			t.Errorf("token_endpoint_auth_method = %q, want none", req.TokenEndpointAuthMethod)
		}
		w.WriteHeader(http.StatusCreated)
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(registrationResponse{
			ClientID:     "client-abc",
			RedirectURIs: []string{"http://127.0.0.1:9999/callback"},
		})
	}))
	defer srv.Close()

	meta := ServerMetadata{RegistrationEndpoint: srv.URL + "/register"}
	info, err := Register(context.Background(), srv.Client(), meta, "mcpgo", "http://127.0.0.1:0/callback")
	if err != nil {
		t.Fatalf("Register: %v", err)
	}
	if info.ClientID != "client-abc" {
		t.Errorf("ClientID = %q", info.ClientID)
	}
	if len(info.RedirectURIs) != 1 || info.RedirectURIs[0] != "http://127.0.0.1:9999/callback" {
		t.Errorf("RedirectURIs = %v, want server's authoritative value", info.RedirectURIs)
	}
}

func TestRegisterNoEndpoint(t *testing.T) {
	_, err := Register(context.Background(), http.DefaultClient, ServerMetadata{}, "mcpgo", "http://127.0.0.1:0/callback")
	if err == nil {
		t.Fatal("expected an error when RegistrationEndpoint is empty")
	}
}

func TestRegisterServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
	}))
	defer srv.Close()

	meta := ServerMetadata{RegistrationEndpoint: srv.URL + "/register"}
	_, err := Register(context.Background(), srv.Client(), meta, "mcpgo", "http://127.0.0.1:0/callback")
	if err == nil {
		t.Fatal("expected an error on non-2xx registration response")
	}
}
