package oauth

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestExchangeSuccess(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		r.ParseForm()
		if r.Form.Get("grant_type") != "authorization_code" {
			t.Errorf("grant_type = %q", r.Form.Get("grant_type"))
		}
		if r.Form.Get("code_verifier") != "verifier123" {
			t.Errorf("code_verifier = %q", r.Form.Get("code_verifier"))
		}
		if r.Form.Get("resource") != "https://mcp.example.com" {
			t.Errorf("resource = %q", r.Form.Get("resource"))
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"access_token":"tok","token_type":"Bearer","expires_in":3600,"refresh_token":"refresh1"}`))
	}))
	defer srv.Close()

	meta := ServerMetadata{TokenEndpoint: srv.URL + "/token"}
	client := ClientInfo{ClientID: "c1"}
	result := &AuthorizeResult{Code: "auth-code", CodeVerifier: "verifier123", RedirectURI: "http://127.0.0.1:1/callback"}

	tok, err := Exchange(context.Background(), srv.Client(), meta, client, result, "https://mcp.example.com")
	if err != nil {
		t.Fatalf("Exchange: %v", err)
	}
	if tok.AccessToken != "tok" || tok.RefreshToken != "refresh1" {
		t.Errorf("token = %+v", tok)
	}
	if tok.ExpiresAt.IsZero() {
		t.Error("ExpiresAt not set")
	}
}

func TestExchangeErrorResponse(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"error":"invalid_grant","error_description":"code expired"}`))
	}))
	defer srv.Close()

	meta := ServerMetadata{TokenEndpoint: srv.URL + "/token"}
	client := ClientInfo{ClientID: "c1"}
	result := &AuthorizeResult{Code: "bad", CodeVerifier: "v", RedirectURI: "http://127.0.0.1:1/callback"}

	_, err := Exchange(context.Background(), srv.Client(), meta, client, result, "")
	if err == nil {
		t.Fatal("expected an error")
	}
}

// TestExchangeRetriesWithExpectedRedirectURI covers the §4.5/§8.6 seed
// scenario: a server rejects the first attempt with unauthorized_client
// and names the redirect_uri it actually expected, and the client must
// retry once with that value substituted.
func TestExchangeRetriesWithExpectedRedirectURI(t *testing.T) {
	attempts := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		r.ParseForm()
		attempts++
		if attempts == 1 {
			if got := r.Form.Get("redirect_uri"); got != "http://127.0.0.1:54321/callback" {
				t.Errorf("first attempt redirect_uri = %q", got)
			}
			w.WriteHeader(http.StatusBadRequest)
			w.Header().Set("Content-Type", "application/json")
			w.Write([]byte(`{"error":"unauthorized_client","error_description":"You sent http://127.0.0.1:54321/callback and we expected http://127.0.0.1:8080/callback"}`))
			return
		}
		if got := r.Form.Get("redirect_uri"); got != "http://127.0.0.1:8080/callback" {
			t.Errorf("retry redirect_uri = %q", got)
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"access_token":"tok","token_type":"Bearer","expires_in":3600}`))
	}))
	defer srv.Close()

	meta := ServerMetadata{TokenEndpoint: srv.URL + "/token"}
	client := ClientInfo{ClientID: "c1"}
	result := &AuthorizeResult{Code: "auth-code", CodeVerifier: "v", RedirectURI: "http://127.0.0.1:54321/callback"}

	tok, err := Exchange(context.Background(), srv.Client(), meta, client, result, "")
	if err != nil {
		t.Fatalf("Exchange: %v", err)
	}
	if tok.AccessToken != "tok" {
		t.Errorf("AccessToken = %q", tok.AccessToken)
	}
	if attempts != 2 {
		t.Errorf("attempts = %d, want 2", attempts)
	}
}

func TestRefreshNoToken(t *testing.T) {
	meta := ServerMetadata{TokenEndpoint: "http://unused"}
	client := ClientInfo{ClientID: "c1"}
	_, err := Refresh(context.Background(), http.DefaultClient, meta, client, "", "")
	if err == nil {
		t.Fatal("expected an error when refreshToken is empty")
	}
}

func TestRefreshSuccess(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		r.ParseForm()
		if r.Form.Get("grant_type") != "refresh_token" {
			t.Errorf("grant_type = %q", r.Form.Get("grant_type"))
		}
		if r.Form.Get("refresh_token") != "old-refresh" {
			t.Errorf("refresh_token = %q", r.Form.Get("refresh_token"))
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"access_token":"tok2","token_type":"Bearer","expires_in":60}`))
	}))
	defer srv.Close()

	meta := ServerMetadata{TokenEndpoint: srv.URL + "/token"}
	client := ClientInfo{ClientID: "c1"}
	tok, err := Refresh(context.Background(), srv.Client(), meta, client, "old-refresh", "")
	if err != nil {
		t.Fatalf("Refresh: %v", err)
	}
	if tok.AccessToken != "tok2" {
		t.Errorf("AccessToken = %q", tok.AccessToken)
	}
}
