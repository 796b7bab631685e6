package httpbase

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"
)

type staticTokenSource struct {
	token    string
	refresh  int32
	refresher func()
}

func (s *staticTokenSource) Token(ctx context.Context) (string, error) { return s.token, nil }
func (s *staticTokenSource) ForceRefresh() {
	atomic.AddInt32(&s.refresh, 1)
	if s.refresher != nil {
		s.refresher()
	}
}
func (s *staticTokenSource) HandleChallenge(ctx context.Context, challenge string) {}

func TestClientDoRetriesOnRetryableStatus(t *testing.T) {
	var attempts int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&attempts, 1) < 3 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	}))
	defer srv.Close()

	c := NewClient(5 * time.Second)
	c.Retry.InitialBackoff = time.Millisecond
	c.Retry.MaxBackoff = 5 * time.Millisecond

	resp, body, err := c.Do(context.Background(), func() (*http.Request, error) {
		return c.NewRequest(context.Background(), http.MethodGet, srv.URL, nil)
	})
	if err != nil {
		t.Fatalf("Do: %v", err)
	}
	if resp.StatusCode != http.StatusOK {
		t.Errorf("final status = %d, want 200", resp.StatusCode)
	}
	if string(body) != "ok" {
		t.Errorf("body = %q, want %q", body, "ok")
	}
	if atomic.LoadInt32(&attempts) != 3 {
		t.Errorf("attempts = %d, want 3", attempts)
	}
}

func TestClientDoForcesRefreshOnceOn401(t *testing.T) {
	var sawTokens []string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		sawTokens = append(sawTokens, r.Header.Get("Authorization"))
		if r.Header.Get("Authorization") == "Bearer stale" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	ts := &staticTokenSource{token: "stale"}
	ts.refresher = func() { ts.token = "fresh" }

	c := NewClient(5 * time.Second)
	c.TokenSource = ts

	resp, _, err := c.Do(context.Background(), func() (*http.Request, error) {
		return c.NewRequest(context.Background(), http.MethodGet, srv.URL, nil)
	})
	if err != nil {
		t.Fatalf("Do: %v", err)
	}
	if resp.StatusCode != http.StatusOK {
		t.Errorf("final status = %d, want 200", resp.StatusCode)
	}
	if atomic.LoadInt32(&ts.refresh) != 1 {
		t.Errorf("ForceRefresh called %d times, want 1", ts.refresh)
	}
	if len(sawTokens) != 2 || sawTokens[0] != "Bearer stale" || sawTokens[1] != "Bearer fresh" {
		t.Errorf("unexpected token sequence: %v", sawTokens)
	}
}

func TestClientSetsDefaultHeaders(t *testing.T) {
	var gotUA, gotAcceptEncoding string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotUA = r.Header.Get("User-Agent")
		gotAcceptEncoding = r.Header.Get("Accept-Encoding")
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	c := NewClient(5 * time.Second)
	_, _, err := c.Do(context.Background(), func() (*http.Request, error) {
		return c.NewRequest(context.Background(), http.MethodGet, srv.URL, nil)
	})
	if err != nil {
		t.Fatalf("Do: %v", err)
	}
	if gotUA != DefaultUserAgent {
		t.Errorf("User-Agent = %q, want %q", gotUA, DefaultUserAgent)
	}
	if gotAcceptEncoding != "gzip" {
		t.Errorf("Accept-Encoding = %q, want gzip", gotAcceptEncoding)
	}
}
