package oauth

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/mcpgo/mcpgo/internal/logging"
)

// protectedResourceMetadata is the RFC 9728 document an MCP server
// returns from /.well-known/oauth-protected-resource, or points at via a
// WWW-Authenticate resource_metadata parameter on a 401.
type protectedResourceMetadata struct {
	Resource             string   `json:"resource"`
	AuthorizationServers []string `json:"authorization_servers"`
}

// Discover resolves the authorization server metadata for serverURL. It
// first tries RFC 8414 discovery directly against serverURL's origin; if
// that fails it falls back to RFC 9728 protected-resource metadata and
// follows authorization_servers[0].
func Discover(ctx context.Context, httpClient *http.Client, serverURL string, logger *logging.Logger) (ServerMetadata, error) {
	if meta, err := discoverAuthServer(ctx, httpClient, serverURL); err == nil {
		return meta, nil
	}

	prm, err := discoverProtectedResource(ctx, httpClient, serverURL)
	if err != nil {
		return ServerMetadata{}, fmt.Errorf("discover authorization server for %s: %w", serverURL, err)
	}
	if len(prm.AuthorizationServers) == 0 {
		return ServerMetadata{}, fmt.Errorf("protected resource metadata for %s names no authorization servers", serverURL)
	}

	if logger != nil {
		logger.Debugf("oauth: %s is a protected resource, authorization server is %s", serverURL, prm.AuthorizationServers[0])
	}
	return discoverAuthServer(ctx, httpClient, prm.AuthorizationServers[0])
}

// DiscoverFromChallenge extracts a resource_metadata URL from a 401's
// WWW-Authenticate header and resolves through it, for servers that don't
// publish protected-resource metadata at the well-known default path.
func DiscoverFromChallenge(ctx context.Context, httpClient *http.Client, challenge string) (ServerMetadata, error) {
	metaURL := resourceMetadataURL(challenge)
	if metaURL == "" {
		return ServerMetadata{}, fmt.Errorf("no resource_metadata parameter in WWW-Authenticate challenge")
	}

	prm, err := fetchProtectedResourceMetadata(ctx, httpClient, metaURL)
	if err != nil {
		return ServerMetadata{}, err
	}
	if len(prm.AuthorizationServers) == 0 {
		return ServerMetadata{}, fmt.Errorf("protected resource metadata at %s names no authorization servers", metaURL)
	}
	return discoverAuthServer(ctx, httpClient, prm.AuthorizationServers[0])
}

func resourceMetadataURL(challenge string) string {
	for _, part := range strings.Split(challenge, ",") {
		part = strings.TrimSpace(part)
		if i := strings.Index(part, " "); i >= 0 && !strings.HasPrefix(part, "resource_metadata=") {
			part = strings.TrimSpace(part[i+1:])
		}
		if !strings.HasPrefix(part, "resource_metadata=") {
			continue
		}
		v := strings.TrimPrefix(part, "resource_metadata=")
		return strings.Trim(v, `"`)
	}
	return ""
}

func discoverAuthServer(ctx context.Context, httpClient *http.Client, serverURL string) (ServerMetadata, error) {
	wellKnown, err := wellKnownURL(serverURL, "/.well-known/oauth-authorization-server")
	if err != nil {
		return ServerMetadata{}, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, wellKnown, nil)
	if err != nil {
		return ServerMetadata{}, err
	}
	req.Header.Set("Accept", "application/json")

	resp, err := httpClient.Do(req)
	if err != nil {
		return ServerMetadata{}, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return ServerMetadata{}, fmt.Errorf("authorization server metadata request to %s returned status %d", wellKnown, resp.StatusCode)
	}

	var meta ServerMetadata
	if err := json.NewDecoder(resp.Body).Decode(&meta); err != nil {
		return ServerMetadata{}, fmt.Errorf("decode authorization server metadata: %w", err)
	}
	if meta.AuthorizationEndpoint == "" || meta.TokenEndpoint == "" {
		return ServerMetadata{}, fmt.Errorf("authorization server metadata from %s is missing required endpoints", wellKnown)
	}
	return meta, nil
}

func discoverProtectedResource(ctx context.Context, httpClient *http.Client, serverURL string) (protectedResourceMetadata, error) {
	wellKnown, err := wellKnownURL(serverURL, "/.well-known/oauth-protected-resource")
	if err != nil {
		return protectedResourceMetadata{}, err
	}
	return fetchProtectedResourceMetadata(ctx, httpClient, wellKnown)
}

func fetchProtectedResourceMetadata(ctx context.Context, httpClient *http.Client, metaURL string) (protectedResourceMetadata, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, metaURL, nil)
	if err != nil {
		return protectedResourceMetadata{}, err
	}
	req.Header.Set("Accept", "application/json")

	resp, err := httpClient.Do(req)
	if err != nil {
		return protectedResourceMetadata{}, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return protectedResourceMetadata{}, fmt.Errorf("protected resource metadata request to %s returned status %d", metaURL, resp.StatusCode)
	}

	var prm protectedResourceMetadata
	if err := json.NewDecoder(resp.Body).Decode(&prm); err != nil {
		return protectedResourceMetadata{}, fmt.Errorf("decode protected resource metadata: %w", err)
	}
	return prm, nil
}

// wellKnownURL joins a well-known path onto serverURL's origin, discarding
// whatever path serverURL itself carried.
func wellKnownURL(serverURL, wellKnownPath string) (string, error) {
	u, err := url.Parse(serverURL)
	if err != nil {
		return "", fmt.Errorf("parse server URL %q: %w", serverURL, err)
	}
	u.Path = wellKnownPath
	u.RawQuery = ""
	u.Fragment = ""
	return u.String(), nil
}
