// Package oauth implements the OAuth 2.1 + PKCE flow MCP servers use to
// authorize HTTP-based transports: RFC 8414/9728 metadata discovery, RFC
// 7591 dynamic client registration, an S256 PKCE authorization-code
// exchange via the system browser, refresh with an expires-soon window,
// and file-based storage keyed by the server's canonical URL. The
// browser-callback flow and the storage file conventions are grounded on
// the teacher's AAD browser auth and token cache; MSAL itself has no home
// here since this package talks to the authorization server an MCP
// server names, not Azure AD specifically.
package oauth

import (
	"fmt"
	"net"
	"net/url"
	"strings"
)

// Canonicalize normalizes a server URL to the form used as the storage
// key: lowercase scheme and host, default ports stripped, trailing slash
// stripped when the path is empty, and any fragment dropped. Calling it
// twice on its own output is a no-op.
func Canonicalize(raw string) (string, error) {
	u, err := url.Parse(raw)
	if err != nil {
		return "", fmt.Errorf("parse server URL: %w", err)
	}
	if u.Scheme == "" || u.Host == "" {
		return "", fmt.Errorf("server URL %q is missing a scheme or host", raw)
	}

	u.Scheme = strings.ToLower(u.Scheme)
	u.Host = stripDefaultPort(strings.ToLower(u.Host), u.Scheme)
	u.Fragment = ""
	u.RawFragment = ""

	if u.Path == "" || u.Path == "/" {
		u.Path = ""
	}

	return u.String(), nil
}

func stripDefaultPort(host, scheme string) string {
	h, port, err := net.SplitHostPort(host)
	if err != nil {
		return host
	}
	switch {
	case scheme == "https" && port == "443":
		return h
	case scheme == "http" && port == "80":
		return h
	default:
		return host
	}
}
