package oauth

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"fmt"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/browser"

	"github.com/mcpgo/mcpgo/internal/logging"
)

// AuthorizeResult is what a completed browser authorization round trip
// produces: the code to exchange, plus the verifier and redirect URI the
// exchange needs.
type AuthorizeResult struct {
	Code         string
	CodeVerifier string
	RedirectURI  string
}

// Authorize opens the system browser at metadata's authorization endpoint
// with an S256 PKCE challenge and waits on a local callback listener for
// the redirect. codeVerifier and state are generated by the caller (the
// Manager) so it can stash them in storage, keyed by the canonical server
// URL, before the browser round trip begins, per §4.5. resource is the
// canonical MCP server URL, sent as the RFC 8707 resource indicator. The
// caller still must exchange the returned code for a token via Exchange.
func Authorize(ctx context.Context, metadata ServerMetadata, client ClientInfo, scopes []string, resource, codeVerifier, state string, logger *logging.Logger) (*AuthorizeResult, error) {
	listener, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		return nil, fmt.Errorf("start local callback listener: %w", err)
	}
	defer listener.Close()

	port := listener.Addr().(*net.TCPAddr).Port
	redirectURI := fmt.Sprintf("http://127.0.0.1:%d/callback", port)

	codeChallenge := generateCodeChallenge(codeVerifier)

	authURL := buildAuthorizeURL(metadata.AuthorizationEndpoint, client.ClientID, redirectURI, scopes, codeChallenge, state, resource)

	if logger != nil {
		logger.Debugf("oauth: authorization URL: %s", authURL)
		logger.Debugf("oauth: redirect URI: %s", redirectURI)
	}

	authCode := make(chan string, 1)
	authErr := make(chan error, 1)

	mux := http.NewServeMux()
	mux.HandleFunc("/callback", func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()

		if got := q.Get("state"); got != state {
			authErr <- fmt.Errorf("callback state %q does not match expected %q", got, state)
			fmt.Fprintf(w, htmlErrorPage, "state mismatch")
			return
		}

		code := q.Get("code")
		if code == "" {
			msg := q.Get("error_description")
			if msg == "" {
				msg = q.Get("error")
			}
			authErr <- fmt.Errorf("authorization failed: %s", msg)
			fmt.Fprintf(w, htmlErrorPage, msg)
			return
		}

		authCode <- code
		fmt.Fprint(w, htmlSuccessPage)
	})

	server := &http.Server{Handler: mux}
	go func() {
		if err := server.Serve(listener); err != nil && err != http.ErrServerClosed {
			authErr <- err
		}
	}()
	defer server.Close()

	fmt.Println("\n=== MCP Server Authorization ===")
	fmt.Println("Opening your browser to authorize this client...")
	fmt.Printf("If it doesn't open automatically, visit:\n%s\n", authURL)

	if err := browser.OpenURL(authURL); err != nil {
		fmt.Printf("Failed to open browser automatically: %v\n", err)
	}

	select {
	case code := <-authCode:
		return &AuthorizeResult{Code: code, CodeVerifier: codeVerifier, RedirectURI: redirectURI}, nil
	case err := <-authErr:
		return nil, err
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-time.After(5 * time.Minute):
		return nil, fmt.Errorf("authorization timed out waiting for browser callback")
	}
}

func buildAuthorizeURL(endpoint, clientID, redirectURI string, scopes []string, codeChallenge, state, resource string) string {
	params := url.Values{
		"response_type":         {"code"},
		"client_id":             {clientID},
		"redirect_uri":          {redirectURI},
		"code_challenge":        {codeChallenge},
		"code_challenge_method": {"S256"},
		"state":                 {state},
	}
	if len(scopes) > 0 {
		params.Set("scope", strings.Join(scopes, " "))
	}
	if resource != "" {
		params.Set("resource", resource)
	}
	return endpoint + "?" + params.Encode()
}

// generateCodeVerifier returns a high-entropy verifier within RFC 7636's
// 43-128 character range.
func generateCodeVerifier() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("generate code verifier: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(b), nil
}

func generateCodeChallenge(verifier string) string {
	h := sha256.Sum256([]byte(verifier))
	return base64.RawURLEncoding.EncodeToString(h[:])
}

func generateState() (string, error) {
	id, err := uuid.NewRandom()
	if err != nil {
		return "", fmt.Errorf("generate state: %w", err)
	}
	return id.String(), nil
}

const htmlSuccessPage = `<!DOCTYPE html>
<html>
<head><title>Authorization Successful</title></head>
<body style="font-family: sans-serif; text-align: center; margin-top: 4em;">
  <h1>Authorization Successful</h1>
  <p>You can close this window and return to the terminal.</p>
  <script>setTimeout(function() { window.close(); }, 2000);</script>
</body>
</html>`

const htmlErrorPage = `<!DOCTYPE html>
<html>
<head><title>Authorization Failed</title></head>
<body style="font-family: sans-serif; text-align: center; margin-top: 4em;">
  <h1>Authorization Failed</h1>
  <p>%s</p>
</body>
</html>`
