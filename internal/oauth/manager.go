package oauth

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/mcpgo/mcpgo/internal/logging"
)

// expiresSoonWindow is how far ahead of expiry the manager refreshes
// proactively, rather than waiting for the server to answer 401.
const expiresSoonWindow = time.Minute

// Manager drives the OAuth 2.1 + PKCE flow for a single MCP server and
// implements httpbase.TokenSource, so an httpbase.Client can use it
// directly as its credential source.
type Manager struct {
	ServerURL  string
	ClientName string
	Scopes     []string
	HTTPClient *http.Client
	Store      *Store
	Logger     *logging.Logger

	mu          sync.Mutex
	canonical   string
	forceNext   bool
}

// NewManager builds a Manager for serverURL. HTTPClient defaults to
// http.DefaultClient and Store to an in-memory-only store if left nil.
func NewManager(serverURL, clientName string, scopes []string, httpClient *http.Client, store *Store, logger *logging.Logger) (*Manager, error) {
	canonical, err := Canonicalize(serverURL)
	if err != nil {
		return nil, err
	}
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	if store == nil {
		store, _ = NewStore("")
	}
	return &Manager{
		ServerURL:  serverURL,
		ClientName: clientName,
		Scopes:     scopes,
		HTTPClient: httpClient,
		Store:      store,
		Logger:     logger,
		canonical:  canonical,
	}, nil
}

// ForceRefresh marks the cached token as unusable, so the next Token call
// refreshes (or re-authorizes) unconditionally. Called by httpbase.Client
// after a 401.
func (m *Manager) ForceRefresh() {
	m.mu.Lock()
	m.forceNext = true
	m.mu.Unlock()
}

// HandleChallenge implements httpbase.TokenSource. Per §4.5's discovery
// fallback chain, a 401's WWW-Authenticate challenge is the last resort:
// if it carries a resource_metadata pointer, re-run discovery through it
// and replace the cached authorization server metadata so the next Token
// call registers and authorizes against the server the challenge names,
// rather than whatever (possibly stale or absent) metadata was cached.
func (m *Manager) HandleChallenge(ctx context.Context, challenge string) {
	if challenge == "" {
		return
	}
	metadata, err := DiscoverFromChallenge(ctx, m.HTTPClient, challenge)
	if err != nil {
		if m.Logger != nil {
			m.Logger.Debugf("oauth: discovery from 401 challenge failed: %v", err)
		}
		return
	}
	if err := m.Store.SetServerMetadata(m.canonical, metadata); err != nil && m.Logger != nil {
		m.Logger.Warnf("oauth: failed to persist challenge-discovered server metadata: %v", err)
	}
}

// Token returns a usable access token, authorizing via the browser on
// first use and refreshing or re-authorizing as needed on subsequent
// calls.
func (m *Manager) Token(ctx context.Context) (string, error) {
	m.mu.Lock()
	forceNext := m.forceNext
	m.forceNext = false
	m.mu.Unlock()

	cached, ok := m.Store.Token(m.canonical)
	if ok && !forceNext && !cached.ExpiresSoon(expiresSoonWindow) {
		return cached.AccessToken, nil
	}

	metadata, client, err := m.ensureRegistration(ctx)
	if err != nil {
		return "", err
	}

	if ok && cached.RefreshToken != "" {
		refreshed, err := Refresh(ctx, m.HTTPClient, metadata, client, cached.RefreshToken, m.canonical)
		if err == nil {
			if err := m.Store.SetToken(m.canonical, refreshed); err != nil && m.Logger != nil {
				m.Logger.Warnf("oauth: failed to persist refreshed token: %v", err)
			}
			return refreshed.AccessToken, nil
		}
		if m.Logger != nil {
			m.Logger.Debugf("oauth: refresh failed, falling back to browser authorization: %v", err)
		}
	}

	tok, err := m.authorizeInteractively(ctx, metadata, client)
	if err != nil {
		return "", err
	}
	if err := m.Store.SetToken(m.canonical, tok); err != nil && m.Logger != nil {
		m.Logger.Warnf("oauth: failed to persist token: %v", err)
	}
	return tok.AccessToken, nil
}

func (m *Manager) ensureRegistration(ctx context.Context) (ServerMetadata, ClientInfo, error) {
	metadata, ok := m.Store.ServerMetadata(m.canonical)
	if !ok {
		discovered, err := Discover(ctx, m.HTTPClient, m.ServerURL, m.Logger)
		if err != nil {
			return ServerMetadata{}, ClientInfo{}, fmt.Errorf("discover authorization server: %w", err)
		}
		metadata = discovered
		if err := m.Store.SetServerMetadata(m.canonical, metadata); err != nil && m.Logger != nil {
			m.Logger.Warnf("oauth: failed to persist server metadata: %v", err)
		}
	}

	client, ok := m.Store.ClientInfo(m.canonical)
	if !ok {
		registered, err := Register(ctx, m.HTTPClient, metadata, m.ClientName, loopbackPlaceholderRedirect)
		if err != nil {
			return ServerMetadata{}, ClientInfo{}, fmt.Errorf("register client: %w", err)
		}
		client = registered
		if err := m.Store.SetClientInfo(m.canonical, client); err != nil && m.Logger != nil {
			m.Logger.Warnf("oauth: failed to persist client registration: %v", err)
		}
	}

	return metadata, client, nil
}

// loopbackPlaceholderRedirect is sent on registration before the local
// callback port is known. Authorize sends http://127.0.0.1:<port>/callback
// with the port its listener bound, per RFC 8252's loopback-port
// convention; the redirect_uris the server registered are not used there.
const loopbackPlaceholderRedirect = "http://127.0.0.1/callback"

// authorizeInteractively drives one browser round trip. Per §4.5 the PKCE
// verifier and state are generated up front and stashed in the Store,
// keyed by the canonical server URL, before the browser opens, and
// cleared once the round trip completes (successfully or not) so a
// stale verifier never lingers for a future flow to pick up by mistake.
func (m *Manager) authorizeInteractively(ctx context.Context, metadata ServerMetadata, client ClientInfo) (Token, error) {
	codeVerifier, err := generateCodeVerifier()
	if err != nil {
		return Token{}, err
	}
	state, err := generateState()
	if err != nil {
		return Token{}, err
	}

	pkce := PKCEState{
		CodeVerifier:  codeVerifier,
		CodeChallenge: generateCodeChallenge(codeVerifier),
		State:         state,
	}
	if err := m.Store.SetPKCE(m.canonical, pkce); err != nil && m.Logger != nil {
		m.Logger.Warnf("oauth: failed to persist pkce state: %v", err)
	}
	if err := m.Store.SetState(m.canonical, state); err != nil && m.Logger != nil {
		m.Logger.Warnf("oauth: failed to persist state: %v", err)
	}
	defer func() {
		if err := m.Store.ClearPKCE(m.canonical); err != nil && m.Logger != nil {
			m.Logger.Warnf("oauth: failed to clear pkce state: %v", err)
		}
	}()

	result, err := Authorize(ctx, metadata, client, m.Scopes, m.canonical, codeVerifier, state, m.Logger)
	if err != nil {
		return Token{}, fmt.Errorf("browser authorization: %w", err)
	}
	tok, err := Exchange(ctx, m.HTTPClient, metadata, client, result, m.canonical)
	if err != nil {
		return Token{}, fmt.Errorf("exchange authorization code: %w", err)
	}
	return tok, nil
}
