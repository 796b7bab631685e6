package oauth

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"regexp"
	"strings"
	"time"
)

type tokenErrorResponse struct {
	Error            string `json:"error"`
	ErrorDescription string `json:"error_description"`
}

type tokenSuccessResponse struct {
	AccessToken  string `json:"access_token"`
	TokenType    string `json:"token_type"`
	ExpiresIn    int    `json:"expires_in"`
	Scope        string `json:"scope"`
	RefreshToken string `json:"refresh_token,omitempty"`
}

// tokenError is the parsed OAuth error body from a non-200 token
// response, kept structured so postTokenRequest can pattern-match on it
// (e.g. the redirect-URI reconciliation in §4.5/§8.6) instead of
// re-parsing the message string.
type tokenError struct {
	Code        string
	Description string
	status      int
}

func (e *tokenError) Error() string {
	if e.Description != "" {
		return fmt.Sprintf("token request failed: %s: %s", e.Code, e.Description)
	}
	if e.Code != "" {
		return fmt.Sprintf("token request failed: %s", e.Code)
	}
	return fmt.Sprintf("token request returned status %d", e.status)
}

// expectedRedirectURIPattern matches the server's rejection message for a
// redirect_uri mismatch, e.g. `"You sent http://127.0.0.1:54321/callback
// and we expected http://127.0.0.1:8080/callback"`, per the §8.6 seed
// scenario.
var expectedRedirectURIPattern = regexp.MustCompile(`(?i)we expected\s+(\S+?)[.,;\s]*$`)

// extractExpectedRedirectURI pulls the server-expected redirect_uri out
// of a token error description, if present.
func extractExpectedRedirectURI(description string) (string, bool) {
	m := expectedRedirectURIPattern.FindStringSubmatch(description)
	if len(m) != 2 {
		return "", false
	}
	return m[1], true
}

// Exchange trades an authorization code (plus its PKCE verifier) for an
// access token at metadata.TokenEndpoint. resource is the canonical MCP
// server URL, sent as the RFC 8707 resource indicator so the
// authorization server scopes the token to this server.
func Exchange(ctx context.Context, httpClient *http.Client, metadata ServerMetadata, client ClientInfo, result *AuthorizeResult, resource string) (Token, error) {
	data := url.Values{
		"grant_type":    {"authorization_code"},
		"client_id":     {client.ClientID},
		"code":          {result.Code},
		"redirect_uri":  {result.RedirectURI},
		"code_verifier": {result.CodeVerifier},
	}
	if client.ClientSecret != "" {
		data.Set("client_secret", client.ClientSecret)
	}
	if resource != "" {
		data.Set("resource", resource)
	}
	return postTokenRequest(ctx, httpClient, metadata.TokenEndpoint, data)
}

// Refresh exchanges a refresh token for a new access token. resource is
// the canonical MCP server URL, sent per RFC 8707 just as on the initial
// exchange.
func Refresh(ctx context.Context, httpClient *http.Client, metadata ServerMetadata, client ClientInfo, refreshToken, resource string) (Token, error) {
	if refreshToken == "" {
		return Token{}, fmt.Errorf("no refresh token available")
	}
	data := url.Values{
		"grant_type":    {"refresh_token"},
		"client_id":     {client.ClientID},
		"refresh_token": {refreshToken},
	}
	if client.ClientSecret != "" {
		data.Set("client_secret", client.ClientSecret)
	}
	if resource != "" {
		data.Set("resource", resource)
	}
	return postTokenRequest(ctx, httpClient, metadata.TokenEndpoint, data)
}

// postTokenRequest POSTs data and, on an unauthorized_client rejection
// whose description names the redirect_uri the server actually expected
// (§4.5/§8.6), retries exactly once with that redirect_uri substituted.
func postTokenRequest(ctx context.Context, httpClient *http.Client, tokenEndpoint string, data url.Values) (Token, error) {
	tok, err := doTokenPost(ctx, httpClient, tokenEndpoint, data)
	if err == nil {
		return tok, nil
	}

	var terr *tokenError
	if errors.As(err, &terr) && terr.Code == "unauthorized_client" && data.Get("redirect_uri") != "" {
		if expected, ok := extractExpectedRedirectURI(terr.Description); ok && expected != data.Get("redirect_uri") {
			retryData := cloneValues(data)
			retryData.Set("redirect_uri", expected)
			return doTokenPost(ctx, httpClient, tokenEndpoint, retryData)
		}
	}
	return Token{}, err
}

func cloneValues(v url.Values) url.Values {
	out := make(url.Values, len(v))
	for k, vals := range v {
		out[k] = append([]string(nil), vals...)
	}
	return out
}

func doTokenPost(ctx context.Context, httpClient *http.Client, tokenEndpoint string, data url.Values) (Token, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, tokenEndpoint, strings.NewReader(data.Encode()))
	if err != nil {
		return Token{}, err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("Accept", "application/json")

	resp, err := httpClient.Do(req)
	if err != nil {
		return Token{}, fmt.Errorf("token request to %s: %w", tokenEndpoint, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return Token{}, fmt.Errorf("read token response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		var errResp tokenErrorResponse
		if err := json.Unmarshal(body, &errResp); err == nil && errResp.Error != "" {
			return Token{}, &tokenError{Code: errResp.Error, Description: errResp.ErrorDescription, status: resp.StatusCode}
		}
		return Token{}, &tokenError{status: resp.StatusCode}
	}

	var tokResp tokenSuccessResponse
	if err := json.Unmarshal(body, &tokResp); err != nil {
		return Token{}, fmt.Errorf("decode token response: %w", err)
	}
	if tokResp.AccessToken == "" {
		return Token{}, fmt.Errorf("token response from %s has no access_token", tokenEndpoint)
	}

	return Token{
		AccessToken:  tokResp.AccessToken,
		RefreshToken: tokResp.RefreshToken,
		TokenType:    tokResp.TokenType,
		Scope:        tokResp.Scope,
		ExpiresAt:    time.Now().Add(time.Duration(tokResp.ExpiresIn) * time.Second),
	}, nil
}
