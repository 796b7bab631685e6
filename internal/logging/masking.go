package logging

import (
	"net/url"
	"strings"
)

// sensitiveKeys triggers automatic masking when found in a header name,
// query parameter, or map key being logged.
var sensitiveKeys = []string{
	"password", "passwd", "pwd", "secret",
	"token", "api_key", "apikey", "api-key",
	"authorization", "auth", "credential",
}

// MaskToken masks a token, showing only its last 8 characters.
func MaskToken(token string) string {
	if len(token) == 0 {
		return ""
	}
	if len(token) <= 8 {
		return "****"
	}
	return "****" + token[len(token)-8:]
}

// MaskHeader masks a sensitive HTTP header value for logging. Authorization
// headers keep their scheme ("Bearer", "Basic") but mask the credential.
func MaskHeader(name, value string) string {
	if len(value) == 0 {
		return ""
	}
	if strings.EqualFold(name, "authorization") {
		parts := strings.SplitN(value, " ", 2)
		if len(parts) == 2 {
			return parts[0] + " " + MaskToken(parts[1])
		}
		return MaskToken(value)
	}
	if IsSensitiveKey(name) {
		return MaskToken(value)
	}
	return value
}

// MaskURL removes sensitive userinfo and query parameters from a URL
// before it's written to a log line or trace file.
func MaskURL(rawURL string) string {
	parsed, err := url.Parse(rawURL)
	if err != nil {
		return rawURL
	}
	if parsed.User != nil {
		if _, hasPass := parsed.User.Password(); hasPass {
			parsed.User = url.UserPassword(parsed.User.Username(), "***")
		}
	}
	query := parsed.Query()
	modified := false
	for key := range query {
		if IsSensitiveKey(key) {
			query.Set(key, "***")
			modified = true
		}
	}
	if modified {
		parsed.RawQuery = query.Encode()
	}
	return parsed.String()
}

// IsSensitiveKey reports whether key names data that should be masked.
func IsSensitiveKey(key string) bool {
	lower := strings.ToLower(key)
	for _, s := range sensitiveKeys {
		if strings.Contains(lower, s) {
			return true
		}
	}
	return false
}
