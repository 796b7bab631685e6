package oauth

import "testing"

func TestCanonicalize(t *testing.T) {
	tests := []struct {
		name    string
		in      string
		want    string
		wantErr bool
	}{
		{"lowercases scheme and host", "HTTPS://Example.COM/mcp", "https://example.com/mcp", false},
		{"strips default https port", "https://example.com:443/mcp", "https://example.com/mcp", false},
		{"strips default http port", "http://example.com:80/mcp", "http://example.com/mcp", false},
		{"keeps non-default port", "https://example.com:8443/mcp", "https://example.com:8443/mcp", false},
		{"strips trailing slash on empty path", "https://example.com/", "https://example.com", false},
		{"strips fragment", "https://example.com/mcp#section", "https://example.com/mcp", false},
		{"missing scheme is an error", "example.com/mcp", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Canonicalize(tt.in)
			if (err != nil) != tt.wantErr {
				t.Fatalf("Canonicalize(%q) error = %v, wantErr %v", tt.in, err, tt.wantErr)
			}
			if err == nil && got != tt.want {
				t.Errorf("Canonicalize(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}

func TestCanonicalizeIsIdempotent(t *testing.T) {
	first, err := Canonicalize("HTTPS://Example.COM:443/mcp/#x")
	if err != nil {
		t.Fatalf("Canonicalize: %v", err)
	}
	second, err := Canonicalize(first)
	if err != nil {
		t.Fatalf("Canonicalize(second pass): %v", err)
	}
	if first != second {
		t.Errorf("Canonicalize is not idempotent: %q != %q", first, second)
	}
}
