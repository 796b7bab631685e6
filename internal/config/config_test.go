package config

import (
	"reflect"
	"testing"
)

func TestParsedOAuthScopes(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want []string
	}{
		{"empty", "", nil},
		{"single", "openid", []string{"openid"}},
		{"multiple with spaces", " openid , profile ,mcp:tools ", []string{"openid", "profile", "mcp:tools"}},
		{"drops empty entries", "openid,,profile", []string{"openid", "profile"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := ServerConfig{OAuthScopes: tt.in}
			got := s.ParsedOAuthScopes()
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("ParsedOAuthScopes() = %#v, want %#v", got, tt.want)
			}
		})
	}
}

func TestHasServers(t *testing.T) {
	var c Config
	if c.HasServers() {
		t.Error("HasServers() = true for empty config")
	}
	c.Servers = []ServerConfig{{Name: "a"}}
	if !c.HasServers() {
		t.Error("HasServers() = false with one server configured")
	}
}
