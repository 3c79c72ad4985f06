package validate

import (
	"errors"
	"net"
	"strings"
	"testing"
)

func TestURL(t *testing.T) {
	tests := []struct {
		name        string
		input       string
		constraints URLConstraints
		wantErr     error
	}{
		{
			name:        "https allowed by defaults",
			input:       "https://murals.example.com/olive-press.jpg",
			constraints: DefaultURLConstraints,
		},
		{
			name:        "http rejected by defaults",
			input:       "http://murals.example.com/olive-press.jpg",
			constraints: DefaultURLConstraints,
			wantErr:     ErrDisallowedScheme,
		},
		{
			name:        "http allowed for public web",
			input:       "http://legacy.example.com/poem.png",
			constraints: PublicWebURLConstraints,
		},
		{
			name:        "ftp rejected",
			input:       "ftp://example.com/file",
			constraints: PublicWebURLConstraints,
			wantErr:     ErrDisallowedScheme,
		},
		{
			name:        "empty",
			input:       "",
			constraints: DefaultURLConstraints,
			wantErr:     ErrEmpty,
		},
		{
			name:        "missing hostname",
			input:       "https:///path-only",
			constraints: DefaultURLConstraints,
			wantErr:     ErrInvalidURL,
		},
		{
			name:  "domain allowlist match",
			input: "https://cdn.nabeul.tn/mural.webp",
			constraints: URLConstraints{
				AllowedSchemes: []string{"https"},
				AllowedDomains: []string{"nabeul.tn"},
			},
		},
		{
			name:  "domain allowlist miss",
			input: "https://evil.example.com/mural.webp",
			constraints: URLConstraints{
				AllowedSchemes: []string{"https"},
				AllowedDomains: []string{"nabeul.tn"},
			},
			wantErr: ErrDisallowedDomain,
		},
		{
			name:  "domain suffix must be a label boundary",
			input: "https://notnabeul.tn.example.com/x",
			constraints: URLConstraints{
				AllowedSchemes: []string{"https"},
				AllowedDomains: []string{"nabeul.tn"},
			},
			wantErr: ErrDisallowedDomain,
		},
		{
			name:        "localhost blocked",
			input:       "https://localhost/admin",
			constraints: DefaultURLConstraints,
			wantErr:     ErrSSRFRisk,
		},
		{
			name:  "too long",
			input: "https://example.com/" + strings.Repeat("a", 2048),
			constraints: URLConstraints{
				AllowedSchemes: []string{"https"},
				MaxLength:      2048,
			},
			wantErr: ErrStringTooLong,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := URL(tt.input, tt.constraints)
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Fatalf("URL(%q) error = %v, want %v", tt.input, err, tt.wantErr)
				}
				return
			}
			if err != nil {
				t.Fatalf("URL(%q) unexpected error = %v", tt.input, err)
			}
			if got != strings.TrimSpace(tt.input) {
				t.Errorf("URL(%q) = %q, want input returned unchanged", tt.input, got)
			}
		})
	}
}

func TestMediaURL(t *testing.T) {
	for _, raw := range []string{
		"https://cdn.example.com/murals/bir-challouf.jpg",
		"http://cdn.example.com/murals/bir-challouf.jpg",
	} {
		if _, err := MediaURL(raw); err != nil {
			t.Errorf("MediaURL(%q) errored: %v", raw, err)
		}
	}

	if _, err := MediaURL("https://localhost/mural.png"); !errors.Is(err, ErrSSRFRisk) {
		t.Errorf("MediaURL(localhost) = %v, want ErrSSRFRisk", err)
	}
	if _, err := MediaURL("data:image/png;base64,AAAA"); !errors.Is(err, ErrDisallowedScheme) {
		t.Errorf("MediaURL(data URL) = %v, want ErrDisallowedScheme", err)
	}
}

func TestIsPrivateIP(t *testing.T) {
	tests := []struct {
		addr string
		want bool
	}{
		{"127.0.0.1", true},
		{"10.1.2.3", true},
		{"172.16.0.1", true},
		{"172.31.255.255", true},
		{"172.32.0.1", false},
		{"192.168.1.1", true},
		{"169.254.0.5", true},
		{"8.8.8.8", false},
		{"196.203.50.10", false},
		{"::1", true},
		{"fc00::1", true},
		{"fd12:3456::1", true},
		{"2001:4860:4860::8888", false},
	}

	for _, tt := range tests {
		t.Run(tt.addr, func(t *testing.T) {
			ip := net.ParseIP(tt.addr)
			if ip == nil {
				t.Fatalf("ParseIP(%q) failed", tt.addr)
			}
			if got := isPrivateIP(ip); got != tt.want {
				t.Errorf("isPrivateIP(%s) = %v, want %v", tt.addr, got, tt.want)
			}
		})
	}
}
