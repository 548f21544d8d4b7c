package main

import "testing"

func TestParseIdentifier(t *testing.T) {
	tests := []struct {
		in      string
		name    string
		version string
		wantErr bool
	}{
		{in: "ripgrep", name: "ripgrep"},
		{in: "ripgrep@14.1.0", name: "ripgrep", version: "14.1.0"},
		{in: "hello-world@0.1.0", name: "hello-world", version: "0.1.0"},
		{in: "", wantErr: true},
		{in: "@1.0.0", wantErr: true},
		{in: "tool@", wantErr: true},
		{in: "tool@1.0.0@2.0.0", wantErr: true},
	}

	for _, tt := range tests {
		name, version, err := parseIdentifier(tt.in)
		if tt.wantErr {
			if err == nil {
				t.Errorf("parseIdentifier(%q): expected error, got %q %q", tt.in, name, version)
			}
			continue
		}
		if err != nil {
			t.Errorf("parseIdentifier(%q): %v", tt.in, err)
			continue
		}
		if name != tt.name || version != tt.version {
			t.Errorf("parseIdentifier(%q) = (%q, %q), want (%q, %q)",
				tt.in, name, version, tt.name, tt.version)
		}
	}
}
