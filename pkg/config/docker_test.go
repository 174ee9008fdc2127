package config

import (
	"testing"
)

func TestResolveHostForDocker_NonLocalHostsUnchanged(t *testing.T) {
	tests := []struct {
		input    string
		expected string
	}{
		{"mydb.example.com", "mydb.example.com"},
		{"192.168.1.100", "192.168.1.100"},
		{"host.docker.internal", "host.docker.internal"},
	}

	for _, tt := range tests {
		result := ResolveHostForDocker(tt.input)
		if result != tt.expected {
			t.Errorf("ResolveHostForDocker(%q) = %q, want %q", tt.input, result, tt.expected)
		}
	}
}

func TestResolveURLForDocker(t *testing.T) {
	dsn := "postgres://u:p@localhost:5432/macro"
	result := ResolveURLForDocker(dsn)

	if IsRunningInDocker() {
		want := "postgres://u:p@host.docker.internal:5432/macro"
		if result != want {
			t.Errorf("ResolveURLForDocker(%q) in Docker = %q, want %q", dsn, result, want)
		}
		return
	}
	if result != dsn {
		t.Errorf("ResolveURLForDocker(%q) not in Docker = %q, want unchanged", dsn, result)
	}
}

func TestResolveURLForDocker_KeyValueUnchanged(t *testing.T) {
	dsn := "host=localhost port=5432"
	if got := ResolveURLForDocker(dsn); got != dsn {
		t.Errorf("ResolveURLForDocker(%q) = %q, want unchanged", dsn, got)
	}
}
