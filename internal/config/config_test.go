package config

import (
	"os"
	"testing"
	"time"
)

func TestInitialize(t *testing.T) {
	if err := Initialize(); err != nil {
		t.Fatalf("Initialize() returned error: %v", err)
	}
	if v == nil {
		t.Fatal("viper instance is nil after Initialize()")
	}
}

func TestDefaults(t *testing.T) {
	if err := Initialize(); err != nil {
		t.Fatalf("Initialize() returned error: %v", err)
	}

	tests := []struct {
		key      string
		expected interface{}
		getter   func(string) interface{}
	}{
		{"listen", "127.0.0.1:7333", func(k string) interface{} { return GetString(k) }},
		{"server-url", "http://127.0.0.1:7333", func(k string) interface{} { return GetString(k) }},
		{"db", "", func(k string) interface{} { return GetString(k) }},
		{"log-max-backups", 3, func(k string) interface{} { return GetInt(k) }},
		{"request-timeout", 30 * time.Second, func(k string) interface{} { return GetDuration(k) }},
		{"search-limit", 50, func(k string) interface{} { return GetInt(k) }},
		{"json", false, func(k string) interface{} { return GetBool(k) }},
	}

	for _, tt := range tests {
		t.Run(tt.key, func(t *testing.T) {
			got := tt.getter(tt.key)
			if got != tt.expected {
				t.Errorf("get(%q) = %v, want %v", tt.key, got, tt.expected)
			}
		})
	}
}

func TestEnvironmentBinding(t *testing.T) {
	tests := []struct {
		envVar   string
		key      string
		value    string
		expected interface{}
		getter   func(string) interface{}
	}{
		{"SLATE_LISTEN", "listen", "0.0.0.0:9000", "0.0.0.0:9000", func(k string) interface{} { return GetString(k) }},
		{"SLATE_DB", "db", "/tmp/test.db", "/tmp/test.db", func(k string) interface{} { return GetString(k) }},
		{"SLATE_JSON", "json", "true", true, func(k string) interface{} { return GetBool(k) }},
		{"SLATE_REQUEST_TIMEOUT", "request-timeout", "10s", 10 * time.Second, func(k string) interface{} { return GetDuration(k) }},
	}

	for _, tt := range tests {
		t.Run(tt.envVar, func(t *testing.T) {
			oldValue := os.Getenv(tt.envVar)
			_ = os.Setenv(tt.envVar, tt.value)
			defer os.Setenv(tt.envVar, oldValue)

			if err := Initialize(); err != nil {
				t.Fatalf("Initialize() returned error: %v", err)
			}
			got := tt.getter(tt.key)
			if got != tt.expected {
				t.Errorf("get(%q) = %v, want %v", tt.key, got, tt.expected)
			}
		})
	}
}

func TestExplicitDBPath(t *testing.T) {
	if err := Initialize(); err != nil {
		t.Fatalf("Initialize() returned error: %v", err)
	}
	Set("db", "/tmp/explicit.db")
	if got := DBPath(); got != "/tmp/explicit.db" {
		t.Errorf("DBPath() = %q, want /tmp/explicit.db", got)
	}
}
