package openrouter

import (
	"context"
	"testing"
	"time"
)

func TestBaseURLDefaultsToOpenRouter(t *testing.T) {
	t.Parallel()

	if got := (Config{}).baseURL(); got != DefaultBaseURL {
		t.Fatalf("baseURL() = %q, want %q", got, DefaultBaseURL)
	}
	if got := (Config{BaseURL: " http://localhost:8080/v1/ "}).baseURL(); got != "http://localhost:8080/v1" {
		t.Fatalf("baseURL() = %q", got)
	}
}

func TestNewClientWithoutKeyReturnsNil(t *testing.T) {
	t.Parallel()

	if client := NewClient(Config{APIKey: "   "}); client != nil {
		t.Fatal("expected nil client without api key")
	}
	if client := NewClient(Config{APIKey: "sk-test", Timeout: time.Second, SiteName: "copilot"}); client == nil {
		t.Fatal("expected client when api key is set")
	}
}

func TestNewRequiresModel(t *testing.T) {
	t.Parallel()

	if _, err := (Config{APIKey: "sk-test"}).New(context.Background()); err == nil {
		t.Fatal("expected error without model")
	}
}
