package client

import (
	"errors"
	"sync"
	"testing"
)

func resetDefault(t *testing.T) {
	t.Helper()
	reset := func() {
		defaultMu.Lock()
		defaultOnce = sync.Once{}
		defaultProvider = nil
		defaultErr = nil
		defaultConfig = DefaultConfig()
		defaultStarted = false
		defaultMu.Unlock()
	}
	reset()
	t.Cleanup(reset)
}

func TestDefault_ReturnsSameProvider(t *testing.T) {
	resetDefault(t)

	if err := Init(Config{BaseURL: "http://example.test:8080"}); err != nil {
		t.Fatalf("Init() error = %v", err)
	}

	p1, err := Default()
	if err != nil {
		t.Fatalf("Default() error = %v", err)
	}
	p2, _ := Default()
	if p1 != p2 {
		t.Error("Default() should return the same provider")
	}
	if p1.baseURL.Host != "example.test:8080" {
		t.Errorf("host = %q", p1.baseURL.Host)
	}
}

func TestInit_AfterDefault_Fails(t *testing.T) {
	resetDefault(t)

	if _, err := Default(); err != nil {
		t.Fatalf("Default() error = %v", err)
	}
	if err := Init(Config{BaseURL: "http://other.test"}); !errors.Is(err, ErrAlreadyInitialized) {
		t.Errorf("Init() error = %v, want ErrAlreadyInitialized", err)
	}
}

func TestDefault_InvalidConfig(t *testing.T) {
	resetDefault(t)

	if err := Init(Config{BaseURL: "not a url"}); err != nil {
		t.Fatalf("Init() error = %v", err)
	}
	if _, err := Default(); err == nil {
		t.Error("Default() should fail for an invalid base url")
	}
}
