package transport

import (
	"strings"
	"testing"

	"github.com/toolgrid/toolgrid-go/pkg/errors"
)

func TestFactoryFailFast(t *testing.T) {
	cases := []struct {
		name    string
		config  Config
		section string
	}{
		{"stdio without sub-config", Config{Type: TransportTypeStdio}, "stdio"},
		{"http without sub-config", Config{Type: TransportTypeHTTP}, "http"},
		{"sse without sub-config", Config{Type: TransportTypeSSE}, "sse"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			tr, err := New(tc.config)
			if err == nil {
				t.Fatal("Expected factory to fail without the matching sub-config")
			}
			if tr != nil {
				t.Error("Expected no transport to be returned on failure")
			}
			if !errors.IsCategory(err, errors.CategoryConfig) {
				t.Errorf("Expected config error, got %v", err)
			}
			want := tc.section + " config required"
			if !strings.Contains(err.Error(), want) {
				t.Errorf("Expected error to name the missing section %q, got %q", want, err.Error())
			}
		})
	}
}

func TestFactoryUnknownType(t *testing.T) {
	_, err := New(Config{Type: "telepathy"})
	if err == nil {
		t.Fatal("Expected unknown transport type to fail")
	}
	if !errors.IsCategory(err, errors.CategoryConfig) {
		t.Errorf("Expected config error, got %v", err)
	}
}

func TestFactoryEmptyRequiredFields(t *testing.T) {
	_, err := New(Config{Type: TransportTypeStdio, Stdio: &StdioConfig{}})
	if err == nil {
		t.Error("Expected stdio config without command to fail")
	}

	_, err = New(Config{Type: TransportTypeHTTP, HTTP: &HTTPConfig{}})
	if err == nil {
		t.Error("Expected http config without base_url to fail")
	}

	_, err = New(Config{Type: TransportTypeSSE, SSE: &SSEConfig{}})
	if err == nil {
		t.Error("Expected sse config without url to fail")
	}
}

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig(TransportTypeHTTP)
	if cfg.HTTP == nil {
		t.Fatal("Expected http sub-config to be present")
	}
	if cfg.HTTP.Timeout == 0 {
		t.Error("Expected a non-zero default timeout")
	}

	cfg = DefaultConfig(TransportTypeSSE)
	if cfg.SSE == nil {
		t.Fatal("Expected sse sub-config to be present")
	}
	if cfg.SSE.QueueSize == 0 {
		t.Error("Expected a non-zero default queue size")
	}
}
