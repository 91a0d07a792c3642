package builtin

import (
	"context"
	"encoding/json"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/pocketomega/agentrt/internal/tool"
)

func execHTTP(t *testing.T, tl tool.Tool, args any) tool.ToolResult {
	t.Helper()
	raw, err := json.Marshal(args)
	if err != nil {
		t.Fatalf("marshal args: %v", err)
	}
	result, err := tl.Execute(context.Background(), &tool.ToolContext{}, raw)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	return result
}

func TestHTTPRequestTool_Success(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"status":"ok"}`))
	}))
	defer server.Close()

	tl := NewHTTPRequestTool(true) // httptest binds to 127.0.0.1
	result := execHTTP(t, tl, httpRequestArgs{URL: server.URL, Method: "GET"})
	if !result.Success {
		t.Errorf("unexpected failure: %+v", result)
	}
	if !strings.Contains(result.Output, "200") {
		t.Errorf("output should contain 200 status, got: %q", result.Output)
	}
	if !strings.Contains(result.Output, `{"status":"ok"}`) {
		t.Errorf("output should contain response body, got: %q", result.Output)
	}
}

func TestHTTPRequestTool_PostWithBody(t *testing.T) {
	var receivedBody string
	var receivedMethod string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		receivedMethod = r.Method
		buf := make([]byte, 1024)
		n, _ := r.Body.Read(buf)
		receivedBody = string(buf[:n])
		w.WriteHeader(http.StatusCreated)
		w.Write([]byte("created"))
	}))
	defer server.Close()

	tl := NewHTTPRequestTool(true)
	result := execHTTP(t, tl, httpRequestArgs{
		URL:     server.URL,
		Method:  "POST",
		Body:    `{"name":"test"}`,
		Headers: map[string]string{"Content-Type": "application/json"},
	})
	if !result.Success {
		t.Errorf("unexpected failure: %+v", result)
	}
	if receivedMethod != "POST" {
		t.Errorf("method = %q, want POST", receivedMethod)
	}
	if !strings.Contains(receivedBody, `{"name":"test"}`) {
		t.Errorf("server received body = %q, want JSON payload", receivedBody)
	}
	if !strings.Contains(result.Output, "201") {
		t.Errorf("output should contain 201 status, got: %q", result.Output)
	}
}

func TestHTTPRequestTool_Non200StatusReturned(t *testing.T) {
	tests := []struct {
		name       string
		statusCode int
	}{
		{"404 Not Found", http.StatusNotFound},
		{"500 Internal Server Error", http.StatusInternalServerError},
		{"403 Forbidden", http.StatusForbidden},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.statusCode)
				w.Write([]byte("error response"))
			}))
			defer server.Close()

			tl := NewHTTPRequestTool(true)
			result := execHTTP(t, tl, httpRequestArgs{URL: server.URL})
			// A non-200 status is not a tool failure; it is reported in the output.
			if !result.Success {
				t.Errorf("non-200 status should not be a tool failure, got: %+v", result)
			}
			if !strings.Contains(result.Output, "error response") {
				t.Errorf("output should contain response body, got: %q", result.Output)
			}
		})
	}
}

func TestHTTPRequestTool_EmptyURL(t *testing.T) {
	tl := NewHTTPRequestTool(false)
	result := execHTTP(t, tl, httpRequestArgs{URL: ""})
	if result.Success || !strings.Contains(result.Output, "must not be empty") {
		t.Errorf("expected empty url error, got: %+v", result)
	}
}

func TestHTTPRequestTool_InvalidProtocol(t *testing.T) {
	tests := []struct {
		name string
		url  string
	}{
		{"ftp", "ftp://example.com/file"},
		{"file", "file:///etc/passwd"},
		{"javascript", "javascript:alert(1)"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tl := NewHTTPRequestTool(false)
			result := execHTTP(t, tl, httpRequestArgs{URL: tt.url})
			if result.Success || !strings.Contains(result.Output, "http://") {
				t.Errorf("expected protocol error, got: %+v", result)
			}
		})
	}
}

func TestHTTPRequestTool_BlockInternalIPv4(t *testing.T) {
	tests := []struct {
		name string
		url  string
	}{
		{"loopback", "http://127.0.0.1/test"},
		{"private 10.x", "http://10.0.0.1/test"},
		{"private 172.16.x", "http://172.16.0.1/test"},
		{"private 192.168.x", "http://192.168.1.1/test"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tl := NewHTTPRequestTool(false)
			result := execHTTP(t, tl, httpRequestArgs{URL: tt.url})
			if result.Success || !strings.Contains(result.Output, "internal address") {
				t.Errorf("expected internal IP block, got: %+v", result)
			}
		})
	}
}

func TestHTTPRequestTool_BlockInternalIPv6(t *testing.T) {
	tl := NewHTTPRequestTool(false)
	result := execHTTP(t, tl, httpRequestArgs{URL: "http://[::1]/test"})
	if result.Success || !strings.Contains(result.Output, "internal address") {
		t.Errorf("expected IPv6 loopback block, got: %+v", result)
	}
}

func TestHTTPRequestTool_AllowInternalWhenEnabled(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("internal ok"))
	}))
	defer server.Close()

	tl := NewHTTPRequestTool(true)
	result := execHTTP(t, tl, httpRequestArgs{URL: server.URL})
	if !result.Success {
		t.Errorf("internal should be allowed when enabled, got: %+v", result)
	}
	if !strings.Contains(result.Output, "internal ok") {
		t.Errorf("should return response body, got: %q", result.Output)
	}
}

func TestHTTPRequestTool_Timeout(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(5 * time.Second)
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	tl := NewHTTPRequestTool(true)
	result := execHTTP(t, tl, httpRequestArgs{URL: server.URL, Timeout: 1})
	if result.Success {
		t.Errorf("expected timeout error, got success: %q", result.Output)
	}
}

func TestHTTPRequestTool_DefaultMethod(t *testing.T) {
	var receivedMethod string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		receivedMethod = r.Method
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	}))
	defer server.Close()

	tl := NewHTTPRequestTool(true)
	result := execHTTP(t, tl, httpRequestArgs{URL: server.URL})
	if !result.Success {
		t.Errorf("unexpected failure: %+v", result)
	}
	if receivedMethod != "GET" {
		t.Errorf("default method = %q, want GET", receivedMethod)
	}
}

func TestHTTPRequestTool_CustomHeaders(t *testing.T) {
	var receivedAuth string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		receivedAuth = r.Header.Get("Authorization")
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	}))
	defer server.Close()

	tl := NewHTTPRequestTool(true)
	result := execHTTP(t, tl, httpRequestArgs{
		URL:     server.URL,
		Headers: map[string]string{"Authorization": "Bearer test-token"},
	})
	if !result.Success {
		t.Errorf("unexpected failure: %+v", result)
	}
	if receivedAuth != "Bearer test-token" {
		t.Errorf("Authorization header = %q, want %q", receivedAuth, "Bearer test-token")
	}
}

func TestHTTPRequestTool_BinaryResponseDetection(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "image/png")
		w.WriteHeader(http.StatusOK)
		w.Write([]byte{0x89, 0x50, 0x4E, 0x47, 0x0D, 0x0A})
	}))
	defer server.Close()

	tl := NewHTTPRequestTool(true)
	result := execHTTP(t, tl, httpRequestArgs{URL: server.URL})
	if !result.Success {
		t.Errorf("unexpected failure: %+v", result)
	}
	if !strings.Contains(result.Output, "binary content") {
		t.Errorf("binary response should be detected, got: %q", result.Output)
	}
}

func TestHTTPRequestTool_ResponseBodyTruncation(t *testing.T) {
	largeBody := strings.Repeat("x", 10000)
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/plain")
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(largeBody))
	}))
	defer server.Close()

	tl := NewHTTPRequestTool(true)
	result := execHTTP(t, tl, httpRequestArgs{URL: server.URL})
	if !result.Success {
		t.Errorf("unexpected failure: %+v", result)
	}
	if !strings.Contains(result.Output, "truncated") {
		t.Errorf("large response should be truncated, got output length: %d", len(result.Output))
	}
}

func TestHTTPRequestTool_BadJSON(t *testing.T) {
	tl := NewHTTPRequestTool(false)
	result, err := tl.Execute(context.Background(), &tool.ToolContext{}, []byte(`not json`))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.Success || !strings.Contains(result.Output, "bad arguments") {
		t.Errorf("expected parse error, got: %+v", result)
	}
}

func TestHTTPRequestTool_TimeoutClamped(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	}))
	defer server.Close()

	tl := NewHTTPRequestTool(true)
	result := execHTTP(t, tl, httpRequestArgs{URL: server.URL, Timeout: 999})
	if !result.Success {
		t.Errorf("large timeout should be clamped not rejected, got: %+v", result)
	}
}

// ── blockInternalHost unit tests ─────────────────────────────────────────────

func TestBlockInternalHost(t *testing.T) {
	tests := []struct {
		name      string
		host      string
		wantBlock bool
	}{
		{"loopback IPv4", "127.0.0.1", true},
		{"loopback IPv6", "::1", true},
		{"private 10.x", "10.0.0.1", true},
		{"private 172.16.x", "172.16.0.1", true},
		{"private 192.168.x", "192.168.1.1", true},
		{"link-local IPv4", "169.254.1.1", true},
		{"public IP", "8.8.8.8", false},
		{"public IP 2", "1.1.1.1", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := blockInternalHost(tt.host)
			if tt.wantBlock && err == nil {
				t.Errorf("blockInternalHost(%q) should have blocked", tt.host)
			}
			if !tt.wantBlock && err != nil {
				t.Errorf("blockInternalHost(%q) should not have blocked: %v", tt.host, err)
			}
		})
	}
}

// ── isBinaryHTTPResponse unit tests ──────────────────────────────────────────

func TestIsBinaryHTTPResponse(t *testing.T) {
	tests := []struct {
		name        string
		contentType string
		body        []byte
		want        bool
	}{
		{"image/png", "image/png", nil, true},
		{"application/pdf", "application/pdf", nil, true},
		{"application/json", "application/json", []byte(`{}`), false},
		{"text/plain", "text/plain", []byte("hello"), false},
		{"empty body text", "text/html", []byte{}, false},
		{"audio/mpeg", "audio/mpeg", nil, true},
		{"video/mp4", "video/mp4", nil, true},
		{"application/zip", "application/zip", nil, true},
		{"application/octet-stream", "application/octet-stream", nil, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := isBinaryHTTPResponse(tt.contentType, tt.body)
			if got != tt.want {
				t.Errorf("isBinaryHTTPResponse(%q, ...) = %v, want %v", tt.contentType, got, tt.want)
			}
		})
	}
}

// ── privateNetworks init test ────────────────────────────────────────────────

func TestPrivateNetworksInitialized(t *testing.T) {
	if len(privateNetworks) == 0 {
		t.Error("privateNetworks should be initialized with CIDR ranges")
	}

	ip := net.ParseIP("192.168.1.1")
	found := false
	for _, network := range privateNetworks {
		if network.Contains(ip) {
			found = true
			break
		}
	}
	if !found {
		t.Error("192.168.1.1 should be in privateNetworks")
	}
}
