package builtin

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/pocketomega/agentrt/internal/tool"
)

const (
	httpMaxResponseChars = 8000 // rune limit for response body output
	httpMaxTimeout       = 30   // seconds, hard upper bound
	httpDefaultTimeout   = 10   // seconds
	httpMaxRedirects     = 3
)

// privateNetworks lists all IPv4/IPv6 address ranges considered internal.
// Covers RFC-1918 private ranges, loopback, link-local, ULA, CGNAT, and
// other address blocks that could be used for SSRF bypasses.
var privateNetworks []*net.IPNet

func init() {
	for _, cidr := range []string{
		"0.0.0.0/8",      // "this network"; routes to localhost on many systems
		"10.0.0.0/8",     // RFC-1918 private
		"100.64.0.0/10",  // Carrier-grade NAT (CGNAT); internal in cloud envs
		"127.0.0.0/8",    // IPv4 loopback (belt-and-suspenders with IsLoopback)
		"169.254.0.0/16", // IPv4 link-local
		"172.16.0.0/12",  // RFC-1918 private
		"192.168.0.0/16", // RFC-1918 private
		"198.18.0.0/15",  // benchmark / testing range
		"::1/128",        // IPv6 loopback
		"fc00::/7",       // IPv6 unique local (ULA)
		"fe80::/10",      // IPv6 link-local
	} {
		_, network, err := net.ParseCIDR(cidr)
		if err == nil {
			privateNetworks = append(privateNetworks, network)
		}
	}
}

// allowedHTTPMethods is the set of HTTP verbs we permit.
var allowedHTTPMethods = map[string]bool{
	"GET":     true,
	"POST":    true,
	"PUT":     true,
	"PATCH":   true,
	"DELETE":  true,
	"HEAD":    true,
	"OPTIONS": true,
}

// usefulResponseHeaders are the header names surfaced to the LLM.
// Omits Set-Cookie, authentication headers, and server internals.
var usefulResponseHeaders = map[string]bool{
	"Content-Type":          true,
	"Content-Length":        true,
	"Content-Encoding":      true,
	"Location":              true,
	"Cache-Control":         true,
	"Retry-After":           true,
	"X-Ratelimit-Limit":     true,
	"X-Ratelimit-Remaining": true,
	"X-Ratelimit-Reset":     true,
	"X-Request-Id":          true,
	"X-Correlation-Id":      true,
}

type httpRequestArgs struct {
	URL     string            `json:"url"`
	Method  string            `json:"method"`
	Headers map[string]string `json:"headers"`
	Body    string            `json:"body"`
	Timeout int               `json:"timeout"`
}

// NewHTTPRequestTool returns the http_request tool: issue an HTTP request
// and return its response, for API debugging, webhook testing, and
// interface verification. Internal addresses are refused unless
// allowInternal is set (operator opt-in).
func NewHTTPRequestTool(allowInternal bool) tool.Tool {
	schema := tool.BuildSchema(
		tool.SchemaParam{Name: "url", Type: "string", Description: "Request URL (must be http/https)", Required: true},
		tool.SchemaParam{Name: "method", Type: "string", Description: "HTTP method: GET, POST, PUT, PATCH, DELETE, HEAD, OPTIONS (default GET)"},
		tool.SchemaParam{Name: "headers", Type: "object", Description: "Request header key/value pairs"},
		tool.SchemaParam{Name: "body", Type: "string", Description: "Request body (for POST/PUT)"},
		tool.SchemaParam{Name: "timeout", Type: "integer", Description: "Timeout in seconds (default 10, max 30)"},
	)
	return tool.NewNative("http_request", "Sends an HTTP request and returns the response; refuses internal addresses unless explicitly allowed", schema,
		func(ctx context.Context, _ *tool.ToolContext, args json.RawMessage) (tool.ToolResult, error) {
			var a httpRequestArgs
			if err := json.Unmarshal(args, &a); err != nil {
				return tool.ToolResult{Output: fmt.Sprintf("bad arguments: %v", err)}, nil
			}

			if strings.TrimSpace(a.URL) == "" {
				return tool.ToolResult{Output: "url must not be empty"}, nil
			}

			urlLower := strings.ToLower(a.URL)
			if !strings.HasPrefix(urlLower, "http://") && !strings.HasPrefix(urlLower, "https://") {
				return tool.ToolResult{Output: "only http:// and https:// are supported, not file://, ftp://, etc."}, nil
			}

			method := strings.ToUpper(strings.TrimSpace(a.Method))
			if method == "" {
				method = "GET"
			}
			if !allowedHTTPMethods[method] {
				return tool.ToolResult{Output: fmt.Sprintf("unsupported HTTP method: %s (supported: GET, POST, PUT, PATCH, DELETE, HEAD, OPTIONS)", method)}, nil
			}

			timeoutSec := a.Timeout
			if timeoutSec <= 0 {
				timeoutSec = httpDefaultTimeout
			}
			if timeoutSec > httpMaxTimeout {
				timeoutSec = httpMaxTimeout
			}
			timeout := time.Duration(timeoutSec) * time.Second

			// Custom dialer blocks internal IPs at connect time (first line of
			// defense). CheckRedirect below checks redirect targets before each hop.
			baseDialer := &net.Dialer{Timeout: timeout}
			transport := &http.Transport{
				DialContext: func(dialCtx context.Context, network, addr string) (net.Conn, error) {
					host, _, err := net.SplitHostPort(addr)
					if err != nil {
						host = addr
					}
					if !allowInternal {
						if err := blockInternalHost(host); err != nil {
							return nil, err
						}
					}
					return baseDialer.DialContext(dialCtx, network, addr)
				},
			}

			redirectsDone := 0
			client := &http.Client{
				Timeout:   timeout,
				Transport: transport,
				CheckRedirect: func(req *http.Request, via []*http.Request) error {
					redirectsDone++
					if redirectsDone > httpMaxRedirects {
						return fmt.Errorf("exceeded max redirects (%d)", httpMaxRedirects)
					}
					if !allowInternal {
						if err := blockInternalHost(req.URL.Hostname()); err != nil {
							return err
						}
					}
					return nil
				},
			}

			var bodyReader io.Reader
			if a.Body != "" {
				bodyReader = strings.NewReader(a.Body)
			}
			req, err := http.NewRequestWithContext(ctx, method, a.URL, bodyReader)
			if err != nil {
				return tool.ToolResult{Output: fmt.Sprintf("failed to build request: %v", err)}, nil
			}
			for k, v := range a.Headers {
				req.Header.Set(k, v)
			}

			start := time.Now()
			resp, err := client.Do(req)
			elapsed := time.Since(start)
			if err != nil {
				return tool.ToolResult{Output: fmt.Sprintf("request failed: %v", err)}, nil
			}
			defer resp.Body.Close()

			// 1MB raw cap to prevent OOM.
			rawBody, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
			if err != nil {
				return tool.ToolResult{Output: fmt.Sprintf("failed to read response body: %v", err)}, nil
			}

			contentType := resp.Header.Get("Content-Type")

			if isBinaryHTTPResponse(contentType, rawBody) {
				return tool.ToolResult{Success: true, Output: fmt.Sprintf("status: %s\nelapsed: %dms\n\nContent-Type: %s\nbody: binary content (%d bytes), not shown",
					resp.Status, elapsed.Milliseconds(), contentType, len(rawBody))}, nil
			}

			bodyStr := string(rawBody)
			truncated := false
			if utf8.RuneCountInString(bodyStr) > httpMaxResponseChars {
				runes := []rune(bodyStr)
				bodyStr = string(runes[:httpMaxResponseChars])
				truncated = true
			}

			var sb strings.Builder
			sb.WriteString(fmt.Sprintf("status: %s\n", resp.Status))
			sb.WriteString(fmt.Sprintf("elapsed: %dms\n", elapsed.Milliseconds()))

			var headerLines []string
			for k, vs := range resp.Header {
				if usefulResponseHeaders[http.CanonicalHeaderKey(k)] {
					headerLines = append(headerLines, fmt.Sprintf("  %s: %s", k, strings.Join(vs, ", ")))
				}
			}
			if len(headerLines) > 0 {
				sb.WriteString("\nheaders:\n")
				for _, line := range headerLines {
					sb.WriteString(line + "\n")
				}
			}

			sb.WriteString("\nbody:\n")
			sb.WriteString(bodyStr)
			if truncated {
				sb.WriteString(fmt.Sprintf("\n...[body truncated, %d bytes total]", len(rawBody)))
			}

			return tool.ToolResult{Success: true, Output: sb.String()}, nil
		})
}

// blockInternalHost resolves host to IPs and returns an error if any IP is internal.
func blockInternalHost(host string) error {
	ips, err := net.LookupHost(host)
	if err != nil {
		// Treat unresolvable host as-is (may be a raw IP).
		ips = []string{host}
	}
	for _, ipStr := range ips {
		ip := net.ParseIP(ipStr)
		if ip == nil {
			continue
		}
		if ip.IsLoopback() || ip.IsLinkLocalUnicast() || ip.IsUnspecified() {
			return fmt.Errorf("refusing to access internal address %s (set allowInternal to enable)", host)
		}
		for _, network := range privateNetworks {
			if network.Contains(ip) {
				return fmt.Errorf("refusing to access internal address %s (set allowInternal to enable)", host)
			}
		}
	}
	return nil
}

// isBinaryHTTPResponse returns true for binary content types or non-text bodies.
func isBinaryHTTPResponse(contentType string, body []byte) bool {
	ct := strings.ToLower(contentType)
	for _, prefix := range []string{
		"image/", "audio/", "video/",
		"application/octet-stream", "application/pdf",
		"application/zip", "application/gzip",
		"application/x-tar", "application/x-binary",
	} {
		if strings.HasPrefix(ct, prefix) {
			return true
		}
	}
	if len(body) == 0 {
		return false
	}
	return bytes.IndexByte(body, 0) >= 0 && !utf8.Valid(body)
}
