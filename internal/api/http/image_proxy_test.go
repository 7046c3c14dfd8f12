package apihttp

import (
	"context"
	"net"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"
)

func TestValidateProxyURL(t *testing.T) {
	tests := []struct {
		name    string
		raw     string
		wantErr bool
	}{
		{name: "loopback ip", raw: "http://127.0.0.1/x.jpg", wantErr: true},
		{name: "private ip", raw: "http://10.0.0.5/x.jpg", wantErr: true},
		{name: "link local", raw: "http://169.254.169.254/latest/meta-data", wantErr: true},
		{name: "localhost name", raw: "http://localhost/x.jpg", wantErr: true},
		{name: "dot local suffix", raw: "http://nas.local/x.jpg", wantErr: true},
		{name: "file scheme", raw: "file:///etc/passwd", wantErr: true},
		{name: "ftp scheme", raw: "ftp://img9.doubanio.com/x.jpg", wantErr: true},
		{name: "empty host", raw: "http:///x.jpg", wantErr: true},
		{name: "public ip", raw: "http://93.184.216.34/x.jpg", wantErr: false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			u, err := url.Parse(tt.raw)
			if err != nil {
				t.Fatalf("parse %q: %v", tt.raw, err)
			}
			gotErr := validateProxyURL(context.Background(), u) != nil
			if gotErr != tt.wantErr {
				t.Fatalf("validateProxyURL(%q) error = %v, want error = %v", tt.raw, gotErr, tt.wantErr)
			}
		})
	}
}

func TestIsBlockedIP(t *testing.T) {
	blocked := []string{"127.0.0.1", "10.1.2.3", "192.168.1.1", "172.16.0.9", "169.254.1.1", "0.0.0.0", "::1", "fe80::1"}
	for _, raw := range blocked {
		if !isBlockedIP(net.ParseIP(raw)) {
			t.Errorf("isBlockedIP(%s) = false, want true", raw)
		}
	}
	allowed := []string{"93.184.216.34", "2606:2800:220:1:248:1893:25c8:1946"}
	for _, raw := range allowed {
		if isBlockedIP(net.ParseIP(raw)) {
			t.Errorf("isBlockedIP(%s) = true, want false", raw)
		}
	}
	if !isBlockedIP(nil) {
		t.Error("isBlockedIP(nil) = false, want true")
	}
}

func TestImageProxyRejectsBadRequests(t *testing.T) {
	s := NewServer(&fakeResolver{})

	tests := []struct {
		name   string
		target string
		want   int
	}{
		{name: "missing url", target: "/api/image-proxy", want: http.StatusBadRequest},
		{name: "blocked host", target: "/api/image-proxy?url=" + url.QueryEscape("http://127.0.0.1/x.jpg"), want: http.StatusBadRequest},
		{name: "bad scheme", target: "/api/image-proxy?url=" + url.QueryEscape("file:///etc/passwd"), want: http.StatusBadRequest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, tt.target, nil)
			rec := httptest.NewRecorder()
			s.ServeHTTP(rec, req)
			if rec.Code != tt.want {
				t.Fatalf("status = %d, want %d", rec.Code, tt.want)
			}
		})
	}

	req := httptest.NewRequest(http.MethodPost, "/api/image-proxy?url=http%3A%2F%2Fexample.com%2Fx.jpg", nil)
	rec := httptest.NewRecorder()
	s.ServeHTTP(rec, req)
	if rec.Code != http.StatusMethodNotAllowed {
		t.Fatalf("POST status = %d, want 405", rec.Code)
	}
}
