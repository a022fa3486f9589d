package clientip

import (
	"net"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/valyala/fasthttp"
)

func buildCtx(remoteAddr string, reqHeaders map[string]string) *fasthttp.RequestCtx {
	ctx := &fasthttp.RequestCtx{}
	addr, _ := net.ResolveTCPAddr("tcp", remoteAddr)
	ctx.SetRemoteAddr(addr)
	for key, value := range reqHeaders {
		ctx.Request.Header.Set(key, value)
	}
	return ctx
}

func TestExtract_HeaderOrder(t *testing.T) {
	tests := []struct {
		name       string
		headers    []string
		reqHeaders map[string]string
		want       string
	}{
		{
			name:       "configured header present",
			headers:    []string{"X-Real-IP"},
			reqHeaders: map[string]string{"X-Real-IP": "203.0.113.50"},
			want:       "203.0.113.50",
		},
		{
			name:       "first configured header wins over second",
			headers:    []string{"CF-Connecting-IP", "X-Forwarded-For"},
			reqHeaders: map[string]string{"CF-Connecting-IP": "203.0.113.50", "X-Forwarded-For": "198.51.100.7"},
			want:       "203.0.113.50",
		},
		{
			name:       "absent first header falls to second",
			headers:    []string{"CF-Connecting-IP", "X-Forwarded-For"},
			reqHeaders: map[string]string{"X-Forwarded-For": "198.51.100.7"},
			want:       "198.51.100.7",
		},
		{
			name:       "whitespace-only header is skipped",
			headers:    []string{"X-Real-IP", "X-Forwarded-For"},
			reqHeaders: map[string]string{"X-Real-IP": "   ", "X-Forwarded-For": "198.51.100.7"},
			want:       "198.51.100.7",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctx := buildCtx("192.0.2.1:44321", tt.reqHeaders)
			assert.Equal(t, tt.want, Extract(ctx, tt.headers))
		})
	}
}

func TestExtract_ForwardedChains(t *testing.T) {
	tests := []struct {
		name  string
		value string
		want  string
	}{
		{"leftmost hop of a chain", "203.0.113.50, 70.41.3.18, 150.172.238.178", "203.0.113.50"},
		{"single hop with padding", " 203.0.113.50 ", "203.0.113.50"},
		{"unknown token passes through", "unknown", "unknown"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctx := buildCtx("192.0.2.1:44321", map[string]string{"X-Forwarded-For": tt.value})
			assert.Equal(t, tt.want, Extract(ctx, []string{"X-Forwarded-For"}))
		})
	}

	t.Run("empty leftmost segment falls back to remote address", func(t *testing.T) {
		ctx := buildCtx("192.0.2.1:44321", map[string]string{"X-Forwarded-For": " , 198.51.100.7"})
		assert.Equal(t, "192.0.2.1", Extract(ctx, []string{"X-Forwarded-For"}))
	})
}

func TestExtract_RemoteAddrFallback(t *testing.T) {
	t.Run("no headers configured", func(t *testing.T) {
		ctx := buildCtx("192.168.1.100:54321", map[string]string{"X-Real-IP": "203.0.113.50"})
		assert.Equal(t, "192.168.1.100", Extract(ctx, nil))
	})

	t.Run("configured headers all absent", func(t *testing.T) {
		ctx := buildCtx("192.168.1.100:54321", nil)
		assert.Equal(t, "192.168.1.100", Extract(ctx, []string{"X-Real-IP", "X-Forwarded-For"}))
	})

	t.Run("IPv6 remote address", func(t *testing.T) {
		ctx := buildCtx("[::1]:8080", nil)
		assert.Equal(t, "::1", Extract(ctx, nil))
	})
}

func TestExtract_Canonicalization(t *testing.T) {
	tests := []struct {
		name  string
		value string
		want  string
	}{
		{"IPv6 shorthand", "::1", "::1"},
		{"bracketed IPv6", "[2001:db8::1]", "2001:db8::1"},
		{"zone identifier stripped", "fe80::1%eth0", "fe80::1"},
		{"IPv4-mapped IPv6 collapses", "::ffff:192.168.1.1", "192.168.1.1"},
		{"uppercase IPv6 lowered", "2001:DB8::A", "2001:db8::a"},
		{"unparseable input unchanged", "not-an-ip", "not-an-ip"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctx := buildCtx("192.0.2.1:44321", map[string]string{"X-Real-IP": tt.value})
			assert.Equal(t, tt.want, Extract(ctx, []string{"X-Real-IP"}))
		})
	}
}
