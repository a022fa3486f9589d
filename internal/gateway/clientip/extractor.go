package clientip

import (
	"net"
	"strings"

	"github.com/valyala/fasthttp"
)

// Extract resolves the client address for a request. Configured headers are
// checked in order and the first populated one wins; comma-separated values
// (X-Forwarded-For style) yield their leftmost hop. When no header applies,
// the connection's remote address is used.
//
// The result keys rate limiting and audit events, so IPv6 forms are
// canonicalized to keep one client under one key.
func Extract(ctx *fasthttp.RequestCtx, headers []string) string {
	for _, name := range headers {
		if ip := fromHeader(ctx.Request.Header.Peek(name)); ip != "" {
			return ip
		}
	}
	return fromRemoteAddr(ctx.RemoteAddr().String())
}

// fromHeader extracts the leftmost hop of a header value
func fromHeader(raw []byte) string {
	value := strings.TrimSpace(string(raw))
	if value == "" {
		return ""
	}
	if idx := strings.IndexByte(value, ','); idx >= 0 {
		value = strings.TrimSpace(value[:idx])
	}
	if value == "" {
		return ""
	}
	return canonical(value)
}

// fromRemoteAddr strips the port from a host:port remote address
func fromRemoteAddr(addr string) string {
	host, _, err := net.SplitHostPort(addr)
	if err != nil {
		return canonical(addr)
	}
	return canonical(host)
}

// canonical normalizes textual IPs: brackets and zone identifiers stripped,
// IPv6 shortened, IPv4-mapped IPv6 collapsed. Unparseable input passes
// through unchanged so consumers can still log what the proxy sent.
func canonical(raw string) string {
	raw = strings.TrimPrefix(raw, "[")
	raw = strings.TrimSuffix(raw, "]")
	if idx := strings.IndexByte(raw, '%'); idx >= 0 {
		raw = raw[:idx]
	}
	if ip := net.ParseIP(raw); ip != nil {
		return ip.String()
	}
	return raw
}
