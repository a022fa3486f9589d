// Package tlslisten wraps TCP listeners with TLS for the public server.
package tlslisten

import (
	"crypto/tls"
	"fmt"
	"net"
)

// NewListener creates a TLS-wrapped TCP listener from the given certificate
// and key files. TLS 1.3 is the minimum accepted version.
func NewListener(address, certFile, keyFile string) (net.Listener, error) {
	cert, err := tls.LoadX509KeyPair(certFile, keyFile)
	if err != nil {
		return nil, fmt.Errorf("failed to load TLS certificate: %w", err)
	}

	tlsConfig := &tls.Config{
		MinVersion:   tls.VersionTLS13,
		Certificates: []tls.Certificate{cert},
	}

	tcpListener, err := net.Listen("tcp", address)
	if err != nil {
		return nil, fmt.Errorf("failed to create TCP listener: %w", err)
	}

	return tls.NewListener(tcpListener, tlsConfig), nil
}
