package network

import (
	"context"
	"fmt"
	"net"
	"time"
)

// DialerConfig holds the TCP level settings shared by every outbound
// connection the CLI makes (axe CDN download, cloud ingestion).
type DialerConfig struct {
	Timeout      time.Duration
	KeepAlive    time.Duration
	ForceNoDelay bool
	// Resolver overrides the system resolver. Nil uses net.DefaultResolver.
	Resolver *net.Resolver
}

// NewDialerConfig returns conservative dial defaults.
func NewDialerConfig() *DialerConfig {
	return &DialerConfig{
		Timeout:   10 * time.Second,
		KeepAlive: 30 * time.Second,
	}
}

// DialTCPContext opens a TCP connection honoring both ctx and the configured
// timeout. A nil config uses NewDialerConfig.
func DialTCPContext(ctx context.Context, network, addr string, config *DialerConfig) (net.Conn, error) {
	if config == nil {
		config = NewDialerConfig()
	}

	dialer := &net.Dialer{
		Timeout:   config.Timeout,
		KeepAlive: config.KeepAlive,
		Resolver:  config.Resolver,
	}

	conn, err := dialer.DialContext(ctx, network, addr)
	if err != nil {
		return nil, fmt.Errorf("tcp dial failed for %s: %w", addr, err)
	}

	if tcpConn, ok := conn.(*net.TCPConn); ok && config.ForceNoDelay {
		if err := tcpConn.SetNoDelay(true); err != nil {
			conn.Close()
			return nil, fmt.Errorf("failed to set TCP_NODELAY for %s: %w", addr, err)
		}
	}
	return conn, nil
}
