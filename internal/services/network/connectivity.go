package network

import (
	"context"
	"net"
	"time"

	"github.com/sirupsen/logrus"
)

// Probe decides whether the network is reachable by opening a TCP
// connection to a well-known host
type Probe struct {
	address string
	timeout time.Duration
	logger  *logrus.Logger
}

// NewProbe creates a probe dialing address (host:port)
func NewProbe(address string, logger *logrus.Logger) *Probe {
	return &Probe{
		address: address,
		timeout: 3 * time.Second,
		logger:  logger,
	}
}

// IsConnected reports whether the probe address accepts connections now
func (p *Probe) IsConnected(ctx context.Context) bool {
	dialer := net.Dialer{Timeout: p.timeout}
	conn, err := dialer.DialContext(ctx, "tcp", p.address)
	if err != nil {
		p.logger.WithError(err).WithField("address", p.address).Debug("Network unreachable")
		return false
	}
	conn.Close()
	return true
}
