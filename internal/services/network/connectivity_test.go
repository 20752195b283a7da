package network

import (
	"context"
	"net"
	"testing"

	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestProbe(t *testing.T) {
	logger, _ := test.NewNullLogger()

	listener, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	address := listener.Addr().String()

	assert.True(t, NewProbe(address, logger).IsConnected(context.Background()))

	require.NoError(t, listener.Close())
	assert.False(t, NewProbe(address, logger).IsConnected(context.Background()))
}
