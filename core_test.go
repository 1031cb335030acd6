package mqttbuf

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mqttbuf/mqttbuf/internal/config"
	"github.com/mqttbuf/mqttbuf/internal/outbound"
)

func TestNewCoreDefaults(t *testing.T) {
	c, err := NewCore()
	require.NoError(t, err)
	assert.Equal(t, 4, c.Config().MaxScatterSegments)
	assert.Equal(t, 1000, c.Config().InitialBufferSize)
	assert.NotNil(t, c.Inbound())
	assert.NotNil(t, c.Outbound())
	assert.NotNil(t, c.Tracer())
}

func TestNewCoreRejectsInvalidConfig(t *testing.T) {
	_, err := NewCore(WithConfig(config.Config{MaxScatterSegments: 1, InitialBufferSize: 10}))
	assert.Error(t, err)
}

func TestCoreCleanupClearsBothBuffers(t *testing.T) {
	c, err := NewCore()
	require.NoError(t, err)

	const socket = 5
	c.Inbound().QueueChar(socket, 0x30)
	require.NoError(t, c.Outbound().PendingWrite(socket, []outbound.Segment{
		{Data: []byte("a")},
		{Data: []byte("b")},
	}, 10, 2, nil))

	assert.Equal(t, 1, c.Outbound().Len())

	c.Cleanup(socket)

	assert.Equal(t, 0, c.Outbound().Len())
	assert.Nil(t, c.Outbound().GetWrite(socket))
	// The default inbound queue is no longer claimed, so another socket
	// may claim it.
	assert.NotPanics(t, func() { c.Inbound().QueueChar(socket+1, 0x30) })
}

func TestCoreCloseClearsOutboundPendingWrites(t *testing.T) {
	c, err := NewCore()
	require.NoError(t, err)

	const socket = 6
	require.NoError(t, c.Outbound().PendingWrite(socket, []outbound.Segment{
		{Data: []byte("a")},
		{Data: []byte("b")},
	}, 10, 2, nil))
	require.Equal(t, 1, c.Outbound().Len())

	assert.NotPanics(t, func() { c.Close() })

	assert.Equal(t, 0, c.Outbound().Len())
	assert.Nil(t, c.Outbound().GetWrite(socket))
}
