package mqttbuf

import "github.com/mqttbuf/mqttbuf/internal/constants"

// Re-export constants for public API
const (
	MaxStackDepth            = constants.MaxStackDepth
	MaxFunctionNameLength    = constants.MaxFunctionNameLength
	MaxThreads               = constants.MaxThreads
	DefaultInboundBufferSize = constants.DefaultInboundBufferSize
	FixedHeaderSize          = constants.FixedHeaderSize
	MaxScatterSegments       = constants.MaxScatterSegments
	NoSocket                 = constants.NoSocket
)
