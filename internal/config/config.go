// Package config validates and defaults the options a Core is
// constructed with.
package config

import (
	"fmt"

	"github.com/mqttbuf/mqttbuf/internal/constants"
)

// Config is the validated, defaulted set of options a Core is built
// from.
type Config struct {
	// MaxScatterSegments must be >= 4. It is validated and reported by
	// Core.Config; pending writes are bounded by
	// constants.MaxScatterSegments whatever this value is.
	MaxScatterSegments int
	// InitialBufferSize must be positive. It is validated and reported
	// by Core.Config; socket queues are seeded with
	// constants.DefaultInboundBufferSize whatever this value is.
	InitialBufferSize int
}

// DefaultConfig returns the spec-mandated defaults.
func DefaultConfig() Config {
	return Config{
		MaxScatterSegments: constants.MaxScatterSegments,
		InitialBufferSize:  constants.DefaultInboundBufferSize,
	}
}

// Validate checks c against the core's invariants, defaulting any
// zero-valued field first.
func Validate(c Config) (Config, error) {
	if c.MaxScatterSegments == 0 {
		c.MaxScatterSegments = constants.MaxScatterSegments
	}
	if c.InitialBufferSize == 0 {
		c.InitialBufferSize = constants.DefaultInboundBufferSize
	}
	if c.MaxScatterSegments < constants.MaxScatterSegments {
		return c, fmt.Errorf("mqttbuf: config: MaxScatterSegments must be >= %d, got %d",
			constants.MaxScatterSegments, c.MaxScatterSegments)
	}
	if c.InitialBufferSize <= 0 {
		return c, fmt.Errorf("mqttbuf: config: InitialBufferSize must be positive, got %d", c.InitialBufferSize)
	}
	return c, nil
}
