package bufpool

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestGetReturnsRequestedLength(t *testing.T) {
	tests := []struct {
		name string
		size int
	}{
		{"tiny", 10},
		{"exact 2k", Size2K},
		{"between 2k and 8k", Size2K + 1},
		{"exact 8k", Size8K},
		{"exact 32k", Size32K},
		{"exact 128k", Size128K},
		{"above 128k", Size128K + 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			buf := Get(tt.size)
			assert.Len(t, buf, tt.size)
			Put(buf)
		})
	}
}

func TestRoundTripThroughPool(t *testing.T) {
	buf := Get(Size8K)
	buf[0] = 0xAB
	Put(buf)

	again := Get(Size8K)
	assert.Len(t, again, Size8K)
}

func BenchmarkGetPut2K(b *testing.B) {
	for i := 0; i < b.N; i++ {
		buf := Get(Size2K)
		Put(buf)
	}
}

func BenchmarkGetPutOverflow(b *testing.B) {
	for i := 0; i < b.N; i++ {
		buf := Get(Size128K + 1)
		Put(buf)
	}
}
