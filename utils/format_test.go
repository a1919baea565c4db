package utils

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFormatThousands(t *testing.T) {
	tests := map[int]string{
		0:        "0",
		999:      "999",
		1000:     "1,000",
		12345:    "12,345",
		1234567:  "1,234,567",
		-6800:    "-6,800",
		100000:   "100,000",
		-1000000: "-1,000,000",
	}
	for in, want := range tests {
		assert.Equal(t, want, FormatThousands(in), "FormatThousands(%d)", in)
	}
}
