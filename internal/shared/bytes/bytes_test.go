package bytes

import (
	"testing"

	"github.com/stretchr/testify/require"
)

// TestFmtMem renders sizes with their two leading units.
func TestFmtMem(t *testing.T) {
	tests := []struct {
		in   int64
		want string
	}{
		{0, "0B"},
		{512, "512B"},
		{1536, "1KB 512B"},
		{10*MB + 512*KB, "10MB 512KB"},
		{2*GB + 100*MB, "2GB 100MB"},
		{TB, "1TB 0GB"},
		{-3 * KB, "-3KB 0B"},
	}
	for _, tt := range tests {
		require.Equal(t, tt.want, FmtMem(tt.in))
	}
}
