package slcan_test

import (
	"testing"

	"github.com/gavinwade12/canLogger/protocols/slcan"
)

func TestExtractBits(t *testing.T) {
	tests := []struct {
		name           string
		data           string
		offset, length int
		want           uint64
	}{
		{"first byte", "FF00", 0, 8, 0xFF},
		{"second byte", "FF00", 8, 8, 0x00},
		{"spaced data", "12 34 56", 8, 8, 0x34},
		{"nibble", "A5", 4, 4, 0x5},
		{"single bit set", "80", 0, 1, 1},
		{"single bit clear", "80", 1, 1, 0},
		{"straddling bytes", "0FF0", 4, 8, 0xFF},
		{"whole frame", "0102030405060708", 0, 64, 0x0102030405060708},
		{"empty data", "", 0, 8, 0},
		{"not hex", "GG", 0, 8, 0},
		{"past the end", "FF", 4, 8, 0},
		{"zero length", "FF", 0, 0, 0},
		{"negative offset", "FF", -1, 4, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := slcan.ExtractBits(tt.data, tt.offset, tt.length); got != tt.want {
				t.Errorf("ExtractBits(%q, %d, %d) = %#x, want %#x", tt.data, tt.offset, tt.length, got, tt.want)
			}
		})
	}
}
