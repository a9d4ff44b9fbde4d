package slcan

import "math/big"

// ExtractBits reads a bitLength wide unsigned field out of dataHex, which is
// treated as one big-endian integer of len(hex)*4 bits. bitOffset counts from
// the most significant bit, so offset 0 with length 8 is the first data byte.
// Whitespace in dataHex is ignored.
//
// Empty or non-hex data, a non-positive length and a field reaching past the
// data all yield 0. Fields wider than 64 bits return their low 64 bits.
func ExtractBits(dataHex string, bitOffset, bitLength int) uint64 {
	h := StripSpace(dataHex)
	if !IsHex(h) || bitOffset < 0 || bitLength <= 0 {
		return 0
	}

	total := len(h) * 4
	shift := total - bitOffset - bitLength
	if shift < 0 {
		return 0
	}

	v, ok := new(big.Int).SetString(h, 16)
	if !ok {
		return 0
	}
	mask := new(big.Int).Sub(new(big.Int).Lsh(big.NewInt(1), uint(bitLength)), big.NewInt(1))
	return v.Rsh(v, uint(shift)).And(v, mask).Uint64()
}
