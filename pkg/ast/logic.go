package ast

import (
	"math/big"
	"strings"
)

// Logic is a single four-valued bit.
type Logic uint8

const (
	L0 Logic = iota
	L1
	LX
	LZ
)

func (l Logic) String() string {
	switch l {
	case L0:
		return "0"
	case L1:
		return "1"
	case LZ:
		return "z"
	default:
		return "x"
	}
}

// SVInt is a fixed-width four-valued integer, bits stored LSB first.
type SVInt struct {
	Bits   []Logic
	Signed bool
}

// MakeSVInt builds a fully-defined SVInt of the given width from value,
// truncating to width bits (two's complement).
func MakeSVInt(width int, value int64, signed bool) SVInt {
	bits := make([]Logic, width)
	for i := 0; i < width; i++ {
		if (value>>uint(i%64))&1 != 0 && i < 64 {
			bits[i] = L1
		} else if i >= 64 && value < 0 {
			bits[i] = L1
		}
	}
	return SVInt{Bits: bits, Signed: signed}
}

// MakeAllX builds a width-wide all-undefined SVInt.
func MakeAllX(width int) SVInt {
	bits := make([]Logic, width)
	for i := range bits {
		bits[i] = LX
	}
	return SVInt{Bits: bits}
}

func (v SVInt) Width() int { return len(v.Bits) }

// IsFullyDefined reports whether no bit is X or Z.
func (v SVInt) IsFullyDefined() bool {
	for _, b := range v.Bits {
		if b != L0 && b != L1 {
			return false
		}
	}
	return true
}

// AsBig converts a fully-defined SVInt to a big.Int honoring the sign flag.
// The second return is false when any bit is undefined.
func (v SVInt) AsBig() (*big.Int, bool) {
	if !v.IsFullyDefined() {
		return nil, false
	}
	ret := new(big.Int)
	for i := len(v.Bits) - 1; i >= 0; i-- {
		ret.Lsh(ret, 1)
		if v.Bits[i] == L1 {
			ret.Or(ret, big.NewInt(1))
		}
	}
	if v.Signed && len(v.Bits) > 0 && v.Bits[len(v.Bits)-1] == L1 {
		mod := new(big.Int).Lsh(big.NewInt(1), uint(len(v.Bits)))
		ret.Sub(ret, mod)
	}
	return ret, true
}

// AsInt64 returns the value as int64 when fully defined and in range.
func (v SVInt) AsInt64() (int64, bool) {
	b, ok := v.AsBig()
	if !ok || !b.IsInt64() {
		return 0, false
	}
	return b.Int64(), true
}

// FromBig truncates or sign-extends value into a width-wide SVInt.
func FromBig(value *big.Int, width int, signed bool) SVInt {
	mod := new(big.Int).Lsh(big.NewInt(1), uint(width))
	norm := new(big.Int).Mod(value, mod)
	if norm.Sign() < 0 {
		norm.Add(norm, mod)
	}
	bits := make([]Logic, width)
	for i := 0; i < width; i++ {
		if norm.Bit(i) == 1 {
			bits[i] = L1
		}
	}
	return SVInt{Bits: bits, Signed: signed}
}

// Extend returns the value zero- or sign-extended (or truncated) to width.
func (v SVInt) Extend(width int, signed bool) SVInt {
	bits := make([]Logic, width)
	var fill Logic
	if signed && len(v.Bits) > 0 {
		fill = v.Bits[len(v.Bits)-1]
		if fill == LZ {
			fill = LX
		}
	}
	for i := 0; i < width; i++ {
		if i < len(v.Bits) {
			bits[i] = v.Bits[i]
		} else {
			bits[i] = fill
		}
	}
	return SVInt{Bits: bits, Signed: v.Signed}
}

// ParseBits parses a binary literal string, MSB first, made of 01xz.
func ParseBits(s string, signed bool) SVInt {
	s = strings.TrimSpace(s)
	bits := make([]Logic, 0, len(s))
	for i := len(s) - 1; i >= 0; i-- {
		switch s[i] {
		case '0':
			bits = append(bits, L0)
		case '1':
			bits = append(bits, L1)
		case 'z', 'Z':
			bits = append(bits, LZ)
		default:
			bits = append(bits, LX)
		}
	}
	return SVInt{Bits: bits, Signed: signed}
}

func (v SVInt) String() string {
	var sb strings.Builder
	for i := len(v.Bits) - 1; i >= 0; i-- {
		sb.WriteString(v.Bits[i].String())
	}
	return sb.String()
}
