package ctypes

import (
	"math"
	"math/bits"
	"runtime"
	"unsafe"
)

type longDoubleFormat uint8

const (
	ldDouble   longDoubleFormat = iota // long double == double
	ldX87                              // 80-bit extended, 16-byte slot
	ldBinary128                        // IEEE quad
)

func longDoubleFormatFor(size uintptr) longDoubleFormat {
	if size <= 8 {
		return ldDouble
	}
	switch runtime.GOARCH {
	case "amd64", "386":
		return ldX87
	}
	return ldBinary128
}

func putLongDouble(dst unsafe.Pointer, size uintptr, f float64) {
	switch longDoubleFormatFor(size) {
	case ldDouble:
		*(*float64)(dst) = f
	case ldX87:
		lo, hi := float64ToX87(f)
		*(*uint64)(dst) = lo
		*(*uint64)(unsafe.Add(dst, 8)) = uint64(hi)
	case ldBinary128:
		lo, hi := float64ToQuad(f)
		*(*uint64)(dst) = lo
		*(*uint64)(unsafe.Add(dst, 8)) = hi
	}
}

func getLongDouble(src unsafe.Pointer, size uintptr) float64 {
	switch longDoubleFormatFor(size) {
	case ldX87:
		return x87ToFloat64(*(*uint64)(src), uint16(*(*uint64)(unsafe.Add(src, 8))))
	case ldBinary128:
		return quadToFloat64(*(*uint64)(src), *(*uint64)(unsafe.Add(src, 8)))
	}
	return *(*float64)(src)
}

const (
	f64FracBits = 52
	f64Bias     = 1023
	extBias     = 16383
	extExpMask  = 0x7fff
)

// float64ToX87 returns the 64-bit significand (explicit integer bit) and the
// sign/exponent word of the x87 extended encoding of f.
func float64ToX87(f float64) (uint64, uint16) {
	b := math.Float64bits(f)
	sign := uint16(b>>63) << 15
	exp := int(b>>f64FracBits) & 0x7ff
	frac := b & (1<<f64FracBits - 1)

	switch {
	case exp == 0x7ff && frac == 0:
		return 1 << 63, sign | extExpMask
	case exp == 0x7ff:
		return 1<<63 | 1<<62 | frac<<11, sign | extExpMask
	case exp == 0 && frac == 0:
		return 0, sign
	case exp == 0:
		shift := bits.LeadingZeros64(frac)
		return frac << shift, sign | uint16(extBias-1074+63-shift)
	}
	return 1<<63 | frac<<11, sign | uint16(exp-f64Bias+extBias)
}

func x87ToFloat64(sig uint64, se uint16) float64 {
	neg := se&0x8000 != 0
	exp := int(se & extExpMask)
	var f float64
	switch {
	case exp == extExpMask && sig<<1 == 0:
		f = math.Inf(1)
	case exp == extExpMask:
		f = math.NaN()
	case sig == 0:
		f = 0
	default:
		f = math.Ldexp(float64(sig), exp-extBias-63)
	}
	if neg {
		f = math.Copysign(f, -1)
	}
	return f
}

// float64ToQuad returns the low and high words of the binary128 encoding.
func float64ToQuad(f float64) (uint64, uint64) {
	b := math.Float64bits(f)
	sign := b >> 63 << 63
	exp := int(b>>f64FracBits) & 0x7ff
	frac := b & (1<<f64FracBits - 1)

	var qexp uint64
	switch {
	case exp == 0x7ff:
		qexp = extExpMask
	case exp == 0 && frac == 0:
		return 0, sign
	case exp == 0:
		shift := bits.LeadingZeros64(frac) - 11
		frac = frac << shift & (1<<f64FracBits - 1)
		qexp = uint64(1 - f64Bias - shift + extBias)
	default:
		qexp = uint64(exp - f64Bias + extBias)
	}
	// 52 fraction bits sit at the top of the 112-bit quad fraction.
	return frac << 60, sign | qexp<<48 | frac>>4
}

func quadToFloat64(lo, hi uint64) float64 {
	neg := hi>>63 != 0
	exp := int(hi>>48) & extExpMask
	fracHi := hi & (1<<48 - 1)
	var f float64
	switch {
	case exp == extExpMask && fracHi == 0 && lo == 0:
		f = math.Inf(1)
	case exp == extExpMask:
		f = math.NaN()
	case exp == 0:
		// quad subnormals are far below the float64 range
		f = 0
	default:
		sig := 1<<52 | fracHi<<4 | lo>>60
		f = math.Ldexp(float64(sig), exp-extBias-52)
	}
	if neg {
		f = math.Copysign(f, -1)
	}
	return f
}
