package cpu

import "math"

const nanBoxUpper = 0xffffffff00000000

// getF32 reads register i as a float32, canonicalizing an improperly
// boxed value to the quiet NaN (spec §4.7: "violated inputs canonicalize
// to a quiet NaN").
func (c *CPU) getF32(i uint32) float32 {
	v := c.F[i]
	if v&nanBoxUpper != nanBoxUpper {
		return float32(math.NaN())
	}
	return math.Float32frombits(uint32(v))
}

// setF32 NaN-boxes f into register i (spec §8 invariant).
func (c *CPU) setF32(i uint32, f float32) {
	c.F[i] = nanBoxUpper | uint64(math.Float32bits(f))
}

func (c *CPU) getF64(i uint32) float64 {
	return math.Float64frombits(c.F[i])
}

func (c *CPU) setF64(i uint32, f float64) {
	c.F[i] = math.Float64bits(f)
}

func isNaN32(f float32) bool { return f != f }
func isNaN64(f float64) bool { return f != f }

func fminF32(a, b float32) float32 {
	if isNaN32(a) && isNaN32(b) {
		return float32(math.NaN())
	}
	if isNaN32(a) {
		return b
	}
	if isNaN32(b) {
		return a
	}
	if a == 0 && b == 0 {
		if math.Signbit(float64(a)) {
			return a
		}
		return b
	}
	return float32(math.Min(float64(a), float64(b)))
}

func fmaxF32(a, b float32) float32 {
	if isNaN32(a) && isNaN32(b) {
		return float32(math.NaN())
	}
	if isNaN32(a) {
		return b
	}
	if isNaN32(b) {
		return a
	}
	if a == 0 && b == 0 {
		if math.Signbit(float64(a)) {
			return b
		}
		return a
	}
	return float32(math.Max(float64(a), float64(b)))
}

func fminF64(a, b float64) float64 {
	if isNaN64(a) && isNaN64(b) {
		return math.NaN()
	}
	if isNaN64(a) {
		return b
	}
	if isNaN64(b) {
		return a
	}
	if a == 0 && b == 0 {
		if math.Signbit(a) {
			return a
		}
		return b
	}
	return math.Min(a, b)
}

func fmaxF64(a, b float64) float64 {
	if isNaN64(a) && isNaN64(b) {
		return math.NaN()
	}
	if isNaN64(a) {
		return b
	}
	if isNaN64(b) {
		return a
	}
	if a == 0 && b == 0 {
		if math.Signbit(a) {
			return b
		}
		return a
	}
	return math.Max(a, b)
}

// fclass32 computes the fclass.s bit vector (spec §4.7: "classifications").
func fclass32(f float32) uint64 {
	bits := math.Float32bits(f)
	sign := bits>>31 != 0
	exp := (bits >> 23) & 0xff
	mant := bits & 0x7fffff

	switch {
	case exp == 0xff && mant != 0:
		if bits&(1<<22) != 0 {
			return 1 << 9 // quiet NaN
		}
		return 1 << 8 // signaling NaN
	case exp == 0xff:
		if sign {
			return 1 << 0
		}
		return 1 << 7
	case exp == 0 && mant == 0:
		if sign {
			return 1 << 3
		}
		return 1 << 4
	case exp == 0:
		if sign {
			return 1 << 2
		}
		return 1 << 5
	default:
		if sign {
			return 1 << 1
		}
		return 1 << 6
	}
}

func fclass64(f float64) uint64 {
	bits := math.Float64bits(f)
	sign := bits>>63 != 0
	exp := (bits >> 52) & 0x7ff
	mant := bits & 0xfffffffffffff

	switch {
	case exp == 0x7ff && mant != 0:
		if bits&(1<<51) != 0 {
			return 1 << 9
		}
		return 1 << 8
	case exp == 0x7ff:
		if sign {
			return 1 << 0
		}
		return 1 << 7
	case exp == 0 && mant == 0:
		if sign {
			return 1 << 3
		}
		return 1 << 4
	case exp == 0:
		if sign {
			return 1 << 2
		}
		return 1 << 5
	default:
		if sign {
			return 1 << 1
		}
		return 1 << 6
	}
}
