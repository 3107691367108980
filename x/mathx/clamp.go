package mathx

import "golang.org/x/exp/constraints"

// Min returns the smaller of a and b.
func Min[T constraints.Ordered](a, b T) T {
	if a < b {
		return a
	}
	return b
}

// MulSat returns a*b, saturating at max instead of wrapping.
func MulSat[T constraints.Unsigned](a, b, max T) T {
	if a == 0 || b == 0 {
		return 0
	}
	if a > max/b {
		return max
	}
	return Min(a*b, max)
}
