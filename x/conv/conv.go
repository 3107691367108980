// Package conv formats integers into caller-owned buffers without fmt or
// strconv. Safe to call with interrupts masked; nothing allocates unless dst
// has to grow.
package conv

const hexDigits = "0123456789ABCDEF"

// AppendUint appends the base-10 form of n to dst.
func AppendUint(dst []byte, n uint64) []byte {
	var tmp [20]byte
	i := len(tmp)
	for {
		i--
		tmp[i] = byte('0' + n%10)
		n /= 10
		if n == 0 {
			break
		}
	}
	return append(dst, tmp[i:]...)
}

// AppendHex appends n as uppercase hex, zero-padded to width digits
// (at most 16). No 0x prefix.
func AppendHex(dst []byte, n uint64, width int) []byte {
	if width < 1 {
		width = 1
	}
	if width > 16 {
		width = 16
	}
	var tmp [16]byte
	i := len(tmp)
	for j := 0; j < width || n != 0; j++ {
		if i == 0 {
			break
		}
		i--
		tmp[i] = hexDigits[n&0xF]
		n >>= 4
	}
	return append(dst, tmp[i:]...)
}
