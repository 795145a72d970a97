/*
Package bitint holds the small integer helpers used to size FFT windows.

melspec requires the STFT window (n_fft) to be a power of two so gonum's
real FFT runs its radix-2 path. IsPowerOfTwo validates configuration
values and NextPowerOfTwo suggests the nearest valid size when they fail.

The subtraction (size-1) in NextPowerOfTwo keeps exact powers of two
unchanged:

	size=2048 -> size-1=2047 (0b0111_1111_1111) -> bits.Len=11 -> 1<<11 = 2048
	size=2049 -> size-1=2048 (0b1000_0000_0000) -> bits.Len=12 -> 1<<12 = 4096
*/
package bitint

import "math/bits"

// NextPowerOfTwo returns the smallest power of 2 >= size. Values <= 0
// return 1.
//
//	Input  Output
//	512    512
//	1000   1024
//	0      1
func NextPowerOfTwo(size int) int {
	if size <= 0 {
		return 1
	}
	return 1 << bits.Len(uint(size-1))
}

// IsPowerOfTwo reports whether n is a positive power of 2.
func IsPowerOfTwo(n int) bool {
	return n > 0 && (n&(n-1)) == 0
}
