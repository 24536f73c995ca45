package dsp

import "fmt"

// CorrelateLen reports the output length of a full linear cross-correlation
// of sequences with the given lengths.
func CorrelateLen(receiveLen, kernelLen int) int {
	return receiveLen + kernelLen - 1
}

// Correlate computes the full linear cross-correlation of receive against
// kernel. The output has length len(receive)+len(kernel)−1; entry n holds
// the overlap at lag n−(len(kernel)−1), so leading entries cover partial
// overlaps.
func Correlate(receive, kernel []float64) ([]float64, error) {
	if len(receive) == 0 || len(kernel) == 0 {
		return nil, fmt.Errorf("correlate: empty input: %w", ErrInvalidArgument)
	}
	dst := make([]float64, CorrelateLen(len(receive), len(kernel)))
	correlateInto(dst, receive, kernel)
	return dst, nil
}

// CorrelateInto is the allocation-free variant used on the per-cycle hot
// path. dst must have length len(receive)+len(kernel)−1 and is fully
// overwritten.
func CorrelateInto(dst, receive, kernel []float64) error {
	if len(receive) == 0 || len(kernel) == 0 {
		return fmt.Errorf("correlate: empty input: %w", ErrInvalidArgument)
	}
	if len(dst) != CorrelateLen(len(receive), len(kernel)) {
		return fmt.Errorf("correlate: dst length %d, want %d: %w",
			len(dst), CorrelateLen(len(receive), len(kernel)), ErrInvalidArgument)
	}
	correlateInto(dst, receive, kernel)
	return nil
}

func correlateInto(dst, receive, kernel []float64) {
	n := len(receive)
	m := len(kernel)
	for lag := range dst {
		// receive index of kernel[0] at this lag.
		base := lag - (m - 1)

		k0 := 0
		if base < 0 {
			k0 = -base
		}
		k1 := m
		if base+m > n {
			k1 = n - base
		}

		var acc float64
		for k := k0; k < k1; k++ {
			acc += receive[base+k] * kernel[k]
		}
		dst[lag] = acc
	}
}
