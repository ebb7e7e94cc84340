package resolver

import "math"

// maxCount is the saturation bound for every item count.
const maxCount = math.MaxUint32

func addSat(a, b uint32) uint32 {
	s := a + b
	if s < a {
		return maxCount
	}
	return s
}

func subSat(a, b uint32) uint32 {
	if b >= a {
		return 0
	}
	return a - b
}

func mulSat(a, b uint32) uint32 {
	p := uint64(a) * uint64(b)
	if p > maxCount {
		return maxCount
	}
	return uint32(p)
}

// ceilDiv rounds up. A zero divisor yields zero.
func ceilDiv(a, b uint32) uint32 {
	if b == 0 {
		return 0
	}
	return uint32((uint64(a) + uint64(b) - 1) / uint64(b))
}
