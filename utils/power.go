package utils

func NextPowerOfTwo(x int) int {
	padk := 0
	for x > (1 << padk) {
		padk++
	}
	return 1 << padk
}

// Log2Ceil returns the number of variables of a table padded to hold x
// entries. Log2Ceil(0) and Log2Ceil(1) are both 0.
func Log2Ceil(x int) int {
	n := 0
	for x > (1 << n) {
		n++
	}
	return n
}

func IsPowerOfTwo(x int) bool {
	return x > 0 && x&(x-1) == 0
}
