package g2p

// DistributePhones spreads nPhone phonemes over nWord tokens as evenly as
// possible. Each phoneme goes to the currently smallest bucket, lowest index
// first, so DistributePhones(5, 2) is [3 2]. It panics when nWord < 1.
func DistributePhones(nPhone, nWord int) []int {
	if nWord < 1 {
		panic("g2p: DistributePhones needs at least one bucket")
	}

	counts := make([]int, nWord)
	for range nPhone {
		minIdx := 0
		for i := 1; i < nWord; i++ {
			if counts[i] < counts[minIdx] {
				minIdx = i
			}
		}
		counts[minIdx]++
	}

	return counts
}
