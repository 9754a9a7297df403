package smc

import (
	"math/rand/v2"
)

// generateFreeBlocks partitions the free-parameter indices {0,...,nFree-1}
// into nBlocks disjoint, non-empty subsets after a random permutation.
// Block sizes differ by at most one; trailing blocks absorb the remainder.
// Blocks are regenerated on every mutation sweep: a fixed partition would
// bias the chain toward whatever correlation structure it happens to cut.
func generateFreeBlocks(rng *rand.Rand, nFree, nBlocks int) [][]int {
	perm := rng.Perm(nFree)
	base := nFree / nBlocks
	rem := nFree % nBlocks

	blocks := make([][]int, 0, nBlocks)
	start := 0
	for b := 0; b < nBlocks; b++ {
		size := base
		if b >= nBlocks-rem {
			size++
		}
		blocks = append(blocks, perm[start:start+size])
		start += size
	}
	return blocks
}

// remapBlocks translates each block of free-local indices into full
// parameter-vector indices via the freeInds lookup.
func remapBlocks(freeBlocks [][]int, freeInds []int) [][]int {
	all := make([][]int, len(freeBlocks))
	for b, block := range freeBlocks {
		all[b] = make([]int, len(block))
		for j, idx := range block {
			all[b][j] = freeInds[idx]
		}
	}
	return all
}
