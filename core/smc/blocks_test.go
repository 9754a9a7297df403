package smc

import (
	"math/rand/v2"
	"testing"
)

func TestGenerateFreeBlocks_Partition(t *testing.T) {
	tests := []struct {
		name    string
		nFree   int
		nBlocks int
	}{
		{"even split", 12, 3},
		{"remainder absorbed", 10, 3},
		{"awkward ceil case", 4, 3},
		{"single block", 9, 1},
		{"one parameter per block", 7, 7},
		{"uneven five-way", 12, 5},
		{"single parameter", 1, 1},
	}

	rng := rand.New(rand.NewPCG(5, 17))

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			blocks := generateFreeBlocks(rng, tt.nFree, tt.nBlocks)

			if len(blocks) != tt.nBlocks {
				t.Fatalf("got %d blocks, want %d", len(blocks), tt.nBlocks)
			}

			seen := make(map[int]int)
			minSize, maxSize := tt.nFree, 0
			for b, block := range blocks {
				if len(block) == 0 {
					t.Errorf("block %d is empty", b)
				}
				if len(block) < minSize {
					minSize = len(block)
				}
				if len(block) > maxSize {
					maxSize = len(block)
				}
				for _, idx := range block {
					seen[idx]++
				}
			}

			if len(seen) != tt.nFree {
				t.Errorf("partition covers %d indices, want %d", len(seen), tt.nFree)
			}
			for idx, count := range seen {
				if idx < 0 || idx >= tt.nFree {
					t.Errorf("index %d out of range [0, %d)", idx, tt.nFree)
				}
				if count != 1 {
					t.Errorf("index %d appears %d times", idx, count)
				}
			}
			if maxSize-minSize > 1 {
				t.Errorf("block sizes differ by %d, want at most 1", maxSize-minSize)
			}
		})
	}
}

func TestGenerateFreeBlocks_Randomized(t *testing.T) {
	// Two sweeps over the same dimensions should (overwhelmingly) produce
	// different permutations.
	rng := rand.New(rand.NewPCG(1, 1))
	a := generateFreeBlocks(rng, 50, 5)
	b := generateFreeBlocks(rng, 50, 5)

	same := true
	for i := range a {
		for j := range a[i] {
			if a[i][j] != b[i][j] {
				same = false
			}
		}
	}
	if same {
		t.Error("consecutive partitions are identical; permutation not applied")
	}
}

func TestRemapBlocks(t *testing.T) {
	freeInds := []int{1, 3, 4, 7, 9}
	freeBlocks := [][]int{{2, 0}, {4, 1, 3}}

	all := remapBlocks(freeBlocks, freeInds)

	want := [][]int{{4, 1}, {9, 3, 7}}
	for b := range want {
		for j := range want[b] {
			if all[b][j] != want[b][j] {
				t.Errorf("block %d position %d = %d, want %d", b, j, all[b][j], want[b][j])
			}
		}
	}
}
