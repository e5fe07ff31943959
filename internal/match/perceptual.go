package match

import (
	"duplifind/internal/lsh"
	"duplifind/internal/models"
)

// lshAutoThreshold matches a reference implementation's LSH_AUTO_THRESHOLD /
// the collection-size auto-select boundary for switching from
// brute-force to LSH candidate search.
const lshAutoThreshold = 5000

// HammingDistance counts the differing bits between two 64-bit hashes,
// via the standard Brian Kernighan popcount loop.
func HammingDistance(a, b uint64) int {
	xor := a ^ b
	count := 0
	for xor != 0 {
		count++
		xor &= xor - 1
	}
	return count
}

// Perceptual implements C8: group records whose perceptual hashes are
// within threshold Hamming distance of one another, transitively.
//
// Dispatches between brute-force all-pairs comparison and an LSH
// candidate search depending on collection size and the requested
// LSHMode (AUTO/FORCE_ON/FORCE_OFF).
func Perceptual(records []*models.ImageRecord, threshold int, exclude map[string]struct{}, mode models.LSHMode) []*models.DuplicateGroup {
	candidates := make([]*models.ImageRecord, 0, len(records))
	for _, r := range records {
		if !r.HasPerceptualHash {
			continue
		}
		if _, excluded := exclude[r.Path]; excluded {
			continue
		}
		candidates = append(candidates, r)
	}
	if len(candidates) < 2 {
		return nil
	}

	useLSH := mode == models.LSHForceOn || (mode == models.LSHAuto && len(candidates) >= lshAutoThreshold)

	uf := newUnionFind(len(candidates))
	if useLSH {
		unionViaLSH(candidates, threshold, uf)
	} else {
		unionViaBruteForce(candidates, threshold, uf)
	}

	byRoot := make(map[int][]*models.ImageRecord)
	for i, r := range candidates {
		root := uf.find(i)
		byRoot[root] = append(byRoot[root], r)
	}

	return finalizeGroups(models.GroupPerceptual, byRoot)
}

func unionViaBruteForce(candidates []*models.ImageRecord, threshold int, uf *unionFind) {
	for i := 0; i < len(candidates); i++ {
		for j := i + 1; j < len(candidates); j++ {
			if HammingDistance(candidates[i].PerceptualHash, candidates[j].PerceptualHash) <= threshold {
				uf.union(i, j)
			}
		}
	}
}

// unionViaLSH builds an LSH index over every candidate's hash, then for
// each record queries its candidate set and verifies the actual Hamming
// distance before unioning — each unordered pair is considered at most
// once because only j > i are tested.
func unionViaLSH(candidates []*models.ImageRecord, threshold int, uf *unionFind) {
	numTables, bitsPerTable := lsh.ParamsFor(len(candidates), threshold)
	index := lsh.New(numTables, bitsPerTable)

	hashes := make([]uint64, len(candidates))
	for i, r := range candidates {
		hashes[i] = r.PerceptualHash
	}
	index.BuildFrom(hashes)

	for i, r := range candidates {
		for _, j := range index.Query(r.PerceptualHash) {
			if j <= i {
				continue
			}
			if uf.find(i) == uf.find(j) {
				continue
			}
			if HammingDistance(r.PerceptualHash, candidates[j].PerceptualHash) <= threshold {
				uf.union(i, j)
			}
		}
	}
}
