// Package lsh implements the probabilistic near-neighbor candidate
// generator (C7): a multi-table locality-sensitive hash index over
// fixed-width 64-bit perceptual hashes.
//
// This is ported from a HammingLSH reference implementation,
// which already implements the multi-table random-bit-permutation
// scheme and parameter schedule this component needs; only the hash
// width changes, narrowed from a 256-bit pHash down to this system's
// fixed 64-bit one.
package lsh

import "math/rand"

// lshSeed fixes the per-table random permutations so two runs over the
// same inputs produce byte-identical tables.
const lshSeed = 0x4450464c5348

// hashBits is the fixed width of the perceptual hash this index stores.
const hashBits = 64

// Index is a set of L hash tables, each keyed by B bits gathered from a
// fixed random permutation of the 64 hash bit positions.
type Index struct {
	tables       []table
	bitsPerTable int
}

type table struct {
	positions []int
	buckets   map[uint64][]int
}

// New builds an empty index with numTables tables of bitsPerTable bits
// each.
func New(numTables, bitsPerTable int) *Index {
	ix := &Index{
		tables:       make([]table, numTables),
		bitsPerTable: bitsPerTable,
	}
	for i := range ix.tables {
		rng := rand.New(rand.NewSource(lshSeed + int64(i)))
		perm := rng.Perm(hashBits)
		positions := make([]int, bitsPerTable)
		copy(positions, perm[:bitsPerTable])
		ix.tables[i] = table{
			positions: positions,
			buckets:   make(map[uint64][]int),
		}
	}
	return ix
}

// ParamsFor returns the (numTables, bitsPerTable) schedule for a
// collection of n candidates at distance threshold t, per the fixed
// recall-tuned table keyed on collection size. The schedule assumes
// t <= 10; callers using a larger threshold should widen L or shrink B
// themselves, since this schedule does not adapt to t.
func ParamsFor(n, _ int) (numTables, bitsPerTable int) {
	switch {
	case n < 10_000:
		return 15, 20
	case n < 50_000:
		return 18, 18
	case n < 200_000:
		return 20, 16
	default:
		return 25, 14
	}
}

func bucketKey(h uint64, positions []int) uint64 {
	var key uint64
	for _, pos := range positions {
		key <<= 1
		key |= (h >> uint(pos)) & 1
	}
	return key
}

// Add inserts id (a dense index into the caller's record slice) keyed
// by its perceptual hash h into every table.
func (ix *Index) Add(id int, h uint64) {
	for i := range ix.tables {
		t := &ix.tables[i]
		key := bucketKey(h, t.positions)
		t.buckets[key] = append(t.buckets[key], id)
	}
}

// BuildFrom bulk-inserts hashes[0..n) as ids 0..n-1, in order.
func (ix *Index) BuildFrom(hashes []uint64) {
	for id, h := range hashes {
		ix.Add(id, h)
	}
}

// Query returns the union, across all tables, of every id sharing h's
// bucket key, excluding nothing (callers filter out the query's own id
// themselves). Because an identical hash always shares every sampled
// bit with itself, any other inserted occurrence of h collides in
// every table and is always returned.
func (ix *Index) Query(h uint64) []int {
	seen := make(map[int]struct{})
	var out []int
	for i := range ix.tables {
		t := &ix.tables[i]
		key := bucketKey(h, t.positions)
		for _, id := range t.buckets[key] {
			if _, ok := seen[id]; !ok {
				seen[id] = struct{}{}
				out = append(out, id)
			}
		}
	}
	return out
}

// EstimateCandidatePairs returns the total number of (possibly
// duplicate, across tables) candidate pairs the index would yield if
// every bucket in every table were expanded pairwise. Useful only for
// progress reporting/logging, mirroring the reference implementation's
// estimate_comparison_reduction.
func (ix *Index) EstimateCandidatePairs() int {
	total := 0
	for i := range ix.tables {
		for _, bucket := range ix.tables[i].buckets {
			n := len(bucket)
			total += n * (n - 1) / 2
		}
	}
	return total
}

// Size returns the number of tables in the index.
func (ix *Index) Size() int {
	return len(ix.tables)
}
