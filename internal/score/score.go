// Package score implements the deterministic quality scorer (C5): it
// maps an analyzed image's metadata to a scalar in [0, 110] and provides
// the strict tie-break ordering used whenever two records must be
// ranked within a duplicate group.
//
// Uses an additive points formula and a five-level tie-break chain
// (score, pixel count, size in bytes, bit depth, path).
package score

import "duplifind/internal/models"

// FormatPoints assigns the fixed contribution each format tag makes to
// the score. RAW formats outscore everything else on the assumption
// that a RAW sibling of a JPEG is the better keeper.
func FormatPoints(format models.FormatTag) float64 {
	switch format {
	case models.FormatRAW:
		return 20
	case models.FormatPNG, models.FormatTIFF:
		return 17
	case models.FormatWEBP, models.FormatJPEG, models.FormatHEIF:
		return 12
	case models.FormatBMP:
		return 10
	case models.FormatGIF:
		return 5
	default:
		return 0
	}
}

// Score computes the quality score of r. The result is always in
// [0, 110]: each term is capped independently before summing.
func Score(r *models.ImageRecord) float64 {
	resolutionPts := min64(50, float64(r.PixelCount())/1_000_000*2)
	filesizePts := min64(30, float64(r.SizeBytes)/1_048_576*3)
	bitdepthPts := min64(10, float64(r.BitDepth)/3.2)
	formatPts := FormatPoints(r.Format)
	return resolutionPts + filesizePts + bitdepthPts + formatPts
}

func min64(a, b float64) float64 {
	if a < b {
		return a
	}
	return b
}

// Less reports whether a should sort before b under the strict
// tie-break chain: higher score, then larger pixel count, then larger
// size, then higher bit depth, then lexicographically smaller path.
// This order is fixed and must never depend on scan-to-scan state, so
// that group member ordering is reproducible.
func Less(a, b *models.ImageRecord) bool {
	sa, sb := Score(a), Score(b)
	if sa != sb {
		return sa > sb
	}
	if a.PixelCount() != b.PixelCount() {
		return a.PixelCount() > b.PixelCount()
	}
	if a.SizeBytes != b.SizeBytes {
		return a.SizeBytes > b.SizeBytes
	}
	if a.BitDepth != b.BitDepth {
		return a.BitDepth > b.BitDepth
	}
	return a.Path < b.Path
}
