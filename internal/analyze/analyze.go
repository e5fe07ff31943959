// Package analyze implements the per-file analyzer (C2): for one path,
// compute the content hash, perceptual hash, and quality metadata.
//
// Structured around the decode.Decoder capability interface instead of
// calling image.Decode directly, and around a partial-record policy: a
// decode failure still yields a content-hash-only record plus an error,
// rather than dropping the file outright.
package analyze

import (
	"context"
	"crypto/sha256"
	"io"
	"os"

	"duplifind/internal/decode"
	"duplifind/internal/models"
)

const chunkSize = 32 * 1024

// Analyzer computes ImageRecords using an injected Decoder.
type Analyzer struct {
	Decoder decode.Decoder
}

// New returns an Analyzer backed by dec.
func New(dec decode.Decoder) *Analyzer {
	return &Analyzer{Decoder: dec}
}

// Analyze runs the five-step analysis on path. Exactly one of the
// returned pointers is non-nil, except in the decode-failure case where
// both are returned: a partial ImageRecord (content hash sound, no
// perceptual hash) alongside an ErrorRecord(DECODE) for reporting.
func (a *Analyzer) Analyze(ctx context.Context, path string) (*models.ImageRecord, *models.ErrorRecord) {
	stat, err := os.Stat(path)
	if err != nil {
		return nil, &models.ErrorRecord{Path: path, Kind: models.ErrorIO, Message: err.Error()}
	}

	contentHash, err := hashFile(ctx, path)
	if err != nil {
		return nil, &models.ErrorRecord{Path: path, Kind: models.ErrorIO, Message: err.Error()}
	}

	rec := &models.ImageRecord{
		Path:        path,
		SizeBytes:   stat.Size(),
		ModTime:     stat.ModTime(),
		ContentHash: contentHash,
	}

	result, decErr := a.Decoder.Decode(path)
	if decErr != nil {
		// Partial record: content hash is sound, so this still
		// participates in exact grouping, but has no perceptual hash
		// and is kept out of perceptual grouping.
		rec.Format = models.FormatOther
		rec.HasPerceptualHash = false
		errRec := &models.ErrorRecord{Path: path, Kind: models.ErrorDecode, Message: decErr.Error()}
		return rec, errRec
	}

	rec.Width = result.Width
	rec.Height = result.Height
	rec.BitDepth = result.BitDepth
	if rec.BitDepth == 0 {
		rec.BitDepth = 8
	}
	rec.Format = result.Format
	rec.HasPerceptualHash = true
	rec.PerceptualHash = result.PerceptualHash
	rec.HasEXIF = result.HasEXIF

	return rec, nil
}

func hashFile(ctx context.Context, path string) (models.ContentHash, error) {
	var out models.ContentHash

	f, err := os.Open(path)
	if err != nil {
		return out, err
	}
	defer f.Close()

	h := sha256.New()
	buf := make([]byte, chunkSize)
	for {
		if ctx.Err() != nil {
			return out, ctx.Err()
		}
		n, readErr := f.Read(buf)
		if n > 0 {
			h.Write(buf[:n])
		}
		if readErr == io.EOF {
			break
		}
		if readErr != nil {
			return out, readErr
		}
	}

	copy(out[:], h.Sum(nil))
	return out, nil
}
