// Package decode defines the decoder capability the analyzer depends
// on: given a path, return pixel dimensions, bit depth, format tag,
// and a perceptual hash, or fail with a DecodeError. The analyzer
// never imports an image-decoding library directly — only this
// interface — so the decoder implementation stays swappable.
package decode

import (
	"fmt"

	"duplifind/internal/models"
)

// Result is everything the analyzer needs from a successful decode.
type Result struct {
	Width          int
	Height         int
	BitDepth       int
	Format         models.FormatTag
	PerceptualHash uint64

	// HasEXIF reports whether the file carries EXIF metadata. It is a
	// decoder-capability signal only, never consulted for similarity or
	// quality scoring.
	HasEXIF bool
}

// DecodeError wraps a decode failure with the path that caused it.
type DecodeError struct {
	Path string
	Err  error
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("decode %s: %v", e.Path, e.Err)
}

func (e *DecodeError) Unwrap() error { return e.Err }

// Decoder is the capability the analyzer depends on. Implementations
// are free to use whatever image library they like; the core only ever
// sees this interface.
type Decoder interface {
	Decode(path string) (Result, error)
}
