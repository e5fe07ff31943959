package decode

import (
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"os"
	"path/filepath"
	"strings"

	"github.com/corona10/goimagehash"
	"github.com/rwcarlsen/goexif/exif"
	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"

	"duplifind/internal/models"
)

// formatByExt maps a lowercased extension to a FormatTag. RAW and HEIF
// extensions are classified here even though the default decoder can't
// decode them; .avif and .jxl have no entry and map to FormatOther.
var formatByExt = map[string]models.FormatTag{
	".jpg": models.FormatJPEG, ".jpeg": models.FormatJPEG,
	".png": models.FormatPNG,
	".gif": models.FormatGIF,
	".bmp": models.FormatBMP,
	".tiff": models.FormatTIFF, ".tif": models.FormatTIFF,
	".webp": models.FormatWEBP,
	".heic": models.FormatHEIF, ".heif": models.FormatHEIF,
	".cr2": models.FormatRAW, ".cr3": models.FormatRAW, ".nef": models.FormatRAW,
	".arw": models.FormatRAW, ".dng": models.FormatRAW, ".raf": models.FormatRAW,
	".orf": models.FormatRAW, ".rw2": models.FormatRAW,
}

// FormatFor classifies path by extension. Unknown extensions are
// FormatOther.
func FormatFor(path string) models.FormatTag {
	ext := strings.ToLower(filepath.Ext(path))
	if f, ok := formatByExt[ext]; ok {
		return f
	}
	return models.FormatOther
}

// defaultDecoder decodes the formats the standard library plus
// golang.org/x/image cover (JPEG, PNG, GIF, BMP, TIFF, WEBP) and
// computes a 64-bit block-DCT perceptual hash via goimagehash, the same
// library and algorithm.
type defaultDecoder struct{}

// Default returns the default Decoder: open, decode, compute pHash,
// read dimensions, and estimate bit depth from the decoded image's
// concrete type.
func Default() Decoder { return defaultDecoder{} }

func (defaultDecoder) Decode(path string) (Result, error) {
	file, err := os.Open(path)
	if err != nil {
		return Result{}, &DecodeError{Path: path, Err: err}
	}
	defer file.Close()

	img, _, err := image.Decode(file)
	if err != nil {
		return Result{}, &DecodeError{Path: path, Err: err}
	}

	hash, err := goimagehash.PerceptionHash(img)
	if err != nil {
		return Result{}, &DecodeError{Path: path, Err: fmt.Errorf("compute phash: %w", err)}
	}

	bounds := img.Bounds()
	return Result{
		Width:          bounds.Dx(),
		Height:         bounds.Dy(),
		BitDepth:       bitDepthOf(img),
		Format:         FormatFor(path),
		PerceptualHash: hash.GetHash(),
		HasEXIF:        HasEXIF(path),
	}, nil
}

// bitDepthOf estimates per-pixel bit depth from the decoded image's
// concrete type. A type switch is used rather than comparing
// img.ColorModel() against the color package's *Model* values: those
// are backed by func values, and comparing two interface values whose
// dynamic type is a func panics at runtime. Defaults to 8 for types
// this doesn't recognize, per the "default 8 if unknown" rule.
func bitDepthOf(img image.Image) int {
	switch img.(type) {
	case *image.Gray, *image.Paletted, *image.Alpha:
		return 8
	case *image.Gray16, *image.Alpha16:
		return 16
	case *image.RGBA, *image.NRGBA, *image.YCbCr:
		return 24
	case *image.RGBA64, *image.NRGBA64:
		return 48
	case *image.CMYK:
		return 32
	default:
		return 8
	}
}

// HasEXIF probes whether a file carries EXIF metadata. Kept as a
// decoder-capability signal only; EXIF is never used for similarity
// matching (an explicit Non-goal).
func HasEXIF(path string) bool {
	file, err := os.Open(path)
	if err != nil {
		return false
	}
	defer file.Close()
	_, err = exif.Decode(file)
	return err == nil
}
