package score

import (
	"testing"

	"duplifind/internal/models"
)

func TestFormatPoints(t *testing.T) {
	cases := []struct {
		format models.FormatTag
		want   float64
	}{
		{models.FormatRAW, 20},
		{models.FormatPNG, 17},
		{models.FormatTIFF, 17},
		{models.FormatWEBP, 12},
		{models.FormatJPEG, 12},
		{models.FormatHEIF, 12},
		{models.FormatBMP, 10},
		{models.FormatGIF, 5},
		{models.FormatOther, 0},
	}
	for _, c := range cases {
		if got := FormatPoints(c.format); got != c.want {
			t.Errorf("FormatPoints(%v) = %v, want %v", c.format, got, c.want)
		}
	}
}

func TestScore_Caps(t *testing.T) {
	r := &models.ImageRecord{
		Width: 100000, Height: 100000, // huge, must cap resolution at 50
		SizeBytes: 10 << 30,           // 10GiB, must cap filesize at 30
		BitDepth:  64,                 // must cap bitdepth at 10
		Format:    models.FormatRAW,
	}
	got := Score(r)
	want := 50.0 + 30.0 + 10.0 + 20.0
	if got != want {
		t.Errorf("Score() = %v, want %v", got, want)
	}
}

func TestScore_Formula(t *testing.T) {
	r := &models.ImageRecord{
		Width: 1000, Height: 1000, // 1,000,000 px -> 2 pts
		SizeBytes: 1 << 20,        // 1 MiB -> 3 pts
		BitDepth:  8,              // 2.5 pts
		Format:    models.FormatJPEG,
	}
	got := Score(r)
	want := 2.0 + 3.0 + 2.5 + 12.0
	if got != want {
		t.Errorf("Score() = %v, want %v", got, want)
	}
}

func TestLess_TieBreakChain(t *testing.T) {
	base := models.ImageRecord{Width: 100, Height: 100, SizeBytes: 1000, BitDepth: 8, Format: models.FormatJPEG}

	higherScore := base
	higherScore.Path = "/a/higher-score.jpg"
	higherScore.Format = models.FormatRAW

	lowerScore := base
	lowerScore.Path = "/a/lower-score.jpg"

	if !Less(&higherScore, &lowerScore) {
		t.Fatal("expected higher score to sort first")
	}

	// Both resolutions exceed the 50-point cap, so the scores tie.
	capped := base
	capped.Path = "/b/capped.jpg"
	capped.Width, capped.Height = 10000, 10000
	morePixels := capped
	morePixels.Path = "/b/more-pixels.jpg"
	morePixels.Width = 20000

	if Score(&morePixels) != Score(&capped) {
		t.Fatalf("expected tied scores, got %v and %v", Score(&morePixels), Score(&capped))
	}
	if !Less(&morePixels, &capped) {
		t.Fatal("expected larger pixel count to sort first when scores tie")
	}

	a := base
	a.Path = "/z/a.jpg"
	b := base
	b.Path = "/a/b.jpg"
	if !Less(&b, &a) {
		t.Fatal("expected lexicographically smaller path to sort first when all else ties")
	}
}
