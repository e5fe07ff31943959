package pipeline

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"duplifind/internal/decode"
	"duplifind/internal/models"
)

type stubDecoder struct {
	hash uint64
}

func (s stubDecoder) Decode(path string) (decode.Result, error) {
	return decode.Result{Width: 100, Height: 100, BitDepth: 8, Format: models.FormatJPEG, PerceptualHash: s.hash}, nil
}

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
}

func TestScan_EmptyDirectory(t *testing.T) {
	dir := t.TempDir()
	opts := DefaultOptions()
	opts.UseCache = false

	result, err := Scan(context.Background(), dir, nil, stubDecoder{}, opts)
	if err != nil {
		t.Fatalf("Scan() error = %v", err)
	}
	if len(result.Records) != 0 || len(result.Errors) != 0 || len(result.Groups) != 0 {
		t.Errorf("expected empty result, got %+v", result)
	}
	if result.Partial {
		t.Error("expected Partial=false")
	}
}

func TestScan_ExactDuplicatePair(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "a.jpg"), "identical-bytes")
	writeFile(t, filepath.Join(dir, "b.jpg"), "identical-bytes")

	opts := DefaultOptions()
	opts.UseCache = false

	result, err := Scan(context.Background(), dir, nil, stubDecoder{hash: 1}, opts)
	if err != nil {
		t.Fatalf("Scan() error = %v", err)
	}
	if len(result.Groups) != 1 {
		t.Fatalf("got %d groups, want 1", len(result.Groups))
	}
	if result.Groups[0].Kind != models.GroupExact {
		t.Errorf("expected an EXACT group, got %v", result.Groups[0].Kind)
	}
}

func TestScan_RejectsRelativeRoot(t *testing.T) {
	opts := DefaultOptions()
	_, err := Scan(context.Background(), "relative/path", nil, stubDecoder{}, opts)
	if err == nil {
		t.Fatal("expected BAD_ARGUMENT error for a relative root")
	}
	var se *ScanError
	if se, _ = err.(*ScanError); se == nil || se.Kind != models.ErrorBadArgument {
		t.Errorf("expected ScanError(BAD_ARGUMENT), got %v", err)
	}
}

func TestScan_RejectsInvalidThreshold(t *testing.T) {
	dir := t.TempDir()
	opts := DefaultOptions()
	opts.Threshold = 65
	_, err := Scan(context.Background(), dir, nil, stubDecoder{}, opts)
	if err == nil {
		t.Fatal("expected BAD_ARGUMENT error for an out-of-range threshold")
	}
}

func TestScan_CancellationYieldsPartial(t *testing.T) {
	dir := t.TempDir()
	for i := 0; i < 20; i++ {
		writeFile(t, filepath.Join(dir, filepath.Base(dir)+string(rune('a'+i))+".jpg"), "x")
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	opts := DefaultOptions()
	opts.UseCache = false
	result, err := Scan(ctx, dir, nil, stubDecoder{}, opts)
	if err != nil {
		t.Fatalf("Scan() error = %v", err)
	}
	if !result.Partial {
		t.Error("expected Partial=true for a pre-cancelled context")
	}
}
