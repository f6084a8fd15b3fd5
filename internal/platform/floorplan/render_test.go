package floorplan

import (
	"bytes"
	"image/png"
	"testing"
)

func TestRenderProducesDecodablePNG(t *testing.T) {
	for _, shape := range []string{"lineal", "l", "u", "isla", ""} {
		raw, err := Render(Plan{LinearMeters: 3.6, Shape: shape})
		if err != nil {
			t.Fatalf("render %q: %v", shape, err)
		}
		img, err := png.Decode(bytes.NewReader(raw))
		if err != nil {
			t.Fatalf("render %q produced invalid PNG: %v", shape, err)
		}
		b := img.Bounds()
		if b.Dx() != canvasW || b.Dy() != canvasH {
			t.Fatalf("render %q size = %dx%d, want %dx%d", shape, b.Dx(), b.Dy(), canvasW, canvasH)
		}
	}
}

func TestRenderRejectsNonPositiveMeters(t *testing.T) {
	if _, err := Render(Plan{LinearMeters: 0, Shape: "l"}); err == nil {
		t.Fatal("zero meters should fail")
	}
	if _, err := Render(Plan{LinearMeters: -1, Shape: "l"}); err == nil {
		t.Fatal("negative meters should fail")
	}
}

func TestThumbnailBounds(t *testing.T) {
	raw, err := Render(Plan{LinearMeters: 4.0, Shape: "u"})
	if err != nil {
		t.Fatalf("render: %v", err)
	}
	thumb, err := Thumbnail(raw, 200)
	if err != nil {
		t.Fatalf("thumbnail: %v", err)
	}
	img, err := png.Decode(bytes.NewReader(thumb))
	if err != nil {
		t.Fatalf("thumbnail is not valid PNG: %v", err)
	}
	b := img.Bounds()
	if b.Dx() > 200 || b.Dy() > 200 {
		t.Fatalf("thumbnail %dx%d exceeds max dimension 200", b.Dx(), b.Dy())
	}
	// Aspect ratio follows the source canvas: wider than tall.
	if b.Dx() != 200 {
		t.Fatalf("longer edge should hit the bound, got %d", b.Dx())
	}
}

func TestThumbnailSmallSourcePassthrough(t *testing.T) {
	raw, err := Render(Plan{LinearMeters: 2.0, Shape: "lineal"})
	if err != nil {
		t.Fatalf("render: %v", err)
	}
	same, err := Thumbnail(raw, 4096)
	if err != nil {
		t.Fatalf("thumbnail: %v", err)
	}
	if !bytes.Equal(raw, same) {
		t.Fatal("a source within bounds should pass through untouched")
	}
}

func TestNormalizeShape(t *testing.T) {
	cases := map[string]string{
		"l":       ShapeL,
		"L-shape": ShapeL,
		"en u":    ShapeU,
		"island":  ShapeIsland,
		"":        ShapeLinear,
		"otro":    ShapeLinear,
	}
	for in, want := range cases {
		if got := normalizeShape(in); got != want {
			t.Errorf("normalizeShape(%q) = %q, want %q", in, got, want)
		}
	}
}
