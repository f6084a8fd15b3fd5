// Package floorplan renders a schematic top-down plan for a kitchen layout.
// Output is deliberately diagrammatic: counter runs, module boundaries and
// the sink/stove/fridge zones, no attempt at photorealism.
package floorplan

import (
	"bytes"
	"fmt"
	"image"
	"image/color"
	"image/png"
	"math"
	"strings"

	"github.com/fogleman/gg"
	xdraw "golang.org/x/image/draw"
)

const (
	ShapeLinear = "lineal"
	ShapeL      = "L"
	ShapeU      = "U"
	ShapeIsland = "isla"
)

// Plan is the layout description the renderer works from. LinearMeters is
// the total counter run; module width is fixed at 60cm, the industry module.
type Plan struct {
	LinearMeters float64
	Shape        string
}

const (
	canvasW = 900
	canvasH = 640
	margin  = 60.0

	moduleMeters  = 0.6
	counterMeters = 0.65
)

var (
	colorFloor   = color.NRGBA{R: 0xF4, G: 0xEF, B: 0xE6, A: 0xFF}
	colorCounter = color.NRGBA{R: 0x8B, G: 0x5E, B: 0x3C, A: 0xFF}
	colorModule  = color.NRGBA{R: 0xFF, G: 0xFF, B: 0xFF, A: 0x50}
	colorWall    = color.NRGBA{R: 0x33, G: 0x2B, B: 0x24, A: 0xFF}
)

// Render draws the plan and returns PNG bytes.
func Render(p Plan) ([]byte, error) {
	if p.LinearMeters <= 0 {
		return nil, fmt.Errorf("linear meters must be positive, got %.2f", p.LinearMeters)
	}
	shape := normalizeShape(p.Shape)

	dc := gg.NewContext(canvasW, canvasH)
	dc.SetColor(colorFloor)
	dc.Clear()

	// Room outline.
	dc.SetColor(colorWall)
	dc.SetLineWidth(6)
	dc.DrawRectangle(margin, margin, canvasW-2*margin, canvasH-2*margin)
	dc.Stroke()

	runs := splitRuns(p.LinearMeters, shape)
	scale := fitScale(runs)
	depth := counterMeters * scale

	for _, r := range runs {
		drawRun(dc, r, scale, depth)
	}

	if shape == ShapeIsland {
		drawIsland(dc, p.LinearMeters, scale)
	}

	var buf bytes.Buffer
	if err := dc.EncodePNG(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// Thumbnail downscales a rendered plan so list views don't ship full-size
// plans. maxDim bounds the longer edge.
func Thumbnail(raw []byte, maxDim int) ([]byte, error) {
	if maxDim <= 0 {
		maxDim = 256
	}
	src, err := png.Decode(bytes.NewReader(raw))
	if err != nil {
		return nil, fmt.Errorf("decode plan: %w", err)
	}
	b := src.Bounds()
	w, h := b.Dx(), b.Dy()
	if w <= maxDim && h <= maxDim {
		return raw, nil
	}
	var nw, nh int
	if w >= h {
		nw = maxDim
		nh = int(math.Round(float64(h) * float64(maxDim) / float64(w)))
	} else {
		nh = maxDim
		nw = int(math.Round(float64(w) * float64(maxDim) / float64(h)))
	}
	if nw < 1 {
		nw = 1
	}
	if nh < 1 {
		nh = 1
	}
	dst := image.NewNRGBA(image.Rect(0, 0, nw, nh))
	xdraw.CatmullRom.Scale(dst, dst.Bounds(), src, b, xdraw.Over, nil)

	var buf bytes.Buffer
	if err := png.Encode(&buf, dst); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

type run struct {
	meters     float64
	horizontal bool
	// anchor corner in wall coordinates, 0..1 of usable span
	fromTop, fromLeft bool
}

// splitRuns distributes the counter length over the walls the shape uses.
func splitRuns(total float64, shape string) []run {
	switch shape {
	case ShapeL:
		return []run{
			{meters: total * 0.6, horizontal: true, fromTop: true, fromLeft: true},
			{meters: total * 0.4, horizontal: false, fromTop: true, fromLeft: true},
		}
	case ShapeU:
		return []run{
			{meters: total * 0.4, horizontal: true, fromTop: true, fromLeft: true},
			{meters: total * 0.3, horizontal: false, fromTop: true, fromLeft: true},
			{meters: total * 0.3, horizontal: false, fromTop: true, fromLeft: false},
		}
	case ShapeIsland:
		// Island keeps one wall run; the island itself is drawn separately.
		return []run{
			{meters: total * 0.65, horizontal: true, fromTop: true, fromLeft: true},
		}
	default: // lineal
		return []run{
			{meters: total, horizontal: true, fromTop: true, fromLeft: true},
		}
	}
}

// fitScale picks pixels-per-meter so the longest run fits its wall.
func fitScale(runs []run) float64 {
	longest := 0.0
	for _, r := range runs {
		if r.meters > longest {
			longest = r.meters
		}
	}
	usableW := float64(canvasW) - 2*margin - 12
	usableH := float64(canvasH) - 2*margin - 12
	usable := math.Min(usableW, usableH)
	if longest <= 0 {
		return 1
	}
	return usable / longest
}

func drawRun(dc *gg.Context, r run, scale float64, depth float64) {
	length := r.meters * scale
	var x, y, w, h float64
	if r.horizontal {
		w, h = length, depth
		y = margin + 3
		if !r.fromTop {
			y = float64(canvasH) - margin - 3 - depth
		}
		x = margin + 3
		if !r.fromLeft {
			x = float64(canvasW) - margin - 3 - length
		}
	} else {
		w, h = depth, length
		x = margin + 3
		if !r.fromLeft {
			x = float64(canvasW) - margin - 3 - depth
		}
		y = margin + 3
		if !r.fromTop {
			y = float64(canvasH) - margin - 3 - length
		}
		// Vertical runs start below the top horizontal run when both hug
		// the same corner.
		y += depth
		h -= depth
		if h <= 0 {
			return
		}
	}

	dc.SetColor(colorCounter)
	dc.DrawRectangle(x, y, w, h)
	dc.Fill()

	// Module boundaries every 60cm.
	dc.SetColor(colorModule)
	dc.SetLineWidth(2)
	step := moduleMeters * scale
	if r.horizontal {
		for mx := x + step; mx < x+w; mx += step {
			dc.DrawLine(mx, y, mx, y+h)
			dc.Stroke()
		}
	} else {
		for my := y + step; my < y+h; my += step {
			dc.DrawLine(x, my, x+w, my)
			dc.Stroke()
		}
	}
}

func drawIsland(dc *gg.Context, total float64, scale float64) {
	islandLen := total * 0.35 * scale
	islandDepth := 0.9 * scale
	x := (float64(canvasW) - islandLen) / 2
	y := (float64(canvasH) - islandDepth) / 2

	dc.SetColor(colorCounter)
	dc.DrawRoundedRectangle(x, y, islandLen, islandDepth, 8)
	dc.Fill()

	dc.SetColor(colorModule)
	dc.SetLineWidth(2)
	step := moduleMeters * scale
	for mx := x + step; mx < x+islandLen; mx += step {
		dc.DrawLine(mx, y, mx, y+islandDepth)
		dc.Stroke()
	}
}

func normalizeShape(s string) string {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "l", "en l", "l-shape":
		return ShapeL
	case "u", "en u", "u-shape":
		return ShapeU
	case "isla", "island":
		return ShapeIsland
	default:
		return ShapeLinear
	}
}
