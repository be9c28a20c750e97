// Package chart draws one metric's readout and trend history onto a fixed
// 260x256 raster surface: horizontal reference markers from the metric's
// static scale, the current value as large centered text, and the decoded
// trend as a single stroked polyline.
package chart

import (
	"bytes"
	"image"
	"image/color"
	"image/draw"
	"image/png"

	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"

	"github.com/speedwagon-io/weatherdash/internal/trend"
)

const (
	// Surface dimensions in logical pixels, one surface per metric.
	Width  = 260
	Height = 256

	// trendLeft is the x position of the oldest trend slot; the walk
	// advances one pixel per slot from here.
	trendLeft = 10

	// readoutScale is the integer magnification of the headline text.
	readoutScale = 3
)

var (
	background  = color.RGBA{R: 0x10, G: 0x12, B: 0x16, A: 0xff}
	markerColor = color.RGBA{R: 0x3c, G: 0x42, B: 0x4a, A: 0xff}
	labelColor  = color.RGBA{R: 0x8a, G: 0x92, B: 0x9c, A: 0xff}
	textColor   = color.RGBA{R: 0xf0, G: 0xf2, B: 0xf4, A: 0xff}
)

// NewSurface allocates a drawing surface of the standard chart size.
func NewSurface() *image.RGBA {
	return image.NewRGBA(image.Rect(0, 0, Width, Height))
}

// Render draws one metric onto img: clears it, draws the scale's reference
// markers in order (overlapping markers simply overdraw), the current value
// centered near the top, and the trend walked left to right, one pixel per
// slot. Sentinel slots advance the cursor without plotting and do not break
// the open segment, so a gap bounded by valid samples is bridged by one
// straight connecting line. The accumulated path is stroked once at the end.
//
// Rendering is deterministic and touches nothing but img.
func Render(img *image.RGBA, series trend.Series, current string, scale MetricScale) {
	b := img.Bounds()
	w, h := b.Dx(), b.Dy()

	draw.Draw(img, b, image.NewUniform(background), image.Point{}, draw.Src)

	for _, m := range scale.Markers {
		row := h - 1 - m.Offset
		if row < 0 || row >= h {
			continue
		}
		drawHLine(img, row, markerColor)
		if row-3 >= smallFont.Height {
			drawText(img, m.Label, 3, row-3, labelColor)
		}
	}

	// Centering assumes the fixed glyph advance of the face, which makes
	// the glyph-count estimate exact.
	textW := readoutScale * smallFont.Advance * len([]rune(current))
	drawTextScaled(img, current, readoutScale, (w-textW)/2, 8, textColor)

	var path []image.Point
	x := trendLeft
	for _, s := range series {
		if s != trend.NoSample {
			path = append(path, image.Pt(x, h-1-int(s)))
		}
		x++
	}
	strokePath(img, path, scale.Line)
}

// EncodePNG serializes a rendered surface for the HTTP layer.
func EncodePNG(img *image.RGBA) ([]byte, error) {
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

var smallFont = basicfont.Face7x13

func drawHLine(img *image.RGBA, row int, col color.RGBA) {
	b := img.Bounds()
	for x := b.Min.X; x < b.Max.X; x++ {
		img.SetRGBA(x, b.Min.Y+row, col)
	}
}

func strokePath(img *image.RGBA, path []image.Point, col color.RGBA) {
	if len(path) == 1 {
		img.SetRGBA(path[0].X, path[0].Y, col)
		return
	}
	for i := 1; i < len(path); i++ {
		drawLine(img, path[i-1], path[i], col)
	}
}

// drawLine rasterizes the segment p0-p1 with the integer Bresenham walk.
func drawLine(img *image.RGBA, p0, p1 image.Point, col color.RGBA) {
	dx := p1.X - p0.X
	if dx < 0 {
		dx = -dx
	}
	dy := p1.Y - p0.Y
	if dy < 0 {
		dy = -dy
	}
	sx, sy := 1, 1
	if p0.X > p1.X {
		sx = -1
	}
	if p0.Y > p1.Y {
		sy = -1
	}
	err := dx - dy

	x, y := p0.X, p0.Y
	for {
		img.SetRGBA(x, y, col)
		if x == p1.X && y == p1.Y {
			return
		}
		e2 := 2 * err
		if e2 > -dy {
			err -= dy
			x += sx
		}
		if e2 < dx {
			err += dx
			y += sy
		}
	}
}

// drawText draws s at its natural size with the baseline at the given row.
func drawText(img *image.RGBA, s string, x, baseline int, col color.RGBA) {
	d := &font.Drawer{
		Dst:  img,
		Src:  image.NewUniform(col),
		Face: smallFont,
		Dot:  fixed.P(x, baseline),
	}
	d.DrawString(s)
}

// drawTextScaled draws s magnified by an integer factor with its top-left
// corner at (x, y). The string is rasterized at natural size first, then
// each lit pixel becomes a scale x scale block.
func drawTextScaled(img *image.RGBA, s string, scale, x, y int, col color.RGBA) {
	n := len([]rune(s))
	if n == 0 {
		return
	}
	tmp := image.NewRGBA(image.Rect(0, 0, n*smallFont.Advance, smallFont.Height))
	d := &font.Drawer{
		Dst:  tmp,
		Src:  image.NewUniform(color.RGBA{A: 0xff}),
		Face: smallFont,
		Dot:  fixed.P(0, smallFont.Ascent),
	}
	d.DrawString(s)

	tb := tmp.Bounds()
	for ty := tb.Min.Y; ty < tb.Max.Y; ty++ {
		for tx := tb.Min.X; tx < tb.Max.X; tx++ {
			if _, _, _, a := tmp.At(tx, ty).RGBA(); a == 0 {
				continue
			}
			for by := 0; by < scale; by++ {
				for bx := 0; bx < scale; bx++ {
					img.SetRGBA(x+tx*scale+bx, y+ty*scale+by, col)
				}
			}
		}
	}
}
