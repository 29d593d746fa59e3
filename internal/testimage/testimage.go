// Package testimage renders text into images for tests.
package testimage

import (
	"bytes"
	"image"
	"image/color"
	"image/draw"
	"image/png"
	"testing"

	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"
)

const (
	lineHeight = 20
	margin     = 10
	charWidth  = 7
)

// Text draws lines of ASCII text in black on white, enlarged by scale.
func Text(lines []string, scale int) *image.RGBA {
	if scale < 1 {
		scale = 1
	}
	width := 0
	for _, l := range lines {
		if w := len(l) * charWidth; w > width {
			width = w
		}
	}
	small := image.NewRGBA(image.Rect(0, 0, width+2*margin, len(lines)*lineHeight+2*margin))
	draw.Draw(small, small.Bounds(), &image.Uniform{C: color.White}, image.Point{}, draw.Src)
	d := &font.Drawer{Dst: small, Src: image.Black, Face: basicfont.Face7x13}
	for i, l := range lines {
		d.Dot = fixed.P(margin, margin+(i+1)*lineHeight-5)
		d.DrawString(l)
	}
	if scale == 1 {
		return small
	}

	b := small.Bounds()
	big := image.NewRGBA(image.Rect(0, 0, b.Dx()*scale, b.Dy()*scale))
	for y := 0; y < big.Bounds().Dy(); y++ {
		for x := 0; x < big.Bounds().Dx(); x++ {
			big.Set(x, y, small.At(x/scale, y/scale))
		}
	}
	return big
}

// PNG returns Text encoded as PNG.
func PNG(tb testing.TB, lines []string, scale int) []byte {
	tb.Helper()
	var buf bytes.Buffer
	if err := png.Encode(&buf, Text(lines, scale)); err != nil {
		tb.Fatalf("encode png: %v", err)
	}
	return buf.Bytes()
}
