package ocr

import (
	"image"
	"math"
	"strings"
)

// WordBox is a word as reported by Tesseract: its pixel box, confidence in
// 0..1 and the block, paragraph and line it belongs to.
type WordBox struct {
	Text       string
	Box        image.Rectangle
	Confidence float64
	Block      int
	Paragraph  int
	Line       int
}

// PageFromWordBoxes groups word boxes, given in reading order, into blocks and
// lines. Geometry is made relative to bounds. Blank words are dropped.
func PageFromWordBoxes(idx int, bounds image.Rectangle, boxes []WordBox) Page {
	page := Page{
		PageIdx:    idx,
		Dimensions: [2]int{bounds.Dy(), bounds.Dx()},
		Blocks:     []Block{},
	}

	type lineKey struct{ paragraph, line int }
	var (
		block    *Block
		blockNum int
		line     *Line
		key      lineKey
		blockBox image.Rectangle
		lineBox  image.Rectangle
	)
	flushLine := func() {
		if line != nil && len(line.Words) > 0 {
			line.Geometry = relative(lineBox, bounds)
			block.Lines = append(block.Lines, *line)
		}
		line = nil
	}
	flushBlock := func() {
		flushLine()
		if block != nil && len(block.Lines) > 0 {
			block.Geometry = relative(blockBox, bounds)
			page.Blocks = append(page.Blocks, *block)
		}
		block = nil
	}

	for _, b := range boxes {
		text := strings.TrimSpace(b.Text)
		if text == "" {
			continue
		}
		if block == nil || b.Block != blockNum {
			flushBlock()
			block = &Block{}
			blockNum = b.Block
			blockBox = b.Box
		}
		k := lineKey{b.Paragraph, b.Line}
		if line == nil || k != key {
			flushLine()
			line = &Line{}
			key = k
			lineBox = b.Box
		}
		line.Words = append(line.Words, Word{
			Value:      text,
			Confidence: b.Confidence,
			Geometry:   relative(b.Box, bounds),
		})
		lineBox = lineBox.Union(b.Box)
		blockBox = blockBox.Union(b.Box)
	}
	flushBlock()
	return page
}

func relative(r, bounds image.Rectangle) Geometry {
	w, h := float64(bounds.Dx()), float64(bounds.Dy())
	if w == 0 || h == 0 {
		return Geometry{{0, 0}, {0, 0}}
	}
	x0 := float64(r.Min.X-bounds.Min.X) / w
	y0 := float64(r.Min.Y-bounds.Min.Y) / h
	x1 := float64(r.Max.X-bounds.Min.X) / w
	y1 := float64(r.Max.Y-bounds.Min.Y) / h
	return Geometry{{round(x0), round(y0)}, {round(x1), round(y1)}}
}

func round(v float64) float64 {
	return math.Round(v*1e4) / 1e4
}
