package document

import (
	"bytes"
	"fmt"
	"image"
	"image/draw"
	"image/png"

	// registered for image.Decode
	_ "image/gif"
	_ "image/jpeg"

	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"

	"github.com/sunshineplan/imgconv"
	pdf2 "github.com/sunshineplan/pdf"
)

func decodePages(s *Source) ([]image.Image, error) {
	if s.IsPDF() {
		return decodePDFPages(s.Data)
	}
	img, _, err := image.Decode(bytes.NewReader(s.Data))
	if err != nil {
		return nil, fmt.Errorf("failed to decode %s image: %w", s.MIME, err)
	}
	return []image.Image{img}, nil
}

// decodePDFPages returns the images embedded in a PDF. Scanned plates carry
// one image per page; when none can be extracted the first page is decoded
// with imgconv.
func decodePDFPages(data []byte) ([]image.Image, error) {
	images, err := decodeAllPDFImages(data)
	if err == nil && len(images) > 0 {
		return images, nil
	}
	img, derr := imgconv.Decode(bytes.NewReader(data))
	if derr != nil {
		if err != nil {
			return nil, fmt.Errorf("failed to decode PDF images: %w (fallback: %v)", err, derr)
		}
		return nil, fmt.Errorf("failed to decode PDF with imgconv: %w", derr)
	}
	return []image.Image{img}, nil
}

func decodeAllPDFImages(data []byte) (images []image.Image, err error) {
	// the PDF image decoder panics on some malformed streams
	defer func() {
		if r := recover(); r != nil {
			images, err = nil, fmt.Errorf("panic while extracting PDF images: %v", r)
		}
	}()
	return pdf2.DecodeAll(bytes.NewReader(data))
}

// NeedsUpscale reports whether img is narrower than minWidth or shorter than
// minHeight.
func NeedsUpscale(img image.Image, minWidth, minHeight int) bool {
	b := img.Bounds()
	return b.Dx() < minWidth || b.Dy() < minHeight
}

// Upscale enlarges img by factor. Small scans decode and recognize better
// after upscaling.
func Upscale(img image.Image, factor int) image.Image {
	if factor <= 1 {
		return img
	}
	b := img.Bounds()
	return imgconv.Resize(img, &imgconv.ResizeOption{
		Width:  b.Dx() * factor,
		Height: b.Dy() * factor,
	})
}

// Crop copies rect out of img. It returns nil when rect does not overlap img.
func Crop(img image.Image, rect image.Rectangle) image.Image {
	rect = rect.Intersect(img.Bounds())
	if rect.Empty() {
		return nil
	}
	cropped := image.NewRGBA(image.Rect(0, 0, rect.Dx(), rect.Dy()))
	draw.Draw(cropped, cropped.Bounds(), img, rect.Min, draw.Src)
	return cropped
}

// EncodePNG encodes img as PNG, the format OCR engines accept everywhere.
func EncodePNG(img image.Image) ([]byte, error) {
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return nil, fmt.Errorf("failed to encode PNG: %w", err)
	}
	return buf.Bytes(), nil
}

// PageImages returns the page images encoded as PNG. Sources that are already
// a single PNG are returned unchanged.
func (s *Source) PageImages() ([][]byte, error) {
	if s.MIME == MIMEPNG {
		return [][]byte{s.Data}, nil
	}
	pages, err := s.Pages()
	if err != nil {
		return nil, err
	}
	out := make([][]byte, 0, len(pages))
	for i, p := range pages {
		data, err := EncodePNG(p)
		if err != nil {
			return nil, fmt.Errorf("page %d: %w", i, err)
		}
		out = append(out, data)
	}
	return out, nil
}
