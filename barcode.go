package vergilevhasi

import (
	"errors"
	"fmt"
	"image"
	"io"

	"github.com/makiuchi-d/gozxing"
	"github.com/makiuchi-d/gozxing/oned"
	"github.com/sirupsen/logrus"

	"github.com/alparslanahmed/vergilevhasi-ocr/document"
)

// ErrNoBarcode is returned when no barcode holding a tax id was found.
var ErrNoBarcode = errors.New("no tax id barcode found")

// BarcodeScanner reads the tax id from the barcode printed in the ONAY KODU
// section of GİB plates.
type BarcodeScanner struct {
	log logrus.FieldLogger
}

// NewBarcodeScanner creates a scanner. A nil logger discards output.
func NewBarcodeScanner(log logrus.FieldLogger) *BarcodeScanner {
	if log == nil {
		l := logrus.New()
		l.SetOutput(io.Discard)
		log = l
	}
	return &BarcodeScanner{log: log}
}

// ScanSource scans every page of src and returns the first tax id found.
func (s *BarcodeScanner) ScanSource(src *document.Source) (string, error) {
	pages, err := src.Pages()
	if err != nil {
		return "", fmt.Errorf("failed to decode pages: %w", err)
	}
	for i, img := range pages {
		s.log.Debugf("Scanning page %d for barcode: %dx%d", i, img.Bounds().Dx(), img.Bounds().Dy())
		if id, err := s.ScanImage(img); err == nil {
			return id, nil
		}
	}
	return "", ErrNoBarcode
}

// ScanImage looks for the barcode on the whole image, then on an upscaled copy
// of small images, then on the regions of the page it is usually printed in.
func (s *BarcodeScanner) ScanImage(img image.Image) (string, error) {
	if id, err := s.scan(img); err == nil {
		return id, nil
	}

	work := img
	if document.NeedsUpscale(img, 1000, 1000) {
		work = document.Upscale(img, 3)
		if id, err := s.scan(work); err == nil {
			return id, nil
		}
	}

	for _, region := range barcodeRegions(work.Bounds()) {
		cropped := document.Crop(work, region)
		if cropped == nil {
			continue
		}
		if id, err := s.scan(cropped); err == nil {
			return id, nil
		}
	}
	return "", ErrNoBarcode
}

// barcodeRegions returns the areas of a plate the barcode is printed in,
// most likely first: the bottom-right corner, the right third of the bottom
// half, the right half and the bottom half.
func barcodeRegions(bounds image.Rectangle) []image.Rectangle {
	w, h := float64(bounds.Dx()), float64(bounds.Dy())
	at := func(fx, fy float64) image.Point {
		return image.Pt(bounds.Min.X+int(w*fx), bounds.Min.Y+int(h*fy))
	}
	return []image.Rectangle{
		{Min: at(0.60, 0.70), Max: at(0.98, 0.98)},
		{Min: at(0.55, 0.65), Max: at(0.99, 0.99)},
		{Min: at(0.65, 0.50), Max: bounds.Max},
		{Min: at(0.50, 0), Max: bounds.Max},
		{Min: at(0, 0.50), Max: bounds.Max},
	}
}

func (s *BarcodeScanner) scan(img image.Image) (string, error) {
	bmp, err := gozxing.NewBinaryBitmapFromImage(img)
	if err != nil {
		return "", fmt.Errorf("failed to create bitmap: %w", err)
	}

	// Code128 first, the symbology used on GİB plates
	readers := []gozxing.Reader{
		oned.NewCode128Reader(),
		oned.NewCode39Reader(),
		oned.NewITFReader(),
		oned.NewEAN13Reader(),
	}
	for _, reader := range readers {
		result, err := reader.Decode(bmp, nil)
		if err != nil {
			continue
		}
		text := result.GetText()
		s.log.Debugf("Barcode decoded: %s", text)
		if id, ok := NormalizeTaxID(text); ok {
			return id, nil
		}
	}
	return "", ErrNoBarcode
}
