//go:build ocr
// +build ocr

package tesseract

import (
	"context"
	"fmt"
	"image"

	"github.com/otiai10/gosseract/v2"

	"github.com/alparslanahmed/vergilevhasi-ocr/document"
	"github.com/alparslanahmed/vergilevhasi-ocr/ocr"
)

// Compiled reports whether the engine is available in this build.
const Compiled = true

// Recognize runs Tesseract on each page image. A client is created per call
// because gosseract clients are not safe for concurrent use.
func (e *Engine) Recognize(ctx context.Context, src *document.Source) (*ocr.Document, error) {
	pages, err := src.Pages()
	if err != nil {
		return nil, err
	}

	client := gosseract.NewClient()
	defer func() {
		if err := client.Close(); err != nil {
			e.log.WithError(err).Warn("Could not close tesseract client")
		}
	}()
	if e.cfg.TessdataPrefix != "" {
		if err := client.SetTessdataPrefix(e.cfg.TessdataPrefix); err != nil {
			return nil, fmt.Errorf("failed to set tessdata prefix: %w", err)
		}
	}
	if err := client.SetLanguage(e.cfg.Languages...); err != nil {
		return nil, fmt.Errorf("failed to set languages: %w", err)
	}
	if e.cfg.PSM > 0 {
		if err := client.SetPageSegMode(gosseract.PageSegMode(e.cfg.PSM)); err != nil {
			return nil, fmt.Errorf("failed to set page segmentation mode: %w", err)
		}
	}

	doc := &ocr.Document{Pages: make([]ocr.Page, 0, len(pages))}
	for i, img := range pages {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		page, err := e.recognizePage(client, i, img)
		if err != nil {
			return nil, fmt.Errorf("page %d: %w", i, err)
		}
		doc.Pages = append(doc.Pages, page)
	}
	if doc.Empty() {
		return nil, ocr.ErrEmpty
	}
	doc.SetEngine(Name)
	return doc, nil
}

func (e *Engine) recognizePage(client *gosseract.Client, idx int, img image.Image) (ocr.Page, error) {
	data, err := document.EncodePNG(img)
	if err != nil {
		return ocr.Page{}, err
	}
	if err := client.SetImageFromBytes(data); err != nil {
		return ocr.Page{}, fmt.Errorf("failed to set image: %w", err)
	}
	boxes, err := client.GetBoundingBoxesVerbose()
	if err != nil {
		return ocr.Page{}, fmt.Errorf("failed to recognize text: %w", err)
	}
	e.log.Debugf("Page %d: %d words", idx, len(boxes))

	words := make([]ocr.WordBox, 0, len(boxes))
	for _, b := range boxes {
		words = append(words, ocr.WordBox{
			Text:       b.Word,
			Box:        b.Box,
			Confidence: b.Confidence / 100,
			Block:      b.BlockNum,
			Paragraph:  b.ParNum,
			Line:       b.LineNum,
		})
	}
	return ocr.PageFromWordBoxes(idx, img.Bounds(), words), nil
}
