// Package textlayer reads the text layer of PDFs generated by the GİB
// e-services. Those plates carry their fields as text, so no recognition is
// needed; scanned PDFs and images are left to other engines.
package textlayer

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"
	"github.com/sirupsen/logrus"

	"github.com/alparslanahmed/vergilevhasi-ocr/document"
	"github.com/alparslanahmed/vergilevhasi-ocr/ocr"
)

// Name of the engine.
const Name = "textlayer"

// Engine extracts text from PDF content streams with pdfcpu.
type Engine struct {
	log logrus.FieldLogger
}

// New creates a text layer engine. A nil logger discards output.
func New(log logrus.FieldLogger) *Engine {
	if log == nil {
		l := logrus.New()
		l.SetOutput(io.Discard)
		log = l
	}
	return &Engine{log: log.WithField("engine", Name)}
}

func (e *Engine) Name() string { return Name }

// Recognize returns one block per page and one line per text operand. It
// fails with ocr.ErrUnsupported for non-PDF sources.
func (e *Engine) Recognize(ctx context.Context, src *document.Source) (doc *ocr.Document, err error) {
	if !src.IsPDF() {
		return nil, ocr.ErrUnsupported
	}
	// pdfcpu panics on some malformed files
	defer func() {
		if r := recover(); r != nil {
			doc, err = nil, fmt.Errorf("panic while reading PDF: %v", r)
		}
	}()

	conf := model.NewDefaultConfiguration()
	pdfCtx, err := api.ReadValidateAndOptimize(bytes.NewReader(src.Data), conf)
	if err != nil {
		return nil, fmt.Errorf("failed to read and validate PDF: %w", err)
	}

	doc = &ocr.Document{Pages: make([]ocr.Page, 0, pdfCtx.PageCount)}
	for pageNr := 1; pageNr <= pdfCtx.PageCount; pageNr++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		lines, err := pageLines(pdfCtx, pageNr)
		if err != nil {
			e.log.WithError(err).Warnf("Could not read content of page %d", pageNr)
		}
		doc.Pages = append(doc.Pages, buildPage(pageNr-1, lines))
	}
	if doc.Empty() {
		return nil, ocr.ErrEmpty
	}
	doc.SetEngine(Name)
	return doc, nil
}

func pageLines(pdfCtx *model.Context, pageNr int) ([]string, error) {
	r, err := pdfcpu.ExtractPageContent(pdfCtx, pageNr)
	if err != nil {
		return nil, err
	}
	if r == nil {
		return nil, nil
	}
	content, err := io.ReadAll(r)
	if err != nil {
		return nil, err
	}
	return ExtractLines(string(content)), nil
}

var fullPage = ocr.Geometry{{0, 0}, {1, 1}}

func buildPage(idx int, lines []string) ocr.Page {
	page := ocr.Page{PageIdx: idx, Blocks: []ocr.Block{}}
	block := ocr.Block{Geometry: fullPage}
	for _, l := range lines {
		fields := strings.Fields(l)
		if len(fields) == 0 {
			continue
		}
		line := ocr.Line{Geometry: fullPage, Words: make([]ocr.Word, len(fields))}
		for i, f := range fields {
			line.Words[i] = ocr.Word{Value: f, Confidence: 1, Geometry: fullPage}
		}
		block.Lines = append(block.Lines, line)
	}
	if len(block.Lines) > 0 {
		page.Blocks = append(page.Blocks, block)
	}
	return page
}
