package vergilevhasi

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/alparslanahmed/vergilevhasi-ocr/document"
	"github.com/alparslanahmed/vergilevhasi-ocr/ocr"
	"github.com/alparslanahmed/vergilevhasi-ocr/ocr/tesseractcli"
	"github.com/alparslanahmed/vergilevhasi-ocr/ocr/textlayer"
)

// Parser reads tax plates: it runs an OCR engine on a document and extracts
// the fields from the recognized lines.
type Parser struct {
	engine    ocr.Engine
	extractor *Extractor
	barcode   *BarcodeScanner
	scanCodes bool
	fetcher   *document.Fetcher
	log       logrus.FieldLogger
	debug     bool
}

// Option configures a Parser.
type Option func(*Parser)

// WithEngine sets the OCR engine.
func WithEngine(e ocr.Engine) Option {
	return func(p *Parser) { p.engine = e }
}

// WithExtractor sets the field extractor.
func WithExtractor(x *Extractor) Option {
	return func(p *Parser) { p.extractor = x }
}

// WithBarcodeFallback reads the tax id from the plate's barcode when the
// recognized text holds none.
func WithBarcodeFallback(enabled bool) Option {
	return func(p *Parser) { p.scanCodes = enabled }
}

// WithFetcher sets the downloader used by ParseURL.
func WithFetcher(f *document.Fetcher) Option {
	return func(p *Parser) { p.fetcher = f }
}

// WithLogger sets the logger.
func WithLogger(log logrus.FieldLogger) Option {
	return func(p *Parser) { p.log = log }
}

// NewParser creates a Parser. By default it reads the PDF text layer and
// falls back to the tesseract command, extracting with NewExtractor().
func NewParser(opts ...Option) *Parser {
	discard := logrus.New()
	discard.SetOutput(io.Discard)
	p := &Parser{log: discard}
	for _, opt := range opts {
		opt(p)
	}
	if p.engine == nil {
		p.engine = ocr.Chain(
			textlayer.New(p.log),
			tesseractcli.New(tesseractcli.Config{}, tesseractcli.WithLogger(p.log)),
		)
	}
	if p.extractor == nil {
		p.extractor = NewExtractor()
	}
	if p.scanCodes {
		p.barcode = NewBarcodeScanner(p.log)
	}
	if p.fetcher == nil {
		p.fetcher = document.NewFetcher(30*time.Second, document.DefaultMaxBytes)
	}
	return p
}

// SetDebug enables or disables debug mode. In debug mode the recognized text
// is logged.
func (p *Parser) SetDebug(debug bool) {
	p.debug = debug
}

// Engine returns the OCR engine.
func (p *Parser) Engine() ocr.Engine { return p.engine }

// Extractor returns the field extractor.
func (p *Parser) Extractor() *Extractor { return p.extractor }

// ParseFile parses the tax plate image or PDF at path.
func (p *Parser) ParseFile(ctx context.Context, path string) (*VergiLevhasi, error) {
	src, err := document.Open(path)
	if err != nil {
		return nil, err
	}
	return p.Parse(ctx, src)
}

// ParseURL downloads and parses a tax plate.
func (p *Parser) ParseURL(ctx context.Context, url string) (*VergiLevhasi, error) {
	src, err := p.fetcher.Fetch(ctx, url)
	if err != nil {
		return nil, err
	}
	return p.Parse(ctx, src)
}

// Parse recognizes src and extracts its fields. It fails only when OCR fails;
// fields that cannot be found hold the extractor's sentinel.
func (p *Parser) Parse(ctx context.Context, src *document.Source) (*VergiLevhasi, error) {
	start := time.Now()
	log := p.log.WithFields(logrus.Fields{"document": src.Name, "mime": src.MIME})

	doc, err := p.engine.Recognize(ctx, src)
	switch {
	case err == nil:
	case errors.Is(err, ocr.ErrEmpty) && ctx.Err() == nil:
		log.WithError(err).Warn("No text recognized")
		doc = &ocr.Document{}
	default:
		return nil, fmt.Errorf("failed to recognize %s: %w", src.Name, err)
	}

	vl := p.ParseLines(doc.Lines())
	vl.Document = doc
	vl.RawText = doc.Text()
	vl.Engine = doc.Engine()
	if vl.Engine == "" {
		vl.Engine = p.engine.Name()
	}

	if p.debug {
		log.Infof("Extracted Text:\n%s", vl.RawText)
	}

	if !p.extractor.Found(vl.VergiKimlikNo) && p.barcode != nil {
		id, err := p.barcode.ScanSource(src)
		if err != nil {
			log.WithError(err).Debug("Barcode fallback found no tax id")
		} else {
			log.WithField("vkn", id).Info("Tax id read from barcode")
			vl.VergiKimlikNo = id
			vl.VergiKimlikNoKaynagi = SourceBarcode
			vl.VergiKimlikNoGecerli = ValidTaxID(id)
		}
	}

	vl.Elapsed = time.Since(start)
	log.WithFields(logrus.Fields{
		"engine":  vl.Engine,
		"missing": strings.Join(vl.Missing(p.extractor.Sentinel()), ","),
		"elapsed": vl.Elapsed,
	}).Debug("Parsed tax plate")
	return vl, nil
}

// ParseLines extracts the fields from already recognized lines.
func (p *Parser) ParseLines(lines []string) *VergiLevhasi {
	fields := p.extractor.Extract(lines)
	vl := &VergiLevhasi{
		ID:        uuid.NewString(),
		Fields:    fields,
		Strategy:  p.extractor.Strategy().Name(),
		Lines:     lines,
		CreatedAt: time.Now().UTC(),
	}
	if vl.Lines == nil {
		vl.Lines = []string{}
	}
	if p.extractor.Found(fields.VergiKimlikNo) {
		vl.VergiKimlikNoKaynagi = SourceOCR
		vl.VergiKimlikNoGecerli = ValidTaxID(fields.VergiKimlikNo)
	}
	return vl
}
