// Package tesseract recognizes page images with the Tesseract library through
// gosseract. It needs cgo and libtesseract, so the engine is only compiled
// with the "ocr" build tag; without it every call fails with ErrNotCompiled.
package tesseract

import (
	"fmt"
	"io"

	"github.com/sirupsen/logrus"

	"github.com/alparslanahmed/vergilevhasi-ocr/ocr"
)

// Name of the engine.
const Name = "tesseract"

// ErrNotCompiled is returned when the binary was built without the "ocr" tag.
// It wraps ocr.ErrUnsupported so engine chains fall through to the next engine.
var ErrNotCompiled = fmt.Errorf("tesseract support not compiled in, build with -tags ocr: %w", ocr.ErrUnsupported)

// Config selects the trained languages and page segmentation mode.
type Config struct {
	Languages []string
	// PSM is Tesseract's page segmentation mode; 0 keeps the library default.
	PSM int
	// TessdataPrefix overrides the directory holding *.traineddata.
	TessdataPrefix string
}

// DefaultConfig reads Turkish with English as a fallback, treating the page as
// a single uniform block of text.
var DefaultConfig = Config{
	Languages: []string{"tur", "eng"},
	PSM:       6,
}

// Engine runs gosseract on every page of a source.
type Engine struct {
	cfg Config
	log logrus.FieldLogger
}

// New creates an engine. A nil logger discards output.
func New(cfg Config, log logrus.FieldLogger) *Engine {
	if len(cfg.Languages) == 0 {
		cfg.Languages = DefaultConfig.Languages
	}
	if log == nil {
		l := logrus.New()
		l.SetOutput(io.Discard)
		log = l
	}
	return &Engine{cfg: cfg, log: log.WithField("engine", Name)}
}

func (e *Engine) Name() string { return Name }
