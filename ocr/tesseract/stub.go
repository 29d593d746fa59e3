//go:build !ocr
// +build !ocr

package tesseract

import (
	"context"

	"github.com/alparslanahmed/vergilevhasi-ocr/document"
	"github.com/alparslanahmed/vergilevhasi-ocr/ocr"
)

// Compiled reports whether the engine is available in this build.
const Compiled = false

func (e *Engine) Recognize(ctx context.Context, src *document.Source) (*ocr.Document, error) {
	return nil, ErrNotCompiled
}
