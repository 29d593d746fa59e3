// Package ocr defines the engine contract used to recognize tax plates and the
// document model engines return. Engines live in subpackages: textlayer reads
// the text layer of generated PDFs, tesseract and tesseractcli run Tesseract,
// and remote calls a deep-learning OCR service over HTTP.
package ocr

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/alparslanahmed/vergilevhasi-ocr/document"
)

var (
	// ErrUnsupported is returned by engines that cannot read a source's type.
	ErrUnsupported = errors.New("source type not supported by engine")
	// ErrEmpty is returned when recognition finished without any words.
	ErrEmpty = errors.New("no text recognized")
)

// Engine recognizes the text of a document.
type Engine interface {
	Name() string
	Recognize(ctx context.Context, src *document.Source) (*Document, error)
}

type chain struct {
	engines []Engine
}

// Chain returns an engine that tries engines in order and returns the first
// non-empty document. Engines failing with ErrUnsupported or ErrEmpty are
// skipped. When no engine succeeds, the other failures are reported together;
// without any, the result is ErrEmpty if an engine read the source and
// ErrUnsupported if none could.
func Chain(engines ...Engine) Engine {
	if len(engines) == 1 {
		return engines[0]
	}
	return &chain{engines: engines}
}

func (c *chain) Name() string {
	names := make([]string, len(c.engines))
	for i, e := range c.engines {
		names[i] = e.Name()
	}
	return strings.Join(names, ",")
}

func (c *chain) Recognize(ctx context.Context, src *document.Source) (*Document, error) {
	var failures []error
	empty := false
	for _, e := range c.engines {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		doc, err := e.Recognize(ctx, src)
		if err == nil && doc.Empty() {
			err = ErrEmpty
		}
		switch {
		case err == nil:
			if doc.Engine() == "" {
				doc.SetEngine(e.Name())
			}
			return doc, nil
		case errors.Is(err, ErrEmpty):
			empty = true
		case errors.Is(err, ErrUnsupported):
		default:
			failures = append(failures, fmt.Errorf("%s: %w", e.Name(), err))
		}
	}
	switch {
	case len(failures) > 0:
		return nil, errors.Join(failures...)
	case empty:
		return nil, ErrEmpty
	default:
		return nil, ErrUnsupported
	}
}

func (c *chain) Close() error {
	var errs []error
	for _, e := range c.engines {
		if cl, ok := e.(io.Closer); ok {
			errs = append(errs, cl.Close())
		}
	}
	return errors.Join(errs...)
}

type lazy struct {
	name    string
	factory func() (Engine, error)

	once   sync.Once
	engine Engine
	err    error
}

// Lazy defers creating an engine until its first use. The engine is created
// once and shared; a creation error is returned to every later caller.
func Lazy(name string, factory func() (Engine, error)) Engine {
	return &lazy{name: name, factory: factory}
}

func (l *lazy) Name() string { return l.name }

func (l *lazy) get() (Engine, error) {
	l.once.Do(func() {
		l.engine, l.err = l.factory()
	})
	if l.err != nil {
		return nil, fmt.Errorf("failed to initialize %s engine: %w", l.name, l.err)
	}
	return l.engine, nil
}

func (l *lazy) Recognize(ctx context.Context, src *document.Source) (*Document, error) {
	e, err := l.get()
	if err != nil {
		return nil, err
	}
	return e.Recognize(ctx, src)
}

// Close closes the engine if it was created.
func (l *lazy) Close() error {
	l.once.Do(func() {
		l.err = errors.New("engine closed before use")
	})
	if cl, ok := l.engine.(io.Closer); ok {
		return cl.Close()
	}
	return nil
}
