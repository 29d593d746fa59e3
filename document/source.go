// Package document reads the uploaded or downloaded file a tax plate is
// extracted from and decodes it into page images.
package document

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"image"
	"io"
	"os"
	"path/filepath"
	"sync"

	"github.com/gabriel-vasile/mimetype"
)

// Accepted content types.
const (
	MIMEPDF  = "application/pdf"
	MIMEJPEG = "image/jpeg"
	MIMEPNG  = "image/png"
	MIMEGIF  = "image/gif"
	MIMEBMP  = "image/bmp"
	MIMETIFF = "image/tiff"
	MIMEWEBP = "image/webp"
)

var acceptedTypes = []string{MIMEPDF, MIMEJPEG, MIMEPNG, MIMEGIF, MIMEBMP, MIMETIFF, MIMEWEBP}

// DefaultMaxBytes limits sources read without an explicit limit.
const DefaultMaxBytes = 20 << 20

var (
	ErrUnsupportedType = errors.New("unsupported document type")
	ErrTooLarge        = errors.New("document too large")
	ErrEmpty           = errors.New("empty document")
)

// Source is a document to recognize. Its content type is sniffed from the data,
// never taken from the file name.
type Source struct {
	Name string
	MIME string
	Data []byte

	once     sync.Once
	pages    []image.Image
	pagesErr error
}

// NewSource wraps data read from name. It returns ErrEmpty for no data and
// ErrUnsupportedType when the content is not a PDF or a supported image.
func NewSource(name string, data []byte) (*Source, error) {
	if len(data) == 0 {
		return nil, ErrEmpty
	}
	detected := mimetype.Detect(data)
	for _, t := range acceptedTypes {
		if detected.Is(t) {
			return &Source{Name: name, MIME: t, Data: data}, nil
		}
	}
	return nil, fmt.Errorf("%w: %s", ErrUnsupportedType, detected.String())
}

// ReadSource reads at most limit bytes from r. Longer input fails with
// ErrTooLarge. A limit of zero or less means DefaultMaxBytes.
func ReadSource(name string, r io.Reader, limit int64) (*Source, error) {
	if limit <= 0 {
		limit = DefaultMaxBytes
	}
	data, err := io.ReadAll(io.LimitReader(r, limit+1))
	if err != nil {
		return nil, fmt.Errorf("failed to read document: %w", err)
	}
	if int64(len(data)) > limit {
		return nil, fmt.Errorf("%w: more than %d bytes", ErrTooLarge, limit)
	}
	return NewSource(name, data)
}

// Open reads a document from disk.
func Open(path string) (*Source, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open file: %w", err)
	}
	defer file.Close()
	return ReadSource(filepath.Base(path), file, DefaultMaxBytes)
}

// IsPDF reports whether the source is a PDF.
func (s *Source) IsPDF() bool { return s.MIME == MIMEPDF }

// IsImage reports whether the source is a raster image.
func (s *Source) IsImage() bool { return s.MIME != "" && !s.IsPDF() }

// Digest is the hex SHA-256 of the data.
func (s *Source) Digest() string {
	sum := sha256.Sum256(s.Data)
	return hex.EncodeToString(sum[:])
}

// Pages decodes the source into page images. The result is computed once.
func (s *Source) Pages() ([]image.Image, error) {
	s.once.Do(func() {
		s.pages, s.pagesErr = decodePages(s)
	})
	return s.pages, s.pagesErr
}
