// Package remote sends documents to a deep-learning OCR service over HTTP.
// The service receives the file as multipart form field "file" and answers
// with the OCR export JSON ({"pages": [...]}), which is kept verbatim.
package remote

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"time"

	"github.com/alparslanahmed/vergilevhasi-ocr/document"
	"github.com/alparslanahmed/vergilevhasi-ocr/ocr"
)

// Name of the engine.
const Name = "remote"

// maxResponseBytes bounds the OCR export read from the service.
const maxResponseBytes = 64 << 20

// Engine posts documents to URL.
type Engine struct {
	url    string
	client *http.Client
}

// New creates an engine posting to url with the given request timeout.
func New(url string, timeout time.Duration) *Engine {
	return &Engine{url: url, client: &http.Client{Timeout: timeout}}
}

// NewWithClient creates an engine using client.
func NewWithClient(url string, client *http.Client) *Engine {
	return &Engine{url: url, client: client}
}

func (e *Engine) Name() string { return Name }

func (e *Engine) Recognize(ctx context.Context, src *document.Source) (*ocr.Document, error) {
	body, contentType, err := multipartBody(src)
	if err != nil {
		return nil, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, e.url, body)
	if err != nil {
		return nil, fmt.Errorf("failed to create OCR request: %w", err)
	}
	req.Header.Set("Content-Type", contentType)
	req.Header.Set("Accept", "application/json")

	resp, err := e.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("OCR service request failed: %w", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return nil, fmt.Errorf("failed to read OCR response: %w", err)
	}
	switch resp.StatusCode {
	case http.StatusOK:
	case http.StatusUnsupportedMediaType:
		return nil, ocr.ErrUnsupported
	default:
		return nil, fmt.Errorf("OCR service answered %s: %s", resp.Status, bytes.TrimSpace(data))
	}

	doc, err := ocr.ParseDocument(data)
	if err != nil {
		return nil, err
	}
	if doc.Empty() {
		return nil, ocr.ErrEmpty
	}
	doc.SetEngine(Name)
	return doc, nil
}

func multipartBody(src *document.Source) (io.Reader, string, error) {
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)

	h := make(textproto.MIMEHeader)
	h.Set("Content-Disposition", fmt.Sprintf(`form-data; name="file"; filename=%q`, src.Name))
	h.Set("Content-Type", src.MIME)
	part, err := w.CreatePart(h)
	if err != nil {
		return nil, "", fmt.Errorf("failed to create multipart body: %w", err)
	}
	if _, err := part.Write(src.Data); err != nil {
		return nil, "", fmt.Errorf("failed to write multipart body: %w", err)
	}
	if err := w.Close(); err != nil {
		return nil, "", fmt.Errorf("failed to close multipart body: %w", err)
	}
	return &buf, w.FormDataContentType(), nil
}
