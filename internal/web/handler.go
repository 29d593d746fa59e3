// Package web serves the upload form, the result page and the JSON API.
package web

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"html/template"
	"io"
	"mime/multipart"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-playground/validator/v10"
	"github.com/sirupsen/logrus"

	"github.com/alparslanahmed/vergilevhasi-ocr"
	"github.com/alparslanahmed/vergilevhasi-ocr/document"
	"github.com/alparslanahmed/vergilevhasi-ocr/internal/cache"
	"github.com/alparslanahmed/vergilevhasi-ocr/internal/observability"
	"github.com/alparslanahmed/vergilevhasi-ocr/ocr"
)

// formOverhead is allowed on top of the upload limit for the other parts of
// the multipart body.
const formOverhead = 1 << 20

// Params groups the dependencies of a Handler.
type Params struct {
	Logger    logrus.FieldLogger
	Parser    *vergilevhasi.Parser
	Fetcher   *document.Fetcher
	Cache     *cache.Cache
	Metrics   *observability.Metrics
	Templates *Engine

	// MaxUploadBytes limits uploaded files; document.DefaultMaxBytes when zero.
	MaxUploadBytes int64
	// ShowDownload adds the OCR result JSON download link to result pages.
	ShowDownload bool
	// CacheSettings are appended to cache keys; they name the settings that
	// change results, such as the engine chain and extraction layout.
	CacheSettings []string
}

// Handler serves extraction requests.
type Handler struct {
	Params
	validator *validator.Validate
}

// NewHandler creates a Handler.
func NewHandler(p Params) *Handler {
	if p.Logger == nil {
		l := logrus.New()
		l.SetOutput(io.Discard)
		p.Logger = l
	}
	if p.MaxUploadBytes <= 0 {
		p.MaxUploadBytes = document.DefaultMaxBytes
	}
	if p.Fetcher == nil {
		p.Fetcher = document.NewFetcher(0, p.MaxUploadBytes)
	}
	return &Handler{Params: p, validator: validator.New()}
}

// MountRoutes registers the page and API routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/", h.showForm)
	r.Post("/extract", h.handleExtract)
	r.Post("/api/v1/extract", h.handleAPI)
}

type extractForm struct {
	URL     string `validate:"required_without=HasFile,omitempty,http_url"`
	HasFile bool
}

type pageData struct {
	Title    string
	Form     extractForm
	Errors   map[string]string
	Result   *vergilevhasi.VergiLevhasi
	Download template.URL
}

// Result is the JSON API response.
type Result struct {
	ID string `json:"id"`
	vergilevhasi.Fields
	VergiKimlikNoGecerli bool          `json:"vergi_kimlik_no_gecerli"`
	VergiKimlikNoKaynagi string        `json:"vergi_kimlik_no_kaynagi,omitempty"`
	Missing              []string      `json:"missing"`
	Engine               string        `json:"engine"`
	Strategy             string        `json:"strategy"`
	ElapsedMS            int64         `json:"elapsed_ms"`
	Cached               bool          `json:"cached"`
	Lines                []string      `json:"lines"`
	Document             *ocr.Document `json:"document,omitempty"`
}

type apiError struct {
	Error  string            `json:"error"`
	Fields map[string]string `json:"fields,omitempty"`
}

var (
	// errInvalidForm marks requests that fail form validation.
	errInvalidForm = errors.New("invalid form")
	// errBadRequest marks request bodies that cannot be read as a form.
	errBadRequest = errors.New("malformed request")
)

type formError struct {
	fields map[string]string
}

func (e *formError) Error() string { return errInvalidForm.Error() }
func (e *formError) Unwrap() error { return errInvalidForm }

func (h *Handler) showForm(w http.ResponseWriter, r *http.Request) {
	h.render(w, http.StatusOK, pageData{})
}

func (h *Handler) handleExtract(w http.ResponseWriter, r *http.Request) {
	form, result, _, err := h.extract(w, r)
	if err != nil {
		data := pageData{Form: form, Errors: map[string]string{"general": errorMessage(err)}}
		var fe *formError
		if errors.As(err, &fe) {
			data.Errors = fe.fields
		}
		h.render(w, StatusFor(err), data)
		return
	}

	data := pageData{Form: form, Result: result}
	if h.ShowDownload && result.Document != nil {
		uri, err := result.Document.DataURI()
		if err != nil {
			h.Logger.WithError(err).Warn("Failed to encode OCR result download")
		} else {
			// base64 data URI built from our own JSON export
			data.Download = template.URL(uri)
		}
	}
	h.render(w, http.StatusOK, data)
}

func (h *Handler) handleAPI(w http.ResponseWriter, r *http.Request) {
	_, result, cached, err := h.extract(w, r)
	if err != nil {
		body := apiError{Error: errorMessage(err)}
		var fe *formError
		if errors.As(err, &fe) {
			body.Fields = fe.fields
		}
		writeJSON(w, StatusFor(err), body)
		return
	}

	resp := Result{
		ID:                   result.ID,
		Fields:               result.Fields,
		VergiKimlikNoGecerli: result.VergiKimlikNoGecerli,
		VergiKimlikNoKaynagi: result.VergiKimlikNoKaynagi,
		Missing:              result.Missing(h.Parser.Extractor().Sentinel()),
		Engine:               result.Engine,
		Strategy:             result.Strategy,
		ElapsedMS:            result.Elapsed.Milliseconds(),
		Cached:               cached,
		Lines:                result.Lines,
	}
	if resp.Missing == nil {
		resp.Missing = []string{}
	}
	if r.URL.Query().Get("document") == "1" {
		resp.Document = result.Document
	}
	writeJSON(w, http.StatusOK, resp)
}

// extract reads the form, acquires the source and parses it, going through
// the cache when one is configured.
func (h *Handler) extract(w http.ResponseWriter, r *http.Request) (extractForm, *vergilevhasi.VergiLevhasi, bool, error) {
	log := h.Logger.WithField("request_id", middleware.GetReqID(r.Context()))

	form, src, err := h.readSource(w, r)
	if err != nil {
		log.WithError(err).Info("Rejected extraction request")
		return form, nil, false, err
	}

	key := cache.Key(src.Digest(), h.CacheSettings...)
	result, hit, err := h.Cache.Fetch(r.Context(), key, func(ctx context.Context) (*vergilevhasi.VergiLevhasi, error) {
		return h.Parser.Parse(ctx, src)
	})
	if h.Cache.Enabled() {
		h.Metrics.ObserveCache(hit)
	}
	if err != nil {
		h.Metrics.ObserveFailure(h.Parser.Engine().Name())
		log.WithError(err).WithField("document", src.Name).Error("Extraction failed")
		return form, nil, false, err
	}
	if !hit {
		h.Metrics.ObserveExtraction(result.Engine, result.Missing(h.Parser.Extractor().Sentinel()), vergilevhasi.FieldCount, result.Elapsed)
	}
	log.WithFields(logrus.Fields{
		"document": src.Name,
		"engine":   result.Engine,
		"cached":   hit,
		"elapsed":  result.Elapsed,
	}).Info("Extracted tax plate")
	return form, result, hit, nil
}

// readSource validates the form and returns the uploaded file, or the
// document downloaded from the submitted URL.
func (h *Handler) readSource(w http.ResponseWriter, r *http.Request) (extractForm, *document.Source, error) {
	var form extractForm
	r.Body = http.MaxBytesReader(w, r.Body, h.MaxUploadBytes+formOverhead)
	if err := r.ParseMultipartForm(formOverhead); err != nil && !errors.Is(err, http.ErrNotMultipart) {
		return form, nil, requestError(err)
	}
	form.URL = strings.TrimSpace(r.FormValue("url"))

	file, header, err := r.FormFile("file")
	switch {
	case err == nil:
		defer file.Close()
		form.HasFile = true
	case errors.Is(err, http.ErrMissingFile), errors.Is(err, http.ErrNotMultipart):
	default:
		return form, nil, requestError(err)
	}

	if err := h.validator.Struct(form); err != nil {
		fields := make(map[string]string)
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			for _, fieldErr := range verrs {
				fields[fieldErr.Field()] = fieldMessage(fieldErr)
			}
		} else {
			fields["general"] = err.Error()
		}
		return form, nil, &formError{fields: fields}
	}

	if form.HasFile {
		src, err := document.ReadSource(header.Filename, file, h.MaxUploadBytes)
		return form, src, err
	}
	src, err := h.Fetcher.Fetch(r.Context(), form.URL)
	return form, src, err
}

func fieldMessage(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required_without":
		return "Choose a file or type a URL."
	case "http_url":
		return "The URL must be an http or https address."
	default:
		return fe.Error()
	}
}

// StatusFor maps extraction errors to HTTP status codes. Fields that could not
// be found are not errors; they are answered with 200 and the sentinel.
func StatusFor(err error) int {
	var maxErr *http.MaxBytesError
	switch {
	case err == nil:
		return http.StatusOK
	case errors.As(err, &maxErr), errors.Is(err, document.ErrTooLarge), errors.Is(err, multipart.ErrMessageTooLarge):
		return http.StatusRequestEntityTooLarge
	case errors.Is(err, document.ErrUnsupportedType), errors.Is(err, ocr.ErrUnsupported):
		return http.StatusUnsupportedMediaType
	case errors.Is(err, errInvalidForm), errors.Is(err, errBadRequest), errors.Is(err, document.ErrEmpty):
		return http.StatusBadRequest
	case isTimeout(err):
		return http.StatusGatewayTimeout
	default:
		return http.StatusBadGateway
	}
}

// isTimeout reports whether err comes from a context deadline or a network
// timeout, including those of URL downloads.
func isTimeout(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var terr interface{ Timeout() bool }
	return errors.As(err, &terr) && terr.Timeout()
}

// requestError keeps body size errors and marks everything else as a
// malformed request.
func requestError(err error) error {
	var maxErr *http.MaxBytesError
	if errors.As(err, &maxErr) || errors.Is(err, multipart.ErrMessageTooLarge) {
		return err
	}
	return fmt.Errorf("%w: %v", errBadRequest, err)
}

func errorMessage(err error) string {
	switch StatusFor(err) {
	case http.StatusRequestEntityTooLarge:
		return "The document is too large."
	case http.StatusUnsupportedMediaType:
		return "Only JPEG, PNG and PDF documents (and GIF, BMP, TIFF, WebP images) are supported."
	case http.StatusBadRequest:
		if errors.Is(err, document.ErrEmpty) {
			return "The document is empty."
		}
		return "The request could not be read."
	case http.StatusGatewayTimeout:
		if errors.Is(err, document.ErrFetch) {
			return "The URL took too long to download."
		}
		return "Recognition took too long."
	default:
		if errors.Is(err, document.ErrFetch) {
			return "The URL could not be downloaded."
		}
		return "Text recognition failed."
	}
}

func (h *Handler) render(w http.ResponseWriter, status int, data pageData) {
	data.Title = "Vergi Levhası OCR"
	if err := h.Templates.Render(w, status, "index.html", data); err != nil {
		h.Logger.WithError(err).Error("Failed to render page")
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(false)
	_ = enc.Encode(v)
}
