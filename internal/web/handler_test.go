package web

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-chi/chi/v5"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alparslanahmed/vergilevhasi-ocr"
	"github.com/alparslanahmed/vergilevhasi-ocr/document"
	"github.com/alparslanahmed/vergilevhasi-ocr/internal/cache"
	"github.com/alparslanahmed/vergilevhasi-ocr/internal/observability"
	"github.com/alparslanahmed/vergilevhasi-ocr/internal/testimage"
	"github.com/alparslanahmed/vergilevhasi-ocr/ocr"
	"github.com/alparslanahmed/vergilevhasi-ocr/ocr/tesseractcli"
)

var plateLines = []string{
	"VERGİ DAİRESİ", "KADIKÖY",
	"TİCARET ÜNVANI", "ACME LTD",
	"VERGİ KİMLİK NO", "1234567890",
	"TC KİMLİK NO", "98765432100",
}

type fakeEngine struct {
	lines []string
	err   error
	calls atomic.Int32
}

func (e *fakeEngine) Name() string { return "fake" }

func (e *fakeEngine) Recognize(ctx context.Context, src *document.Source) (*ocr.Document, error) {
	e.calls.Add(1)
	if e.err != nil {
		return nil, e.err
	}
	block := ocr.Block{}
	for _, l := range e.lines {
		var words []ocr.Word
		for _, w := range strings.Fields(l) {
			words = append(words, ocr.Word{Value: w, Confidence: 1})
		}
		block.Lines = append(block.Lines, ocr.Line{Words: words})
	}
	return &ocr.Document{Pages: []ocr.Page{{Dimensions: [2]int{100, 100}, Blocks: []ocr.Block{block}}}}, nil
}

func newRouter(t *testing.T, engine ocr.Engine, p Params) http.Handler {
	t.Helper()
	templates, err := NewEngine()
	require.NoError(t, err)
	p.Parser = vergilevhasi.NewParser(vergilevhasi.WithEngine(engine))
	p.Templates = templates
	r := chi.NewRouter()
	NewHandler(p).MountRoutes(r)
	return r
}

func uploadRequest(t *testing.T, path, filename string, data []byte, fields map[string]string) *http.Request {
	t.Helper()
	var body bytes.Buffer
	w := multipart.NewWriter(&body)
	if data != nil {
		part, err := w.CreateFormFile("file", filename)
		require.NoError(t, err)
		_, err = part.Write(data)
		require.NoError(t, err)
	}
	for k, v := range fields {
		require.NoError(t, w.WriteField(k, v))
	}
	require.NoError(t, w.Close())
	req := httptest.NewRequest(http.MethodPost, path, &body)
	req.Header.Set("Content-Type", w.FormDataContentType())
	return req
}

func formRequest(path string, values url.Values) *http.Request {
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(values.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	return req
}

func decode(t *testing.T, rr *httptest.ResponseRecorder, v any) {
	t.Helper()
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), v), rr.Body.String())
}

func TestShowForm(t *testing.T) {
	router := newRouter(t, &fakeEngine{}, Params{})
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/", nil))

	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Body.String(), `name="file"`)
	assert.Contains(t, rr.Body.String(), `name="url"`)
}

func TestAPIExtractUpload(t *testing.T) {
	router := newRouter(t, &fakeEngine{lines: plateLines}, Params{})
	png := testimage.PNG(t, []string{"VERGI LEVHASI"}, 1)

	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, uploadRequest(t, "/api/v1/extract?document=1", "levha.png", png, nil))
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())

	var got Result
	decode(t, rr, &got)
	assert.Equal(t, "ACME LTD", got.TicaretUnvani)
	assert.Equal(t, "KADIKÖY", got.VergiDairesi)
	assert.Equal(t, "1234567890", got.VergiKimlikNo)
	assert.True(t, got.VergiKimlikNoGecerli)
	assert.Equal(t, vergilevhasi.SourceOCR, got.VergiKimlikNoKaynagi)
	assert.Empty(t, got.Missing)
	assert.Equal(t, "fake", got.Engine)
	assert.Equal(t, "label", got.Strategy)
	assert.False(t, got.Cached)
	assert.Equal(t, plateLines, got.Lines)
	require.NotNil(t, got.Document)
	assert.Equal(t, plateLines, got.Document.Lines())

	// the document is only included on request
	rr = httptest.NewRecorder()
	router.ServeHTTP(rr, uploadRequest(t, "/api/v1/extract", "levha.png", png, nil))
	require.Equal(t, http.StatusOK, rr.Code)
	assert.NotContains(t, rr.Body.String(), `"document"`)
}

func TestAPIExtractNothingRecognized(t *testing.T) {
	router := newRouter(t, &fakeEngine{err: ocr.ErrEmpty}, Params{})

	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, uploadRequest(t, "/api/v1/extract", "levha.png", testimage.PNG(t, []string{"X"}, 1), nil))
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())

	var got Result
	decode(t, rr, &got)
	assert.Equal(t, vergilevhasi.NotFound, got.TicaretUnvani)
	assert.Equal(t, vergilevhasi.NotFound, got.VergiDairesi)
	assert.Equal(t, vergilevhasi.NotFound, got.VergiKimlikNo)
	assert.Equal(t, []string{vergilevhasi.FieldTicaretUnvani, vergilevhasi.FieldVergiDairesi, vergilevhasi.FieldVergiKimlikNo}, got.Missing)
}

func TestAPIExtractErrors(t *testing.T) {
	png := testimage.PNG(t, []string{"X"}, 1)

	tests := []struct {
		name       string
		engine     *fakeEngine
		maxUpload  int64
		req        func(t *testing.T) *http.Request
		wantStatus int
		wantField  string
	}{
		{
			name:       "neither file nor url",
			engine:     &fakeEngine{lines: plateLines},
			req:        func(t *testing.T) *http.Request { return formRequest("/api/v1/extract", url.Values{}) },
			wantStatus: http.StatusBadRequest,
			wantField:  "URL",
		},
		{
			name:   "url without http scheme",
			engine: &fakeEngine{lines: plateLines},
			req: func(t *testing.T) *http.Request {
				return formRequest("/api/v1/extract", url.Values{"url": {"ftp://example.com/levha.png"}})
			},
			wantStatus: http.StatusBadRequest,
			wantField:  "URL",
		},
		{
			name:   "unsupported type",
			engine: &fakeEngine{lines: plateLines},
			req: func(t *testing.T) *http.Request {
				return uploadRequest(t, "/api/v1/extract", "levha.txt", []byte("VERGİ DAİRESİ KADIKÖY"), nil)
			},
			wantStatus: http.StatusUnsupportedMediaType,
		},
		{
			name:      "too large",
			engine:    &fakeEngine{lines: plateLines},
			maxUpload: 64,
			req: func(t *testing.T) *http.Request {
				return uploadRequest(t, "/api/v1/extract", "levha.png", png, nil)
			},
			wantStatus: http.StatusRequestEntityTooLarge,
		},
		{
			name:   "ocr failure",
			engine: &fakeEngine{err: errors.New("tesseract exited with 1")},
			req: func(t *testing.T) *http.Request {
				return uploadRequest(t, "/api/v1/extract", "levha.png", png, nil)
			},
			wantStatus: http.StatusBadGateway,
		},
		{
			name:   "no engine reads the type",
			engine: &fakeEngine{err: ocr.ErrUnsupported},
			req: func(t *testing.T) *http.Request {
				return uploadRequest(t, "/api/v1/extract", "levha.png", png, nil)
			},
			wantStatus: http.StatusUnsupportedMediaType,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			router := newRouter(t, tt.engine, Params{MaxUploadBytes: tt.maxUpload})
			rr := httptest.NewRecorder()
			router.ServeHTTP(rr, tt.req(t))
			require.Equal(t, tt.wantStatus, rr.Code, rr.Body.String())

			var got apiError
			decode(t, rr, &got)
			assert.NotEmpty(t, got.Error)
			if tt.wantField != "" {
				assert.Contains(t, got.Fields, tt.wantField)
			}
		})
	}
}

func TestAPIExtractURL(t *testing.T) {
	png := testimage.PNG(t, []string{"X"}, 1)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/levha.png" {
			http.NotFound(w, r)
			return
		}
		w.Write(png)
	}))
	defer srv.Close()

	router := newRouter(t, &fakeEngine{lines: plateLines}, Params{})

	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, formRequest("/api/v1/extract", url.Values{"url": {srv.URL + "/levha.png"}}))
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	var got Result
	decode(t, rr, &got)
	assert.Equal(t, "KADIKÖY", got.VergiDairesi)

	rr = httptest.NewRecorder()
	router.ServeHTTP(rr, formRequest("/api/v1/extract", url.Values{"url": {srv.URL + "/missing.png"}}))
	assert.Equal(t, http.StatusBadGateway, rr.Code)
}

func TestExtractPage(t *testing.T) {
	router := newRouter(t, &fakeEngine{lines: plateLines}, Params{ShowDownload: true})

	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, uploadRequest(t, "/extract", "levha.png", testimage.PNG(t, []string{"X"}, 1), nil))
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())

	body := rr.Body.String()
	assert.Contains(t, body, "Ticari Ünvan: ACME LTD")
	assert.Contains(t, body, "Vergi Dairesi: KADIKÖY")
	assert.Contains(t, body, "Vergi Kimlik No: 1234567890")
	assert.Contains(t, body, "TC KİMLİK NO")
	assert.Contains(t, body, `href="data:application/json;charset=utf-8;base64,`)
	assert.Contains(t, body, `download="data.json"`)
}

func TestExtractPageErrors(t *testing.T) {
	router := newRouter(t, &fakeEngine{lines: plateLines}, Params{})

	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, formRequest("/extract", url.Values{"url": {"not a url"}}))
	assert.Equal(t, http.StatusBadRequest, rr.Code)
	assert.Contains(t, rr.Body.String(), "http or https")
	assert.Contains(t, rr.Body.String(), `value="not a url"`)
	assert.NotContains(t, rr.Body.String(), "data:application/json")
}

func TestExtractUsesCache(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer client.Close()

	engine := &fakeEngine{lines: plateLines}
	metrics := observability.NewMetrics()
	router := newRouter(t, engine, Params{
		Cache:         cache.NewCache(client, time.Minute),
		Metrics:       metrics,
		CacheSettings: []string{"fake", "label"},
	})
	png := testimage.PNG(t, []string{"X"}, 1)

	for i, wantCached := range []bool{false, true} {
		rr := httptest.NewRecorder()
		router.ServeHTTP(rr, uploadRequest(t, "/api/v1/extract", "levha.png", png, nil))
		require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
		var got Result
		decode(t, rr, &got)
		assert.Equal(t, wantCached, got.Cached, fmt.Sprintf("request %d", i))
		assert.Equal(t, "ACME LTD", got.TicaretUnvani)
	}
	assert.EqualValues(t, 1, engine.calls.Load())

	src, err := document.NewSource("levha.png", png)
	require.NoError(t, err)
	assert.True(t, mr.Exists(cache.Key(src.Digest(), "fake", "label")))

	rr := httptest.NewRecorder()
	metrics.Handler().ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Contains(t, rr.Body.String(), `vergilevhasi_cache_lookups_total{result="hit"} 1`)
	assert.Contains(t, rr.Body.String(), `vergilevhasi_extractions_total{engine="fake",outcome="complete"} 1`)
}

// slowServer answers after delay or when the client gives up.
func slowServer(t *testing.T, delay time.Duration) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-time.After(delay):
			w.Write(testimage.PNG(t, []string{"X"}, 1))
		case <-r.Context().Done():
		}
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestAPIExtractURLTimeout(t *testing.T) {
	srv := slowServer(t, 2*time.Second)

	t.Run("fetch timeout", func(t *testing.T) {
		router := newRouter(t, &fakeEngine{lines: plateLines}, Params{
			Fetcher: document.NewFetcher(50*time.Millisecond, 0),
		})
		rr := httptest.NewRecorder()
		router.ServeHTTP(rr, formRequest("/api/v1/extract", url.Values{"url": {srv.URL + "/levha.png"}}))
		assert.Equal(t, http.StatusGatewayTimeout, rr.Code, rr.Body.String())
	})

	t.Run("request deadline", func(t *testing.T) {
		router := newRouter(t, &fakeEngine{lines: plateLines}, Params{})
		ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
		defer cancel()
		req := formRequest("/extract", url.Values{"url": {srv.URL + "/levha.png"}}).WithContext(ctx)
		rr := httptest.NewRecorder()
		router.ServeHTTP(rr, req)
		assert.Equal(t, http.StatusGatewayTimeout, rr.Code)
		assert.Contains(t, rr.Body.String(), "The URL took too long to download.")
	})
}

// stalledRunner stands in for a tesseract process that is still running
// when the request deadline passes.
type stalledRunner struct{}

func (stalledRunner) Run(ctx context.Context, stdin []byte, name string, args ...string) ([]byte, []byte, error) {
	<-ctx.Done()
	return nil, nil, errors.New("signal: killed")
}

func TestAPIExtractRecognitionDeadline(t *testing.T) {
	engine := ocr.Chain(tesseractcli.New(tesseractcli.Config{}, tesseractcli.WithRunner(stalledRunner{})))
	router := newRouter(t, engine, Params{})

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	req := uploadRequest(t, "/api/v1/extract", "levha.png", testimage.PNG(t, []string{"X"}, 1), nil).WithContext(ctx)
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)
	assert.Equal(t, http.StatusGatewayTimeout, rr.Code, rr.Body.String())
}

type timeoutError struct{}

func (timeoutError) Error() string   { return "i/o timeout" }
func (timeoutError) Timeout() bool   { return true }
func (timeoutError) Temporary() bool { return true }

func TestStatusFor(t *testing.T) {
	tests := []struct {
		err  error
		want int
	}{
		{nil, http.StatusOK},
		{document.ErrTooLarge, http.StatusRequestEntityTooLarge},
		{&http.MaxBytesError{Limit: 1}, http.StatusRequestEntityTooLarge},
		{fmt.Errorf("x: %w", document.ErrUnsupportedType), http.StatusUnsupportedMediaType},
		{fmt.Errorf("failed to recognize a: %w", ocr.ErrUnsupported), http.StatusUnsupportedMediaType},
		{&formError{}, http.StatusBadRequest},
		{requestError(errors.New("multipart: NextPart: EOF")), http.StatusBadRequest},
		{document.ErrEmpty, http.StatusBadRequest},
		{fmt.Errorf("%w: 404", document.ErrFetch), http.StatusBadGateway},
		{context.DeadlineExceeded, http.StatusGatewayTimeout},
		{fmt.Errorf("%w: %w", document.ErrFetch, context.DeadlineExceeded), http.StatusGatewayTimeout},
		{fmt.Errorf("%w: %w", document.ErrFetch, &url.Error{Op: "Get", URL: "http://x", Err: timeoutError{}}), http.StatusGatewayTimeout},
		{fmt.Errorf("%w: %w", document.ErrFetch, &url.Error{Op: "Get", URL: "http://x", Err: errors.New("connection refused")}), http.StatusBadGateway},
		{fmt.Errorf("failed to recognize a: %w", errors.Join(fmt.Errorf("tesseract-cli: page 0: tesseract: %w", context.DeadlineExceeded))), http.StatusGatewayTimeout},
		{errors.New("tesseract exited with 1"), http.StatusBadGateway},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, StatusFor(tt.err), "StatusFor(%v)", tt.err)
	}
}
