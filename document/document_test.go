package document

import (
	"bytes"
	"context"
	"errors"
	"image"
	"image/color"
	"image/png"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func testPNG(t *testing.T, w, h int) []byte {
	t.Helper()
	img := image.NewGray(image.Rect(0, 0, w, h))
	for x := 0; x < w; x++ {
		img.SetGray(x, h/2, color.Gray{Y: 255})
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatalf("encode: %v", err)
	}
	return buf.Bytes()
}

func TestNewSource(t *testing.T) {
	tests := []struct {
		name    string
		data    []byte
		want    string
		wantErr error
	}{
		{name: "png", data: testPNG(t, 4, 4), want: MIMEPNG},
		{name: "pdf", data: []byte("%PDF-1.4\n%\xe2\xe3\xcf\xd3\n"), want: MIMEPDF},
		{name: "text", data: []byte("VERGİ DAİRESİ"), wantErr: ErrUnsupportedType},
		{name: "empty", data: nil, wantErr: ErrEmpty},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			src, err := NewSource(tt.name, tt.data)
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Fatalf("NewSource() error = %v, want %v", err, tt.wantErr)
				}
				return
			}
			if err != nil {
				t.Fatalf("NewSource() error = %v", err)
			}
			if src.MIME != tt.want {
				t.Errorf("MIME = %q, want %q", src.MIME, tt.want)
			}
		})
	}
}

func TestSourceKind(t *testing.T) {
	src, err := NewSource("plate.png", testPNG(t, 4, 4))
	if err != nil {
		t.Fatal(err)
	}
	if src.IsPDF() || !src.IsImage() {
		t.Errorf("png: IsPDF=%v IsImage=%v", src.IsPDF(), src.IsImage())
	}
	if len(src.Digest()) != 64 {
		t.Errorf("Digest() = %q, want 64 hex chars", src.Digest())
	}
}

func TestReadSourceLimit(t *testing.T) {
	data := testPNG(t, 32, 32)

	if _, err := ReadSource("ok.png", bytes.NewReader(data), int64(len(data))); err != nil {
		t.Fatalf("ReadSource() at limit error = %v", err)
	}
	_, err := ReadSource("big.png", bytes.NewReader(data), int64(len(data)-1))
	if !errors.Is(err, ErrTooLarge) {
		t.Fatalf("ReadSource() over limit error = %v, want ErrTooLarge", err)
	}
}

func TestPages(t *testing.T) {
	src, err := NewSource("plate.png", testPNG(t, 40, 20))
	if err != nil {
		t.Fatal(err)
	}
	pages, err := src.Pages()
	if err != nil {
		t.Fatalf("Pages() error = %v", err)
	}
	if len(pages) != 1 {
		t.Fatalf("len(Pages()) = %d, want 1", len(pages))
	}
	if b := pages[0].Bounds(); b.Dx() != 40 || b.Dy() != 20 {
		t.Errorf("page bounds = %v", b)
	}

	images, err := src.PageImages()
	if err != nil {
		t.Fatalf("PageImages() error = %v", err)
	}
	if len(images) != 1 || !bytes.Equal(images[0], src.Data) {
		t.Error("PageImages() should return PNG sources unchanged")
	}
}

func TestUpscaleAndCrop(t *testing.T) {
	img := image.NewGray(image.Rect(0, 0, 10, 5))

	if !NeedsUpscale(img, 20, 5) {
		t.Error("NeedsUpscale() = false for narrow image")
	}
	if NeedsUpscale(img, 10, 5) {
		t.Error("NeedsUpscale() = true for large enough image")
	}

	up := Upscale(img, 3)
	if b := up.Bounds(); b.Dx() != 30 || b.Dy() != 15 {
		t.Errorf("Upscale() bounds = %v, want 30x15", b)
	}
	if Upscale(img, 1) != image.Image(img) {
		t.Error("Upscale() with factor 1 should return the input")
	}

	c := Crop(img, image.Rect(5, 0, 20, 5))
	if c == nil || c.Bounds().Dx() != 5 {
		t.Errorf("Crop() = %v, want 5 pixels wide", c)
	}
	if Crop(img, image.Rect(50, 50, 60, 60)) != nil {
		t.Error("Crop() outside the image should be nil")
	}
}

func TestFetcher(t *testing.T) {
	data := testPNG(t, 8, 8)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/levha.png":
			w.Write(data)
		default:
			http.NotFound(w, r)
		}
	}))
	defer srv.Close()

	f := NewFetcher(5*time.Second, 1<<20)
	ctx := context.Background()

	src, err := f.Fetch(ctx, srv.URL+"/levha.png")
	if err != nil {
		t.Fatalf("Fetch() error = %v", err)
	}
	if src.Name != "levha.png" || src.MIME != MIMEPNG {
		t.Errorf("Fetch() = %q %q", src.Name, src.MIME)
	}

	tests := []struct {
		name string
		url  string
	}{
		{"not found", srv.URL + "/missing.png"},
		{"bad scheme", "ftp://example.com/levha.png"},
		{"garbage", "://"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.Fetch(ctx, tt.url)
			if !errors.Is(err, ErrFetch) {
				t.Fatalf("Fetch(%q) error = %v, want ErrFetch", tt.url, err)
			}
		})
	}

	small := NewFetcher(5*time.Second, 10)
	if _, err := small.Fetch(ctx, srv.URL+"/levha.png"); !errors.Is(err, ErrTooLarge) {
		t.Errorf("Fetch() over limit error = %v, want ErrTooLarge", err)
	}
}

func TestFetcherTimeout(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-time.After(2 * time.Second):
		case <-r.Context().Done():
		}
	}))
	defer srv.Close()

	t.Run("context deadline", func(t *testing.T) {
		ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
		defer cancel()
		_, err := NewFetcher(0, 1<<20).Fetch(ctx, srv.URL+"/levha.png")
		if !errors.Is(err, ErrFetch) || !errors.Is(err, context.DeadlineExceeded) {
			t.Fatalf("Fetch() error = %v, want ErrFetch wrapping %v", err, context.DeadlineExceeded)
		}
	})

	t.Run("client timeout", func(t *testing.T) {
		_, err := NewFetcher(50*time.Millisecond, 1<<20).Fetch(context.Background(), srv.URL+"/levha.png")
		var terr interface{ Timeout() bool }
		if !errors.Is(err, ErrFetch) || !errors.As(err, &terr) || !terr.Timeout() {
			t.Fatalf("Fetch() error = %v, want ErrFetch wrapping a timeout", err)
		}
	})
}
