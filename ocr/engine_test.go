package ocr

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/alparslanahmed/vergilevhasi-ocr/document"
)

type fakeEngine struct {
	name   string
	doc    *Document
	err    error
	calls  atomic.Int32
	closed bool
}

func (f *fakeEngine) Name() string { return f.name }

func (f *fakeEngine) Recognize(ctx context.Context, src *document.Source) (*Document, error) {
	f.calls.Add(1)
	return f.doc, f.err
}

func (f *fakeEngine) Close() error {
	f.closed = true
	return nil
}

func oneWord(v string) *Document {
	return &Document{Pages: []Page{{Blocks: []Block{{Lines: []Line{{Words: []Word{{Value: v}}}}}}}}}
}

func TestChain(t *testing.T) {
	ctx := context.Background()
	boom := errors.New("boom")

	tests := []struct {
		name       string
		engines    []*fakeEngine
		wantWord   string
		wantEngine string
		wantErr    error
	}{
		{
			name: "first wins",
			engines: []*fakeEngine{
				{name: "a", doc: oneWord("A")},
				{name: "b", doc: oneWord("B")},
			},
			wantWord:   "A",
			wantEngine: "a",
		},
		{
			name: "unsupported and empty are skipped",
			engines: []*fakeEngine{
				{name: "a", err: ErrUnsupported},
				{name: "b", doc: &Document{}},
				{name: "c", doc: oneWord("C")},
			},
			wantWord:   "C",
			wantEngine: "c",
		},
		{
			name: "failures are reported without skipped engines",
			engines: []*fakeEngine{
				{name: "a", err: ErrUnsupported},
				{name: "b", err: boom},
				{name: "c", err: ErrEmpty},
			},
			wantErr: boom,
		},
		{
			name: "empty wins over unsupported",
			engines: []*fakeEngine{
				{name: "a", err: ErrUnsupported},
				{name: "b", doc: &Document{}},
			},
			wantErr: ErrEmpty,
		},
		{
			name: "no engine reads the source",
			engines: []*fakeEngine{
				{name: "a", err: ErrUnsupported},
				{name: "b", err: ErrUnsupported},
			},
			wantErr: ErrUnsupported,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			engines := make([]Engine, len(tt.engines))
			for i, e := range tt.engines {
				engines[i] = e
			}
			doc, err := Chain(engines...).Recognize(ctx, nil)
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Errorf("Recognize() error = %v, want %v", err, tt.wantErr)
				}
				for _, skipped := range []error{ErrUnsupported, ErrEmpty} {
					if skipped != tt.wantErr && errors.Is(err, skipped) {
						t.Errorf("Recognize() error = %v also reports %v", err, skipped)
					}
				}
				return
			}
			if err != nil {
				t.Fatalf("Recognize() error = %v", err)
			}
			if got := doc.Words(); len(got) != 1 || got[0] != tt.wantWord {
				t.Errorf("Words() = %q, want %q", got, tt.wantWord)
			}
			if doc.Engine() != tt.wantEngine {
				t.Errorf("Engine() = %q, want %q", doc.Engine(), tt.wantEngine)
			}
		})
	}
}

func TestChainStopsOnCanceledContext(t *testing.T) {
	a := &fakeEngine{name: "a", doc: oneWord("A")}
	b := &fakeEngine{name: "b", doc: oneWord("B")}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if _, err := Chain(a, b).Recognize(ctx, nil); !errors.Is(err, context.Canceled) {
		t.Fatalf("Recognize() error = %v, want context.Canceled", err)
	}
	if a.calls.Load() != 0 {
		t.Error("engine called after cancellation")
	}
}

func TestChainNameAndClose(t *testing.T) {
	a := &fakeEngine{name: "textlayer"}
	b := &fakeEngine{name: "tesseract"}
	c := Chain(a, b)
	if c.Name() != "textlayer,tesseract" {
		t.Errorf("Name() = %q", c.Name())
	}
	if Chain(a) != Engine(a) {
		t.Error("Chain of one engine should return it unchanged")
	}
	if err := c.(interface{ Close() error }).Close(); err != nil {
		t.Fatal(err)
	}
	if !a.closed || !b.closed {
		t.Error("Close() did not close every engine")
	}
}

func TestLazy(t *testing.T) {
	var created atomic.Int32
	inner := &fakeEngine{name: "tesseract", doc: oneWord("A")}
	e := Lazy("tesseract", func() (Engine, error) {
		created.Add(1)
		return inner, nil
	})

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := e.Recognize(context.Background(), nil); err != nil {
				t.Error(err)
			}
		}()
	}
	wg.Wait()

	if created.Load() != 1 {
		t.Errorf("factory called %d times, want 1", created.Load())
	}
	if inner.calls.Load() != 8 {
		t.Errorf("engine called %d times, want 8", inner.calls.Load())
	}
}

func TestLazyInitError(t *testing.T) {
	initErr := errors.New("tessdata not found")
	var created int
	e := Lazy("tesseract", func() (Engine, error) {
		created++
		return nil, initErr
	})

	for i := 0; i < 2; i++ {
		if _, err := e.Recognize(context.Background(), nil); !errors.Is(err, initErr) {
			t.Fatalf("Recognize() error = %v, want %v", err, initErr)
		}
	}
	if created != 1 {
		t.Errorf("factory called %d times, want 1", created)
	}
}
