// Package tesseractcli runs the tesseract command line program. It needs no
// cgo, only a tesseract binary with the trained languages installed.
package tesseractcli

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	"io"
	"os/exec"
	"strconv"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/alparslanahmed/vergilevhasi-ocr/document"
	"github.com/alparslanahmed/vergilevhasi-ocr/ocr"
)

// Name of the engine.
const Name = "tesseract-cli"

// Config for the tesseract invocation.
type Config struct {
	// Path of the tesseract binary; "tesseract" is looked up in PATH.
	Path        string
	Languages   []string
	PSM         int
	TessdataDir string
}

// Runner executes a command with stdin and returns its output.
type Runner interface {
	Run(ctx context.Context, stdin []byte, name string, args ...string) (stdout, stderr []byte, err error)
}

// waitDelay is how long a killed tesseract may keep its output pipes open.
const waitDelay = 2 * time.Second

type execRunner struct{}

func (execRunner) Run(ctx context.Context, stdin []byte, name string, args ...string) ([]byte, []byte, error) {
	var stdout, stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, name, args...)
	cmd.Stdin = bytes.NewReader(stdin)
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	// bounds the wait for pipes held open by children after a context kill
	cmd.WaitDelay = waitDelay
	err := cmd.Run()
	return stdout.Bytes(), stderr.Bytes(), err
}

// Engine feeds each page image to tesseract on stdin and reads TSV output.
type Engine struct {
	cfg    Config
	runner Runner
	log    logrus.FieldLogger
}

// Option configures an Engine.
type Option func(*Engine)

// WithRunner replaces the command runner.
func WithRunner(r Runner) Option {
	return func(e *Engine) { e.runner = r }
}

// WithLogger sets the logger.
func WithLogger(log logrus.FieldLogger) Option {
	return func(e *Engine) { e.log = log.WithField("engine", Name) }
}

// New creates an engine.
func New(cfg Config, opts ...Option) *Engine {
	if cfg.Path == "" {
		cfg.Path = "tesseract"
	}
	if len(cfg.Languages) == 0 {
		cfg.Languages = []string{"tur", "eng"}
	}
	l := logrus.New()
	l.SetOutput(io.Discard)
	e := &Engine{cfg: cfg, runner: execRunner{}, log: l}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

func (e *Engine) Name() string { return Name }

// Available reports whether the tesseract binary can be found.
func (e *Engine) Available() bool {
	_, err := exec.LookPath(e.cfg.Path)
	return err == nil
}

func (e *Engine) args() []string {
	args := []string{"stdin", "stdout", "-l", strings.Join(e.cfg.Languages, "+")}
	if e.cfg.PSM > 0 {
		args = append(args, "--psm", strconv.Itoa(e.cfg.PSM))
	}
	if e.cfg.TessdataDir != "" {
		args = append(args, "--tessdata-dir", e.cfg.TessdataDir)
	}
	return append(args, "tsv")
}

func (e *Engine) Recognize(ctx context.Context, src *document.Source) (*ocr.Document, error) {
	pages, err := src.Pages()
	if err != nil {
		return nil, err
	}

	doc := &ocr.Document{Pages: make([]ocr.Page, 0, len(pages))}
	for i, img := range pages {
		page, err := e.recognizePage(ctx, i, img)
		if err != nil {
			return nil, fmt.Errorf("page %d: %w", i, err)
		}
		doc.Pages = append(doc.Pages, page)
	}
	if doc.Empty() {
		return nil, ocr.ErrEmpty
	}
	doc.SetEngine(Name)
	return doc, nil
}

func (e *Engine) recognizePage(ctx context.Context, idx int, img image.Image) (ocr.Page, error) {
	data, err := document.EncodePNG(img)
	if err != nil {
		return ocr.Page{}, err
	}
	out, stderr, err := e.runner.Run(ctx, data, e.cfg.Path, e.args()...)
	if err != nil {
		if ctx.Err() != nil {
			return ocr.Page{}, fmt.Errorf("tesseract: %w", ctx.Err())
		}
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			return ocr.Page{}, fmt.Errorf("tesseract exited with %d: %s", exitErr.ExitCode(), strings.TrimSpace(string(stderr)))
		}
		return ocr.Page{}, fmt.Errorf("tesseract: %w", err)
	}
	boxes, err := ParseTSV(bytes.NewReader(out))
	if err != nil {
		return ocr.Page{}, err
	}
	e.log.Debugf("Page %d: %d words", idx, len(boxes))
	return ocr.PageFromWordBoxes(idx, img.Bounds(), boxes), nil
}

// TSV columns.
const (
	colLevel = iota
	colPage
	colBlock
	colPar
	colLine
	colWord
	colLeft
	colTop
	colWidth
	colHeight
	colConf
	colText
	tsvColumns
)

// wordLevel is the TSV level of word rows.
const wordLevel = 5

// ParseTSV reads the word rows of tesseract TSV output. Confidence is scaled
// to 0..1.
func ParseTSV(r io.Reader) ([]ocr.WordBox, error) {
	var boxes []ocr.WordBox
	sc := bufio.NewScanner(r)
	header := true
	for sc.Scan() {
		line := strings.TrimRight(sc.Text(), "\r")
		if header {
			header = false
			if strings.HasPrefix(line, "level") {
				continue
			}
		}
		cols := strings.Split(line, "\t")
		if len(cols) < tsvColumns-1 {
			continue
		}
		ints := make([]int, colConf)
		bad := false
		for i := colLevel; i < colConf; i++ {
			v, err := strconv.Atoi(cols[i])
			if err != nil {
				bad = true
				break
			}
			ints[i] = v
		}
		if bad || ints[colLevel] != wordLevel {
			continue
		}
		text := ""
		if len(cols) > colText {
			text = strings.Join(cols[colText:], "\t")
		}
		conf, err := strconv.ParseFloat(cols[colConf], 64)
		if err != nil || conf < 0 {
			conf = 0
		}
		boxes = append(boxes, ocr.WordBox{
			Text:       text,
			Box:        image.Rect(ints[colLeft], ints[colTop], ints[colLeft]+ints[colWidth], ints[colTop]+ints[colHeight]),
			Confidence: conf / 100,
			Block:      ints[colBlock],
			Paragraph:  ints[colPar],
			Line:       ints[colLine],
		})
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("failed to read tesseract TSV: %w", err)
	}
	return boxes, nil
}
