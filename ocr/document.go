package ocr

import (
	"bytes"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"strings"
)

// Geometry is a box or polygon in coordinates relative to the page
// (0..1 on both axes): [[xmin, ymin], [xmax, ymax]] for boxes.
type Geometry [][]float64

// Word is a single recognized word.
type Word struct {
	Value      string   `json:"value"`
	Confidence float64  `json:"confidence"`
	Geometry   Geometry `json:"geometry"`
}

// Line is a run of words read left to right.
type Line struct {
	Geometry Geometry `json:"geometry"`
	Words    []Word   `json:"words"`
}

// Block is a group of lines, such as a paragraph or a table cell.
type Block struct {
	Geometry Geometry `json:"geometry"`
	Lines    []Line   `json:"lines"`
}

// Page is one recognized page. Dimensions are (height, width) in pixels.
type Page struct {
	PageIdx    int     `json:"page_idx"`
	Dimensions [2]int  `json:"dimensions"`
	Blocks     []Block `json:"blocks"`
}

// Document is an OCR result in the export schema of deep-learning OCR
// pipelines: {"pages": [{"blocks": [{"lines": [{"words": [...]}]}]}]}.
//
// A Document decoded from JSON marshals back to the bytes it was decoded
// from, so fields this package does not model survive a round trip.
// Documents are not modified after they are created.
type Document struct {
	Pages []Page `json:"pages"`

	raw    json.RawMessage
	engine string
}

// Engine names the engine that produced the document.
func (d *Document) Engine() string { return d.engine }

// SetEngine records the engine that produced the document.
func (d *Document) SetEngine(name string) { d.engine = name }

// ParseDocument decodes an exported OCR result.
func ParseDocument(data []byte) (*Document, error) {
	var doc Document
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("failed to decode OCR document: %w", err)
	}
	return &doc, nil
}

type documentAlias Document

func (d *Document) UnmarshalJSON(b []byte) error {
	var a documentAlias
	if err := json.Unmarshal(b, &a); err != nil {
		return err
	}
	*d = Document(a)
	d.raw = append(json.RawMessage(nil), b...)
	return nil
}

func (d *Document) MarshalJSON() ([]byte, error) {
	if len(d.raw) > 0 {
		return d.raw, nil
	}
	if d.Pages == nil {
		return json.Marshal(documentAlias{Pages: []Page{}})
	}
	return json.Marshal((*documentAlias)(d))
}

// Empty reports whether the document holds no words.
func (d *Document) Empty() bool {
	if d == nil {
		return true
	}
	for _, p := range d.Pages {
		for _, b := range p.Blocks {
			for _, l := range b.Lines {
				if len(l.Words) > 0 {
					return false
				}
			}
		}
	}
	return true
}

// Lines returns the lines of the first page in reading order, each line being
// its words joined by single spaces. Lines without words are kept as empty
// strings so that line indices match the document.
func (d *Document) Lines() []string {
	if d == nil || len(d.Pages) == 0 {
		return nil
	}
	return pageLines(d.Pages[0])
}

// AllLines returns the lines of every page.
func (d *Document) AllLines() []string {
	if d == nil {
		return nil
	}
	var lines []string
	for _, p := range d.Pages {
		lines = append(lines, pageLines(p)...)
	}
	return lines
}

func pageLines(p Page) []string {
	var lines []string
	for _, b := range p.Blocks {
		for _, l := range b.Lines {
			words := make([]string, len(l.Words))
			for i, w := range l.Words {
				words[i] = w.Value
			}
			lines = append(lines, strings.TrimSpace(strings.Join(words, " ")))
		}
	}
	return lines
}

// Words returns the words of the first page in reading order.
func (d *Document) Words() []string {
	if d == nil || len(d.Pages) == 0 {
		return nil
	}
	var words []string
	for _, b := range d.Pages[0].Blocks {
		for _, l := range b.Lines {
			for _, w := range l.Words {
				words = append(words, w.Value)
			}
		}
	}
	return words
}

// Text returns the lines of every page joined by newlines.
func (d *Document) Text() string {
	return strings.Join(d.AllLines(), "\n")
}

// Export returns the document as JSON indented with four spaces.
func (d *Document) Export() ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "    ")
	if err := enc.Encode(d); err != nil {
		return nil, fmt.Errorf("failed to export OCR document: %w", err)
	}
	return bytes.TrimRight(buf.Bytes(), "\n"), nil
}

// DataURI returns the exported document as a base64 data URI suitable for a
// download link.
func (d *Document) DataURI() (string, error) {
	data, err := d.Export()
	if err != nil {
		return "", err
	}
	return "data:application/json;charset=utf-8;base64," + base64.StdEncoding.EncodeToString(data), nil
}
