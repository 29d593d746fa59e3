package vergilevhasi

import (
	"fmt"
	"strconv"
	"strings"
)

// TruncationMarker labels the personal id row. Nothing below it is one of
// the extracted fields.
const TruncationMarker = "TC KİMLİK NO"

// TruncateAtMarker returns the lines before the first line containing
// TruncationMarker, or all lines when there is none.
func TruncateAtMarker(lines []string) []string {
	for i, line := range lines {
		if containsFolded(line, TruncationMarker) {
			return lines[:i]
		}
	}
	return lines
}

// Strategy locates raw candidate values for each field in the recognized
// lines. Values it returns are cleaned and validated by the Extractor.
type Strategy interface {
	Name() string
	Locate(lines []string, d *Denylist) Fields
}

// LabelStrategy finds a printed label and takes the text after it on the same
// line, or else the next line that is not blank after cleaning and is not
// itself a label.
type LabelStrategy struct {
	// Labels per field, in priority order.
	TaxOffice []string
	TradeName []string
	TaxID     []string
	// Window is how many lines below a label are searched for its value.
	Window int
}

// DefaultLabelStrategy holds the labels printed on GİB plates and their
// common OCR misreads.
var DefaultLabelStrategy = LabelStrategy{
	TaxOffice: []string{"VERGİ DAİRESİ"},
	TradeName: []string{"TİCARET ÜNVANI", "TİCARET ONVANI", "TİCARİ ÜNVAN", "ADI SOYADI"},
	TaxID:     []string{"VERGİ KİMLİK NO", "VERGİ KİMLİK NUMARASI", "VKN"},
	Window:    2,
}

func (s LabelStrategy) Name() string { return "label" }

func (s LabelStrategy) Locate(lines []string, d *Denylist) Fields {
	var all [][]string
	for _, group := range [][]string{s.TaxOffice, s.TradeName, s.TaxID} {
		for _, l := range group {
			all = append(all, foldTokens(strings.Fields(l)))
		}
	}
	return Fields{
		TicaretUnvani: s.find(lines, s.TradeName, all, d),
		VergiDairesi:  s.find(lines, s.TaxOffice, all, d),
		VergiKimlikNo: s.find(lines, s.TaxID, all, d),
	}
}

func (s LabelStrategy) find(lines []string, labels []string, all [][]string, d *Denylist) string {
	window := s.Window
	if window <= 0 {
		window = 1
	}
	for _, l := range labels {
		label := foldTokens(strings.Fields(l))
		for i, line := range lines {
			tokens := strings.Fields(line)
			folded := foldTokens(tokens)
			at := indexRun(folded, label)
			if at < 0 {
				continue
			}
			rest := tokens[at+len(label):]
			// another label on the same row ends this one's value
			if next := firstRun(folded[at+len(label):], all); next >= 0 {
				rest = rest[:next]
			}
			if v := d.Clean(strings.Join(rest, " ")); v != "" {
				return v
			}
			for j := i + 1; j < len(lines) && j <= i+window; j++ {
				if firstRun(foldTokens(strings.Fields(lines[j])), all) >= 0 {
					break
				}
				if v := d.Clean(lines[j]); v != "" {
					return v
				}
			}
		}
	}
	return ""
}

// indexRun returns the index of the first occurrence of run in tokens, or -1.
func indexRun(tokens, run []string) int {
	if len(run) == 0 {
		return -1
	}
	for i := 0; i+len(run) <= len(tokens); i++ {
		match := true
		for j, w := range run {
			if tokens[i+j] != w {
				match = false
				break
			}
		}
		if match {
			return i
		}
	}
	return -1
}

// firstRun returns the smallest index at which any of runs occurs in tokens.
func firstRun(tokens []string, runs [][]string) int {
	first := -1
	for _, r := range runs {
		if at := indexRun(tokens, r); at >= 0 && (first < 0 || at < first) {
			first = at
		}
	}
	return first
}

// Span is an inclusive range of line indices.
type Span struct {
	From, To int
}

func (s Span) String() string { return fmt.Sprintf("%d-%d", s.From, s.To) }

// Layout assigns a line span to each field for FixedIndexStrategy.
type Layout struct {
	VergiDairesi  Span
	TicaretUnvani Span
	VergiKimlikNo Span
}

// DefaultLayout is the layout of the deep-learning OCR demo: tax office on
// lines 5-7, trade name on 8-10 and tax id on 11-13.
var DefaultLayout = Layout{
	VergiDairesi:  Span{5, 7},
	TicaretUnvani: Span{8, 10},
	VergiKimlikNo: Span{11, 13},
}

func (l Layout) String() string {
	return l.VergiDairesi.String() + "," + l.TicaretUnvani.String() + "," + l.VergiKimlikNo.String()
}

// ParseLayout parses "office,trade,id" spans such as "5-7,8-10,11-13".
// A single index ("5") is a one-line span.
func ParseLayout(s string) (Layout, error) {
	parts := strings.Split(s, ",")
	if len(parts) != 3 {
		return Layout{}, fmt.Errorf("invalid layout %q: want 3 spans, got %d", s, len(parts))
	}
	spans := make([]Span, 3)
	for i, p := range parts {
		span, err := parseSpan(strings.TrimSpace(p))
		if err != nil {
			return Layout{}, fmt.Errorf("invalid layout %q: %w", s, err)
		}
		spans[i] = span
	}
	return Layout{VergiDairesi: spans[0], TicaretUnvani: spans[1], VergiKimlikNo: spans[2]}, nil
}

func parseSpan(s string) (Span, error) {
	from, to, found := strings.Cut(s, "-")
	if !found {
		to = from
	}
	a, err := strconv.Atoi(strings.TrimSpace(from))
	if err != nil {
		return Span{}, fmt.Errorf("span %q: %w", s, err)
	}
	b, err := strconv.Atoi(strings.TrimSpace(to))
	if err != nil {
		return Span{}, fmt.Errorf("span %q: %w", s, err)
	}
	if a < 0 || b < a {
		return Span{}, fmt.Errorf("span %q out of order", s)
	}
	return Span{a, b}, nil
}

// FixedIndexStrategy reads each field from fixed line indices. It only works
// for documents whose OCR output matches the layout line for line.
type FixedIndexStrategy struct {
	Layout Layout
}

func (s FixedIndexStrategy) Name() string { return "fixed" }

func (s FixedIndexStrategy) Locate(lines []string, d *Denylist) Fields {
	return Fields{
		TicaretUnvani: joinSpan(lines, s.Layout.TicaretUnvani, d),
		VergiDairesi:  joinSpan(lines, s.Layout.VergiDairesi, d),
		VergiKimlikNo: joinSpan(lines, s.Layout.VergiKimlikNo, d),
	}
}

func joinSpan(lines []string, span Span, d *Denylist) string {
	var parts []string
	for i := span.From; i <= span.To && i < len(lines); i++ {
		if v := d.Clean(lines[i]); v != "" {
			parts = append(parts, v)
		}
	}
	return strings.Join(parts, " ")
}

// companySuffix ends a trade name; OCR often runs the next row into it.
const companySuffix = "ŞİRKETİ"

// cutAfterCompanySuffix keeps the words up to and including the first
// "ŞİRKETİ".
func cutAfterCompanySuffix(name string) string {
	words := strings.Fields(name)
	suffix := foldToken(companySuffix)
	for i, w := range words {
		if foldToken(w) == suffix {
			return strings.Join(words[:i+1], " ")
		}
	}
	return name
}

// Extractor turns recognized lines into Fields.
type Extractor struct {
	strategy Strategy
	sentinel string
	denylist *Denylist
}

// ExtractorOption configures an Extractor.
type ExtractorOption func(*Extractor)

// WithStrategy sets the strategy used to locate field values.
func WithStrategy(s Strategy) ExtractorOption {
	return func(e *Extractor) {
		if s != nil {
			e.strategy = s
		}
	}
}

// WithSentinel sets the value reported for fields that were not found.
func WithSentinel(sentinel string) ExtractorOption {
	return func(e *Extractor) {
		if sentinel != "" {
			e.sentinel = sentinel
		}
	}
}

// WithDenylist replaces the boilerplate denylist.
func WithDenylist(d *Denylist) ExtractorOption {
	return func(e *Extractor) {
		if d != nil {
			e.denylist = d
		}
	}
}

// NewExtractor creates an Extractor using the label strategy, the default
// denylist and the NotFound sentinel unless overridden.
func NewExtractor(opts ...ExtractorOption) *Extractor {
	e := &Extractor{
		strategy: DefaultLabelStrategy,
		sentinel: NotFound,
		denylist: DefaultDenylist,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Strategy returns the configured strategy.
func (e *Extractor) Strategy() Strategy { return e.strategy }

// Sentinel returns the value used for missing fields.
func (e *Extractor) Sentinel() string { return e.sentinel }

// Extract returns the fields found in lines. Lines from the TC KİMLİK NO row
// on are ignored. Extraction never fails: a field that cannot be found, or a
// tax id that is not 10-11 digits, is reported as the sentinel.
func (e *Extractor) Extract(lines []string) Fields {
	scoped := TruncateAtMarker(lines)
	raw := e.strategy.Locate(scoped, e.denylist)

	f := Fields{
		TicaretUnvani: cutAfterCompanySuffix(e.denylist.Clean(raw.TicaretUnvani)),
		VergiDairesi:  e.denylist.Clean(raw.VergiDairesi),
	}
	if id, ok := NormalizeTaxID(raw.VergiKimlikNo); ok {
		f.VergiKimlikNo = id
	}

	if f.TicaretUnvani == "" {
		f.TicaretUnvani = e.sentinel
	}
	if f.VergiDairesi == "" {
		f.VergiDairesi = e.sentinel
	}
	if f.VergiKimlikNo == "" {
		f.VergiKimlikNo = e.sentinel
	}
	return f
}

// Found reports whether v is an extracted value rather than the sentinel.
func (e *Extractor) Found(v string) bool {
	return v != "" && v != e.sentinel
}
