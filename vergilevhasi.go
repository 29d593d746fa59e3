package vergilevhasi

import (
	"time"

	"github.com/alparslanahmed/vergilevhasi-ocr/ocr"
)

const (
	// NotFound is the default value reported for a field that could not be extracted.
	NotFound = "Bilinmiyor"
	// NotFoundEN is the English sentinel.
	NotFoundEN = "Not Found"
)

// Field names as used in JSON output and metrics labels.
const (
	FieldTicaretUnvani = "ticaret_unvani"
	FieldVergiDairesi  = "vergi_dairesi"
	FieldVergiKimlikNo = "vergi_kimlik_no"

	// FieldCount is the number of extracted fields.
	FieldCount = 3
)

// Tax id sources.
const (
	SourceOCR     = "ocr"
	SourceBarcode = "barcode"
)

// Fields is the triple extracted from a tax plate. A field that could not be
// extracted holds the extractor's sentinel.
type Fields struct {
	// Ticari Ünvan (Trade Name)
	TicaretUnvani string `json:"ticaret_unvani"`

	// Vergi Dairesi (Tax Office)
	VergiDairesi string `json:"vergi_dairesi"`

	// Vergi Kimlik No (Tax ID Number), 10 or 11 digits
	VergiKimlikNo string `json:"vergi_kimlik_no"`
}

// Missing returns the names of the fields equal to sentinel.
func (f Fields) Missing(sentinel string) []string {
	var missing []string
	if f.TicaretUnvani == sentinel {
		missing = append(missing, FieldTicaretUnvani)
	}
	if f.VergiDairesi == sentinel {
		missing = append(missing, FieldVergiDairesi)
	}
	if f.VergiKimlikNo == sentinel {
		missing = append(missing, FieldVergiKimlikNo)
	}
	return missing
}

// VergiLevhasi is the result of reading one tax plate document.
type VergiLevhasi struct {
	ID string `json:"id"`

	Fields

	// VergiKimlikNoGecerli reports whether the tax id passes its check digit test.
	VergiKimlikNoGecerli bool `json:"vergi_kimlik_no_gecerli"`

	// VergiKimlikNoKaynagi is SourceOCR or SourceBarcode, empty when not found.
	VergiKimlikNoKaynagi string `json:"vergi_kimlik_no_kaynagi,omitempty"`

	// Engine and Strategy name the OCR engine and the extraction strategy used.
	Engine   string `json:"engine"`
	Strategy string `json:"strategy"`

	// Lines are the recognized lines of the first page, top to bottom.
	Lines []string `json:"lines"`

	// Raw text recognized on all pages
	RawText string `json:"raw_text,omitempty"`

	// Document is the full OCR result.
	Document *ocr.Document `json:"document,omitempty"`

	Elapsed   time.Duration `json:"elapsed"`
	CreatedAt time.Time     `json:"created_at"`
}
