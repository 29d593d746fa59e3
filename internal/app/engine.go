package app

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/alparslanahmed/vergilevhasi-ocr"
	"github.com/alparslanahmed/vergilevhasi-ocr/document"
	"github.com/alparslanahmed/vergilevhasi-ocr/ocr"
	"github.com/alparslanahmed/vergilevhasi-ocr/ocr/remote"
	"github.com/alparslanahmed/vergilevhasi-ocr/ocr/tesseract"
	"github.com/alparslanahmed/vergilevhasi-ocr/ocr/tesseractcli"
	"github.com/alparslanahmed/vergilevhasi-ocr/ocr/textlayer"
)

// BuildEngine creates the engines named in OCR_ENGINES, chained in order.
// Engines holding a model are created lazily on first use and shared by all
// requests.
func BuildEngine(cfg *Config, log logrus.FieldLogger) (ocr.Engine, error) {
	engines := make([]ocr.Engine, 0, len(cfg.OCREngines))
	for _, name := range cfg.OCREngines {
		switch name = strings.TrimSpace(name); name {
		case textlayer.Name:
			engines = append(engines, textlayer.New(log))
		case tesseract.Name:
			if !tesseract.Compiled {
				log.Warn("tesseract engine requested but not compiled in; it will be skipped")
			}
			tcfg := tesseract.Config{Languages: cfg.OCRLanguages, PSM: cfg.OCRPSM, TessdataPrefix: cfg.TessdataDir}
			engines = append(engines, ocr.Lazy(tesseract.Name, func() (ocr.Engine, error) {
				log.WithField("languages", tcfg.Languages).Info("Initializing tesseract engine")
				return tesseract.New(tcfg, log), nil
			}))
		case tesseractcli.Name:
			e := tesseractcli.New(tesseractcli.Config{
				Path:        cfg.TesseractPath,
				Languages:   cfg.OCRLanguages,
				PSM:         cfg.OCRPSM,
				TessdataDir: cfg.TessdataDir,
			}, tesseractcli.WithLogger(log))
			if !e.Available() {
				log.WithField("path", cfg.TesseractPath).Warn("tesseract binary not found")
			}
			engines = append(engines, e)
		case remote.Name:
			engines = append(engines, remote.New(cfg.OCRRemoteURL, cfg.OCRTimeout))
		default:
			return nil, fmt.Errorf("unknown OCR engine %q", name)
		}
	}
	if len(engines) == 0 {
		return nil, fmt.Errorf("no OCR engine configured")
	}
	return ocr.Chain(engines...), nil
}

// BuildExtractor creates the extractor selected by EXTRACT_STRATEGY.
func BuildExtractor(cfg *Config) (*vergilevhasi.Extractor, error) {
	var strategy vergilevhasi.Strategy = vergilevhasi.DefaultLabelStrategy
	if cfg.ExtractStrategy == StrategyFixed {
		layout, err := vergilevhasi.ParseLayout(cfg.ExtractLayout)
		if err != nil {
			return nil, err
		}
		strategy = vergilevhasi.FixedIndexStrategy{Layout: layout}
	}
	return vergilevhasi.NewExtractor(
		vergilevhasi.WithStrategy(strategy),
		vergilevhasi.WithSentinel(cfg.ExtractSentinel),
	), nil
}

// BuildParser creates the parser used by every request.
func BuildParser(cfg *Config, log logrus.FieldLogger) (*vergilevhasi.Parser, error) {
	engine, err := BuildEngine(cfg, log)
	if err != nil {
		return nil, err
	}
	extractor, err := BuildExtractor(cfg)
	if err != nil {
		return nil, err
	}
	parser := vergilevhasi.NewParser(
		vergilevhasi.WithEngine(engine),
		vergilevhasi.WithExtractor(extractor),
		vergilevhasi.WithBarcodeFallback(cfg.BarcodeFallback),
		vergilevhasi.WithFetcher(NewFetcher(cfg)),
		vergilevhasi.WithLogger(log),
	)
	parser.SetDebug(cfg.Debug)
	return parser, nil
}

// NewFetcher creates the URL downloader.
func NewFetcher(cfg *Config) *document.Fetcher {
	return document.NewFetcher(cfg.URLFetchTimeout, cfg.UploadMaxBytes)
}

// CacheSettings names everything besides the document that changes a result.
func CacheSettings(cfg *Config, parser *vergilevhasi.Parser) []string {
	settings := []string{parser.Engine().Name(), parser.Extractor().Strategy().Name()}
	if cfg.ExtractStrategy == StrategyFixed {
		settings = append(settings, cfg.ExtractLayout)
	}
	return append(settings, parser.Extractor().Sentinel(), "barcode="+strconv.FormatBool(cfg.BarcodeFallback))
}
