// Package app wires configuration, logging, the OCR engines and the HTTP
// stack of the extraction service.
package app

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
	"github.com/sirupsen/logrus"

	"github.com/alparslanahmed/vergilevhasi-ocr"
	"github.com/alparslanahmed/vergilevhasi-ocr/ocr/remote"
	"github.com/alparslanahmed/vergilevhasi-ocr/ocr/tesseract"
	"github.com/alparslanahmed/vergilevhasi-ocr/ocr/tesseractcli"
	"github.com/alparslanahmed/vergilevhasi-ocr/ocr/textlayer"
)

// Extraction strategies selectable with EXTRACT_STRATEGY.
const (
	StrategyLabel = "label"
	StrategyFixed = "fixed"
)

// Config holds runtime configuration for the service.
type Config struct {
	AppEnv            string        `envconfig:"APP_ENV" default:"development"`
	AppAddr           string        `envconfig:"APP_ADDR" default:":8080"`
	AppReadTimeout    time.Duration `envconfig:"APP_READ_TIMEOUT" default:"30s"`
	AppWriteTimeout   time.Duration `envconfig:"APP_WRITE_TIMEOUT" default:"120s"`
	AppRequestTimeout time.Duration `envconfig:"APP_REQUEST_TIMEOUT" default:"90s"`

	LogLevel  string `envconfig:"LOG_LEVEL" default:"info"`
	LogFormat string `envconfig:"LOG_FORMAT" default:"text"`
	Debug     bool   `envconfig:"DEBUG" default:"false"`

	OCREngines    []string      `envconfig:"OCR_ENGINES" default:"textlayer,tesseract-cli"`
	OCRLanguages  []string      `envconfig:"OCR_LANGUAGES" default:"tur,eng"`
	OCRPSM        int           `envconfig:"OCR_PSM" default:"6"`
	OCRTimeout    time.Duration `envconfig:"OCR_TIMEOUT" default:"60s"`
	OCRRemoteURL  string        `envconfig:"OCR_REMOTE_URL"`
	TesseractPath string        `envconfig:"TESSERACT_PATH" default:"tesseract"`
	TessdataDir   string        `envconfig:"TESSDATA_DIR"`

	ExtractStrategy string `envconfig:"EXTRACT_STRATEGY" default:"label"`
	ExtractLayout   string `envconfig:"EXTRACT_LAYOUT" default:"5-7,8-10,11-13"`
	ExtractSentinel string `envconfig:"EXTRACT_SENTINEL" default:"Bilinmiyor"`
	BarcodeFallback bool   `envconfig:"BARCODE_FALLBACK" default:"false"`

	UploadMaxBytes  int64         `envconfig:"UPLOAD_MAX_BYTES" default:"20971520"`
	URLFetchTimeout time.Duration `envconfig:"URL_FETCH_TIMEOUT" default:"30s"`

	RedisAddr string        `envconfig:"REDIS_ADDR"`
	CacheTTL  time.Duration `envconfig:"CACHE_TTL" default:"24h"`

	RateLimitPerMinute int  `envconfig:"RATE_LIMIT_PER_MINUTE" default:"30"`
	ShowDownload       bool `envconfig:"SHOW_DOWNLOAD" default:"true"`
}

// LoadConfig reads configuration from environment variables.
func LoadConfig() (*Config, error) {
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks values envconfig cannot.
func (c *Config) Validate() error {
	var errs []error
	if len(c.OCREngines) == 0 {
		errs = append(errs, errors.New("at least one OCR engine must be configured"))
	}
	for _, name := range c.OCREngines {
		switch strings.TrimSpace(name) {
		case textlayer.Name, tesseract.Name, tesseractcli.Name:
		case remote.Name:
			if c.OCRRemoteURL == "" {
				errs = append(errs, errors.New("OCR_REMOTE_URL must be set to use the remote engine"))
			}
		default:
			errs = append(errs, fmt.Errorf("unknown OCR engine %q", name))
		}
	}
	switch c.ExtractStrategy {
	case StrategyLabel:
	case StrategyFixed:
		if _, err := vergilevhasi.ParseLayout(c.ExtractLayout); err != nil {
			errs = append(errs, err)
		}
	default:
		errs = append(errs, fmt.Errorf("unknown extraction strategy %q", c.ExtractStrategy))
	}
	if strings.TrimSpace(c.ExtractSentinel) == "" {
		errs = append(errs, errors.New("EXTRACT_SENTINEL must not be blank"))
	}
	if _, err := logrus.ParseLevel(c.LogLevel); err != nil {
		errs = append(errs, err)
	}
	if c.UploadMaxBytes <= 0 {
		errs = append(errs, errors.New("UPLOAD_MAX_BYTES must be positive"))
	}
	if c.OCRPSM < 0 || c.OCRPSM > 13 {
		errs = append(errs, fmt.Errorf("OCR_PSM %d out of range 0-13", c.OCRPSM))
	}
	return errors.Join(errs...)
}

// IsProduction returns true when the service runs in production.
func (c *Config) IsProduction() bool {
	return c != nil && c.AppEnv == "production"
}
