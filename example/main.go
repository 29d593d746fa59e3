package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"os"
	"strings"
	"time"

	"github.com/alparslanahmed/vergilevhasi-ocr"
	"github.com/alparslanahmed/vergilevhasi-ocr/internal/app"
)

func main() {
	engines := flag.String("engines", "textlayer,tesseract-cli", "comma separated OCR engine chain")
	remoteURL := flag.String("remote", "", "deep-learning OCR service URL, used by the remote engine")
	strategy := flag.String("strategy", app.StrategyLabel, "field extraction strategy: label or fixed")
	barcode := flag.Bool("barcode", true, "read the tax id from the plate barcode when OCR finds none")
	debug := flag.Bool("debug", false, "log the recognized text")
	timeout := flag.Duration("timeout", 2*time.Minute, "overall timeout")
	flag.Usage = func() {
		fmt.Fprintln(os.Stderr, "Usage: go run example/main.go [flags] <path-or-url>")
		flag.PrintDefaults()
	}
	flag.Parse()

	if flag.NArg() < 1 {
		flag.Usage()
		os.Exit(1)
	}
	target := flag.Arg(0)

	cfg := &app.Config{
		LogLevel:        "warn",
		Debug:           *debug,
		OCREngines:      strings.Split(*engines, ","),
		OCRLanguages:    []string{"tur", "eng"},
		OCRPSM:          6,
		TesseractPath:   "tesseract",
		OCRTimeout:      *timeout,
		OCRRemoteURL:    *remoteURL,
		ExtractStrategy: *strategy,
		ExtractLayout:   vergilevhasi.DefaultLayout.String(),
		ExtractSentinel: vergilevhasi.NotFound,
		BarcodeFallback: *barcode,
		URLFetchTimeout: 30 * time.Second,
		UploadMaxBytes:  20 << 20,
	}
	if err := cfg.Validate(); err != nil {
		log.Fatalf("Invalid flags: %v", err)
	}
	logger := app.NewLogger(cfg)
	logger.SetOutput(os.Stderr)

	parser, err := app.BuildParser(cfg, logger)
	if err != nil {
		log.Fatalf("Failed to build parser: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	var result *vergilevhasi.VergiLevhasi
	if strings.HasPrefix(target, "http://") || strings.HasPrefix(target, "https://") {
		result, err = parser.ParseURL(ctx, target)
	} else {
		result, err = parser.ParseFile(ctx, target)
	}
	if err != nil {
		log.Fatalf("Failed to parse %s: %v", target, err)
	}

	jsonData, err := json.MarshalIndent(result, "", "  ")
	if err != nil {
		log.Fatalf("Failed to marshal JSON: %v", err)
	}
	fmt.Println(string(jsonData))

	fmt.Println("\n=== Extracted Information ===")
	fmt.Printf("Ticari Ünvan: %s\n", result.TicaretUnvani)
	fmt.Printf("Vergi Kimlik No: %s\n", result.VergiKimlikNo)
	if result.VergiKimlikNoKaynagi != "" {
		fmt.Printf("  Kaynak: %s, geçerli: %t\n", result.VergiKimlikNoKaynagi, result.VergiKimlikNoGecerli)
	}
	fmt.Printf("Vergi Dairesi: %s\n", result.VergiDairesi)
	fmt.Printf("\nEngine: %s, strategy: %s, took %.2fs\n", result.Engine, result.Strategy, result.Elapsed.Seconds())
}
