package main

import (
	"bufio"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"os"

	"github.com/alparslanahmed/vergilevhasi-ocr"
)

func main() {
	fixed := flag.Bool("fixed", false, "use the fixed line layout instead of the label search")
	layout := flag.String("layout", vergilevhasi.DefaultLayout.String(), "fixed layout: tax office,trade name,tax id line spans")
	sentinel := flag.String("sentinel", vergilevhasi.NotFound, "value reported for fields that were not found")
	flag.Usage = func() {
		fmt.Fprintln(os.Stderr, "Vergi Levhası - extract fields from recognized text")
		fmt.Fprintln(os.Stderr, "")
		fmt.Fprintln(os.Stderr, "Usage: go run example/simple/main.go [flags] <lines.txt>")
		fmt.Fprintln(os.Stderr, "")
		fmt.Fprintln(os.Stderr, "The file holds one OCR line per line, as printed by the OCR engine.")
		flag.PrintDefaults()
	}
	flag.Parse()

	if flag.NArg() < 1 {
		flag.Usage()
		os.Exit(1)
	}

	f, err := os.Open(flag.Arg(0))
	if err != nil {
		log.Fatalf("Failed to open: %v", err)
	}
	defer f.Close()

	var lines []string
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		lines = append(lines, scanner.Text())
	}
	if err := scanner.Err(); err != nil {
		log.Fatalf("Failed to read: %v", err)
	}

	opts := []vergilevhasi.ExtractorOption{vergilevhasi.WithSentinel(*sentinel)}
	if *fixed {
		l, err := vergilevhasi.ParseLayout(*layout)
		if err != nil {
			log.Fatalf("Invalid layout: %v", err)
		}
		opts = append(opts, vergilevhasi.WithStrategy(vergilevhasi.FixedIndexStrategy{Layout: l}))
	}

	parser := vergilevhasi.NewParser(vergilevhasi.WithExtractor(vergilevhasi.NewExtractor(opts...)))
	result := parser.ParseLines(lines)

	jsonData, err := json.MarshalIndent(result, "", "  ")
	if err != nil {
		log.Fatalf("Failed to marshal JSON: %v", err)
	}
	fmt.Println(string(jsonData))
}
