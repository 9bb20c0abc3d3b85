// Command render draws a document to a PNG file without a browser.
//
//	render -in doc.json -out out.png -w 800 -h 600 -dpr 2 -select 1,2
//
// Without -in the built-in sample document is drawn.
package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"log/slog"
	"os"

	"github.com/momentum/momentum/internal/document"
	"github.com/momentum/momentum/internal/export"
)

func main() {
	in := flag.String("in", "", "document JSON file (default: sample document)")
	out := flag.String("out", "out.png", "output PNG file")
	width := flag.Int("w", 800, "width in CSS pixels")
	height := flag.Int("h", 600, "height in CSS pixels")
	dpr := flag.Float64("dpr", 1, "device pixel ratio")
	sel := flag.String("select", "", "comma separated entity ids to draw selected")
	verbose := flag.Bool("v", false, "debug logging")
	flag.Parse()

	level := slog.LevelInfo
	if *verbose {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))

	if err := run(logger, *in, *out, *width, *height, *dpr, *sel); err != nil {
		logger.Error("render failed", "error", err)
		os.Exit(1)
	}
}

func run(logger *slog.Logger, in, out string, width, height int, dpr float64, sel string) error {
	doc := document.NewSampleDocument()
	if in != "" {
		data, err := os.ReadFile(in)
		if err != nil {
			return fmt.Errorf("read document: %w", err)
		}
		doc = document.New()
		if err := json.Unmarshal(data, doc); err != nil {
			return fmt.Errorf("parse document: %w", err)
		}
	}

	ids, err := export.ParseSelection(sel)
	if err != nil {
		return err
	}

	png, err := export.PNG(doc, export.Options{
		Width:     width,
		Height:    height,
		DPR:       dpr,
		Selection: ids,
		Logger:    logger,
	})
	if err != nil {
		return err
	}
	if err := os.WriteFile(out, png, 0o644); err != nil {
		return fmt.Errorf("write png: %w", err)
	}

	logger.Info("rendered", "out", out, "entities", doc.Len(), "selected", len(ids), "bytes", len(png))
	return nil
}
