// Package export renders documents headlessly through the engine and the
// raster backend.
package export

import (
	"bytes"
	"errors"
	"fmt"
	"log/slog"
	"math"

	"github.com/momentum/momentum/internal/document"
	"github.com/momentum/momentum/internal/engine"
	"github.com/momentum/momentum/internal/render/raster"
)

var ErrInvalidSize = errors.New("export: invalid size")

// Options describe one rendered image. Width and Height are CSS pixels;
// the PNG is Width*DPR by Height*DPR physical pixels.
type Options struct {
	Width     int
	Height    int
	DPR       float64
	Selection []document.EntityID
	MaxSize   int
	Logger    *slog.Logger
}

func (o Options) physical() (int, int) {
	dpr := engine.ClampDPR(o.DPR)
	return int(math.Round(float64(o.Width) * dpr)), int(math.Round(float64(o.Height) * dpr))
}

// PNG renders doc and returns the encoded image. Selected ids are drawn
// with their highlight and scale handles.
func PNG(doc *document.Document, opts Options) ([]byte, error) {
	if opts.Width <= 0 || opts.Height <= 0 {
		return nil, fmt.Errorf("%w: %dx%d", ErrInvalidSize, opts.Width, opts.Height)
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	maxSize := opts.MaxSize
	if maxSize <= 0 {
		maxSize = raster.DefaultMaxSize
	}
	pw, ph := opts.physical()
	if pw > maxSize || ph > maxSize {
		return nil, fmt.Errorf("%w: %dx%d physical pixels exceeds %d", ErrInvalidSize, pw, ph, maxSize)
	}

	canvas, err := raster.New(raster.WithLogger(logger), raster.WithMaxSize(maxSize))
	if err != nil {
		return nil, fmt.Errorf("create canvas: %w", err)
	}
	defer canvas.Close()

	app := engine.New(
		engine.WithLogger(logger),
		engine.WithDocument(doc),
		engine.WithCanvas(pw, ph, opts.DPR),
		engine.WithRenderer(canvas),
	)
	if len(opts.Selection) > 0 {
		app.SetSelection(opts.Selection)
	}
	app.RunFrame()

	var buf bytes.Buffer
	if err := canvas.EncodePNG(&buf); err != nil {
		return nil, fmt.Errorf("encode png: %w", err)
	}
	return buf.Bytes(), nil
}
