// Package app runs change detection over a batch of pixels read from CSV
// and writes one result record per pixel.
package app

import (
	"context"
	"fmt"
	"io"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/chrissnell/ccdetect/internal/log"
	"github.com/chrissnell/ccdetect/pkg/ccd"
	"github.com/chrissnell/ccdetect/pkg/config"
	"github.com/chrissnell/ccdetect/pkg/responseformat"
)

// PixelResult is the output record for one pixel. Exactly one of Detection
// and Error is set.
type PixelResult struct {
	RunID     string         `json:"run_id"`
	PixelID   string         `json:"pixel_id"`
	Detection *ccd.Detection `json:"detection,omitempty"`
	Error     string         `json:"error,omitempty"`
}

// Summary counts the pixels of a run
type Summary struct {
	RunID  string
	Pixels int
	Failed int
}

// App represents the main application
type App struct {
	config *config.ConfigData
	logger *zap.SugaredLogger
}

// New creates a new application instance
func New(cfg *config.ConfigData, logger *zap.SugaredLogger) *App {
	return &App{
		config: cfg,
		logger: log.OrNop(logger),
	}
}

// Run reads pixels from in, detects changes in each and writes the results
// to out. A pixel that fails is recorded with its error and does not stop
// the run; a cancelled context does.
func (a *App) Run(ctx context.Context, in io.Reader, out io.Writer) (Summary, error) {
	summary := Summary{RunID: uuid.NewString()}

	detector, err := ccd.NewDetector(a.config.Detection, a.logger)
	if err != nil {
		return summary, err
	}

	pixels, err := ReadPixels(in)
	if err != nil {
		return summary, fmt.Errorf("error reading observations: %w", err)
	}
	a.logger.Infof("run %s: %d pixels", summary.RunID, len(pixels))

	w, err := responseformat.NewWriter(out, a.config.Output.Format, a.config.Output.Compression)
	if err != nil {
		return summary, err
	}

	for _, p := range pixels {
		if err := ctx.Err(); err != nil {
			w.Close()
			return summary, err
		}

		result := PixelResult{RunID: summary.RunID, PixelID: p.ID}
		det, err := detector.Detect(p.Series)
		if err != nil {
			a.logger.Warnf("pixel %s: %v", p.ID, err)
			result.Error = err.Error()
			summary.Failed++
		} else {
			a.logger.Debugf("pixel %s: %s, %d change models", p.ID, det.Procedure, len(det.ChangeModels))
			result.Detection = det
		}
		summary.Pixels++

		if err := w.Write(result); err != nil {
			w.Close()
			return summary, fmt.Errorf("error writing result for pixel %s: %w", p.ID, err)
		}
	}

	if err := w.Close(); err != nil {
		return summary, fmt.Errorf("error flushing output: %w", err)
	}
	a.logger.Infof("run %s complete: %d pixels, %d failed", summary.RunID, summary.Pixels, summary.Failed)
	return summary, nil
}
