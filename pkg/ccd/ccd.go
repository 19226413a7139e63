// Package ccd is the public entry point of the continuous change detection
// engine. A Detector is built once from configuration and then run over any
// number of per-pixel observation series.
package ccd

import (
	"fmt"

	"go.uber.org/zap"

	"github.com/chrissnell/ccdetect/internal/change"
	"github.com/chrissnell/ccdetect/internal/log"
	"github.com/chrissnell/ccdetect/internal/models"
	"github.com/chrissnell/ccdetect/internal/procedure"
	"github.com/chrissnell/ccdetect/internal/series"
	"github.com/chrissnell/ccdetect/pkg/config"
)

// Detector runs change detection with a fixed parameter set and fitter.
// It holds no per-series state and is safe for concurrent use.
type Detector struct {
	params change.Params
	fitter models.Fitter
	logger *zap.SugaredLogger
}

// NewDetector validates cfg and resolves its fitter.
func NewDetector(cfg config.DetectionData, logger *zap.SugaredLogger) (*Detector, error) {
	logger = log.OrNop(logger)

	full := config.Defaults()
	full.Detection = cfg
	if err := full.Validate(); err != nil {
		return nil, err
	}

	params, err := change.NewParams(cfg)
	if err != nil {
		return nil, fmt.Errorf("invalid detection parameters: %w", err)
	}

	fitter, err := models.Resolve(cfg.Fitter.Name, models.Options{
		Alpha:   cfg.Fitter.Alpha,
		MaxIter: cfg.Fitter.MaxIter,
		Tol:     cfg.Fitter.Tol,
	})
	if err != nil {
		logger.Errorf("failed to resolve fitter %q: %v", cfg.Fitter.Name, err)
		return nil, &CapabilityError{Capability: "fitter", Name: cfg.Fitter.Name, Err: err}
	}

	logger.Debugf("detector ready: fitter=%s change_threshold=%.4f outlier_threshold=%.4f",
		cfg.Fitter.Name, params.ChangeThreshold, params.OutlierThreshold)

	return &Detector{
		params: params,
		fitter: fitter,
		logger: logger,
	}, nil
}

// Params returns the resolved detection parameters.
func (d *Detector) Params() change.Params {
	return d.params
}

// Detect validates s, selects its procedure from its quality flags and
// runs the engine.
func (d *Detector) Detect(s series.Series) (*Detection, error) {
	if err := s.Validate(); err != nil {
		return nil, err
	}

	proc, class, err := procedure.ForSeries(&s, d.params)
	if err != nil {
		return nil, err
	}

	res, err := change.Detect(&s, proc, d.fitter, d.params, d.logger)
	if err != nil {
		return nil, err
	}

	d.logger.Debugf("detected %d segments with procedure %s", len(res.Segments), res.Procedure)
	return assemble(&s, class, res), nil
}

// Option adjusts the package-level Detect call.
type Option func(*options)

type options struct {
	detection config.DetectionData
	logger    *zap.SugaredLogger
}

// WithDetection replaces the default detection parameters.
func WithDetection(d config.DetectionData) Option {
	return func(o *options) {
		o.detection = d
	}
}

// WithLogger sets the logger used for the run.
func WithLogger(l *zap.SugaredLogger) Option {
	return func(o *options) {
		o.logger = l
	}
}

// Detect runs change detection over one pixel given as parallel slices.
// Dates are ordinal days; quality holds one QA code per observation.
func Detect(dates []int, reds, greens, blues, nirs, swir1s, swir2s, thermals []float64, quality []int, opts ...Option) (*Detection, error) {
	o := options{detection: config.DefaultDetection()}
	for _, opt := range opts {
		opt(&o)
	}

	d, err := NewDetector(o.detection, o.logger)
	if err != nil {
		return nil, err
	}
	return d.Detect(series.New(dates, reds, greens, blues, nirs, swir1s, swir2s, thermals, quality))
}
