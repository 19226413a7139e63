package config

import (
	"fmt"

	"github.com/go-playground/validator/v10"
)

// configValidate checks struct tags on ConfigData.
var configValidate = validator.New()

// Defaults returns the standard parameter set for Landsat surface reflectance.
func Defaults() ConfigData {
	return ConfigData{
		Detection: DefaultDetection(),
		Output: OutputData{
			Format:      "json",
			Compression: "none",
		},
	}
}

// DefaultDetection returns the default detection parameters.
func DefaultDetection() DetectionData {
	return DetectionData{
		MEOWSize:           12,
		PeekSize:           6,
		DayDelta:           365,
		AvgDaysYear:        365.2425,
		CoefMin:            4,
		CoefMid:            6,
		CoefMax:            8,
		NumObsFactor:       3,
		ChangeProbability:  0.99,
		OutlierProbability: 0.999,
		TMaskConst:         4.89,
		DetectionBands:     []string{"green", "red", "nir", "swir1", "swir2"},
		TMaskBands:         []string{"green", "swir1"},
		RefitGrowth:        1.33,
		VariogramMinGap:    30,
		ClearPctThreshold:  0.25,
		SnowPctThreshold:   0.75,
		ObsRange:           RangeData{Min: 0, Max: 10000},
		ThermalRange:       RangeData{Min: -9320, Max: 7070},
		GreenMedianOffset:  400,
		Fitter: FitterData{
			Name:    "lasso",
			Alpha:   20,
			MaxIter: 1000,
			Tol:     1e-4,
		},
	}
}

// Validate checks the configuration for values the engine cannot run with.
func (c *ConfigData) Validate() error {
	if err := configValidate.Struct(c); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	d := c.Detection
	if d.MEOWSize < d.CoefMin {
		return fmt.Errorf("invalid configuration: meow_size %d is smaller than coef_min %d", d.MEOWSize, d.CoefMin)
	}
	return nil
}
