package config

// ConfigProvider defines the interface for configuration data sources
type ConfigProvider interface {
	// Load complete configuration, defaults filled in and validated
	LoadConfig() (*ConfigData, error)

	// Configuration management (SQLite profiles can be written back)
	IsReadOnly() bool
	Close() error
}

// ConfigData represents the complete configuration structure
type ConfigData struct {
	Detection DetectionData `json:"detection" yaml:"detection"`
	Output    OutputData    `json:"output" yaml:"output"`
}

// DetectionData holds the change detection parameters
type DetectionData struct {
	// Minimum expected observation window: the fewest observations a model is fit on.
	MEOWSize int `json:"meow_size" yaml:"meow_size" validate:"gte=1"`
	// Consecutive observations that must all exceed the change threshold.
	PeekSize int `json:"peek_size" yaml:"peek_size" validate:"gte=1"`
	// Minimum time span, in days, of an initial window.
	DayDelta    int     `json:"day_delta" yaml:"day_delta" validate:"gte=0"`
	AvgDaysYear float64 `json:"avg_days_year" yaml:"avg_days_year" validate:"gt=0"`

	CoefMin      int `json:"coef_min" yaml:"coef_min" validate:"gte=2,ltefield=CoefMid"`
	CoefMid      int `json:"coef_mid" yaml:"coef_mid" validate:"ltefield=CoefMax"`
	CoefMax      int `json:"coef_max" yaml:"coef_max" validate:"lte=8"`
	NumObsFactor int `json:"num_obs_factor" yaml:"num_obs_factor" validate:"gte=1"`

	ChangeProbability  float64 `json:"change_probability" yaml:"change_probability" validate:"gt=0,lt=1"`
	OutlierProbability float64 `json:"outlier_probability" yaml:"outlier_probability" validate:"gt=0,lt=1,gtefield=ChangeProbability"`
	TMaskConst         float64 `json:"tmask_const" yaml:"tmask_const" validate:"gt=0"`

	DetectionBands []string `json:"detection_bands" yaml:"detection_bands" validate:"min=1,max=7,unique,dive,oneof=red green blue nir swir1 swir2 thermal"`
	TMaskBands     []string `json:"tmask_bands" yaml:"tmask_bands" validate:"unique,dive,oneof=red green blue nir swir1 swir2 thermal"`

	RefitGrowth     float64 `json:"refit_growth" yaml:"refit_growth" validate:"gte=1"`
	VariogramMinGap int     `json:"variogram_min_gap" yaml:"variogram_min_gap" validate:"gte=0"`

	ClearPctThreshold float64 `json:"clear_pct_threshold" yaml:"clear_pct_threshold" validate:"gte=0,lte=1"`
	SnowPctThreshold  float64 `json:"snow_pct_threshold" yaml:"snow_pct_threshold" validate:"gte=0,lte=1"`

	ObsRange          RangeData `json:"obs_range" yaml:"obs_range"`
	ThermalRange      RangeData `json:"thermal_range" yaml:"thermal_range"`
	GreenMedianOffset float64   `json:"green_median_offset" yaml:"green_median_offset" validate:"gte=0"`

	Fitter FitterData `json:"fitter" yaml:"fitter"`
}

// RangeData is an exclusive validity range for band values
type RangeData struct {
	Min float64 `json:"min" yaml:"min"`
	Max float64 `json:"max" yaml:"max" validate:"gtfield=Min"`
}

// FitterData selects and tunes the regression capability
type FitterData struct {
	Name    string  `json:"name" yaml:"name" validate:"required"`
	Alpha   float64 `json:"alpha" yaml:"alpha" validate:"gte=0"`
	MaxIter int     `json:"max_iter" yaml:"max_iter" validate:"gte=1"`
	Tol     float64 `json:"tol" yaml:"tol" validate:"gt=0"`
}

// OutputData controls how detections are written
type OutputData struct {
	Format      string `json:"format" yaml:"format" validate:"oneof=json msgpack"`
	Compression string `json:"compression" yaml:"compression" validate:"oneof=none zstd lz4 s2"`
}
