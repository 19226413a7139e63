package ccd

import (
	"encoding/binary"
	"fmt"
	"math"

	"github.com/cespare/xxhash/v2"

	"github.com/chrissnell/ccdetect/internal/change"
	"github.com/chrissnell/ccdetect/internal/constants"
	"github.com/chrissnell/ccdetect/internal/qa"
	"github.com/chrissnell/ccdetect/internal/series"
)

// Detection is the assembled result for one pixel.
type Detection struct {
	Algorithm      string        `json:"algorithm"`
	Procedure      string        `json:"procedure"`
	QualityClass   string        `json:"quality_class"`
	SeriesHash     string        `json:"series_hash"`
	ProcessingMask []bool        `json:"processing_mask"`
	ChangeModels   []ChangeModel `json:"change_models"`
}

// ChangeModel is one segment of the series.
type ChangeModel struct {
	StartDay int `json:"start_day"`
	EndDay   int `json:"end_day"`
	// BreakDay is nil when no change closed the segment.
	BreakDay          *int    `json:"break_day"`
	ObservationCount  int     `json:"observation_count"`
	ChangeProbability float64 `json:"change_probability"`
	NumCoefficients   int     `json:"num_coefficients"`
	CurveQA           int     `json:"curve_qa"`

	Red     BandModel `json:"red"`
	Green   BandModel `json:"green"`
	Blue    BandModel `json:"blue"`
	NIR     BandModel `json:"nir"`
	SWIR1   BandModel `json:"swir1"`
	SWIR2   BandModel `json:"swir2"`
	Thermal BandModel `json:"thermal"`
}

// BandModel is the fitted model of one band over a segment.
type BandModel struct {
	Magnitude    float64   `json:"magnitude"`
	RMSE         float64   `json:"rmse"`
	Coefficients []float64 `json:"coefficients"`
	Intercept    float64   `json:"intercept"`
}

// Bands returns the band models in band order.
func (m *ChangeModel) Bands() [series.NumBands]BandModel {
	return [series.NumBands]BandModel{m.Red, m.Green, m.Blue, m.NIR, m.SWIR1, m.SWIR2, m.Thermal}
}

func (m *ChangeModel) band(b series.Band) *BandModel {
	switch b {
	case series.Red:
		return &m.Red
	case series.Green:
		return &m.Green
	case series.Blue:
		return &m.Blue
	case series.NIR:
		return &m.NIR
	case series.SWIR1:
		return &m.SWIR1
	case series.SWIR2:
		return &m.SWIR2
	case series.Thermal:
		return &m.Thermal
	}
	panic(fmt.Sprintf("ccd: band %d out of range", int(b)))
}

// assemble converts an engine result into the public Detection.
func assemble(s *series.Series, class qa.Class, res *change.Result) *Detection {
	d := &Detection{
		Algorithm:      constants.Algorithm,
		Procedure:      res.Procedure,
		QualityClass:   class.String(),
		SeriesHash:     SeriesHash(s),
		ProcessingMask: res.Mask,
		ChangeModels:   make([]ChangeModel, 0, len(res.Segments)),
	}
	for _, seg := range res.Segments {
		cm := ChangeModel{
			StartDay:          seg.StartDay,
			EndDay:            seg.EndDay,
			ObservationCount:  seg.ObservationCount,
			ChangeProbability: seg.ChangeProbability,
			NumCoefficients:   seg.NumCoefficients,
			CurveQA:           seg.CurveQA,
		}
		if seg.HasBreak() {
			day := seg.BreakDay
			cm.BreakDay = &day
		}
		for b := series.Band(0); b < series.NumBands; b++ {
			m := seg.Models[b]
			*cm.band(b) = BandModel{
				Magnitude:    seg.Magnitudes[b],
				RMSE:         m.RMSE,
				Coefficients: m.Coefficients,
				Intercept:    m.Intercept,
			}
		}
		d.ChangeModels = append(d.ChangeModels, cm)
	}
	return d
}

// SeriesHash fingerprints the input series with xxhash64 so repeated runs
// over the same pixel can be matched.
func SeriesHash(s *series.Series) string {
	h := xxhash.New()
	var buf [8]byte
	put := func(v uint64) {
		binary.LittleEndian.PutUint64(buf[:], v)
		_, _ = h.Write(buf[:])
	}

	put(uint64(len(s.Dates)))
	for _, d := range s.Dates {
		put(uint64(d))
	}
	for b := range s.Bands {
		for _, v := range s.Bands[b] {
			put(math.Float64bits(v))
		}
	}
	for _, q := range s.Quality {
		put(uint64(q))
	}
	return fmt.Sprintf("%016x", h.Sum64())
}
