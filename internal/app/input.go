package app

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/chrissnell/ccdetect/internal/series"
)

// Column names of the observation CSV. The first ten are required; column
// order is free.
const (
	colPixel = "pixel_id"
	colDate  = "date"
	colQA    = "qa"
)

// Pixel is one pixel's observation series
type Pixel struct {
	ID     string
	Series series.Series
}

type observation struct {
	date    int
	values  [series.NumBands]float64
	quality int
}

// ReadPixels parses an observation CSV and groups it by pixel in order of
// first appearance. Rows of a pixel are sorted by date; dates are either
// YYYY-MM-DD or ordinal day numbers.
func ReadPixels(r io.Reader) ([]Pixel, error) {
	cr := csv.NewReader(r)
	cr.TrimLeadingSpace = true
	cr.ReuseRecord = true

	header, err := cr.Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return nil, &series.InputError{Field: "header", Reason: "input is empty"}
		}
		return nil, fmt.Errorf("error reading CSV header: %w", err)
	}
	cols, err := columnIndex(header)
	if err != nil {
		return nil, err
	}

	var order []string
	rows := map[string][]observation{}
	line := 1
	for {
		rec, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		line++
		if err != nil {
			return nil, fmt.Errorf("error reading CSV line %d: %w", line, err)
		}

		obs, err := parseRow(rec, cols, line)
		if err != nil {
			return nil, err
		}
		id := rec[cols[colPixel]]
		if _, seen := rows[id]; !seen {
			order = append(order, id)
		}
		rows[id] = append(rows[id], obs)
	}

	pixels := make([]Pixel, 0, len(order))
	for _, id := range order {
		pixels = append(pixels, Pixel{ID: id, Series: toSeries(rows[id])})
	}
	return pixels, nil
}

func columnIndex(header []string) (map[string]int, error) {
	cols := map[string]int{}
	for i, h := range header {
		cols[strings.ToLower(strings.TrimSpace(h))] = i
	}
	required := append([]string{colPixel, colDate}, series.BandNames[:]...)
	required = append(required, colQA)
	for _, name := range required {
		if _, ok := cols[name]; !ok {
			return nil, &series.InputError{Field: "header", Reason: fmt.Sprintf("missing column %q", name)}
		}
	}
	return cols, nil
}

func parseRow(rec []string, cols map[string]int, line int) (observation, error) {
	var obs observation
	var err error

	if obs.date, err = parseDate(rec[cols[colDate]]); err != nil {
		return obs, &series.InputError{Field: colDate, Index: line, Reason: err.Error()}
	}
	for b, name := range series.BandNames {
		v, err := strconv.ParseFloat(strings.TrimSpace(rec[cols[name]]), 64)
		if err != nil {
			return obs, &series.InputError{Field: name, Index: line, Reason: err.Error()}
		}
		obs.values[b] = v
	}
	if obs.quality, err = strconv.Atoi(strings.TrimSpace(rec[cols[colQA]])); err != nil {
		return obs, &series.InputError{Field: colQA, Index: line, Reason: err.Error()}
	}
	return obs, nil
}

func parseDate(s string) (int, error) {
	s = strings.TrimSpace(s)
	if n, err := strconv.Atoi(s); err == nil {
		return n, nil
	}
	t, err := time.Parse("2006-01-02", s)
	if err != nil {
		return 0, fmt.Errorf("date %q is neither YYYY-MM-DD nor an ordinal day", s)
	}
	return series.Ordinal(t), nil
}

func toSeries(obs []observation) series.Series {
	sort.SliceStable(obs, func(i, j int) bool { return obs[i].date < obs[j].date })

	s := series.Series{
		Dates:   make([]int, len(obs)),
		Quality: make([]int, len(obs)),
	}
	for b := range s.Bands {
		s.Bands[b] = make([]float64, len(obs))
	}
	for i, o := range obs {
		s.Dates[i] = o.date
		s.Quality[i] = o.quality
		for b := range s.Bands {
			s.Bands[b][i] = o.values[b]
		}
	}
	return s
}
