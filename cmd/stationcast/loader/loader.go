// Package loader reads the city occupancy matrix and the station coordinates from CSV exports.
package loader

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/aouyang1/go-stationcast/timedataset"
	"gonum.org/v1/gonum/stat"
)

var (
	ErrInvalidHeader = errors.New("invalid csv header")
	ErrNoRows        = errors.New("csv has no data rows")
)

// LoadFrame reads the occupancy CSV at path.
func LoadFrame(path string) (*timedataset.Frame, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("unable to open occupancy file, %w", err)
	}
	defer f.Close()
	return ParseFrame(f)
}

// ParseFrame parses an occupancy matrix.
//
// Expected format:
//
//	timestamp,station_a,station_b
//	2016-04-01T00:00:00Z,0.42,
//	2016-04-01T01:00:00Z,0.40,0.75
//
// Empty cells are missing hours and load as NaN.
func ParseFrame(r io.Reader) (*timedataset.Frame, error) {
	cr := csv.NewReader(r)

	header, err := cr.Read()
	if err != nil {
		return nil, fmt.Errorf("reading CSV header: %w", err)
	}
	if len(header) < 2 {
		return nil, fmt.Errorf("expected a timestamp and at least one station, got %d columns, %w", len(header), ErrInvalidHeader)
	}
	stations := make([]string, len(header)-1)
	for i, name := range header[1:] {
		stations[i] = strings.TrimSpace(name)
	}

	var t []time.Time
	cols := make([][]float64, len(stations))
	lineNum := 1 // header was line 1

	for {
		lineNum++
		record, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("reading CSV line %d: %w", lineNum, err)
		}

		ts, err := time.Parse(time.RFC3339, strings.TrimSpace(record[0]))
		if err != nil {
			return nil, fmt.Errorf("line %d: parsing timestamp %q: %w", lineNum, record[0], err)
		}
		t = append(t, ts.UTC())

		for i, cell := range record[1:] {
			v, err := parseRatio(cell)
			if err != nil {
				return nil, fmt.Errorf("line %d: station %s: %w", lineNum, stations[i], err)
			}
			cols[i] = append(cols[i], v)
		}
	}
	if len(t) == 0 {
		return nil, ErrNoRows
	}
	return timedataset.NewFrame(t, stations, cols)
}

func parseRatio(cell string) (float64, error) {
	cell = strings.TrimSpace(cell)
	if cell == "" {
		return math.NaN(), nil
	}
	v, err := strconv.ParseFloat(cell, 64)
	if err != nil {
		return 0, fmt.Errorf("parsing value %q: %w", cell, err)
	}
	return v, nil
}

// LoadStations reads the station coordinates CSV at path.
func LoadStations(path string) ([]timedataset.Station, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("unable to open stations file, %w", err)
	}
	defer f.Close()
	return ParseStations(f)
}

// ParseStations parses station coordinates. The first column holds the station code and the
// latitude and longitude columns are found by name.
//
// Expected format:
//
//	code,latitude,longitude
//	station_a,43.6045,1.4440
func ParseStations(r io.Reader) ([]timedataset.Station, error) {
	cr := csv.NewReader(r)

	header, err := cr.Read()
	if err != nil {
		return nil, fmt.Errorf("reading CSV header: %w", err)
	}
	latIdx, lonIdx := -1, -1
	for i, col := range header {
		switch strings.ToLower(strings.TrimSpace(col)) {
		case "latitude":
			latIdx = i
		case "longitude":
			lonIdx = i
		}
	}
	if latIdx <= 0 || lonIdx <= 0 {
		return nil, fmt.Errorf("expected a code column followed by latitude and longitude, got %v, %w", header, ErrInvalidHeader)
	}

	var stations []timedataset.Station
	lineNum := 1

	for {
		lineNum++
		record, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("reading CSV line %d: %w", lineNum, err)
		}

		lat, err := strconv.ParseFloat(strings.TrimSpace(record[latIdx]), 64)
		if err != nil {
			return nil, fmt.Errorf("line %d: parsing latitude %q: %w", lineNum, record[latIdx], err)
		}
		lon, err := strconv.ParseFloat(strings.TrimSpace(record[lonIdx]), 64)
		if err != nil {
			return nil, fmt.Errorf("line %d: parsing longitude %q: %w", lineNum, record[lonIdx], err)
		}
		stations = append(stations, timedataset.Station{
			Code:      strings.TrimSpace(record[0]),
			Latitude:  lat,
			Longitude: lon,
		})
	}
	if len(stations) == 0 {
		return nil, ErrNoRows
	}
	return stations, nil
}

// Centroid is the mean position of the stations.
func Centroid(stations []timedataset.Station) (float64, float64) {
	lat := make([]float64, len(stations))
	lon := make([]float64, len(stations))
	for i, s := range stations {
		lat[i] = s.Latitude
		lon[i] = s.Longitude
	}
	return stat.Mean(lat, nil), stat.Mean(lon, nil)
}
