package timedataset

import (
	"encoding/binary"
	"errors"
	"fmt"
	"math"
	"slices"
	"strconv"
	"time"

	"github.com/cespare/xxhash/v2"
)

var (
	ErrNoStations       = errors.New("no stations in frame")
	ErrDuplicateStation = errors.New("duplicate or empty station name")
	ErrUnknownStation   = errors.New("unknown station")
	ErrInvalidTrainSize = errors.New("train size must be between 0 and 1 exclusive")
	ErrEmptySplit       = errors.New("split leaves an empty train or test set")
)

// Station is a bike-share dock location.
type Station struct {
	Code      string  `json:"code"`
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
}

// Frame is a city wide hourly occupancy matrix sharing one contiguous time axis across all
// stations. Missing hours are represented with NaN.
type Frame struct {
	t        []time.Time
	stations []string
	idx      map[string]int
	columns  [][]float64
}

// NewFrame validates and copies the time axis and station columns into a Frame.
func NewFrame(t []time.Time, stations []string, columns [][]float64) (*Frame, error) {
	if len(t) == 0 {
		return nil, ErrNoTrainingData
	}
	if len(stations) == 0 {
		return nil, ErrNoStations
	}
	if len(stations) != len(columns) {
		return nil, fmt.Errorf(
			"got %d station names but %d columns, %w",
			len(stations), len(columns), ErrDatasetLenMismatch,
		)
	}
	if err := checkMonotonic(t); err != nil {
		return nil, err
	}
	if err := TimeSlice(t).ValidateHourly(); err != nil {
		return nil, err
	}

	f := &Frame{
		t:        slices.Clone(t),
		stations: slices.Clone(stations),
		idx:      make(map[string]int, len(stations)),
		columns:  make([][]float64, len(columns)),
	}
	for i, name := range stations {
		if _, exists := f.idx[name]; exists || name == "" {
			return nil, fmt.Errorf("station %q, %w", name, ErrDuplicateStation)
		}
		if len(columns[i]) != len(t) {
			return nil, fmt.Errorf(
				"station %s has %d values for %d time points, %w",
				name, len(columns[i]), len(t), ErrDatasetLenMismatch,
			)
		}
		f.idx[name] = i
		f.columns[i] = slices.Clone(columns[i])
	}
	return f, nil
}

// Len returns the number of hourly rows.
func (f *Frame) Len() int {
	return len(f.t)
}

// Stations returns the station names in column order.
func (f *Frame) Stations() []string {
	return slices.Clone(f.stations)
}

// HasStation reports whether the station is a column of the frame.
func (f *Frame) HasStation(station string) bool {
	_, exists := f.idx[station]
	return exists
}

// Index returns a copy of the time axis.
func (f *Frame) Index() TimeSlice {
	return TimeSlice(slices.Clone(f.t))
}

// Column returns a copy of one station's series.
func (f *Frame) Column(station string) (*TimeDataset, error) {
	i, exists := f.idx[station]
	if !exists {
		return nil, fmt.Errorf("station %s, %w", station, ErrUnknownStation)
	}
	return &TimeDataset{
		T: slices.Clone(f.t),
		Y: slices.Clone(f.columns[i]),
	}, nil
}

// Values returns a copy of the station values without the time axis.
func (f *Frame) Values(station string) ([]float64, error) {
	i, exists := f.idx[station]
	if !exists {
		return nil, fmt.Errorf("station %s, %w", station, ErrUnknownStation)
	}
	return slices.Clone(f.columns[i]), nil
}

// Slice returns the rows in the positional range [i, j) as a new frame.
func (f *Frame) Slice(i, j int) (*Frame, error) {
	if i < 0 || j > f.Len() || i >= j {
		return nil, fmt.Errorf("slice [%d, %d) of %d rows, %w", i, j, f.Len(), ErrOutOfRange)
	}
	cols := make([][]float64, len(f.columns))
	for c, col := range f.columns {
		cols[c] = col[i:j]
	}
	return NewFrame(f.t[i:j], f.stations, cols)
}

// Between returns the rows with start <= t < end as a new frame.
func (f *Frame) Between(start, end time.Time) (*Frame, error) {
	i, j := 0, f.Len()
	for i < j && f.t[i].Before(start) {
		i++
	}
	for j > i && !f.t[j-1].Before(end) {
		j--
	}
	return f.Slice(i, j)
}

// Split is a chronological partition of a frame. Train strictly precedes Test.
type Split struct {
	Train *Frame
	Test  *Frame
	Point int
}

// Split partitions the frame by position at floor(n * trainSize).
func (f *Frame) Split(trainSize float64) (*Split, error) {
	if math.IsNaN(trainSize) || trainSize <= 0 || trainSize >= 1 {
		return nil, fmt.Errorf("got %f, %w", trainSize, ErrInvalidTrainSize)
	}
	point := int(math.Floor(float64(f.Len()) * trainSize))
	if point == 0 || point == f.Len() {
		return nil, fmt.Errorf("split point %d of %d rows, %w", point, f.Len(), ErrEmptySplit)
	}
	train, err := f.Slice(0, point)
	if err != nil {
		return nil, fmt.Errorf("unable to slice training rows, %w", err)
	}
	test, err := f.Slice(point, f.Len())
	if err != nil {
		return nil, fmt.Errorf("unable to slice test rows, %w", err)
	}
	return &Split{
		Train: train,
		Test:  test,
		Point: point,
	}, nil
}

// Fingerprint digests the time range, row count and values of a station column. Any change
// to the training data changes the fingerprint.
func (f *Frame) Fingerprint(station string) (string, error) {
	i, exists := f.idx[station]
	if !exists {
		return "", fmt.Errorf("station %s, %w", station, ErrUnknownStation)
	}
	h := xxhash.New()
	var buf [8]byte
	writeInt := func(v int64) {
		binary.LittleEndian.PutUint64(buf[:], uint64(v))
		h.Write(buf[:])
	}
	writeInt(f.t[0].UnixNano())
	writeInt(f.t[len(f.t)-1].UnixNano())
	writeInt(int64(len(f.t)))
	h.WriteString(station)
	for _, v := range f.columns[i] {
		binary.LittleEndian.PutUint64(buf[:], math.Float64bits(v))
		h.Write(buf[:])
	}
	return strconv.FormatUint(h.Sum64(), 16), nil
}

// FrameFingerprint combines every station fingerprint into one digest for the whole frame.
func (f *Frame) FrameFingerprint() string {
	h := xxhash.New()
	for _, station := range f.stations {
		fp, _ := f.Fingerprint(station)
		h.WriteString(fp)
	}
	return strconv.FormatUint(h.Sum64(), 16)
}
