package registry

import (
	"math"
	"strconv"
	"time"

	"github.com/aouyang1/go-stationcast/timedataset"
	"github.com/goccy/go-json"
)

// Table is the persisted form of the registry predictions, keyed by model then station.
type Table struct {
	// Fingerprint identifies the frame the predictions were computed on
	Fingerprint string                        `json:"fingerprint"`
	Horizon     int                           `json:"horizon"`
	Predictions map[string]map[string]*Series `json:"predictions"`
}

// NewTable returns an empty table for the frame fingerprint and horizon.
func NewTable(fingerprint string, horizon int) *Table {
	return &Table{
		Fingerprint: fingerprint,
		Horizon:     horizon,
		Predictions: make(map[string]map[string]*Series),
	}
}

// Put stores a copy of a station prediction.
func (t *Table) Put(model, station string, td *timedataset.TimeDataset) {
	if t.Predictions == nil {
		t.Predictions = make(map[string]map[string]*Series)
	}
	if t.Predictions[model] == nil {
		t.Predictions[model] = make(map[string]*Series)
	}
	c := td.Copy()
	t.Predictions[model][station] = &Series{T: c.T, Y: c.Y}
}

// Get returns a copy of a station prediction.
func (t *Table) Get(model, station string) (*timedataset.TimeDataset, bool) {
	s, exists := t.Predictions[model][station]
	if !exists || s == nil || len(s.T) != len(s.Y) {
		return nil, false
	}
	td := &timedataset.TimeDataset{T: s.T, Y: s.Y}
	return td.Copy(), true
}

// Series is a prediction column. Warmup hours without a forecast are NaN in memory and null
// once encoded.
type Series struct {
	T []time.Time `json:"t"`
	Y Values      `json:"y"`
}

// Values encodes NaN as null.
type Values []float64

func (v Values) MarshalJSON() ([]byte, error) {
	if v == nil {
		return []byte("null"), nil
	}
	b := make([]byte, 0, len(v)*8+2)
	b = append(b, '[')
	for i, f := range v {
		if i > 0 {
			b = append(b, ',')
		}
		if math.IsNaN(f) || math.IsInf(f, 0) {
			b = append(b, "null"...)
			continue
		}
		b = strconv.AppendFloat(b, f, 'g', -1, 64)
	}
	return append(b, ']'), nil
}

func (v *Values) UnmarshalJSON(data []byte) error {
	var raw []*float64
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	if raw == nil {
		*v = nil
		return nil
	}
	res := make(Values, len(raw))
	for i, f := range raw {
		if f == nil {
			res[i] = math.NaN()
			continue
		}
		res[i] = *f
	}
	*v = res
	return nil
}
