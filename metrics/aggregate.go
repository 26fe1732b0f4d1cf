package metrics

import (
	"cmp"
	"maps"
	"slices"

	"gonum.org/v1/gonum/stat"
)

// Record is the score of one model on one station for one metric.
type Record struct {
	Model   string  `json:"model"`
	Metric  Kind    `json:"metric"`
	Station string  `json:"station"`
	Value   float64 `json:"value"`
}

// NewRecords flattens the scores of a model on a station, ordered by metric.
func NewRecords(model, station string, scores map[Kind]float64) []Record {
	records := make([]Record, 0, len(scores))
	for _, k := range slices.Sorted(maps.Keys(scores)) {
		records = append(records, Record{
			Model:   model,
			Metric:  k,
			Station: station,
			Value:   scores[k],
		})
	}
	return records
}

// Summary is the mean score of a model across stations. Metric is empty when the records were
// not grouped by metric.
type Summary struct {
	Model    string  `json:"model"`
	Metric   Kind    `json:"metric,omitempty"`
	Value    float64 `json:"value"`
	Stations int     `json:"stations"`
}

type summaryKey struct {
	model  string
	metric Kind
}

// Aggregate averages the records of each model, and of each metric when byKind is set, giving
// every station the same weight. Summaries are sorted by model then metric.
func Aggregate(records []Record, byKind bool) []Summary {
	groups := make(map[summaryKey][]float64)
	stations := make(map[summaryKey]map[string]struct{})
	for _, r := range records {
		key := summaryKey{model: r.Model}
		if byKind {
			key.metric = r.Metric
		}
		groups[key] = append(groups[key], r.Value)
		if stations[key] == nil {
			stations[key] = make(map[string]struct{})
		}
		stations[key][r.Station] = struct{}{}
	}

	res := make([]Summary, 0, len(groups))
	for key, vals := range groups {
		res = append(res, Summary{
			Model:    key.model,
			Metric:   key.metric,
			Value:    stat.Mean(vals, nil),
			Stations: len(stations[key]),
		})
	}
	slices.SortFunc(res, func(a, b Summary) int {
		return cmp.Or(cmp.Compare(a.Model, b.Model), cmp.Compare(a.Metric, b.Metric))
	})
	return res
}
