package loader

import (
	"math"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/aouyang1/go-stationcast/timedataset"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseFrame(t *testing.T) {
	input := "timestamp,a, b\n" +
		"2016-04-01T00:00:00Z,0.5,\n" +
		"2016-04-01T01:00:00Z,0.25,1\n" +
		"2016-04-01T04:00:00+02:00, ,0.75\n"

	frame, err := ParseFrame(strings.NewReader(input))
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b"}, frame.Stations())
	require.Equal(t, 3, frame.Len())
	assert.Equal(t, time.Date(2016, 4, 1, 2, 0, 0, 0, time.UTC), frame.Index()[2])

	a, err := frame.Values("a")
	require.NoError(t, err)
	assert.Equal(t, 0.5, a[0])
	assert.Equal(t, 0.25, a[1])
	assert.True(t, math.IsNaN(a[2]))

	b, err := frame.Values("b")
	require.NoError(t, err)
	assert.True(t, math.IsNaN(b[0]))
	assert.Equal(t, []float64{1, 0.75}, b[1:])
}

func TestParseFrameErrors(t *testing.T) {
	testData := map[string]struct {
		input       string
		expectedErr error
		anyErr      bool
	}{
		"empty": {
			input:  "",
			anyErr: true,
		},
		"no station": {
			input:       "timestamp\n2016-04-01T00:00:00Z\n",
			expectedErr: ErrInvalidHeader,
		},
		"header only": {
			input:       "timestamp,a\n",
			expectedErr: ErrNoRows,
		},
		"bad timestamp": {
			input:  "timestamp,a\n01/04/2016 00:00,0.5\n",
			anyErr: true,
		},
		"bad value": {
			input:  "timestamp,a\n2016-04-01T00:00:00Z,full\n",
			anyErr: true,
		},
		"ragged row": {
			input:  "timestamp,a,b\n2016-04-01T00:00:00Z,0.5\n",
			anyErr: true,
		},
		"missing hour": {
			input:       "timestamp,a\n2016-04-01T00:00:00Z,0.5\n2016-04-01T02:00:00Z,0.5\n",
			expectedErr: timedataset.ErrNonHourly,
		},
		"duplicate station": {
			input:       "timestamp,a,a\n2016-04-01T00:00:00Z,0.5,0.5\n",
			expectedErr: timedataset.ErrDuplicateStation,
		},
	}

	for name, td := range testData {
		t.Run(name, func(t *testing.T) {
			_, err := ParseFrame(strings.NewReader(td.input))
			if td.expectedErr != nil {
				assert.ErrorIs(t, err, td.expectedErr)
				return
			}
			assert.Error(t, err)
		})
	}
}

func TestParseStations(t *testing.T) {
	testData := map[string]struct {
		input       string
		expected    []timedataset.Station
		expectedErr error
		anyErr      bool
	}{
		"code latitude longitude": {
			input: "code,latitude,longitude\na,43.5,1.5\nb,43.7,1.3\n",
			expected: []timedataset.Station{
				{Code: "a", Latitude: 43.5, Longitude: 1.5},
				{Code: "b", Latitude: 43.7, Longitude: 1.3},
			},
		},
		"unnamed code and reordered columns": {
			input: ",longitude,Latitude\na,1.5,43.5\n",
			expected: []timedataset.Station{
				{Code: "a", Latitude: 43.5, Longitude: 1.5},
			},
		},
		"no coordinates": {
			input:       "code,lat,lon\na,43.5,1.5\n",
			expectedErr: ErrInvalidHeader,
		},
		"coordinates before code": {
			input:       "latitude,longitude,code\n43.5,1.5,a\n",
			expectedErr: ErrInvalidHeader,
		},
		"no rows": {
			input:       "code,latitude,longitude\n",
			expectedErr: ErrNoRows,
		},
		"bad latitude": {
			input:  "code,latitude,longitude\na,north,1.5\n",
			anyErr: true,
		},
	}

	for name, td := range testData {
		t.Run(name, func(t *testing.T) {
			stations, err := ParseStations(strings.NewReader(td.input))
			if td.expectedErr != nil {
				assert.ErrorIs(t, err, td.expectedErr)
				return
			}
			if td.anyErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, td.expected, stations)
		})
	}
}

func TestLoadFiles(t *testing.T) {
	dir := t.TempDir()
	occupancy := filepath.Join(dir, "occupancy.csv")
	require.NoError(t, os.WriteFile(occupancy, []byte("timestamp,a\n2016-04-01T00:00:00Z,0.5\n"), 0o644))
	coordinates := filepath.Join(dir, "coordinates.csv")
	require.NoError(t, os.WriteFile(coordinates, []byte("code,latitude,longitude\na,43,1\nb,44,2\n"), 0o644))

	frame, err := LoadFrame(occupancy)
	require.NoError(t, err)
	assert.Equal(t, 1, frame.Len())

	stations, err := LoadStations(coordinates)
	require.NoError(t, err)
	lat, lon := Centroid(stations)
	assert.InDelta(t, 43.5, lat, 1e-12)
	assert.InDelta(t, 1.5, lon, 1e-12)

	_, err = LoadFrame(filepath.Join(dir, "missing.csv"))
	assert.ErrorIs(t, err, os.ErrNotExist)
}
