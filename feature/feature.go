// Package feature builds the design matrices fed to the station forecast models: calendar
// columns, encoded categories, lags and the interpolation masks used to drop synthetic points.
package feature

import (
	"fmt"
	"strconv"
	"strings"
)

type FeatureType int

const (
	FeatureTypeCalendar FeatureType = iota
	FeatureTypeDummy
	FeatureTypeLag
	FeatureTypeCluster
	FeatureTypeComponent
	FeatureTypeFourier
	FeatureTypeChangepoint
)

type Feature interface {
	String() string
	Get(string) (string, bool)
	Type() FeatureType
	Decode() map[string]string
}

// Calendar is a column derived from the timestamp alone, e.g. hour or day_of_week.
type Calendar struct {
	Name string `json:"name"`
}

func NewCalendar(name string) *Calendar {
	return &Calendar{name}
}

func (c Calendar) String() string {
	return c.Name
}

func (c Calendar) Get(label string) (string, bool) {
	switch strings.ToLower(label) {
	case "name":
		return c.Name, true
	}
	return "", false
}

func (c Calendar) Type() FeatureType {
	return FeatureTypeCalendar
}

func (c Calendar) Decode() map[string]string {
	return map[string]string{"name": c.Name}
}

// Dummy is the indicator column of a single level of a categorical feature.
type Dummy struct {
	Name  string `json:"name"`
	Level int    `json:"level"`
}

func NewDummy(name string, level int) *Dummy {
	return &Dummy{Name: name, Level: level}
}

func (d Dummy) String() string {
	return fmt.Sprintf("%s_%d", d.Name, d.Level)
}

func (d Dummy) Get(label string) (string, bool) {
	switch strings.ToLower(label) {
	case "name":
		return d.Name, true
	case "level":
		return strconv.Itoa(d.Level), true
	}
	return "", false
}

func (d Dummy) Type() FeatureType {
	return FeatureTypeDummy
}

func (d Dummy) Decode() map[string]string {
	return map[string]string{
		"name":  d.Name,
		"level": strconv.Itoa(d.Level),
	}
}

// Lag is the station value a fixed number of hours in the past.
type Lag struct {
	Hours int `json:"hours"`
}

func NewLag(hours int) *Lag {
	return &Lag{hours}
}

func (l Lag) String() string {
	return fmt.Sprintf("lag_%d", l.Hours)
}

func (l Lag) Get(label string) (string, bool) {
	switch strings.ToLower(label) {
	case "hours":
		return strconv.Itoa(l.Hours), true
	}
	return "", false
}

func (l Lag) Type() FeatureType {
	return FeatureTypeLag
}

func (l Lag) Decode() map[string]string {
	return map[string]string{"hours": strconv.Itoa(l.Hours)}
}

// Cluster is the constant group id of a station assigned from correlated occupancy.
type Cluster struct{}

func NewCluster() *Cluster {
	return &Cluster{}
}

func (c Cluster) String() string {
	return "station_cluster"
}

func (c Cluster) Get(label string) (string, bool) {
	return "", false
}

func (c Cluster) Type() FeatureType {
	return FeatureTypeCluster
}

func (c Cluster) Decode() map[string]string {
	return map[string]string{}
}

// Component is the projection of the calendar columns onto one principal component.
type Component struct {
	Index int `json:"index"`
}

func NewComponent(index int) *Component {
	return &Component{index}
}

func (c Component) String() string {
	return fmt.Sprintf("pc_%d", c.Index)
}

func (c Component) Get(label string) (string, bool) {
	switch strings.ToLower(label) {
	case "index":
		return strconv.Itoa(c.Index), true
	}
	return "", false
}

func (c Component) Type() FeatureType {
	return FeatureTypeComponent
}

func (c Component) Decode() map[string]string {
	return map[string]string{"index": strconv.Itoa(c.Index)}
}
