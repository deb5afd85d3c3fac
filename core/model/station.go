package model

import (
	"fmt"
	"math"

	"github.com/kilianp07/teamalloc/core/geo"
)

// Station is a geotagged unit of work carrying a workload weight.
type Station struct {
	Code        string  `json:"code" yaml:"code"`
	DisplayName string  `json:"display_name,omitempty" yaml:"name,omitempty"`
	Latitude    float64 `json:"latitude" yaml:"lat"`
	Longitude   float64 `json:"longitude" yaml:"lng"`
	Weight      int     `json:"weight" yaml:"weight"` // workload units, never negative
}

// Point returns the station coordinates.
func (s Station) Point() geo.Point {
	return geo.Point{Lat: s.Latitude, Lng: s.Longitude}
}

// Validate rejects stations the engine cannot place: a missing code, a
// negative weight or a non-finite or exactly zero coordinate.
func (s Station) Validate() error {
	if s.Code == "" {
		return fmt.Errorf("station code is required")
	}
	if s.Weight < 0 {
		return fmt.Errorf("station %s: weight must not be negative", s.Code)
	}
	if !usableCoord(s.Latitude) || !usableCoord(s.Longitude) {
		return fmt.Errorf("station %s: invalid coordinates (%v, %v)", s.Code, s.Latitude, s.Longitude)
	}
	if s.Latitude < -90 || s.Latitude > 90 || s.Longitude < -180 || s.Longitude > 180 {
		return fmt.Errorf("station %s: coordinates out of range (%v, %v)", s.Code, s.Latitude, s.Longitude)
	}
	return nil
}

func usableCoord(v float64) bool {
	return v != 0 && !math.IsNaN(v) && !math.IsInf(v, 0)
}

// TotalWeight sums the weights of stations.
func TotalWeight(stations []Station) int {
	total := 0
	for _, s := range stations {
		total += s.Weight
	}
	return total
}

// Points maps stations to their coordinates, keeping order.
func Points(stations []Station) []geo.Point {
	pts := make([]geo.Point, len(stations))
	for i, s := range stations {
		pts[i] = s.Point()
	}
	return pts
}
