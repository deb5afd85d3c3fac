// Package geo holds the distance and tour helpers shared by the allocation
// engine. Coordinates are degrees, distances are kilometres.
package geo

import (
	"math"

	"gonum.org/v1/gonum/floats/scalar"
	"gonum.org/v1/gonum/stat"
)

// EarthRadiusKm is the sphere radius used by Haversine.
const EarthRadiusKm = 6371.0

// Point is a latitude/longitude pair in degrees.
type Point struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}

// Haversine returns the great-circle distance in km between two coordinates.
func Haversine(lat1, lon1, lat2, lon2 float64) float64 {
	dLat := toRad(lat2 - lat1)
	dLon := toRad(lon2 - lon1)
	a := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(toRad(lat1))*math.Cos(toRad(lat2))*math.Sin(dLon/2)*math.Sin(dLon/2)
	if a > 1 {
		a = 1
	}
	return EarthRadiusKm * 2 * math.Atan2(math.Sqrt(a), math.Sqrt(1-a))
}

// Distance is Haversine over two points.
func Distance(a, b Point) float64 {
	return Haversine(a.Lat, a.Lng, b.Lat, b.Lng)
}

// Centroid returns the arithmetic mean of the points. An empty slice yields
// the zero point.
func Centroid(points []Point) Point {
	if len(points) == 0 {
		return Point{}
	}
	lats := make([]float64, len(points))
	lngs := make([]float64, len(points))
	for i, p := range points {
		lats[i] = p.Lat
		lngs[i] = p.Lng
	}
	return Point{Lat: stat.Mean(lats, nil), Lng: stat.Mean(lngs, nil)}
}

// SumDistances returns the total distance from p to every point in others.
func SumDistances(p Point, others []Point) float64 {
	var sum float64
	for _, o := range others {
		sum += Distance(p, o)
	}
	return sum
}

// EstimateTravelDistance approximates a tour over points with the nearest
// neighbour heuristic starting at points[0]. Ties keep the first point found
// in scan order. The result is rounded to two decimals.
func EstimateTravelDistance(points []Point) float64 {
	if len(points) < 2 {
		return 0
	}
	visited := make([]bool, len(points))
	visited[0] = true
	cur := 0
	var total float64
	for step := 1; step < len(points); step++ {
		next := -1
		best := math.Inf(1)
		for i, p := range points {
			if visited[i] {
				continue
			}
			if d := Distance(points[cur], p); d < best {
				best = d
				next = i
			}
		}
		visited[next] = true
		total += best
		cur = next
	}
	return Round2(total)
}

// Round2 rounds to two decimals.
func Round2(v float64) float64 {
	return scalar.Round(v, 2)
}

func toRad(deg float64) float64 { return deg * math.Pi / 180 }
