// Package geo computes the map viewport that frames a set of geotagged
// submissions.
//
// The zoom is a heuristic, not a bounding-box-to-pixel projection: it leans
// towards zooming out far enough to show every marker rather than framing
// them tightly. Everything here is pure and safe for concurrent use.
package geo

import (
	"math"

	"github.com/sakif/climate-crew/internal/model"
)

const (
	MinZoom = 9
	MaxZoom = 15
)

type LatLng struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}

type Viewport struct {
	Center LatLng `json:"center"`
	Zoom   int    `json:"zoom"`
}

// Located is anything that may carry a coordinate pair. ok is false when
// either coordinate is missing.
type Located interface {
	Location() (lat, lng float64, ok bool)
}

// Point is a Located with both coordinates always present.
type Point LatLng

func (p Point) Location() (float64, float64, bool) { return p.Lat, p.Lng, true }

type submission model.Submission

func (s submission) Location() (float64, float64, bool) {
	if s.Latitude == nil || s.Longitude == nil {
		return 0, 0, false
	}
	return *s.Latitude, *s.Longitude, true
}

// FromSubmissions adapts submissions for Fit. Entries without a full
// coordinate pair are kept; Fit skips them.
func FromSubmissions(subs []model.Submission) []Located {
	out := make([]Located, len(subs))
	for i, s := range subs {
		out[i] = submission(s)
	}
	return out
}

// Fit returns the viewport framing every located point. The boolean is
// false when no point has both coordinates, meaning the caller should keep
// whatever viewport it already shows.
//
//	center = midpoint of the bounding box
//	span   = max(lat span, lng span)
//	zoom   = MaxZoom                               if span == 0
//	       = clamp(MinZoom, MaxZoom, round(10 - 10*span)) otherwise
func Fit(points []Located) (Viewport, bool) {
	var (
		found                          bool
		minLat, maxLat, minLng, maxLng float64
	)

	for _, p := range points {
		if p == nil {
			continue
		}
		lat, lng, ok := p.Location()
		if !ok {
			continue
		}
		if !found {
			minLat, maxLat, minLng, maxLng = lat, lat, lng, lng
			found = true
			continue
		}
		minLat = math.Min(minLat, lat)
		maxLat = math.Max(maxLat, lat)
		minLng = math.Min(minLng, lng)
		maxLng = math.Max(maxLng, lng)
	}

	if !found {
		return Viewport{}, false
	}

	return Viewport{
		Center: LatLng{
			Lat: (minLat + maxLat) / 2,
			Lng: (minLng + maxLng) / 2,
		},
		Zoom: zoomFor(math.Max(maxLat-minLat, maxLng-minLng)),
	}, true
}

func zoomFor(span float64) int {
	if span == 0 {
		return MaxZoom
	}
	z := int(math.Round(10 - 10*span))
	return max(MinZoom, min(MaxZoom, z))
}
