package geometry

import (
	"math"

	"github.com/golang/geo/r1"
	"github.com/golang/geo/s1"
	"github.com/golang/geo/s2"
	"github.com/paulmach/orb"
	"github.com/paulmach/orb/planar"
)

// s2CellLevel is ~150 km per cell edge; a county bound covers a handful.
const s2CellLevel = 6

// cellIndex maps S2 cells to the features whose bounds overlap them.
type cellIndex struct {
	cells map[s2.CellID][]int
}

func newCellIndex(counties []County) *cellIndex {
	idx := &cellIndex{cells: make(map[s2.CellID][]int)}
	coverer := &s2.RegionCoverer{MinLevel: s2CellLevel, MaxLevel: s2CellLevel, MaxCells: 64}

	for _, c := range counties {
		if c.Feature == nil || c.Feature.Geometry == nil {
			continue
		}
		seen := make(map[s2.CellID]bool)
		for _, rect := range coverRects(c.Feature.Geometry) {
			for _, cell := range coverer.Covering(rect) {
				if seen[cell] {
					continue
				}
				seen[cell] = true
				idx.cells[cell] = append(idx.cells[cell], c.Index)
			}
		}
	}
	return idx
}

// coverRects returns the regions to index for g, one per polygon of a
// multipolygon. Parts split at the antimeridian (Aleutians West) would
// otherwise merge into a bound spanning nearly every longitude.
func coverRects(g orb.Geometry) []s2.Rect {
	if mp, ok := g.(orb.MultiPolygon); ok && len(mp) > 0 {
		rects := make([]s2.Rect, 0, len(mp))
		for _, p := range mp {
			rects = append(rects, boundRect(p.Bound()))
		}
		return rects
	}
	return []s2.Rect{boundRect(g.Bound())}
}

// boundRect converts a planar bound to an s2 rect. A single ring wider than
// half the globe keeps its latitude band over all longitudes.
func boundRect(b orb.Bound) s2.Rect {
	if b.Max.Lon()-b.Min.Lon() > 180 {
		return s2.Rect{
			Lat: r1.Interval{Lo: radians(b.Min.Lat()), Hi: radians(b.Max.Lat())},
			Lng: s1.FullInterval(),
		}
	}
	return s2.RectFromLatLng(s2.LatLngFromDegrees(b.Min.Lat(), b.Min.Lon())).
		AddPoint(s2.LatLngFromDegrees(b.Max.Lat(), b.Max.Lon()))
}

func radians(deg float64) float64 { return deg * math.Pi / 180 }

func (idx *cellIndex) candidates(lat, lon float64) []int {
	cell := s2.CellIDFromLatLng(s2.LatLngFromDegrees(lat, lon)).Parent(s2CellLevel)
	return idx.cells[cell]
}

// Locate returns the feature whose polygon contains the point.
func (l *Layer) Locate(lat, lon float64) (County, bool) {
	pt := orb.Point{lon, lat}
	for _, i := range l.cells.candidates(lat, lon) {
		c := l.counties[i]
		if !c.Feature.Geometry.Bound().Contains(pt) {
			continue
		}
		if contains(c.Feature.Geometry, pt) {
			return c, true
		}
	}
	return County{}, false
}

func contains(g orb.Geometry, pt orb.Point) bool {
	switch geom := g.(type) {
	case orb.Polygon:
		return planar.PolygonContains(geom, pt)
	case orb.MultiPolygon:
		return planar.MultiPolygonContains(geom, pt)
	case orb.Bound:
		return geom.Contains(pt)
	default:
		return false
	}
}
