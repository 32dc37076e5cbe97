package shapefile

import (
	"fmt"

	"github.com/paulmach/orb"
)

// LinearRing is a closed run of vertices bounding a polygon or a hole.
type LinearRing []Coordinate

// Area returns the signed shoelace area of the ring. Shapefiles store
// exterior rings clockwise, which yields a positive area here.
// Rings with fewer than four vertices cannot be closed and have zero area.
func (r LinearRing) Area() float64 {
	n := len(r)
	if n < 4 {
		return 0
	}
	sum := r[n-1].Y*r[0].X - r[n-1].X*r[0].Y
	for i := 1; i < n; i++ {
		sum += r[i-1].Y*r[i].X - r[i-1].X*r[i].Y
	}
	return sum / 2
}

// IsClockwise reports whether the ring winds clockwise (an exterior ring).
func (r LinearRing) IsClockwise() bool {
	return r.Area() > 0
}

// ContainsPoint reports whether c lies inside the ring using ray casting.
// An edge counts only when its endpoints straddle c.Y, with the lower bound
// inclusive, so a vertex shared by two edges is never counted twice.
func (r LinearRing) ContainsPoint(c Coordinate) bool {
	inside := false
	for i, j := 0, len(r)-1; i < len(r); j, i = i, i+1 {
		a, b := r[i], r[j]
		if (a.Y > c.Y) != (b.Y > c.Y) &&
			c.X < (b.X-a.X)*(c.Y-a.Y)/(b.Y-a.Y)+a.X {
			inside = !inside
		}
	}
	return inside
}

// Contains reports whether any vertex of other lies inside the ring.
func (r LinearRing) Contains(other LinearRing) bool {
	for _, c := range other {
		if r.ContainsPoint(c) {
			return true
		}
	}
	return false
}

// Orb converts the ring to an orb.Ring in reverse vertex order, turning the
// stored winding into the right-hand rule used by GeoJSON.
func (r LinearRing) Orb() orb.Ring {
	out := make(orb.Ring, len(r))
	for i, c := range r {
		out[len(r)-1-i] = c.Point()
	}
	return out
}

// OrphanHoleError describes a hole ring that no exterior ring contains.
type OrphanHoleError struct {
	Record int
	Ring   LinearRing
}

// Error describes the orphan hole.
func (e *OrphanHoleError) Error() string {
	return fmt.Sprintf("shapefile: record %d: hole ring with %d vertices has no containing exterior ring", e.Record, len(e.Ring))
}

// Unwrap returns ErrOrphanHole.
func (e *OrphanHoleError) Unwrap() error { return ErrOrphanHole }

// buildPolygonParts nests the rings of one polygon record. Clockwise rings
// start new parts in file order; every other ring is a hole and is assigned to
// the first part whose exterior contains one of its vertices. Holes that fit
// no part are returned as orphans.
func buildPolygonParts(rings []LinearRing) (parts []PolygonPart, orphans []LinearRing) {
	var holes []LinearRing
	for _, ring := range rings {
		if ring.IsClockwise() {
			parts = append(parts, PolygonPart{Exterior: ring})
		} else {
			holes = append(holes, ring)
		}
	}

	for _, hole := range holes {
		assigned := false
		for i := range parts {
			if parts[i].Exterior.Contains(hole) {
				parts[i].Interiors = append(parts[i].Interiors, hole)
				assigned = true
				break
			}
		}
		if !assigned {
			orphans = append(orphans, hole)
		}
	}
	return parts, orphans
}
