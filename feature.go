package shapefile

import (
	"encoding/json"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"
)

// Feature pairs the geometry of one record with its attribute row.
type Feature struct {
	Index      int
	Geometry   Geometry
	Attributes []any

	fields []Field
}

// Properties zips the field names with the attribute values. Features read
// without a .dbf have no properties.
func (f *Feature) Properties() geojson.Properties {
	props := make(geojson.Properties, len(f.fields))
	for i, field := range f.fields {
		if i >= len(f.Attributes) {
			break
		}
		props[field.Name] = f.Attributes[i]
	}
	return props
}

// GeoJSON converts the feature to a geojson.Feature.
func (f *Feature) GeoJSON() *geojson.Feature {
	gf := geojson.NewFeature(f.Geometry.Orb())
	gf.Properties = f.Properties()
	return gf
}

// MarshalJSON encodes the feature as a GeoJSON Feature.
func (f *Feature) MarshalJSON() ([]byte, error) {
	return json.Marshal(f.GeoJSON())
}

// FeatureCollection holds every record of a shapefile in file order.
// Null geometries are kept so indexes line up with the source records.
type FeatureCollection struct {
	Fields   []Field
	Features []*Feature
}

// GeoJSON converts the collection to a geojson.FeatureCollection.
func (fc *FeatureCollection) GeoJSON() *geojson.FeatureCollection {
	out := geojson.NewFeatureCollection()
	for _, f := range fc.Features {
		out.Append(f.GeoJSON())
	}
	return out
}

// MarshalJSON encodes the collection as a GeoJSON FeatureCollection.
func (fc *FeatureCollection) MarshalJSON() ([]byte, error) {
	return json.Marshal(fc.GeoJSON())
}

// Geometries returns the orb geometry of every non-null feature.
func (fc *FeatureCollection) Geometries() []orb.Geometry {
	out := make([]orb.Geometry, 0, len(fc.Features))
	for _, f := range fc.Features {
		if g := f.Geometry.Orb(); g != nil {
			out = append(out, g)
		}
	}
	return out
}

// Bound returns the planar extent of all non-null features.
func (fc *FeatureCollection) Bound() orb.Bound {
	var b orb.Bound
	first := true
	for _, g := range fc.Geometries() {
		if first {
			b = g.Bound()
			first = false
			continue
		}
		b = b.Union(g.Bound())
	}
	return b
}
