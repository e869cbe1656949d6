/*
Copyright © 2019 the ncdfgeom authors.
This file is part of ncdfgeom.

ncdfgeom is free software: you can redistribute it and/or modify
it under the terms of the GNU General Public License as published by
the Free Software Foundation, either version 3 of the License, or
(at your option) any later version.

ncdfgeom is distributed in the hope that it will be useful,
but WITHOUT ANY WARRANTY; without even the implied warranty of
MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
GNU General Public License for more details.

You should have received a copy of the GNU General Public License
along with ncdfgeom.  If not, see <http://www.gnu.org/licenses/>.
*/

package ncdfgeomutil

import (
	"encoding/json"
	"fmt"
	"io/ioutil"
	"math"
	"sort"
	"strconv"

	"github.com/ctessum/geom"
	"github.com/ctessum/geom/encoding/geojson"
	"github.com/ctessum/geom/proj"
	"github.com/sirupsen/logrus"
	"github.com/spatialmodel/ncdfgeom"
)

// wgs84Proj4 is the coordinate reference system GeoJSON requires.
const wgs84Proj4 = "+proj=longlat +datum=WGS84 +no_defs"

// geoJSONFeature is one feature of a GeoJSON FeatureCollection. The
// geometry is kept raw so the multi-part types the geojson package
// does not handle can be decoded here.
type geoJSONFeature struct {
	Type       string                 `json:"type"`
	ID         interface{}            `json:"id,omitempty"`
	Properties map[string]interface{} `json:"properties"`
	Geometry   json.RawMessage        `json:"geometry"`
}

// geoJSONCollection is a GeoJSON FeatureCollection.
type geoJSONCollection struct {
	Type     string            `json:"type"`
	Features []*geoJSONFeature `json:"features"`
}

// EncodeGeoJSON converts the GeoJSON FeatureCollection at geojsonFile
// to a netCDF geometry container file at ncFile. Feature properties
// become per-instance attribute columns. The property named by
// nameProperty identifies each geometry; when nameProperty is empty the
// feature id members are used instead, and when those are also missing
// the file stores no identifiers. proj4 declares the coordinate
// reference system of the input coordinates, and meta adds global
// attributes and column metadata.
func EncodeGeoJSON(geojsonFile, ncFile, nameProperty, proj4 string, meta *Metadata) error {
	b, err := ioutil.ReadFile(geojsonFile)
	if err != nil {
		return fmt.Errorf("ncdfgeom: reading GeoJSON file: %v", err)
	}
	var fc geoJSONCollection
	if err := json.Unmarshal(b, &fc); err != nil {
		return fmt.Errorf("ncdfgeom: parsing GeoJSON file %s: %v", geojsonFile, err)
	}
	if fc.Type != "FeatureCollection" {
		return fmt.Errorf("ncdfgeom: %s holds a GeoJSON %s; it should hold a FeatureCollection", geojsonFile, fc.Type)
	}
	if len(fc.Features) == 0 {
		return fmt.Errorf("ncdfgeom: %s has no features", geojsonFile)
	}
	geoms := make([]geom.Geom, len(fc.Features))
	for i, ft := range fc.Features {
		g, err := geometryFromGeoJSON(ft.Geometry)
		if err != nil {
			return fmt.Errorf("ncdfgeom: decoding geometry of feature %d: %v", i, err)
		}
		geoms[i] = g
	}
	names, err := featureNames(fc.Features, nameProperty)
	if err != nil {
		return err
	}
	cols := propertyColumns(fc.Features, nameProperty)
	meta.apply(cols)
	o := &ncdfgeom.WriteOptions{
		Proj4:   proj4,
		Columns: cols,
		Global:  meta.global(),
	}
	if err := ncdfgeom.WriteGeometryFile(ncFile, geoms, names, o); err != nil {
		return err
	}
	Log.WithFields(logrus.Fields{
		"features": len(geoms),
		"columns":  len(cols),
		"output":   ncFile,
	}).Info("encoded GeoJSON to NetCDF")
	return nil
}

// DecodeGeoJSON converts the geometries and attribute columns of the
// netCDF file at ncFile to a GeoJSON FeatureCollection at geojsonFile.
// GeoJSON coordinates are always WGS84 longitude and latitude, so
// geometries stored in another coordinate system are transformed.
func DecodeGeoJSON(ncFile, geojsonFile string) error {
	d, err := ncdfgeom.ReadFile(ncFile)
	if err != nil {
		return err
	}
	if len(d.Geometry) == 0 {
		return fmt.Errorf("ncdfgeom: %s has no geometry to convert", ncFile)
	}
	geoms, err := toLongLat(d.Geometry, d.Proj4)
	if err != nil {
		return err
	}
	names := d.GeometryNames()
	features := make([]*geoJSONFeature, len(geoms))
	for i, g := range geoms {
		jg, err := geometryToGeoJSON(g)
		if err != nil {
			return fmt.Errorf("ncdfgeom: encoding geometry %d: %v", i, err)
		}
		raw, err := json.Marshal(jg)
		if err != nil {
			return err
		}
		features[i] = &geoJSONFeature{
			Type:       "Feature",
			Properties: make(map[string]interface{}),
			Geometry:   raw,
		}
		if names != nil {
			features[i].ID = names[i]
		}
	}
	addColumnProperties(features, d.Columns)
	b, err := json.MarshalIndent(&geoJSONCollection{
		Type:     "FeatureCollection",
		Features: features,
	}, "", "\t")
	if err != nil {
		return err
	}
	if err := ioutil.WriteFile(geojsonFile, b, 0644); err != nil {
		return fmt.Errorf("ncdfgeom: writing GeoJSON file: %v", err)
	}
	Log.WithFields(logrus.Fields{
		"features": len(features),
		"output":   geojsonFile,
	}).Info("decoded NetCDF to GeoJSON")
	return nil
}

// geometryFromGeoJSON decodes one GeoJSON geometry. The geojson package
// handles the single-part types; the multi-part types are decoded here.
func geometryFromGeoJSON(raw json.RawMessage) (geom.Geom, error) {
	if len(raw) == 0 || string(raw) == "null" {
		return nil, fmt.Errorf("feature has no geometry")
	}
	g, err := geojson.Decode(raw)
	if err == nil {
		return g, nil
	}
	if _, ok := err.(*geojson.UnsupportedGeometryError); !ok {
		return nil, err
	}
	var jg struct {
		Type        string          `json:"type"`
		Coordinates json.RawMessage `json:"coordinates"`
	}
	if jerr := json.Unmarshal(raw, &jg); jerr != nil {
		return nil, jerr
	}
	switch jg.Type {
	case "MultiPoint":
		var coords [][]float64
		if jerr := json.Unmarshal(jg.Coordinates, &coords); jerr != nil {
			return nil, jerr
		}
		mp := make(geom.MultiPoint, len(coords))
		for i, c := range coords {
			p, perr := coordPoint(c)
			if perr != nil {
				return nil, perr
			}
			mp[i] = p
		}
		return mp, nil
	case "MultiLineString":
		var coords [][][]float64
		if jerr := json.Unmarshal(jg.Coordinates, &coords); jerr != nil {
			return nil, jerr
		}
		ml := make(geom.MultiLineString, len(coords))
		for i, line := range coords {
			ls := make(geom.LineString, len(line))
			for j, c := range line {
				p, perr := coordPoint(c)
				if perr != nil {
					return nil, perr
				}
				ls[j] = p
			}
			ml[i] = ls
		}
		return ml, nil
	case "MultiPolygon":
		var coords [][][][]float64
		if jerr := json.Unmarshal(jg.Coordinates, &coords); jerr != nil {
			return nil, jerr
		}
		mp := make(geom.MultiPolygon, len(coords))
		for i, poly := range coords {
			p := make(geom.Polygon, len(poly))
			for j, ring := range poly {
				r := make([]geom.Point, len(ring))
				for k, c := range ring {
					pt, perr := coordPoint(c)
					if perr != nil {
						return nil, perr
					}
					r[k] = pt
				}
				p[j] = r
			}
			mp[i] = p
		}
		return mp, nil
	}
	return nil, err
}

func coordPoint(c []float64) (geom.Point, error) {
	if len(c) < 2 {
		return geom.Point{}, &geojson.InvalidGeometryError{}
	}
	return geom.Point{X: c[0], Y: c[1]}, nil
}

// geometryToGeoJSON encodes one geometry, handling the multi-part types
// the geojson package does not.
func geometryToGeoJSON(g geom.Geom) (*geojson.Geometry, error) {
	switch g := g.(type) {
	case geom.MultiPoint:
		return &geojson.Geometry{Type: "MultiPoint", Coordinates: pointCoords(g)}, nil
	case geom.MultiLineString:
		coords := make([][][]float64, len(g))
		for i, ls := range g {
			coords[i] = pointCoords(ls)
		}
		return &geojson.Geometry{Type: "MultiLineString", Coordinates: coords}, nil
	case geom.MultiPolygon:
		coords := make([][][][]float64, len(g))
		for i, poly := range g {
			rings := make([][][]float64, len(poly))
			for j, ring := range poly {
				rings[j] = pointCoords(ring)
			}
			coords[i] = rings
		}
		return &geojson.Geometry{Type: "MultiPolygon", Coordinates: coords}, nil
	default:
		return geojson.ToGeoJSON(g)
	}
}

func pointCoords(points []geom.Point) [][]float64 {
	coords := make([][]float64, len(points))
	for i, p := range points {
		coords[i] = []float64{p.X, p.Y}
	}
	return coords
}

// featureNames returns the identifier for each feature: the values of
// nameProperty when it is set, the feature id members when every
// feature has one, and nil otherwise.
func featureNames(features []*geoJSONFeature, nameProperty string) ([]string, error) {
	names := make([]string, len(features))
	if nameProperty != "" {
		for i, ft := range features {
			v, ok := ft.Properties[nameProperty]
			if !ok || v == nil {
				return nil, fmt.Errorf("ncdfgeom: feature %d has no property %s", i, nameProperty)
			}
			names[i] = propertyString(v)
		}
		return names, nil
	}
	for i, ft := range features {
		if ft.ID == nil {
			return nil, nil
		}
		names[i] = propertyString(ft.ID)
	}
	return names, nil
}

// propertyString renders a GeoJSON property value as a string.
// json.Unmarshal decodes every number as a float64, so integral values
// are printed without a decimal point.
func propertyString(v interface{}) string {
	switch v := v.(type) {
	case string:
		return v
	case float64:
		return strconv.FormatFloat(v, 'g', -1, 64)
	case bool:
		return strconv.FormatBool(v)
	default:
		return fmt.Sprintf("%v", v)
	}
}

// propertyColumns converts the feature properties to attribute columns,
// one per property name in sorted order, skipping the property used for
// identifiers.
func propertyColumns(features []*geoJSONFeature, nameProperty string) []ncdfgeom.AttributeColumn {
	set := make(map[string]bool)
	for _, ft := range features {
		for name := range ft.Properties {
			if name != nameProperty {
				set[name] = true
			}
		}
	}
	names := make([]string, 0, len(set))
	for name := range set {
		names = append(names, name)
	}
	sort.Strings(names)
	cols := make([]ncdfgeom.AttributeColumn, len(names))
	for i, name := range names {
		cols[i] = propertyColumn(features, name)
	}
	return cols
}

// propertyColumn builds one attribute column from the named property of
// every feature. A property whose values are all integral numbers
// becomes an integer column; other numeric properties become
// floating-point columns with NaN marking features that lack a value;
// everything else becomes a string column.
func propertyColumn(features []*geoJSONFeature, name string) ncdfgeom.AttributeColumn {
	numeric, integral, missing := true, true, false
	for _, ft := range features {
		v, ok := ft.Properties[name]
		if !ok || v == nil {
			missing = true
			continue
		}
		f, ok := v.(float64)
		if !ok {
			numeric = false
			break
		}
		if f != math.Trunc(f) || f < math.MinInt32 || f > math.MaxInt32 {
			integral = false
		}
	}
	switch {
	case numeric && integral && !missing:
		vals := make([]int32, len(features))
		for i, ft := range features {
			vals[i] = int32(ft.Properties[name].(float64))
		}
		return ncdfgeom.AttributeColumn{Name: name, Values: vals}
	case numeric:
		vals := make([]float64, len(features))
		for i, ft := range features {
			if v, ok := ft.Properties[name]; ok && v != nil {
				vals[i] = v.(float64)
			} else {
				vals[i] = math.NaN()
			}
		}
		return ncdfgeom.AttributeColumn{Name: name, Values: vals}
	default:
		vals := make([]string, len(features))
		for i, ft := range features {
			if v, ok := ft.Properties[name]; ok && v != nil {
				vals[i] = propertyString(v)
			}
		}
		return ncdfgeom.AttributeColumn{Name: name, Values: vals}
	}
}

// addColumnProperties copies attribute column values into the feature
// properties. Floating-point NaNs mark missing values and are left out
// because JSON cannot represent them.
func addColumnProperties(features []*geoJSONFeature, cols []ncdfgeom.AttributeColumn) {
	for _, col := range cols {
		switch vals := col.Values.(type) {
		case []string:
			for i, v := range vals {
				features[i].Properties[col.Name] = v
			}
		case []float64:
			for i, v := range vals {
				if !math.IsNaN(v) {
					features[i].Properties[col.Name] = v
				}
			}
		case []float32:
			for i, v := range vals {
				if !math.IsNaN(float64(v)) {
					features[i].Properties[col.Name] = float64(v)
				}
			}
		case []int32:
			for i, v := range vals {
				features[i].Properties[col.Name] = v
			}
		case []int16:
			for i, v := range vals {
				features[i].Properties[col.Name] = v
			}
		}
	}
}

// toLongLat transforms geometries to WGS84 longitude and latitude.
// Geometries already in longitude and latitude are returned unchanged.
func toLongLat(geoms []geom.Geom, proj4 string) ([]geom.Geom, error) {
	if proj4 == "" || proj4 == wgs84Proj4 {
		return geoms, nil
	}
	src, err := proj.Parse(proj4)
	if err != nil {
		return nil, fmt.Errorf("ncdfgeom: parsing coordinate reference system: %v", err)
	}
	dst, err := proj.Parse(wgs84Proj4)
	if err != nil {
		return nil, err
	}
	trans, err := src.NewTransform(dst)
	if err != nil {
		return nil, fmt.Errorf("ncdfgeom: creating coordinate transform: %v", err)
	}
	out := make([]geom.Geom, len(geoms))
	for i, g := range geoms {
		og, err := g.Transform(trans)
		if err != nil {
			return nil, fmt.Errorf("ncdfgeom: transforming geometry %d: %v", i, err)
		}
		out[i] = og
	}
	return out, nil
}
