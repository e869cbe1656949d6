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
	"fmt"
	"io/ioutil"
	"math"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/ctessum/geom"
	"github.com/ctessum/geom/encoding/shp"
	"github.com/ctessum/geom/proj"
	goshp "github.com/jonas-p/go-shp"
	"github.com/sirupsen/logrus"
	"github.com/spatialmodel/ncdfgeom"
)

// EncodeShapefile converts the shapefile at shpFile to a netCDF
// geometry container file at ncFile. Attribute fields become
// per-instance attribute columns, and the field named by nameField
// identifies each geometry. The coordinate reference system comes from
// the .prj sidecar file when one exists and from proj4 otherwise; meta
// adds global attributes and column metadata.
func EncodeShapefile(shpFile, ncFile, nameField, proj4 string, meta *Metadata) error {
	crs, err := shapefileCRS(shpFile, proj4)
	if err != nil {
		return err
	}
	d, err := shp.NewDecoder(shpFile)
	if err != nil {
		return fmt.Errorf("ncdfgeom: opening shapefile: %v", err)
	}
	defer d.Close()

	fields := d.Reader.Fields()
	vars := make([]string, len(fields))
	for i, f := range fields {
		vars[i] = f.String()
	}

	n := d.AttributeCount()
	if n == 0 {
		return fmt.Errorf("ncdfgeom: %s has no shapes", shpFile)
	}
	geoms := make([]geom.Geom, n)
	fieldVals := make([][]string, len(vars))
	for j := range fieldVals {
		fieldVals[j] = make([]string, n)
	}
	for i := 0; i < n; i++ {
		g, vals, more := d.DecodeRowFields(vars...)
		if !more {
			return fmt.Errorf("ncdfgeom: reading shapefile %s: ran out of rows", shpFile)
		}
		geoms[i] = g
		for j, v := range vars {
			fieldVals[j][i] = strings.Trim(vals[v], "\x00 ")
		}
	}
	if err := d.Error(); err != nil {
		return fmt.Errorf("ncdfgeom: reading shapefile: %v", err)
	}

	var names []string
	nameIdx := -1
	if nameField != "" {
		for j, v := range vars {
			if v == nameField {
				nameIdx = j
				break
			}
		}
		if nameIdx < 0 {
			return fmt.Errorf("ncdfgeom: shapefile has no field %s; its fields are %v", nameField, vars)
		}
		names = fieldVals[nameIdx]
	}
	var cols []ncdfgeom.AttributeColumn
	for j := range vars {
		if j == nameIdx {
			continue
		}
		cols = append(cols, columnFromStrings(fields[j], fieldVals[j]))
	}
	meta.apply(cols)

	o := &ncdfgeom.WriteOptions{
		Proj4:   crs,
		Columns: cols,
		Global:  meta.global(),
	}
	if err := ncdfgeom.WriteGeometryFile(ncFile, geoms, names, o); err != nil {
		return err
	}
	Log.WithFields(logrus.Fields{
		"shapes":  len(geoms),
		"columns": len(cols),
		"output":  ncFile,
	}).Info("encoded shapefile to NetCDF")
	return nil
}

// DecodeShapefile converts the geometries and attribute columns of the
// netCDF file at ncFile to a shapefile at shpFile, together with a .prj
// sidecar file holding the coordinate reference system. When varNames
// is not empty, only the listed attribute columns are carried over.
func DecodeShapefile(ncFile, shpFile string, varNames []string) error {
	d, err := ncdfgeom.ReadFile(ncFile)
	if err != nil {
		return err
	}
	if len(d.Geometry) == 0 {
		return fmt.Errorf("ncdfgeom: %s has no geometry to convert", ncFile)
	}
	cols, err := selectColumns(d.Columns, varNames)
	if err != nil {
		return err
	}
	names := d.GeometryNames()

	st, err := shapeTypeOf(d.Geometry)
	if err != nil {
		return err
	}
	fields := make([]goshp.Field, 0, len(cols)+1)
	if names != nil {
		fields = append(fields, goshp.StringField("name", stringFieldLength(names)))
	}
	for _, col := range cols {
		switch vals := col.Values.(type) {
		case []string:
			fields = append(fields, goshp.StringField(col.Name, stringFieldLength(vals)))
		case []int32, []int16:
			fields = append(fields, goshp.NumberField(col.Name, 11))
		default:
			fields = append(fields, goshp.FloatField(col.Name, 14, 8))
		}
	}

	fileBase := strings.TrimSuffix(shpFile, filepath.Ext(shpFile))
	shpFile = fileBase + ".shp"
	shape, err := shp.NewEncoderFromFields(shpFile, st, fields...)
	if err != nil {
		return fmt.Errorf("ncdfgeom: creating output shapefile: %v", err)
	}
	for i, g := range d.Geometry {
		outFields := make([]interface{}, 0, len(cols)+1)
		if names != nil {
			outFields = append(outFields, names[i])
		}
		for _, col := range cols {
			outFields = append(outFields, columnValue(col, i))
		}
		if err := shape.EncodeFields(shapefileGeom(g), outFields...); err != nil {
			return fmt.Errorf("ncdfgeom: writing output shapefile: %v", err)
		}
	}
	shape.Close()

	proj4 := d.Proj4
	if proj4 == "" {
		proj4 = wgs84Proj4
	}
	f, err := os.Create(fileBase + ".prj")
	if err != nil {
		return fmt.Errorf("ncdfgeom: creating output prj file: %v", err)
	}
	fmt.Fprint(f, proj4)
	f.Close()

	Log.WithFields(logrus.Fields{
		"shapes":  len(d.Geometry),
		"columns": len(cols),
		"output":  shpFile,
	}).Info("decoded NetCDF to shapefile")
	return nil
}

// shapefileCRS returns the coordinate reference system of a shapefile:
// the contents of its .prj sidecar file when one exists, and fallback
// otherwise. The definition is parsed to check that it is usable.
func shapefileCRS(shpFile, fallback string) (string, error) {
	prj := strings.TrimSuffix(shpFile, filepath.Ext(shpFile)) + ".prj"
	b, err := ioutil.ReadFile(prj)
	if os.IsNotExist(err) {
		return fallback, nil
	}
	if err != nil {
		return "", fmt.Errorf("ncdfgeom: reading projection file: %v", err)
	}
	def := strings.TrimSpace(string(b))
	if _, err := proj.Parse(def); err != nil {
		return "", fmt.Errorf("ncdfgeom: parsing projection file %s: %v", prj, err)
	}
	return def, nil
}

// columnFromStrings converts the raw values of one shapefile field to
// an attribute column, following the field's declared type: integer
// fields become integer columns, other numeric fields become
// floating-point columns with NaN marking blank values, and everything
// else becomes a string column. A numeric value that fails to parse
// turns its column into a string column.
func columnFromStrings(field goshp.Field, vals []string) ncdfgeom.AttributeColumn {
	name := field.String()
	if field.Fieldtype != 'N' && field.Fieldtype != 'F' {
		return ncdfgeom.AttributeColumn{Name: name, Values: vals}
	}
	nums := make([]float64, len(vals))
	integral := field.Precision == 0
	blank := false
	for i, v := range vals {
		if v == "" {
			nums[i] = math.NaN()
			blank = true
			continue
		}
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return ncdfgeom.AttributeColumn{Name: name, Values: vals}
		}
		nums[i] = f
		if f != math.Trunc(f) || f < math.MinInt32 || f > math.MaxInt32 {
			integral = false
		}
	}
	if integral && !blank {
		ints := make([]int32, len(nums))
		for i, f := range nums {
			ints[i] = int32(f)
		}
		return ncdfgeom.AttributeColumn{Name: name, Values: ints}
	}
	return ncdfgeom.AttributeColumn{Name: name, Values: nums}
}

// selectColumns returns the columns named in varNames, or all of them
// when varNames is empty.
func selectColumns(cols []ncdfgeom.AttributeColumn, varNames []string) ([]ncdfgeom.AttributeColumn, error) {
	if len(varNames) == 0 {
		return cols, nil
	}
	out := make([]ncdfgeom.AttributeColumn, len(varNames))
	for i, v := range varNames {
		found := false
		for _, col := range cols {
			if col.Name == v {
				out[i] = col
				found = true
				break
			}
		}
		if !found {
			return nil, fmt.Errorf("ncdfgeom: file has no attribute column %s", v)
		}
	}
	return out, nil
}

// shapeTypeOf returns the shapefile shape type that can hold the given
// geometries, which a geometry container guarantees are all of one kind.
func shapeTypeOf(geoms []geom.Geom) (goshp.ShapeType, error) {
	for _, g := range geoms {
		switch g.(type) {
		case geom.Point:
			return goshp.POINT, nil
		case geom.MultiPoint:
			return goshp.MULTIPOINT, nil
		case geom.LineString, geom.MultiLineString:
			return goshp.POLYLINE, nil
		case geom.Polygon, geom.MultiPolygon:
			return goshp.POLYGON, nil
		case nil:
		default:
			return goshp.NULL, fmt.Errorf("ncdfgeom: unsupported geometry type %T for shapefile output", g)
		}
	}
	return goshp.NULL, fmt.Errorf("ncdfgeom: file has no geometries to convert")
}

// shapefileGeom rewraps geometry types the shapefile encoder does not
// handle directly: a LineString becomes a single-line MultiLineString,
// and a MultiPolygon becomes one Polygon holding all of its rings,
// which is how shapefiles represent multi-part polygons.
func shapefileGeom(g geom.Geom) geom.Geom {
	switch g := g.(type) {
	case geom.LineString:
		return geom.MultiLineString{g}
	case geom.MultiPolygon:
		var p geom.Polygon
		for _, poly := range g {
			p = append(p, poly...)
		}
		return p
	default:
		return g
	}
}

// columnValue returns the value of column col for instance i in a type
// the shapefile attribute writer accepts. NaN, which marks a missing
// value, becomes a blank field.
func columnValue(col ncdfgeom.AttributeColumn, i int) interface{} {
	switch vals := col.Values.(type) {
	case []string:
		return vals[i]
	case []float64:
		if math.IsNaN(vals[i]) {
			return ""
		}
		return vals[i]
	case []float32:
		v := float64(vals[i])
		if math.IsNaN(v) {
			return ""
		}
		return v
	case []int32:
		return int(vals[i])
	case []int16:
		return int(vals[i])
	default:
		return ""
	}
}

// stringFieldLength returns the shapefile field length needed to hold
// the given values.
func stringFieldLength(vals []string) uint8 {
	max := 1
	for _, v := range vals {
		if len(v) > max {
			max = len(v)
		}
	}
	if max > 254 {
		max = 254
	}
	return uint8(max)
}
