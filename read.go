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

package ncdfgeom

import (
	"fmt"
	"math"
	"os"
	"strings"
	"time"

	"github.com/ctessum/cdf"
	"github.com/ctessum/geom"
)

// Read reads a CF discrete sampling geometry or geometry container
// file. Variables are recognized by their attributes (cf_role,
// sample_dimension, instance_dimension, geometry_type, grid_mapping),
// not by their names, so files written by other software read
// correctly.
func Read(r cdf.ReaderWriterAt) (*Dataset, error) {
	nc, err := cdf.Open(r)
	if err != nil {
		return nil, fmt.Errorf("ncdfgeom: opening netCDF file: %w", err)
	}
	c, err := fileContainer(nc)
	if err != nil {
		return nil, err
	}
	return datasetFromContainer(c)
}

// ReadFile reads the file at path.
func ReadFile(path string) (*Dataset, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("ncdfgeom: opening %s: %w", path, err)
	}
	defer f.Close()
	return Read(f)
}

// fileShape is the structural skeleton of a file: which variables play
// which bookkeeping roles, the decoded instance list and time axis,
// and the ragged bookkeeping arrays if present.
type fileShape struct {
	instDim   string
	instances []Instance

	// hasLat, hasLon, and hasAlt report which instance coordinates the
	// file stores; coordinates it does not store read back as NaN.
	hasLat, hasLon, hasAlt bool

	timeName  string
	timeDim   string
	times     []time.Time
	timeUnits string

	rowSize []int32
	index   []int32

	crsName       string
	containerName string

	// bookkeeping holds every variable with a structural role, so the
	// remaining variables can be classified as data or metadata.
	bookkeeping map[string]bool
}

func (s *fileShape) layout() Layout {
	switch {
	case s.rowSize != nil:
		return ContiguousRagged
	case s.index != nil:
		return IndexedRagged
	default:
		return Orthogonal
	}
}

// shapeOfContainer classifies the variables of a file by their
// attributes.
func shapeOfContainer(c *container) (*fileShape, error) {
	s := &fileShape{bookkeeping: make(map[string]bool)}

	var idVar, rowSizeVarF, indexVarF *ncVar
	for _, v := range c.vars {
		if role, ok := v.getAttr("cf_role").(string); ok && role == "timeseries_id" && idVar == nil {
			idVar = v
		}
		if _, ok := v.getAttr("geometry_type").(string); ok && s.containerName == "" {
			s.containerName = v.name
			s.bookkeeping[v.name] = true
			for _, a := range []string{"node_count", "part_node_count", "interior_ring"} {
				if n, ok := v.getAttr(a).(string); ok {
					s.bookkeeping[n] = true
				}
			}
			if coords, ok := v.getAttr("node_coordinates").(string); ok {
				for _, n := range strings.Fields(coords) {
					s.bookkeeping[n] = true
				}
			}
		}
		if g, ok := v.getAttr("grid_mapping").(string); ok && s.crsName == "" {
			s.crsName = g
		}
		if sd, ok := v.getAttr("sample_dimension").(string); ok && rowSizeVarF == nil {
			rowSizeVarF = v
			s.timeDim = sd
		}
		if _, ok := v.getAttr("instance_dimension").(string); ok && indexVarF == nil {
			indexVarF = v
		}
	}
	if s.crsName != "" {
		s.bookkeeping[s.crsName] = true
	}

	if idVar != nil {
		s.bookkeeping[idVar.name] = true
		if len(idVar.dims) == 0 {
			return nil, fmt.Errorf("ncdfgeom: identifier variable %s has no dimensions", idVar.name)
		}
		s.instDim = idVar.dims[0]
		names, err := stringValues(c, idVar)
		if err != nil {
			return nil, err
		}
		s.instances = make([]Instance, len(names))
		for i, n := range names {
			s.instances[i] = Instance{Name: n, Lat: math.NaN(), Lon: math.NaN(), Alt: math.NaN()}
		}
	} else if s.containerName != "" {
		// A geometry file without identifiers: take the instance
		// dimension from the geometry arrays.
		cv := c.findVar(s.containerName)
		if n, ok := cv.getAttr("node_count").(string); ok {
			if v := c.findVar(n); v != nil && len(v.dims) > 0 {
				s.instDim = v.dims[0]
			}
		} else if coords, ok := cv.getAttr("node_coordinates").(string); ok {
			if f := strings.Fields(coords); len(f) > 0 {
				if v := c.findVar(f[0]); v != nil && len(v.dims) > 0 {
					s.instDim = v.dims[0]
				}
			}
		}
	}

	if rowSizeVarF != nil {
		s.bookkeeping[rowSizeVarF.name] = true
		rs, err := intValues(rowSizeVarF.data)
		if err != nil {
			return nil, fmt.Errorf("ncdfgeom: row size variable %s: %v", rowSizeVarF.name, err)
		}
		s.rowSize = rs
	}
	if indexVarF != nil {
		s.bookkeeping[indexVarF.name] = true
		ix, err := intValues(indexVarF.data)
		if err != nil {
			return nil, fmt.Errorf("ncdfgeom: index variable %s: %v", indexVarF.name, err)
		}
		s.index = ix
	}

	if err := findTimeVar(c, s); err != nil {
		return nil, err
	}
	if err := findInstanceCoords(c, s); err != nil {
		return nil, err
	}
	return s, nil
}

// findTimeVar locates the time coordinate (standard_name "time" or a
// parseable "units since epoch" attribute) and decodes it.
func findTimeVar(c *container, s *fileShape) error {
	for _, v := range c.vars {
		if s.bookkeeping[v.name] || len(v.dims) != 1 {
			continue
		}
		units, _ := v.getAttr("units").(string)
		sn, _ := v.getAttr("standard_name").(string)
		if sn != "time" {
			if _, _, err := parseTimeUnits(units); err != nil {
				continue
			}
		}
		if units == "" {
			return fmt.Errorf("ncdfgeom: time variable %s has no units attribute", v.name)
		}
		vals, _, err := floatValues(v.data)
		if err != nil {
			return fmt.Errorf("ncdfgeom: time variable %s: %v", v.name, err)
		}
		times, err := decodeTimes(vals, units)
		if err != nil {
			return err
		}
		s.timeName = v.name
		s.timeUnits = units
		s.times = times
		if s.timeDim == "" {
			s.timeDim = v.dims[0]
		} else if s.timeDim != v.dims[0] {
			return RaggedIndexError{Reason: fmt.Sprintf(
				"time variable %s lies on dimension %s but the sample dimension is %s",
				v.name, v.dims[0], s.timeDim)}
		}
		s.bookkeeping[v.name] = true
		return nil
	}
	return nil
}

// findInstanceCoords fills in the instance latitude, longitude, and
// altitude from coordinate variables on the instance dimension.
func findInstanceCoords(c *container, s *fileShape) error {
	if s.instDim == "" || len(s.instances) == 0 {
		return nil
	}
	pick := func(v *ncVar) (string, bool) {
		if len(v.dims) != 1 || v.dims[0] != s.instDim || s.bookkeeping[v.name] {
			return "", false
		}
		sn, _ := v.getAttr("standard_name").(string)
		switch {
		case sn == "latitude" || (sn == "" && v.name == latVar):
			return latVar, true
		case sn == "longitude" || (sn == "" && v.name == lonVar):
			return lonVar, true
		case sn == "height" || (sn == "" && v.name == altVar):
			return altVar, true
		}
		return "", false
	}
	for _, v := range c.vars {
		role, ok := pick(v)
		if !ok {
			continue
		}
		vals, _, err := floatValues(v.data)
		if err != nil {
			return fmt.Errorf("ncdfgeom: coordinate variable %s: %v", v.name, err)
		}
		if len(vals) != len(s.instances) {
			return ShapeMismatchError{Field: "coordinate variable " + v.name,
				Got: len(vals), Want: len(s.instances)}
		}
		for i := range s.instances {
			switch role {
			case latVar:
				s.instances[i].Lat = vals[i]
			case lonVar:
				s.instances[i].Lon = vals[i]
			case altVar:
				s.instances[i].Alt = vals[i]
			}
		}
		switch role {
		case latVar:
			s.hasLat = true
		case lonVar:
			s.hasLon = true
		case altVar:
			s.hasAlt = true
		}
		s.bookkeeping[v.name] = true
	}
	return nil
}

// datasetFromContainer decodes a read file into a Dataset.
func datasetFromContainer(c *container) (*Dataset, error) {
	s, err := shapeOfContainer(c)
	if err != nil {
		return nil, err
	}
	d := &Dataset{Instances: s.instances, TimeUnits: s.timeUnits, Global: attrsMap(c.global)}

	if s.containerName != "" {
		geoms, err := geometryFromContainer(c, s)
		if err != nil {
			return nil, err
		}
		if len(s.instances) > 0 && len(geoms) != len(s.instances) {
			return nil, GeometryIndexError{Reason: fmt.Sprintf(
				"file has %d geometries for %d instances", len(geoms), len(s.instances))}
		}
		d.Geometry = geoms
	}
	if s.crsName != "" {
		if v := c.findVar(s.crsName); v != nil {
			d.CRS = attrsMap(v.attrs)
			d.Proj4 = proj4FromCRS(d.CRS)
		}
	}

	for _, v := range c.vars {
		if s.bookkeeping[v.name] {
			continue
		}
		switch {
		case isDataVar(v, s):
			ts, err := dataSetFromVar(v, s)
			if err != nil {
				return nil, err
			}
			d.Sets = append(d.Sets, ts)
		case isColumnVar(c, v, s):
			col, err := columnFromVar(c, v)
			if err != nil {
				return nil, err
			}
			d.Columns = append(d.Columns, col)
		}
	}
	return d, nil
}

// isDataVar reports whether v holds timeseries data: a matrix over the
// time and instance dimensions, or a vector over the sample dimension
// of a ragged file.
func isDataVar(v *ncVar, s *fileShape) bool {
	if s.timeName == "" || v.char {
		return false
	}
	if len(v.dims) == 1 && v.dims[0] == s.timeDim {
		return s.rowSize != nil || s.index != nil
	}
	if len(v.dims) == 2 && s.rowSize == nil && s.index == nil {
		return (v.dims[0] == s.timeDim && v.dims[1] == s.instDim) ||
			(v.dims[0] == s.instDim && v.dims[1] == s.timeDim)
	}
	return false
}

// isColumnVar reports whether v is a per-instance metadata column.
func isColumnVar(c *container, v *ncVar, s *fileShape) bool {
	if s.instDim == "" || len(v.dims) == 0 || v.dims[0] != s.instDim {
		return false
	}
	if len(v.dims) == 1 {
		return !v.char
	}
	return len(v.dims) == 2 && v.char
}

// dataSetFromVar decodes one data variable into a TimeSeriesSet using
// the file's layout.
func dataSetFromVar(v *ncVar, s *fileShape) (*TimeSeriesSet, error) {
	if len(s.instances) == 0 {
		return nil, fmt.Errorf("ncdfgeom: file has a data variable %s but no identifier variable "+
			"with cf_role=timeseries_id", v.name)
	}
	vals, isFloat32, err := floatValues(v.data)
	if err != nil {
		return nil, fmt.Errorf("ncdfgeom: data variable %s: %v", v.name, err)
	}
	am := attrsMap(v.attrs)
	for _, a := range []string{"_FillValue", "missing_value"} {
		if fv, ok := attrFloat(am, a); ok {
			for i, val := range vals {
				if val == fv {
					vals[i] = math.NaN()
				}
			}
		}
	}
	ts := &TimeSeriesSet{
		Name:      v.name,
		Instances: s.instances,
		Float32:   isFloat32,
		Meta:      Attributes{},
	}
	for _, a := range v.attrs {
		switch a.name {
		case "units":
			ts.Units, _ = a.val.(string)
		case "long_name":
			ts.LongName, _ = a.val.(string)
		case "_FillValue", "missing_value", "coordinates", "grid_mapping", "geometry":
		default:
			ts.Meta[a.name] = a.val
		}
	}
	if len(ts.Meta) == 0 {
		ts.Meta = nil
	}
	switch s.layout() {
	case ContiguousRagged:
		ts.Layout = ContiguousRagged
		ts.Observations, err = contiguousObservations(s.instances, s.rowSize, s.times, vals)
	case IndexedRagged:
		ts.Layout = IndexedRagged
		ts.Observations, err = indexedObservations(s.instances, s.index, s.times, vals)
	default:
		ts.Layout = Orthogonal
		ts.Times = s.times
		ts.Values, err = orthogonalValues(vals, len(s.times), len(s.instances), v.dims[0] == s.timeDim)
	}
	if err != nil {
		return nil, err
	}
	return ts, nil
}

// columnFromVar decodes one per-instance metadata column.
func columnFromVar(c *container, v *ncVar) (AttributeColumn, error) {
	col := AttributeColumn{Name: v.name}
	if v.char {
		width, _ := c.dimLength(v.dims[1])
		b, ok := v.data.([]uint8)
		if !ok {
			return col, fmt.Errorf("ncdfgeom: metadata column %s has type %T, want []uint8", v.name, v.data)
		}
		col.Values = unpadStrings(b, width)
	} else {
		col.Values = v.data
	}
	if len(v.attrs) > 0 {
		col.Meta = attrsMap(v.attrs)
	}
	return col, nil
}

// geometryFromContainer reads the geometry container's arrays and
// rebuilds the geometry collection.
func geometryFromContainer(c *container, s *fileShape) ([]geom.Geom, error) {
	cv := c.findVar(s.containerName)
	kind, _ := cv.getAttr("geometry_type").(string)
	coords, _ := cv.getAttr("node_coordinates").(string)
	names := strings.Fields(coords)
	if len(names) != 2 {
		return nil, fmt.Errorf("ncdfgeom: geometry container %s: node_coordinates %q must name two variables",
			cv.name, coords)
	}
	x, err := geomFloats(c, names[0])
	if err != nil {
		return nil, err
	}
	y, err := geomFloats(c, names[1])
	if err != nil {
		return nil, err
	}
	var nodeCount, partCount, interior []int32
	if n, ok := cv.getAttr("node_count").(string); ok {
		if nodeCount, err = geomInts(c, n); err != nil {
			return nil, err
		}
	}
	if n, ok := cv.getAttr("part_node_count").(string); ok {
		if partCount, err = geomInts(c, n); err != nil {
			return nil, err
		}
	}
	if n, ok := cv.getAttr("interior_ring").(string); ok {
		if interior, err = geomInts(c, n); err != nil {
			return nil, err
		}
	}
	return buildGeoms(kind, x, y, nodeCount, partCount, interior)
}

func geomFloats(c *container, name string) ([]float64, error) {
	v := c.findVar(name)
	if v == nil {
		return nil, fmt.Errorf("ncdfgeom: geometry refers to missing variable %s", name)
	}
	vals, _, err := floatValues(v.data)
	if err != nil {
		return nil, fmt.Errorf("ncdfgeom: geometry variable %s: %v", name, err)
	}
	return vals, nil
}

func geomInts(c *container, name string) ([]int32, error) {
	v := c.findVar(name)
	if v == nil {
		return nil, fmt.Errorf("ncdfgeom: geometry refers to missing variable %s", name)
	}
	vals, err := intValues(v.data)
	if err != nil {
		return nil, fmt.Errorf("ncdfgeom: geometry variable %s: %v", name, err)
	}
	return vals, nil
}

// stringValues decodes a character matrix variable into strings, or
// formats a numeric identifier variable.
func stringValues(c *container, v *ncVar) ([]string, error) {
	if v.char {
		if len(v.dims) < 2 {
			b, _ := v.data.([]uint8)
			return unpadStrings(b, 1), nil
		}
		width, _ := c.dimLength(v.dims[len(v.dims)-1])
		b, ok := v.data.([]uint8)
		if !ok {
			return nil, fmt.Errorf("ncdfgeom: variable %s has type %T, want []uint8", v.name, v.data)
		}
		return unpadStrings(b, width), nil
	}
	vals, _, err := floatValues(v.data)
	if err != nil {
		return nil, fmt.Errorf("ncdfgeom: identifier variable %s: %v", v.name, err)
	}
	names := make([]string, len(vals))
	for i, val := range vals {
		names[i] = fmt.Sprintf("%g", val)
	}
	return names, nil
}

// floatValues converts file data to float64s, reporting whether the
// stored type was single-precision float.
func floatValues(data interface{}) ([]float64, bool, error) {
	switch d := data.(type) {
	case []float64:
		o := make([]float64, len(d))
		copy(o, d)
		return o, false, nil
	case []float32:
		o := make([]float64, len(d))
		for i, v := range d {
			o[i] = float64(v)
		}
		return o, true, nil
	case []int32:
		o := make([]float64, len(d))
		for i, v := range d {
			o[i] = float64(v)
		}
		return o, false, nil
	case []int16:
		o := make([]float64, len(d))
		for i, v := range d {
			o[i] = float64(v)
		}
		return o, false, nil
	case []uint8:
		o := make([]float64, len(d))
		for i, v := range d {
			o[i] = float64(v)
		}
		return o, false, nil
	default:
		return nil, false, fmt.Errorf("unsupported data type %T", data)
	}
}

// intValues converts integer file data to int32s.
func intValues(data interface{}) ([]int32, error) {
	switch d := data.(type) {
	case []int32:
		o := make([]int32, len(d))
		copy(o, d)
		return o, nil
	case []int16:
		o := make([]int32, len(d))
		for i, v := range d {
			o[i] = int32(v)
		}
		return o, nil
	case []uint8:
		o := make([]int32, len(d))
		for i, v := range d {
			o[i] = int32(v)
		}
		return o, nil
	default:
		return nil, fmt.Errorf("unsupported data type %T for an index variable", data)
	}
}

// attrsMap converts ordered file attributes to an Attributes map.
func attrsMap(attrs []attr) Attributes {
	if len(attrs) == 0 {
		return nil
	}
	m := make(Attributes, len(attrs))
	for _, a := range attrs {
		m[a.name] = a.val
	}
	return m
}
