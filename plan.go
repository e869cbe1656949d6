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
	"strings"
	"time"

	"github.com/ctessum/geom"
	"github.com/ctessum/geom/proj"
)

// Default fill values for the netCDF FLOAT and DOUBLE types. NaNs in
// input data are stored as these and turned back into NaNs when read.
const (
	fillDouble         = 9.9692099683868690e36
	fillFloat  float32 = 9.96921e36
)

// planTimeSeries validates sets and options and lays out a complete
// file: dimensions, bookkeeping variables, data variables, geometry,
// metadata columns, and global attributes, in that order.
func planTimeSeries(sets []*TimeSeriesSet, o *WriteOptions) (*container, error) {
	if len(sets) == 0 {
		return nil, fmt.Errorf("ncdfgeom: no timeseries sets to write")
	}
	layout, err := sets[0].check()
	if err != nil {
		return nil, err
	}
	for _, ts := range sets[1:] {
		l, err := ts.check()
		if err != nil {
			return nil, err
		}
		if l != layout {
			return nil, fmt.Errorf("ncdfgeom: sets %s and %s have layouts %v and %v; "+
				"sets sharing a file must share a layout", sets[0].Name, ts.Name, layout, l)
		}
		if err := sameInstances(sets[0].Instances, ts.Instances); err != nil {
			return nil, err
		}
	}
	instances := sets[0].Instances

	c := new(container)
	if err := addInstanceVars(c, instances, o); err != nil {
		return nil, err
	}
	sr, err := addCRSVar(c, o)
	if err != nil {
		return nil, err
	}
	if o != nil && len(o.Geometry) > 0 {
		if len(o.Geometry) != len(instances) {
			return nil, ShapeMismatchError{Field: "geometry list",
				Got: len(o.Geometry), Want: len(instances)}
		}
		if err := addGeometryVars(c, o.Geometry, sr, instanceDim); err != nil {
			return nil, err
		}
	}
	switch layout {
	case Orthogonal:
		err = planOrthogonal(c, sets, o)
	default:
		err = planRagged(c, sets, layout, o)
	}
	if err != nil {
		return nil, err
	}
	if o != nil {
		if err := addColumns(c, o.Columns, instanceDim, len(instances)); err != nil {
			return nil, err
		}
	}
	if err := addStandardGlobals(c, o, "timeSeries", "time series data", "write timeSeries"); err != nil {
		return nil, err
	}
	return c, nil
}

const cfConventions = "CF-1.8"

// addStandardGlobals adds the global attributes every file carries:
// the conventions string, the feature type for timeseries files, the
// caller's attributes, a default title when the caller supplies none,
// and a timestamped history line.
func addStandardGlobals(c *container, o *WriteOptions, featureType, title, operation string) error {
	if err := c.addGlobal("Conventions", cfConventions); err != nil {
		return err
	}
	if featureType != "" {
		if err := c.addGlobal("featureType", featureType); err != nil {
			return err
		}
	}
	if o != nil {
		if err := c.addGlobalMeta(o.Global); err != nil {
			return err
		}
	}
	if _, ok := c.findGlobal("title"); !ok {
		if err := c.addGlobal("title", title); err != nil {
			return err
		}
	}
	stampHistory(c, operation)
	return nil
}

// stampHistory appends a timestamped line to the history global
// attribute, creating it if absent.
func stampHistory(c *container, operation string) {
	line := time.Now().UTC().Format("2006-01-02T15:04:05Z") + " ncdfgeom: " + operation
	if i, ok := c.findGlobal("history"); ok {
		if s, ok := c.global[i].val.(string); ok && s != "" {
			line = s + "\n" + line
		}
		c.global[i].val = line
		return
	}
	c.global = append(c.global, attr{name: "history", val: line})
}

// sameInstances reports whether two instance lists are identical in
// count, order, spelling, and coordinates.
func sameInstances(want, got []Instance) error {
	if len(got) != len(want) {
		return InstanceMismatchError{Reason: fmt.Sprintf("instance count is %d, want %d",
			len(got), len(want))}
	}
	for i := range want {
		if got[i].Name != want[i].Name {
			return InstanceMismatchError{Reason: fmt.Sprintf("instance %d is named %q, want %q",
				i, got[i].Name, want[i].Name)}
		}
		if !floatEq(got[i].Lat, want[i].Lat) || !floatEq(got[i].Lon, want[i].Lon) ||
			!floatEq(got[i].Alt, want[i].Alt) {
			return InstanceMismatchError{Reason: fmt.Sprintf("instance %q has different coordinates",
				got[i].Name)}
		}
	}
	return nil
}

// floatEq compares coordinates, treating two NaNs as equal.
func floatEq(a, b float64) bool {
	return a == b || (math.IsNaN(a) && math.IsNaN(b))
}

// addInstanceVars adds the instance dimension, the identifier
// variable, and the instance coordinates. Instance lists derived from
// observation rows have no coordinates; such files carry no latitude
// or longitude variables.
func addInstanceVars(c *container, instances []Instance, o *WriteOptions) error {
	if err := checkInstances(instances); err != nil {
		return err
	}
	names := make([]string, len(instances))
	lat := make([]float64, len(instances))
	lon := make([]float64, len(instances))
	alt := make([]float64, len(instances))
	hasCoords := false
	for i, in := range instances {
		names[i] = in.Name
		lat[i] = in.Lat
		lon[i] = in.Lon
		alt[i] = in.Alt
		if !math.IsNaN(in.Lat) || !math.IsNaN(in.Lon) {
			hasCoords = true
		}
	}
	if err := c.addDim(instanceDim, len(instances)); err != nil {
		return err
	}
	if err := addNameVar(c, names); err != nil {
		return err
	}

	if hasCoords {
		latv := &ncVar{name: latVar, dims: []string{instanceDim}, data: lat}
		for _, a := range []attr{
			{"units", "degrees_north"},
			{"standard_name", "latitude"},
		} {
			if err := latv.addAttr(a.name, a.val); err != nil {
				return err
			}
		}
		if err := c.addVar(latv); err != nil {
			return err
		}
		lonv := &ncVar{name: lonVar, dims: []string{instanceDim}, data: lon}
		for _, a := range []attr{
			{"units", "degrees_east"},
			{"standard_name", "longitude"},
		} {
			if err := lonv.addAttr(a.name, a.val); err != nil {
				return err
			}
		}
		if err := c.addVar(lonv); err != nil {
			return err
		}
	}
	if o != nil && o.Altitude {
		altv := &ncVar{name: altVar, dims: []string{instanceDim}, data: alt}
		for _, a := range []attr{
			{"units", "m"},
			{"standard_name", "height"},
			{"positive", "up"},
			{"long_name", "vertical distance above the surface"},
		} {
			if err := altv.addAttr(a.name, a.val); err != nil {
				return err
			}
		}
		if err := c.addVar(altv); err != nil {
			return err
		}
	}
	return nil
}

// addNameVar adds the instance identifier variable: a NUL-padded
// character matrix carrying the cf_role that marks it as the
// timeseries identifier.
func addNameVar(c *container, names []string) error {
	strlen := maxStringLen(names)
	if err := c.addDim(strlenDim, strlen); err != nil {
		return err
	}
	nv := &ncVar{
		name: nameVar,
		dims: []string{instanceDim, strlenDim},
		char: true,
		data: padStrings(names, strlen),
	}
	if err := nv.addAttr("long_name", "Station Names"); err != nil {
		return err
	}
	if err := nv.addAttr("cf_role", "timeseries_id"); err != nil {
		return err
	}
	return c.addVar(nv)
}

// addCRSVar adds the scalar coordinate reference system variable when
// options carry a coordinate system or geometries (which default to
// WGS84 longitude-latitude). It returns the parsed system for the
// geometry coordinate attributes.
func addCRSVar(c *container, o *WriteOptions) (*proj.SR, error) {
	if o == nil || (o.Proj4 == "" && len(o.Geometry) == 0) {
		return nil, nil
	}
	return addCRSVarFromProj4(c, o.proj4())
}

func addCRSVarFromProj4(c *container, p4 string) (*proj.SR, error) {
	attrs, sr, err := crsAttrs(p4)
	if err != nil {
		return nil, err
	}
	v := &ncVar{name: crsVar, dims: nil, data: []int32{0}}
	for _, a := range attrs {
		if err := v.addAttr(a.name, a.val); err != nil {
			return nil, err
		}
	}
	return sr, c.addVar(v)
}

// planGeometryOnly lays out a file holding geometries without
// timeseries: the instance dimension, optional instance names, the
// coordinate reference system, the geometry container, and metadata
// columns.
func planGeometryOnly(geoms []geom.Geom, names []string, o *WriteOptions) (*container, error) {
	if len(geoms) == 0 {
		return nil, ShapeMismatchError{Field: "geometry list", Got: 0, Want: 1}
	}
	c := new(container)
	if err := c.addDim(instanceDim, len(geoms)); err != nil {
		return nil, err
	}
	if names != nil {
		if len(names) != len(geoms) {
			return nil, ShapeMismatchError{Field: "instance name list",
				Got: len(names), Want: len(geoms)}
		}
		instances := make([]Instance, len(names))
		for i, n := range names {
			instances[i].Name = n
		}
		if err := checkInstances(instances); err != nil {
			return nil, err
		}
		if err := addNameVar(c, names); err != nil {
			return nil, err
		}
	}
	sr, err := addCRSVarFromProj4(c, o.proj4())
	if err != nil {
		return nil, err
	}
	if err := addGeometryVars(c, geoms, sr, instanceDim); err != nil {
		return nil, err
	}
	if o != nil {
		if err := addColumns(c, o.Columns, instanceDim, len(geoms)); err != nil {
			return nil, err
		}
	}
	if err := addStandardGlobals(c, o, "", "geometry data", "write geometry"); err != nil {
		return nil, err
	}
	return c, nil
}

// crsVarName returns the name of the container's coordinate system
// variable, or "" if it has none.
func crsVarName(c *container) string {
	for _, v := range c.vars {
		if v.hasAttr("grid_mapping_name") || v.hasAttr("proj4") {
			return v.name
		}
	}
	return ""
}

// containerVarName returns the name of the container's geometry
// container variable, or "" if it has none.
func containerVarName(c *container) string {
	for _, v := range c.vars {
		if _, ok := v.getAttr("geometry_type").(string); ok {
			return v.name
		}
	}
	return ""
}

// varByStandardName returns the name of the variable carrying the
// given standard_name, falling back to a conventional variable name.
func varByStandardName(c *container, standardName, fallback string) string {
	for _, v := range c.vars {
		if got, ok := v.getAttr("standard_name").(string); ok && got == standardName {
			return v.name
		}
	}
	if c.findVar(fallback) != nil {
		return fallback
	}
	return ""
}

// coordinateNames lists the auxiliary coordinate variables a data
// variable should name, in time, latitude, longitude, altitude order.
func coordinateNames(c *container) string {
	var names []string
	for _, want := range []struct{ sn, fallback string }{
		{"time", timeVar},
		{"latitude", latVar},
		{"longitude", lonVar},
		{"height", altVar},
	} {
		if n := varByStandardName(c, want.sn, want.fallback); n != "" {
			names = append(names, n)
		}
	}
	return strings.Join(names, " ")
}

// addDataVar adds one timeseries data variable with its descriptive
// and linking attributes, which are derived from what the container
// already holds: a coordinate system variable earns a grid_mapping
// reference and a geometry container earns a geometry reference. vals
// are the flattened values in row-major order; NaNs become the fill
// value.
func addDataVar(c *container, ts *TimeSeriesSet, dims []string, vals []float64) error {
	v := &ncVar{name: ts.Name, dims: dims}
	if ts.Float32 {
		data := make([]float32, len(vals))
		for i, val := range vals {
			if math.IsNaN(val) {
				data[i] = fillFloat
			} else {
				data[i] = float32(val)
			}
		}
		v.data = data
		if err := v.addAttr("_FillValue", []float32{fillFloat}); err != nil {
			return err
		}
	} else {
		data := make([]float64, len(vals))
		for i, val := range vals {
			if math.IsNaN(val) {
				data[i] = fillDouble
			} else {
				data[i] = val
			}
		}
		v.data = data
		if err := v.addAttr("_FillValue", []float64{fillDouble}); err != nil {
			return err
		}
	}
	if ts.Units != "" {
		if err := v.addAttr("units", ts.Units); err != nil {
			return err
		}
	}
	if ts.LongName != "" {
		if err := v.addAttr("long_name", ts.LongName); err != nil {
			return err
		}
	}
	if coords := coordinateNames(c); coords != "" {
		if err := v.addAttr("coordinates", coords); err != nil {
			return err
		}
	}
	if n := crsVarName(c); n != "" {
		if err := v.addAttr("grid_mapping", n); err != nil {
			return err
		}
	}
	if n := containerVarName(c); n != "" {
		if err := v.addAttr("geometry", n); err != nil {
			return err
		}
	}
	if err := v.addMeta(ts.Meta); err != nil {
		return err
	}
	return c.addVar(v)
}

// addTimeVar adds the time coordinate on the given dimension.
func addTimeVar(c *container, dim string, vals []float64, units string) error {
	v := &ncVar{name: timeVar, dims: []string{dim}, data: vals}
	if err := v.addAttr("units", units); err != nil {
		return err
	}
	if err := v.addAttr("standard_name", "time"); err != nil {
		return err
	}
	return c.addVar(v)
}

// addColumns adds per-instance metadata columns on the dimension named
// instDim.
func addColumns(c *container, cols []AttributeColumn, instDim string, nInstances int) error {
	for i := range cols {
		col := &cols[i]
		if col.Name == "" {
			return fmt.Errorf("ncdfgeom: metadata column %d has no name", i)
		}
		n := col.len()
		if n < 0 {
			return fmt.Errorf("ncdfgeom: metadata column %s has unsupported type %T",
				col.Name, col.Values)
		}
		if n != nInstances {
			return ShapeMismatchError{Field: "metadata column " + col.Name,
				Got: n, Want: nInstances}
		}
		v := &ncVar{name: col.Name, dims: []string{instDim}}
		switch vals := col.Values.(type) {
		case []string:
			strDim := col.Name + "_strlen"
			strlen := maxStringLen(vals)
			if err := c.addDim(strDim, strlen); err != nil {
				return err
			}
			v.dims = []string{instDim, strDim}
			v.char = true
			v.data = padStrings(vals, strlen)
		case []float64:
			v.data = vals
		case []float32:
			v.data = vals
		case []int32:
			v.data = vals
		case []int16:
			v.data = vals
		}
		if err := v.addMeta(col.Meta); err != nil {
			return err
		}
		if err := c.addVar(v); err != nil {
			return err
		}
	}
	return nil
}
