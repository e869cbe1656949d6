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

// Package ncdfgeom reads and writes geospatial timeseries and geometry
// data in NetCDF files following the Climate and Forecast (CF-1.8)
// discrete sampling geometry and geometry container conventions, so
// that station data and the station geometries can travel in one
// self-describing file.
package ncdfgeom

import (
	"fmt"
	"math"
	"sort"
	"time"

	"github.com/ctessum/geom"
	"github.com/ctessum/sparse"
)

// Version gives the version of this library.
const Version = "0.1.0"

// Names of the dimensions, variables, and attributes this package
// writes. Reading recognizes files by attribute (cf_role,
// sample_dimension, instance_dimension, geometry_type, and so on)
// rather than by these names, so files written by other software with
// different names still read correctly.
const (
	instanceDim = "instance"
	timeDim     = "time"
	obsDim      = "obs"
	nodeDim     = "node"
	partDim     = "part"
	strlenDim   = "name_strlen"

	nameVar      = "instance_name"
	latVar       = "lat"
	lonVar       = "lon"
	altVar       = "alt"
	timeVar      = "time"
	rowSizeVar   = "row_size"
	indexVar     = "instance_index"
	containerVar = "geometry_container"
	crsVar       = "crs"
	nodeXVar     = "x"
	nodeYVar     = "y"
	nodeCountVar = "node_count"
	partCountVar = "part_node_count"
	interiorVar  = "interior_ring"
)

// Layout selects how a timeseries set is arranged in the file.
type Layout int

const (
	// DefaultLayout lets the writer choose: Orthogonal when the set
	// holds a dense matrix, ContiguousRagged when it holds
	// per-observation rows.
	DefaultLayout Layout = iota

	// Orthogonal stores one [time, instance] matrix; every instance
	// shares the same time axis.
	Orthogonal

	// ContiguousRagged stores each instance's observations one after
	// another along an observation dimension, with a row-size
	// variable giving the length of each instance's block.
	ContiguousRagged

	// IndexedRagged stores observations in any order along an
	// observation dimension, with an index variable assigning each
	// observation to an instance.
	IndexedRagged
)

func (l Layout) String() string {
	switch l {
	case DefaultLayout:
		return "default"
	case Orthogonal:
		return "orthogonal"
	case ContiguousRagged:
		return "contiguousRagged"
	case IndexedRagged:
		return "indexedRagged"
	default:
		return fmt.Sprintf("Layout(%d)", int(l))
	}
}

// An Instance is one feature that timeseries or geometries describe: a
// monitoring station, a stream reach, a reporting area. Name is the
// timeseries identifier and must be unique within a file.
type Instance struct {
	Name     string
	Lat, Lon float64

	// Alt is the height above the surface in meters.
	Alt float64
}

// An Observation is one (instance, time, value) row of a ragged
// timeseries.
type Observation struct {
	Instance string
	Time     time.Time
	Value    float64
}

// A TimeSeriesSet is one named data variable and the instances, times,
// and values it covers. Exactly one of Values and Observations must be
// set: Values holds a dense [time, instance] matrix for the orthogonal
// layout, and Observations holds rows for the ragged layouts. Missing
// values in Values are represented as NaN.
type TimeSeriesSet struct {
	// Name is the netCDF variable name for the data.
	Name string

	// Units, LongName, and Meta become attributes of the data
	// variable.
	Units    string
	LongName string
	Meta     Attributes

	// Float32 stores the values in single precision.
	Float32 bool

	// Layout selects the file arrangement; leave zero to choose
	// automatically from which of Values and Observations is set.
	Layout Layout

	// Instances lists the features the set covers, in the order their
	// values are stored. A ragged set may leave it empty, in which case
	// the list is derived from the observation rows: distinct
	// identifiers in first-seen order, with no coordinates.
	Instances []Instance

	// Times is the shared time axis for the orthogonal layout. Its
	// length must equal Values.Shape[0].
	Times []time.Time

	// Values is the dense matrix for the orthogonal layout, with
	// shape [len(Times), len(Instances)].
	Values *sparse.DenseArray

	// Observations holds the rows for the ragged layouts.
	Observations []Observation
}

// check validates the set, derives the instance list when a ragged set
// leaves it empty, and resolves the layout.
func (ts *TimeSeriesSet) check() (Layout, error) {
	if ts.Name == "" {
		return 0, fmt.Errorf("ncdfgeom: timeseries set has no name")
	}
	hasValues := ts.Values != nil
	hasObs := len(ts.Observations) > 0
	if hasValues == hasObs {
		return 0, fmt.Errorf("ncdfgeom: timeseries set %s: exactly one of Values and Observations must be set", ts.Name)
	}
	if hasObs && len(ts.Instances) == 0 {
		ts.Instances = observationInstances(ts.Observations)
	}
	if err := checkInstances(ts.Instances); err != nil {
		return 0, err
	}
	if hasValues {
		if ts.Layout == ContiguousRagged || ts.Layout == IndexedRagged {
			return 0, fmt.Errorf("ncdfgeom: timeseries set %s: a %v layout requires Observations, not Values", ts.Name, ts.Layout)
		}
		if len(ts.Times) == 0 {
			return 0, ShapeMismatchError{Field: "time axis for set " + ts.Name, Got: 0, Want: 1}
		}
		if len(ts.Values.Shape) != 2 {
			return 0, ShapeMismatchError{Field: "value matrix rank for set " + ts.Name,
				Got: len(ts.Values.Shape), Want: 2}
		}
		if ts.Values.Shape[0] != len(ts.Times) {
			return 0, ShapeMismatchError{Field: "value matrix time length for set " + ts.Name,
				Got: ts.Values.Shape[0], Want: len(ts.Times)}
		}
		if ts.Values.Shape[1] != len(ts.Instances) {
			return 0, ShapeMismatchError{Field: "value matrix instance length for set " + ts.Name,
				Got: ts.Values.Shape[1], Want: len(ts.Instances)}
		}
		return Orthogonal, nil
	}
	if ts.Layout == Orthogonal {
		return 0, fmt.Errorf("ncdfgeom: timeseries set %s: the orthogonal layout requires Values, not Observations", ts.Name)
	}
	names := make(map[string]bool, len(ts.Instances))
	for _, in := range ts.Instances {
		names[in.Name] = true
	}
	for i, obs := range ts.Observations {
		if !names[obs.Instance] {
			return 0, fmt.Errorf("ncdfgeom: timeseries set %s: observation %d references unknown instance %q",
				ts.Name, i, obs.Instance)
		}
	}
	if ts.Layout == IndexedRagged {
		return IndexedRagged, nil
	}
	return ContiguousRagged, nil
}

// checkInstances validates an instance list: it must be non-empty with
// unique, non-empty names.
func checkInstances(instances []Instance) error {
	if len(instances) == 0 {
		return ShapeMismatchError{Field: "instance list", Got: 0, Want: 1}
	}
	seen := make(map[string]bool, len(instances))
	for i, in := range instances {
		if in.Name == "" {
			return fmt.Errorf("ncdfgeom: instance %d has no name", i)
		}
		if seen[in.Name] {
			return fmt.Errorf("ncdfgeom: duplicate instance name %q", in.Name)
		}
		seen[in.Name] = true
	}
	return nil
}

// observationInstances derives an instance list from observation rows:
// distinct identifiers in first-seen order, with no coordinates.
func observationInstances(obs []Observation) []Instance {
	seen := make(map[string]bool, len(obs))
	var instances []Instance
	for _, o := range obs {
		if seen[o.Instance] {
			continue
		}
		seen[o.Instance] = true
		instances = append(instances, Instance{
			Name: o.Instance, Lat: math.NaN(), Lon: math.NaN(), Alt: math.NaN(),
		})
	}
	return instances
}

// instanceIndex returns a map from instance name to position.
func instanceIndex(instances []Instance) map[string]int {
	m := make(map[string]int, len(instances))
	for i, in := range instances {
		m[in.Name] = i
	}
	return m
}

// Series returns the ordered (time, value) sequence for one instance.
// For an orthogonal set the sequence covers the whole time axis,
// including NaN entries for missing values; for a ragged set it holds
// that instance's observations sorted by time.
func (ts *TimeSeriesSet) Series(instance string) ([]time.Time, []float64, error) {
	idx, ok := instanceIndex(ts.Instances)[instance]
	if !ok {
		return nil, nil, fmt.Errorf("ncdfgeom: no instance named %q", instance)
	}
	if ts.Values != nil {
		vals := make([]float64, len(ts.Times))
		for t := range ts.Times {
			vals[t] = ts.Values.Get(t, idx)
		}
		return ts.Times, vals, nil
	}
	type row struct {
		t time.Time
		v float64
	}
	var rows []row
	for _, obs := range ts.Observations {
		if obs.Instance == instance {
			rows = append(rows, row{obs.Time, obs.Value})
		}
	}
	sort.SliceStable(rows, func(i, j int) bool { return rows[i].t.Before(rows[j].t) })
	times := make([]time.Time, len(rows))
	vals := make([]float64, len(rows))
	for i, r := range rows {
		times[i] = r.t
		vals[i] = r.v
	}
	return times, vals, nil
}

// Wide reconstructs a dense [time, instance] matrix from the set. For
// an orthogonal set it returns the stored axis and matrix directly.
// For a ragged set the time axis is the sorted union of all
// observation times and cells with no observation are NaN; an instance
// with two observations at the same time is an error.
func (ts *TimeSeriesSet) Wide() ([]time.Time, *sparse.DenseArray, error) {
	if ts.Values != nil {
		return ts.Times, ts.Values, nil
	}
	unique := make(map[int64]time.Time)
	for _, obs := range ts.Observations {
		unique[obs.Time.UnixNano()] = obs.Time
	}
	times := make([]time.Time, 0, len(unique))
	for _, t := range unique {
		times = append(times, t)
	}
	sort.Slice(times, func(i, j int) bool { return times[i].Before(times[j]) })
	timeIdx := make(map[int64]int, len(times))
	for i, t := range times {
		timeIdx[t.UnixNano()] = i
	}
	instIdx := instanceIndex(ts.Instances)
	vals := sparse.ZerosDense(len(times), len(ts.Instances))
	for i := range vals.Elements {
		vals.Elements[i] = math.NaN()
	}
	for _, obs := range ts.Observations {
		t, i := timeIdx[obs.Time.UnixNano()], instIdx[obs.Instance]
		if !math.IsNaN(vals.Get(t, i)) {
			return nil, nil, fmt.Errorf("ncdfgeom: instance %q has two observations at %v",
				obs.Instance, obs.Time)
		}
		vals.Set(obs.Value, t, i)
	}
	return times, vals, nil
}

// WriteOptions configures how timeseries and geometry are written.
// The zero value is usable.
type WriteOptions struct {
	// TimeUnits is the CF time encoding, for example
	// "days since 1970-01-01 00:00:00" (the default).
	TimeUnits string

	// Geometry holds one geometry per instance to store alongside the
	// timeseries. All geometries must be the same kind: points, lines,
	// or polygons, counting multi-part variants as their single-part
	// kind.
	Geometry []geom.Geom

	// Proj4 is the coordinate reference system of Geometry as a PROJ
	// definition string. When empty, geometries are assumed to be
	// WGS84 longitude and latitude.
	Proj4 string

	// Columns holds per-instance metadata columns.
	Columns []AttributeColumn

	// Global holds extra global attributes.
	Global Attributes

	// Altitude writes an instance altitude variable. Altitudes are
	// often unknown, so they are omitted unless requested.
	Altitude bool
}

func (o *WriteOptions) timeUnits() string {
	if o == nil || o.TimeUnits == "" {
		return DefaultTimeUnits
	}
	return o.TimeUnits
}

func (o *WriteOptions) proj4() string {
	if o == nil || o.Proj4 == "" {
		return defaultProj4
	}
	return o.Proj4
}

// A Dataset is the in-memory form of a file read by this package:
// the shared instance list, each data variable as a TimeSeriesSet,
// the geometries and coordinate reference system if the file has a
// geometry container, and any per-instance metadata columns.
type Dataset struct {
	Instances []Instance
	Sets      []*TimeSeriesSet

	// Geometry holds one geometry per instance when the file has a
	// geometry container.
	Geometry []geom.Geom

	// Proj4 is the PROJ string stored with the coordinate reference
	// system variable, if any.
	Proj4 string

	// CRS holds the raw attributes of the coordinate reference system
	// variable, if any.
	CRS Attributes

	Columns []AttributeColumn

	// TimeUnits is the time encoding of the file's time coordinate,
	// if the file has one.
	TimeUnits string

	// Global holds the file's global attributes.
	Global Attributes
}

// Set returns the timeseries set with the given variable name.
func (d *Dataset) Set(name string) (*TimeSeriesSet, error) {
	for _, ts := range d.Sets {
		if ts.Name == name {
			return ts, nil
		}
	}
	return nil, fmt.Errorf("ncdfgeom: file has no timeseries variable %q", name)
}

// GeometryNames returns the instance names aligned with Geometry, or
// nil if the file stores no identifiers.
func (d *Dataset) GeometryNames() []string {
	if len(d.Instances) == 0 {
		return nil
	}
	names := make([]string, len(d.Instances))
	for i, in := range d.Instances {
		names[i] = in.Name
	}
	return names
}
