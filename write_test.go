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
	"math"
	"os"
	"reflect"
	"testing"
	"time"

	"github.com/ctessum/geom"
	"github.com/ctessum/sparse"
	"github.com/gonum/floats"
)

func sameTimes(got, want []time.Time) bool {
	if len(got) != len(want) {
		return false
	}
	for i := range got {
		if !got[i].Equal(want[i]) {
			return false
		}
	}
	return true
}

func sameObservations(got, want []Observation) bool {
	if len(got) != len(want) {
		return false
	}
	for i := range got {
		if got[i].Instance != want[i].Instance || !got[i].Time.Equal(want[i].Time) ||
			got[i].Value != want[i].Value {
			return false
		}
	}
	return true
}

func writeReadFile(t *testing.T, name string, sets []*TimeSeriesSet, o *WriteOptions) *Dataset {
	t.Helper()
	if err := WriteTimeSeriesFile(name, sets, o); err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { os.Remove(name) })
	d, err := ReadFile(name)
	if err != nil {
		t.Fatal(err)
	}
	return d
}

func TestOrthogonalRoundTrip(t *testing.T) {
	instances := []Instance{
		{Name: "A", Lat: 40, Lon: -105, Alt: 1655},
		{Name: "B", Lat: 41, Lon: -106, Alt: 1810.5},
		{Name: "C", Lat: 42, Lon: -107, Alt: 2100},
	}
	times := []time.Time{date("2020-01-01"), date("2020-02-01")}
	vals := sparse.ZerosDense(2, 3)
	copy(vals.Elements, []float64{1, 2, 3, 4, 5, 6})
	ts := &TimeSeriesSet{
		Name:      "temperature",
		Units:     "K",
		LongName:  "near-surface air temperature",
		Meta:      Attributes{"method": "hourly average"},
		Instances: instances,
		Times:     times,
		Values:    vals,
	}
	o := &WriteOptions{
		Altitude: true,
		Global:   Attributes{"title": "station records", "institution": "usgs"},
	}
	d := writeReadFile(t, "test_orthogonal_roundtrip.nc", []*TimeSeriesSet{ts}, o)

	if !reflect.DeepEqual(d.Instances, instances) {
		t.Errorf("instances=%v (they should equal %v)", d.Instances, instances)
	}
	if d.TimeUnits != DefaultTimeUnits {
		t.Errorf("time units=%q (they should equal %q)", d.TimeUnits, DefaultTimeUnits)
	}
	got, err := d.Set("temperature")
	if err != nil {
		t.Fatal(err)
	}
	if got.Layout != Orthogonal {
		t.Errorf("layout=%v (it should equal %v)", got.Layout, Orthogonal)
	}
	if got.Units != "K" || got.LongName != "near-surface air temperature" {
		t.Errorf("units=%q long_name=%q", got.Units, got.LongName)
	}
	if !reflect.DeepEqual(got.Meta, Attributes{"method": "hourly average"}) {
		t.Errorf("meta=%v (it should equal the written metadata)", got.Meta)
	}
	if !sameTimes(got.Times, times) {
		t.Errorf("times=%v (they should equal %v)", got.Times, times)
	}
	if !floats.Equal(got.Values.Elements, vals.Elements) {
		t.Errorf("values=%v (they should equal %v)", got.Values.Elements, vals.Elements)
	}

	seriesTimes, seriesVals, err := got.Series("B")
	if err != nil {
		t.Fatal(err)
	}
	if !sameTimes(seriesTimes, times) || !floats.Equal(seriesVals, []float64{2, 5}) {
		t.Errorf("series for B = %v, %v (it should be %v, [2 5])", seriesTimes, seriesVals, times)
	}

	for _, a := range []string{"title", "institution"} {
		if _, ok := d.Global[a]; !ok {
			t.Errorf("no global attribute %s", a)
		}
	}
	if d.Global["title"] != "station records" {
		t.Errorf("title=%v (the caller's title should override the default)", d.Global["title"])
	}
}

func TestMissingValueRoundTrip(t *testing.T) {
	instances := []Instance{{Name: "A", Lat: 40, Lon: -105}, {Name: "B", Lat: 41, Lon: -106}}
	times := []time.Time{date("2020-01-01"), date("2020-02-01")}

	t.Run("double", func(t *testing.T) {
		vals := sparse.ZerosDense(2, 2)
		copy(vals.Elements, []float64{1, math.NaN(), math.NaN(), 4})
		ts := &TimeSeriesSet{Name: "v", Instances: instances, Times: times, Values: vals}
		d := writeReadFile(t, "test_missing_double.nc", []*TimeSeriesSet{ts}, nil)
		got, err := d.Set("v")
		if err != nil {
			t.Fatal(err)
		}
		if !floats.Same(got.Values.Elements, vals.Elements) {
			t.Errorf("values=%v (they should equal %v)", got.Values.Elements, vals.Elements)
		}
	})
	t.Run("float", func(t *testing.T) {
		vals := sparse.ZerosDense(2, 2)
		copy(vals.Elements, []float64{1.5, math.NaN(), 2.25, 4})
		ts := &TimeSeriesSet{Name: "v", Float32: true, Instances: instances, Times: times, Values: vals}
		d := writeReadFile(t, "test_missing_float.nc", []*TimeSeriesSet{ts}, nil)
		got, err := d.Set("v")
		if err != nil {
			t.Fatal(err)
		}
		if !got.Float32 {
			t.Error("the variable should read back as single precision")
		}
		if !floats.Same(got.Values.Elements, vals.Elements) {
			t.Errorf("values=%v (they should equal %v)", got.Values.Elements, vals.Elements)
		}
	})
	t.Run("altitude defaults to NaN", func(t *testing.T) {
		vals := sparse.ZerosDense(2, 2)
		ts := &TimeSeriesSet{Name: "v", Instances: instances, Times: times, Values: vals}
		d := writeReadFile(t, "test_missing_alt.nc", []*TimeSeriesSet{ts}, nil)
		for _, in := range d.Instances {
			if !math.IsNaN(in.Alt) {
				t.Errorf("instance %s altitude=%v (it should be NaN when the file stores none)",
					in.Name, in.Alt)
			}
		}
	})
}

func TestContiguousRaggedRoundTrip(t *testing.T) {
	instances := []Instance{{Name: "A", Lat: 40, Lon: -105}, {Name: "B", Lat: 41, Lon: -106}}
	// Deliberately out of storage order; the contiguous layout groups
	// by instance and sorts each instance's rows by time.
	obs := []Observation{
		{Instance: "B", Time: date("2020-01-01"), Value: 20},
		{Instance: "A", Time: date("2020-02-01"), Value: 11},
		{Instance: "A", Time: date("2020-01-01"), Value: 10},
	}
	ts := &TimeSeriesSet{Name: "streamflow", Units: "m3 s-1", Instances: instances, Observations: obs}
	d := writeReadFile(t, "test_contiguous_roundtrip.nc", []*TimeSeriesSet{ts}, nil)

	got, err := d.Set("streamflow")
	if err != nil {
		t.Fatal(err)
	}
	if got.Layout != ContiguousRagged {
		t.Errorf("layout=%v (it should equal %v)", got.Layout, ContiguousRagged)
	}
	want := []Observation{
		{Instance: "A", Time: date("2020-01-01"), Value: 10},
		{Instance: "A", Time: date("2020-02-01"), Value: 11},
		{Instance: "B", Time: date("2020-01-01"), Value: 20},
	}
	if !sameObservations(got.Observations, want) {
		t.Errorf("observations=%v (they should equal %v)", got.Observations, want)
	}

	seriesTimes, seriesVals, err := got.Series("A")
	if err != nil {
		t.Fatal(err)
	}
	if !sameTimes(seriesTimes, []time.Time{date("2020-01-01"), date("2020-02-01")}) ||
		!floats.Equal(seriesVals, []float64{10, 11}) {
		t.Errorf("series for A = %v, %v", seriesTimes, seriesVals)
	}
}

func TestIndexedRaggedRoundTrip(t *testing.T) {
	instances := []Instance{{Name: "A", Lat: 40, Lon: -105}, {Name: "B", Lat: 41, Lon: -106}}
	obs := []Observation{
		{Instance: "B", Time: date("2020-01-01"), Value: 20},
		{Instance: "A", Time: date("2020-01-01"), Value: 10},
		{Instance: "A", Time: date("2020-02-01"), Value: 11},
	}
	ts := &TimeSeriesSet{Name: "streamflow", Layout: IndexedRagged,
		Instances: instances, Observations: obs}
	d := writeReadFile(t, "test_indexed_roundtrip.nc", []*TimeSeriesSet{ts}, nil)

	got, err := d.Set("streamflow")
	if err != nil {
		t.Fatal(err)
	}
	if got.Layout != IndexedRagged {
		t.Errorf("layout=%v (it should equal %v)", got.Layout, IndexedRagged)
	}
	// The indexed layout stores rows in the caller's order.
	if !sameObservations(got.Observations, obs) {
		t.Errorf("observations=%v (they should equal %v)", got.Observations, obs)
	}
}

// TestDerivedInstancesRoundTrip checks that a ragged set written
// without an explicit instance list stores distinct identifiers in
// first-seen order, and that a file with no coordinates to store
// carries no latitude or longitude variables.
func TestDerivedInstancesRoundTrip(t *testing.T) {
	obs := []Observation{
		{Instance: "B", Time: date("2020-01-01"), Value: 20},
		{Instance: "A", Time: date("2020-01-01"), Value: 10},
		{Instance: "B", Time: date("2020-02-01"), Value: 21},
	}
	ts := &TimeSeriesSet{Name: "v", Observations: obs}
	d := writeReadFile(t, "test_derived_instances.nc", []*TimeSeriesSet{ts}, nil)

	names := make([]string, len(d.Instances))
	for i, in := range d.Instances {
		names[i] = in.Name
		if !math.IsNaN(in.Lat) || !math.IsNaN(in.Lon) {
			t.Errorf("instance %s coordinates=(%v, %v) (they should read back as NaN when none were given)",
				in.Name, in.Lat, in.Lon)
		}
	}
	if !reflect.DeepEqual(names, []string{"B", "A"}) {
		t.Errorf("instances=%v (they should be [B A], in first-seen order)", names)
	}
	got, err := d.Set("v")
	if err != nil {
		t.Fatal(err)
	}
	want := []Observation{
		{Instance: "B", Time: date("2020-01-01"), Value: 20},
		{Instance: "B", Time: date("2020-02-01"), Value: 21},
		{Instance: "A", Time: date("2020-01-01"), Value: 10},
	}
	if !sameObservations(got.Observations, want) {
		t.Errorf("observations=%v (they should equal %v)", got.Observations, want)
	}
}

// TestRaggedLayoutsAgree writes the same rows through both ragged
// layouts and checks that the decoded series are identical.
func TestRaggedLayoutsAgree(t *testing.T) {
	instances := []Instance{{Name: "A", Lat: 40, Lon: -105}, {Name: "B", Lat: 41, Lon: -106}}
	obs := []Observation{
		{Instance: "A", Time: date("2020-01-01"), Value: 10},
		{Instance: "B", Time: date("2020-01-01"), Value: 20},
		{Instance: "A", Time: date("2020-02-01"), Value: 11},
		{Instance: "B", Time: date("2020-03-01"), Value: 21},
	}
	files := map[string]Layout{
		"test_agree_contiguous.nc": ContiguousRagged,
		"test_agree_indexed.nc":    IndexedRagged,
	}
	series := make(map[string]map[Layout][]float64)
	for name, layout := range files {
		ts := &TimeSeriesSet{Name: "v", Layout: layout, Instances: instances, Observations: obs}
		d := writeReadFile(t, name, []*TimeSeriesSet{ts}, nil)
		got, err := d.Set("v")
		if err != nil {
			t.Fatal(err)
		}
		for _, in := range instances {
			_, vals, err := got.Series(in.Name)
			if err != nil {
				t.Fatal(err)
			}
			if series[in.Name] == nil {
				series[in.Name] = make(map[Layout][]float64)
			}
			series[in.Name][layout] = vals
		}
	}
	for name, byLayout := range series {
		if !floats.Equal(byLayout[ContiguousRagged], byLayout[IndexedRagged]) {
			t.Errorf("instance %s: contiguous series %v differs from indexed series %v",
				name, byLayout[ContiguousRagged], byLayout[IndexedRagged])
		}
	}
}

func TestTimeUnitsOption(t *testing.T) {
	instances := []Instance{{Name: "A", Lat: 40, Lon: -105}}
	times := []time.Time{
		time.Date(2020, 1, 1, 6, 0, 0, 0, time.UTC),
		time.Date(2020, 1, 1, 18, 30, 0, 0, time.UTC),
	}
	vals := sparse.ZerosDense(2, 1)
	ts := &TimeSeriesSet{Name: "v", Instances: instances, Times: times, Values: vals}
	const units = "hours since 2020-01-01 00:00:00"
	d := writeReadFile(t, "test_time_units.nc", []*TimeSeriesSet{ts}, &WriteOptions{TimeUnits: units})
	if d.TimeUnits != units {
		t.Errorf("time units=%q (they should equal %q)", d.TimeUnits, units)
	}
	got, err := d.Set("v")
	if err != nil {
		t.Fatal(err)
	}
	if !sameTimes(got.Times, times) {
		t.Errorf("times=%v (they should equal %v)", got.Times, times)
	}
}

func TestGeometryWithTimeSeries(t *testing.T) {
	instances := []Instance{{Name: "A", Lat: 40, Lon: -105}, {Name: "B", Lat: 41, Lon: -106}}
	times := []time.Time{date("2020-01-01")}
	vals := sparse.ZerosDense(1, 2)
	geoms := []geom.Geom{
		geom.Polygon{{{X: 0, Y: 0}, {X: 4, Y: 0}, {X: 4, Y: 4}, {X: 0, Y: 4}}},
		geom.Polygon{{{X: 5, Y: 5}, {X: 6, Y: 5}, {X: 6, Y: 6}, {X: 5, Y: 6}}},
	}
	ts := &TimeSeriesSet{Name: "v", Instances: instances, Times: times, Values: vals}
	d := writeReadFile(t, "test_geometry_timeseries.nc", []*TimeSeriesSet{ts},
		&WriteOptions{Geometry: geoms})

	if !reflect.DeepEqual(d.Geometry, geoms) {
		t.Errorf("geometry=%v (it should equal %v)", d.Geometry, geoms)
	}
	if d.Proj4 != defaultProj4 {
		t.Errorf("proj4=%q (it should equal %q)", d.Proj4, defaultProj4)
	}
	if _, err := d.Set("v"); err != nil {
		t.Fatal(err)
	}
	if names := d.GeometryNames(); !reflect.DeepEqual(names, []string{"A", "B"}) {
		t.Errorf("geometry names=%v (they should equal [A B])", names)
	}
}

func TestGeometryFileRoundTrip(t *testing.T) {
	geoms := []geom.Geom{
		geom.MultiPolygon{
			{{{X: 0, Y: 0}, {X: 10, Y: 0}, {X: 10, Y: 10}, {X: 0, Y: 10}},
				{{X: 2, Y: 2}, {X: 2, Y: 4}, {X: 4, Y: 4}, {X: 4, Y: 2}}},
			{{{X: 20, Y: 20}, {X: 30, Y: 20}, {X: 25, Y: 30}}},
		},
		geom.Polygon{{{X: 50, Y: 50}, {X: 60, Y: 50}, {X: 55, Y: 60}}},
	}
	const file = "test_geometry_file.nc"
	if err := WriteGeometryFile(file, geoms, []string{"basin1", "basin2"}, nil); err != nil {
		t.Fatal(err)
	}
	defer os.Remove(file)
	d, err := ReadFile(file)
	if err != nil {
		t.Fatal(err)
	}
	if !reflect.DeepEqual(d.Geometry, geoms) {
		t.Errorf("geometry=%v (it should equal %v)", d.Geometry, geoms)
	}
	if names := d.GeometryNames(); !reflect.DeepEqual(names, []string{"basin1", "basin2"}) {
		t.Errorf("names=%v (they should equal [basin1 basin2])", names)
	}
	if len(d.Sets) != 0 {
		t.Errorf("%d timeseries sets (there should be none)", len(d.Sets))
	}
}

func TestColumnsRoundTrip(t *testing.T) {
	instances := []Instance{{Name: "A", Lat: 40, Lon: -105}, {Name: "B", Lat: 41, Lon: -106}}
	times := []time.Time{date("2020-01-01")}
	vals := sparse.ZerosDense(1, 2)
	cols := []AttributeColumn{
		{Name: "operator", Values: []string{"usgs", "noaa"}},
		{Name: "drainage_area", Values: []float64{120.5, 34.25},
			Meta: Attributes{"units": "km2"}},
		{Name: "gauge_id", Values: []int32{1001, 1002}},
	}
	ts := &TimeSeriesSet{Name: "v", Instances: instances, Times: times, Values: vals}
	d := writeReadFile(t, "test_columns_roundtrip.nc", []*TimeSeriesSet{ts},
		&WriteOptions{Columns: cols})

	if len(d.Columns) != len(cols) {
		t.Fatalf("%d columns (there should be %d)", len(d.Columns), len(cols))
	}
	for i, want := range cols {
		got := d.Columns[i]
		if got.Name != want.Name {
			t.Errorf("column %d name=%s (it should equal %s)", i, got.Name, want.Name)
		}
		if !reflect.DeepEqual(got.Values, want.Values) {
			t.Errorf("column %s values=%v (they should equal %v)", want.Name, got.Values, want.Values)
		}
	}
	if units := d.Columns[1].Meta["units"]; units != "km2" {
		t.Errorf("drainage_area units=%v (they should equal km2)", units)
	}
}

func TestWriteFileValidationFailure(t *testing.T) {
	const file = "test_validation_failure.nc"
	ts := &TimeSeriesSet{
		Name:      "v",
		Instances: []Instance{{Name: "A"}},
		Times:     []time.Time{date("2020-01-01")},
		Values:    sparse.ZerosDense(2, 1), // wrong time length
	}
	if err := WriteTimeSeriesFile(file, []*TimeSeriesSet{ts}, nil); err == nil {
		os.Remove(file)
		t.Fatal("no error for an invalid set")
	}
	if _, err := os.Stat(file); !os.IsNotExist(err) {
		os.Remove(file)
		t.Error("a validation failure should not leave a file behind")
	}
}
