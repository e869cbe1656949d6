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
	"reflect"
	"testing"
	"time"

	"github.com/gonum/floats"
)

// foreignVar builds an ncVar with the given attributes, failing the
// test on an attribute error.
func foreignVar(t *testing.T, name string, dims []string, char bool, data interface{}, attrs map[string]interface{}) *ncVar {
	t.Helper()
	v := &ncVar{name: name, dims: dims, char: char, data: data}
	for _, n := range (Attributes)(attrs).names() {
		if err := v.addAttr(n, attrs[n]); err != nil {
			t.Fatal(err)
		}
	}
	return v
}

// TestReadForeignNames decodes a container that uses none of this
// package's variable or dimension names, relying entirely on
// attributes for recognition: cf_role, standard_name, and parseable
// time units. The data matrix is stored [instance, time] to exercise
// the transposed orthogonal path, and missing values are flagged with
// missing_value rather than _FillValue.
func TestReadForeignNames(t *testing.T) {
	c := new(container)
	if err := c.addDim("stn", 2); err != nil {
		t.Fatal(err)
	}
	if err := c.addDim("t", 3); err != nil {
		t.Fatal(err)
	}
	if err := c.addDim("len", 4); err != nil {
		t.Fatal(err)
	}
	vars := []*ncVar{
		foreignVar(t, "station_id", []string{"stn", "len"}, true,
			padStrings([]string{"s1", "s2"}, 4),
			map[string]interface{}{"cf_role": "timeseries_id"}),
		foreignVar(t, "ycoord", []string{"stn"}, false, []float64{40, 41},
			map[string]interface{}{"standard_name": "latitude", "units": "degrees_north"}),
		foreignVar(t, "xcoord", []string{"stn"}, false, []float64{-105, -106},
			map[string]interface{}{"standard_name": "longitude", "units": "degrees_east"}),
		foreignVar(t, "t", []string{"t"}, false, []float64{0, 24, 48},
			map[string]interface{}{"units": "hours since 2020-01-01 00:00:00"}),
		foreignVar(t, "Tair", []string{"stn", "t"}, false,
			[]float64{280, 281, -999, 290, 291, 292},
			map[string]interface{}{"units": "K", "missing_value": -999.0}),
	}
	for _, v := range vars {
		if err := c.addVar(v); err != nil {
			t.Fatal(err)
		}
	}

	d, err := datasetFromContainer(c)
	if err != nil {
		t.Fatal(err)
	}
	wantInstances := []Instance{
		{Name: "s1", Lat: 40, Lon: -105, Alt: math.NaN()},
		{Name: "s2", Lat: 41, Lon: -106, Alt: math.NaN()},
	}
	if len(d.Instances) != 2 {
		t.Fatalf("%d instances (there should be 2)", len(d.Instances))
	}
	for i, want := range wantInstances {
		got := d.Instances[i]
		if got.Name != want.Name || got.Lat != want.Lat || got.Lon != want.Lon || !math.IsNaN(got.Alt) {
			t.Errorf("instance %d=%v (it should equal %v)", i, got, want)
		}
	}

	ts, err := d.Set("Tair")
	if err != nil {
		t.Fatal(err)
	}
	if ts.Layout != Orthogonal {
		t.Errorf("layout=%v (it should equal %v)", ts.Layout, Orthogonal)
	}
	if !sameTimes(ts.Times, []time.Time{
		date("2020-01-01"), date("2020-01-02"), date("2020-01-03"),
	}) {
		t.Errorf("times=%v (they should be 2020-01-01..03)", ts.Times)
	}
	// Transposed from [instance, time] storage, with the flagged cell
	// decoded as NaN.
	want := []float64{280, 290, 281, 291, math.NaN(), 292}
	if !floats.Same(ts.Values.Elements, want) {
		t.Errorf("values=%v (they should equal %v)", ts.Values.Elements, want)
	}
}

func TestReadForeignRagged(t *testing.T) {
	c := new(container)
	for _, d := range []struct {
		name string
		n    int
	}{{"feature", 2}, {"sample", 3}, {"idlen", 2}} {
		if err := c.addDim(d.name, d.n); err != nil {
			t.Fatal(err)
		}
	}
	vars := []*ncVar{
		foreignVar(t, "feature_id", []string{"feature", "idlen"}, true,
			padStrings([]string{"f1", "f2"}, 2),
			map[string]interface{}{"cf_role": "timeseries_id"}),
		foreignVar(t, "sample_time", []string{"sample"}, false, []float64{0, 1, 2},
			map[string]interface{}{"standard_name": "time", "units": "days since 2020-01-01"}),
		foreignVar(t, "parent_index", []string{"sample"}, false, []int32{1, 0, 1},
			map[string]interface{}{"instance_dimension": "feature"}),
		foreignVar(t, "flow", []string{"sample"}, false, []float64{7, 8, 9},
			map[string]interface{}{"units": "m3 s-1"}),
	}
	for _, v := range vars {
		if err := c.addVar(v); err != nil {
			t.Fatal(err)
		}
	}

	d, err := datasetFromContainer(c)
	if err != nil {
		t.Fatal(err)
	}
	ts, err := d.Set("flow")
	if err != nil {
		t.Fatal(err)
	}
	if ts.Layout != IndexedRagged {
		t.Errorf("layout=%v (it should equal %v)", ts.Layout, IndexedRagged)
	}
	want := []Observation{
		{Instance: "f2", Time: date("2020-01-01"), Value: 7},
		{Instance: "f1", Time: date("2020-01-02"), Value: 8},
		{Instance: "f2", Time: date("2020-01-03"), Value: 9},
	}
	if !sameObservations(ts.Observations, want) {
		t.Errorf("observations=%v (they should equal %v)", ts.Observations, want)
	}
}

func TestReadNumericIdentifiers(t *testing.T) {
	c := new(container)
	if err := c.addDim("stn", 2); err != nil {
		t.Fatal(err)
	}
	v := foreignVar(t, "station", []string{"stn"}, false, []int32{101, 102},
		map[string]interface{}{"cf_role": "timeseries_id"})
	if err := c.addVar(v); err != nil {
		t.Fatal(err)
	}
	d, err := datasetFromContainer(c)
	if err != nil {
		t.Fatal(err)
	}
	got := []string{d.Instances[0].Name, d.Instances[1].Name}
	if !reflect.DeepEqual(got, []string{"101", "102"}) {
		t.Errorf("names=%v (they should equal [101 102])", got)
	}
}

func TestReadErrors(t *testing.T) {
	t.Run("data variable without identifiers", func(t *testing.T) {
		c := new(container)
		if err := c.addDim("feature", 1); err != nil {
			t.Fatal(err)
		}
		if err := c.addDim("sample", 2); err != nil {
			t.Fatal(err)
		}
		for _, v := range []*ncVar{
			foreignVar(t, "rs", []string{"feature"}, false, []int32{2},
				map[string]interface{}{"sample_dimension": "sample"}),
			foreignVar(t, "sample_time", []string{"sample"}, false, []float64{0, 1},
				map[string]interface{}{"units": "days since 2020-01-01"}),
			foreignVar(t, "v", []string{"sample"}, false, []float64{1, 2}, nil),
		} {
			if err := c.addVar(v); err != nil {
				t.Fatal(err)
			}
		}
		if _, err := datasetFromContainer(c); err == nil {
			t.Error("no error for a data variable without a timeseries_id variable")
		}
	})
	t.Run("time variable without units", func(t *testing.T) {
		c := new(container)
		if err := c.addDim("t", 2); err != nil {
			t.Fatal(err)
		}
		v := foreignVar(t, "t", []string{"t"}, false, []float64{0, 1},
			map[string]interface{}{"standard_name": "time"})
		if err := c.addVar(v); err != nil {
			t.Fatal(err)
		}
		if _, err := datasetFromContainer(c); err == nil {
			t.Error("no error for a time variable with no units")
		}
	})
	t.Run("geometry count mismatch", func(t *testing.T) {
		c := new(container)
		if err := c.addDim("stn", 2); err != nil {
			t.Fatal(err)
		}
		if err := c.addDim("node", 3); err != nil {
			t.Fatal(err)
		}
		if err := c.addDim("len", 2); err != nil {
			t.Fatal(err)
		}
		for _, v := range []*ncVar{
			foreignVar(t, "station", []string{"stn", "len"}, true,
				padStrings([]string{"a", "b"}, 2),
				map[string]interface{}{"cf_role": "timeseries_id"}),
			foreignVar(t, "geometry", nil, false, []int32{0},
				map[string]interface{}{
					"geometry_type":    "point",
					"node_coordinates": "gx gy",
					"node_count":       "gn",
				}),
			foreignVar(t, "gx", []string{"node"}, false, []float64{1, 2, 3}, nil),
			foreignVar(t, "gy", []string{"node"}, false, []float64{1, 2, 3}, nil),
			foreignVar(t, "gn", []string{"node"}, false, []int32{1, 1, 1}, nil),
		} {
			if err := c.addVar(v); err != nil {
				t.Fatal(err)
			}
		}
		_, err := datasetFromContainer(c)
		if _, ok := err.(GeometryIndexError); !ok {
			t.Errorf("err=%v (it should be a GeometryIndexError)", err)
		}
	})
	t.Run("bad node coordinates attribute", func(t *testing.T) {
		c := new(container)
		if err := c.addDim("node", 1); err != nil {
			t.Fatal(err)
		}
		for _, v := range []*ncVar{
			foreignVar(t, "geometry", nil, false, []int32{0},
				map[string]interface{}{
					"geometry_type":    "point",
					"node_coordinates": "gx",
				}),
			foreignVar(t, "gx", []string{"node"}, false, []float64{1}, nil),
		} {
			if err := c.addVar(v); err != nil {
				t.Fatal(err)
			}
		}
		if _, err := datasetFromContainer(c); err == nil {
			t.Error("no error for a node_coordinates attribute naming one variable")
		}
	})
}

func TestFloatValues(t *testing.T) {
	for _, test := range []struct {
		data     interface{}
		want     []float64
		isFloat3 bool
	}{
		{[]float64{1, 2}, []float64{1, 2}, false},
		{[]float32{1, 2}, []float64{1, 2}, true},
		{[]int32{1, 2}, []float64{1, 2}, false},
		{[]int16{1, 2}, []float64{1, 2}, false},
		{[]uint8{1, 2}, []float64{1, 2}, false},
	} {
		got, isFloat32, err := floatValues(test.data)
		if err != nil {
			t.Fatal(err)
		}
		if !floats.Equal(got, test.want) || isFloat32 != test.isFloat3 {
			t.Errorf("floatValues(%T)=%v,%v (it should equal %v,%v)",
				test.data, got, isFloat32, test.want, test.isFloat3)
		}
	}
	if _, _, err := floatValues([]bool{true}); err == nil {
		t.Error("no error for an unsupported type")
	}
}
