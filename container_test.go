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
	"os"
	"reflect"
	"strings"
	"testing"

	"github.com/ctessum/cdf"
)

func TestContainerValidation(t *testing.T) {
	c := new(container)
	if err := c.addDim("station", 2); err != nil {
		t.Fatal(err)
	}
	t.Run("duplicate dimension", func(t *testing.T) {
		if err := c.addDim("station", 2); err == nil {
			t.Error("no error for a duplicate dimension")
		}
	})
	t.Run("zero-length dimension", func(t *testing.T) {
		err := c.addDim("empty", 0)
		if _, ok := err.(ShapeMismatchError); !ok {
			t.Errorf("err=%v (it should be a ShapeMismatchError)", err)
		}
	})
	t.Run("undefined dimension", func(t *testing.T) {
		err := c.addVar(&ncVar{name: "v", dims: []string{"nosuch"}, data: []float64{1}})
		if err == nil {
			t.Error("no error for an undefined dimension")
		}
	})
	t.Run("data length", func(t *testing.T) {
		err := c.addVar(&ncVar{name: "v", dims: []string{"station"}, data: []float64{1, 2, 3}})
		if _, ok := err.(ShapeMismatchError); !ok {
			t.Errorf("err=%v (it should be a ShapeMismatchError)", err)
		}
	})
	t.Run("unsupported data type", func(t *testing.T) {
		err := c.addVar(&ncVar{name: "v", dims: []string{"station"}, data: []bool{true, false}})
		if err == nil {
			t.Error("no error for an unsupported data type")
		}
	})
	t.Run("duplicate variable", func(t *testing.T) {
		if err := c.addVar(&ncVar{name: "v", dims: []string{"station"}, data: []float64{1, 2}}); err != nil {
			t.Fatal(err)
		}
		if err := c.addVar(&ncVar{name: "v", dims: []string{"station"}, data: []float64{3, 4}}); err == nil {
			t.Error("no error for a duplicate variable")
		}
	})
	t.Run("duplicate attribute", func(t *testing.T) {
		v := c.findVar("v")
		if err := v.addAttr("units", "m"); err != nil {
			t.Fatal(err)
		}
		if err := v.addAttr("units", "s"); err == nil {
			t.Error("no error for a duplicate attribute")
		}
	})
	t.Run("duplicate global attribute", func(t *testing.T) {
		if err := c.addGlobal("title", "x"); err != nil {
			t.Fatal(err)
		}
		if err := c.addGlobal("title", "y"); err == nil {
			t.Error("no error for a duplicate global attribute")
		}
	})
}

func TestAddMetaOrderAndOverride(t *testing.T) {
	v := &ncVar{name: "v"}
	if err := v.addAttr("units", "m"); err != nil {
		t.Fatal(err)
	}
	err := v.addMeta(Attributes{"units": "ft", "b_attr": 1, "a_attr": "x"})
	if err != nil {
		t.Fatal(err)
	}
	// User metadata must not override the structural units attribute,
	// and the remaining attributes come in sorted order.
	wantNames := []string{"units", "a_attr", "b_attr"}
	var gotNames []string
	for _, a := range v.attrs {
		gotNames = append(gotNames, a.name)
	}
	if !reflect.DeepEqual(gotNames, wantNames) {
		t.Errorf("attributes %v (they should equal %v)", gotNames, wantNames)
	}
	if got := v.getAttr("units"); got != "m" {
		t.Errorf("units=%v (it should equal m)", got)
	}
}

// TestContainerRoundTrip writes a file holding every variable type this
// package uses, including a scalar and a character matrix, and checks
// that reading it back reproduces the container exactly.
func TestContainerRoundTrip(t *testing.T) {
	c := new(container)
	if err := c.addDim("station", 3); err != nil {
		t.Fatal(err)
	}
	if err := c.addDim("strlen", 2); err != nil {
		t.Fatal(err)
	}

	flag := &ncVar{name: "flag", data: []int32{7}}
	if err := flag.addAttr("long_name", "a scalar variable"); err != nil {
		t.Fatal(err)
	}
	if err := flag.addAttr("valid_range", []int32{0, 10}); err != nil {
		t.Fatal(err)
	}
	name := &ncVar{name: "name", dims: []string{"station", "strlen"}, char: true,
		data: padStrings([]string{"ab", "c", ""}, 2)}
	temp := &ncVar{name: "temp", dims: []string{"station"}, data: []float64{1.5, 2.5, 3.5}}
	if err := temp.addAttr("_FillValue", []float64{fillDouble}); err != nil {
		t.Fatal(err)
	}
	f32 := &ncVar{name: "f32", dims: []string{"station"}, data: []float32{1, 2, 3}}
	cnt := &ncVar{name: "cnt", dims: []string{"station"}, data: []int16{-1, 0, 1}}
	for _, v := range []*ncVar{flag, name, temp, f32, cnt} {
		if err := c.addVar(v); err != nil {
			t.Fatal(err)
		}
	}
	if err := c.addGlobal("title", "round trip"); err != nil {
		t.Fatal(err)
	}
	if err := c.addGlobal("version", 2); err != nil {
		t.Fatal(err)
	}

	const file = "test_container_roundtrip.nc"
	f, err := os.Create(file)
	if err != nil {
		t.Fatal(err)
	}
	defer os.Remove(file)
	if err := c.write(f); err != nil {
		t.Fatal(err)
	}
	f.Close()

	f2, err := os.Open(file)
	if err != nil {
		t.Fatal(err)
	}
	defer f2.Close()
	nc, err := cdf.Open(f2)
	if err != nil {
		t.Fatal(err)
	}
	c2, err := fileContainer(nc)
	if err != nil {
		t.Fatal(err)
	}

	if !reflect.DeepEqual(c2.dimNames, c.dimNames) {
		t.Errorf("dimensions %v (they should equal %v)", c2.dimNames, c.dimNames)
	}
	if !reflect.DeepEqual(c2.dimLengths, c.dimLengths) {
		t.Errorf("dimension lengths %v (they should equal %v)", c2.dimLengths, c.dimLengths)
	}
	if len(c2.vars) != len(c.vars) {
		t.Fatalf("%d variables (there should be %d)", len(c2.vars), len(c.vars))
	}
	for i, want := range c.vars {
		got := c2.vars[i]
		t.Run(want.name, func(t *testing.T) {
			if got.name != want.name {
				t.Fatalf("name=%s (it should equal %s)", got.name, want.name)
			}
			if strings.Join(got.dims, ",") != strings.Join(want.dims, ",") {
				t.Errorf("dims=%v (they should equal %v)", got.dims, want.dims)
			}
			if got.char != want.char {
				t.Errorf("char=%v (it should equal %v)", got.char, want.char)
			}
			if !reflect.DeepEqual(got.data, want.data) {
				t.Errorf("data=%v (it should equal %v)", got.data, want.data)
			}
			if !reflect.DeepEqual(got.attrs, want.attrs) {
				t.Errorf("attributes=%v (they should equal %v)", got.attrs, want.attrs)
			}
		})
	}
	if !reflect.DeepEqual(c2.global, c.global) {
		t.Errorf("global attributes=%v (they should equal %v)", c2.global, c.global)
	}
}
