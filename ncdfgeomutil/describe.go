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
	"io"
	"math"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/ctessum/cdf"
	"gonum.org/v1/gonum/floats"
)

// Describe writes a summary of the netCDF file at path to w: its
// dimensions, its variables with their attributes and value ranges, and
// its global attributes. When varNames is not empty, only the listed
// variables are summarized.
func Describe(path string, varNames []string, w io.Writer) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("ncdfgeom: opening NetCDF file: %v", err)
	}
	defer f.Close()
	nc, err := cdf.Open(f)
	if err != nil {
		return fmt.Errorf("ncdfgeom: reading NetCDF file %s: %v", path, err)
	}

	fmt.Fprintf(w, "netcdf %s {\n", strings.TrimSuffix(filepath.Base(path), filepath.Ext(path)))

	fmt.Fprintln(w, "dimensions:")
	for i, d := range nc.Header.Dimensions("") {
		fmt.Fprintf(w, "\t%s = %d\n", d, nc.Header.Lengths("")[i])
	}

	fmt.Fprintln(w, "variables:")
	for _, name := range nc.Header.Variables() {
		if !wantVar(name, varNames) {
			continue
		}
		if err := describeVar(nc, name, w); err != nil {
			return err
		}
	}

	if globals := nc.Header.Attributes(""); len(globals) > 0 {
		fmt.Fprintln(w, "global attributes:")
		for _, a := range globals {
			fmt.Fprintf(w, "\t:%s = %s\n", a, formatAttr(nc.Header.GetAttribute("", a)))
		}
	}
	fmt.Fprintln(w, "}")
	return nil
}

// wantVar reports whether the named variable should be summarized.
func wantVar(name string, varNames []string) bool {
	if len(varNames) == 0 {
		return true
	}
	for _, v := range varNames {
		if v == name {
			return true
		}
	}
	return false
}

// describeVar writes one variable's type, shape, attributes, and, for
// numeric variables, the range and mean of its values.
func describeVar(nc *cdf.File, name string, w io.Writer) error {
	dims := nc.Header.Dimensions(name)
	lengths := nc.Header.Lengths(name)
	shape := make([]string, len(dims))
	for i, d := range dims {
		shape[i] = fmt.Sprintf("%s=%d", d, lengths[i])
	}
	fmt.Fprintf(w, "\t%s %s(%s)\n", typeName(nc, name), name, strings.Join(shape, ", "))
	for _, a := range nc.Header.Attributes(name) {
		fmt.Fprintf(w, "\t\t%s:%s = %s\n", name, a, formatAttr(nc.Header.GetAttribute(name, a)))
	}

	vals, err := varFloats(nc, name)
	if err != nil {
		return err
	}
	if len(vals) == 0 {
		return nil
	}
	mean := floats.Sum(vals) / float64(len(vals))
	fmt.Fprintf(w, "\t\trange = [%g, %g], mean = %g (%d values)\n",
		floats.Min(vals), floats.Max(vals), mean, len(vals))
	return nil
}

// typeName returns the netCDF type name of a variable.
func typeName(nc *cdf.File, name string) string {
	switch nc.Header.ZeroValue(name, 0).(type) {
	case string:
		return "char"
	case []uint8:
		return "byte"
	case []int16:
		return "short"
	case []int32:
		return "int"
	case []float32:
		return "float"
	case []float64:
		return "double"
	default:
		return "unknown"
	}
}

// varFloats reads a numeric variable's values as float64s, dropping
// NaNs and values matching the _FillValue or missing_value attributes.
// It returns nil for character variables.
func varFloats(nc *cdf.File, name string) ([]float64, error) {
	if _, isChar := nc.Header.ZeroValue(name, 0).(string); isChar {
		return nil, nil
	}
	r := nc.Reader(name, nil, nil)
	buf := r.Zero(-1)
	if _, err := r.Read(buf); err != nil && err != io.EOF {
		return nil, fmt.Errorf("ncdfgeom: reading variable %s: %v", name, err)
	}
	var vals []float64
	switch data := buf.(type) {
	case []uint8:
		vals = make([]float64, len(data))
		for i, v := range data {
			vals[i] = float64(v)
		}
	case []int16:
		vals = make([]float64, len(data))
		for i, v := range data {
			vals[i] = float64(v)
		}
	case []int32:
		vals = make([]float64, len(data))
		for i, v := range data {
			vals[i] = float64(v)
		}
	case []float32:
		vals = make([]float64, len(data))
		for i, v := range data {
			vals[i] = float64(v)
		}
	case []float64:
		vals = data
	default:
		return nil, nil
	}
	fills := fillValues(nc, name)
	valid := vals[:0]
	for _, v := range vals {
		if math.IsNaN(v) || fills[v] {
			continue
		}
		valid = append(valid, v)
	}
	return valid, nil
}

// fillValues returns the values declared by the _FillValue and
// missing_value attributes of a variable.
func fillValues(nc *cdf.File, name string) map[float64]bool {
	fills := make(map[float64]bool)
	for _, a := range []string{"_FillValue", "missing_value"} {
		switch v := nc.Header.GetAttribute(name, a).(type) {
		case []int16:
			for _, f := range v {
				fills[float64(f)] = true
			}
		case []int32:
			for _, f := range v {
				fills[float64(f)] = true
			}
		case []float32:
			for _, f := range v {
				fills[float64(f)] = true
			}
		case []float64:
			for _, f := range v {
				fills[f] = true
			}
		}
	}
	return fills
}

// formatAttr renders an attribute value the way ncdump does: strings
// quoted and numeric slices comma-separated.
func formatAttr(val interface{}) string {
	switch v := val.(type) {
	case string:
		return strconv.Quote(v)
	case []int16:
		parts := make([]string, len(v))
		for i, x := range v {
			parts[i] = strconv.FormatInt(int64(x), 10)
		}
		return strings.Join(parts, ", ")
	case []int32:
		parts := make([]string, len(v))
		for i, x := range v {
			parts[i] = strconv.FormatInt(int64(x), 10)
		}
		return strings.Join(parts, ", ")
	case []float32:
		parts := make([]string, len(v))
		for i, x := range v {
			parts[i] = strconv.FormatFloat(float64(x), 'g', -1, 32)
		}
		return strings.Join(parts, ", ")
	case []float64:
		parts := make([]string, len(v))
		for i, x := range v {
			parts[i] = strconv.FormatFloat(x, 'g', -1, 64)
		}
		return strings.Join(parts, ", ")
	default:
		return fmt.Sprintf("%v", val)
	}
}
