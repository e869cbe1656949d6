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
	"sort"
)

// Attributes holds netCDF attributes for a variable or for a whole
// file. Values must be strings, numbers, or slices of numbers; they are
// converted to the types the netCDF classic format can store (string,
// []int16, []int32, []float32, and []float64) when written.
type Attributes map[string]interface{}

// names returns the attribute names in sorted order so that output
// files do not depend on map iteration order.
func (a Attributes) names() []string {
	keys := make([]string, 0, len(a))
	for k := range a {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// normalizeAttr converts v to a type that the netCDF classic format
// can store as an attribute value.
func normalizeAttr(name string, v interface{}) (interface{}, error) {
	switch v := v.(type) {
	case string:
		return v, nil
	case []uint8, []int16, []int32, []float32, []float64:
		return v, nil
	case int16:
		return []int16{v}, nil
	case int32:
		return []int32{v}, nil
	case int:
		if v > math.MaxInt32 || v < math.MinInt32 {
			return nil, fmt.Errorf("ncdfgeom: attribute %s: value %d overflows the netCDF int type", name, v)
		}
		return []int32{int32(v)}, nil
	case int64:
		if v > math.MaxInt32 || v < math.MinInt32 {
			return nil, fmt.Errorf("ncdfgeom: attribute %s: value %d overflows the netCDF int type", name, v)
		}
		return []int32{int32(v)}, nil
	case float32:
		return []float32{v}, nil
	case float64:
		return []float64{v}, nil
	case []int:
		o := make([]int32, len(v))
		for i, vv := range v {
			if vv > math.MaxInt32 || vv < math.MinInt32 {
				return nil, fmt.Errorf("ncdfgeom: attribute %s: value %d overflows the netCDF int type", name, vv)
			}
			o[i] = int32(vv)
		}
		return o, nil
	default:
		return nil, fmt.Errorf("ncdfgeom: attribute %s has unsupported type %T", name, v)
	}
}

// An AttributeColumn is a per-instance column of metadata, such as a
// station operator or a drainage area, that is stored alongside the
// instance coordinates. Values must be a []string, []float64,
// []float32, []int32, or []int16 with one element per instance.
type AttributeColumn struct {
	Name   string
	Values interface{}

	// Meta holds netCDF attributes (for example units or long_name)
	// to attach to the column's variable.
	Meta Attributes
}

// len returns the number of elements in the column, or -1 if the
// column holds an unsupported type.
func (c *AttributeColumn) len() int {
	switch v := c.Values.(type) {
	case []string:
		return len(v)
	case []float64:
		return len(v)
	case []float32:
		return len(v)
	case []int32:
		return len(v)
	case []int16:
		return len(v)
	default:
		return -1
	}
}

// padStrings flattens s into a NUL-padded byte matrix with rows of
// length width, the layout the netCDF classic format uses for
// character data.
func padStrings(s []string, width int) []uint8 {
	b := make([]uint8, len(s)*width)
	for i, ss := range s {
		copy(b[i*width:(i+1)*width], ss)
	}
	return b
}

// maxStringLen returns the length in bytes of the longest string in s,
// or 1 if all strings are empty, because a zero-length dimension would
// be treated as a record dimension.
func maxStringLen(s []string) int {
	n := 1
	for _, ss := range s {
		if len(ss) > n {
			n = len(ss)
		}
	}
	return n
}

// unpadStrings splits a NUL-padded byte matrix with rows of length
// width back into strings, dropping trailing NUL and space padding.
func unpadStrings(b []uint8, width int) []string {
	if width <= 0 {
		return nil
	}
	s := make([]string, len(b)/width)
	for i := range s {
		row := b[i*width : (i+1)*width]
		end := len(row)
		for end > 0 && (row[end-1] == 0 || row[end-1] == ' ') {
			end--
		}
		s[i] = string(row[:end])
	}
	return s
}
