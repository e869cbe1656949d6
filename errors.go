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

import "fmt"

// ShapeMismatchError is returned when the dimensions of input data
// disagree with the declared instance, time, or observation counts.
type ShapeMismatchError struct {
	// Field is the name of the offending input, for example
	// "latitude" or "data values".
	Field string
	// Got and Want are the offending and expected counts.
	Got, Want int
}

func (e ShapeMismatchError) Error() string {
	return fmt.Sprintf("ncdfgeom: %s length %d does not match expected length %d",
		e.Field, e.Got, e.Want)
}

// MixedGeometryKindError is returned when the geometries in a single
// collection are not all points, all lines, or all polygons.
// Multi-part variants count as the same kind as their single-part form.
type MixedGeometryKindError struct {
	// First is the kind established by the first geometry, and
	// Kind is the incompatible kind encountered at index Index.
	First, Kind string
	Index       int
}

func (e MixedGeometryKindError) Error() string {
	return fmt.Sprintf("ncdfgeom: geometry %d is a %s but the collection holds %ss; "+
		"a geometry container may only hold one kind", e.Index, e.Kind, e.First)
}

// RaggedIndexError is returned when the bookkeeping arrays of a ragged
// timeseries layout do not describe the observation dimension: the row
// sizes of a contiguous layout do not sum to the number of observations,
// or an instance index of an indexed layout is out of range.
type RaggedIndexError struct {
	Reason string
}

func (e RaggedIndexError) Error() string {
	return "ncdfgeom: inconsistent ragged index: " + e.Reason
}

// GeometryIndexError is returned when the node, part, or ring counts of
// a geometry container do not agree with the lengths of the node
// coordinate arrays.
type GeometryIndexError struct {
	Reason string
}

func (e GeometryIndexError) Error() string {
	return "ncdfgeom: inconsistent geometry index: " + e.Reason
}

// InvalidGeometryEncodingError is returned when a geometry container is
// internally consistent but describes a structurally impossible
// geometry, such as an interior ring with no preceding exterior ring.
type InvalidGeometryEncodingError struct {
	// Geometry is the index of the offending geometry.
	Geometry int
	Reason   string
}

func (e InvalidGeometryEncodingError) Error() string {
	return fmt.Sprintf("ncdfgeom: invalid encoding for geometry %d: %s", e.Geometry, e.Reason)
}

// InstanceMismatchError is returned when data being added to an
// existing file does not declare the identical ordered instance list
// that the file already holds.
type InstanceMismatchError struct {
	Reason string
}

func (e InstanceMismatchError) Error() string {
	return "ncdfgeom: instance list does not match existing file: " + e.Reason
}
