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

	"github.com/ctessum/geom"
)

// buildGeoms reconstructs a geometry collection from the flat arrays
// of a geometry container. nodeCount, partCount, and interior may be
// nil when the corresponding variable is absent from the file.
func buildGeoms(kind string, x, y []float64, nodeCount, partCount, interior []int32) ([]geom.Geom, error) {
	if len(x) != len(y) {
		return nil, GeometryIndexError{Reason: fmt.Sprintf(
			"node coordinate arrays have different lengths %d and %d", len(x), len(y))}
	}
	switch kind {
	case kindPoint:
		return buildPoints(x, y, nodeCount, partCount, interior)
	case kindLine, kindPolygon:
	default:
		return nil, fmt.Errorf("ncdfgeom: unsupported geometry type %q", kind)
	}

	if nodeCount == nil {
		return nil, GeometryIndexError{Reason: kind + " container has no node count variable"}
	}
	if err := checkCounts(nodeCount, len(x), "node counts", "nodes"); err != nil {
		return nil, err
	}
	if partCount == nil {
		if interior != nil {
			return nil, GeometryIndexError{Reason: "interior ring variable without part node counts"}
		}
		return buildSingleParts(kind, x, y, nodeCount)
	}
	if err := checkCounts(partCount, len(x), "part node counts", "nodes"); err != nil {
		return nil, err
	}
	if interior != nil && len(interior) != len(partCount) {
		return nil, GeometryIndexError{Reason: fmt.Sprintf(
			"interior ring variable has %d entries for %d parts", len(interior), len(partCount))}
	}
	return buildMultiParts(kind, x, y, nodeCount, partCount, interior)
}

// checkCounts verifies that counts are non-negative and sum to total.
func checkCounts(counts []int32, total int, what, of string) error {
	sum := 0
	for i, n := range counts {
		if n < 0 {
			return GeometryIndexError{Reason: fmt.Sprintf("%s entry %d is negative", what, i)}
		}
		sum += int(n)
	}
	if sum != total {
		return GeometryIndexError{Reason: fmt.Sprintf(
			"%s sum to %d but there are %d %s", what, sum, total, of)}
	}
	return nil
}

// buildPoints handles the point kind: without node counts every node
// is one Point; with them, counted groups become Points or
// MultiPoints.
func buildPoints(x, y []float64, nodeCount, partCount, interior []int32) ([]geom.Geom, error) {
	if partCount != nil || interior != nil {
		return nil, InvalidGeometryEncodingError{Geometry: 0,
			Reason: "a point container cannot have part node counts or interior rings"}
	}
	if nodeCount == nil {
		geoms := make([]geom.Geom, len(x))
		for i := range x {
			geoms[i] = geom.Point{X: x[i], Y: y[i]}
		}
		return geoms, nil
	}
	if err := checkCounts(nodeCount, len(x), "node counts", "nodes"); err != nil {
		return nil, err
	}
	geoms := make([]geom.Geom, len(nodeCount))
	k := 0
	for i, n := range nodeCount {
		switch {
		case n == 0:
			return nil, InvalidGeometryEncodingError{Geometry: i, Reason: "geometry has no nodes"}
		case n == 1:
			geoms[i] = geom.Point{X: x[k], Y: y[k]}
		default:
			mp := make(geom.MultiPoint, n)
			for j := range mp {
				mp[j] = geom.Point{X: x[k+j], Y: y[k+j]}
			}
			geoms[i] = mp
		}
		k += int(n)
	}
	return geoms, nil
}

// buildSingleParts handles lines and polygons stored without part node
// counts: each geometry is one line or one single-ring polygon.
func buildSingleParts(kind string, x, y []float64, nodeCount []int32) ([]geom.Geom, error) {
	geoms := make([]geom.Geom, len(nodeCount))
	k := 0
	for i, n := range nodeCount {
		if n == 0 {
			return nil, InvalidGeometryEncodingError{Geometry: i, Reason: "geometry has no nodes"}
		}
		nodes := nodeSlice(x, y, k, int(n))
		if kind == kindLine {
			geoms[i] = geom.LineString(nodes)
		} else {
			geoms[i] = geom.Polygon{nodes}
		}
		k += int(n)
	}
	return geoms, nil
}

// buildMultiParts handles lines and polygons stored with part node
// counts. Parts are assigned to geometries in order, each geometry
// consuming parts until its node count is exactly used up. For
// polygons a zero interior flag starts a new polygon part and a set
// flag adds the ring to the current part.
func buildMultiParts(kind string, x, y []float64, nodeCount, partCount, interior []int32) ([]geom.Geom, error) {
	geoms := make([]geom.Geom, len(nodeCount))
	k, p := 0, 0
	for i, n := range nodeCount {
		if n == 0 {
			return nil, InvalidGeometryEncodingError{Geometry: i, Reason: "geometry has no nodes"}
		}
		var lines geom.MultiLineString
		var polys geom.MultiPolygon
		remaining := int(n)
		for remaining > 0 {
			if p >= len(partCount) {
				return nil, GeometryIndexError{Reason: fmt.Sprintf(
					"geometry %d needs more parts than the part node counts provide", i)}
			}
			pn := int(partCount[p])
			if pn == 0 {
				return nil, InvalidGeometryEncodingError{Geometry: i, Reason: "part has no nodes"}
			}
			if pn > remaining {
				return nil, GeometryIndexError{Reason: fmt.Sprintf(
					"part %d crosses the boundary of geometry %d", p, i)}
			}
			inner := interior != nil && interior[p] != 0
			nodes := nodeSlice(x, y, k, pn)
			if kind == kindLine {
				if inner {
					return nil, InvalidGeometryEncodingError{Geometry: i,
						Reason: "a line container cannot have interior rings"}
				}
				lines = append(lines, geom.LineString(nodes))
			} else {
				if inner {
					if len(polys) == 0 {
						return nil, InvalidGeometryEncodingError{Geometry: i,
							Reason: "interior ring before any exterior ring"}
					}
					polys[len(polys)-1] = append(polys[len(polys)-1], nodes)
				} else {
					polys = append(polys, geom.Polygon{nodes})
				}
			}
			k += pn
			remaining -= pn
			p++
		}
		if kind == kindLine {
			if len(lines) == 1 {
				geoms[i] = lines[0]
			} else {
				geoms[i] = lines
			}
		} else {
			if len(polys) == 1 {
				geoms[i] = polys[0]
			} else {
				geoms[i] = polys
			}
		}
	}
	if p != len(partCount) {
		return nil, GeometryIndexError{Reason: fmt.Sprintf(
			"%d part node counts were not consumed by any geometry", len(partCount)-p)}
	}
	return geoms, nil
}

// nodeSlice copies n nodes starting at k into a point sequence.
func nodeSlice(x, y []float64, k, n int) []geom.Point {
	nodes := make([]geom.Point, n)
	for j := range nodes {
		nodes[j] = geom.Point{X: x[k+j], Y: y[k+j]}
	}
	return nodes
}
