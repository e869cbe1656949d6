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
	"github.com/ctessum/geom/proj"
)

// Geometry kinds as stored in the geometry_type attribute. A container
// holds one kind; the multi-part variants share their single-part
// form's kind.
const (
	kindPoint   = "point"
	kindLine    = "line"
	kindPolygon = "polygon"
)

// geomKind classifies a geometry, returning an error for types that
// cannot be stored in a geometry container.
func geomKind(g geom.Geom) (string, error) {
	switch g.(type) {
	case geom.Point, geom.MultiPoint:
		return kindPoint, nil
	case geom.LineString, geom.MultiLineString:
		return kindLine, nil
	case geom.Polygon, geom.MultiPolygon:
		return kindPolygon, nil
	default:
		return "", fmt.Errorf("ncdfgeom: unsupported geometry type %T", g)
	}
}

// geomArrays holds a geometry collection flattened into the arrays a
// geometry container stores: node coordinates in geometry-major,
// part-major, ring-major order, and the counts that delimit them.
type geomArrays struct {
	kind string
	x, y []float64

	// nodeCount has one entry per geometry. partCount and interior
	// have one entry per part: per line of a multi-line, per ring of a
	// polygon.
	nodeCount []int32
	partCount []int32
	interior  []int32

	// needNode, needPart, and needRing tell which count variables the
	// file needs: single points need none, single-part lines and
	// polygons need node counts only, and holes or multi-part
	// geometries need part counts (with ring flags for holes).
	needNode bool
	needPart bool
	needRing bool
}

// flattenGeoms flattens a geometry collection, checking that all
// geometries are one kind and none are empty.
func flattenGeoms(geoms []geom.Geom) (*geomArrays, error) {
	if len(geoms) == 0 {
		return nil, ShapeMismatchError{Field: "geometry list", Got: 0, Want: 1}
	}
	a := new(geomArrays)
	for i, g := range geoms {
		k, err := geomKind(g)
		if err != nil {
			return nil, err
		}
		if i == 0 {
			a.kind = k
		} else if k != a.kind {
			return nil, MixedGeometryKindError{First: a.kind, Kind: k, Index: i}
		}
	}
	switch a.kind {
	case kindPoint:
		return a, a.flattenPoints(geoms)
	case kindLine:
		a.needNode = true
		return a, a.flattenLines(geoms)
	default:
		a.needNode = true
		return a, a.flattenPolygons(geoms)
	}
}

func (a *geomArrays) addNode(p geom.Point) {
	a.x = append(a.x, p.X)
	a.y = append(a.y, p.Y)
}

func (a *geomArrays) flattenPoints(geoms []geom.Geom) error {
	for i, g := range geoms {
		switch g := g.(type) {
		case geom.Point:
			a.addNode(g)
			a.nodeCount = append(a.nodeCount, 1)
		case geom.MultiPoint:
			if len(g) == 0 {
				return ShapeMismatchError{Field: fmt.Sprintf("nodes in geometry %d", i), Got: 0, Want: 1}
			}
			for _, p := range g {
				a.addNode(p)
			}
			a.nodeCount = append(a.nodeCount, int32(len(g)))
			a.needNode = true
		}
	}
	return nil
}

func (a *geomArrays) flattenLines(geoms []geom.Geom) error {
	addLine := func(l geom.LineString) {
		for _, p := range l {
			a.addNode(p)
		}
		a.partCount = append(a.partCount, int32(len(l)))
		a.interior = append(a.interior, 0)
	}
	for i, g := range geoms {
		switch g := g.(type) {
		case geom.LineString:
			if len(g) == 0 {
				return ShapeMismatchError{Field: fmt.Sprintf("nodes in geometry %d", i), Got: 0, Want: 1}
			}
			addLine(g)
			a.nodeCount = append(a.nodeCount, int32(len(g)))
		case geom.MultiLineString:
			if len(g) == 0 {
				return ShapeMismatchError{Field: fmt.Sprintf("parts in geometry %d", i), Got: 0, Want: 1}
			}
			n := 0
			for _, l := range g {
				if len(l) == 0 {
					return ShapeMismatchError{Field: fmt.Sprintf("nodes in a part of geometry %d", i), Got: 0, Want: 1}
				}
				addLine(l)
				n += len(l)
			}
			a.nodeCount = append(a.nodeCount, int32(n))
			if len(g) > 1 {
				a.needPart = true
			}
		}
	}
	return nil
}

func (a *geomArrays) flattenPolygons(geoms []geom.Geom) error {
	// addPoly appends one polygon: its first ring is the exterior and
	// any further rings are holes. Rings are stored exactly as given;
	// closure and winding order are not altered.
	addPoly := func(i int, pg geom.Polygon) (int, error) {
		if len(pg) == 0 {
			return 0, ShapeMismatchError{Field: fmt.Sprintf("rings in geometry %d", i), Got: 0, Want: 1}
		}
		n := 0
		for ri, ring := range pg {
			if len(ring) == 0 {
				return 0, ShapeMismatchError{Field: fmt.Sprintf("nodes in a ring of geometry %d", i), Got: 0, Want: 1}
			}
			for _, p := range ring {
				a.addNode(p)
			}
			a.partCount = append(a.partCount, int32(len(ring)))
			if ri == 0 {
				a.interior = append(a.interior, 0)
			} else {
				a.interior = append(a.interior, 1)
				a.needRing = true
			}
			n += len(ring)
		}
		return n, nil
	}
	for i, g := range geoms {
		switch g := g.(type) {
		case geom.Polygon:
			n, err := addPoly(i, g)
			if err != nil {
				return err
			}
			a.nodeCount = append(a.nodeCount, int32(n))
			if len(g) > 1 {
				a.needPart = true
			}
		case geom.MultiPolygon:
			if len(g) == 0 {
				return ShapeMismatchError{Field: fmt.Sprintf("parts in geometry %d", i), Got: 0, Want: 1}
			}
			n, rings := 0, 0
			for _, pg := range g {
				nn, err := addPoly(i, pg)
				if err != nil {
					return err
				}
				n += nn
				rings += len(pg)
			}
			a.nodeCount = append(a.nodeCount, int32(n))
			if rings > 1 {
				a.needPart = true
			}
		}
	}
	if a.needRing {
		a.needPart = true
	}
	return nil
}

// addGeometryVars flattens geoms and adds the geometry container, the
// node coordinate variables, and whichever count variables the
// collection needs. The geometry count must already equal the length
// of the instance dimension instDim.
func addGeometryVars(c *container, geoms []geom.Geom, sr *proj.SR, instDim string) error {
	a, err := flattenGeoms(geoms)
	if err != nil {
		return err
	}
	if n, ok := c.dimLength(instDim); !ok || n != len(a.nodeCount) {
		return ShapeMismatchError{Field: "geometry list", Got: len(a.nodeCount), Want: n}
	}

	cv := &ncVar{name: containerVar, dims: nil, data: []int32{0}}
	if err := cv.addAttr("geometry_type", a.kind); err != nil {
		return err
	}
	if err := cv.addAttr("node_coordinates", nodeXVar+" "+nodeYVar); err != nil {
		return err
	}
	if a.needNode {
		if err := cv.addAttr("node_count", nodeCountVar); err != nil {
			return err
		}
	}
	if a.needPart {
		if err := cv.addAttr("part_node_count", partCountVar); err != nil {
			return err
		}
	}
	if a.needRing {
		if err := cv.addAttr("interior_ring", interiorVar); err != nil {
			return err
		}
	}
	if n := crsVarName(c); n != "" {
		if err := cv.addAttr("grid_mapping", n); err != nil {
			return err
		}
	}
	if err := c.addVar(cv); err != nil {
		return err
	}

	// A collection of single points stores its nodes directly on the
	// instance dimension; everything else gets a node dimension.
	nodeDims := []string{instDim}
	if a.needNode {
		if err := c.addDim(nodeDim, len(a.x)); err != nil {
			return err
		}
		nodeDims = []string{nodeDim}
	}
	xAttrs, yAttrs := nodeCoordAttrs(sr)
	xv := &ncVar{name: nodeXVar, dims: nodeDims, data: a.x}
	for _, at := range xAttrs {
		if err := xv.addAttr(at.name, at.val); err != nil {
			return err
		}
	}
	if err := c.addVar(xv); err != nil {
		return err
	}
	yv := &ncVar{name: nodeYVar, dims: nodeDims, data: a.y}
	for _, at := range yAttrs {
		if err := yv.addAttr(at.name, at.val); err != nil {
			return err
		}
	}
	if err := c.addVar(yv); err != nil {
		return err
	}

	if a.needNode {
		nv := &ncVar{name: nodeCountVar, dims: []string{instDim}, data: a.nodeCount}
		if err := nv.addAttr("long_name", "number of nodes in this geometry"); err != nil {
			return err
		}
		if err := c.addVar(nv); err != nil {
			return err
		}
	}
	if a.needPart {
		if err := c.addDim(partDim, len(a.partCount)); err != nil {
			return err
		}
		pv := &ncVar{name: partCountVar, dims: []string{partDim}, data: a.partCount}
		if err := pv.addAttr("long_name", "number of nodes in this part or ring"); err != nil {
			return err
		}
		if err := c.addVar(pv); err != nil {
			return err
		}
	}
	if a.needRing {
		iv := &ncVar{name: interiorVar, dims: []string{partDim}, data: a.interior}
		if err := iv.addAttr("long_name", "whether this ring is an interior (hole) ring"); err != nil {
			return err
		}
		if err := c.addVar(iv); err != nil {
			return err
		}
	}
	return nil
}

// nodeCoordAttrs returns the attributes for the node coordinate
// variables: geographic names and units for longitude-latitude
// systems, projected names and the system's length unit otherwise.
func nodeCoordAttrs(sr *proj.SR) (x, y []attr) {
	if sr == nil || sr.Name == "longlat" {
		x = []attr{{"units", "degrees_east"}, {"standard_name", "longitude"}, {"axis", "X"}}
		y = []attr{{"units", "degrees_north"}, {"standard_name", "latitude"}, {"axis", "Y"}}
		return x, y
	}
	units := sr.Units
	if units == "" {
		units = "m"
	}
	x = []attr{{"units", units}, {"standard_name", "projection_x_coordinate"}, {"axis", "X"}}
	y = []attr{{"units", units}, {"standard_name", "projection_y_coordinate"}, {"axis", "Y"}}
	return x, y
}
