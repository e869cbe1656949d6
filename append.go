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
	"io/ioutil"
	"math"
	"os"
	"path/filepath"

	"github.com/ctessum/cdf"
	"github.com/ctessum/geom"
	"github.com/ctessum/geom/proj"
)

// rewriteFile reads the file at path into a container, applies mutate,
// and writes the result to a temporary file that replaces the original.
// The netCDF header is immutable once written, so adding anything to a
// file means rewriting it; mutate runs before anything touches the
// disk, and a failure anywhere leaves the original file unchanged.
func rewriteFile(path string, mutate func(*container) error) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("ncdfgeom: opening %s: %w", path, err)
	}
	nc, err := cdf.Open(f)
	if err != nil {
		f.Close()
		return fmt.Errorf("ncdfgeom: opening netCDF file %s: %w", path, err)
	}
	c, err := fileContainer(nc)
	f.Close()
	if err != nil {
		return err
	}
	if err := mutate(c); err != nil {
		return err
	}
	tmp, err := ioutil.TempFile(filepath.Dir(path), ".ncdfgeom-*")
	if err != nil {
		return fmt.Errorf("ncdfgeom: creating temporary file: %w", err)
	}
	if err := c.write(tmp); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("ncdfgeom: closing temporary file: %w", err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("ncdfgeom: replacing %s: %w", path, err)
	}
	return nil
}

// AppendTimeSeriesFile adds timeseries data variables to an existing
// file. The new sets must cover the file's instances in the file's
// order and fit the file's layout exactly: the same time axis for an
// orthogonal file, or the same observation skeleton for a ragged one.
// The file's dimensions and existing variables carry over unchanged.
func AppendTimeSeriesFile(path string, sets []*TimeSeriesSet) error {
	if len(sets) == 0 {
		return fmt.Errorf("ncdfgeom: no timeseries sets to append")
	}
	return rewriteFile(path, func(c *container) error {
		return appendSets(c, sets)
	})
}

func appendSets(c *container, sets []*TimeSeriesSet) error {
	s, err := shapeOfContainer(c)
	if err != nil {
		return err
	}
	if len(s.instances) == 0 {
		return fmt.Errorf("ncdfgeom: file has no instance identifier variable to append to")
	}
	if s.timeName == "" {
		return fmt.Errorf("ncdfgeom: file has no time coordinate to append to")
	}
	layout := s.layout()
	for _, ts := range sets {
		l, err := ts.check()
		if err != nil {
			return err
		}
		if l != layout {
			return fmt.Errorf("ncdfgeom: set %s has the %v layout but the file is %v",
				ts.Name, l, layout)
		}
		if err := sameInstances(s.instances, s.alignInstances(ts.Instances)); err != nil {
			return err
		}
		var vals []float64
		var dims []string
		if layout == Orthogonal {
			vals, dims, err = appendOrthogonal(s, ts)
		} else {
			vals, dims, err = appendRagged(s, ts, layout)
		}
		if err != nil {
			return err
		}
		if err := addDataVar(c, ts, dims, vals); err != nil {
			return err
		}
	}
	stampHistory(c, "append timeSeries")
	return nil
}

// alignInstances returns a copy of in with the coordinates the file
// does not store cleared to NaN, so the instance comparison covers
// only what the file records.
func (s *fileShape) alignInstances(in []Instance) []Instance {
	out := make([]Instance, len(in))
	copy(out, in)
	for i := range out {
		if !s.hasLat {
			out[i].Lat = math.NaN()
		}
		if !s.hasLon {
			out[i].Lon = math.NaN()
		}
		if !s.hasAlt {
			out[i].Alt = math.NaN()
		}
	}
	return out
}

// appendOrthogonal checks the set against the file's time axis and
// returns its matrix values in file order.
func appendOrthogonal(s *fileShape, ts *TimeSeriesSet) ([]float64, []string, error) {
	if len(ts.Times) != len(s.times) {
		return nil, nil, ShapeMismatchError{Field: "time axis for set " + ts.Name,
			Got: len(ts.Times), Want: len(s.times)}
	}
	for i := range s.times {
		if !ts.Times[i].Equal(s.times[i]) {
			return nil, nil, fmt.Errorf("ncdfgeom: set %s and the file have different time axes", ts.Name)
		}
	}
	return ts.Values.Elements, []string{s.timeDim, s.instDim}, nil
}

// appendRagged checks the set against the file's observation skeleton
// (row sizes or instance indices, and observation times) and returns
// its values in file order.
func appendRagged(s *fileShape, ts *TimeSeriesSet, layout Layout) ([]float64, []string, error) {
	rows := raggedRows(ts, layout)
	if len(rows) != len(s.times) {
		return nil, nil, ShapeMismatchError{Field: "observations for set " + ts.Name,
			Got: len(rows), Want: len(s.times)}
	}
	idx := instanceIndex(ts.Instances)
	if layout == ContiguousRagged {
		if len(s.rowSize) != len(ts.Instances) {
			return nil, nil, RaggedIndexError{Reason: fmt.Sprintf(
				"row size variable has %d entries for %d instances",
				len(s.rowSize), len(ts.Instances))}
		}
		counts := make([]int32, len(ts.Instances))
		for _, r := range rows {
			counts[idx[r.Instance]]++
		}
		for i, n := range counts {
			if n != s.rowSize[i] {
				return nil, nil, RaggedIndexError{Reason: fmt.Sprintf(
					"set %s has %d observations for instance %q; the file stores %d",
					ts.Name, n, ts.Instances[i].Name, s.rowSize[i])}
			}
		}
	} else {
		for i, r := range rows {
			if int32(idx[r.Instance]) != s.index[i] {
				return nil, nil, RaggedIndexError{Reason: fmt.Sprintf(
					"set %s observation %d belongs to instance %q (index %d); the file stores index %d",
					ts.Name, i, r.Instance, idx[r.Instance], s.index[i])}
			}
		}
	}
	vals := make([]float64, len(rows))
	for i, r := range rows {
		if !r.Time.Equal(s.times[i]) {
			return nil, nil, fmt.Errorf("ncdfgeom: set %s observation %d is at %v; the file stores %v",
				ts.Name, i, r.Time, s.times[i])
		}
		vals[i] = r.Value
	}
	return vals, []string{s.timeDim}, nil
}

// AppendGeometryFile adds a geometry container to an existing
// timeseries file, with one geometry per instance in the file's
// instance order. proj4 gives the geometries' coordinate reference
// system; pass "" for WGS84 longitude-latitude, or to keep a
// coordinate system the file already has. dataVars names the data
// variables to link to the container; when none are given, every
// variable with a coordinates attribute is linked.
func AppendGeometryFile(path string, geoms []geom.Geom, proj4 string, dataVars ...string) error {
	return rewriteFile(path, func(c *container) error {
		if n := containerVarName(c); n != "" {
			return fmt.Errorf("ncdfgeom: file already has a geometry container %s", n)
		}
		s, err := shapeOfContainer(c)
		if err != nil {
			return err
		}
		if s.instDim == "" {
			return fmt.Errorf("ncdfgeom: file has no instance identifier variable to attach geometry to")
		}
		n, _ := c.dimLength(s.instDim)
		if len(geoms) != n {
			return ShapeMismatchError{Field: "geometry list", Got: len(geoms), Want: n}
		}
		sr, err := appendCRS(c, proj4)
		if err != nil {
			return err
		}
		if err := addGeometryVars(c, geoms, sr, s.instDim); err != nil {
			return err
		}
		if err := linkGeometry(c, containerVarName(c), dataVars); err != nil {
			return err
		}
		stampHistory(c, "append geometry")
		return nil
	})
}

// appendCRS returns the coordinate system for geometry added to an
// existing file, adding a coordinate system variable when the file has
// none. A file that already has one keeps it, and p4 must then be
// empty or describe the same system.
func appendCRS(c *container, p4 string) (*proj.SR, error) {
	name := crsVarName(c)
	if name == "" {
		if p4 == "" {
			p4 = defaultProj4
		}
		return addCRSVarFromProj4(c, p4)
	}
	existing := proj4FromCRS(attrsMap(c.findVar(name).attrs))
	if p4 != "" && existing != "" && p4 != existing {
		return nil, fmt.Errorf("ncdfgeom: file coordinate system %q does not match %q", existing, p4)
	}
	if existing == "" {
		existing = p4
	}
	if existing == "" {
		return nil, nil
	}
	sr, err := proj.Parse(existing)
	if err != nil {
		return nil, fmt.Errorf("ncdfgeom: parsing file coordinate system: %w", err)
	}
	return sr, nil
}

// linkGeometry adds the geometry reference to data variables. An empty
// list links every variable that carries a coordinates attribute.
func linkGeometry(c *container, containerName string, dataVars []string) error {
	if len(dataVars) == 0 {
		for _, v := range c.vars {
			if v.hasAttr("coordinates") && !v.hasAttr("geometry") {
				if err := v.addAttr("geometry", containerName); err != nil {
					return err
				}
			}
		}
		return nil
	}
	for _, name := range dataVars {
		v := c.findVar(name)
		if v == nil {
			return fmt.Errorf("ncdfgeom: file has no variable %s to link to the geometry", name)
		}
		if v.hasAttr("geometry") {
			continue
		}
		if err := v.addAttr("geometry", containerName); err != nil {
			return err
		}
	}
	return nil
}

// AppendColumnsFile adds per-instance metadata columns to an existing
// file. Each column must have one value per instance.
func AppendColumnsFile(path string, cols []AttributeColumn) error {
	if len(cols) == 0 {
		return fmt.Errorf("ncdfgeom: no metadata columns to append")
	}
	return rewriteFile(path, func(c *container) error {
		s, err := shapeOfContainer(c)
		if err != nil {
			return err
		}
		if s.instDim == "" {
			return fmt.Errorf("ncdfgeom: file has no instance dimension to attach metadata columns to")
		}
		n, _ := c.dimLength(s.instDim)
		if err := addColumns(c, cols, s.instDim, n); err != nil {
			return err
		}
		stampHistory(c, "append attribute data")
		return nil
	})
}
