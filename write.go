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
	"os"

	"github.com/ctessum/cdf"
	"github.com/ctessum/geom"
)

// WriteTimeSeries writes timeseries sets to w as a CF-1.8 discrete
// sampling geometry file. All sets must declare the same instances;
// orthogonal sets must also share one time axis and ragged sets one
// observation skeleton. Options may attach geometries, per-instance
// metadata columns, and global attributes. All validation happens
// before anything is written to w.
func WriteTimeSeries(w cdf.ReaderWriterAt, sets []*TimeSeriesSet, o *WriteOptions) error {
	c, err := planTimeSeries(sets, o)
	if err != nil {
		return err
	}
	return c.write(w)
}

// WriteTimeSeriesFile writes timeseries sets to a new file at path. No
// file is created when validation fails.
func WriteTimeSeriesFile(path string, sets []*TimeSeriesSet, o *WriteOptions) error {
	c, err := planTimeSeries(sets, o)
	if err != nil {
		return err
	}
	return writeFile(path, c)
}

// WriteGeometry writes a geometry collection to w as a CF-1.8
// geometry container file without timeseries. All geometries must be
// one kind: points, lines, or polygons, counting multi-part variants
// as their single-part kind. names optionally identifies each
// geometry; pass nil to store none.
func WriteGeometry(w cdf.ReaderWriterAt, geoms []geom.Geom, names []string, o *WriteOptions) error {
	c, err := planGeometryOnly(geoms, names, o)
	if err != nil {
		return err
	}
	return c.write(w)
}

// WriteGeometryFile writes a geometry collection to a new file at
// path. No file is created when validation fails.
func WriteGeometryFile(path string, geoms []geom.Geom, names []string, o *WriteOptions) error {
	c, err := planGeometryOnly(geoms, names, o)
	if err != nil {
		return err
	}
	return writeFile(path, c)
}

func writeFile(path string, c *container) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("ncdfgeom: creating %s: %w", path, err)
	}
	if err := c.write(f); err != nil {
		f.Close()
		return err
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("ncdfgeom: closing %s: %w", path, err)
	}
	return nil
}
