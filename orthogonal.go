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

	"github.com/ctessum/sparse"
)

// planOrthogonal adds the shared time axis and one [time, instance]
// matrix per set. Every set must declare the identical time axis.
func planOrthogonal(c *container, sets []*TimeSeriesSet, o *WriteOptions) error {
	times := sets[0].Times
	for _, ts := range sets[1:] {
		if len(ts.Times) != len(times) {
			return ShapeMismatchError{Field: "time axis for set " + ts.Name,
				Got: len(ts.Times), Want: len(times)}
		}
		for i := range times {
			if !ts.Times[i].Equal(times[i]) {
				return fmt.Errorf("ncdfgeom: sets %s and %s have different time axes; "+
					"orthogonal sets sharing a file must share one time axis",
					sets[0].Name, ts.Name)
			}
		}
	}
	tvals, err := encodeTimes(times, o.timeUnits())
	if err != nil {
		return err
	}
	if err := c.addDim(timeDim, len(times)); err != nil {
		return err
	}
	if err := addTimeVar(c, timeDim, tvals, o.timeUnits()); err != nil {
		return err
	}
	for _, ts := range sets {
		if err := addDataVar(c, ts, []string{timeDim, instanceDim}, ts.Values.Elements); err != nil {
			return err
		}
	}
	return nil
}

// orthogonalValues shapes flat file data into a [time, instance]
// matrix. timeFirst tells whether the variable was stored with the
// time dimension outermost; if not, the data is transposed.
func orthogonalValues(vals []float64, nt, ni int, timeFirst bool) (*sparse.DenseArray, error) {
	if len(vals) != nt*ni {
		return nil, fmt.Errorf("ncdfgeom: matrix variable has %d values for %d times and %d instances",
			len(vals), nt, ni)
	}
	d := sparse.ZerosDense(nt, ni)
	if timeFirst {
		copy(d.Elements, vals)
		return d, nil
	}
	for i := 0; i < ni; i++ {
		for t := 0; t < nt; t++ {
			d.Set(vals[i*nt+t], t, i)
		}
	}
	return d, nil
}
