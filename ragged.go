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
	"sort"
	"time"
)

// raggedRows returns a set's observations in the order they will be
// stored. The contiguous layout groups each instance's observations
// together, instances in declaration order and each instance's rows in
// time order; the indexed layout preserves the caller's row order.
func raggedRows(ts *TimeSeriesSet, layout Layout) []Observation {
	rows := make([]Observation, len(ts.Observations))
	copy(rows, ts.Observations)
	if layout != ContiguousRagged {
		return rows
	}
	idx := instanceIndex(ts.Instances)
	sort.SliceStable(rows, func(i, j int) bool {
		a, b := idx[rows[i].Instance], idx[rows[j].Instance]
		if a != b {
			return a < b
		}
		return rows[i].Time.Before(rows[j].Time)
	})
	return rows
}

// planRagged adds the observation dimension, the time coordinate, the
// layout's bookkeeping variable, and one data variable per set. Every
// set must observe the same instances at the same times so the sets
// can share the bookkeeping.
func planRagged(c *container, sets []*TimeSeriesSet, layout Layout, o *WriteOptions) error {
	rows := raggedRows(sets[0], layout)
	for _, ts := range sets[1:] {
		r2 := raggedRows(ts, layout)
		if len(r2) != len(rows) {
			return ShapeMismatchError{Field: "observations for set " + ts.Name,
				Got: len(r2), Want: len(rows)}
		}
		for i := range rows {
			if r2[i].Instance != rows[i].Instance || !r2[i].Time.Equal(rows[i].Time) {
				return fmt.Errorf("ncdfgeom: sets %s and %s observe different (instance, time) rows; "+
					"ragged sets sharing a file must share one observation skeleton",
					sets[0].Name, ts.Name)
			}
		}
	}
	if err := c.addDim(obsDim, len(rows)); err != nil {
		return err
	}
	times := make([]time.Time, len(rows))
	for i, r := range rows {
		times[i] = r.Time
	}
	tvals, err := encodeTimes(times, o.timeUnits())
	if err != nil {
		return err
	}
	if err := addTimeVar(c, obsDim, tvals, o.timeUnits()); err != nil {
		return err
	}

	idx := instanceIndex(sets[0].Instances)
	if layout == ContiguousRagged {
		counts := make([]int32, len(sets[0].Instances))
		for _, r := range rows {
			counts[idx[r.Instance]]++
		}
		v := &ncVar{name: rowSizeVar, dims: []string{instanceDim}, data: counts}
		if err := v.addAttr("long_name", "number of observations for this instance"); err != nil {
			return err
		}
		if err := v.addAttr("sample_dimension", obsDim); err != nil {
			return err
		}
		if err := c.addVar(v); err != nil {
			return err
		}
	} else {
		index := make([]int32, len(rows))
		for i, r := range rows {
			index[i] = int32(idx[r.Instance])
		}
		v := &ncVar{name: indexVar, dims: []string{obsDim}, data: index}
		if err := v.addAttr("long_name", "which instance this observation belongs to"); err != nil {
			return err
		}
		if err := v.addAttr("instance_dimension", instanceDim); err != nil {
			return err
		}
		if err := c.addVar(v); err != nil {
			return err
		}
	}

	for _, ts := range sets {
		r := raggedRows(ts, layout)
		vals := make([]float64, len(r))
		for i, row := range r {
			vals[i] = row.Value
		}
		if err := addDataVar(c, ts, []string{obsDim}, vals); err != nil {
			return err
		}
	}
	return nil
}

// contiguousObservations reassembles observation rows from a
// contiguous ragged layout, checking that the row sizes exactly
// consume the observation dimension.
func contiguousObservations(instances []Instance, rowSize []int32, times []time.Time, vals []float64) ([]Observation, error) {
	if len(rowSize) != len(instances) {
		return nil, RaggedIndexError{Reason: fmt.Sprintf(
			"row size variable has %d entries for %d instances", len(rowSize), len(instances))}
	}
	total := 0
	for i, rs := range rowSize {
		if rs < 0 {
			return nil, RaggedIndexError{Reason: fmt.Sprintf(
				"instance %d has negative row size %d", i, rs)}
		}
		total += int(rs)
	}
	if total != len(times) {
		return nil, RaggedIndexError{Reason: fmt.Sprintf(
			"row sizes sum to %d but the observation dimension has length %d", total, len(times))}
	}
	obs := make([]Observation, 0, len(times))
	k := 0
	for i, rs := range rowSize {
		for j := 0; j < int(rs); j++ {
			obs = append(obs, Observation{Instance: instances[i].Name, Time: times[k], Value: vals[k]})
			k++
		}
	}
	return obs, nil
}

// indexedObservations reassembles observation rows from an indexed
// ragged layout, checking that every index refers to an instance.
func indexedObservations(instances []Instance, index []int32, times []time.Time, vals []float64) ([]Observation, error) {
	if len(index) != len(times) {
		return nil, RaggedIndexError{Reason: fmt.Sprintf(
			"index variable has %d entries but the observation dimension has length %d",
			len(index), len(times))}
	}
	obs := make([]Observation, len(index))
	for i, x := range index {
		if x < 0 || int(x) >= len(instances) {
			return nil, RaggedIndexError{Reason: fmt.Sprintf(
				"observation %d has instance index %d outside [0, %d)", i, x, len(instances))}
		}
		obs[i] = Observation{Instance: instances[x].Name, Time: times[i], Value: vals[i]}
	}
	return obs, nil
}
