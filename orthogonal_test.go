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
	"testing"

	"github.com/gonum/floats"
)

func TestOrthogonalValues(t *testing.T) {
	// Two times, three instances. Stored [time, instance] the flat
	// data is already in matrix order; stored [instance, time] it
	// must be transposed.
	timeFirst := []float64{1, 2, 3, 4, 5, 6}
	instFirst := []float64{1, 4, 2, 5, 3, 6}

	d, err := orthogonalValues(timeFirst, 2, 3, true)
	if err != nil {
		t.Fatal(err)
	}
	if !floats.Equal(d.Elements, timeFirst) {
		t.Errorf("elements=%v (they should equal %v)", d.Elements, timeFirst)
	}

	d, err = orthogonalValues(instFirst, 2, 3, false)
	if err != nil {
		t.Fatal(err)
	}
	if !floats.Equal(d.Elements, timeFirst) {
		t.Errorf("transposed elements=%v (they should equal %v)", d.Elements, timeFirst)
	}
	if got := d.Get(1, 2); got != 6 {
		t.Errorf("value at (1,2)=%v (it should equal 6)", got)
	}

	t.Run("wrong length", func(t *testing.T) {
		if _, err := orthogonalValues(timeFirst, 2, 2, true); err == nil {
			t.Error("no error for a matrix with the wrong number of values")
		}
	})
}
