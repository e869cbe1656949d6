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
	"strings"
	"time"
)

// DefaultTimeUnits is the time encoding used when WriteOptions does
// not specify one.
const DefaultTimeUnits = "days since 1970-01-01 00:00:00"

// secondsPerTimeUnit gives the length in seconds of the time units
// allowed in a "units since epoch" string.
var secondsPerTimeUnit = map[string]float64{
	"seconds": 1, "second": 1, "secs": 1, "sec": 1, "s": 1,
	"minutes": 60, "minute": 60, "mins": 60, "min": 60,
	"hours": 3600, "hour": 3600, "hrs": 3600, "hr": 3600, "h": 3600,
	"days": 86400, "day": 86400, "d": 86400,
}

// epochLayouts are the timestamp formats accepted in the epoch part of
// a time units string. All epochs are interpreted as UTC.
var epochLayouts = []string{
	"2006-01-02 15:04:05",
	"2006-01-02T15:04:05Z",
	"2006-01-02T15:04:05",
	"2006-01-02 15:04",
	"2006-01-02",
}

// parseTimeUnits splits a CF-style time units string such as
// "days since 1970-01-01 00:00:00" into the length of one unit in
// seconds and the epoch it counts from.
func parseTimeUnits(units string) (float64, time.Time, error) {
	parts := strings.SplitN(units, " since ", 2)
	if len(parts) != 2 {
		return 0, time.Time{}, fmt.Errorf("ncdfgeom: time units %q are not in the form \"<unit> since <epoch>\"", units)
	}
	secs, ok := secondsPerTimeUnit[strings.ToLower(strings.TrimSpace(parts[0]))]
	if !ok {
		return 0, time.Time{}, fmt.Errorf("ncdfgeom: unsupported time unit %q", parts[0])
	}
	epochStr := strings.TrimSpace(parts[1])
	for _, layout := range epochLayouts {
		if epoch, err := time.ParseInLocation(layout, epochStr, time.UTC); err == nil {
			return secs, epoch, nil
		}
	}
	return 0, time.Time{}, fmt.Errorf("ncdfgeom: cannot parse time epoch %q", epochStr)
}

// encodeTimes converts times to floating-point offsets from the epoch
// given in units.
func encodeTimes(times []time.Time, units string) ([]float64, error) {
	secsPerUnit, epoch, err := parseTimeUnits(units)
	if err != nil {
		return nil, err
	}
	o := make([]float64, len(times))
	for i, t := range times {
		secs := float64(t.Unix()-epoch.Unix()) +
			float64(t.Nanosecond()-epoch.Nanosecond())/1e9
		o[i] = secs / secsPerUnit
	}
	return o, nil
}

// decodeTimes converts floating-point offsets from the epoch given in
// units back to times, rounding to the nearest millisecond so that
// second-precision timestamps survive the floating-point trip.
func decodeTimes(vals []float64, units string) ([]time.Time, error) {
	secsPerUnit, epoch, err := parseTimeUnits(units)
	if err != nil {
		return nil, err
	}
	o := make([]time.Time, len(vals))
	for i, v := range vals {
		ms := math.Round(v * secsPerUnit * 1000)
		if math.IsNaN(ms) || math.IsInf(ms, 0) {
			return nil, fmt.Errorf("ncdfgeom: time value %g is not finite", v)
		}
		sec := int64(ms) / 1000
		rem := int64(ms) % 1000
		o[i] = time.Unix(epoch.Unix()+sec, int64(epoch.Nanosecond())+rem*int64(time.Millisecond)).UTC()
	}
	return o, nil
}
