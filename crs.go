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

	"github.com/ctessum/geom/proj"
)

// defaultProj4 is the coordinate reference system assumed when none is
// given: WGS84 longitude-latitude.
const defaultProj4 = "+proj=longlat +datum=WGS84 +no_defs"

// crsAttrs builds the attributes of the coordinate reference system
// variable from a PROJ definition string: the CF grid_mapping
// attributes for the projections this package knows, the ellipsoid
// parameters, and the definition string itself under the proj4
// attribute so it survives the trip through the file exactly.
func crsAttrs(p4 string) ([]attr, *proj.SR, error) {
	sr, err := proj.Parse(p4)
	if err != nil {
		return nil, nil, fmt.Errorf("ncdfgeom: parsing coordinate reference system: %w", err)
	}
	var attrs []attr
	add := func(name string, val interface{}) {
		attrs = append(attrs, attr{name: name, val: val})
	}
	addf := func(name string, val float64) {
		if !math.IsNaN(val) {
			add(name, []float64{val})
		}
	}
	switch sr.Name {
	case "longlat":
		add("grid_mapping_name", "latitude_longitude")
	case "lcc":
		add("grid_mapping_name", "lambert_conformal_conic")
		if sp := standardParallels(sr); len(sp) > 0 {
			add("standard_parallel", sp)
		}
		addf("latitude_of_projection_origin", radToDeg(sr.Lat0))
		addf("longitude_of_central_meridian", radToDeg(sr.Long0))
		addf("false_easting", sr.X0)
		addf("false_northing", sr.Y0)
	case "aea":
		add("grid_mapping_name", "albers_conical_equal_area")
		if sp := standardParallels(sr); len(sp) > 0 {
			add("standard_parallel", sp)
		}
		addf("latitude_of_projection_origin", radToDeg(sr.Lat0))
		addf("longitude_of_central_meridian", radToDeg(sr.Long0))
		addf("false_easting", sr.X0)
		addf("false_northing", sr.Y0)
	case "merc":
		add("grid_mapping_name", "mercator")
		addf("longitude_of_projection_origin", radToDeg(sr.Long0))
		if !math.IsNaN(sr.LatTS) {
			add("standard_parallel", []float64{radToDeg(sr.LatTS)})
		} else {
			addf("scale_factor_at_projection_origin", sr.K0)
		}
		addf("false_easting", sr.X0)
		addf("false_northing", sr.Y0)
	case "tmerc":
		add("grid_mapping_name", "transverse_mercator")
		addf("scale_factor_at_central_meridian", sr.K0)
		addf("latitude_of_projection_origin", radToDeg(sr.Lat0))
		addf("longitude_of_central_meridian", radToDeg(sr.Long0))
		addf("false_easting", sr.X0)
		addf("false_northing", sr.Y0)
	case "utm":
		// CF has no UTM mapping; store the equivalent transverse
		// Mercator parameters.
		add("grid_mapping_name", "transverse_mercator")
		add("scale_factor_at_central_meridian", []float64{0.9996})
		add("latitude_of_projection_origin", []float64{0})
		add("longitude_of_central_meridian", []float64{sr.Zone*6 - 183})
		add("false_easting", []float64{500000})
		if sr.UTMSouth {
			add("false_northing", []float64{10000000})
		} else {
			add("false_northing", []float64{0})
		}
	default:
		add("grid_mapping_name", sr.Name)
	}
	addf("semi_major_axis", sr.A)
	if !math.IsNaN(sr.Rf) && sr.Rf != 0 {
		addf("inverse_flattening", sr.Rf)
	} else {
		addf("semi_minor_axis", sr.B)
	}
	add("proj4", p4)
	return attrs, sr, nil
}

// radToDeg converts an angle parsed from a PROJ string, which the proj
// package stores in radians, to the degrees CF attributes carry.
func radToDeg(rad float64) float64 {
	return rad * 180 / math.Pi
}

// standardParallels returns the one or two standard parallels of a
// conic projection, in degrees.
func standardParallels(sr *proj.SR) []float64 {
	if math.IsNaN(sr.Lat1) {
		return nil
	}
	if math.IsNaN(sr.Lat2) || sr.Lat2 == sr.Lat1 {
		return []float64{radToDeg(sr.Lat1)}
	}
	return []float64{radToDeg(sr.Lat1), radToDeg(sr.Lat2)}
}

// proj4FromCRS recovers a PROJ definition string from the attributes
// of a coordinate reference system variable. Files written by this
// package carry the string verbatim in the proj4 attribute; for other
// files it is rebuilt from the CF grid_mapping attributes where
// possible, and "" is returned for mappings this package does not
// know.
func proj4FromCRS(attrs Attributes) string {
	if p4, ok := attrs["proj4"].(string); ok && p4 != "" {
		return p4
	}
	name, _ := attrs["grid_mapping_name"].(string)
	var terms []string
	addf := func(flag, attrName string) {
		if v, ok := attrFloat(attrs, attrName); ok {
			terms = append(terms, fmt.Sprintf("%s=%g", flag, v))
		}
	}
	switch name {
	case "latitude_longitude":
		terms = append(terms, "+proj=longlat")
	case "lambert_conformal_conic":
		terms = append(terms, "+proj=lcc")
		sp := attrFloats(attrs, "standard_parallel")
		if len(sp) > 0 {
			terms = append(terms, fmt.Sprintf("+lat_1=%g", sp[0]))
		}
		if len(sp) > 1 {
			terms = append(terms, fmt.Sprintf("+lat_2=%g", sp[1]))
		}
		addf("+lat_0", "latitude_of_projection_origin")
		addf("+lon_0", "longitude_of_central_meridian")
		addf("+x_0", "false_easting")
		addf("+y_0", "false_northing")
	case "albers_conical_equal_area":
		terms = append(terms, "+proj=aea")
		sp := attrFloats(attrs, "standard_parallel")
		if len(sp) > 0 {
			terms = append(terms, fmt.Sprintf("+lat_1=%g", sp[0]))
		}
		if len(sp) > 1 {
			terms = append(terms, fmt.Sprintf("+lat_2=%g", sp[1]))
		}
		addf("+lat_0", "latitude_of_projection_origin")
		addf("+lon_0", "longitude_of_central_meridian")
		addf("+x_0", "false_easting")
		addf("+y_0", "false_northing")
	case "mercator":
		terms = append(terms, "+proj=merc")
		sp := attrFloats(attrs, "standard_parallel")
		if len(sp) > 0 {
			terms = append(terms, fmt.Sprintf("+lat_ts=%g", sp[0]))
		}
		addf("+k_0", "scale_factor_at_projection_origin")
		addf("+lon_0", "longitude_of_projection_origin")
		addf("+x_0", "false_easting")
		addf("+y_0", "false_northing")
	case "transverse_mercator":
		terms = append(terms, "+proj=tmerc")
		addf("+k_0", "scale_factor_at_central_meridian")
		addf("+lat_0", "latitude_of_projection_origin")
		addf("+lon_0", "longitude_of_central_meridian")
		addf("+x_0", "false_easting")
		addf("+y_0", "false_northing")
	default:
		return ""
	}
	if a, aok := attrFloat(attrs, "semi_major_axis"); aok {
		terms = append(terms, fmt.Sprintf("+a=%g", a))
		if rf, ok := attrFloat(attrs, "inverse_flattening"); ok {
			terms = append(terms, fmt.Sprintf("+rf=%g", rf))
		} else if b, ok := attrFloat(attrs, "semi_minor_axis"); ok {
			terms = append(terms, fmt.Sprintf("+b=%g", b))
		}
	} else {
		terms = append(terms, "+ellps=WGS84")
	}
	if name != "latitude_longitude" {
		terms = append(terms, "+units=m")
	}
	terms = append(terms, "+no_defs")
	return strings.Join(terms, " ")
}

// attrFloat extracts a scalar numeric attribute value.
func attrFloat(attrs Attributes, name string) (float64, bool) {
	v := attrFloats(attrs, name)
	if len(v) == 0 {
		return 0, false
	}
	return v[0], true
}

// attrFloats extracts a numeric attribute value as float64s.
func attrFloats(attrs Attributes, name string) []float64 {
	switch v := attrs[name].(type) {
	case []float64:
		return v
	case []float32:
		o := make([]float64, len(v))
		for i, vv := range v {
			o[i] = float64(vv)
		}
		return o
	case []int32:
		o := make([]float64, len(v))
		for i, vv := range v {
			o[i] = float64(vv)
		}
		return o
	case []int16:
		o := make([]float64, len(v))
		for i, vv := range v {
			o[i] = float64(vv)
		}
		return o
	default:
		return nil
	}
}
