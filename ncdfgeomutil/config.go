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

package ncdfgeomutil

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/BurntSushi/toml"
	"github.com/lnashier/viper"
	"github.com/spatialmodel/ncdfgeom"
	"github.com/spf13/cast"
)

// checkInputFile makes sure that the input file is specified and exists,
// and expands any environment variables.
func checkInputFile(f string) (string, error) {
	if f == "" {
		return "", fmt.Errorf(`you need to specify an input file configuration variable (for example: InputFile="data.nc")`)
	}
	f = os.ExpandEnv(f)
	if _, err := os.Stat(f); err != nil {
		return f, fmt.Errorf("ncdfgeom: the InputFile doesn't exist: %v", err)
	}
	return f, nil
}

// checkOutputFile makes sure that the output file is specified and its
// directory exists, and expands any environment variables.
func checkOutputFile(f string) (string, error) {
	if f == "" {
		return "", fmt.Errorf(`you need to specify an output file configuration variable (for example: OutputFile="out.nc")`)
	}
	f = os.ExpandEnv(f)
	outdir := filepath.Dir(f)
	if _, err := os.Stat(outdir); err != nil {
		return f, fmt.Errorf("ncdfgeom: the OutputFile directory doesn't exist: %v", err)
	}
	return f, nil
}

// expandStringSlice expands the environment variables in a slice of strings.
func expandStringSlice(s []string) []string {
	for i := 0; i < len(s); i++ {
		s[i] = os.ExpandEnv(s[i])
	}
	return s
}

// GetStringMapString returns a map[string]string from a viper configuration,
// accounting for the fact that it might be a json object if it was set
// from a command line argument.
func GetStringMapString(varName string, cfg *viper.Viper) map[string]string {
	i := cfg.Get(varName)
	switch i.(type) {
	case map[string]string:
		return i.(map[string]string)
	case map[string]interface{}:
		return cast.ToStringMapString(i)
	case string:
		b := bytes.NewBuffer(([]byte)(i.(string)))
		d := json.NewDecoder(b)
		o := make(map[string]string)
		if err := d.Decode(&o); err != nil {
			panic(err)
		}
		return o
	default:
		panic(fmt.Errorf("invalid type for getStringMapString variable %s: %#v", varName, i))
	}
}

// Metadata holds descriptive information to be stored in an output
// netCDF file. It is normally read from a TOML file.
type Metadata struct {
	// Title, Institution, Source, Comment, and References become
	// global attributes of the same (lower-case) names.
	Title       string
	Institution string
	Source      string
	Comment     string
	References  string

	// Columns maps attribute column names to descriptive information
	// about each column.
	Columns map[string]ColumnMetadata
}

// ColumnMetadata holds descriptive information about one attribute column.
type ColumnMetadata struct {
	// Units gives the physical units of the column values.
	Units string

	// LongName is a human-readable description of the column.
	LongName string `toml:"long_name"`
}

// ReadMetadata reads file metadata from the TOML file at path.
// An empty path returns empty metadata.
func ReadMetadata(path string) (*Metadata, error) {
	m := new(Metadata)
	if path == "" {
		return m, nil
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("ncdfgeom: opening Metadata file: %v", err)
	}
	defer f.Close()
	if _, err := toml.DecodeReader(f, m); err != nil {
		return nil, fmt.Errorf("ncdfgeom: reading Metadata file: %v", err)
	}
	return m, nil
}

// global returns the global attributes described by the metadata.
func (m *Metadata) global() ncdfgeom.Attributes {
	if m == nil {
		return nil
	}
	attrs := make(ncdfgeom.Attributes)
	for name, val := range map[string]string{
		"title":       m.Title,
		"institution": m.Institution,
		"source":      m.Source,
		"comment":     m.Comment,
		"references":  m.References,
	} {
		if val != "" {
			attrs[name] = val
		}
	}
	if len(attrs) == 0 {
		return nil
	}
	return attrs
}

// setColumnUnits overrides the units of the named columns.
func (m *Metadata) setColumnUnits(units map[string]string) {
	if m == nil || len(units) == 0 {
		return
	}
	if m.Columns == nil {
		m.Columns = make(map[string]ColumnMetadata)
	}
	for name, u := range units {
		cm := m.Columns[name]
		cm.Units = u
		m.Columns[name] = cm
	}
}

// apply adds the per-column metadata to the matching columns.
// Metadata for columns that do not exist is ignored.
func (m *Metadata) apply(cols []ncdfgeom.AttributeColumn) {
	if m == nil {
		return
	}
	for i, col := range cols {
		cm, ok := m.Columns[col.Name]
		if !ok {
			continue
		}
		if cols[i].Meta == nil {
			cols[i].Meta = make(ncdfgeom.Attributes)
		}
		if cm.Units != "" {
			cols[i].Meta["units"] = cm.Units
		}
		if cm.LongName != "" {
			cols[i].Meta["long_name"] = cm.LongName
		}
	}
}
