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

// Package ncdfgeomutil holds the command-line interface to the
// ncdfgeom library: describing NetCDF discrete geometry files and
// converting between NetCDF, GeoJSON, and shapefile formats.
package ncdfgeomutil

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/lnashier/viper"
	"github.com/sirupsen/logrus"
	"github.com/spatialmodel/ncdfgeom"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
)

// Cfg holds configuration information.
var Cfg *viper.Viper

// Log is the logger used by the commands in this package.
var Log = logrus.StandardLogger()

var options []struct {
	name, usage, shorthand string
	defaultVal             interface{}
	flagsets               []*pflag.FlagSet
}

func init() {
	logrus.SetFormatter(&logrus.TextFormatter{
		ForceColors:     true,
		FullTimestamp:   true,
		TimestampFormat: time.RFC3339Nano,
		DisableSorting:  true,
	})

	// Options are the configuration options available to ncdfgeom.
	options = []struct {
		name, usage, shorthand string
		defaultVal             interface{}
		flagsets               []*pflag.FlagSet
	}{
		{
			name: "config",
			usage: `
              config specifies the configuration file location.`,
			defaultVal: "",
			flagsets:   []*pflag.FlagSet{Root.PersistentFlags()},
		},
		{
			name: "InputFile",
			usage: `
              InputFile is the path to the file each command reads: the
              NetCDF file for describe, decode, and nc2shp; the GeoJSON
              file for encode; and the shapefile for shp2nc. The path
              can include environment variables.`,
			shorthand:  "i",
			defaultVal: "",
			flagsets: []*pflag.FlagSet{describeCmd.Flags(), encodeCmd.Flags(),
				decodeCmd.Flags(), shp2ncCmd.Flags(), nc2shpCmd.Flags()},
		},
		{
			name: "OutputFile",
			usage: `
              OutputFile is the path to the desired output file location.
              It can include environment variables.`,
			shorthand:  "o",
			defaultVal: "",
			flagsets: []*pflag.FlagSet{encodeCmd.Flags(), decodeCmd.Flags(),
				shp2ncCmd.Flags(), nc2shpCmd.Flags()},
		},
		{
			name: "Metadata",
			usage: `
              Metadata is the path to a TOML file holding descriptive
              information to store in the output NetCDF file: global
              attributes such as the title and institution, and units
              and long names for the attribute columns. The path can
              include environment variables.`,
			defaultVal: "",
			flagsets:   []*pflag.FlagSet{encodeCmd.Flags(), shp2ncCmd.Flags()},
		},
		{
			name: "NameField",
			usage: `
              NameField is the GeoJSON property or shapefile field that
              identifies each feature. The named values become the
              timeseries identifiers in the output NetCDF file. When
              NameField is empty, encode falls back to the GeoJSON
              feature id members, and shp2nc stores no identifiers.`,
			defaultVal: "",
			flagsets:   []*pflag.FlagSet{encodeCmd.Flags(), shp2ncCmd.Flags()},
		},
		{
			name: "ColumnUnits",
			usage: `
              ColumnUnits gives the physical units of the attribute
              columns (as keys) in the output NetCDF file. On the
              command line it is specified as a json object. Units
              given here override units from the Metadata file.`,
			defaultVal: map[string]string{},
			flagsets:   []*pflag.FlagSet{encodeCmd.Flags(), shp2ncCmd.Flags()},
		},
		{
			name: "Proj",
			usage: `
              Proj gives the coordinate reference system of the input
              geometries in Proj4 or WKT format. It is only used when
              the input does not declare its own reference system, as a
              shapefile does through its .prj sidecar file.`,
			defaultVal: "+proj=longlat +datum=WGS84 +no_defs",
			flagsets:   []*pflag.FlagSet{encodeCmd.Flags(), shp2ncCmd.Flags()},
		},
		{
			name: "Vars",
			usage: `
              Vars lists the variables to process. The default (an
              empty list) processes all of them.`,
			defaultVal: []string{},
			flagsets:   []*pflag.FlagSet{describeCmd.Flags(), nc2shpCmd.Flags()},
		},
	}

	Cfg = viper.New()

	// Set the prefix for configuration environment variables.
	Cfg.SetEnvPrefix("NCDFGEOM")

	for _, option := range options {
		for i, set := range option.flagsets {
			if i != 0 { // We don't want to create the same flag twice.
				set.AddFlag(option.flagsets[0].Lookup(option.name))
				continue
			}
			switch option.defaultVal.(type) {
			case string:
				if option.shorthand == "" {
					set.String(option.name, option.defaultVal.(string), option.usage)
				} else {
					set.StringP(option.name, option.shorthand, option.defaultVal.(string), option.usage)
				}
			case []string:
				if option.shorthand == "" {
					set.StringSlice(option.name, option.defaultVal.([]string), option.usage)
				} else {
					set.StringSliceP(option.name, option.shorthand, option.defaultVal.([]string), option.usage)
				}
			case bool:
				if option.shorthand == "" {
					set.Bool(option.name, option.defaultVal.(bool), option.usage)
				} else {
					set.BoolP(option.name, option.shorthand, option.defaultVal.(bool), option.usage)
				}
			case int:
				if option.shorthand == "" {
					set.Int(option.name, option.defaultVal.(int), option.usage)
				} else {
					set.IntP(option.name, option.shorthand, option.defaultVal.(int), option.usage)
				}
			case float64:
				if option.shorthand == "" {
					set.Float64(option.name, option.defaultVal.(float64), option.usage)
				} else {
					set.Float64P(option.name, option.shorthand, option.defaultVal.(float64), option.usage)
				}
			case map[string]string:
				b := bytes.NewBuffer(nil)
				e := json.NewEncoder(b)
				e.Encode(option.defaultVal)
				s := string(b.Bytes())
				if option.shorthand == "" {
					set.String(option.name, s, option.usage)
				} else {
					set.StringP(option.name, option.shorthand, s, option.usage)
				}
			default:
				panic("invalid argument type")
			}
			Cfg.BindPFlag(option.name, set.Lookup(option.name))
		}
	}
}

func init() {
	// Link the commands together.
	Root.AddCommand(versionCmd)
	Root.AddCommand(describeCmd)
	Root.AddCommand(encodeCmd)
	Root.AddCommand(decodeCmd)
	Root.AddCommand(shp2ncCmd)
	Root.AddCommand(nc2shpCmd)
}

// setConfig finds and reads in the configuration file, if there is one.
func setConfig() error {
	if cfgpath := Cfg.GetString("config"); cfgpath != "" {
		Cfg.SetConfigFile(cfgpath)
		if err := Cfg.ReadInConfig(); err != nil {
			return fmt.Errorf("ncdfgeom: problem reading configuration file: %v", err)
		}
	}
	return nil
}

// Root is the main command.
var Root = &cobra.Command{
	Use:   "ncdfgeom",
	Short: "A NetCDF discrete geometry file converter.",
	Long: `ncdfgeom reads and writes NetCDF files that follow the Climate and
Forecast (CF) conventions for discrete sampling geometries and geometry
containers. Use the subcommands specified below to summarize such files
and to convert between the NetCDF, GeoJSON, and shapefile formats.

Refer to the subcommand documentation for configuration options and
default settings. Configuration can be changed by using a configuration
file (and providing the path to the file using the --config flag), by
using command-line arguments, or by setting environment variables in the
format 'NCDFGEOM_var' where 'var' is the name of the variable to be set.
Refer to https://github.com/spf13/viper for additional configuration
information.`,
	DisableAutoGenTag: true,
	PersistentPreRunE: func(*cobra.Command, []string) error { return setConfig() },
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the version number",
	Long:  "version prints the version number of this version of ncdfgeom.",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("ncdfgeom v%s\n", ncdfgeom.Version)
	},
	DisableAutoGenTag: true,
}

// describeCmd is a command that summarizes the contents of a NetCDF file.
var describeCmd = &cobra.Command{
	Use:   "describe",
	Short: "Summarize a NetCDF file.",
	Long: `describe prints the dimensions, variables, attributes, and value
ranges of the NetCDF file given by the InputFile configuration variable.
When the Vars variable is set, only the listed variables are printed.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		input, err := checkInputFile(Cfg.GetString("InputFile"))
		if err != nil {
			return err
		}
		return Describe(input, expandStringSlice(Cfg.GetStringSlice("Vars")), os.Stdout)
	},
	DisableAutoGenTag: true,
}

// encodeCmd is a command that converts GeoJSON to a NetCDF geometry
// container file.
var encodeCmd = &cobra.Command{
	Use:   "encode",
	Short: "Convert GeoJSON to NetCDF.",
	Long: `encode converts the GeoJSON FeatureCollection given by the InputFile
configuration variable to a NetCDF geometry container file at OutputFile.
Feature properties become per-instance attribute columns, and the property
named by NameField (or the feature id members) becomes the identifier of
each geometry. A TOML file given by Metadata adds global attributes and
column units.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		input, err := checkInputFile(Cfg.GetString("InputFile"))
		if err != nil {
			return err
		}
		output, err := checkOutputFile(Cfg.GetString("OutputFile"))
		if err != nil {
			return err
		}
		meta, err := ReadMetadata(os.ExpandEnv(Cfg.GetString("Metadata")))
		if err != nil {
			return err
		}
		meta.setColumnUnits(GetStringMapString("ColumnUnits", Cfg))
		return EncodeGeoJSON(input, output,
			Cfg.GetString("NameField"), os.ExpandEnv(Cfg.GetString("Proj")), meta)
	},
	DisableAutoGenTag: true,
}

// decodeCmd is a command that converts a NetCDF geometry container file
// to GeoJSON.
var decodeCmd = &cobra.Command{
	Use:   "decode",
	Short: "Convert NetCDF to GeoJSON.",
	Long: `decode converts the geometries and attribute columns of the NetCDF
file given by the InputFile configuration variable to a GeoJSON
FeatureCollection at OutputFile. Geometries stored in a projected
coordinate system are transformed to the WGS84 longitude and latitude
coordinates that GeoJSON requires.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		input, err := checkInputFile(Cfg.GetString("InputFile"))
		if err != nil {
			return err
		}
		output, err := checkOutputFile(Cfg.GetString("OutputFile"))
		if err != nil {
			return err
		}
		return DecodeGeoJSON(input, output)
	},
	DisableAutoGenTag: true,
}

// shp2ncCmd is a command that converts a shapefile to a NetCDF geometry
// container file.
var shp2ncCmd = &cobra.Command{
	Use:   "shp2nc",
	Short: "Convert a shapefile to NetCDF.",
	Long: `shp2nc converts the shapefile given by the InputFile configuration
variable to a NetCDF geometry container file at OutputFile. Attribute
fields become per-instance attribute columns, and the field named by
NameField becomes the identifier of each geometry. The coordinate
reference system is read from the .prj sidecar file when one exists and
from the Proj variable otherwise.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		input, err := checkInputFile(Cfg.GetString("InputFile"))
		if err != nil {
			return err
		}
		output, err := checkOutputFile(Cfg.GetString("OutputFile"))
		if err != nil {
			return err
		}
		meta, err := ReadMetadata(os.ExpandEnv(Cfg.GetString("Metadata")))
		if err != nil {
			return err
		}
		meta.setColumnUnits(GetStringMapString("ColumnUnits", Cfg))
		return EncodeShapefile(input, output,
			Cfg.GetString("NameField"), os.ExpandEnv(Cfg.GetString("Proj")), meta)
	},
	DisableAutoGenTag: true,
}

// nc2shpCmd is a command that converts a NetCDF geometry container file
// to a shapefile.
var nc2shpCmd = &cobra.Command{
	Use:   "nc2shp",
	Short: "Convert NetCDF to a shapefile.",
	Long: `nc2shp converts the geometries and attribute columns of the NetCDF
file given by the InputFile configuration variable to a shapefile at
OutputFile, together with a .prj sidecar file holding the coordinate
reference system. When the Vars variable is set, only the listed
attribute columns are carried over.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		input, err := checkInputFile(Cfg.GetString("InputFile"))
		if err != nil {
			return err
		}
		output, err := checkOutputFile(Cfg.GetString("OutputFile"))
		if err != nil {
			return err
		}
		return DecodeShapefile(input, output, expandStringSlice(Cfg.GetStringSlice("Vars")))
	},
	DisableAutoGenTag: true,
}
