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
	"io"

	"github.com/ctessum/cdf"
)

// An attr is one netCDF attribute. Attributes are kept in slices
// rather than maps to preserve their order in the file.
type attr struct {
	name string
	val  interface{}
}

// An ncVar is one variable planned for a netCDF file: its name, its
// dimensions, its attributes in output order, and its complete data
// flattened in row-major order. Data must be a []uint8, []int16,
// []int32, []float32, or []float64; a []uint8 is stored as the netCDF
// BYTE type unless char is set.
type ncVar struct {
	name  string
	dims  []string
	char  bool
	data  interface{}
	attrs []attr
}

// addAttr appends an attribute, converting its value to a type the
// netCDF classic format can store.
func (v *ncVar) addAttr(name string, val interface{}) error {
	for _, a := range v.attrs {
		if a.name == name {
			return fmt.Errorf("ncdfgeom: variable %s already has an attribute %s", v.name, name)
		}
	}
	nval, err := normalizeAttr(v.name+":"+name, val)
	if err != nil {
		return err
	}
	v.attrs = append(v.attrs, attr{name: name, val: nval})
	return nil
}

// addMeta appends user attributes in sorted order, skipping any name
// already set so user metadata cannot override structural attributes.
func (v *ncVar) addMeta(meta Attributes) error {
	for _, name := range meta.names() {
		if v.hasAttr(name) {
			continue
		}
		if err := v.addAttr(name, meta[name]); err != nil {
			return err
		}
	}
	return nil
}

func (v *ncVar) hasAttr(name string) bool {
	for _, a := range v.attrs {
		if a.name == name {
			return true
		}
	}
	return false
}

// getAttr returns the value of the named attribute, or nil.
func (v *ncVar) getAttr(name string) interface{} {
	for _, a := range v.attrs {
		if a.name == name {
			return a.val
		}
	}
	return nil
}

// dataLen returns the number of elements in v's data.
func (v *ncVar) dataLen() (int, error) {
	switch d := v.data.(type) {
	case []uint8:
		return len(d), nil
	case []int16:
		return len(d), nil
	case []int32:
		return len(d), nil
	case []float32:
		return len(d), nil
	case []float64:
		return len(d), nil
	default:
		return 0, fmt.Errorf("ncdfgeom: variable %s has unsupported data type %T", v.name, v.data)
	}
}

// typeSample returns a value of the dynamic type that tells
// cdf.Header.AddVariable which netCDF type to define.
func (v *ncVar) typeSample() interface{} {
	if v.char {
		return ""
	}
	switch v.data.(type) {
	case []uint8:
		return []uint8{}
	case []int16:
		return []int16{}
	case []int32:
		return []int32{}
	case []float32:
		return []float32{}
	default:
		return []float64{}
	}
}

// A container is a fully planned netCDF file: dimensions, variables
// with their data, and global attributes, all in output order.
type container struct {
	dimNames   []string
	dimLengths []int
	vars       []*ncVar
	global     []attr
}

func (c *container) addDim(name string, length int) error {
	for _, d := range c.dimNames {
		if d == name {
			return fmt.Errorf("ncdfgeom: duplicate dimension %s", name)
		}
	}
	if length < 1 {
		// A zero-length dimension would become the unlimited record
		// dimension and change the file layout.
		return ShapeMismatchError{Field: "dimension " + name, Got: length, Want: 1}
	}
	c.dimNames = append(c.dimNames, name)
	c.dimLengths = append(c.dimLengths, length)
	return nil
}

func (c *container) dimLength(name string) (int, bool) {
	for i, d := range c.dimNames {
		if d == name {
			return c.dimLengths[i], true
		}
	}
	return 0, false
}

// addVar appends a variable after checking that its dimensions exist
// and that its data length matches the product of their lengths.
func (c *container) addVar(v *ncVar) error {
	if c.findVar(v.name) != nil {
		return fmt.Errorf("ncdfgeom: duplicate variable %s", v.name)
	}
	n := 1
	for _, d := range v.dims {
		l, ok := c.dimLength(d)
		if !ok {
			return fmt.Errorf("ncdfgeom: variable %s uses undefined dimension %s", v.name, d)
		}
		n *= l
	}
	dl, err := v.dataLen()
	if err != nil {
		return err
	}
	if dl != n {
		return ShapeMismatchError{Field: "data for variable " + v.name, Got: dl, Want: n}
	}
	c.vars = append(c.vars, v)
	return nil
}

func (c *container) findVar(name string) *ncVar {
	for _, v := range c.vars {
		if v.name == name {
			return v
		}
	}
	return nil
}

func (c *container) findGlobal(name string) (int, bool) {
	for i, a := range c.global {
		if a.name == name {
			return i, true
		}
	}
	return 0, false
}

func (c *container) addGlobal(name string, val interface{}) error {
	if _, ok := c.findGlobal(name); ok {
		return fmt.Errorf("ncdfgeom: duplicate global attribute %s", name)
	}
	nval, err := normalizeAttr(name, val)
	if err != nil {
		return err
	}
	c.global = append(c.global, attr{name: name, val: nval})
	return nil
}

// addGlobalMeta appends user global attributes in sorted order,
// skipping names already set.
func (c *container) addGlobalMeta(meta Attributes) error {
	for _, name := range meta.names() {
		if _, ok := c.findGlobal(name); ok {
			continue
		}
		if err := c.addGlobal(name, meta[name]); err != nil {
			return err
		}
	}
	return nil
}

// write defines the netCDF header and writes every variable's data.
func (c *container) write(w cdf.ReaderWriterAt) error {
	h := cdf.NewHeader(c.dimNames, c.dimLengths)
	for _, v := range c.vars {
		h.AddVariable(v.name, v.dims, v.typeSample())
		for _, a := range v.attrs {
			h.AddAttribute(v.name, a.name, a.val)
		}
	}
	for _, a := range c.global {
		h.AddAttribute("", a.name, a.val)
	}
	h.Define()
	if errs := h.Check(); len(errs) > 0 {
		return fmt.Errorf("ncdfgeom: invalid netCDF header: %v", errs[0])
	}
	f, err := cdf.Create(w, h)
	if err != nil {
		return fmt.Errorf("ncdfgeom: creating netCDF file: %w", err)
	}
	for _, v := range c.vars {
		if err := writeVarData(f, v); err != nil {
			return err
		}
	}
	return nil
}

// writeVarData writes a variable's complete data. For variables with
// dimensions the end vector is set one element past the data, which
// keeps the writer from reporting io.EOF on an exact fill; scalar
// variables cannot be addressed that way, so io.EOF is accepted there.
func writeVarData(f *cdf.File, v *ncVar) error {
	var begin, end []int
	if len(v.dims) > 0 {
		begin = make([]int, len(v.dims))
		end = f.Header.Lengths(v.name)
	}
	wr := f.Writer(v.name, begin, end)
	if _, err := wr.Write(v.data); err != nil && err != io.EOF {
		return fmt.Errorf("ncdfgeom: writing variable %s: %w", v.name, err)
	}
	return nil
}

// readVarData reads a variable's complete data as a flat slice of its
// netCDF type (with []uint8 for both BYTE and CHAR).
func readVarData(f *cdf.File, name string) (interface{}, error) {
	r := f.Reader(name, nil, nil)
	if r == nil {
		return nil, fmt.Errorf("ncdfgeom: file has no variable %s", name)
	}
	buf := r.Zero(-1)
	if _, err := r.Read(buf); err != nil && err != io.EOF {
		return nil, fmt.Errorf("ncdfgeom: reading variable %s: %w", name, err)
	}
	return buf, nil
}

// fileContainer reconstructs a container, including all variable data,
// from an open netCDF file. It is the first half of the
// read-merge-rewrite cycle that adds variables to an existing file.
func fileContainer(f *cdf.File) (*container, error) {
	c := new(container)
	for i, d := range f.Header.Dimensions("") {
		l := f.Header.Lengths("")[i]
		if l == 0 {
			return nil, fmt.Errorf("ncdfgeom: file has a record dimension %s, which is not supported", d)
		}
		if err := c.addDim(d, l); err != nil {
			return nil, err
		}
	}
	for _, name := range f.Header.Variables() {
		data, err := readVarData(f, name)
		if err != nil {
			return nil, err
		}
		_, isChar := f.Header.ZeroValue(name, 0).(string)
		v := &ncVar{
			name: name,
			dims: f.Header.Dimensions(name),
			char: isChar,
			data: data,
		}
		for _, a := range f.Header.Attributes(name) {
			if err := v.addAttr(a, f.Header.GetAttribute(name, a)); err != nil {
				return nil, err
			}
		}
		if err := c.addVar(v); err != nil {
			return nil, err
		}
	}
	for _, a := range f.Header.Attributes("") {
		if err := c.addGlobal(a, f.Header.GetAttribute("", a)); err != nil {
			return nil, err
		}
	}
	return c, nil
}
