// Package schema validates datasets against named, declarative column
// constraints: semantic type, nullability, uniqueness, numeric range,
// and categorical allow-lists. Declared columns are type-coerced before
// checking; undeclared columns pass through untouched.
package schema

import (
	"fmt"
	"sort"
	"strings"

	"github.com/rotisserie/eris"
)

// Kind is the semantic type a column is declared as.
type Kind string

const (
	KindInt      Kind = "int"
	KindFloat    Kind = "float"
	KindString   Kind = "string"
	KindDatetime Kind = "datetime"
	KindBool     Kind = "bool"
)

// Valid reports whether k names a known kind.
func (k Kind) Valid() bool {
	switch k {
	case KindInt, KindFloat, KindString, KindDatetime, KindBool:
		return true
	}
	return false
}

// Column declares the constraints for one dataset column. Min and Max
// apply to int and float columns only; Allowed applies to string
// columns only.
type Column struct {
	Name     string   `yaml:"name"`
	Type     Kind     `yaml:"type"`
	Nullable bool     `yaml:"nullable"`
	Unique   bool     `yaml:"unique"`
	Min      *float64 `yaml:"min"`
	Max      *float64 `yaml:"max"`
	Allowed  []string `yaml:"allowed"`
}

// Schema is a named, ordered set of column declarations.
type Schema struct {
	Name    string   `yaml:"name"`
	Columns []Column `yaml:"columns"`
}

// RequiredColumns lists the declared columns that must not be null.
func (s *Schema) RequiredColumns() []string {
	var req []string
	for _, col := range s.Columns {
		if !col.Nullable {
			req = append(req, col.Name)
		}
	}
	return req
}

// ColumnNames lists every declared column in declaration order.
func (s *Schema) ColumnNames() []string {
	names := make([]string, len(s.Columns))
	for i, col := range s.Columns {
		names[i] = col.Name
	}
	return names
}

func (s *Schema) check() error {
	if s.Name == "" {
		return eris.New("schema: schema has no name")
	}
	if len(s.Columns) == 0 {
		return eris.Errorf("schema: %q declares no columns", s.Name)
	}
	seen := make(map[string]struct{}, len(s.Columns))
	for _, col := range s.Columns {
		if col.Name == "" {
			return eris.Errorf("schema: %q has a column with no name", s.Name)
		}
		if !col.Type.Valid() {
			return eris.Errorf("schema: %s.%s has unknown type %q", s.Name, col.Name, col.Type)
		}
		if _, dup := seen[col.Name]; dup {
			return eris.Errorf("schema: %q declares column %q twice", s.Name, col.Name)
		}
		seen[col.Name] = struct{}{}
		if (col.Min != nil || col.Max != nil) && col.Type != KindInt && col.Type != KindFloat {
			return eris.Errorf("schema: %s.%s sets a numeric range on a %s column", s.Name, col.Name, col.Type)
		}
		if len(col.Allowed) > 0 && col.Type != KindString {
			return eris.Errorf("schema: %s.%s sets an allow-list on a %s column", s.Name, col.Name, col.Type)
		}
	}
	return nil
}

// Registry holds schemas by name.
type Registry struct {
	schemas map[string]*Schema
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{schemas: make(map[string]*Schema)}
}

// Register adds a schema, rejecting structural mistakes and duplicate
// names.
func (r *Registry) Register(s *Schema) error {
	if err := s.check(); err != nil {
		return err
	}
	if _, dup := r.schemas[s.Name]; dup {
		return eris.Errorf("schema: %q already registered", s.Name)
	}
	r.schemas[s.Name] = s
	return nil
}

// Lookup returns the named schema. An unknown name fails with the list
// of available schemas.
func (r *Registry) Lookup(name string) (*Schema, error) {
	s, ok := r.schemas[name]
	if !ok {
		return nil, eris.Errorf("schema: %q not found, available: %s",
			name, strings.Join(r.Names(), ", "))
	}
	return s, nil
}

// Names lists registered schema names in sorted order.
func (r *Registry) Names() []string {
	names := make([]string, 0, len(r.schemas))
	for name := range r.schemas {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Info summarizes a registered schema for display.
type Info struct {
	Name     string
	Columns  []string
	Required []string
}

// Describe returns a display summary of the named schema.
func (r *Registry) Describe(name string) (*Info, error) {
	s, err := r.Lookup(name)
	if err != nil {
		return nil, err
	}
	return &Info{
		Name:     s.Name,
		Columns:  s.ColumnNames(),
		Required: s.RequiredColumns(),
	}, nil
}

func floatPtr(f float64) *float64 { return &f }

// rangeString renders a column's numeric range for violation messages.
func rangeString(col Column) string {
	switch {
	case col.Min != nil && col.Max != nil:
		return fmt.Sprintf("[%g, %g]", *col.Min, *col.Max)
	case col.Min != nil:
		return fmt.Sprintf(">= %g", *col.Min)
	case col.Max != nil:
		return fmt.Sprintf("<= %g", *col.Max)
	}
	return ""
}
