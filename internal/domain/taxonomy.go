package domain

import (
	"fmt"
	"slices"
)

// Resolution is the canonical identity of a raw (parameter, unit) pair.
type Resolution struct {
	Parameter string
	Unit      string
}

// Resolver canonicalizes raw provider labels.
type Resolver interface {
	Canonicalize(rawName, rawUnit string) (Resolution, error)
}

// ParameterSpec declares one canonical parameter: its fixed output unit and
// every provider name and unit label known to mean it.
type ParameterSpec struct {
	Name  string
	Unit  string
	Names []string
	Units []string
}

// Taxonomy is an immutable lookup from raw labels to canonical parameters.
// Matching is exact: case and whitespace are significant.
type Taxonomy struct {
	order  []string
	specs  map[string]ParameterSpec
	byName map[string]string
	units  map[string]map[string]struct{}
}

// NewTaxonomy validates specs and builds the lookup tables. A raw name that
// maps to two canonical parameters is rejected.
func NewTaxonomy(specs []ParameterSpec) (*Taxonomy, error) {
	t := &Taxonomy{
		specs:  make(map[string]ParameterSpec, len(specs)),
		byName: make(map[string]string),
		units:  make(map[string]map[string]struct{}, len(specs)),
	}
	for _, s := range specs {
		if s.Name == "" || s.Unit == "" {
			return nil, fmt.Errorf("taxonomy: parameter %q needs a name and canonical unit", s.Name)
		}
		if _, dup := t.specs[s.Name]; dup {
			return nil, fmt.Errorf("taxonomy: parameter %q declared twice", s.Name)
		}
		s.Names = dedupe(s.Names)
		s.Units = dedupe(s.Units)
		for _, raw := range s.Names {
			if owner, ok := t.byName[raw]; ok {
				return nil, fmt.Errorf("taxonomy: raw name %q maps to both %q and %q", raw, owner, s.Name)
			}
			t.byName[raw] = s.Name
		}
		set := make(map[string]struct{}, len(s.Units))
		for _, u := range s.Units {
			set[u] = struct{}{}
		}
		t.units[s.Name] = set
		t.specs[s.Name] = s
		t.order = append(t.order, s.Name)
	}
	return t, nil
}

// Canonicalize resolves a raw name and unit. An unknown name yields
// ErrUnresolvedParameter; a known name with an unknown unit yields
// ErrUnresolvedUnit.
func (t *Taxonomy) Canonicalize(rawName, rawUnit string) (Resolution, error) {
	name, ok := t.byName[rawName]
	if !ok {
		return Resolution{}, fmt.Errorf("canonicalize %q: %w", rawName, ErrUnresolvedParameter)
	}
	if _, ok := t.units[name][rawUnit]; !ok {
		return Resolution{}, fmt.Errorf("canonicalize %q unit %q: %w", rawName, rawUnit, ErrUnresolvedUnit)
	}
	return Resolution{Parameter: name, Unit: t.specs[name].Unit}, nil
}

// Parameters returns the canonical parameter names in declaration order.
func (t *Taxonomy) Parameters() []string {
	return slices.Clone(t.order)
}

// Unit returns the canonical unit of a parameter.
func (t *Taxonomy) Unit(parameter string) (string, bool) {
	s, ok := t.specs[parameter]
	return s.Unit, ok
}

// Variants returns the raw name and unit labels of a canonical parameter.
func (t *Taxonomy) Variants(parameter string) (names, units []string, ok bool) {
	s, ok := t.specs[parameter]
	if !ok {
		return nil, nil, false
	}
	return slices.Clone(s.Names), slices.Clone(s.Units), true
}

// RawNames returns every raw name of the given canonical parameters, or of
// all parameters when none are given. Used to build store predicates.
func (t *Taxonomy) RawNames(parameters ...string) []string {
	if len(parameters) == 0 {
		parameters = t.order
	}
	var out []string
	for _, p := range parameters {
		out = append(out, t.specs[p].Names...)
	}
	return out
}

func dedupe(in []string) []string {
	seen := make(map[string]struct{}, len(in))
	out := make([]string, 0, len(in))
	for _, s := range in {
		if _, ok := seen[s]; ok {
			continue
		}
		seen[s] = struct{}{}
		out = append(out, s)
	}
	return out
}

// Resolve canonicalizes each observation and parses its value. Observations
// that fail are returned separately with the reason; they are never coerced.
func Resolve(obs []Observation, r Resolver) (kept []Observation, dropped map[DropReason]int) {
	dropped = make(map[DropReason]int)
	kept = make([]Observation, 0, len(obs))
	for _, o := range obs {
		res, err := r.Canonicalize(o.RawParameter, o.RawUnit)
		if err != nil {
			dropped[ReasonFor(err)]++
			continue
		}
		if o.Value == nil {
			v, err := ParseValue(o.RawValue)
			if err != nil {
				dropped[DropUnparsableValue]++
				continue
			}
			o.Value = v
		}
		o.Parameter = res.Parameter
		o.Unit = res.Unit
		kept = append(kept, o)
	}
	return kept, dropped
}
