package ir

import "strings"

// TypeKind distinguishes the type shapes the analyses care about. Anything
// else is Opaque.
type TypeKind string

const (
	KindAdt    TypeKind = "adt"
	KindRef    TypeKind = "ref"
	KindSlice  TypeKind = "slice"
	KindTuple  TypeKind = "tuple"
	KindBool   TypeKind = "bool"
	KindInt    TypeKind = "int"
	KindUint   TypeKind = "uint"
	KindArray  TypeKind = "array"
	KindUnit   TypeKind = "unit"
	KindOpaque TypeKind = "opaque"
)

// Type is a structural rendering of a compiler type: an ADT identified by
// its canonical def path plus generic arguments, or a reference/slice/array
// wrapper around another type.
type Type struct {
	Kind TypeKind `json:"kind"`
	// Path is the canonical def path of an ADT, e.g.
	// "anchor_lang::prelude::Account".
	Path string  `json:"path,omitempty"`
	Args []*Type `json:"args,omitempty"`
	// Elem is the referent of ref/slice/array types.
	Elem *Type `json:"elem,omitempty"`
}

// Peel removes reference wrappers transparently.
func (t *Type) Peel() *Type {
	for t != nil && t.Kind == KindRef {
		t = t.Elem
	}
	return t
}

// IsAdt reports whether the peeled type is an ADT.
func (t *Type) IsAdt() bool {
	t = t.Peel()
	return t != nil && t.Kind == KindAdt
}

// IsBool reports whether the peeled type is bool.
func (t *Type) IsBool() bool {
	t = t.Peel()
	return t != nil && t.Kind == KindBool
}

// AdtPath returns the canonical path of the peeled ADT, or "".
func (t *Type) AdtPath() string {
	t = t.Peel()
	if t == nil || t.Kind != KindAdt {
		return ""
	}
	return t.Path
}

// Arg returns the i-th generic argument of the peeled ADT, or nil.
func (t *Type) Arg(i int) *Type {
	t = t.Peel()
	if t == nil || i >= len(t.Args) {
		return nil
	}
	return t.Args[i]
}

// Same compares two types by ADT identity: two ADTs are the same type when
// their def paths are equal, regardless of generic arguments. Non-ADT types
// compare structurally.
func (t *Type) Same(other *Type) bool {
	a, b := t.Peel(), other.Peel()
	switch {
	case a == nil || b == nil:
		return a == b
	case a.Kind == KindAdt && b.Kind == KindAdt:
		return a.Path == b.Path
	case a.Kind != b.Kind:
		return false
	case a.Kind == KindSlice || a.Kind == KindArray:
		return a.Elem.Same(b.Elem)
	default:
		return a.Path == b.Path
	}
}

// PathEndsWith reports whether the peeled ADT path ends with the given
// suffix on a `::` boundary (or equals it).
func (t *Type) PathEndsWith(suffix string) bool {
	p := t.AdtPath()
	return p == suffix || strings.HasSuffix(p, "::"+suffix)
}

// PathContains reports whether the peeled ADT path contains the substring.
func (t *Type) PathContains(sub string) bool {
	return strings.Contains(t.AdtPath(), sub)
}

func (t *Type) String() string {
	t = t.Peel()
	if t == nil {
		return "<unknown>"
	}
	switch t.Kind {
	case KindAdt:
		if len(t.Args) == 0 {
			return t.Path
		}
		var b strings.Builder
		b.WriteString(t.Path)
		b.WriteByte('<')
		for i, a := range t.Args {
			if i > 0 {
				b.WriteString(", ")
			}
			b.WriteString(a.String())
		}
		b.WriteByte('>')
		return b.String()
	case KindSlice:
		return "[" + t.Elem.String() + "]"
	case KindArray:
		return "[" + t.Elem.String() + "; _]"
	case KindBool:
		return "bool"
	case KindUnit:
		return "()"
	case KindInt, KindUint:
		if t.Path != "" {
			return t.Path
		}
		return string(t.Kind)
	default:
		return string(t.Kind)
	}
}

// Adt builds an ADT type from a path and generic arguments. Test and driver
// helper.
func Adt(path string, args ...*Type) *Type {
	return &Type{Kind: KindAdt, Path: path, Args: args}
}

// RefTo wraps a type in a reference.
func RefTo(t *Type) *Type { return &Type{Kind: KindRef, Elem: t} }

// SliceOf wraps a type in a slice.
func SliceOf(t *Type) *Type { return &Type{Kind: KindSlice, Elem: t} }
