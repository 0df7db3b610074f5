// Package token defines the immutable values that flow between ports.
package token

import (
	"errors"
	"fmt"
	"reflect"
	"sort"
	"strconv"
	"strings"
)

// Kind identifies the variant held by a Token.
type Kind int

// The kinds a Token can hold. Nil is the zero Token and means "absent".
const (
	Nil Kind = iota
	Bool
	Int
	Double
	String
	Array
	Record
	Object
)

var kindNames = [...]string{
	"nil", "boolean", "int", "double", "string", "array", "record", "object",
}

func (k Kind) String() string {
	if int(k) < len(kindNames) {
		return kindNames[k]
	}

	return "Kind(" + strconv.Itoa(int(k)) + ")"
}

// ErrWrongKind is returned by accessors asked for a variant the token does not
// hold.
var ErrWrongKind = errors.New("token: wrong kind")

// ErrNoSuchElement is returned for a missing record label or an array index
// out of range.
var ErrNoSuchElement = errors.New("token: no such element")

// A Token is an immutable tagged value. The zero Token has kind Nil.
type Token struct {
	kind Kind
	b    bool
	i    int64
	d    float64
	s    string
	arr  []Token
	rec  map[string]Token
	obj  any
}

// NewBool wraps a boolean.
func NewBool(v bool) Token { return Token{kind: Bool, b: v} }

// NewInt wraps an integer.
func NewInt(v int64) Token { return Token{kind: Int, i: v} }

// NewDouble wraps a float.
func NewDouble(v float64) Token { return Token{kind: Double, d: v} }

// NewString wraps a string.
func NewString(v string) Token { return Token{kind: String, s: v} }

// NewArray creates an array token. The elements are copied.
func NewArray(elems ...Token) Token {
	arr := make([]Token, len(elems))
	copy(arr, elems)

	return Token{kind: Array, arr: arr}
}

// NewRecord creates a record token. The map is copied.
func NewRecord(fields map[string]Token) Token {
	rec := make(map[string]Token, len(fields))
	for k, v := range fields {
		rec[k] = v
	}

	return Token{kind: Record, rec: rec}
}

// NewObject wraps an arbitrary value the engine does not interpret. The caller
// must not mutate the value afterward.
func NewObject(v any) Token { return Token{kind: Object, obj: v} }

// Kind returns the variant held.
func (t Token) Kind() Kind { return t.kind }

// IsNil reports whether t is the absent token.
func (t Token) IsNil() bool { return t.kind == Nil }

func (t Token) wrongKind(want Kind) error {
	return fmt.Errorf("%w: want %s, have %s", ErrWrongKind, want, t.kind)
}

// Bool returns the boolean value.
func (t Token) Bool() (bool, error) {
	if t.kind != Bool {
		return false, t.wrongKind(Bool)
	}

	return t.b, nil
}

// Int returns the integer value.
func (t Token) Int() (int64, error) {
	if t.kind != Int {
		return 0, t.wrongKind(Int)
	}

	return t.i, nil
}

// Double returns the float value. Integers are widened.
func (t Token) Double() (float64, error) {
	switch t.kind {
	case Double:
		return t.d, nil
	case Int:
		return float64(t.i), nil
	default:
		return 0, t.wrongKind(Double)
	}
}

// Str returns the string value.
func (t Token) Str() (string, error) {
	if t.kind != String {
		return "", t.wrongKind(String)
	}

	return t.s, nil
}

// Object returns the wrapped value.
func (t Token) Object() (any, error) {
	if t.kind != Object {
		return nil, t.wrongKind(Object)
	}

	return t.obj, nil
}

// Len returns the number of elements of an array or fields of a record, and
// zero for everything else.
func (t Token) Len() int {
	switch t.kind {
	case Array:
		return len(t.arr)
	case Record:
		return len(t.rec)
	default:
		return 0
	}
}

// At returns the i-th element of an array token.
func (t Token) At(i int) (Token, error) {
	if t.kind != Array {
		return Token{}, t.wrongKind(Array)
	}

	if i < 0 || i >= len(t.arr) {
		return Token{}, fmt.Errorf("%w: index %d of %d",
			ErrNoSuchElement, i, len(t.arr))
	}

	return t.arr[i], nil
}

// Get returns the field of a record token.
func (t Token) Get(label string) (Token, error) {
	if t.kind != Record {
		return Token{}, t.wrongKind(Record)
	}

	v, ok := t.rec[label]
	if !ok {
		return Token{}, fmt.Errorf("%w: label %q", ErrNoSuchElement, label)
	}

	return v, nil
}

// Labels returns the sorted labels of a record token.
func (t Token) Labels() []string {
	labels := make([]string, 0, len(t.rec))
	for k := range t.rec {
		labels = append(labels, k)
	}

	sort.Strings(labels)

	return labels
}

// Equal compares two tokens structurally. Int and Double tokens are never
// equal to each other. Objects compare with reflect.DeepEqual.
func (t Token) Equal(o Token) bool {
	if t.kind != o.kind {
		return false
	}

	switch t.kind {
	case Nil:
		return true
	case Bool:
		return t.b == o.b
	case Int:
		return t.i == o.i
	case Double:
		return t.d == o.d
	case String:
		return t.s == o.s
	case Array:
		return arraysEqual(t.arr, o.arr)
	case Record:
		return recordsEqual(t.rec, o.rec)
	case Object:
		return reflect.DeepEqual(t.obj, o.obj)
	}

	return false
}

func arraysEqual(a, b []Token) bool {
	if len(a) != len(b) {
		return false
	}

	for i := range a {
		if !a[i].Equal(b[i]) {
			return false
		}
	}

	return true
}

func recordsEqual(a, b map[string]Token) bool {
	if len(a) != len(b) {
		return false
	}

	for k, v := range a {
		w, ok := b[k]
		if !ok || !v.Equal(w) {
			return false
		}
	}

	return true
}

// String formats the token in the expression syntax used by model files:
// arrays as {1, 2}, records as {a=1, b="x"}.
func (t Token) String() string {
	switch t.kind {
	case Nil:
		return "nil"
	case Bool:
		return strconv.FormatBool(t.b)
	case Int:
		return strconv.FormatInt(t.i, 10)
	case Double:
		s := strconv.FormatFloat(t.d, 'g', -1, 64)
		if !strings.ContainsAny(s, ".eEnN") {
			s += ".0"
		}

		return s
	case String:
		return strconv.Quote(t.s)
	case Array:
		parts := make([]string, len(t.arr))
		for i, e := range t.arr {
			parts[i] = e.String()
		}

		return "{" + strings.Join(parts, ", ") + "}"
	case Record:
		labels := t.Labels()
		parts := make([]string, len(labels))

		for i, l := range labels {
			parts[i] = l + "=" + t.rec[l].String()
		}

		return "{" + strings.Join(parts, ", ") + "}"
	case Object:
		return fmt.Sprintf("object(%v)", t.obj)
	}

	return "?"
}
