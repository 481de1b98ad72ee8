package decode

import (
	"reflect"
	"strings"
)

// Visitor receives decoded values. The decode core calls exactly one Visit
// method per value; VisitField and VisitElem return the visitor for the
// nested value. Returning a Kind from a Visit method reports that value as
// malformed, anything else aborts the decode as is.
type Visitor interface {
	VisitUint(v uint64) error
	VisitInt(v int64) error
	VisitFloat(v float64) error
	VisitBool(v bool) error
	VisitString(v string) error
	VisitWords(v []string) error
	VisitField(f *Field) (Visitor, error)
	VisitElem() (Visitor, error)
}

// valueVisitor writes into a settable reflect.Value.
type valueVisitor struct {
	v reflect.Value
}

func (vv valueVisitor) mismatch(what string) error {
	return &SchemaError{Type: vv.v.Type(), Reason: "cannot store " + what}
}

func (vv valueVisitor) VisitUint(n uint64) error {
	switch vv.v.Kind() {
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		if vv.v.OverflowUint(n) {
			return ExpectedInteger
		}
		vv.v.SetUint(n)
		return nil
	}
	return vv.mismatch("unsigned integer")
}

func (vv valueVisitor) VisitInt(n int64) error {
	switch vv.v.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		if vv.v.OverflowInt(n) {
			return ExpectedInteger
		}
		vv.v.SetInt(n)
		return nil
	}
	return vv.mismatch("integer")
}

func (vv valueVisitor) VisitFloat(f float64) error {
	switch vv.v.Kind() {
	case reflect.Float32, reflect.Float64:
		if vv.v.OverflowFloat(f) {
			return ExpectedFloat
		}
		vv.v.SetFloat(f)
		return nil
	}
	return vv.mismatch("float")
}

func (vv valueVisitor) VisitBool(b bool) error {
	if vv.v.Kind() != reflect.Bool {
		return vv.mismatch("bool")
	}
	vv.v.SetBool(b)
	return nil
}

func (vv valueVisitor) VisitString(s string) error {
	if vv.v.Kind() != reflect.String {
		return vv.mismatch("string")
	}
	vv.v.SetString(s)
	return nil
}

func (vv valueVisitor) VisitWords(words []string) error {
	if vv.v.Kind() != reflect.Slice || vv.v.Type().Elem().Kind() != reflect.String {
		return vv.mismatch("word list")
	}
	out := reflect.MakeSlice(vv.v.Type(), len(words), len(words))
	for i, w := range words {
		out.Index(i).SetString(w)
	}
	vv.v.Set(out)
	return nil
}

func (vv valueVisitor) VisitField(f *Field) (Visitor, error) {
	if vv.v.Kind() != reflect.Struct || f.Index == nil {
		return nil, vv.mismatch("field " + f.Name)
	}
	fv := vv.v.FieldByIndex(f.Index)
	if fv.Kind() == reflect.Pointer {
		fv.Set(reflect.New(fv.Type().Elem()))
		fv = fv.Elem()
	}
	return valueVisitor{fv}, nil
}

func (vv valueVisitor) VisitElem() (Visitor, error) {
	if vv.v.Kind() != reflect.Slice {
		return nil, vv.mismatch("sequence element")
	}
	et := vv.v.Type().Elem()
	vv.v.Set(reflect.Append(vv.v, reflect.Zero(et)))
	ev := vv.v.Index(vv.v.Len() - 1)
	if et.Kind() == reflect.Pointer {
		ev.Set(reflect.New(et.Elem()))
		ev = ev.Elem()
	}
	return valueVisitor{ev}, nil
}

// Entry is one key: value pair of an untyped record.
type Entry struct {
	Key   string `json:"key" yaml:"key"`
	Value string `json:"value" yaml:"value"`
}

// Record is an untyped record in source order, first occurrence of each
// key only.
type Record []Entry

// Get returns the value of key.
func (r Record) Get(key string) (string, bool) {
	for _, e := range r {
		if e.Key == key {
			return e.Value, true
		}
	}
	return "", false
}

// openMap binds every key of a record as an optional string.
var openMap = &Schema{Shape: ShapeMap, Open: true, byKey: map[string]int{}}

// Records decodes input without a typed target. shape must be ShapeMap,
// which yields one record, or ShapeSequence.
func Records(input string, shape Shape) ([]Record, error) {
	var s *Schema
	switch shape {
	case ShapeMap:
		s = openMap
	case ShapeSequence:
		s = Sequence(openMap)
	default:
		return nil, &SchemaError{Reason: "records need a map or sequence shape, got " + shape.String()}
	}

	rv := &recordsVisitor{}
	if err := DecodeDocument(input, s, rv); err != nil {
		return nil, err
	}
	if shape == ShapeMap {
		return []Record{rv.current}, nil
	}
	if rv.out == nil {
		rv.out = []Record{}
	}
	return rv.out, nil
}

type recordsVisitor struct {
	noValues
	out     []Record
	current Record
}

func (r *recordsVisitor) VisitField(f *Field) (Visitor, error) {
	return &entryVisitor{rec: &r.current, key: f.Key}, nil
}

func (r *recordsVisitor) VisitElem() (Visitor, error) {
	r.out = append(r.out, nil)
	return &elemRecord{parent: r, idx: len(r.out) - 1}, nil
}

type elemRecord struct {
	noValues
	parent *recordsVisitor
	idx    int
}

func (e *elemRecord) VisitField(f *Field) (Visitor, error) {
	return &entryVisitor{rec: &e.parent.out[e.idx], key: f.Key}, nil
}

func (e *elemRecord) VisitElem() (Visitor, error) {
	return nil, &SchemaError{Reason: "nested sequences are not supported"}
}

type entryVisitor struct {
	noValues
	rec *Record
	key string
}

func (e *entryVisitor) VisitString(s string) error {
	*e.rec = append(*e.rec, Entry{Key: strings.Clone(e.key), Value: s})
	return nil
}

func (e *entryVisitor) VisitField(*Field) (Visitor, error) {
	return nil, &SchemaError{Reason: "record values are not maps"}
}

func (e *entryVisitor) VisitElem() (Visitor, error) {
	return nil, &SchemaError{Reason: "record values are not sequences"}
}

// noValues rejects every primitive; embed it and override what applies.
type noValues struct{}

func (noValues) VisitUint(uint64) error    { return &SchemaError{Reason: "unexpected unsigned integer"} }
func (noValues) VisitInt(int64) error      { return &SchemaError{Reason: "unexpected integer"} }
func (noValues) VisitFloat(float64) error  { return &SchemaError{Reason: "unexpected float"} }
func (noValues) VisitBool(bool) error      { return &SchemaError{Reason: "unexpected bool"} }
func (noValues) VisitString(string) error  { return &SchemaError{Reason: "unexpected string"} }
func (noValues) VisitWords([]string) error { return &SchemaError{Reason: "unexpected word list"} }
