package decode

import (
	"reflect"
	"strings"
	"sync"
)

// Rule is the primitive decode rule bound to a field.
type Rule uint8

const (
	RuleUint   Rule = iota + 1 // leading digits, unit suffix discarded
	RuleInt                    // optional '-', then as RuleUint
	RuleFloat                  // leading digits[.digits], suffix discarded
	RuleBool                   // "yes" or "no"
	RuleString                 // verbatim
	RuleWords                  // whitespace-separated list
)

var ruleNames = map[string]Rule{
	"uint":   RuleUint,
	"int":    RuleInt,
	"float":  RuleFloat,
	"bool":   RuleBool,
	"string": RuleString,
	"words":  RuleWords,
}

func (r Rule) String() string {
	for name, rule := range ruleNames {
		if rule == r {
			return name
		}
	}
	return "unknown"
}

// Shape selects how the decode core walks the input.
type Shape uint8

const (
	ShapePrimitive Shape = iota // the whole input is one value
	ShapeMap                    // one record of key: value lines
	ShapeSequence               // blank-line-delimited records
)

func (s Shape) String() string {
	switch s {
	case ShapePrimitive:
		return "primitive"
	case ShapeMap:
		return "map"
	case ShapeSequence:
		return "sequence"
	default:
		return "unknown"
	}
}

// Field binds one source key to a target field.
type Field struct {
	Name     string // target field name
	Key      string // source key, defaults to Name
	Rule     Rule
	Optional bool
	Index    []int // reflect field index, nil for hand-built schemas
}

// Schema describes a decode target as a tagged variant: a primitive rule,
// a map of fields or a sequence of elements. Schemas are read-only once
// built and may be shared between goroutines.
type Schema struct {
	Shape  Shape
	Rule   Rule    // ShapePrimitive
	Fields []Field // ShapeMap
	Elem   *Schema // ShapeSequence
	Open   bool    // ShapeMap: report unknown keys as optional string fields
	Type   reflect.Type

	byKey map[string]int
}

// Primitive returns a schema for a single value.
func Primitive(r Rule) *Schema {
	return &Schema{Shape: ShapePrimitive, Rule: r}
}

// Map returns a record schema. When two fields share a key the first one
// declared is used.
func Map(fields ...Field) *Schema {
	s := &Schema{Shape: ShapeMap, Fields: fields}
	s.index()
	return s
}

// Sequence returns a schema for blank-line-delimited records of elem.
func Sequence(elem *Schema) *Schema {
	return &Schema{Shape: ShapeSequence, Elem: elem}
}

func (s *Schema) index() {
	s.byKey = make(map[string]int, len(s.Fields))
	for i := range s.Fields {
		if s.Fields[i].Key == "" {
			s.Fields[i].Key = s.Fields[i].Name
		}
		if _, dup := s.byKey[s.Fields[i].Key]; !dup {
			s.byKey[s.Fields[i].Key] = i
		}
	}
}

// Lookup returns the field bound to a source key.
func (s *Schema) Lookup(key string) (*Field, int, bool) {
	i, ok := s.byKey[key]
	if !ok {
		return nil, -1, false
	}
	return &s.Fields[i], i, true
}

var schemaCache sync.Map // reflect.Type -> *Schema

// SchemaOf returns the schema bound to t, building and caching it on first
// use. Struct fields are bound with the proc tag:
//
//	Total   uint64   `proc:"MemTotal"`
//	MHz     float64  `proc:"cpu MHz"`
//	Zswap   uint64   `proc:"Zswap,optional"`
//	Flags   []string `proc:"flags,words"`
//	Ignored string   `proc:"-"`
//
// Untagged exported fields use their Go name as key. Pointer fields are
// optional. The rule defaults from the Go kind and may be named explicitly.
func SchemaOf(t reflect.Type) (*Schema, error) {
	if s, ok := schemaCache.Load(t); ok {
		return s.(*Schema), nil
	}
	s, err := buildSchema(t)
	if err != nil {
		return nil, err
	}
	actual, _ := schemaCache.LoadOrStore(t, s)
	return actual.(*Schema), nil
}

// SchemaFor is SchemaOf for a type parameter.
func SchemaFor[T any]() (*Schema, error) {
	return SchemaOf(reflect.TypeOf((*T)(nil)).Elem())
}

// MustSchema is like SchemaFor but panics on a binding error. It is meant
// for package-level schema declarations.
func MustSchema[T any]() *Schema {
	s, err := SchemaFor[T]()
	if err != nil {
		panic(err)
	}
	return s
}

func buildSchema(t reflect.Type) (*Schema, error) {
	switch t.Kind() {
	case reflect.Struct:
		return buildMap(t)
	case reflect.Slice:
		elem := t.Elem()
		if elem.Kind() == reflect.Pointer {
			elem = elem.Elem()
		}
		if elem.Kind() == reflect.Struct {
			es, err := SchemaOf(elem)
			if err != nil {
				return nil, err
			}
			s := Sequence(es)
			s.Type = t
			return s, nil
		}
	}
	rule, ok := defaultRule(t)
	if !ok {
		return nil, &SchemaError{Type: t, Reason: "unsupported target type"}
	}
	s := Primitive(rule)
	s.Type = t
	return s, nil
}

func buildMap(t reflect.Type) (*Schema, error) {
	var fields []Field
	for i := 0; i < t.NumField(); i++ {
		sf := t.Field(i)
		if !sf.IsExported() {
			continue
		}
		tag := sf.Tag.Get("proc")
		if tag == "-" {
			continue
		}

		f := Field{Name: sf.Name, Key: sf.Name, Index: sf.Index}
		ft := sf.Type
		if ft.Kind() == reflect.Pointer {
			f.Optional = true
			ft = ft.Elem()
		}

		rule, ok := defaultRule(ft)
		if tag != "" {
			parts := strings.Split(tag, ",")
			if parts[0] != "" {
				f.Key = parts[0]
			}
			for _, opt := range parts[1:] {
				opt = strings.TrimSpace(opt)
				if opt == "optional" {
					f.Optional = true
					continue
				}
				named, known := ruleNames[opt]
				if !known {
					return nil, &SchemaError{Type: t, Field: sf.Name, Reason: "unknown tag option " + opt}
				}
				if !ruleFits(named, ft) {
					return nil, &SchemaError{Type: t, Field: sf.Name, Reason: "rule " + opt + " cannot decode into " + ft.String()}
				}
				rule, ok = named, true
			}
		}
		if !ok {
			return nil, &SchemaError{Type: t, Field: sf.Name, Reason: "unsupported field type " + ft.String()}
		}
		f.Rule = rule
		fields = append(fields, f)
	}

	s := Map(fields...)
	s.Type = t
	return s, nil
}

func defaultRule(t reflect.Type) (Rule, bool) {
	switch t.Kind() {
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return RuleUint, true
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return RuleInt, true
	case reflect.Float32, reflect.Float64:
		return RuleFloat, true
	case reflect.Bool:
		return RuleBool, true
	case reflect.String:
		return RuleString, true
	case reflect.Slice:
		if t.Elem().Kind() == reflect.String {
			return RuleWords, true
		}
	}
	return 0, false
}

func ruleFits(r Rule, t reflect.Type) bool {
	switch r {
	case RuleUint:
		switch t.Kind() {
		case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
			return true
		}
	case RuleInt:
		switch t.Kind() {
		case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
			return true
		}
	case RuleFloat:
		return t.Kind() == reflect.Float32 || t.Kind() == reflect.Float64
	case RuleBool:
		return t.Kind() == reflect.Bool
	case RuleString:
		return t.Kind() == reflect.String
	case RuleWords:
		return t.Kind() == reflect.Slice && t.Elem().Kind() == reflect.String
	}
	return false
}
