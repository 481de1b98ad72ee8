package decode

import (
	"io"
	"log/slog"
	"reflect"
	"strings"
	"time"

	"github.com/chosenoffset/procview/pkg/procview/parser"
)

// Unmarshal decodes procfs text into v, which must be a non-nil pointer to a
// struct, a slice of structs or a primitive. The target is only written
// when the whole input decodes; on error v is left untouched.
func Unmarshal(data []byte, v any) error {
	return unmarshal(string(data), v, nil)
}

// UnmarshalString is Unmarshal for text already held in a string.
func UnmarshalString(input string, v any) error {
	return unmarshal(input, v, nil)
}

// Decode decodes data into a new T.
func Decode[T any](data []byte) (T, error) {
	var out T
	err := unmarshal(string(data), &out, nil)
	return out, err
}

// Decoder reads a whole procfs document from a reader and decodes it.
type Decoder struct {
	r   io.Reader
	log *slog.Logger
}

// Option configures a Decoder.
type Option func(*Decoder)

// WithLogger makes the decoder log at debug level. A nil logger disables
// logging, which is the default.
func WithLogger(l *slog.Logger) Option {
	return func(d *Decoder) {
		if l != nil {
			l = l.With(slog.String("component", "decode"))
		}
		d.log = l
	}
}

func NewDecoder(r io.Reader, opts ...Option) *Decoder {
	d := &Decoder{r: r}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Decode reads r to the end and decodes it into v.
func (d *Decoder) Decode(v any) error {
	data, err := io.ReadAll(d.r)
	if err != nil {
		return err
	}
	return unmarshal(string(data), v, d.log)
}

func unmarshal(input string, v any, log *slog.Logger) error {
	rv := reflect.ValueOf(v)
	if rv.Kind() != reflect.Pointer || rv.IsNil() {
		return &SchemaError{Type: reflect.TypeOf(v), Reason: "target must be a non-nil pointer"}
	}
	t := rv.Elem().Type()
	s, err := SchemaOf(t)
	if err != nil {
		return err
	}

	start := time.Now()
	tmp := reflect.New(t).Elem()
	if t.Kind() == reflect.Slice {
		tmp.Set(reflect.MakeSlice(t, 0, 0))
	}
	st := &state{log: log}
	if err := st.document(input, s, valueVisitor{tmp}); err != nil {
		st.debug("decode failed", slog.String("type", t.String()), slog.Any("error", err))
		return err
	}
	rv.Elem().Set(tmp)
	st.debug("decoded",
		slog.String("type", t.String()),
		slog.Int("bytes", len(input)),
		slog.Duration("elapsed", time.Since(start)))
	return nil
}

// DecodeDocument tokenizes input according to the shape of s and drives v
// through it. The whole input must be consumed.
func DecodeDocument(input string, s *Schema, v Visitor) error {
	return (&state{}).document(input, s, v)
}

// DecodeStream decodes one map record from an already tokenized stream and
// requires the stream to end after it.
func DecodeStream(ts *parser.TokenStream, s *Schema, v Visitor) error {
	if s.Shape != ShapeMap {
		return &SchemaError{Type: s.Type, Reason: "token streams decode into maps, got " + s.Shape.String()}
	}
	st := &state{}
	if err := st.record(ts, s, v, 0); err != nil {
		return err
	}
	return trailing(ts, 0)
}

type state struct {
	log *slog.Logger
}

func (st *state) debug(msg string, args ...any) {
	if st.log != nil {
		st.log.Debug(msg, args...)
	}
}

func (st *state) document(input string, s *Schema, v Visitor) error {
	switch s.Shape {
	case ShapePrimitive:
		return st.primitive(input, s, v)
	case ShapeMap:
		ts, err := parser.Tokenize(parser.KeyValue, input)
		if err != nil {
			return fromParser(err, 0)
		}
		if err := st.record(ts, s, v, 0); err != nil {
			return err
		}
		return trailing(ts, 0)
	case ShapeSequence:
		return st.sequence(input, s, v)
	}
	return &SchemaError{Type: s.Type, Reason: "unknown shape " + s.Shape.String()}
}

// primitive decodes the whole trimmed input as one value. The input must be
// a single line.
func (st *state) primitive(input string, s *Schema, v Visitor) error {
	text := strings.TrimSpace(input)
	offset := strings.Index(input, text)
	if text == "" {
		offset = len(input)
	}
	if off := strings.IndexAny(text, "\r\n"); off >= 0 {
		return newError(TrailingCharacters, offset+off, "", strings.TrimSpace(text[off:]))
	}
	return decodePrimitive(s.Rule, text, offset, "", v)
}

// sequence partitions input at blank-line runs and decodes each part as one
// element record.
func (st *state) sequence(input string, s *Schema, v Visitor) error {
	if s.Elem == nil || s.Elem.Shape != ShapeMap {
		return &SchemaError{Type: s.Type, Reason: "sequence elements must be maps"}
	}
	sections := parser.SplitSections(input)
	for i, sec := range sections {
		ts, err := parser.Tokenize(parser.KeyValue, sec.Text)
		if err != nil {
			return fromParser(err, sec.Offset)
		}
		ev, err := v.VisitElem()
		if err != nil {
			return err
		}
		if err := st.record(ts, s.Elem, ev, sec.Offset); err != nil {
			return err
		}
		if err := trailing(ts, sec.Offset); err != nil {
			return err
		}
		st.debug("decoded element", slog.Int("index", i), slog.Int("offset", sec.Offset))
	}
	return nil
}

// record decodes key: value lines until a section break or the end of
// input, neither of which is consumed. Offsets are reported relative to the
// enclosing document by adding base.
func (st *state) record(ts *parser.TokenStream, s *Schema, v Visitor, base int) error {
	seen := make([]bool, len(s.Fields))
	var openSeen map[string]bool
	if s.Open {
		openSeen = make(map[string]bool)
	}

	for {
		tok, ok := ts.Peek()
		if !ok {
			return newError(EOF, base+len(ts.Input()), "", "")
		}

		switch tok.Kind {
		case parser.EOI, parser.SECTIONBREAK:
			return missing(s, seen, base+tok.Start)

		case parser.KEY:
			ts.Next()
			key := ts.Text(tok)

			sep, ok := ts.Next()
			if !ok {
				return newError(EOF, base+tok.End, key, "")
			}
			if sep.Kind != parser.SEPARATOR {
				if sep.Kind == parser.EOI {
					return newError(TrailingCharacters, base+tok.Start, "", key)
				}
				return newError(MissingSeparator, base+tok.End, key, "")
			}

			val, ok := ts.Next()
			if !ok || val.Kind != parser.VALUE {
				return newError(EOF, base+sep.End, key, "")
			}

			f, idx, known := s.Lookup(key)
			if !known {
				if !s.Open {
					st.debug("skipping unknown key", slog.String("key", key))
					continue
				}
				if openSeen[key] {
					continue
				}
				openSeen[key] = true
				f = &Field{Name: key, Key: key, Rule: RuleString, Optional: true}
			} else {
				if seen[idx] {
					st.debug("skipping repeated key", slog.String("key", key))
					continue
				}
				seen[idx] = true
			}

			fv, err := v.VisitField(f)
			if err != nil {
				return err
			}
			if err := decodePrimitive(f.Rule, ts.Text(val), base+val.Start, f.Key, fv); err != nil {
				return err
			}

		default:
			return newError(GrammarMismatch, base+tok.Start, "", ts.Text(tok))
		}
	}
}

func missing(s *Schema, seen []bool, offset int) error {
	for i := range s.Fields {
		if !s.Fields[i].Optional && !seen[i] {
			return newError(MissingField, offset, s.Fields[i].Key, "")
		}
	}
	return nil
}

// trailing requires the next token to be EOI.
func trailing(ts *parser.TokenStream, base int) error {
	tok, ok := ts.Peek()
	if !ok || tok.Kind == parser.EOI {
		return nil
	}
	rest := strings.TrimSpace(ts.Input()[tok.Start:])
	return newError(TrailingCharacters, base+tok.Start, "", rest)
}
