package decode

import (
	"errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/chosenoffset/procview/pkg/procview/parser"
)

// Kind classifies a decode failure. The set is closed. Kind implements
// error so that errors.Is(err, decode.InvalidBool) matches any *Error of
// that kind.
type Kind int

const (
	GrammarMismatch Kind = iota + 1
	MissingSeparator
	ExpectedInteger
	InvalidBool
	TrailingCharacters
	ShapeMismatch
	EOF
	MissingField
	ExpectedFloat
	UnknownState
)

func (k Kind) String() string {
	switch k {
	case GrammarMismatch:
		return "grammar mismatch"
	case MissingSeparator:
		return "missing separator"
	case ExpectedInteger:
		return "expected integer"
	case InvalidBool:
		return "invalid bool"
	case TrailingCharacters:
		return "trailing characters"
	case ShapeMismatch:
		return "shape mismatch"
	case EOF:
		return "unexpected end of input"
	case MissingField:
		return "missing field"
	case ExpectedFloat:
		return "expected float"
	case UnknownState:
		return "unknown process state"
	default:
		return fmt.Sprintf("decode kind %d", int(k))
	}
}

func (k Kind) Error() string { return k.String() }

// Error is a decode failure. It holds copies of the offending text, never
// references into the input.
type Error struct {
	Kind   Kind
	Offset int    // byte offset into the input, -1 if unknown
	Key    string // source key or positional field name, if any
	Text   string // offending text, truncated
	Err    error  // underlying parser error, if any
}

func (e *Error) Error() string {
	var b strings.Builder
	b.WriteString("decode: ")
	b.WriteString(e.Kind.String())
	if e.Key != "" {
		fmt.Fprintf(&b, " for %q", e.Key)
	}
	if e.Text != "" {
		fmt.Fprintf(&b, ": %q", e.Text)
	}
	if e.Offset >= 0 {
		fmt.Fprintf(&b, " at offset %d", e.Offset)
	}
	if e.Err != nil {
		fmt.Fprintf(&b, ": %v", e.Err)
	}
	return b.String()
}

func (e *Error) Is(target error) bool {
	k, ok := target.(Kind)
	return ok && k == e.Kind
}

func (e *Error) Unwrap() error { return e.Err }

// KindOf returns the Kind of a decode failure, or 0 if err is not one.
func KindOf(err error) Kind {
	var de *Error
	if errors.As(err, &de) {
		return de.Kind
	}
	return 0
}

const maxErrorText = 64

func newError(kind Kind, offset int, key, text string) *Error {
	if len(text) > maxErrorText {
		text = text[:maxErrorText] + "..."
	}
	return &Error{Kind: kind, Offset: offset, Key: strings.Clone(key), Text: strings.Clone(text)}
}

// fromParser maps tokenizer failures onto decode kinds, shifting offsets by
// base when the tokenized text was a slice of a larger document.
func fromParser(err error, base int) error {
	var ge *parser.GrammarError
	if errors.As(err, &ge) {
		return &Error{Kind: GrammarMismatch, Offset: base + ge.Offset, Err: err}
	}
	var se *parser.ShapeError
	if errors.As(err, &se) {
		return &Error{Kind: ShapeMismatch, Offset: -1, Err: err}
	}
	return err
}

// SchemaError reports a Go type that cannot be bound to a schema. It is a
// programming error, not an input error.
type SchemaError struct {
	Type   reflect.Type
	Field  string
	Reason string
}

func (e *SchemaError) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("decode: cannot bind %v.%s: %s", e.Type, e.Field, e.Reason)
	}
	return fmt.Sprintf("decode: cannot bind %v: %s", e.Type, e.Reason)
}
