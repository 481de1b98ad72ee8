package parser

import "regexp"

// Grammar is one of the fixed token grammars of the procfs text family.
// Grammars are immutable and safe to share between goroutines; the set is
// closed, callers pick KeyValue or Positional.
type Grammar interface {
	Name() string
	tokenize(input string, emit func(Token)) error
}

// Line rules, compiled once per process.
var (
	// key, separator and value of a "key: value" line; indentation is not
	// part of the key
	entryLine = regexp.MustCompile(`^[ \t]*([^:\s][^:\r\n]*?)[ \t]*(:)[ \t]*(.*?)[ \t\r]*$`)
	// a key with no separator; the decoder reports it
	bareKeyLine = regexp.MustCompile(`^[ \t]*([^:\s][^:\r\n]*?)[ \t\r]*$`)
	blankLine   = regexp.MustCompile(`^[ \t\r]*$`)

	// "<digits> (" opening a positional record
	positionalHead = regexp.MustCompile(`^(\d+)[ \t]+\(`)

	// a run of blank lines delimiting sections
	sectionDelimiter = regexp.MustCompile(`\n(?:[ \t\r]*\n)+`)
)

// KeyValue recognizes "key: value" lines, blank-line section breaks and an
// explicit end of input.
var KeyValue Grammar = keyValueGrammar{}

type keyValueGrammar struct{}

func (keyValueGrammar) Name() string { return "key-value" }

// Positional returns the grammar for "<int> (<text>) f1 ... fn" lines with
// exactly n fields after the parenthesized text.
func Positional(n int) Grammar {
	return positionalGrammar{fields: n}
}

type positionalGrammar struct {
	fields int
}

func (positionalGrammar) Name() string { return "positional" }
