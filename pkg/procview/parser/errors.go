package parser

import "fmt"

// GrammarError reports input that no rule of a grammar matches. Tokenizing
// stops at the first such byte; there is no recovery.
type GrammarError struct {
	Grammar string
	Offset  int
	Line    int
	Reason  string
}

func (e *GrammarError) Error() string {
	return fmt.Sprintf("%s grammar: line %d (offset %d): %s", e.Grammar, e.Line, e.Offset, e.Reason)
}

// ShapeError reports a positional line whose field count differs from the
// count fixed by the grammar.
type ShapeError struct {
	Want int
	Got  int
}

func (e *ShapeError) Error() string {
	return fmt.Sprintf("positional grammar: expected %d fields after the text field, got %d", e.Want, e.Got)
}
