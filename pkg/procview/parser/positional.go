package parser

import "strings"

func (g positionalGrammar) tokenize(input string, emit func(Token)) error {
	line := strings.TrimRight(input, "\r\n")
	if i := strings.IndexByte(line, '\n'); i >= 0 {
		return &GrammarError{Grammar: "positional", Offset: i, Line: 1, Reason: "input spans more than one line"}
	}
	if off := illegalByte(line); off >= 0 {
		return &GrammarError{Grammar: "positional", Offset: off, Line: 1, Reason: "control byte in line"}
	}

	m := positionalHead.FindStringSubmatchIndex(line)
	if m == nil {
		return &GrammarError{Grammar: "positional", Offset: 0, Line: 1, Reason: "expected <integer> (<text>)"}
	}
	open := m[1] // just past '('

	// The text field ends at the last ')' on the line. The kernel truncates
	// comm but never escapes it, so nothing after it can be a ')'.
	closing := strings.LastIndexByte(line, ')')
	if closing < open {
		return &GrammarError{Grammar: "positional", Offset: open - 1, Line: 1, Reason: "unterminated text field"}
	}
	rest := closing + 1
	if rest < len(line) && !isSpace(line[rest]) {
		return &GrammarError{Grammar: "positional", Offset: rest, Line: 1, Reason: "expected whitespace after text field"}
	}

	fields := fieldSpans(line, rest)
	if len(fields) != g.fields {
		return &ShapeError{Want: g.fields, Got: len(fields)}
	}

	emit(Token{Kind: INTEGER, Start: m[2], End: m[3]})
	emit(Token{Kind: TEXT, Start: open, End: closing})
	for _, f := range fields {
		emit(f)
	}
	emit(Token{Kind: EOI, Start: len(input), End: len(input)})
	return nil
}

func fieldSpans(line string, from int) []Token {
	var spans []Token
	i := from
	for i < len(line) {
		for i < len(line) && isSpace(line[i]) {
			i++
		}
		if i == len(line) {
			break
		}
		start := i
		for i < len(line) && !isSpace(line[i]) {
			i++
		}
		spans = append(spans, Token{Kind: FIELD, Start: start, End: i})
	}
	return spans
}
