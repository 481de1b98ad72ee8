package parser

import (
	"fmt"
	"strings"
)

// Tokenize applies g to input and returns the resulting stream. The stream
// retains input; tokens are offsets into it and nothing is copied.
func Tokenize(g Grammar, input string) (*TokenStream, error) {
	ts := &TokenStream{
		input:  input,
		tokens: make([]Token, 0, estimateTokens(input)),
	}
	if err := g.tokenize(input, ts.push); err != nil {
		return nil, err
	}
	return ts, nil
}

func estimateTokens(input string) int {
	return 3*strings.Count(input, "\n") + 4
}

func (keyValueGrammar) tokenize(input string, emit func(Token)) error {
	if off := illegalByte(input); off >= 0 {
		return &GrammarError{
			Grammar: "key-value",
			Offset:  off,
			Line:    lineAt(input, off),
			Reason:  fmt.Sprintf("control byte %#02x", input[off]),
		}
	}

	pendingBreak := -1
	seenEntry := false
	line := 1
	for start := 0; start < len(input); line++ {
		end := strings.IndexByte(input[start:], '\n')
		next := len(input)
		if end < 0 {
			end = len(input)
		} else {
			end += start
			next = end + 1
		}
		text := input[start:end]

		if blankLine.MatchString(text) {
			if seenEntry && pendingBreak < 0 {
				pendingBreak = start
			}
			start = next
			continue
		}
		if pendingBreak >= 0 {
			emit(Token{Kind: SECTIONBREAK, Start: pendingBreak, End: start})
			pendingBreak = -1
		}
		seenEntry = true

		if m := entryLine.FindStringSubmatchIndex(text); m != nil {
			emit(Token{Kind: KEY, Start: start + m[2], End: start + m[3]})
			emit(Token{Kind: SEPARATOR, Start: start + m[4], End: start + m[5]})
			emit(Token{Kind: VALUE, Start: start + m[6], End: start + m[7]})
		} else if m := bareKeyLine.FindStringSubmatchIndex(text); m != nil {
			emit(Token{Kind: KEY, Start: start + m[2], End: start + m[3]})
		} else {
			return &GrammarError{
				Grammar: "key-value",
				Offset:  start,
				Line:    line,
				Reason:  fmt.Sprintf("no rule matches %q", text),
			}
		}
		start = next
	}

	emit(Token{Kind: EOI, Start: len(input), End: len(input)})
	return nil
}

// illegalByte returns the offset of the first control byte other than tab,
// carriage return and newline, or -1.
func illegalByte(input string) int {
	for i := 0; i < len(input); i++ {
		c := input[i]
		if (c < 0x20 && c != '\t' && c != '\n' && c != '\r') || c == 0x7f {
			return i
		}
	}
	return -1
}

func lineAt(input string, offset int) int {
	if offset > len(input) {
		offset = len(input)
	}
	return strings.Count(input[:offset], "\n") + 1
}

func isSpace(c byte) bool {
	return c == ' ' || c == '\t'
}
