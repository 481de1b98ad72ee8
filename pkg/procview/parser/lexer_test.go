package parser

import (
	"errors"
	"testing"
)

type tokText struct {
	kind TokenKind
	text string
}

func collect(t *testing.T, ts *TokenStream) []tokText {
	t.Helper()
	var out []tokText
	for {
		tok, ok := ts.Next()
		if !ok {
			return out
		}
		out = append(out, tokText{tok.Kind, ts.Text(tok)})
	}
}

func TestKeyValueTokens(t *testing.T) {
	input := "MemTotal:       32587776 kB\nMemFree:         1234567 kB\n"

	ts, err := Tokenize(KeyValue, input)
	if err != nil {
		t.Fatalf("Tokenize failed: %v", err)
	}

	expected := []tokText{
		{KEY, "MemTotal"},
		{SEPARATOR, ":"},
		{VALUE, "32587776 kB"},
		{KEY, "MemFree"},
		{SEPARATOR, ":"},
		{VALUE, "1234567 kB"},
		{EOI, ""},
	}

	got := collect(t, ts)
	if len(got) != len(expected) {
		t.Fatalf("Expected %d tokens, got %d: %v", len(expected), len(got), got)
	}
	for i := range expected {
		if got[i] != expected[i] {
			t.Errorf("token %d: expected %v, got %v", i, expected[i], got[i])
		}
	}
}

func TestKeyValueTrimming(t *testing.T) {
	tests := []struct {
		name  string
		input string
		key   string
		value string
	}{
		{"space before separator", "horse : yes", "horse", "yes"},
		{"tabs around separator", "cpu MHz\t\t: 2400.000", "cpu MHz", "2400.000"},
		{"trailing whitespace", "name:   Test  \t", "name", "Test"},
		{"crlf", "name: Test\r\n", "name", "Test"},
		{"empty value", "power management:", "power management", ""},
		{"colon inside value", "model name : Foo: Bar", "model name", "Foo: Bar"},
		{"parentheses in key", "Active(anon):   1024 kB", "Active(anon)", "1024 kB"},
		{"indented key", "  b: 2", "b", "2"},
		{"tab indented key", "\tb : 2", "b", "2"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ts, err := Tokenize(KeyValue, tt.input)
			if err != nil {
				t.Fatalf("Tokenize failed: %v", err)
			}
			got := collect(t, ts)
			if len(got) != 4 {
				t.Fatalf("Expected 4 tokens, got %v", got)
			}
			if got[0].text != tt.key {
				t.Errorf("Expected key %q, got %q", tt.key, got[0].text)
			}
			if got[2].text != tt.value {
				t.Errorf("Expected value %q, got %q", tt.value, got[2].text)
			}
		})
	}
}

func TestKeyValueSectionBreaks(t *testing.T) {
	input := "\n\na: 1\nb: 2\n\n\n  \nc: 3\n\n"

	ts, err := Tokenize(KeyValue, input)
	if err != nil {
		t.Fatalf("Tokenize failed: %v", err)
	}

	var kinds []TokenKind
	for _, tok := range collect(t, ts) {
		kinds = append(kinds, tok.kind)
	}
	expected := []TokenKind{KEY, SEPARATOR, VALUE, KEY, SEPARATOR, VALUE, SECTIONBREAK, KEY, SEPARATOR, VALUE, EOI}
	if len(kinds) != len(expected) {
		t.Fatalf("Expected %v, got %v", expected, kinds)
	}
	for i := range expected {
		if kinds[i] != expected[i] {
			t.Errorf("token %d: expected %s, got %s", i, expected[i], kinds[i])
		}
	}
}

func TestKeyValueBareKey(t *testing.T) {
	ts, err := Tokenize(KeyValue, "a: 1\nbogus line\n")
	if err != nil {
		t.Fatalf("Tokenize failed: %v", err)
	}
	got := collect(t, ts)
	if got[3] != (tokText{KEY, "bogus line"}) {
		t.Errorf("Expected bare key token, got %v", got[3])
	}
	if got[4].kind != EOI {
		t.Errorf("Expected EOI after bare key, got %v", got[4])
	}
}

func TestKeyValueGrammarMismatch(t *testing.T) {
	tests := []struct {
		name   string
		input  string
		offset int
		line   int
	}{
		{"empty key", "a: 1\n: 2\n", 5, 2},
		{"whitespace key", "a: 1\n  : 2\n", 5, 2},
		{"nul byte", "a: 1\nb: \x00\n", 8, 2},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Tokenize(KeyValue, tt.input)
			var ge *GrammarError
			if !errors.As(err, &ge) {
				t.Fatalf("Expected GrammarError, got %v", err)
			}
			if ge.Offset != tt.offset {
				t.Errorf("Expected offset %d, got %d", tt.offset, ge.Offset)
			}
			if ge.Line != tt.line {
				t.Errorf("Expected line %d, got %d", tt.line, ge.Line)
			}
		})
	}
}

func TestTokenOrdering(t *testing.T) {
	input := "value1: 15 kB\nname: Test\nhorse: yes\n\nvalue1: 432 kB\nname: Validation\nhorse: no\n"

	ts, err := Tokenize(KeyValue, input)
	if err != nil {
		t.Fatalf("Tokenize failed: %v", err)
	}

	prevEnd := 0
	for {
		tok, ok := ts.Next()
		if !ok {
			break
		}
		if tok.Start < prevEnd {
			t.Errorf("token %v overlaps previous token ending at %d", tok, prevEnd)
		}
		if tok.End < tok.Start {
			t.Errorf("token %v has negative length", tok)
		}
		prevEnd = tok.End
	}
}

func TestTokenStreamPeek(t *testing.T) {
	ts, err := Tokenize(KeyValue, "a: 1")
	if err != nil {
		t.Fatalf("Tokenize failed: %v", err)
	}

	peeked, _ := ts.Peek()
	next, _ := ts.Next()
	if peeked != next {
		t.Errorf("Peek returned %v but Next returned %v", peeked, next)
	}
	if !ts.PeekIs(SEPARATOR) {
		t.Error("Expected separator after key")
	}
	if ts.Remaining() != 3 {
		t.Errorf("Expected 3 remaining tokens, got %d", ts.Remaining())
	}

	for ts.Remaining() > 0 {
		ts.Next()
	}
	if _, ok := ts.Next(); ok {
		t.Error("Expected exhausted stream")
	}
	if _, ok := ts.Peek(); ok {
		t.Error("Expected Peek on exhausted stream to fail")
	}
}

func TestEmptyInput(t *testing.T) {
	ts, err := Tokenize(KeyValue, "")
	if err != nil {
		t.Fatalf("Tokenize failed: %v", err)
	}
	got := collect(t, ts)
	if len(got) != 1 || got[0].kind != EOI {
		t.Errorf("Expected only EOI, got %v", got)
	}
}
