package parser

// TokenStream is a forward-only cursor over the tokens of one input. A
// consumed token can only be seen again through Peek before it is consumed.
// A stream belongs to a single decode call and is not safe for concurrent use.
type TokenStream struct {
	input  string
	tokens []Token
	pos    int
}

func (ts *TokenStream) push(t Token) {
	ts.tokens = append(ts.tokens, t)
}

// Next consumes and returns the next token. ok is false once the stream is
// exhausted, which only happens after EOI has been consumed.
func (ts *TokenStream) Next() (tok Token, ok bool) {
	if ts.pos >= len(ts.tokens) {
		return Token{}, false
	}
	tok = ts.tokens[ts.pos]
	ts.pos++
	return tok, true
}

// Peek returns the next token without consuming it.
func (ts *TokenStream) Peek() (tok Token, ok bool) {
	if ts.pos >= len(ts.tokens) {
		return Token{}, false
	}
	return ts.tokens[ts.pos], true
}

// PeekIs reports whether the next token has kind k.
func (ts *TokenStream) PeekIs(k TokenKind) bool {
	tok, ok := ts.Peek()
	return ok && tok.Kind == k
}

// Remaining is the number of tokens not yet consumed, EOI included.
func (ts *TokenStream) Remaining() int {
	return len(ts.tokens) - ts.pos
}

// Text returns the input text a token refers to. The result shares memory
// with the input; clone it before it outlives the stream.
func (ts *TokenStream) Text(t Token) string {
	return ts.input[t.Start:t.End]
}

func (ts *TokenStream) Input() string { return ts.input }

// Line returns the 1-based line number of a byte offset.
func (ts *TokenStream) Line(offset int) int {
	return lineAt(ts.input, offset)
}
