package parser

import "fmt"

type TokenKind int

const (
	// Special tokens
	ILLEGAL TokenKind = iota
	EOI

	// Key-value grammar
	KEY          // MemTotal
	SEPARATOR    // :
	VALUE        // 32587776 kB
	SECTIONBREAK // blank line(s) between records

	// Positional grammar
	INTEGER // leading record key, e.g. a pid
	TEXT    // parenthesized free text, e.g. comm
	FIELD   // whitespace-delimited positional field
)

// Token is a span into the input retained by its TokenStream. Tokens never
// own text; use TokenStream.Text to read it.
type Token struct {
	Kind  TokenKind
	Start int
	End   int
}

func (t Token) Len() int { return t.End - t.Start }

func (t Token) String() string {
	return fmt.Sprintf("%s[%d:%d]", t.Kind, t.Start, t.End)
}

func (k TokenKind) String() string {
	switch k {
	case ILLEGAL:
		return "ILLEGAL"
	case EOI:
		return "EOI"
	case KEY:
		return "KEY"
	case SEPARATOR:
		return ":"
	case VALUE:
		return "VALUE"
	case SECTIONBREAK:
		return "SECTIONBREAK"
	case INTEGER:
		return "INTEGER"
	case TEXT:
		return "TEXT"
	case FIELD:
		return "FIELD"
	default:
		return "UNKNOWN"
	}
}
