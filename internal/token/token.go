// Package token defines the lexical tokens produced by the Mluva lexer.
package token

import "fmt"

// Kind identifies the lexical category of a Token.
type Kind int

const (
	Invalid Kind = iota

	// Literals
	Int
	Float
	Bool
	String
	Ident

	// Keywords naming a DataType
	TypeInt
	TypeFloat
	TypeBool
	TypeString
	TypeVoid

	// Other keywords
	Let
	If
	Else
	While
	Return
	Import

	// Punctuation
	LParen
	RParen
	LBrace
	RBrace
	Comma
	Colon
	Dot

	// Operators
	Assign
	Plus
	Minus
	Star
	Slash
	Percent
	EqEq
	NotEq
	Less
	LessEq
	Greater
	GreaterEq
	AndAnd
	OrOr
	Bang

	// Structural
	EOL
	EOF
)

var names = map[Kind]string{
	Invalid:    "Invalid",
	Int:        "Int",
	Float:      "Float",
	Bool:       "Bool",
	String:     "String",
	Ident:      "Ident",
	TypeInt:    "TypeInt",
	TypeFloat:  "TypeFloat",
	TypeBool:   "TypeBool",
	TypeString: "TypeString",
	TypeVoid:   "TypeVoid",
	Let:        "Let",
	If:         "If",
	Else:       "Else",
	While:      "While",
	Return:     "Return",
	Import:     "Import",
	LParen:     "(",
	RParen:     ")",
	LBrace:     "{",
	RBrace:     "}",
	Comma:      ",",
	Colon:      ":",
	Dot:        ".",
	Assign:     "=",
	Plus:       "+",
	Minus:      "-",
	Star:       "*",
	Slash:      "/",
	Percent:    "%",
	EqEq:       "==",
	NotEq:      "!=",
	Less:       "<",
	LessEq:     "<=",
	Greater:    ">",
	GreaterEq:  ">=",
	AndAnd:     "&&",
	OrOr:       "||",
	Bang:       "!",
	EOL:        "EOL",
	EOF:        "EOF",
}

func (k Kind) String() string {
	if s, ok := names[k]; ok {
		return s
	}
	return fmt.Sprintf("Kind(%d)", int(k))
}

// Keywords maps a raw identifier spelling to its keyword Kind. Anything
// absent from this table lexes as Ident, except the boolean literals `true`
// and `false`, which lex as Bool.
var Keywords = map[string]Kind{
	"Int":    TypeInt,
	"Float":  TypeFloat,
	"Bool":   TypeBool,
	"String": TypeString,
	"Void":   TypeVoid,
	"let":    Let,
	"if":     If,
	"else":   Else,
	"while":  While,
	"return": Return,
	"import": Import,
}

// Span is a half-open byte range [Lo, Hi) within a single source file.
type Span struct {
	File int
	Lo   int
	Hi   int
}

// Join returns the smallest span covering both a and b. Both spans must
// belong to the same file.
func Join(a, b Span) Span {
	if a.File != b.File {
		panic("token: Join across different files")
	}
	lo, hi := a.Lo, a.Hi
	if b.Lo < lo {
		lo = b.Lo
	}
	if b.Hi > hi {
		hi = b.Hi
	}
	return Span{File: a.File, Lo: lo, Hi: hi}
}

// Token is a single lexical unit: its kind, source span, and raw text.
type Token struct {
	Kind Kind
	Span Span
	Text string
}

func (t Token) String() string {
	if t.Text != "" {
		return fmt.Sprintf("%s(%q)", t.Kind, t.Text)
	}
	return t.Kind.String()
}
