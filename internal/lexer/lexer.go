// Package lexer turns Mluva source text into a token stream.
package lexer

import (
	"strconv"
	"strings"

	"github.com/MikulasBar/mluva-sub000/internal/diagnostics"
	"github.com/MikulasBar/mluva-sub000/internal/token"
)

// Lexer is a single left-to-right scanner over one source file's bytes.
type Lexer struct {
	src    string
	file   int
	pos    int
	lastWasEOL bool
	sawAnyEOL  bool
}

// New returns a Lexer over src, tagging every produced span with fileID.
func New(src string, fileID int) *Lexer {
	return &Lexer{src: src, file: fileID}
}

func (l *Lexer) peek() byte {
	if l.pos >= len(l.src) {
		return 0
	}
	return l.src[l.pos]
}

func (l *Lexer) peekAt(off int) byte {
	if l.pos+off >= len(l.src) {
		return 0
	}
	return l.src[l.pos+off]
}

func (l *Lexer) advance() byte {
	c := l.src[l.pos]
	l.pos++
	return c
}

func isDigit(c byte) bool { return c >= '0' && c <= '9' }

func isAlpha(c byte) bool {
	return c == '_' || (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z')
}

func isAlphaNum(c byte) bool { return isAlpha(c) || isDigit(c) }

// Lex tokenizes the whole source, returning the token stream terminated by
// exactly one synthetic EOF token, or the first lexical error encountered.
func (l *Lexer) Lex() ([]token.Token, error) {
	var toks []token.Token
	for {
		tok, err := l.next()
		if err != nil {
			return nil, err
		}
		if tok.Kind == token.EOL {
			if l.lastWasEOL {
				continue
			}
			l.lastWasEOL = true
			l.sawAnyEOL = true
		} else if tok.Kind != token.EOF {
			l.lastWasEOL = false
		}
		toks = append(toks, tok)
		if tok.Kind == token.EOF {
			break
		}
	}
	return toks, nil
}

func (l *Lexer) next() (token.Token, error) {
	for {
		c := l.peek()
		switch {
		case c == ' ' || c == '\t':
			l.pos++
			continue
		case c == '#':
			for l.pos < len(l.src) && l.src[l.pos] != '\n' {
				l.pos++
			}
			continue
		}
		break
	}

	start := l.pos
	if l.pos >= len(l.src) {
		// Always emit exactly one trailing EOL before EOF so statement
		// termination rules never need special end-of-file casing.
		if !l.lastWasEOL {
			return token.Token{Kind: token.EOL, Span: token.Span{File: l.file, Lo: start, Hi: start}}, nil
		}
		return token.Token{Kind: token.EOF, Span: token.Span{File: l.file, Lo: start, Hi: start}}, nil
	}

	c := l.advance()

	switch {
	case c == '\n' || c == ';':
		return token.Token{Kind: token.EOL, Span: token.Span{File: l.file, Lo: start, Hi: l.pos}}, nil
	case c == '\r':
		if l.peek() == '\n' {
			l.pos++
		}
		return token.Token{Kind: token.EOL, Span: token.Span{File: l.file, Lo: start, Hi: l.pos}}, nil
	case c == '\'':
		return l.lexString(start)
	case isDigit(c):
		return l.lexNumber(start)
	case isAlpha(c):
		return l.lexIdent(start)
	}

	mkTok := func(k token.Kind) (token.Token, error) {
		return token.Token{Kind: k, Span: token.Span{File: l.file, Lo: start, Hi: l.pos}, Text: l.src[start:l.pos]}, nil
	}

	switch c {
	case '(':
		return mkTok(token.LParen)
	case ')':
		return mkTok(token.RParen)
	case '{':
		return mkTok(token.LBrace)
	case '}':
		return mkTok(token.RBrace)
	case ',':
		return mkTok(token.Comma)
	case ':':
		return mkTok(token.Colon)
	case '.':
		return mkTok(token.Dot)
	case '+':
		return mkTok(token.Plus)
	case '-':
		return mkTok(token.Minus)
	case '*':
		return mkTok(token.Star)
	case '/':
		return mkTok(token.Slash)
	case '%':
		return mkTok(token.Percent)
	case '=':
		if l.peek() == '=' {
			l.pos++
			return mkTok(token.EqEq)
		}
		return mkTok(token.Assign)
	case '!':
		if l.peek() == '=' {
			l.pos++
			return mkTok(token.NotEq)
		}
		return mkTok(token.Bang)
	case '<':
		if l.peek() == '=' {
			l.pos++
			return mkTok(token.LessEq)
		}
		return mkTok(token.Less)
	case '>':
		if l.peek() == '=' {
			l.pos++
			return mkTok(token.GreaterEq)
		}
		return mkTok(token.Greater)
	case '&':
		if l.peek() == '&' {
			l.pos++
			return mkTok(token.AndAnd)
		}
		sp := token.Span{File: l.file, Lo: start, Hi: l.pos}
		return token.Token{}, diagnostics.NewCompileError(diagnostics.UnexpectedChar, &sp, "unexpected character %q", c)
	case '|':
		if l.peek() == '|' {
			l.pos++
			return mkTok(token.OrOr)
		}
		sp := token.Span{File: l.file, Lo: start, Hi: l.pos}
		return token.Token{}, diagnostics.NewCompileError(diagnostics.UnexpectedChar, &sp, "unexpected character %q", c)
	default:
		sp := token.Span{File: l.file, Lo: start, Hi: l.pos}
		return token.Token{}, diagnostics.NewCompileError(diagnostics.UnexpectedChar, &sp, "unexpected character %q", c)
	}
}

func (l *Lexer) lexString(start int) (token.Token, error) {
	var b strings.Builder
	for {
		if l.pos >= len(l.src) {
			sp := token.Span{File: l.file, Lo: start, Hi: l.pos}
			return token.Token{}, diagnostics.NewCompileError(diagnostics.UnterminatedString, &sp, "unterminated string literal")
		}
		c := l.advance()
		if c == '\'' {
			break
		}
		if c == '\\' {
			if l.pos >= len(l.src) {
				sp := token.Span{File: l.file, Lo: start, Hi: l.pos}
				return token.Token{}, diagnostics.NewCompileError(diagnostics.UnterminatedString, &sp, "unterminated string literal")
			}
			esc := l.advance()
			switch esc {
			case 'n':
				b.WriteByte('\n')
			case 't':
				b.WriteByte('\t')
			case '\'':
				b.WriteByte('\'')
			case '\\':
				b.WriteByte('\\')
			default:
				b.WriteByte(esc)
			}
			continue
		}
		b.WriteByte(c)
	}
	return token.Token{Kind: token.String, Span: token.Span{File: l.file, Lo: start, Hi: l.pos}, Text: b.String()}, nil
}

func (l *Lexer) lexNumber(start int) (token.Token, error) {
	for isDigit(l.peek()) {
		l.pos++
	}
	isFloat := false
	if l.peek() == '.' && isDigit(l.peekAt(1)) {
		isFloat = true
		l.pos++
		for isDigit(l.peek()) {
			l.pos++
		}
	}
	text := l.src[start:l.pos]
	sp := token.Span{File: l.file, Lo: start, Hi: l.pos}
	if isFloat {
		if _, err := strconv.ParseFloat(text, 64); err != nil {
			return token.Token{}, diagnostics.NewCompileError(diagnostics.InvalidNumber, &sp, "invalid float literal %q", text)
		}
		return token.Token{Kind: token.Float, Span: sp, Text: text}, nil
	}
	if _, err := strconv.ParseInt(text, 10, 32); err != nil {
		return token.Token{}, diagnostics.NewCompileError(diagnostics.InvalidNumber, &sp, "invalid int literal %q", text)
	}
	return token.Token{Kind: token.Int, Span: sp, Text: text}, nil
}

func (l *Lexer) lexIdent(start int) (token.Token, error) {
	for isAlphaNum(l.peek()) {
		l.pos++
	}
	text := l.src[start:l.pos]
	sp := token.Span{File: l.file, Lo: start, Hi: l.pos}
	if text == "true" || text == "false" {
		return token.Token{Kind: token.Bool, Span: sp, Text: text}, nil
	}
	if kw, ok := token.Keywords[text]; ok {
		return token.Token{Kind: kw, Span: sp, Text: text}, nil
	}
	return token.Token{Kind: token.Ident, Span: sp, Text: text}, nil
}
