package lexer

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/MikulasBar/mluva-sub000/internal/token"
)

func kinds(toks []token.Token) []token.Kind {
	ks := make([]token.Kind, len(toks))
	for i, t := range toks {
		ks[i] = t.Kind
	}
	return ks
}

func TestLexSimpleExpr(t *testing.T) {
	toks, err := New("1 + 2", 0).Lex()
	require.NoError(t, err)
	require.Equal(t, []token.Kind{token.Int, token.Plus, token.Int, token.EOL, token.EOF}, kinds(toks))
}

func TestLexKeywordsAndTypes(t *testing.T) {
	toks, err := New("Float main() { return 1.0 }", 0).Lex()
	require.NoError(t, err)
	require.Equal(t, token.TypeFloat, toks[0].Kind)
	require.Equal(t, token.Ident, toks[1].Kind)
	require.Equal(t, "main", toks[1].Text)
}

func TestLexCollapsesNewlinesAndSemicolons(t *testing.T) {
	toks, err := New("let x = 1 ;\n\n let y = 2", 0).Lex()
	require.NoError(t, err)
	// exactly one EOL between the two statements, despite ";\n\n"
	eolCount := 0
	for _, k := range kinds(toks) {
		if k == token.EOL {
			eolCount++
		}
	}
	require.Equal(t, 2, eolCount) // one mid-stream, one trailing at EOF
}

func TestLexComment(t *testing.T) {
	toks, err := New("1 # a comment\n+ 2", 0).Lex()
	require.NoError(t, err)
	require.Equal(t, []token.Kind{token.Int, token.EOL, token.Plus, token.Int, token.EOL, token.EOF}, kinds(toks))
}

func TestLexString(t *testing.T) {
	toks, err := New(`'hi\n\'there\''`, 0).Lex()
	require.NoError(t, err)
	require.Equal(t, token.String, toks[0].Kind)
	require.Equal(t, "hi\n'there'", toks[0].Text)
}

func TestLexUnterminatedString(t *testing.T) {
	_, err := New("'unterminated", 0).Lex()
	require.Error(t, err)
}

func TestLexMultiCharOperators(t *testing.T) {
	toks, err := New("a == b != c && d || e <= f >= g", 0).Lex()
	require.NoError(t, err)
	require.Equal(t, []token.Kind{
		token.Ident, token.EqEq, token.Ident, token.NotEq, token.Ident, token.AndAnd,
		token.Ident, token.OrOr, token.Ident, token.LessEq, token.Ident, token.GreaterEq,
		token.Ident, token.EOL, token.EOF,
	}, kinds(toks))
}

func TestLexLoneAmpersandIsError(t *testing.T) {
	_, err := New("a & b", 0).Lex()
	require.Error(t, err)
}

func TestLexFloatVsInt(t *testing.T) {
	toks, err := New("1 1.5", 0).Lex()
	require.NoError(t, err)
	require.Equal(t, token.Int, toks[0].Kind)
	require.Equal(t, token.Float, toks[1].Kind)
}

func TestLexSpansCoverSourceModuloTrivia(t *testing.T) {
	src := "1 + 2"
	toks, err := New(src, 0).Lex()
	require.NoError(t, err)
	var rebuilt string
	for _, tok := range toks {
		if tok.Kind == token.EOL || tok.Kind == token.EOF {
			continue
		}
		rebuilt += src[tok.Span.Lo:tok.Span.Hi]
	}
	require.Equal(t, "1+2", rebuilt)
}
