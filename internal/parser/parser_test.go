package parser

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/MikulasBar/mluva-sub000/internal/ast"
	"github.com/MikulasBar/mluva-sub000/internal/lexer"
)

func parseSrc(t *testing.T, src string) *ast.File {
	t.Helper()
	toks, err := lexer.New(src, 0).Lex()
	require.NoError(t, err)
	f, err := Parse(toks)
	require.NoError(t, err)
	return f
}

func TestParseSimpleMain(t *testing.T) {
	f := parseSrc(t, "Float main() { return 1.0 + 2.0 }")
	require.Len(t, f.Functions, 1)
	fn := f.Functions[0]
	require.Equal(t, "main", fn.Name)
	require.Len(t, fn.Body, 1)
	ret, ok := fn.Body[0].(*ast.Return)
	require.True(t, ok)
	bin, ok := ret.Value.(*ast.BinaryExpr)
	require.True(t, ok)
	require.Equal(t, ast.Add, bin.Op)
}

func TestParseIfElseIfDesugars(t *testing.T) {
	f := parseSrc(t, `Float main() {
		if true {
			return 1.0
		} else if false {
			return 2.0
		}
		return 0.0
	}`)
	fn := f.Functions[0]
	ifStmt := fn.Body[0].(*ast.If)
	require.Len(t, ifStmt.Else, 1)
	_, ok := ifStmt.Else[0].(*ast.If)
	require.True(t, ok, "else-if desugars to a single nested If")
}

func TestParseImportAndForeignCall(t *testing.T) {
	f := parseSrc(t, "import util\nFloat main() { let x = util:add(2, 3) ; return 0.0 }")
	require.Len(t, f.Imports, 1)
	require.Equal(t, "util", f.Imports[0].Name)
	decl := f.Functions[0].Body[0].(*ast.VarDecl)
	fc, ok := decl.Init.(*ast.ForeignCall)
	require.True(t, ok)
	require.Equal(t, "util", fc.Module)
	require.Equal(t, "add", fc.Name)
	require.Len(t, fc.Args, 2)
}

func TestParseBuiltinVsInternalCall(t *testing.T) {
	f := parseSrc(t, "Void main() { print(1) ; helper() }")
	printCall := f.Functions[0].Body[0].(*ast.ExprStmt).Expr
	_, isBuiltin := printCall.(*ast.BuiltinCall)
	require.True(t, isBuiltin)

	helperCall := f.Functions[0].Body[1].(*ast.ExprStmt).Expr
	_, isInternal := helperCall.(*ast.Call)
	require.True(t, isInternal)
}

func TestParseReservedFunctionNameFails(t *testing.T) {
	toks, err := lexer.New("Void print() { return }", 0).Lex()
	require.NoError(t, err)
	_, err = Parse(toks)
	require.Error(t, err)
}

func TestParseBareReturnYieldsVoidLiteral(t *testing.T) {
	f := parseSrc(t, "Void main() { return }")
	ret := f.Functions[0].Body[0].(*ast.Return)
	lit, ok := ret.Value.(*ast.Literal)
	require.True(t, ok)
	require.Equal(t, "Void", lit.Value.DataType().String())
}

func TestParseMethodCall(t *testing.T) {
	f := parseSrc(t, "Int main() { return 'hi'.length() }")
	ret := f.Functions[0].Body[0].(*ast.Return)
	mc, ok := ret.Value.(*ast.MethodCall)
	require.True(t, ok)
	require.Equal(t, "length", mc.Name)
}

func TestParseWhileLoop(t *testing.T) {
	f := parseSrc(t, "Float main() { let n = 0 ; while n < 5 { n = n + 1 } ; return 0.0 }")
	w, ok := f.Functions[0].Body[1].(*ast.While)
	require.True(t, ok)
	require.Len(t, w.Body, 1)
}

func TestParseUnexpectedTokenFails(t *testing.T) {
	toks, err := lexer.New("Float main() { ) }", 0).Lex()
	require.NoError(t, err)
	_, err = Parse(toks)
	require.Error(t, err)
}
