package checker

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/MikulasBar/mluva-sub000/internal/ast"
	"github.com/MikulasBar/mluva-sub000/internal/lexer"
	"github.com/MikulasBar/mluva-sub000/internal/parser"
	"github.com/MikulasBar/mluva-sub000/internal/types"
)

func mustParse(t *testing.T, src string) *ast.File {
	t.Helper()
	toks, err := lexer.New(src, 0).Lex()
	require.NoError(t, err)
	f, err := parser.Parse(toks)
	require.NoError(t, err)
	return f
}

func TestCheckSimpleOK(t *testing.T) {
	f := mustParse(t, "Float main() { return 1.0 + 2.0 }")
	_, err := Check(f, nil)
	require.NoError(t, err)
}

func TestCheckWrongReturnType(t *testing.T) {
	f := mustParse(t, "Float main() { return 1 }")
	_, err := Check(f, nil)
	require.Error(t, err)
}

func TestCheckVarRedeclaration(t *testing.T) {
	f := mustParse(t, "Float main() { let x = 1.0 ; let x = 2.0 ; return x }")
	_, err := Check(f, nil)
	require.Error(t, err)
}

func TestCheckVariableNotFound(t *testing.T) {
	f := mustParse(t, "Float main() { return y }")
	_, err := Check(f, nil)
	require.Error(t, err)
}

func TestCheckIfConditionMustBeBool(t *testing.T) {
	f := mustParse(t, "Float main() { if 1.0 { return 1.0 } ; return 0.0 }")
	_, err := Check(f, nil)
	require.Error(t, err)
}

func TestCheckForeignCallResolvesAgainstImports(t *testing.T) {
	f := mustParse(t, "import util\nFloat main() { let x = util:add(2, 3) ; return 0.0 }")
	imports := map[string]ModuleSignature{
		"util": {Functions: map[string]FunctionSignature{
			"add": {Name: "add", Params: []types.DataType{types.Of(types.Int), types.Of(types.Int)}, ReturnType: types.Of(types.Int)},
		}},
	}
	_, err := Check(f, imports)
	require.NoError(t, err)
}

func TestCheckUnknownForeignFunction(t *testing.T) {
	f := mustParse(t, "import util\nFloat main() { let x = util:missing(2, 3) ; return 0.0 }")
	imports := map[string]ModuleSignature{"util": {Functions: map[string]FunctionSignature{}}}
	_, err := Check(f, imports)
	require.Error(t, err)
}

func TestCheckAssertRequiresBool(t *testing.T) {
	f := mustParse(t, "Float main() { assert(1) ; return 0.0 }")
	_, err := Check(f, nil)
	require.Error(t, err)
}

func TestCheckStringLengthMethodCall(t *testing.T) {
	f := mustParse(t, "Int main() { return 'hi'.length() }")
	_, err := Check(f, nil)
	require.NoError(t, err)
}

func TestCheckMethodCallOnWrongType(t *testing.T) {
	f := mustParse(t, "Int main() { return 1.length() }")
	_, err := Check(f, nil)
	require.Error(t, err)
}

func TestCheckExportsSignatures(t *testing.T) {
	f := mustParse(t, "Int add(Int a, Int b) { return a + b }")
	sig, err := Check(f, nil)
	require.NoError(t, err)
	require.Contains(t, sig.Functions, "add")
	require.Equal(t, types.Of(types.Int), sig.Functions["add"].ReturnType)
}
