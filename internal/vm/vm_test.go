package vm

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/MikulasBar/mluva-sub000/internal/checker"
	"github.com/MikulasBar/mluva-sub000/internal/compiler"
	"github.com/MikulasBar/mluva-sub000/internal/diagnostics"
	"github.com/MikulasBar/mluva-sub000/internal/lexer"
	"github.com/MikulasBar/mluva-sub000/internal/module"
	"github.com/MikulasBar/mluva-sub000/internal/parser"
	"github.com/MikulasBar/mluva-sub000/internal/types"
)

func run(t *testing.T, src string) (types.Value, error) {
	t.Helper()
	toks, err := lexer.New(src, 0).Lex()
	require.NoError(t, err)
	f, err := parser.Parse(toks)
	require.NoError(t, err)
	_, err = checker.Check(f, nil)
	require.NoError(t, err)
	m := compiler.CompileFile(f, func(string, string) (uint32, uint32) { panic("no imports") })
	machine := New([]*module.Module{m}, &bytes.Buffer{})
	return machine.Execute(0)
}

func TestScenario1_SimpleArithmetic(t *testing.T) {
	v, err := run(t, "Float main() { return 1.0 + 2.0 }")
	require.NoError(t, err)
	require.Equal(t, types.FloatValue(3.0), v)
}

func TestScenario2_IfElse(t *testing.T) {
	v, err := run(t, "Float main() { let x = 2 ; let y = 3 ; if x < y { return 1.0 } else { return 0.0 } }")
	require.NoError(t, err)
	require.Equal(t, types.FloatValue(1.0), v)
}

func TestScenario3_WhileLoop(t *testing.T) {
	var out bytes.Buffer
	toks, err := lexer.New("Float main() { let n = 0 ; while n < 5 { n = n + 1 ; print(n) } ; return 0.0 }", 0).Lex()
	require.NoError(t, err)
	f, err := parser.Parse(toks)
	require.NoError(t, err)
	_, err = checker.Check(f, nil)
	require.NoError(t, err)
	m := compiler.CompileFile(f, nil)
	machine := New([]*module.Module{m}, &out)
	v, err := machine.Execute(0)
	require.NoError(t, err)
	require.Equal(t, types.FloatValue(0.0), v)
	require.Equal(t, 5, bytes.Count(out.Bytes(), []byte("\n")))
}

func TestScenario4_AssertTrue(t *testing.T) {
	v, err := run(t, "Float main() { assert(true) ; return 0.0 }")
	require.NoError(t, err)
	require.Equal(t, types.FloatValue(0.0), v)
}

func TestScenario4_AssertFalseFails(t *testing.T) {
	_, err := run(t, "Float main() { assert(false) ; return 0.0 }")
	require.Error(t, err)
	rerr, ok := err.(*diagnostics.RuntimeError)
	require.True(t, ok)
	require.Equal(t, diagnostics.AssertionFailed, rerr.Kind)
}

func TestDivisionByZero(t *testing.T) {
	_, err := run(t, "Float main() { let x = 1 / 0 ; return 0.0 }")
	require.Error(t, err)
	rerr, ok := err.(*diagnostics.RuntimeError)
	require.True(t, ok)
	require.Equal(t, diagnostics.DivisionByZero, rerr.Kind)
}

func TestStringLengthMethod(t *testing.T) {
	toks, err := lexer.New("Int main() { return 'hello'.length() }", 0).Lex()
	require.NoError(t, err)
	f, err := parser.Parse(toks)
	require.NoError(t, err)
	_, err = checker.Check(f, nil)
	require.NoError(t, err)
	m := compiler.CompileFile(f, nil)
	machine := New([]*module.Module{m}, &bytes.Buffer{})
	v, err := machine.RunFunction(0, m.FunctionMap["main"], nil)
	require.NoError(t, err)
	require.Equal(t, types.IntValue(5), v)
}

func TestShortCircuitAndSkipsRightSideEffect(t *testing.T) {
	var out bytes.Buffer
	toks, err := lexer.New("Bool helper() { print(1) ; return true }\nBool main2() { return false && helper() }", 0).Lex()
	require.NoError(t, err)
	f, err := parser.Parse(toks)
	require.NoError(t, err)
	_, err = checker.Check(f, nil)
	require.NoError(t, err)
	m := compiler.CompileFile(f, nil)
	machine := New([]*module.Module{m}, &out)
	v, err := machine.RunFunction(0, m.FunctionMap["main2"], nil)
	require.NoError(t, err)
	require.Equal(t, types.BoolValue(false), v)
	require.Empty(t, out.String())
}

func TestForeignCallAcrossModules(t *testing.T) {
	utilToks, err := lexer.New("Int add(Int a, Int b) { return a + b }", 1).Lex()
	require.NoError(t, err)
	utilFile, err := parser.Parse(utilToks)
	require.NoError(t, err)
	utilSig, err := checker.Check(utilFile, nil)
	require.NoError(t, err)
	utilModule := compiler.CompileFile(utilFile, nil)

	mainToks, err := lexer.New("import util\nFloat main() { let x = util:add(2, 3) ; return 0.0 }", 0).Lex()
	require.NoError(t, err)
	mainFile, err := parser.Parse(mainToks)
	require.NoError(t, err)
	imports := map[string]checker.ModuleSignature{"util": *utilSig}
	_, err = checker.Check(mainFile, imports)
	require.NoError(t, err)

	resolve := func(modName, fnName string) (uint32, uint32) {
		return 1, utilModule.FunctionMap[fnName]
	}
	mainModule := compiler.CompileFile(mainFile, resolve)

	machine := New([]*module.Module{mainModule, utilModule}, &bytes.Buffer{})
	v, err := machine.Execute(0)
	require.NoError(t, err)
	require.Equal(t, types.FloatValue(0.0), v)
}
