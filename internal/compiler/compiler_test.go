package compiler

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/MikulasBar/mluva-sub000/internal/lexer"
	"github.com/MikulasBar/mluva-sub000/internal/opcode"
	"github.com/MikulasBar/mluva-sub000/internal/parser"
)

func noResolve(string, string) (uint32, uint32) {
	panic("no foreign calls expected")
}

func TestCompileSimpleReturn(t *testing.T) {
	toks, err := lexer.New("Float main() { return 1.0 + 2.0 }", 0).Lex()
	require.NoError(t, err)
	f, err := parser.Parse(toks)
	require.NoError(t, err)
	m := CompileFile(f, noResolve)
	require.Contains(t, m.FunctionMap, "main")
	src := m.Sources[m.FunctionMap["main"]]
	ops := make([]opcode.Op, len(src.Instructions))
	for i, ins := range src.Instructions {
		ops[i] = ins.Op
	}
	require.Equal(t, []opcode.Op{opcode.Push, opcode.Push, opcode.Add, opcode.Return}, ops)
}

func TestCompileIfJumpTargetsValid(t *testing.T) {
	toks, err := lexer.New("Float main() { let x = 2 ; let y = 3 ; if x < y { return 1.0 } else { return 0.0 } }", 0).Lex()
	require.NoError(t, err)
	f, err := parser.Parse(toks)
	require.NoError(t, err)
	m := CompileFile(f, noResolve)
	src := m.Sources[m.FunctionMap["main"]]
	n := uint32(len(src.Instructions))
	for _, ins := range src.Instructions {
		if ins.Op == opcode.Jump || ins.Op == opcode.JumpIfFalse {
			require.LessOrEqual(t, ins.U32, n)
		}
	}
}

func TestCompileWhileLoopsBackward(t *testing.T) {
	toks, err := lexer.New("Float main() { let n = 0 ; while n < 5 { n = n + 1 } ; return 0.0 }", 0).Lex()
	require.NoError(t, err)
	f, err := parser.Parse(toks)
	require.NoError(t, err)
	m := CompileFile(f, noResolve)
	src := m.Sources[m.FunctionMap["main"]]
	var sawBackwardJump bool
	for i, ins := range src.Instructions {
		if ins.Op == opcode.Jump && int(ins.U32) < i {
			sawBackwardJump = true
		}
	}
	require.True(t, sawBackwardJump)
}

func TestCompileVoidFunctionGetsImplicitReturn(t *testing.T) {
	toks, err := lexer.New("Void main() { print(1) }", 0).Lex()
	require.NoError(t, err)
	f, err := parser.Parse(toks)
	require.NoError(t, err)
	m := CompileFile(f, noResolve)
	src := m.Sources[m.FunctionMap["main"]]
	last := src.Instructions[len(src.Instructions)-1]
	require.Equal(t, opcode.Return, last.Op)
}

func TestCompileSlotReuseAcrossBranches(t *testing.T) {
	toks, err := lexer.New("Float main() { if true { let x = 1.0 ; return x } else { let x = 2.0 ; return x } }", 0).Lex()
	require.NoError(t, err)
	f, err := parser.Parse(toks)
	require.NoError(t, err)
	m := CompileFile(f, noResolve)
	src := m.Sources[m.FunctionMap["main"]]
	// One distinct name "x" across both branches reuses a single slot.
	require.Equal(t, uint32(1), src.SlotCount)
}

func TestCompileShortCircuitAnd(t *testing.T) {
	toks, err := lexer.New("Bool main2() { return true && false }", 0).Lex()
	require.NoError(t, err)
	f, err := parser.Parse(toks)
	require.NoError(t, err)
	m := CompileFile(f, noResolve)
	src := m.Sources[m.FunctionMap["main2"]]
	var sawJumpIfFalse bool
	for _, ins := range src.Instructions {
		if ins.Op == opcode.JumpIfFalse {
			sawJumpIfFalse = true
		}
	}
	require.True(t, sawJumpIfFalse)
}
