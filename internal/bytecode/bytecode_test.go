package bytecode

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/MikulasBar/mluva-sub000/internal/checker"
	"github.com/MikulasBar/mluva-sub000/internal/compiler"
	"github.com/MikulasBar/mluva-sub000/internal/lexer"
	"github.com/MikulasBar/mluva-sub000/internal/module"
	"github.com/MikulasBar/mluva-sub000/internal/parser"
)

func compileSrc(t *testing.T, src string) *module.Module {
	t.Helper()
	toks, err := lexer.New(src, 0).Lex()
	require.NoError(t, err)
	f, err := parser.Parse(toks)
	require.NoError(t, err)
	_, err = checker.Check(f, nil)
	require.NoError(t, err)
	return compiler.CompileFile(f, nil)
}

func TestRoundTripSimpleModule(t *testing.T) {
	m := compileSrc(t, "Float main() { return 1.0 + 2.0 }")
	data, err := Encode(m)
	require.NoError(t, err)
	decoded, err := Decode(data)
	require.NoError(t, err)
	require.True(t, m.Equal(decoded), "decode(encode(M)) must equal M")
}

func TestRoundTripWithStringsAndMethodCall(t *testing.T) {
	m := compileSrc(t, "Int main() { let s = 'hello world' ; return s.length() }")
	data, err := Encode(m)
	require.NoError(t, err)
	decoded, err := Decode(data)
	require.NoError(t, err)
	require.True(t, m.Equal(decoded))
}

func TestRoundTripMultipleFunctionsAndCalls(t *testing.T) {
	m := compileSrc(t, "Int add(Int a, Int b) { return a + b }\nInt main() { return add(2, 3) }")
	data, err := Encode(m)
	require.NoError(t, err)
	decoded, err := Decode(data)
	require.NoError(t, err)
	require.True(t, m.Equal(decoded))
	_, ok := decoded.FunctionMap["add"]
	require.True(t, ok)
}

func TestRoundTripIfWhileJumps(t *testing.T) {
	m := compileSrc(t, "Float main() { let n = 0 ; while n < 5 { n = n + 1 } ; if n == 5 { return 1.0 } else { return 0.0 } }")
	data, err := Encode(m)
	require.NoError(t, err)
	decoded, err := Decode(data)
	require.NoError(t, err)
	require.True(t, m.Equal(decoded))
}

func TestDecodeRejectsBadMagic(t *testing.T) {
	_, err := Decode([]byte{1, 2, 3})
	require.Error(t, err)
}

func TestDecodeRejectsFutureVersion(t *testing.T) {
	m := compileSrc(t, "Float main() { return 0.0 }")
	data, err := Encode(m)
	require.NoError(t, err)
	data[len(Magic)] = CurrentVersion + 1
	_, err = Decode(data)
	require.Error(t, err)
}

func TestEncodeIsDeterministic(t *testing.T) {
	m := compileSrc(t, "Int add(Int a, Int b) { return a + b }\nFloat main() { let x = add(1, 2) ; return 0.0 }")
	a, err := Encode(m)
	require.NoError(t, err)
	b, err := Encode(m)
	require.NoError(t, err)
	require.Equal(t, a, b)
}
