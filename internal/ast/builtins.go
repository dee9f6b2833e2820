package ast

// BuiltinNames is the reserved set of builtin function names; these may not
// be declared as internal functions (ReservedFunctionName) and are resolved
// to BuiltinCall rather than Call by the parser.
var BuiltinNames = map[string]bool{
	"print":  true,
	"assert": true,
	"format": true,
}

// StringMethods is the per-type method-dispatch table recovered from the
// original prototype: currently only String.length() is supported.
var StringMethods = map[string]bool{
	"length": true,
}
