// Package checker implements Mluva's type checker: a lexical scope-stack
// walk over an AST that proves well-typedness, including cross-module call
// resolution against already-checked imported modules' signatures. Besides
// the file's exported function signatures, the checker produces only
// success or the first error it finds; it never mutates the AST.
package checker

import (
	"github.com/MikulasBar/mluva-sub000/internal/ast"
	"github.com/MikulasBar/mluva-sub000/internal/diagnostics"
	"github.com/MikulasBar/mluva-sub000/internal/token"
	"github.com/MikulasBar/mluva-sub000/internal/types"
)

// FunctionSignature is the exported shape of a function: its ordered
// parameter types and return type. Bodies are irrelevant to a caller.
type FunctionSignature struct {
	Name       string
	Params     []types.DataType
	ReturnType types.DataType
}

// ModuleSignature is the set of functions a module exports, keyed by name.
// It is everything a type checker needs to resolve calls into another,
// already-checked module.
type ModuleSignature struct {
	Functions map[string]FunctionSignature
}

type scope struct {
	vars map[string]types.DataType
}

// Checker walks one file's functions against a fixed import-signature
// index supplied by the caller (the module builder compiles imports before
// their importers, per the import DAG, so this index is always complete).
type Checker struct {
	imports map[string]ModuleSignature
	locals  map[string]FunctionSignature
	scopes  []scope
	curFn   *FunctionSignature
}

// New returns a Checker that will resolve foreign calls against imports,
// keyed by the module name as written in the file's `import` statements.
func New(imports map[string]ModuleSignature) *Checker {
	return &Checker{imports: imports, locals: map[string]FunctionSignature{}}
}

// Check type-checks every function in f and returns f's own exported
// signature set for use by modules that import it.
func Check(f *ast.File, imports map[string]ModuleSignature) (*ModuleSignature, error) {
	c := New(imports)
	return c.CheckFile(f)
}

func (c *Checker) CheckFile(f *ast.File) (*ModuleSignature, error) {
	for _, fn := range f.Functions {
		if _, dup := c.locals[fn.Name]; dup {
			sp := fn.Sp
			return nil, diagnostics.NewCompileError(diagnostics.FunctionAlreadyDefined, &sp, "function %q already defined", fn.Name)
		}
		sig := FunctionSignature{Name: fn.Name, ReturnType: fn.ReturnType}
		for _, p := range fn.Params {
			sig.Params = append(sig.Params, p.Type)
		}
		c.locals[fn.Name] = sig
	}

	for i := range f.Functions {
		if err := c.checkFunction(&f.Functions[i]); err != nil {
			return nil, err
		}
	}

	out := &ModuleSignature{Functions: map[string]FunctionSignature{}}
	for name, sig := range c.locals {
		out.Functions[name] = sig
	}
	return out, nil
}

func (c *Checker) checkFunction(fn *ast.FunctionDef) error {
	sig := c.locals[fn.Name]
	c.curFn = &sig
	c.pushScope()
	defer c.popScope()
	defer func() { c.curFn = nil }()

	for _, p := range fn.Params {
		c.declare(p.Name, p.Type)
	}
	for _, s := range fn.Body {
		if err := c.checkStmt(s); err != nil {
			return err
		}
	}
	return nil
}

func (c *Checker) pushScope() { c.scopes = append(c.scopes, scope{vars: map[string]types.DataType{}}) }
func (c *Checker) popScope()  { c.scopes = c.scopes[:len(c.scopes)-1] }

func (c *Checker) declare(name string, dt types.DataType) {
	c.scopes[len(c.scopes)-1].vars[name] = dt
}

func (c *Checker) lookup(name string) (types.DataType, bool) {
	for i := len(c.scopes) - 1; i >= 0; i-- {
		if dt, ok := c.scopes[i].vars[name]; ok {
			return dt, true
		}
	}
	return types.DataType{}, false
}

// declaredInVisibleScope reports whether name is already declared anywhere
// in the currently-visible scope chain (used for VarRedeclaration).
func (c *Checker) declaredInVisibleScope(name string) bool {
	_, ok := c.lookup(name)
	return ok
}

func (c *Checker) checkStmt(s ast.Stmt) error {
	switch st := s.(type) {
	case *ast.VarDecl:
		return c.checkVarDecl(st)
	case *ast.VarAssign:
		return c.checkVarAssign(st)
	case *ast.If:
		return c.checkIf(st)
	case *ast.While:
		return c.checkWhile(st)
	case *ast.ExprStmt:
		_, err := c.checkExpr(st.Expr)
		return err
	case *ast.Return:
		return c.checkReturn(st)
	default:
		sp := s.Span()
		return diagnostics.NewCompileError(diagnostics.UnexpectedToken, &sp, "unknown statement node")
	}
}

func (c *Checker) checkVarDecl(s *ast.VarDecl) error {
	exprType, err := c.checkExpr(s.Init)
	if err != nil {
		return err
	}
	if s.Explicit != nil && !s.Explicit.Equal(exprType) {
		sp := s.Sp
		return diagnostics.NewCompileError(diagnostics.WrongType, &sp, "declared type %s does not match initializer type %s", s.Explicit, exprType)
	}
	if c.declaredInVisibleScope(s.Name) {
		sp := s.Sp
		return diagnostics.NewCompileError(diagnostics.VarRedeclaration, &sp, "variable %q already declared", s.Name)
	}
	c.declare(s.Name, exprType)
	return nil
}

func (c *Checker) checkVarAssign(s *ast.VarAssign) error {
	declared, ok := c.lookup(s.Name)
	if !ok {
		sp := s.Sp
		return diagnostics.NewCompileError(diagnostics.VariableNotFound, &sp, "variable %q not found", s.Name)
	}
	exprType, err := c.checkExpr(s.Value)
	if err != nil {
		return err
	}
	if !declared.Equal(exprType) {
		sp := s.Sp
		return diagnostics.NewCompileError(diagnostics.WrongType, &sp, "cannot assign %s to variable %q of type %s", exprType, s.Name, declared)
	}
	return nil
}

func (c *Checker) checkIf(s *ast.If) error {
	condType, err := c.checkExpr(s.Cond)
	if err != nil {
		return err
	}
	if condType.Tag != types.Bool {
		sp := s.Cond.Span()
		return diagnostics.NewCompileError(diagnostics.WrongType, &sp, "if condition must be Bool, found %s", condType)
	}
	c.pushScope()
	for _, st := range s.Then {
		if err := c.checkStmt(st); err != nil {
			c.popScope()
			return err
		}
	}
	c.popScope()
	if s.Else != nil {
		c.pushScope()
		for _, st := range s.Else {
			if err := c.checkStmt(st); err != nil {
				c.popScope()
				return err
			}
		}
		c.popScope()
	}
	return nil
}

func (c *Checker) checkWhile(s *ast.While) error {
	condType, err := c.checkExpr(s.Cond)
	if err != nil {
		return err
	}
	if condType.Tag != types.Bool {
		sp := s.Cond.Span()
		return diagnostics.NewCompileError(diagnostics.WrongType, &sp, "while condition must be Bool, found %s", condType)
	}
	c.pushScope()
	defer c.popScope()
	for _, st := range s.Body {
		if err := c.checkStmt(st); err != nil {
			return err
		}
	}
	return nil
}

func (c *Checker) checkReturn(s *ast.Return) error {
	valType, err := c.checkExpr(s.Value)
	if err != nil {
		return err
	}
	if !c.curFn.ReturnType.Equal(valType) {
		sp := s.Sp
		return diagnostics.NewCompileError(diagnostics.WrongType, &sp, "function %q returns %s, found %s", c.curFn.Name, c.curFn.ReturnType, valType)
	}
	return nil
}

func (c *Checker) checkExpr(e ast.Expr) (types.DataType, error) {
	switch ex := e.(type) {
	case *ast.Literal:
		return ex.Value.DataType(), nil
	case *ast.VarRef:
		dt, ok := c.lookup(ex.Name)
		if !ok {
			sp := ex.Sp
			return types.DataType{}, diagnostics.NewCompileError(diagnostics.VariableNotFound, &sp, "variable %q not found", ex.Name)
		}
		return dt, nil
	case *ast.BinaryExpr:
		return c.checkBinary(ex)
	case *ast.UnaryExpr:
		return c.checkUnary(ex)
	case *ast.Call:
		return c.checkCall(ex)
	case *ast.ForeignCall:
		return c.checkForeignCall(ex)
	case *ast.BuiltinCall:
		return c.checkBuiltinCall(ex)
	case *ast.MethodCall:
		return c.checkMethodCall(ex)
	default:
		sp := e.Span()
		return types.DataType{}, diagnostics.NewCompileError(diagnostics.UnexpectedToken, &sp, "unknown expression node")
	}
}

func (c *Checker) checkBinary(ex *ast.BinaryExpr) (types.DataType, error) {
	lt, err := c.checkExpr(ex.Left)
	if err != nil {
		return types.DataType{}, err
	}
	rt, err := c.checkExpr(ex.Right)
	if err != nil {
		return types.DataType{}, err
	}
	sp := ex.Sp
	switch ex.Op {
	case ast.Add, ast.Sub, ast.Mul, ast.Div, ast.Modulo:
		if !lt.IsNumeric() || !lt.Equal(rt) {
			return types.DataType{}, diagnostics.NewCompileError(diagnostics.WrongType, &sp, "arithmetic requires matching numeric operands, found %s and %s", lt, rt)
		}
		return lt, nil
	case ast.Lt, ast.LtEq, ast.Gt, ast.GtEq:
		if !lt.IsNumeric() || !lt.Equal(rt) {
			return types.DataType{}, diagnostics.NewCompileError(diagnostics.WrongType, &sp, "comparison requires matching numeric operands, found %s and %s", lt, rt)
		}
		return types.Of(types.Bool), nil
	case ast.Eq, ast.NotEq:
		if !lt.Equal(rt) {
			return types.DataType{}, diagnostics.NewCompileError(diagnostics.WrongType, &sp, "equality requires matching types, found %s and %s", lt, rt)
		}
		return types.Of(types.Bool), nil
	case ast.And, ast.Or:
		if lt.Tag != types.Bool || rt.Tag != types.Bool {
			return types.DataType{}, diagnostics.NewCompileError(diagnostics.WrongType, &sp, "logical operator requires Bool operands, found %s and %s", lt, rt)
		}
		return types.Of(types.Bool), nil
	default:
		return types.DataType{}, diagnostics.NewCompileError(diagnostics.WrongType, &sp, "unknown binary operator")
	}
}

func (c *Checker) checkUnary(ex *ast.UnaryExpr) (types.DataType, error) {
	t, err := c.checkExpr(ex.Expr)
	if err != nil {
		return types.DataType{}, err
	}
	sp := ex.Sp
	switch ex.Op {
	case ast.Not:
		if t.Tag != types.Bool {
			return types.DataType{}, diagnostics.NewCompileError(diagnostics.WrongType, &sp, "! requires Bool, found %s", t)
		}
		return t, nil
	case ast.Negate:
		if !t.IsNumeric() {
			return types.DataType{}, diagnostics.NewCompileError(diagnostics.WrongType, &sp, "unary - requires numeric type, found %s", t)
		}
		return t, nil
	default:
		return types.DataType{}, diagnostics.NewCompileError(diagnostics.WrongType, &sp, "unknown unary operator")
	}
}

func (c *Checker) checkArgs(sp token.Span, params []types.DataType, args []ast.Expr) error {
	if len(params) != len(args) {
		return diagnostics.NewCompileError(diagnostics.WrongNumberOfArguments, &sp, "expected %d arguments, found %d", len(params), len(args))
	}
	for i, a := range args {
		at, err := c.checkExpr(a)
		if err != nil {
			return err
		}
		if !params[i].Equal(at) {
			argSp := a.Span()
			return diagnostics.NewCompileError(diagnostics.WrongType, &argSp, "argument %d: expected %s, found %s", i, params[i], at)
		}
	}
	return nil
}

func (c *Checker) checkCall(ex *ast.Call) (types.DataType, error) {
	sig, ok := c.locals[ex.Name]
	if !ok {
		sp := ex.Sp
		return types.DataType{}, diagnostics.NewCompileError(diagnostics.FunctionNotFound, &sp, "function %q not found", ex.Name)
	}
	if err := c.checkArgs(ex.Sp, sig.Params, ex.Args); err != nil {
		return types.DataType{}, err
	}
	return sig.ReturnType, nil
}

func (c *Checker) checkForeignCall(ex *ast.ForeignCall) (types.DataType, error) {
	modSig, ok := c.imports[ex.Module]
	if !ok {
		sp := ex.Sp
		return types.DataType{}, diagnostics.NewCompileError(diagnostics.UnknownForeignFunction, &sp, "unknown module %q", ex.Module).WithNotes(ex.Module, ex.Name)
	}
	sig, ok := modSig.Functions[ex.Name]
	if !ok {
		sp := ex.Sp
		return types.DataType{}, diagnostics.NewCompileError(diagnostics.UnknownForeignFunction, &sp, "module %q has no function %q", ex.Module, ex.Name).WithNotes(ex.Module, ex.Name)
	}
	if err := c.checkArgs(ex.Sp, sig.Params, ex.Args); err != nil {
		return types.DataType{}, err
	}
	return sig.ReturnType, nil
}

func (c *Checker) checkBuiltinCall(ex *ast.BuiltinCall) (types.DataType, error) {
	switch ex.Name {
	case "print":
		for _, a := range ex.Args {
			if _, err := c.checkExpr(a); err != nil {
				return types.DataType{}, err
			}
		}
		return types.Of(types.Void), nil
	case "assert":
		for _, a := range ex.Args {
			at, err := c.checkExpr(a)
			if err != nil {
				return types.DataType{}, err
			}
			if at.Tag != types.Bool {
				sp := a.Span()
				return types.DataType{}, diagnostics.NewCompileError(diagnostics.WrongType, &sp, "assert requires Bool arguments, found %s", at)
			}
		}
		return types.Of(types.Void), nil
	case "format":
		for _, a := range ex.Args {
			if _, err := c.checkExpr(a); err != nil {
				return types.DataType{}, err
			}
		}
		return types.Of(types.String), nil
	default:
		sp := ex.Sp
		return types.DataType{}, diagnostics.NewCompileError(diagnostics.FunctionNotFound, &sp, "unknown builtin %q", ex.Name)
	}
}

func (c *Checker) checkMethodCall(ex *ast.MethodCall) (types.DataType, error) {
	recvType, err := c.checkExpr(ex.Receiver)
	if err != nil {
		return types.DataType{}, err
	}
	sp := ex.Sp
	if !types.Of(types.String).MatchesType(recvType) || !ast.StringMethods[ex.Name] {
		return types.DataType{}, diagnostics.NewCompileError(diagnostics.FunctionNotFound, &sp, "type %s has no method %q", recvType, ex.Name)
	}
	return types.Of(types.Int), nil
}
