// Package compiler lowers a type-checked AST file to a module.Module: flat,
// slot-based instruction lists per function with forward-patched jumps.
package compiler

import (
	"github.com/MikulasBar/mluva-sub000/internal/ast"
	"github.com/MikulasBar/mluva-sub000/internal/module"
	"github.com/MikulasBar/mluva-sub000/internal/opcode"
	"github.com/MikulasBar/mluva-sub000/internal/types"
)

// ForeignResolver maps a foreign call's (module name, function name) to the
// already-compiled callee's (moduleID, function slot), per the module
// builder's topological load order. It is only ever called for calls the
// type checker already proved resolve, so a missing entry is a programmer
// error in the caller, not a user-facing one.
type ForeignResolver func(moduleName, funcName string) (moduleID uint32, functionSlot uint32)

// CompileFile compiles every function in f into a fresh module.Module. The
// file must already have passed type checking.
func CompileFile(f *ast.File, resolve ForeignResolver) *module.Module {
	m := module.New()
	m.Imports = make([]string, len(f.Imports))
	for i, imp := range f.Imports {
		m.Imports[i] = imp.Name
	}

	// Register every definition up front so forward references (a function
	// calling one declared later in the file) resolve during body
	// compilation, matching the type checker's own two-pass approach.
	for _, fn := range f.Functions {
		def := module.FunctionDefinition{Name: fn.Name, ReturnType: fn.ReturnType}
		for _, p := range fn.Params {
			def.Params = append(def.Params, module.Param{Name: p.Name, Type: p.Type})
		}
		m.AddFunction(def, module.FunctionSource{})
	}

	for i, fn := range f.Functions {
		fc := &funcCompiler{module: m, resolve: resolve, vars: map[string]uint32{}}
		for _, p := range fn.Params {
			fc.slotFor(p.Name)
		}
		for _, s := range fn.Body {
			fc.compileStmt(s)
		}
		if fn.ReturnType.Tag == types.Void && !fc.endsInReturn() {
			fc.emit(module.Instruction{Op: opcode.Push, Value: types.VoidValue()})
			fc.emit(module.Instruction{Op: opcode.Return})
		}
		m.Sources[i] = module.FunctionSource{SlotCount: fc.nextSlot, Instructions: fc.instrs}
	}

	return m
}

// funcCompiler compiles a single function body.
type funcCompiler struct {
	module   *module.Module
	resolve  ForeignResolver
	vars     map[string]uint32 // distinct variable name -> slot, flattened across all scopes
	nextSlot uint32
	instrs   []module.Instruction
}

func (fc *funcCompiler) slotFor(name string) uint32 {
	if slot, ok := fc.vars[name]; ok {
		return slot
	}
	slot := fc.nextSlot
	fc.nextSlot++
	fc.vars[name] = slot
	return slot
}

func (fc *funcCompiler) emit(i module.Instruction) int {
	fc.instrs = append(fc.instrs, i)
	return len(fc.instrs) - 1
}

func (fc *funcCompiler) patchTarget(idx int, target uint32) {
	fc.instrs[idx].U32 = target
}

func (fc *funcCompiler) endsInReturn() bool {
	if len(fc.instrs) == 0 {
		return false
	}
	return fc.instrs[len(fc.instrs)-1].Op == opcode.Return
}

func (fc *funcCompiler) compileStmt(s ast.Stmt) {
	switch st := s.(type) {
	case *ast.VarDecl:
		fc.compileExpr(st.Init)
		fc.emit(module.Instruction{Op: opcode.Store, U32: fc.slotFor(st.Name)})
	case *ast.VarAssign:
		fc.compileExpr(st.Value)
		fc.emit(module.Instruction{Op: opcode.Store, U32: fc.slotFor(st.Name)})
	case *ast.ExprStmt:
		fc.compileExpr(st.Expr)
		fc.emit(module.Instruction{Op: opcode.Pop})
	case *ast.Return:
		fc.compileExpr(st.Value)
		fc.emit(module.Instruction{Op: opcode.Return})
	case *ast.If:
		fc.compileIf(st)
	case *ast.While:
		fc.compileWhile(st)
	}
}

func (fc *funcCompiler) compileIf(st *ast.If) {
	fc.compileExpr(st.Cond)
	j1 := fc.emit(module.Instruction{Op: opcode.JumpIfFalse})
	for _, s := range st.Then {
		fc.compileStmt(s)
	}
	if st.Else != nil {
		j2 := fc.emit(module.Instruction{Op: opcode.Jump})
		fc.patchTarget(j1, uint32(len(fc.instrs)))
		for _, s := range st.Else {
			fc.compileStmt(s)
		}
		fc.patchTarget(j2, uint32(len(fc.instrs)))
	} else {
		fc.patchTarget(j1, uint32(len(fc.instrs)))
	}
}

func (fc *funcCompiler) compileWhile(st *ast.While) {
	start := uint32(len(fc.instrs))
	fc.compileExpr(st.Cond)
	j := fc.emit(module.Instruction{Op: opcode.JumpIfFalse})
	for _, s := range st.Body {
		fc.compileStmt(s)
	}
	fc.emit(module.Instruction{Op: opcode.Jump, U32: start})
	fc.patchTarget(j, uint32(len(fc.instrs)))
}

var binOpCodes = map[ast.BinOp]opcode.Op{
	ast.Add:    opcode.Add,
	ast.Sub:    opcode.Sub,
	ast.Mul:    opcode.Mul,
	ast.Div:    opcode.Div,
	ast.Modulo: opcode.Modulo,
	ast.Eq:     opcode.Equal,
	ast.NotEq:  opcode.NotEqual,
	ast.Lt:     opcode.Less,
	ast.LtEq:   opcode.LessEqual,
	ast.Gt:     opcode.Greater,
	ast.GtEq:   opcode.GreaterEqual,
}

func (fc *funcCompiler) compileExpr(e ast.Expr) {
	switch ex := e.(type) {
	case *ast.Literal:
		fc.emit(module.Instruction{Op: opcode.Push, Value: ex.Value})
	case *ast.VarRef:
		fc.emit(module.Instruction{Op: opcode.Load, U32: fc.slotFor(ex.Name)})
	case *ast.BinaryExpr:
		if ex.Op == ast.And || ex.Op == ast.Or {
			fc.compileShortCircuit(ex)
			return
		}
		fc.compileExpr(ex.Left)
		fc.compileExpr(ex.Right)
		fc.emit(module.Instruction{Op: binOpCodes[ex.Op]})
	case *ast.UnaryExpr:
		fc.compileExpr(ex.Expr)
		if ex.Op == ast.Not {
			fc.emit(module.Instruction{Op: opcode.Not})
		} else {
			fc.emit(module.Instruction{Op: opcode.Negate})
		}
	case *ast.Call:
		for _, a := range ex.Args {
			fc.compileExpr(a)
		}
		slot := fc.module.FunctionMap[ex.Name]
		fc.emit(module.Instruction{Op: opcode.Call, U32: module.EncodeLocalCallSlot(slot)})
	case *ast.ForeignCall:
		for _, a := range ex.Args {
			fc.compileExpr(a)
		}
		modID, fnSlot := fc.resolve(ex.Module, ex.Name)
		fc.emit(module.Instruction{Op: opcode.Call, U32: module.EncodeForeignCallSlot(modID, fnSlot)})
	case *ast.BuiltinCall:
		for _, a := range ex.Args {
			fc.compileExpr(a)
		}
		id := opcode.BuiltinNames[ex.Name]
		fc.emit(module.Instruction{Op: opcode.CallBuiltin, U32: uint32(id), Aux: uint32(len(ex.Args))})
	case *ast.MethodCall:
		fc.compileExpr(ex.Receiver)
		fc.emit(module.Instruction{Op: opcode.StrLen})
	}
}

// compileShortCircuit lowers && / || to conditional jumps rather than an
// eager boolean opcode, the policy spec.md §9 recommends: Right is only
// evaluated when its value can affect the result, so side effects in
// builtin calls on the unevaluated side are observably skipped.
func (fc *funcCompiler) compileShortCircuit(ex *ast.BinaryExpr) {
	fc.compileExpr(ex.Left)
	if ex.Op == ast.And {
		// Left false => whole expression false, skip Right.
		jFalse := fc.emit(module.Instruction{Op: opcode.JumpIfFalse})
		fc.compileExpr(ex.Right)
		jEnd := fc.emit(module.Instruction{Op: opcode.Jump})
		fc.patchTarget(jFalse, uint32(len(fc.instrs)))
		fc.emit(module.Instruction{Op: opcode.Push, Value: types.BoolValue(false)})
		fc.patchTarget(jEnd, uint32(len(fc.instrs)))
		return
	}
	// Or: Left true => whole expression true, skip Right.
	jFalse := fc.emit(module.Instruction{Op: opcode.JumpIfFalse})
	fc.emit(module.Instruction{Op: opcode.Push, Value: types.BoolValue(true)})
	jEnd := fc.emit(module.Instruction{Op: opcode.Jump})
	fc.patchTarget(jFalse, uint32(len(fc.instrs)))
	fc.compileExpr(ex.Right)
	fc.patchTarget(jEnd, uint32(len(fc.instrs)))
}
