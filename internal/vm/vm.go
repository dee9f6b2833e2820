// Package vm implements Mluva's single-threaded stack virtual machine:
// call frames with local-slot arrays over a single shared operand stack.
package vm

import (
	"fmt"
	"io"
	"math"
	"unicode/utf8"

	"github.com/MikulasBar/mluva-sub000/internal/diagnostics"
	"github.com/MikulasBar/mluva-sub000/internal/module"
	"github.com/MikulasBar/mluva-sub000/internal/opcode"
	"github.com/MikulasBar/mluva-sub000/internal/types"
)

// frame is one call's activation record.
type frame struct {
	moduleID uint32
	funcSlot uint32
	pc       int
	locals   []types.Value
}

// VM executes one module at a time, reading sibling modules only for
// already-linked cross-module calls; it never mutates any module.
type VM struct {
	modules []*module.Module // indexed by module_id, the builder's topological load order
	stack   []types.Value
	frames  []frame
	stdout  io.Writer
}

// New returns a VM over modules, addressed by module_id (their index in
// this slice).
func New(modules []*module.Module, stdout io.Writer) *VM {
	return &VM{modules: modules, stdout: stdout}
}

// Execute invokes entryModuleID's `main` with zero arguments and returns
// its final value. The module must be executable (IsExecutable).
func (vm *VM) Execute(entryModuleID uint32) (types.Value, error) {
	m := vm.modules[entryModuleID]
	if !m.IsExecutable() {
		return types.Value{}, diagnostics.NewRuntimeError(diagnostics.Other, "module is not executable (no Float main())")
	}
	vm.pushFrame(entryModuleID, *m.MainSlot, nil)
	return vm.run()
}

// RunFunction invokes an arbitrary function by (moduleID, funcSlot) with
// the given arguments and returns its result. Used by tests to probe a
// single function in isolation; Execute is the production entry point for
// running a module's `main`.
func (vm *VM) RunFunction(moduleID, funcSlot uint32, args []types.Value) (types.Value, error) {
	vm.pushFrame(moduleID, funcSlot, args)
	return vm.run()
}

func (vm *VM) pushFrame(moduleID, funcSlot uint32, args []types.Value) {
	m := vm.modules[moduleID]
	src := m.Sources[funcSlot]
	locals := make([]types.Value, src.SlotCount)
	copy(locals, args)
	vm.frames = append(vm.frames, frame{moduleID: moduleID, funcSlot: funcSlot, locals: locals})
}

func (vm *VM) push(v types.Value) { vm.stack = append(vm.stack, v) }

func (vm *VM) pop() (types.Value, error) {
	if len(vm.stack) == 0 {
		return types.Value{}, diagnostics.NewRuntimeError(diagnostics.ValueStackUnderflow, "operand stack underflow")
	}
	v := vm.stack[len(vm.stack)-1]
	vm.stack = vm.stack[:len(vm.stack)-1]
	return v, nil
}

func (vm *VM) run() (types.Value, error) {
	for len(vm.frames) > 0 {
		f := &vm.frames[len(vm.frames)-1]
		src := vm.modules[f.moduleID].Sources[f.funcSlot]
		if f.pc >= len(src.Instructions) {
			return types.Value{}, diagnostics.NewRuntimeError(diagnostics.FunctionDidNotReturn, "function fell off its end without returning")
		}
		ins := src.Instructions[f.pc]
		f.pc++

		ret, done, err := vm.step(f, ins)
		if err != nil {
			return types.Value{}, err
		}
		if done {
			vm.frames = vm.frames[:len(vm.frames)-1]
			if len(vm.frames) == 0 {
				return ret, nil
			}
			vm.push(ret)
		}
	}
	return types.Value{}, diagnostics.NewRuntimeError(diagnostics.Other, "call stack empty")
}

// step executes one instruction against the current frame f. done is true
// iff the instruction was Return, in which case ret is the value to hand to
// the caller (or to the VM's caller, if this was the outermost frame).
func (vm *VM) step(f *frame, ins module.Instruction) (ret types.Value, done bool, err error) {
	switch ins.Op {
	case opcode.Push:
		vm.push(ins.Value)
	case opcode.Pop:
		if _, err := vm.pop(); err != nil {
			return types.Value{}, false, err
		}
	case opcode.Load:
		if int(ins.U32) >= len(f.locals) {
			return types.Value{}, false, diagnostics.NewRuntimeError(diagnostics.TypeError, "load from invalid slot %d", ins.U32)
		}
		vm.push(f.locals[ins.U32])
	case opcode.Store:
		v, err := vm.pop()
		if err != nil {
			return types.Value{}, false, err
		}
		if int(ins.U32) >= len(f.locals) {
			return types.Value{}, false, diagnostics.NewRuntimeError(diagnostics.TypeError, "store to invalid slot %d", ins.U32)
		}
		f.locals[ins.U32] = v
	case opcode.Add, opcode.Sub, opcode.Mul, opcode.Div, opcode.Modulo:
		return types.Value{}, false, vm.binArith(ins.Op)
	case opcode.Equal, opcode.NotEqual:
		return types.Value{}, false, vm.binEquality(ins.Op)
	case opcode.Less, opcode.LessEqual, opcode.Greater, opcode.GreaterEqual:
		return types.Value{}, false, vm.binCompare(ins.Op)
	case opcode.And, opcode.Or:
		return types.Value{}, false, vm.binBool(ins.Op)
	case opcode.Not:
		return types.Value{}, false, vm.unaryNot()
	case opcode.Negate:
		return types.Value{}, false, vm.unaryNegate()
	case opcode.Jump:
		f.pc = int(ins.U32)
	case opcode.JumpIfFalse:
		v, err := vm.pop()
		if err != nil {
			return types.Value{}, false, err
		}
		if v.Tag != types.Bool {
			return types.Value{}, false, diagnostics.NewRuntimeError(diagnostics.TypeError, "JumpIfFalse requires Bool, found %s", v.DataType())
		}
		if !v.B {
			f.pc = int(ins.U32)
		}
	case opcode.Call:
		return types.Value{}, false, vm.call(ins.U32)
	case opcode.CallBuiltin:
		return types.Value{}, false, vm.callBuiltin(opcode.Builtin(ins.U32), int(ins.Aux))
	case opcode.StrLen:
		return types.Value{}, false, vm.strLen()
	case opcode.Return:
		v, err := vm.pop()
		if err != nil {
			return types.Value{}, false, err
		}
		return v, true, nil
	default:
		return types.Value{}, false, diagnostics.NewRuntimeError(diagnostics.TypeError, "unknown opcode %v", ins.Op)
	}
	return types.Value{}, false, nil
}

func (vm *VM) popPair() (a, b types.Value, err error) {
	b, err = vm.pop()
	if err != nil {
		return
	}
	a, err = vm.pop()
	return
}

func (vm *VM) binArith(op opcode.Op) error {
	a, b, err := vm.popPair()
	if err != nil {
		return err
	}
	if a.Tag != b.Tag || !a.DataType().IsNumeric() {
		return diagnostics.NewRuntimeError(diagnostics.TypeError, "arithmetic requires matching numeric operands, found %s and %s", a.DataType(), b.DataType())
	}
	if a.Tag == types.Int {
		if (op == opcode.Div || op == opcode.Modulo) && b.I == 0 {
			return diagnostics.NewRuntimeError(diagnostics.DivisionByZero, "division by zero")
		}
		var r int32
		switch op {
		case opcode.Add:
			r = a.I + b.I
		case opcode.Sub:
			r = a.I - b.I
		case opcode.Mul:
			r = a.I * b.I
		case opcode.Div:
			r = a.I / b.I
		case opcode.Modulo:
			r = a.I % b.I
		}
		vm.push(types.IntValue(r))
		return nil
	}
	if (op == opcode.Div || op == opcode.Modulo) && b.F == 0 {
		return diagnostics.NewRuntimeError(diagnostics.DivisionByZero, "division by zero")
	}
	var r float64
	switch op {
	case opcode.Add:
		r = a.F + b.F
	case opcode.Sub:
		r = a.F - b.F
	case opcode.Mul:
		r = a.F * b.F
	case opcode.Div:
		r = a.F / b.F
	case opcode.Modulo:
		r = math.Mod(a.F, b.F)
	}
	vm.push(types.FloatValue(r))
	return nil
}

func (vm *VM) binEquality(op opcode.Op) error {
	a, b, err := vm.popPair()
	if err != nil {
		return err
	}
	eq := a.Equal(b)
	if op == opcode.NotEqual {
		eq = !eq
	}
	vm.push(types.BoolValue(eq))
	return nil
}

func (vm *VM) binCompare(op opcode.Op) error {
	a, b, err := vm.popPair()
	if err != nil {
		return err
	}
	if a.Tag != b.Tag || !a.DataType().IsNumeric() {
		return diagnostics.NewRuntimeError(diagnostics.TypeError, "comparison requires matching numeric operands, found %s and %s", a.DataType(), b.DataType())
	}
	var af, bf float64
	if a.Tag == types.Int {
		af, bf = float64(a.I), float64(b.I)
	} else {
		af, bf = a.F, b.F
	}
	var r bool
	switch op {
	case opcode.Less:
		r = af < bf
	case opcode.LessEqual:
		r = af <= bf
	case opcode.Greater:
		r = af > bf
	case opcode.GreaterEqual:
		r = af >= bf
	}
	vm.push(types.BoolValue(r))
	return nil
}

func (vm *VM) binBool(op opcode.Op) error {
	a, b, err := vm.popPair()
	if err != nil {
		return err
	}
	if a.Tag != types.Bool || b.Tag != types.Bool {
		return diagnostics.NewRuntimeError(diagnostics.TypeError, "logical operator requires Bool operands, found %s and %s", a.DataType(), b.DataType())
	}
	var r bool
	if op == opcode.And {
		r = a.B && b.B
	} else {
		r = a.B || b.B
	}
	vm.push(types.BoolValue(r))
	return nil
}

func (vm *VM) unaryNot() error {
	v, err := vm.pop()
	if err != nil {
		return err
	}
	if v.Tag != types.Bool {
		return diagnostics.NewRuntimeError(diagnostics.TypeError, "! requires Bool, found %s", v.DataType())
	}
	vm.push(types.BoolValue(!v.B))
	return nil
}

func (vm *VM) unaryNegate() error {
	v, err := vm.pop()
	if err != nil {
		return err
	}
	switch v.Tag {
	case types.Int:
		vm.push(types.IntValue(-v.I))
	case types.Float:
		vm.push(types.FloatValue(-v.F))
	default:
		return diagnostics.NewRuntimeError(diagnostics.TypeError, "unary - requires numeric type, found %s", v.DataType())
	}
	return nil
}

func (vm *VM) strLen() error {
	v, err := vm.pop()
	if err != nil {
		return err
	}
	if v.Tag != types.String {
		return diagnostics.NewRuntimeError(diagnostics.TypeError, "length() requires String, found %s", v.DataType())
	}
	vm.push(types.IntValue(int32(utf8.RuneCountInString(v.S))))
	return nil
}

// call resolves callSlot (local or, after linking, foreign) and invokes it.
func (vm *VM) call(callSlot uint32) error {
	f := &vm.frames[len(vm.frames)-1]
	isForeign, targetModuleID, fnSlot := module.DecodeCallSlot(callSlot)
	moduleID := f.moduleID
	if isForeign {
		moduleID = targetModuleID
	}
	target := vm.modules[moduleID]
	argCount := len(target.Definitions[fnSlot].Params)
	args := make([]types.Value, argCount)
	for i := argCount - 1; i >= 0; i-- {
		v, err := vm.pop()
		if err != nil {
			return err
		}
		args[i] = v
	}
	vm.pushFrame(moduleID, fnSlot, args)
	return nil
}

func (vm *VM) callBuiltin(id opcode.Builtin, argCount int) error {
	args := make([]types.Value, argCount)
	for i := argCount - 1; i >= 0; i-- {
		v, err := vm.pop()
		if err != nil {
			return err
		}
		args[i] = v
	}
	switch id {
	case opcode.BuiltinPrint:
		parts := make([]any, len(args))
		for i, a := range args {
			parts[i] = a.String()
		}
		fmt.Fprintln(vm.stdout, parts...)
		vm.push(types.VoidValue())
	case opcode.BuiltinAssert:
		for _, a := range args {
			if a.Tag != types.Bool {
				return diagnostics.NewRuntimeError(diagnostics.TypeError, "assert requires Bool arguments, found %s", a.DataType())
			}
			if !a.B {
				return diagnostics.NewRuntimeError(diagnostics.AssertionFailed, "assertion failed")
			}
		}
		vm.push(types.VoidValue())
	case opcode.BuiltinFormat:
		var s string
		for _, a := range args {
			s += a.String()
		}
		vm.push(types.StringValue(s))
	default:
		return diagnostics.NewRuntimeError(diagnostics.TypeError, "unknown builtin id %d", id)
	}
	return nil
}
