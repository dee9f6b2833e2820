// Package module defines Mluva's compiled-module aggregate: the structural
// output of the compiler and the structural input of the VM and the
// bytecode codec.
package module

import (
	"github.com/MikulasBar/mluva-sub000/internal/opcode"
	"github.com/MikulasBar/mluva-sub000/internal/types"
)

// Param is one (name, type) pair in a function definition's ordered
// parameter list.
type Param struct {
	Name string
	Type types.DataType
}

// FunctionDefinition is a function's signature: name, return type, and
// ordered parameters. It carries no type information about the body; that
// lives only in the parallel FunctionSource.
type FunctionDefinition struct {
	Name       string
	ReturnType types.DataType
	Params     []Param
}

// Instruction is one bytecode instruction: a one-byte opcode plus whichever
// operand that opcode uses. Unused fields are simply left zero.
type Instruction struct {
	Op    opcode.Op
	U32   uint32      // Load/Store slot, Call call_slot, Jump/JumpIfFalse target, CallBuiltin id
	Aux   uint32      // CallBuiltin arg count
	Value types.Value // Push payload
}

// FunctionSource is a function's compiled body: how many local slots it
// needs (parameters occupy the first len(Params) slots, in declaration
// order) and its flat instruction list.
type FunctionSource struct {
	SlotCount    uint32
	Instructions []Instruction
}

// Module is one compiled translation unit.
type Module struct {
	Definitions []FunctionDefinition
	Sources     []FunctionSource // same length as Definitions, parallel
	FunctionMap map[string]uint32 // name -> index into Definitions/Sources
	MainSlot    *uint32           // set iff this module exports `Float main()`
	Imports     []string          // ordered import list as written in source
}

// New returns an empty Module ready to have definitions appended.
func New() *Module {
	return &Module{FunctionMap: map[string]uint32{}}
}

// AddFunction appends a definition/source pair and registers it in
// FunctionMap, returning its assigned function slot.
func (m *Module) AddFunction(def FunctionDefinition, src FunctionSource) uint32 {
	slot := uint32(len(m.Definitions))
	m.Definitions = append(m.Definitions, def)
	m.Sources = append(m.Sources, src)
	m.FunctionMap[def.Name] = slot
	if def.Name == "main" && len(def.Params) == 0 && def.ReturnType.Tag == types.Float {
		s := slot
		m.MainSlot = &s
	}
	return slot
}

// IsExecutable reports whether this module has a runnable `main`.
func (m *Module) IsExecutable() bool {
	return m.MainSlot != nil
}

// Equal reports deep structural equality between two modules, used by the
// bytecode round-trip property: decode(encode(M)) == M.
func (m *Module) Equal(o *Module) bool {
	if len(m.Definitions) != len(o.Definitions) || len(m.Sources) != len(o.Sources) {
		return false
	}
	if len(m.FunctionMap) != len(o.FunctionMap) {
		return false
	}
	for name, slot := range m.FunctionMap {
		if oslot, ok := o.FunctionMap[name]; !ok || oslot != slot {
			return false
		}
	}
	if (m.MainSlot == nil) != (o.MainSlot == nil) {
		return false
	}
	if m.MainSlot != nil && *m.MainSlot != *o.MainSlot {
		return false
	}
	for i := range m.Definitions {
		if !definitionsEqual(m.Definitions[i], o.Definitions[i]) {
			return false
		}
		if !sourcesEqual(m.Sources[i], o.Sources[i]) {
			return false
		}
	}
	return true
}

func definitionsEqual(a, b FunctionDefinition) bool {
	if a.Name != b.Name || !a.ReturnType.Equal(b.ReturnType) || len(a.Params) != len(b.Params) {
		return false
	}
	for i := range a.Params {
		if a.Params[i].Name != b.Params[i].Name || !a.Params[i].Type.Equal(b.Params[i].Type) {
			return false
		}
	}
	return true
}

func sourcesEqual(a, b FunctionSource) bool {
	if a.SlotCount != b.SlotCount || len(a.Instructions) != len(b.Instructions) {
		return false
	}
	for i := range a.Instructions {
		ia, ib := a.Instructions[i], b.Instructions[i]
		if ia.Op != ib.Op || ia.U32 != ib.U32 || ia.Aux != ib.Aux || !ia.Value.Equal(ib.Value) || ia.Value.Tag != ib.Value.Tag {
			return false
		}
	}
	return true
}
