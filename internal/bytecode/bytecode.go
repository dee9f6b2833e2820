// Package bytecode (de)serializes a module.Module to the bit-exact binary
// format: a 7-byte magic, a version byte, then a definitions block followed
// by a sources block at a recorded text offset.
package bytecode

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"io"
	"math"
	"unicode/utf8"

	hcversion "github.com/hashicorp/go-version"

	"github.com/MikulasBar/mluva-sub000/internal/diagnostics"
	"github.com/MikulasBar/mluva-sub000/internal/module"
	"github.com/MikulasBar/mluva-sub000/internal/opcode"
	"github.com/MikulasBar/mluva-sub000/internal/types"
)

// Magic is the 7-byte prefix identifying a Mluva bytecode file.
var Magic = [7]byte{0x00, 0x08, 'm', 'v', 0x00, 'b', 0x08}

// CurrentVersion is the bytecode format version this package writes and
// the highest version it will read.
const CurrentVersion = 1

// CurrentVersionString feeds CurrentVersion through go-version so loaders
// can report and compare compatibility the way a real compiler would,
// rather than with a raw integer difference.
var CurrentVersionString = fmt.Sprintf("%d.0.0", CurrentVersion)

var dataTypeTag = map[types.Tag]byte{
	types.Void:   0,
	types.Int:    1,
	types.Float:  2,
	types.Bool:   3,
	types.String: 4,
	types.List:   5,
}

var tagFromByte = func() map[byte]types.Tag {
	m := map[byte]types.Tag{}
	for t, b := range dataTypeTag {
		m[b] = t
	}
	return m
}()

// Encode serializes m to the bit-exact wire format described above.
func Encode(m *module.Module) ([]byte, error) {
	var head bytes.Buffer
	head.Write(Magic[:])
	head.WriteByte(CurrentVersion)

	writeOptionU32(&head, m.MainSlot)
	writeU32(&head, uint32(len(m.Definitions)))

	textOffsetPos := head.Len()
	writeU32(&head, 0) // patched below

	for _, e := range orderedFunctionMap(m) {
		writeString(&head, e.name)
		writeU32(&head, e.slot)
	}
	for _, def := range m.Definitions {
		if err := writeDataType(&head, def.ReturnType); err != nil {
			return nil, err
		}
		writeU32(&head, uint32(len(def.Params)))
		for _, p := range def.Params {
			writeCString(&head, p.Name)
			if err := writeDataType(&head, p.Type); err != nil {
				return nil, err
			}
		}
	}

	textOffset := uint32(head.Len())
	binary.LittleEndian.PutUint32(head.Bytes()[textOffsetPos:textOffsetPos+4], textOffset)

	for _, src := range m.Sources {
		writeU32(&head, src.SlotCount)
		writeU32(&head, uint32(len(src.Instructions)))
		for _, ins := range src.Instructions {
			if err := writeInstruction(&head, ins); err != nil {
				return nil, err
			}
		}
	}

	return head.Bytes(), nil
}

// orderedFunctionMap returns m's function_map entries ordered by slot, so
// encoding is deterministic (important for the cache's content hashing and
// for reproducible artifacts).
func orderedFunctionMap(m *module.Module) []struct {
	name string
	slot uint32
} {
	entries := make([]struct {
		name string
		slot uint32
	}, len(m.Definitions))
	for name, slot := range m.FunctionMap {
		entries[slot] = struct {
			name string
			slot uint32
		}{name, slot}
	}
	return entries
}

func writeU32(w *bytes.Buffer, v uint32) {
	var b [4]byte
	binary.LittleEndian.PutUint32(b[:], v)
	w.Write(b[:])
}

func writeOptionU32(w *bytes.Buffer, v *uint32) {
	if v == nil {
		w.WriteByte(0)
		return
	}
	w.WriteByte(1)
	writeU32(w, *v)
}

func writeString(w *bytes.Buffer, s string) {
	writeU32(w, uint32(len(s)))
	w.WriteString(s)
}

func writeCString(w *bytes.Buffer, s string) {
	w.WriteString(s)
	w.WriteByte(0)
}

func writeDataType(w *bytes.Buffer, dt types.DataType) error {
	tag, ok := dataTypeTag[dt.Tag]
	if !ok {
		return fmt.Errorf("bytecode: unknown DataType tag %v", dt.Tag)
	}
	w.WriteByte(tag)
	if dt.Tag == types.List {
		if dt.Item == nil {
			w.WriteByte(0) // absent item type: the wildcard
			return nil
		}
		w.WriteByte(1)
		return writeDataType(w, *dt.Item)
	}
	return nil
}

func writeInstruction(w *bytes.Buffer, ins module.Instruction) error {
	w.WriteByte(byte(ins.Op))
	switch ins.Op {
	case opcode.Load, opcode.Store, opcode.Jump, opcode.JumpIfFalse, opcode.Call:
		writeU32(w, ins.U32)
	case opcode.CallBuiltin:
		w.WriteByte(byte(ins.U32))
		writeU32(w, ins.Aux)
	case opcode.Push:
		return writePushValue(w, ins.Value)
	case opcode.Return, opcode.Pop, opcode.Add, opcode.Sub, opcode.Mul, opcode.Div, opcode.Modulo,
		opcode.Equal, opcode.NotEqual, opcode.Less, opcode.LessEqual, opcode.Greater, opcode.GreaterEqual,
		opcode.And, opcode.Or, opcode.Not, opcode.Negate, opcode.StrLen:
		// no operand
	default:
		return fmt.Errorf("bytecode: unknown opcode %v", ins.Op)
	}
	return nil
}

var pushTypeTag = map[types.Tag]byte{
	types.Void:   0,
	types.Bool:   1,
	types.Int:    2,
	types.Float:  3,
	types.String: 4,
}

func writePushValue(w *bytes.Buffer, v types.Value) error {
	tag, ok := pushTypeTag[v.Tag]
	if !ok {
		return fmt.Errorf("bytecode: unsupported Push value type %v", v.Tag)
	}
	w.WriteByte(tag)
	switch v.Tag {
	case types.Void:
	case types.Bool:
		if v.B {
			w.WriteByte(1)
		} else {
			w.WriteByte(0)
		}
	case types.Int:
		var b [4]byte
		binary.LittleEndian.PutUint32(b[:], uint32(v.I))
		w.Write(b[:])
	case types.Float:
		var b [8]byte
		binary.LittleEndian.PutUint64(b[:], math.Float64bits(v.F))
		w.Write(b[:])
	case types.String:
		writeString(w, v.S)
	}
	return nil
}

// Decode parses the bit-exact wire format back into a module.Module. The
// original prototype never implemented a decoder (its loader was left
// `todo!()`); this is a fresh implementation built strictly from the
// documented format, validated against Encode via the round-trip property.
func Decode(data []byte) (*module.Module, error) {
	r := bytes.NewReader(data)

	var magic [7]byte
	if _, err := io.ReadFull(r, magic[:]); err != nil || magic != Magic {
		return nil, diagnostics.NewBuildError(diagnostics.BytecodeDecodeError, err, "bad magic bytes")
	}
	versionByte, err := readByte(r)
	if err != nil {
		return nil, diagnostics.NewBuildError(diagnostics.BytecodeDecodeError, err, "missing version byte")
	}
	if err := checkVersion(versionByte); err != nil {
		return nil, err
	}

	mainSlot, err := readOptionU32(r)
	if err != nil {
		return nil, diagnostics.NewBuildError(diagnostics.BytecodeDecodeError, err, "reading main_slot")
	}
	funcCount, err := readU32(r)
	if err != nil {
		return nil, diagnostics.NewBuildError(diagnostics.BytecodeDecodeError, err, "reading function_count")
	}
	if _, err := readU32(r); err != nil { // text_offset: we stream sequentially, so it's informational only
		return nil, diagnostics.NewBuildError(diagnostics.BytecodeDecodeError, err, "reading text_offset")
	}

	names := make([]string, funcCount)
	slots := make([]uint32, funcCount)
	for i := range names {
		name, err := readString(r)
		if err != nil {
			return nil, diagnostics.NewBuildError(diagnostics.BytecodeDecodeError, err, "reading function_map entry")
		}
		slot, err := readU32(r)
		if err != nil {
			return nil, diagnostics.NewBuildError(diagnostics.BytecodeDecodeError, err, "reading function_map slot")
		}
		names[i], slots[i] = name, slot
	}

	defs := make([]module.FunctionDefinition, funcCount)
	for i := range defs {
		retType, err := readDataType(r)
		if err != nil {
			return nil, diagnostics.NewBuildError(diagnostics.BytecodeDecodeError, err, "reading return type")
		}
		paramCount, err := readU32(r)
		if err != nil {
			return nil, diagnostics.NewBuildError(diagnostics.BytecodeDecodeError, err, "reading param_count")
		}
		params := make([]module.Param, paramCount)
		for j := range params {
			pname, err := readCString(r)
			if err != nil {
				return nil, diagnostics.NewBuildError(diagnostics.BytecodeDecodeError, err, "reading param name")
			}
			ptype, err := readDataType(r)
			if err != nil {
				return nil, diagnostics.NewBuildError(diagnostics.BytecodeDecodeError, err, "reading param type")
			}
			params[j] = module.Param{Name: pname, Type: ptype}
		}
		defs[i] = module.FunctionDefinition{Name: names[i], ReturnType: retType, Params: params}
	}

	sources := make([]module.FunctionSource, funcCount)
	for i := range sources {
		slotCount, err := readU32(r)
		if err != nil {
			return nil, diagnostics.NewBuildError(diagnostics.BytecodeDecodeError, err, "reading slot_count")
		}
		instrCount, err := readU32(r)
		if err != nil {
			return nil, diagnostics.NewBuildError(diagnostics.BytecodeDecodeError, err, "reading instr_count")
		}
		instrs := make([]module.Instruction, instrCount)
		for j := range instrs {
			ins, err := readInstruction(r)
			if err != nil {
				return nil, diagnostics.NewBuildError(diagnostics.BytecodeDecodeError, err, "reading instruction")
			}
			instrs[j] = ins
		}
		sources[i] = module.FunctionSource{SlotCount: slotCount, Instructions: instrs}
	}

	m := module.New()
	m.Definitions = defs
	m.Sources = sources
	m.MainSlot = mainSlot
	for i, name := range names {
		m.FunctionMap[name] = slots[i]
	}
	return m, nil
}

func checkVersion(v byte) error {
	have, err := hcversion.NewVersion(fmt.Sprintf("%d.0.0", v))
	if err != nil {
		return diagnostics.NewBuildError(diagnostics.BytecodeDecodeError, err, "invalid version byte %d", v)
	}
	cur, _ := hcversion.NewVersion(CurrentVersionString)
	if have.GreaterThan(cur) {
		return diagnostics.NewBuildError(diagnostics.BytecodeDecodeError, nil, "requires Mluva bytecode v%s, have v%s", have, cur)
	}
	return nil
}

func readByte(r *bytes.Reader) (byte, error) { return r.ReadByte() }

func readU32(r *bytes.Reader) (uint32, error) {
	var b [4]byte
	if _, err := io.ReadFull(r, b[:]); err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint32(b[:]), nil
}

func readOptionU32(r *bytes.Reader) (*uint32, error) {
	present, err := r.ReadByte()
	if err != nil {
		return nil, err
	}
	if present == 0 {
		return nil, nil
	}
	v, err := readU32(r)
	if err != nil {
		return nil, err
	}
	return &v, nil
}

func readString(r *bytes.Reader) (string, error) {
	n, err := readU32(r)
	if err != nil {
		return "", err
	}
	buf := make([]byte, n)
	if _, err := io.ReadFull(r, buf); err != nil {
		return "", err
	}
	if !utf8.Valid(buf) {
		return "", fmt.Errorf("invalid UTF-8 in string")
	}
	return string(buf), nil
}

func readCString(r *bytes.Reader) (string, error) {
	var b bytes.Buffer
	for {
		c, err := r.ReadByte()
		if err != nil {
			return "", err
		}
		if c == 0 {
			break
		}
		b.WriteByte(c)
	}
	if !utf8.Valid(b.Bytes()) {
		return "", fmt.Errorf("invalid UTF-8 in string")
	}
	return b.String(), nil
}

func readDataType(r *bytes.Reader) (types.DataType, error) {
	b, err := r.ReadByte()
	if err != nil {
		return types.DataType{}, err
	}
	tag, ok := tagFromByte[b]
	if !ok {
		return types.DataType{}, fmt.Errorf("unknown DataType tag byte %d", b)
	}
	if tag != types.List {
		return types.Of(tag), nil
	}
	present, err := r.ReadByte()
	if err != nil {
		return types.DataType{}, err
	}
	if present == 0 {
		return types.ListOf(nil), nil
	}
	item, err := readDataType(r)
	if err != nil {
		return types.DataType{}, err
	}
	return types.ListOf(&item), nil
}

func readInstruction(r *bytes.Reader) (module.Instruction, error) {
	opByte, err := r.ReadByte()
	if err != nil {
		return module.Instruction{}, err
	}
	op := opcode.Op(opByte)
	switch op {
	case opcode.Load, opcode.Store, opcode.Jump, opcode.JumpIfFalse, opcode.Call:
		u, err := readU32(r)
		if err != nil {
			return module.Instruction{}, err
		}
		return module.Instruction{Op: op, U32: u}, nil
	case opcode.CallBuiltin:
		id, err := r.ReadByte()
		if err != nil {
			return module.Instruction{}, err
		}
		aux, err := readU32(r)
		if err != nil {
			return module.Instruction{}, err
		}
		return module.Instruction{Op: op, U32: uint32(id), Aux: aux}, nil
	case opcode.Push:
		v, err := readPushValue(r)
		if err != nil {
			return module.Instruction{}, err
		}
		return module.Instruction{Op: op, Value: v}, nil
	case opcode.Return, opcode.Pop, opcode.Add, opcode.Sub, opcode.Mul, opcode.Div, opcode.Modulo,
		opcode.Equal, opcode.NotEqual, opcode.Less, opcode.LessEqual, opcode.Greater, opcode.GreaterEqual,
		opcode.And, opcode.Or, opcode.Not, opcode.Negate, opcode.StrLen:
		return module.Instruction{Op: op}, nil
	default:
		return module.Instruction{}, fmt.Errorf("unknown opcode byte %d", opByte)
	}
}

var tagFromPushByte = func() map[byte]types.Tag {
	m := map[byte]types.Tag{}
	for t, b := range pushTypeTag {
		m[b] = t
	}
	return m
}()

func readPushValue(r *bytes.Reader) (types.Value, error) {
	tagByte, err := r.ReadByte()
	if err != nil {
		return types.Value{}, err
	}
	tag, ok := tagFromPushByte[tagByte]
	if !ok {
		return types.Value{}, fmt.Errorf("unknown Push value tag byte %d", tagByte)
	}
	switch tag {
	case types.Void:
		return types.VoidValue(), nil
	case types.Bool:
		b, err := r.ReadByte()
		if err != nil {
			return types.Value{}, err
		}
		return types.BoolValue(b != 0), nil
	case types.Int:
		u, err := readU32(r)
		if err != nil {
			return types.Value{}, err
		}
		return types.IntValue(int32(u)), nil
	case types.Float:
		var b [8]byte
		if _, err := io.ReadFull(r, b[:]); err != nil {
			return types.Value{}, err
		}
		return types.FloatValue(math.Float64frombits(binary.LittleEndian.Uint64(b[:]))), nil
	case types.String:
		s, err := readString(r)
		if err != nil {
			return types.Value{}, err
		}
		return types.StringValue(s), nil
	default:
		return types.Value{}, fmt.Errorf("unsupported Push value tag")
	}
}
